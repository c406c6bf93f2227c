// Package hftokenizer is the Go-native way to call the tokenizer bridge. It
// runs the same ownership-transfer path as the C library, decodes the result
// and releases the buffer before returning.
package hftokenizer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/tokbridge/internal/app"
	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/logger"
)

var (
	ErrInvalidInput  = bridge.ErrInvalidInput
	ErrModelNotFound = bridge.ErrModelNotFound
	ErrEngineFailure = bridge.ErrEngineFailure
)

// Result is a decoded tokenization.
type Result struct {
	Tokens    []string
	IDs       []int
	DebugLogs []string
}

// Options configures a private Client.
type Options struct {
	// ConfigPath selects the config file; empty uses the default location.
	ConfigPath string
	Logger     logger.Logger
}

// Client owns one bridge. It is safe for concurrent use.
type Client struct {
	app *app.App
}

func New(opts Options) (*Client, error) {
	a, err := app.Load(opts.ConfigPath, app.Options{Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return &Client{app: a}, nil
}

// Close releases the client's log file, if any.
func (c *Client) Close() error { return c.app.Close() }

// Tokenize encodes text with model.
func (c *Client) Tokenize(ctx context.Context, text, model string) (*Result, error) {
	return c.TokenizeWithToken(ctx, text, model, "")
}

// TokenizeWithToken encodes text with model, authenticating hub downloads with token.
func (c *Client) TokenizeWithToken(ctx context.Context, text, model, token string) (*Result, error) {
	return tokenize(ctx, c.app.Bridge, bridge.Request{Text: text, Model: model, Token: token})
}

func tokenize(ctx context.Context, b *bridge.Bridge, req bridge.Request) (*Result, error) {
	p, status := b.Tokenize(ctx, req)
	if status != bridge.StatusOK {
		return nil, fmt.Errorf("tokenize %q: %w", req.Model, status.Err())
	}
	defer b.Release(p)
	res, err := bridge.Decode(p)
	if err != nil {
		return nil, errors.Join(ErrEngineFailure, err)
	}
	return &Result{Tokens: res.Tokens, IDs: res.IDs, DebugLogs: res.DebugLogs}, nil
}

var shared = sync.OnceValues(func() (*Client, error) {
	return New(Options{})
})

// Tokenize encodes text with model using the process-wide client.
func Tokenize(text, model string) (*Result, error) {
	return TokenizeWithToken(text, model, "")
}

// TokenizeWithToken is Tokenize with a hub access token.
func TokenizeWithToken(text, model, token string) (*Result, error) {
	c, err := shared()
	if err != nil {
		return nil, errors.Join(ErrEngineFailure, err)
	}
	return c.TokenizeWithToken(context.Background(), text, model, token)
}
