// Package engine turns (text, model) requests into encodings. It resolves
// model names through the hub, loads and caches tokenizers, and keeps
// tokenizer panics from escaping as anything but errors.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/samcharles93/tokbridge/internal/hub"
	"github.com/samcharles93/tokbridge/internal/logger"
	"github.com/samcharles93/tokbridge/internal/tokenizer"
)

// DefaultModelName is the model name that selects Config.DefaultModel.
const DefaultModelName = "default"

// ErrModelNotFound is returned (wrapped) when a model name resolves to nothing.
var ErrModelNotFound = hub.ErrModelNotFound

// EncodeRequest is one tokenization call. Token, when set, authenticates hub
// downloads for this request only.
type EncodeRequest struct {
	Text  string
	Model string
	Token string
}

// Result is a successful encoding plus where the tokenizer came from.
type Result struct {
	Model    string
	Source   string
	Encoding tokenizer.Encoding
	// Logs is the load trace, collected only when Config.DebugLogs is set.
	Logs []string
}

// Engine encodes text with a named model. Implementations are safe for concurrent use.
type Engine interface {
	Encode(ctx context.Context, req EncodeRequest) (*Result, error)
}

// Config configures a Cached engine.
type Config struct {
	Resolver         *hub.Resolver
	DefaultModel     string
	CacheSize        int
	AddSpecialTokens bool
	DebugLogs        bool
	Logger           logger.Logger
}

// Cached is an Engine that keeps recently used tokenizers in memory.
type Cached struct {
	cfg   Config
	log   logger.Logger
	cache *lru.Cache[string, tokenizer.Tokenizer]
	group singleflight.Group

	// loadHF is swapped in tests.
	loadHF func(loc hub.Location) (tokenizer.Tokenizer, error)
}

func NewCached(cfg Config) (*Cached, error) {
	if cfg.Resolver == nil {
		cfg.Resolver = hub.NewResolver(hub.Options{Offline: true})
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 8
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = tokenizer.BuiltinEncodings[0]
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	cache, err := lru.New[string, tokenizer.Tokenizer](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("tokenizer cache: %w", err)
	}
	c := &Cached{cfg: cfg, log: log, cache: cache}
	c.loadHF = c.loadFromDisk
	return c, nil
}

// ModelName maps the caller's name to the one that is resolved: "default"
// becomes the configured default, then aliases are followed.
func (c *Cached) ModelName(name string) string {
	name = strings.TrimSpace(name)
	if name == DefaultModelName {
		name = c.cfg.DefaultModel
	}
	return c.cfg.Resolver.Alias(name)
}

func (c *Cached) Encode(ctx context.Context, req EncodeRequest) (*Result, error) {
	tr := &trace{enabled: c.cfg.DebugLogs, log: c.log}
	name := c.ModelName(req.Model)
	tr.add("load tokenizer %q (requested %q)", name, req.Model)
	if req.Token != "" {
		tr.add("using request token for hub access")
	}

	tok, source, err := c.tokenizerFor(ctx, name, req.Token, tr)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enc, err := safeEncode(tok, req.Text)
	if err != nil {
		return nil, fmt.Errorf("encode with %s: %w", name, err)
	}
	tr.add("encoded %d tokens", enc.Len())
	return &Result{Model: name, Source: source, Encoding: enc, Logs: tr.lines}, nil
}

const sourceBuiltin = "builtin"

func (c *Cached) tokenizerFor(ctx context.Context, name, token string, tr *trace) (tokenizer.Tokenizer, string, error) {
	if tokenizer.IsBuiltin(name) {
		key := sourceBuiltin + ":" + name
		tok, err := c.getOrLoad(key, tr, func() (tokenizer.Tokenizer, error) {
			t, err := tokenizer.LoadTiktoken(name)
			if errors.Is(err, tokenizer.ErrUnknownModel) {
				return nil, fmt.Errorf("%w: %v", ErrModelNotFound, err)
			}
			if err != nil {
				return nil, err
			}
			return t, nil
		})
		return tok, sourceBuiltin, err
	}

	v, err, _ := c.group.Do("resolve\x00"+name+"\x00"+token, func() (any, error) {
		return c.cfg.Resolver.Resolve(ctx, name, token)
	})
	if err != nil {
		tr.add("resolve %q failed: %v", name, err)
		return nil, "", fmt.Errorf("resolve %s: %w", name, err)
	}
	loc := v.(hub.Location)
	tr.add("resolved %q from %s: %s", name, loc.Source, loc.TokenizerPath)

	tok, err := c.getOrLoad(loc.TokenizerPath, tr, func() (tokenizer.Tokenizer, error) {
		return c.loadHF(loc)
	})
	return tok, string(loc.Source), err
}

// getOrLoad returns the cached tokenizer for key or loads it once, however
// many callers ask concurrently.
func (c *Cached) getOrLoad(key string, tr *trace, load func() (tokenizer.Tokenizer, error)) (tokenizer.Tokenizer, error) {
	if tok, ok := c.cache.Get(key); ok {
		tr.add("tokenizer cache hit: %s", key)
		return tok, nil
	}
	v, err, shared := c.group.Do("load\x00"+key, func() (any, error) {
		if tok, ok := c.cache.Get(key); ok {
			return tok, nil
		}
		tok, err := safeLoad(load)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, tok)
		return tok, nil
	})
	if err != nil {
		tr.add("load %s failed: %v", key, err)
		return nil, fmt.Errorf("load tokenizer %s: %w", key, err)
	}
	tr.add("tokenizer loaded: %s (shared=%t)", key, shared)
	return v.(tokenizer.Tokenizer), nil
}

func (c *Cached) loadFromDisk(loc hub.Location) (tokenizer.Tokenizer, error) {
	data, release, err := hub.ReadMapped(loc.TokenizerPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrModelNotFound, err)
		}
		return nil, err
	}
	defer func() { _ = release() }()

	var cfg []byte
	if loc.ConfigPath != "" {
		if cfg, err = os.ReadFile(loc.ConfigPath); err != nil {
			c.log.Warn("ignoring unreadable tokenizer config", "path", loc.ConfigPath, "error", err)
			cfg = nil
		}
	}
	return tokenizer.LoadHFBytes(data, cfg, tokenizer.HFOptions{AddSpecialTokens: c.cfg.AddSpecialTokens})
}

// Purge drops every cached tokenizer.
func (c *Cached) Purge() { c.cache.Purge() }

func safeEncode(tok tokenizer.Tokenizer, text string) (enc tokenizer.Encoding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(text)
}

func safeLoad(load func() (tokenizer.Tokenizer, error)) (tok tokenizer.Tokenizer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in load: %v", rec)
		}
	}()
	return load()
}

type trace struct {
	enabled bool
	lines   []string
	log     logger.Logger
}

func (t *trace) add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.log.Debug(msg)
	if t.enabled {
		t.lines = append(t.lines, msg)
	}
}
