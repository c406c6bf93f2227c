package hftokenizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/logger"
)

func newClient(t *testing.T, extra string) *Client {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "offline: true\ncache_dir: " + dir + "\ntrack_allocations: true\n" + extra
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, err := New(Options{ConfigPath: path, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientTokenizeDefault(t *testing.T) {
	t.Parallel()

	c := newClient(t, "")
	res, err := c.Tokenize(context.Background(), "hello world", "default")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if !reflect.DeepEqual(res.Tokens, []string{"hello", " world"}) || !reflect.DeepEqual(res.IDs, []int{15339, 1917}) {
		t.Fatalf("unexpected result %+v", res)
	}
	tracked := c.app.Bridge.Allocator().(*bridge.TrackingAllocator)
	if tracked.Live() != 0 {
		t.Fatalf("buffer not released: live = %d", tracked.Live())
	}
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	c := newClient(t, "")
	if _, err := c.Tokenize(context.Background(), "hello world", "nonexistent-model"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if _, err := c.Tokenize(context.Background(), "hello", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClientDebugLogs(t *testing.T) {
	t.Parallel()

	c := newClient(t, "debug_logs: true\n")
	res, err := c.TokenizeWithToken(context.Background(), "hi", "default", "unused")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if len(res.DebugLogs) == 0 {
		t.Fatalf("expected debug logs")
	}
}

func TestClientAlias(t *testing.T) {
	t.Parallel()

	c := newClient(t, "aliases:\n  davinci: r50k_base\n")
	res, err := c.Tokenize(context.Background(), "hello world", "davinci")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if len(res.IDs) == 0 || len(res.IDs) != len(res.Tokens) {
		t.Fatalf("unexpected result %+v", res)
	}
}
