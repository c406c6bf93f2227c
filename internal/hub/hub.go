// Package hub locates tokenizer.json files for a model name: configured
// aliases, local paths, the Hugging Face cache and, unless offline, a download
// from the hub into that cache.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/samcharles93/tokbridge/internal/logger"
)

const (
	TokenizerFile       = "tokenizer.json"
	TokenizerConfigFile = "tokenizer_config.json"

	maxAliasDepth = 8
)

// ErrModelNotFound is wrapped by every resolution failure that means the
// model does not exist or cannot be reached.
var ErrModelNotFound = errors.New("model not found")

// AccessError reports a hub refusal (401/403), typically a gated or private
// repository without a valid token. It unwraps to ErrModelNotFound.
type AccessError struct {
	Repo       string
	StatusCode int
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("hub denied access to %s (HTTP %d)", e.Repo, e.StatusCode)
}

func (e *AccessError) Unwrap() error { return ErrModelNotFound }

// Source records where a Location was found.
type Source string

const (
	SourceLocal    Source = "local"
	SourceCache    Source = "cache"
	SourceDownload Source = "download"
)

// Location is a resolved tokenizer on disk.
type Location struct {
	Name          string
	Source        Source
	TokenizerPath string
	// ConfigPath is empty when no tokenizer_config.json sits next to the tokenizer.
	ConfigPath string
}

// Options configures a Resolver.
type Options struct {
	CacheDir string
	Endpoint string
	Revision string
	// Token authenticates downloads when a request carries none.
	Token    string
	Offline  bool
	Aliases  map[string]string
	Logger   logger.Logger
	RetryMax int
	Timeout  time.Duration
}

// Resolver turns model names into Locations. It is safe for concurrent use.
type Resolver struct {
	opts   Options
	client *retryablehttp.Client
	log    logger.Logger
}

func NewResolver(opts Options) *Resolver {
	if opts.Revision == "" {
		opts.Revision = "main"
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	if opts.Endpoint == "" {
		opts.Endpoint = "https://huggingface.co"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = opts.Timeout
	client := retryablehttp.NewClient()
	client.HTTPClient = hc
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = retryLogger{log}

	return &Resolver{opts: opts, client: client, log: log}
}

// CacheDir returns the Hugging Face cache directory in use.
func (r *Resolver) CacheDir() string { return r.opts.CacheDir }

// Alias follows configured aliases from name. Chains longer than
// maxAliasDepth stop where they are.
func (r *Resolver) Alias(name string) string {
	for range maxAliasDepth {
		next, ok := r.opts.Aliases[name]
		if !ok || next == name {
			break
		}
		name = next
	}
	return name
}

// Resolve finds the tokenizer for name, which must already be alias-resolved.
// token overrides the configured hub token for a download.
func (r *Resolver) Resolve(ctx context.Context, name, token string) (Location, error) {
	if name == "" {
		return Location{}, fmt.Errorf("%w: empty model name", ErrModelNotFound)
	}
	if loc, ok, err := r.resolveLocal(name); ok || err != nil {
		return loc, err
	}
	if looksLikePath(name) {
		return Location{}, fmt.Errorf("%w: %s: no such file or directory", ErrModelNotFound, name)
	}
	if !ValidRepoID(name) {
		return Location{}, fmt.Errorf("%w: %q is not a local path or hub repository id", ErrModelNotFound, name)
	}
	if loc, ok := r.resolveCached(name); ok {
		return loc, nil
	}
	if r.opts.Offline {
		return Location{}, fmt.Errorf("%w: %s is not cached and the hub is offline", ErrModelNotFound, name)
	}
	if token == "" {
		token = r.opts.Token
	}
	return r.download(ctx, name, token)
}

func (r *Resolver) resolveLocal(name string) (Location, bool, error) {
	path := expandHome(name)
	info, err := os.Stat(path)
	if err != nil {
		return Location{}, false, nil
	}
	if !info.IsDir() {
		return Location{
			Name:          name,
			Source:        SourceLocal,
			TokenizerPath: path,
			ConfigPath:    existing(filepath.Join(filepath.Dir(path), TokenizerConfigFile)),
		}, true, nil
	}
	tok := filepath.Join(path, TokenizerFile)
	if existing(tok) == "" {
		return Location{}, true, fmt.Errorf("%w: directory %s has no %s", ErrModelNotFound, path, TokenizerFile)
	}
	return Location{
		Name:          name,
		Source:        SourceLocal,
		TokenizerPath: tok,
		ConfigPath:    existing(filepath.Join(path, TokenizerConfigFile)),
	}, true, nil
}

var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,95}(/[A-Za-z0-9][A-Za-z0-9._-]{0,95})?$`)

// ValidRepoID reports whether name has the shape of a hub repository id
// ("name" or "owner/name").
func ValidRepoID(name string) bool {
	if strings.Contains(name, "--") || strings.Contains(name, "..") {
		return false
	}
	return repoIDPattern.MatchString(name)
}

func looksLikePath(name string) bool {
	return filepath.IsAbs(name) ||
		strings.HasPrefix(name, "./") ||
		strings.HasPrefix(name, "../") ||
		strings.HasPrefix(name, "~") ||
		strings.HasSuffix(name, ".json")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// existing returns path when it names a regular file, else "".
func existing(path string) string {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// retryLogger adapts Logger to retryablehttp.LeveledLogger and demotes its
// chatter to debug.
type retryLogger struct {
	log logger.Logger
}

func (l retryLogger) Error(msg string, kv ...any) { l.log.Warn(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...any)  { l.log.Debug(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...any) { l.log.Debug(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...any)  { l.log.Debug(msg, kv...) }
