// Package bridge implements the ownership-transfer contract behind the C ABI:
// Tokenize hands the caller a NUL-terminated JSON buffer from the bridge's
// allocator, and Release gives it back to that same allocator.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/tokbridge/internal/engine"
	"github.com/samcharles93/tokbridge/internal/logger"
)

// Request is one tokenize call. The bridge never retains or mutates it.
type Request struct {
	Text  string
	Model string
	// Token is an optional hub access token for this call.
	Token string
}

// Result is the JSON document written into every successful buffer.
type Result struct {
	Tokens    []string `json:"tokens"`
	IDs       []int    `json:"ids"`
	DebugLogs []string `json:"debug_logs,omitempty"`
}

// Options configures a Bridge.
type Options struct {
	Engine    engine.Engine
	Allocator Allocator
	Logger    logger.Logger
	// DebugLogs copies the engine's load trace into the result.
	DebugLogs bool
}

// Bridge is safe for concurrent use. Buffers it returns must be released
// through the same Bridge exactly once.
type Bridge struct {
	engine    engine.Engine
	alloc     Allocator
	log       logger.Logger
	debugLogs bool
}

func New(opts Options) (*Bridge, error) {
	if opts.Engine == nil {
		return nil, errors.New("bridge: engine is required")
	}
	if opts.Allocator == nil {
		opts.Allocator = NewHeapAllocator()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Bridge{
		engine:    opts.Engine,
		alloc:     opts.Allocator,
		log:       opts.Logger,
		debugLogs: opts.DebugLogs,
	}, nil
}

// Allocator returns the allocator that owns this bridge's buffers.
func (b *Bridge) Allocator() Allocator { return b.alloc }

// Tokenize runs the engine and, on success, returns a caller-owned buffer.
// Every failure returns a nil pointer without touching the allocator.
func (b *Bridge) Tokenize(ctx context.Context, req Request) (p unsafe.Pointer, status Status) {
	log := b.log.With("request_id", uuid.NewString(), "model", req.Model)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("tokenize panicked", "panic", fmt.Sprint(rec))
			p, status = nil, StatusEngineFailure
		}
	}()

	if err := validate(req); err != nil {
		log.Warn("rejected request", "error", err)
		return nil, StatusInvalidInput
	}
	token := req.Token
	if !utf8.ValidString(token) {
		log.Warn("ignoring token that is not valid UTF-8")
		token = ""
	}

	res, err := b.engine.Encode(ctx, engine.EncodeRequest{Text: req.Text, Model: req.Model, Token: token})
	if err != nil {
		status = classify(err)
		log.Warn("tokenize failed", "status", status.String(), "error", err)
		return nil, status
	}

	payload, err := json.Marshal(b.result(res))
	if err != nil {
		log.Error("encode result", "error", err)
		return nil, StatusEngineFailure
	}
	p, err = b.alloc.Alloc(payload)
	if err != nil {
		log.Error("allocate result", "bytes", len(payload)+1, "error", err)
		return nil, StatusEngineFailure
	}
	log.Debug("tokenized", "source", res.Source, "resolved", res.Model, "tokens", res.Encoding.Len(), "bytes", len(payload)+1)
	return p, StatusOK
}

// Release frees a buffer returned by Tokenize. A nil pointer is a no-op.
func (b *Bridge) Release(p unsafe.Pointer) {
	if p == nil {
		return
	}
	b.alloc.Free(p)
}

func (b *Bridge) result(res *engine.Result) Result {
	out := Result{Tokens: res.Encoding.Tokens, IDs: res.Encoding.IDs}
	if out.Tokens == nil {
		out.Tokens = []string{}
	}
	if out.IDs == nil {
		out.IDs = []int{}
	}
	if b.debugLogs {
		out.DebugLogs = res.Logs
	}
	return out
}

func validate(req Request) error {
	if !utf8.ValidString(req.Text) {
		return errors.New("text is not valid UTF-8")
	}
	if !utf8.ValidString(req.Model) {
		return errors.New("model name is not valid UTF-8")
	}
	if strings.TrimSpace(req.Model) == "" {
		return errors.New("model name is empty")
	}
	return nil
}

func classify(err error) Status {
	if errors.Is(err, engine.ErrModelNotFound) {
		return StatusModelNotFound
	}
	return StatusEngineFailure
}

// String copies the NUL-terminated buffer at p into a Go string. p must come
// from Tokenize and not yet be released.
func String(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}

// Decode parses the buffer at p into a Result.
func Decode(p unsafe.Pointer) (*Result, error) {
	if p == nil {
		return nil, errors.New("bridge: nil buffer")
	}
	var res Result
	if err := json.Unmarshal([]byte(String(p)), &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}
