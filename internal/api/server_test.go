package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/engine"
	"github.com/samcharles93/tokbridge/internal/hub"
	"github.com/samcharles93/tokbridge/internal/tokenizer"
)

type testEngine struct{}

func (testEngine) Encode(_ context.Context, req engine.EncodeRequest) (*engine.Result, error) {
	switch req.Model {
	case "default":
		if req.Text == "" {
			return &engine.Result{Model: req.Model}, nil
		}
		return &engine.Result{
			Model:    req.Model,
			Encoding: tokenizer.Encoding{Tokens: []string{"hello", " world"}, IDs: []int{15339, 1917}},
		}, nil
	case "broken":
		return nil, errors.New("broken tokenizer")
	default:
		return nil, engine.ErrModelNotFound
	}
}

func newTestEcho(t *testing.T) (*echo.Echo, *bridge.TrackingAllocator) {
	t.Helper()
	alloc := bridge.NewTrackingAllocator(bridge.NewHeapAllocator(), nil)
	b, err := bridge.New(bridge.Options{Engine: testEngine{}, Allocator: alloc})
	if err != nil {
		t.Fatalf("bridge.New() error = %v", err)
	}
	server := NewServer(ServerConfig{
		Bridge:   b,
		Resolver: hub.NewResolver(hub.Options{CacheDir: t.TempDir(), Offline: true}),
		Aliases:  map[string]string{"gpt4": "cl100k_base"},
	})
	e := echo.New()
	server.Register(e)
	return e, alloc
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenizeEndpoint(t *testing.T) {
	t.Parallel()

	e, alloc := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", `{"text":"hello world"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp TokenizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Model != "default" || !reflect.DeepEqual(resp.IDs, []int{15339, 1917}) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if alloc.Live() != 0 {
		t.Fatalf("buffer leaked: live = %d", alloc.Live())
	}
}

func TestTokenizeEndpointErrors(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	cases := []struct {
		body string
		code int
		want string
	}{
		{`{"text":"x","model":"nonexistent-model"}`, http.StatusNotFound, "model_not_found"},
		{`{"text":"x","model":"broken"}`, http.StatusInternalServerError, "engine_failure"},
		{`{"text":"x","model":"   "}`, http.StatusBadRequest, "invalid_input"},
		{`{not json`, http.StatusBadRequest, "invalid_request_error"},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", tc.body)
		if rec.Code != tc.code || !strings.Contains(rec.Body.String(), tc.want) {
			t.Fatalf("body %s: got %d %s, want %d containing %q", tc.body, rec.Code, rec.Body.String(), tc.code, tc.want)
		}
	}
}

func TestInputTokensEndpoint(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/responses/input_tokens", `{"input":["hello world","hello world",""]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp InputTokensResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.InputTokens != 4 {
		t.Fatalf("input_tokens = %d, want 4", resp.InputTokens)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/responses/input_tokens", `{"input":["ok",2]}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"param":"input[1]"`) {
		t.Fatalf("non-string input: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestModelsEndpoints(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: got %d", rec.Code)
	}
	for _, want := range []string{`"cl100k_base"`, `"gpt4"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("list missing %s: %s", want, rec.Body.String())
		}
	}

	if rec := doJSON(t, e, http.MethodGet, "/v1/models/gpt4", ""); rec.Code != http.StatusOK {
		t.Fatalf("get alias: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/models/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing: got %d", rec.Code)
	}
}

func TestInputTexts(t *testing.T) {
	t.Parallel()

	_, err := inputTexts(nil)
	var fe *FieldError
	if !errors.Is(err, ErrInvalidRequest) || !errors.As(err, &fe) || fe.Param != "input" {
		t.Fatalf("nil input: %v", err)
	}
	got, err := inputTexts("one")
	if err != nil || !reflect.DeepEqual(got, []string{"one"}) {
		t.Fatalf("string input: %v %v", got, err)
	}
}
