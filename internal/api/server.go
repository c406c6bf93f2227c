// Package api serves the tokenizer bridge over HTTP. Every request runs the
// same tokenize/release path as the C library.
package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/hub"
	"github.com/samcharles93/tokbridge/internal/logger"
	"github.com/samcharles93/tokbridge/internal/tokenizer"
)

// Server holds the bridge the handlers call.
type Server struct {
	bridge   *bridge.Bridge
	resolver *hub.Resolver
	aliases  map[string]string
	log      logger.Logger
}

type ServerConfig struct {
	Bridge   *bridge.Bridge
	Resolver *hub.Resolver
	Aliases  map[string]string
	Logger   logger.Logger
}

func NewServer(cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Server{bridge: cfg.Bridge, resolver: cfg.Resolver, aliases: cfg.Aliases, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.POST("/v1/tokenize", s.handleTokenize)
	e.POST("/v1/responses/input_tokens", s.handleInputTokens)
	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/models/:id", s.handleGetModel)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTokenize(c *echo.Context) error {
	req, err := decodeJSON[TokenizeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	model := modelOrDefault(req.Model)
	res, status := s.tokenize(c, bridge.Request{Text: req.Text, Model: model, Token: req.Token})
	if status != bridge.StatusOK {
		return writeStatus(c, status, model)
	}
	return c.JSON(http.StatusOK, TokenizeResponse{
		Object:    "tokenization",
		Model:     model,
		Tokens:    res.Tokens,
		IDs:       res.IDs,
		DebugLogs: res.DebugLogs,
	})
}

func (s *Server) handleInputTokens(c *echo.Context) error {
	req, err := decodeJSON[InputTokensRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	texts, err := inputTexts(req.Input)
	if err != nil {
		return writeFieldError(c, err)
	}
	model := modelOrDefault(req.Model)
	count := 0
	for _, text := range texts {
		res, status := s.tokenize(c, bridge.Request{Text: text, Model: model})
		if status != bridge.StatusOK {
			return writeStatus(c, status, model)
		}
		count += len(res.IDs)
	}
	return c.JSON(http.StatusOK, InputTokensResponse{
		Object:      "response.input_tokens",
		InputTokens: count,
	})
}

func (s *Server) handleListModels(c *echo.Context) error {
	models, err := s.models()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   models,
	})
}

func (s *Server) handleGetModel(c *echo.Context) error {
	id := c.Param("id")
	models, err := s.models()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	for _, m := range models {
		if m.ID == id {
			return c.JSON(http.StatusOK, m)
		}
	}
	return writeNotFound(c, fmt.Sprintf("model %q not found", id))
}

// tokenize runs one bridge call and releases the buffer before returning.
func (s *Server) tokenize(c *echo.Context, req bridge.Request) (*bridge.Result, bridge.Status) {
	p, status := s.bridge.Tokenize(c.Request().Context(), req)
	if status != bridge.StatusOK {
		return nil, status
	}
	defer s.bridge.Release(p)
	res, err := bridge.Decode(p)
	if err != nil {
		s.log.Error("decode result", "error", err)
		return nil, bridge.StatusEngineFailure
	}
	return res, bridge.StatusOK
}

func (s *Server) models() ([]ModelObject, error) {
	out := make([]ModelObject, 0, len(tokenizer.BuiltinEncodings)+len(s.aliases))
	for _, name := range tokenizer.BuiltinEncodings {
		out = append(out, ModelObject{ID: name, Object: "model", OwnedBy: "builtin"})
	}
	aliases := make([]string, 0, len(s.aliases))
	for name := range s.aliases {
		aliases = append(aliases, name)
	}
	sort.Strings(aliases)
	for _, name := range aliases {
		out = append(out, ModelObject{ID: name, Object: "model", OwnedBy: "alias"})
	}
	if s.resolver == nil {
		return out, nil
	}
	cached, err := s.resolver.CachedModels()
	if err != nil {
		return nil, fmt.Errorf("list cached models: %w", err)
	}
	for _, m := range cached {
		out = append(out, ModelObject{ID: m.Repo, Object: "model", OwnedBy: "cache"})
	}
	return out, nil
}

func modelOrDefault(model string) string {
	if model == "" {
		return "default"
	}
	return model
}
