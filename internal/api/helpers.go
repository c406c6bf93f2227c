package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tokbridge/internal/bridge"
)

var ErrInvalidRequest = errors.New("invalid_request")

// FieldError rejects one field of a request body. Param names the field the
// way it is reported in the error body, e.g. "input[2]".
type FieldError struct {
	Param string
	Msg   string
}

func (e *FieldError) Error() string { return e.Param + ": " + e.Msg }

func (e *FieldError) Unwrap() error { return ErrInvalidRequest }

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeStatus maps a failed bridge status onto an HTTP error.
func writeStatus(c *echo.Context, status bridge.Status, model string) error {
	switch status {
	case bridge.StatusInvalidInput:
		return writeError(c, http.StatusBadRequest, "invalid_request_error", status.String(), "text", "invalid_input")
	case bridge.StatusModelNotFound:
		return writeError(c, http.StatusNotFound, "not_found_error", fmt.Sprintf("model %q not found", model), "model", "model_not_found")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", status.String(), "", "engine_failure")
	}
}

// writeFieldError reports a *FieldError with its param, anything else as a
// plain bad request.
func writeFieldError(c *echo.Context, err error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", fe.Msg, fe.Param, "")
	}
	return writeBadRequest(c, err.Error())
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// inputTexts flattens a string or an array of strings.
func inputTexts(input any) ([]string, error) {
	switch v := input.(type) {
	case nil:
		return nil, &FieldError{Param: "input", Msg: "input is required"}
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, &FieldError{Param: fmt.Sprintf("input[%d]", i), Msg: "input items must be strings"}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &FieldError{Param: "input", Msg: "expected string or array"}
	}
}
