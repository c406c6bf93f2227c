package bridge

import (
	"errors"
	"fmt"
)

// Status is the outcome of a tokenize call. The integer values are part of
// the C ABI and must not change.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidInput
	StatusModelNotFound
	StatusEngineFailure
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrModelNotFound = errors.New("model not found")
	ErrEngineFailure = errors.New("engine failure")
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidInput:
		return "invalid input"
	case StatusModelNotFound:
		return "model not found"
	case StatusEngineFailure:
		return "engine failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Err returns nil for StatusOK and the matching sentinel otherwise.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusInvalidInput:
		return ErrInvalidInput
	case StatusModelNotFound:
		return ErrModelNotFound
	default:
		return ErrEngineFailure
	}
}

// Misuse classifies a release the bridge refused. It is diagnostic only.
type Misuse int

const (
	MisuseDoubleFree Misuse = iota + 1
	MisuseForeignFree
)

func (m Misuse) String() string {
	switch m {
	case MisuseDoubleFree:
		return "double free"
	case MisuseForeignFree:
		return "foreign free"
	default:
		return fmt.Sprintf("misuse(%d)", int(m))
	}
}
