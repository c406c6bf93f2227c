// Package tokenizer implements the text encoders wrapped by the bridge: a
// Hugging Face tokenizer.json pipeline (normalizer, pre-tokenizer, BPE,
// WordPiece or WordLevel model, post-processor) and the OpenAI tiktoken
// encodings.
package tokenizer

import "errors"

// ErrUnsupported is wrapped by load errors for tokenizer.json components this
// package does not implement.
var ErrUnsupported = errors.New("unsupported tokenizer component")

// ErrUnknownToken is returned when a piece cannot be mapped to an id and the
// model has no unknown token to fall back on.
var ErrUnknownToken = errors.New("token not in vocabulary")

// Tokenizer encodes text into token strings and ids.
// Implementations are safe for concurrent use.
type Tokenizer interface {
	Encode(text string) (Encoding, error)
}

// Encoding is the output of a tokenizer: Tokens[i] is the vocabulary entry for IDs[i].
type Encoding struct {
	Tokens []string
	IDs    []int
}

// Len returns the number of tokens.
func (e Encoding) Len() int { return len(e.IDs) }

func (e *Encoding) append(tok Token) {
	e.Tokens = append(e.Tokens, tok.Value)
	e.IDs = append(e.IDs, tok.ID)
}

// Token is a single vocabulary entry.
type Token struct {
	ID    int
	Value string
}

func emptyEncoding() Encoding {
	return Encoding{Tokens: []string{}, IDs: []int{}}
}
