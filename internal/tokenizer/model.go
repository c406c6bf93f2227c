package tokenizer

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Model maps one pre-tokenized piece to vocabulary tokens.
type Model interface {
	Tokenize(piece string) ([]Token, error)
	TokenToID(token string) (int, bool)
}

type hfModel struct {
	Type                    string          `json:"type"`
	Vocab                   json.RawMessage `json:"vocab"`
	Merges                  []any           `json:"merges"`
	UnkToken                *string         `json:"unk_token"`
	UnkID                   *int            `json:"unk_id"`
	ContinuingSubwordPrefix *string         `json:"continuing_subword_prefix"`
	EndOfWordSuffix         *string         `json:"end_of_word_suffix"`
	FuseUnk                 bool            `json:"fuse_unk"`
	ByteFallback            bool            `json:"byte_fallback"`
	IgnoreMerges            bool            `json:"ignore_merges"`
	MaxInputCharsPerWord    int             `json:"max_input_chars_per_word"`
}

// modelType infers the model kind for files that omit "type".
func (m hfModel) modelType() string {
	switch {
	case m.Type != "":
		return m.Type
	case m.Merges != nil:
		return "BPE"
	case m.MaxInputCharsPerWord > 0:
		return "WordPiece"
	case m.UnkID != nil:
		return "Unigram"
	default:
		return "WordLevel"
	}
}

func parseModel(raw json.RawMessage) (Model, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("tokenizer.json has no model")
	}
	var m hfModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	switch typ := m.modelType(); typ {
	case "BPE":
		return newBPE(m)
	case "WordPiece":
		return newWordPiece(m)
	case "WordLevel":
		return newWordLevel(m)
	case "Unigram":
		return newUnigram(m)
	default:
		return nil, fmt.Errorf("model %q: %w", typ, ErrUnsupported)
	}
}

func decodeVocab(raw json.RawMessage) (map[string]int, error) {
	vocab := map[string]int{}
	if isNull(raw) {
		return vocab, nil
	}
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("decode vocab: %w", err)
	}
	return vocab, nil
}

// byteFallbackTokens spells s as <0xXX> byte tokens. It reports false when
// the vocabulary lacks any of them.
func byteFallbackTokens(vocab map[string]int, s string) ([]Token, bool) {
	out := make([]Token, 0, len(s))
	for i := 0; i < len(s); i++ {
		name := fmt.Sprintf("<0x%02X>", s[i])
		id, ok := vocab[name]
		if !ok {
			return nil, false
		}
		out = append(out, Token{ID: id, Value: name})
	}
	return out, true
}
