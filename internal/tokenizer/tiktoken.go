package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

// TiktokenModelPrefix selects an encoding by OpenAI model name, e.g. "tiktoken/gpt-4o".
const TiktokenModelPrefix = "tiktoken/"

// ErrUnknownModel is returned for a TiktokenModelPrefix name that tiktoken
// does not map to any encoding.
var ErrUnknownModel = errors.New("unknown tiktoken model")

// BuiltinEncodings lists the tiktoken encodings whose ranks ship with the
// offline loader.
var BuiltinEncodings = []string{
	tiktoken.MODEL_CL100K_BASE,
	tiktoken.MODEL_P50K_BASE,
	tiktoken.MODEL_P50K_EDIT,
	tiktoken.MODEL_R50K_BASE,
}

var loaderOnce sync.Once

func useOfflineLoader() {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
}

// IsBuiltin reports whether name is served by LoadTiktoken.
func IsBuiltin(name string) bool {
	if strings.HasPrefix(name, TiktokenModelPrefix) {
		return len(name) > len(TiktokenModelPrefix)
	}
	for _, e := range BuiltinEncodings {
		if e == name {
			return true
		}
	}
	return false
}

// Tiktoken adapts a tiktoken encoding to Tokenizer.
type Tiktoken struct {
	name string
	enc  *tiktoken.Tiktoken
}

// LoadTiktoken returns the built-in encoding for name, either an encoding
// name or TiktokenModelPrefix followed by an OpenAI model name.
func LoadTiktoken(name string) (*Tiktoken, error) {
	useOfflineLoader()
	encoding := name
	if model, ok := strings.CutPrefix(name, TiktokenModelPrefix); ok {
		encoding, ok = encodingForModel(model)
		if !ok {
			return nil, fmt.Errorf("load tiktoken %q: %w", name, ErrUnknownModel)
		}
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken %q: %w", name, err)
	}
	return &Tiktoken{name: name, enc: enc}, nil
}

func encodingForModel(model string) (string, bool) {
	if enc, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return enc, true
	}
	for prefix, enc := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) {
			return enc, true
		}
	}
	return "", false
}

// Name returns the encoding or model name the tokenizer was loaded with.
func (t *Tiktoken) Name() string { return t.name }

// Encode implements Tokenizer. Special token text is encoded as ordinary text.
func (t *Tiktoken) Encode(text string) (Encoding, error) {
	ids := t.enc.Encode(text, nil, nil)
	enc := Encoding{Tokens: make([]string, len(ids)), IDs: make([]int, len(ids))}
	for i, id := range ids {
		enc.IDs[i] = id
		enc.Tokens[i] = escapeInvalidUTF8(t.enc.Decode([]int{id}))
	}
	return enc, nil
}

// escapeInvalidUTF8 writes bytes that do not form valid UTF-8 as <0xXX>, so
// tokens holding part of a multi-byte character survive JSON encoding.
func escapeInvalidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) * 6)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, "<0x%02X>", s[i])
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
