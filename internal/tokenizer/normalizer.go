package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"
)

// Normalizer rewrites a text segment before pre-tokenization.
type Normalizer interface {
	Normalize(s string) (string, error)
}

type normalizerFunc func(string) string

func (f normalizerFunc) Normalize(s string) (string, error) { return f(s), nil }

type normalizerSequence []Normalizer

func (seq normalizerSequence) Normalize(s string) (string, error) {
	var err error
	for _, n := range seq {
		if s, err = n.Normalize(s); err != nil {
			return "", err
		}
	}
	return s, nil
}

type replaceNormalizer struct {
	re      *regexp2.Regexp
	content string
}

func (r replaceNormalizer) Normalize(s string) (string, error) {
	out, err := r.re.Replace(s, r.content, -1, -1)
	if err != nil {
		return "", fmt.Errorf("replace normalizer: %w", err)
	}
	return out, nil
}

type bertNormalizer struct {
	cleanText          bool
	handleChineseChars bool
	stripAccents       bool
	lowercase          bool
}

func (b bertNormalizer) Normalize(s string) (string, error) {
	if b.cleanText {
		s = strings.Map(func(r rune) rune {
			switch {
			case r == 0 || r == unicode.ReplacementChar || isBertControl(r):
				return -1
			case isBertWhitespace(r):
				return ' '
			}
			return r
		}, s)
	}
	if b.handleChineseChars {
		var sb strings.Builder
		for _, r := range s {
			if isCJK(r) {
				sb.WriteByte(' ')
				sb.WriteRune(r)
				sb.WriteByte(' ')
				continue
			}
			sb.WriteRune(r)
		}
		s = sb.String()
	}
	if b.stripAccents {
		s = stripAccents(s)
	}
	if b.lowercase {
		s = strings.ToLower(s)
	}
	return s, nil
}

func stripAccents(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, norm.NFD.String(s))
}

func isBertWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isBertControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf, unicode.Co, unicode.Cs)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

type hfNormalizer struct {
	Type        string            `json:"type"`
	Normalizers []json.RawMessage `json:"normalizers"`
	// Strip
	StripLeft  *bool `json:"strip_left"`
	StripRight *bool `json:"strip_right"`
	// Replace
	Pattern json.RawMessage `json:"pattern"`
	Content string          `json:"content"`
	// Prepend
	Prepend string `json:"prepend"`
	// BertNormalizer
	CleanText          *bool `json:"clean_text"`
	HandleChineseChars *bool `json:"handle_chinese_chars"`
	StripAccents       *bool `json:"strip_accents"`
	Lowercase          *bool `json:"lowercase"`
}

// parseNormalizer builds a Normalizer from the tokenizer.json "normalizer"
// object. A null or absent normalizer yields nil.
func parseNormalizer(raw json.RawMessage) (Normalizer, error) {
	if isNull(raw) {
		return nil, nil
	}
	var n hfNormalizer
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode normalizer: %w", err)
	}
	switch n.Type {
	case "Sequence":
		seq := make(normalizerSequence, 0, len(n.Normalizers))
		for _, child := range n.Normalizers {
			c, err := parseNormalizer(child)
			if err != nil {
				return nil, err
			}
			if c != nil {
				seq = append(seq, c)
			}
		}
		return seq, nil
	case "NFC":
		return normalizerFunc(norm.NFC.String), nil
	case "NFD":
		return normalizerFunc(norm.NFD.String), nil
	case "NFKC", "Precompiled":
		// Precompiled carries a SentencePiece charsmap that is NFKC-derived.
		return normalizerFunc(norm.NFKC.String), nil
	case "NFKD":
		return normalizerFunc(norm.NFKD.String), nil
	case "Lowercase":
		return normalizerFunc(strings.ToLower), nil
	case "StripAccents":
		return normalizerFunc(stripAccents), nil
	case "Strip":
		left, right := boolOr(n.StripLeft, true), boolOr(n.StripRight, true)
		return normalizerFunc(func(s string) string {
			if left {
				s = strings.TrimLeftFunc(s, unicode.IsSpace)
			}
			if right {
				s = strings.TrimRightFunc(s, unicode.IsSpace)
			}
			return s
		}), nil
	case "Replace":
		re, err := parsePattern(n.Pattern)
		if err != nil {
			return nil, fmt.Errorf("replace normalizer: %w", err)
		}
		// The replacement is literal; regexp2 would expand "$1" style groups.
		return replaceNormalizer{re: re, content: strings.ReplaceAll(n.Content, "$", "$$")}, nil
	case "Prepend":
		prefix := n.Prepend
		return normalizerFunc(func(s string) string {
			if s == "" {
				return s
			}
			return prefix + s
		}), nil
	case "BertNormalizer":
		lower := boolOr(n.Lowercase, true)
		return bertNormalizer{
			cleanText:          boolOr(n.CleanText, true),
			handleChineseChars: boolOr(n.HandleChineseChars, true),
			stripAccents:       boolOr(n.StripAccents, lower),
			lowercase:          lower,
		}, nil
	default:
		return nil, fmt.Errorf("normalizer %q: %w", n.Type, ErrUnsupported)
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
