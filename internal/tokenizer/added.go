package tokenizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type hfAddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Special    bool   `json:"special"`
}

// addedVocab splits raw text around added tokens before normalization.
type addedVocab struct {
	// tokens is ordered longest content first so the first hit is the longest match.
	tokens []hfAddedToken
	byText map[string]int
}

func newAddedVocab(tokens []hfAddedToken) *addedVocab {
	v := &addedVocab{byText: make(map[string]int, len(tokens))}
	for _, t := range tokens {
		if t.Content == "" {
			continue
		}
		v.tokens = append(v.tokens, t)
		v.byText[t.Content] = t.ID
	}
	sort.SliceStable(v.tokens, func(i, j int) bool {
		return len(v.tokens[i].Content) > len(v.tokens[j].Content)
	})
	return v
}

// textPart is either plain text for the pipeline or a resolved added token.
type textPart struct {
	text  string
	token *Token
}

func (v *addedVocab) split(text string) []textPart {
	if len(v.tokens) == 0 || text == "" {
		return []textPart{{text: text}}
	}
	var parts []textPart
	plainStart := 0
	for i := 0; i < len(text); {
		at, ok := v.matchAt(text, i)
		if !ok {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}
		end := i + len(at.Content)
		plainEnd := i
		if at.LStrip {
			plainEnd = plainStart + len(strings.TrimRightFunc(text[plainStart:i], unicode.IsSpace))
		}
		if plainEnd > plainStart {
			parts = append(parts, textPart{text: text[plainStart:plainEnd]})
		}
		parts = append(parts, textPart{token: &Token{ID: at.ID, Value: at.Content}})
		if at.RStrip {
			end = len(text) - len(strings.TrimLeftFunc(text[end:], unicode.IsSpace))
		}
		i, plainStart = end, end
	}
	if plainStart < len(text) {
		parts = append(parts, textPart{text: text[plainStart:]})
	}
	return parts
}

func (v *addedVocab) matchAt(text string, i int) (hfAddedToken, bool) {
	for _, t := range v.tokens {
		if !strings.HasPrefix(text[i:], t.Content) {
			continue
		}
		if t.SingleWord && !isWordBoundary(text, i, i+len(t.Content)) {
			continue
		}
		return t, true
	}
	return hfAddedToken{}, false
}

func isWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
