package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/goccy/go-json"
)

// hfPattern is the {"String": "..."} or {"Regex": "..."} object used by Split
// and Replace. Regexes are Oniguruma flavoured and routinely use lookahead,
// which regexp2 supports and the standard library does not.
type hfPattern struct {
	String *string `json:"String"`
	Regex  *string `json:"Regex"`
}

func (p hfPattern) compile() (*regexp2.Regexp, error) {
	switch {
	case p.Regex != nil:
		re, err := regexp2.Compile(*p.Regex, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", *p.Regex, err)
		}
		return re, nil
	case p.String != nil:
		return regexp2.MustCompile(regexp2.Escape(*p.String), regexp2.None), nil
	default:
		return nil, fmt.Errorf("pattern has neither String nor Regex")
	}
}

func parsePattern(raw json.RawMessage) (*regexp2.Regexp, error) {
	var p hfPattern
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode pattern: %w", err)
	}
	return p.compile()
}

type span struct {
	start, end int
}

// findSpans returns the byte ranges of every non-empty match of re in s.
func findSpans(re *regexp2.Regexp, s string) ([]span, error) {
	if s == "" {
		return nil, nil
	}
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("pattern input is not valid UTF-8")
	}
	// regexp2 reports rune positions; offsets maps them back to bytes.
	runes := []rune(s)
	offsets := make([]int, 0, len(runes)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))

	var out []span
	m, err := re.FindRunesMatch(runes)
	for m != nil && err == nil {
		if m.Length > 0 {
			out = append(out, span{start: offsets[m.Index], end: offsets[m.Index+m.Length]})
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("match pattern: %w", err)
	}
	return out, nil
}

type segment struct {
	text    string
	isMatch bool
}

// segmentsOf partitions s into alternating match and gap segments.
func segmentsOf(re *regexp2.Regexp, s string) ([]segment, error) {
	spans, err := findSpans(re, s)
	if err != nil {
		return nil, err
	}
	out := make([]segment, 0, 2*len(spans)+1)
	prev := 0
	for _, sp := range spans {
		if sp.start > prev {
			out = append(out, segment{text: s[prev:sp.start]})
		}
		out = append(out, segment{text: s[sp.start:sp.end], isMatch: true})
		prev = sp.end
	}
	if prev < len(s) {
		out = append(out, segment{text: s[prev:]})
	}
	return out, nil
}
