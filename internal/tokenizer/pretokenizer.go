package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"github.com/goccy/go-json"
)

// gpt2Pattern is the GPT-2 split regex, including the (?!\S) lookahead that
// keeps the last space of a run attached to the following word.
const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

var (
	gpt2Regexp       = regexp2.MustCompile(gpt2Pattern, regexp2.None)
	whitespaceRegexp = regexp2.MustCompile(`\w+|[^\w\s]+`, regexp2.None)
)

// PreTokenizer splits normalized text into the pieces the model encodes
// independently. first reports whether pieces start at the beginning of the input.
type PreTokenizer interface {
	PreTokenize(pieces []string, first bool) ([]string, error)
}

type preTokenizerSequence []PreTokenizer

func (seq preTokenizerSequence) PreTokenize(pieces []string, first bool) ([]string, error) {
	var err error
	for _, p := range seq {
		if pieces, err = p.PreTokenize(pieces, first); err != nil {
			return nil, err
		}
	}
	return pieces, nil
}

// splitBehavior mirrors SplitDelimiterBehavior.
type splitBehavior string

const (
	behaviorRemoved            splitBehavior = "Removed"
	behaviorIsolated           splitBehavior = "Isolated"
	behaviorMergedWithPrevious splitBehavior = "MergedWithPrevious"
	behaviorMergedWithNext     splitBehavior = "MergedWithNext"
	behaviorContiguous         splitBehavior = "Contiguous"
)

// applyBehavior folds match/gap segments into pieces according to b.
func applyBehavior(segs []segment, b splitBehavior) ([]string, error) {
	out := make([]string, 0, len(segs))
	switch b {
	case behaviorRemoved:
		for _, s := range segs {
			if !s.isMatch {
				out = append(out, s.text)
			}
		}
	case behaviorIsolated, "":
		for _, s := range segs {
			out = append(out, s.text)
		}
	case behaviorMergedWithPrevious:
		prevGap := false
		for _, s := range segs {
			if s.isMatch && prevGap && len(out) > 0 {
				out[len(out)-1] += s.text
			} else {
				out = append(out, s.text)
			}
			prevGap = !s.isMatch
		}
	case behaviorMergedWithNext:
		pending := ""
		for _, s := range segs {
			if s.isMatch {
				if pending != "" {
					out = append(out, pending)
				}
				pending = s.text
				continue
			}
			out = append(out, pending+s.text)
			pending = ""
		}
		if pending != "" {
			out = append(out, pending)
		}
	case behaviorContiguous:
		prevMatch := false
		for _, s := range segs {
			if s.isMatch && prevMatch && len(out) > 0 {
				out[len(out)-1] += s.text
			} else {
				out = append(out, s.text)
			}
			prevMatch = s.isMatch
		}
	default:
		return nil, fmt.Errorf("split behavior %q: %w", b, ErrUnsupported)
	}
	return out, nil
}

type splitPreTokenizer struct {
	re       *regexp2.Regexp
	behavior splitBehavior
	invert   bool
}

func (p splitPreTokenizer) PreTokenize(pieces []string, _ bool) ([]string, error) {
	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		segs, err := segmentsOf(p.re, piece)
		if err != nil {
			return nil, err
		}
		if p.invert {
			for i := range segs {
				segs[i].isMatch = !segs[i].isMatch
			}
		}
		parts, err := applyBehavior(segs, p.behavior)
		if err != nil {
			return nil, err
		}
		out = appendNonEmpty(out, parts...)
	}
	return out, nil
}

type byteLevelPreTokenizer struct {
	addPrefixSpace bool
	useRegex       bool
}

func (p byteLevelPreTokenizer) PreTokenize(pieces []string, _ bool) ([]string, error) {
	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if p.addPrefixSpace && !strings.HasPrefix(piece, " ") {
			piece = " " + piece
		}
		words := []string{piece}
		if p.useRegex {
			spans, err := findSpans(gpt2Regexp, piece)
			if err != nil {
				return nil, err
			}
			words = words[:0]
			for _, sp := range spans {
				words = append(words, piece[sp.start:sp.end])
			}
		}
		for _, w := range words {
			if w != "" {
				out = append(out, byteLevelEncode(w))
			}
		}
	}
	return out, nil
}

type regexPreTokenizer struct {
	re *regexp2.Regexp
}

// PreTokenize keeps only the matches, as the Whitespace pre-tokenizer does.
func (p regexPreTokenizer) PreTokenize(pieces []string, _ bool) ([]string, error) {
	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		spans, err := findSpans(p.re, piece)
		if err != nil {
			return nil, err
		}
		for _, sp := range spans {
			out = append(out, piece[sp.start:sp.end])
		}
	}
	return out, nil
}

type runeClassPreTokenizer struct {
	// split reports whether r is a delimiter. Whitespace delimiters are dropped.
	split    func(r rune) bool
	behavior splitBehavior
	// contiguous groups consecutive delimiters into one piece.
	contiguous bool
}

func (p runeClassPreTokenizer) PreTokenize(pieces []string, _ bool) ([]string, error) {
	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		var segs []segment
		for _, r := range piece {
			isMatch := p.split(r)
			n := len(segs)
			if n > 0 && segs[n-1].isMatch == isMatch && (!isMatch || p.contiguous) {
				segs[n-1].text += string(r)
				continue
			}
			segs = append(segs, segment{text: string(r), isMatch: isMatch})
		}
		parts, err := applyBehavior(segs, p.behavior)
		if err != nil {
			return nil, err
		}
		out = appendNonEmpty(out, parts...)
	}
	return out, nil
}

type whitespaceSplitPreTokenizer struct{}

func (whitespaceSplitPreTokenizer) PreTokenize(pieces []string, _ bool) ([]string, error) {
	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		out = append(out, strings.Fields(piece)...)
	}
	return out, nil
}

type bertPreTokenizer struct{}

func (bertPreTokenizer) PreTokenize(pieces []string, first bool) ([]string, error) {
	words, _ := whitespaceSplitPreTokenizer{}.PreTokenize(pieces, first)
	return runeClassPreTokenizer{split: isBertPunctuation, behavior: behaviorIsolated}.PreTokenize(words, first)
}

type metaspacePreTokenizer struct {
	replacement   string
	prependScheme string
	split         bool
}

func (p metaspacePreTokenizer) PreTokenize(pieces []string, first bool) ([]string, error) {
	out := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		piece = strings.ReplaceAll(piece, " ", p.replacement)
		prepend := p.prependScheme == "always" || (p.prependScheme == "first" && first && i == 0)
		if prepend && !strings.HasPrefix(piece, p.replacement) {
			piece = p.replacement + piece
		}
		if !p.split {
			out = appendNonEmpty(out, piece)
			continue
		}
		var segs []segment
		rest := piece
		for rest != "" {
			idx := strings.Index(rest, p.replacement)
			switch {
			case idx < 0:
				segs = append(segs, segment{text: rest})
				rest = ""
			case idx == 0:
				segs = append(segs, segment{text: p.replacement, isMatch: true})
				rest = rest[len(p.replacement):]
			default:
				segs = append(segs, segment{text: rest[:idx]})
				rest = rest[idx:]
			}
		}
		parts, _ := applyBehavior(segs, behaviorMergedWithNext)
		out = appendNonEmpty(out, parts...)
	}
	return out, nil
}

func appendNonEmpty(dst []string, parts ...string) []string {
	for _, p := range parts {
		if p != "" {
			dst = append(dst, p)
		}
	}
	return dst
}

func isBertPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

type hfPreTokenizer struct {
	Type          string            `json:"type"`
	Pretokenizers []json.RawMessage `json:"pretokenizers"`
	// ByteLevel
	AddPrefixSpace *bool `json:"add_prefix_space"`
	UseRegex       *bool `json:"use_regex"`
	// Split, Punctuation
	Pattern  json.RawMessage `json:"pattern"`
	Behavior splitBehavior   `json:"behavior"`
	Invert   bool            `json:"invert"`
	// Metaspace
	Replacement   string `json:"replacement"`
	PrependScheme string `json:"prepend_scheme"`
	Split         *bool  `json:"split"`
	// Digits
	IndividualDigits bool `json:"individual_digits"`
}

// parsePreTokenizer builds a PreTokenizer from the tokenizer.json
// "pre_tokenizer" object. A null or absent pre-tokenizer yields nil.
func parsePreTokenizer(raw json.RawMessage) (PreTokenizer, error) {
	if isNull(raw) {
		return nil, nil
	}
	var p hfPreTokenizer
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode pre_tokenizer: %w", err)
	}
	switch p.Type {
	case "Sequence":
		seq := make(preTokenizerSequence, 0, len(p.Pretokenizers))
		for _, child := range p.Pretokenizers {
			c, err := parsePreTokenizer(child)
			if err != nil {
				return nil, err
			}
			if c != nil {
				seq = append(seq, c)
			}
		}
		return seq, nil
	case "ByteLevel":
		return byteLevelPreTokenizer{
			addPrefixSpace: boolOr(p.AddPrefixSpace, true),
			useRegex:       boolOr(p.UseRegex, true),
		}, nil
	case "Split":
		re, err := parsePattern(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("split pre_tokenizer: %w", err)
		}
		return splitPreTokenizer{re: re, behavior: p.Behavior, invert: p.Invert}, nil
	case "Whitespace":
		return regexPreTokenizer{re: whitespaceRegexp}, nil
	case "WhitespaceSplit":
		return whitespaceSplitPreTokenizer{}, nil
	case "BertPreTokenizer":
		return bertPreTokenizer{}, nil
	case "Punctuation":
		b := p.Behavior
		if b == "" {
			b = behaviorIsolated
		}
		return runeClassPreTokenizer{split: isBertPunctuation, behavior: b}, nil
	case "Digits":
		return runeClassPreTokenizer{
			split:      unicode.IsDigit,
			behavior:   behaviorIsolated,
			contiguous: !p.IndividualDigits,
		}, nil
	case "Metaspace":
		replacement := p.Replacement
		if replacement == "" {
			replacement = "▁"
		}
		scheme := p.PrependScheme
		if scheme == "" {
			scheme = "always"
			if p.AddPrefixSpace != nil && !*p.AddPrefixSpace {
				scheme = "never"
			}
		}
		return metaspacePreTokenizer{
			replacement:   replacement,
			prependScheme: scheme,
			split:         boolOr(p.Split, true),
		}, nil
	default:
		return nil, fmt.Errorf("pre_tokenizer %q: %w", p.Type, ErrUnsupported)
	}
}
