package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const bpeCacheSize = 10000

// Pair is an adjacent symbol pair considered for merging.
type Pair struct {
	A string
	B string
}

type bpeMerge struct {
	rank  int
	token string
}

type bpeModel struct {
	vocab        map[string]int
	merges       map[Pair]bpeMerge
	unk          *Token
	prefix       string
	suffix       string
	fuseUnk      bool
	byteFallback bool
	ignoreMerges bool
	cache        *lru.Cache[string, []Token]
}

func newBPE(m hfModel) (*bpeModel, error) {
	vocab, err := decodeVocab(m.Vocab)
	if err != nil {
		return nil, err
	}
	b := &bpeModel{
		vocab:        vocab,
		merges:       make(map[Pair]bpeMerge, len(m.Merges)),
		fuseUnk:      m.FuseUnk,
		byteFallback: m.ByteFallback,
		ignoreMerges: m.IgnoreMerges,
	}
	if m.ContinuingSubwordPrefix != nil {
		b.prefix = *m.ContinuingSubwordPrefix
	}
	if m.EndOfWordSuffix != nil {
		b.suffix = *m.EndOfWordSuffix
	}
	if m.UnkToken != nil {
		id, ok := vocab[*m.UnkToken]
		if !ok {
			return nil, fmt.Errorf("bpe unk_token %q not in vocab", *m.UnkToken)
		}
		b.unk = &Token{ID: id, Value: *m.UnkToken}
	}

	rank := 0
	for i, raw := range m.Merges {
		p, err := parseMerge(raw)
		if err != nil {
			return nil, fmt.Errorf("merge %d: %w", i, err)
		}
		merged := p.A + strings.TrimPrefix(p.B, b.prefix)
		if _, ok := vocab[merged]; !ok {
			continue
		}
		if _, ok := b.merges[p]; !ok {
			b.merges[p] = bpeMerge{rank: rank, token: merged}
			rank++
		}
	}

	b.cache, err = lru.New[string, []Token](bpeCacheSize)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// parseMerge accepts both the "a b" string form and the ["a", "b"] array form.
func parseMerge(raw any) (Pair, error) {
	switch v := raw.(type) {
	case string:
		a, b, ok := strings.Cut(v, " ")
		if !ok {
			return Pair{}, fmt.Errorf("malformed merge %q", v)
		}
		return Pair{A: a, B: b}, nil
	case []any:
		if len(v) == 2 {
			a, aok := v[0].(string)
			b, bok := v[1].(string)
			if aok && bok {
				return Pair{A: a, B: b}, nil
			}
		}
	}
	return Pair{}, fmt.Errorf("malformed merge %v", raw)
}

func (b *bpeModel) TokenToID(token string) (int, bool) {
	id, ok := b.vocab[token]
	return id, ok
}

func (b *bpeModel) Tokenize(piece string) ([]Token, error) {
	if piece == "" {
		return nil, nil
	}
	if v, ok := b.cache.Get(piece); ok {
		return v, nil
	}
	if b.ignoreMerges {
		if id, ok := b.vocab[piece]; ok {
			out := []Token{{ID: id, Value: piece}}
			b.cache.Add(piece, out)
			return out, nil
		}
	}
	word, err := b.initialSymbols(piece)
	if err != nil {
		return nil, err
	}
	word = b.merge(word)
	b.cache.Add(piece, word)
	return word, nil
}

// initialSymbols splits piece into characters, decorated with the subword
// prefix and word suffix, and resolves each against the vocabulary.
func (b *bpeModel) initialSymbols(piece string) ([]Token, error) {
	word := make([]Token, 0, utf8.RuneCountInString(piece))
	lastUnk := false
	for i, r := range piece {
		s := string(r)
		if i > 0 && b.prefix != "" {
			s = b.prefix + s
		}
		if i+utf8.RuneLen(r) == len(piece) && b.suffix != "" {
			s += b.suffix
		}
		if id, ok := b.vocab[s]; ok {
			word = append(word, Token{ID: id, Value: s})
			lastUnk = false
			continue
		}
		if b.byteFallback {
			if toks, ok := byteFallbackTokens(b.vocab, string(r)); ok {
				word = append(word, toks...)
				lastUnk = false
				continue
			}
		}
		if b.unk == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, s)
		}
		if b.fuseUnk && lastUnk {
			continue
		}
		word = append(word, *b.unk)
		lastUnk = true
	}
	return word, nil
}

// merge applies the lowest-ranked merge until none apply.
func (b *bpeModel) merge(word []Token) []Token {
	for len(word) > 1 {
		best := bpeMerge{rank: -1}
		var bestPair Pair
		for i := 0; i+1 < len(word); i++ {
			p := Pair{A: word[i].Value, B: word[i+1].Value}
			if m, ok := b.merges[p]; ok && (best.rank < 0 || m.rank < best.rank) {
				best, bestPair = m, p
			}
		}
		if best.rank < 0 {
			break
		}
		word = mergePair(word, bestPair, Token{ID: b.vocab[best.token], Value: best.token})
	}
	return word
}

func mergePair(word []Token, pair Pair, merged Token) []Token {
	out := word[:0:0]
	for i := 0; i < len(word); i++ {
		if i < len(word)-1 && word[i].Value == pair.A && word[i+1].Value == pair.B {
			out = append(out, merged)
			i++
			continue
		}
		out = append(out, word[i])
	}
	return out
}
