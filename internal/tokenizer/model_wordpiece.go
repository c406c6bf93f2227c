package tokenizer

import (
	"fmt"
	"unicode/utf8"
)

type wordPieceModel struct {
	vocab    map[string]int
	unk      Token
	prefix   string
	maxChars int
}

func newWordPiece(m hfModel) (*wordPieceModel, error) {
	vocab, err := decodeVocab(m.Vocab)
	if err != nil {
		return nil, err
	}
	unk := "[UNK]"
	if m.UnkToken != nil {
		unk = *m.UnkToken
	}
	unkID, ok := vocab[unk]
	if !ok {
		return nil, fmt.Errorf("wordpiece unk_token %q not in vocab", unk)
	}
	w := &wordPieceModel{
		vocab:    vocab,
		unk:      Token{ID: unkID, Value: unk},
		prefix:   "##",
		maxChars: 100,
	}
	if m.ContinuingSubwordPrefix != nil {
		w.prefix = *m.ContinuingSubwordPrefix
	}
	if m.MaxInputCharsPerWord > 0 {
		w.maxChars = m.MaxInputCharsPerWord
	}
	return w, nil
}

func (w *wordPieceModel) TokenToID(token string) (int, bool) {
	id, ok := w.vocab[token]
	return id, ok
}

// Tokenize is greedy longest-match-first. A word with any unmatched
// remainder becomes a single unknown token.
func (w *wordPieceModel) Tokenize(piece string) ([]Token, error) {
	if piece == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(piece) > w.maxChars {
		return []Token{w.unk}, nil
	}
	var out []Token
	start := 0
	for start < len(piece) {
		end := len(piece)
		var cur *Token
		for end > start {
			sub := piece[start:end]
			if start > 0 {
				sub = w.prefix + sub
			}
			if id, ok := w.vocab[sub]; ok {
				cur = &Token{ID: id, Value: sub}
				break
			}
			_, size := utf8.DecodeLastRuneInString(piece[start:end])
			end -= size
		}
		if cur == nil {
			return []Token{w.unk}, nil
		}
		out = append(out, *cur)
		start = end
	}
	return out, nil
}
