package tokenizer

import "fmt"

type wordLevelModel struct {
	vocab map[string]int
	unk   *Token
}

func newWordLevel(m hfModel) (*wordLevelModel, error) {
	vocab, err := decodeVocab(m.Vocab)
	if err != nil {
		return nil, err
	}
	w := &wordLevelModel{vocab: vocab}
	if m.UnkToken != nil {
		id, ok := vocab[*m.UnkToken]
		if !ok {
			return nil, fmt.Errorf("wordlevel unk_token %q not in vocab", *m.UnkToken)
		}
		w.unk = &Token{ID: id, Value: *m.UnkToken}
	}
	return w, nil
}

func (w *wordLevelModel) TokenToID(token string) (int, bool) {
	id, ok := w.vocab[token]
	return id, ok
}

func (w *wordLevelModel) Tokenize(piece string) ([]Token, error) {
	if piece == "" {
		return nil, nil
	}
	if id, ok := w.vocab[piece]; ok {
		return []Token{{ID: id, Value: piece}}, nil
	}
	if w.unk == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, piece)
	}
	return []Token{*w.unk}, nil
}
