package tokenizer

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// unkPenalty is subtracted from the lowest piece score to price unknown characters.
const unkPenalty = 10.0

type unigramModel struct {
	vocab        map[string]int
	scores       []float64
	pieces       []string
	unkID        int
	minScore     float64
	maxPieceLen  int
	byteFallback bool
}

func newUnigram(m hfModel) (*unigramModel, error) {
	var entries [][]any
	if err := json.Unmarshal(m.Vocab, &entries); err != nil {
		return nil, fmt.Errorf("decode unigram vocab: %w", err)
	}
	u := &unigramModel{
		vocab:        make(map[string]int, len(entries)),
		scores:       make([]float64, len(entries)),
		pieces:       make([]string, len(entries)),
		minScore:     math.Inf(1),
		byteFallback: m.ByteFallback,
	}
	for i, e := range entries {
		if len(e) != 2 {
			return nil, fmt.Errorf("unigram vocab entry %d: want [piece, score]", i)
		}
		piece, ok := e[0].(string)
		score, sok := e[1].(float64)
		if !ok || !sok {
			return nil, fmt.Errorf("unigram vocab entry %d: want [piece, score]", i)
		}
		u.vocab[piece] = i
		u.pieces[i] = piece
		u.scores[i] = score
		u.minScore = min(u.minScore, score)
		u.maxPieceLen = max(u.maxPieceLen, len(piece))
	}
	if m.UnkID == nil || *m.UnkID < 0 || *m.UnkID >= len(entries) {
		return nil, fmt.Errorf("unigram model needs a valid unk_id")
	}
	u.unkID = *m.UnkID
	return u, nil
}

func (u *unigramModel) TokenToID(token string) (int, bool) {
	id, ok := u.vocab[token]
	return id, ok
}

type lattice struct {
	score float64
	start int
	id    int
}

// Tokenize finds the highest scoring segmentation with a Viterbi pass over
// byte offsets. Runs of unknown characters collapse into one unknown token.
func (u *unigramModel) Tokenize(piece string) ([]Token, error) {
	if piece == "" {
		return nil, nil
	}
	n := len(piece)
	best := make([]lattice, n+1)
	for i := 1; i <= n; i++ {
		best[i].score = math.Inf(-1)
	}
	unkScore := u.minScore - unkPenalty
	for start := 0; start < n; {
		if math.IsInf(best[start].score, -1) {
			_, size := utf8.DecodeRuneInString(piece[start:])
			start += size
			continue
		}
		_, size := utf8.DecodeRuneInString(piece[start:])
		matched := false
		for end := start + size; end <= n && end-start <= u.maxPieceLen; {
			if id, ok := u.vocab[piece[start:end]]; ok {
				matched = matched || end == start+size
				if s := best[start].score + u.scores[id]; s > best[end].score {
					best[end] = lattice{score: s, start: start, id: id}
				}
			}
			if end == n {
				break
			}
			_, next := utf8.DecodeRuneInString(piece[end:])
			end += next
		}
		if !matched {
			if s := best[start].score + unkScore; s > best[start+size].score {
				best[start+size] = lattice{score: s, start: start, id: u.unkID}
			}
		}
		start += size
	}

	type step struct{ start, end, id int }
	var rev []step
	for end := n; end > 0; end = best[end].start {
		rev = append(rev, step{start: best[end].start, end: end, id: best[end].id})
	}
	out := make([]Token, 0, len(rev))
	lastUnk := false
	for i := len(rev) - 1; i >= 0; i-- {
		node := rev[i]
		text := piece[node.start:node.end]
		if node.id != u.unkID {
			out = append(out, Token{ID: node.id, Value: u.pieces[node.id]})
			lastUnk = false
			continue
		}
		if u.byteFallback {
			if toks, ok := byteFallbackTokens(u.vocab, text); ok {
				out = append(out, toks...)
				lastUnk = false
				continue
			}
		}
		if lastUnk {
			continue
		}
		out = append(out, Token{ID: u.unkID, Value: u.pieces[u.unkID]})
		lastUnk = true
	}
	return out, nil
}
