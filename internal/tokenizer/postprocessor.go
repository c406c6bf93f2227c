package tokenizer

import (
	"fmt"

	"github.com/goccy/go-json"
)

// PostProcessor wraps a single-sequence encoding with special tokens.
type PostProcessor interface {
	Process(enc Encoding) Encoding
}

type postProcessorSequence []PostProcessor

func (seq postProcessorSequence) Process(enc Encoding) Encoding {
	for _, p := range seq {
		enc = p.Process(enc)
	}
	return enc
}

type noopPostProcessor struct{}

func (noopPostProcessor) Process(enc Encoding) Encoding { return enc }

// templatePostProcessor lays out special tokens around the "A" sequence.
// A nil entry in items stands for the sequence itself.
type templatePostProcessor struct {
	items [][]Token
}

func (p templatePostProcessor) Process(enc Encoding) Encoding {
	out := Encoding{
		Tokens: make([]string, 0, enc.Len()+len(p.items)),
		IDs:    make([]int, 0, enc.Len()+len(p.items)),
	}
	for _, item := range p.items {
		if item == nil {
			out.Tokens = append(out.Tokens, enc.Tokens...)
			out.IDs = append(out.IDs, enc.IDs...)
			continue
		}
		for _, tok := range item {
			out.append(tok)
		}
	}
	return out
}

// bosEOSPostProcessor applies tokenizer_config.json add_bos_token/add_eos_token.
type bosEOSPostProcessor struct {
	bos, eos *Token
}

func (p bosEOSPostProcessor) Process(enc Encoding) Encoding {
	items := [][]Token{nil}
	if p.bos != nil {
		items = append([][]Token{{*p.bos}}, items...)
	}
	if p.eos != nil {
		items = append(items, []Token{*p.eos})
	}
	return templatePostProcessor{items: items}.Process(enc)
}

type hfSpecialToken struct {
	ID     string   `json:"id"`
	IDs    []int    `json:"ids"`
	Tokens []string `json:"tokens"`
}

type hfTemplatePiece struct {
	SpecialToken *struct {
		ID string `json:"id"`
	} `json:"SpecialToken"`
	Sequence *struct {
		ID string `json:"id"`
	} `json:"Sequence"`
}

type hfPostProcessor struct {
	Type          string                    `json:"type"`
	Processors    []json.RawMessage         `json:"processors"`
	Single        []hfTemplatePiece         `json:"single"`
	SpecialTokens map[string]hfSpecialToken `json:"special_tokens"`
	// BertProcessing, RobertaProcessing: [token, id]
	Sep []any `json:"sep"`
	Cls []any `json:"cls"`
}

func parsePostProcessor(raw json.RawMessage) (PostProcessor, error) {
	if isNull(raw) {
		return nil, nil
	}
	var p hfPostProcessor
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode post_processor: %w", err)
	}
	switch p.Type {
	case "Sequence":
		seq := make(postProcessorSequence, 0, len(p.Processors))
		for _, child := range p.Processors {
			c, err := parsePostProcessor(child)
			if err != nil {
				return nil, err
			}
			if c != nil {
				seq = append(seq, c)
			}
		}
		return seq, nil
	case "ByteLevel":
		return noopPostProcessor{}, nil
	case "TemplateProcessing":
		return newTemplatePostProcessor(p)
	case "BertProcessing", "RobertaProcessing":
		cls, err := specialPair(p.Cls, "cls")
		if err != nil {
			return nil, err
		}
		sep, err := specialPair(p.Sep, "sep")
		if err != nil {
			return nil, err
		}
		return templatePostProcessor{items: [][]Token{{cls}, nil, {sep}}}, nil
	default:
		return nil, fmt.Errorf("post_processor %q: %w", p.Type, ErrUnsupported)
	}
}

func newTemplatePostProcessor(p hfPostProcessor) (PostProcessor, error) {
	items := make([][]Token, 0, len(p.Single))
	for _, piece := range p.Single {
		switch {
		case piece.Sequence != nil:
			items = append(items, nil)
		case piece.SpecialToken != nil:
			st, ok := p.SpecialTokens[piece.SpecialToken.ID]
			if !ok {
				return nil, fmt.Errorf("template references undefined special token %q", piece.SpecialToken.ID)
			}
			if len(st.IDs) != len(st.Tokens) {
				return nil, fmt.Errorf("special token %q: %d ids for %d tokens", piece.SpecialToken.ID, len(st.IDs), len(st.Tokens))
			}
			toks := make([]Token, len(st.IDs))
			for i := range st.IDs {
				toks[i] = Token{ID: st.IDs[i], Value: st.Tokens[i]}
			}
			items = append(items, toks)
		default:
			return nil, fmt.Errorf("template piece is neither SpecialToken nor Sequence")
		}
	}
	return templatePostProcessor{items: items}, nil
}

func specialPair(v []any, name string) (Token, error) {
	if len(v) == 2 {
		tok, ok := v[0].(string)
		id, idok := v[1].(float64)
		if ok && idok {
			return Token{ID: int(id), Value: tok}, nil
		}
	}
	return Token{}, fmt.Errorf("post_processor %s must be [token, id]", name)
}
