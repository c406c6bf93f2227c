package tokenizer

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// HFOptions controls optional stages of the Hugging Face pipeline.
type HFOptions struct {
	// AddSpecialTokens applies the post-processor (or tokenizer_config.json
	// BOS/EOS flags when there is none).
	AddSpecialTokens bool
}

// HFTokenizer runs a tokenizer.json pipeline: added tokens, normalizer,
// pre-tokenizer, model and optional post-processor.
type HFTokenizer struct {
	added        *addedVocab
	normalizer   Normalizer
	preTokenizer PreTokenizer
	model        Model
	post         PostProcessor
}

type hfTokenizerJSON struct {
	AddedTokens   []hfAddedToken  `json:"added_tokens"`
	Normalizer    json.RawMessage `json:"normalizer"`
	PreTokenizer  json.RawMessage `json:"pre_tokenizer"`
	Model         json.RawMessage `json:"model"`
	PostProcessor json.RawMessage `json:"post_processor"`
}

type hfTokenizerConfig struct {
	AddBOS *bool           `json:"add_bos_token"`
	AddEOS *bool           `json:"add_eos_token"`
	BOS    json.RawMessage `json:"bos_token"`
	EOS    json.RawMessage `json:"eos_token"`
}

// LoadHF reads tokenizer.json and, when cfgPath is non-empty and exists,
// tokenizer_config.json.
func LoadHF(path, cfgPath string, opts HFOptions) (*HFTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg []byte
	if cfgPath != "" {
		if raw, err := os.ReadFile(cfgPath); err == nil {
			cfg = raw
		}
	}
	return LoadHFBytes(data, cfg, opts)
}

// LoadHFBytes builds a tokenizer from tokenizer.json contents. tokConfig may be nil.
func LoadHFBytes(tokJSON, tokConfig []byte, opts HFOptions) (*HFTokenizer, error) {
	var tj hfTokenizerJSON
	if err := json.Unmarshal(tokJSON, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	t := &HFTokenizer{added: newAddedVocab(tj.AddedTokens)}
	var err error
	if t.model, err = parseModel(tj.Model); err != nil {
		return nil, err
	}
	if t.normalizer, err = parseNormalizer(tj.Normalizer); err != nil {
		return nil, err
	}
	if t.preTokenizer, err = parsePreTokenizer(tj.PreTokenizer); err != nil {
		return nil, err
	}
	if !opts.AddSpecialTokens {
		return t, nil
	}
	if t.post, err = parsePostProcessor(tj.PostProcessor); err != nil {
		return nil, err
	}
	if t.post == nil && len(tokConfig) > 0 {
		t.post, err = t.configPostProcessor(tokConfig)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *HFTokenizer) configPostProcessor(raw []byte) (PostProcessor, error) {
	var cfg hfTokenizerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse tokenizer_config.json: %w", err)
	}
	var p bosEOSPostProcessor
	if boolOr(cfg.AddBOS, false) {
		p.bos = t.lookup(tokenContent(cfg.BOS))
	}
	if boolOr(cfg.AddEOS, false) {
		p.eos = t.lookup(tokenContent(cfg.EOS))
	}
	if p.bos == nil && p.eos == nil {
		return nil, nil
	}
	return p, nil
}

func (t *HFTokenizer) lookup(content string) *Token {
	if content == "" {
		return nil
	}
	if id, ok := t.added.byText[content]; ok {
		return &Token{ID: id, Value: content}
	}
	if id, ok := t.model.TokenToID(content); ok {
		return &Token{ID: id, Value: content}
	}
	return nil
}

// tokenContent accepts "<s>" or {"content": "<s>", ...}.
func tokenContent(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Content
	}
	return ""
}

// Encode implements Tokenizer.
func (t *HFTokenizer) Encode(text string) (Encoding, error) {
	enc := emptyEncoding()
	for i, part := range t.added.split(text) {
		if part.token != nil {
			enc.append(*part.token)
			continue
		}
		if err := t.encodePlain(&enc, part.text, i == 0); err != nil {
			return Encoding{}, err
		}
	}
	if t.post != nil {
		enc = t.post.Process(enc)
	}
	return enc, nil
}

func (t *HFTokenizer) encodePlain(enc *Encoding, text string, first bool) error {
	var err error
	if t.normalizer != nil {
		if text, err = t.normalizer.Normalize(text); err != nil {
			return err
		}
	}
	if text == "" {
		return nil
	}
	pieces := []string{text}
	if t.preTokenizer != nil {
		if pieces, err = t.preTokenizer.PreTokenize(pieces, first); err != nil {
			return err
		}
	}
	for _, piece := range pieces {
		toks, err := t.model.Tokenize(piece)
		if err != nil {
			return err
		}
		for _, tok := range toks {
			enc.append(tok)
		}
	}
	return nil
}
