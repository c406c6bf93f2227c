package tokenizer

import (
	"errors"
	"reflect"
	"testing"
)

const byteLevelBPEJSON = `{
	"added_tokens":[
		{"id":20,"content":"<|end|>","special":true},
		{"id":21,"content":"<s>","special":true,"lstrip":true}
	],
	"normalizer":null,
	"pre_tokenizer":{"type":"ByteLevel","add_prefix_space":false,"use_regex":true},
	"model":{
		"type":"BPE",
		"vocab":{"h":0,"e":1,"l":2,"o":3,"Ġ":4,"w":5,"r":6,"d":7,"he":8,"ll":9,"llo":10,"hello":11,"Ġw":12,"or":13,"Ġwor":14,"Ġworld":15,"ld":16},
		"merges":["h e","l l","ll o","he llo","Ġ w","o r",["Ġw","or"],"l d","Ġwor ld"]
	},
	"post_processor":{
		"type":"TemplateProcessing",
		"single":[{"SpecialToken":{"id":"<s>","type_id":0}},{"Sequence":{"id":"A","type_id":0}}],
		"special_tokens":{"<s>":{"id":"<s>","ids":[21],"tokens":["<s>"]}}
	}
}`

func mustLoad(t *testing.T, tokJSON, tokConfig string, opts HFOptions) *HFTokenizer {
	t.Helper()
	var cfg []byte
	if tokConfig != "" {
		cfg = []byte(tokConfig)
	}
	tok, err := LoadHFBytes([]byte(tokJSON), cfg, opts)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	return tok
}

func assertEncoding(t *testing.T, got Encoding, wantTokens []string, wantIDs []int) {
	t.Helper()
	if !reflect.DeepEqual(got.Tokens, wantTokens) {
		t.Fatalf("tokens: got %q want %q", got.Tokens, wantTokens)
	}
	if !reflect.DeepEqual(got.IDs, wantIDs) {
		t.Fatalf("ids: got %v want %v", got.IDs, wantIDs)
	}
}

func TestHFByteLevelBPE(t *testing.T) {
	t.Parallel()

	tok := mustLoad(t, byteLevelBPEJSON, "", HFOptions{})
	enc, err := tok.Encode("hello world")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"hello", "Ġworld"}, []int{11, 15})

	// Cached words must come back unchanged.
	enc, err = tok.Encode("hello hello")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc.Len() != 3 || enc.IDs[0] != 11 {
		t.Fatalf("unexpected repeat encoding: %+v", enc)
	}
}

func TestHFAddedTokensSplitFirst(t *testing.T) {
	t.Parallel()

	tok := mustLoad(t, byteLevelBPEJSON, "", HFOptions{})
	enc, err := tok.Encode("hello<|end|>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"hello", "<|end|>"}, []int{11, 20})

	enc, err = tok.Encode("hello <s>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"hello", "<s>"}, []int{11, 21})
}

func TestHFPostProcessorOnlyWithSpecialTokens(t *testing.T) {
	t.Parallel()

	plain := mustLoad(t, byteLevelBPEJSON, "", HFOptions{})
	enc, err := plain.Encode("")
	if err != nil {
		t.Fatalf("encode empty: %v", err)
	}
	if enc.Tokens == nil || enc.IDs == nil || enc.Len() != 0 {
		t.Fatalf("expected empty non-nil encoding, got %+v", enc)
	}

	special := mustLoad(t, byteLevelBPEJSON, "", HFOptions{AddSpecialTokens: true})
	enc, err = special.Encode("hello")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"<s>", "hello"}, []int{21, 11})

	enc, err = special.Encode("")
	if err != nil {
		t.Fatalf("encode empty: %v", err)
	}
	assertEncoding(t, enc, []string{"<s>"}, []int{21})
}

func TestHFTokenizerConfigBOSEOS(t *testing.T) {
	t.Parallel()

	tokJSON := `{
		"added_tokens":[{"id":1,"content":"<s>","special":true},{"id":2,"content":"</s>","special":true}],
		"model":{"type":"WordLevel","vocab":{"<unk>":0,"hi":3},"unk_token":"<unk>"},
		"pre_tokenizer":{"type":"WhitespaceSplit"}
	}`
	tokConfig := `{
		"add_bos_token":true,
		"add_eos_token":true,
		"bos_token":{"content":"<s>","lstrip":false},
		"eos_token":"</s>"
	}`

	tok := mustLoad(t, tokJSON, tokConfig, HFOptions{AddSpecialTokens: true})
	enc, err := tok.Encode("hi there")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"<s>", "hi", "<unk>", "</s>"}, []int{1, 3, 0, 2})

	tok = mustLoad(t, tokJSON, tokConfig, HFOptions{})
	enc, err = tok.Encode("hi")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"hi"}, []int{3})
}

func TestHFBertWordPiece(t *testing.T) {
	t.Parallel()

	tokJSON := `{
		"normalizer":{"type":"BertNormalizer","clean_text":true,"handle_chinese_chars":true,"strip_accents":null,"lowercase":true},
		"pre_tokenizer":{"type":"BertPreTokenizer"},
		"model":{
			"type":"WordPiece",
			"unk_token":"[UNK]",
			"continuing_subword_prefix":"##",
			"max_input_chars_per_word":100,
			"vocab":{"[UNK]":0,"[CLS]":1,"[SEP]":2,"hello":3,"world":4,"un":5,"##aff":6,"##able":7,"!":8,"cafe":9}
		},
		"post_processor":{"type":"BertProcessing","sep":["[SEP]",2],"cls":["[CLS]",1]}
	}`

	tok := mustLoad(t, tokJSON, "", HFOptions{})
	enc, err := tok.Encode("Hello, unaffable World!")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc,
		[]string{"hello", "[UNK]", "un", "##aff", "##able", "world", "!"},
		[]int{3, 0, 5, 6, 7, 4, 8})

	enc, err = tok.Encode("Café")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"cafe"}, []int{9})

	tok = mustLoad(t, tokJSON, "", HFOptions{AddSpecialTokens: true})
	enc, err = tok.Encode("hello")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"[CLS]", "hello", "[SEP]"}, []int{1, 3, 2})
}

func TestHFMetaspaceUnigram(t *testing.T) {
	t.Parallel()

	tokJSON := `{
		"pre_tokenizer":{"type":"Metaspace","replacement":"▁","prepend_scheme":"always","split":true},
		"model":{
			"type":"Unigram",
			"unk_id":0,
			"vocab":[["<unk>",0],["▁hello",-1],["▁world",-1],["▁",-2],["h",-3],["e",-3],["l",-3],["o",-3]]
		}
	}`

	tok := mustLoad(t, tokJSON, "", HFOptions{})
	enc, err := tok.Encode("hello world")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"▁hello", "▁world"}, []int{1, 2})

	enc, err = tok.Encode("xyz")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"▁", "<unk>"}, []int{3, 0})
}

func TestBPEByteFallbackAndUnknowns(t *testing.T) {
	t.Parallel()

	fallback := mustLoad(t, `{"model":{"type":"BPE","byte_fallback":true,"vocab":{"<unk>":0,"<0xC3>":1,"<0xA9>":2,"a":3},"merges":[],"unk_token":"<unk>"}}`, "", HFOptions{})
	enc, err := fallback.Encode("aé")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"a", "<0xC3>", "<0xA9>"}, []int{3, 1, 2})

	fused := mustLoad(t, `{"model":{"type":"BPE","fuse_unk":true,"vocab":{"<unk>":0,"a":1},"merges":[],"unk_token":"<unk>"}}`, "", HFOptions{})
	enc, err = fused.Encode("axyza")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"a", "<unk>", "a"}, []int{1, 0, 1})

	strict := mustLoad(t, `{"model":{"type":"BPE","vocab":{"a":1},"merges":[]}}`, "", HFOptions{})
	if _, err := strict.Encode("ab"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestBPESubwordPrefixAndIgnoreMerges(t *testing.T) {
	t.Parallel()

	prefixed := mustLoad(t, `{"model":{"type":"BPE","continuing_subword_prefix":"##","vocab":{"a":0,"##b":1,"ab":2},"merges":["a ##b"]}}`, "", HFOptions{})
	enc, err := prefixed.Encode("ab")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"ab"}, []int{2})

	suffixed := mustLoad(t, `{"model":{"type":"BPE","end_of_word_suffix":"</w>","vocab":{"a":0,"b</w>":1,"ab</w>":2},"merges":["a b</w>"]}}`, "", HFOptions{})
	enc, err = suffixed.Encode("ab")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"ab</w>"}, []int{2})

	ignore := mustLoad(t, `{"model":{"type":"BPE","ignore_merges":true,"vocab":{"h":0,"i":1,"hi":2},"merges":[]}}`, "", HFOptions{})
	enc, err = ignore.Encode("hi")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	assertEncoding(t, enc, []string{"hi"}, []int{2})
}

func TestLoadHFRejectsUnsupportedComponents(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"model":         `{"model":{"type":"Mystery","vocab":{}}}`,
		"normalizer":    `{"normalizer":{"type":"Mystery"},"model":{"type":"WordLevel","vocab":{}}}`,
		"pre_tokenizer": `{"pre_tokenizer":{"type":"Mystery"},"model":{"type":"WordLevel","vocab":{}}}`,
	}
	for name, tokJSON := range cases {
		if _, err := LoadHFBytes([]byte(tokJSON), nil, HFOptions{}); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("%s: expected ErrUnsupported, got %v", name, err)
		}
	}

	if _, err := LoadHFBytes([]byte(`{not json`), nil, HFOptions{}); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadHFBytes([]byte(`{}`), nil, HFOptions{}); err == nil {
		t.Fatalf("expected missing model error")
	}
}
