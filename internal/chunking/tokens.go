package chunking

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// tokenizer bounds chunk text to a token budget.
type tokenizer interface {
	Truncate(text string, budget int) string
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenTokenizer) Truncate(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return t.enc.Decode(tokens[:budget])
}

// approxTokenizer estimates four bytes per token. Used when the BPE
// vocabulary cannot be loaded, such as offline first runs.
type approxTokenizer struct{}

const approxBytesPerToken = 4

func (approxTokenizer) Truncate(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	limit := budget * approxBytesPerToken
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

func newTokenizer() (tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return approxTokenizer{}, err
	}
	return tiktokenTokenizer{enc: enc}, nil
}
