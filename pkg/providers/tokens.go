package providers

import (
	"github.com/pkoukk/tiktoken-go"
)

const defaultTokenEncoding = "cl100k_base"

// tokenCounter counts tokens with the cl100k_base BPE. Non-OpenAI models use
// other vocabularies, so counts for those are estimates; callers budgeting
// prompts keep headroom for the variance.
type tokenCounter struct {
	tkm *tiktoken.Tiktoken
}

func newTokenCounter() (*tokenCounter, error) {
	tkm, err := tiktoken.GetEncoding(defaultTokenEncoding)
	if err != nil {
		return nil, err
	}
	return &tokenCounter{tkm: tkm}, nil
}

func (c *tokenCounter) CountTokens(text string) (int, error) {
	return len(c.tkm.Encode(text, nil, nil)), nil
}
