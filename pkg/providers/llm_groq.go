package providers

import (
	"context"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

const GroqAPIBase = "https://api.groq.com/openai/v1"

var _ models.LLMProvider = &GroqLLM{}

func NewGroqLLM(ctx context.Context, cfg *config.Config) (*GroqLLM, error) {
	llm := &GroqLLM{}
	err := llm.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// GroqLLM generates completions with the Groq API, which speaks the OpenAI
// wire format.
type GroqLLM struct {
	compatLLM
}

func (llm *GroqLLM) Init(_ context.Context, cfg *config.Config) error {
	base, err := newCompatLLM(cfg, vendorSpec{
		provider:    ServiceGroq,
		baseURL:     GroqAPIBase,
		apiKey:      cfg.LLM.GroqAPIKey,
		keyEnvVar:   "TICOBOT_GROQ_API_KEY",
		validModels: ValidGroqLLMs,
	})
	if err != nil {
		return err
	}
	llm.compatLLM = *base
	return nil
}
