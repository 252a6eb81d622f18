package providers

import (
	"context"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

var _ models.LLMProvider = &OpenAILLM{}

func NewOpenAILLM(ctx context.Context, cfg *config.Config) (*OpenAILLM, error) {
	llm := &OpenAILLM{}
	err := llm.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// OpenAILLM generates completions with the OpenAI chat completions API.
// Setting llm.openai_endpoint points it at any OpenAI-compatible gateway.
type OpenAILLM struct {
	compatLLM
}

func (llm *OpenAILLM) Init(_ context.Context, cfg *config.Config) error {
	base, err := newCompatLLM(cfg, vendorSpec{
		provider:    ServiceOpenAI,
		apiKey:      cfg.LLM.OpenAIAPIKey,
		keyEnvVar:   "TICOBOT_OPENAI_API_KEY",
		orgID:       cfg.LLM.OpenAIOrgID,
		endpoint:    cfg.LLM.OpenAIEndpoint,
		validModels: ValidOpenAILLMs,
	})
	if err != nil {
		return err
	}
	llm.compatLLM = *base
	return nil
}
