package providers

import (
	"context"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
)

const DeepSeekAPIBase = "https://api.deepseek.com/v1"

var _ models.LLMProvider = &DeepSeekLLM{}

func NewDeepSeekLLM(ctx context.Context, cfg *config.Config) (*DeepSeekLLM, error) {
	llm := &DeepSeekLLM{}
	err := llm.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// DeepSeekLLM generates completions with the DeepSeek API, which speaks the
// OpenAI wire format.
type DeepSeekLLM struct {
	compatLLM
}

func (llm *DeepSeekLLM) Init(_ context.Context, cfg *config.Config) error {
	base, err := newCompatLLM(cfg, vendorSpec{
		provider:    ServiceDeepSeek,
		baseURL:     DeepSeekAPIBase,
		apiKey:      cfg.LLM.DeepSeekAPIKey,
		keyEnvVar:   "TICOBOT_DEEPSEEK_API_KEY",
		validModels: ValidDeepSeekLLMs,
	})
	if err != nil {
		return err
	}
	llm.compatLLM = *base
	return nil
}
