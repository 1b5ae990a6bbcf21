package llm

import (
	"context"
	"time"

	"marketing-analyst/internal/common/config"
	apperrors "marketing-analyst/internal/common/errors"
	commonhttp "marketing-analyst/internal/common/http"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/metrics"
)

// New selects the provider from cfg. Azure is only used when key, endpoint
// and deployment are all set; otherwise an OpenAI key is used when present.
// Missing credentials yield a CONFIGURATION_ERROR.
func New(cfg *config.LLMConfig, temperature float64, log logger.Logger) (ChatModel, error) {
	var (
		model    ChatModel
		provider string
	)
	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Timeout), log).Standard()

	switch cfg.Provider {
	case config.ProviderAzure:
		switch {
		case cfg.Azure.Configured():
			model = NewAzureModel(cfg.Azure.APIKey, cfg.Azure.Endpoint, cfg.Azure.Deployment,
				cfg.Azure.APIVersion, temperature, cfg.MaxTokens, httpClient)
			provider = config.ProviderAzure
		case cfg.APIKey != "":
			log.Warn("Azure OpenAI settings incomplete, falling back to OpenAI", map[string]interface{}{
				"endpoint_set":   cfg.Azure.Endpoint != "",
				"deployment_set": cfg.Azure.Deployment != "",
			})
			model = NewOpenAIModel(cfg.APIKey, cfg.Model, temperature, cfg.MaxTokens, httpClient)
			provider = config.ProviderOpenAI
		default:
			return nil, apperrors.NewConfigurationError(
				"set AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT, or OPENAI_API_KEY")
		}
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, apperrors.NewConfigurationError("set ANTHROPIC_API_KEY")
		}
		model = NewAnthropicModel(cfg.Anthropic.APIKey, cfg.Anthropic.Model, temperature, cfg.MaxTokens, httpClient)
		provider = config.ProviderAnthropic
	default:
		if cfg.APIKey == "" {
			return nil, apperrors.NewConfigurationError("set OPENAI_API_KEY")
		}
		model = NewOpenAIModel(cfg.APIKey, cfg.Model, temperature, cfg.MaxTokens, httpClient)
		provider = config.ProviderOpenAI
	}

	log.Info("Language model configured", map[string]interface{}{
		"provider":    provider,
		"model":       model.Name(),
		"temperature": temperature,
	})

	model = WithRetry(model, cfg.MaxRetries, log)
	return Instrument(model, provider, config.GetDuration(cfg.Timeout)), nil
}

// InstrumentedModel bounds every call by a timeout and counts calls per
// provider and outcome.
type InstrumentedModel struct {
	inner    ChatModel
	provider string
	timeout  time.Duration
}

// Instrument wraps m. A zero timeout leaves the caller's deadline alone.
func Instrument(m ChatModel, provider string, timeout time.Duration) *InstrumentedModel {
	return &InstrumentedModel{inner: m, provider: provider, timeout: timeout}
}

func (m *InstrumentedModel) Name() string {
	return m.inner.Name()
}

func (m *InstrumentedModel) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	reply, err := m.inner.Complete(ctx, messages, tools)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMCalls.WithLabelValues(m.provider, status).Inc()
	return reply, err
}
