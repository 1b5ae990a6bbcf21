package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel talks to OpenAI or an Azure OpenAI deployment.
type OpenAIModel struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIModel builds a client for api.openai.com. A nil httpClient uses
// the SDK default.
func NewOpenAIModel(apiKey, model string, temperature float64, maxTokens int, httpClient *http.Client) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(cfg),
		provider:    "openai",
		model:       model,
		temperature: float32(temperature),
		maxTokens:   maxTokens,
	}
}

// NewAzureModel builds a client for an Azure OpenAI deployment. Every model
// name maps to the configured deployment.
func NewAzureModel(apiKey, endpoint, deployment, apiVersion string, temperature float64, maxTokens int, httpClient *http.Client) *OpenAIModel {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	cfg.AzureModelMapperFunc = func(string) string { return deployment }
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(cfg),
		provider:    "azure",
		model:       deployment,
		temperature: float32(temperature),
		maxTokens:   maxTokens,
	}
}

// wireTemperature keeps a zero temperature on the wire. The request field
// is omitempty, so 0 would otherwise fall back to the provider default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func (m *OpenAIModel) Name() string {
	return m.provider + ":" + m.model
}

func (m *OpenAIModel) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: wireTemperature(m.temperature),
		MaxTokens:   m.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", m.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat completion returned no choices", m.provider)
	}

	msg := resp.Choices[0].Message
	reply := &Reply{Text: strings.TrimSpace(msg.Content)}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
