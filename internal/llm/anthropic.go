package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicModel implements ChatModel over the Messages API.
type AnthropicModel struct {
	client      anthropic.Client
	model       anthropic.Model
	temperature float64
	maxTokens   int64
}

// NewAnthropicModel builds a client. Retries are left to the retry wrapper.
func NewAnthropicModel(apiKey, model string, temperature float64, maxTokens int, httpClient *http.Client) *AnthropicModel {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicModel{
		client:      anthropic.NewClient(opts...),
		model:       anthropic.Model(model),
		temperature: temperature,
		maxTokens:   int64(maxTokens),
	}
}

func (m *AnthropicModel) Name() string {
	return "anthropic:" + string(m.model)
}

func (m *AnthropicModel) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error) {
	system, rest := splitSystem(messages)
	converted, err := toAnthropicMessages(rest)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Messages:    converted,
		Temperature: anthropic.Float(m.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	reply := &Reply{}
	var text strings.Builder
	for _, blk := range resp.Content {
		switch blk.Type {
		case "text":
			text.WriteString(blk.AsText().Text)
		case "tool_use":
			tu := blk.AsToolUse()
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply, nil
}

// toAnthropicMessages folds consecutive tool results into one user message,
// which is how the Messages API expects them.
func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, isErrorPayload(m.Content)))
		case RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input interface{}
				if err := json.Unmarshal([]byte(orEmptyObject(tc.Arguments)), &input); err != nil {
					return nil, fmt.Errorf("tool call %s arguments: %w", tc.ID, err)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()
	return out, nil
}

func toAnthropicTools(tools []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, _ := t.Parameters["properties"].(map[string]interface{})
		required := stringList(t.Parameters["required"])
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.Opt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}

// stringList accepts both a Go []string and the []interface{} a decoded
// JSON schema carries.
func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func orEmptyObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}

// isErrorPayload reports whether a tool output is a JSON object with an
// "error" key.
func isErrorPayload(content string) bool {
	var envelope struct {
		Error interface{} `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return false
	}
	return envelope.Error != nil
}
