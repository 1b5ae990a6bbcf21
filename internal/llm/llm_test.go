package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-analyst/internal/common/config"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/metrics"
	"marketing-analyst/internal/llm"
	"marketing-analyst/internal/llm/llmtest"
)

// ==========================
// Provider selection
// ==========================

func TestNew_ProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "openai",
			cfg:      config.LLMConfig{Provider: config.ProviderOpenAI, APIKey: "sk-test", Model: "gpt-4o-mini"},
			wantName: "openai:gpt-4o-mini",
		},
		{
			name: "azure fully configured",
			cfg: config.LLMConfig{Provider: config.ProviderAzure, Azure: config.AzureConfig{
				APIKey: "k", Endpoint: "https://example.openai.azure.com", Deployment: "gpt-4o-mini-dep", APIVersion: "2024-02-15-preview",
			}},
			wantName: "azure:gpt-4o-mini-dep",
		},
		{
			name: "azure incomplete falls back to openai",
			cfg: config.LLMConfig{Provider: config.ProviderAzure, APIKey: "sk-test", Model: "gpt-4o",
				Azure: config.AzureConfig{APIKey: "k"}},
			wantName: "openai:gpt-4o",
		},
		{
			name:    "azure incomplete without openai key",
			cfg:     config.LLMConfig{Provider: config.ProviderAzure, Azure: config.AzureConfig{APIKey: "k"}},
			wantErr: true,
		},
		{
			name:     "anthropic",
			cfg:      config.LLMConfig{Provider: config.ProviderAnthropic, Anthropic: config.AnthropicConfig{APIKey: "a", Model: "claude-3-5-haiku-20241022"}},
			wantName: "anthropic:claude-3-5-haiku-20241022",
		},
		{
			name:    "anthropic without key",
			cfg:     config.LLMConfig{Provider: config.ProviderAnthropic},
			wantErr: true,
		},
		{
			name:    "openai without key",
			cfg:     config.LLMConfig{Provider: config.ProviderOpenAI},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			model, err := llm.New(&cfg, 0.1, logger.NewTestLogger(t))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeConfiguration, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, model.Name())
		})
	}
}

// ==========================
// Retry wrapper
// ==========================

func TestWithRetry_ZeroReturnsSameModel(t *testing.T) {
	m := llmtest.NewScriptedModel()
	assert.Same(t, m, llm.WithRetry(m, 0, logger.NewNoOpLogger()))
}

func TestWithRetry_RecoversFromTransientFailure(t *testing.T) {
	m := llmtest.NewScriptedModel(
		llmtest.Fail(errors.New("503 service unavailable")),
		llmtest.Text("done"),
	)
	retrying := llm.WithRetry(m, 2, logger.NewTestLogger(t))

	reply, err := retrying.Complete(context.Background(), []llm.Message{llm.User("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Text)
	assert.Len(t, m.Calls(), 2)
}

func TestWithRetry_GivesUpAfterMaxTries(t *testing.T) {
	m := llmtest.NewScriptedModel(
		llmtest.Fail(errors.New("boom 1")),
		llmtest.Fail(errors.New("boom 2")),
		llmtest.Text("never reached"),
	)
	retrying := llm.WithRetry(m, 1, logger.NewTestLogger(t))

	_, err := retrying.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom 2")
	assert.Len(t, m.Calls(), 2)
}

func TestWithRetry_DeadlineIsPermanent(t *testing.T) {
	m := llmtest.NewScriptedModel(
		llmtest.Fail(context.DeadlineExceeded),
		llmtest.Text("never reached"),
	)
	retrying := llm.WithRetry(m, 3, logger.NewTestLogger(t))

	_, err := retrying.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, m.Calls(), 1)
}

// ==========================
// Instrumentation
// ==========================

func TestInstrument_CountsAndBoundsCalls(t *testing.T) {
	before := testutil.ToFloat64(metrics.LLMCalls.WithLabelValues("scripted-test", "error"))

	slow := llmtest.NewScriptedModel(llmtest.Step{
		Respond: func([]llm.Message, []llm.ToolSpec) (*llm.Reply, error) {
			time.Sleep(5 * time.Millisecond)
			return &llm.Reply{Text: "ok"}, nil
		},
	})
	m := llm.Instrument(slow, "scripted-test", time.Second)
	_, err := m.Complete(context.Background(), nil, nil)
	require.NoError(t, err)

	failing := llm.Instrument(llmtest.NewScriptedModel(), "scripted-test", 0)
	_, err = failing.Complete(context.Background(), nil, nil)
	require.Error(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMCalls.WithLabelValues("scripted-test", "error")))
	assert.Equal(t, "scripted", m.Name())
}

// ==========================
// Scripted model
// ==========================

func TestScriptedModel_RecordsCalls(t *testing.T) {
	m := llmtest.NewScriptedModel(
		llmtest.Invoke("call_1", "query_marketing_data", map[string]interface{}{"template": "KPI_SUMMARY"}),
		llmtest.Text("final"),
	)
	tools := []llm.ToolSpec{{Name: "query_marketing_data"}}

	reply, err := m.Complete(context.Background(), []llm.Message{llm.System("s"), llm.User("u")}, tools)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.JSONEq(t, `{"template":"KPI_SUMMARY"}`, reply.ToolCalls[0].Arguments)

	msgs := []llm.Message{llm.ToolResult("call_1", `{"row_count":1}`)}
	reply, err = m.Complete(context.Background(), msgs, tools)
	require.NoError(t, err)
	assert.Equal(t, "final", reply.Text)

	calls := m.Calls()
	require.Len(t, calls, 2)
	out, ok := llmtest.LastToolResult(calls[1].Messages)
	assert.True(t, ok)
	assert.Equal(t, `{"row_count":1}`, out)

	_, err = m.Complete(context.Background(), nil, nil)
	assert.Error(t, err)
}
