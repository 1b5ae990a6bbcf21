package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-analyst/internal/analytics/synthesizer"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeRunner struct {
	result  *models.QueryResult
	err     error
	calls   int
	name    string
	filters models.Filters
}

func (f *fakeRunner) RunTemplate(_ context.Context, name string, filters models.Filters) (*models.QueryResult, error) {
	f.calls++
	f.name = name
	f.filters = filters
	return f.result, f.err
}

type fakeSynth struct {
	res *synthesizer.Result
	err error
}

func (f *fakeSynth) SynthesizeAndRun(_ context.Context, question string, _ models.Filters) (*synthesizer.Result, error) {
	return f.res, f.err
}

func channelResult() *models.QueryResult {
	return &models.QueryResult{
		Columns: []string{"channel", "marketing_spend", "revenue", "applications", "funded_loans", "roas"},
		Rows: []map[string]interface{}{
			{"channel": "Email", "marketing_spend": 100.0, "revenue": 400.0, "applications": 20, "funded_loans": 5, "roas": 4.0},
			{"channel": "Search", "marketing_spend": 300.0, "revenue": 600.0, "applications": 30, "funded_loans": 3, "roas": 2.0},
		},
		RowCount: 2,
	}
}

func decode(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

// ==========================
// query_marketing_data
// ==========================

func TestQueryMarketingDataTool_Success(t *testing.T) {
	runner := &fakeRunner{result: channelResult()}
	tool := NewQueryMarketingDataTool(runner)

	out := decode(t, tool.Call(context.Background(), map[string]interface{}{
		"template":  "CHANNEL_PERFORMANCE",
		"date_from": "2025-08-01",
		"date_to":   "2025-08-31",
		"segment":   "All",
	}))

	assert.Equal(t, "CHANNEL_PERFORMANCE", out["template"])
	assert.Equal(t, float64(2), out["row_count"])
	assert.Equal(t, map[string]interface{}{"date_from": "2025-08-01", "date_to": "2025-08-31"}, out["params"])
	assert.Len(t, out["data"], 2)
	assert.Equal(t, "CHANNEL_PERFORMANCE", runner.name)
	assert.Equal(t, "All", runner.filters.Segment)
}

func TestQueryMarketingDataTool_UnknownTemplate(t *testing.T) {
	runner := &fakeRunner{err: apperrors.NewUnknownTemplateError("DROP_ALL")}
	out := decode(t, NewQueryMarketingDataTool(runner).Call(context.Background(), map[string]interface{}{
		"template": "DROP_ALL", "date_from": "2025-08-01", "date_to": "2025-08-31",
	}))

	assert.Equal(t, string(apperrors.ErrCodeUnknownTemplate), out["code"])
	assert.Equal(t, "DROP_ALL", out["template"])
	assert.Contains(t, out["error"], "DROP_ALL")
}

func TestQueryMarketingDataTool_DefaultsFromRequest(t *testing.T) {
	tool := NewQueryMarketingDataTool(&fakeRunner{})
	ctx := WithFilters(context.Background(), models.Filters{DateFrom: "2025-08-01", DateTo: "2025-08-31", Segment: "Prime", Channel: "All"})

	args := map[string]interface{}{"template": "KPI_SUMMARY", "date_to": "2025-08-15"}
	tool.ApplyDefaults(ctx, args)

	assert.Equal(t, map[string]interface{}{
		"template":  "KPI_SUMMARY",
		"date_from": "2025-08-01",
		"date_to":   "2025-08-15",
		"segment":   "Prime",
	}, args)
}

// ==========================
// query_dynamic_sql
// ==========================

func TestQueryDynamicSQLTool(t *testing.T) {
	tests := []struct {
		name      string
		synth     SQLSynthesizer
		wantCode  string
		wantSQL   string
		wantError bool
	}{
		{
			name: "success",
			synth: &fakeSynth{res: &synthesizer.Result{
				Question:     "q",
				GeneratedSQL: "SELECT 1",
				Params:       map[string]interface{}{"date_from": "2025-08-01", "date_to": "2025-08-31"},
				QueryResult:  channelResult(),
			}},
			wantSQL: "SELECT 1",
		},
		{
			name:      "synthesis failure without draft",
			synth:     &fakeSynth{res: &synthesizer.Result{Question: "q"}, err: apperrors.NewSynthesisError(errors.New("down"))},
			wantCode:  string(apperrors.ErrCodeSynthesisFailed),
			wantSQL:   "Failed to generate SQL",
			wantError: true,
		},
		{
			name: "execution failure keeps the draft",
			synth: &fakeSynth{
				res: &synthesizer.Result{Question: "q", GeneratedSQL: "SELECT bogus"},
				err: apperrors.NewQueryExecutionError("dynamic", errors.New("no such column")),
			},
			wantCode:  string(apperrors.ErrCodeQueryExecutionFailed),
			wantSQL:   "SELECT bogus",
			wantError: true,
		},
		{
			name:      "no synthesizer",
			synth:     nil,
			wantCode:  string(apperrors.ErrCodeConfiguration),
			wantError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decode(t, NewQueryDynamicSQLTool(tt.synth).Call(context.Background(), map[string]interface{}{
				"question": "q", "date_from": "2025-08-01", "date_to": "2025-08-31",
			}))
			assert.Equal(t, "q", out["question"])
			if tt.wantError {
				assert.Equal(t, tt.wantCode, out["code"])
				assert.NotEmpty(t, out["error"])
			} else {
				assert.Nil(t, out["error"])
				assert.Equal(t, float64(2), out["row_count"])
			}
			if tt.wantSQL != "" {
				assert.Equal(t, tt.wantSQL, out["generated_sql"])
			}
		})
	}
}

// ==========================
// create_visualization / analyze_data_insights
// ==========================

func TestCreateVisualizationTool_AcceptsStringAndInlineData(t *testing.T) {
	payload := TemplateOutput{Template: "CHANNEL_PERFORMANCE", Data: channelResult().Rows, Columns: channelResult().Columns, RowCount: 2}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var inline interface{}
	require.NoError(t, json.Unmarshal(raw, &inline))

	tool := NewCreateVisualizationTool()
	for name, data := range map[string]interface{}{"string": string(raw), "inline": inline} {
		t.Run(name, func(t *testing.T) {
			out := decode(t, tool.Call(context.Background(), map[string]interface{}{
				"title": "Spend by channel", "data": data, "chart_type": "bar",
			}))
			assert.Equal(t, "bar", out["chart_type"])
			assert.Equal(t, float64(2), out["data_points"])
			assert.NotNil(t, out["plotly_json"])
			assert.Nil(t, out["error"])
		})
	}
}

func TestCreateVisualizationTool_BadData(t *testing.T) {
	out := decode(t, NewCreateVisualizationTool().Call(context.Background(), map[string]interface{}{
		"title": "Broken", "data": "not json",
	}))
	assert.Equal(t, "error", out["chart_type"])
	assert.NotEmpty(t, out["error"])
}

func TestAnalyzeInsightsTool(t *testing.T) {
	raw, err := json.Marshal(TemplateOutput{Template: "CHANNEL_PERFORMANCE", Data: channelResult().Rows, Columns: channelResult().Columns, RowCount: 2})
	require.NoError(t, err)

	out := decode(t, NewAnalyzeInsightsTool().Call(context.Background(), map[string]interface{}{"data": string(raw)}))
	assert.Equal(t, 2.5, out["total_roas"])
	assert.Equal(t, "Email", out["top_channel"])
	assert.Equal(t, "CHANNEL_PERFORMANCE", out["template"])

	bad := decode(t, NewAnalyzeInsightsTool().Call(context.Background(), map[string]interface{}{"data": "{"}))
	assert.NotEmpty(t, bad["error"])
}

func TestDefaultTools_Catalog(t *testing.T) {
	tools := DefaultTools(&fakeRunner{}, &fakeSynth{})
	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name())
		spec := Spec(tool)
		assert.Equal(t, "object", spec.Parameters["type"])
		assert.NotEmpty(t, spec.Description)
	}
	assert.Equal(t, []string{ToolQueryMarketingData, ToolQueryDynamicSQL, ToolCreateVisualization, ToolAnalyzeInsights}, names)
}
