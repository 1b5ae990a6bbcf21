package agent

import (
	"context"
	"encoding/json"

	"marketing-analyst/internal/analytics/charts"
	"marketing-analyst/internal/analytics/insights"
	"marketing-analyst/internal/analytics/synthesizer"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/validation"
	"marketing-analyst/internal/models"
)

// TemplateRunner executes a named query template.
type TemplateRunner interface {
	RunTemplate(ctx context.Context, name string, filters models.Filters) (*models.QueryResult, error)
}

// SQLSynthesizer drafts and runs SQL for a question.
type SQLSynthesizer interface {
	SynthesizeAndRun(ctx context.Context, question string, filters models.Filters) (*synthesizer.Result, error)
}

// DefaultTools returns the four analyst tools in catalog order.
func DefaultTools(runner TemplateRunner, synth SQLSynthesizer) []Tool {
	return []Tool{
		NewQueryMarketingDataTool(runner),
		NewQueryDynamicSQLTool(synth),
		NewCreateVisualizationTool(),
		NewAnalyzeInsightsTool(),
	}
}

var filterProperties = map[string]validation.Property{
	"date_from": {Type: "string", Description: "Start date in YYYY-MM-DD format", Pattern: validation.DatePattern},
	"date_to":   {Type: "string", Description: "End date in YYYY-MM-DD format", Pattern: validation.DatePattern},
	"segment":   {Type: "string", Description: "Customer segment filter (optional)"},
	"channel":   {Type: "string", Description: "Marketing channel filter (optional)"},
}

func withFilterProperties(extra map[string]validation.Property) map[string]validation.Property {
	out := make(map[string]validation.Property, len(extra)+len(filterProperties))
	for k, v := range filterProperties {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// filterDefaults fills the filter arguments the model left out from the
// request filters.
func filterDefaults(ctx context.Context, args map[string]interface{}) {
	f, ok := FiltersFrom(ctx)
	if !ok {
		return
	}
	set := func(key, value string) {
		if _, present := args[key]; !present && value != "" {
			args[key] = value
		}
	}
	set("date_from", f.DateFrom)
	set("date_to", f.DateTo)
	set("segment", f.ActiveSegment())
	set("channel", f.ActiveChannel())
}

func filtersFromArgs(args map[string]interface{}) models.Filters {
	return models.Filters{
		DateFrom: stringArg(args, "date_from"),
		DateTo:   stringArg(args, "date_to"),
		Segment:  stringArg(args, "segment"),
		Channel:  stringArg(args, "channel"),
	}
}

// --------------------------------------------------------------------------
// query_marketing_data
// --------------------------------------------------------------------------

// TemplateOutput is the success payload of query_marketing_data.
type TemplateOutput struct {
	Template string                   `json:"template"`
	Params   map[string]interface{}   `json:"params"`
	Data     []map[string]interface{} `json:"data"`
	Columns  []string                 `json:"columns"`
	RowCount int                      `json:"row_count"`
}

type QueryMarketingDataTool struct {
	runner TemplateRunner
}

func NewQueryMarketingDataTool(runner TemplateRunner) *QueryMarketingDataTool {
	return &QueryMarketingDataTool{runner: runner}
}

func (t *QueryMarketingDataTool) Name() string { return ToolQueryMarketingData }

func (t *QueryMarketingDataTool) Description() string {
	return "Query marketing performance data using predefined templates. Templates: " +
		"KPI_SUMMARY (overall daily metrics and trends), TOP_CAMPAIGNS (best campaigns by ROAS, top 10), " +
		"ALL_CAMPAIGNS (every campaign, no limit), CHANNEL_PERFORMANCE (channel analysis), " +
		"SEGMENT_ANALYSIS (customer segment performance)."
}

func (t *QueryMarketingDataTool) Schema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: withFilterProperties(map[string]validation.Property{
			"template": {
				Type:        "string",
				Description: "The SQL template to execute (KPI_SUMMARY, TOP_CAMPAIGNS, ALL_CAMPAIGNS, CHANNEL_PERFORMANCE, SEGMENT_ANALYSIS)",
			},
		}),
		Required: []string{"template", "date_from", "date_to"},
	}
}

func (t *QueryMarketingDataTool) ApplyDefaults(ctx context.Context, args map[string]interface{}) {
	filterDefaults(ctx, args)
}

func (t *QueryMarketingDataTool) Call(ctx context.Context, args map[string]interface{}) string {
	template := stringArg(args, "template")
	filters := filtersFromArgs(args)

	result, err := t.runner.RunTemplate(ctx, template, filters)
	if err != nil {
		return encode(apperrors.ToolPayload(err, map[string]interface{}{"template": template}))
	}
	return encode(TemplateOutput{
		Template: template,
		Params:   filters.Params(),
		Data:     result.Rows,
		Columns:  result.Columns,
		RowCount: result.RowCount,
	})
}

// --------------------------------------------------------------------------
// query_dynamic_sql
// --------------------------------------------------------------------------

// DynamicOutput is the success payload of query_dynamic_sql.
type DynamicOutput struct {
	Question     string                   `json:"question"`
	GeneratedSQL string                   `json:"generated_sql"`
	Params       map[string]interface{}   `json:"params"`
	Data         []map[string]interface{} `json:"data"`
	Columns      []string                 `json:"columns"`
	RowCount     int                      `json:"row_count"`
}

type QueryDynamicSQLTool struct {
	synth SQLSynthesizer
}

func NewQueryDynamicSQLTool(synth SQLSynthesizer) *QueryDynamicSQLTool {
	return &QueryDynamicSQLTool{synth: synth}
}

func (t *QueryDynamicSQLTool) Name() string { return ToolQueryDynamicSQL }

func (t *QueryDynamicSQLTool) Description() string {
	return "Generate and execute a custom read-only SQL query for questions that do not fit the predefined " +
		"templates: custom filters, thresholds, comparisons, calculations and time-based breakdowns."
}

func (t *QueryDynamicSQLTool) Schema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: withFilterProperties(map[string]validation.Property{
			"question": {
				Type:        "string",
				Description: "The user's question that will be translated to SQL",
				MinLength:   validation.Int(1),
			},
		}),
		Required: []string{"question", "date_from", "date_to"},
	}
}

func (t *QueryDynamicSQLTool) ApplyDefaults(ctx context.Context, args map[string]interface{}) {
	filterDefaults(ctx, args)
}

func (t *QueryDynamicSQLTool) Call(ctx context.Context, args map[string]interface{}) string {
	question := stringArg(args, "question")
	filters := filtersFromArgs(args)

	if t.synth == nil {
		return encode(apperrors.ToolPayload(
			apperrors.NewConfigurationError("dynamic SQL is not available"),
			map[string]interface{}{"question": question},
		))
	}

	res, err := t.synth.SynthesizeAndRun(ctx, question, filters)
	if err != nil {
		generated := "Failed to generate SQL"
		if res != nil && res.GeneratedSQL != "" {
			generated = res.GeneratedSQL
		}
		return encode(apperrors.ToolPayload(err, map[string]interface{}{
			"question":      question,
			"generated_sql": generated,
		}))
	}
	return encode(DynamicOutput{
		Question:     question,
		GeneratedSQL: res.GeneratedSQL,
		Params:       res.Params,
		Data:         res.QueryResult.Rows,
		Columns:      res.QueryResult.Columns,
		RowCount:     res.QueryResult.RowCount,
	})
}

// --------------------------------------------------------------------------
// create_visualization
// --------------------------------------------------------------------------

type CreateVisualizationTool struct{}

func NewCreateVisualizationTool() *CreateVisualizationTool { return &CreateVisualizationTool{} }

func (t *CreateVisualizationTool) Name() string { return ToolCreateVisualization }

func (t *CreateVisualizationTool) Description() string {
	return "Create a chart from query results. Pass the JSON output of a data tool as data. " +
		"Axes are auto-detected when not provided."
}

func (t *CreateVisualizationTool) Schema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"title": {Type: "string", Description: "The title for the chart"},
			"data":  {Description: "JSON string containing the data to visualize"},
			"chart_type": {
				Type:        "string",
				Description: "Type of chart: 'bar', 'line', 'scatter', 'pie', 'funnel', 'heatmap', 'combo', or 'auto' for intelligent suggestion",
				Default:     charts.TypeAuto,
			},
			"x_column":     {Type: "string", Description: "Column name for x-axis (auto-detected if not provided)"},
			"y_column":     {Type: "string", Description: "Column name for y-axis (auto-detected if not provided)"},
			"color_column": {Type: "string", Description: "Column name for color encoding/grouping (optional)"},
		},
		Required: []string{"title", "data"},
	}
}

func (t *CreateVisualizationTool) Call(_ context.Context, args map[string]interface{}) string {
	spec := charts.Build(charts.Request{
		Data:      dataArg(args),
		ChartType: stringArg(args, "chart_type"),
		Title:     stringArg(args, "title"),
		X:         stringArg(args, "x_column"),
		Y:         stringArg(args, "y_column"),
		Color:     stringArg(args, "color_column"),
	})
	return encode(spec)
}

// --------------------------------------------------------------------------
// analyze_data_insights
// --------------------------------------------------------------------------

type AnalyzeInsightsTool struct{}

func NewAnalyzeInsightsTool() *AnalyzeInsightsTool { return &AnalyzeInsightsTool{} }

func (t *AnalyzeInsightsTool) Name() string { return ToolAnalyzeInsights }

func (t *AnalyzeInsightsTool) Description() string {
	return "Analyze marketing data and extract key metrics for an executive summary: totals, ROAS, " +
		"funding rate and the top performer."
}

func (t *AnalyzeInsightsTool) Schema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"data": {Description: "JSON string containing marketing performance data"},
		},
		Required: []string{"data"},
	}
}

func (t *AnalyzeInsightsTool) Call(_ context.Context, args map[string]interface{}) string {
	return encode(insights.Extract(dataArg(args)))
}

// dataArg accepts the data argument as a JSON string or as an inline JSON
// value, which some models send instead.
func dataArg(args map[string]interface{}) string {
	switch v := args["data"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
