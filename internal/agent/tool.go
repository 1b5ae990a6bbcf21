// Package agent drives the model's tool-call loop and assembles chat
// responses from the recorded tool outputs.
package agent

import (
	"context"
	"encoding/json"

	"marketing-analyst/internal/common/validation"
	"marketing-analyst/internal/llm"
	"marketing-analyst/internal/models"
)

const (
	ToolQueryMarketingData  = "query_marketing_data"
	ToolQueryDynamicSQL     = "query_dynamic_sql"
	ToolCreateVisualization = "create_visualization"
	ToolAnalyzeInsights     = "analyze_data_insights"
)

// Tool is a named callable exposed to the model. Call never fails: errors
// are part of the returned JSON as {error, code, ...}.
type Tool interface {
	Name() string
	Description() string
	Schema() validation.JSONSchema
	Call(ctx context.Context, args map[string]interface{}) string
}

// Defaulter is implemented by tools that fill omitted arguments before
// validation.
type Defaulter interface {
	ApplyDefaults(ctx context.Context, args map[string]interface{})
}

// Spec converts a tool to its provider-neutral advertisement.
func Spec(t Tool) llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema().Map(),
	}
}

type filtersKey struct{}

// WithFilters attaches the request filters to ctx.
func WithFilters(ctx context.Context, f models.Filters) context.Context {
	return context.WithValue(ctx, filtersKey{}, f)
}

// FiltersFrom returns the request filters stored by WithFilters.
func FiltersFrom(ctx context.Context) (models.Filters, bool) {
	f, ok := ctx.Value(filtersKey{}).(models.Filters)
	return f, ok
}

func encode(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		fallback, _ := json.Marshal(map[string]interface{}{
			"error": "failed to encode tool output: " + err.Error(),
			"code":  "INTERNAL_ERROR",
		})
		return string(fallback)
	}
	return string(raw)
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}
