package agent

import (
	"time"

	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/pkg/registry"
)

type catalogInfo struct {
	category string
	codes    []apperrors.ErrorCode
	tags     []string
}

var toolCatalogInfo = map[string]catalogInfo{
	ToolQueryMarketingData: {"data", []apperrors.ErrorCode{
		apperrors.ErrCodeUnknownTemplate, apperrors.ErrCodeQueryExecutionFailed, apperrors.ErrCodeInvalidToolArguments,
	}, []string{"sql", "template"}},
	ToolQueryDynamicSQL: {"data", []apperrors.ErrorCode{
		apperrors.ErrCodeConfiguration, apperrors.ErrCodeSynthesisFailed, apperrors.ErrCodeQueryExecutionFailed,
	}, []string{"sql", "llm"}},
	ToolCreateVisualization: {"presentation", []apperrors.ErrorCode{
		apperrors.ErrCodeChartBuildFailed,
	}, []string{"plotly"}},
	ToolAnalyzeInsights: {"analysis", nil, []string{"kpi"}},
}

// CatalogEntry describes t for the published tool catalog.
func CatalogEntry(t Tool) registry.ToolEntry {
	info, ok := toolCatalogInfo[t.Name()]
	if !ok {
		info = catalogInfo{category: "custom"}
	}
	codes := make([]string, 0, len(info.codes)+1)
	for _, c := range info.codes {
		codes = append(codes, string(c))
	}
	codes = append(codes, string(apperrors.ErrCodeInternal))

	tags := info.tags
	if tags == nil {
		tags = []string{}
	}
	return registry.ToolEntry{
		Name:        t.Name(),
		Description: t.Description(),
		Category:    info.category,
		InputSchema: t.Schema().Map(),
		ErrorCodes:  codes,
		Tags:        tags,
	}
}

// Catalog builds the catalog for tools in the given order.
func Catalog(tools []Tool, now time.Time) *registry.ToolCatalog {
	cat := registry.NewCatalog(now)
	for _, t := range tools {
		cat.Upsert(CatalogEntry(t), now)
	}
	return cat
}
