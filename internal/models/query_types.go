// internal/models/query_types.go
package models

// TemplateName identifies one of the predefined aggregate queries.
type TemplateName string

const (
	TemplateKPISummary         TemplateName = "KPI_SUMMARY"
	TemplateTopCampaigns       TemplateName = "TOP_CAMPAIGNS"
	TemplateAllCampaigns       TemplateName = "ALL_CAMPAIGNS"
	TemplateChannelPerformance TemplateName = "CHANNEL_PERFORMANCE"
	TemplateSegmentAnalysis    TemplateName = "SEGMENT_ANALYSIS"
)

// TemplateNames lists every template in catalogue order.
func TemplateNames() []TemplateName {
	return []TemplateName{
		TemplateKPISummary,
		TemplateTopCampaigns,
		TemplateAllCampaigns,
		TemplateChannelPerformance,
		TemplateSegmentAnalysis,
	}
}

// Valid reports whether n is a known template. Matching is case-sensitive.
func (n TemplateName) Valid() bool {
	for _, known := range TemplateNames() {
		if n == known {
			return true
		}
	}
	return false
}

// DynamicQueryName labels tables produced by synthesized SQL.
const DynamicQueryName = "dynamic_query"
