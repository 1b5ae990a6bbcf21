// internal/analytics/templates/registry.go
package templates

import (
	"strings"

	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/models"
)

// Table is the only relation the assistant reads.
const Table = "curated_pl_marketing_wide_synth"

const (
	segmentFilter = "AND segment_name = :segment"
	channelFilter = "AND first_touch_channel = :channel"
)

// Template is a predefined aggregate query. Query carries the
// {segment_filter} and {channel_filter} fragments.
type Template struct {
	Name        models.TemplateName
	Description string
	Query       string
	Columns     []string
}

var Registry = map[models.TemplateName]Template{
	models.TemplateKPISummary: {
		Name:        models.TemplateKPISummary,
		Description: "Daily KPI rollup: spend, revenue, applications, funded loans, funding rate, ROAS and cost per funded loan",
		Query:       kpiSummaryQuery,
		Columns: []string{"month", "marketing_spend", "revenue", "applications", "funded_loans",
			"funded_amount", "funding_rate", "roas", "cost_per_funded_loan"},
	},
	models.TemplateTopCampaigns: {
		Name:        models.TemplateTopCampaigns,
		Description: "Top 10 campaigns by ROAS",
		Query:       topCampaignsQuery,
		Columns:     campaignColumns,
	},
	models.TemplateAllCampaigns: {
		Name:        models.TemplateAllCampaigns,
		Description: "Every campaign with activity, ordered by ROAS",
		Query:       allCampaignsQuery,
		Columns:     campaignColumns,
	},
	models.TemplateChannelPerformance: {
		Name:        models.TemplateChannelPerformance,
		Description: "Performance per first-touch marketing channel, ordered by spend",
		Query:       channelPerformanceQuery,
		Columns:     []string{"channel", "marketing_spend", "revenue", "applications", "funded_loans", "roas"},
	},
	models.TemplateSegmentAnalysis: {
		Name:        models.TemplateSegmentAnalysis,
		Description: "Performance per customer segment with average approved amount, ordered by spend",
		Query:       segmentAnalysisQuery,
		Columns: []string{"segment", "marketing_spend", "revenue", "applications", "funded_loans",
			"avg_approved_amount", "roas"},
	},
}

var campaignColumns = []string{"campaign", "marketing_spend", "revenue", "applications", "funded_loans", "roas"}

// Get returns the template called name. Names outside the catalogue fail
// with UNKNOWN_TEMPLATE.
func Get(name string) (Template, error) {
	tmpl, ok := Registry[models.TemplateName(name)]
	if !ok {
		return Template{}, apperrors.NewUnknownTemplateError(name)
	}
	return tmpl, nil
}

// Names lists the catalogue in a stable order.
func Names() []models.TemplateName {
	return models.TemplateNames()
}

// Render fills the filter fragments and returns the query with its bound
// parameters. Filter values never reach the query text.
func (t Template) Render(filters models.Filters) (string, map[string]interface{}) {
	segment, channel := "", ""
	if filters.ActiveSegment() != "" {
		segment = segmentFilter
	}
	if filters.ActiveChannel() != "" {
		channel = channelFilter
	}
	query := strings.NewReplacer("{segment_filter}", segment, "{channel_filter}", channel).Replace(t.Query)
	return query, filters.Params()
}
