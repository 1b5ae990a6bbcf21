package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-analyst/internal/analytics/tabular"
)

func TestExtract_CampaignTable(t *testing.T) {
	data := `{"template":"TOP_CAMPAIGNS","data":[
		{"campaign":"Spring","marketing_spend":100,"revenue":250.456,"applications":40,"funded_loans":10,"roas":2.50456},
		{"campaign":"Summer","marketing_spend":50,"revenue":200,"applications":20,"funded_loans":5,"roas":4},
		{"campaign":"Fall","marketing_spend":50,"revenue":200,"applications":0,"funded_loans":0,"roas":4}
	]}`

	b := Extract(data)
	assert.Empty(t, b.Err())
	assert.Equal(t, 3, b["row_count"])
	assert.Equal(t, "TOP_CAMPAIGNS", b["template"])
	assert.Equal(t, 200.0, b["total_spend"])
	assert.Equal(t, 650.46, b["total_revenue"])
	assert.Equal(t, 3.25, b["total_roas"])
	assert.Equal(t, int64(15), b["total_funded_loans"])
	assert.Equal(t, int64(60), b["total_applications"])
	assert.Equal(t, 25.0, b["funding_rate"])
	// first of the tied maxima
	assert.Equal(t, "Summer", b["top_campaign"])
	assert.Equal(t, 4.0, b["top_campaign_roas"])
}

func TestExtract_RulesAreIndependent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		present []string
		absent  []string
	}{
		{
			name:    "spend without revenue",
			data:    `[{"channel":"Email","marketing_spend":10,"funded_loans":2}]`,
			present: []string{"total_funded_loans", "row_count"},
			absent:  []string{"total_spend", "total_roas", "funding_rate", "top_channel"},
		},
		{
			name:    "applications without funded",
			data:    `[{"segment":"Prime","applications":3}]`,
			present: []string{"total_applications"},
			absent:  []string{"funding_rate", "total_funded_loans"},
		},
		{
			name:    "channel label when no campaign",
			data:    `[{"channel":"Email","roas":1.234},{"channel":"Search","roas":null}]`,
			present: []string{"top_channel", "top_channel_roas"},
			absent:  []string{"top_campaign", "template"},
		},
		{
			name:    "roas without label column",
			data:    `[{"month":"2025-08-01","roas":2}]`,
			present: []string{"row_count"},
			absent:  []string{"top_month", "top_campaign"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Extract(tt.data)
			assert.Empty(t, b.Err())
			for _, k := range tt.present {
				assert.Contains(t, b, k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, b, k)
			}
		})
	}
}

func TestExtract_ZeroDenominators(t *testing.T) {
	b := Extract(`[{"marketing_spend":0,"revenue":5,"applications":0,"funded_loans":0}]`)
	assert.Equal(t, 0.0, b["total_roas"])
	assert.Equal(t, 0.0, b["funding_rate"])
}

func TestExtract_Malformed(t *testing.T) {
	for _, input := range []string{"", "{bad", `{"error":"upstream failed"}`, `[1]`} {
		b := Extract(input)
		assert.NotEmpty(t, b.Err(), input)
	}
}

func TestExtract_EmptyTable(t *testing.T) {
	b := Extract(`{"data":[],"template":"KPI_SUMMARY"}`)
	assert.Equal(t, Bundle{"row_count": 0, "template": "KPI_SUMMARY"}, b)
}

func TestFromTable_PanickingRuleIsContained(t *testing.T) {
	saved := rules
	t.Cleanup(func() { rules = saved })
	rules = append([]rule{{"broken", func(*tabular.Table, Bundle) { panic("boom") }}}, saved...)

	table, err := tabular.ParseString(`[{"funded_loans":2}]`)
	require.NoError(t, err)

	b := FromTable(table)
	assert.Contains(t, b.Err(), "broken rule failed: boom")
	assert.Equal(t, 1, b["row_count"])
	assert.Equal(t, int64(2), b["total_funded_loans"])
}
