// Package insights summarizes query results into headline metrics.
package insights

import (
	"fmt"
	"math"

	"marketing-analyst/internal/analytics/tabular"
)

// Bundle maps metric names to scalars. It always carries row_count unless
// the input could not be read at all.
type Bundle map[string]interface{}

// Err returns the bundle's error message, if any.
func (b Bundle) Err() string {
	s, _ := b["error"].(string)
	return s
}

type rule struct {
	name string
	run  func(t *tabular.Table, b Bundle)
}

// rules run in order and independently; a failing rule does not stop the
// others.
var rules = []rule{
	{"spend_revenue", spendRevenue},
	{"funded", funded},
	{"applications", applications},
	{"top_performer", topPerformer},
}

// labelColumns are tried in order for the top performer.
var labelColumns = []string{"campaign", "channel", "segment"}

// Extract is total: malformed input and failing rules produce an error
// entry instead of a panic or an error return.
func Extract(data string) Bundle {
	table, err := tabular.ParseString(data)
	if err != nil {
		return Bundle{"error": err.Error()}
	}
	return FromTable(table)
}

// FromTable runs every rule over an already decoded table.
func FromTable(t *tabular.Table) Bundle {
	b := Bundle{"row_count": t.Len()}
	if t.Template != "" {
		b["template"] = t.Template
	}
	if t.Len() == 0 {
		return b
	}
	for _, p := range rules {
		if err := runRule(p, t, b); err != nil {
			b["error"] = err.Error()
		}
	}
	return b
}

func runRule(p rule, t *tabular.Table, b Bundle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s rule failed: %v", p.name, r)
		}
	}()
	p.run(t, b)
	return nil
}

func spendRevenue(t *tabular.Table, b Bundle) {
	if !t.HasColumn("marketing_spend") || !t.HasColumn("revenue") {
		return
	}
	spend := sum(t.Floats("marketing_spend"))
	revenue := sum(t.Floats("revenue"))
	roas := 0.0
	if spend > 0 {
		roas = revenue / spend
	}
	b["total_spend"] = round(spend, 2)
	b["total_revenue"] = round(revenue, 2)
	b["total_roas"] = round(roas, 2)
}

func funded(t *tabular.Table, b Bundle) {
	if !t.HasColumn("funded_loans") {
		return
	}
	b["total_funded_loans"] = int64(sum(t.Floats("funded_loans")))
}

func applications(t *tabular.Table, b Bundle) {
	if !t.HasColumn("applications") {
		return
	}
	apps := sum(t.Floats("applications"))
	b["total_applications"] = int64(apps)
	if !t.HasColumn("funded_loans") {
		return
	}
	rate := 0.0
	if apps > 0 {
		rate = sum(t.Floats("funded_loans")) / apps * 100
	}
	b["funding_rate"] = round(rate, 1)
}

func topPerformer(t *tabular.Table, b Bundle) {
	if !t.HasColumn("roas") {
		return
	}
	label := ""
	for _, c := range labelColumns {
		if t.HasColumn(c) {
			label = c
			break
		}
	}
	if label == "" {
		return
	}

	best := -1
	bestROAS := math.Inf(-1)
	for i, row := range t.Rows {
		v, ok := tabular.ToFloat(row["roas"])
		if !ok || math.IsNaN(v) {
			continue
		}
		if v > bestROAS {
			best, bestROAS = i, v
		}
	}
	if best < 0 {
		return
	}
	b["top_"+label] = tabular.Label(t.Rows[best][label])
	b["top_"+label+"_roas"] = round(bestROAS, 2)
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
