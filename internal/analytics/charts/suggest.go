package charts

import (
	"strings"

	"marketing-analyst/internal/analytics/tabular"
)

const (
	TypeAuto    = "auto"
	TypeBar     = "bar"
	TypeLine    = "line"
	TypeScatter = "scatter"
	TypePie     = "pie"
	TypeFunnel  = "funnel"
	TypeHeatmap = "heatmap"
	TypeCombo   = "combo"

	// reported for placeholder figures
	TypeEmpty = "empty"
	TypeError = "error"
)

// Types lists the renderable chart families.
func Types() []string {
	return []string{TypeBar, TypeLine, TypeScatter, TypePie, TypeFunnel, TypeHeatmap, TypeCombo}
}

// IsKnownType reports whether t is one of Types.
func IsKnownType(t string) bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Profile is the column metadata the decision table looks at.
type Profile struct {
	Rows          int
	Numeric       int
	Categorical   int
	HasDateColumn bool
}

// ProfileTable counts numeric and categorical columns. A column is numeric
// when all its non-null values are numbers; date-like means the name
// contains "date" or "time".
func ProfileTable(t *tabular.Table) Profile {
	p := Profile{Rows: t.Len()}
	for _, col := range t.Columns {
		if t.IsNumeric(col) {
			p.Numeric++
		} else {
			p.Categorical++
		}
		name := strings.ToLower(col)
		if strings.Contains(name, "date") || strings.Contains(name, "time") {
			p.HasDateColumn = true
		}
	}
	return p
}

// SuggestChartType maps a profile to a chart type. It is a pure function.
func SuggestChartType(p Profile) string {
	switch {
	case p.Rows <= 2:
		return TypeBar
	case p.Categorical == 1 && p.Numeric == 1:
		if p.Rows > 10 {
			if p.HasDateColumn {
				return TypeLine
			}
			return TypeBar
		}
		if p.Rows <= 8 {
			return TypePie
		}
		return TypeBar
	case p.Numeric >= 2:
		return TypeScatter
	default:
		return TypeBar
	}
}

var (
	xKeywords = []string{"date", "time", "month", "day"}
	yKeywords = []string{"revenue", "spend", "roas", "cost", "amount", "value", "count"}
)

// DetectAxes picks x and y columns. x prefers a date-like name, then the
// first categorical column, then the first column. y prefers the first
// numeric column matching a keyword (in keyword order), then the first
// numeric column, then the last column.
func DetectAxes(t *tabular.Table) (x, y string) {
	if len(t.Columns) == 0 {
		return "", ""
	}

	for _, col := range t.Columns {
		if containsAny(strings.ToLower(col), xKeywords) {
			x = col
			break
		}
	}
	if x == "" {
		if cats := t.CategoricalColumns(); len(cats) > 0 {
			x = cats[0]
		} else {
			x = t.Columns[0]
		}
	}

	numeric := t.NumericColumns()
	if len(numeric) > 0 {
	search:
		for _, kw := range yKeywords {
			for _, col := range numeric {
				if strings.Contains(strings.ToLower(col), kw) {
					y = col
					break search
				}
			}
		}
		if y == "" {
			y = numeric[0]
		}
	} else {
		y = t.Columns[len(t.Columns)-1]
	}
	return x, y
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
