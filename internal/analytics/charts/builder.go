// Package charts turns tabular tool output into Plotly figure specs.
package charts

import (
	"fmt"
	"strings"

	"marketing-analyst/internal/analytics/tabular"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/models"
)

const maxErrorTitle = 50

// Request describes one chart. Empty X or Y are auto-detected; an empty or
// "auto" ChartType runs the decision table.
type Request struct {
	Data      string
	ChartType string
	Title     string
	X         string
	Y         string
	Color     string
}

// Spec is the chart builder output as handed back to the model.
type Spec struct {
	Title       string             `json:"title"`
	ChartType   string             `json:"chart_type"`
	ColumnsUsed models.ColumnsUsed `json:"columns_used"`
	PlotlyJSON  Figure             `json:"plotly_json"`
	DataPoints  int                `json:"data_points"`
	Error       string             `json:"error,omitempty"`
}

// Renderable reports whether the spec carries a real chart.
func (s *Spec) Renderable() bool {
	return s != nil && s.Error == "" && s.ChartType != TypeEmpty && s.ChartType != TypeError && s.DataPoints > 0
}

// Payload converts the spec to its response shape.
func (s *Spec) Payload() models.PlotPayload {
	return models.PlotPayload{
		Title:       s.Title,
		PlotlyJSON:  s.PlotlyJSON,
		ChartType:   s.ChartType,
		DataPoints:  s.DataPoints,
		ColumnsUsed: s.ColumnsUsed,
	}
}

// Build never fails: unusable input produces an error chart instead.
func Build(req Request) (spec *Spec) {
	defer func() {
		if r := recover(); r != nil {
			spec = errorSpec(req.Title, fmt.Errorf("panic: %v", r))
		}
	}()

	table, err := tabular.ParseString(req.Data)
	if err != nil {
		return errorSpec(req.Title, err)
	}
	if table.Len() == 0 {
		f := emptyFigure(req.Title)
		applyStyling(f)
		return &Spec{Title: req.Title, ChartType: TypeEmpty, PlotlyJSON: f}
	}

	chartType := strings.ToLower(strings.TrimSpace(req.ChartType))
	if chartType == "" || chartType == TypeAuto {
		chartType = SuggestChartType(ProfileTable(table))
	} else if !IsKnownType(chartType) {
		chartType = TypeBar
	}

	a := axes{x: req.X, y: req.Y, color: req.Color}
	if a.x == "" || a.y == "" {
		x, y := DetectAxes(table)
		if a.x == "" {
			a.x = x
		}
		if a.y == "" {
			a.y = y
		}
	}

	f, err := renderers[chartType](table, req.Title, a)
	if err != nil {
		return errorSpec(req.Title, err)
	}
	applyStyling(f)

	used := models.ColumnsUsed{X: a.x, Y: a.y}
	if a.color != "" && table.HasColumn(a.color) {
		used.Color = a.color
	}
	return &Spec{
		Title:       req.Title,
		ChartType:   chartType,
		ColumnsUsed: used,
		PlotlyJSON:  f,
		DataPoints:  table.Len(),
	}
}

func errorSpec(title string, err error) *Spec {
	wrapped := apperrors.NewChartBuildError(err)
	msg := err.Error()
	short := msg
	if r := []rune(short); len(r) > maxErrorTitle {
		short = string(r[:maxErrorTitle])
	}
	f := emptyFigure(fmt.Sprintf("%s (Error: %s)", title, short))
	applyStyling(f)
	return &Spec{
		Title:      title,
		ChartType:  TypeError,
		PlotlyJSON: f,
		Error:      wrapped.Details,
	}
}
