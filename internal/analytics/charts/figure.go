package charts

import (
	"fmt"
	"math"

	"marketing-analyst/internal/analytics/tabular"
)

// Palette is applied to traces in order.
var Palette = []string{
	"#667eea", "#764ba2", "#f093fb", "#f5576c",
	"#4facfe", "#00f2fe", "#43e97b", "#38f9d7",
}

const noDataText = "No data available for visualization"

// Figure is a Plotly figure: {"data": [...traces], "layout": {...}}.
type Figure = map[string]interface{}

type axes struct {
	x, y, color string
}

type renderFunc func(t *tabular.Table, title string, a axes) (Figure, error)

var renderers = map[string]renderFunc{
	TypeBar:     barFigure,
	TypeLine:    lineFigure,
	TypeScatter: scatterFigure,
	TypePie:     pieFigure,
	TypeFunnel:  funnelFigure,
	TypeHeatmap: heatmapFigure,
	TypeCombo:   comboFigure,
}

func newFigure(title string, traces ...map[string]interface{}) Figure {
	data := make([]interface{}, 0, len(traces))
	for _, tr := range traces {
		data = append(data, tr)
	}
	return Figure{
		"data":   data,
		"layout": map[string]interface{}{"title": map[string]interface{}{"text": title}},
	}
}

func layoutOf(f Figure) map[string]interface{} {
	return f["layout"].(map[string]interface{})
}

// emptyFigure is the "no data" placeholder.
func emptyFigure(title string) Figure {
	f := newFigure(title)
	layoutOf(f)["annotations"] = []interface{}{
		map[string]interface{}{
			"text":      noDataText,
			"xref":      "paper",
			"yref":      "paper",
			"x":         0.5,
			"y":         0.5,
			"xanchor":   "center",
			"yanchor":   "middle",
			"showarrow": false,
			"font":      map[string]interface{}{"size": 16},
		},
	}
	return f
}

func requireColumns(t *tabular.Table, cols ...string) error {
	for _, c := range cols {
		if c == "" {
			return fmt.Errorf("no column selected for axis")
		}
		if !t.HasColumn(c) {
			return fmt.Errorf("column %q not found in data", c)
		}
	}
	return nil
}

// group splits row indexes by the color column, in first-seen order. With no
// usable color column everything lands in one unnamed group.
func group(t *tabular.Table, color string) (names []string, rows map[string][]int) {
	rows = make(map[string][]int)
	if color == "" || !t.HasColumn(color) {
		all := make([]int, t.Len())
		for i := range all {
			all[i] = i
		}
		return []string{""}, map[string][]int{"": all}
	}
	for i, row := range t.Rows {
		key := tabular.Label(row[color])
		if _, ok := rows[key]; !ok {
			names = append(names, key)
		}
		rows[key] = append(rows[key], i)
	}
	return names, rows
}

func pick(t *tabular.Table, col string, idx []int) []interface{} {
	out := make([]interface{}, len(idx))
	for i, r := range idx {
		out[i] = t.Rows[r][col]
	}
	return out
}

func colorAt(i int) string {
	return Palette[i%len(Palette)]
}

func seriesFigure(t *tabular.Table, title string, a axes, build func(i int, name string, x, y []interface{}) map[string]interface{}) (Figure, error) {
	if err := requireColumns(t, a.x, a.y); err != nil {
		return nil, err
	}
	names, rows := group(t, a.color)
	traces := make([]map[string]interface{}, 0, len(names))
	for i, name := range names {
		idx := rows[name]
		tr := build(i, name, pick(t, a.x, idx), pick(t, a.y, idx))
		if name != "" {
			tr["name"] = name
			tr["legendgroup"] = name
		} else {
			tr["name"] = a.y
		}
		traces = append(traces, tr)
	}
	f := newFigure(title, traces...)
	layout := layoutOf(f)
	layout["xaxis"] = map[string]interface{}{"title": map[string]interface{}{"text": a.x}}
	layout["yaxis"] = map[string]interface{}{"title": map[string]interface{}{"text": a.y}}
	if a.color != "" && t.HasColumn(a.color) {
		layout["legend"] = map[string]interface{}{"title": map[string]interface{}{"text": a.color}}
	}
	return f, nil
}

func barFigure(t *tabular.Table, title string, a axes) (Figure, error) {
	f, err := seriesFigure(t, title, a, func(i int, _ string, x, y []interface{}) map[string]interface{} {
		return map[string]interface{}{
			"type":         "bar",
			"x":            x,
			"y":            y,
			"marker":       map[string]interface{}{"color": colorAt(i)},
			"texttemplate": "%{y}",
			"textposition": "outside",
		}
	})
	if err != nil {
		return nil, err
	}
	layoutOf(f)["barmode"] = "group"
	return f, nil
}

func lineFigure(t *tabular.Table, title string, a axes) (Figure, error) {
	return seriesFigure(t, title, a, func(i int, _ string, x, y []interface{}) map[string]interface{} {
		return map[string]interface{}{
			"type":   "scatter",
			"mode":   "lines+markers",
			"x":      x,
			"y":      y,
			"line":   map[string]interface{}{"color": colorAt(i)},
			"marker": map[string]interface{}{"size": 6},
		}
	})
}

func scatterFigure(t *tabular.Table, title string, a axes) (Figure, error) {
	return seriesFigure(t, title, a, func(i int, _ string, x, y []interface{}) map[string]interface{} {
		return map[string]interface{}{
			"type":   "scatter",
			"mode":   "markers",
			"x":      x,
			"y":      y,
			"marker": map[string]interface{}{"color": colorAt(i)},
		}
	})
}

func pieFigure(t *tabular.Table, title string, a axes) (Figure, error) {
	if err := requireColumns(t, a.x, a.y); err != nil {
		return nil, err
	}
	return newFigure(title, map[string]interface{}{
		"type":   "pie",
		"labels": t.Values(a.x),
		"values": t.Values(a.y),
		"marker": map[string]interface{}{"colors": Palette},
	}), nil
}

func funnelFigure(t *tabular.Table, title string, a axes) (Figure, error) {
	if err := requireColumns(t, a.x, a.y); err != nil {
		return nil, err
	}
	f := newFigure(title, map[string]interface{}{
		"type":   "funnel",
		"x":      t.Values(a.y),
		"y":      t.Values(a.x),
		"marker": map[string]interface{}{"color": colorAt(0)},
	})
	layout := layoutOf(f)
	layout["xaxis"] = map[string]interface{}{"title": map[string]interface{}{"text": a.y}}
	layout["yaxis"] = map[string]interface{}{"title": map[string]interface{}{"text": a.x}}
	return f, nil
}

// heatmapFigure pivots sum(y) by x and the color column (or the third
// column). Narrower tables get the correlation matrix of their numeric
// columns.
func heatmapFigure(t *tabular.Table, title string, a axes) (Figure, error) {
	if len(t.Columns) >= 3 {
		pivotCol := a.color
		if pivotCol == "" {
			pivotCol = t.Columns[2]
		}
		if err := requireColumns(t, a.x, a.y, pivotCol); err != nil {
			return nil, err
		}
		return pivotHeatmap(t, title, a.x, a.y, pivotCol), nil
	}

	numeric := t.NumericColumns()
	if len(numeric) == 0 {
		return emptyFigure(title), nil
	}
	z := make([][]interface{}, len(numeric))
	for i, ci := range numeric {
		z[i] = make([]interface{}, len(numeric))
		for j, cj := range numeric {
			if r, ok := pearson(t, ci, cj); ok {
				z[i][j] = r
			}
		}
	}
	return newFigure(title, map[string]interface{}{
		"type":       "heatmap",
		"x":          numeric,
		"y":          numeric,
		"z":          z,
		"colorscale": "RdBu",
		"zmin":       -1,
		"zmax":       1,
	}), nil
}

func pivotHeatmap(t *tabular.Table, title, index, value, columns string) Figure {
	var rowKeys, colKeys []string
	rowPos := map[string]int{}
	colPos := map[string]int{}
	sums := map[[2]int]float64{}
	seen := map[[2]int]bool{}

	for _, row := range t.Rows {
		rk, ck := tabular.Label(row[index]), tabular.Label(row[columns])
		if _, ok := rowPos[rk]; !ok {
			rowPos[rk] = len(rowKeys)
			rowKeys = append(rowKeys, rk)
		}
		if _, ok := colPos[ck]; !ok {
			colPos[ck] = len(colKeys)
			colKeys = append(colKeys, ck)
		}
		key := [2]int{rowPos[rk], colPos[ck]}
		if f, ok := tabular.ToFloat(row[value]); ok {
			sums[key] += f
			seen[key] = true
		}
	}

	z := make([][]interface{}, len(rowKeys))
	for i := range rowKeys {
		z[i] = make([]interface{}, len(colKeys))
		for j := range colKeys {
			if seen[[2]int{i, j}] {
				z[i][j] = sums[[2]int{i, j}]
			}
		}
	}

	f := newFigure(title, map[string]interface{}{
		"type":       "heatmap",
		"x":          colKeys,
		"y":          rowKeys,
		"z":          z,
		"colorscale": "Viridis",
	})
	layout := layoutOf(f)
	layout["xaxis"] = map[string]interface{}{"title": map[string]interface{}{"text": columns}}
	layout["yaxis"] = map[string]interface{}{"title": map[string]interface{}{"text": index}}
	return f
}

// pearson uses pairwise complete rows. Undefined correlations report false.
func pearson(t *tabular.Table, a, b string) (float64, bool) {
	var xs, ys []float64
	for _, row := range t.Rows {
		x, okx := tabular.ToFloat(row[a])
		y, oky := tabular.ToFloat(row[b])
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return 0, false
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	r := sxy / math.Sqrt(sxx*syy)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// comboFigure draws y as bars and the next numeric series as a line on a
// secondary axis.
func comboFigure(t *tabular.Table, title string, a axes) (Figure, error) {
	if err := requireColumns(t, a.x, a.y); err != nil {
		return nil, err
	}
	x := t.Values(a.x)
	traces := []map[string]interface{}{{
		"type":   "bar",
		"x":      x,
		"y":      t.Values(a.y),
		"name":   a.y,
		"marker": map[string]interface{}{"color": Palette[0]},
		"yaxis":  "y",
	}}

	layoutExtras := map[string]interface{}{
		"xaxis": map[string]interface{}{"title": map[string]interface{}{"text": a.x}},
		"yaxis": map[string]interface{}{"title": map[string]interface{}{"text": a.y}},
	}

	numeric := t.NumericColumns()
	if len(numeric) > 1 {
		second := numeric[1]
		if second == a.y {
			second = numeric[0]
		}
		traces = append(traces, map[string]interface{}{
			"type":  "scatter",
			"mode":  "lines+markers",
			"x":     x,
			"y":     t.Values(second),
			"name":  second,
			"line":  map[string]interface{}{"color": Palette[1], "width": 3},
			"yaxis": "y2",
		})
		layoutExtras["yaxis2"] = map[string]interface{}{
			"title":      map[string]interface{}{"text": second},
			"overlaying": "y",
			"side":       "right",
		}
	}

	f := newFigure(title, traces...)
	for k, v := range layoutExtras {
		layoutOf(f)[k] = v
	}
	return f, nil
}

// applyStyling sets the shared look on every rendered figure.
func applyStyling(f Figure) {
	layout := layoutOf(f)
	layout["font"] = map[string]interface{}{"family": "Inter, sans-serif"}
	layout["plot_bgcolor"] = "rgba(0,0,0,0)"
	layout["paper_bgcolor"] = "rgba(0,0,0,0)"
	if title, ok := layout["title"].(map[string]interface{}); ok {
		title["x"] = 0.5
		title["font"] = map[string]interface{}{"size": 16}
	}
	layout["showlegend"] = true

	legend, _ := layout["legend"].(map[string]interface{})
	if legend == nil {
		legend = map[string]interface{}{}
	}
	legend["orientation"] = "h"
	legend["yanchor"] = "bottom"
	legend["y"] = 1.02
	legend["xanchor"] = "right"
	legend["x"] = 1
	layout["legend"] = legend

	layout["margin"] = map[string]interface{}{"l": 40, "r": 40, "t": 60, "b": 40}

	for _, name := range []string{"xaxis", "yaxis", "yaxis2"} {
		ax, ok := layout[name].(map[string]interface{})
		if !ok {
			if name == "yaxis2" {
				continue
			}
			ax = map[string]interface{}{}
		}
		ax["showgrid"] = true
		ax["gridwidth"] = 1
		ax["gridcolor"] = "rgba(128,128,128,0.2)"
		if title, ok := ax["title"].(map[string]interface{}); ok {
			title["font"] = map[string]interface{}{"size": 12}
		}
		layout[name] = ax
	}
}
