// internal/models/chat.go
package models

// ChatTurn is one prior message of the conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history"`
	Filters Filters    `json:"filters"`
}

type TablePayload struct {
	Name    string          `json:"name"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

type ColumnsUsed struct {
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`
	Color string `json:"color,omitempty"`
}

type PlotPayload struct {
	Title       string                 `json:"title"`
	PlotlyJSON  map[string]interface{} `json:"plotly_json"`
	ChartType   string                 `json:"chart_type,omitempty"`
	DataPoints  int                    `json:"data_points"`
	ColumnsUsed ColumnsUsed            `json:"columns_used"`
}

type ChatResponse struct {
	Answer  string                 `json:"answer"`
	Actions []string               `json:"actions"`
	SQL     map[string]interface{} `json:"sql"`
	Tables  []TablePayload         `json:"tables"`
	Plots   []PlotPayload          `json:"plots"`
	Extras  map[string]interface{} `json:"extras"`
}
