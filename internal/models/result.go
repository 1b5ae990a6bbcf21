// internal/models/result.go
package models

// QueryResult is a fully materialized result set. Columns keeps the
// projection order; each row maps column name to value.
type QueryResult struct {
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"data"`
	RowCount int                      `json:"row_count"`
}

// RowsAsArrays returns the rows as value arrays in column order.
func (r *QueryResult) RowsAsArrays() [][]interface{} {
	if r == nil {
		return [][]interface{}{}
	}
	out := make([][]interface{}, 0, len(r.Rows))
	for _, row := range r.Rows {
		values := make([]interface{}, len(r.Columns))
		for i, col := range r.Columns {
			values[i] = row[col]
		}
		out = append(out, values)
	}
	return out
}
