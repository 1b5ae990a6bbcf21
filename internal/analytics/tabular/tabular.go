// Package tabular decodes the JSON tables passed between tools while keeping
// column order.
package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"marketing-analyst/internal/models"
)

var ErrNoData = errors.New("no data provided")

// Table is an ordered, row-oriented table.
type Table struct {
	Columns  []string
	Rows     []map[string]interface{}
	Template string
}

// Parse accepts a list of records, an object with "data" (optionally
// "columns" and "template"), or a column-oriented object whose every value
// is an array.
func Parse(data []byte) (*Table, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoData
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON data: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON data: trailing content")
	}

	switch val := v.(type) {
	case []interface{}:
		return fromRecords(val, nil)
	case *object:
		return fromObject(val)
	case nil:
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("unsupported data shape %T", v)
	}
}

// ParseString is Parse for tool arguments.
func ParseString(s string) (*Table, error) {
	return Parse([]byte(s))
}

// FromResult wraps an executor result.
func FromResult(r *models.QueryResult, template string) *Table {
	if r == nil {
		return &Table{Template: template}
	}
	return &Table{Columns: r.Columns, Rows: r.Rows, Template: template}
}

func fromObject(obj *object) (*Table, error) {
	if raw, ok := obj.values["data"]; ok {
		records, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("field data must be an array")
		}
		var declared []string
		if cols, ok := obj.values["columns"].([]interface{}); ok {
			for _, c := range cols {
				if s, ok := c.(string); ok {
					declared = append(declared, s)
				}
			}
		}
		t, err := fromRecords(records, declared)
		if err != nil {
			return nil, err
		}
		if tmpl, ok := obj.values["template"].(string); ok {
			t.Template = tmpl
		}
		return t, nil
	}

	if msg, ok := obj.values["error"].(string); ok {
		return nil, fmt.Errorf("input carries an error: %s", msg)
	}

	// column oriented
	t := &Table{Columns: append([]string(nil), obj.keys...)}
	length := 0
	for _, k := range obj.keys {
		arr, ok := obj.values[k].([]interface{})
		if !ok {
			return nil, fmt.Errorf("unsupported data shape: column %q is not an array", k)
		}
		if len(arr) > length {
			length = len(arr)
		}
	}
	for i := 0; i < length; i++ {
		row := make(map[string]interface{}, len(obj.keys))
		for _, k := range obj.keys {
			arr := obj.values[k].([]interface{})
			if i < len(arr) {
				row[k] = toPlain(arr[i])
			} else {
				row[k] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func fromRecords(records []interface{}, declared []string) (*Table, error) {
	t := &Table{Rows: make([]map[string]interface{}, 0, len(records))}
	seen := make(map[string]bool)
	addColumn := func(c string) {
		if !seen[c] {
			seen[c] = true
			t.Columns = append(t.Columns, c)
		}
	}
	for _, c := range declared {
		addColumn(c)
	}

	for i, rec := range records {
		switch r := rec.(type) {
		case *object:
			row := make(map[string]interface{}, len(r.keys))
			for _, k := range r.keys {
				addColumn(k)
				row[k] = toPlain(r.values[k])
			}
			t.Rows = append(t.Rows, row)
		case []interface{}:
			// positional rows need declared columns
			if len(declared) == 0 {
				return nil, fmt.Errorf("row %d is an array but no columns were given", i)
			}
			row := make(map[string]interface{}, len(declared))
			for j, c := range declared {
				if j < len(r) {
					row[c] = toPlain(r[j])
				} else {
					row[c] = nil
				}
			}
			t.Rows = append(t.Rows, row)
		default:
			return nil, fmt.Errorf("row %d is not an object", i)
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Values returns the column as a slice, nil where a row lacks it.
func (t *Table) Values(name string) []interface{} {
	out := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[name]
	}
	return out
}

// Floats returns the numeric values of a column, skipping nulls and
// non-numbers.
func (t *Table) Floats(name string) []float64 {
	var out []float64
	for _, row := range t.Rows {
		if f, ok := ToFloat(row[name]); ok {
			out = append(out, f)
		}
	}
	return out
}

// IsNumeric reports whether every non-null value of the column is a number.
// A column with no values at all is not numeric.
func (t *Table) IsNumeric(name string) bool {
	found := false
	for _, row := range t.Rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		if _, ok := ToFloat(v); !ok {
			return false
		}
		found = true
	}
	return found
}

// NumericColumns lists numeric columns in table order.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if t.IsNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

// CategoricalColumns lists the remaining columns in table order.
func (t *Table) CategoricalColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if !t.IsNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

// ToFloat converts JSON and driver numbers to float64. Strings and bools
// are not numbers.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Label renders a cell as an axis label.
func Label(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// object is a JSON object with its key order.
type object struct {
	keys   []string
	values map[string]interface{}
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &object{values: make(map[string]interface{})}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.values[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.values[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []interface{}{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return t, nil
	}
}

// toPlain converts decoded cells to encoding/json shapes.
func toPlain(v interface{}) interface{} {
	switch val := v.(type) {
	case *object:
		m := make(map[string]interface{}, len(val.values))
		for k, inner := range val.values {
			m[k] = toPlain(inner)
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = toPlain(inner)
		}
		return out
	default:
		return val
	}
}
