package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var querySchema = JSONSchema{
	Type: "object",
	Properties: map[string]Property{
		"template":  {Type: "string", Enum: []string{"KPI_SUMMARY", "TOP_CAMPAIGNS"}},
		"date_from": {Type: "string", Pattern: DatePattern},
		"limit":     {Type: "integer", Minimum: floatPtr(1)},
		"data":      {Description: "any JSON value"},
	},
	Required: []string{"template"},
}

func floatPtr(f float64) *float64 { return &f }

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		doc       map[string]interface{}
		wantValid bool
		field     string
	}{
		{"valid", map[string]interface{}{"template": "KPI_SUMMARY", "date_from": "2025-08-01"}, true, ""},
		{"missing required", map[string]interface{}{"date_from": "2025-08-01"}, false, "(root)"},
		{"enum", map[string]interface{}{"template": "DROP_TABLE"}, false, "template"},
		{"pattern", map[string]interface{}{"template": "KPI_SUMMARY", "date_from": "08/01/2025"}, false, "date_from"},
		{"minimum", map[string]interface{}{"template": "KPI_SUMMARY", "limit": 0}, false, "limit"},
		{"untyped accepts array", map[string]interface{}{"template": "KPI_SUMMARY", "data": []interface{}{1, "a"}}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Validate(querySchema, tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid, res.Error())
			if tt.field != "" {
				assert.True(t, res.HasErrors(tt.field), res.Error())
			}
		})
	}
}

func TestValidateJSON(t *testing.T) {
	res, err := ValidateJSON(querySchema, []byte(`{"template":"TOP_CAMPAIGNS"}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = ValidateJSON(querySchema, []byte(`{not json`))
	assert.Error(t, err)
}

func TestJSONSchema_Map(t *testing.T) {
	m := JSONSchema{Type: "object"}.Map()
	assert.Equal(t, "object", m["type"])
	assert.NotNil(t, m["properties"])

	m = querySchema.Map()
	props := m["properties"].(map[string]interface{})
	assert.Contains(t, props, "template")
	assert.Equal(t, []interface{}{"template"}, m["required"])
}

func TestValidateDate(t *testing.T) {
	assert.True(t, ValidateDate("2025-09-18"))
	assert.False(t, ValidateDate("2025-9-18"))
	assert.False(t, ValidateDate(""))
}
