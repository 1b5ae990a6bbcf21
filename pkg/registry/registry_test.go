package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(name string) ToolEntry {
	return ToolEntry{
		Name:        name,
		Description: "runs " + name,
		Category:    "data",
		InputSchema: map[string]interface{}{"type": "object"},
		ErrorCodes:  []string{"QUERY_EXECUTION_FAILED"},
		Tags:        []string{},
	}
}

var (
	t0 = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

// ==========================
// Persistence
// ==========================

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tools.json")
	cat := NewCatalog(t0)
	cat.Upsert(entry("query_marketing_data"), t0)

	require.NoError(t, cat.Save(path))

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, CatalogVersion, loaded.Version)
	assert.Equal(t, "2025-09-01T12:00:00Z", loaded.LastUpdated)
	require.Len(t, loaded.Tools, 1)
	assert.Equal(t, "query_marketing_data", loaded.Tools[0].Name)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// ==========================
// Upsert
// ==========================

func TestUpsert(t *testing.T) {
	cat := NewCatalog(t0)

	assert.True(t, cat.Upsert(entry("a"), t0))
	assert.True(t, cat.Upsert(entry("b"), t0))
	assert.False(t, cat.Upsert(entry("a"), t1), "unchanged entry")
	assert.Equal(t, "2025-09-01T12:00:00Z", cat.LastUpdated)

	changed := entry("a")
	changed.Description = "new text"
	assert.True(t, cat.Upsert(changed, t1))
	assert.Equal(t, "2025-09-01T13:00:00Z", cat.LastUpdated)

	require.Len(t, cat.Tools, 2)
	assert.Equal(t, "a", cat.Tools[0].Name)
	got, ok := cat.Find("a")
	require.True(t, ok)
	assert.Equal(t, "new text", got.Description)

	_, ok = cat.Find("zzz")
	assert.False(t, ok)
}

// ==========================
// Validate
// ==========================

func TestValidate(t *testing.T) {
	noSchema := entry("b")
	noSchema.InputSchema = nil
	arraySchema := entry("c")
	arraySchema.InputSchema = map[string]interface{}{"type": "array"}
	noDescription := entry("d")
	noDescription.Description = ""

	tests := []struct {
		name    string
		tools   []ToolEntry
		wantErr string
	}{
		{"valid", []ToolEntry{entry("a"), entry("b")}, ""},
		{"empty", nil, "no tools"},
		{"duplicate", []ToolEntry{entry("a"), entry("a")}, "duplicate tool name: a"},
		{"missing name", []ToolEntry{entry("")}, "name"},
		{"missing schema", []ToolEntry{noSchema}, "inputSchema"},
		{"non-object schema", []ToolEntry{arraySchema}, "object schema"},
		{"missing description", []ToolEntry{noDescription}, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &ToolCatalog{Tools: tt.tools}
			err := cat.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
