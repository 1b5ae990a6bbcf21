package agent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-analyst/pkg/registry"
)

func TestCatalog_DefaultTools(t *testing.T) {
	now := time.Date(2025, 9, 18, 0, 0, 0, 0, time.UTC)
	cat := Catalog(DefaultTools(&fakeRunner{}, &fakeSynth{}), now)

	require.NoError(t, cat.Validate())
	require.Len(t, cat.Tools, 4)

	query, ok := cat.Find(ToolQueryMarketingData)
	require.True(t, ok)
	assert.Equal(t, "data", query.Category)
	assert.Contains(t, query.ErrorCodes, "UNKNOWN_TEMPLATE")
	assert.Contains(t, query.ErrorCodes, "INTERNAL_ERROR")
	assert.ElementsMatch(t, []interface{}{"template", "date_from", "date_to"}, query.InputSchema["required"])

	viz, ok := cat.Find(ToolCreateVisualization)
	require.True(t, ok)
	props := viz.InputSchema["properties"].(map[string]interface{})
	chartType := props["chart_type"].(map[string]interface{})
	assert.Equal(t, "auto", chartType["default"])
}

func TestCatalog_RoundTripIsStable(t *testing.T) {
	now := time.Date(2025, 9, 18, 0, 0, 0, 0, time.UTC)
	tools := DefaultTools(&fakeRunner{}, &fakeSynth{})
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, Catalog(tools, now).Save(path))

	loaded, err := registry.LoadCatalog(path)
	require.NoError(t, err)
	for _, tool := range tools {
		assert.False(t, loaded.Upsert(CatalogEntry(tool), now.Add(time.Hour)), tool.Name())
	}
	assert.Equal(t, "2025-09-18T00:00:00Z", loaded.LastUpdated)
}
