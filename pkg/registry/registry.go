// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const CatalogVersion = "1.0.0"

// NewCatalog returns an empty catalog stamped with now.
func NewCatalog(now time.Time) *ToolCatalog {
	return &ToolCatalog{
		Version:     CatalogVersion,
		LastUpdated: now.UTC().Format(time.RFC3339),
		Tools:       []ToolEntry{},
	}
}

func LoadCatalog(path string) (*ToolCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat ToolCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Save writes the catalog as indented JSON, creating the directory if needed.
func (c *ToolCatalog) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

func (c *ToolCatalog) Find(name string) (ToolEntry, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolEntry{}, false
}

// Upsert replaces the entry with the same name in place, or appends it.
// It reports whether the catalog changed.
func (c *ToolCatalog) Upsert(entry ToolEntry, now time.Time) bool {
	for i := range c.Tools {
		if c.Tools[i].Name != entry.Name {
			continue
		}
		if sameEntry(c.Tools[i], entry) {
			return false
		}
		c.Tools[i] = entry
		c.LastUpdated = now.UTC().Format(time.RFC3339)
		return true
	}
	c.Tools = append(c.Tools, entry)
	c.LastUpdated = now.UTC().Format(time.RFC3339)
	return true
}

// Validate checks every entry is complete and names are unique.
func (c *ToolCatalog) Validate() error {
	if len(c.Tools) == 0 {
		return fmt.Errorf("catalog contains no tools")
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, t := range c.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool missing required field: name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tool name: %s", t.Name)
		}
		seen[t.Name] = true

		if t.Description == "" {
			return fmt.Errorf("tool %s missing required field: description", t.Name)
		}
		if t.InputSchema == nil {
			return fmt.Errorf("tool %s missing required field: inputSchema", t.Name)
		}
		if typ, _ := t.InputSchema["type"].(string); typ != "object" {
			return fmt.Errorf("tool %s: inputSchema must be an object schema", t.Name)
		}
	}
	return nil
}

func sameEntry(a, b ToolEntry) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ra) == string(rb)
}
