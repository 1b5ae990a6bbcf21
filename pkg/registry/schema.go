// pkg/registry/schema.go
package registry

// ToolCatalog is the published list of tools the assistant exposes to the
// language model, kept under version control next to the configs.
type ToolCatalog struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Tools       []ToolEntry `json:"tools"`
}

type ToolEntry struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	ErrorCodes  []string               `json:"errorCodes"`
	Tags        []string               `json:"tags"`
}
