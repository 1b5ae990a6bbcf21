package synthesizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"marketing-analyst/internal/common/logger"
)

const schemaKey = "schema"

// fallbackSchema is used when the metadata file is missing or unreadable.
const fallbackSchema = `
Table: curated_pl_marketing_wide_synth
Description: Marketing performance and loan lifecycle data

Key Columns:
- snapshot_date (DATE): Date of marketing event
- customer_id (VARCHAR): Unique customer identifier
- application_id (VARCHAR): Application reference number
- loan_id (VARCHAR): Loan identifier (if funded)
- campaign_name (VARCHAR): Marketing campaign name
- first_touch_channel (VARCHAR): First marketing channel (Search, Social, Email, Display, Direct)
- mkt_cost_daily_alloc (NUMERIC): Daily allocated marketing cost
- revenue_daily (NUMERIC): Daily revenue generated
- funded_flag (BOOLEAN): Whether loan was funded
- funded_amt (NUMERIC): Amount of funded loan
- approved_amt (NUMERIC): Approved loan amount
- segment_name (VARCHAR): Customer segment (Retail, SME, Premium)
- fico (INT): Customer FICO score
- annual_income (NUMERIC): Customer annual income
- risk_score (NUMERIC): Risk score
- purpose_code (VARCHAR): Loan purpose
- term_months (INT): Loan term in months
`

// SchemaDescriber supplies the dataset description embedded in prompts.
type SchemaDescriber interface {
	Describe() string
}

// TableSchema is one entry of the metadata file.
type TableSchema struct {
	Table       string         `json:"table"`
	Description string         `json:"description"`
	Columns     []ColumnSchema `json:"columns"`
}

type ColumnSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SchemaSource reads the metadata file and keeps the formatted text for the
// configured TTL.
type SchemaSource struct {
	path  string
	cache *ttlcache.Cache[string, string]
	log   logger.Logger
}

func NewSchemaSource(path string, ttl time.Duration, log logger.Logger) *SchemaSource {
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	return &SchemaSource{path: path, cache: cache, log: log}
}

// Describe never fails; the fallback column list stands in for a bad file.
func (s *SchemaSource) Describe() string {
	if item := s.cache.Get(schemaKey); item != nil {
		return item.Value()
	}

	text, err := LoadSchemaFile(s.path)
	if err != nil {
		s.log.Warn("Schema metadata unavailable, using fallback description", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		text = fallbackSchema
	}
	s.cache.Set(schemaKey, text, ttlcache.DefaultTTL)
	return text
}

// LoadSchemaFile reads and formats a metadata file.
func LoadSchemaFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var tables []TableSchema
	if err := json.Unmarshal(raw, &tables); err != nil {
		return "", fmt.Errorf("invalid schema metadata: %w", err)
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("schema metadata lists no tables")
	}
	return FormatSchema(tables), nil
}

// FormatSchema renders tables the way prompts show them.
func FormatSchema(tables []TableSchema) string {
	var b strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&b, "\nTable: %s\n", t.Table)
		fmt.Fprintf(&b, "Description: %s\n\n", t.Description)
		b.WriteString("Columns:\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "- %s (%s): %s\n", c.Name, c.Type, c.Description)
		}
	}
	return b.String()
}
