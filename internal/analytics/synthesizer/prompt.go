package synthesizer

import (
	"fmt"
	"strings"

	"marketing-analyst/internal/models"
)

var sqlRules = []string{
	"1. Only SELECT statements - no INSERT/UPDATE/DELETE",
	"2. Always include WHERE clause with date filter: snapshot_date BETWEEN :date_from AND :date_to",
	"3. Add segment/channel filters using the provided parameters (:segment, :channel)",
	"4. Use aggregate functions (SUM, COUNT, AVG, MIN, MAX) when appropriate",
	"5. Include calculated fields like funding_rate, cost_per_application, approval_rate when relevant",
	"6. Use meaningful column aliases for business users",
	"7. Add appropriate GROUP BY and ORDER BY clauses",
	"8. Limit results to reasonable numbers (use LIMIT for large result sets, typically LIMIT 100-1000)",
	"9. Handle division by zero with CASE statements",
	"10. Use DISTINCT for unique counts when needed",
	"11. Consider customer lifecycle flags (is_apply_day, is_fund_day, etc.) for event-based analysis",
	"12. Use proper date functions for time-based grouping (DATE(), strftime or date_trunc)",
	"13. Reference correct column names and types from the schema above",
	"14. For customer segmentation, use the segment_name column",
	"15. For financial metrics, consider principal_outstanding, interest_paid, ltv_to_date",
}

// BuildPrompt assembles the SQL drafting prompt.
func BuildPrompt(question, schema string, filters models.Filters) string {
	parts := []string{
		"You are an expert SQL developer. Generate a safe, read-only SELECT query for the following question.",
		"",
		"QUESTION: " + question,
		"",
		"DATABASE SCHEMA:",
		schema,
		"",
		"REQUIRED FILTERS (already applied):",
		fmt.Sprintf("- Date range: snapshot_date BETWEEN '%s' AND '%s'", filters.DateFrom, filters.DateTo),
	}
	if s := filters.ActiveSegment(); s != "" {
		parts = append(parts, "- Customer segment: "+s+" (use :segment)")
	}
	if c := filters.ActiveChannel(); c != "" {
		parts = append(parts, "- Marketing channel: "+c+" (use :channel)")
	}
	parts = append(parts, "", "RULES:")
	parts = append(parts, sqlRules...)
	parts = append(parts, "", "Generate ONLY the SQL query, nothing else:")
	return strings.Join(parts, "\n")
}
