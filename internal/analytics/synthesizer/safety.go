package synthesizer

import (
	"fmt"
	"regexp"
	"strings"

	"marketing-analyst/internal/analytics/executor"
	"marketing-analyst/internal/analytics/templates"
	"marketing-analyst/internal/models"
)

const dateCondition = "snapshot_date BETWEEN :date_from AND :date_to"

var (
	sqlFence     = regexp.MustCompile("(?is)```sql\\s*(.*?)(?:```|$)")
	genericFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)(?:```|$)")

	whereWord = regexp.MustCompile(`(?i)\bWHERE\b`)
	fromTable = regexp.MustCompile(`(?i)\bFROM\s+` + regexp.QuoteMeta(templates.Table) + `\b`)
	aliasWord = regexp.MustCompile(`^\s+(?i:(AS)\s+)?([A-Za-z_][A-Za-z0-9_]*)`)
	clauseEnd = regexp.MustCompile(`(?i)^(GROUP\s+BY|HAVING|ORDER\s+BY|LIMIT|WINDOW|OFFSET|FETCH|UNION|EXCEPT|INTERSECT)\b`)
)

// clauseWords can follow a table reference and are never aliases.
var clauseWords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true, "HAVING": true,
	"JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true,
	"FULL": true, "CROSS": true, "NATURAL": true, "ON": true, "USING": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "WINDOW": true,
	"OFFSET": true, "FETCH": true,
}

// StripFences returns the SQL inside a ```sql (or bare ```) fence, or the
// trimmed text when there is none.
func StripFences(text string) string {
	if m := sqlFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := genericFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// filterConditions lists the predicates for the active optional filters
// whose placeholder the query does not already use.
func filterConditions(masked string, filters models.Filters) []string {
	var conds []string
	if filters.ActiveSegment() != "" && !strings.Contains(masked, ":segment") {
		conds = append(conds, "segment_name = :segment")
	}
	if filters.ActiveChannel() != "" && !strings.Contains(masked, ":channel") {
		conds = append(conds, "first_touch_channel = :channel")
	}
	return conds
}

// ApplySafetyNet makes sure the draft filters on the date window and on
// every active optional filter. Literals and comments are ignored when
// looking for WHERE and placeholders.
//
//   - no WHERE: one is added after "FROM curated_pl_marketing_wide_synth
//     [alias]"; a draft that never reads that table is rejected.
//   - WHERE without :date_from: the date condition and any missing filter
//     conditions go right after the first WHERE, joined with AND, and the
//     existing predicate is parenthesized so an OR cannot escape them.
//   - WHERE with :date_from: missing filter conditions are injected the
//     same way.
func ApplySafetyNet(query string, filters models.Filters) (string, error) {
	masked := executor.Mask(query)

	loc := whereWord.FindStringIndex(masked)
	if loc == nil {
		conds := append([]string{dateCondition}, filterConditions(masked, filters)...)
		at, err := tableEnd(masked)
		if err != nil {
			return "", err
		}
		clause := "\nWHERE " + strings.Join(conds, " AND ")
		return query[:at] + clause + query[at:], nil
	}

	var conds []string
	if !strings.Contains(masked, ":date_from") {
		conds = append(conds, dateCondition)
	}
	conds = append(conds, filterConditions(masked, filters)...)
	if len(conds) == 0 {
		return query, nil
	}
	at := loc[1]
	end := predicateEnd(masked, at)
	raw := query[at:end]
	existing := strings.TrimSpace(raw)
	trailing := raw[len(strings.TrimRight(raw, " \t\r\n")):]
	injected := strings.Join(conds, " AND ")
	if existing != "" {
		injected += " AND (" + existing + ")"
	}
	return query[:at] + " " + injected + trailing + query[end:], nil
}

// predicateEnd returns the offset where the WHERE predicate starting at
// start stops: the next top-level clause keyword, a closing parenthesis of an
// enclosing subquery, a semicolon or the end of the statement.
func predicateEnd(masked string, start int) int {
	depth := 0
	for i := start; i < len(masked); i++ {
		c := masked[i]
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return i
			}
			depth--
		case depth > 0:
		case c == ';':
			return i
		case isWordStart(masked, i) && clauseEnd.MatchString(masked[i:]):
			return i
		}
	}
	return len(masked)
}

func isWordStart(s string, i int) bool {
	if !isIdentByte(s[i]) {
		return false
	}
	return i == 0 || !isIdentByte(s[i-1])
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// tableEnd returns the offset just past the dataset table reference and its
// optional alias.
func tableEnd(masked string) (int, error) {
	loc := fromTable.FindStringIndex(masked)
	if loc == nil {
		return 0, fmt.Errorf("query does not read from %s", templates.Table)
	}
	end := loc[1]
	if m := aliasWord.FindStringSubmatchIndex(masked[end:]); m != nil {
		word := strings.ToUpper(masked[end+m[4] : end+m[5]])
		hasAS := m[2] >= 0
		if hasAS || !clauseWords[word] {
			end += m[1]
		}
	}
	return end, nil
}

// CountWhere counts WHERE keywords outside literals and comments.
func CountWhere(query string) int {
	return len(whereWord.FindAllStringIndex(executor.Mask(query), -1))
}
