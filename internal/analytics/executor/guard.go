// internal/analytics/executor/guard.go
package executor

import (
	"fmt"
	"strings"

	apperrors "marketing-analyst/internal/common/errors"
)

// forbidden are keywords that never belong in a read-only statement.
var forbidden = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true, "RENAME": true,
	"GRANT": true, "REVOKE": true, "ATTACH": true, "DETACH": true, "PRAGMA": true,
	"COPY": true, "VACUUM": true, "REINDEX": true, "ANALYZE": true, "CALL": true,
	"EXEC": true, "EXECUTE": true, "DO": true, "LOCK": true, "SET": true, "INTO": true,
}

// Mask returns query with string literals, quoted identifiers and comments
// replaced by spaces. Byte offsets are preserved.
func Mask(query string) string {
	b := []byte(query)
	n := len(b)
	blank := func(from, to int) {
		for k := from; k < to && k < n; k++ {
			if b[k] != '\n' {
				b[k] = ' '
			}
		}
	}
	for i := 0; i < n; {
		switch {
		case b[i] == '\'' || b[i] == '"':
			q := b[i]
			j := i + 1
			for j < n {
				if b[j] == q {
					if j+1 < n && b[j+1] == q {
						j += 2
						continue
					}
					break
				}
				j++
			}
			blank(i, j+1)
			i = j + 1
		case b[i] == '-' && i+1 < n && b[i+1] == '-':
			j := i
			for j < n && b[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case b[i] == '/' && i+1 < n && b[i+1] == '*':
			end := strings.Index(string(b[i+2:]), "*/")
			j := n
			if end >= 0 {
				j = i + 2 + end + 2
			}
			blank(i, j)
			i = j
		default:
			i++
		}
	}
	return string(b)
}

// Tokens splits a masked query into upper-cased words.
func Tokens(masked string) []string {
	return strings.FieldsFunc(strings.ToUpper(masked), func(r rune) bool {
		return !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
}

// CheckReadOnly accepts a single SELECT or WITH statement and returns it
// without a trailing semicolon. Anything else is QUERY_EXECUTION_FAILED.
func CheckReadOnly(query string) (string, error) {
	masked := Mask(query)

	trimmed := strings.TrimRight(masked, " \t\r\n")
	if strings.HasSuffix(trimmed, ";") {
		cut := len(trimmed) - 1
		query = query[:cut]
		masked = masked[:cut]
	}
	if strings.Contains(masked, ";") {
		return "", apperrors.NewQueryRejectedError("multiple statements")
	}

	tokens := Tokens(masked)
	if len(tokens) == 0 {
		return "", apperrors.NewQueryRejectedError("empty statement")
	}
	if tokens[0] != "SELECT" && tokens[0] != "WITH" {
		return "", apperrors.NewQueryRejectedError(fmt.Sprintf("statement starts with %s", tokens[0]))
	}
	for _, tok := range tokens {
		if forbidden[tok] {
			return "", apperrors.NewQueryRejectedError(fmt.Sprintf("keyword %s is not allowed", tok))
		}
	}
	return strings.TrimSpace(query), nil
}
