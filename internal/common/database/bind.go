// internal/common/database/bind.go
package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the positional placeholder style of the driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) placeholder(n int) string {
	if d == DialectSQLite {
		return "?" + strconv.Itoa(n)
	}
	return "$" + strconv.Itoa(n)
}

// Bind rewrites :name parameters into positional placeholders and returns the
// matching argument list. A name used twice reuses its position. Quoted
// strings, quoted identifiers, comments and :: casts are left alone. A name
// missing from params is an error.
func (d Dialect) Bind(query string, params map[string]interface{}) (string, []interface{}, error) {
	var (
		out       strings.Builder
		args      []interface{}
		positions = make(map[string]int)
	)
	out.Grow(len(query))

	n := len(query)
	for i := 0; i < n; {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(query, i, c)
			out.WriteString(query[i:end])
			i = end
		case c == '-' && i+1 < n && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = n
			} else {
				end += i
			}
			out.WriteString(query[i:end])
			i = end
		case c == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end += i + 4
			}
			out.WriteString(query[i:end])
			i = end
		case c == ':' && i+1 < n && query[i+1] == ':':
			out.WriteString("::")
			i += 2
		case c == ':' && i+1 < n && isNameStart(query[i+1]):
			j := i + 1
			for j < n && isNameChar(query[j]) {
				j++
			}
			name := query[i+1 : j]
			pos, seen := positions[name]
			if !seen {
				val, ok := params[name]
				if !ok {
					return "", nil, fmt.Errorf("missing value for parameter :%s", name)
				}
				args = append(args, val)
				pos = len(args)
				positions[name] = pos
			}
			out.WriteString(d.placeholder(pos))
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), args, nil
}

// skipQuoted returns the index just past the quoted run starting at i.
// A doubled quote is an escaped quote.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] == q {
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
