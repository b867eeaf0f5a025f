// Package stats provides the read-only analytical store for historical
// Test-match statistics and the safety gate that protects it.
package stats

import (
	"strings"
)

// Verdict is the outcome of validating a SQL string. Computed fresh per
// string, never persisted.
type Verdict struct {
	IsSafe bool
	Reason string
}

// forbiddenKeywords are rejected anywhere in a statement, even inside
// string literals or identifiers. The check is deliberately lexical, not
// semantic: false positives are acceptable, false negatives are not.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE",
	"ALTER", "TRUNCATE", "REPLACE", "MERGE",
}

// ValidateSQL checks that sql contains only read-only statements.
// Every statement must start with SELECT or WITH and contain none of the
// forbidden keywords. Anything the validator cannot make sense of is
// rejected; the gate fails closed.
func ValidateSQL(sql string) Verdict {
	stmts := splitStatements(sql)
	if len(stmts) == 0 {
		return Verdict{IsSafe: false, Reason: "Empty or invalid SQL query"}
	}

	for _, stmt := range stmts {
		tok := firstToken(stmt)
		if tok == "" {
			return Verdict{IsSafe: false, Reason: "Empty or invalid SQL query"}
		}
		upper := strings.ToUpper(tok)
		if upper != "SELECT" && upper != "WITH" {
			return Verdict{
				IsSafe: false,
				Reason: "only SELECT and WITH (CTE) statements allowed. Found: " + upper,
			}
		}
		stmtUpper := strings.ToUpper(stmt)
		for _, kw := range forbiddenKeywords {
			if strings.Contains(stmtUpper, kw) {
				return Verdict{
					IsSafe: false,
					Reason: "Forbidden keyword detected: " + kw + ". only SELECT queries allowed.",
				}
			}
		}
	}
	return Verdict{IsSafe: true, Reason: "Query is safe"}
}

// splitStatements splits sql on semicolons that sit outside quoted
// strings, dropping fragments that are empty after trimming.
func splitStatements(sql string) []string {
	var (
		stmts   []string
		start   int
		inQuote rune
	)
	for i, r := range sql {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case r == '\'' || r == '"':
			inQuote = r
		case r == ';':
			if s := strings.TrimSpace(sql[start:i]); s != "" {
				stmts = append(stmts, s)
			}
			start = i + 1
		}
	}
	if start <= len(sql) {
		if s := strings.TrimSpace(sql[start:]); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// firstToken returns the first keyword-like token of a statement,
// skipping whitespace, line comments and block comments. Returns ""
// when no token can be found.
func firstToken(stmt string) string {
	i := 0
	for i < len(stmt) {
		switch {
		case stmt[i] == ' ' || stmt[i] == '\t' || stmt[i] == '\n' || stmt[i] == '\r':
			i++
		case strings.HasPrefix(stmt[i:], "--"):
			nl := strings.IndexByte(stmt[i:], '\n')
			if nl < 0 {
				return ""
			}
			i += nl + 1
		case strings.HasPrefix(stmt[i:], "/*"):
			end := strings.Index(stmt[i:], "*/")
			if end < 0 {
				return ""
			}
			i += end + 2
		default:
			j := i
			for j < len(stmt) && isTokenByte(stmt[j]) {
				j++
			}
			if j == i {
				return ""
			}
			return stmt[i:j]
		}
	}
	return ""
}

func isTokenByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
