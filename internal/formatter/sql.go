package formatter

import (
	"regexp"
	"strings"
)

var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "IN", "IS", "NULL", "AS", "ON",
	"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "FULL", "CROSS",
	"ORDER", "GROUP", "BY", "HAVING", "LIMIT", "OFFSET", "UNION", "ALL", "DISTINCT",
	"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "RETURNING",
	"CREATE", "TABLE", "DROP", "ALTER", "INDEX", "PRIMARY", "KEY", "REFERENCES",
	"CASE", "WHEN", "THEN", "ELSE", "END", "LIKE", "BETWEEN", "EXISTS",
	"ASC", "DESC", "WITH", "COUNT", "SUM", "AVG", "MIN", "MAX",
}

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(sqlKeywords, "|") + `)\b`)

	sqlClausePattern = regexp.MustCompile(`\s+(SELECT|FROM|WHERE|(?:(?:LEFT|RIGHT|INNER|OUTER|FULL|CROSS)\s+)*JOIN|ORDER\s+BY|GROUP\s+BY|LIMIT|HAVING|UNION)\b`)
)

// SQL uppercases reserved keywords and starts every major clause on a new
// line. It does not parse the statement, so it never fails. Quoted string
// literals are left untouched.
func SQL(text string) string {
	parts := strings.Split(strings.TrimSpace(text), "'")
	for i := 0; i < len(parts); i += 2 {
		p := sqlKeywordPattern.ReplaceAllStringFunc(parts[i], strings.ToUpper)
		parts[i] = sqlClausePattern.ReplaceAllString(p, "\n$1")
	}
	return strings.Join(parts, "'")
}
