// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package migrate

import (
	"strings"

	"github.com/xwb1989/sqlparser"
)

// previewRunes is how much of a statement the success line shows.
const previewRunes = 50

// Split cuts SQL text on every literal ';', trims each piece, drops empty
// pieces and re-appends the ';'. Order is left to right.
//
// The split is naive: a ';' inside a string literal, a comment,
// or a function/trigger/DO body also splits. Migration files that contain
// procedural code must not rely on this runner.
func Split(text string) []string {
	parts := strings.Split(text, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt != "" {
			stmts = append(stmts, stmt+";")
		}
	}
	return stmts
}

// Preview returns the first n runes of stmt.
func Preview(stmt string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range stmt {
		if i == n {
			return stmt[:pos]
		}
		i++
	}
	return stmt
}

// Kind labels a statement by its leading keyword ("insert", "ddl", ...).
// It is lexical only and never fails; unrecognised statements are "unknown".
func Kind(stmt string) string {
	stmt = strings.TrimSuffix(strings.TrimSpace(stmt), ";")
	return strings.ToLower(sqlparser.StmtType(sqlparser.Preview(stmt)))
}
