package specification

import (
	"strings"

	"gorm.io/gorm"
)

// TextContains matches any of the columns case-insensitively. LOWER/LIKE
// keeps it portable between postgres and sqlite.
type TextContains struct {
	Columns []string
	Query   string
}

func (s TextContains) Apply(db *gorm.DB) *gorm.DB {
	q := strings.TrimSpace(s.Query)
	if q == "" || len(s.Columns) == 0 {
		return db
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"

	clauses := make([]string, len(s.Columns))
	args := make([]interface{}, len(s.Columns))
	for i, col := range s.Columns {
		clauses[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
		args[i] = pattern
	}
	return db.Where(strings.Join(clauses, " OR "), args...)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
