package database

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder builds a parameterized WHERE clause.
// Column names must come from a whitelist; values are always bound.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder creates an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Eq adds `col = $n`, or `col IS NULL` when value is nil.
func (w *WhereBuilder) Eq(col string, value any) *WhereBuilder {
	if value == nil {
		w.conditions = append(w.conditions, quoteIdentifier(col)+" IS NULL")
		return w
	}
	w.conditions = append(w.conditions, fmt.Sprintf("%s = $%d", quoteIdentifier(col), w.argIndex))
	w.args = append(w.args, value)
	w.argIndex++
	return w
}

// Add adds `col = $n` unless value is empty.
func (w *WhereBuilder) Add(col, value string) *WhereBuilder {
	if value == "" {
		return w
	}
	return w.Eq(col, value)
}

// AddTimestampRange adds `col >= $n AND col <= $n+1`. Zero bounds are skipped.
func (w *WhereBuilder) AddTimestampRange(col string, from, to time.Time) *WhereBuilder {
	if !from.IsZero() {
		w.conditions = append(w.conditions, fmt.Sprintf("%s >= $%d", quoteIdentifier(col), w.argIndex))
		w.args = append(w.args, from)
		w.argIndex++
	}
	if !to.IsZero() {
		w.conditions = append(w.conditions, fmt.Sprintf("%s <= $%d", quoteIdentifier(col), w.argIndex))
		w.args = append(w.args, to)
		w.argIndex++
	}
	return w
}

// NextArgIndex returns the number of the next placeholder.
func (w *WhereBuilder) NextArgIndex() int {
	return w.argIndex
}

// Build returns the clause with a leading " WHERE ", or "" and nil args
// when no condition was added.
func (w *WhereBuilder) Build() (string, []any) {
	if len(w.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}

// quoteIdentifier quotes a SQL identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
