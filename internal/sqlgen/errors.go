package sqlgen

import (
	"fmt"
	"strings"
)

// UnsupportedDialectError reports a dialect the generator cannot render.
type UnsupportedDialectError struct {
	Dialect string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("unsupported SQL dialect %q", e.Dialect)
}

// ColumnNotFoundError reports a filter or additional column that does not
// exist on its resolved table. Raised before any SQL text is built.
type ColumnNotFoundError struct {
	Table       string
	Column      string
	Suggestions []string
}

func (e *ColumnNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("column %q not found on table %q", e.Column, e.Table)
	}
	return fmt.Sprintf("column %q not found on table %q (nearest: %s)",
		e.Column, e.Table, strings.Join(e.Suggestions, ", "))
}

// MissingJoinColumnsError reports a relationship hop without concrete
// join columns. Emitting a placeholder join instead would produce a
// plausible-looking but wrong query, so this is a hard error.
type MissingJoinColumnsError struct {
	FromTable string
	ToTable   string
}

func (e *MissingJoinColumnsError) Error() string {
	return fmt.Sprintf("relationship between %q and %q carries no join columns", e.FromTable, e.ToTable)
}
