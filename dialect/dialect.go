// Package dialect isolates the per-database-family string templates and
// type mappings the rest of the engine needs: quoting, parameter prefix,
// boolean literals, table aliasing, and the INSERT...RETURNING shape.
// Replaces the "inheritance on dialects" pattern with one interface and two
// concrete implementations, per design note.
package dialect

import "reflect"

// Name identifies a concrete dialect.
type Name string

const (
	SqlServerName Name = "SqlServer"
	OracleName    Name = "Oracle"
)

// Dialect is the strategy every SQL-generating component depends on.
type Dialect interface {
	Name() Name
	DefaultSchema() string

	// FormatParameter renders a bound-parameter placeholder from its base name.
	FormatParameter(baseName string) string
	// QuoteIdentifier quotes a single identifier (table, column, alias).
	QuoteIdentifier(id string) string
	// FormatTableAlias renders how a table alias is attached to a FROM/JOIN clause.
	FormatTableAlias(alias string) string
	// FormatBoolean renders the dialect's literal for a boolean value.
	FormatBoolean(value bool) string

	// SupportsReturningId reports whether BuildInsertReturningId can succeed
	// for this dialect.
	SupportsReturningId() bool
	// BuildInsertReturningId appends the dialect-specific tail that turns a
	// plain INSERT into one that yields the generated key column(s).
	BuildInsertReturningId(baseInsertSql, tableName string, keyColumnNames []string) (string, error)

	// BuildPaging appends OFFSET/FETCH-style paging to a SELECT statement
	// that already has its WHERE/ORDER BY applied.
	BuildPaging(sql string, skip, take int, hasTake bool) string

	// InListBatchCap is the dialect-specific chunk size for split-include
	// IN-list batching (spec §4.8).
	InListBatchCap() int

	// TryMapClrTypeToDbType maps a Go type to a dialect-specific DB type
	// name. No engine package calls it: InsertAndGetId binds Oracle output
	// parameters with untyped (*any) destinations.
	TryMapClrTypeToDbType(t reflect.Type) (string, bool)

	// FormatSequenceNextVal renders the dialect's "next value of this
	// sequence" expression for a Sequence-generated column's INSERT value.
	FormatSequenceNextVal(sequenceName string) string
}

// unsupportedReturningError is returned by BuildInsertReturningId when no
// generated-key return can be built; both dialects here return it when called
// with no key columns.
type unsupportedReturningError struct{ dialect Name }

func (e unsupportedReturningError) Error() string {
	return "dialect " + string(e.dialect) + " does not support INSERT ... RETURNING id"
}

func newUnsupportedReturningError(d Name) error { return unsupportedReturningError{dialect: d} }
