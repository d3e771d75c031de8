// Package sqlgen precomputes the fixed (non-predicate) SQL text for one
// entity mapping under one dialect: SelectAll, SelectById, Insert,
// InsertReturningId, Update, DeleteById. Computed once per mapping and
// reused for every call, mirroring the teacher's schema/generator package
// precomputing SQL/struct text once per schema at codegen time (spec C3).
package sqlgen

import (
	"strings"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
)

// RootAlias is the alias every generated statement gives the root table.
const RootAlias = "a"

// Generator holds the precomputed SQL for one mapping+dialect pair.
type Generator struct {
	Mapping *mapping.EntityMapping
	Dialect dialect.Dialect

	// QualifiedTable is the dialect-quoted "schema.table" (or bare "table"),
	// reused by callers building their own SQL around the root alias (spec
	// C6's Count, which has no columns to select).
	QualifiedTable string

	SelectAll  string
	SelectById string
	Insert     string
	// InsertColumns is every column in the INSERT's column list, in order,
	// including Sequence-generated ones whose VALUES entry is a NEXTVAL
	// expression rather than a bound parameter.
	InsertColumns []*mapping.PropertyMapping
	// InsertBoundColumns is the subset of InsertColumns actually bound as
	// parameters — callers building the argument list use this, not
	// InsertColumns.
	InsertBoundColumns []*mapping.PropertyMapping
	InsertReturningId  string
	IsKeyGenerated    bool
	Update            string
	UpdateColumns     []*mapping.PropertyMapping // SET columns, in order
	DeleteById        string
}

// New builds a Generator for m under d. When the key is not entirely
// generated, InsertReturningId is left empty and IsKeyGenerated is false. A
// Configuration error is returned only when the dialect cannot build
// InsertReturningId for a generated key.
func New(m *mapping.EntityMapping, d dialect.Dialect) (*Generator, error) {
	g := &Generator{Mapping: m, Dialect: d}

	qualifiedTable := quotedQualifiedTable(m, d)
	g.QualifiedTable = qualifiedTable
	g.SelectAll = g.buildSelectAll(qualifiedTable)

	if len(m.EffectiveKey()) > 0 {
		g.SelectById = g.SelectAll + " WHERE " + g.keyPredicateByColumn()
		g.DeleteById = "DELETE FROM " + qualifiedTable + " WHERE " + g.keyPredicateByColumnOnBareTable()
	}

	if !m.IsReadOnly {
		insertSQL, insertCols, boundCols := g.buildInsert(qualifiedTable)
		g.Insert = insertSQL
		g.InsertColumns = insertCols
		g.InsertBoundColumns = boundCols

		g.IsKeyGenerated = len(m.EffectiveKey()) > 0 && allGenerated(m.EffectiveKey())
		if g.IsKeyGenerated {
			keyCols := make([]string, len(m.EffectiveKey()))
			for i, k := range m.EffectiveKey() {
				keyCols[i] = k.ColumnName
			}
			returning, err := d.BuildInsertReturningId(insertSQL, m.TableName, keyCols)
			if err != nil {
				return nil, dferr.Configurationf(m.EntityType.Name(), "sqlgen", "%s", err)
			}
			g.InsertReturningId = returning
		}

		updateSQL, updateCols := g.buildUpdate(qualifiedTable)
		g.Update = updateSQL
		g.UpdateColumns = updateCols
	}

	return g, nil
}

func allGenerated(props []*mapping.PropertyMapping) bool {
	for _, p := range props {
		if !p.IsGenerated() {
			return false
		}
	}
	return true
}

func quotedQualifiedTable(m *mapping.EntityMapping, d dialect.Dialect) string {
	if m.Schema == "" {
		return d.QuoteIdentifier(m.TableName)
	}
	return d.QuoteIdentifier(m.Schema) + "." + d.QuoteIdentifier(m.TableName)
}

func (g *Generator) buildSelectAll(qualifiedTable string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, p := range g.Mapping.Properties {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(RootAlias)
		b.WriteString(".")
		b.WriteString(g.Dialect.QuoteIdentifier(p.ColumnName))
		b.WriteString(" AS ")
		b.WriteString(g.Dialect.QuoteIdentifier(p.PropertyName))
	}
	b.WriteString(" FROM ")
	b.WriteString(qualifiedTable)
	b.WriteString(" ")
	b.WriteString(g.Dialect.FormatTableAlias(RootAlias))
	return b.String()
}

// keyPredicateByColumn renders "a.[k1] = @k1 AND a.[k2] = @k2" with
// parameter base names equal to the column names, per spec C3.
func (g *Generator) keyPredicateByColumn() string {
	keys := g.Mapping.EffectiveKey()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = RootAlias + "." + g.Dialect.QuoteIdentifier(k.ColumnName) +
			" = " + g.Dialect.FormatParameter(k.ColumnName)
	}
	return strings.Join(parts, " AND ")
}

func (g *Generator) buildInsert(qualifiedTable string) (string, []*mapping.PropertyMapping, []*mapping.PropertyMapping) {
	var cols, bound []*mapping.PropertyMapping
	for _, p := range g.Mapping.Properties {
		if p.IsReadOnly || p.Generated == mapping.GeneratedIdentity || p.Generated == mapping.GeneratedComputed {
			continue
		}
		cols = append(cols, p)
		if p.Generated != mapping.GeneratedSequence {
			bound = append(bound, p)
		}
	}

	colNames := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, p := range cols {
		colNames[i] = g.Dialect.QuoteIdentifier(p.ColumnName)
		if p.Generated == mapping.GeneratedSequence {
			values[i] = g.Dialect.FormatSequenceNextVal(p.SequenceName)
		} else {
			values[i] = g.Dialect.FormatParameter(p.PropertyName)
		}
	}

	sql := "INSERT INTO " + qualifiedTable +
		" (" + strings.Join(colNames, ",") + ") VALUES (" + strings.Join(values, ",") + ")"
	return sql, cols, bound
}

func (g *Generator) buildUpdate(qualifiedTable string) (string, []*mapping.PropertyMapping) {
	keySet := map[string]bool{}
	for _, k := range g.Mapping.EffectiveKey() {
		keySet[k.PropertyName] = true
	}

	var cols []*mapping.PropertyMapping
	for _, p := range g.Mapping.Properties {
		if keySet[p.PropertyName] || p.IsGenerated() || p.IsReadOnly {
			continue
		}
		cols = append(cols, p)
	}
	if len(cols) == 0 {
		return "", nil
	}

	sets := make([]string, len(cols))
	for i, p := range cols {
		sets[i] = g.Dialect.QuoteIdentifier(p.ColumnName) + " = " + g.Dialect.FormatParameter(p.PropertyName)
	}

	sql := "UPDATE " + qualifiedTable + " SET " + strings.Join(sets, ", ")
	if len(g.Mapping.EffectiveKey()) > 0 {
		sql += " WHERE " + g.keyPredicateByColumnOnBareTable()
	}
	return sql, cols
}

// keyPredicateByColumnOnBareTable is like keyPredicateByColumn but without
// the root alias prefix, for UPDATE/DELETE statements that reference the
// table directly rather than through an aliased FROM.
func (g *Generator) keyPredicateByColumnOnBareTable() string {
	keys := g.Mapping.EffectiveKey()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = g.Dialect.QuoteIdentifier(k.ColumnName) + " = " + g.Dialect.FormatParameter(k.ColumnName)
	}
	return strings.Join(parts, " AND ")
}
