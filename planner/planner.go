// Package planner implements the single-query include planner (spec C7):
// flattening an include tree into one LEFT JOIN SELECT, and materializing
// its rows back into an object graph. Grounded on the teacher's
// query/join_builder.go (alias assignment, join-condition construction) and
// query/hierarchical_scanner.go (multi-type row-to-graph fixup).
package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/identity"
	"github.com/nahmadov/dapperforge/include"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/nahmadov/dapperforge/rowscan"

	"reflect"
)

// RootAlias matches sqlgen.RootAlias; planner declares its own copy and does
// not import sqlgen.
const RootAlias = "a"

type groupMeta struct {
	mapping   *mapping.EntityMapping
	alias     string
	parentIdx int
	fk        *mapping.ForeignKeyMapping // nil for the root group
}

// Plan is the precomputed JOIN SELECT (without WHERE/ORDER BY/paging, which
// the caller appends using the root alias) plus the metadata needed to
// materialize rows back into an object graph.
type Plan struct {
	SQL string

	// SplitOn is the Dapper-style comma-joined list of each group's first
	// column alias (its first mapped property), included for diagnostics/logging only. rowscan.ScanMulti
	// splits columns positionally using Groups, not by parsing this string.
	SplitOn string
	Groups  []rowscan.Group

	meta []groupMeta
}

// Build flattens tree into a Plan for root under dialect d, resolving
// related entity mappings through reg.
func Build(root *mapping.EntityMapping, d dialect.Dialect, tree *include.Tree, reg *mapping.Registry) (*Plan, error) {
	metas := []groupMeta{{mapping: root, alias: RootAlias, parentIdx: -1}}

	aliasCounter := 0
	var walk func(parentIdx int, nodes []*include.Node) error
	walk = func(parentIdx int, nodes []*include.Node) error {
		for _, n := range nodes {
			parentMapping := metas[parentIdx].mapping
			fk, ok := parentMapping.ForeignKey(n.Navigation)
			if !ok {
				return dferr.Configurationf(parentMapping.EntityType.Name(), "include",
					"navigation %q is not a mapped relationship", n.Navigation)
			}
			relMapping, err := reg.Resolve(fk.RelatedEntityType)
			if err != nil {
				return err
			}
			aliasCounter++
			idx := len(metas)
			metas = append(metas, groupMeta{
				mapping:   relMapping,
				alias:     fmt.Sprintf("b%d", aliasCounter),
				parentIdx: parentIdx,
				fk:        fk,
			})
			if err := walk(idx, n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, tree.Roots); err != nil {
		return nil, err
	}

	var sel, join, splitOn []string
	for i, m := range metas {
		for _, p := range m.mapping.Properties {
			sel = append(sel, m.alias+"."+d.QuoteIdentifier(p.ColumnName)+" AS "+
				d.QuoteIdentifier(m.alias+"__"+p.PropertyName))
		}
		if len(m.mapping.Properties) > 0 {
			splitOn = append(splitOn, d.QuoteIdentifier(m.alias+"__"+m.mapping.Properties[0].PropertyName))
		}
		if i == 0 {
			continue
		}
		parent := metas[m.parentIdx]
		table := qualifiedTable(m.mapping, d) + " " + d.FormatTableAlias(m.alias)
		var cond string
		if m.fk.IsCollection {
			cond = parent.alias + "." + d.QuoteIdentifier(m.fk.PrincipalKeyColumnName) +
				" = " + m.alias + "." + d.QuoteIdentifier(m.fk.ForeignKeyColumnName)
		} else {
			cond = parent.alias + "." + d.QuoteIdentifier(m.fk.ForeignKeyColumnName) +
				" = " + m.alias + "." + d.QuoteIdentifier(m.fk.PrincipalKeyColumnName)
		}
		join = append(join, "LEFT JOIN "+table+" ON "+cond)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(sel, ", "))
	b.WriteString(" FROM ")
	b.WriteString(qualifiedTable(root, d))
	b.WriteString(" ")
	b.WriteString(d.FormatTableAlias(RootAlias))
	for _, j := range join {
		b.WriteString(" ")
		b.WriteString(j)
	}

	groups := make([]rowscan.Group, len(metas))
	for i, m := range metas {
		groups[i] = rowscan.Group{Alias: m.alias, Mapping: m.mapping}
	}

	return &Plan{
		SQL:     b.String(),
		SplitOn: strings.Join(splitOn, ", "),
		Groups:  groups,
		meta:    metas,
	}, nil
}

func qualifiedTable(m *mapping.EntityMapping, d dialect.Dialect) string {
	if m.Schema == "" {
		return d.QuoteIdentifier(m.TableName)
	}
	return d.QuoteIdentifier(m.Schema) + "." + d.QuoteIdentifier(m.TableName)
}

// Load executes sqlText (plan.SQL plus the caller's WHERE/ORDER BY/paging)
// against q and materializes the joined rows into a deduplicated list of
// root instances with their navigation graphs fixed up. idCache, when
// non-nil, collapses repeated rows sharing the same (type, key) onto one
// instance (spec invariant 7); when nil every row produces fresh instances,
// so fan-out duplicates the root once per matching child row.
func Load(ctx context.Context, q conn.Querier, plan *Plan, sqlText string, args []any, idCache *identity.Cache) ([]reflect.Value, error) {
	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, dferr.Execution(plan.Groups[0].Mapping.EntityType.Name(), "query", sqlText, err)
	}
	defer rows.Close()

	scanned, err := rowscan.ScanMulti(rows, plan.Groups)
	if err != nil {
		return nil, err
	}

	var roots []reflect.Value
	seenRoot := map[string]bool{}
	collSeen := map[string]bool{}

	for _, row := range scanned {
		resolved := make([]reflect.Value, len(row.Groups))
		for i, gv := range row.Groups {
			if !gv.Present {
				continue
			}
			inst := gv.Value
			if idCache != nil {
				m := plan.meta[i].mapping
				inst = idCache.Resolve(m.EntityType, keyValue(m, inst), inst)
			}
			resolved[i] = inst
		}

		rootInst := resolved[0]
		isNewRoot := true
		if idCache != nil {
			k := keyValue(plan.meta[0].mapping, rootInst)
			if seenRoot[k] {
				isNewRoot = false
			} else {
				seenRoot[k] = true
			}
		}
		if isNewRoot {
			roots = append(roots, rootInst)
			for _, fk := range plan.meta[0].mapping.ForeignKeys {
				if fk.IsCollection {
					fk.EnsureCollection(rootInst)
				}
			}
		}

		for i := 1; i < len(resolved); i++ {
			if !resolved[i].IsValid() {
				continue
			}
			m := plan.meta[i]
			parent := resolved[m.parentIdx]
			if !parent.IsValid() {
				continue
			}
			if m.fk.IsCollection {
				if idCache != nil {
					dk := strconv.Itoa(i) + "|" + keyValue(plan.meta[m.parentIdx].mapping, parent) + "|" + keyValue(m.mapping, resolved[i])
					if collSeen[dk] {
						continue
					}
					collSeen[dk] = true
				}
				m.fk.AppendCollection(parent, resolved[i])
			} else {
				m.fk.SetReference(parent, resolved[i])
			}
		}
	}
	return roots, nil
}

func keyValue(m *mapping.EntityMapping, v reflect.Value) string {
	keys := m.EffectiveKey()
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k.Get(v)
	}
	return identity.FormatKeyValue(values...)
}
