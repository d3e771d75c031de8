// Package rowscan materializes database/sql rows into mapped entity
// instances by column position, in the mapping's property order (the "Connection.Query<T>" / "QueryMulti"
// external collaborator spec §6 describes). Grounded on the teacher's
// query/relation_scanner.go and hierarchical_scanner.go, which do the same
// column-group-to-struct materialization for joined result sets.
package rowscan

import (
	"database/sql"
	"reflect"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/mapping"
)

// ScanOne materializes the current row of rows into a new instance of m's
// entity type. Columns must appear in m.Properties order (true of every SQL
// text sqlgen.Generator produces).
func ScanOne(rows *sql.Rows, m *mapping.EntityMapping) (reflect.Value, error) {
	ptr := reflect.New(m.EntityType)
	dest := make([]any, len(m.Properties))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := rows.Scan(dest...); err != nil {
		return reflect.Value{}, dferr.Execution(m.EntityType.Name(), "scan", "", err)
	}
	elem := ptr.Elem()
	for i, p := range m.Properties {
		v := *(dest[i].(*any))
		if err := p.Set(elem, v); err != nil {
			return reflect.Value{}, dferr.Execution(m.EntityType.Name(), "scan", "", err)
		}
	}
	return elem, nil
}

// ScanAll materializes every row of rows into entity instances of m.
func ScanAll(rows *sql.Rows, m *mapping.EntityMapping) ([]reflect.Value, error) {
	var out []reflect.Value
	for rows.Next() {
		v, err := ScanOne(rows, m)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, dferr.Execution(m.EntityType.Name(), "scan", "", err)
	}
	return out, nil
}

// Group is one joined type in a multi-mapping row: its entity mapping and
// the alias the planner gave it (a, b1, b2, ...).
type Group struct {
	Alias   string
	Mapping *mapping.EntityMapping
}

// GroupValue is one group's materialized row contribution. Present is false
// when every column in the group's block was NULL (a LEFT JOIN side with no
// match).
type GroupValue struct {
	Present bool
	Value   reflect.Value
}

// Row is one scanned row's per-group materialization, in Groups order.
type Row struct {
	Groups []GroupValue
}

// ScanMulti consumes rows positionally: each group's columns occupy exactly
// len(group.Mapping.Properties) consecutive destinations, matching the
// column order the planner's SELECT list emits (spec: "every scalar column
// is aliased as alias__Property so downstream multi-mapping can split
// cleanly" — the alias prefix is emitted for driver/debugging clarity, but
// since this engine also controls the query text, the split is done
// positionally rather than by re-parsing alias text).
func ScanMulti(rows *sql.Rows, groups []Group) ([]Row, error) {
	total := 0
	for _, g := range groups {
		total += len(g.Mapping.Properties)
	}
	var out []Row
	for rows.Next() {
		dest := make([]any, total)
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, dferr.Execution("", "scan", "", err)
		}
		row := Row{Groups: make([]GroupValue, len(groups))}
		cursor := 0
		for gi, g := range groups {
			ptr := reflect.New(g.Mapping.EntityType)
			elem := ptr.Elem()
			allNil := true
			for _, p := range g.Mapping.Properties {
				v := *(dest[cursor].(*any))
				cursor++
				if v != nil {
					allNil = false
				}
				if err := p.Set(elem, v); err != nil {
					return nil, dferr.Execution(g.Mapping.EntityType.Name(), "scan", "", err)
				}
			}
			row.Groups[gi] = GroupValue{Present: !allNil, Value: elem}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, dferr.Execution("", "scan", "", err)
	}
	return out, nil
}
