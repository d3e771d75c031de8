// Package splitload implements the split-include loader (spec C8): one
// batched follow-up query per include node instead of a single flattened
// JOIN, trading row-count blowup on fan-out for more round trips. Grounded
// on the teacher's query/include_processor.go (per-relation follow-up query
// construction) with IN-list batching and concurrent batch execution added
// per the dialect-specific caps spec §4.8 requires.
package splitload

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/identity"
	"github.com/nahmadov/dapperforge/include"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/nahmadov/dapperforge/rowscan"
	"github.com/nahmadov/dapperforge/sqlgen"
)

// Load walks tree in breadth order (each branch independently — sibling
// include subtrees don't interact, so DFS recursion per branch yields the
// same result as a literal breadth-first queue), issuing one or more
// batched IN-list queries per node and fixing up the navigation graph on
// parents. idCache, when non-nil, collapses repeated (type, key) rows onto
// one instance across the whole load.
func Load(ctx context.Context, q conn.Querier, d dialect.Dialect, reg *mapping.Registry,
	parents []reflect.Value, parentMapping *mapping.EntityMapping, nodes []*include.Node, idCache *identity.Cache) error {

	for _, n := range nodes {
		if err := loadNode(ctx, q, d, reg, parents, parentMapping, n, idCache); err != nil {
			return err
		}
	}
	return nil
}

func loadNode(ctx context.Context, q conn.Querier, d dialect.Dialect, reg *mapping.Registry,
	parents []reflect.Value, parentMapping *mapping.EntityMapping, n *include.Node, idCache *identity.Cache) error {

	if len(parents) == 0 {
		return nil
	}
	fk, ok := parentMapping.ForeignKey(n.Navigation)
	if !ok {
		return dferr.Configurationf(parentMapping.EntityType.Name(), "include",
			"navigation %q is not a mapped relationship", n.Navigation)
	}
	relMapping, err := reg.Resolve(fk.RelatedEntityType)
	if err != nil {
		return err
	}
	gen, err := sqlgen.New(relMapping, d)
	if err != nil {
		return err
	}

	if fk.IsCollection {
		children, err := loadCollection(ctx, q, d, gen, relMapping, fk, parents, parentMapping, idCache)
		if err != nil {
			return err
		}
		return Load(ctx, q, d, reg, children, relMapping, n.Children, idCache)
	}

	children, err := loadReference(ctx, q, d, gen, relMapping, fk, parents, parentMapping, idCache)
	if err != nil {
		return err
	}
	return Load(ctx, q, d, reg, children, relMapping, n.Children, idCache)
}

// loadReference resolves a belongs-to navigation: parents carry the foreign
// key scalar; related rows are looked up by their own key.
func loadReference(ctx context.Context, q conn.Querier, d dialect.Dialect, gen *sqlgen.Generator,
	relMapping *mapping.EntityMapping, fk *mapping.ForeignKeyMapping,
	parents []reflect.Value, parentMapping *mapping.EntityMapping, idCache *identity.Cache) ([]reflect.Value, error) {

	fkProp, ok := parentMapping.Property(fk.ForeignKeyProperty)
	if !ok {
		return nil, dferr.Configurationf(parentMapping.EntityType.Name(), "include",
			"foreign key property %q not found", fk.ForeignKeyProperty)
	}

	values, byValue := distinctValues(parents, fkProp.Get)
	if len(values) == 0 {
		return nil, nil
	}

	rows, err := runBatched(ctx, q, d, gen.SelectAll, fk.PrincipalKeyColumnName, relMapping, values)
	if err != nil {
		return nil, err
	}

	index := map[string]reflect.Value{}
	var loaded []reflect.Value
	principalProp, _ := relMapping.PropertyByColumn(fk.PrincipalKeyColumnName)
	for _, r := range rows {
		inst := resolve(idCache, relMapping, r)
		key := fmt.Sprint(principalProp.Get(inst))
		index[key] = inst
		loaded = append(loaded, inst)
	}

	for key, parentList := range byValue {
		related, ok := index[key]
		if !ok {
			continue
		}
		for _, p := range parentList {
			fk.SetReference(p, related)
		}
	}
	return dedupe(loaded, relMapping), nil
}

// loadCollection resolves a one-to-many navigation: parents carry the
// principal key; related rows carry the inverse foreign key.
func loadCollection(ctx context.Context, q conn.Querier, d dialect.Dialect, gen *sqlgen.Generator,
	relMapping *mapping.EntityMapping, fk *mapping.ForeignKeyMapping,
	parents []reflect.Value, parentMapping *mapping.EntityMapping, idCache *identity.Cache) ([]reflect.Value, error) {

	keys := parentMapping.EffectiveKey()
	if len(keys) != 1 {
		return nil, dferr.Configurationf(parentMapping.EntityType.Name(), "include",
			"collection navigation %q requires a single-column key", fk.NavigationProperty)
	}
	parentKey := keys[0]

	for _, p := range parents {
		fk.EnsureCollection(p)
	}

	values, byValue := distinctValues(parents, parentKey.Get)
	if len(values) == 0 {
		return nil, nil
	}

	rows, err := runBatched(ctx, q, d, gen.SelectAll, fk.ForeignKeyColumnName, relMapping, values)
	if err != nil {
		return nil, err
	}

	inverseProp, _ := relMapping.PropertyByColumn(fk.ForeignKeyColumnName)
	var loaded []reflect.Value
	for _, r := range rows {
		inst := resolve(idCache, relMapping, r)
		loaded = append(loaded, inst)
		key := fmt.Sprint(inverseProp.Get(inst))
		for _, p := range byValue[key] {
			fk.AppendCollection(p, inst)
		}
	}
	return dedupe(loaded, relMapping), nil
}

// distinctValues reads get(parent) for every parent, discarding nils,
// grouping parents by their string-formatted value for the final
// navigation-assignment pass, and returning the distinct values themselves
// for the IN-list query.
func distinctValues(parents []reflect.Value, get func(reflect.Value) any) ([]any, map[string][]reflect.Value) {
	byValue := map[string][]reflect.Value{}
	seen := map[string]bool{}
	var values []any
	for _, p := range parents {
		v := get(p)
		if isNilValue(v) {
			continue
		}
		key := fmt.Sprint(v)
		byValue[key] = append(byValue[key], p)
		if !seen[key] {
			seen[key] = true
			values = append(values, v)
		}
	}
	return values, byValue
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// runBatched issues one query per InListBatchCap-sized chunk of values
// concurrently and concatenates the matched rows (spec §4.8: "required
// behavior, not optional").
func runBatched(ctx context.Context, q conn.Querier, d dialect.Dialect, selectAll, column string,
	relMapping *mapping.EntityMapping, values []any) ([]reflect.Value, error) {

	batchCap := d.InListBatchCap()
	var chunks [][]any
	for len(values) > 0 {
		n := batchCap
		if n > len(values) {
			n = len(values)
		}
		chunks = append(chunks, values[:n])
		values = values[n:]
	}

	results := make([][]reflect.Value, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			rows, err := queryChunk(gctx, q, d, selectAll, column, relMapping, chunk)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []reflect.Value
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func queryChunk(ctx context.Context, q conn.Querier, d dialect.Dialect, selectAll, column string,
	relMapping *mapping.EntityMapping, values []any) ([]reflect.Value, error) {

	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		name := fmt.Sprintf("v%d", i)
		placeholders[i] = d.FormatParameter(name)
		args[i] = sql.Named(name, v)
	}
	sqlText := selectAll + " WHERE a." + d.QuoteIdentifier(column) + " IN (" +
		joinComma(placeholders) + ")"

	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, dferr.Execution(relMapping.EntityType.Name(), "include", sqlText, err)
	}
	defer rows.Close()
	return rowscan.ScanAll(rows, relMapping)
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func resolve(idCache *identity.Cache, m *mapping.EntityMapping, inst reflect.Value) reflect.Value {
	if idCache == nil {
		return inst
	}
	keys := m.EffectiveKey()
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k.Get(inst)
	}
	return idCache.Resolve(m.EntityType, identity.FormatKeyValue(values...), inst)
}

// dedupe collapses instances sharing the same key to one entry, preserving
// first-seen order (only meaningful when idCache coalesced some of them).
func dedupe(instances []reflect.Value, m *mapping.EntityMapping) []reflect.Value {
	keys := m.EffectiveKey()
	seen := map[string]bool{}
	var out []reflect.Value
	for _, inst := range instances {
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = k.Get(inst)
		}
		key := identity.FormatKeyValue(values...)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, inst)
	}
	return out
}
