package queryset

import (
	"context"
	"reflect"
	"strings"

	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dfconfig"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/identity"
	"github.com/nahmadov/dapperforge/include"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/nahmadov/dapperforge/orderkey"
	"github.com/nahmadov/dapperforge/planner"
	"github.com/nahmadov/dapperforge/predicate"
	"github.com/nahmadov/dapperforge/rowscan"
	"github.com/nahmadov/dapperforge/splitload"
	"github.com/nahmadov/dapperforge/sqlgen"
)

// EntitySet is the typed queryable surface for one entity type. Each Set
// call creates one around the SQL generator and predicate translator that
// the context builds once per entity (spec: "the set holds a SqlGenerator
// built once from the EntityMapping and a reference back to the context"), then cloned
// per fluent call so the original stays reusable as a query template.
type EntitySet[T any] struct {
	mapping    *mapping.EntityMapping
	dialect    dialect.Dialect
	gen        *sqlgen.Generator
	translator *predicate.Translator
	registry   *mapping.Registry
	manager    *conn.Manager
	cfg        dfconfig.Config

	state QueryState
	err   error
}

// New builds an EntitySet for T over m. Callers normally obtain one through
// the root package's per-context Set[T] rather than calling this directly.
func New[T any](m *mapping.EntityMapping, d dialect.Dialect, gen *sqlgen.Generator,
	translator *predicate.Translator, reg *mapping.Registry, manager *conn.Manager, cfg dfconfig.Config) *EntitySet[T] {
	return &EntitySet[T]{
		mapping: m, dialect: d, gen: gen, translator: translator, registry: reg, manager: manager, cfg: cfg,
		state: QueryState{IdentityResolution: !cfg.DisableIdentityResolution},
	}
}

func (s *EntitySet[T]) clone() *EntitySet[T] {
	c := *s
	c.state = s.state.clone()
	return &c
}

func (s *EntitySet[T]) fail(err error) *EntitySet[T] {
	c := s.clone()
	if c.err == nil {
		c.err = err
	}
	return c
}

// Where AND-combines expr with any predicate already accumulated.
func (s *EntitySet[T]) Where(expr predicate.Expr) *EntitySet[T] {
	c := s.clone()
	if c.state.Predicate == nil {
		c.state.Predicate = expr
	} else {
		c.state.Predicate = predicate.AndOf(c.state.Predicate, expr)
	}
	return c
}

// IgnoreCase makes every string comparison in the current predicate
// case-insensitive, unless the comparison already opted in individually.
func (s *EntitySet[T]) IgnoreCase() *EntitySet[T] {
	c := s.clone()
	c.state.IgnoreCase = true
	return c
}

// OrderBy replaces the ordering with a single ascending key.
func (s *EntitySet[T]) OrderBy(field string) *EntitySet[T] {
	c := s.clone()
	c.state.OrderBy = []orderkey.Key{{Field: field}}
	return c
}

// OrderByDescending replaces the ordering with a single descending key.
func (s *EntitySet[T]) OrderByDescending(field string) *EntitySet[T] {
	c := s.clone()
	c.state.OrderBy = []orderkey.Key{{Field: field, Descending: true}}
	return c
}

// ThenBy appends an ascending tiebreaker key. Calling it before any OrderBy
// is a programmer error (spec §4.6) and fails the set with an Operation error.
func (s *EntitySet[T]) ThenBy(field string) *EntitySet[T] {
	return s.thenBy(field, false)
}

// ThenByDescending appends a descending tiebreaker key.
func (s *EntitySet[T]) ThenByDescending(field string) *EntitySet[T] {
	return s.thenBy(field, true)
}

func (s *EntitySet[T]) thenBy(field string, descending bool) *EntitySet[T] {
	if len(s.state.OrderBy) == 0 {
		return s.fail(dferr.Operationf(s.mapping.EntityType.Name(), "thenBy", "ThenBy requires a preceding OrderBy"))
	}
	c := s.clone()
	c.state.OrderBy = append(c.state.OrderBy, orderkey.Key{Field: field, Descending: descending})
	return c
}

// Skip sets the number of rows to skip; n must be >= 0.
func (s *EntitySet[T]) Skip(n int) *EntitySet[T] {
	if n < 0 {
		return s.fail(dferr.Configurationf(s.mapping.EntityType.Name(), "skip", "Skip argument must be >= 0, got %d", n))
	}
	c := s.clone()
	c.state.Skip = n
	return c
}

// Take sets the maximum number of rows to return; n must be >= 1.
func (s *EntitySet[T]) Take(n int) *EntitySet[T] {
	if n < 1 {
		return s.fail(dferr.Configurationf(s.mapping.EntityType.Name(), "take", "Take argument must be >= 1, got %d", n))
	}
	c := s.clone()
	c.state.Take = n
	c.state.HasTake = true
	return c
}

// Distinct injects DISTINCT directly after SELECT.
func (s *EntitySet[T]) Distinct() *EntitySet[T] {
	c := s.clone()
	c.state.Distinct = true
	return c
}

// AsSplitQuery loads includes with one batched follow-up query per
// navigation instead of a single flattened JOIN (spec C8). Preferred when
// paging together with a collection include, since JOIN-based paging cuts
// across fanned-out child rows rather than parent rows.
func (s *EntitySet[T]) AsSplitQuery() *EntitySet[T] {
	c := s.clone()
	c.state.Splitting = Split
	return c
}

// AsSingleQuery restores the default single-JOIN include strategy.
func (s *EntitySet[T]) AsSingleQuery() *EntitySet[T] {
	c := s.clone()
	c.state.Splitting = Single
	return c
}

// AsNoIdentityResolution disables the identity cache for this execution only.
func (s *EntitySet[T]) AsNoIdentityResolution() *EntitySet[T] {
	c := s.clone()
	c.state.IdentityResolution = false
	return c
}

// Include adds a root include node for navigation.
func (s *EntitySet[T]) Include(navigation string) *EntitySet[T] {
	c := s.clone()
	if c.state.Includes == nil {
		c.state.Includes = include.New(c.registry, c.mapping.EntityType)
	}
	if _, err := c.state.Includes.Include(navigation); err != nil {
		return c.fail(err)
	}
	return c
}

// ThenInclude appends navigation under the most recently added include node.
func (s *EntitySet[T]) ThenInclude(navigation string) *EntitySet[T] {
	c := s.clone()
	if c.state.Includes == nil {
		return c.fail(dferr.Operationf(c.mapping.EntityType.Name(), "thenInclude", "ThenInclude requires a preceding Include"))
	}
	if _, err := c.state.Includes.ThenInclude(navigation); err != nil {
		return c.fail(err)
	}
	return c
}

func (s *EntitySet[T]) querier(ctx context.Context, tx *conn.TxScope) (conn.Querier, error) {
	if tx != nil {
		return tx.Tx(), nil
	}
	return s.manager.DB(ctx)
}

// buildRootSQL produces the WHERE/ORDER BY/paging-complete SQL for the plain
// (no-include) SELECT, reused both for a flat ToList and for loading roots
// ahead of a split-include load.
func (s *EntitySet[T]) buildRootSQL() (string, []any, error) {
	sqlText := s.gen.SelectAll
	if s.state.Distinct {
		sqlText = strings.Replace(sqlText, "SELECT ", "SELECT DISTINCT ", 1)
	}
	return s.appendWhereOrderPaging(sqlText)
}

func (s *EntitySet[T]) appendWhereOrderPaging(sqlText string) (string, []any, error) {
	var args []any
	if s.state.Predicate != nil {
		whereSQL, whereArgs, err := s.translator.Translate(s.state.Predicate, s.state.IgnoreCase)
		if err != nil {
			return "", nil, err
		}
		sqlText += " WHERE " + whereSQL
		args = whereArgs
	}

	needsPaging := s.state.HasTake || s.state.Skip > 0
	orderKeys := s.state.OrderBy
	if len(orderKeys) == 0 && needsPaging {
		def, err := orderkey.DefaultOrder(s.mapping)
		if err != nil {
			return "", nil, err
		}
		orderKeys = def
	}
	if len(orderKeys) > 0 {
		orderSQL, err := orderkey.Translate(s.mapping, s.dialect, orderKeys)
		if err != nil {
			return "", nil, err
		}
		sqlText += " ORDER BY " + orderSQL
	}
	if needsPaging {
		sqlText = s.dialect.BuildPaging(sqlText, s.state.Skip, s.state.Take, s.state.HasTake)
	}
	return sqlText, args, nil
}

func (s *EntitySet[T]) loadRoots(ctx context.Context, q conn.Querier) ([]reflect.Value, error) {
	sqlText, args, err := s.buildRootSQL()
	if err != nil {
		return nil, err
	}
	var out []reflect.Value
	run := func() error {
		rows, err := q.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return dferr.Execution(s.mapping.EntityType.Name(), "query", sqlText, err)
		}
		defer rows.Close()
		v, err := rowscan.ScanAll(rows, s.mapping)
		if err != nil {
			return err
		}
		out = v
		return nil
	}
	if err := conn.RetryRead(ctx, s.cfg, run); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EntitySet[T]) newIdentityCache() *identity.Cache {
	if !s.state.IdentityResolution {
		return nil
	}
	return identity.New(s.cfg.IdentityCacheInitialSize, s.cfg.IdentityCacheHardCap)
}

func (s *EntitySet[T]) loadSingleInclude(ctx context.Context, q conn.Querier) ([]reflect.Value, error) {
	plan, err := planner.Build(s.mapping, s.dialect, s.state.Includes, s.registry)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := s.appendWhereOrderPaging(plan.SQL)
	if err != nil {
		return nil, err
	}
	idCache := s.newIdentityCache()
	var out []reflect.Value
	run := func() error {
		v, err := planner.Load(ctx, q, plan, sqlText, args, idCache)
		if err != nil {
			return err
		}
		out = v
		return nil
	}
	if err := conn.RetryRead(ctx, s.cfg, run); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EntitySet[T]) loadSplitInclude(ctx context.Context, q conn.Querier) ([]reflect.Value, error) {
	roots, err := s.loadRoots(ctx, q)
	if err != nil {
		return nil, err
	}
	idCache := s.newIdentityCache()
	if idCache != nil {
		for i, r := range roots {
			roots[i] = idCache.Resolve(s.mapping.EntityType, keyValue(s.mapping, r), r)
		}
	}
	if err := splitload.Load(ctx, q, s.dialect, s.registry, roots, s.mapping, s.state.Includes.Roots, idCache); err != nil {
		return nil, err
	}
	return roots, nil
}

func (s *EntitySet[T]) load(ctx context.Context, q conn.Querier) ([]reflect.Value, error) {
	if s.state.Includes.Empty() {
		return s.loadRoots(ctx, q)
	}
	if s.state.Splitting == Split {
		return s.loadSplitInclude(ctx, q)
	}
	return s.loadSingleInclude(ctx, q)
}

func keyValue(m *mapping.EntityMapping, v reflect.Value) string {
	keys := m.EffectiveKey()
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k.Get(v)
	}
	return identity.FormatKeyValue(values...)
}

// ToList executes the query and returns every matching row.
func (s *EntitySet[T]) ToList(ctx context.Context, tx *conn.TxScope) ([]T, error) {
	if s.err != nil {
		return nil, s.err
	}
	q, err := s.querier(ctx, tx)
	if err != nil {
		return nil, err
	}
	values, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = v.Interface().(T)
	}
	return out, nil
}

// Count executes "SELECT COUNT(*) FROM a [WHERE ...]" with no paging/ordering.
func (s *EntitySet[T]) Count(ctx context.Context, tx *conn.TxScope) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	q, err := s.querier(ctx, tx)
	if err != nil {
		return 0, err
	}
	sqlText := "SELECT COUNT(*) FROM " + s.gen.QualifiedTable + " " + s.dialect.FormatTableAlias(sqlgen.RootAlias)
	var args []any
	if s.state.Predicate != nil {
		whereSQL, whereArgs, err := s.translator.Translate(s.state.Predicate, s.state.IgnoreCase)
		if err != nil {
			return 0, err
		}
		sqlText += " WHERE " + whereSQL
		args = whereArgs
	}
	var count int64
	run := func() error {
		rows, err := q.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return dferr.Execution(s.mapping.EntityType.Name(), "count", sqlText, err)
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&count); err != nil {
				return dferr.Execution(s.mapping.EntityType.Name(), "count", sqlText, err)
			}
		}
		return nil
	}
	if err := conn.RetryRead(ctx, s.cfg, run); err != nil {
		return 0, err
	}
	return count, nil
}

// Any reports whether Count is greater than zero.
func (s *EntitySet[T]) Any(ctx context.Context, tx *conn.TxScope) (bool, error) {
	n, err := s.Count(ctx, tx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *EntitySet[T]) firstInternal(ctx context.Context, tx *conn.TxScope) (T, bool, error) {
	var zero T
	if s.err != nil {
		return zero, false, s.err
	}
	c := s.clone()
	c.state.Take = 1
	c.state.HasTake = true
	list, err := c.ToList(ctx, tx)
	if err != nil {
		return zero, false, err
	}
	if len(list) == 0 {
		return zero, false, nil
	}
	return list[0], true, nil
}

// First returns the top row per the current ordering, failing with an
// Operation error if the set is empty.
func (s *EntitySet[T]) First(ctx context.Context, tx *conn.TxScope) (T, error) {
	v, ok, err := s.firstInternal(ctx, tx)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, dferr.Operationf(s.mapping.EntityType.Name(), "first", "sequence contains no elements")
	}
	return v, nil
}

// FirstOrDefault is First but returns the zero value instead of erroring
// when the set is empty.
func (s *EntitySet[T]) FirstOrDefault(ctx context.Context, tx *conn.TxScope) (T, error) {
	v, _, err := s.firstInternal(ctx, tx)
	return v, err
}

func (s *EntitySet[T]) singleInternal(ctx context.Context, tx *conn.TxScope) (T, bool, error) {
	var zero T
	if s.err != nil {
		return zero, false, s.err
	}
	c := s.clone()
	c.state.Take = 2
	c.state.HasTake = true
	list, err := c.ToList(ctx, tx)
	if err != nil {
		return zero, false, err
	}
	if len(list) == 0 {
		return zero, false, nil
	}
	if len(list) > 1 {
		return zero, false, dferr.Operationf(s.mapping.EntityType.Name(), "single", "sequence contains more than one element")
	}
	return list[0], true, nil
}

// Single returns the one matching row, failing with an Operation error if
// there are zero or more than one.
func (s *EntitySet[T]) Single(ctx context.Context, tx *conn.TxScope) (T, error) {
	v, ok, err := s.singleInternal(ctx, tx)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, dferr.Operationf(s.mapping.EntityType.Name(), "single", "sequence contains no elements")
	}
	return v, nil
}

// SingleOrDefault is Single but returns the zero value instead of erroring
// when the set is empty (more than one row is still an error).
func (s *EntitySet[T]) SingleOrDefault(ctx context.Context, tx *conn.TxScope) (T, error) {
	v, _, err := s.singleInternal(ctx, tx)
	return v, err
}

func (s *EntitySet[T]) lastInternal(ctx context.Context, tx *conn.TxScope) (T, bool, error) {
	var zero T
	if s.err != nil {
		return zero, false, s.err
	}
	if len(s.state.OrderBy) == 0 {
		return zero, false, dferr.Operationf(s.mapping.EntityType.Name(), "last", "Last requires an explicit OrderBy")
	}
	c := s.clone()
	reversed := make([]orderkey.Key, len(c.state.OrderBy))
	for i, k := range c.state.OrderBy {
		reversed[i] = orderkey.Key{Field: k.Field, Descending: !k.Descending}
	}
	c.state.OrderBy = reversed
	c.state.Skip = 0
	c.state.Take = 1
	c.state.HasTake = true
	list, err := c.ToList(ctx, tx)
	if err != nil {
		return zero, false, err
	}
	if len(list) == 0 {
		return zero, false, nil
	}
	return list[0], true, nil
}

// Last returns the last row of the current ordering (reversed-order top
// row), failing if the set has no explicit OrderBy or is empty.
func (s *EntitySet[T]) Last(ctx context.Context, tx *conn.TxScope) (T, error) {
	v, ok, err := s.lastInternal(ctx, tx)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, dferr.Operationf(s.mapping.EntityType.Name(), "last", "sequence contains no elements")
	}
	return v, nil
}

// LastOrDefault is Last but returns the zero value instead of erroring when
// the set is empty; it still requires an explicit OrderBy.
func (s *EntitySet[T]) LastOrDefault(ctx context.Context, tx *conn.TxScope) (T, error) {
	v, _, err := s.lastInternal(ctx, tx)
	return v, err
}
