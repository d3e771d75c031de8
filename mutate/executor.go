// Package mutate implements the mutation executor (spec C11): Insert,
// InsertAndGetId, Update, Delete, DeleteById, and safe mass-mutations.
// Grounded on the teacher's query/insert_query.go, update_query.go, and
// delete_query.go Exec methods, generalized from positional ? placeholders
// to the named-parameter binding the SqlServer/Oracle dialects require.
package mutate

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/nahmadov/dapperforge/sqlgen"
	"github.com/nahmadov/dapperforge/validate"
)

// Executor runs mutations for one entity mapping under one dialect.
type Executor struct {
	Mapping *mapping.EntityMapping
	Dialect dialect.Dialect
	Gen     *sqlgen.Generator
	Manager *conn.Manager
}

func New(m *mapping.EntityMapping, d dialect.Dialect, manager *conn.Manager) (*Executor, error) {
	gen, err := sqlgen.New(m, d)
	if err != nil {
		return nil, err
	}
	return &Executor{Mapping: m, Dialect: d, Gen: gen, Manager: manager}, nil
}

func (e *Executor) querier(ctx context.Context, tx *conn.TxScope) (conn.Querier, error) {
	if tx != nil {
		return tx.Tx(), nil
	}
	return e.Manager.DB(ctx)
}

func namedArgs(cols []*mapping.PropertyMapping, entity reflect.Value) []any {
	args := make([]any, len(cols))
	for i, p := range cols {
		args[i] = sql.Named(p.PropertyName, p.Get(entity))
	}
	return args
}

// Insert validates and inserts entity, returning rows affected.
func (e *Executor) Insert(ctx context.Context, entity reflect.Value, tx *conn.TxScope) (int64, error) {
	if err := validate.Entity(e.Mapping, entity, validate.OpInsert); err != nil {
		return 0, err
	}
	q, err := e.querier(ctx, tx)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, e.Gen.Insert, namedArgs(e.Gen.InsertBoundColumns, entity)...)
	if err != nil {
		return 0, dferr.Execution(e.Mapping.EntityType.Name(), "insert", e.Gen.Insert, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dferr.Execution(e.Mapping.EntityType.Name(), "insert", e.Gen.Insert, err)
	}
	return n, nil
}

// InsertAndGetId inserts entity and assigns the database-generated key back
// onto it, returning the generated value as K. If the key is not
// database-generated, the key already on the entity is returned unchanged.
func InsertAndGetId[K any](ctx context.Context, e *Executor, entity reflect.Value, tx *conn.TxScope) (K, error) {
	var zero K
	keys := e.Mapping.EffectiveKey()
	if len(keys) == 0 {
		return zero, dferr.Configurationf(e.Mapping.EntityType.Name(), "insertAndGetId", "entity has no key")
	}

	if !e.Gen.IsKeyGenerated {
		if err := validate.Entity(e.Mapping, entity, validate.OpInsert); err != nil {
			return zero, err
		}
		q, err := e.querier(ctx, tx)
		if err != nil {
			return zero, err
		}
		if _, err := q.ExecContext(ctx, e.Gen.Insert, namedArgs(e.Gen.InsertBoundColumns, entity)...); err != nil {
			return zero, dferr.Execution(e.Mapping.EntityType.Name(), "insert", e.Gen.Insert, err)
		}
		v, ok := keys[0].Get(entity).(K)
		if !ok {
			return zero, dferr.Configurationf(e.Mapping.EntityType.Name(), "insertAndGetId", "key property %s is not of the requested type", keys[0].PropertyName)
		}
		return v, nil
	}

	if e.Gen.InsertReturningId == "" {
		return zero, dferr.Operationf(e.Mapping.EntityType.Name(), "insertAndGetId", "dialect %s does not support INSERT ... RETURNING id", e.Dialect.Name())
	}
	if err := validate.Entity(e.Mapping, entity, validate.OpInsert); err != nil {
		return zero, err
	}
	q, err := e.querier(ctx, tx)
	if err != nil {
		return zero, err
	}

	if e.Dialect.Name() == dialect.SqlServerName {
		// SqlServer-style: the tail is a scalar-returning SELECT.
		rows, err := q.QueryContext(ctx, e.Gen.InsertReturningId, namedArgs(e.Gen.InsertBoundColumns, entity)...)
		if err != nil {
			return zero, dferr.Execution(e.Mapping.EntityType.Name(), "insertAndGetId", e.Gen.InsertReturningId, err)
		}
		defer rows.Close()
		if !rows.Next() {
			return zero, dferr.Operationf(e.Mapping.EntityType.Name(), "insertAndGetId", "no id returned by INSERT")
		}
		var generated K
		if err := rows.Scan(&generated); err != nil {
			return zero, dferr.Operationf(e.Mapping.EntityType.Name(), "insertAndGetId", "scan generated id: %s", err)
		}
		if err := assignKey(entity, keys[0], generated); err != nil {
			return zero, dferr.KeyAssignment(e.Mapping.EntityType.Name(), "insertAndGetId", err)
		}
		return generated, nil
	}

	// Oracle-style: bind each generated key as an OUTPUT parameter with an
	// untyped (*any) destination, named by column to match RETURNING ... INTO.
	outs := make([]any, len(keys))
	args := namedArgs(e.Gen.InsertBoundColumns, entity)
	for i, k := range keys {
		outs[i] = new(any)
		args = append(args, sql.Named(k.ColumnName, sql.Out{Dest: outs[i]}))
	}
	if _, err := q.ExecContext(ctx, e.Gen.InsertReturningId, args...); err != nil {
		return zero, dferr.Execution(e.Mapping.EntityType.Name(), "insertAndGetId", e.Gen.InsertReturningId, err)
	}
	firstOut := *(outs[0].(*any))
	if firstOut == nil {
		return zero, dferr.Operationf(e.Mapping.EntityType.Name(), "insertAndGetId", "no id returned by INSERT")
	}
	generated, ok := firstOut.(K)
	if !ok {
		return zero, dferr.KeyAssignment(e.Mapping.EntityType.Name(), "insertAndGetId", fmt.Errorf("returned id %v is not of the requested type", firstOut))
	}
	if err := assignKey(entity, keys[0], generated); err != nil {
		return zero, dferr.KeyAssignment(e.Mapping.EntityType.Name(), "insertAndGetId", err)
	}
	return generated, nil
}

func assignKey(entity reflect.Value, key *mapping.PropertyMapping, value any) error {
	return key.Set(entity, value)
}

// Update validates and updates entity by its key. Zero rows affected raises
// a Concurrency error.
func (e *Executor) Update(ctx context.Context, entity reflect.Value, tx *conn.TxScope) error {
	if e.Gen.Update == "" {
		return nil
	}
	if err := validate.Entity(e.Mapping, entity, validate.OpUpdate); err != nil {
		return err
	}
	q, err := e.querier(ctx, tx)
	if err != nil {
		return err
	}
	args := namedArgs(e.Gen.UpdateColumns, entity)
	args = append(args, keyArgs(e.Mapping, entity)...)
	res, err := q.ExecContext(ctx, e.Gen.Update, args...)
	if err != nil {
		return dferr.Execution(e.Mapping.EntityType.Name(), "update", e.Gen.Update, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dferr.Execution(e.Mapping.EntityType.Name(), "update", e.Gen.Update, err)
	}
	if n == 0 {
		return dferr.Concurrency(e.Mapping.EntityType.Name(), "update", n)
	}
	return nil
}

// Delete deletes entity by its key. Zero rows affected raises a Concurrency
// error.
func (e *Executor) Delete(ctx context.Context, entity reflect.Value, tx *conn.TxScope) error {
	q, err := e.querier(ctx, tx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, e.Gen.DeleteById, keyArgs(e.Mapping, entity)...)
	if err != nil {
		return dferr.Execution(e.Mapping.EntityType.Name(), "delete", e.Gen.DeleteById, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dferr.Execution(e.Mapping.EntityType.Name(), "delete", e.Gen.DeleteById, err)
	}
	if n == 0 {
		return dferr.Concurrency(e.Mapping.EntityType.Name(), "delete", n)
	}
	return nil
}

// DeleteById deletes by an explicit key value (a scalar for single-key
// entities, or a map[string]any of property name to value for composite
// keys).
func (e *Executor) DeleteById(ctx context.Context, key any, tx *conn.TxScope) error {
	q, err := e.querier(ctx, tx)
	if err != nil {
		return err
	}
	args, err := keyArgsFromValue(e.Mapping, key)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, e.Gen.DeleteById, args...)
	if err != nil {
		return dferr.Execution(e.Mapping.EntityType.Name(), "deleteById", e.Gen.DeleteById, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dferr.Execution(e.Mapping.EntityType.Name(), "deleteById", e.Gen.DeleteById, err)
	}
	if n == 0 {
		return dferr.Concurrency(e.Mapping.EntityType.Name(), "deleteById", n)
	}
	return nil
}

func keyArgs(m *mapping.EntityMapping, entity reflect.Value) []any {
	keys := m.EffectiveKey()
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = sql.Named(k.ColumnName, k.Get(entity))
	}
	return args
}

func keyArgsFromValue(m *mapping.EntityMapping, key any) ([]any, error) {
	keys := m.EffectiveKey()
	if len(keys) == 1 {
		return []any{sql.Named(keys[0].ColumnName, key)}, nil
	}
	composite, ok := key.(map[string]any)
	if !ok {
		return nil, dferr.Configurationf(m.EntityType.Name(), "deleteById", "entity has a composite key; supply a map[string]any of property name to value")
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		v, ok := composite[k.PropertyName]
		if !ok {
			return nil, dferr.Configurationf(m.EntityType.Name(), "deleteById", "missing key component %q", k.PropertyName)
		}
		args[i] = sql.Named(k.ColumnName, v)
	}
	return args, nil
}
