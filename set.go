package dapperforge

import (
	"context"
	"reflect"

	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/mutate"
	"github.com/nahmadov/dapperforge/queryset"
)

// Set returns the typed queryable surface for T, building and caching its
// SQL generator and predicate translator on first use.
func Set[T any](c *Context) (*queryset.EntitySet[T], error) {
	b, err := bundleFor[T](c)
	if err != nil {
		return nil, err
	}
	return queryset.New[T](b.mapping, c.cfg.Dialect, b.gen, b.translator, c.registry, c.manager, c.cfg), nil
}

// Insert inserts entity and returns the number of rows affected.
func Insert[T any](ctx context.Context, c *Context, entity *T, tx *conn.TxScope) (int64, error) {
	b, err := bundleFor[T](c)
	if err != nil {
		return 0, err
	}
	return b.executor.Insert(ctx, reflect.ValueOf(entity).Elem(), tx)
}

// InsertAndGetId inserts entity and assigns its database-generated key back
// onto it, returning the generated value as K.
func InsertAndGetId[T any, K any](ctx context.Context, c *Context, entity *T, tx *conn.TxScope) (K, error) {
	var zero K
	b, err := bundleFor[T](c)
	if err != nil {
		return zero, err
	}
	return mutate.InsertAndGetId[K](ctx, b.executor, reflect.ValueOf(entity).Elem(), tx)
}

// Update updates entity by its key, failing with a Concurrency error if no
// row matched.
func Update[T any](ctx context.Context, c *Context, entity *T, tx *conn.TxScope) error {
	b, err := bundleFor[T](c)
	if err != nil {
		return err
	}
	return b.executor.Update(ctx, reflect.ValueOf(entity).Elem(), tx)
}

// Delete deletes entity by its key, failing with a Concurrency error if no
// row matched.
func Delete[T any](ctx context.Context, c *Context, entity *T, tx *conn.TxScope) error {
	b, err := bundleFor[T](c)
	if err != nil {
		return err
	}
	return b.executor.Delete(ctx, reflect.ValueOf(entity).Elem(), tx)
}

// DeleteById deletes the row identified by key (a single scalar, or a
// map[string]any of key property name to value for a composite key) without
// loading the entity first.
func DeleteById[T any](ctx context.Context, c *Context, key any, tx *conn.TxScope) error {
	b, err := bundleFor[T](c)
	if err != nil {
		return err
	}
	return b.executor.DeleteById(ctx, key, tx)
}
