package mutate

import (
	"context"
	"database/sql"
	"strings"

	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dferr"
)

// MassOptions controls a safe mass-mutation (spec C11 "Safe mass-mutations").
type MassOptions struct {
	// AllowMultiple, when false (the default), requires exactly 1 row
	// affected: 0 is a Concurrency error, >1 is an Operation error.
	AllowMultiple bool
	// ExpectedRows, when set, pre-validates the WHERE clause's match count
	// inside a transaction before running the mutation at all.
	ExpectedRows *int
}

// whereClause builds "[col1] = @w_Prop1 AND [col2] = @w_Prop2 ..." from a property
// name -> value map, validating every name against the mapping and rejecting
// the empty map (spec: "Reject trivially-true shapes ... empty WHERE").
func (e *Executor) whereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, dferr.Configurationf(e.Mapping.EntityType.Name(), "mass-mutation", "WHERE clause must not be empty")
	}
	var parts []string
	var args []any
	for name, value := range where {
		p, ok := e.Mapping.Property(name)
		if !ok {
			return "", nil, dferr.Configurationf(e.Mapping.EntityType.Name(), "mass-mutation", "property %q is not a mapped column of %s", name, e.Mapping.EntityType.Name())
		}
		paramName := "w_" + p.PropertyName
		parts = append(parts, e.Dialect.QuoteIdentifier(p.ColumnName)+" = "+e.Dialect.FormatParameter(paramName))
		args = append(args, sql.Named(paramName, value))
	}
	return strings.Join(parts, " AND "), args, nil
}

func (e *Executor) setClause(set map[string]any) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, dferr.Configurationf(e.Mapping.EntityType.Name(), "mass-mutation", "SET clause must not be empty")
	}
	var parts []string
	var args []any
	for name, value := range set {
		p, ok := e.Mapping.Property(name)
		if !ok {
			return "", nil, dferr.Configurationf(e.Mapping.EntityType.Name(), "mass-mutation", "property %q is not a mapped column of %s", name, e.Mapping.EntityType.Name())
		}
		paramName := "s_" + p.PropertyName
		parts = append(parts, e.Dialect.QuoteIdentifier(p.ColumnName)+" = "+e.Dialect.FormatParameter(paramName))
		args = append(args, sql.Named(paramName, value))
	}
	return strings.Join(parts, ", "), args, nil
}

func (e *Executor) qualifiedTable() string {
	if e.Mapping.Schema == "" {
		return e.Dialect.QuoteIdentifier(e.Mapping.TableName)
	}
	return e.Dialect.QuoteIdentifier(e.Mapping.Schema) + "." + e.Dialect.QuoteIdentifier(e.Mapping.TableName)
}

// checkExpectedRows runs SELECT COUNT(*) ... WHERE ... against q and
// compares it to *opts.ExpectedRows, returning an Operation error on
// mismatch (spec S7).
func (e *Executor) checkExpectedRows(ctx context.Context, q conn.Querier, whereSQL string, whereArgs []any, opts MassOptions, op string) error {
	if opts.ExpectedRows == nil {
		return nil
	}
	countSQL := "SELECT COUNT(*) FROM " + e.qualifiedTable() + " a WHERE " + whereSQL
	rows, err := q.QueryContext(ctx, countSQL, whereArgs...)
	if err != nil {
		return dferr.Execution(e.Mapping.EntityType.Name(), op, countSQL, err)
	}
	defer rows.Close()
	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return dferr.Execution(e.Mapping.EntityType.Name(), op, countSQL, err)
		}
	}
	if count != *opts.ExpectedRows {
		return dferr.Operationf(e.Mapping.EntityType.Name(), op, "expected %d matching rows, found %d", *opts.ExpectedRows, count)
	}
	return nil
}

func (e *Executor) checkAffected(op string, n int64, opts MassOptions) error {
	if opts.ExpectedRows != nil {
		return nil
	}
	if opts.AllowMultiple {
		return nil
	}
	if n == 0 {
		return dferr.Concurrency(e.Mapping.EntityType.Name(), op, n)
	}
	if n > 1 {
		return dferr.Operationf(e.Mapping.EntityType.Name(), op, "expected exactly 1 row affected, got %d", n)
	}
	return nil
}

// UpdateWhere runs a parameterized mass update. See MassOptions for the
// expected-row-count and allow-multiple contracts.
func (e *Executor) UpdateWhere(ctx context.Context, set, where map[string]any, opts MassOptions, tx *conn.TxScope) (int64, error) {
	setSQL, setArgs, err := e.setClause(set)
	if err != nil {
		return 0, err
	}
	whereSQL, whereArgs, err := e.whereClause(where)
	if err != nil {
		return 0, err
	}

	return e.runMassMutation(ctx, "update", tx, whereSQL, whereArgs, opts, func(q conn.Querier) (int64, error) {
		sqlText := "UPDATE " + e.qualifiedTable() + " SET " + setSQL + " WHERE " + whereSQL
		res, err := q.ExecContext(ctx, sqlText, append(append([]any{}, setArgs...), whereArgs...)...)
		if err != nil {
			return 0, dferr.Execution(e.Mapping.EntityType.Name(), "update", sqlText, err)
		}
		return res.RowsAffected()
	})
}

// DeleteWhere runs a parameterized mass delete under the same contracts.
func (e *Executor) DeleteWhere(ctx context.Context, where map[string]any, opts MassOptions, tx *conn.TxScope) (int64, error) {
	whereSQL, whereArgs, err := e.whereClause(where)
	if err != nil {
		return 0, err
	}

	return e.runMassMutation(ctx, "delete", tx, whereSQL, whereArgs, opts, func(q conn.Querier) (int64, error) {
		sqlText := "DELETE FROM " + e.qualifiedTable() + " WHERE " + whereSQL
		res, err := q.ExecContext(ctx, sqlText, whereArgs...)
		if err != nil {
			return 0, dferr.Execution(e.Mapping.EntityType.Name(), "delete", sqlText, err)
		}
		return res.RowsAffected()
	})
}

// runMassMutation centralizes the expected-rows pre-check, transaction
// join-or-open, and rollback-on-any-failure behavior shared by UpdateWhere
// and DeleteWhere.
func (e *Executor) runMassMutation(ctx context.Context, op string, tx *conn.TxScope, whereSQL string, whereArgs []any, opts MassOptions, run func(conn.Querier) (int64, error)) (int64, error) {
	ownTx := false
	if opts.ExpectedRows != nil && tx == nil {
		opened, err := e.Manager.Begin(ctx)
		if err != nil {
			return 0, err
		}
		tx, ownTx = opened, true
	}

	q, err := e.querier(ctx, tx)
	if err != nil {
		if ownTx {
			_ = tx.Dispose(ctx)
		}
		return 0, err
	}

	if err := e.checkExpectedRows(ctx, q, whereSQL, whereArgs, opts, op); err != nil {
		if ownTx {
			_ = tx.Dispose(ctx) // not completed: rolls back
		}
		return 0, err
	}

	n, err := run(q)
	if err != nil {
		if ownTx {
			_ = tx.Dispose(ctx)
		}
		return 0, err
	}

	if err := e.checkAffected(op, n, opts); err != nil {
		if ownTx {
			_ = tx.Dispose(ctx)
		}
		return 0, err
	}

	if ownTx {
		tx.Complete()
		if err := tx.Dispose(ctx); err != nil {
			return 0, err
		}
	}
	return n, nil
}
