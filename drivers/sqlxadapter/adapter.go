// Package sqlxadapter opens a pool through github.com/jmoiron/sqlx and
// exposes it both as a plain dfconfig.ConnectionFactory (for EntitySet/
// mutate/conn, which scan through rowscan) and as an *sqlx.DB for ad-hoc
// callers that want sqlx's own struct-scan-by-column-alias without going
// through the model registry. (cmd/dapperforge's query subcommand does not use
// this package; it scans each row into a map with sqlx's MapScan.) Grounded on the teacher's driver Connect() (DSN assembly,
// Open, Ping), adapted to sqlx's pool type, which embeds *sql.DB directly.
package sqlxadapter

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/nahmadov/dapperforge/dfconfig"
)

// Open opens and pings a pool through driverName/dsn using sqlx.
func Open(ctx context.Context, driverName, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Factory adapts Open into a dfconfig.ConnectionFactory: the engine's own
// query paths (EntitySet, mutate.Executor) run against the plain *sql.DB
// sqlx.DB embeds, scanning rows through rowscan rather than sqlx's own
// struct-scan — the model registry, not struct tags alone, owns column
// mapping for those paths.
func Factory(driverName, dsn string) dfconfig.ConnectionFactory {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := Open(ctx, driverName, dsn)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	}
}

// QueryStruct runs query against db and scans every row into dest (a
// pointer to a slice) by column-to-`db`-tag alias, via sqlx's own
// StructScan. Intended for raw/ad-hoc queries outside the typed EntitySet
// surface (diagnostics, migration-check reporting) — typed queries always
// go through rowscan so the model registry stays the single source of
// truth for column mapping.
func QueryStruct(ctx context.Context, db *sqlx.DB, query string, dest any, args ...any) error {
	return db.SelectContext(ctx, dest, query, args...)
}
