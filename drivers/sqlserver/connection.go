// Package sqlserver builds the dfconfig.ConnectionFactory for a SqlServer
// backend on top of database/sql, grounded on the teacher's
// drivers/mysql/driver.go Connect() (DSN assembly, sql.Open, Ping) adapted
// from a driver-owned *types.Database to the engine's ConnectionFactory
// shape, which returns a bare *sql.DB.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/nahmadov/dapperforge/dfconfig"
)

// Options configures the connection pool opened by New.
type Options struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the connection string New opens, exposed for callers (the
// sqlxadapter-based ad-hoc query path in cmd/dapperforge) that need the same
// DSN without going through database/sql.
func (o Options) DSN() string {
	port := o.Port
	if port == 0 {
		port = 1433
	}
	return fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		o.Host, port, o.Database, o.User, o.Password)
}

// New returns a ConnectionFactory that opens and pings a SqlServer pool on
// first use, using the go-mssqldb driver.
func New(opts Options) dfconfig.ConnectionFactory {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("sqlserver", opts.DSN())
		if err != nil {
			return nil, err
		}
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}
