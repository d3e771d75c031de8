// Package oracle builds the dfconfig.ConnectionFactory for an Oracle
// backend on top of database/sql, grounded on the teacher's
// drivers/mysql/driver.go Connect() (DSN assembly, sql.Open, Ping), adapted
// to the go-ora pure-Go driver and the engine's plain *sql.DB factory shape.
package oracle

import (
	"context"
	"database/sql"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/nahmadov/dapperforge/dfconfig"
)

// Options configures the connection pool opened by New.
type Options struct {
	Host     string
	Port     int
	Service  string
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
		port = 1521
	}
	return go_ora.BuildUrl(o.Host, port, o.Service, o.User, o.Password, nil)
}

// New returns a ConnectionFactory that opens and pings an Oracle pool on
// first use, using the go-ora driver.
func New(opts Options) dfconfig.ConnectionFactory {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("oracle", opts.DSN())
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
