// Package dfconfig holds the engine's configuration value type. Per the
// "multiple constructors / optional named parameters" design note, options
// are a plain struct with documented defaults rather than a builder.
package dfconfig

import (
	"context"
	"database/sql"
	"time"

	"github.com/nahmadov/dapperforge/dflog"
	"github.com/nahmadov/dapperforge/dialect"
)

// ConnectionFactory opens the shared *sql.DB pool. Supplied once at
// configuration time; conn.Manager calls it lazily on first use. The host
// driver (go-mssqldb, go-ora, go-sql-driver/mysql, ...) is selected by the
// factory via its sql.Open driver name — the engine itself is driver-agnostic
// above database/sql.
type ConnectionFactory func(ctx context.Context) (*sql.DB, error)

// TransientClassifier decides whether a read error is safe to retry.
type TransientClassifier func(err error) bool

// Config is the engine's single configuration value.
type Config struct {
	ConnectionFactory ConnectionFactory
	Dialect           dialect.Dialect

	// CommandTimeoutSeconds is stored with a default of 30 when 0; no query or
	// mutation path applies it to a statement.
	CommandTimeoutSeconds int
	// MaxRetryCount bounds read retries on transient errors; 0 uses the default (3).
	MaxRetryCount int
	// BaseRetryDelay is the first backoff delay; 0 uses the default (100ms).
	BaseRetryDelay time.Duration
	// DisableIdentityResolution turns off the per-query identity cache by
	// default for every EntitySet built from this configuration (spec
	// default is identity resolution "on"; zero value here preserves that).
	DisableIdentityResolution bool
	// TransientClassifier overrides the built-in transient-error recognizer.
	TransientClassifier TransientClassifier

	Logger dflog.Logger

	// LRUCacheSize bounds the compiled-predicate cache (C4); 0 uses the default (1000).
	LRUCacheSize int
	// IdentityCacheInitialSize and IdentityCacheHardCap bound the per-query
	// identity cache (C9); 0 uses the defaults (256, 50000).
	IdentityCacheInitialSize int
	IdentityCacheHardCap     int
}

const (
	DefaultCommandTimeoutSeconds = 30
	DefaultMaxRetryCount         = 3
	DefaultBaseRetryDelay        = 100 * time.Millisecond
	DefaultLRUCacheSize          = 1000
	DefaultIdentityCacheInitial  = 256
	DefaultIdentityCacheHardCap  = 50000
)

// WithDefaults returns a copy of cfg with every zero-valued tunable field
// filled in from the documented defaults.
func (c Config) WithDefaults() Config {
	if c.CommandTimeoutSeconds == 0 {
		c.CommandTimeoutSeconds = DefaultCommandTimeoutSeconds
	}
	if c.MaxRetryCount == 0 {
		c.MaxRetryCount = DefaultMaxRetryCount
	}
	if c.BaseRetryDelay == 0 {
		c.BaseRetryDelay = DefaultBaseRetryDelay
	}
	if c.Logger == nil {
		c.Logger = dflog.NewNullLogger()
	}
	if c.LRUCacheSize == 0 {
		c.LRUCacheSize = DefaultLRUCacheSize
	}
	if c.IdentityCacheInitialSize == 0 {
		c.IdentityCacheInitialSize = DefaultIdentityCacheInitial
	}
	if c.IdentityCacheHardCap == 0 {
		c.IdentityCacheHardCap = DefaultIdentityCacheHardCap
	}
	return c
}
