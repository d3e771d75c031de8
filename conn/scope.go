// Package conn implements the connection and transaction scope (spec C12):
// lazy pool acquisition with health recovery, at-most-one-active-transaction
// per context, and complete-or-rollback disposal. Grounded on the teacher's
// *sql.Tx-wrapping transaction types (drivers/mysql/transaction.go), adapted
// from a per-driver Transaction type to one engine-wide Manager built
// directly on database/sql.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dfconfig"
)

// Querier is the subset of *sql.DB / *sql.Tx that query and mutation
// executors need; it lets them run the same code inside or outside a
// transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Manager owns the lazily-opened connection pool for one context and the
// context's single permitted in-flight transaction. Not safe for concurrent
// use by design (spec: "cooperative single-threaded per context").
type Manager struct {
	cfg dfconfig.Config

	mu        sync.Mutex
	db        *sql.DB
	broken    bool
	activeTx  *TxScope
}

func NewManager(cfg dfconfig.Config) *Manager {
	return &Manager{cfg: cfg.WithDefaults()}
}

// DB returns the shared pool, opening it via the configured factory on first
// use and recreating it if a prior operation marked it broken (spec: "on
// acquisition, if state is Broken, dispose and recreate").
func (m *Manager) DB(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dbLocked(ctx)
}

func (m *Manager) dbLocked(ctx context.Context) (*sql.DB, error) {
	if m.db != nil && !m.broken {
		return m.db, nil
	}
	if m.db != nil && m.broken {
		_ = m.db.Close()
		m.db = nil
		m.broken = false
	}
	if m.cfg.ConnectionFactory == nil {
		return nil, dferr.Connectionf("no connection factory configured")
	}
	db, err := m.cfg.ConnectionFactory(ctx)
	if err != nil {
		return nil, dferr.Connectionf("connection factory failed: %s", err)
	}
	if db == nil {
		return nil, dferr.Connectionf("connection factory returned a nil connection")
	}
	m.db = db
	return m.db, nil
}

// MarkBroken flags the pool for recreation on next acquisition. Call this
// when a driver error indicates the underlying connection is unusable.
func (m *Manager) MarkBroken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken = true
}

// Querier returns whatever the caller should issue statements against: the
// active transaction's *sql.Tx if one is open, else the shared pool.
func (m *Manager) Querier(ctx context.Context) (Querier, error) {
	m.mu.Lock()
	tx := m.activeTx
	m.mu.Unlock()
	if tx != nil {
		return tx.tx, nil
	}
	return m.DB(ctx)
}

// Begin opens a new transaction scope. Only one may be active per Manager at
// a time (spec: "at most one active transaction per context; starting a
// second fails").
func (m *Manager) Begin(ctx context.Context) (*TxScope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeTx != nil {
		return nil, dferr.Operationf("", "begin-transaction", "a transaction is already active on this context")
	}
	db, err := m.dbLocked(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dferr.Connectionf("begin transaction: %s", err)
	}
	scope := &TxScope{mgr: m, tx: tx}
	m.activeTx = scope
	return scope, nil
}

// TxScope holds one active transaction. Complete marks it for commit;
// Dispose commits if marked complete, otherwise rolls back.
type TxScope struct {
	mgr       *Manager
	tx        *sql.Tx
	completed bool
	disposed  bool
}

// Complete marks the transaction for commit on Dispose.
func (s *TxScope) Complete() { s.completed = true }

// Tx exposes the underlying *sql.Tx for callers that need raw access.
func (s *TxScope) Tx() *sql.Tx { return s.tx }

// Dispose commits (if Complete was called) or rolls back, then releases the
// transaction slot. Safe to call more than once; a rollback after a failed
// commit is a no-op success per spec.
func (s *TxScope) Dispose(ctx context.Context) error {
	if s.disposed {
		return nil
	}
	s.disposed = true
	s.mgr.mu.Lock()
	if s.mgr.activeTx == s {
		s.mgr.activeTx = nil
	}
	s.mgr.mu.Unlock()

	if s.completed {
		if err := s.tx.Commit(); err != nil {
			_ = s.tx.Rollback()
			return dferr.Execution("", "commit", "", err)
		}
		return nil
	}
	if err := s.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return dferr.Execution("", "rollback", "", err)
	}
	return nil
}

// WarnIfOpenOnDispose logs (does not fail) when a connection scope is
// disposed while an uncommitted transaction is still outstanding — spec:
// "log an error but proceed with dispose (the caller misused the API)".
func (m *Manager) WarnIfOpenOnDispose() {
	m.mu.Lock()
	tx := m.activeTx
	m.mu.Unlock()
	if tx != nil {
		m.cfg.Logger.Error("connection scope disposed with an uncommitted transaction still active: %s", fmt.Sprint("rolling back"))
		_ = tx.Dispose(context.Background())
	}
}
