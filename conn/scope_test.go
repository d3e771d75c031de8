package conn

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/nahmadov/dapperforge/dfconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return context.Background()
}

func testConfig() dfconfig.Config {
	return dfconfig.Config{
		MaxRetryCount:  2,
		BaseRetryDelay: time.Millisecond,
	}
}

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig()
	cfg.ConnectionFactory = func(ctx context.Context) (*sql.DB, error) {
		return db, nil
	}
	return NewManager(cfg), mock
}

func TestManager_BeginRejectsSecondTransaction(t *testing.T) {
	mgr, mock := newMockManager(t)
	mock.ExpectBegin()

	tx, err := mgr.Begin(testContext(t))
	require.NoError(t, err)
	defer tx.Dispose(testContext(t))

	_, err = mgr.Begin(testContext(t))
	assert.Error(t, err)
}

func TestTxScope_CompleteCommits(t *testing.T) {
	mgr, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := mgr.Begin(testContext(t))
	require.NoError(t, err)
	tx.Complete()
	require.NoError(t, tx.Dispose(testContext(t)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxScope_DisposeWithoutCompleteRollsBack(t *testing.T) {
	mgr, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := mgr.Begin(testContext(t))
	require.NoError(t, err)
	require.NoError(t, tx.Dispose(testContext(t)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxScope_DisposeIsIdempotent(t *testing.T) {
	mgr, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := mgr.Begin(testContext(t))
	require.NoError(t, err)
	require.NoError(t, tx.Dispose(testContext(t)))
	require.NoError(t, tx.Dispose(testContext(t)))
}
