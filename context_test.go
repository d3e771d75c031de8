package dapperforge

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dfconfig"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxCustomer struct {
	Id   int
	Name string
}

func newCtx(t *testing.T) (*Context, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := dfconfig.Config{
		Dialect:           dialect.SqlServer{},
		ConnectionFactory: func(ctx context.Context) (*sql.DB, error) { return db, nil },
	}
	c, err := New(cfg)
	require.NoError(t, err)
	Configure[ctxCustomer](c, mapping.Identity("Id"))
	return c, mock
}

func TestNew_RequiresDialectAndConnectionFactory(t *testing.T) {
	_, err := New(dfconfig.Config{})
	require.Error(t, err)

	_, err = New(dfconfig.Config{Dialect: dialect.SqlServer{}})
	require.Error(t, err)
}

func TestSet_ToListRunsThroughSharedManager(t *testing.T) {
	c, mock := newCtx(t)
	mock.ExpectQuery("SELECT a.\\[Id\\] AS \\[Id\\], a.\\[Name\\] AS \\[Name\\] FROM \\[ctxCustomers\\] AS a").
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name"}).AddRow(1, "Ada"))

	set, err := Set[ctxCustomer](c)
	require.NoError(t, err)
	result, err := set.ToList(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Ada", result[0].Name)
}

func TestBundleFor_CachesAcrossCalls(t *testing.T) {
	c, _ := newCtx(t)
	b1, err := bundleFor[ctxCustomer](c)
	require.NoError(t, err)
	b2, err := bundleFor[ctxCustomer](c)
	require.NoError(t, err)
	assert.Same(t, b1, b2)
}

func TestInsert_SendsGeneratedStatement(t *testing.T) {
	c, mock := newCtx(t)
	mock.ExpectExec("INSERT INTO \\[ctxCustomers\\]").WillReturnResult(sqlmock.NewResult(1, 1))

	n, err := Insert[ctxCustomer](context.Background(), c, &ctxCustomer{Name: "Ada"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDelete_ZeroRowsIsConcurrencyError(t *testing.T) {
	c, mock := newCtx(t)
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))

	err := Delete[ctxCustomer](context.Background(), c, &ctxCustomer{Id: 1}, nil)
	require.Error(t, err)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	c, mock := newCtx(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := assert.AnError
	err := c.Transaction(context.Background(), func(tx *conn.TxScope) error {
		return boom
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
