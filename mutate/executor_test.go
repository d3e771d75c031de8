package mutate

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dfconfig"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mutUser struct {
	Id       int
	Name     string
	IsActive bool
}

func mutExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := dfconfig.Config{ConnectionFactory: func(ctx context.Context) (*sql.DB, error) { return db, nil }}
	manager := conn.NewManager(cfg)

	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(mutUser{}), mapping.Identity("Id"))
	em, err := reg.Resolve(reflect.TypeOf(mutUser{}))
	require.NoError(t, err)

	exec, err := New(em, dialect.SqlServer{}, manager)
	require.NoError(t, err)
	return exec, mock
}

func TestExecutor_Insert(t *testing.T) {
	exec, mock := mutExecutor(t)
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(1, 1))

	entity := reflect.ValueOf(&mutUser{Name: "Ada", IsActive: true}).Elem()
	n, err := exec.Insert(context.Background(), entity, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExecutor_Update_ZeroRowsIsConcurrencyError(t *testing.T) {
	exec, mock := mutExecutor(t)
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 0))

	entity := reflect.ValueOf(&mutUser{Id: 1, Name: "Ada", IsActive: true}).Elem()
	err := exec.Update(context.Background(), entity, nil)
	require.Error(t, err)
	assert.Equal(t, dferr.Concurrency, err.(*dferr.EngineError).Kind)
}

func TestExecutor_Delete_Success(t *testing.T) {
	exec, mock := mutExecutor(t)
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 1))

	entity := reflect.ValueOf(&mutUser{Id: 1}).Elem()
	err := exec.Delete(context.Background(), entity, nil)
	require.NoError(t, err)
}

func TestExecutor_DeleteById_ScalarKey(t *testing.T) {
	exec, mock := mutExecutor(t)
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 1))

	err := exec.DeleteById(context.Background(), 1, nil)
	require.NoError(t, err)
}

func TestExecutor_UpdateWhere_RejectsEmptyWhere(t *testing.T) {
	exec, _ := mutExecutor(t)
	_, err := exec.UpdateWhere(context.Background(), map[string]any{"Name": "x"}, map[string]any{}, MassOptions{}, nil)
	assert.Error(t, err)
}

func TestExecutor_UpdateWhere_ExpectedRowsMismatchRollsBack(t *testing.T) {
	exec, mock := mutExecutor(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	expected := 3
	_, err := exec.UpdateWhere(context.Background(),
		map[string]any{"Name": "updated"},
		map[string]any{"Name": "pending"},
		MassOptions{ExpectedRows: &expected}, nil)
	require.Error(t, err)
	assert.Equal(t, dferr.Operation, err.(*dferr.EngineError).Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
