package sqlxadapter

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestOpen_PingsThroughRegisteredDriver(t *testing.T) {
	dsn := "sqlxadapter-open-test"
	mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	mock.ExpectPing()

	db, err := Open(context.Background(), "sqlmock", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFactory_ReturnsUnderlyingSqlDB(t *testing.T) {
	dsn := "sqlxadapter-factory-test"
	mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	mock.ExpectPing()

	factory := Factory("sqlmock", dsn)
	db, err := factory(context.Background())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, mock.ExpectationsWereMet())
}
