package rowscan

import (
	"reflect"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanUser struct {
	Id   int
	Name string
}

func scanMapping(t *testing.T) *mapping.EntityMapping {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(scanUser{}), mapping.Identity("Id"))
	em, err := reg.Resolve(reflect.TypeOf(scanUser{}))
	require.NoError(t, err)
	return em
}

func TestScanAll(t *testing.T) {
	em := scanMapping(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"Id", "Name"}).
			AddRow(1, "Ada").
			AddRow(2, "Grace"))

	rows, err := db.Query("SELECT Id, Name FROM Users")
	require.NoError(t, err)
	defer rows.Close()

	values, err := ScanAll(rows, em)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, scanUser{Id: 1, Name: "Ada"}, values[0].Interface())
	assert.Equal(t, scanUser{Id: 2, Name: "Grace"}, values[1].Interface())
}

type scanCustomer struct {
	Id   int
	Name string
}

type scanOrder struct {
	Id         int
	CustomerId int
}

func TestScanMulti_MarksLeftJoinMissAsNotPresent(t *testing.T) {
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(scanCustomer{}), mapping.Identity("Id"))
	reg.Configure(reflect.TypeOf(scanOrder{}), mapping.Identity("Id"))
	custMapping, err := reg.Resolve(reflect.TypeOf(scanCustomer{}))
	require.NoError(t, err)
	orderMapping, err := reg.Resolve(reflect.TypeOf(scanOrder{}))
	require.NoError(t, err)

	groups := []Group{
		{Alias: "a", Mapping: custMapping},
		{Alias: "b1", Mapping: orderMapping},
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"a__Id", "a__Name", "b1__Id", "b1__CustomerId"}).
			AddRow(1, "Ada", 10, 1).
			AddRow(2, "Grace", nil, nil))

	rows, err := db.Query("SELECT whatever")
	require.NoError(t, err)
	defer rows.Close()

	scanned, err := ScanMulti(rows, groups)
	require.NoError(t, err)
	require.Len(t, scanned, 2)

	assert.True(t, scanned[0].Groups[0].Present)
	assert.True(t, scanned[0].Groups[1].Present)
	assert.Equal(t, scanCustomer{Id: 1, Name: "Ada"}, scanned[0].Groups[0].Value.Interface())
	assert.Equal(t, scanOrder{Id: 10, CustomerId: 1}, scanned[0].Groups[1].Value.Interface())

	assert.True(t, scanned[1].Groups[0].Present)
	assert.False(t, scanned[1].Groups[1].Present)
}
