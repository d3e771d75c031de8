package queryset

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/nahmadov/dapperforge/conn"
	"github.com/nahmadov/dapperforge/dfconfig"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/nahmadov/dapperforge/predicate"
	"github.com/nahmadov/dapperforge/sqlgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qsCustomer struct {
	Id      int
	Name    string
	Country string
	Orders  []qsOrder
}

type qsOrder struct {
	Id         int
	CustomerId int
	Amount     float64
}

func newQsSet(t *testing.T) (*EntitySet[qsCustomer], sqlmock.Sqlmock) {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(qsCustomer{}),
		mapping.Identity("Id"),
		mapping.Collection("Orders", "CustomerId"))
	reg.Configure(reflect.TypeOf(qsOrder{}), mapping.Identity("Id"))
	m, err := reg.Resolve(reflect.TypeOf(qsCustomer{}))
	require.NoError(t, err)

	d := dialect.SqlServer{}
	gen, err := sqlgen.New(m, d)
	require.NoError(t, err)
	translator := predicate.NewTranslator(m, d, nil)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := dfconfig.Config{ConnectionFactory: func(ctx context.Context) (*sql.DB, error) { return db, nil }}
	manager := conn.NewManager(cfg)

	set := New[qsCustomer](m, d, gen, translator, reg, manager, cfg)
	return set, mock
}

func TestEntitySet_ToList_FilterAndPaging(t *testing.T) {
	set, mock := newQsSet(t)

	mock.ExpectQuery("SELECT a.\\[Id\\] AS \\[Id\\], a.\\[Name\\] AS \\[Name\\], a.\\[Country\\] AS \\[Country\\] FROM \\[qsCustomers\\] AS a WHERE a.\\[Country\\] = @p0 ORDER BY a.\\[Id\\] OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY").
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Country"}).
			AddRow(1, "Ada", "US"))

	result, err := set.
		Where(predicate.Cmp{Field: "Country", Op: predicate.OpEq, Value: "US"}).
		Skip(10).Take(5).
		ToList(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Ada", result[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitySet_ThenByWithoutOrderByFails(t *testing.T) {
	set, _ := newQsSet(t)
	_, err := set.ThenBy("Name").ToList(context.Background(), nil)
	require.Error(t, err)
}

func TestEntitySet_TakeZeroFails(t *testing.T) {
	set, _ := newQsSet(t)
	_, err := set.Take(0).ToList(context.Background(), nil)
	require.Error(t, err)
}

func TestEntitySet_ThenIncludeWithoutIncludeFails(t *testing.T) {
	set, _ := newQsSet(t)
	_, err := set.ThenInclude("Orders").ToList(context.Background(), nil)
	require.Error(t, err)
}

func TestEntitySet_Count(t *testing.T) {
	set, mock := newQsSet(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM \\[qsCustomers\\] AS a").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := set.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestEntitySet_FirstOnEmptySetFails(t *testing.T) {
	set, mock := newQsSet(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Country"}))

	_, err := set.First(context.Background(), nil)
	require.Error(t, err)
}

func TestEntitySet_FirstOrDefaultOnEmptySetReturnsZero(t *testing.T) {
	set, mock := newQsSet(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Country"}))

	v, err := set.FirstOrDefault(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, qsCustomer{}, v)
}

func TestEntitySet_LastWithoutOrderByFails(t *testing.T) {
	set, _ := newQsSet(t)
	_, err := set.Last(context.Background(), nil)
	require.Error(t, err)
}

func TestEntitySet_SingleWithMoreThanOneRowFails(t *testing.T) {
	set, mock := newQsSet(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Country"}).
		AddRow(1, "Ada", "US").
		AddRow(2, "Grace", "US"))

	_, err := set.Single(context.Background(), nil)
	require.Error(t, err)
}

func TestEntitySet_SplitIncludeLoadsCollection(t *testing.T) {
	set, mock := newQsSet(t)

	mock.ExpectQuery("SELECT a.\\[Id\\] AS \\[Id\\], a.\\[Name\\] AS \\[Name\\], a.\\[Country\\] AS \\[Country\\] FROM \\[qsCustomers\\] AS a").
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Country"}).
			AddRow(1, "Ada", "US"))
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"Id", "CustomerId", "Amount"}).
			AddRow(10, 1, 99.5).
			AddRow(11, 1, 12.0))

	result, err := set.Include("Orders").AsSplitQuery().ToList(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Len(t, result[0].Orders, 2)
}

func TestEntitySet_SingleIncludeLoadsCollectionViaJoin(t *testing.T) {
	set, mock := newQsSet(t)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"a__Id", "a__Name", "a__Country", "b1__Id", "b1__CustomerId", "b1__Amount"}).
			AddRow(1, "Ada", "US", 10, 1, 99.5).
			AddRow(1, "Ada", "US", 11, 1, 12.0))

	result, err := set.Include("Orders").ToList(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Len(t, result[0].Orders, 2)
}
