package planner

import (
	"context"
	"reflect"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/identity"
	"github.com/nahmadov/dapperforge/include"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planCustomer struct {
	Id     int
	Name   string
	Orders []planOrder
}

type planOrder struct {
	Id         int
	CustomerId int
}

func planRegistry(t *testing.T) (*mapping.Registry, *mapping.EntityMapping) {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(planCustomer{}),
		mapping.Identity("Id"),
		mapping.Collection("Orders", "CustomerId"))
	reg.Configure(reflect.TypeOf(planOrder{}), mapping.Identity("Id"))
	root, err := reg.Resolve(reflect.TypeOf(planCustomer{}))
	require.NoError(t, err)
	return reg, root
}

func TestBuild_SingleIncludeAliasesAndSplitOn(t *testing.T) {
	reg, root := planRegistry(t)
	tree := include.New(reg, reflect.TypeOf(planCustomer{}))
	_, err := tree.Include("Orders")
	require.NoError(t, err)

	plan, err := Build(root, dialect.SqlServer{}, tree, reg)
	require.NoError(t, err)

	assert.Contains(t, plan.SQL, "a.[Id] AS [a__Id]")
	assert.Contains(t, plan.SQL, "a.[Name] AS [a__Name]")
	assert.Contains(t, plan.SQL, "b1.[Id] AS [b1__Id]")
	assert.Contains(t, plan.SQL, "b1.[CustomerId] AS [b1__CustomerId]")
	assert.Contains(t, plan.SQL, "LEFT JOIN [planOrders] AS b1 ON a.[Id] = b1.[CustomerId]")
	assert.Equal(t, "[a__Id], [b1__Id]", plan.SplitOn)
}

func TestLoad_ThreeCustomersTwoOrdersEach(t *testing.T) {
	reg, root := planRegistry(t)
	tree := include.New(reg, reflect.TypeOf(planCustomer{}))
	_, err := tree.Include("Orders")
	require.NoError(t, err)

	plan, err := Build(root, dialect.SqlServer{}, tree, reg)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"a__Id", "a__Name", "b1__Id", "b1__CustomerId"})
	for c := 1; c <= 3; c++ {
		for o := 1; o <= 2; o++ {
			rows.AddRow(c, "Customer", (c-1)*2+o, c)
		}
	}
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	result, err := Load(context.Background(), db, plan, plan.SQL, nil, identity.New(64, 1024))
	require.NoError(t, err)
	require.Len(t, result, 3)
	for _, r := range result {
		c := r.Interface().(planCustomer)
		assert.Len(t, c.Orders, 2)
	}
}

func TestLoad_NoIdentityResolutionDuplicatesRoots(t *testing.T) {
	reg, root := planRegistry(t)
	tree := include.New(reg, reflect.TypeOf(planCustomer{}))
	_, err := tree.Include("Orders")
	require.NoError(t, err)

	plan, err := Build(root, dialect.SqlServer{}, tree, reg)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"a__Id", "a__Name", "b1__Id", "b1__CustomerId"}).
		AddRow(1, "Ada", 1, 1).
		AddRow(1, "Ada", 2, 1)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	result, err := Load(context.Background(), db, plan, plan.SQL, nil, nil)
	require.NoError(t, err)
	// With identity resolution off, the fanned-out root row is duplicated
	// once per matching child row rather than collapsed.
	assert.Len(t, result, 2)
}
