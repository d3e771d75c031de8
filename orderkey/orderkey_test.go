package orderkey

import (
	"reflect"
	"testing"

	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderEntity struct {
	Id   int
	Name string
}

func orderMapping(t *testing.T) *mapping.EntityMapping {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(orderEntity{}), mapping.Identity("Id"))
	em, err := reg.Resolve(reflect.TypeOf(orderEntity{}))
	require.NoError(t, err)
	return em
}

func TestTranslate_MultipleKeys(t *testing.T) {
	em := orderMapping(t)
	sql, err := Translate(em, dialect.SqlServer{}, []Key{
		{Field: "Name"},
		{Field: "Id", Descending: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "a.[Name], a.[Id] DESC", sql)
}

func TestTranslate_NoKeys_IsConfigurationError(t *testing.T) {
	em := orderMapping(t)
	_, err := Translate(em, dialect.SqlServer{}, nil)
	assert.Error(t, err)
}

func TestDefaultOrder_UsesFirstKeyColumn(t *testing.T) {
	em := orderMapping(t)
	keys, err := DefaultOrder(em)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "Id", keys[0].Field)
	assert.False(t, keys[0].Descending)
}
