package validate

import (
	"reflect"
	"testing"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type valUser struct {
	Id   int
	Name string
}

func valMapping(t *testing.T, opts ...mapping.EntityOption) *mapping.EntityMapping {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(valUser{}), append([]mapping.EntityOption{mapping.Identity("Id")}, opts...)...)
	em, err := reg.Resolve(reflect.TypeOf(valUser{}))
	require.NoError(t, err)
	return em
}

func TestEntity_RequiredStringMissing(t *testing.T) {
	em := valMapping(t, mapping.Required("Name"))
	entity := reflect.ValueOf(&valUser{}).Elem()

	err := Entity(em, entity, OpInsert)
	require.Error(t, err)
	ee := err.(*dferr.EngineError)
	assert.Equal(t, dferr.Validation, ee.Kind)
	require.Len(t, ee.Fields, 1)
	assert.Equal(t, "Name", ee.Fields[0].Property)
}

func TestEntity_MaxLengthViolation(t *testing.T) {
	em := valMapping(t, mapping.MaxLength("Name", 3))
	entity := reflect.ValueOf(&valUser{Name: "abcdef"}).Elem()

	err := Entity(em, entity, OpInsert)
	require.Error(t, err)
}

func TestEntity_ValidPasses(t *testing.T) {
	em := valMapping(t, mapping.Required("Name"), mapping.MaxLength("Name", 10))
	entity := reflect.ValueOf(&valUser{Name: "ok"}).Elem()

	assert.NoError(t, Entity(em, entity, OpInsert))
}

func TestEntity_ReadOnlyEntityAlwaysFails(t *testing.T) {
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(valUser{}), mapping.Identity("Id"), mapping.ReadOnlyEntity())
	em, err := reg.Resolve(reflect.TypeOf(valUser{}))
	require.NoError(t, err)

	entity := reflect.ValueOf(&valUser{Name: "x"}).Elem()
	err = Entity(em, entity, OpInsert)
	require.Error(t, err)
	assert.Equal(t, dferr.ReadOnly, err.(*dferr.EngineError).Kind)
}

func TestEntity_SkipsIdentityOnInsert(t *testing.T) {
	em := valMapping(t)
	entity := reflect.ValueOf(&valUser{Name: "x"}).Elem()
	assert.NoError(t, Entity(em, entity, OpInsert))
}
