package predicate

import (
	"reflect"
	"testing"

	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type predUser struct {
	Id       int
	Name     string
	IsActive bool
	Age      int
}

func predMapping(t *testing.T) *mapping.EntityMapping {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(predUser{}), mapping.Identity("Id"))
	em, err := reg.Resolve(reflect.TypeOf(predUser{}))
	require.NoError(t, err)
	return em
}

func TestTranslate_Eq(t *testing.T) {
	em := predMapping(t)
	tr := NewTranslator(em, dialect.SqlServer{}, nil)
	sql, params, err := tr.Translate(F[string]("Name").Eq("bob"), false)
	require.NoError(t, err)
	assert.Equal(t, "a.[Name] = @p0", sql)
	assert.Equal(t, []any{"bob"}, params)
}

func TestTranslate_IsNull(t *testing.T) {
	em := predMapping(t)
	tr := NewTranslator(em, dialect.SqlServer{}, nil)
	sql, params, err := tr.Translate(F[string]("Name").IsNull(), false)
	require.NoError(t, err)
	assert.Equal(t, "a.[Name] IS NULL", sql)
	assert.Empty(t, params)
}

func TestTranslate_BoolProp(t *testing.T) {
	em := predMapping(t)
	tr := NewTranslator(em, dialect.SqlServer{}, nil)
	sql, _, err := tr.Translate(FB("IsActive").True(), false)
	require.NoError(t, err)
	assert.Equal(t, "a.[IsActive] = 1", sql)
}

func TestTranslate_Contains(t *testing.T) {
	em := predMapping(t)
	tr := NewTranslator(em, dialect.SqlServer{}, nil)
	sql, params, err := tr.Translate(FS("Name").Contains("bo%b"), false)
	require.NoError(t, err)
	assert.Equal(t, "a.[Name] LIKE @p0 ESCAPE '\\'", sql)
	assert.Equal(t, []any{`%bo\%b%`}, params)
}

func TestTranslate_EmptyInList(t *testing.T) {
	em := predMapping(t)
	tr := NewTranslator(em, dialect.SqlServer{}, nil)
	sql, params, err := tr.Translate(In(F[int]("Age"), []int{}), false)
	require.NoError(t, err)
	assert.Equal(t, "1=0", sql)
	assert.Empty(t, params)
}

func TestTranslate_And(t *testing.T) {
	em := predMapping(t)
	tr := NewTranslator(em, dialect.SqlServer{}, nil)
	expr := And{Left: F[string]("Name").Eq("bob"), Right: F[int]("Age").Gt(18)}
	sql, params, err := tr.Translate(expr, false)
	require.NoError(t, err)
	assert.Equal(t, "(a.[Name] = @p0 AND a.[Age] > @p1)", sql)
	assert.Equal(t, []any{"bob", 18}, params)
}

func TestTranslate_UnknownField(t *testing.T) {
	em := predMapping(t)
	tr := NewTranslator(em, dialect.SqlServer{}, nil)
	_, _, err := tr.Translate(F[string]("Nope").Eq("x"), false)
	assert.Error(t, err)
}

func TestTranslate_CacheReusesShapeAcrossValues(t *testing.T) {
	em := predMapping(t)
	cache := NewCache(10)
	tr := NewTranslator(em, dialect.SqlServer{}, cache)

	sql1, params1, err := tr.Translate(F[string]("Name").Eq("alice"), false)
	require.NoError(t, err)
	sql2, params2, err := tr.Translate(F[string]("Name").Eq("carol"), false)
	require.NoError(t, err)

	assert.Equal(t, sql1, sql2)
	assert.Equal(t, []any{"alice"}, params1)
	assert.Equal(t, []any{"carol"}, params2)
	assert.Equal(t, 1, cache.inner.Len())
}
