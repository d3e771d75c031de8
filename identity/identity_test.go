package identity

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type idEntity struct{ Id int }

func TestCache_ResolveDedupesSameKey(t *testing.T) {
	c := New(16, 64)
	typ := reflect.TypeOf(idEntity{})

	first := c.Resolve(typ, "1", reflect.ValueOf(&idEntity{Id: 1}))
	second := c.Resolve(typ, "1", reflect.ValueOf(&idEntity{Id: 1}))

	assert.Same(t, first.Interface(), second.Interface())
	stats := c.Stats()
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Hits)
}

func TestCache_DistinctKeysDoNotCollide(t *testing.T) {
	c := New(16, 64)
	typ := reflect.TypeOf(idEntity{})

	a := c.Resolve(typ, "1", reflect.ValueOf(&idEntity{Id: 1}))
	b := c.Resolve(typ, "2", reflect.ValueOf(&idEntity{Id: 2}))
	assert.NotSame(t, a.Interface(), b.Interface())
}

func TestCache_EvictsOverCapacity(t *testing.T) {
	c := New(2, 2)
	typ := reflect.TypeOf(idEntity{})

	c.Resolve(typ, "1", reflect.ValueOf(&idEntity{Id: 1}))
	c.Resolve(typ, "2", reflect.ValueOf(&idEntity{Id: 2}))
	c.Resolve(typ, "3", reflect.ValueOf(&idEntity{Id: 3}))

	assert.LessOrEqual(t, c.inner.Len(), 2)
	assert.Equal(t, 1, c.Stats().Evictions)
}
