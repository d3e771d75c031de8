// Package orderkey implements the order translator (spec C5): turning
// ordered (property, descending) pairs into an ORDER BY fragment.
package orderkey

import (
	"strings"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
)

// Key is one ordering term: the mapped property to sort by, and direction.
type Key struct {
	Field      string
	Descending bool
}

// Translate renders keys into "a.<col>[ DESC], ..." in declared order.
// Calling Translate with no keys is a programmer error (spec: "Using ThenBy
// before any OrderBy is a programmer error") and returns a Configuration
// error rather than silently producing an unordered query.
func Translate(m *mapping.EntityMapping, d dialect.Dialect, keys []Key) (string, error) {
	if len(keys) == 0 {
		return "", dferr.Configurationf(m.EntityType.Name(), "orderby", "at least one ordering key is required")
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		p, ok := m.Property(k.Field)
		if !ok {
			return "", dferr.Configurationf(m.EntityType.Name(), "orderby",
				"property %q is not a mapped column of %s", k.Field, m.EntityType.Name())
		}
		frag := "a." + d.QuoteIdentifier(p.ColumnName)
		if k.Descending {
			frag += " DESC"
		}
		parts[i] = frag
	}
	return strings.Join(parts, ", "), nil
}

// DefaultOrder builds a deterministic fallback ordering by the mapping's
// first effective-key column, used by the planner when a query pages without
// any explicit ORDER BY (spec C5).
func DefaultOrder(m *mapping.EntityMapping) ([]Key, error) {
	keys := m.EffectiveKey()
	if len(keys) == 0 {
		return nil, dferr.Configurationf(m.EntityType.Name(), "orderby",
			"cannot derive a default ordering: %s has no key", m.EntityType.Name())
	}
	return []Key{{Field: keys[0].PropertyName}}, nil
}
