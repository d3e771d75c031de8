// Package validate implements the entity validator (spec C10): pre-insert
// and pre-update field checks, collected into a single Validation error.
package validate

import (
	"reflect"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/mapping"
)

// Op distinguishes which generated/read-only properties to skip.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
)

// Entity validates entity (an addressable struct value) against m for op.
// Returns a *dferr.EngineError of Kind ReadOnly if the mapping itself is
// read-only, or Kind Validation carrying every violation found.
func Entity(m *mapping.EntityMapping, entity reflect.Value, op Op) error {
	if m.IsReadOnly {
		return dferr.ReadOnlyErr(m.EntityType.Name(), "validate")
	}

	var fields []dferr.FieldError
	for _, p := range m.Properties {
		if op == OpInsert && p.IsGenerated() {
			continue
		}
		if op == OpUpdate && (p.IsGenerated() || p.IsReadOnly) {
			continue
		}
		if op == OpInsert && p.IsReadOnly {
			continue
		}

		value := p.Get(entity)
		if isNilOrZeroPointer(value) {
			if p.IsRequired {
				fields = append(fields, dferr.FieldError{Property: p.PropertyName, Message: "property is required"})
			}
			continue
		}

		if s, ok := value.(string); ok {
			if p.IsRequired && s == "" {
				fields = append(fields, dferr.FieldError{Property: p.PropertyName, Message: "property is required"})
				continue
			}
			if p.MaxLength > 0 && len(s) > p.MaxLength {
				fields = append(fields, dferr.FieldError{Property: p.PropertyName, Message: "exceeds maximum length"})
			}
			if p.MinLength > 0 && len(s) < p.MinLength {
				fields = append(fields, dferr.FieldError{Property: p.PropertyName, Message: "below minimum length"})
			}
		}
	}

	if len(fields) > 0 {
		return dferr.Validation(m.EntityType.Name(), fields)
	}
	return nil
}

func isNilOrZeroPointer(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
