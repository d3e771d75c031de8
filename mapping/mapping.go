// Package mapping implements the model resolver (spec C2): turning struct
// tags plus fluent EntityOption calls into an immutable EntityMapping per
// entity type. Grounded on the teacher's schema.Schema/schema.Field, with
// reflection-based struct-tag parsing in place of the teacher's Prisma-text
// parser, per the "reflection-heavy mapping" design note.
package mapping

import (
	"fmt"
	"reflect"
)

// GeneratedKind classifies how a column's value is produced.
type GeneratedKind int

const (
	GeneratedNone GeneratedKind = iota
	GeneratedIdentity
	GeneratedComputed
	GeneratedSequence
)

func (g GeneratedKind) String() string {
	switch g {
	case GeneratedIdentity:
		return "Identity"
	case GeneratedComputed:
		return "Computed"
	case GeneratedSequence:
		return "Sequence"
	default:
		return "None"
	}
}

// PropertyMapping describes one mapped scalar property.
type PropertyMapping struct {
	PropertyName string
	ColumnName   string
	GoType       reflect.Type
	FieldIndex   int

	Generated    GeneratedKind
	SequenceName string // set iff Generated == GeneratedSequence

	IsReadOnly bool
	IsRequired bool
	MaxLength  int // 0 means unset
	MinLength  int // 0 means unset
}

// IsGenerated reports whether the database, not the caller, produces values
// for this column.
func (p *PropertyMapping) IsGenerated() bool { return p.Generated != GeneratedNone }

// Get reads the property's value off an addressable struct value.
func (p *PropertyMapping) Get(entity reflect.Value) any {
	return entity.Field(p.FieldIndex).Interface()
}

// Set assigns value onto the property, converting between compatible
// numeric/string kinds the way a database driver's scan target would.
func (p *PropertyMapping) Set(entity reflect.Value, value any) error {
	field := entity.Field(p.FieldIndex)
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	rv := reflect.ValueOf(value)
	ft := field.Type()
	if rv.Type().ConvertibleTo(ft) {
		field.Set(rv.Convert(ft))
		return nil
	}
	return fmt.Errorf("cannot assign %T to property %s (%s)", value, p.PropertyName, ft)
}

// ForeignKeyMapping describes a single-column relationship (spec: composite
// FKs are a Non-goal).
//
// For a reference (belongs-to) relationship, the owning entity holds both
// the navigation and the foreign-key scalar property; RelatedEntityType is
// the principal, PrincipalKeyColumnName is the principal's key column.
//
// For a collection (one-to-many) relationship, the owning entity is the
// principal; RelatedEntityType is the child/dependent entity,
// ForeignKeyProperty names the inverse FK property *on the child*, and
// PrincipalKeyColumnName is the owning (principal) entity's own key column.
type ForeignKeyMapping struct {
	NavigationProperty string
	ForeignKeyProperty string
	RelatedEntityType  reflect.Type
	PrincipalKeyColumnName string
	// ForeignKeyColumnName is the actual DB column backing ForeignKeyProperty
	// (on the owning entity for a reference, on the related entity for a
	// collection).
	ForeignKeyColumnName string
	IsCollection          bool
	NavFieldIndex         int
}

// EntityMapping is the immutable, fully-resolved metadata for one entity
// type. Built once by Registry.Resolve and never mutated afterward.
type EntityMapping struct {
	EntityType reflect.Type
	TableName  string
	Schema     string

	Properties       []*PropertyMapping
	propertyByName   map[string]*PropertyMapping
	propertyByColumn map[string]*PropertyMapping

	KeyProperties          []*PropertyMapping
	AlternateKeyProperties []*PropertyMapping

	ForeignKeys []*ForeignKeyMapping

	IsReadOnly bool
	HasNoKey   bool
}

// HasPrimaryKey reports whether KeyProperties is non-empty.
func (m *EntityMapping) HasPrimaryKey() bool { return len(m.KeyProperties) > 0 }

// EffectiveKey is KeyProperties if present, else AlternateKeyProperties.
func (m *EntityMapping) EffectiveKey() []*PropertyMapping {
	if len(m.KeyProperties) > 0 {
		return m.KeyProperties
	}
	return m.AlternateKeyProperties
}

// Property looks up a mapped property by its Go field name.
func (m *EntityMapping) Property(name string) (*PropertyMapping, bool) {
	p, ok := m.propertyByName[name]
	return p, ok
}

// PropertyByColumn looks up a mapped property by its database column name.
func (m *EntityMapping) PropertyByColumn(column string) (*PropertyMapping, bool) {
	p, ok := m.propertyByColumn[column]
	return p, ok
}

// ForeignKey looks up a relationship by its navigation property name.
func (m *EntityMapping) ForeignKey(navigation string) (*ForeignKeyMapping, bool) {
	for _, fk := range m.ForeignKeys {
		if fk.NavigationProperty == navigation {
			return fk, true
		}
	}
	return nil, false
}

// QualifiedTableName renders "schema.table" when Schema is set, else "table"
// (unquoted; callers quote via Dialect).
func (m *EntityMapping) QualifiedTableName() string {
	if m.Schema == "" {
		return m.TableName
	}
	return m.Schema + "." + m.TableName
}
