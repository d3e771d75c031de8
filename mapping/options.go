package mapping

// TableNamer lets an entity type declare its table name in Go instead of a
// struct tag, the idiomatic-Go equivalent of a class-level [Table] attribute.
type TableNamer interface{ TableName() string }

// SchemaNamer is the equivalent of a class-level schema attribute.
type SchemaNamer interface{ SchemaName() string }

// ReadOnlyEntityMarker is the equivalent of a read-only-entity class marker.
type ReadOnlyEntityMarker interface{ IsReadOnlyEntity() bool }

// NoKeyMarker is the equivalent of a HasNoKey() declaration for entities
// that are intentionally keyless (read views, for instance).
type NoKeyMarker interface{ HasNoKeyEntity() bool }

// EntityOption is one fluent configuration call. Options apply in the order
// given; a later option always overwrites an earlier one for the same
// field, and every option here outranks the struct-tag attribute it mirrors.
type EntityOption func(*buildState)

type refOption struct {
	nav, fk, principalKeyColumn string
}

type collOption struct {
	nav, inverseFK string
}

type buildState struct {
	table          string
	schemaName     string
	readOnlyEntity bool
	hasNoKey       bool

	columnOverride map[string]string
	keyFields      []string
	altKeyFields   []string

	identityFields map[string]bool
	computedFields map[string]bool
	sequenceFields map[string]string
	readOnlyFields map[string]bool
	requiredFields map[string]bool
	maxLen         map[string]int
	minLen         map[string]int

	references  []refOption
	collections []collOption
}

func newBuildState() *buildState {
	return &buildState{
		columnOverride: map[string]string{},
		identityFields: map[string]bool{},
		computedFields: map[string]bool{},
		sequenceFields: map[string]string{},
		readOnlyFields: map[string]bool{},
		requiredFields: map[string]bool{},
		maxLen:         map[string]int{},
		minLen:         map[string]int{},
	}
}

func Table(name string) EntityOption {
	return func(s *buildState) { s.table = name }
}

func Schema(name string) EntityOption {
	return func(s *buildState) { s.schemaName = name }
}

func ReadOnlyEntity() EntityOption {
	return func(s *buildState) { s.readOnlyEntity = true }
}

func HasNoKey() EntityOption {
	return func(s *buildState) { s.hasNoKey = true }
}

func Column(field, column string) EntityOption {
	return func(s *buildState) { s.columnOverride[field] = column }
}

// Key declares the explicit primary key, overriding every other discovery
// rule (spec §4.2 key discovery order: explicit fluent key wins first).
func Key(fields ...string) EntityOption {
	return func(s *buildState) { s.keyFields = append([]string(nil), fields...) }
}

func AlternateKey(fields ...string) EntityOption {
	return func(s *buildState) { s.altKeyFields = append([]string(nil), fields...) }
}

func Identity(field string) EntityOption {
	return func(s *buildState) {
		delete(s.computedFields, field)
		delete(s.sequenceFields, field)
		s.identityFields[field] = true
	}
}

func Computed(field string) EntityOption {
	return func(s *buildState) {
		delete(s.identityFields, field)
		delete(s.sequenceFields, field)
		s.computedFields[field] = true
	}
}

func Sequence(field, sequenceName string) EntityOption {
	return func(s *buildState) {
		delete(s.identityFields, field)
		delete(s.computedFields, field)
		s.sequenceFields[field] = sequenceName
	}
}

func ReadOnlyProperty(field string) EntityOption {
	return func(s *buildState) { s.readOnlyFields[field] = true }
}

func Required(field string) EntityOption {
	return func(s *buildState) { s.requiredFields[field] = true }
}

func MaxLength(field string, n int) EntityOption {
	return func(s *buildState) { s.maxLen[field] = n }
}

func MinLength(field string, n int) EntityOption {
	return func(s *buildState) { s.minLen[field] = n }
}

// Reference declares a belongs-to relationship: nav is the navigation
// property (a *T field), fk is the scalar foreign-key property on the same
// entity, principalKeyColumn is the principal's key column name (empty to
// use the principal's effective key column as resolved).
func Reference(nav, fk, principalKeyColumn string) EntityOption {
	return func(s *buildState) {
		s.references = append(s.references, refOption{nav: nav, fk: fk, principalKeyColumn: principalKeyColumn})
	}
}

// Collection declares a one-to-many relationship: nav is the navigation
// property (a []T or []*T field), inverseFK is the FK property name on the
// related (child) entity.
func Collection(nav, inverseFK string) EntityOption {
	return func(s *buildState) {
		s.collections = append(s.collections, collOption{nav: nav, inverseFK: inverseFK})
	}
}
