package mapping

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/nahmadov/dapperforge/dferr"
)

// Registry is the per-context model-mapping cache (spec: "Lifecycle: built
// at first use of an entity type by the context, cached for the lifetime of
// the context's model registry, never mutated afterward"). Safe to share
// for reads once every configured type has been resolved.
type Registry struct {
	mu       sync.Mutex
	options  map[reflect.Type][]EntityOption
	mappings map[reflect.Type]*EntityMapping
	building map[reflect.Type]*EntityMapping
}

func NewRegistry() *Registry {
	return &Registry{
		options:  map[reflect.Type][]EntityOption{},
		mappings: map[reflect.Type]*EntityMapping{},
		building: map[reflect.Type]*EntityMapping{},
	}
}

// Configure stores fluent options for t, applied the next time t (or a
// relationship pointing at t) is resolved.
func (r *Registry) Configure(t reflect.Type, opts ...EntityOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[t] = append(r.options[t], opts...)
}

// Resolve builds (if needed) and returns the EntityMapping for t.
func (r *Registry) Resolve(t reflect.Type) (*EntityMapping, error) {
	r.mu.Lock()
	if m, ok := r.mappings[t]; ok {
		r.mu.Unlock()
		return m, nil
	}
	if m, ok := r.building[t]; ok {
		r.mu.Unlock()
		return m, nil
	}
	opts := append([]EntityOption(nil), r.options[t]...)
	r.mu.Unlock()

	if t.Kind() != reflect.Struct {
		return nil, dferr.Configurationf(t.Name(), "resolve", "entity type %s must be a struct", t)
	}

	st := newBuildState()
	for _, opt := range opts {
		opt(st)
	}

	zero := reflect.New(t).Interface()
	if st.table == "" {
		if tn, ok := zero.(TableNamer); ok {
			st.table = tn.TableName()
		}
	}
	if st.table == "" {
		st.table = defaultTableName(t.Name())
	}
	if st.schemaName == "" {
		if sn, ok := zero.(SchemaNamer); ok {
			st.schemaName = sn.SchemaName()
		}
	}
	if !st.readOnlyEntity {
		if ro, ok := zero.(ReadOnlyEntityMarker); ok {
			st.readOnlyEntity = ro.IsReadOnlyEntity()
		}
	}
	if !st.hasNoKey {
		if nk, ok := zero.(NoKeyMarker); ok {
			st.hasNoKey = nk.HasNoKeyEntity()
		}
	}

	sb, err := buildScalars(t, st)
	if err != nil {
		return nil, dferr.Configurationf(t.Name(), "resolve", "%s", err)
	}
	if err := validateFluentFieldNames(st, sb); err != nil {
		return nil, dferr.Configurationf(t.Name(), "resolve", "%s", err)
	}

	keys, err := resolveKeys(t, sb, st, st.readOnlyEntity || st.hasNoKey)
	if err != nil {
		return nil, dferr.Configurationf(t.Name(), "resolve", "%s", err)
	}
	if st.hasNoKey && len(keys) > 0 {
		return nil, dferr.Configurationf(t.Name(), "resolve", "entity %s is declared HasNoKey but also declares a key", t.Name())
	}

	altKeys := make([]*PropertyMapping, 0, len(st.altKeyFields)+len(sb.tagAltKeys))
	altNames := st.altKeyFields
	if len(altNames) == 0 {
		altNames = sb.tagAltKeys
	}
	for _, n := range altNames {
		p, ok := sb.byName[n]
		if !ok {
			return nil, dferr.Configurationf(t.Name(), "resolve", "alternate key property %q not found", n)
		}
		altKeys = append(altKeys, p)
	}
	keySet := map[string]bool{}
	for _, k := range keys {
		keySet[k.PropertyName] = true
	}
	for _, k := range altKeys {
		if keySet[k.PropertyName] {
			return nil, dferr.Configurationf(t.Name(), "resolve",
				"property %q cannot be both a primary key and an alternate key", k.PropertyName)
		}
	}

	em := &EntityMapping{
		EntityType:             t,
		TableName:              st.table,
		Schema:                 st.schemaName,
		Properties:             sb.props,
		propertyByName:         sb.byName,
		propertyByColumn:       sb.byColumn,
		KeyProperties:          keys,
		AlternateKeyProperties: altKeys,
		IsReadOnly:             st.readOnlyEntity,
		HasNoKey:               st.hasNoKey,
	}

	r.mu.Lock()
	r.building[t] = em
	r.mu.Unlock()

	fks, err := r.resolveForeignKeys(t, em, sb, st)
	if err != nil {
		r.mu.Lock()
		delete(r.building, t)
		r.mu.Unlock()
		return nil, err
	}
	em.ForeignKeys = fks

	r.mu.Lock()
	delete(r.building, t)
	r.mappings[t] = em
	r.mu.Unlock()
	return em, nil
}

// resolveForFK resolves a related type for the purpose of reading its
// scalar properties/keys while t's own build may still be in progress
// (breaks the cycle between e.g. Customer.Orders and Order.Customer, since
// neither side's relationships are needed to compute the other's).
func (r *Registry) resolveForFK(t reflect.Type) (*EntityMapping, error) {
	r.mu.Lock()
	if m, ok := r.mappings[t]; ok {
		r.mu.Unlock()
		return m, nil
	}
	if m, ok := r.building[t]; ok {
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	return r.Resolve(t)
}

func (r *Registry) resolveForeignKeys(t reflect.Type, em *EntityMapping, sb *scalarBuild, st *buildState) ([]*ForeignKeyMapping, error) {
	refByNav := map[string]refOption{}
	for _, o := range st.references {
		refByNav[o.nav] = o
	}
	collByNav := map[string]collOption{}
	for _, o := range st.collections {
		collByNav[o.nav] = o
	}
	consumedRef := map[string]bool{}
	consumedColl := map[string]bool{}

	var out []*ForeignKeyMapping
	for _, nav := range sb.navs {
		if nav.collection {
			opt, hasOpt := collByNav[nav.fieldName]
			inverseFK := nav.fkFromTag
			if hasOpt {
				inverseFK = opt.inverseFK
				consumedColl[nav.fieldName] = true
			}
			if inverseFK == "" {
				return nil, dferr.Configurationf(t.Name(), "resolve",
					"collection navigation %q needs an inverse foreign key (mapping.Collection or `inverse=` tag)", nav.fieldName)
			}
			related, err := r.resolveForFK(nav.related)
			if err != nil {
				return nil, err
			}
			childFK, ok := related.propertyByName[inverseFK]
			if !ok {
				return nil, dferr.Configurationf(t.Name(), "resolve",
					"inverse foreign key %q not found on related entity %s", inverseFK, nav.related.Name())
			}
			if len(em.EffectiveKey()) != 1 {
				return nil, dferr.Configurationf(t.Name(), "resolve",
					"collection navigation %q requires a single-column key on %s (composite-key FKs are unsupported)", nav.fieldName, t.Name())
			}
			out = append(out, &ForeignKeyMapping{
				NavigationProperty:     nav.fieldName,
				ForeignKeyProperty:     inverseFK,
				RelatedEntityType:      nav.related,
				PrincipalKeyColumnName: em.EffectiveKey()[0].ColumnName,
				ForeignKeyColumnName:   childFK.ColumnName,
				IsCollection:           true,
				NavFieldIndex:          nav.fieldIndex,
			})
			continue
		}

		opt, hasOpt := refByNav[nav.fieldName]
		fkField := nav.fkFromTag
		principalKeyCol := ""
		if hasOpt {
			fkField = opt.fk
			principalKeyCol = opt.principalKeyColumn
			consumedRef[nav.fieldName] = true
		}
		if fkField == "" {
			return nil, dferr.Configurationf(t.Name(), "resolve",
				"reference navigation %q needs a foreign key property (mapping.Reference or `fk=` tag)", nav.fieldName)
		}
		fkProp, ok := sb.byName[fkField]
		if !ok {
			return nil, dferr.Configurationf(t.Name(), "resolve",
				"foreign key property %q not found on %s", fkField, t.Name())
		}
		related, err := r.resolveForFK(nav.related)
		if err != nil {
			return nil, err
		}
		if principalKeyCol == "" {
			if len(related.EffectiveKey()) != 1 {
				return nil, dferr.Configurationf(t.Name(), "resolve",
					"reference navigation %q requires a single-column key on %s (composite-key FKs are unsupported)", nav.fieldName, nav.related.Name())
			}
			principalKeyCol = related.EffectiveKey()[0].ColumnName
		} else {
			found := false
			for _, k := range related.EffectiveKey() {
				if k.ColumnName == principalKeyCol {
					found = true
					break
				}
			}
			if !found {
				return nil, dferr.Configurationf(t.Name(), "resolve",
					"principal key column %q does not resolve to a key of %s", principalKeyCol, nav.related.Name())
			}
		}
		out = append(out, &ForeignKeyMapping{
			NavigationProperty:     nav.fieldName,
			ForeignKeyProperty:     fkField,
			RelatedEntityType:      nav.related,
			PrincipalKeyColumnName: principalKeyCol,
			ForeignKeyColumnName:   fkProp.ColumnName,
			IsCollection:           false,
			NavFieldIndex:          nav.fieldIndex,
		})
	}

	for name := range refByNav {
		if !consumedRef[name] {
			return nil, dferr.Configurationf(t.Name(), "resolve", "mapping.Reference(%q, ...): no navigation field with that name", name)
		}
	}
	for name := range collByNav {
		if !consumedColl[name] {
			return nil, dferr.Configurationf(t.Name(), "resolve", "mapping.Collection(%q, ...): no navigation field with that name", name)
		}
	}
	return out, nil
}

func validateFluentFieldNames(st *buildState, sb *scalarBuild) error {
	check := func(names map[string]bool) error {
		for n := range names {
			if _, ok := sb.byName[n]; !ok {
				return fmt.Errorf("unmapped property %q in fluent configuration", n)
			}
		}
		return nil
	}
	if err := check(st.identityFields); err != nil {
		return err
	}
	if err := check(st.computedFields); err != nil {
		return err
	}
	if err := check(st.readOnlyFields); err != nil {
		return err
	}
	if err := check(st.requiredFields); err != nil {
		return err
	}
	for n := range st.sequenceFields {
		if _, ok := sb.byName[n]; !ok {
			return fmt.Errorf("unmapped property %q in fluent configuration", n)
		}
	}
	for n := range st.columnOverride {
		if _, ok := sb.byName[n]; !ok {
			return fmt.Errorf("unmapped property %q in fluent configuration", n)
		}
	}
	for n := range st.maxLen {
		if _, ok := sb.byName[n]; !ok {
			return fmt.Errorf("unmapped property %q in fluent configuration", n)
		}
	}
	for n := range st.minLen {
		if _, ok := sb.byName[n]; !ok {
			return fmt.Errorf("unmapped property %q in fluent configuration", n)
		}
	}
	return nil
}
