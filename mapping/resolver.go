package mapping

import (
	"fmt"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// isNavigationField reports whether f is a relationship field (a pointer to
// a mapped struct, or a slice of such) rather than a scalar column.
func isNavigationField(f reflect.StructField) (related reflect.Type, isCollection, ok bool) {
	t := f.Type
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct && t.Elem() != timeType {
		return t.Elem(), false, true
	}
	if t.Kind() == reflect.Slice {
		elem := t.Elem()
		if elem.Kind() == reflect.Ptr && elem.Elem().Kind() == reflect.Struct && elem.Elem() != timeType {
			return elem.Elem(), true, true
		}
		if elem.Kind() == reflect.Struct && elem != timeType {
			return elem, true, true
		}
	}
	return nil, false, false
}

type rawNav struct {
	fieldName  string
	fieldIndex int
	related    reflect.Type
	collection bool
	fkFromTag  string // fk= or inverse= token from the struct tag
}

type scalarBuild struct {
	props        []*PropertyMapping
	byName       map[string]*PropertyMapping
	byColumn     map[string]*PropertyMapping
	tagKeys      []string
	tagAltKeys   []string
	navs         []rawNav
}

func buildScalars(t reflect.Type, st *buildState) (*scalarBuild, error) {
	sb := &scalarBuild{
		byName:   map[string]*PropertyMapping{},
		byColumn: map[string]*PropertyMapping{},
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		tagStr, hasTag := f.Tag.Lookup("db")
		tag := parseTag(tagStr)
		if hasTag && tag.ignore {
			continue
		}

		if related, isColl, isNav := isNavigationField(f); isNav {
			fk := tag.foreignKey
			if isColl {
				fk = tag.inverse
			}
			sb.navs = append(sb.navs, rawNav{
				fieldName: f.Name, fieldIndex: i, related: related, collection: isColl, fkFromTag: fk,
			})
			continue
		}

		name := f.Name
		col := name
		if tag.column != "" {
			col = tag.column
		}
		if override, ok := st.columnOverride[name]; ok {
			col = override
		}

		generated := GeneratedNone
		seq := ""
		markers := 0
		if tag.identity {
			generated, markers = GeneratedIdentity, markers+1
		}
		if tag.computed {
			generated, markers = GeneratedComputed, markers+1
		}
		if tag.sequence != "" {
			generated, seq, markers = GeneratedSequence, tag.sequence, markers+1
		}
		if markers > 1 {
			return nil, fmt.Errorf("property %s carries more than one generated-value marker", name)
		}
		if st.identityFields[name] {
			generated, seq = GeneratedIdentity, ""
		}
		if st.computedFields[name] {
			generated, seq = GeneratedComputed, ""
		}
		if s, ok := st.sequenceFields[name]; ok {
			generated, seq = GeneratedSequence, s
		}

		readOnly := tag.readOnly
		if v, ok := st.readOnlyFields[name]; ok {
			readOnly = v
		}
		required := tag.required
		if v, ok := st.requiredFields[name]; ok {
			required = v
		}
		maxLen := tag.maxLen
		if v, ok := st.maxLen[name]; ok {
			maxLen = v
		}
		minLen := tag.minLen
		if v, ok := st.minLen[name]; ok {
			minLen = v
		}

		pm := &PropertyMapping{
			PropertyName: name,
			ColumnName:   col,
			GoType:       f.Type,
			FieldIndex:   i,
			Generated:    generated,
			SequenceName: seq,
			IsReadOnly:   readOnly,
			IsRequired:   required,
			MaxLength:    maxLen,
			MinLength:    minLen,
		}
		if _, dup := sb.byColumn[col]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col)
		}
		sb.props = append(sb.props, pm)
		sb.byName[name] = pm
		sb.byColumn[col] = pm

		if tag.isKey {
			sb.tagKeys = append(sb.tagKeys, name)
		}
		if tag.isAltKey {
			sb.tagAltKeys = append(sb.tagAltKeys, name)
		}
	}
	return sb, nil
}

// resolveKeys implements spec §4.2's key discovery order.
func resolveKeys(t reflect.Type, sb *scalarBuild, st *buildState, readOnlyOrNoKey bool) ([]*PropertyMapping, error) {
	pick := func(names []string) ([]*PropertyMapping, error) {
		out := make([]*PropertyMapping, 0, len(names))
		for _, n := range names {
			p, ok := sb.byName[n]
			if !ok {
				return nil, fmt.Errorf("key property %q not found on %s", n, t.Name())
			}
			out = append(out, p)
		}
		return out, nil
	}

	if len(st.keyFields) > 0 {
		return pick(st.keyFields)
	}
	if len(sb.tagKeys) > 0 {
		return pick(sb.tagKeys)
	}
	for _, p := range sb.props {
		if equalFold(p.PropertyName, "Id") {
			return []*PropertyMapping{p}, nil
		}
	}
	want := t.Name() + "Id"
	for _, p := range sb.props {
		if equalFold(p.PropertyName, want) {
			return []*PropertyMapping{p}, nil
		}
	}
	if readOnlyOrNoKey {
		return nil, nil
	}
	return nil, fmt.Errorf("no primary key found for entity %s; declare one via mapping.Key, a [Key]-style `db:\"key\"` tag, an Id property, or mark the entity ReadOnly/HasNoKey", t.Name())
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
