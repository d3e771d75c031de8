package mapping

import "reflect"

// SetReference assigns child onto parent's navigation field for a reference
// (belongs-to) foreign key, addressing it if the field is a pointer.
func (fk *ForeignKeyMapping) SetReference(parent, child reflect.Value) {
	field := parent.Field(fk.NavFieldIndex)
	if field.Kind() == reflect.Ptr {
		field.Set(child.Addr())
		return
	}
	field.Set(child)
}

// EnsureCollection initializes parent's collection navigation field to an
// empty (non-nil) slice if it is currently nil, so a parent with zero
// matching children still reports an empty collection rather than a nil one.
func (fk *ForeignKeyMapping) EnsureCollection(parent reflect.Value) {
	field := parent.Field(fk.NavFieldIndex)
	if field.Kind() == reflect.Slice && field.IsNil() {
		field.Set(reflect.MakeSlice(field.Type(), 0, 0))
	}
}

// AppendCollection appends child to parent's collection navigation field,
// initializing it first if necessary.
func (fk *ForeignKeyMapping) AppendCollection(parent, child reflect.Value) {
	field := parent.Field(fk.NavFieldIndex)
	if field.IsNil() {
		field.Set(reflect.MakeSlice(field.Type(), 0, 4))
	}
	elemType := field.Type().Elem()
	var elem reflect.Value
	if elemType.Kind() == reflect.Ptr {
		elem = child.Addr()
	} else {
		elem = child
	}
	field.Set(reflect.Append(field, elem))
}
