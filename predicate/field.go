package predicate

// Field[T] is a typed reference to one mapped property, the builder-method
// replacement for a lambda's member access (spec Design Note "Linq expression
// trees"). Construct one per property with F[T](name) and chain comparison
// methods to build an Expr.
type Field[T any] struct {
	Name string
}

// F constructs a typed field reference by its Go struct field name.
func F[T any](name string) Field[T] {
	return Field[T]{Name: name}
}

func (f Field[T]) Eq(v T) Expr { return Cmp{Field: f.Name, Op: OpEq, Value: v} }
func (f Field[T]) Ne(v T) Expr { return Cmp{Field: f.Name, Op: OpNe, Value: v} }
func (f Field[T]) Gt(v T) Expr { return Cmp{Field: f.Name, Op: OpGt, Value: v} }
func (f Field[T]) Ge(v T) Expr { return Cmp{Field: f.Name, Op: OpGe, Value: v} }
func (f Field[T]) Lt(v T) Expr { return Cmp{Field: f.Name, Op: OpLt, Value: v} }
func (f Field[T]) Le(v T) Expr { return Cmp{Field: f.Name, Op: OpLe, Value: v} }

func (f Field[T]) IsNull() Expr    { return IsNull{Field: f.Name} }
func (f Field[T]) IsNotNull() Expr { return IsNull{Field: f.Name, Not: true} }

// StringField narrows Field[string] with LIKE-family operations.
type StringField struct {
	Field[string]
}

func FS(name string) StringField {
	return StringField{Field: F[string](name)}
}

func (f StringField) Contains(v string) Expr {
	return StringPred{Field: f.Name, Op: StringContains, Value: v}
}
func (f StringField) StartsWith(v string) Expr {
	return StringPred{Field: f.Name, Op: StringStartsWith, Value: v}
}
func (f StringField) EndsWith(v string) Expr {
	return StringPred{Field: f.Name, Op: StringEndsWith, Value: v}
}
func (f StringField) ContainsIgnoreCase(v string) Expr {
	return StringPred{Field: f.Name, Op: StringContains, Value: v, IgnoreCase: true}
}
func (f StringField) StartsWithIgnoreCase(v string) Expr {
	return StringPred{Field: f.Name, Op: StringStartsWith, Value: v, IgnoreCase: true}
}
func (f StringField) EndsWithIgnoreCase(v string) Expr {
	return StringPred{Field: f.Name, Op: StringEndsWith, Value: v, IgnoreCase: true}
}
func (f StringField) EqIgnoreCase(v string) Expr {
	return StringEq{Field: f.Name, Value: v, IgnoreCase: true}
}
func (f StringField) NeIgnoreCase(v string) Expr {
	return StringEq{Field: f.Name, Value: v, Not: true, IgnoreCase: true}
}

// BoolField narrows Field[bool] with standalone-predicate usage.
type BoolField struct {
	Field[bool]
}

func FB(name string) BoolField {
	return BoolField{Field: F[bool](name)}
}

// True treats the property itself as a full predicate ("u.IsActive").
func (f BoolField) True() Expr { return BoolProp{Field: f.Name} }

// False is the negated form ("!u.IsActive").
func (f BoolField) False() Expr { return BoolProp{Field: f.Name, Not: true} }

// In builds a collection-contains predicate over any typed field.
func In[T any](f Field[T], values []T) Expr {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return InList{Field: f.Name, Values: anyValues}
}
