package predicate

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
)

// DefaultCacheSize is the target compiled-expression cache capacity (spec:
// "target ~1000 entries").
const DefaultCacheSize = 1000

// compiledEntry is what the LRU cache stores: the WHERE fragment text for one
// expression shape. Regenerating it requires mapping/dialect lookups and
// field validation; reusing it on a cache hit skips all of that.
type compiledEntry struct {
	sql string
}

// Cache is the bounded, thread-safe compiled-expression cache described in
// spec C4. It is keyed by expression shape, not by bound values, so repeated
// calls with the same predicate structure and different literals hit the
// cache after the first compile.
type Cache struct {
	inner *lru.Cache[string, *compiledEntry]
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *compiledEntry](size)
	if err != nil {
		// Only possible if size <= 0, guarded above.
		panic(err)
	}
	return &Cache{inner: c}
}

// Translator translates predicate.Expr trees into WHERE fragments for one
// entity mapping under one dialect, sharing a compiled-expression cache.
type Translator struct {
	Mapping *mapping.EntityMapping
	Dialect dialect.Dialect
	Cache   *Cache
}

func NewTranslator(m *mapping.EntityMapping, d dialect.Dialect, cache *Cache) *Translator {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	return &Translator{Mapping: m, Dialect: d, Cache: cache}
}

// Translate produces the WHERE fragment and its insertion-ordered parameter
// values for expr. Parameter names are sequential p0, p1, ... per call.
func (t *Translator) Translate(expr Expr, ignoreCase bool) (string, []any, error) {
	if expr == nil {
		return "", nil, nil
	}
	key := shapeKey(expr, ignoreCase)
	entry, ok := t.Cache.inner.Get(key)
	if !ok {
		sql, err := t.compile(expr, ignoreCase)
		if err != nil {
			return "", nil, err
		}
		entry = &compiledEntry{sql: sql}
		t.Cache.inner.Add(key, entry)
	}
	params := extractParams(expr, ignoreCase)
	return entry.sql, params, nil
}

func (t *Translator) column(field string) (string, error) {
	p, ok := t.Mapping.Property(field)
	if !ok {
		return "", dferr.Configurationf(t.Mapping.EntityType.Name(), "predicate",
			"property %q is not a mapped column of %s", field, t.Mapping.EntityType.Name())
	}
	return "a." + t.Dialect.QuoteIdentifier(p.ColumnName), nil
}

func opSymbol(op Op) string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	default:
		return "="
	}
}

// compile builds the SQL text once per shape; a shared counter assigns
// p0, p1, ... in the same traversal order extractParams uses to bind values.
func (t *Translator) compile(expr Expr, ignoreCase bool) (string, error) {
	counter := 0
	return t.compileNode(expr, ignoreCase, &counter)
}

func (t *Translator) compileNode(expr Expr, ignoreCase bool, counter *int) (string, error) {
	switch e := expr.(type) {
	case Cmp:
		col, err := t.column(e.Field)
		if err != nil {
			return "", err
		}
		p := t.nextParam(counter)
		return col + " " + opSymbol(e.Op) + " " + p, nil

	case IsNull:
		col, err := t.column(e.Field)
		if err != nil {
			return "", err
		}
		if e.Not {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil

	case BoolProp:
		col, err := t.column(e.Field)
		if err != nil {
			return "", err
		}
		lit := t.Dialect.FormatBoolean(!e.Not)
		return col + " = " + lit, nil

	case StringPred:
		col, err := t.column(e.Field)
		if err != nil {
			return "", err
		}
		p := t.nextParam(counter)
		left, right := col, p
		if e.IgnoreCase || ignoreCase {
			left = "LOWER(" + col + ")"
			right = "LOWER(" + p + ")"
		}
		return left + " LIKE " + right + " ESCAPE '\\'", nil

	case StringEq:
		col, err := t.column(e.Field)
		if err != nil {
			return "", err
		}
		p := t.nextParam(counter)
		left, right := col, p
		if e.IgnoreCase || ignoreCase {
			left = "LOWER(" + col + ")"
			right = "LOWER(" + p + ")"
		}
		op := "="
		if e.Not {
			op = "<>"
		}
		return left + " " + op + " " + right, nil

	case InList:
		col, err := t.column(e.Field)
		if err != nil {
			return "", err
		}
		if len(e.Values) == 0 {
			return "1=0", nil
		}
		p := t.nextParam(counter)
		return col + " IN " + p, nil

	case And:
		l, err := t.compileNode(e.Left, ignoreCase, counter)
		if err != nil {
			return "", err
		}
		r, err := t.compileNode(e.Right, ignoreCase, counter)
		if err != nil {
			return "", err
		}
		return "(" + l + " AND " + r + ")", nil

	case Or:
		l, err := t.compileNode(e.Left, ignoreCase, counter)
		if err != nil {
			return "", err
		}
		r, err := t.compileNode(e.Right, ignoreCase, counter)
		if err != nil {
			return "", err
		}
		return "(" + l + " OR " + r + ")", nil

	case Not:
		inner, err := t.compileNode(e.Inner, ignoreCase, counter)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil

	default:
		return "", fmt.Errorf("predicate: unsupported expression node %T", expr)
	}
}

func (t *Translator) nextParam(counter *int) string {
	name := "p" + strconv.Itoa(*counter)
	*counter++
	return t.Dialect.FormatParameter(name)
}

// extractParams mirrors compileNode's traversal order to produce the bound
// values for the already-compiled SQL text. It never touches the mapping or
// dialect, so a cache hit skips straight to this.
func extractParams(expr Expr, ignoreCase bool) []any {
	var out []any
	walkValues(expr, ignoreCase, &out)
	return out
}

func walkValues(expr Expr, ignoreCase bool, out *[]any) {
	switch e := expr.(type) {
	case Cmp:
		*out = append(*out, e.Value)
	case IsNull, BoolProp:
		// no bound parameters
	case StringPred:
		v := escapeLike(e.Value, e.Op)
		if e.IgnoreCase || ignoreCase {
			v = strings.ToLower(v)
		}
		*out = append(*out, v)
	case StringEq:
		v := e.Value
		if e.IgnoreCase || ignoreCase {
			v = strings.ToLower(v)
		}
		*out = append(*out, v)
	case InList:
		if len(e.Values) > 0 {
			*out = append(*out, e.Values)
		}
	case And:
		walkValues(e.Left, ignoreCase, out)
		walkValues(e.Right, ignoreCase, out)
	case Or:
		walkValues(e.Left, ignoreCase, out)
		walkValues(e.Right, ignoreCase, out)
	case Not:
		walkValues(e.Inner, ignoreCase, out)
	}
}

// escapeLike escapes \, %, _ in v before wrapping it in the wildcard shape
// for op, per spec: "escape \, %, _ before wildcard insertion".
func escapeLike(v string, op StringOp) string {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
	switch op {
	case StringStartsWith:
		return esc + "%"
	case StringEndsWith:
		return "%" + esc
	default:
		return "%" + esc + "%"
	}
}
