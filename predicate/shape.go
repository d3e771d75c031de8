package predicate

import (
	"fmt"
	"strconv"
	"strings"
)

// shapeKey computes a structural fingerprint of expr: field names, operator
// kinds, nesting, and (for InList) slice length, but never literal values.
// Two expressions differing only in bound values produce the same key, so
// the compiled cache entry below is reused across calls (spec C4: "two
// lambdas differing only in bound closure values map to the same entry").
func shapeKey(expr Expr, ignoreCase bool) string {
	var b strings.Builder
	b.WriteString(strconv.FormatBool(ignoreCase))
	b.WriteByte('|')
	writeShape(&b, expr)
	return b.String()
}

func writeShape(b *strings.Builder, expr Expr) {
	switch e := expr.(type) {
	case Cmp:
		fmt.Fprintf(b, "Cmp(%s,%d)", e.Field, e.Op)
	case IsNull:
		fmt.Fprintf(b, "IsNull(%s,%t)", e.Field, e.Not)
	case BoolProp:
		fmt.Fprintf(b, "BoolProp(%s,%t)", e.Field, e.Not)
	case StringPred:
		fmt.Fprintf(b, "StringPred(%s,%d,%t)", e.Field, e.Op, e.IgnoreCase)
	case StringEq:
		fmt.Fprintf(b, "StringEq(%s,%t,%t)", e.Field, e.Not, e.IgnoreCase)
	case InList:
		fmt.Fprintf(b, "InList(%s,%d)", e.Field, len(e.Values))
	case And:
		b.WriteString("And(")
		writeShape(b, e.Left)
		b.WriteByte(',')
		writeShape(b, e.Right)
		b.WriteByte(')')
	case Or:
		b.WriteString("Or(")
		writeShape(b, e.Left)
		b.WriteByte(',')
		writeShape(b, e.Right)
		b.WriteByte(')')
	case Not:
		b.WriteString("Not(")
		writeShape(b, e.Inner)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "Unknown(%T)", expr)
	}
}
