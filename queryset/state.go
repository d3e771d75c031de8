// Package queryset implements the queryable surface (spec C6): an
// accumulate-only fluent builder over QueryState, executed through the
// predicate translator (C4), order translator (C5), single-query include
// planner (C7), and split-include loader (C8). Grounded on the teacher's
// query/select_query.go clone-per-call fluent builder, generalized from its
// string/Condition-based API to the typed predicate.Expr/orderkey.Key
// building blocks this engine uses in place of a lambda expression tree.
package queryset

import (
	"github.com/nahmadov/dapperforge/include"
	"github.com/nahmadov/dapperforge/orderkey"
	"github.com/nahmadov/dapperforge/predicate"
)

// SplittingBehavior selects how includes are loaded. The zero value, Single,
// is the spec's documented default.
type SplittingBehavior int

const (
	Single SplittingBehavior = iota
	Split
)

// QueryState is the accumulated, immutable-per-call query description a
// EntitySet builds up. Every fluent method returns a new EntitySet wrapping
// a state that is a defensive copy of the previous one.
type QueryState struct {
	Predicate          predicate.Expr
	IgnoreCase         bool
	OrderBy            []orderkey.Key
	Skip               int
	Take               int
	HasTake            bool
	Distinct           bool
	Splitting          SplittingBehavior
	IdentityResolution bool
	Includes           *include.Tree
}

func (s QueryState) clone() QueryState {
	s.OrderBy = append([]orderkey.Key(nil), s.OrderBy...)
	return s
}
