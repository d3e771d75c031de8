// Package include implements the include forest shared by the single-query
// planner (C7) and the split-include loader (C8): a tree of navigation
// properties to eagerly load, built by EntitySet.Include/ThenInclude and
// walked by both loading strategies.
package include

import (
	"reflect"

	"github.com/nahmadov/dapperforge/dferr"
	"github.com/nahmadov/dapperforge/mapping"
)

// Node is one include: a navigation property, the entity type it resolves
// to, whether it is a collection (one-to-many) or reference (belongs-to)
// navigation, and any nested includes hanging off it.
type Node struct {
	Navigation   string
	RelatedType  reflect.Type
	IsCollection bool
	Children     []*Node
}

// Tree is a forest of include roots for one root entity type. ThenInclude
// appends under the node most recently added at the current depth — the
// same chaining rule EF Core's ThenInclude uses — so a call sequence of
// Include(A).ThenInclude(B).ThenInclude(C) builds A -> B -> C, while a
// second Include(D) call resets the cursor to the new root D.
type Tree struct {
	registry *mapping.Registry
	rootType reflect.Type
	Roots    []*Node
	cursor   *Node
}

func New(registry *mapping.Registry, rootType reflect.Type) *Tree {
	return &Tree{registry: registry, rootType: rootType}
}

// Include adds a root include node for navigation, validated against the
// root entity's relationship mapping.
func (t *Tree) Include(navigation string) (*Node, error) {
	m, err := t.registry.Resolve(t.rootType)
	if err != nil {
		return nil, err
	}
	node, err := newNode(m, navigation)
	if err != nil {
		return nil, err
	}
	t.Roots = append(t.Roots, node)
	t.cursor = node
	return node, nil
}

// ThenInclude appends navigation as a child of the node most recently added
// (by Include or ThenInclude), validated against that node's related entity.
// Calling it before any Include fails with an Operation error.
func (t *Tree) ThenInclude(navigation string) (*Node, error) {
	if t.cursor == nil {
		return nil, dferr.Operationf(t.rootType.Name(), "thenInclude", "ThenInclude requires a preceding Include")
	}
	parent, err := t.registry.Resolve(t.cursor.RelatedType)
	if err != nil {
		return nil, err
	}
	node, err := newNode(parent, navigation)
	if err != nil {
		return nil, err
	}
	t.cursor.Children = append(t.cursor.Children, node)
	t.cursor = node
	return node, nil
}

func newNode(m *mapping.EntityMapping, navigation string) (*Node, error) {
	fk, ok := m.ForeignKey(navigation)
	if !ok {
		return nil, dferr.Configurationf(m.EntityType.Name(), "include",
			"navigation %q is not a mapped relationship of %s", navigation, m.EntityType.Name())
	}
	return &Node{Navigation: navigation, RelatedType: fk.RelatedEntityType, IsCollection: fk.IsCollection}, nil
}

// Empty reports whether the tree has no includes at all.
func (t *Tree) Empty() bool { return t == nil || len(t.Roots) == 0 }
