// Package tree resolves page hierarchies held in an in-memory arena.
//
// Pages reference their parent by identifier only, so a malformed store can
// contain parent cycles. Every walk is guarded by a visited set and reports
// ErrCycle instead of looping.
package tree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNodeNotFound is returned for identifiers missing from the arena.
	ErrNodeNotFound = errors.New("tree: node not found")
	// ErrCycle marks a parent chain that revisits a node.
	ErrCycle = errors.New("tree: parent chain contains a cycle")
	// ErrDanglingParent marks a parent reference to a node outside the arena.
	ErrDanglingParent = errors.New("tree: parent not found")
)

// Node is the hierarchy-relevant projection of a page.
type Node struct {
	ID            uint
	ParentID      uint // zero for roots
	Slug          string
	Position      int
	Active        bool
	Homepage      bool
	Template      string
	InheritBlocks bool
}

// ChainError carries the node whose parent chain could not be walked.
type ChainError struct {
	ID  uint
	Err error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("node %d: %v", e.ID, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// Arena indexes nodes by identifier.
type Arena struct {
	nodes    map[uint]Node
	children map[uint][]uint
}

// New builds an arena from nodes. Later duplicates replace earlier ones.
func New(nodes []Node) *Arena {
	a := &Arena{
		nodes:    make(map[uint]Node, len(nodes)),
		children: make(map[uint][]uint),
	}
	for _, n := range nodes {
		a.nodes[n.ID] = n
	}
	for _, n := range a.nodes {
		if n.ParentID != 0 && n.ParentID != n.ID {
			a.children[n.ParentID] = append(a.children[n.ParentID], n.ID)
		}
	}
	for parent, ids := range a.children {
		sort.Slice(ids, func(i, j int) bool {
			ni, nj := a.nodes[ids[i]], a.nodes[ids[j]]
			if ni.Position != nj.Position {
				return ni.Position < nj.Position
			}
			return ni.ID < nj.ID
		})
		a.children[parent] = ids
	}
	return a
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Node returns the node stored under id.
func (a *Arena) Node(id uint) (Node, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

// Ancestors returns the parent chain of id ordered root-ward: the immediate
// parent first, the root last. The node itself is not included.
func (a *Arena) Ancestors(id uint) ([]uint, error) {
	n, ok := a.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}

	visited := map[uint]struct{}{id: {}}
	var out []uint
	for n.ParentID != 0 {
		if _, seen := visited[n.ParentID]; seen {
			return nil, &ChainError{ID: id, Err: ErrCycle}
		}
		parent, ok := a.nodes[n.ParentID]
		if !ok {
			return nil, &ChainError{ID: id, Err: ErrDanglingParent}
		}
		visited[parent.ID] = struct{}{}
		out = append(out, parent.ID)
		n = parent
	}
	return out, nil
}

// Root returns the topmost ancestor of id, or id itself for roots.
func (a *Arena) Root(id uint) (uint, error) {
	ancestors, err := a.Ancestors(id)
	if err != nil {
		return 0, err
	}
	if len(ancestors) == 0 {
		return id, nil
	}
	return ancestors[len(ancestors)-1], nil
}

// Depth counts the parent hops from id to its root.
func (a *Arena) Depth(id uint) (int, error) {
	ancestors, err := a.Ancestors(id)
	if err != nil {
		return 0, err
	}
	return len(ancestors), nil
}

// Chain joins the slugs from the root down to id with '/'.
func (a *Arena) Chain(id uint) (string, error) {
	ancestors, err := a.Ancestors(id)
	if err != nil {
		return "", err
	}
	slugs := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		slugs = append(slugs, a.nodes[ancestors[i]].Slug)
	}
	slugs = append(slugs, a.nodes[id].Slug)
	return strings.Join(slugs, "/"), nil
}

// Reachable reports whether id and all of its ancestors are active.
func (a *Arena) Reachable(id uint) (bool, error) {
	n, ok := a.nodes[id]
	if !ok {
		return false, ErrNodeNotFound
	}
	if !n.Active {
		return false, nil
	}
	ancestors, err := a.Ancestors(id)
	if err != nil {
		return false, err
	}
	for _, anc := range ancestors {
		if !a.nodes[anc].Active {
			return false, nil
		}
	}
	return true, nil
}

// Children returns the active children of id ordered by position.
func (a *Arena) Children(id uint) []uint {
	var out []uint
	for _, child := range a.children[id] {
		if a.nodes[child].Active {
			out = append(out, child)
		}
	}
	return out
}

// Roots returns the parentless nodes ordered by position.
func (a *Arena) Roots() []uint {
	var roots []uint
	for id, n := range a.nodes {
		if n.ParentID == 0 {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		ni, nj := a.nodes[roots[i]], a.nodes[roots[j]]
		if ni.Position != nj.Position {
			return ni.Position < nj.Position
		}
		return ni.ID < nj.ID
	})
	return roots
}

// Walk visits every node reachable from a root depth-first, siblings in
// position order. Inactive nodes are visited too. Nodes caught in a cycle or
// below a dangling parent are never reached.
func (a *Arena) Walk(fn func(id uint, depth int)) {
	var visit func(id uint, depth int)
	visit = func(id uint, depth int) {
		fn(id, depth)
		for _, child := range a.children[id] {
			visit(child, depth+1)
		}
	}
	for _, root := range a.Roots() {
		visit(root, 0)
	}
}

// WouldCycle reports whether giving id the parent newParent creates a cycle.
func (a *Arena) WouldCycle(id, newParent uint) bool {
	if newParent == 0 {
		return false
	}
	if newParent == id {
		return true
	}
	visited := map[uint]struct{}{}
	for cur := newParent; cur != 0; {
		if cur == id {
			return true
		}
		if _, seen := visited[cur]; seen {
			return true
		}
		visited[cur] = struct{}{}
		n, ok := a.nodes[cur]
		if !ok {
			return false
		}
		cur = n.ParentID
	}
	return false
}

// EffectiveTemplate returns the template a node renders with. A node without
// its own template inherits the nearest ancestor template when InheritBlocks
// is set; otherwise, or when no ancestor declares one, fallback is used.
func (a *Arena) EffectiveTemplate(id uint, fallback string) (string, error) {
	n, ok := a.nodes[id]
	if !ok {
		return "", ErrNodeNotFound
	}
	if n.Template != "" {
		return n.Template, nil
	}
	if !n.InheritBlocks {
		return fallback, nil
	}
	ancestors, err := a.Ancestors(id)
	if err != nil {
		return "", err
	}
	for _, anc := range ancestors {
		if tmpl := a.nodes[anc].Template; tmpl != "" {
			return tmpl, nil
		}
	}
	return fallback, nil
}

// BlockSources lists the nodes whose blocks make up the aggregated block list
// of id, in aggregation order: id first, then ancestors root-ward. Climbing
// starts only when id inherits, and stops after the first ancestor that does
// not inherit (that ancestor is still included).
func (a *Arena) BlockSources(id uint) ([]uint, error) {
	n, ok := a.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	sources := []uint{id}
	if !n.InheritBlocks {
		return sources, nil
	}
	ancestors, err := a.Ancestors(id)
	if err != nil {
		return nil, err
	}
	for _, anc := range ancestors {
		sources = append(sources, anc)
		if !a.nodes[anc].InheritBlocks {
			break
		}
	}
	return sources, nil
}
