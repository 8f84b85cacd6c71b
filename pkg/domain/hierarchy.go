package domain

import "sort"

// HierarchyNode is a record participating in a self-referential parent tree.
type HierarchyNode interface {
	NodeID() string
	NodeParentID() *string
}

// Hierarchy indexes nodes by id so parent and child walks never recurse.
type Hierarchy[T HierarchyNode] struct {
	nodes    map[string]T
	children map[string][]string
}

// NewHierarchy builds an arena over nodes. Child lists are sorted by id.
func NewHierarchy[T HierarchyNode](nodes []T) *Hierarchy[T] {
	h := &Hierarchy[T]{
		nodes:    make(map[string]T, len(nodes)),
		children: make(map[string][]string),
	}
	for _, n := range nodes {
		h.nodes[n.NodeID()] = n
	}
	for _, n := range nodes {
		if p := n.NodeParentID(); p != nil {
			h.children[*p] = append(h.children[*p], n.NodeID())
		}
	}
	for k := range h.children {
		sort.Strings(h.children[k])
	}
	return h
}

// Get returns a node by id.
func (h *Hierarchy[T]) Get(id string) (T, bool) {
	n, ok := h.nodes[id]
	return n, ok
}

// Ancestors returns the chain of parents from the nearest to the root. The
// walk stops at a missing parent or at the first repeated id.
func (h *Hierarchy[T]) Ancestors(id string) []T {
	var out []T
	seen := map[string]struct{}{id: {}}
	current, ok := h.nodes[id]
	for ok {
		parentID := current.NodeParentID()
		if parentID == nil {
			break
		}
		if _, dup := seen[*parentID]; dup {
			break
		}
		seen[*parentID] = struct{}{}
		current, ok = h.nodes[*parentID]
		if ok {
			out = append(out, current)
		}
	}
	return out
}

// Descendants returns every node below id in breadth-first order.
func (h *Hierarchy[T]) Descendants(id string) []T {
	var out []T
	seen := map[string]struct{}{id: {}}
	queue := append([]string(nil), h.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, dup := seen[next]; dup {
			continue
		}
		seen[next] = struct{}{}
		if n, ok := h.nodes[next]; ok {
			out = append(out, n)
		}
		queue = append(queue, h.children[next]...)
	}
	return out
}

// Children returns the direct children of id.
func (h *Hierarchy[T]) Children(id string) []T {
	ids := h.children[id]
	out := make([]T, 0, len(ids))
	for _, cid := range ids {
		out = append(out, h.nodes[cid])
	}
	return out
}

// Siblings returns nodes sharing id's parent, excluding id. Roots have none.
func (h *Hierarchy[T]) Siblings(id string) []T {
	n, ok := h.nodes[id]
	if !ok || n.NodeParentID() == nil {
		return nil
	}
	var out []T
	for _, sib := range h.Children(*n.NodeParentID()) {
		if sib.NodeID() != id {
			out = append(out, sib)
		}
	}
	return out
}

// Root returns the top-most ancestor, or the node itself.
func (h *Hierarchy[T]) Root(id string) (T, bool) {
	ancestors := h.Ancestors(id)
	if len(ancestors) > 0 {
		return ancestors[len(ancestors)-1], true
	}
	return h.Get(id)
}

// Depth is the number of ancestors.
func (h *Hierarchy[T]) Depth(id string) int { return len(h.Ancestors(id)) }

// IsLeaf reports whether id has no children.
func (h *Hierarchy[T]) IsLeaf(id string) bool { return len(h.children[id]) == 0 }

// WouldCycle reports whether giving id the parent parentID would make id its
// own ancestor.
func (h *Hierarchy[T]) WouldCycle(id, parentID string) bool {
	if id == parentID {
		return true
	}
	seen := map[string]struct{}{}
	cursor := parentID
	for {
		if cursor == id {
			return true
		}
		if _, dup := seen[cursor]; dup {
			return true
		}
		seen[cursor] = struct{}{}
		n, ok := h.nodes[cursor]
		if !ok || n.NodeParentID() == nil {
			return false
		}
		cursor = *n.NodeParentID()
	}
}

// HasCycle reports whether id is its own ancestor.
func (h *Hierarchy[T]) HasCycle(id string) bool {
	n, ok := h.nodes[id]
	if !ok || n.NodeParentID() == nil {
		return false
	}
	return h.WouldCycle(id, *n.NodeParentID())
}
