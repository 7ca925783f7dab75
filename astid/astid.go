// Package astid assigns stable integer IDs to the structural nodes of a
// parsed syntax tree, so that incremental recompilation can address a node
// by a position-derived ID instead of a pointer into a tree that gets
// rebuilt on every edit.
//
// IDs are allocated by walking the tree in a breadth-first-biased order:
// structural nodes are numbered layer by layer, so parents always get lower
// IDs than their children, and adding a new child never renumbers its
// ancestors. That keeps IDs of unrelated top-level nodes stable across
// edits, which is what makes them useful as cache keys.
package astid

import (
	"log"
)

// ID is a stable identifier for one structural node within a single tree.
// IDs are dense, starting at 0.
type ID uint32

// Ptr is a position-derived pointer to a node: its kind plus source range.
// It is comparable, and remains meaningful after the tree it came from has
// been dropped.
type Ptr struct {
	Kind       uint16
	Start, End uint32
}

// Node is the minimal view of a syntax node the allocator needs.
type Node interface {
	Ptr() Ptr
	Children() []Node
}

// Map holds the ID assignment for one tree.
type Map struct {
	arena []Ptr
	ids   map[Ptr]ID
}

// FromRoot numbers every node under |root| (inclusive) for which
// |structural| returns true. Typically structural nodes are items and block
// expressions; expression-level nodes are too churn-prone to be worth stable
// IDs.
func FromRoot(root Node, structural func(Node) bool) *Map {
	m := &Map{
		ids: make(map[Ptr]ID),
	}
	bdfs(root, func(n Node) bool {
		if !structural(n) {
			return false
		}
		m.arena = append(m.arena, n.Ptr())
		return true
	})
	for i, ptr := range m.arena {
		m.ids[ptr] = ID(i)
	}
	return m
}

// ID returns the ID assigned to |n|. The node MUST be a structural node of
// the tree this map was built from.
func (m *Map) ID(n Node) ID {
	id, ok := m.ids[n.Ptr()]
	if !ok {
		log.Panicf("astid: node %+v not in map of %d nodes", n.Ptr(), len(m.arena))
	}
	return id
}

// Lookup returns the ID assigned to |n|, if it has one.
func (m *Map) Lookup(n Node) (ID, bool) {
	id, ok := m.ids[n.Ptr()]
	return id, ok
}

// Ptr returns the node pointer |id| was allocated for.
func (m *Map) Ptr(id ID) Ptr {
	return m.arena[id]
}

// Len returns the number of allocated IDs.
func (m *Map) Len() int {
	return len(m.arena)
}

// bdfs walks the subtree in a mix of breadth-first and depth-first order:
// nodes for which |f| returns true are visited breadth-first, with their
// children deferred to the next layer; all other nodes are explored
// depth-first inline. The layer queue is bounded by the number of "true"
// nodes.
func bdfs(root Node, f func(Node) bool) {
	layer := []Node{root}
	var next []Node
	for len(layer) > 0 {
		for _, n := range layer {
			// Depth-first preorder, stopping at structural nodes and
			// deferring their subtrees.
			stack := []Node{n}
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if f(cur) {
					next = append(next, cur.Children()...)
					continue
				}
				children := cur.Children()
				for i := len(children) - 1; i >= 0; i-- {
					stack = append(stack, children[i])
				}
			}
		}
		layer, next = next, layer[:0]
	}
}
