package pqueue

import "github.com/gsingh-ds/lf-containers/internal/verptr"

// entry holds the user-supplied key/value pair carried by a node.
type entry[K any, V any] struct {
	key   K
	value V
}

// Node is a skip list node with a fixed-length tower of versioned links.
// Every node in a given PriorityQueue allocates a links slice the same
// length (the queue's towerHeight), matching the fact that the original
// structure's per-node link array is sized to a single compile-time
// constant regardless of any individual node's randomly chosen height;
// only the first height entries of links are ever read or written for
// that node.
type Node[K any, V any] struct {
	links  []verptr.Ptr[Node[K, V]]
	height uint8
	item   entry[K, V]
}

func newNode[K any, V any](towerHeight uint8) *Node[K, V] {
	return &Node[K, V]{links: make([]verptr.Ptr[Node[K, V]], towerHeight)}
}

// Key returns the node's key. Only meaningful for nodes obtained through
// the external allocation strategy's NewExternalNode / TryPopNode.
func (n *Node[K, V]) Key() K { return n.item.key }

// Value returns the node's value.
func (n *Node[K, V]) Value() V { return n.item.value }

func resetNode[K any, V any](n *Node[K, V]) {
	var zero entry[K, V]
	n.item = zero
	n.height = 0
}
