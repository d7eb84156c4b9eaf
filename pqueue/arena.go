package pqueue

import (
	"sync"

	"github.com/gsingh-ds/lf-containers/internal/verptr"
)

// arena is a bump allocator used by the scratch allocation strategy: no
// per-pop reclamation happens at all, trading unbounded growth for the
// lowest possible allocation overhead on the push path. Memory is only
// given back by UnsafeResetArena, which the caller must only invoke once
// it can prove no concurrent operation is touching the list.
type arena[K any, V any] struct {
	towerHeight uint8

	mu     sync.Mutex
	blocks [][]Node[K, V]
	cursor int
}

const arenaBlockSize = 1024

func newArena[K any, V any](towerHeight uint8) *arena[K, V] {
	a := &arena[K, V]{towerHeight: towerHeight}
	a.grow()
	return a
}

func (a *arena[K, V]) grow() {
	block := make([]Node[K, V], arenaBlockSize)
	a.blocks = append(a.blocks, block)
	a.cursor = 0
}

func (a *arena[K, V]) get() *Node[K, V] {
	a.mu.Lock()
	defer a.mu.Unlock()

	block := a.blocks[len(a.blocks)-1]
	if a.cursor == len(block) {
		a.grow()
		block = a.blocks[len(a.blocks)-1]
	}

	n := &block[a.cursor]
	a.cursor++
	if n.links == nil {
		n.links = make([]verptr.Ptr[Node[K, V]], a.towerHeight)
	}
	return n
}

// unsafeReset drops every allocated block. Any node pointer obtained
// before this call and still reachable becomes invalid to dereference
// through this arena's bookkeeping.
func (a *arena[K, V]) unsafeReset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blocks = nil
	a.cursor = 0
	a.grow()
}
