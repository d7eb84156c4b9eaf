// Package nodepool implements an epoch-guarded object pool: a recycling
// allocator that only hands a recycled value back out once it can prove
// no in-flight guard could still be holding a reference to it. This is
// the Go-native stand-in for a guard pool backed by hazard pointers: Go's
// garbage collector already makes dereferencing a stale pointer memory
// safe, so the only job left for the pool is to prevent *logical* reuse
// (handing the same node to two live holders at once) — exactly the
// problem epoch-based reclamation (e.g. crossbeam-epoch) solves.
package nodepool

import (
	"sync"
	"sync/atomic"

	"github.com/gsingh-ds/lf-containers/internal/tlm"
)

type pinSlot struct {
	pinned atomic.Bool
	epoch  atomic.Uint64
}

type limboEntry[T any] struct {
	node  *T
	epoch uint64
}

// Pool recycles *T values across goroutines under epoch-based guarding.
type Pool[T any] struct {
	alloc   func() *T
	reset   func(*T)
	global  atomic.Uint64
	pins    *tlm.Map[pinSlot]
	limboMu sync.Mutex
	limbo   []limboEntry[T]
	// all holds every node this pool has ever allocated, so each node
	// stays reachable for the GC even while it is referenced elsewhere
	// only through packed (non-pointer) link words.
	all []*T
}

// New builds a Pool. alloc constructs a brand new T when no recyclable
// node is available. reset clears a node's contents before it is handed
// back out by Get, preventing a stale value from leaking across reuse.
func New[T any](alloc func() *T, reset func(*T)) *Pool[T] {
	p := &Pool[T]{
		alloc: alloc,
		reset: reset,
	}
	p.pins = tlm.New(func() *pinSlot { return &pinSlot{} })
	p.global.Store(1)
	return p
}

// Guard pins the calling goroutine to the pool's current epoch for the
// duration of fn, guaranteeing that any node recycled after the guard is
// established will not be reused until the guard has been released.
func (p *Pool[T]) Guard(fn func()) {
	slot := p.pins.Get()
	slot.epoch.Store(p.global.Load())
	slot.pinned.Store(true)
	defer slot.pinned.Store(false)
	fn()
}

// Get returns a reusable node if one is provably safe to hand out,
// otherwise allocates a fresh one.
func (p *Pool[T]) Get() *T {
	p.limboMu.Lock()
	defer p.limboMu.Unlock()

	for i, entry := range p.limbo {
		if p.safeToReclaim(entry.epoch) {
			p.limbo = append(p.limbo[:i], p.limbo[i+1:]...)
			if p.reset != nil {
				p.reset(entry.node)
			}
			return entry.node
		}
	}
	n := p.alloc()
	p.all = append(p.all, n)
	return n
}

// Recycle returns n to the pool. It will not be handed back out by a
// future Get call until every goroutine pinned at the time of this call
// has released its guard.
func (p *Pool[T]) Recycle(n *T) {
	stamp := p.global.Add(1)

	p.limboMu.Lock()
	p.limbo = append(p.limbo, limboEntry[T]{node: n, epoch: stamp})
	p.limboMu.Unlock()
}

func (p *Pool[T]) safeToReclaim(stamp uint64) bool {
	safe := true
	p.pins.Each(func(slot *pinSlot) {
		if slot.pinned.Load() && slot.epoch.Load() <= stamp {
			safe = false
		}
	})
	return safe
}
