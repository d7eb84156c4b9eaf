// Package queue implements an unbounded, multi-producer multi-consumer
// FIFO queue. Ordering is respected within the context of a single
// producer goroutine; there is no ordering guarantee across producers.
//
// Each goroutine that calls Push gets its own producer buffer (a
// single-producer/multi-consumer ring), discovered and cached via a
// goroutine-local map. When a producer's buffer fills up, a new, larger
// buffer is linked in front of it and all future writes from that
// producer go there; consumers follow the chain forward as they drain
// older buffers. Consumers similarly cache which producer they're
// draining and periodically relocate to another producer to avoid
// starving buffers that aren't being actively produced into.
package queue

import (
	"sync/atomic"

	"github.com/gsingh-ds/lf-containers/internal/atomichandle"
	"github.com/gsingh-ds/lf-containers/internal/tlm"
	"github.com/gsingh-ds/lf-containers/internal/xassert"
)

// Tunable defaults, overridable via Option.
const (
	// ConsumerForceRelocationPopCount bounds how many consecutive pops a
	// consumer takes from one producer before it is forced to look for
	// another, so a quiet producer isn't starved by a busy one.
	ConsumerForceRelocationPopCount = 24
	// InitialProducerCapacity is the ring size a producer's first buffer
	// gets.
	InitialProducerCapacity = 8
	// BufferCapacityMax clamps how large a single producer buffer is
	// allowed to grow.
	BufferCapacityMax = uint64(1) << 30
)

type itemState uint32

const (
	stateEmpty itemState = iota
	stateValid
	stateDummy
)

// Option configures a Queue at construction time.
type Option func(*config)

type config struct {
	initialProducerCapacity uint64
	forceRelocationPopCount uint32
	bufferCapacityMax       uint64
}

func defaultConfig() config {
	return config{
		initialProducerCapacity: InitialProducerCapacity,
		forceRelocationPopCount: ConsumerForceRelocationPopCount,
		bufferCapacityMax:       BufferCapacityMax,
	}
}

// WithInitialProducerCapacity overrides the ring size a producer's first
// buffer is allocated with.
func WithInitialProducerCapacity(capacity uint64) Option {
	return func(c *config) { c.initialProducerCapacity = capacity }
}

// WithConsumerForceRelocationPopCount overrides how many consecutive pops
// a consumer takes before being forced to relocate to another producer.
func WithConsumerForceRelocationPopCount(count uint32) Option {
	return func(c *config) { c.forceRelocationPopCount = count }
}

// WithBufferCapacityMax overrides the ceiling a producer buffer may grow
// to.
func WithBufferCapacityMax(max uint64) Option {
	return func(c *config) { c.bufferCapacityMax = max }
}

func alignPow2(v, max uint64) uint64 {
	if v < 1 {
		v = 1
	}
	p := uint64(1)
	for p < v {
		p <<= 1
	}
	if p > max {
		p = max
	}
	return p
}

type producerBuffer[T any] struct {
	preReadSync atomic.Uint64
	readSlot    atomic.Uint64

	written   atomic.Uint64
	writeSlot uint64 // owner goroutine only

	next atomichandle.Handle[producerBuffer[T]]

	capacityMask uint64
	state        []atomic.Uint32
	data         []T
}

func newProducerBuffer[T any](capacity uint64) *producerBuffer[T] {
	return &producerBuffer[T]{
		capacityMask: capacity - 1,
		state:        make([]atomic.Uint32, capacity),
		data:         make([]T, capacity),
	}
}

func (b *producerBuffer[T]) capacity() uint64 { return b.capacityMask + 1 }

// isActive reports whether this buffer still contains entries, or has no
// successor to hand consumers off to.
func (b *producerBuffer[T]) isActive() bool {
	return b.next.Load() == nil || b.readSlot.Load() != b.written.Load()
}

// isValid reports whether this buffer is still usable, i.e. has not been
// invalidated by unsafeReset, checked via the dummy marker invalidate
// leaves at the current write cursor.
func (b *producerBuffer[T]) isValid() bool {
	return itemState(b.state[b.writeSlot&b.capacityMask].Load()) != stateDummy
}

func (b *producerBuffer[T]) invalidate() {
	b.state[b.writeSlot&b.capacityMask].Store(uint32(stateDummy))
	if next := b.next.Load(); next != nil {
		next.invalidate()
	}
}

func (b *producerBuffer[T]) tryPush(in T) bool {
	slotTotal := b.writeSlot
	slot := slotTotal & b.capacityMask

	if itemState(b.state[slot].Load()) != stateEmpty {
		return false
	}

	b.writeSlot++

	// The move into the slot is wrapped so a panic raised by a
	// user-supplied value mid-assignment (e.g. a logging hook invoking a
	// misbehaving Stringer during an instrumented build) rolls the slot
	// claim back to empty instead of leaving a half-written entry that a
	// consumer could observe.
	xassert.Recover(func() {
		b.writeSlot--
		b.state[slot].Store(uint32(stateEmpty))
	}, func() {
		b.data[slot] = in
	})

	b.state[slot].Store(uint32(stateValid))
	b.written.Store(slotTotal + 1)

	return true
}

func (b *producerBuffer[T]) tryPop(out *T) bool {
	lastWritten := b.written.Load()

	reserved := b.preReadSync.Add(1)
	available := lastWritten - reserved

	if b.capacity() < available {
		b.preReadSync.Add(^uint64(0))
		return false
	}

	readSlotTotal := b.readSlot.Add(1) - 1
	readSlot := readSlotTotal & b.capacityMask

	*out = b.data[readSlot]
	var zero T
	b.data[readSlot] = zero
	b.state[readSlot].Store(uint32(stateEmpty))

	return true
}

// findBack walks the successor chain looking for the first buffer that
// still contains entries.
func (b *producerBuffer[T]) findBack() *producerBuffer[T] {
	var back *producerBuffer[T]
	inspect := b

	for inspect != nil {
		readSlot := inspect.readSlot.Load()
		written := inspect.written.Load()

		if readSlot != written {
			break
		}

		back = inspect.next.Load()
		inspect = back
	}

	return back
}

func (b *producerBuffer[T]) size() uint64 {
	readSlot := b.readSlot.Load()
	written := b.written.Load()
	total := written - readSlot

	if next := b.next.Load(); next != nil {
		total += next.size()
	}

	return total
}

func (b *producerBuffer[T]) pushFront(nb *producerBuffer[T]) {
	last := b
	for {
		n := last.next.Load()
		if n == nil {
			break
		}
		last = n
	}
	last.next.Store(nb)
}

func (b *producerBuffer[T]) unsafeClear() {
	written := b.written.Load()
	b.preReadSync.Store(written)
	b.readSlot.Store(written)

	if next := b.next.Load(); next != nil {
		next.unsafeClear()
	}
}

type producerCell[T any] struct {
	handle atomichandle.Handle[producerBuffer[T]]
}

type consumerCell[T any] struct {
	handle     atomichandle.Handle[producerBuffer[T]]
	popCounter uint32
}

type producerArray[T any] []*atomichandle.Handle[producerBuffer[T]]

// Queue is an unbounded MPMC FIFO queue.
type Queue[T any] struct {
	cfg config

	producers *tlm.Map[producerCell[T]]
	consumers *tlm.Map[consumerCell[T]]

	root     atomichandle.Handle[producerArray[T]]
	rootSwap atomichandle.Handle[producerArray[T]]

	producerCount               atomic.Uint32
	relocationIndex             atomic.Uint32
	producerSlotReservation     atomic.Uint32
	producerSlotPostReservation atomic.Uint32
}

// New constructs an empty Queue.
func New[T any](opts ...Option) *Queue[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	q := &Queue[T]{cfg: cfg}
	q.producers = tlm.New(func() *producerCell[T] { return &producerCell[T]{} })
	q.consumers = tlm.New(func() *consumerCell[T] { return &consumerCell[T]{} })
	return q
}

// Push adds in to the calling goroutine's producer buffer, growing or
// allocating one if needed.
func (q *Queue[T]) Push(in T) {
	cell := q.producers.Get()

	if buf := cell.handle.Load(); buf != nil && buf.tryPush(in) {
		return
	}

	if buf := cell.handle.Load(); buf != nil && buf.isValid() {
		q.addProducerBuffer(cell)
	} else {
		q.initProducer(cell, q.cfg.initialProducerCapacity)
	}

	cell.handle.Load().tryPush(in)
}

// Reserve pre-grows the calling goroutine's own producer buffer to at
// least capacity, following the same power-of-two growth path as
// organic overflow.
func (q *Queue[T]) Reserve(capacity uint64) {
	cell := q.producers.Get()
	cur := cell.handle.Load()

	if cur == nil {
		q.initProducer(cell, capacity)
		return
	}

	if cur.capacity() < capacity {
		nb := newProducerBuffer[T](alignPow2(capacity, q.cfg.bufferCapacityMax))
		cur.pushFront(nb)
		cell.handle.Store(nb)
	}
}

// TryPop removes and returns the head of the calling goroutine's current
// consumer buffer, relocating across producers as needed. Returns false
// if the queue has no entries available right now.
func (q *Queue[T]) TryPop(out *T) bool {
	cell := q.consumers.Get()

	for {
		if buf := cell.handle.Load(); buf != nil && buf.tryPop(out) {
			break
		}
		if !q.relocateConsumer(cell) {
			return false
		}
	}

	if q.producerCount.Load() > 1 {
		cell.popCounter++
		if cell.popCounter >= q.cfg.forceRelocationPopCount {
			q.relocateConsumer(cell)
			cell.popCounter = 0
		}
	}

	return true
}

// Size returns an instantaneous, non-linearizable estimate of the number
// of entries in the queue.
func (q *Queue[T]) Size() uint64 {
	count := q.producerCount.Load()
	arr := q.root.Load()
	if arr == nil {
		return 0
	}

	var total uint64
	for i := uint32(0); i < count; i++ {
		if b := (*arr)[i].Load(); b != nil {
			total += b.size()
		}
	}
	return total
}

// UnsafeSize is a faster variant of Size: it reads only each producer's
// current buffer depth and does not walk successor chains, so it
// undercounts whenever a producer has grown past its first buffer.
// Intended for non-concurrent diagnostic use where that approximation
// is acceptable in exchange for avoiding the chain walk.
func (q *Queue[T]) UnsafeSize() uint64 {
	count := q.producerCount.Load()
	arr := q.root.Load()
	if arr == nil {
		return 0
	}

	var total uint64
	for i := uint32(0); i < count; i++ {
		if b := (*arr)[i].Load(); b != nil {
			total += b.written.Load() - b.readSlot.Load()
		}
	}
	return total
}

// UnsafeClear logically empties every producer buffer. Not safe to call
// concurrently with Push/TryPop.
func (q *Queue[T]) UnsafeClear() {
	count := q.producerCount.Load()
	arr := q.root.Load()
	if arr == nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		if b := (*arr)[i].Load(); b != nil {
			b.unsafeClear()
		}
	}
}

// UnsafeReset returns the queue to its initial, newly-constructed state.
// Not safe to call concurrently with any other method.
func (q *Queue[T]) UnsafeReset() {
	count := q.producerCount.Load()
	arr := q.root.Load()

	q.relocationIndex.Store(0)
	q.producerCount.Store(0)
	q.producerSlotPostReservation.Store(0)
	q.producerSlotReservation.Store(0)

	if arr != nil {
		for i := uint32(0); i < count; i++ {
			if b := (*arr)[i].Load(); b != nil {
				b.unsafeClear()
				b.invalidate()
			}
		}
	}

	q.root.Store(nil)
	q.rootSwap.Store(nil)
}

func (q *Queue[T]) initProducer(cell *producerCell[T], capacity uint64) {
	nb := newProducerBuffer[T](alignPow2(capacity, q.cfg.bufferCapacityMax))
	q.pushProducerBuffer(nb)
	cell.handle.Store(nb)
}

func (q *Queue[T]) addProducerBuffer(cell *producerCell[T]) {
	cur := cell.handle.Load()
	nb := newProducerBuffer[T](alignPow2(cur.capacity()*2, q.cfg.bufferCapacityMax))
	cur.pushFront(nb)
	cell.handle.Store(nb)
}

func (q *Queue[T]) relocateConsumer(cell *consumerCell[T]) bool {
	producers := q.producerCount.Load()

	if producers < 2 {
		if cur := cell.handle.Load(); cur != nil && cur.isActive() {
			return false
		}
		if producers == 0 {
			return false
		}
	}

	relocation := q.relocationIndex.Add(1) - 1

	arr := q.root.Load()
	if arr == nil {
		return false
	}

	for i := uint32(0); i < producers; i++ {
		entry := (relocation + i) % producers

		slot := (*arr)[entry]
		buf := slot.Load()
		if buf == nil || buf.size() == 0 {
			continue
		}

		if !buf.isActive() {
			if succ := buf.findBack(); succ != nil {
				buf = succ
				slot.Store(buf)
			}
		}

		cell.handle.Store(buf)
		cell.popCounter = 0
		return true
	}

	return false
}

func (q *Queue[T]) claimProducerSlot() uint32 {
	desired := q.producerSlotReservation.Load()
	for {
		q.ensureProducerSlotsCapacity(desired + 1)
		if q.producerSlotReservation.CompareAndSwap(desired, desired+1) {
			return desired
		}
		desired = q.producerSlotReservation.Load()
	}
}

func (q *Queue[T]) ensureProducerSlotsCapacity(minCapacity uint32) {
	var swap *producerArray[T]

	for {
		active := q.root.Load()
		if active != nil && uint32(len(*active)) >= minCapacity {
			break
		}

		swap = q.rootSwap.Load()
		if swap == nil || uint32(len(*swap)) < minCapacity {
			growth := uint32(float64(minCapacity) * 1.4)
			if growth < minCapacity {
				growth = minCapacity
			}
			grown := make(producerArray[T], growth)
			for i := range grown {
				grown[i] = &atomichandle.Handle[producerBuffer[T]]{}
			}
			q.rootSwap.CompareAndSwap(swap, &grown)
			continue
		}

		if active != nil {
			for i := range *active {
				if h := (*active)[i].Load(); h != nil {
					(*swap)[i].CompareAndSwap(nil, h)
				}
			}
		}

		if q.root.CompareAndSwap(active, swap) {
			break
		}
	}

	if sw := q.rootSwap.Load(); sw != nil {
		if active := q.root.Load(); active == sw {
			q.rootSwap.CompareAndSwap(sw, nil)
		}
	}
}

func (q *Queue[T]) forceStoreToProducerSlot(buf *producerBuffer[T], slot uint32) {
	for {
		active := q.root.Load()
		swap := q.rootSwap.Load()

		if (*active)[slot].Load() != buf {
			(*active)[slot].Store(buf)
		}
		if swap != nil && slot < uint32(len(*swap)) && (*swap)[slot].Load() != buf {
			(*swap)[slot].Store(buf)
		}

		if q.rootSwap.Load() == swap && q.root.Load() == active {
			break
		}
	}
}

func (q *Queue[T]) pushProducerBuffer(buf *producerBuffer[T]) {
	slot := q.claimProducerSlot()
	q.forceStoreToProducerSlot(buf, slot)

	post := q.producerSlotPostReservation.Add(1)
	reserved := q.producerSlotReservation.Load()

	if post == reserved {
		q.trySwapProducerCount(post)
	}
}

func (q *Queue[T]) trySwapProducerCount(to uint32) {
	for {
		cur := q.producerCount.Load()
		if cur >= to {
			return
		}
		if q.producerCount.CompareAndSwap(cur, to) {
			return
		}
	}
}
