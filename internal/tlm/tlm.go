// Package tlm implements a thread-local map: a container that hands each
// calling goroutine its own independently-constructed value, analogous to
// thread-local storage in a language that has real threads. Go has no
// stable goroutine-local storage primitive, so identity here is resolved
// by parsing the numeric goroutine ID out of the calling goroutine's own
// stack trace header. This is a deliberate, documented departure from
// plain data-structure code: it is the closest honest analogue of
// thread_local storage available to a third-party package, short of
// linking against unexported runtime symbols.
package tlm

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Map hands out one *T per distinct calling goroutine, constructing it
// lazily on first access via the factory supplied to New.
type Map[T any] struct {
	factory func() *T
	entries sync.Map // goroutine id (uint64) -> *T
}

// New builds a Map whose per-goroutine values are constructed by calling
// factory the first time that goroutine calls Get.
func New[T any](factory func() *T) *Map[T] {
	return &Map[T]{factory: factory}
}

// Get returns the calling goroutine's value, constructing it if this is
// that goroutine's first call.
func (m *Map[T]) Get() *T {
	id := goroutineID()
	if v, ok := m.entries.Load(id); ok {
		return v.(*T)
	}
	v, _ := m.entries.LoadOrStore(id, m.factory())
	return v.(*T)
}

// Each invokes fn once for every goroutine that has so far called Get,
// such as scanning all per-goroutine epoch slots during reclamation
// bookkeeping. It may run concurrently with Get; a goroutine whose first
// Get races with the walk may or may not be visited.
func (m *Map[T]) Each(fn func(*T)) {
	m.entries.Range(func(_, v any) bool {
		fn(v.(*T))
		return true
	})
}

var stackBufPool = sync.Pool{
	New: func() any { return make([]byte, 64) },
}

// goroutineID extracts the calling goroutine's numeric ID from the
// "goroutine NNN [running]:" header Go's runtime prints at the start of
// every stack trace.
func goroutineID() uint64 {
	pooled := stackBufPool.Get().([]byte)
	defer stackBufPool.Put(pooled)

	buf := pooled
	n := runtime.Stack(buf, false)
	for n == len(buf) {
		buf = make([]byte, len(buf)*2)
		n = runtime.Stack(buf, false)
	}
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		panic("tlm: unexpected stack trace header: " + string(b))
	}
	b = b[len(prefix):]

	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		panic("tlm: unexpected stack trace header")
	}

	id, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		panic("tlm: malformed goroutine id: " + err.Error())
	}
	return id
}
