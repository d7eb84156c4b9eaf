package pqueue

import (
	"sort"
	"sync"
	"testing"

	check "gopkg.in/check.v1"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func Test(t *testing.T) { check.TestingT(t) }

type PQueueSuite struct{}

var _ = check.Suite(&PQueueSuite{})

func (s *PQueueSuite) TestSinglePushPop(c *check.C) {
	q := New[int, string]()
	q.Push(5, "five")

	k, v, ok := q.TryPop()
	c.Assert(ok, check.Equals, true)
	c.Assert(k, check.Equals, 5)
	c.Assert(v, check.Equals, "five")
}

func (s *PQueueSuite) TestEmptyPopReturnsFalse(c *check.C) {
	q := New[int, int]()
	_, _, ok := q.TryPop()
	c.Assert(ok, check.Equals, false)
}

func (s *PQueueSuite) TestPopsInAscendingKeyOrder(c *check.C) {
	q := New[int, int]()
	input := []int{5, 1, 4, 2, 8, 3, 9, 0, 7, 6}
	for _, k := range input {
		q.Push(k, k*10)
	}

	var out []int
	for {
		k, _, ok := q.TryPop()
		if !ok {
			break
		}
		out = append(out, k)
	}

	sorted := append([]int(nil), input...)
	sort.Ints(sorted)
	c.Assert(out, check.DeepEquals, sorted)
}

// TestConcurrentInsertionOrderIndependence inserts disjoint key ranges
// from several goroutines concurrently and checks that the keys still
// drain out in fully sorted order, regardless of insertion interleaving.
func (s *PQueueSuite) TestConcurrentInsertionOrderIndependence(c *check.C) {
	q := New[int, int](WithExpectedListSize[int](256))
	const perWorker = 500
	const workers = 4

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				q.Push(base*perWorker+i, 0)
			}
		}(w)
	}
	wg.Wait()

	last := -1
	count := 0
	for {
		k, _, ok := q.TryPop()
		if !ok {
			break
		}
		c.Assert(k > last, check.Equals, true)
		last = k
		count++
	}
	c.Assert(count, check.Equals, workers*perWorker)
}

// TestConcurrentPushPopUnderContention exercises simultaneous pushers and
// poppers racing over the front of the list, the scenario that forces
// the delink-flag/front-replace retry paths to run repeatedly.
func (s *PQueueSuite) TestConcurrentPushPopUnderContention(c *check.C) {
	q := New[int, int]()
	const total = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Push(i, i)
		}
	}()

	popped := 0
	var mu sync.Mutex
	var cwg sync.WaitGroup
	for w := 0; w < 4; w++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				mu.Lock()
				if popped >= total {
					mu.Unlock()
					return
				}
				mu.Unlock()

				if _, _, ok := q.TryPop(); ok {
					mu.Lock()
					popped++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	cwg.Wait()
	c.Assert(popped, check.Equals, total)
	c.Assert(q.Empty(), check.Equals, true)
}

// TestConcurrentClear drains a populated list from four goroutines racing
// Clear, asserting the list ends up empty and no entry survives.
func (s *PQueueSuite) TestConcurrentClear(c *check.C) {
	q := New[int, int]()
	const n = 100
	for i := 0; i < n; i++ {
		q.Push(i, i)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Clear()
		}()
	}
	wg.Wait()

	c.Assert(q.Empty(), check.Equals, true)
	_, _, ok := q.TryPop()
	c.Assert(ok, check.Equals, false)
}

func (s *PQueueSuite) TestUnsafeReset(c *check.C) {
	q := New[int, int]()
	for i := 0; i < 10; i++ {
		q.Push(i, i)
	}
	q.UnsafeReset()
	c.Assert(q.Empty(), check.Equals, true)

	q.Push(3, 3)
	k, v, ok := q.TryPop()
	c.Assert(ok, check.Equals, true)
	c.Assert(k, check.Equals, 3)
	c.Assert(v, check.Equals, 3)
}

func (s *PQueueSuite) TestWithLessDescending(c *check.C) {
	q := New[int, int](WithLess(func(a, b int) bool { return a > b }))
	for _, k := range []int{3, 1, 4, 1, 5, 9} {
		q.Push(k, 0)
	}

	var out []int
	for {
		k, _, ok := q.TryPop()
		if !ok {
			break
		}
		out = append(out, k)
	}
	c.Assert(sort.IsSorted(sort.Reverse(sort.IntSlice(out))), check.Equals, true)
}

func (s *PQueueSuite) TestUnsafeFind(c *check.C) {
	q := New[int, string]()
	q.Push(1, "one")
	q.Push(2, "two")

	v, ok := q.UnsafeFind(2)
	c.Assert(ok, check.Equals, true)
	c.Assert(v, check.Equals, "two")

	_, ok = q.UnsafeFind(99)
	c.Assert(ok, check.Equals, false)
}

func (s *PQueueSuite) TestScratchStrategyAndArenaReset(c *check.C) {
	q := NewScratch[int, int]()
	for i := 0; i < 50; i++ {
		q.Push(i, i)
	}

	for i := 0; i < 50; i++ {
		k, _, ok := q.TryPop()
		c.Assert(ok, check.Equals, true)
		c.Assert(k, check.Equals, i)
	}

	q.UnsafeReset()
	q.UnsafeResetArena()
	q.Push(7, 7)
	k, _, ok := q.TryPop()
	c.Assert(ok, check.Equals, true)
	c.Assert(k, check.Equals, 7)
}

func (s *PQueueSuite) TestExternalStrategy(c *check.C) {
	q := NewExternal[int, string]()

	n1 := q.NewExternalNode(2, "two")
	n2 := q.NewExternalNode(1, "one")
	q.PushNode(n1)
	q.PushNode(n2)

	got, ok := q.TryPopNode()
	c.Assert(ok, check.Equals, true)
	c.Assert(got.Key(), check.Equals, 1)
	c.Assert(got.Value(), check.Equals, "one")

	got, ok = q.TryPopNode()
	c.Assert(ok, check.Equals, true)
	c.Assert(got.Key(), check.Equals, 2)
}
