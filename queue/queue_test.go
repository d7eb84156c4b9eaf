package queue

import (
	"sync"
	"testing"

	check "gopkg.in/check.v1"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func Test(t *testing.T) { check.TestingT(t) }

type QueueSuite struct{}

var _ = check.Suite(&QueueSuite{})

func (s *QueueSuite) TestSinglePushPop(c *check.C) {
	q := New[int]()
	q.Push(42)

	var out int
	c.Assert(q.TryPop(&out), check.Equals, true)
	c.Assert(out, check.Equals, 42)
}

func (s *QueueSuite) TestEmptyPopReturnsFalse(c *check.C) {
	q := New[int]()
	var out int
	c.Assert(q.TryPop(&out), check.Equals, false)
}

func (s *QueueSuite) TestSingleProducerFIFOOrder(c *check.C) {
	q := New[int]()
	const n = 1000

	for i := 0; i < n; i++ {
		q.Push(i)
	}

	for i := 0; i < n; i++ {
		var out int
		c.Assert(q.TryPop(&out), check.Equals, true)
		c.Assert(out, check.Equals, i)
	}

	var out int
	c.Assert(q.TryPop(&out), check.Equals, false)
}

func (s *QueueSuite) TestGrowsPastInitialCapacity(c *check.C) {
	q := New[int](WithInitialProducerCapacity(8))
	const n = 16 // forces at least one grow: 8 -> 16

	for i := 0; i < n; i++ {
		q.Push(i)
	}
	c.Assert(q.Size(), check.Equals, uint64(n))

	for i := 0; i < n; i++ {
		var out int
		c.Assert(q.TryPop(&out), check.Equals, true)
		c.Assert(out, check.Equals, i)
	}
}

func (s *QueueSuite) TestSPSC(c *check.C) {
	q := New[int]()
	const n = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
	}()

	received := make([]int, 0, n)
	for len(received) < n {
		var out int
		if q.TryPop(&out) {
			received = append(received, out)
		}
	}
	wg.Wait()

	for i, v := range received {
		c.Assert(v, check.Equals, i)
	}
}

// TestTwoProducersOneConsumerPreservesPerProducerOrder exercises the
// scenario where two producer goroutines interleave their pushes and a
// single consumer drains everything: each producer's own subsequence
// must come out in the order it was pushed, even though the two
// producers' items may interleave arbitrarily with each other.
func (s *QueueSuite) TestTwoProducersOneConsumerPreservesPerProducerOrder(c *check.C) {
	q := New[[2]int]() // [producerID, seq]
	const perProducer = 5000

	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push([2]int{id, i})
			}
		}(p)
	}

	lastSeen := [2]int{-1, -1}
	seen := 0
	for seen < 2*perProducer {
		var out [2]int
		if !q.TryPop(&out) {
			continue
		}
		c.Assert(out[1] > lastSeen[out[0]], check.Equals, true)
		lastSeen[out[0]] = out[1]
		seen++
	}
	wg.Wait()
}

func (s *QueueSuite) TestMultiProducerMultiConsumerAllItemsDelivered(c *check.C) {
	q := New[int]()
	const producers = 4
	const perProducer = 5000
	const total = producers * perProducer

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	var mu sync.Mutex
	count := 0
	var cwg sync.WaitGroup
	for i := 0; i < producers; i++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				mu.Lock()
				if count >= total {
					mu.Unlock()
					return
				}
				mu.Unlock()

				var out int
				if q.TryPop(&out) {
					mu.Lock()
					count++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	cwg.Wait()
	c.Assert(count, check.Equals, total)
}

func (s *QueueSuite) TestReserve(c *check.C) {
	q := New[int]()
	q.Reserve(64)
	for i := 0; i < 64; i++ {
		q.Push(i)
	}
	c.Assert(q.Size(), check.Equals, uint64(64))
}

func (s *QueueSuite) TestUnsafeClear(c *check.C) {
	q := New[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	q.UnsafeClear()
	c.Assert(q.Size(), check.Equals, uint64(0))

	var out int
	c.Assert(q.TryPop(&out), check.Equals, false)
}

func (s *QueueSuite) TestUnsafeReset(c *check.C) {
	q := New[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	q.UnsafeReset()
	c.Assert(q.Size(), check.Equals, uint64(0))

	q.Push(7)
	var out int
	c.Assert(q.TryPop(&out), check.Equals, true)
	c.Assert(out, check.Equals, 7)
}
