// Package pqueue implements a lock-free concurrent priority queue backed
// by a skip list: every layer above the base is a set of versioned
// shortcut links, insertion and removal operate layer by layer from the
// top down, and removal races are resolved through the version counter
// carried alongside each link rather than through locking.
package pqueue

import (
	"cmp"

	"github.com/gsingh-ds/lf-containers/internal/nodepool"
	"github.com/gsingh-ds/lf-containers/internal/tlm"
	"github.com/gsingh-ds/lf-containers/internal/verptr"
)

type allocStrategy uint8

const (
	strategyPool allocStrategy = iota
	strategyScratch
	strategyExternal
)

const defaultExpectedListSize = 512

// Option configures a PriorityQueue at construction time.
type Option[K any] func(*pqConfig[K])

type pqConfig[K any] struct {
	expectedListSize uint64
	less             func(a, b K) bool
}

// WithExpectedListSize hints at how many entries the list will hold
// concurrently under steady load. The hint is used to size the skip
// list's per-node link tower and to calibrate the generation-lag
// counteraction performed during removal; it is not a capacity limit.
func WithExpectedListSize[K any](n uint64) Option[K] {
	return func(c *pqConfig[K]) {
		if n > 0 {
			c.expectedListSize = n
		}
	}
}

// WithLess overrides the default ordering. By default New uses the
// natural ordering of an Ordered key type.
func WithLess[K any](less func(a, b K) bool) Option[K] {
	return func(c *pqConfig[K]) {
		if less != nil {
			c.less = less
		}
	}
}

// PriorityQueue is a lock-free concurrent priority queue keyed by K,
// carrying a V payload per entry. The zero value is not usable; build
// one with New, NewScratch, or NewExternal.
type PriorityQueue[K any, V any] struct {
	head *Node[K, V]

	towerHeight      uint8
	expectedListSize uint64
	less             func(a, b K) bool

	strategy allocStrategy
	pool     *nodepool.Pool[Node[K, V]]
	arena    *arena[K, V]

	rng *tlm.Map[xorshiftRNG]
}

func newBase[K any, V any](cfg pqConfig[K]) *PriorityQueue[K, V] {
	if cfg.expectedListSize == 0 {
		cfg.expectedListSize = defaultExpectedListSize
	}

	towerHeight := toTowerHeight(cfg.expectedListSize)

	q := &PriorityQueue[K, V]{
		towerHeight:      towerHeight,
		expectedListSize: toExpectedListSize(towerHeight),
		less:             cfg.less,
		rng:              tlm.New(newXorshiftRNG),
	}

	q.head = newNode[K, V](towerHeight)
	q.head.height = towerHeight
	selfView := verptr.NewView(q.head, 0)
	for i := range q.head.links {
		q.head.links[i].Store(selfView)
	}

	return q
}

// New builds a pool-backed PriorityQueue ordered by K's natural
// ordering. Nodes are recycled through an epoch-guarded pool, so Push
// and TryPop never leak memory across steady-state use.
func New[K cmp.Ordered, V any](opts ...Option[K]) *PriorityQueue[K, V] {
	cfg := pqConfig[K]{less: func(a, b K) bool { return a < b }}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := newBase[K, V](cfg)
	q.strategy = strategyPool
	q.pool = nodepool.New(
		func() *Node[K, V] { return newNode[K, V](q.towerHeight) },
		func(n *Node[K, V]) { resetNode(n) },
	)
	return q
}

// NewScratch builds a PriorityQueue backed by a bump-allocated arena:
// popped nodes are never reclaimed individually. Call UnsafeResetArena
// once no concurrent operation can be touching the list to reclaim
// everything at once. Suited to workloads that repeatedly fill and
// fully drain the queue in discrete phases.
func NewScratch[K cmp.Ordered, V any](opts ...Option[K]) *PriorityQueue[K, V] {
	cfg := pqConfig[K]{less: func(a, b K) bool { return a < b }}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := newBase[K, V](cfg)
	q.strategy = strategyScratch
	q.arena = newArena[K, V](q.towerHeight)
	return q
}

// NewExternal builds a PriorityQueue whose nodes are owned entirely by
// the caller. Use NewExternalNode to allocate a node sized for this
// list, PushNode/TryPopNode in place of Push/TryPop, and dispose of
// popped nodes however the caller sees fit.
func NewExternal[K cmp.Ordered, V any](opts ...Option[K]) *PriorityQueue[K, V] {
	cfg := pqConfig[K]{less: func(a, b K) bool { return a < b }}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := newBase[K, V](cfg)
	q.strategy = strategyExternal
	return q
}

// atHead and atEnd both mean "is this the sentinel": a single-sentinel
// skip list has no link that can be followed past the head to a
// distinct terminal node, so both checks reduce to the same pointer
// comparison.
func (q *PriorityQueue[K, V]) atEnd(n *Node[K, V]) bool {
	return n == q.head
}

func (q *PriorityQueue[K, V]) atHead(n *Node[K, V]) bool {
	return n == q.head
}

// Empty reports whether the list currently holds no entries. The
// result may be stale by the time the caller observes it under
// concurrent use.
func (q *PriorityQueue[K, V]) Empty() bool {
	return q.atEnd(q.head.links[0].Load().Pointer())
}

// Push inserts key/value. Not valid on an external-allocation-strategy
// queue; use PushNode instead.
func (q *PriorityQueue[K, V]) Push(key K, value V) {
	if q.strategy == strategyExternal {
		panic("pqueue: Push is not supported for an external-allocation-strategy queue; use PushNode")
	}

	n := q.allocate(key, value)

	if q.strategy == strategyPool {
		q.pool.Guard(func() {
			for !q.tryPush(n) {
			}
		})
		return
	}

	for !q.tryPush(n) {
	}
}

func (q *PriorityQueue[K, V]) allocate(key K, value V) *Node[K, V] {
	var n *Node[K, V]
	if q.strategy == strategyPool {
		n = q.pool.Get()
	} else {
		n = q.arena.get()
	}
	n.item = entry[K, V]{key: key, value: value}
	n.height = randomHeight(q.rng.Get(), q.towerHeight)
	return n
}

// PushNode inserts a node previously allocated with NewExternalNode.
// Only valid on an external-allocation-strategy queue.
func (q *PriorityQueue[K, V]) PushNode(n *Node[K, V]) {
	if q.strategy != strategyExternal {
		panic("pqueue: PushNode is only valid for an external-allocation-strategy queue")
	}
	for !q.tryPush(n) {
	}
}

// NewExternalNode allocates and fills a node sized for this queue's
// tower height, for use with PushNode. Only valid on an
// external-allocation-strategy queue.
func (q *PriorityQueue[K, V]) NewExternalNode(key K, value V) *Node[K, V] {
	if q.strategy != strategyExternal {
		panic("pqueue: NewExternalNode is only valid for an external-allocation-strategy queue")
	}
	n := newNode[K, V](q.towerHeight)
	n.item = entry[K, V]{key: key, value: value}
	n.height = randomHeight(q.rng.Get(), q.towerHeight)
	return n
}

// TryPop removes and returns the lowest-keyed entry, if any. Not valid
// on an external-allocation-strategy queue; use TryPopNode instead.
func (q *PriorityQueue[K, V]) TryPop() (key K, value V, ok bool) {
	if q.strategy == strategyExternal {
		panic("pqueue: TryPop is not supported for an external-allocation-strategy queue; use TryPopNode")
	}

	var node *Node[K, V]
	run := func() { node, ok = q.tryPopInternal() }

	if q.strategy == strategyPool {
		q.pool.Guard(run)
	} else {
		run()
	}

	if !ok {
		return key, value, false
	}

	key, value = node.item.key, node.item.value
	if q.strategy == strategyPool {
		q.pool.Recycle(node)
	}
	return key, value, true
}

// TryPopNode removes and returns the lowest-keyed node, if any, leaving
// the caller responsible for its disposal. Only valid on an
// external-allocation-strategy queue.
func (q *PriorityQueue[K, V]) TryPopNode() (*Node[K, V], bool) {
	if q.strategy != strategyExternal {
		panic("pqueue: TryPopNode is only valid for an external-allocation-strategy queue")
	}
	return q.tryPopInternal()
}

// Clear removes every entry from the list.
func (q *PriorityQueue[K, V]) Clear() {
	if q.strategy == strategyPool {
		q.pool.Guard(q.clearInternal)
		return
	}
	q.clearInternal()
}

// UnsafeReset rewires the sentinel back to an empty list. The caller
// must guarantee no concurrent Push/TryPop/Clear is in flight.
func (q *PriorityQueue[K, V]) UnsafeReset() {
	selfView := verptr.NewView(q.head, 0)
	for i := range q.head.links {
		q.head.links[i].Store(selfView)
	}
}

// UnsafeResetArena reclaims every block owned by a scratch-strategy
// queue's arena in one step. The caller must guarantee no concurrent
// operation is touching the list, and must call UnsafeReset first (or
// together with this) since any still-linked node becomes invalid.
func (q *PriorityQueue[K, V]) UnsafeResetArena() {
	if q.strategy != strategyScratch {
		panic("pqueue: UnsafeResetArena is only valid for a scratch-allocation-strategy queue")
	}
	q.arena.unsafeReset()
}

// UnsafeFind looks up a key without any reclamation guard. Safe only
// when the caller can guarantee no concurrent removal could recycle a
// node this call is traversing (e.g. single-threaded use, or a
// scratch/external strategy queue).
func (q *PriorityQueue[K, V]) UnsafeFind(k K) (V, bool) {
	at := q.head
	for i := uint8(0); i < q.towerHeight; i++ {
		layer := q.towerHeight - i - 1
		for {
			next := at.links[layer].Load().Pointer()
			if q.atEnd(next) {
				break
			}
			if !q.less(next.item.key, k) && !q.less(k, next.item.key) {
				return next.item.value, true
			}
			if !q.less(next.item.key, k) {
				break
			}
			at = next
		}
	}
	var zero V
	return zero, false
}

// Iterator walks the live base layer from lowest key upward, loading
// each link as it advances. Safe only under the same caveats as
// UnsafeFind.
type Iterator[K any, V any] struct {
	at   *Node[K, V]
	head *Node[K, V]
}

func (it *Iterator[K, V]) Done() bool  { return it.at == it.head }
func (it *Iterator[K, V]) Key() K      { return it.at.item.key }
func (it *Iterator[K, V]) Value() V    { return it.at.item.value }
func (it *Iterator[K, V]) Next() *Iterator[K, V] {
	return &Iterator[K, V]{at: it.at.links[0].Load().Pointer(), head: it.head}
}

// UnsafeBegin returns an iterator positioned at the lowest-keyed entry.
func (q *PriorityQueue[K, V]) UnsafeBegin() *Iterator[K, V] {
	return &Iterator[K, V]{at: q.head.links[0].Load().Pointer(), head: q.head}
}

// UnsafeEnd returns the sentinel end-of-list iterator position.
func (q *PriorityQueue[K, V]) UnsafeEnd() *Iterator[K, V] {
	return &Iterator[K, V]{at: q.head, head: q.head}
}

type flagNodeResult uint8

const (
	flagNodeUnexpected flagNodeResult = iota
	flagNodeCompeditor
	flagNodeSuccess
)

type exchangeLinkResult uint8

const (
	exchangeOutsideRange exchangeLinkResult = iota
	exchangeSuccess
	exchangeOtherLink
)

func (q *PriorityQueue[K, V]) loadSet(outSet []verptr.View[Node[K, V]], at *Node[K, V], offset, max uint8) {
	for i := offset; i < max; i++ {
		outSet[i] = at.links[i].Load()
	}
}

func isFlagged[K any, V any](n verptr.View[Node[K, V]]) bool {
	return n.Version() != 0
}

// linkVerifyHeadLinkVersions confirms that head's own links for layers
// [fromLayer, toLayer) still carry the versions recorded in expectedSet,
// catching a race where head's upper layers moved while this descent
// was still using an earlier read of them as trusted predecessors.
func (q *PriorityQueue[K, V]) linkVerifyHeadLinkVersions(fromLayer, toLayer uint8, expectedSet []verptr.View[Node[K, V]]) bool {
	for i := fromLayer; i < toLayer; i++ {
		if q.head.links[i].Load().Version() != expectedSet[i].Version() {
			return false
		}
	}
	return true
}

// linkPrepareInsertionSets descends every layer from the top of the
// tower to the base, carrying the predecessor found at each layer down
// as the starting point for the layer below. atSet[l] ends each layer's
// inner loop holding the final predecessor at that layer; nextSet[l]
// holds that predecessor's own freshly read outgoing link, whose
// version is meaningful on its own terms (head's generation if the
// predecessor is the sentinel, the node's own flag state otherwise).
// Returns false if a concurrent change to head's upper links invalidates
// the probe and the caller should retry with a fresh pass.
func (q *PriorityQueue[K, V]) linkPrepareInsertionSets(atSet, nextSet []verptr.View[Node[K, V]], node *Node[K, V]) bool {
	atSet[q.towerHeight-1] = verptr.NewView(q.head, 0)

	nodeHeight := node.height
	key := node.item.key
	beganProbing := false

	for i := uint8(0); i < q.towerHeight; i++ {
		layer := q.towerHeight - 1 - i

		for {
			nextSet[layer] = atSet[layer].Pointer().links[layer].Load()
			nextNode := nextSet[layer].Pointer()

			if q.atEnd(nextNode) {
				break
			}
			if q.less(key, nextNode.item.key) {
				break
			}

			if !beganProbing {
				if !q.linkVerifyHeadLinkVersions(layer+1, nodeHeight, nextSet) {
					return false
				}
				beganProbing = true
			}

			atSet[layer] = nextSet[layer]
		}

		if layer > 0 {
			atSet[layer-1] = atSet[layer]
		}
	}

	if q.atHead(atSet[0].Pointer()) {
		q.loadSet(nextSet, q.head, 1, nodeHeight)
	}

	return true
}

// tryPush attempts a single insertion pass for node. Returns false if a
// concurrent mutation invalidated the search set and the caller should
// retry with a fresh pass.
func (q *PriorityQueue[K, V]) tryPush(node *Node[K, V]) bool {
	atSet := make([]verptr.View[Node[K, V]], q.towerHeight)
	nextSet := make([]verptr.View[Node[K, V]], q.towerHeight)

	if !q.linkPrepareInsertionSets(atSet, nextSet, node) {
		return false
	}

	for i := uint8(0); i < node.height; i++ {
		node.links[i].Store(nextSet[i].WithVersion(0))
	}

	if q.atHead(atSet[0].Pointer()) {
		return q.linkToHead(nextSet, node)
	}

	if !isFlagged[K, V](nextSet[0]) {
		return q.linkToNode(atSet, nextSet, node)
	}

	front := q.head.links[0].Load()

	if atSet[0].Equal(front) {
		if nextSet[0].Version() == verptr.IncVersion(front.Version()) {
			// Front is mid-deletion; splice in via the same pass that
			// helps finish delinking it.
			atSet[0] = front
			return q.linkToFront(atSet, nextSet, node)
		}

		// Front was supplanted mid-deletion and then promoted back to
		// front; help unflag it and retry from the top.
		q.delinkUnflagNode(front.Pointer(), &nextSet[0])
		return false
	}

	if q.canBeFoundFrom(front.Pointer(), atSet[0].Pointer()) {
		return q.linkToNode(atSet, nextSet, node)
	}

	return false
}

func (q *PriorityQueue[K, V]) linkToHead(next []verptr.View[Node[K, V]], node *Node[K, V]) bool {
	versionBase := next[0].Version()
	nextVersionBase := verptr.IncVersion(versionBase)

	if needsVersionLagCheck(q.expectedListSize, versionBase, 1) {
		q.counteractVersionLag(node.height, versionBase, next)
	}

	desired := verptr.NewView(node, 0)
	if q.exchangeNodeLink(&q.head.links[0], &next[0], desired, nextVersionBase) != exchangeSuccess {
		return false
	}

	q.linkToHeadUpper(next, node, nextVersionBase)
	return true
}

func (q *PriorityQueue[K, V]) linkToHeadUpper(expectedSet []verptr.View[Node[K, V]], node *Node[K, V], version uint32) {
	desired := verptr.NewView(node, 0)
	for layer := uint8(1); layer < node.height; layer++ {
		if q.exchangeHeadLink(&q.head.links[layer], &expectedSet[layer], desired, version) == exchangeOutsideRange {
			break
		}
	}
}

func (q *PriorityQueue[K, V]) linkToNode(atSet, expectedSet []verptr.View[Node[K, V]], node *Node[K, V]) bool {
	base := atSet[0].Pointer()

	desired := verptr.NewView(node, 0)
	if q.exchangeNodeLink(&base.links[0], &expectedSet[0], desired, 0) != exchangeSuccess {
		return false
	}

	q.linkToNodeUpper(atSet, expectedSet, node)
	return true
}

func (q *PriorityQueue[K, V]) linkToNodeUpper(atSet, expectedSet []verptr.View[Node[K, V]], node *Node[K, V]) {
	desired := verptr.NewView(node, 0)
	for layer := uint8(1); layer < node.height; layer++ {
		at := atSet[layer].Pointer()
		q.exchangeNodeLink(&at.links[layer], &expectedSet[layer], desired, expectedSet[layer].Version())
	}
}

// linkToFront splices node in directly behind a front node that is
// already mid-deletion, finishing that deletion's delink as part of the
// same pass instead of retrying the whole descent once it completes.
func (q *PriorityQueue[K, V]) linkToFront(frontSet, nextSet []verptr.View[Node[K, V]], node *Node[K, V]) bool {
	nextSet[0] = verptr.NewView(node, 0)

	currentFront := frontSet[0].Pointer()
	frontHeight := currentFront.height

	if node.height < frontHeight {
		q.loadSet(frontSet, q.head, 1, frontHeight)
	}

	q.loadSet(nextSet, currentFront, 1, frontHeight)

	if !q.delinkFront(frontSet, nextSet, 2, frontHeight) {
		return false
	}

	q.linkToHeadUpper(frontSet, node, frontSet[0].Version())
	return true
}

func (q *PriorityQueue[K, V]) exchangeHeadLink(link *verptr.Ptr[Node[K, V]], expected *verptr.View[Node[K, V]], desired verptr.View[Node[K, V]], desiredVersion uint32) exchangeLinkResult {
	desired = desired.WithVersion(desiredVersion)

	for {
		expectedVersion := expected.Version()
		if expectedVersion == desiredVersion {
			return exchangeOtherLink
		}
		if !verptr.InRange(expectedVersion, desiredVersion) {
			return exchangeOutsideRange
		}
		actual, ok := link.CompareAndSwapView(*expected, desired)
		if ok {
			*expected = desired
			return exchangeSuccess
		}
		*expected = actual
	}
}

func (q *PriorityQueue[K, V]) exchangeNodeLink(link *verptr.Ptr[Node[K, V]], expected *verptr.View[Node[K, V]], desired verptr.View[Node[K, V]], desiredVersion uint32) exchangeLinkResult {
	desired = desired.WithVersion(desiredVersion)
	actual, ok := link.CompareAndSwapView(*expected, desired)
	if ok {
		*expected = desired
		return exchangeSuccess
	}
	*expected = actual
	return exchangeOutsideRange
}

func (q *PriorityQueue[K, V]) delinkFlagNode(at *Node[K, V], version uint32, next *verptr.View[Node[K, V]]) flagNodeResult {
	nextVersion := verptr.IncVersion(version)

	if next.Version() == nextVersion {
		return flagNodeCompeditor
	}
	if !verptr.InRange(next.Version(), nextVersion) {
		return flagNodeUnexpected
	}

	desired := next.WithVersion(nextVersion)
	actual, ok := at.links[0].CompareAndSwapView(*next, desired)
	if ok {
		*next = desired
		return flagNodeSuccess
	}

	*next = actual
	if actual.Version() == nextVersion {
		return flagNodeCompeditor
	}
	return flagNodeUnexpected
}

func (q *PriorityQueue[K, V]) delinkFront(expectedFront, desiredFront []verptr.View[Node[K, V]], versionOffset, frontHeight uint8) bool {
	numUpperLayers := frontHeight - 1
	versionBase := expectedFront[0].Version()
	nextVersionUpper := verptr.IncVersion(versionBase)

	for i := uint8(0); i < numUpperLayers; i++ {
		layer := frontHeight - 1 - i
		if q.exchangeHeadLink(&q.head.links[layer], &expectedFront[layer], desiredFront[layer], nextVersionUpper) == exchangeOutsideRange {
			return false
		}
	}

	nextVersionBase := versionStep(versionBase, versionOffset)

	if needsVersionLagCheck(q.expectedListSize, versionBase, versionOffset) {
		q.counteractVersionLag(frontHeight, versionBase, expectedFront)
	}

	return q.exchangeNodeLink(&q.head.links[0], &expectedFront[0], desiredFront[0], nextVersionBase) == exchangeSuccess
}

func (q *PriorityQueue[K, V]) delinkUnflagNode(at *Node[K, V], expected *verptr.View[Node[K, V]]) {
	desired := expected.WithVersion(0)
	actual, ok := at.links[0].CompareAndSwapView(*expected, desired)
	if ok {
		*expected = desired
	} else {
		*expected = actual
	}
}

func needsVersionLagCheck(expectedListSize uint64, versionBase uint32, step uint8) bool {
	versionPart := uint64(versionBase) % expectedListSize
	return versionPart+uint64(step) >= expectedListSize
}

func (q *PriorityQueue[K, V]) counteractVersionLag(aboveLayer uint8, versionBase uint32, expected []verptr.View[Node[K, V]]) {
	recentVersion := versionSubOne(versionBase)

	for i := aboveLayer; i < q.towerHeight; i++ {
		link := expected[i]
		if link.IsNil() {
			link = q.head.links[i].Load()
		}

		for {
			versionLink := link.Version()
			if !verptr.InRange(versionLink, versionBase) {
				break
			}
			if uint64(versionDelta(versionLink, versionBase)) <= q.expectedListSize {
				break
			}

			desired := link.WithVersion(recentVersion)
			actual, ok := q.head.links[i].CompareAndSwapView(link, desired)
			if ok {
				break
			}
			link = actual
		}
	}
}

func (q *PriorityQueue[K, V]) canBeFoundFrom(searchStart, node *Node[K, V]) bool {
	key := node.item.key
	at := searchStart

	for {
		if at == node {
			return true
		}
		if q.atEnd(at) {
			return false
		}
		if q.less(key, at.item.key) {
			return false
		}
		at = at.links[0].Load().Pointer()
	}
}

func (q *PriorityQueue[K, V]) hasBeenDelinkedByOther(of *Node[K, V], actual, tried verptr.View[Node[K, V]]) bool {
	triedVersion := tried.Version()
	actualVersion := actual.Version()

	if actual.Equal(tried) && triedVersion == actualVersion {
		return true
	}

	var fromNode *Node[K, V]
	if !verptr.InRange(actualVersion, triedVersion) {
		fromNode = actual.Pointer()
	} else {
		fromNode = q.head.links[0].Load().Pointer()
	}

	if !q.canBeFoundFrom(fromNode, of) {
		current := of.links[0].Load().Version()
		return current == triedVersion
	}

	return false
}

func (q *PriorityQueue[K, V]) tryPopInternal() (*Node[K, V], bool) {
	var flagged, delinked bool
	var mynode *Node[K, V]

	for !(flagged && delinked) {
		flagged, delinked = false, false

		frontSet := make([]verptr.View[Node[K, V]], q.towerHeight)
		frontSet[0] = q.head.links[0].Load()
		mynode = frontSet[0].Pointer()

		if q.atEnd(mynode) {
			return nil, false
		}

		frontHeight := mynode.height
		nextSet := make([]verptr.View[Node[K, V]], q.towerHeight)

		q.loadSet(frontSet, q.head, 1, frontHeight)
		q.loadSet(nextSet, mynode, 0, frontHeight)

		flagResult := q.delinkFlagNode(mynode, frontSet[0].Version(), &nextSet[0])
		if flagResult == flagNodeUnexpected {
			continue
		}
		flagged = flagResult == flagNodeSuccess

		delinked = q.delinkFront(frontSet, nextSet, 1, frontHeight)

		if flagged && !delinked {
			delinked = q.hasBeenDelinkedByOther(mynode, frontSet[0], nextSet[0])
			if !delinked {
				q.delinkUnflagNode(mynode, &nextSet[0])
			}
		}
	}

	return mynode, true
}

func (q *PriorityQueue[K, V]) clearInternal() {
	frontSet := make([]verptr.View[Node[K, V]], q.towerHeight)
	nextSet := make([]verptr.View[Node[K, V]], q.towerHeight)

	var frontNode *Node[K, V]

	for {
		frontSet[0] = q.head.links[0].Load()
		frontNode = frontSet[0].Pointer()

		if q.atEnd(frontNode) {
			return
		}

		q.loadSet(frontSet, q.head, 1, q.towerHeight)
		selfView := verptr.NewView(q.head, 0)
		for i := range nextSet {
			nextSet[i] = selfView
		}

		if q.delinkFront(frontSet, nextSet, 1, q.towerHeight) {
			break
		}
	}

	if q.strategy != strategyPool {
		return
	}

	for !q.atEnd(frontNode) {
		next := frontNode.links[0].Load().Pointer()
		q.pool.Recycle(frontNode)
		frontNode = next
	}
}
