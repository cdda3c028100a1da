// Package skiplist implements a lock-free ordered map keyed by int64,
// following the Fomitchev–Ruppert construction (PODC 2004): a stack of
// independent singly-linked lists coordinated by a two-bit tag (mark,
// flag) on each node's successor pointer.
package skiplist

// Map is a lock-free ordered map from int64 keys to V values.
type Map[V any] struct {
	cfg Config

	bottomHead *node[V]
	bottomTail *node[V]

	rng     *RNG
	metrics *Metrics

	reclaimer *Reclaimer[V]
	retired   retired[V]
}

// New constructs a Map with the sentinel ladder already in place.
func New[V any](opts ...Option) *Map[V] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rng := newRNG()
	bottomHead, bottomTail := newLadder[V](cfg.maxLevel)

	return &Map[V]{
		cfg:        cfg,
		bottomHead: bottomHead,
		bottomTail: bottomTail,
		rng:        rng,
		metrics:    newMetrics(rng),
	}
}

// WithReclaimer installs r as m's node-recycling Reclaimer (see
// reclaim.go), returning m for chaining. This is deliberately a method on
// Map[V] rather than a functional Option: Option is shared, untyped
// construction state (Config has no type parameter of its own), so a
// free function WithReclaimer[V any](*Reclaimer[V]) Option would let its V
// be inferred purely from the Reclaimer and silently diverge from the
// Map[V] it's later applied to — a mismatch that could only be caught by
// a runtime type assertion instead of the compiler. Keying the method off
// m's own V closes that hole entirely.
func (m *Map[V]) WithReclaimer(r *Reclaimer[V]) *Map[V] {
	m.reclaimer = r
	return m
}

// findStart returns the lowest head from which a top-down search covers
// level v: climb from the bottom head while the level above is non-empty
// or we haven't reached v yet (spec §4.3).
func (m *Map[V]) findStart(v int) (start *node[V], level int) {
	curr := m.bottomHead
	level = 1
	for curr.up.successor.right().key != KeyMax || level < v {
		curr = curr.up
		level++
	}
	return curr, level
}

// searchToLevel locates the (pred, succ) pair straddling key at level v,
// descending from findStart's result one level at a time.
func (m *Map[V]) searchToLevel(key int64, v int) (pred, succ *node[V]) {
	curr, level := m.findStart(v)
	for level > v {
		curr, _ = m.searchRight(key, curr)
		curr = curr.down
		level--
	}
	return m.searchRight(key, curr)
}

// Insert publishes key/element if key is absent, building a tower of
// randomly sampled height on top of the level-1 splice (spec §4.3).
// Returns false (without mutating anything) if key is already present, or
// if key is one of the reserved sentinel values.
func (m *Map[V]) Insert(key int64, element V) bool {
	if key == KeyMin || key == KeyMax {
		return false
	}

	pred, succ := m.searchToLevel(key, 1)
	if pred.key == key {
		return false
	}

	root := m.allocRoot(key, element)
	root.towerRoot = root

	height := m.rng.SampleHeight(m.cfg.maxLevel, m.cfg.coinP)
	curr := root
	level := 1

	for {
		var result *node[V]
		pred, result = m.insertAt(curr, pred, succ)

		if result == nil {
			if level == 1 {
				return false // duplicate won the race
			}
		} else if level == 1 {
			m.metrics.incInsertSuccess()
			m.metrics.addLen(1)
		}

		if root.successor.marked() {
			// The tower was concurrently removed while we were still
			// building it upward; retract whatever we just installed.
			if result == curr && curr != root {
				m.deleteAt(pred, curr)
			}
			return true
		}

		level++
		if level == height+1 {
			return true
		}

		below := curr
		curr = newUpperNode[V](key, below, root, nil)

		pred, succ = m.searchToLevel(key, level)
	}
}

// Find returns the element for key if it is currently live.
func (m *Map[V]) Find(key int64) (V, bool) {
	if key == KeyMin || key == KeyMax {
		var zero V
		return zero, false
	}
	pred, _ := m.searchToLevel(key, 1)
	if pred.key == key {
		return pred.element, true
	}
	var zero V
	return zero, false
}

// Remove deletes key if it is currently live, returning the removed
// element. Upper-level nodes belonging to the tower are not unlinked here;
// they are cleaned up lazily by searchRight's helping, which the
// searchToLevel(key, 2) call below merely accelerates (spec §4.3 step 4).
func (m *Map[V]) Remove(key int64) (V, bool) {
	if key == KeyMin || key == KeyMax {
		var zero V
		return zero, false
	}

	pred, target := m.searchToLevel(key-1, 1)
	if target.key != key {
		var zero V
		return zero, false
	}

	result := m.deleteAt(pred, target)
	if result == nil {
		var zero V
		return zero, false
	}

	m.metrics.addLen(-1)
	m.searchToLevel(key, 2)

	return target.element, true
}

// Len returns the live key count.
func (m *Map[V]) Len() int64 {
	return m.metrics.Len()
}

// Stats exposes CAS contention counters; see Metrics.Stats.
func (m *Map[V]) Stats() (retries, successes, helps int64) {
	return m.metrics.Stats()
}

// Reclaim recycles physically-unlinked nodes through the configured
// Reclaimer. The caller must guarantee quiescence (no concurrent
// Insert/Find/Remove/iteration in flight) before calling this — see
// Reclaimer's doc comment. If no Reclaimer was configured, the retired
// nodes are dropped and left to the garbage collector.
func (m *Map[V]) Reclaim() {
	if m.reclaimer == nil {
		m.retired.drain() // nothing to recycle into; just drop the batch
		return
	}
	for _, n := range m.retired.drain() {
		m.reclaimer.release(n)
	}
}

func (m *Map[V]) allocRoot(key int64, element V) *node[V] {
	if m.reclaimer == nil {
		return newNode(key, element, nil)
	}
	n := m.reclaimer.acquire()
	n.key = key
	n.element = element
	return n
}
