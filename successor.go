package skiplist

import "sync/atomic"

// successorState is the (right-pointer, mark, flag) triple from spec §4.1,
// boxed so that the triple can be swapped atomically as a single unit. This
// is the memory-safe realization of a tagged pointer: rather than stealing
// low bits from a raw pointer, the whole triple lives behind one
// atomic.Pointer and every transition publishes a fresh, immutable box.
// Because a transition never reinstalls a box that is still live elsewhere,
// pointer-identity CAS on the box is equivalent to value CAS on the triple.
type successorState[V any] struct {
	right   *node[V]
	marked  bool
	flagged bool
}

// taggedSuccessor is the atomically CAS-able successor field carried by
// every node. mark means "logically deleted"; flag means "the node to the
// right is scheduled for deletion and needs help".
type taggedSuccessor[V any] struct {
	state atomic.Pointer[successorState[V]]
}

func newTaggedSuccessor[V any](ts *taggedSuccessor[V], right *node[V]) {
	ts.state.Store(&successorState[V]{right: right})
}

// load returns the current triple. Never nil once a node has been
// constructed through newNode/newTaggedSuccessor.
func (s *taggedSuccessor[V]) load() *successorState[V] {
	return s.state.Load()
}

// right masks off the tag bits, in spec terms.
func (s *taggedSuccessor[V]) right() *node[V] {
	return s.load().right
}

func (s *taggedSuccessor[V]) marked() bool {
	return s.load().marked
}

func (s *taggedSuccessor[V]) flagged() bool {
	return s.load().flagged
}

// store unconditionally installs a fresh triple. Used only before a node is
// published (i.e. before any other thread can observe it), matching
// insertAt's "new.successor = {succ, 0, 0}" initialization.
func (s *taggedSuccessor[V]) store(right *node[V], marked, flagged bool) {
	s.state.Store(&successorState[V]{right: right, marked: marked, flagged: flagged})
}

// compareAndSwap succeeds iff the currently installed triple is old,
// installing (right, marked, flagged) in its place.
func (s *taggedSuccessor[V]) compareAndSwap(old *successorState[V], right *node[V], marked, flagged bool) bool {
	return s.state.CompareAndSwap(old, &successorState[V]{right: right, marked: marked, flagged: flagged})
}

// is reports whether a previously loaded triple still matches
// (right, marked, flagged) by value — used to re-derive the "expected"
// triple for a CAS without a second load racing against concurrent writers.
func (st *successorState[V]) is(right *node[V], marked, flagged bool) bool {
	return st != nil && st.right == right && st.marked == marked && st.flagged == flagged
}
