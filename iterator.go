package skiplist

// Iterator is a forward-only cursor over the level-1 list in ascending key
// order (spec §4.4). It is single-pass and not restartable once exhausted.
//
// The cursor may observe logically-deleted nodes concurrently with other
// goroutines mutating the map — they are skipped, not reclaimed — so the
// iteration contract is: yields each key that was live at some moment
// during the iteration, in ascending order, possibly including keys that
// have just been removed or missing keys that have just been inserted.
// Single-threaded iteration (no concurrent mutation) sees a consistent
// snapshot.
type Iterator[V any] struct {
	m       *Map[V]
	current *node[V]
	key     int64
	value   V
	valid   bool
}

// Iterator returns a cursor positioned before the first element (begin()
// in spec terms).
func (m *Map[V]) Iterator() *Iterator[V] {
	return &Iterator[V]{m: m, current: m.bottomHead}
}

// Valid reports whether the cursor currently points at a live element.
func (it *Iterator[V]) Valid() bool {
	return it != nil && it.valid
}

// Key returns the key at the cursor's position. Only meaningful if Valid.
func (it *Iterator[V]) Key() int64 {
	if it == nil || !it.valid {
		return 0
	}
	return it.key
}

// Value returns the element at the cursor's position. Only meaningful if
// Valid.
func (it *Iterator[V]) Value() V {
	var zero V
	if it == nil || !it.valid {
		return zero
	}
	return it.value
}

// Next advances the cursor to the next live key, following successor.right
// on the level-1 list and skipping any node it finds already marked. It
// also helps finish deletions it notices in passing, same as searchRight.
func (it *Iterator[V]) Next() bool {
	if it == nil || it.m == nil {
		return false
	}

	for {
		right := it.current.successor.right()
		if right == it.m.bottomTail {
			it.invalidate()
			return false
		}

		if right.successor.marked() {
			// Help finish the deletion, then keep scanning from here.
			pred, inList, _ := it.m.tryFlag(it.current, right)
			if inList {
				it.m.helpFlagged(pred, right)
			}
			it.current = pred
			continue
		}

		it.current = right
		it.key = right.key
		it.value = right.element
		it.valid = true
		return true
	}
}

// SeekGE positions the cursor at the first live element whose key is
// greater than or equal to key, reporting whether one exists.
func (it *Iterator[V]) SeekGE(key int64) bool {
	if it == nil || it.m == nil {
		return false
	}
	pred, succ := it.m.searchToLevel(key-1, 1)
	it.current = pred
	it.invalidate()
	if succ == it.m.bottomTail {
		return false
	}
	return it.Next()
}

func (it *Iterator[V]) invalidate() {
	it.valid = false
	it.key = 0
	var zero V
	it.value = zero
}
