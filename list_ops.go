package skiplist

// This file implements the single-level lock-free list operations from
// spec §4.2: the Harris-style lock-free linked list with Fomitchev's
// flag-then-mark refinement. Every function here operates on exactly one
// level's chain; the multi-level composition lives in skiplist.go.

// searchRight walks rightward from curr until it finds the tightest
// (pred, succ) pair straddling key: pred.key <= key < succ.key. Along the
// way it helps finish any deletion it notices in progress (a node whose
// tower root is marked), which is how cleanup gets amortized across
// searchers instead of piling up.
func (m *Map[V]) searchRight(key int64, curr *node[V]) (pred, succ *node[V]) {
	pred = curr
	succ = pred.successor.right()

	for succ.key <= key {
		for succ.towerRoot.successor.marked() {
			var inList bool
			pred, inList, _ = m.tryFlag(pred, succ)
			if inList {
				m.helpFlagged(pred, succ)
			}
			succ = pred.successor.right()
			if succ.key > key {
				return pred, succ
			}
		}
		if succ.key <= key {
			pred = succ
			succ = pred.successor.right()
		}
	}
	return pred, succ
}

// tryFlag attempts to set the flag bit on pred's successor, publishing that
// target is about to be unlinked. It reports whether target is still
// reachable from pred (inList) and whether this call is the one that set
// the flag (didFlag). The flag-setter is responsible for finishing the
// deletion via helpFlagged; a caller that finds the flag in place (inList)
// may help finish it as well.
func (m *Map[V]) tryFlag(pred, target *node[V]) (newPred *node[V], inList, didFlag bool) {
	for {
		cur := pred.successor.load()

		if cur.is(target, false, true) {
			return pred, true, false // someone else already flagged toward target
		}

		if cur.is(target, false, false) {
			won := pred.successor.compareAndSwap(cur, target, false, true)
			if afterTryFlagHook != nil {
				afterTryFlagHook(pred, target, won)
			}
			if won {
				return pred, true, true
			}
			// Lost the race; the top of the loop re-derives state from
			// scratch, so no special-casing is needed here.
		}

		for pred.successor.marked() {
			pred = pred.backLink.Load()
		}

		var succ *node[V]
		pred, succ = m.searchRight(target.key-1, pred)
		if succ != target {
			return pred, false, false // target was unlinked by someone else
		}
	}
}

// tryMark sets the mark bit on victim's own successor, helping along any
// flag it encounters first. It always returns once victim.successor.marked
// is observed true, whether this call or a helper set it.
func (m *Map[V]) tryMark(victim *node[V]) {
	for {
		cur := victim.successor.load()
		if cur.marked {
			return
		}
		if cur.flagged {
			m.helpFlagged(victim, cur.right)
			continue
		}
		if victim.successor.compareAndSwap(cur, cur.right, true, false) {
			return
		}
	}
}

// helpFlagged finishes a deletion that pred has already flagged toward
// victim: publish the restart point (backLink), mark victim, then unlink it.
func (m *Map[V]) helpFlagged(pred, victim *node[V]) {
	victim.backLink.Store(pred)
	m.tryMark(victim)
	m.helpMarked(pred, victim)
	m.metrics.incHelpFlagged()
}

// helpMarked performs the single-CAS physical unlink of a marked, flagged
// victim, clearing pred's flag in the same step. Idempotent: if pred's
// successor no longer matches what was just loaded, the CAS simply fails
// and whoever beat us to it already did the unlink. The thread whose CAS
// wins is the one that retires victim — exactly one winner per node, so
// retired.push never sees the same node twice.
func (m *Map[V]) helpMarked(pred, victim *node[V]) {
	cur := pred.successor.load()
	if cur.right != victim || !cur.flagged {
		return
	}
	right := victim.successor.right()
	unlinked := pred.successor.compareAndSwap(cur, right, false, false)
	if afterHelpMarkedHook != nil {
		afterHelpMarkedHook(pred, victim, unlinked)
	}
	if unlinked {
		m.retired.push(victim)
	}
}

// insertAt splices new between pred and succ, retrying the locate step if
// pred turns out to be flagged, marked, or simply stale. Returns (pred,
// nil) for a duplicate key, or (pred, new) once new is published.
func (m *Map[V]) insertAt(newN, pred, succ *node[V]) (newPred, result *node[V]) {
	if pred.key == newN.key {
		return pred, nil
	}

	for {
		cur := pred.successor.load()

		if cur.flagged {
			m.helpFlagged(pred, cur.right)
		} else {
			newN.successor.store(succ, false, false)
			if beforeInsertCASHook != nil {
				beforeInsertCASHook(pred, newN)
			}
			if cur.is(succ, false, false) && pred.successor.compareAndSwap(cur, newN, false, false) {
				return pred, newN
			}
			m.metrics.incInsertCASRetry()

			cur = pred.successor.load()
			if cur.flagged {
				m.helpFlagged(pred, cur.right)
			}
			for pred.successor.marked() {
				pred = pred.backLink.Load()
			}
		}

		pred, succ = m.searchRight(newN.key, pred)
		if pred.key == newN.key {
			return pred, nil
		}
	}
}

// deleteAt flags then unlinks target, returning target on success or nil if
// it was already gone by the time we got there.
func (m *Map[V]) deleteAt(pred, target *node[V]) *node[V] {
	pred, inList, didFlag := m.tryFlag(pred, target)
	if didFlag {
		m.helpFlagged(pred, target)
	}
	if !inList {
		return nil
	}
	return target
}
