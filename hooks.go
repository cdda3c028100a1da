package skiplist

// Test hooks (kept separate so instrumentation doesn't clutter logic).
// Each is nil in production and only ever set by _test.go files to inject
// a delay or observe an intermediate state at one of the races spec §8
// exercises — the classic "pause thread A between locate and CAS, let
// thread B run to completion" shape. iterator_test.go sets
// afterTryFlagHook; the other hooks are not set by any test in this module.
var (
	// beforeInsertCASHook runs in insertAt right before the CAS that
	// publishes newNode between pred and succ.
	beforeInsertCASHook func(pred, newNode any)

	// afterTryFlagHook runs in tryFlag once a flag attempt has concluded,
	// win or lose, reporting whether this call was the one that set it.
	afterTryFlagHook func(pred, target any, didFlag bool)

	// afterHelpMarkedHook runs in helpMarked after its unlink CAS has been
	// attempted, reporting whether this call physically unlinked victim.
	afterHelpMarkedHook func(pred, victim any, unlinked bool)
)
