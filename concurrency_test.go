package skiplist

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentMixedOperationsStorm(t *testing.T) {
	t.Cleanup(func() {
		if t.Failed() {
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	})

	seed := time.Now().UnixNano()
	t.Logf("test seed=%d", seed)

	m := New[int]()

	const keySpace = 128
	goroutines := max(2*runtime.GOMAXPROCS(0), 4)
	const operationsPerGoroutine = 2000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		goroutineSeed := seed + int64(g)
		go func(s int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(s))
			for i := 0; i < operationsPerGoroutine; i++ {
				key := int64(r.Intn(keySpace))
				switch r.Intn(3) {
				case 0:
					m.Insert(key, r.Intn(1<<16))
				case 1:
					m.Remove(key)
				case 2:
					m.Find(key)
				}
			}
		}(goroutineSeed)
	}

	wg.Wait()

	// Validate iterator consistency (no mutations during this phase).
	observed := make(map[int64]int)
	it := m.Iterator()
	var prevKey *int64
	for it.Next() {
		k := it.Key()
		v := it.Value()

		_, dup := observed[k]
		require.Falsef(t, dup, "duplicate key %d", k)
		observed[k] = v

		if prevKey != nil {
			require.Lessf(t, *prevKey, k, "iterator out of order")
		}
		pk := k
		prevKey = &pk

		fv, ok := m.Find(k)
		require.Truef(t, ok, "iterator returned key %d, but Find reports missing", k)
		assert.Equalf(t, v, fv, "value mismatch for key %d", k)
	}

	// SeekGE lower bound: there are no concurrent mutators left here, so
	// whenever SeekGE reports a key, that key must be >= the seek key.
	for seek := int64(0); seek < keySpace; seek++ {
		seekIt := m.Iterator()
		if !seekIt.SeekGE(seek) {
			continue
		}
		assert.GreaterOrEqualf(t, seekIt.Key(), seek, "SeekGE(%d)", seek)
	}
}

func TestRemoveWhileInsertRacing(t *testing.T) {
	m := New[int]()

	const iterations = 5000

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < iterations; i++ {
			m.Insert(1, i)
		}
	}()

	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < iterations; i++ {
			m.Remove(1)
		}
	}()

	close(start)
	wg.Wait()

	assert.GreaterOrEqual(t, m.Len(), int64(0), "length should never be negative")

	if v, ok := m.Find(1); ok {
		assert.GreaterOrEqual(t, v, 0, "unexpected negative value surviving the race")
	}
}

func TestCascadeHelpingCleansUpEveryLevel(t *testing.T) {
	m := New[int]()

	const totalKeys = 1024
	for i := 0; i < totalKeys; i++ {
		m.Insert(int64(i), i)
	}

	const workers = 8
	var deleters sync.WaitGroup
	deleters.Add(workers)
	for w := 0; w < workers; w++ {
		go func(offset int) {
			defer deleters.Done()
			for k := offset; k < totalKeys; k += workers {
				m.Remove(int64(k))
			}
		}(w)
	}

	// Assertions that observe concurrent state run on a helper goroutine,
	// so failures are funneled through errCh instead of calling t.Fatal
	// directly — testify's require/assert, like t.Fatal, must only be
	// invoked from the goroutine running the test function.
	stop := make(chan struct{})
	var helper sync.WaitGroup
	helper.Add(1)
	errCh := make(chan error, 1)
	go func() {
		defer helper.Done()
		r := rand.New(rand.NewSource(1234))
		for {
			select {
			case <-stop:
				return
			default:
			}

			key := int64(r.Intn(totalKeys))
			it := m.Iterator()
			if it.SeekGE(key) {
				if gotKey := it.Key(); gotKey < key {
					select {
					case errCh <- fmt.Errorf("iterator returned key %d < seek %d", gotKey, key):
					default:
					}
					return
				}
				if it.Value() != int(it.Key()) {
					select {
					case errCh <- fmt.Errorf("value mismatch for key %d: %d", it.Key(), it.Value()):
					default:
					}
					return
				}
			}

			time.Sleep(time.Microsecond)
		}
	}()

	deleters.Wait()
	close(stop)
	helper.Wait()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	default:
	}

	assert.Zero(t, m.Len(), "expected map to be empty after cascading deletes")
	assert.False(t, m.Iterator().SeekGE(0), "expected no keys after full deletion")
}

func TestInsertDoesNotBlockOnSampleHeight(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping generator contention stress test in short mode")
	}

	runtime.SetBlockProfileRate(0)
	runtime.SetBlockProfileRate(1)
	defer runtime.SetBlockProfileRate(0)

	m := New[int]()

	goroutines := max(4*runtime.GOMAXPROCS(0), 8)
	const operationsPerGoroutine = 10000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		seed := uint64(0x9e3779b97f4a7c15) + uint64(g)
		go func(seed uint64) {
			defer wg.Done()
			x := seed | 1
			for i := 0; i < operationsPerGoroutine; i++ {
				x ^= x >> 12
				x ^= x << 25
				x ^= x >> 27
				key := int64(x & ((1 << 16) - 1))
				m.Insert(key, int(x))
			}
		}(seed)
	}

	wg.Wait()
	runtime.GC()
}
