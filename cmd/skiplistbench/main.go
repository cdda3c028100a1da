// Command skiplistbench drives a concurrent Insert/Find/Remove workload
// against a skiplist.Map and reports throughput and contention counters,
// the same shape of experiment bench_test.go/compare_bench_test.go run
// under `go test -bench`, wired up here as a standalone CLI.
package main

import (
	"flag"
	"math/rand"
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	skiplist "github.com/fabiangeorgi/lock-free-skip-list"
)

func main() {
	var (
		goroutines   = flag.Int("goroutines", 8, "number of concurrent worker goroutines")
		duration     = flag.Duration("duration", 3*time.Second, "how long to run the workload")
		keyRange     = flag.Int64("key-range", 1<<16, "keys are drawn uniformly from [0, key-range)")
		writePercent = flag.Int("write-percent", 50, "percent of operations that are Insert or Remove rather than Find")
		maxLevel     = flag.Int("max-level", 22, "MAX_LEVEL for the skip list")
		coinBias     = flag.Float64("coin-bias", 0.5, "tower height coin bias, in (0, 1)")
		verbose      = flag.Bool("verbose", false, "log at debug level")
	)
	flag.Parse()

	logger := setupLogger(*verbose)

	m := skiplist.New[int](
		skiplist.WithMaxLevel(*maxLevel),
		skiplist.WithCoinBias(*coinBias),
	)

	level.Info(logger).Log(
		"msg", "starting workload",
		"goroutines", *goroutines,
		"duration", *duration,
		"key_range", *keyRange,
		"write_percent", *writePercent,
	)

	var ops int64
	var opsMu sync.Mutex

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(*goroutines)
	for g := 0; g < *goroutines; g++ {
		seed := time.Now().UnixNano() + int64(g)
		go runWorker(m, seed, *keyRange, *writePercent, stop, &wg, &opsMu, &ops)
	}

	time.Sleep(*duration)
	close(stop)
	wg.Wait()

	retries, successes, helps := m.Stats()
	level.Info(logger).Log(
		"msg", "workload complete",
		"total_ops", ops,
		"ops_per_sec", float64(ops)/duration.Seconds(),
		"final_len", m.Len(),
		"insert_cas_retries", retries,
		"insert_successes", successes,
		"help_flagged", helps,
	)
}

func runWorker(m *skiplist.Map[int], seed int64, keyRange int64, writePercent int, stop <-chan struct{}, wg *sync.WaitGroup, opsMu *sync.Mutex, ops *int64) {
	defer wg.Done()
	r := rand.New(rand.NewSource(seed))
	var local int64
	for {
		select {
		case <-stop:
			opsMu.Lock()
			*ops += local
			opsMu.Unlock()
			return
		default:
		}

		key := r.Int63n(keyRange)
		if r.Intn(100) < writePercent {
			if r.Intn(2) == 0 {
				m.Insert(key, r.Intn(1<<16))
			} else {
				m.Remove(key)
			}
		} else {
			m.Find(key)
		}
		local++
	}
}

func setupLogger(verbose bool) kitlog.Logger {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	if !verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return logger
}
