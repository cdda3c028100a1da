package skiplist

import (
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// metricShard is padded to a cache line to keep independent shards from
// false-sharing under concurrent Insert/Remove traffic (teacher metrics.go).
type metricShard struct {
	insertCASRetries atomic.Int64
	insertSuccesses  atomic.Int64
	helpFlaggedCount atomic.Int64
	length           atomic.Int64
	_                [32]byte
}

// Metrics tracks contention and size counters for a Map, sharded across
// GOMAXPROCS to keep the counters themselves from becoming a bottleneck on
// the hot insert/remove path.
type Metrics struct {
	shards []metricShard
	mask   uint32
	rng    *RNG
}

func newMetrics(rng *RNG) *Metrics {
	shardCount := runtime.GOMAXPROCS(0)
	if shardCount < 1 {
		shardCount = 1
	}
	shardCount = nextPowerOfTwo(shardCount)
	return &Metrics{
		shards: make([]metricShard, shardCount),
		mask:   uint32(shardCount - 1),
		rng:    rng,
	}
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

func (m *Metrics) shard() *metricShard {
	if len(m.shards) == 1 || m.rng == nil {
		return &m.shards[0]
	}
	idx := uint32(m.rng.nextRandom64()) & m.mask
	return &m.shards[idx]
}

func (m *Metrics) incInsertCASRetry()   { m.shard().insertCASRetries.Add(1) }
func (m *Metrics) incInsertSuccess()    { m.shard().insertSuccesses.Add(1) }
func (m *Metrics) incHelpFlagged()      { m.shard().helpFlaggedCount.Add(1) }
func (m *Metrics) addLen(delta int64)   { m.shard().length.Add(delta) }

// Len returns the live key count.
func (m *Metrics) Len() int64 {
	var total int64
	for i := range m.shards {
		total += m.shards[i].length.Load()
	}
	return total
}

// Stats reports cumulative CAS-retry, insert-success, and help-flagged
// counters, for the same kind of contention analysis the teacher's
// benchmarks perform (compare_bench_test.go, bench_test.go).
func (m *Metrics) Stats() (retries, successes, helps int64) {
	for i := range m.shards {
		retries += m.shards[i].insertCASRetries.Load()
		successes += m.shards[i].insertSuccesses.Load()
		helps += m.shards[i].helpFlaggedCount.Load()
	}
	return retries, successes, helps
}

// Report logs the current counters at info level, in the leveled,
// key/value structured style used throughout maxpoletaev-kivi
// (clustering/cluster.go, storage/lsmtree/lsmtree.go).
func (m *Metrics) Report(logger log.Logger) {
	retries, successes, helps := m.Stats()
	level.Info(logger).Log(
		"msg", "skiplist metrics",
		"len", m.Len(),
		"insert_cas_retries", retries,
		"insert_successes", successes,
		"help_flagged", helps,
	)
}
