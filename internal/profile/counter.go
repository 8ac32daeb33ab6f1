// Package profile implements the per-function, per-tier call counters
// that drive tier promotion (spec.md §4.9). Incrementing a counter is a
// hot-path operation invoked from every host thread making a call: each
// Counter is a lock-free atomic integer, and Table's map is read-locked on
// every lookup and write-locked only on the cold path of registering a
// function's counters for the first time.
package profile

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/darmie/rayzor/internal/mir"
)

// Tier is an execution tier, matching the four-stage ladder of spec.md
// §4.9: tier-0 baseline (interpreted or unoptimized), tier-1 standard,
// tier-2 optimized, tier-3 maximum.
type Tier int

const (
	Tier0Baseline Tier = iota
	Tier1Standard
	Tier2Optimized
	Tier3Maximum
)

func (t Tier) String() string {
	switch t {
	case Tier0Baseline:
		return "tier-0"
	case Tier1Standard:
		return "tier-1"
	case Tier2Optimized:
		return "tier-2"
	case Tier3Maximum:
		return "tier-3"
	default:
		return "tier-?"
	}
}

// Counter is one function's call counter for its currently active tier.
// Incrementing saturates at math.MaxUint64 rather than wrapping, so an
// overflow never corrupts a later tier-promotion decision (spec.md §4.9
// "failure is soft: a counter overflow saturates at the maximum").
type Counter struct {
	n uint64
}

// Add increments the counter by delta, clamping at math.MaxUint64.
func (c *Counter) Add(delta uint64) uint64 {
	for {
		old := atomic.LoadUint64(&c.n)
		if old == math.MaxUint64 {
			return old
		}
		next := old + delta
		if next < old { // overflowed past MaxUint64
			next = math.MaxUint64
		}
		if atomic.CompareAndSwapUint64(&c.n, old, next) {
			return next
		}
	}
}

// Load returns the counter's current value.
func (c *Counter) Load() uint64 { return atomic.LoadUint64(&c.n) }

// Store resets the counter, used when a function is promoted and its
// count should restart against the next tier's threshold.
func (c *Counter) Store(v uint64) { atomic.StoreUint64(&c.n, v) }

// Table owns one Counter per (function, tier) pair plus a sample rate:
// only one call in every SampleRate is actually counted, trading
// precision for reduced hot-path overhead (spec.md §4.9 "a sample rate
// may reduce profiling overhead by counting one in every N calls").
type Table struct {
	mu         sync.RWMutex
	counters   map[mir.FuncID]*[4]Counter
	sampleRate uint32
	calls      uint32 // raw call tally, gates sampling
}

// NewTable creates an empty counter table. sampleRate of 0 or 1 counts
// every call.
func NewTable(sampleRate uint32) *Table {
	if sampleRate == 0 {
		sampleRate = 1
	}
	return &Table{counters: make(map[mir.FuncID]*[4]Counter), sampleRate: sampleRate}
}

// entry returns id's counter slot, creating it on first use. The map
// itself is guarded by mu since Go maps are not safe for concurrent
// writes; the four Counters it points to stay lock-free for the actual
// hot-path increments.
func (t *Table) entry(id mir.FuncID) *[4]Counter {
	t.mu.RLock()
	c, ok := t.counters[id]
	t.mu.RUnlock()
	if ok {
		return c
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.counters[id]; ok {
		return c
	}
	c = &[4]Counter{}
	t.counters[id] = c
	return c
}

// RecordCall increments id's counter for tier by one call, honoring the
// table's sample rate. Safe for concurrent use by multiple host threads.
func (t *Table) RecordCall(id mir.FuncID, tier Tier) uint64 {
	if t.sampleRate > 1 {
		n := atomic.AddUint32(&t.calls, 1)
		if n%t.sampleRate != 0 {
			return t.entry(id)[tier].Load()
		}
	}
	return t.entry(id)[tier].Add(1)
}

// CallCount returns id's current count at tier without incrementing it.
func (t *Table) CallCount(id mir.FuncID, tier Tier) uint64 {
	return t.entry(id)[tier].Load()
}

// ResetTier zeroes id's counter for tier, used after a promotion decision
// has been acted on so the next tier's threshold starts counting fresh.
func (t *Table) ResetTier(id mir.FuncID, tier Tier) {
	t.entry(id)[tier].Store(0)
}
