// Package tier implements the tiered execution manager of spec.md §4.10:
// per-function tier state, a background optimizer worker pool, and the
// atomic entry-pointer publication that lets host threads keep calling an
// old tier's code while a newer tier is compiled in the background.
//
// The manager is deliberately decoupled from internal/codegen and
// internal/linker: it drives promotion through the Compiler interface,
// which wraps "recompile this function's module at a higher tier and
// return its native entry pointer" however the caller wires it (codegen
// straight to JIT, or codegen + an object-file link step). This mirrors
// sentra/internal/build's separation between Builder (orchestration) and
// the concrete linker it calls into.
package tier

import (
	"sync"
	"sync/atomic"

	"github.com/darmie/rayzor/internal/config"
	"github.com/darmie/rayzor/internal/diag"
	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/profile"
)

// Tier re-exports profile.Tier so callers of this package never need to
// import internal/profile just to name a tier.
type Tier = profile.Tier

const (
	Tier0Baseline  = profile.Tier0Baseline
	Tier1Standard  = profile.Tier1Standard
	Tier2Optimized = profile.Tier2Optimized
	Tier3Maximum   = profile.Tier3Maximum
)

// Compiler recompiles fn's module at target and returns the new native
// entry point. Implementations own whatever backend+linker pipeline
// produces that pointer; the manager only needs the result. entry is an
// opaque address — the manager never dereferences it, only publishes it.
type Compiler interface {
	Compile(mod *mir.Module, fn *mir.Function, target Tier) (entry uintptr, err error)
}

// FunctionState is one function's tiering state (spec.md §4.10): its
// current tier, its currently-published native entry pointer, and the two
// flags that prevent a function from being queued or compiled twice.
type FunctionState struct {
	id FuncKey

	tier    atomic.Int32 // holds a Tier
	entry   atomic.Uintptr
	queued  atomic.Bool
	optimizing atomic.Bool
}

// FuncKey identifies a function across its owning module, since a
// mir.FuncID alone is only unique within one module.
type FuncKey struct {
	Module *mir.Module
	Func   mir.FuncID
}

// Tier reports the function's currently installed tier.
func (s *FunctionState) Tier() Tier { return Tier(s.tier.Load()) }

// Entry reports the function's currently published native entry pointer.
// Zero means no code has been compiled yet (interpreted-only).
func (s *FunctionState) Entry() uintptr { return s.entry.Load() }

// Manager owns every function's tier state, the profile counter table
// driving promotion decisions, and the background worker pool that
// performs the actual recompilation (spec.md §4.10/§5).
type Manager struct {
	compiler Compiler
	counters *profile.Table
	cfg      ManagerConfig

	mu    sync.Mutex
	funcs map[FuncKey]*FunctionState

	pool *workerPool
}

// ManagerConfig mirrors the subset of config.Tiered the manager consumes
// directly.
type ManagerConfig struct {
	Warm, Hot, Blazing uint64
	SampleRate         uint32
	MaxParallel        int
	StartInterpreted   bool
}

// NewManager creates a manager whose promotions are realized by compiler.
// If cfg.StartInterpreted is set, every function begins at Tier0Baseline
// with no entry pointer; otherwise it is the caller's responsibility to
// install an initial tier-0 pointer via Install before the first call.
func NewManager(compiler Compiler, cfg ManagerConfig) *Manager {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	m := &Manager{
		compiler: compiler,
		counters: profile.NewTable(cfg.SampleRate),
		cfg:      cfg,
		funcs:    make(map[FuncKey]*FunctionState),
	}
	m.pool = newWorkerPool(cfg.MaxParallel, m.promote)
	return m
}

// state returns key's FunctionState, creating it (at Tier0Baseline, no
// entry pointer) on first reference.
func (m *Manager) state(key FuncKey) *FunctionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.funcs[key]
	if ok {
		return s
	}
	s = &FunctionState{id: key}
	m.funcs[key] = s
	return s
}

// Install publishes entry as key's tier-0 native entry pointer without
// going through the promotion queue — used for an initial baseline
// compile (or interpreter trampoline) before any calls are profiled.
func (m *Manager) Install(mod *mir.Module, fn mir.FuncID, entry uintptr) {
	s := m.state(FuncKey{Module: mod, Func: fn})
	s.entry.Store(entry)
}

// EntryPoint returns fn's currently published native entry pointer. A
// host dispatch stub reads this on every call; the read is a plain atomic
// load paired with the release store promote performs on swap (spec.md
// §5 "a pointer swap is a release store paired with an acquire load").
func (m *Manager) EntryPoint(mod *mir.Module, fn mir.FuncID) uintptr {
	return m.state(FuncKey{Module: mod, Func: fn}).Entry()
}

// CurrentTier reports fn's installed tier.
func (m *Manager) CurrentTier(mod *mir.Module, fn mir.FuncID) Tier {
	return m.state(FuncKey{Module: mod, Func: fn}).Tier()
}

// RecordCall is invoked by the dispatch path on every call (subject to the
// counter table's sample rate) and enqueues fn for promotion once the
// configured threshold for its current tier is crossed (spec.md §4.9).
func (m *Manager) RecordCall(mod *mir.Module, fn *mir.Function) {
	key := FuncKey{Module: mod, Func: fn.ID}
	s := m.state(key)
	tier := s.Tier()
	count := m.counters.RecordCall(fn.ID, tier)

	next, ok := nextTier(tier, count, m.cfg)
	if !ok {
		return
	}
	if !s.queued.CompareAndSwap(false, true) {
		return // already queued for promotion
	}
	m.pool.enqueue(promotionRequest{mod: mod, fn: fn, state: s, target: next})
}

func nextTier(current Tier, count uint64, cfg ManagerConfig) (Tier, bool) {
	return profile.NextTier(current, count, config.Tiered{
		WarmThreshold:    cfg.Warm,
		HotThreshold:     cfg.Hot,
		BlazingThreshold: cfg.Blazing,
	})
}

// promote is the worker-pool body: recompile fn at target, then publish
// the new entry pointer. A failure is soft (diag.KindPromotionFailed) and
// leaves the previous tier's pointer installed, per spec.md §4.10.
func (m *Manager) promote(req promotionRequest) error {
	defer req.state.queued.Store(false)

	if !req.state.optimizing.CompareAndSwap(false, true) {
		return nil // another worker is already optimizing this function
	}
	defer req.state.optimizing.Store(false)

	entry, err := m.compiler.Compile(req.mod, req.fn, req.target)
	if err != nil {
		return diag.New(diag.KindPromotionFailed, err.Error())
	}

	count := m.counters.CallCount(req.fn.ID, req.state.Tier())
	req.state.entry.Store(entry) // release store; see EntryPoint's acquire load
	req.state.tier.Store(int32(req.target))
	m.counters.ResetTier(req.fn.ID, req.target)
	diag.Logf(1, "[tier] %s promoted to %s after %s calls, new entry %#x", req.fn.Name, req.target, diag.Comma(count), entry)
	return nil
}

// Shutdown stops the worker pool, waiting for in-flight compilations to
// finish or abort cleanly; queued-but-not-started work is discarded
// (spec.md §4.10 "Cancellation").
func (m *Manager) Shutdown() {
	m.pool.shutdown()
}
