package observability

import (
	"runtime"
	"sort"
	"sync"
)

// MemorySnapshot reports heap growth observed since the monitor was started.
type MemorySnapshot struct {
	HeapAllocBytes  uint64
	AllocDeltaBytes uint64
	GCCycles        uint32
}

// MemoryMonitor is an advisory heap tracker used by the benchmarking and
// self-test paths. It is not consulted by the search hot path.
type MemoryMonitor struct {
	mu       sync.Mutex
	started  bool
	baseline runtime.MemStats
}

// NewMemoryMonitor constructs an unstarted memory monitor.
func NewMemoryMonitor() *MemoryMonitor {
	return &MemoryMonitor{}
}

// Start records the current heap statistics as the comparison baseline.
func (m *MemoryMonitor) Start() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	runtime.ReadMemStats(&m.baseline)
	m.started = true
}

// Snapshot returns heap growth since Start. Calling Snapshot before Start
// yields absolute values with zero deltas.
func (m *MemoryMonitor) Snapshot() MemorySnapshot {
	if m == nil {
		return MemorySnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var current runtime.MemStats
	runtime.ReadMemStats(&current)

	snap := MemorySnapshot{HeapAllocBytes: current.HeapAlloc}
	if m.started {
		if current.TotalAlloc > m.baseline.TotalAlloc {
			snap.AllocDeltaBytes = current.TotalAlloc - m.baseline.TotalAlloc
		}
		snap.GCCycles = current.NumGC - m.baseline.NumGC
	}
	return snap
}

// QueryReport summarises recorded query counts against the configured budget.
type QueryReport struct {
	Total       int
	Budget      int
	OverBudget  bool
	ByComponent map[string]int
}

// Components returns component names sorted by descending query count.
func (r QueryReport) Components() []string {
	names := make([]string, 0, len(r.ByComponent))
	for name := range r.ByComponent {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.ByComponent[names[i]] != r.ByComponent[names[j]] {
			return r.ByComponent[names[i]] > r.ByComponent[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// QueryMonitor counts data-store queries per component against an advisory
// budget. Exceeding the budget never fails an operation; the benchmarking
// harness reads the report after the fact.
type QueryMonitor struct {
	mu     sync.Mutex
	budget int
	counts map[string]int
	total  int
}

// NewQueryMonitor constructs a monitor with the supplied budget. A budget of
// zero or less disables the over-budget flag.
func NewQueryMonitor(budget int) *QueryMonitor {
	return &QueryMonitor{
		budget: budget,
		counts: make(map[string]int),
	}
}

// Record counts one query issued by the named component.
func (m *QueryMonitor) Record(component string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[component]++
	m.total++
}

// Total returns the number of queries recorded so far.
func (m *QueryMonitor) Total() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Report returns a copy of the current counters.
func (m *QueryMonitor) Report() QueryReport {
	if m == nil {
		return QueryReport{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	byComponent := make(map[string]int, len(m.counts))
	for component, count := range m.counts {
		byComponent[component] = count
	}
	return QueryReport{
		Total:       m.total,
		Budget:      m.budget,
		OverBudget:  m.budget > 0 && m.total > m.budget,
		ByComponent: byComponent,
	}
}

// Reset clears counters for reuse between benchmark passes.
func (m *QueryMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int)
	m.total = 0
}
