package dispatcher

import (
	"sort"
	"sync"
	"time"

	"github.com/dshills/mvpkit/internal/action"
)

// StatusCounts tallies dispatch outcomes.
type StatusCounts struct {
	Executed      uint64
	Failed        uint64
	NotExecutable uint64
	Duplicate     uint64
	Cancelled     uint64
}

func (c *StatusCounts) add(s Status) {
	switch s {
	case StatusExecuted:
		c.Executed++
	case StatusFailed:
		c.Failed++
	case StatusNotExecutable:
		c.NotExecutable++
	case StatusDuplicate:
		c.Duplicate++
	case StatusCancelled:
		c.Cancelled++
	}
}

// Total returns the number of dispatches counted.
func (c StatusCounts) Total() uint64 {
	return c.Executed + c.Failed + c.NotExecutable + c.Duplicate + c.Cancelled
}

// Ran returns how many dispatches invoked a handler.
func (c StatusCounts) Ran() uint64 {
	return c.Executed + c.Failed
}

// ActionMetrics holds the statistics of one action.
type ActionMetrics struct {
	Action action.Identity
	Counts StatusCounts

	// Durations cover dispatches that ran the handler.
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration

	LastStatus   Status
	LastDispatch time.Time
}

// AverageDuration returns the mean handler duration.
func (am ActionMetrics) AverageDuration() time.Duration {
	n := am.Counts.Ran()
	if n == 0 {
		return 0
	}
	return am.TotalDuration / time.Duration(n)
}

// Metrics collects dispatch statistics. It is safe for concurrent use.
type Metrics struct {
	mu      sync.RWMutex
	actions map[action.Identity]*ActionMetrics
	totals  StatusCounts
	elapsed time.Duration
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{actions: make(map[action.Identity]*ActionMetrics)}
}

// Record adds one dispatch outcome.
func (m *Metrics) Record(id action.Identity, d time.Duration, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totals.add(status)
	am := m.actions[id]
	if am == nil {
		am = &ActionMetrics{Action: id}
		m.actions[id] = am
	}
	am.Counts.add(status)
	am.LastStatus = status
	am.LastDispatch = time.Now()

	if status != StatusExecuted && status != StatusFailed {
		return
	}
	m.elapsed += d
	am.TotalDuration += d
	if am.Counts.Ran() == 1 || d < am.MinDuration {
		am.MinDuration = d
	}
	if d > am.MaxDuration {
		am.MaxDuration = d
	}
}

// Totals returns the outcome counts across every action.
func (m *Metrics) Totals() StatusCounts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals
}

// Action returns a copy of the statistics for id.
func (m *Metrics) Action(id action.Identity) (ActionMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	am, ok := m.actions[id]
	if !ok {
		return ActionMetrics{}, false
	}
	return *am, true
}

// TopActions returns up to n actions ordered by dispatch count, ties broken
// by identity.
func (m *Metrics) TopActions(n int) []ActionMetrics {
	m.mu.RLock()
	out := make([]ActionMetrics, 0, len(m.actions))
	for _, am := range m.actions {
		out = append(out, *am)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Counts.Total(), out[j].Counts.Total()
		if a != b {
			return a > b
		}
		return out[i].Action.String() < out[j].Action.String()
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Reset clears every statistic.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = make(map[action.Identity]*ActionMetrics)
	m.totals = StatusCounts{}
	m.elapsed = 0
}

// MetricsSnapshot is a point-in-time summary.
type MetricsSnapshot struct {
	Totals          StatusCounts
	Actions         int
	HandlerTime     time.Duration
	AverageDuration time.Duration
	Taken           time.Time
}

// Snapshot returns a summary of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		Totals:      m.totals,
		Actions:     len(m.actions),
		HandlerTime: m.elapsed,
		Taken:       time.Now(),
	}
	if n := m.totals.Ran(); n > 0 {
		s.AverageDuration = m.elapsed / time.Duration(n)
	}
	return s
}
