package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Check probes one subsystem. A nil error means healthy.
type Check func(ctx context.Context) error

// Monitor holds named checks and the status of their last run.
type Monitor struct {
	mu       sync.RWMutex
	checks   map[string]Check
	statuses map[string]Status
}

// NewMonitor builds an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		checks:   make(map[string]Check),
		statuses: make(map[string]Status),
	}
}

// Register adds or replaces the check for name.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Update records a status directly, for subsystems that push their own
// health instead of being probed.
func (m *Monitor) Update(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[status.Component] = status
}

// RunChecks probes every registered check and returns the aggregate.
func (m *Monitor) RunChecks(ctx context.Context) Status {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	for name, check := range checks {
		var status Status
		if err := check(ctx); err != nil {
			status = Unhealthy(name, err.Error())
		} else {
			status = Healthy(name, "")
		}
		m.Update(status)
	}
	return m.Overall()
}

// Overall aggregates the last known status of every subsystem, ordered
// by component name.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subs = append(subs, status)
	}
	m.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].Component < subs[j].Component })
	return Aggregate("engine", subs)
}

// Handler serves the aggregate as JSON. Unhealthy aggregates return 503
// so load balancers can act on the status code alone.
func (m *Monitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overall := m.RunChecks(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if overall.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(overall)
	})
}
