package middleware

import (
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// Per-route request counters and latency percentiles for the bot.
// ══════════════════════════════════════════════════════════════════════════════

// latencyWindow is how many recent durations each route keeps for percentiles.
const latencyWindow = 256

// Metrics tracks update handling per route ("/tasks", "callback:done_").
type Metrics struct {
	mu      sync.Mutex
	started time.Time
	routes  map[string]*routeMetrics
}

type routeMetrics struct {
	requests  int64
	errors    int64
	total     time.Duration
	latencies []time.Duration
	next      int
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{started: time.Now(), routes: make(map[string]*routeMetrics)}
}

// Observe records one handled update.
func (m *Metrics) Observe(route string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.routes[route]
	if !ok {
		rm = &routeMetrics{}
		m.routes[route] = rm
	}
	rm.requests++
	rm.total += d
	if err != nil {
		rm.errors++
	}
	if len(rm.latencies) < latencyWindow {
		rm.latencies = append(rm.latencies, d)
	} else {
		rm.latencies[rm.next] = d
		rm.next = (rm.next + 1) % latencyWindow
	}
}

// RouteSnapshot is a point-in-time copy of one route's counters.
type RouteSnapshot struct {
	Requests int64         `json:"requests"`
	Errors   int64         `json:"errors"`
	Average  time.Duration `json:"average"`
	P95      time.Duration `json:"p95"`
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Uptime   time.Duration            `json:"uptime"`
	Requests int64                    `json:"requests"`
	Errors   int64                    `json:"errors"`
	Routes   map[string]RouteSnapshot `json:"routes"`
}

// Snapshot returns current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{Uptime: time.Since(m.started), Routes: make(map[string]RouteSnapshot, len(m.routes))}
	for name, rm := range m.routes {
		rs := RouteSnapshot{Requests: rm.requests, Errors: rm.errors}
		if rm.requests > 0 {
			rs.Average = rm.total / time.Duration(rm.requests)
		}
		rs.P95 = percentile(rm.latencies, 0.95)
		snap.Routes[name] = rs
		snap.Requests += rm.requests
		snap.Errors += rm.errors
	}
	return snap
}

func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
