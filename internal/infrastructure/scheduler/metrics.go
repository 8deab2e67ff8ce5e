package scheduler

import (
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks scheduler counters per job.
type Metrics struct {
	mu sync.RWMutex

	totalExecutions int64
	totalSuccesses  int64
	totalFailures   int64
	totalSkips      int64
	totalDuration   time.Duration

	byJob map[string]*JobMetrics
}

// JobMetrics - счётчики одного задания.
type JobMetrics struct {
	Executions    int64         `json:"executions"`
	Failures      int64         `json:"failures"`
	Skips         int64         `json:"skips"`
	TotalDuration time.Duration `json:"total_duration"`
}

// NewMetrics creates an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{byJob: make(map[string]*JobMetrics)}
}

func (m *Metrics) job(name string) *JobMetrics {
	jm, ok := m.byJob[name]
	if !ok {
		jm = &JobMetrics{}
		m.byJob[name] = jm
	}
	return jm
}

// RecordExecution records a finished run.
func (m *Metrics) RecordExecution(jobName string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jm := m.job(jobName)
	jm.Executions++
	jm.TotalDuration += duration
	m.totalExecutions++
	m.totalDuration += duration

	if success {
		m.totalSuccesses++
	} else {
		m.totalFailures++
		jm.Failures++
	}
}

// RecordSkip records an activation skipped because the previous run was in flight.
func (m *Metrics) RecordSkip(jobName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalSkips++
	m.job(jobName).Skips++
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	TotalExecutions int64                 `json:"total_executions"`
	TotalSuccesses  int64                 `json:"total_successes"`
	TotalFailures   int64                 `json:"total_failures"`
	TotalSkips      int64                 `json:"total_skips"`
	SuccessRate     float64               `json:"success_rate"`
	AverageDuration time.Duration         `json:"average_duration"`
	Jobs            map[string]JobMetrics `json:"jobs"`
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.totalExecutions,
		TotalSuccesses:  m.totalSuccesses,
		TotalFailures:   m.totalFailures,
		TotalSkips:      m.totalSkips,
		Jobs:            make(map[string]JobMetrics, len(m.byJob)),
	}
	if m.totalExecutions > 0 {
		snap.AverageDuration = m.totalDuration / time.Duration(m.totalExecutions)
		snap.SuccessRate = float64(m.totalSuccesses) / float64(m.totalExecutions)
	}
	for name, jm := range m.byJob {
		snap.Jobs[name] = *jm
	}
	return snap
}
