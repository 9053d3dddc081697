package monitoring

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Monitor struct {
	mu             sync.RWMutex
	agent          string
	lastRunSuccess bool
	lastRunTime    time.Time
	lastSummary    string

	logger  *zap.Logger
	metrics *Metrics
}

func NewMonitor(agent string, logger *zap.Logger, metrics *Metrics) *Monitor {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Monitor{
		agent:   agent,
		logger:  logger,
		metrics: metrics,
	}
}

// Metrics returns the collectors this monitor updates
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// RecordSuccess marks the run healthy. outcomes counts processed items by outcome.
func (m *Monitor) RecordSuccess(summary string, outcomes map[string]int, duration time.Duration) {
	now := time.Now()
	m.mu.Lock()
	m.lastRunSuccess = true
	m.lastRunTime = now
	m.lastSummary = summary
	m.mu.Unlock()

	m.metrics.RunsTotal.WithLabelValues(m.agent, ResultSuccess).Inc()
	m.metrics.RunDurationSeconds.Observe(duration.Seconds())
	m.metrics.LastSuccessTime.Set(float64(now.Unix()))
	for outcome, n := range outcomes {
		m.metrics.ItemsTotal.WithLabelValues(m.agent, outcome).Add(float64(n))
	}

	m.logger.Info("Run completed successfully",
		zap.String("summary", summary),
		zap.Duration("duration", duration),
	)
}

func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	// Don't change health status for partial failures
	m.metrics.RunsTotal.WithLabelValues(m.agent, ResultPartial).Inc()
	m.logger.Warn("Partial failure", zap.Error(err), zap.Duration("duration", duration))
}

func (m *Monitor) RecordCriticalFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.lastRunSuccess = false
	m.lastRunTime = time.Now()
	m.lastSummary = err.Error()
	m.mu.Unlock()

	m.metrics.RunsTotal.WithLabelValues(m.agent, ResultCritical).Inc()
	m.metrics.RunDurationSeconds.Observe(duration.Seconds())
	m.logger.Error("Critical failure", zap.Error(err), zap.Duration("duration", duration))
}

func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRunTime.IsZero() {
		return true // No runs yet, assume healthy
	}
	return m.lastRunSuccess
}

func (m *Monitor) GetStatusSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRunTime.IsZero() {
		return "No runs yet"
	}
	if m.lastRunSuccess {
		return fmt.Sprintf("Last run: %s (%s)", m.lastRunTime.Format("Jan 2 15:04"), m.lastSummary)
	}
	return fmt.Sprintf("Last run failed: %s (%s)", m.lastRunTime.Format("Jan 2 15:04"), m.lastSummary)
}
