package permkit

import (
	"sync"
	"time"
)

// Metrics reports database transaction and staged-apply statistics for the
// service since the last reset.
type Metrics struct {
	TotalTransactions      int64         `json:"total_transactions"`
	SuccessfulTransactions int64         `json:"successful_transactions"`
	FailedTransactions     int64         `json:"failed_transactions"`
	AverageDuration        time.Duration `json:"average_duration"`
	MaxDuration            time.Duration `json:"max_duration"`

	ApplyBatches    int64 `json:"apply_batches"`
	AppliedEdits    int64 `json:"applied_edits"`
	FailedEdits     int64 `json:"failed_edits"`
	PartialFailures int64 `json:"partial_failures"`

	LastReset time.Time `json:"last_reset"`
}

// serviceMonitor holds the internal metric counters.
type serviceMonitor struct {
	mu sync.Mutex

	txTotal    int64
	txSuccess  int64
	txFailed   int64
	txDuration time.Duration
	txMax      time.Duration

	applyBatches    int64
	appliedEdits    int64
	failedEdits     int64
	partialFailures int64

	lastReset time.Time
}

func newServiceMonitor() *serviceMonitor {
	return &serviceMonitor{lastReset: time.Now()}
}

func (m *serviceMonitor) recordTransaction(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txTotal++
	m.txDuration += duration
	if duration > m.txMax {
		m.txMax = duration
	}
	if success {
		m.txSuccess++
	} else {
		m.txFailed++
	}
}

func (m *serviceMonitor) recordApply(edits, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyBatches++
	m.appliedEdits += int64(edits - failed)
	m.failedEdits += int64(failed)
	if failed > 0 {
		m.partialFailures++
	}
}

func (m *serviceMonitor) metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Metrics{
		TotalTransactions:      m.txTotal,
		SuccessfulTransactions: m.txSuccess,
		FailedTransactions:     m.txFailed,
		MaxDuration:            m.txMax,
		ApplyBatches:           m.applyBatches,
		AppliedEdits:           m.appliedEdits,
		FailedEdits:            m.failedEdits,
		PartialFailures:        m.partialFailures,
		LastReset:              m.lastReset,
	}
	if m.txTotal > 0 {
		out.AverageDuration = m.txDuration / time.Duration(m.txTotal)
	}
	return out
}

func (m *serviceMonitor) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txTotal = 0
	m.txSuccess = 0
	m.txFailed = 0
	m.txDuration = 0
	m.txMax = 0
	m.applyBatches = 0
	m.appliedEdits = 0
	m.failedEdits = 0
	m.partialFailures = 0
	m.lastReset = time.Now()
}

// Metrics returns the current transaction and apply statistics.
func (s *Service) Metrics() Metrics {
	return s.monitor.metrics()
}

// ResetMetrics resets all counters.
func (s *Service) ResetMetrics() {
	s.monitor.reset()
}

// IsHealthyByMetrics checks whether transaction and apply behavior is
// within acceptable thresholds: under 5% transaction failures and under
// 1s average duration, once enough samples exist.
func (s *Service) IsHealthyByMetrics() bool {
	metrics := s.Metrics()

	if metrics.TotalTransactions < 10 {
		return true
	}
	failureRate := float64(metrics.FailedTransactions) / float64(metrics.TotalTransactions)
	if failureRate > 0.05 {
		return false
	}
	if metrics.AverageDuration > time.Second {
		return false
	}
	return true
}
