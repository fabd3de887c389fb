package permkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestServiceMonitorTransactions tests transaction counters and durations.
func TestServiceMonitorTransactions(t *testing.T) {
	m := newServiceMonitor()

	m.recordTransaction(100*time.Millisecond, true)
	m.recordTransaction(300*time.Millisecond, true)
	m.recordTransaction(200*time.Millisecond, false)

	metrics := m.metrics()
	assert.Equal(t, int64(3), metrics.TotalTransactions)
	assert.Equal(t, int64(2), metrics.SuccessfulTransactions)
	assert.Equal(t, int64(1), metrics.FailedTransactions)
	assert.Equal(t, 200*time.Millisecond, metrics.AverageDuration)
	assert.Equal(t, 300*time.Millisecond, metrics.MaxDuration)
}

// TestServiceMonitorApplies tests staged-apply counters.
func TestServiceMonitorApplies(t *testing.T) {
	m := newServiceMonitor()

	m.recordApply(5, 0)
	m.recordApply(3, 2)

	metrics := m.metrics()
	assert.Equal(t, int64(2), metrics.ApplyBatches)
	assert.Equal(t, int64(6), metrics.AppliedEdits)
	assert.Equal(t, int64(2), metrics.FailedEdits)
	assert.Equal(t, int64(1), metrics.PartialFailures)
}

// TestServiceMonitorReset tests that reset clears all counters.
func TestServiceMonitorReset(t *testing.T) {
	m := newServiceMonitor()

	m.recordTransaction(time.Second, false)
	m.recordApply(2, 1)
	before := m.metrics().LastReset

	m.reset()

	metrics := m.metrics()
	assert.Zero(t, metrics.TotalTransactions)
	assert.Zero(t, metrics.FailedTransactions)
	assert.Zero(t, metrics.AverageDuration)
	assert.Zero(t, metrics.ApplyBatches)
	assert.Zero(t, metrics.FailedEdits)
	assert.False(t, metrics.LastReset.Before(before))
}

// TestIsHealthyByMetrics tests the health thresholds.
func TestIsHealthyByMetrics(t *testing.T) {
	t.Run("Healthy with few samples", func(t *testing.T) {
		service := NewService(newTestCatalog(), nil)
		service.monitor.recordTransaction(5*time.Second, false)
		assert.True(t, service.IsHealthyByMetrics())
	})

	t.Run("Unhealthy on failure rate", func(t *testing.T) {
		service := NewService(newTestCatalog(), nil)
		for i := 0; i < 9; i++ {
			service.monitor.recordTransaction(time.Millisecond, true)
		}
		service.monitor.recordTransaction(time.Millisecond, false)
		assert.False(t, service.IsHealthyByMetrics())
	})

	t.Run("Unhealthy on slow average", func(t *testing.T) {
		service := NewService(newTestCatalog(), nil)
		for i := 0; i < 10; i++ {
			service.monitor.recordTransaction(2*time.Second, true)
		}
		assert.False(t, service.IsHealthyByMetrics())
	})

	t.Run("Healthy within thresholds", func(t *testing.T) {
		service := NewService(newTestCatalog(), nil)
		for i := 0; i < 20; i++ {
			service.monitor.recordTransaction(10*time.Millisecond, true)
		}
		assert.True(t, service.IsHealthyByMetrics())
	})
}

// TestServiceResetMetrics tests the service-level reset passthrough.
func TestServiceResetMetrics(t *testing.T) {
	service := NewService(newTestCatalog(), nil)
	service.monitor.recordApply(3, 0)

	service.ResetMetrics()

	assert.Zero(t, service.Metrics().ApplyBatches)
}
