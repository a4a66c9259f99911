package metrics_test

import (
	"testing"

	"github.com/noded/noded/internal/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMonitorAddRemoveDoesNotPanic(t *testing.T) {
	m := metrics.NewMonitor(zap.NewNop(), metrics.MinCheckInterval, nil, nil)
	defer m.Close()

	m.Add("p1", "web", 999999, metrics.Thresholds{MemoryThreshold: 100})
	m.Update(999999, metrics.Thresholds{MemoryThreshold: 200})
	m.Remove(999999)
}

func TestMonitorClearRecycleIsIdempotent(t *testing.T) {
	m := metrics.NewMonitor(zap.NewNop(), metrics.MinCheckInterval, nil, nil)
	defer m.Close()

	assert.NotPanics(t, func() {
		m.ClearRecycle("nonexistent")
		m.ClearRecycle("nonexistent")
	})
}
