package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scribeflow/gatekeeper/pkg/logger"
)

func newTestMonitor(cfg *PerformanceMonitorConfig) *PerformanceMonitor {
	return NewPerformanceMonitor(cfg, logger.NewNoopLogger())
}

func TestPerformanceMonitor_AverageLatency(t *testing.T) {
	monitor := newTestMonitor(nil)

	monitor.RecordRequest(10 * time.Millisecond)
	monitor.RecordRequest(20 * time.Millisecond)
	monitor.RecordRequest(30 * time.Millisecond)

	snapshot := monitor.GetMetrics()
	assert.Equal(t, int64(3), snapshot.Requests)
	assert.InDelta(t, 20.0, snapshot.AvgLatencyMs, 0.001)
}

func TestPerformanceMonitor_LatencyBufferEvictsOldestFirst(t *testing.T) {
	monitor := newTestMonitor(&PerformanceMonitorConfig{LatencyCapacity: 3})

	// Four records into a buffer of three: the first is evicted, so the
	// average covers 20, 30, 40.
	monitor.RecordRequest(10 * time.Millisecond)
	monitor.RecordRequest(20 * time.Millisecond)
	monitor.RecordRequest(30 * time.Millisecond)
	monitor.RecordRequest(40 * time.Millisecond)

	snapshot := monitor.GetMetrics()
	assert.Equal(t, int64(4), snapshot.Requests)
	assert.InDelta(t, 30.0, snapshot.AvgLatencyMs, 0.001)
}

func TestPerformanceMonitor_ErrorRate(t *testing.T) {
	ctx := context.Background()
	monitor := newTestMonitor(nil)

	monitor.RecordRequest(time.Millisecond)
	monitor.RecordRequest(time.Millisecond)
	monitor.RecordRequest(time.Millisecond)
	monitor.RecordRequest(time.Millisecond)
	monitor.RecordError(ctx, assert.AnError)

	snapshot := monitor.GetMetrics()
	assert.Equal(t, int64(1), snapshot.Errors)
	assert.InDelta(t, 0.25, snapshot.ErrorRate, 0.001)
}

func TestPerformanceMonitor_GetMetricsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	monitor := newTestMonitor(&PerformanceMonitorConfig{Clock: func() time.Time { return clock }})

	monitor.RecordRequest(15 * time.Millisecond)
	monitor.RecordError(ctx, assert.AnError)

	first := monitor.GetMetrics()
	second := monitor.GetMetrics()
	assert.Equal(t, first, second)
}

func TestPerformanceMonitor_Uptime(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	monitor := newTestMonitor(&PerformanceMonitorConfig{Clock: func() time.Time { return now }})

	now = now.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, monitor.GetMetrics().Uptime)
}

func TestPerformanceMonitor_EmptySnapshot(t *testing.T) {
	monitor := newTestMonitor(nil)

	snapshot := monitor.GetMetrics()
	assert.Zero(t, snapshot.Requests)
	assert.Zero(t, snapshot.ErrorRate)
	assert.Zero(t, snapshot.AvgLatencyMs)
	assert.Nil(t, snapshot.LastMemory)
	assert.Nil(t, snapshot.LastCPU)
}

func TestPerformanceMonitor_StartStop(t *testing.T) {
	monitor := newTestMonitor(&PerformanceMonitorConfig{
		MemorySampleInterval: 5 * time.Millisecond,
		CPUSampleInterval:    5 * time.Millisecond,
		CPUProbeWindow:       time.Millisecond,
	})

	monitor.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	monitor.Stop()

	// At least one memory sample should have landed; the snapshot carries
	// the most recent reading.
	snapshot := monitor.GetMetrics()
	if assert.NotNil(t, snapshot.LastMemory) {
		assert.Greater(t, snapshot.LastMemory.Value, 0.0)
	}
}

func TestAppendBounded(t *testing.T) {
	var buf []int
	for i := 1; i <= 5; i++ {
		buf = appendBounded(buf, i, 3)
	}
	assert.Equal(t, []int{3, 4, 5}, buf)
}
