// Package monitoring provides passive telemetry: process resource sampling,
// request latency aggregation, Prometheus metrics, and the zap-backed logger.
package monitoring

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// ResourceSample is one periodic reading of a process resource.
type ResourceSample struct {
	// Timestamp is when the sample was taken
	Timestamp time.Time `json:"timestamp"`

	// Value is the reading: RSS bytes for memory, percent for CPU
	Value float64 `json:"value"`
}

// MetricsSnapshot is the read-only view returned by GetMetrics.
type MetricsSnapshot struct {
	// Uptime is the elapsed time since the monitor was started
	Uptime time.Duration `json:"uptime"`

	// Requests is the total number of completed requests observed
	Requests int64 `json:"requests"`

	// Errors is the total number of errors observed
	Errors int64 `json:"errors"`

	// ErrorRate is Errors/Requests, zero when no requests were seen
	ErrorRate float64 `json:"error_rate"`

	// AvgLatencyMs is the mean of the retained latency values
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// LastMemory is the most recent memory sample, nil before the first
	LastMemory *ResourceSample `json:"last_memory,omitempty"`

	// LastCPU is the most recent CPU sample, nil before the first
	LastCPU *ResourceSample `json:"last_cpu,omitempty"`
}

// PerformanceMonitorConfig configures sampling cadence and buffer sizes.
// Zero values fall back to the defaults in constants.
type PerformanceMonitorConfig struct {
	// MemorySampleInterval is the cadence of the memory sampler
	MemorySampleInterval time.Duration

	// CPUSampleInterval is the cadence of the CPU sampler
	CPUSampleInterval time.Duration

	// CPUProbeWindow is the differential window one CPU probe measures over
	CPUProbeWindow time.Duration

	// SampleCapacity bounds each resource ring buffer
	SampleCapacity int

	// LatencyCapacity bounds the retained latency sequence
	LatencyCapacity int

	// Clock overrides the reference clock. Nil means time.Now.
	Clock func() time.Time
}

// DefaultPerformanceMonitorConfig returns the built-in sampling settings.
func DefaultPerformanceMonitorConfig() *PerformanceMonitorConfig {
	return &PerformanceMonitorConfig{
		MemorySampleInterval: constants.MemorySampleInterval,
		CPUSampleInterval:    constants.CPUSampleInterval,
		CPUProbeWindow:       constants.CPUProbeWindow,
		SampleCapacity:       constants.SampleBufferCapacity,
		LatencyCapacity:      constants.LatencyBufferCapacity,
	}
}

// PerformanceMonitor aggregates request latencies and error counts, and
// samples process memory and CPU on fixed intervals detached from request
// volume. It observes the pipeline but never decides admission.
type PerformanceMonitor struct {
	mu            sync.Mutex
	startedAt     time.Time
	requests      int64
	errors        int64
	latencies     []time.Duration
	memorySamples []ResourceSample
	cpuSamples    []ResourceSample

	cfg    PerformanceMonitorConfig
	proc   *process.Process
	clock  func() time.Time
	logger logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     sync.WaitGroup
}

// NewPerformanceMonitor creates a performance monitor. Samplers do not run
// until Start is called.
func NewPerformanceMonitor(cfg *PerformanceMonitorConfig, log logger.Logger) *PerformanceMonitor {
	if cfg == nil {
		cfg = DefaultPerformanceMonitorConfig()
	}
	if cfg.MemorySampleInterval <= 0 {
		cfg.MemorySampleInterval = constants.MemorySampleInterval
	}
	if cfg.CPUSampleInterval <= 0 {
		cfg.CPUSampleInterval = constants.CPUSampleInterval
	}
	if cfg.CPUProbeWindow <= 0 {
		cfg.CPUProbeWindow = constants.CPUProbeWindow
	}
	if cfg.SampleCapacity <= 0 {
		cfg.SampleCapacity = constants.SampleBufferCapacity
	}
	if cfg.LatencyCapacity <= 0 {
		cfg.LatencyCapacity = constants.LatencyBufferCapacity
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		// Resource sampling degrades to no-op; request accounting still works.
		log.Warn(context.Background(), "process handle unavailable, resource sampling disabled",
			logger.Any("error", err))
		proc = nil
	}

	return &PerformanceMonitor{
		startedAt: clock(),
		cfg:       *cfg,
		proc:      proc,
		clock:     clock,
		logger:    log.WithComponent("performance_monitor"),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the two periodic samplers. Each runs on its own timer so a
// slow probe delays only its own next sample, never request handling.
func (pm *PerformanceMonitor) Start(ctx context.Context) {
	pm.done.Add(2)
	go pm.runSampler(ctx, pm.cfg.MemorySampleInterval, pm.sampleMemory)
	go pm.runSampler(ctx, pm.cfg.CPUSampleInterval, pm.sampleCPU)
}

// Stop terminates the samplers and waits for them to exit.
func (pm *PerformanceMonitor) Stop() {
	pm.stopOnce.Do(func() { close(pm.stopCh) })
	pm.done.Wait()
}

func (pm *PerformanceMonitor) runSampler(ctx context.Context, interval time.Duration, sample func(context.Context)) {
	defer pm.done.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sample(ctx)
		case <-pm.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (pm *PerformanceMonitor) sampleMemory(ctx context.Context) {
	if pm.proc == nil {
		return
	}

	info, err := pm.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		pm.logger.Warn(ctx, "memory sample failed", logger.Any("error", err))
		return
	}

	pm.mu.Lock()
	pm.memorySamples = appendBounded(pm.memorySamples, ResourceSample{
		Timestamp: pm.clock(),
		Value:     float64(info.RSS),
	}, pm.cfg.SampleCapacity)
	pm.mu.Unlock()
}

func (pm *PerformanceMonitor) sampleCPU(ctx context.Context) {
	if pm.proc == nil {
		return
	}

	// Percent blocks for the probe window to measure a differential. The
	// mutex is taken only after the probe completes.
	pct, err := pm.proc.PercentWithContext(ctx, pm.cfg.CPUProbeWindow)
	if err != nil {
		pm.logger.Warn(ctx, "cpu sample failed", logger.Any("error", err))
		return
	}

	pm.mu.Lock()
	pm.cpuSamples = appendBounded(pm.cpuSamples, ResourceSample{
		Timestamp: pm.clock(),
		Value:     pct,
	}, pm.cfg.SampleCapacity)
	pm.mu.Unlock()
}

// RecordRequest records one completed request and its duration.
func (pm *PerformanceMonitor) RecordRequest(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.requests++
	pm.latencies = appendBounded(pm.latencies, duration, pm.cfg.LatencyCapacity)
}

// RecordError counts an error and forwards its details to the logging sink.
func (pm *PerformanceMonitor) RecordError(ctx context.Context, err error) {
	pm.mu.Lock()
	pm.errors++
	pm.mu.Unlock()

	pm.logger.Error(ctx, "request error observed", err)
}

// GetMetrics returns a snapshot of the aggregated state. The average latency
// is computed here rather than maintained incrementally, so repeated calls
// without intervening records return identical values.
func (pm *PerformanceMonitor) GetMetrics() MetricsSnapshot {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	snapshot := MetricsSnapshot{
		Uptime:   pm.clock().Sub(pm.startedAt),
		Requests: pm.requests,
		Errors:   pm.errors,
	}

	if pm.requests > 0 {
		snapshot.ErrorRate = float64(pm.errors) / float64(pm.requests)
	}

	if len(pm.latencies) > 0 {
		var total time.Duration
		for _, d := range pm.latencies {
			total += d
		}
		snapshot.AvgLatencyMs = float64(total.Microseconds()) / float64(len(pm.latencies)) / 1000
	}

	if n := len(pm.memorySamples); n > 0 {
		last := pm.memorySamples[n-1]
		snapshot.LastMemory = &last
	}
	if n := len(pm.cpuSamples); n > 0 {
		last := pm.cpuSamples[n-1]
		snapshot.LastCPU = &last
	}

	return snapshot
}

// appendBounded appends v, evicting the oldest element when the buffer is at
// capacity.
func appendBounded[T any](buf []T, v T, capacity int) []T {
	if len(buf) >= capacity {
		copy(buf, buf[1:])
		buf[len(buf)-1] = v
		return buf
	}
	return append(buf, v)
}
