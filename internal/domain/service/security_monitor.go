package service

import (
	"context"
	"sync"
	"time"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// SecurityMonitor tracks suspicious events per source and auto-blocks sources
// that cross a threshold within a trailing window. State is process-local and
// lost on restart; a restarted process starts with a clean reputation.
type SecurityMonitor struct {
	mu         sync.Mutex
	activities []models.SuspiciousActivity
	blocked    map[string]struct{}

	capacity  int
	threshold int
	window    time.Duration
	clock     func() time.Time
	logger    logger.Logger
}

// SecurityMonitorConfig holds security monitor configuration.
type SecurityMonitorConfig struct {
	// Capacity bounds the global activity sequence; oldest records are
	// evicted first
	Capacity int

	// Threshold is the per-source event count that trips a block
	Threshold int

	// Window is the trailing interval evaluated at record time
	Window time.Duration

	// Clock overrides the reference clock. Nil means time.Now.
	Clock func() time.Time
}

// DefaultSecurityMonitorConfig returns the built-in thresholds.
func DefaultSecurityMonitorConfig() *SecurityMonitorConfig {
	return &SecurityMonitorConfig{
		Capacity:  constants.ActivityLogCapacity,
		Threshold: constants.BlockThreshold,
		Window:    constants.BlockWindow,
	}
}

// NewSecurityMonitor creates a security monitor. It is constructed once at
// process startup and passed through the pipeline, never imported as ambient
// state.
func NewSecurityMonitor(cfg *SecurityMonitorConfig, log logger.Logger) *SecurityMonitor {
	if cfg == nil {
		cfg = DefaultSecurityMonitorConfig()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.ActivityLogCapacity
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = constants.BlockThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = constants.BlockWindow
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &SecurityMonitor{
		activities: make([]models.SuspiciousActivity, 0, cfg.Capacity),
		blocked:    make(map[string]struct{}),
		capacity:   cfg.Capacity,
		threshold:  cfg.Threshold,
		window:     cfg.Window,
		clock:      clock,
		logger:     log.WithComponent("security_monitor"),
	}
}

// RecordActivity appends a suspicious event to the bounded global sequence
// and evaluates the block rule for the source: if the source has accumulated
// at least threshold records within the trailing window at this instant, it
// is added to the blocked set. Blocks never expire on their own.
func (m *SecurityMonitor) RecordActivity(ctx context.Context, source string, kind constants.ActivityKind, details string) {
	now := m.clock()
	record := models.NewSuspiciousActivity(source, kind, details, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.activities = append(m.activities, record)
	if len(m.activities) > m.capacity {
		m.activities = m.activities[len(m.activities)-m.capacity:]
	}

	cutoff := now.Add(-m.window)
	recent := 0
	for _, a := range m.activities {
		if a.Source == source && !a.Timestamp.Before(cutoff) {
			recent++
		}
	}

	if recent >= m.threshold {
		if _, already := m.blocked[source]; !already {
			m.blocked[source] = struct{}{}
			m.logger.Warn(ctx, "source blocked after repeated suspicious activity",
				logger.String("source", source),
				logger.String("kind", string(kind)),
				logger.Int("recent_events", recent),
				logger.Duration("window", m.window),
			)
		}
	}
}

// IsBlocked reports whether the source is on the blocked set. O(1); intended
// to run early in the pipeline so blocked sources pay minimal cost.
func (m *SecurityMonitor) IsBlocked(source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, blocked := m.blocked[source]
	return blocked
}

// Unblock removes a source from the blocked set. Removal is exclusively
// manual; nothing re-evaluates or expires a block.
func (m *SecurityMonitor) Unblock(ctx context.Context, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, blocked := m.blocked[source]; blocked {
		delete(m.blocked, source)
		m.logger.Info(ctx, "source unblocked", logger.String("source", source))
	}
}

// BlockedSources returns a snapshot of currently blocked source identifiers.
func (m *SecurityMonitor) BlockedSources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources := make([]string, 0, len(m.blocked))
	for s := range m.blocked {
		sources = append(sources, s)
	}
	return sources
}

// RecentActivities returns up to limit of the most recent records, newest
// last. A non-positive limit returns everything retained.
func (m *SecurityMonitor) RecentActivities(limit int) []models.SuspiciousActivity {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.activities) {
		limit = len(m.activities)
	}

	out := make([]models.SuspiciousActivity, limit)
	copy(out, m.activities[len(m.activities)-limit:])
	return out
}
