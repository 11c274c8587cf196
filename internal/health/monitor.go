// Package health flags stuck worker instances. An instance is stuck when its
// total processing time exceeds the configured maximum or when it has gone
// too long without reporting activity; flagged instances are restarted by
// the manager through the supervisor.
package health

import (
	"fmt"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// FlagType represents the kind of health violation detected.
type FlagType int

const (
	// FlagProcessing means total runtime exceeded the processing limit.
	FlagProcessing FlagType = iota
	// FlagIdle means no activity was reported for too long.
	FlagIdle
)

// String returns the string representation of the flag type.
func (f FlagType) String() string {
	switch f {
	case FlagProcessing:
		return "processing_timeout"
	case FlagIdle:
		return "idle_timeout"
	default:
		return "unknown"
	}
}

// Report is one running instance's observable state, as reported by the
// process supervisor.
type Report struct {
	InstanceID   string
	StartedAt    time.Time
	LastActivity time.Time
}

// Flagged identifies an instance that violated a health threshold.
type Flagged struct {
	InstanceID string
	Type       FlagType
	Reason     string
}

// Callback is invoked for each flagged instance.
type Callback func(Flagged)

// Monitor checks running instances against a kind's health thresholds.
// Zero thresholds disable the corresponding check.
type Monitor struct {
	cfg      model.HealthConfig
	now      func() time.Time
	callback Callback
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithCallback registers a callback invoked once per flagged instance.
func WithCallback(cb Callback) Option {
	return func(m *Monitor) { m.callback = cb }
}

// NewMonitor creates a Monitor for one worker kind's thresholds.
func NewMonitor(cfg model.HealthConfig, opts ...Option) *Monitor {
	m := &Monitor{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check evaluates every report and returns the instances that violated a
// threshold. The processing check takes precedence: an instance that blew
// both limits is flagged once, for the total-runtime violation.
func (m *Monitor) Check(reports []Report) []Flagged {
	now := m.now()
	var flagged []Flagged

	for _, r := range reports {
		if f, ok := m.check(r, now); ok {
			flagged = append(flagged, f)
			if m.callback != nil {
				m.callback(f)
			}
		}
	}
	return flagged
}

func (m *Monitor) check(r Report, now time.Time) (Flagged, bool) {
	if m.cfg.MaxProcessingMinutes > 0 && !r.StartedAt.IsZero() {
		limit := time.Duration(m.cfg.MaxProcessingMinutes) * time.Minute
		if running := now.Sub(r.StartedAt); running > limit {
			return Flagged{
				InstanceID: r.InstanceID,
				Type:       FlagProcessing,
				Reason:     fmt.Sprintf("running %s, limit %s", running.Round(time.Second), limit),
			}, true
		}
	}

	if m.cfg.MaxIdleMinutes > 0 && !r.LastActivity.IsZero() {
		limit := time.Duration(m.cfg.MaxIdleMinutes) * time.Minute
		if idle := now.Sub(r.LastActivity); idle > limit {
			return Flagged{
				InstanceID: r.InstanceID,
				Type:       FlagIdle,
				Reason:     fmt.Sprintf("idle %s, limit %s", idle.Round(time.Second), limit),
			}, true
		}
	}

	return Flagged{}, false
}
