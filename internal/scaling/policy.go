package scaling

import (
	"fmt"
	"sync"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// Default policy values.
const (
	defaultMinInstances       = 0
	defaultMaxInstances       = 4
	defaultScaleUpThreshold   = 5
	defaultScaleDownThreshold = 1
	defaultScaleUpStep        = 1
	defaultScaleDownStep      = 1
	defaultCooldownPeriod     = 60 * time.Second
)

// Option configures a Policy.
type Option func(*Policy)

// WithMinInstances sets the minimum number of instances to maintain.
func WithMinInstances(n int) Option {
	return func(p *Policy) { p.minInstances = n }
}

// WithMaxInstances sets the maximum number of instances allowed.
func WithMaxInstances(n int) Option {
	return func(p *Policy) { p.maxInstances = n }
}

// WithScaleUpThreshold sets the queue depth above which to scale up.
func WithScaleUpThreshold(n int) Option {
	return func(p *Policy) { p.scaleUpThreshold = n }
}

// WithScaleDownThreshold sets the queue depth at or below which to scale down.
func WithScaleDownThreshold(n int) Option {
	return func(p *Policy) { p.scaleDownThreshold = n }
}

// WithScaleUpStep sets how many instances a scale-up adds.
func WithScaleUpStep(n int) Option {
	return func(p *Policy) { p.scaleUpStep = n }
}

// WithScaleDownStep sets how many instances a scale-down removes.
func WithScaleDownStep(n int) Option {
	return func(p *Policy) { p.scaleDownStep = n }
}

// WithCooldownPeriod sets the minimum time between scaling decisions.
func WithCooldownPeriod(d time.Duration) Option {
	return func(p *Policy) { p.cooldownPeriod = d }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// Policy defines the rules for elastic scaling decisions for one worker
// kind. It is safe for concurrent use.
type Policy struct {
	mu                 sync.Mutex
	minInstances       int
	maxInstances       int
	scaleUpThreshold   int
	scaleDownThreshold int
	scaleUpStep        int
	scaleDownStep      int
	cooldownPeriod     time.Duration
	lastDecisionTime   time.Time
	now                func() time.Time
}

// NewPolicy creates a Policy with the given options.
// Unset options use defaults.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		minInstances:       defaultMinInstances,
		maxInstances:       defaultMaxInstances,
		scaleUpThreshold:   defaultScaleUpThreshold,
		scaleDownThreshold: defaultScaleDownThreshold,
		scaleUpStep:        defaultScaleUpStep,
		scaleDownStep:      defaultScaleDownStep,
		cooldownPeriod:     defaultCooldownPeriod,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromConfig creates a Policy from a persisted scaling configuration.
// Zero steps fall back to 1 so a configured policy always makes progress.
func FromConfig(cfg model.ScalingConfig, opts ...Option) *Policy {
	upStep := cfg.ScaleUpStep
	if upStep <= 0 {
		upStep = defaultScaleUpStep
	}
	downStep := cfg.ScaleDownStep
	if downStep <= 0 {
		downStep = defaultScaleDownStep
	}
	base := []Option{
		WithMinInstances(cfg.MinInstances),
		WithMaxInstances(cfg.MaxInstances),
		WithScaleUpThreshold(cfg.ScaleUpThreshold),
		WithScaleDownThreshold(cfg.ScaleDownThreshold),
		WithScaleUpStep(upStep),
		WithScaleDownStep(downStep),
		WithCooldownPeriod(time.Duration(cfg.CooldownSeconds) * time.Second),
	}
	return NewPolicy(append(base, opts...)...)
}

// Evaluate inspects the queue depth and current instance count, returning a
// scaling decision. The cooldown period gates every transition except the
// starvation guard: pending work with zero instances always forces at least
// one, so a backlog can never sit unserved for a full cooldown.
func (p *Policy) Evaluate(queueDepth, currentInstances int) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	inCooldown := !p.lastDecisionTime.IsZero() && now.Sub(p.lastDecisionTime) < p.cooldownPeriod

	if !inCooldown {
		if queueDepth > p.scaleUpThreshold && currentInstances < p.maxInstances {
			desired := currentInstances + p.scaleUpStep
			if desired > p.maxInstances {
				desired = p.maxInstances
			}
			if desired > currentInstances {
				p.lastDecisionTime = now
				return Decision{
					Action:  ActionScaleUp,
					Desired: desired,
					Delta:   desired - currentInstances,
					Reason:  fmt.Sprintf("queue depth %d exceeds threshold %d", queueDepth, p.scaleUpThreshold),
				}
			}
		}

		if queueDepth <= p.scaleDownThreshold && currentInstances > p.minInstances {
			// Never scale to zero while work remains; the starvation
			// guard would immediately undo it.
			floor := p.minInstances
			if queueDepth > 0 && floor < 1 {
				floor = 1
			}
			desired := currentInstances - p.scaleDownStep
			if desired < floor {
				desired = floor
			}
			if desired < currentInstances {
				p.lastDecisionTime = now
				return Decision{
					Action:  ActionScaleDown,
					Desired: desired,
					Delta:   desired - currentInstances,
					Reason:  fmt.Sprintf("queue depth %d at or below threshold %d", queueDepth, p.scaleDownThreshold),
				}
			}
		}
	}

	// Starvation guard: pending work with no instances forces one, even
	// during cooldown.
	if queueDepth > 0 && currentInstances == 0 && p.maxInstances > 0 {
		p.lastDecisionTime = now
		return Decision{
			Action:  ActionScaleUp,
			Desired: 1,
			Delta:   1,
			Reason:  fmt.Sprintf("%d pending with no instances running", queueDepth),
		}
	}

	if inCooldown {
		return Decision{
			Action:  ActionNone,
			Desired: currentInstances,
			Reason:  "cooldown period active",
		}
	}

	return Decision{
		Action:  ActionNone,
		Desired: currentInstances,
		Reason:  "no scaling needed",
	}
}
