package scaling

import (
	"testing"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy()
	if p.minInstances != defaultMinInstances {
		t.Errorf("minInstances = %d, want %d", p.minInstances, defaultMinInstances)
	}
	if p.maxInstances != defaultMaxInstances {
		t.Errorf("maxInstances = %d, want %d", p.maxInstances, defaultMaxInstances)
	}
	if p.scaleUpThreshold != defaultScaleUpThreshold {
		t.Errorf("scaleUpThreshold = %d, want %d", p.scaleUpThreshold, defaultScaleUpThreshold)
	}
	if p.cooldownPeriod != defaultCooldownPeriod {
		t.Errorf("cooldownPeriod = %v, want %v", p.cooldownPeriod, defaultCooldownPeriod)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(model.ScalingConfig{
		MinInstances:       1,
		MaxInstances:       6,
		ScaleUpThreshold:   10,
		ScaleDownThreshold: 2,
		ScaleUpStep:        2,
		ScaleDownStep:      1,
		CooldownSeconds:    90,
	})
	if p.maxInstances != 6 || p.scaleUpStep != 2 || p.cooldownPeriod != 90*time.Second {
		t.Errorf("FromConfig did not apply configuration: %+v", p)
	}
}

func TestFromConfig_ZeroStepsFallBack(t *testing.T) {
	p := FromConfig(model.ScalingConfig{MaxInstances: 3})
	if p.scaleUpStep != 1 || p.scaleDownStep != 1 {
		t.Errorf("steps = %d/%d, want 1/1", p.scaleUpStep, p.scaleDownStep)
	}
}

func TestPolicy_Evaluate(t *testing.T) {
	tests := []struct {
		name        string
		options     []Option
		depth       int
		current     int
		wantAction  Action
		wantDesired int
	}{
		{
			name:        "scale up above threshold",
			options:     []Option{WithMaxInstances(4), WithScaleUpThreshold(5)},
			depth:       6,
			current:     1,
			wantAction:  ActionScaleUp,
			wantDesired: 2,
		},
		{
			name:        "scale up step bounded by max",
			options:     []Option{WithMaxInstances(3), WithScaleUpThreshold(5), WithScaleUpStep(4)},
			depth:       20,
			current:     2,
			wantAction:  ActionScaleUp,
			wantDesired: 3,
		},
		{
			name:        "at max does not scale up",
			options:     []Option{WithMaxInstances(2), WithScaleUpThreshold(5)},
			depth:       50,
			current:     2,
			wantAction:  ActionNone,
			wantDesired: 2,
		},
		{
			name:        "scale down at threshold",
			options:     []Option{WithMinInstances(0), WithScaleDownThreshold(1)},
			depth:       0,
			current:     2,
			wantAction:  ActionScaleDown,
			wantDesired: 1,
		},
		{
			name:        "scale down to zero only when queue empty",
			options:     []Option{WithMinInstances(0), WithScaleDownThreshold(1)},
			depth:       0,
			current:     1,
			wantAction:  ActionScaleDown,
			wantDesired: 0,
		},
		{
			name:        "scale down floors at one while work remains",
			options:     []Option{WithMinInstances(0), WithScaleDownThreshold(1), WithScaleDownStep(3)},
			depth:       1,
			current:     2,
			wantAction:  ActionScaleDown,
			wantDesired: 1,
		},
		{
			name:        "scale down bounded by min",
			options:     []Option{WithMinInstances(2), WithScaleDownThreshold(1), WithScaleDownStep(5)},
			depth:       0,
			current:     4,
			wantAction:  ActionScaleDown,
			wantDesired: 2,
		},
		{
			name:        "starvation guard below threshold",
			options:     []Option{WithMinInstances(0), WithMaxInstances(4), WithScaleUpThreshold(5)},
			depth:       1,
			current:     0,
			wantAction:  ActionScaleUp,
			wantDesired: 1,
		},
		{
			name:        "idle remains at zero",
			options:     []Option{WithMinInstances(0)},
			depth:       0,
			current:     0,
			wantAction:  ActionNone,
			wantDesired: 0,
		},
		{
			name:        "steady state between thresholds",
			options:     []Option{WithScaleUpThreshold(5), WithScaleDownThreshold(1)},
			depth:       3,
			current:     2,
			wantAction:  ActionNone,
			wantDesired: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.options...)
			d := p.Evaluate(tt.depth, tt.current)
			if d.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s (reason: %s)", d.Action, tt.wantAction, d.Reason)
			}
			if d.Desired != tt.wantDesired {
				t.Errorf("Desired = %d, want %d", d.Desired, tt.wantDesired)
			}
			if d.Delta != d.Desired-tt.current {
				t.Errorf("Delta = %d, inconsistent with Desired %d and current %d", d.Delta, d.Desired, tt.current)
			}
		})
	}
}

func TestPolicy_CooldownGatesTransitions(t *testing.T) {
	current := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	p := NewPolicy(
		WithMaxInstances(4),
		WithScaleUpThreshold(2),
		WithCooldownPeriod(time.Minute),
		WithClock(func() time.Time { return current }),
	)

	d := p.Evaluate(10, 1)
	if d.Action != ActionScaleUp {
		t.Fatalf("first evaluation should scale up, got %s", d.Action)
	}

	// Within cooldown, further scale-ups are suppressed.
	current = current.Add(30 * time.Second)
	d = p.Evaluate(10, 2)
	if d.Action != ActionNone || d.Reason != "cooldown period active" {
		t.Errorf("within cooldown: got %s (%s)", d.Action, d.Reason)
	}

	// After cooldown, scaling resumes.
	current = current.Add(31 * time.Second)
	d = p.Evaluate(10, 2)
	if d.Action != ActionScaleUp {
		t.Errorf("after cooldown: got %s (%s)", d.Action, d.Reason)
	}
}

func TestPolicy_StarvationGuardIgnoresCooldown(t *testing.T) {
	current := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	p := NewPolicy(
		WithMinInstances(0),
		WithMaxInstances(4),
		WithScaleDownThreshold(1),
		WithCooldownPeriod(time.Hour),
		WithClock(func() time.Time { return current }),
	)

	if d := p.Evaluate(0, 1); d.Action != ActionScaleDown {
		t.Fatalf("expected scale down to zero, got %s", d.Action)
	}

	// Still deep inside the cooldown window, work appears.
	current = current.Add(time.Second)
	d := p.Evaluate(1, 0)
	if d.Action != ActionScaleUp || d.Desired != 1 {
		t.Errorf("starvation guard suppressed by cooldown: %s desired=%d (%s)", d.Action, d.Desired, d.Reason)
	}
}

func TestPolicy_MonotonicProperties(t *testing.T) {
	// For all depths above the scale-up threshold with headroom, desired
	// must exceed current; at or below the scale-down threshold with room
	// above min, desired must not exceed current.
	p := func() *Policy {
		return NewPolicy(
			WithMinInstances(0),
			WithMaxInstances(8),
			WithScaleUpThreshold(5),
			WithScaleDownThreshold(1),
			WithCooldownPeriod(0),
		)
	}

	for depth := 6; depth <= 30; depth += 6 {
		for current := 0; current < 8; current++ {
			d := p().Evaluate(depth, current)
			if d.Desired <= current {
				t.Errorf("depth=%d current=%d: desired %d not greater", depth, current, d.Desired)
			}
		}
	}

	for depth := 0; depth <= 1; depth++ {
		for current := 1; current <= 8; current++ {
			d := p().Evaluate(depth, current)
			if d.Desired > current {
				t.Errorf("depth=%d current=%d: desired %d increased", depth, current, d.Desired)
			}
			if depth > 0 && d.Desired < 1 {
				t.Errorf("depth=%d current=%d: desired %d starves backlog", depth, current, d.Desired)
			}
		}
	}
}
