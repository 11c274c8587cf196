package schedule

import (
	"testing"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// mustTime parses an RFC3339 timestamp for test fixtures.
func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestEvaluate(t *testing.T) {
	weekdays := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}

	tests := []struct {
		name   string
		cfg    model.ScheduleConfig
		now    string // UTC instant
		within bool
	}{
		{
			name:   "disabled schedule always allows",
			cfg:    model.ScheduleConfig{Enabled: false},
			now:    "2024-06-02T03:00:00Z", // Sunday
			within: true,
		},
		{
			name: "weekday inside hours",
			cfg: model.ScheduleConfig{
				Enabled:           true,
				WorkingDays:       weekdays,
				WorkingHoursStart: 8,
				WorkingHoursEnd:   20,
				Timezone:          "UTC",
			},
			now:    "2024-06-03T10:00:00Z", // Monday 10:00
			within: true,
		},
		{
			name: "weekday before opening hour",
			cfg: model.ScheduleConfig{
				Enabled:           true,
				WorkingDays:       weekdays,
				WorkingHoursStart: 8,
				WorkingHoursEnd:   20,
				Timezone:          "UTC",
			},
			now:    "2024-06-03T06:30:00Z",
			within: false,
		},
		{
			name: "closing hour is exclusive",
			cfg: model.ScheduleConfig{
				Enabled:           true,
				WorkingDays:       weekdays,
				WorkingHoursStart: 8,
				WorkingHoursEnd:   20,
				Timezone:          "UTC",
			},
			now:    "2024-06-03T20:00:00Z",
			within: false,
		},
		{
			name: "weekend excluded",
			cfg: model.ScheduleConfig{
				Enabled:           true,
				WorkingDays:       weekdays,
				WorkingHoursStart: 8,
				WorkingHoursEnd:   20,
				Timezone:          "UTC",
			},
			now:    "2024-06-01T12:00:00Z", // Saturday
			within: false,
		},
		{
			name: "empty days means every day",
			cfg: model.ScheduleConfig{
				Enabled:           true,
				WorkingHoursStart: 8,
				WorkingHoursEnd:   20,
				Timezone:          "UTC",
			},
			now:    "2024-06-02T12:00:00Z", // Sunday
			within: true,
		},
		{
			name: "overnight window wraps midnight",
			cfg: model.ScheduleConfig{
				Enabled:           true,
				WorkingHoursStart: 22,
				WorkingHoursEnd:   6,
				Timezone:          "UTC",
			},
			now:    "2024-06-03T02:00:00Z",
			within: true,
		},
		{
			name: "overnight window daytime excluded",
			cfg: model.ScheduleConfig{
				Enabled:           true,
				WorkingHoursStart: 22,
				WorkingHoursEnd:   6,
				Timezone:          "UTC",
			},
			now:    "2024-06-03T12:00:00Z",
			within: false,
		},
		{
			name: "zero hours means all day",
			cfg: model.ScheduleConfig{
				Enabled:     true,
				WorkingDays: weekdays,
				Timezone:    "UTC",
			},
			now:    "2024-06-03T23:30:00Z",
			within: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := Evaluate(tt.cfg, mustTime(t, tt.now))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if verdict.Within != tt.within {
				t.Errorf("Within = %v, want %v (reason: %s)", verdict.Within, tt.within, verdict.Reason)
			}
			if verdict.Reason == "" {
				t.Error("Reason must never be empty")
			}
		})
	}
}

func TestEvaluate_TimezoneConversion(t *testing.T) {
	// 14:00 UTC is 11:00 in Buenos Aires (UTC-3, no DST).
	cfg := model.ScheduleConfig{
		Enabled:           true,
		WorkingHoursStart: 9,
		WorkingHoursEnd:   12,
		Timezone:          "America/Argentina/Buenos_Aires",
	}
	verdict, err := Evaluate(cfg, mustTime(t, "2024-06-03T14:00:00Z"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !verdict.Within {
		t.Errorf("14:00 UTC should be within 9-12 Buenos Aires: %s", verdict.Reason)
	}

	// 16:00 UTC is 13:00 local, outside the window.
	verdict, err = Evaluate(cfg, mustTime(t, "2024-06-03T16:00:00Z"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict.Within {
		t.Error("16:00 UTC should be outside 9-12 Buenos Aires")
	}
}

func TestEvaluate_BadTimezone(t *testing.T) {
	cfg := model.ScheduleConfig{Enabled: true, Timezone: "Mars/Olympus"}
	if _, err := Evaluate(cfg, time.Now()); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
