// Package schedule decides whether a worker kind may run at a given moment,
// based on its configured working days, hours and timezone. Evaluation is
// pure: callers pass the clock in.
package schedule

import (
	"fmt"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// Verdict is the result of evaluating a schedule.
type Verdict struct {
	// Within reports whether the moment falls inside the configured window.
	Within bool
	// Reason is a human-readable explanation, persisted into the manager's
	// status snapshot.
	Reason string
}

// Evaluate returns whether now falls inside the configured working window.
// A disabled schedule allows all times. An empty WorkingDays list means every
// day. Windows where end <= start wrap past midnight.
func Evaluate(cfg model.ScheduleConfig, now time.Time) (Verdict, error) {
	if !cfg.Enabled {
		return Verdict{Within: true, Reason: "schedule disabled"}, nil
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Verdict{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
	}
	local := now.In(loc)

	if len(cfg.WorkingDays) > 0 && !containsDay(cfg.WorkingDays, local.Weekday()) {
		return Verdict{
			Within: false,
			Reason: fmt.Sprintf("%s is outside working days", local.Weekday()),
		}, nil
	}

	within := withinHours(local.Hour(), cfg.WorkingHoursStart, cfg.WorkingHoursEnd)
	if !within {
		return Verdict{
			Within: false,
			Reason: fmt.Sprintf("hour %02d is outside working hours %02d-%02d", local.Hour(), cfg.WorkingHoursStart, cfg.WorkingHoursEnd),
		}, nil
	}

	return Verdict{Within: true, Reason: "within schedule"}, nil
}

// withinHours tests hour against [start, end). A window with end <= start
// wraps past midnight; start == end with both zero means all day.
func withinHours(hour, start, end int) bool {
	if start == 0 && end == 0 {
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	// Overnight window, e.g. 20-06.
	return hour >= start || hour < end
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}
