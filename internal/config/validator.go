package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "workers.sync.scaling.max_instances")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMongo()...)
	errors = append(errors, c.validateManager()...)
	errors = append(errors, validateKind("workers.sync", c.Workers.Sync)...)
	errors = append(errors, validateKind("workers.causa_creation", c.Workers.CausaCreation)...)
	errors = append(errors, c.validateSync()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateMongo() []ValidationError {
	var errors []ValidationError

	if c.Mongo.URI == "" {
		errors = append(errors, ValidationError{
			Field:   "mongo.uri",
			Value:   c.Mongo.URI,
			Message: "must not be empty",
		})
	}
	if c.Mongo.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "mongo.database",
			Value:   c.Mongo.Database,
			Message: "must not be empty",
		})
	}
	if c.Mongo.ConnectTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "mongo.connect_timeout_seconds",
			Value:   c.Mongo.ConnectTimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateManager() []ValidationError {
	var errors []ValidationError

	if c.Manager.PollIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "manager.poll_interval_seconds",
			Value:   c.Manager.PollIntervalSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Manager.RunsToKeep < 1 {
		errors = append(errors, ValidationError{
			Field:   "manager.runs_to_keep",
			Value:   c.Manager.RunsToKeep,
			Message: "must be at least 1",
		})
	}
	if c.Manager.PruneIntervalMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "manager.prune_interval_minutes",
			Value:   c.Manager.PruneIntervalMinutes,
			Message: "must be non-negative",
		})
	}

	return errors
}

func validateKind(prefix string, k KindSettings) []ValidationError {
	var errors []ValidationError

	s := k.Scaling
	if s.MinInstances < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".scaling.min_instances",
			Value:   s.MinInstances,
			Message: "must be non-negative",
		})
	}
	if s.MaxInstances < 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".scaling.max_instances",
			Value:   s.MaxInstances,
			Message: "must be at least 1",
		})
	}
	if s.MaxInstances >= 1 && s.MinInstances > s.MaxInstances {
		errors = append(errors, ValidationError{
			Field:   prefix + ".scaling.min_instances",
			Value:   s.MinInstances,
			Message: fmt.Sprintf("must not exceed max_instances (%d)", s.MaxInstances),
		})
	}
	if s.ScaleDownThreshold > s.ScaleUpThreshold {
		errors = append(errors, ValidationError{
			Field:   prefix + ".scaling.scale_down_threshold",
			Value:   s.ScaleDownThreshold,
			Message: fmt.Sprintf("must not exceed scale_up_threshold (%d)", s.ScaleUpThreshold),
		})
	}
	if s.CooldownSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".scaling.cooldown_seconds",
			Value:   s.CooldownSeconds,
			Message: "must be non-negative",
		})
	}

	errors = append(errors, validateSchedule(prefix+".schedule", k.Schedule)...)

	h := k.Health
	if h.MaxProcessingMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".health.max_processing_minutes",
			Value:   h.MaxProcessingMinutes,
			Message: "must be non-negative (0 disables the check)",
		})
	}
	if h.MaxIdleMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".health.max_idle_minutes",
			Value:   h.MaxIdleMinutes,
			Message: "must be non-negative (0 disables the check)",
		})
	}

	if k.QueuePollSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".queue_poll_seconds",
			Value:   k.QueuePollSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func validateSchedule(prefix string, s model.ScheduleConfig) []ValidationError {
	var errors []ValidationError

	if s.WorkingHoursStart < 0 || s.WorkingHoursStart > 23 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".working_hours_start",
			Value:   s.WorkingHoursStart,
			Message: "must be between 0 and 23",
		})
	}
	if s.WorkingHoursEnd < 0 || s.WorkingHoursEnd > 24 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".working_hours_end",
			Value:   s.WorkingHoursEnd,
			Message: "must be between 0 and 24",
		})
	}
	for _, day := range s.WorkingDays {
		if day < time.Sunday || day > time.Saturday {
			errors = append(errors, ValidationError{
				Field:   prefix + ".working_days",
				Value:   int(day),
				Message: "days use 0 (Sunday) through 6 (Saturday)",
			})
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			errors = append(errors, ValidationError{
				Field:   prefix + ".timezone",
				Value:   s.Timezone,
				Message: "unknown timezone",
			})
		}
	}

	return errors
}

func (c *Config) validateSync() []ValidationError {
	var errors []ValidationError

	if c.Sync.DelayBetweenCausas < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.delay_between_causas",
			Value:   c.Sync.DelayBetweenCausas,
			Message: "must be non-negative",
		})
	}
	if c.Sync.DelayBetweenCredentials < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.delay_between_credentials",
			Value:   c.Sync.DelayBetweenCredentials,
			Message: "must be non-negative",
		})
	}
	if c.Sync.UpdateThresholdHours < 1 {
		errors = append(errors, ValidationError{
			Field:   "sync.update_threshold_hours",
			Value:   c.Sync.UpdateThresholdHours,
			Message: "must be at least 1",
		})
	}
	if c.Sync.MinTimeBetweenRunsMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.min_time_between_runs_minutes",
			Value:   c.Sync.MinTimeBetweenRunsMinutes,
			Message: "must be non-negative",
		})
	}
	if c.Sync.MaxResumeAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "sync.max_resume_attempts",
			Value:   c.Sync.MaxResumeAttempts,
			Message: "must be at least 1",
		})
	}
	if c.Sync.WaitForCausaCreation && c.Sync.MaxWaitMinutes < 1 {
		errors = append(errors, ValidationError{
			Field:   "sync.max_wait_minutes",
			Value:   c.Sync.MaxWaitMinutes,
			Message: "must be at least 1 when wait_for_causa_creation is set",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
