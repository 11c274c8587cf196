package config

import (
	"testing"
)

func findError(errs []ValidationError, field string) *ValidationError {
	for i := range errs {
		if errs[i].Field == field {
			return &errs[i]
		}
	}
	return nil
}

func TestValidateMongo(t *testing.T) {
	cfg := Default()
	cfg.Mongo.URI = ""
	cfg.Mongo.Database = ""
	cfg.Mongo.ConnectTimeoutSeconds = -1

	errs := cfg.Validate()
	for _, field := range []string{"mongo.uri", "mongo.database", "mongo.connect_timeout_seconds"} {
		if findError(errs, field) == nil {
			t.Errorf("no error for %s", field)
		}
	}
}

func TestValidateManager(t *testing.T) {
	cfg := Default()
	cfg.Manager.PollIntervalSeconds = 0
	cfg.Manager.RunsToKeep = 0

	errs := cfg.Validate()
	if findError(errs, "manager.poll_interval_seconds") == nil {
		t.Error("no error for zero poll interval")
	}
	if findError(errs, "manager.runs_to_keep") == nil {
		t.Error("no error for zero runs_to_keep")
	}
}

func TestValidateScaling(t *testing.T) {
	cfg := Default()
	cfg.Workers.Sync.Scaling.MinInstances = 5
	cfg.Workers.Sync.Scaling.MaxInstances = 2
	cfg.Workers.Sync.Scaling.ScaleDownThreshold = 10
	cfg.Workers.Sync.Scaling.ScaleUpThreshold = 3

	errs := cfg.Validate()
	if findError(errs, "workers.sync.scaling.min_instances") == nil {
		t.Error("no error for min > max")
	}
	if findError(errs, "workers.sync.scaling.scale_down_threshold") == nil {
		t.Error("no error for crossed thresholds")
	}
}

func TestValidateSchedule(t *testing.T) {
	cfg := Default()
	cfg.Workers.Sync.Schedule.WorkingHoursStart = 25
	cfg.Workers.Sync.Schedule.Timezone = "Mars/Olympus_Mons"

	errs := cfg.Validate()
	if findError(errs, "workers.sync.schedule.working_hours_start") == nil {
		t.Error("no error for hour 25")
	}
	if findError(errs, "workers.sync.schedule.timezone") == nil {
		t.Error("no error for bogus timezone")
	}

	// Overnight windows (end <= start) are legitimate, not errors.
	cfg = Default()
	cfg.Workers.Sync.Schedule.WorkingHoursStart = 22
	cfg.Workers.Sync.Schedule.WorkingHoursEnd = 6
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Fatalf("overnight window rejected: %v", ValidationErrors(errs))
	}
}

func TestValidateSyncWorker(t *testing.T) {
	cfg := Default()
	cfg.Sync.UpdateThresholdHours = 0
	cfg.Sync.MaxResumeAttempts = 0
	cfg.Sync.WaitForCausaCreation = true
	cfg.Sync.MaxWaitMinutes = 0

	errs := cfg.Validate()
	for _, field := range []string{"sync.update_threshold_hours", "sync.max_resume_attempts", "sync.max_wait_minutes"} {
		if findError(errs, field) == nil {
			t.Errorf("no error for %s", field)
		}
	}
}

func TestValidateLoggingLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	if findError(cfg.Validate(), "logging.level") == nil {
		t.Error("no error for unknown level")
	}

	// Case-insensitive.
	cfg.Logging.Level = "debug"
	if findError(cfg.Validate(), "logging.level") != nil {
		t.Error("lowercase level rejected")
	}
}
