package model

import "time"

// WorkerKind names a class of worker process the manager scales.
type WorkerKind string

const (
	// KindSync is the synchronization worker that pulls case updates from
	// the external portal.
	KindSync WorkerKind = "sync"
	// KindCausaCreation is the worker that materializes newly observed
	// cases into causa documents.
	KindCausaCreation WorkerKind = "causa_creation"
)

// ScheduleConfig is a worker kind's time-of-day window. Days use time.Weekday
// numbering (Sunday = 0). Hours are in the configured timezone.
type ScheduleConfig struct {
	Enabled           bool           `bson:"enabled" json:"enabled" mapstructure:"enabled"`
	WorkingDays       []time.Weekday `bson:"workingDays" json:"workingDays" mapstructure:"working_days"`
	WorkingHoursStart int            `bson:"workingHoursStart" json:"workingHoursStart" mapstructure:"working_hours_start"`
	WorkingHoursEnd   int            `bson:"workingHoursEnd" json:"workingHoursEnd" mapstructure:"working_hours_end"`
	Timezone          string         `bson:"timezone" json:"timezone" mapstructure:"timezone"`
}

// ScalingConfig is a worker kind's scaling thresholds.
type ScalingConfig struct {
	MinInstances       int `bson:"minInstances" json:"minInstances" mapstructure:"min_instances"`
	MaxInstances       int `bson:"maxInstances" json:"maxInstances" mapstructure:"max_instances"`
	ScaleUpThreshold   int `bson:"scaleUpThreshold" json:"scaleUpThreshold" mapstructure:"scale_up_threshold"`
	ScaleDownThreshold int `bson:"scaleDownThreshold" json:"scaleDownThreshold" mapstructure:"scale_down_threshold"`
	ScaleUpStep        int `bson:"scaleUpStep" json:"scaleUpStep" mapstructure:"scale_up_step"`
	ScaleDownStep      int `bson:"scaleDownStep" json:"scaleDownStep" mapstructure:"scale_down_step"`
	CooldownSeconds    int `bson:"cooldownSeconds" json:"cooldownSeconds" mapstructure:"cooldown_seconds"`
}

// HealthConfig is a worker kind's stuck-instance thresholds. Zero disables
// the corresponding check.
type HealthConfig struct {
	MaxProcessingMinutes int `bson:"maxProcessingMinutes" json:"maxProcessingMinutes" mapstructure:"max_processing_minutes"`
	MaxIdleMinutes       int `bson:"maxIdleMinutes" json:"maxIdleMinutes" mapstructure:"max_idle_minutes"`
}

// WorkerKindConfig is the per-kind configuration document the console edits
// and the manager consumes.
type WorkerKindConfig struct {
	Kind    WorkerKind `bson:"_id" json:"kind" mapstructure:"kind"`
	Enabled bool       `bson:"enabled" json:"enabled" mapstructure:"enabled"`

	Scaling  ScalingConfig  `bson:"scaling" json:"scaling" mapstructure:"scaling"`
	Schedule ScheduleConfig `bson:"schedule" json:"schedule" mapstructure:"schedule"`
	Health   HealthConfig   `bson:"health" json:"health" mapstructure:"health"`

	QueuePollSeconds int `bson:"queuePollSeconds" json:"queuePollSeconds" mapstructure:"queue_poll_seconds"`
}

// GlobalConfig holds the process-wide kill switches.
type GlobalConfig struct {
	Enabled            bool   `bson:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceAvailable   bool   `bson:"serviceAvailable" json:"serviceAvailable" mapstructure:"service_available"`
	MaintenanceMessage string `bson:"maintenanceMessage,omitempty" json:"maintenanceMessage,omitempty" mapstructure:"maintenance_message"`
}

// WorkerStatus is the manager's last observation of one worker kind.
type WorkerStatus struct {
	QueueDepth       int    `bson:"queueDepth" json:"queueDepth"`
	CurrentInstances int    `bson:"currentInstances" json:"currentInstances"`
	DesiredInstances int    `bson:"desiredInstances" json:"desiredInstances"`
	WithinSchedule   bool   `bson:"withinSchedule" json:"withinSchedule"`
	Reason           string `bson:"reason,omitempty" json:"reason,omitempty"`
	Error            string `bson:"error,omitempty" json:"error,omitempty"`
}

// ManagerState is the singleton status document the manager persists each
// tick and the console reads.
type ManagerState struct {
	Enabled            bool      `bson:"enabled" json:"enabled"`
	ServiceAvailable   bool      `bson:"serviceAvailable" json:"serviceAvailable"`
	MaintenanceMessage string    `bson:"maintenanceMessage,omitempty" json:"maintenanceMessage,omitempty"`
	IsRunning          bool      `bson:"isRunning" json:"isRunning"`
	ConfigVersion      int       `bson:"configVersion" json:"configVersion"`
	LastPoll           time.Time `bson:"lastPoll" json:"lastPoll"`

	Workers map[WorkerKind]WorkerStatus `bson:"workers" json:"workers"`
}
