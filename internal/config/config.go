package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/worker"
)

// Config represents the complete pjnsync configuration
type Config struct {
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Manager ManagerConfig `mapstructure:"manager"`
	Workers WorkersConfig `mapstructure:"workers"`
	Sync    worker.Config `mapstructure:"sync"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// MongoConfig controls the record-store connection
type MongoConfig struct {
	// URI is the mongodb connection string
	URI string `mapstructure:"uri"`
	// Database is the database name holding the pjnsync collections
	Database string `mapstructure:"database"`
	// ConnectTimeoutSeconds bounds the initial connection attempt
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
}

// ManagerConfig controls the manager poll loop
type ManagerConfig struct {
	// PollIntervalSeconds is the tick interval of the manager loop
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	// RunsToKeep is how many finished runs the pruner retains per credential
	RunsToKeep int `mapstructure:"runs_to_keep"`
	// PruneIntervalMinutes is how often the ledger pruner runs (0 = disabled)
	PruneIntervalMinutes int `mapstructure:"prune_interval_minutes"`
	// WorkerBinary is the executable the supervisor spawns for worker
	// instances. Empty means the manager's own binary.
	WorkerBinary string `mapstructure:"worker_binary"`
	// StateDir is where worker heartbeat files live
	StateDir string `mapstructure:"state_dir"`
}

// WorkersConfig holds the per-kind seed configuration. The store's
// worker_configs collection overrides these once the console has written it;
// this block only seeds a fresh deployment.
type WorkersConfig struct {
	Sync          KindSettings `mapstructure:"sync"`
	CausaCreation KindSettings `mapstructure:"causa_creation"`
}

// KindSettings is one worker kind's seed configuration
type KindSettings struct {
	Enabled          bool                 `mapstructure:"enabled"`
	Scaling          model.ScalingConfig  `mapstructure:"scaling"`
	Schedule         model.ScheduleConfig `mapstructure:"schedule"`
	Health           model.HealthConfig   `mapstructure:"health"`
	QueuePollSeconds int                  `mapstructure:"queue_poll_seconds"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is the log level: "DEBUG", "INFO", "WARN", "ERROR" (default: "INFO")
	Level string `mapstructure:"level"`
	// File is the log file path. Empty logs to stderr.
	File string `mapstructure:"file"`
}

// PathsConfig controls where pjnsync stores local state
type PathsConfig struct {
	// DataDir is the base directory for heartbeats and local state.
	// Supports ~ for home directory expansion.
	DataDir string `mapstructure:"data_dir"`
}

// ResolveDataDir returns the resolved data directory path, expanding ~ and
// falling back to ~/.pjnsync when unset.
func (p *PathsConfig) ResolveDataDir() string {
	path := p.DataDir
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".pjnsync"
		}
		return filepath.Join(home, ".pjnsync")
	}
	if path == "~" || len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// PollInterval returns the manager tick interval as a time.Duration
func (m *ManagerConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

// ToWorkerKindConfig converts the seed settings into the store document for
// the given kind.
func (k *KindSettings) ToWorkerKindConfig(kind model.WorkerKind) *model.WorkerKindConfig {
	return &model.WorkerKindConfig{
		Kind:             kind,
		Enabled:          k.Enabled,
		Scaling:          k.Scaling,
		Schedule:         k.Schedule,
		Health:           k.Health,
		QueuePollSeconds: k.QueuePollSeconds,
	}
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:                   "mongodb://localhost:27017",
			Database:              "pjnsync",
			ConnectTimeoutSeconds: 10,
		},
		Manager: ManagerConfig{
			PollIntervalSeconds:  30,
			RunsToKeep:           20,
			PruneIntervalMinutes: 60,
			WorkerBinary:         "",
			StateDir:             "",
		},
		Workers: WorkersConfig{
			Sync: KindSettings{
				Enabled: true,
				Scaling: model.ScalingConfig{
					MinInstances:       0,
					MaxInstances:       4,
					ScaleUpThreshold:   5,
					ScaleDownThreshold: 1,
					ScaleUpStep:        1,
					ScaleDownStep:      1,
					CooldownSeconds:    300,
				},
				Schedule: model.ScheduleConfig{
					Enabled: true,
					WorkingDays: []time.Weekday{
						time.Monday, time.Tuesday, time.Wednesday,
						time.Thursday, time.Friday,
					},
					WorkingHoursStart: 7,
					WorkingHoursEnd:   20,
					Timezone:          "America/Argentina/Buenos_Aires",
				},
				Health: model.HealthConfig{
					MaxProcessingMinutes: 120,
					MaxIdleMinutes:       30,
				},
				QueuePollSeconds: 30,
			},
			CausaCreation: KindSettings{
				Enabled: true,
				Scaling: model.ScalingConfig{
					MinInstances:       0,
					MaxInstances:       2,
					ScaleUpThreshold:   10,
					ScaleDownThreshold: 0,
					ScaleUpStep:        1,
					ScaleDownStep:      1,
					CooldownSeconds:    300,
				},
				Schedule: model.ScheduleConfig{
					Enabled: false,
				},
				Health: model.HealthConfig{
					MaxProcessingMinutes: 60,
					MaxIdleMinutes:       30,
				},
				QueuePollSeconds: 60,
			},
		},
		Sync:    worker.DefaultConfig(),
		Logging: LoggingConfig{Level: "INFO", File: ""},
		Paths:   PathsConfig{DataDir: ""},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Mongo defaults
	viper.SetDefault("mongo.uri", defaults.Mongo.URI)
	viper.SetDefault("mongo.database", defaults.Mongo.Database)
	viper.SetDefault("mongo.connect_timeout_seconds", defaults.Mongo.ConnectTimeoutSeconds)

	// Manager defaults
	viper.SetDefault("manager.poll_interval_seconds", defaults.Manager.PollIntervalSeconds)
	viper.SetDefault("manager.runs_to_keep", defaults.Manager.RunsToKeep)
	viper.SetDefault("manager.prune_interval_minutes", defaults.Manager.PruneIntervalMinutes)
	viper.SetDefault("manager.worker_binary", defaults.Manager.WorkerBinary)
	viper.SetDefault("manager.state_dir", defaults.Manager.StateDir)

	// Worker kind defaults
	setKindDefaults("workers.sync", defaults.Workers.Sync)
	setKindDefaults("workers.causa_creation", defaults.Workers.CausaCreation)

	// Sync worker defaults
	viper.SetDefault("sync.delay_between_causas", defaults.Sync.DelayBetweenCausas)
	viper.SetDefault("sync.delay_between_credentials", defaults.Sync.DelayBetweenCredentials)
	viper.SetDefault("sync.update_threshold_hours", defaults.Sync.UpdateThresholdHours)
	viper.SetDefault("sync.min_time_between_runs_minutes", defaults.Sync.MinTimeBetweenRunsMinutes)
	viper.SetDefault("sync.max_resume_attempts", defaults.Sync.MaxResumeAttempts)
	viper.SetDefault("sync.wait_for_causa_creation", defaults.Sync.WaitForCausaCreation)
	viper.SetDefault("sync.max_wait_minutes", defaults.Sync.MaxWaitMinutes)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)

	// Paths defaults
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
}

func setKindDefaults(prefix string, k KindSettings) {
	viper.SetDefault(prefix+".enabled", k.Enabled)
	viper.SetDefault(prefix+".scaling.min_instances", k.Scaling.MinInstances)
	viper.SetDefault(prefix+".scaling.max_instances", k.Scaling.MaxInstances)
	viper.SetDefault(prefix+".scaling.scale_up_threshold", k.Scaling.ScaleUpThreshold)
	viper.SetDefault(prefix+".scaling.scale_down_threshold", k.Scaling.ScaleDownThreshold)
	viper.SetDefault(prefix+".scaling.scale_up_step", k.Scaling.ScaleUpStep)
	viper.SetDefault(prefix+".scaling.scale_down_step", k.Scaling.ScaleDownStep)
	viper.SetDefault(prefix+".scaling.cooldown_seconds", k.Scaling.CooldownSeconds)
	viper.SetDefault(prefix+".schedule.enabled", k.Schedule.Enabled)
	viper.SetDefault(prefix+".schedule.working_days", k.Schedule.WorkingDays)
	viper.SetDefault(prefix+".schedule.working_hours_start", k.Schedule.WorkingHoursStart)
	viper.SetDefault(prefix+".schedule.working_hours_end", k.Schedule.WorkingHoursEnd)
	viper.SetDefault(prefix+".schedule.timezone", k.Schedule.Timezone)
	viper.SetDefault(prefix+".health.max_processing_minutes", k.Health.MaxProcessingMinutes)
	viper.SetDefault(prefix+".health.max_idle_minutes", k.Health.MaxIdleMinutes)
	viper.SetDefault(prefix+".queue_poll_seconds", k.QueuePollSeconds)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pjnsync")
	}
	// Fall back to ~/.config/pjnsync
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pjnsync"
	}
	return filepath.Join(home, ".config", "pjnsync")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
