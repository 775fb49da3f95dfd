package config

import (
	"time"
)

// Config is the root configuration for Corsair.
type Config struct {
	Core     CoreConfig     `mapstructure:"core" yaml:"core" validate:"required"`
	Evidence EvidenceConfig `mapstructure:"evidence" yaml:"evidence" validate:"required"`
	Plugins  PluginsConfig  `mapstructure:"plugins" yaml:"plugins"`
	Approval ApprovalConfig `mapstructure:"approval" yaml:"approval"`
	Database DBConfig       `mapstructure:"database" yaml:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	DataDir       string        `mapstructure:"data_dir" yaml:"data_dir"`
	Environment   string        `mapstructure:"environment" yaml:"environment"`
	ParallelLimit int           `mapstructure:"parallel_limit" yaml:"parallel_limit" validate:"min=1,max=100"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug         bool          `mapstructure:"debug" yaml:"debug"`
}

// EvidenceConfig controls the evidence chain's durable store.
type EvidenceConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" validate:"required"`
}

// PluginsConfig locates provider manifests.
type PluginsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ApprovalConfig configures the optional raid approval gate.
// MinSeverity is the vector severity at which approval is required.
type ApprovalConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MinSeverity string        `mapstructure:"min_severity" yaml:"min_severity" validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DBConfig contains mission-store database configuration.
type DBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"omitempty,min=1,max=100"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
	WALMode        bool          `mapstructure:"wal_mode" yaml:"wal_mode"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}
