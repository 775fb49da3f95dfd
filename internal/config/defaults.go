package config

import (
	"path/filepath"
	"time"
)

// DefaultConfig returns the baseline configuration rooted at dataDir.
// Loaded files override these values field by field.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		Core: CoreConfig{
			DataDir:       dataDir,
			Environment:   "development",
			ParallelLimit: 8,
			Timeout:       5 * time.Minute,
		},
		Evidence: EvidenceConfig{
			Dir: filepath.Join(dataDir, "evidence"),
		},
		Plugins: PluginsConfig{
			Dir: filepath.Join(dataDir, "plugins"),
		},
		Approval: ApprovalConfig{
			Enabled:     false,
			MinSeverity: "HIGH",
			Timeout:     30 * time.Second,
		},
		Database: DBConfig{
			Path:           filepath.Join(dataDir, "corsair.db"),
			MaxConnections: 10,
			BusyTimeout:    5 * time.Second,
			WALMode:        true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
