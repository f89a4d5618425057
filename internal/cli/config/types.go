// Package config provides configuration management for the Macroscope CLI.
//
// This package extends the shared configuration types from internal/config
// with CLI-specific fields and functionality.
package config

import (
	"time"

	intconfig "github.com/leapstack-labs/macroscope/internal/config"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

// EngineConfig is an alias for the shared engine configuration.
// This allows CLI code to use config.EngineConfig without importing pkg/core.
type EngineConfig = core.EngineConfig

// SchedulerConfig is an alias for the shared scheduler configuration.
type SchedulerConfig = intconfig.SchedulerConfig

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port          int           `koanf:"port"`
	AutoOpen      bool          `koanf:"auto_open"`
	SessionSecret string        `koanf:"session_secret"`
	WorkspaceTTL  time.Duration `koanf:"workspace_ttl"`
	Theme         string        `koanf:"theme"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config holds all CLI configuration options.
type Config struct {
	Engine       EngineConfig    `koanf:"engine"`
	Recursive    bool            `koanf:"recursive"`
	Scheduler    SchedulerConfig `koanf:"scheduler"`
	UI           UIConfig        `koanf:"ui"`
	Log          LogConfig       `koanf:"log"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// Project returns the subset shared with the LSP server.
func (c *Config) Project() *intconfig.ProjectConfig {
	return &intconfig.ProjectConfig{
		Engine:    c.Engine,
		Recursive: c.Recursive,
		Scheduler: c.Scheduler,
	}
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultEngine       = intconfig.DefaultEngine
	DefaultMinInterval  = intconfig.DefaultMinInterval
	DefaultPort         = intconfig.DefaultPort
	DefaultTheme        = intconfig.DefaultTheme
	DefaultWorkspaceTTL = intconfig.DefaultWorkspaceTTL
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "text"
	DefaultOutput       = "auto"                                       // Auto-detect: TTY=text, non-TTY=markdown
	DefaultSecret       = "macroscope-dev-secret-change-in-production" //nolint:gosec
)
