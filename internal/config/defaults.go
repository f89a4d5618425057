package config

import (
	"strings"
	"time"

	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

// Default configuration values.
const (
	DefaultEngine       = "rust"
	DefaultMinInterval  = scheduler.DefaultMinInterval
	DefaultPort         = 3000
	DefaultTheme        = "dracula"
	DefaultWorkspaceTTL = 30 * time.Minute
)

// ApplyEngineDefaults applies default values to an EngineConfig.
func ApplyEngineDefaults(e *core.EngineConfig) {
	if e == nil {
		return
	}
	if e.Type == "" {
		e.Type = DefaultEngine
	}
	e.Type = strings.ToLower(e.Type)
}
