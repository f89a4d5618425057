// Package config provides shared configuration types for Macroscope.
// This package is decoupled from CLI concerns and can be used by the LSP
// and other tools that need to load project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

// SchedulerConfig holds render rate limiting.
type SchedulerConfig struct {
	MinInterval time.Duration `koanf:"min_interval"`
}

// ProjectConfig holds the minimal project configuration needed by tools like the LSP.
// This is a subset of the full CLI Config.
type ProjectConfig struct {
	Engine    core.EngineConfig `koanf:"engine"`
	Recursive bool              `koanf:"recursive"`
	Scheduler SchedulerConfig   `koanf:"scheduler"`
}

// ApplyDefaults fills unset fields.
func (c *ProjectConfig) ApplyDefaults() {
	ApplyEngineDefaults(&c.Engine)
	if c.Scheduler.MinInterval == 0 {
		c.Scheduler.MinInterval = DefaultMinInterval
	}
}

// Validate checks the engine selection and scheduler settings.
func (c *ProjectConfig) Validate() error {
	if err := ValidateEngine(&c.Engine); err != nil {
		return err
	}
	if c.Scheduler.MinInterval <= 0 {
		return fmt.Errorf("scheduler.min_interval must be positive, got %s", c.Scheduler.MinInterval)
	}
	return nil
}

// ValidateEngine checks that the engine type is registered and that its
// depth bound is usable. The engine registry is the single source of truth.
func ValidateEngine(e *core.EngineConfig) error {
	if e.Type == "" {
		return fmt.Errorf("engine type is required")
	}
	if !engine.IsRegistered(strings.ToLower(e.Type)) {
		return &engine.UnknownEngineError{
			Type:      e.Type,
			Available: engine.List(),
		}
	}
	if e.MaxDepth < 0 {
		return fmt.Errorf("engine.max_depth must not be negative, got %d", e.MaxDepth)
	}
	return nil
}

// ResolveEnginePaths makes a relative engine script path absolute against
// the project root.
func ResolveEnginePaths(e *core.EngineConfig, root string) {
	if e.Script == "" || filepath.IsAbs(e.Script) || root == "" {
		return
	}
	e.Script = filepath.Join(root, e.Script)
}

// CheckScript reports a missing engine script before the engine tries to
// load it.
func CheckScript(e *core.EngineConfig) error {
	if e.Script == "" {
		return nil
	}
	if _, err := os.Stat(e.Script); err != nil {
		return fmt.Errorf("engine script not found: %s\nHint: Check engine.script in %s or pass --script", e.Script, ConfigFileName)
	}
	return nil
}
