package config

import (
	"fmt"
	"slices"

	intconfig "github.com/leapstack-labs/macroscope/internal/config"
)

var (
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"text", "json"}
	outputModes = []string{"auto", "text", "markdown", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Project().Validate(); err != nil {
		return err
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("invalid log.level %q\nHint: use one of %v", c.Log.Level, logLevels)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("invalid log.format %q\nHint: use one of %v", c.Log.Format, logFormats)
	}
	if !slices.Contains(outputModes, c.OutputFormat) {
		return fmt.Errorf("invalid output %q\nHint: use one of %v", c.OutputFormat, outputModes)
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port out of range: %d", c.UI.Port)
	}
	if c.UI.WorkspaceTTL <= 0 {
		return fmt.Errorf("ui.workspace_ttl must be positive, got %s", c.UI.WorkspaceTTL)
	}
	return nil
}

// ValidateScript checks that a configured Starlark script exists.
func (c *Config) ValidateScript() error {
	return intconfig.CheckScript(&c.Engine)
}
