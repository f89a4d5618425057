package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/cli/config"
	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/pkg/engine"
	_ "github.com/leapstack-labs/macroscope/pkg/engines/all" // register engines
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Adapter  *adapter.Adapter
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the configured engine
// behind a parse adapter.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cc := NewCommandContextWithoutEngine(cmd)

	a, err := createAdapter(cc.Cfg, cc.Logger)
	if err != nil {
		return nil, err
	}
	cc.Adapter = a
	return cc, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only read configuration.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: newRenderer(cmd, cfg),
	}
}

// Scheduler returns the render scheduler settings.
func (c *CommandContext) Scheduler() scheduler.Config {
	return scheduler.Config{
		MinInterval: c.Cfg.Scheduler.MinInterval,
		Logger:      c.Logger,
	}
}

// getConfig returns the current configuration, loading it without flags
// when the root command has not run.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	if cfg, err := config.LoadConfig("", nil); err == nil {
		return cfg
	}

	cfg := &config.Config{
		Engine:       config.EngineConfig{Type: config.DefaultEngine},
		Scheduler:    config.SchedulerConfig{MinInterval: config.DefaultMinInterval},
		UI:           config.UIConfig{Port: config.DefaultPort, Theme: config.DefaultTheme},
		Log:          config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
		OutputFormat: config.DefaultOutput,
	}
	return cfg
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	r.SetTheme(cfg.UI.Theme)
	return r
}

func createAdapter(cfg *config.Config, logger *slog.Logger) (*adapter.Adapter, error) {
	if err := cfg.ValidateScript(); err != nil {
		return nil, err
	}
	eng, err := engine.New(cfg.Engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	logger.Debug("engine ready", "engine", eng.Name())
	return adapter.New(eng, logger), nil
}
