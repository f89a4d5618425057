package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import engine packages to ensure engines are registered via init()
	_ "github.com/leapstack-labs/macroscope/pkg/engines/all"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "macroscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func validConfig() *Config {
	return &Config{
		Engine:       EngineConfig{Type: "rust"},
		Scheduler:    SchedulerConfig{MinInterval: DefaultMinInterval},
		UI:           UIConfig{Port: DefaultPort, WorkspaceTTL: DefaultWorkspaceTTL},
		Log:          LogConfig{Level: "warn", Format: "text"},
		OutputFormat: "auto",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "rust", cfg.Engine.Type)
	assert.False(t, cfg.Recursive)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.MinInterval)
	assert.Equal(t, 3000, cfg.UI.Port)
	assert.Equal(t, 30*time.Minute, cfg.UI.WorkspaceTTL)
	assert.Equal(t, "dracula", cfg.UI.Theme)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_PortEnv(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.UI.Port)
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `engine:
  type: starlark
  script: macros.star
  max_depth: 4
recursive: true
scheduler:
  min_interval: 1s
ui:
  theme: monokai
log:
  level: DEBUG
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
	assert.Equal(t, "starlark", cfg.Engine.Type)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "macros.star"), cfg.Engine.Script)
	assert.Equal(t, 4, cfg.Engine.MaxDepth)
	assert.True(t, cfg.Recursive)
	assert.Equal(t, time.Second, cfg.Scheduler.MinInterval)
	assert.Equal(t, "monokai", cfg.UI.Theme)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_FoundUpward(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "recursive: true\n")
	nested := filepath.Join(filepath.Dir(path), "src", "bin")
	require.NoError(t, os.MkdirAll(nested, 0750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.Recursive)
	assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "engine:\n  type: rust\nscheduler:\n  min_interval: 1s\n")

	t.Setenv("MACROSCOPE_ENGINE_TYPE", "exec")
	t.Setenv("MACROSCOPE_SCHEDULER_MIN_INTERVAL", "2s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("engine", "", "engine type")
	flags.Duration("min-interval", 0, "minimum interval")
	require.NoError(t, flags.Set("engine", "starlark"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "starlark", cfg.Engine.Type, "flag should override config file and env var")
	assert.Equal(t, 2*time.Second, cfg.Scheduler.MinInterval, "unset flag falls back to env")
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "ui:\n  session_secret: from_file\n")

	t.Setenv("MACROSCOPE_UI_SESSION_SECRET", "from_env")
	t.Setenv("MACROSCOPE_RECURSIVE", "true")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.UI.SessionSecret)
	assert.True(t, cfg.Recursive)
}

func TestLoadConfig_ScriptFlagRelativeToCWD(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "")
	cwd := t.TempDir()
	t.Chdir(cwd)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("script", "", "script")
	require.NoError(t, flags.Set("script", "local.star"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("local.star")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Engine.Script)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown engine", "engine:\n  type: cobol\n", "unknown engine type"},
		{"bad log level", "log:\n  level: loud\n", "invalid log.level"},
		{"zero interval", "scheduler:\n  min_interval: 0s\n", "min_interval"},
		{"malformed yaml", "engine: [\n", "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"MACROSCOPE_ENGINE_TYPE":            "engine.type",
		"MACROSCOPE_ENGINE_MAX_DEPTH":       "engine.max_depth",
		"MACROSCOPE_UI_WORKSPACE_TTL":       "ui.workspace_ttl",
		"MACROSCOPE_SCHEDULER_MIN_INTERVAL": "scheduler.min_interval",
		"MACROSCOPE_LOG_LEVEL":              "log.level",
		"MACROSCOPE_RECURSIVE":              "recursive",
		"MACROSCOPE_OUTPUT":                 "output",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("bad output", func(t *testing.T) {
		cfg := validConfig()
		cfg.OutputFormat = "yaml"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid output")
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := validConfig()
		cfg.UI.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing script", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.Script = filepath.Join(t.TempDir(), "missing.star")
		err := cfg.ValidateScript()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Hint:")
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := validConfig()
		logger := NewLogger(cfg, &buf)
		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("verbose forces debug", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := validConfig()
		cfg.Verbose = true
		NewLogger(cfg, &buf).Debug("details")
		assert.Contains(t, buf.String(), "details")
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := validConfig()
		cfg.Log.Format = "json"
		NewLogger(cfg, &buf).Warn("structured", "key", "value")
		assert.Contains(t, buf.String(), `"key":"value"`)
	})
}
