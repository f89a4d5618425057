package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/cli/config"
	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/internal/cli/testutil"
	coretestutil "github.com/leapstack-labs/macroscope/internal/testutil"
)

// newTestContext builds a CommandContext around a stub engine.
func newTestContext(t *testing.T, r *output.Renderer) (*CommandContext, *coretestutil.StubEngine) {
	t.Helper()
	logger := coretestutil.NewTestLogger(t)
	eng := coretestutil.NewStubEngine()
	return &CommandContext{
		Cfg: &config.Config{
			Engine:    config.EngineConfig{Type: config.DefaultEngine},
			Scheduler: config.SchedulerConfig{MinInterval: config.DefaultMinInterval},
		},
		Logger:   logger,
		Adapter:  adapter.New(eng, logger),
		Renderer: r,
	}, eng
}

func TestCommandConstructors(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewServeCommand(), "serve", []string{"port", "no-browser", "watch", "dev"}},
		{NewLSPCommand(), "lsp", nil},
		{NewEditCommand(), "edit [file]", nil},
		{NewWatchCommand(), "watch <file>", []string{"section"}},
		{NewREPLCommand(), "repl", nil},
		{NewExpandCommand(), "expand [file|-]", []string{"section", "expr"}},
		{NewEnginesCommand(), "engines", nil},
		{NewDoctorCommand(), "doctor", nil},
		{NewInitCommand(), "init [directory]", []string{"force"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestServeCommand_UIAlias(t *testing.T) {
	assert.Contains(t, NewServeCommand().Aliases, "ui")
}

func TestReadSource(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")
	file := filepath.Join(dir, "main.rs")

	newCmd := func(stdin string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.SetIn(strings.NewReader(stdin))
		return cmd
	}

	t.Run("inline", func(t *testing.T) {
		text, err := readSource(newCmd(""), nil, "two!()")
		require.NoError(t, err)
		assert.Equal(t, "two!()", text)
	})

	t.Run("inline with file", func(t *testing.T) {
		_, err := readSource(newCmd(""), []string{file}, "two!()")
		require.Error(t, err)
	})

	t.Run("file", func(t *testing.T) {
		text, err := readSource(newCmd(""), []string{file}, "")
		require.NoError(t, err)
		assert.Equal(t, testutil.SampleSource, text)
	})

	t.Run("stdin dash", func(t *testing.T) {
		text, err := readSource(newCmd("from stdin"), []string{"-"}, "")
		require.NoError(t, err)
		assert.Equal(t, "from stdin", text)
	})

	t.Run("stdin default", func(t *testing.T) {
		text, err := readSource(newCmd("piped"), nil, "")
		require.NoError(t, err)
		assert.Equal(t, "piped", text)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readSource(newCmd(""), []string{filepath.Join(dir, "nope.rs")}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope.rs")
	})
}

func TestExpandCommand_Stdin(t *testing.T) {
	t.Cleanup(config.ResetConfig)

	cmd := NewExpandCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(testutil.SampleSource))
	cmd.SetArgs([]string{"--section", "expansions"})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "## Expansions")
	assert.Contains(t, out, "square!(3)")
	testutil.AssertValidMarkdown(t, out)
}

func TestExpandCommand_UnknownSection(t *testing.T) {
	t.Cleanup(config.ResetConfig)

	cmd := NewExpandCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--expr", "fn main() {}", "--section", "bogus"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown section")
}

func TestCompleteSections(t *testing.T) {
	got, directive := completeSections(nil, nil, "")
	assert.Equal(t, output.AllSections, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestListEngines(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeJSON, false)
		require.NoError(t, listEngines(tr.Renderer, "starlark"))

		out := tr.Output()
		assert.Contains(t, out, `"name": "starlark"`)
		assert.Contains(t, out, `"selected": true`)
		assert.Contains(t, out, `"name": "rust"`)
	})

	t.Run("table", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeText, false)
		require.NoError(t, listEngines(tr.Renderer, "rust"))

		out := tr.Output()
		assert.Contains(t, out, "Engine")
		assert.Contains(t, out, "exec")
		assert.Contains(t, out, "starlark")
	})
}

func TestNewVersionCommand(t *testing.T) {
	for _, version := range []string{"0.1.0", "1.2.3", "dev"} {
		t.Run(version, func(t *testing.T) {
			cmd := NewVersionCommand(version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			require.NoError(t, cmd.Execute())

			out := buf.String()
			assert.Contains(t, out, "Macroscope v"+version)
			assert.Contains(t, out, "Engines:")
			assert.Contains(t, out, "rust")
		})
	}
}
