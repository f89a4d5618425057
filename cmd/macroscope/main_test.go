// Package main provides tests for the Macroscope CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/macroscope/internal/cli"
	"github.com/leapstack-labs/macroscope/internal/cli/config"
	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/internal/cli/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Macroscope")
	assert.Contains(t, out, "rust")
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, expected := range []string{"serve", "lsp", "edit", "watch", "repl", "expand", "engines", "doctor", "init"} {
		assert.Contains(t, out, expected)
	}
}

func TestExpandCommandJSON(t *testing.T) {
	dir := testutil.SetupTestProject(t, "engine:\n  type: rust\n")

	out, err := execute(t,
		"expand", filepath.Join(dir, "main.rs"),
		"--config", filepath.Join(dir, "macroscope.yaml"),
		"-o", "json",
	)
	require.NoError(t, err)

	var result output.ExpandOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, "rust", result.Engine)
	require.Len(t, result.Tree, 2)
	assert.Contains(t, result.Tree[0].Header, "square!(3)")
	require.Len(t, result.MacroRules, 1)
	assert.Contains(t, result.MacroRules[0], "square")
}

func TestExpandCommandSections(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")

	out, err := execute(t,
		"expand", filepath.Join(dir, "main.rs"),
		"--section", "rules",
		"-o", "markdown",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "## Rules")
	assert.NotContains(t, out, "## Syntax")
	testutil.AssertValidMarkdown(t, out)
}

func TestExpandCommandMissingFile(t *testing.T) {
	_, err := execute(t, "expand", filepath.Join(t.TempDir(), "missing.rs"))
	require.Error(t, err)
}

func TestEnginesCommand(t *testing.T) {
	out, err := execute(t, "engines", "-o", "json")
	require.NoError(t, err)

	var engines []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &engines), out)

	names := make([]string, 0, len(engines))
	for _, e := range engines {
		names = append(names, e["name"].(string))
	}
	assert.ElementsMatch(t, []string{"exec", "rust", "starlark"}, names)
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	_, err := execute(t, "init", dir, "-o", "text")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "macroscope.yaml"))
	assert.FileExists(t, filepath.Join(dir, "src", "main.rs"))

	_, err = execute(t, "init", dir)
	require.Error(t, err, "init refuses to overwrite without --force")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(t, "completion", shell)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "unknown-command")
	require.Error(t, err)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
