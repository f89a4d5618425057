package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanExample(t *testing.T) {
	in := "  # Expand a file\n  macroscope expand main.rs\n\n    --recursive"
	assert.Equal(t, "# Expand a file\nmacroscope expand main.rs\n\n  --recursive", cleanExample(in))
}

func TestMarkdownWriter_TableEscapesPipes(t *testing.T) {
	w := NewMarkdownWriter()
	w.Table([]string{"A", "B"}, [][]string{{"x|y", "z"}})
	assert.Equal(t, "| A | B |\n| --- | --- |\n| x\\|y | z |\n\n", string(w.Bytes()))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "MACROSCOPE_SCHEDULER_MIN_INTERVAL", envName("scheduler.min_interval"))
	assert.Equal(t, "MACROSCOPE_RECURSIVE", envName("recursive"))
}

func TestGenerateDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(filepath.Join(dir, "cli")))
	require.NoError(t, generateConfigDocs(filepath.Join(dir, "reference")))

	index, err := os.ReadFile(filepath.Join(dir, "cli", "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "[`expand`](/cli/expand)")
	assert.Contains(t, string(index), "MACROSCOPE_ENGINE_TYPE")

	for _, name := range []string{"expand.md", "serve.md", "repl.md"} {
		assert.FileExists(t, filepath.Join(dir, "cli", name))
	}

	engines, err := os.ReadFile(filepath.Join(dir, "reference", "engines.md"))
	require.NoError(t, err)
	assert.Contains(t, string(engines), "`rust`")
	assert.Contains(t, string(engines), "`starlark`")
}
