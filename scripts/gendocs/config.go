package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/macroscope/internal/cli/config"
	"github.com/leapstack-labs/macroscope/pkg/engine"
	_ "github.com/leapstack-labs/macroscope/pkg/engines/all" // register engines
)

// ConfigField describes one configuration key.
type ConfigField struct {
	Key         string
	Type        string
	Default     string
	Description string
}

// configSchema lists the keys read by internal/cli/config.
func configSchema() []ConfigField {
	return []ConfigField{
		{Key: "engine.type", Type: "string", Default: config.DefaultEngine, Description: "Registered engine name"},
		{Key: "engine.script", Type: "string", Description: "Starlark script for the starlark engine, relative to the project root"},
		{Key: "engine.command", Type: "[]string", Description: "Command line for the exec engine"},
		{Key: "engine.max_depth", Type: "int", Description: "Recursive expansion depth bound; 0 uses the engine default"},
		{Key: "recursive", Type: "bool", Default: "false", Description: "Expand macros found inside expansions"},
		{Key: "scheduler.min_interval", Type: "duration", Default: config.DefaultMinInterval.String(), Description: "Minimum time between the starts of two renders"},
		{Key: "ui.port", Type: "int", Default: strconv.Itoa(config.DefaultPort), Description: "Playground port; `PORT` overrides the default"},
		{Key: "ui.auto_open", Type: "bool", Default: "true", Description: "Open a browser when the playground starts"},
		{Key: "ui.session_secret", Type: "string", Description: "Cookie signing secret for playground sessions"},
		{Key: "ui.workspace_ttl", Type: "duration", Default: config.DefaultWorkspaceTTL.String(), Description: "Idle time after which a playground workspace is dropped"},
		{Key: "ui.theme", Type: "string", Default: config.DefaultTheme, Description: "Chroma style for highlighting"},
		{Key: "log.level", Type: "string", Default: config.DefaultLogLevel, Description: "debug, info, warn or error"},
		{Key: "log.format", Type: "string", Default: config.DefaultLogFormat, Description: "text or json"},
		{Key: "output", Type: "string", Default: config.DefaultOutput, Description: "auto, text, markdown or json"},
		{Key: "verbose", Type: "bool", Default: "false", Description: "Debug logging"},
	}
}

// envName returns the environment variable for a config key.
func envName(key string) string {
	return config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// generateConfigDocs writes the configuration and engine reference pages.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := generateConfigurationDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate configuration.md: %w", err)
	}
	log.Printf("  Generated configuration.md")

	if err := generateEnginesDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate engines.md: %w", err)
	}
	log.Printf("  Generated engines.md")

	return nil
}

func generateConfigurationDoc(outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Configuration", "Macroscope configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("Macroscope reads `macroscope.yaml` (or `macroscope.yml`) from the working directory or the nearest parent that has one.")

	rows := make([][]string, 0, len(configSchema()))
	for _, f := range configSchema() {
		def := "-"
		if f.Default != "" {
			def = InlineCode(f.Default)
		}
		rows = append(rows, []string{InlineCode(f.Key), f.Type, def, f.Description})
	}
	w.Table([]string{"Key", "Type", "Default", "Description"}, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `engine:
  type: starlark
  script: macros.star
recursive: true
scheduler:
  min_interval: 250ms
ui:
  port: 3000
  theme: dracula
log:
  level: info`)

	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}

func generateEnginesDoc(outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Engines", "Built-in macro engines")
	w.GeneratedMarker()

	w.Header(1, "Engines")
	w.Paragraph("An engine turns the buffer into a syntax tree and a list of macro expansions. Select one with `engine.type` or `--engine`.")

	var rows [][]string
	for _, info := range engine.Describe() {
		rows = append(rows, []string{InlineCode(info.Name), info.Protocol, info.Description})
	}
	w.Table([]string{"Engine", "Protocol", "Description"}, rows)

	return os.WriteFile(filepath.Join(outDir, "engines.md"), w.Bytes(), 0600)
}
