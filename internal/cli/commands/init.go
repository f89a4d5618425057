package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/macroscope/internal/cli/config"
	"github.com/leapstack-labs/macroscope/internal/cli/output"
	intconfig "github.com/leapstack-labs/macroscope/internal/config"
	starlarkengine "github.com/leapstack-labs/macroscope/pkg/engines/starlark"
)

// starlarkScriptName is the script written for the starlark engine.
const starlarkScriptName = "macros.star"

// InitOptions holds options for the init command.
type InitOptions struct {
	Force     bool
	Engine    string
	Recursive bool
}

// projectFile is the macroscope.yaml written by init.
type projectFile struct {
	Engine    projectEngine    `yaml:"engine"`
	Recursive bool             `yaml:"recursive"`
	Scheduler projectScheduler `yaml:"scheduler"`
	UI        projectUI        `yaml:"ui"`
	Log       projectLog       `yaml:"log"`
}

type projectEngine struct {
	Type   string `yaml:"type"`
	Script string `yaml:"script,omitempty"`
}

type projectScheduler struct {
	MinInterval string `yaml:"min_interval"`
}

type projectUI struct {
	Port  int    `yaml:"port"`
	Theme string `yaml:"theme"`
}

type projectLog struct {
	Level string `yaml:"level"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new Macroscope project",
		Long: `Initialize a project with a configuration file and an example source.

This creates:
  - macroscope.yaml configuration file
  - src/main.rs with a few macro_rules! definitions and calls
  - .gitignore
  - macros.star when the starlark engine is selected`,
		Example: `  # Initialize in current directory
  macroscope init

  # Initialize a starlark project in a new directory
  macroscope init my-macros --engine starlark

  # Force overwrite existing files
  macroscope init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cc := NewCommandContextWithoutEngine(cmd)
			if cmd.Flags().Changed("engine") {
				opts.Engine = cc.Cfg.Engine.Type
			}
			if cmd.Flags().Changed("recursive") {
				opts.Recursive = cc.Cfg.Recursive
			}
			return runInit(cc.Renderer, dir, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(r *output.Renderer, dir string, opts *InitOptions) error {
	if opts.Engine == "" {
		opts.Engine = config.DefaultEngine
	}
	engineCfg := config.EngineConfig{Type: opts.Engine}
	if err := intconfig.ValidateEngine(&engineCfg); err != nil {
		return err
	}

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, intconfig.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", intconfig.ConfigFileName)
	}

	data, err := yaml.Marshal(newProjectFile(opts))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	r.StatusLine(intconfig.ConfigFileName, "success", "")

	if opts.Engine == starlarkengine.Name {
		scriptPath := filepath.Join(dir, starlarkScriptName)
		if _, err := os.Stat(scriptPath); err == nil && !opts.Force {
			r.StatusLine(starlarkScriptName, "skipped", "exists")
		} else {
			if err := os.WriteFile(scriptPath, starlarkengine.DemoScript(), 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", scriptPath, err)
			}
			r.StatusLine(starlarkScriptName, "success", "")
		}
	}

	written, skipped, err := copyTemplate("example", dir, opts.Force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	for _, f := range written {
		r.StatusLine(f, "success", "")
	}
	for _, f := range skipped {
		r.StatusLine(f, "skipped", "exists")
	}

	r.Println("")
	r.Success("Macroscope project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Run 'macroscope expand src/main.rs' to see the expansions")
	r.Println("  2. Run 'macroscope edit src/main.rs' to edit with live expansions")
	r.Println("  3. Run 'macroscope serve' to open the web playground")

	return nil
}

func newProjectFile(opts *InitOptions) projectFile {
	pf := projectFile{
		Engine:    projectEngine{Type: opts.Engine},
		Recursive: opts.Recursive,
		Scheduler: projectScheduler{MinInterval: config.DefaultMinInterval.String()},
		UI:        projectUI{Port: config.DefaultPort, Theme: config.DefaultTheme},
		Log:       projectLog{Level: config.DefaultLogLevel},
	}
	if opts.Engine == starlarkengine.Name {
		pf.Engine.Script = starlarkScriptName
	}
	return pf
}
