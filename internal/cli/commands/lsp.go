package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. Every open
document gets its own render pipeline; after each render the server
sends a macroscope/didRender notification and publishes diagnostics.

The engine is read from macroscope.yaml in the client's root folder
(rootUri). Engine flags given on the command line take precedence.`,
		Example: `  # Start LSP server (usually called by an editor)
  macroscope lsp

  # Force the starlark engine with a script
  macroscope lsp --engine starlark --script macros.star`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command) error {
	cc := NewCommandContextWithoutEngine(cmd)

	opts := lsp.Options{
		Scheduler: cc.Scheduler(),
		Recursive: cc.Cfg.Recursive,
		Logger:    cc.Logger,
	}

	// Without engine flags the server loads the client's project config.
	flags := cmd.Flags()
	if flags.Changed("engine") || flags.Changed("script") || flags.Changed("command") || flags.Changed("config") {
		a, err := createAdapter(cc.Cfg, cc.Logger)
		if err != nil {
			return err
		}
		opts.Adapter = a
	} else if !flags.Changed("min-interval") {
		opts.Scheduler.MinInterval = 0
	}

	server := lsp.NewServer(os.Stdin, os.Stdout, opts)
	return server.Run()
}
