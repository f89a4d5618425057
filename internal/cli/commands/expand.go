package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

// ExpandOptions holds options for the expand command.
type ExpandOptions struct {
	Sections []string
	Text     string
}

// NewExpandCommand creates the expand command.
func NewExpandCommand() *cobra.Command {
	opts := &ExpandOptions{}

	cmd := &cobra.Command{
		Use:   "expand [file|-]",
		Short: "Expand the macros of a file once and print the result",
		Long: `Parse a file once and print its syntax tree, expansion tree and
macro definitions.

Reads standard input when the file is "-" or omitted. Output follows
--output: styled text on a terminal, markdown when piped, or json.`,
		Example: `  # Expand a file
  macroscope expand src/main.rs

  # Recursive expansion tree only, as JSON
  macroscope expand src/main.rs --recursive --section expansions -o json

  # Expand inline text
  macroscope expand -e 'macro_rules! two { () => { 2 }; } fn f() { two!() }'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Sections, "section", "s", nil, "Sections to print (syntax, expansions, rules)")
	cmd.Flags().StringVarP(&opts.Text, "expr", "e", "", "Expand this text instead of a file")
	_ = cmd.RegisterFlagCompletionFunc("section", completeSections)

	return cmd
}

func runExpand(cmd *cobra.Command, args []string, opts *ExpandOptions) error {
	text, err := readSource(cmd, args, opts.Text)
	if err != nil {
		return err
	}

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	req := core.ParseRequest{Text: text, Recursive: cc.Cfg.Recursive}
	result, err := cc.Adapter.ParseRequest(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("expansion failed: %w", err)
	}

	return cc.Renderer.ParseResult(output.ResultView{
		Engine:    cc.Adapter.Engine().Name(),
		Recursive: req.Recursive,
		Result:    result,
		Nodes:     expansion.BuildAll(result.Calls),
	}, opts.Sections...)
}

// readSource returns inline text, the named file, or standard input.
func readSource(cmd *cobra.Command, args []string, inline string) (string, error) {
	if inline != "" {
		if len(args) > 0 {
			return "", errors.New("--expr cannot be combined with a file argument")
		}
		return inline, nil
	}

	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

func completeSections(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return output.AllSections, cobra.ShellCompDirectiveNoFileComp
}
