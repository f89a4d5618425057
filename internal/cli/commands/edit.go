package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/tui"
)

// NewEditCommand creates the edit command.
func NewEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [file]",
		Short: "Edit a file in the terminal with live expansions",
		Long: `Open a terminal editor with the syntax tree, expansions and macro
definitions shown beside the text.

Keys:
  ctrl+r   toggle recursive expansion
  ctrl+t   next panel
  ctrl+s   save the file
  esc      quit

Without a file the buffer is a scratch buffer that cannot be saved.
A file that does not exist yet is created on save.`,
		Example: `  # Edit a source file
  macroscope edit src/main.rs

  # Scratch buffer with recursion on
  macroscope edit --recursive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runEdit(cmd, path)
		},
	}

	return cmd
}

func runEdit(cmd *cobra.Command, path string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	var source string
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // user-selected file
		switch {
		case err == nil:
			source = string(data)
		case errors.Is(err, fs.ErrNotExist):
			cc.Logger.Debug("editing new file", "file", path)
		default:
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return tui.Run(cmd.Context(), tui.Options{
		Adapter:   cc.Adapter,
		Scheduler: cc.Scheduler(),
		Path:      path,
		Source:    source,
		Recursive: cc.Cfg.Recursive,
		Theme:     cc.Cfg.UI.Theme,
		Logger:    cc.Logger,
	})
}
