package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/pkg/engine"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display Macroscope version, Go runtime and the registered engines.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Macroscope v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Macro expansion explorer built with %s\n", runtime.Version())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Engines: %s\n", strings.Join(engine.List(), ", "))
		},
	}
}
