package commands

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/ui"
	"github.com/leapstack-labs/macroscope/internal/ui/features/playground"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port      int
	NoBrowser bool
	Watch     string
	Dev       bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Start the web playground",
		Long: `Start a local web server with the macro expansion playground.

Each browser session gets its own editor buffer. Edits are rendered at
most once per scheduler interval and pushed to the page over SSE:
- syntax tree of the buffer
- expansion tree of every macro call
- macro_rules definitions found in the buffer`,
		Example: `  # Start the playground on the default port
  macroscope serve

  # Start on a custom port without opening a browser
  macroscope serve --port 8080 --no-browser

  # Seed sessions from a file and reload it on every save
  macroscope serve --watch src/main.rs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: ui.port or $PORT)")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().StringVar(&opts.Watch, "watch", "", "Source file loaded into sessions and reloaded on change")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Serve static assets from disk")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cc.Cfg

	// CLI flags override config file
	port := cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	autoOpen := cfg.UI.AutoOpen && !opts.NoBrowser

	server, err := ui.NewServer(ui.Config{
		Playground: playground.Options{
			Adapter:   cc.Adapter,
			Scheduler: cc.Scheduler(),
			Recursive: cfg.Recursive,
			TTL:       cfg.UI.WorkspaceTTL,
			Logger:    cc.Logger,
		},
		Port:          port,
		SessionSecret: cfg.UI.SessionSecret,
		Theme:         cfg.UI.Theme,
		IsDev:         opts.Dev,
		Logger:        cc.Logger,
		WatchFile:     opts.Watch,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	if autoOpen {
		go openBrowser(url)
	}

	cc.Renderer.Println(fmt.Sprintf("Starting playground on %s (engine: %s)", url, cfg.Engine.Type))
	cc.Renderer.Muted("Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	cmd.Stdout, cmd.Stderr = os.Stderr, os.Stderr
	_ = cmd.Start()
}
