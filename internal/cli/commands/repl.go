package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/internal/pipeline"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/internal/tabs"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

const replPrompt = "macroscope> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Build up a source buffer line by line",
		Long: `Start an interactive session. Every line you enter is appended to the
buffer and the active panel is printed after the next render.

Lines starting with "." are commands; type .help to list them.`,
		Example: `  macroscope repl
  macroscope repl --recursive --engine starlark --script macros.star`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}

	return cmd
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	historyDir := filepath.Join(cc.Cfg.ProjectRoot, ".macroscope")
	if err := os.MkdirAll(historyDir, 0o750); err != nil {
		cc.Logger.Debug("history disabled", "error", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(historyDir, "repl_history"),
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := output.NewRendererWithTTY(rl.Stdout(), rl.Stderr(), cc.Renderer.IsTTY(), output.Mode(cc.Cfg.OutputFormat))
	r.SetTheme(cc.Cfg.UI.Theme)

	s, err := newREPLSession(cc, r, cc.Scheduler())
	if err != nil {
		return err
	}
	defer s.close()

	_, _ = fmt.Fprintf(rl.Stdout(), "Macroscope REPL (engine: %s)\n", cc.Adapter.Engine().Name())
	_, _ = fmt.Fprintln(rl.Stdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(rl.Stdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if s.handleLine(line) {
			break
		}
	}
	return nil
}

// replSession is the buffer and pipeline behind the REPL prompt.
type replSession struct {
	r         *output.Renderer
	engine    string
	buffer    *pipeline.TextBuffer
	recursive *pipeline.Flag
	tabs      *tabs.Controller
	view      *pipeline.Snapshot
	pipeline  *pipeline.Pipeline

	printMu sync.Mutex
}

func newREPLSession(cc *CommandContext, r *output.Renderer, sched scheduler.Config) (*replSession, error) {
	s := &replSession{
		r:         r,
		engine:    cc.Adapter.Engine().Name(),
		buffer:    pipeline.NewTextBuffer(""),
		recursive: pipeline.NewFlag(cc.Cfg.Recursive),
		tabs:      tabs.New(tabs.Expansions, tabs.Syntax, tabs.Rules),
		view:      &pipeline.Snapshot{},
	}
	s.view.OnChange = s.show

	p, err := pipeline.New(pipeline.Context{
		Editor:    s.buffer,
		Recursive: s.recursive,
		Syntax:    s.view,
		Panel:     s.view,
		Rules:     s.view,
		Errors:    s.view,
		Logger:    cc.Logger,
	}, cc.Adapter, sched)
	if err != nil {
		return nil, err
	}
	s.pipeline = p
	return s, nil
}

func (s *replSession) close() {
	s.pipeline.Close()
}

// handleLine applies one line of input. It reports whether the session
// should end.
func (s *replSession) handleLine(line string) bool {
	if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, ".") {
		return s.handleDotCommand(trimmed)
	}
	s.buffer.Append(line + "\n")
	s.pipeline.Notify()
	return false
}

func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Writer())

	case ".recursive":
		on := !s.recursive.Checked()
		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "on", "true":
				on = true
			case "off", "false":
				on = false
			default:
				s.r.Error("Usage: .recursive [on|off]")
				return false
			}
		}
		if s.recursive.Set(on) {
			s.pipeline.Notify()
		}
		s.r.Muted(fmt.Sprintf("recursive expansion %s", onOff(on)))

	case ".tab":
		if len(parts) < 2 {
			s.r.Error(fmt.Sprintf("Usage: .tab <%s>", strings.Join(s.tabs.Tabs(), "|")))
			return false
		}
		if err := s.tabs.Activate(strings.ToLower(parts[1])); err != nil {
			s.r.Error(err.Error())
			return false
		}
		s.show()

	case ".show":
		s.show()

	case ".buffer":
		s.r.Println(s.r.Code(s.buffer.Value()))

	case ".clear":
		if s.buffer.Set("") {
			s.pipeline.Notify()
		}
		s.r.Muted("buffer cleared")

	default:
		s.r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

// show prints the active panel of the latest render, or the error that
// replaced it.
func (s *replSession) show() {
	s.printMu.Lock()
	defer s.printMu.Unlock()

	if err := s.view.Err(); err != nil {
		s.r.Error(err.Error())
		return
	}
	err := s.r.ParseResult(output.ResultView{
		Engine:    s.engine,
		Recursive: s.recursive.Checked(),
		Result:    &core.ParseResult{SyntaxNodes: s.view.Syntax(), MacroRules: s.view.Rules()},
		Nodes:     s.view.Nodes(),
	}, s.tabs.Active())
	if err != nil {
		s.r.Error(err.Error())
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                Show this help message
  .recursive [on|off]  Toggle recursive expansion
  .tab <panel>         Show expansions, syntax or rules after each render
  .show                Print the active panel again
  .buffer              Print the buffer
  .clear               Empty the buffer
  .quit / .exit        Exit the REPL

Tips:
  - Every other line is appended to the buffer
  - Renders are rate limited; fast input is coalesced into one render
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

// newDotCompleter creates a readline completer for the dot-commands.
func newDotCompleter() *readline.PrefixCompleter {
	tabItems := make([]readline.PrefixCompleterInterface, 0, len(output.AllSections))
	for _, id := range output.AllSections {
		tabItems = append(tabItems, readline.PcItem(id))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".recursive", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".tab", tabItems...),
		readline.PcItem(".show"),
		readline.PcItem(".buffer"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
