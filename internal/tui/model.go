// Package tui implements the terminal macro expansion editor: a text area
// on the left and the syntax, expansion and rules panels on the right,
// re-rendered through the pipeline as the text changes.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/internal/pipeline"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/internal/tabs"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
)

// Options configures the editor.
type Options struct {
	Adapter   *adapter.Adapter
	Scheduler scheduler.Config

	// Path is the file written by save. Empty edits a scratch buffer.
	Path      string
	Source    string
	Recursive bool
	Theme     string
	Logger    *slog.Logger
}

type (
	renderedMsg struct{}
	savedMsg    struct {
		path string
		err  error
	}
)

// Model is the bubbletea model of the editor.
type Model struct {
	path string

	buffer    *pipeline.TextBuffer
	recursive *pipeline.Flag
	view      *pipeline.Snapshot
	pipeline  *pipeline.Pipeline
	tabs      *tabs.Controller
	renders   chan struct{}
	saved     string

	editor   textarea.Model
	panel    viewport.Model
	help     help.Model
	keys     KeyMap
	renderer *output.Renderer
	styles   styles
	notice   string

	width, height int
}

type styles struct {
	pane      lipgloss.Style
	title     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	status    lipgloss.Style
	err       lipgloss.Style
	muted     lipgloss.Style
}

func newStyles() styles {
	return styles{
		pane:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")),
		title:     lipgloss.NewStyle().Bold(true).Padding(0, 1),
		tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245")),
		activeTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(lipgloss.Color("212")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		muted:     lipgloss.NewStyle().Faint(true),
	}
}

// New creates the editor model and its pipeline. Call Close when done.
func New(opts Options) (Model, error) {
	if opts.Adapter == nil {
		return Model{}, errors.New("tui: adapter is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	m := Model{
		path:      opts.Path,
		buffer:    pipeline.NewTextBuffer(opts.Source),
		recursive: pipeline.NewFlag(opts.Recursive),
		view:      &pipeline.Snapshot{},
		tabs:      tabs.New(),
		renders:   make(chan struct{}, 1),
		saved:     opts.Source,
		help:      help.New(),
		keys:      DefaultKeyMap(),
		renderer:  output.NewRendererWithTTY(io.Discard, io.Discard, true, output.ModeText),
		styles:    newStyles(),
	}
	m.renderer.SetTheme(opts.Theme)

	renders := m.renders
	m.view.OnChange = func() {
		select {
		case renders <- struct{}{}:
		default:
		}
	}

	p, err := pipeline.New(pipeline.Context{
		Editor:    m.buffer,
		Recursive: m.recursive,
		Syntax:    m.view,
		Panel:     m.view,
		Rules:     m.view,
		Errors:    m.view,
		Logger:    opts.Logger,
	}, opts.Adapter, opts.Scheduler)
	if err != nil {
		return Model{}, err
	}
	m.pipeline = p

	m.editor = textarea.New()
	m.editor.MaxHeight = 0
	m.editor.CharLimit = 0
	m.editor.Placeholder = "macro_rules! ..."
	m.editor.SetValue(opts.Source)
	m.editor.Focus()

	m.panel = viewport.New(0, 0)
	m.panel.KeyMap = viewport.KeyMap{}

	m.resize(defaultWidth, defaultHeight)
	return m, nil
}

// Close stops the pipeline.
func (m Model) Close() {
	m.pipeline.Close()
}

// Init renders the initial text and starts listening for renders.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.refresh(), m.waitForRender())
}

func (m Model) refresh() tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		// The outcome reaches the model through the render channel.
		_ = p.Refresh(context.Background())
		return nil
	}
}

func (m Model) waitForRender() tea.Cmd {
	ch := m.renders
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return renderedMsg{}
	}
}

func (m Model) save() tea.Cmd {
	path, text := m.path, m.buffer.Value()
	return func() tea.Msg {
		if path == "" {
			return savedMsg{err: errors.New("no file to save to; start the editor with a file argument")}
		}
		return savedMsg{path: path, err: os.WriteFile(path, []byte(text), 0o644)} //nolint:gosec // source files are world-readable
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case renderedMsg:
		m.refreshPanel()
		return m, m.waitForRender()

	case savedMsg:
		if msg.err != nil {
			m.notice = m.styles.err.Render("save failed: " + msg.err.Error())
		} else {
			m.saved = m.buffer.Value()
			m.notice = "saved " + msg.path
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Recursive):
			m.recursive.Toggle()
			m.pipeline.Notify()
			return m, nil
		case key.Matches(msg, m.keys.NextTab):
			m.tabs.Next()
			m.refreshPanel()
			return m, nil
		case key.Matches(msg, m.keys.Save):
			return m, m.save()
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if m.buffer.Set(m.editor.Value()) {
		m.notice = ""
		m.pipeline.Notify()
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	// Title and tab bar above the panes, status and help below, pane borders.
	contentHeight := max(height-5, 3)
	left := max(width/2-2, 10)
	right := max(width-width/2-2, 10)

	m.editor.SetWidth(left)
	m.editor.SetHeight(contentHeight)
	m.panel.Width = right
	m.panel.Height = contentHeight
	m.help.Width = width
	m.refreshPanel()
}

func (m *Model) refreshPanel() {
	m.panel.SetContent(m.panelContent())
}

func (m Model) panelContent() string {
	switch m.tabs.Active() {
	case tabs.Expansions:
		nodes := m.view.Nodes()
		if len(nodes) == 0 {
			return m.styles.muted.Render("No macro calls.")
		}
		trees := make([]string, len(nodes))
		for i, n := range nodes {
			trees[i] = m.renderer.ExpansionTree(n).String()
		}
		return strings.Join(trees, "\n\n")

	case tabs.Rules:
		rules := m.view.Rules()
		if len(rules) == 0 {
			return m.styles.muted.Render("No macro definitions.")
		}
		lines := make([]string, len(rules))
		for i, r := range rules {
			lines[i] = m.renderer.Code(r)
		}
		return strings.Join(lines, "\n")

	default:
		if s := m.view.Syntax(); s != "" {
			return s
		}
		return m.styles.muted.Render("Waiting for the first render.")
	}
}

// View implements tea.Model.
func (m Model) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.title.Render(m.title()),
		m.styles.pane.Render(m.editor.View()),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.tabBar(),
		m.styles.pane.Render(m.panel.View()),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		m.statusLine(),
		m.help.View(m.keys),
	)
}

func (m Model) title() string {
	name := "scratch"
	if m.path != "" {
		name = filepath.Base(m.path)
	}
	if m.buffer.Value() != m.saved {
		name += " *"
	}
	return name
}

func (m Model) tabBar() string {
	ids := m.tabs.Tabs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		style := m.styles.tab
		if id == m.tabs.Active() {
			style = m.styles.activeTab
		}
		parts[i] = style.Render(tabs.Title(id))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) statusLine() string {
	recursive := "off"
	if m.recursive.Checked() {
		recursive = "on"
	}
	stats := m.pipeline.Stats()
	line := m.styles.status.Render(fmt.Sprintf("recursive %s · %s · %d renders · %d coalesced",
		recursive, m.pipeline.State(), stats.Invocations, stats.Dropped))
	if err := m.view.Err(); err != nil {
		line += " " + m.styles.err.Render(err.Error())
	}
	if m.notice != "" {
		line += " " + m.notice
	}
	return line
}

// Run starts the editor and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options, progOpts ...tea.ProgramOption) error {
	m, err := New(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	progOpts = append([]tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	}, progOpts...)

	_, err = tea.NewProgram(m, progOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
