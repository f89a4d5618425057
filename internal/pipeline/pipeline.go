// Package pipeline wires an editor buffer to the render targets:
// change notifications go through a rate-limiting scheduler, each drained
// invocation parses the buffer through the adapter, and the result is
// rendered as a syntax view plus an expansion tree.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

// Buffer exposes the editor's current text.
type Buffer interface {
	Value() string
}

// Toggle exposes the recursion checkbox.
type Toggle interface {
	Checked() bool
}

// SyntaxView receives the engine's syntax text verbatim.
type SyntaxView interface {
	SetValue(text string)
}

// ExpansionPanel receives a full set of expansion trees, replacing whatever
// it showed before.
type ExpansionPanel interface {
	Replace(nodes []*expansion.Node)
}

// RulesView receives the macro definitions reported by the engine.
type RulesView interface {
	SetRules(rules []string)
}

// ErrorView is told the outcome of each run: the error when it failed,
// nil when it rendered.
type ErrorView interface {
	SetError(err error)
}

// Context holds the collaborators a pipeline reads from and renders to.
// Rules, Errors and Logger are optional.
type Context struct {
	Editor    Buffer
	Recursive Toggle
	Syntax    SyntaxView
	Panel     ExpansionPanel
	Rules     RulesView
	Errors    ErrorView
	Logger    *slog.Logger
}

// Render is the outcome of one successful run.
type Render struct {
	Request  core.ParseRequest
	Result   *core.ParseResult
	Nodes    []*expansion.Node
	Duration time.Duration
}

// Pipeline runs parses for a single document.
type Pipeline struct {
	ctx       Context
	adapter   *adapter.Adapter
	scheduler *scheduler.Scheduler
	logger    *slog.Logger

	runMu sync.Mutex

	mu   sync.RWMutex
	last *Render
}

// New creates a pipeline. Editor, Syntax and Panel are required; a nil
// Recursive toggle reads as unchecked.
func New(pctx Context, a *adapter.Adapter, cfg scheduler.Config) (*Pipeline, error) {
	if pctx.Editor == nil {
		return nil, errors.New("pipeline: editor buffer is required")
	}
	if pctx.Syntax == nil {
		return nil, errors.New("pipeline: syntax view is required")
	}
	if pctx.Panel == nil {
		return nil, errors.New("pipeline: expansion panel is required")
	}
	if a == nil {
		return nil, errors.New("pipeline: adapter is required")
	}
	if pctx.Logger == nil {
		pctx.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Logger == nil {
		cfg.Logger = pctx.Logger
	}

	p := &Pipeline{
		ctx:     pctx,
		adapter: a,
		logger:  pctx.Logger,
	}
	p.scheduler = scheduler.New(p.run, cfg)
	return p, nil
}

// Notify reports an editor change or a recursion toggle.
func (p *Pipeline) Notify() {
	p.scheduler.Notify()
}

// Refresh parses and renders immediately, bypassing the rate limit. It is
// serialized with scheduled runs. Used for the initial render.
func (p *Pipeline) Refresh(ctx context.Context) error {
	return p.run(ctx)
}

// Last returns the most recent successful render, or nil.
func (p *Pipeline) Last() *Render {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Stats returns the scheduler counters.
func (p *Pipeline) Stats() scheduler.Stats {
	return p.scheduler.Stats()
}

// State returns the scheduler state.
func (p *Pipeline) State() scheduler.State {
	return p.scheduler.State()
}

// Close stops scheduling and waits for a running parse.
func (p *Pipeline) Close() {
	p.scheduler.Close()
}

// run snapshots the inputs, parses, and renders. On failure nothing is
// rendered and the previous output stays on screen.
func (p *Pipeline) run(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	req := core.ParseRequest{Text: p.ctx.Editor.Value()}
	if p.ctx.Recursive != nil {
		req.Recursive = p.ctx.Recursive.Checked()
	}

	start := time.Now()
	result, err := p.adapter.ParseRequest(ctx, req)
	if err != nil {
		if p.ctx.Errors != nil {
			p.ctx.Errors.SetError(err)
		}
		return err
	}
	nodes := expansion.BuildAll(result.Calls)

	if p.ctx.Errors != nil {
		p.ctx.Errors.SetError(nil)
	}

	p.ctx.Syntax.SetValue(result.SyntaxNodes)
	if p.ctx.Rules != nil {
		p.ctx.Rules.SetRules(result.MacroRules)
	}
	p.ctx.Panel.Replace(nodes)

	render := &Render{Request: req, Result: result, Nodes: nodes, Duration: time.Since(start)}
	p.mu.Lock()
	p.last = render
	p.mu.Unlock()

	p.logger.Debug("rendered",
		"recursive", req.Recursive,
		"roots", len(nodes),
		"nodes", expansion.Count(nodes),
		"duration", render.Duration,
	)
	return nil
}
