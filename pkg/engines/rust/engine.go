package rust

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	tsrust "github.com/smacker/go-tree-sitter/rust"

	"github.com/leapstack-labs/macroscope/pkg/core"
)

const (
	// Name is the registered engine type.
	Name = "rust"

	// DefaultMaxDepth bounds recursive expansion when the config leaves it unset.
	DefaultMaxDepth = 64

	// maxExpansions caps the expansions performed for one request.
	maxExpansions = 4096
)

// Parsers are not safe for concurrent use; each request borrows one.
var parserPool = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(tsrust.GetLanguage())
		return p
	},
}

// Engine parses Rust with tree-sitter and expands macro_rules! macros.
type Engine struct {
	maxDepth int
	logger   *slog.Logger
}

// New creates a Rust engine.
func New(cfg core.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max_depth must not be negative, got %d", cfg.MaxDepth)
	}
	depth := cfg.MaxDepth
	if depth == 0 {
		depth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{maxDepth: depth, logger: logger}, nil
}

// Name returns the engine type.
func (e *Engine) Name() string { return Name }

// MaxDepth returns the recursion bound.
func (e *Engine) MaxDepth() int { return e.maxDepth }

// ParseTextToSyntaxNode returns the syntax tree of text together with every
// macro call it contains and that call's expansion.
//
// Definitions are collected before any call is expanded, so a macro may be
// used above its definition. Calls to unknown macros and calls no rule
// matches are left out. With recursive set, calls produced by an expansion
// are expanded too, up to the configured depth; definitions produced by an
// expansion join the shared set.
func (e *Engine) ParseTextToSyntaxNode(ctx context.Context, text string, recursive bool) (any, error) {
	src := []byte(text)
	tree, err := parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	r := &resolver{
		ctx:       ctx,
		defs:      &definitions{index: map[string]int{}},
		recursive: recursive,
		maxDepth:  e.maxDepth,
		budget:    maxExpansions,
		logger:    e.logger,
	}
	calls := r.expand(r.collect(root, src), 0)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &core.ParseResult{
		SyntaxNodes: dumpSyntax(root, src),
		Calls:       calls,
		MacroRules:  r.defs.strings(),
	}, nil
}

func parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	p := parserPool.Get().(*sitter.Parser)
	tree, err := p.ParseCtx(ctx, nil, src)
	// A cancelled parse leaves the parser's cancellation flag set.
	if ctx.Err() == nil {
		parserPool.Put(p)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	return tree, nil
}

// definitions is the macro set in definition order. A redefinition
// replaces the earlier entry in place.
type definitions struct {
	list  []*macroDef
	index map[string]int
}

func (d *definitions) define(def *macroDef) {
	if i, ok := d.index[def.name]; ok {
		d.list[i] = def
		return
	}
	d.index[def.name] = len(d.list)
	d.list = append(d.list, def)
}

func (d *definitions) get(name string) *macroDef {
	if i, ok := d.index[name]; ok {
		return d.list[i]
	}
	return nil
}

func (d *definitions) strings() []string {
	out := make([]string, len(d.list))
	for i, def := range d.list {
		out[i] = def.String()
	}
	return out
}

type resolver struct {
	ctx       context.Context
	defs      *definitions
	recursive bool
	maxDepth  int
	budget    int
	logger    *slog.Logger
}

// collect records the definitions under root and returns the text of each
// invocation in source order. Neither node kind is descended into.
func (r *resolver) collect(root *sitter.Node, src []byte) []string {
	var calls []string
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "macro_definition":
			def, err := parseMacroDefinition(nodeText(n, src))
			if err != nil {
				r.logger.Debug("skipping macro definition", "error", err)
				return false
			}
			r.defs.define(def)
			return false
		case "macro_invocation":
			calls = append(calls, nodeText(n, src))
			return false
		}
		return true
	})
	return calls
}

func (r *resolver) expand(sites []string, depth int) []core.MacroCall {
	calls := make([]core.MacroCall, 0, len(sites))
	for _, site := range sites {
		if r.ctx.Err() != nil || r.budget <= 0 {
			break
		}

		name, args, err := parseInvocation(site)
		if err != nil {
			r.logger.Debug("skipping macro call", "call_site", site, "error", err)
			continue
		}
		def := r.defs.get(name)
		if def == nil {
			continue
		}
		out, err := def.expand(args)
		if err != nil {
			r.logger.Debug("skipping macro call", "call_site", site, "error", err)
			continue
		}
		r.budget--

		call := core.MacroCall{CallSite: site, Expanded: render(out), Children: []core.MacroCall{}}
		if r.recursive && depth < r.maxDepth {
			call.Children = r.resolveText(call.Expanded, depth+1)
		}
		calls = append(calls, call)
	}
	return calls
}

// resolveText finds the calls inside an expansion. Text that does not parse
// as items is retried as a function body so expressions and statements
// resolve too.
func (r *resolver) resolveText(text string, depth int) []core.MacroCall {
	src := []byte(text)
	tree, err := parse(r.ctx, src)
	if err != nil {
		return []core.MacroCall{}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		wrapped := []byte("fn __expand__() {\n" + text + "\n}")
		if t2, err := parse(r.ctx, wrapped); err == nil {
			defer t2.Close()
			if !t2.RootNode().HasError() {
				root, src = t2.RootNode(), wrapped
			}
		}
	}
	return r.expand(r.collect(root, src), depth)
}
