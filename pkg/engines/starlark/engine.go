// Package starlark provides an engine backed by a user Starlark script.
//
// The script defines parse_text_to_syntax_node. With one parameter
// (text) it speaks the legacy protocol and returns a string; with two
// (text, recursive) it speaks the extended protocol and returns a
// parse_result(...) value or an equivalent dict.
//
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/macroscope/pkg/engines/starlark"
package starlark

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"

	starlarkrt "github.com/leapstack-labs/macroscope/internal/starlark"
	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

const (
	// Name is the registered engine type.
	Name = "starlark"

	// EntryPoint is the function every script must define.
	EntryPoint = "parse_text_to_syntax_node"

	// DefaultMaxDepth is exposed to scripts as engine.max_depth when unset.
	DefaultMaxDepth = 16
)

//go:embed demo.star
var demoScript []byte

// DemoScript returns the script used when engine.script is unset.
func DemoScript() []byte {
	return append([]byte(nil), demoScript...)
}

func init() {
	engine.Register(engine.Info{
		Name:        Name,
		Description: "user Starlark script (embedded demo when engine.script is unset)",
		Protocol:    "legacy or extended",
	}, func(cfg core.EngineConfig, logger *slog.Logger) (core.Engine, error) {
		return New(cfg, logger)
	})
}

// Engine calls a script's entry point for every request.
type Engine struct {
	script   *starlarkrt.Script
	fn       *starlark.Function
	extended bool
	pool     *starlarkrt.ThreadPool
	logger   *slog.Logger
}

// New loads cfg.Script, or the embedded demo script when it is empty.
func New(cfg core.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	depth := cfg.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}

	pool := starlarkrt.NewThreadPool(0, logger)
	predeclared := starlarkrt.Predeclared(&starlarkrt.EngineInfo{
		Name:     Name,
		MaxDepth: depth,
		Options:  cfg.Options,
	})

	var (
		script *starlarkrt.Script
		err    error
	)
	if cfg.Script == "" {
		script, err = starlarkrt.Load(pool, "demo.star", demoScript, predeclared)
	} else {
		script, err = starlarkrt.LoadFile(pool, cfg.Script, predeclared)
	}
	if err != nil {
		return nil, err
	}

	fn, err := script.Function(EntryPoint)
	if err != nil {
		return nil, err
	}

	e := &Engine{script: script, fn: fn, pool: pool, logger: logger}
	switch fn.NumParams() {
	case 1:
	case 2:
		e.extended = true
	default:
		return nil, fmt.Errorf("%s: %s must take (text) or (text, recursive), got %d parameters",
			script.Filename, EntryPoint, fn.NumParams())
	}

	logger.Debug("loaded script", "file", script.Filename, "extended", e.extended)
	return e, nil
}

// Name returns the engine type.
func (e *Engine) Name() string { return Name }

// Extended reports whether the script speaks the extended protocol.
func (e *Engine) Extended() bool { return e.extended }

// ParseTextToSyntaxNode calls the script and converts its result to Go
// values: a string, or a map for structured results.
func (e *Engine) ParseTextToSyntaxNode(ctx context.Context, text string, recursive bool) (any, error) {
	args := []starlark.Value{starlark.String(text)}
	if e.extended {
		args = append(args, starlark.Bool(recursive))
	}

	v, err := e.pool.Call(ctx, e.script.Filename, e.fn, args...)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("%s", evalErr.Backtrace())
		}
		return nil, err
	}
	return starlarkrt.ToGo(v)
}
