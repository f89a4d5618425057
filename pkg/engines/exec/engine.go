// Package exec provides an engine that runs an external command per request.
//
// The buffer is written to the command's stdin and MACROSCOPE_RECURSIVE is
// set to true or false. Whatever the command prints on stdout is the
// response: a JSON object is read as the extended protocol, anything else
// as the legacy syntax string.
//
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/macroscope/pkg/engines/exec"
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	osexec "os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

const (
	// Name is the registered engine type.
	Name = "exec"

	// RecursiveEnv carries the recursion flag to the command.
	RecursiveEnv = "MACROSCOPE_RECURSIVE"
)

func init() {
	engine.Register(engine.Info{
		Name:        Name,
		Description: "external command: buffer on stdin, response on stdout",
		Protocol:    "legacy or extended",
	}, func(cfg core.EngineConfig, logger *slog.Logger) (core.Engine, error) {
		return New(cfg, logger)
	})
}

// Engine runs a command for every request.
type Engine struct {
	command []string
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an exec engine. Recognised options are "dir" (working
// directory) and "timeout" (a duration bounding each run).
func New(cfg core.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, errors.New("engine.command is required for the exec engine")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{command: cfg.Command, dir: cfg.Options["dir"], logger: logger}
	if v := cfg.Options["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout option %q: %w", v, err)
		}
		e.timeout = d
	}
	return e, nil
}

// Name returns the engine type.
func (e *Engine) Name() string { return Name }

// ParseTextToSyntaxNode runs the command and returns its stdout.
func (e *Engine) ParseTextToSyntaxNode(ctx context.Context, text string, recursive bool) (any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := osexec.CommandContext(ctx, e.command[0], e.command[1:]...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(), RecursiveEnv+"="+strconv.FormatBool(recursive))
	cmd.Stdin = strings.NewReader(text)
	// Orphaned grandchildren may hold stdout open after a kill.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", e.command[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", e.command[0], err)
	}

	e.logger.Debug("command finished", "command", e.command[0], "duration", time.Since(start), "stdout_bytes", stdout.Len())
	return stdout.Bytes(), nil
}
