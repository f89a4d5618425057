package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/pipeline"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var sections []string

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-render a file every time it is saved",
		Long: `Watch a source file and print its expansions whenever it changes.

Saves are rate limited by the scheduler: a burst of writes produces one
render for the newest content, at most once per scheduler.min_interval.`,
		Example: `  # Print every section on each save
  macroscope watch src/main.rs

  # Only the expansion tree, recursively
  macroscope watch src/main.rs --section expansions --recursive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return watchFile(cmd.Context(), cc, args[0], sections)
		},
	}

	cmd.Flags().StringSliceVarP(&sections, "section", "s", nil, "Sections to print (syntax, expansions, rules)")
	_ = cmd.RegisterFlagCompletionFunc("section", completeSections)

	return cmd
}

// watchView prints every render. Runs are serialized by the pipeline, so
// the fields need no locking.
type watchView struct {
	r         *output.Renderer
	name      string
	engine    string
	recursive *pipeline.Flag
	sections  []string

	syntax string
	rules  []string
	count  int
}

func (v *watchView) SetValue(text string)    { v.syntax = text }
func (v *watchView) SetRules(rules []string) { v.rules = rules }

func (v *watchView) SetError(err error) {
	if err != nil {
		v.r.Error(fmt.Sprintf("%s: %v", v.name, err))
	}
}

func (v *watchView) Replace(nodes []*expansion.Node) {
	v.count++
	if v.r.EffectiveMode() != output.ModeJSON {
		v.r.Muted(fmt.Sprintf("%s: render %d at %s", v.name, v.count, time.Now().Format(time.TimeOnly)))
	}
	err := v.r.ParseResult(output.ResultView{
		Engine:    v.engine,
		Recursive: v.recursive.Checked(),
		Result:    &core.ParseResult{SyntaxNodes: v.syntax, MacroRules: v.rules},
		Nodes:     nodes,
	}, v.sections...)
	if err != nil {
		v.r.Error(err.Error())
	}
}

// watchFile renders path once, then again after every write, until ctx is
// done. The parent directory is watched so editors that replace the file
// on save are still seen.
func watchFile(ctx context.Context, cc *CommandContext, path string, sections []string) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(target) //nolint:gosec // user-selected file
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	buffer := pipeline.NewTextBuffer(string(data))
	view := &watchView{
		r:         cc.Renderer,
		name:      filepath.Base(target),
		engine:    cc.Adapter.Engine().Name(),
		recursive: pipeline.NewFlag(cc.Cfg.Recursive),
		sections:  sections,
	}
	p, err := pipeline.New(pipeline.Context{
		Editor:    buffer,
		Recursive: view.recursive,
		Syntax:    view,
		Panel:     view,
		Rules:     view,
		Errors:    view,
		Logger:    cc.Logger,
	}, cc.Adapter, cc.Scheduler())
	if err != nil {
		return err
	}
	defer p.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	// A failed first render is printed by the view; keep watching for a fix.
	if err := p.Refresh(ctx); err != nil && errors.Is(err, context.Canceled) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, _ := filepath.Abs(event.Name); name != target {
				continue
			}
			data, err := os.ReadFile(target) //nolint:gosec // user-selected file
			if err != nil {
				cc.Logger.Warn("failed to reload file", "file", target, "error", err)
				continue
			}
			if buffer.Set(string(data)) {
				cc.Logger.Debug("file changed", "file", target)
				p.Notify()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cc.Logger.Error("watch error", "error", err)
		}
	}
}
