package playground

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/pipeline"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/internal/tabs"
	"github.com/leapstack-labs/macroscope/internal/ui/notifier"
)

// DefaultTTL is how long an unused workspace is kept.
const DefaultTTL = 30 * time.Minute

// Workspace is one browser session's editor state and its pipeline.
type Workspace struct {
	ID        string
	Buffer    *pipeline.TextBuffer
	Recursive *pipeline.Flag
	Tabs      *tabs.Controller
	View      *pipeline.Snapshot
	Pipeline  *pipeline.Pipeline
	Notifier  *notifier.Notifier

	lastSeen atomic.Int64
}

func (w *Workspace) touch(now time.Time) { w.lastSeen.Store(now.UnixNano()) }

// LastSeen returns when the workspace was last used.
func (w *Workspace) LastSeen() time.Time { return time.Unix(0, w.lastSeen.Load()) }

func (w *Workspace) close() {
	w.Pipeline.Close()
	w.Notifier.Close()
}

// Options configures new workspaces.
type Options struct {
	Adapter   *adapter.Adapter
	Scheduler scheduler.Config

	// Source and Recursive seed new workspaces.
	Source    string
	Recursive bool

	// TTL is the idle time after which a workspace is evicted.
	TTL    time.Duration
	Logger *slog.Logger
}

// Registry holds the live workspaces. Nothing is persisted; evicted or
// lost workspaces start over from the seed source.
type Registry struct {
	opts Options
	now  func() time.Time

	mu     sync.RWMutex
	items  map[string]*Workspace
	source string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Adapter == nil {
		return nil, errors.New("playground: adapter is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		opts:   opts,
		now:    time.Now,
		items:  make(map[string]*Workspace),
		source: opts.Source,
	}, nil
}

// Get returns the workspace with id and marks it used.
func (r *Registry) Get(id string) (*Workspace, bool) {
	r.mu.RLock()
	ws, ok := r.items[id]
	r.mu.RUnlock()
	if ok {
		ws.touch(r.now())
	}
	return ws, ok
}

// Create starts a new workspace seeded with the current source and renders
// it once. A failed first render is logged; the workspace is still usable.
func (r *Registry) Create(ctx context.Context) (*Workspace, error) {
	r.mu.RLock()
	source := r.source
	r.mu.RUnlock()

	ws := &Workspace{
		ID:        uuid.NewString(),
		Buffer:    pipeline.NewTextBuffer(source),
		Recursive: pipeline.NewFlag(r.opts.Recursive),
		Tabs:      tabs.New(),
		View:      &pipeline.Snapshot{},
		Notifier:  notifier.New(),
	}
	ws.View.OnChange = func() { ws.Notifier.Broadcast() }

	logger := r.opts.Logger.With("workspace", ws.ID)
	p, err := pipeline.New(pipeline.Context{
		Editor:    ws.Buffer,
		Recursive: ws.Recursive,
		Syntax:    ws.View,
		Panel:     ws.View,
		Rules:     ws.View,
		Errors:    ws.View,
		Logger:    logger,
	}, r.opts.Adapter, r.opts.Scheduler)
	if err != nil {
		return nil, err
	}
	ws.Pipeline = p
	ws.touch(r.now())

	if err := p.Refresh(ctx); err != nil {
		logger.Warn("initial render failed", "error", err)
	}

	r.mu.Lock()
	r.items[ws.ID] = ws
	r.mu.Unlock()

	logger.Debug("workspace created")
	return ws, nil
}

// SetSource replaces the seed for new workspaces and pushes text into every
// live one, scheduling a render for each buffer that changed.
func (r *Registry) SetSource(text string) {
	r.mu.Lock()
	r.source = text
	r.mu.Unlock()

	r.Each(func(ws *Workspace) {
		if ws.Buffer.Set(text) {
			ws.Pipeline.Notify()
		}
	})
}

// Each calls fn for every live workspace.
func (r *Registry) Each(fn func(*Workspace)) {
	r.mu.RLock()
	list := make([]*Workspace, 0, len(r.items))
	for _, ws := range r.items {
		list = append(list, ws)
	}
	r.mu.RUnlock()

	for _, ws := range list {
		fn(ws)
	}
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Evict closes and removes workspaces idle for longer than the TTL. A
// workspace with an open update stream is in use and counts as seen now.
func (r *Registry) Evict() int {
	now := r.now()
	cutoff := now.Add(-r.opts.TTL)

	r.mu.Lock()
	var stale []*Workspace
	for id, ws := range r.items {
		if ws.Notifier.Len() > 0 {
			ws.touch(now)
			continue
		}
		if ws.LastSeen().Before(cutoff) {
			stale = append(stale, ws)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, ws := range stale {
		ws.close()
		r.opts.Logger.Debug("workspace evicted", "workspace", ws.ID)
	}
	return len(stale)
}

// Run evicts idle workspaces periodically until ctx is done, then closes
// every workspace.
func (r *Registry) Run(ctx context.Context) error {
	interval := max(r.opts.TTL/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			r.Evict()
		}
	}
}

// Close closes and removes every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range items {
		ws.close()
	}
}

// Adapter returns the adapter shared by every workspace.
func (r *Registry) Adapter() *adapter.Adapter { return r.opts.Adapter }

// EngineName returns the name of the configured engine.
func (r *Registry) EngineName() string { return r.opts.Adapter.Engine().Name() }
