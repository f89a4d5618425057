package starlark

import (
	"context"
	"log/slog"
	"sync"

	"go.starlark.net/starlark"
)

// ThreadPool manages a pool of Starlark threads for repeated script calls.
// A Starlark thread must not be used by two calls at once, so each call
// borrows one.
type ThreadPool struct {
	mu      sync.Mutex
	threads []*starlark.Thread
	maxSize int
	logger  *slog.Logger
}

// NewThreadPool creates a new thread pool with the specified maximum size.
// Script print() output goes to logger at debug level.
func NewThreadPool(maxSize int, logger *slog.Logger) *ThreadPool {
	if maxSize <= 0 {
		maxSize = 10 // default pool size
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ThreadPool{
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Get retrieves a thread from the pool or creates a new one.
// The thread name is used for error reporting.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) > 0 {
		thread := p.threads[len(p.threads)-1]
		p.threads = p.threads[:len(p.threads)-1]
		thread.Name = name
		return thread
	}

	logger := p.logger
	return &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			logger.Debug("script print", "thread", t.Name, "msg", msg)
		},
	}
}

// Put returns a thread to the pool for reuse.
// If the pool is full, the thread is discarded.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		thread.Name = ""
		p.threads = append(p.threads, thread)
	}
}

// Size returns the current number of threads in the pool.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// Call invokes fn on a pooled thread. Cancelling ctx cancels the Starlark
// execution; a cancelled thread is not returned to the pool.
func (p *ThreadPool) Call(ctx context.Context, name string, fn starlark.Value, args ...starlark.Value) (starlark.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thread := p.Get(name)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})

	v, err := starlark.Call(thread, fn, starlark.Tuple(args), nil)
	if stop() {
		p.Put(thread)
	}
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return v, err
}
