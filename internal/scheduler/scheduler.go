// Package scheduler coalesces high-frequency change notifications into a
// bounded rate of task invocations.
//
// A Scheduler runs at most one invocation at a time, keeps at most one
// invocation queued, and starts invocations at least MinInterval apart
// measured from the start of the previous invocation. Notifications that
// arrive while an invocation is already queued are dropped: the queued
// invocation reads its inputs when it drains, so it already reflects them.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultMinInterval is the spacing used when Config.MinInterval is unset.
const DefaultMinInterval = 500 * time.Millisecond

// Task is the work run for a drained notification.
type Task func(ctx context.Context) error

// Clock abstracts time so tests can drive the scheduler deterministically.
// AfterFunc returns a stop function with time.Timer.Stop semantics.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// SystemClock returns the wall clock. time.Now carries a monotonic reading,
// so intervals are immune to wall clock jumps.
func SystemClock() Clock { return systemClock{} }

// Config holds scheduler settings.
type Config struct {
	MinInterval time.Duration
	Clock       Clock
	Logger      *slog.Logger
}

// State is the scheduler's position in its idle/queued/running cycle.
type State int

// State values.
const (
	StateIdle State = iota
	StateQueued
	StateRunning
	StateRunningQueued
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateRunningQueued:
		return "running+queued"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats counts scheduler activity since construction.
type Stats struct {
	Notified    int
	Dropped     int
	Invocations int
	Failures    int

	// LastError is the result of the most recent invocation.
	LastError error
}

// Scheduler is a single-slot, rate-limited task coalescer.
type Scheduler struct {
	task        Task
	minInterval time.Duration
	clock       Clock
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	queued    bool
	running   bool
	closed    bool
	dueAt     time.Time
	lastStart time.Time
	stopTimer func() bool
	stats     Stats
}

// New creates a scheduler that runs task for drained notifications.
func New(task Task, cfg Config) *Scheduler {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		task:        task,
		minInterval: cfg.MinInterval,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// MinInterval returns the effective spacing between invocation starts.
func (s *Scheduler) MinInterval() time.Duration {
	return s.minInterval
}

// Notify arms a pending invocation. It never blocks on the task.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stats.Notified++

	if s.queued {
		s.stats.Dropped++
		return
	}

	s.queued = true
	s.dueAt = s.clock.Now().Add(s.minInterval)
	if !s.running {
		s.armLocked()
	}
}

// armLocked schedules fire for the queued invocation. Caller holds mu.
func (s *Scheduler) armLocked() {
	wait := s.dueAt.Sub(s.clock.Now())
	if wait < 0 {
		wait = 0
	}
	s.stopTimer = s.clock.AfterFunc(wait, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.closed || !s.queued || s.running {
		s.mu.Unlock()
		return
	}
	s.queued = false
	s.running = true
	s.stopTimer = nil
	s.lastStart = s.clock.Now()
	s.stats.Invocations++
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	err := s.invoke()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.stats.LastError = err
	if err != nil {
		s.stats.Failures++
		s.logger.Error("scheduled invocation failed", "error", err)
	}
	if s.queued && !s.closed {
		s.armLocked()
	}
}

func (s *Scheduler) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled task panicked: %v", r)
		}
	}()
	return s.task(s.ctx)
}

// State reports whether an invocation is queued and/or running.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.running && s.queued:
		return StateRunningQueued
	case s.running:
		return StateRunning
	case s.queued:
		return StateQueued
	default:
		return StateIdle
	}
}

// Stats returns a snapshot of the activity counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// LastStart returns the start time of the most recent invocation.
func (s *Scheduler) LastStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStart
}

// Close drops any queued invocation, cancels the task context and waits
// for a running invocation to return. Later Notify calls are no-ops.
// Close must not be called from inside the task.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queued = false
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
