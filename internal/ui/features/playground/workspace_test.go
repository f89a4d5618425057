package playground

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type registryFixture struct {
	engine   *testutil.StubEngine
	clock    *testutil.FakeClock
	registry *Registry
}

func newRegistryFixture(t *testing.T, source string) *registryFixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	f := &registryFixture{
		engine: testutil.NewStubEngine(),
		clock:  testutil.NewFakeClock(epoch),
	}
	r, err := NewRegistry(Options{
		Adapter:   adapter.New(f.engine, logger),
		Scheduler: scheduler.Config{Clock: f.clock},
		Source:    source,
		TTL:       time.Minute,
		Logger:    logger,
	})
	require.NoError(t, err)
	r.now = f.clock.Now
	t.Cleanup(r.Close)
	f.registry = r
	return f
}

// settle fires the pending scheduled render.
func (f *registryFixture) settle() {
	f.clock.Advance(scheduler.DefaultMinInterval)
}

func TestNewRegistry_RequiresAdapter(t *testing.T) {
	_, err := NewRegistry(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter is required")
}

func TestRegistry_CreateRendersSeed(t *testing.T) {
	f := newRegistryFixture(t, "fn main() {}")

	ws, err := f.registry.Create(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, "fn main() {}", ws.Buffer.Value())
	assert.Equal(t, "SOURCE_FILE fn main() {}", ws.View.Syntax())
	assert.Equal(t, 1, f.registry.Len())

	got, ok := f.registry.Get(ws.ID)
	require.True(t, ok)
	assert.Same(t, ws, got)
}

func TestRegistry_CreateSurvivesFailedRender(t *testing.T) {
	f := newRegistryFixture(t, "broken")
	f.engine.Fail("broken", errors.New("engine crashed"))

	ws, err := f.registry.Create(context.Background())
	require.NoError(t, err)

	assert.Empty(t, ws.View.Syntax())
	require.Error(t, ws.View.Err())
	assert.Contains(t, ws.View.Err().Error(), "engine crashed")
}

func TestRegistry_SetSourceSchedulesChangedWorkspaces(t *testing.T) {
	f := newRegistryFixture(t, "one")

	a, err := f.registry.Create(context.Background())
	require.NoError(t, err)
	b, err := f.registry.Create(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, f.engine.Calls())

	f.registry.SetSource("two")
	f.settle()

	assert.Equal(t, "SOURCE_FILE two", a.View.Syntax())
	assert.Equal(t, "SOURCE_FILE two", b.View.Syntax())
	assert.Equal(t, 4, f.engine.Calls())

	// Unchanged buffers are not scheduled again.
	f.registry.SetSource("two")
	f.settle()
	assert.Equal(t, 4, f.engine.Calls())

	c, err := f.registry.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", c.Buffer.Value())
}

func TestRegistry_RenderBroadcasts(t *testing.T) {
	f := newRegistryFixture(t, "one")
	ws, err := f.registry.Create(context.Background())
	require.NoError(t, err)

	ch := ws.Notifier.Subscribe()
	defer ws.Notifier.Unsubscribe(ch)

	ws.Buffer.Set("two")
	ws.Pipeline.Notify()
	f.settle()

	select {
	case <-ch:
	default:
		t.Fatal("expected a ping after the render")
	}
}

func TestRegistry_Evict(t *testing.T) {
	f := newRegistryFixture(t, "x")

	stale, err := f.registry.Create(context.Background())
	require.NoError(t, err)

	f.clock.Advance(45 * time.Second)
	fresh, err := f.registry.Create(context.Background())
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	assert.Equal(t, 1, f.registry.Evict())

	_, ok := f.registry.Get(stale.ID)
	assert.False(t, ok)
	_, ok = f.registry.Get(fresh.ID)
	assert.True(t, ok)

	_, open := <-stale.Notifier.Subscribe()
	assert.False(t, open, "evicted workspace refuses new listeners")
}

func TestRegistry_EvictKeepsStreamingWorkspace(t *testing.T) {
	f := newRegistryFixture(t, "x")
	ws, err := f.registry.Create(context.Background())
	require.NoError(t, err)
	updates := ws.Notifier.Subscribe()

	f.clock.Advance(2 * time.Minute)
	assert.Zero(t, f.registry.Evict())
	_, ok := f.registry.Get(ws.ID)
	require.True(t, ok)

	ws.Notifier.Broadcast()
	select {
	case _, open := <-updates:
		assert.True(t, open, "stream still receives renders")
	default:
		t.Fatal("expected a ping on the open stream")
	}

	// Once the stream closes, the idle clock starts from the last sweep.
	ws.Notifier.Unsubscribe(updates)
	f.clock.Advance(30 * time.Second)
	assert.Zero(t, f.registry.Evict())
	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.registry.Evict())
}

func TestRegistry_GetKeepsWorkspaceAlive(t *testing.T) {
	f := newRegistryFixture(t, "x")
	ws, err := f.registry.Create(context.Background())
	require.NoError(t, err)

	f.clock.Advance(45 * time.Second)
	_, ok := f.registry.Get(ws.ID)
	require.True(t, ok)

	f.clock.Advance(45 * time.Second)
	assert.Zero(t, f.registry.Evict())
	assert.Equal(t, 1, f.registry.Len())
}

func TestRegistry_RunClosesOnCancel(t *testing.T) {
	f := newRegistryFixture(t, "x")
	_, err := f.registry.Create(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.registry.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, f.registry.Len())
}
