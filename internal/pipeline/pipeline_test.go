package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/internal/testutil"
	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine answers from a table keyed by buffer text.
type scriptedEngine struct {
	mu        sync.Mutex
	responses map[string]any
	fail      map[string]error
	seen      []core.ParseRequest
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) ParseTextToSyntaxNode(_ context.Context, text string, recursive bool) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, core.ParseRequest{Text: text, Recursive: recursive})
	if err := e.fail[text]; err != nil {
		return nil, err
	}
	if r, ok := e.responses[text]; ok {
		return r, nil
	}
	return "SOURCE_FILE " + text, nil
}

func (e *scriptedEngine) requests() []core.ParseRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.ParseRequest(nil), e.seen...)
}

type fixture struct {
	buffer   *TextBuffer
	flag     *Flag
	snapshot *Snapshot
	engine   *scriptedEngine
	clock    *testutil.FakeClock
	pipeline *Pipeline
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	f := &fixture{
		buffer:   NewTextBuffer(text),
		flag:     NewFlag(false),
		snapshot: &Snapshot{},
		engine:   &scriptedEngine{responses: map[string]any{}, fail: map[string]error{}},
		clock:    testutil.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	logger := testutil.NewTestLogger(t)

	p, err := New(Context{
		Editor:    f.buffer,
		Recursive: f.flag,
		Syntax:    f.snapshot,
		Panel:     f.snapshot,
		Rules:     f.snapshot,
		Errors:    f.snapshot,
		Logger:    logger,
	}, adapter.New(f.engine, logger), scheduler.Config{
		MinInterval: 500 * time.Millisecond,
		Clock:       f.clock,
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	f.pipeline = p
	return f
}

func TestPipeline_SingleMacroScenario(t *testing.T) {
	f := newFixture(t, "")
	f.engine.responses["macro_a!(1)"] = map[string]any{
		"syntax_nodes": "MACRO_CALL@[0; 11)",
		"calls": []any{
			map[string]any{"call_site": "macro_a!(1)", "expanded": "fn f(){1}", "children": []any{}},
		},
	}

	f.buffer.Set("macro_a!(1)")
	f.pipeline.Notify()
	f.clock.Advance(500 * time.Millisecond)

	assert.Equal(t, "MACRO_CALL@[0; 11)", f.snapshot.Syntax())
	assert.Equal(t, []*expansion.Node{{Header: "macro_a!(1)", Body: "fn f(){1}"}}, f.snapshot.Nodes())

	last := f.pipeline.Last()
	require.NotNil(t, last)
	assert.Equal(t, core.ParseRequest{Text: "macro_a!(1)"}, last.Request)
}

func TestPipeline_BurstParsesLatestBufferOnce(t *testing.T) {
	f := newFixture(t, "")

	f.buffer.Set("a")
	f.pipeline.Notify()
	f.clock.Advance(10 * time.Millisecond)
	f.buffer.Set("ab")
	f.pipeline.Notify()
	f.clock.Advance(600 * time.Millisecond)

	assert.Equal(t, []core.ParseRequest{{Text: "ab"}}, f.engine.requests())
	assert.Equal(t, "SOURCE_FILE ab", f.snapshot.Syntax())
}

func TestPipeline_RecursionToggleReadAtDrain(t *testing.T) {
	f := newFixture(t, "m!()")

	f.pipeline.Notify()
	f.flag.Toggle()
	f.pipeline.Notify()
	f.clock.Advance(500 * time.Millisecond)

	require.Len(t, f.engine.requests(), 1)
	assert.True(t, f.engine.requests()[0].Recursive)
}

func TestPipeline_EngineFailureKeepsStaleDisplay(t *testing.T) {
	f := newFixture(t, "good")
	require.NoError(t, f.pipeline.Refresh(context.Background()))
	assert.Equal(t, "SOURCE_FILE good", f.snapshot.Syntax())

	f.engine.fail["bad"] = errors.New("engine crashed")
	f.buffer.Set("bad")
	f.pipeline.Notify()
	f.clock.Advance(time.Second)

	assert.Equal(t, "SOURCE_FILE good", f.snapshot.Syntax())
	assert.Equal(t, 1, f.pipeline.Stats().Failures)
	require.Error(t, f.snapshot.Err())
	assert.Contains(t, f.snapshot.Err().Error(), "engine crashed")

	f.buffer.Set("better")
	f.pipeline.Notify()
	f.clock.Advance(time.Second)

	assert.Equal(t, "SOURCE_FILE better", f.snapshot.Syntax())
	assert.NoError(t, f.snapshot.Err())
	assert.Equal(t, scheduler.StateIdle, f.pipeline.State())
}

func TestPipeline_ResultReplacesPreviousPanel(t *testing.T) {
	f := newFixture(t, "two")
	f.engine.responses["two"] = map[string]any{
		"syntax_nodes": "t",
		"calls": []any{
			map[string]any{"call_site": "a!()", "expanded": "1"},
			map[string]any{"call_site": "b!()", "expanded": "2"},
		},
		"macro_rules": []any{"a {() => {1}}", "b {() => {2}}"},
	}
	f.engine.responses["none"] = map[string]any{"syntax_nodes": "n"}

	require.NoError(t, f.pipeline.Refresh(context.Background()))
	assert.Len(t, f.snapshot.Nodes(), 2)
	assert.Len(t, f.snapshot.Rules(), 2)

	f.buffer.Set("none")
	require.NoError(t, f.pipeline.Refresh(context.Background()))
	assert.Empty(t, f.snapshot.Nodes())
	assert.Empty(t, f.snapshot.Rules())
}

func TestPipeline_OnChangeSeesCompleteRender(t *testing.T) {
	f := newFixture(t, "x")
	f.engine.responses["x"] = map[string]any{
		"syntax_nodes": "tree",
		"macro_rules":  []any{"m {}"},
	}

	var syntax string
	var rules []string
	f.snapshot.OnChange = func() {
		syntax = f.snapshot.Syntax()
		rules = f.snapshot.Rules()
	}

	require.NoError(t, f.pipeline.Refresh(context.Background()))
	assert.Equal(t, "tree", syntax)
	assert.Equal(t, []string{"m {}"}, rules)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	a := adapter.New(&scriptedEngine{}, nil)
	buf := NewTextBuffer("")
	snap := &Snapshot{}

	tests := []struct {
		name    string
		ctx     Context
		adapter *adapter.Adapter
		wantErr string
	}{
		{name: "editor", ctx: Context{Syntax: snap, Panel: snap}, adapter: a, wantErr: "editor buffer"},
		{name: "syntax", ctx: Context{Editor: buf, Panel: snap}, adapter: a, wantErr: "syntax view"},
		{name: "panel", ctx: Context{Editor: buf, Syntax: snap}, adapter: a, wantErr: "expansion panel"},
		{name: "adapter", ctx: Context{Editor: buf, Syntax: snap, Panel: snap}, wantErr: "adapter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ctx, tt.adapter, scheduler.Config{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_NilToggleReadsUnchecked(t *testing.T) {
	eng := &scriptedEngine{}
	snap := &Snapshot{}
	p, err := New(Context{Editor: NewTextBuffer("x"), Syntax: snap, Panel: snap}, adapter.New(eng, nil), scheduler.Config{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Refresh(context.Background()))
	assert.False(t, eng.requests()[0].Recursive)
}

func TestTextBufferAndFlag(t *testing.T) {
	b := NewTextBuffer("a")
	assert.False(t, b.Set("a"))
	assert.True(t, b.Set("b"))
	b.Append("c")
	assert.Equal(t, "bc", b.Value())

	f := NewFlag(false)
	assert.False(t, f.Set(false))
	assert.True(t, f.Set(true))
	assert.False(t, f.Toggle())
	assert.False(t, f.Checked())
}
