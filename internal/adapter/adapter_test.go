package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/leapstack-labs/macroscope/internal/testutil"
	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine returns a fixed response and records what it was asked.
type stubEngine struct {
	response any
	err      error
	panicMsg string

	gotText      string
	gotRecursive bool
	calls        int
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) ParseTextToSyntaxNode(_ context.Context, text string, recursive bool) (any, error) {
	e.calls++
	e.gotText = text
	e.gotRecursive = recursive
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	return e.response, e.err
}

func TestParse_LegacyString(t *testing.T) {
	eng := &stubEngine{response: "SOURCE_FILE@[0; 11)"}
	a := New(eng, testutil.NewTestLogger(t))

	result, err := a.Parse(context.Background(), "macro_a!(1)", false)

	require.NoError(t, err)
	assert.Equal(t, "SOURCE_FILE@[0; 11)", result.SyntaxNodes)
	assert.Empty(t, result.Calls)
	assert.NotNil(t, result.Calls)
	assert.Equal(t, "macro_a!(1)", eng.gotText)
}

func TestParse_ExtendedMap(t *testing.T) {
	eng := &stubEngine{response: map[string]any{
		"syntax_nodes": "SOURCE_FILE",
		"macro_rules":  []any{"macro_a ($x:expr) => {fn f(){$x}}"},
		"calls": []any{
			map[string]any{
				"call_site": "macro_a!(1)",
				"expanded":  "fn f(){1}",
				"children":  []any{},
			},
		},
	}}
	a := New(eng, nil)

	result, err := a.Parse(context.Background(), "macro_a!(1)", true)

	require.NoError(t, err)
	assert.True(t, eng.gotRecursive)
	assert.Equal(t, "SOURCE_FILE", result.SyntaxNodes)
	assert.Equal(t, []string{"macro_a ($x:expr) => {fn f(){$x}}"}, result.MacroRules)
	require.Len(t, result.Calls, 1)
	assert.Equal(t, "macro_a!(1)", result.Calls[0].CallSite)
	assert.Equal(t, "fn f(){1}", result.Calls[0].Expanded)
}

func TestParse_ExtendedNestedChildren(t *testing.T) {
	eng := &stubEngine{response: map[string]any{
		"syntax_nodes": "tree",
		"calls": []any{
			map[string]any{
				"call_site": "foo!()",
				"expanded":  "bar!()",
				"children": []any{
					map[string]any{"call_site": "bar!()", "expanded": "42"},
				},
			},
		},
	}}

	result, err := New(eng, nil).Parse(context.Background(), "foo!()", true)

	require.NoError(t, err)
	require.Len(t, result.Calls, 1)
	require.Len(t, result.Calls[0].Children, 1)
	assert.Equal(t, "42", result.Calls[0].Children[0].Expanded)
	assert.Equal(t, 2, result.CallCount())
}

func TestNormalize_Shapes(t *testing.T) {
	structured := core.ParseResult{
		SyntaxNodes: "tree",
		Calls:       []core.MacroCall{{CallSite: "a!()", Expanded: "1"}},
	}
	encoded, err := json.Marshal(structured)
	require.NoError(t, err)

	tests := []struct {
		name       string
		raw        any
		wantSyntax string
		wantCalls  int
	}{
		{name: "string", raw: "tree", wantSyntax: "tree"},
		{name: "value", raw: structured, wantSyntax: "tree", wantCalls: 1},
		{name: "pointer", raw: &structured, wantSyntax: "tree", wantCalls: 1},
		{name: "json bytes", raw: encoded, wantSyntax: "tree", wantCalls: 1},
		{name: "raw message", raw: json.RawMessage(encoded), wantSyntax: "tree", wantCalls: 1},
		{name: "plain bytes", raw: []byte("ERROR@[0; 3)\n"), wantSyntax: "ERROR@[0; 3)\n"},
		{name: "broken json bytes stay legacy", raw: []byte("{not json"), wantSyntax: "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSyntax, result.SyntaxNodes)
			assert.Len(t, result.Calls, tt.wantCalls)
		})
	}
}

func TestNormalize_PointerIsCopied(t *testing.T) {
	original := &core.ParseResult{SyntaxNodes: "tree"}

	result, err := Normalize(original)
	require.NoError(t, err)

	result.SyntaxNodes = "changed"
	assert.Equal(t, "tree", original.SyntaxNodes)
}

func TestParse_UnsupportedResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{name: "nil", raw: nil},
		{name: "int", raw: 42},
		{name: "nil pointer", raw: (*core.ParseResult)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&stubEngine{response: tt.raw}, nil).Parse(context.Background(), "x", false)

			var unsupported *UnsupportedResponseError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, "stub", unsupported.Engine)
			assert.Contains(t, err.Error(), "Hint:")
		})
	}
}

func TestParse_MapWithWrongTypes(t *testing.T) {
	eng := &stubEngine{response: map[string]any{
		"syntax_nodes": "tree",
		"calls":        "not a list",
	}}

	_, err := New(eng, nil).Parse(context.Background(), "x", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode engine response")
}

func TestParse_EngineError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(&stubEngine{err: boom}, nil).Parse(context.Background(), "x", false)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "engine stub")
}

func TestParse_EnginePanicBecomesError(t *testing.T) {
	_, err := New(&stubEngine{panicMsg: "index out of range"}, nil).Parse(context.Background(), "x", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: index out of range")
}

func TestParse_PassesMalformedTextThrough(t *testing.T) {
	eng := &stubEngine{response: "ERROR@[0; 5)"}
	a := New(eng, nil)

	result, err := a.Parse(context.Background(), "fn (((", false)

	require.NoError(t, err)
	assert.Equal(t, "fn (((", eng.gotText)
	assert.Equal(t, "ERROR@[0; 5)", result.SyntaxNodes)
}

func TestParse_Idempotent(t *testing.T) {
	eng := &stubEngine{response: map[string]any{
		"syntax_nodes": "tree",
		"calls":        []any{map[string]any{"call_site": "a!()", "expanded": "1"}},
	}}
	a := New(eng, nil)

	first, err := a.Parse(context.Background(), "a!()", false)
	require.NoError(t, err)
	second, err := a.Parse(context.Background(), "a!()", false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, eng.calls)
}

func TestParseRequest(t *testing.T) {
	eng := &stubEngine{response: "tree"}
	result, err := New(eng, nil).ParseRequest(context.Background(), core.ParseRequest{Text: "t", Recursive: true})

	require.NoError(t, err)
	assert.Equal(t, "tree", result.SyntaxNodes)
	assert.True(t, eng.gotRecursive)
	assert.Equal(t, "stub", New(eng, nil).Engine().Name())
}
