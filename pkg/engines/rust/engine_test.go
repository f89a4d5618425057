package rust

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/leapstack-labs/macroscope/internal/testutil"
	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

func newEngine(t *testing.T, cfg core.EngineConfig) *Engine {
	t.Helper()
	e, err := New(cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return e
}

func parseResult(t *testing.T, e *Engine, src string, recursive bool) *core.ParseResult {
	t.Helper()
	raw, err := e.ParseTextToSyntaxNode(context.Background(), src, recursive)
	require.NoError(t, err)
	result, ok := raw.(*core.ParseResult)
	require.True(t, ok, "expected *core.ParseResult, got %T", raw)
	return result
}

func TestEngine_Golden(t *testing.T) {
	ar, err := txtar.ParseFile("testdata/expand.txtar")
	require.NoError(t, err)

	files := make(map[string][]byte, len(ar.Files))
	var cases []string
	for _, f := range ar.Files {
		files[f.Name] = f.Data
		if name, ok := strings.CutSuffix(f.Name, ".rs"); ok {
			cases = append(cases, name)
		}
	}
	require.NotEmpty(t, cases)

	e := newEngine(t, core.EngineConfig{Type: Name})
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			want, ok := files[name+".json"]
			require.True(t, ok, "missing %s.json", name)

			result := parseResult(t, e, string(files[name+".rs"]), strings.Contains(name, "recursive"))

			got, err := json.Marshal(map[string]any{
				"calls":       result.Calls,
				"macro_rules": result.MacroRules,
			})
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

func TestEngine_SyntaxTree(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name})

	result := parseResult(t, e, "fn main() { m!(1); }", false)

	lines := strings.Split(strings.TrimRight(result.SyntaxNodes, "\n"), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "source_file@[0; 20)", lines[0])
	assert.Contains(t, result.SyntaxNodes, "  function_item@[0; 20)")
	assert.Contains(t, result.SyntaxNodes, `identifier@[3; 7) "main"`)
	assert.Contains(t, result.SyntaxNodes, "macro_invocation@[12; 17)")
	assert.Contains(t, result.SyntaxNodes, `"fn"@[0; 2)`)
}

func TestEngine_MalformedInputStillYieldsTree(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name})

	result := parseResult(t, e, "fn (((", false)

	assert.True(t,
		strings.Contains(result.SyntaxNodes, "ERROR") || strings.Contains(result.SyntaxNodes, "MISSING"),
		"syntax tree should mark the error:\n%s", result.SyntaxNodes)
	assert.Empty(t, result.Calls)
	assert.NotNil(t, result.Calls)
}

func TestEngine_EmptyInput(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name})

	result := parseResult(t, e, "", true)

	assert.Equal(t, "source_file@[0; 0)\n", result.SyntaxNodes)
	assert.Empty(t, result.Calls)
	assert.Empty(t, result.MacroRules)
}

func TestEngine_SkipsCallWithUnknownVariable(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name})

	src := "macro_rules! bad { ($x:tt) => { $y }; }\n" +
		"macro_rules! good { ($x:tt) => { $x }; }\n" +
		"fn main() { bad!(1); good!(2); }\n"
	result := parseResult(t, e, src, false)

	require.Len(t, result.Calls, 1)
	assert.Equal(t, "good!(2)", result.Calls[0].CallSite)
	assert.Len(t, result.MacroRules, 2)
}

func TestEngine_RecursionStopsAtMaxDepth(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name, MaxDepth: 3})
	src := "macro_rules! forever {\n    () => { forever!() };\n}\nfn main() { forever!(); }\n"

	result := parseResult(t, e, src, true)

	require.Len(t, result.Calls, 1)
	depth := 0
	for call := result.Calls[0]; ; call = call.Children[0] {
		depth++
		assert.Equal(t, "forever!()", call.CallSite)
		assert.Equal(t, "forever!()", call.Expanded)
		if len(call.Children) == 0 {
			break
		}
		require.Len(t, call.Children, 1)
	}
	assert.Equal(t, 4, depth)
}

func TestEngine_RecursiveDefinitionsAreShared(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name})
	src := `macro_rules! make {
    () => { macro_rules! made { () => { 7 }; } fn g() { made!(); } };
}
make!();
`

	result := parseResult(t, e, src, true)

	require.Len(t, result.Calls, 1)
	require.Len(t, result.Calls[0].Children, 1)
	assert.Equal(t, "made!()", result.Calls[0].Children[0].CallSite)
	assert.Equal(t, "7", result.Calls[0].Children[0].Expanded)
	assert.Equal(t, []string{"make {()=>{macro_rules!made{()=>{7};}fn g(){made!();}};}", "made {()=>{7};}"}, result.MacroRules)
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ParseTextToSyntaxNode(ctx, "fn main() {}", false)
	assert.Error(t, err)
}

func TestNew_MaxDepth(t *testing.T) {
	e := newEngine(t, core.EngineConfig{Type: Name})
	assert.Equal(t, DefaultMaxDepth, e.MaxDepth())

	_, err := New(core.EngineConfig{Type: Name, MaxDepth: -1}, nil)
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	require.True(t, engine.IsRegistered(Name))

	eng, err := engine.New(core.EngineConfig{Type: Name}, nil)
	require.NoError(t, err)
	assert.Equal(t, Name, eng.Name())
}
