package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func evalWithBuiltins(t *testing.T, src string) (starlark.StringDict, error) {
	t.Helper()
	pool := NewThreadPool(1, nil)
	script, err := Load(pool, "test.star", []byte(src), Predeclared(&EngineInfo{Name: "starlark", MaxDepth: 4}))
	if err != nil {
		return nil, err
	}
	return script.Globals, nil
}

func TestPredeclared(t *testing.T) {
	globals := Predeclared(&EngineInfo{Name: "starlark"})

	for _, name := range []string{"engine", "macro_call", "parse_result"} {
		_, ok := globals[name]
		assert.True(t, ok, "%s not found in globals", name)
	}
}

func TestPredeclared_NilEngine(t *testing.T) {
	globals := Predeclared(nil)

	_, ok := globals["engine"]
	assert.False(t, ok, "engine should not be in globals when nil")
	_, ok = globals["macro_call"]
	assert.True(t, ok, "macro_call not found in globals")
}

func TestParseResultBuiltin(t *testing.T) {
	globals, err := evalWithBuiltins(t, `
inner = macro_call("b!()", "2")
outer = macro_call(call_site = "a!()", expanded = "b!()", children = [inner])
result = parse_result("SOURCE_FILE", calls = [outer], macro_rules = ["a {()=>{b!()}}"])
depth = engine.max_depth
`)
	require.NoError(t, err)

	got, err := ToGo(globals["result"])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"syntax_nodes": "SOURCE_FILE",
		"calls": []any{
			map[string]any{
				"call_site": "a!()",
				"expanded":  "b!()",
				"children": []any{
					map[string]any{"call_site": "b!()", "expanded": "2", "children": []any{}},
				},
			},
		},
		"macro_rules": []any{"a {()=>{b!()}}"},
	}, got)
	assert.Equal(t, "4", globals["depth"].String())
}

func TestParseResultBuiltin_Defaults(t *testing.T) {
	globals, err := evalWithBuiltins(t, `result = parse_result("x")`)
	require.NoError(t, err)

	got, err := ToGo(globals["result"])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"syntax_nodes": "x", "calls": []any{}, "macro_rules": []any{}}, got)
}

func TestBuiltins_RejectBadArguments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"call site not string", `macro_call(1, "x")`, "macro_call"},
		{"children not calls", `macro_call("a!()", "x", children = ["nope"])`, "want macro_call"},
		{"calls not calls", `parse_result("x", calls = [1])`, "want macro_call"},
		{"rules not strings", `parse_result("x", macro_rules = [1])`, "must be a string"},
		{"missing syntax", `parse_result()`, "missing argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evalWithBuiltins(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
