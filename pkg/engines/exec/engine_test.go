package exec

import (
	"context"
	osexec "os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func shell(t *testing.T, script string, opts map[string]string) *Engine {
	t.Helper()
	requireShell(t)
	e, err := New(core.EngineConfig{Type: Name, Command: []string{"sh", "-c", script}, Options: opts}, nil)
	require.NoError(t, err)
	return e
}

func TestEngine_LegacyOutput(t *testing.T) {
	e := shell(t, `printf 'SOURCE_FILE '; cat`, nil)

	result, err := adapter.New(e, nil).Parse(context.Background(), "fn main() {}", false)
	require.NoError(t, err)

	assert.Equal(t, "SOURCE_FILE fn main() {}", result.SyntaxNodes)
	assert.Empty(t, result.Calls)
}

func TestEngine_ExtendedOutput(t *testing.T) {
	e := shell(t, `cat >/dev/null; printf '{"syntax_nodes":"S","calls":[{"call_site":"m!()","expanded":"%s","children":[]}]}' "$MACROSCOPE_RECURSIVE"`, nil)

	for _, recursive := range []bool{true, false} {
		result, err := adapter.New(e, nil).Parse(context.Background(), "m!()", recursive)
		require.NoError(t, err)

		require.Len(t, result.Calls, 1)
		want := "false"
		if recursive {
			want = "true"
		}
		assert.Equal(t, want, result.Calls[0].Expanded)
	}
}

func TestEngine_FailureIncludesStderr(t *testing.T) {
	e := shell(t, `echo "bad input" >&2; exit 3`, nil)

	_, err := e.ParseTextToSyntaxNode(context.Background(), "x", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, err.Error(), "bad input")
}

func TestEngine_Timeout(t *testing.T) {
	e := shell(t, `sleep 5`, map[string]string{"timeout": "50ms"})

	start := time.Now()
	_, err := e.ParseTextToSyntaxNode(context.Background(), "", false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(core.EngineConfig{Type: Name}, nil)
	assert.ErrorContains(t, err, "engine.command is required")

	_, err = New(core.EngineConfig{Type: Name, Command: []string{"cat"}, Options: map[string]string{"timeout": "soon"}}, nil)
	assert.ErrorContains(t, err, "invalid timeout")
}
