package playground

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/tabs"
	"github.com/leapstack-labs/macroscope/internal/ui/features"
)

func renderString(t *testing.T, render func(*bytes.Buffer) error) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, render(&buf))
	return buf.String()
}

func TestTabBar_MarksActive(t *testing.T) {
	out := renderString(t, func(b *bytes.Buffer) error {
		return TabBar(tabs.New().Tabs(), tabs.Rules).Render(context.Background(), b)
	})

	assert.Contains(t, out, `<button class="tab" data-on:click="@post(&#39;/tabs/syntax&#39;)">Syntax</button>`)
	assert.Contains(t, out, `class="tab active"`)
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte("active")))
}

func TestExpansionNode_EscapesAndNests(t *testing.T) {
	node := &expansion.Node{
		Header:     "wrap!(<b>)",
		Body:       "inner!()",
		Unresolved: true,
		Children:   []*expansion.Node{{Header: "inner!()", Body: "1"}},
	}
	out := renderString(t, func(b *bytes.Buffer) error {
		return ExpansionNode(node, nil).Render(context.Background(), b)
	})

	assert.Contains(t, out, `<details open class="expansion unresolved">`)
	assert.Contains(t, out, "wrap!(&lt;b&gt;)")
	assert.Contains(t, out, "<pre>inner!()</pre>")
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte("<details")))
}

func TestRulesPanel(t *testing.T) {
	empty := renderString(t, func(b *bytes.Buffer) error {
		return RulesPanel(nil, tabs.Syntax).Render(context.Background(), b)
	})
	assert.Contains(t, empty, `<div id="macro-rules" class="panel" hidden>`)
	assert.Contains(t, empty, "No macro definitions.")

	listed := renderString(t, func(b *bytes.Buffer) error {
		return RulesPanel([]string{"one {() => {1}}"}, tabs.Rules).Render(context.Background(), b)
	})
	doc := features.ParseHTML(t, listed)
	panel := features.FindByID(doc, "macro-rules")
	require.NotNil(t, panel)
	assert.False(t, features.HasAttr(panel, "hidden"))
	assert.Equal(t, "one {() => {1}}", features.TextContent(panel))
}

func TestStatus(t *testing.T) {
	out := renderString(t, func(b *bytes.Buffer) error {
		return Status(StatusData{State: "idle", Invocations: 3, Dropped: 1, LastError: "boom"}).Render(context.Background(), b)
	})
	assert.Contains(t, out, "idle · 3 renders · 1 coalesced")
	assert.Contains(t, out, `<span class="error">boom</span>`)
}
