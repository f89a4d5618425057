package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

func position(line, character uint32) TextDocumentPositionParams {
	return TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: testURI},
		Position:     Position{Line: line, Character: character},
	}
}

func TestLocateCalls(t *testing.T) {
	content := "a!(1); b!(2); a!(1);"
	nodes := []*expansion.Node{
		{Header: "a!(1)"},
		{Header: "missing!()"},
		{Header: "a!(1)"},
	}

	spans := locateCalls(content, nodes)

	require.Len(t, spans, 2)
	assert.Equal(t, 0, spans[0].start)
	assert.Equal(t, 5, spans[0].end)
	assert.Equal(t, 14, spans[1].start, "a repeated call site is found after the previous one")
	assert.Same(t, nodes[2], spans[1].node)
}

func TestHover_ShowsExpansionTree(t *testing.T) {
	f := newFixture(t)
	f.engine.Respond(squareSource, &core.ParseResult{
		SyntaxNodes: "SOURCE_FILE",
		Calls: []core.MacroCall{{
			CallSite: "square!(3)",
			Expanded: "mul!(3, 3)",
			Children: []core.MacroCall{{CallSite: "mul!(3, 3)", Expanded: "3 * 3"}},
		}},
	})
	f.open(squareSource)

	hover := f.server.getHover(HoverParams{position(0, 22)})
	require.NotNil(t, hover)
	assert.Equal(t, MarkupKindMarkdown, hover.Contents.Kind)
	assert.Contains(t, hover.Contents.Value, "- `square!(3)`")
	assert.Contains(t, hover.Contents.Value, "  - `mul!(3, 3)`")
	assert.Contains(t, hover.Contents.Value, "3 * 3")
	require.NotNil(t, hover.Range)
	assert.Equal(t, Position{Line: 0, Character: 20}, hover.Range.Start)
	assert.Equal(t, Position{Line: 0, Character: 30}, hover.Range.End)

	assert.Nil(t, f.server.getHover(HoverParams{position(0, 12)}), "no hover outside a call site")
	assert.Nil(t, f.server.getHover(HoverParams{position(0, 30)}), "the span end is exclusive")
}

func TestHover_ClosedDocument(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.server.getHover(HoverParams{position(0, 0)}))
}

func TestCompletion_DefinedMacros(t *testing.T) {
	f := newFixture(t)
	text := "fn main() { sq"
	f.engine.Respond(text, &core.ParseResult{
		SyntaxNodes: "SOURCE_FILE",
		MacroRules:  []string{"square {($x:expr) => {$x * $x}}", "cube {($x:expr) => {$x * $x * $x}}", "sqrt {() => {}}"},
	})
	f.open(text)

	items := f.server.getCompletions(CompletionParams{TextDocumentPositionParams: position(0, 14)})

	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = item.Label
	}
	assert.Equal(t, []string{"square!", "sqrt!"}, labels)
	assert.Equal(t, "square!($1)", items[0].InsertText)
	assert.Equal(t, InsertTextFormatSnippet, items[0].InsertTextFormat)
	assert.Equal(t, "{($x:expr) => {$x * $x}}", items[0].Documentation)
}

func TestCompletion_AfterBang(t *testing.T) {
	f := newFixture(t)
	text := "square!"
	f.engine.Respond(text, &core.ParseResult{MacroRules: []string{"square {}"}})
	f.open(text)

	assert.Empty(t, f.server.getCompletions(CompletionParams{TextDocumentPositionParams: position(0, 7)}))
}

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		before   string
		expected string
	}{
		{"", ""},
		{"fn main() { sq", "sq"},
		{"let x = my_mac", "my_mac"},
		{"foo(", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, extractPrefix(tt.before), "extractPrefix(%q)", tt.before)
	}
}

func TestCodeAction_InlineExpansion(t *testing.T) {
	f := newFixture(t)
	f.engine.Respond(squareSource, squareResult)
	f.open(squareSource)

	cursor := Range{Start: Position{Line: 0, Character: 25}, End: Position{Line: 0, Character: 25}}
	actions := f.server.getCodeActions(CodeActionParams{TextDocument: TextDocumentIdentifier{URI: testURI}, Range: cursor})

	require.Len(t, actions, 1)
	assert.Equal(t, "Inline expansion of square!(3)", actions[0].Title)
	assert.Equal(t, CodeActionKindRefactorInline, actions[0].Kind)
	edits := actions[0].Edit.Changes[testURI]
	require.Len(t, edits, 1)
	assert.Equal(t, "3 * 3", edits[0].NewText)
	assert.Equal(t, Range{Start: Position{Line: 0, Character: 20}, End: Position{Line: 0, Character: 30}}, edits[0].Range)

	away := Range{Start: Position{Line: 0, Character: 0}, End: Position{Line: 0, Character: 2}}
	assert.Empty(t, f.server.getCodeActions(CodeActionParams{TextDocument: TextDocumentIdentifier{URI: testURI}, Range: away}))
}

func TestCodeAction_StaleRender(t *testing.T) {
	f := newFixture(t)
	f.engine.Respond(squareSource, squareResult)
	f.open(squareSource)

	f.change(squareSource+"\n", 2)

	cursor := Range{Start: Position{Line: 0, Character: 25}, End: Position{Line: 0, Character: 25}}
	assert.Empty(t, f.server.getCodeActions(CodeActionParams{TextDocument: TextDocumentIdentifier{URI: testURI}, Range: cursor}),
		"no edits are offered until the current version has rendered")
}

func TestRenderDiagnostics_Unresolved(t *testing.T) {
	content := "x!(1);\ny!(2);"
	doc := newDocument(testURI, content, 1)
	nodes := []*expansion.Node{
		{Header: "x!(1)", Body: "1"},
		{Header: "y!(2)", Body: "z!()", Children: []*expansion.Node{
			{Header: "z!()", Body: "z!()", Unresolved: true},
		}},
	}

	diags := renderDiagnostics(doc, nodes, nil)

	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, CodeUnresolved, d.Code)
	assert.Equal(t, DiagnosticSeverityWarning, d.Severity)
	assert.Equal(t, Position{Line: 1, Character: 0}, d.Range.Start)
	assert.Equal(t, Position{Line: 1, Character: 5}, d.Range.End)
	assert.Contains(t, d.Message, "y!(2)")
}

func TestRenderDiagnostics_UnknownMacro(t *testing.T) {
	doc := newDocument(testURI, "let a = sqare!(2);\nprintln!(\"{}\", a);", 1)

	diags := renderDiagnostics(doc, nil, []string{"square {($x:expr) => {$x * $x}}"})

	require.Len(t, diags, 1, "println! is not close to any defined macro")
	d := diags[0]
	assert.Equal(t, CodeUnknownMacro, d.Code)
	assert.Equal(t, DiagnosticSeverityHint, d.Severity)
	assert.Equal(t, "Unknown macro 'sqare!'. Did you mean 'square!'?", d.Message)
	assert.Equal(t, Position{Line: 0, Character: 8}, d.Range.Start)
	assert.Equal(t, Position{Line: 0, Character: 14}, d.Range.End)
}

func TestRenderDiagnostics_NoRulesNoHints(t *testing.T) {
	doc := newDocument(testURI, "sqare!(2)", 1)
	assert.Empty(t, renderDiagnostics(doc, nil, nil))
}

func TestMacroNames(t *testing.T) {
	assert.Equal(t, []string{"square", "cube"}, macroNames([]string{"square {(...)}", "  cube body", ""}))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		s1       string
		s2       string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"kitten", "sitting", 3},
		{"square", "sqare", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, levenshtein(tt.s1, tt.s2), "levenshtein(%q, %q)", tt.s1, tt.s2)
	}
}

func TestSuggestSimilar(t *testing.T) {
	candidates := []string{"square", "cube", "vec_of", "hash_map"}

	tests := []struct {
		input       string
		maxDistance int
		expected    int
	}{
		{"sqare", 1, 1},
		{"cub", 2, 1},
		{"xyz", 1, 0},
		{"hashmap", 2, 1},
		{"square", 2, 0}, // exact match is not a suggestion
	}

	for _, tt := range tests {
		assert.Len(t, suggestSimilar(tt.input, candidates, tt.maxDistance), tt.expected, "suggestSimilar(%q, %d)", tt.input, tt.maxDistance)
	}
}
