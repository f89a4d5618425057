package output

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"

	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/tabs"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

// ExpandOutput is the JSON shape of a rendered parse result. Sections that
// were not requested are omitted.
type ExpandOutput struct {
	Engine      string            `json:"engine,omitempty"`
	Recursive   bool              `json:"recursive"`
	SyntaxNodes *string           `json:"syntax_nodes,omitempty"`
	MacroRules  []string          `json:"macro_rules,omitempty"`
	Tree        []*expansion.Node `json:"tree,omitempty"`
}

// ResultView is a parse result with its display tree.
type ResultView struct {
	Engine    string
	Recursive bool
	Result    *core.ParseResult
	Nodes     []*expansion.Node
}

// AllSections lists the sections rendered when none are requested.
var AllSections = []string{tabs.Syntax, tabs.Expansions, tabs.Rules}

// ParseResult writes the requested sections of v. Sections are tab ids;
// none means all.
func (r *Renderer) ParseResult(v ResultView, sections ...string) error {
	if len(sections) == 0 {
		sections = AllSections
	}
	for _, s := range sections {
		if !slices.Contains(AllSections, s) {
			return fmt.Errorf("unknown section %q (want one of %s)", s, strings.Join(AllSections, ", "))
		}
	}

	res := v.Result
	if res == nil {
		res = &core.ParseResult{}
	}
	nodes := v.Nodes
	if nodes == nil {
		nodes = expansion.BuildAll(res.Calls)
	}
	want := func(s string) bool { return slices.Contains(sections, s) }

	switch r.EffectiveMode() {
	case ModeJSON:
		out := ExpandOutput{Engine: v.Engine, Recursive: v.Recursive}
		if want(tabs.Syntax) {
			out.SyntaxNodes = &res.SyntaxNodes
		}
		if want(tabs.Expansions) {
			out.Tree = nodes
		}
		if want(tabs.Rules) {
			out.MacroRules = res.MacroRules
		}
		return r.JSON(out)

	case ModeMarkdown:
		r.Println(r.markdownResult(res, nodes, want))
		return nil

	default:
		r.textResult(res, nodes, want)
		return nil
	}
}

func (r *Renderer) textResult(res *core.ParseResult, nodes []*expansion.Node, want func(string) bool) {
	first := true
	section := func(title string) {
		if !first {
			r.Println()
		}
		first = false
		r.Header(2, title)
	}

	if want(tabs.Syntax) {
		section(tabs.Title(tabs.Syntax))
		r.Println(strings.TrimRight(res.SyntaxNodes, "\n"))
	}

	if want(tabs.Expansions) {
		section(fmt.Sprintf("%s (%d)", tabs.Title(tabs.Expansions), expansion.Count(nodes)))
		if len(nodes) == 0 {
			r.Muted("No macro calls.")
		}
		for _, n := range nodes {
			r.Println(r.ExpansionTree(n).String())
		}
	}

	if want(tabs.Rules) {
		section(tabs.Title(tabs.Rules))
		if len(res.MacroRules) == 0 {
			r.Muted("No macro definitions.")
		}
		for _, rule := range res.MacroRules {
			r.Println(r.Code(rule))
		}
	}
}

// ExpansionTree converts n into a lipgloss tree: the call site is the
// root, the expansion its first child, nested calls the rest.
func (r *Renderer) ExpansionTree(n *expansion.Node) *tree.Tree {
	header := r.styles.CallSite.Render(n.Header)
	if n.Unresolved {
		header += " " + r.styles.Warning.Render("(unresolved)")
	}

	t := tree.Root(header).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(r.styles.Branch)
	t.Child(r.Code(n.Body))
	for _, c := range n.Children {
		t.Child(r.ExpansionTree(c))
	}
	return t
}

func (r *Renderer) markdownResult(res *core.ParseResult, nodes []*expansion.Node, want func(string) bool) string {
	var parts []string

	if want(tabs.Syntax) {
		parts = append(parts,
			FormatHeader(2, tabs.Title(tabs.Syntax)),
			FormatCodeBlock("text", res.SyntaxNodes))
	}

	if want(tabs.Expansions) {
		parts = append(parts, FormatHeader(2, tabs.Title(tabs.Expansions)))
		if len(nodes) == 0 {
			parts = append(parts, "_No macro calls._")
		} else {
			trees := make([]string, len(nodes))
			for i, n := range nodes {
				trees[i] = MarkdownTree(n)
			}
			parts = append(parts, strings.Join(trees, "\n"))
		}
	}

	if want(tabs.Rules) {
		parts = append(parts, FormatHeader(2, tabs.Title(tabs.Rules)))
		if len(res.MacroRules) == 0 {
			parts = append(parts, "_No macro definitions._")
		} else {
			items := make([]string, len(res.MacroRules))
			for i, rule := range res.MacroRules {
				items[i] = "- " + FormatInlineCode(rule)
			}
			parts = append(parts, strings.Join(items, "\n"))
		}
	}

	return strings.Join(parts, "\n\n")
}

// MarkdownTree renders n and its descendants as a nested markdown list
// with one rust code block per expansion.
func MarkdownTree(n *expansion.Node) string {
	var b strings.Builder
	writeMarkdownNode(&b, n, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeMarkdownNode(b *strings.Builder, n *expansion.Node, depth int) {
	pad := depth * 2
	item := "- " + FormatInlineCode(n.Header)
	if n.Unresolved {
		item += " _(unresolved)_"
	}
	b.WriteString(indent(item, pad) + "\n")
	b.WriteString(indent(FormatCodeBlock("rust", n.Body), pad+2) + "\n")
	for _, c := range n.Children {
		writeMarkdownNode(b, c, depth+1)
	}
}
