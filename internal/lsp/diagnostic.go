package lsp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/macroscope/internal/expansion"
)

const diagnosticSource = "macroscope"

// Diagnostic codes.
const (
	CodeEngineError  = "engine-error"
	CodeUnresolved   = "unresolved-expansion"
	CodeUnknownMacro = "unknown-macro"
)

// invocationPattern matches the name of a bang macro invocation.
var invocationPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)!\s*[(\[{]`)

// callSpan is the location of a root call site in the document.
type callSpan struct {
	node       *expansion.Node
	start, end int
}

// locateCalls finds each root call site in content. Roots arrive in
// source order, so each search starts where the previous site ended.
// Sites that cannot be found are skipped.
func locateCalls(content string, nodes []*expansion.Node) []callSpan {
	var spans []callSpan
	from := 0
	for _, n := range nodes {
		if n.Header == "" || from > len(content) {
			continue
		}
		i := strings.Index(content[from:], n.Header)
		if i < 0 {
			continue
		}
		start := from + i
		end := start + len(n.Header)
		spans = append(spans, callSpan{node: n, start: start, end: end})
		from = end
	}
	return spans
}

func (d *Document) spanRange(start, end int) Range {
	return Range{Start: d.OffsetToPosition(start), End: d.OffsetToPosition(end)}
}

// engineDiagnostic reports a failed parse. The previous render stays in
// place, so the diagnostic is anchored at the top of the document.
func engineDiagnostic(err error) Diagnostic {
	return Diagnostic{
		Severity: DiagnosticSeverityError,
		Code:     CodeEngineError,
		Source:   diagnosticSource,
		Message:  fmt.Sprintf("Macro engine failed: %v", err),
	}
}

// renderDiagnostics builds the diagnostics of a successful render of doc.
func renderDiagnostics(doc *Document, nodes []*expansion.Node, rules []string) []Diagnostic {
	diagnostics := []Diagnostic{}

	for _, span := range locateCalls(doc.Content, nodes) {
		if n := countUnresolved(span.node); n > 0 {
			diagnostics = append(diagnostics, Diagnostic{
				Range:    doc.spanRange(span.start, span.end),
				Severity: DiagnosticSeverityWarning,
				Code:     CodeUnresolved,
				Source:   diagnosticSource,
				Message:  fmt.Sprintf("%d nested call(s) could not be located in the expansion of %s", n, span.node.Header),
			})
		}
	}

	return append(diagnostics, unknownMacroDiagnostics(doc, rules)...)
}

func countUnresolved(root *expansion.Node) int {
	n := 0
	expansion.Walk([]*expansion.Node{root}, func(node *expansion.Node, _ int) bool {
		if node.Unresolved {
			n++
		}
		return true
	})
	return n
}

// unknownMacroDiagnostics hints at invocations of undefined macros whose
// name is close to a defined one.
func unknownMacroDiagnostics(doc *Document, rules []string) []Diagnostic {
	defined := macroNames(rules)
	if len(defined) == 0 {
		return nil
	}

	known := make(map[string]bool, len(defined))
	for _, name := range defined {
		known[name] = true
	}

	var diagnostics []Diagnostic
	for _, m := range invocationPattern.FindAllStringSubmatchIndex(doc.Content, -1) {
		name := doc.Content[m[2]:m[3]]
		if known[name] || name == "macro_rules" {
			continue
		}
		suggestions := suggestSimilar(name, defined, 2)
		if len(suggestions) == 0 {
			continue
		}
		diagnostics = append(diagnostics, Diagnostic{
			Range:    doc.spanRange(m[2], m[3]+1),
			Severity: DiagnosticSeverityHint,
			Code:     CodeUnknownMacro,
			Source:   diagnosticSource,
			Message:  fmt.Sprintf("Unknown macro '%s!'. Did you mean '%s!'?", name, suggestions[0]),
		})
	}
	return diagnostics
}

// macroNames returns the names of the reported macro definitions. Each
// rule is "name body".
func macroNames(rules []string) []string {
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		name, _, _ := strings.Cut(strings.TrimSpace(rule), " ")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// suggestSimilar finds similar strings using Levenshtein distance.
func suggestSimilar(input string, candidates []string, maxDistance int) []string {
	inputLower := strings.ToLower(input)
	var suggestions []string

	for _, candidate := range candidates {
		dist := levenshtein(inputLower, strings.ToLower(candidate))
		if dist <= maxDistance && dist > 0 {
			suggestions = append(suggestions, candidate)
		}
	}

	return suggestions
}

// levenshtein calculates the Levenshtein distance between two strings.
func levenshtein(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(s1)][len(s2)]
}
