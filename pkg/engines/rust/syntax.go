package rust

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// dumpSyntax prints the concrete syntax tree one node per line, indented
// two spaces per level:
//
//	source_file@[0; 24)
//	  macro_invocation@[0; 12)
//	    identifier@[0; 7) "macro_a"
//	    "!"@[7; 8)
//
// Anonymous nodes are quoted, missing nodes inserted by error recovery are
// prefixed with MISSING, and named leaves carry their text.
func dumpSyntax(root *sitter.Node, src []byte) string {
	var b strings.Builder
	walk(root, 0, func(n *sitter.Node, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		if n.IsMissing() {
			b.WriteString("MISSING ")
		}
		kind := n.Type()
		if !n.IsNamed() {
			kind = strconv.Quote(kind)
		}
		fmt.Fprintf(&b, "%s@[%d; %d)", kind, n.StartByte(), n.EndByte())
		if n.IsNamed() && n.ChildCount() == 0 && !n.IsMissing() {
			fmt.Fprintf(&b, " %q", n.Content(src))
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}

// walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func walk(n *sitter.Node, depth int, fn func(*sitter.Node, int) bool) {
	if n == nil || !fn(n, depth) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), depth+1, fn)
	}
}

// nodeText returns the source text of node.
func nodeText(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}
