// Package expansion turns macro calls into display trees.
//
// Each node's body is its parent's accumulated text with the node's own
// call site substituted by its expansion, so nested expansions read fully
// expanded inline. Substitution is textual and replaces only the first
// occurrence of the call site.
package expansion

import (
	"strings"

	"github.com/leapstack-labs/macroscope/pkg/core"
)

// Node is one rendered expansion card.
type Node struct {
	Header   string  `json:"header"`
	Body     string  `json:"body"`
	Children []*Node `json:"children,omitempty"`

	// Unresolved is set when the call site was not found in the parent's
	// text, leaving Body equal to that text.
	Unresolved bool `json:"unresolved,omitempty"`
}

// Build builds the display tree for a root-level call: the header is the
// call site and the body is the expansion.
func Build(call core.MacroCall) *Node {
	node := &Node{Header: call.CallSite, Body: call.Expanded}
	node.Children = buildChildren(call.Children, node.Body)
	return node
}

// BuildAll builds one tree per root-level call, preserving order.
func BuildAll(calls []core.MacroCall) []*Node {
	nodes := make([]*Node, 0, len(calls))
	for _, call := range calls {
		nodes = append(nodes, Build(call))
	}
	return nodes
}

func buildChildren(calls []core.MacroCall, parentText string) []*Node {
	if len(calls) == 0 {
		return nil
	}
	nodes := make([]*Node, 0, len(calls))
	for _, call := range calls {
		nodes = append(nodes, buildNested(call, parentText))
	}
	return nodes
}

func buildNested(call core.MacroCall, parentText string) *Node {
	body, ok := replaceFirst(parentText, call.CallSite, call.Expanded)
	node := &Node{
		Header:     parentText,
		Body:       body,
		Unresolved: !ok,
	}
	node.Children = buildChildren(call.Children, body)
	return node
}

// replaceFirst substitutes the first occurrence of old in s. An empty or
// missing old leaves s unchanged and reports false.
func replaceFirst(s, old, replacement string) (string, bool) {
	if old == "" {
		return s, false
	}
	i := strings.Index(s, old)
	if i < 0 {
		return s, false
	}
	return s[:i] + replacement + s[i+len(old):], true
}

// Walk visits n and its descendants depth-first, pre-order, passing the
// depth of each node (roots are depth 0). Returning false skips the
// node's children.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	for _, n := range nodes {
		walk(n, 0, fn)
	}
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Count returns the number of nodes in the forest.
func Count(nodes []*Node) int {
	n := 0
	Walk(nodes, func(*Node, int) bool {
		n++
		return true
	})
	return n
}
