package core

// ParseRequest is one immutable request to an engine: a buffer snapshot
// plus the recursion flag read at the same moment.
type ParseRequest struct {
	Text      string
	Recursive bool
}

// ParseResult is the normalized engine response. A new result always
// replaces the previous one; results are never merged.
type ParseResult struct {
	// SyntaxNodes is the engine's textual syntax representation, shown verbatim.
	SyntaxNodes string `json:"syntax_nodes" mapstructure:"syntax_nodes"`

	// Calls are the root-level macro calls in source order.
	Calls []MacroCall `json:"calls" mapstructure:"calls"`

	// MacroRules lists the macro definitions the engine saw, one
	// "name body" string per definition. Empty for legacy engines.
	MacroRules []string `json:"macro_rules,omitempty" mapstructure:"macro_rules"`
}

// MacroCall is one macro invocation and its expansion. Children are the
// calls found inside Expanded, in source order.
type MacroCall struct {
	CallSite string      `json:"call_site" mapstructure:"call_site"`
	Expanded string      `json:"expanded" mapstructure:"expanded"`
	Children []MacroCall `json:"children" mapstructure:"children"`
}

// CallCount returns the number of calls in the result, nested ones included.
func (r *ParseResult) CallCount() int {
	if r == nil {
		return 0
	}
	return countCalls(r.Calls)
}

func countCalls(calls []MacroCall) int {
	n := len(calls)
	for i := range calls {
		n += countCalls(calls[i].Children)
	}
	return n
}
