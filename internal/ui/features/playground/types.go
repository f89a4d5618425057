package playground

import (
	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/tabs"
)

// EditorSignals are the datastar signals sent by the editor.
type EditorSignals struct {
	Source    string `json:"source"`
	Recursive bool   `json:"recursive"`
}

// ViewData is everything the page renders for one workspace.
type ViewData struct {
	Source    string
	Recursive bool
	Engine    string

	Tabs   []string
	Active string

	Syntax string
	Nodes  []*expansion.Node
	Rules  []string

	Status StatusData
}

// StatusData summarizes the workspace pipeline.
type StatusData struct {
	State       string
	Invocations int
	Dropped     int
	LastError   string
}

// ExpandResponse is the JSON body of GET /api/expand.
type ExpandResponse struct {
	SyntaxNodes string            `json:"syntax_nodes"`
	MacroRules  []string          `json:"macro_rules"`
	Tree        []*expansion.Node `json:"tree"`
	Error       string            `json:"error,omitempty"`
}

// panelIDs maps tab ids to the element ids of their panels.
var panelIDs = map[string]string{
	tabs.Syntax:     "syntax-tree",
	tabs.Expansions: "expansions",
	tabs.Rules:      "macro-rules",
}
