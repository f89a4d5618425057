package core

import "context"

// Engine is the external parsing and macro-expansion engine.
//
// ParseTextToSyntaxNode returns either a bare syntax string (legacy
// protocol) or a structured value carrying syntax_nodes, calls and
// optionally macro_rules (extended protocol). Accepted structured shapes
// are ParseResult, *ParseResult, map[string]any and a JSON object as
// []byte. Malformed source text must still yield some syntax
// representation; an error is reserved for engine failure.
type Engine interface {
	// Name returns the registered engine type.
	Name() string

	ParseTextToSyntaxNode(ctx context.Context, text string, recursive bool) (any, error)
}

// EngineConfig selects and configures an engine.
type EngineConfig struct {
	// Type is the registered engine name (rust, starlark, exec).
	Type string `koanf:"type" json:"type"`

	// Script is the Starlark file used by the starlark engine.
	Script string `koanf:"script" json:"script,omitempty"`

	// Command is the command line run by the exec engine.
	Command []string `koanf:"command" json:"command,omitempty"`

	// MaxDepth bounds recursive expansion. Zero means the engine default.
	MaxDepth int `koanf:"max_depth" json:"max_depth,omitempty"`

	// Options carries engine specific settings.
	Options map[string]string `koanf:"options" json:"options,omitempty"`
}
