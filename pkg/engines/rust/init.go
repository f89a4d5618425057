// Package rust provides the built-in Rust macro engine for Macroscope.
//
// This file registers the engine with the engine registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/macroscope/pkg/engines/rust"
package rust

import (
	"log/slog"

	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

func init() {
	engine.Register(engine.Info{
		Name:        Name,
		Description: "tree-sitter syntax tree with macro_rules! expansion",
		Protocol:    "extended",
	}, func(cfg core.EngineConfig, logger *slog.Logger) (core.Engine, error) {
		return New(cfg, logger)
	})
}
