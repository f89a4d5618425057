// Package core defines the shared language of the macroscope system.
//
// This package contains:
//   - Parse data exchanged with engines (ParseRequest, ParseResult, MacroCall)
//   - The engine contract (Engine) and its configuration (EngineConfig)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
