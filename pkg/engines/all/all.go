// Package all registers every built-in engine.
//
//	import _ "github.com/leapstack-labs/macroscope/pkg/engines/all"
package all

import (
	_ "github.com/leapstack-labs/macroscope/pkg/engines/exec"     // exec engine
	_ "github.com/leapstack-labs/macroscope/pkg/engines/rust"     // rust engine
	_ "github.com/leapstack-labs/macroscope/pkg/engines/starlark" // starlark engine
)
