package output

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/muesli/termenv"
)

// Code returns Rust source highlighted for the terminal. Outside text mode,
// or without colour support, code is returned unchanged.
func (r *Renderer) Code(code string) string {
	if r.EffectiveMode() != ModeText || r.profile == termenv.Ascii {
		return code
	}

	var formatter string
	switch r.profile {
	case termenv.TrueColor:
		formatter = "terminal16m"
	case termenv.ANSI256:
		formatter = "terminal256"
	default:
		formatter = "terminal16"
	}

	var b strings.Builder
	if err := quick.Highlight(&b, code, "rust", formatter, r.theme); err != nil {
		return code
	}
	return strings.TrimRight(b.String(), "\n")
}
