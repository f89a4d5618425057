package playground

import (
	"encoding/json"
	"fmt"

	"github.com/a-h/templ"
)

//go:generate templ generate -f components.templ

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// editorSignals is the initial data-signals value of the page.
func editorSignals(data ViewData) string {
	b, _ := json.Marshal(EditorSignals{Source: data.Source, Recursive: data.Recursive})
	return string(b)
}

func highlightOrEscape(hl *Highlighter, code string) string {
	if hl != nil {
		if out, err := hl.HTML(code); err == nil {
			return out
		}
	}
	return "<pre>" + templ.EscapeString(code) + "</pre>"
}

func statusLine(s StatusData) string {
	return fmt.Sprintf("%s · %d renders · %d coalesced", s.State, s.Invocations, s.Dropped)
}
