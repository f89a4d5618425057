package playground

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultTheme is the chroma style used when none is configured.
const DefaultTheme = "dracula"

// Highlighter renders Rust snippets as inline-styled HTML.
type Highlighter struct {
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter *html.Formatter
}

// NewHighlighter creates a highlighter for theme. Unknown themes fall back
// to chroma's default style.
func NewHighlighter(theme string) *Highlighter {
	if theme == "" {
		theme = DefaultTheme
	}
	lexer := lexers.Get("rust")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return &Highlighter{
		lexer:     chroma.Coalesce(lexer),
		style:     styles.Get(theme),
		formatter: html.New(html.WithClasses(false), html.PreventSurroundingPre(false)),
	}
}

// HTML returns code as a highlighted <pre> block.
func (h *Highlighter) HTML(code string) (string, error) {
	iterator, err := h.lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, iterator); err != nil {
		return "", err
	}
	return b.String(), nil
}
