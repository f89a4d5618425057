package lsp

import (
	"encoding/json"
	"strings"

	"github.com/leapstack-labs/macroscope/internal/cli/output"
)

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, invalidParams(err))
		return err
	}

	items := s.getCompletions(params)
	s.sendResponse(msg.ID, &CompletionList{Items: items}, nil)
	return nil
}

func (s *Server) handleHover(msg *JSONRPCMessage) error {
	var params HoverParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, invalidParams(err))
		return err
	}

	hover := s.getHover(params)
	s.sendResponse(msg.ID, hover, nil)
	return nil
}

// getCompletions offers the macros defined in the last render of the
// document whose names start with the word being typed.
func (s *Server) getCompletions(params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	sess := s.session(params.TextDocument.URI)
	if doc == nil || sess == nil {
		return nil
	}

	before := doc.GetTextBefore(params.Position)
	if strings.HasSuffix(before, "!") {
		return nil
	}
	prefix := extractPrefix(before)

	items := []CompletionItem{}
	for _, rule := range sess.view.Rules() {
		name, body, _ := strings.Cut(strings.TrimSpace(rule), " ")
		if name == "" || !strings.HasPrefix(name, prefix) {
			continue
		}
		items = append(items, CompletionItem{
			Label:            name + "!",
			Kind:             CompletionItemKindSnippet,
			Detail:           "macro_rules! " + name,
			Documentation:    body,
			InsertText:       name + "!($1)",
			InsertTextFormat: InsertTextFormatSnippet,
		})
	}
	return items
}

// extractPrefix gets the identifier being typed at the end of before.
func extractPrefix(before string) string {
	start := len(before)
	for start > 0 && isWordChar(before[start-1]) {
		start--
	}
	return before[start:]
}

// getHover shows the expansion tree of the root call under the cursor.
func (s *Server) getHover(params HoverParams) *Hover {
	doc := s.documents.Get(params.TextDocument.URI)
	sess := s.session(params.TextDocument.URI)
	if doc == nil || sess == nil {
		return nil
	}

	span, ok := callAt(doc, sess, doc.PositionToOffset(params.Position))
	if !ok {
		return nil
	}

	r := doc.spanRange(span.start, span.end)
	return &Hover{
		Contents: MarkupContent{
			Kind:  MarkupKindMarkdown,
			Value: output.MarkdownTree(span.node),
		},
		Range: &r,
	}
}

// callAt returns the root call whose site contains offset.
func callAt(doc *Document, sess *session, offset int) (callSpan, bool) {
	for _, span := range locateCalls(doc.Content, sess.view.Nodes()) {
		if offset >= span.start && offset < span.end {
			return span, true
		}
	}
	return callSpan{}, false
}
