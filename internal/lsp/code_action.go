package lsp

import (
	"encoding/json"
	"fmt"
)

// handleCodeAction handles the textDocument/codeAction request.
func (s *Server) handleCodeAction(msg *JSONRPCMessage) error {
	var params CodeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, invalidParams(err))
		return err
	}

	actions := s.getCodeActions(params)
	s.sendResponse(msg.ID, actions, nil)
	return nil
}

// getCodeActions offers to inline the expansion of every root call that
// overlaps the requested range. Only renders of the current document
// version are used, so the edit never targets stale text.
func (s *Server) getCodeActions(params CodeActionParams) []CodeAction {
	actions := []CodeAction{}

	uri := params.TextDocument.URI
	doc := s.documents.Get(uri)
	sess := s.session(uri)
	if doc == nil || sess == nil || sess.renderedVersion() != doc.Version {
		return actions
	}

	start := doc.PositionToOffset(params.Range.Start)
	end := doc.PositionToOffset(params.Range.End)

	for _, span := range locateCalls(doc.Content, sess.view.Nodes()) {
		if !overlaps(span.start, span.end, start, end) {
			continue
		}
		actions = append(actions, CodeAction{
			Title: fmt.Sprintf("Inline expansion of %s", span.node.Header),
			Kind:  CodeActionKindRefactorInline,
			Edit: &WorkspaceEdit{
				Changes: map[string][]TextEdit{
					uri: {{Range: doc.spanRange(span.start, span.end), NewText: span.node.Body}},
				},
			},
		})
	}
	return actions
}

// overlaps reports whether [aStart, aEnd) meets [bStart, bEnd]. An empty
// range (a cursor) touching a span counts as overlapping.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return bStart < aEnd && bEnd >= aStart
}
