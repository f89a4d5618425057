package lsp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/pipeline"
)

// docBuffer is the pipeline buffer of one document. Value records which
// version it handed out; runs are serialized, so when a run renders, the
// recorded version is the one it parsed.
type docBuffer struct {
	mu      sync.Mutex
	text    string
	version int

	parsedText    string
	parsedVersion int
}

// Value implements pipeline.Buffer.
func (b *docBuffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parsedText = b.text
	b.parsedVersion = b.version
	return b.text
}

func (b *docBuffer) set(text string, version int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	changed := b.text != text
	b.text = text
	b.version = version
	return changed
}

func (b *docBuffer) parsed() (string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parsedText, b.parsedVersion
}

// docFlag reads the server's recursion flag and records the value the
// running parse saw.
type docFlag struct {
	flag *pipeline.Flag
	seen atomic.Bool
}

// Checked implements pipeline.Toggle.
func (f *docFlag) Checked() bool {
	v := f.flag.Checked()
	f.seen.Store(v)
	return v
}

// session is the pipeline of one open document.
type session struct {
	uri      string
	buffer   *docBuffer
	flag     *docFlag
	view     *pipeline.Snapshot
	pipeline *pipeline.Pipeline

	mu       sync.Mutex
	rendered int
}

// edit hands new text to the pipeline. Unchanged text only bumps the
// version.
func (s *session) edit(text string, version int) {
	if s.buffer.set(text, version) {
		s.pipeline.Notify()
	}
}

// renderedVersion returns the document version of the last render.
func (s *session) renderedVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

func (s *Server) session(uri string) *session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return s.sessions[uri]
}

func (s *Server) allSessions() []*session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	return list
}

// openSession creates the document's pipeline and renders it once.
// Reopening a document replaces its pipeline.
func (s *Server) openSession(uri, text string, version int) error {
	if s.adapter == nil {
		return errors.New("no engine configured")
	}

	sess := &session{
		uri:    uri,
		buffer: &docBuffer{text: text, version: version},
		flag:   &docFlag{flag: s.recursive},
		view:   &pipeline.Snapshot{},
	}
	sess.view.OnChange = func() { s.publish(sess) }

	p, err := pipeline.New(pipeline.Context{
		Editor:    sess.buffer,
		Recursive: sess.flag,
		Syntax:    sess.view,
		Panel:     sess.view,
		Rules:     sess.view,
		Errors:    sess.view,
		Logger:    s.logger.With("uri", uri),
	}, s.adapter, s.scheduler)
	if err != nil {
		return err
	}
	sess.pipeline = p

	s.sessionsMu.Lock()
	old := s.sessions[uri]
	s.sessions[uri] = sess
	s.sessionsMu.Unlock()
	if old != nil {
		old.pipeline.Close()
	}

	if err := p.Refresh(context.Background()); err != nil {
		s.logger.Warn("Initial render failed", "uri", uri, "error", err)
	}
	return nil
}

func (s *Server) closeSession(uri string) {
	s.sessionsMu.Lock()
	sess := s.sessions[uri]
	delete(s.sessions, uri)
	s.sessionsMu.Unlock()

	if sess != nil {
		sess.pipeline.Close()
	}
}

func (s *Server) closeSessions() {
	s.sessionsMu.Lock()
	list := s.sessions
	s.sessions = make(map[string]*session)
	s.sessionsMu.Unlock()

	for _, sess := range list {
		sess.pipeline.Close()
	}
}

// publish runs after every pipeline run of sess. A successful render is
// announced with macroscope/didRender; either way the document's
// diagnostics are refreshed.
func (s *Server) publish(sess *session) {
	text, version := sess.buffer.parsed()

	if err := sess.view.Err(); err != nil {
		s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
			URI:         sess.uri,
			Version:     version,
			Diagnostics: []Diagnostic{engineDiagnostic(err)},
		})
		return
	}

	sess.mu.Lock()
	sess.rendered = version
	sess.mu.Unlock()

	nodes := sess.view.Nodes()
	rules := sess.view.Rules()
	s.sendNotification(MethodDidRender, &DidRenderParams{
		URI:         sess.uri,
		Version:     version,
		Recursive:   sess.flag.seen.Load(),
		SyntaxNodes: sess.view.Syntax(),
		Expansions:  nonNilNodes(nodes),
		MacroRules:  nonNilStrings(rules),
	})

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         sess.uri,
		Version:     version,
		Diagnostics: renderDiagnostics(newDocument(sess.uri, text, version), nodes, rules),
	})
}

func nonNilNodes(nodes []*expansion.Node) []*expansion.Node {
	if nodes == nil {
		return []*expansion.Node{}
	}
	return nodes
}

func nonNilStrings(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
