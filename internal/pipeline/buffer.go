package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/macroscope/internal/expansion"
)

// TextBuffer is a concurrency-safe Buffer owned by a front end.
type TextBuffer struct {
	mu   sync.RWMutex
	text string
}

// NewTextBuffer returns a buffer holding text.
func NewTextBuffer(text string) *TextBuffer {
	return &TextBuffer{text: text}
}

// Value returns the current text.
func (b *TextBuffer) Value() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Set replaces the text and reports whether it changed.
func (b *TextBuffer) Set(text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.text == text {
		return false
	}
	b.text = text
	return true
}

// Append adds text to the end of the buffer.
func (b *TextBuffer) Append(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text += text
}

// Flag is a concurrency-safe Toggle.
type Flag struct {
	v atomic.Bool
}

// NewFlag returns a flag set to checked.
func NewFlag(checked bool) *Flag {
	f := &Flag{}
	f.v.Store(checked)
	return f
}

// Checked reports the flag's value.
func (f *Flag) Checked() bool { return f.v.Load() }

// Set changes the flag and reports whether it changed.
func (f *Flag) Set(checked bool) bool {
	return f.v.Swap(checked) != checked
}

// Toggle inverts the flag and returns the new value.
func (f *Flag) Toggle() bool {
	for {
		old := f.v.Load()
		if f.v.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Snapshot collects render output in memory. It implements SyntaxView,
// ExpansionPanel, RulesView and ErrorView. The panel is updated last in a
// render, so OnChange runs after Replace with every part current. A failed
// run also calls OnChange; the previous output is kept.
type Snapshot struct {
	mu     sync.RWMutex
	syntax string
	nodes  []*expansion.Node
	rules  []string
	err    error

	OnChange func()
}

// SetValue implements SyntaxView.
func (s *Snapshot) SetValue(text string) {
	s.mu.Lock()
	s.syntax = text
	s.mu.Unlock()
}

// Replace implements ExpansionPanel.
func (s *Snapshot) Replace(nodes []*expansion.Node) {
	s.mu.Lock()
	s.nodes = nodes
	s.mu.Unlock()
	if s.OnChange != nil {
		s.OnChange()
	}
}

// SetRules implements RulesView.
func (s *Snapshot) SetRules(rules []string) {
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
}

// Syntax returns the last syntax text.
func (s *Snapshot) Syntax() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syntax
}

// Nodes returns the last expansion trees.
func (s *Snapshot) Nodes() []*expansion.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes
}

// Rules returns the last macro definitions.
func (s *Snapshot) Rules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// SetError implements ErrorView.
func (s *Snapshot) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	if err != nil && s.OnChange != nil {
		s.OnChange()
	}
}

// Err returns the error of the last run, or nil if it rendered.
func (s *Snapshot) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
