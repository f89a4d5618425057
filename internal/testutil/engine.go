package testutil

import (
	"context"
	"sync"

	"github.com/leapstack-labs/macroscope/pkg/core"
)

// StubEngine is an engine that renders "SOURCE_FILE <text>" unless a
// response or failure is registered for the exact text.
type StubEngine struct {
	mu        sync.Mutex
	responses map[string]any
	failures  map[string]error
	calls     int
}

// NewStubEngine creates an engine with no scripted responses.
func NewStubEngine() *StubEngine {
	return &StubEngine{
		responses: make(map[string]any),
		failures:  make(map[string]error),
	}
}

// Name implements core.Engine.
func (e *StubEngine) Name() string { return "stub" }

// Respond registers the raw response returned for text.
func (e *StubEngine) Respond(text string, response any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[text] = response
}

// Fail registers the error returned for text.
func (e *StubEngine) Fail(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[text] = err
}

// Calls returns how many parses ran.
func (e *StubEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ParseTextToSyntaxNode implements core.Engine.
func (e *StubEngine) ParseTextToSyntaxNode(_ context.Context, text string, _ bool) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err := e.failures[text]; err != nil {
		return nil, err
	}
	if r, ok := e.responses[text]; ok {
		return r, nil
	}
	return "SOURCE_FILE " + text, nil
}

var _ core.Engine = (*StubEngine)(nil)
