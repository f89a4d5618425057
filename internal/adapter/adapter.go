// Package adapter invokes a parsing engine and normalizes its response into
// a core.ParseResult.
//
// Engines speak one of two protocols. The legacy protocol returns a bare
// syntax string. The extended protocol returns a structured value with
// syntax_nodes, calls and optionally macro_rules. Both are accepted here so
// the rest of the pipeline only ever sees core.ParseResult.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/macroscope/pkg/core"
)

// Adapter calls an engine and normalizes the result. It holds no state
// between calls.
type Adapter struct {
	engine core.Engine
	logger *slog.Logger
}

// New creates an adapter for engine. A nil logger discards output.
func New(engine core.Engine, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{engine: engine, logger: logger}
}

// Engine returns the wrapped engine.
func (a *Adapter) Engine() core.Engine {
	return a.engine
}

// Parse sends text to the engine unmodified and normalizes the response.
// Errors are returned only for engine failures and unrecognized responses;
// malformed source text is the engine's to report inside SyntaxNodes.
func (a *Adapter) Parse(ctx context.Context, text string, recursive bool) (*core.ParseResult, error) {
	return a.ParseRequest(ctx, core.ParseRequest{Text: text, Recursive: recursive})
}

// ParseRequest runs one request.
func (a *Adapter) ParseRequest(ctx context.Context, req core.ParseRequest) (*core.ParseResult, error) {
	name := a.engine.Name()
	start := time.Now()

	raw, err := a.call(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", name, err)
	}

	result, err := Normalize(raw)
	if err != nil {
		var unsupported *UnsupportedResponseError
		if errors.As(err, &unsupported) {
			unsupported.Engine = name
		}
		return nil, err
	}

	a.logger.Debug("parsed buffer",
		"engine", name,
		"recursive", req.Recursive,
		"bytes", len(req.Text),
		"calls", result.CallCount(),
		"duration", time.Since(start),
	)
	return result, nil
}

func (a *Adapter) call(ctx context.Context, req core.ParseRequest) (raw any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.engine.ParseTextToSyntaxNode(ctx, req.Text, req.Recursive)
}

// Normalize converts any supported engine response into a ParseResult.
//
//	string                    legacy: the whole value is the syntax text
//	[]byte / json.RawMessage  extended when it holds a JSON object, else legacy
//	map[string]any            extended, decoded by field name
//	core.ParseResult (or ptr) extended, used as is
func Normalize(raw any) (*core.ParseResult, error) {
	var result *core.ParseResult

	switch v := raw.(type) {
	case string:
		result = &core.ParseResult{SyntaxNodes: v}
	case []byte:
		result = normalizeBytes(v)
	case json.RawMessage:
		result = normalizeBytes(v)
	case map[string]any:
		decoded, err := decodeMap(v)
		if err != nil {
			return nil, err
		}
		result = decoded
	case core.ParseResult:
		result = &v
	case *core.ParseResult:
		if v == nil {
			return nil, &UnsupportedResponseError{Type: "nil *core.ParseResult"}
		}
		clone := *v
		result = &clone
	default:
		return nil, &UnsupportedResponseError{Type: fmt.Sprintf("%T", raw)}
	}

	if result.Calls == nil {
		result.Calls = []core.MacroCall{}
	}
	return result, nil
}

func normalizeBytes(b []byte) *core.ParseResult {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var result core.ParseResult
		if err := json.Unmarshal(trimmed, &result); err == nil {
			return &result
		}
	}
	return &core.ParseResult{SyntaxNodes: string(b)}
}

func decodeMap(m map[string]any) (*core.ParseResult, error) {
	var result core.ParseResult
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &result,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("failed to decode engine response: %w", err)
	}
	return &result, nil
}

// UnsupportedResponseError is returned when an engine responds with a
// value of neither protocol.
type UnsupportedResponseError struct {
	Engine string
	Type   string
}

func (e *UnsupportedResponseError) Error() string {
	if e.Engine == "" {
		return fmt.Sprintf("unsupported engine response of type %s", e.Type)
	}
	return fmt.Sprintf("engine %s returned unsupported response of type %s\nHint: return a syntax string or an object with syntax_nodes and calls", e.Engine, e.Type)
}
