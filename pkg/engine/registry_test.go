package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/macroscope/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoEngine struct{ name string }

func (e echoEngine) Name() string { return e.name }

func (e echoEngine) ParseTextToSyntaxNode(_ context.Context, text string, _ bool) (any, error) {
	return text, nil
}

func TestUnknownEngineError_Error(t *testing.T) {
	err := &UnknownEngineError{
		Type:      "clang",
		Available: []string{"exec", "rust"},
	}

	msg := err.Error()

	assert.Contains(t, msg, "clang", "error should mention the unknown type")
	assert.Contains(t, msg, "rust", "error should list available engines")
	assert.Contains(t, msg, "macroscope.yaml", "error should mention config file")
}

func TestRegister(t *testing.T) {
	Register(Info{Name: "test_engine_internal", Protocol: "legacy"}, func(core.EngineConfig, *slog.Logger) (core.Engine, error) {
		return echoEngine{name: "test_engine_internal"}, nil
	})

	assert.True(t, IsRegistered("test_engine_internal"))
	assert.Contains(t, List(), "test_engine_internal")

	factory, ok := Get("test_engine_internal")
	require.True(t, ok)
	require.NotNil(t, factory)

	var found bool
	for _, info := range Describe() {
		if info.Name == "test_engine_internal" {
			found = true
			assert.Equal(t, "legacy", info.Protocol)
		}
	}
	assert.True(t, found)

	eng, err := New(core.EngineConfig{Type: "test_engine_internal"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test_engine_internal", eng.Name())
}

func TestNew_EmptyType(t *testing.T) {
	_, err := New(core.EngineConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, "engine type not specified", err.Error())
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(core.EngineConfig{Type: "does_not_exist"}, nil)

	var unknown *UnknownEngineError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "does_not_exist", unknown.Type)
}

func TestNew_FactoryError(t *testing.T) {
	boom := errors.New("missing script")
	Register(Info{Name: "test_failing_engine"}, func(core.EngineConfig, *slog.Logger) (core.Engine, error) {
		return nil, boom
	})

	_, err := New(core.EngineConfig{Type: "test_failing_engine"}, nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to create test_failing_engine engine")
}
