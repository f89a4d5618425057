// Package engine is the registry of parsing engines.
//
// Engine implementations live in pkg/engines/ subdirectories and register
// themselves from init(). Import them for side effects (or import
// pkg/engines/all) before calling New.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/macroscope/pkg/core"
)

// Factory builds an engine from its configuration.
type Factory func(cfg core.EngineConfig, logger *slog.Logger) (core.Engine, error)

// Info describes a registered engine.
type Info struct {
	Name        string
	Description string
	Protocol    string
}

type registration struct {
	info    Info
	factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register adds an engine factory to the registry.
// Called by engine implementations in their init() functions.
func Register(info Info, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Name] = registration{info: info, factory: factory}
}

// Get retrieves an engine factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	return r.factory, ok
}

// New creates an engine instance based on config type.
// The logger is passed to the factory (nil uses a discard logger).
func New(cfg core.EngineConfig, logger *slog.Logger) (core.Engine, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("engine type not specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownEngineError{
			Type:      cfg.Type,
			Available: List(),
		}
	}

	eng, err := factory(cfg, logger.With("engine", cfg.Type))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", cfg.Type, err)
	}
	return eng, nil
}

// List returns all registered engine names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns info for all registered engines, sorted by name.
func Describe() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()
	infos := make([]Info, 0, len(registry))
	for _, r := range registry {
		infos = append(infos, r.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// IsRegistered checks if an engine type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownEngineError is returned when an unknown engine type is requested.
type UnknownEngineError struct {
	Type      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine type %q\nAvailable engines: %v\nHint: Check engine.type in macroscope.yaml", e.Type, e.Available)
}
