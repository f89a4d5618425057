package starlark

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions enables while loops and recursion, which expansion scripts
// need to walk nested calls.
var fileOptions = &syntax.FileOptions{
	While:     true,
	Recursion: true,
	Set:       true,
}

// Script is an executed Starlark file. Its globals are frozen, so one
// Script may serve concurrent calls.
type Script struct {
	Filename string
	Globals  starlark.StringDict
}

// LoadFile reads and executes the script at path.
func LoadFile(pool *ThreadPool, path string, predeclared starlark.StringDict) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Load(pool, path, src, predeclared)
}

// Load executes src as a script named filename.
func Load(pool *ThreadPool, filename string, src []byte, predeclared starlark.StringDict) (*Script, error) {
	thread := pool.Get(filename)
	defer pool.Put(thread)

	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", filename, err)
	}
	globals.Freeze()
	return &Script{Filename: filename, Globals: globals}, nil
}

// Function returns the global function called name.
func (s *Script) Function(name string) (*starlark.Function, error) {
	v, ok := s.Globals[name]
	if !ok {
		return nil, fmt.Errorf("%s does not define %s()", s.Filename, name)
	}
	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: %s is a %s, not a function", s.Filename, name, v.Type())
	}
	return fn, nil
}
