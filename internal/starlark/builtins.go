package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Predeclared returns all predeclared/builtin globals for script execution.
// This includes: engine, macro_call, parse_result
func Predeclared(info *EngineInfo) starlark.StringDict {
	globals := starlark.StringDict{
		"macro_call":   starlark.NewBuiltin("macro_call", macroCall),
		"parse_result": starlark.NewBuiltin("parse_result", parseResult),
	}
	if info != nil {
		globals["engine"] = info.ToStarlark()
	}
	return globals
}

// macroCall builds one call record:
//
//	macro_call(call_site, expanded, children=[])
func macroCall(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		callSite, expanded string
		children           *starlark.List
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"call_site", &callSite,
		"expanded", &expanded,
		"children?", &children,
	); err != nil {
		return nil, err
	}
	if children == nil {
		children = starlark.NewList(nil)
	}
	if err := checkCalls(b.Name(), children); err != nil {
		return nil, err
	}

	return starlarkstruct.FromStringDict(starlark.String("macro_call"), starlark.StringDict{
		"call_site": starlark.String(callSite),
		"expanded":  starlark.String(expanded),
		"children":  children,
	}), nil
}

// parseResult builds an extended-protocol response:
//
//	parse_result(syntax_nodes, calls=[], macro_rules=[])
func parseResult(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		syntaxNodes string
		calls       *starlark.List
		rules       *starlark.List
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"syntax_nodes", &syntaxNodes,
		"calls?", &calls,
		"macro_rules?", &rules,
	); err != nil {
		return nil, err
	}
	if calls == nil {
		calls = starlark.NewList(nil)
	}
	if rules == nil {
		rules = starlark.NewList(nil)
	}
	if err := checkCalls(b.Name(), calls); err != nil {
		return nil, err
	}
	for i := 0; i < rules.Len(); i++ {
		if _, ok := rules.Index(i).(starlark.String); !ok {
			return nil, fmt.Errorf("%s: macro_rules[%d] must be a string, got %s", b.Name(), i, rules.Index(i).Type())
		}
	}

	return starlarkstruct.FromStringDict(starlark.String("parse_result"), starlark.StringDict{
		"syntax_nodes": starlark.String(syntaxNodes),
		"calls":        calls,
		"macro_rules":  rules,
	}), nil
}

func checkCalls(fn string, calls *starlark.List) error {
	for i := 0; i < calls.Len(); i++ {
		s, ok := calls.Index(i).(*starlarkstruct.Struct)
		if !ok || s.Constructor() != starlark.String("macro_call") {
			return fmt.Errorf("%s: element %d is %s, want macro_call", fn, i, calls.Index(i).Type())
		}
	}
	return nil
}
