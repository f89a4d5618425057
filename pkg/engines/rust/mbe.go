package rust

import (
	"errors"
	"fmt"
	"slices"
)

// Macro-by-example: macro_rules! definitions, matching invocations against
// their rules and transcribing the selected template.
//
// Matching is greedy without backtracking. Fragments with a fixed shape
// (tt, ident, lifetime, literal, block, vis) consume exactly that shape.
// The remaining fragments consume tokens until a separator: a comma, a
// semicolon, =>, or whatever the pattern expects next.

var errNoRuleMatched = errors.New("no rules expected this token sequence")

type macroDef struct {
	name  string
	body  tt
	rules []rule
}

type rule struct {
	pattern  []patElem
	template []tt
}

type patKind int

const (
	patLiteral patKind = iota
	patGroup
	patBind
	patRep
)

type patElem struct {
	kind patKind

	tok token // patLiteral

	delim byte      // patGroup
	inner []patElem // patGroup, patRep

	name, frag string // patBind

	sep  *token   // patRep
	op   byte     // patRep: '*', '+' or '?'
	vars []string // patRep: variables bound inside
}

// String renders the definition as "name body".
func (d *macroDef) String() string {
	return d.name + " " + render([]tt{d.body})
}

// parseMacroDefinition parses the text of a macro_rules! item.
func parseMacroDefinition(src string) (*macroDef, error) {
	trees, err := parseTrees(src)
	if err != nil {
		return nil, err
	}
	if len(trees) < 4 || !trees[0].isLeaf("macro_rules") || !trees[1].isLeaf("!") ||
		trees[2].isGroup() || trees[2].tok.kind != kindIdent || !trees[3].isGroup() {
		return nil, errors.New("expected macro_rules! name { ... }")
	}

	rules, err := parseRules(trees[3].inner)
	if err != nil {
		return nil, fmt.Errorf("macro %s: %w", trees[2].tok.text, err)
	}
	return &macroDef{name: trees[2].tok.text, body: trees[3], rules: rules}, nil
}

func parseRules(ts []tt) ([]rule, error) {
	var rules []rule
	for i := 0; i < len(ts); {
		if i+2 >= len(ts) || !ts[i].isGroup() || !ts[i+1].isLeaf("=>") || !ts[i+2].isGroup() {
			return nil, fmt.Errorf("rule %d: expected (pattern) => {template}", len(rules)+1)
		}
		pattern, err := compilePattern(ts[i].inner)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", len(rules)+1, err)
		}
		rules = append(rules, rule{pattern: pattern, template: ts[i+2].inner})
		i += 3
		if i < len(ts) && ts[i].isLeaf(";") {
			i++
		}
	}
	if len(rules) == 0 {
		return nil, errors.New("no rules")
	}
	return rules, nil
}

func isRepOp(t tt) bool {
	return t.isLeaf("*") || t.isLeaf("+") || t.isLeaf("?")
}

func compilePattern(ts []tt) ([]patElem, error) {
	var out []patElem
	for i := 0; i < len(ts); i++ {
		t := ts[i]
		if t.isGroup() {
			inner, err := compilePattern(t.inner)
			if err != nil {
				return nil, err
			}
			out = append(out, patElem{kind: patGroup, delim: t.delim, inner: inner})
			continue
		}
		if !t.isLeaf("$") || i+1 >= len(ts) {
			out = append(out, patElem{kind: patLiteral, tok: t.tok})
			continue
		}

		next := ts[i+1]
		switch {
		case next.isGroup() && next.delim == '(':
			inner, err := compilePattern(next.inner)
			if err != nil {
				return nil, err
			}
			rep := patElem{kind: patRep, inner: inner, vars: patternVars(inner)}
			j := i + 2
			switch {
			case j < len(ts) && isRepOp(ts[j]):
			case j+1 < len(ts) && !ts[j].isGroup() && isRepOp(ts[j+1]):
				sep := ts[j].tok
				rep.sep = &sep
				j++
			default:
				return nil, errors.New("expected one of *, + or ? after $( ... )")
			}
			rep.op = ts[j].tok.text[0]
			out = append(out, rep)
			i = j

		case !next.isGroup() && next.tok.kind == kindIdent && i+3 < len(ts) && ts[i+2].isLeaf(":") &&
			!ts[i+3].isGroup() && ts[i+3].tok.kind == kindIdent:
			out = append(out, patElem{kind: patBind, name: next.tok.text, frag: ts[i+3].tok.text})
			i += 3

		default:
			out = append(out, patElem{kind: patLiteral, tok: t.tok})
		}
	}
	return out, nil
}

func patternVars(pats []patElem) []string {
	var vars []string
	for _, p := range pats {
		switch p.kind {
		case patBind:
			vars = append(vars, p.name)
		case patGroup, patRep:
			vars = append(vars, patternVars(p.inner)...)
		}
	}
	return vars
}

// binding is a matched fragment, or one entry per iteration for a variable
// bound inside a repetition.
type binding struct {
	tts   []tt
	isRep bool
	reps  []*binding
}

type bindings map[string]*binding

// expand selects the first rule whose pattern matches args and transcribes it.
func (d *macroDef) expand(args []tt) ([]tt, error) {
	for _, r := range d.rules {
		b, ok := matchAll(r.pattern, args, nil)
		if !ok {
			continue
		}
		return transcribe(r.template, b)
	}
	return nil, errNoRuleMatched
}

var defaultStops = []string{",", ";", "=>"}

// matchAll matches pats against the whole of input.
func matchAll(pats []patElem, input []tt, follow []string) (bindings, bool) {
	b := bindings{}
	pos, ok := matchSeq(pats, input, 0, follow, b)
	if !ok || pos != len(input) {
		return nil, false
	}
	return b, true
}

func matchSeq(pats []patElem, input []tt, pos int, follow []string, b bindings) (int, bool) {
	for k, p := range pats {
		stops := follow
		if k+1 < len(pats) {
			stops = startTokens(pats[k+1])
		}

		switch p.kind {
		case patLiteral:
			if pos >= len(input) || !input[pos].isLeaf(p.tok.text) {
				return pos, false
			}
			pos++

		case patGroup:
			if pos >= len(input) || input[pos].delim != p.delim {
				return pos, false
			}
			inner, ok := matchAll(p.inner, input[pos].inner, nil)
			if !ok {
				return pos, false
			}
			for name, v := range inner {
				b[name] = v
			}
			pos++

		case patBind:
			n, ok := matchFragment(p.frag, input[pos:], stops)
			if !ok {
				return pos, false
			}
			b[p.name] = &binding{tts: input[pos : pos+n]}
			pos += n

		case patRep:
			next, ok := matchRep(p, input, pos, stops, b)
			if !ok {
				return pos, false
			}
			pos = next
		}
	}
	return pos, true
}

// startTokens returns the token texts that can begin p, used to end the
// greedy fragment before it.
func startTokens(p patElem) []string {
	switch p.kind {
	case patLiteral:
		return []string{p.tok.text}
	case patGroup:
		return []string{string(p.delim)}
	case patRep:
		var out []string
		if len(p.inner) > 0 {
			out = startTokens(p.inner[0])
		}
		return out
	}
	return nil
}

func matchRep(p patElem, input []tt, pos int, stops []string, b bindings) (int, bool) {
	follow := slices.Clone(stops)
	if p.sep != nil {
		follow = append(follow, p.sep.text)
	}

	var iterations []bindings
	for {
		if p.op == '?' && len(iterations) == 1 {
			break
		}
		start := pos
		if len(iterations) > 0 && p.sep != nil {
			if start >= len(input) || !input[start].isLeaf(p.sep.text) {
				break
			}
			start++
		}
		ib := bindings{}
		next, ok := matchSeq(p.inner, input, start, follow, ib)
		if !ok || next == start {
			break
		}
		iterations = append(iterations, ib)
		pos = next
	}

	if p.op == '+' && len(iterations) == 0 {
		return pos, false
	}

	for _, name := range p.vars {
		rep := &binding{isRep: true}
		for _, ib := range iterations {
			rep.reps = append(rep.reps, ib[name])
		}
		b[name] = rep
	}
	return pos, true
}

func isStop(t tt, stops []string) bool {
	if t.isGroup() {
		return slices.Contains(stops, string(t.delim))
	}
	return slices.Contains(defaultStops, t.tok.text) || slices.Contains(stops, t.tok.text)
}

// matchFragment returns how many trees of input the fragment consumes.
func matchFragment(frag string, input []tt, stops []string) (int, bool) {
	first := func(pred func(tt) bool) (int, bool) {
		if len(input) > 0 && pred(input[0]) {
			return 1, true
		}
		return 0, false
	}

	switch frag {
	case "tt":
		return first(func(tt) bool { return true })
	case "ident":
		return first(func(t tt) bool { return !t.isGroup() && t.tok.kind == kindIdent && t.tok.text != "_" })
	case "lifetime":
		return first(func(t tt) bool { return !t.isGroup() && t.tok.kind == kindLifetime })
	case "literal":
		if len(input) > 1 && input[0].isLeaf("-") && !input[1].isGroup() && input[1].tok.kind == kindLiteral {
			return 2, true
		}
		return first(func(t tt) bool {
			return !t.isGroup() && (t.tok.kind == kindLiteral || t.tok.text == "true" || t.tok.text == "false")
		})
	case "block":
		return first(func(t tt) bool { return t.delim == '{' })
	case "vis":
		if len(input) == 0 || !input[0].isLeaf("pub") {
			return 0, true
		}
		if len(input) > 1 && input[1].delim == '(' {
			return 2, true
		}
		return 1, true
	case "item":
		for n, t := range input {
			if t.isLeaf(";") || t.delim == '{' {
				return n + 1, true
			}
		}
		return len(input), len(input) > 0
	case "ty", "path":
		return greedy(input, stops, true)
	case "expr", "pat", "pat_param", "stmt", "meta":
		return greedy(input, stops, false)
	}
	return 0, false
}

// greedy consumes trees up to the first stop. With angles set, stops
// nested in <...> do not count.
func greedy(input []tt, stops []string, angles bool) (int, bool) {
	depth := 0
	n := 0
	for ; n < len(input); n++ {
		t := input[n]
		if angles && !t.isGroup() {
			switch t.tok.text {
			case "<":
				depth++
				continue
			case ">":
				depth--
				continue
			case ">>":
				depth -= 2
				continue
			}
		}
		if depth <= 0 && isStop(t, stops) {
			break
		}
	}
	return n, n > 0
}

// transcribe substitutes bindings into a template.
func transcribe(tmpl []tt, scope bindings) ([]tt, error) {
	var out []tt
	for i := 0; i < len(tmpl); i++ {
		t := tmpl[i]
		if t.isGroup() {
			inner, err := transcribe(t.inner, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, tt{delim: t.delim, inner: inner})
			continue
		}
		if !t.isLeaf("$") || i+1 >= len(tmpl) {
			out = append(out, t)
			continue
		}

		next := tmpl[i+1]
		if next.delim == '(' {
			j := i + 2
			var sep *tt
			switch {
			case j < len(tmpl) && isRepOp(tmpl[j]):
			case j+1 < len(tmpl) && !tmpl[j].isGroup() && isRepOp(tmpl[j+1]):
				sep = &tmpl[j]
				j++
			default:
				out = append(out, t)
				continue
			}
			reps, err := transcribeRep(next.inner, sep, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, reps...)
			i = j
			continue
		}

		if !next.isGroup() && next.tok.kind == kindIdent {
			if b, ok := scope[next.tok.text]; ok && b != nil {
				if b.isRep {
					return nil, fmt.Errorf("variable '%s' is still repeating at this depth", next.tok.text)
				}
				out = append(out, b.tts...)
				i++
				continue
			}
			if next.tok.text == "crate" {
				out = append(out, leaf(kindIdent, "crate"))
				i++
				continue
			}
			return nil, fmt.Errorf("unknown macro variable '%s'", next.tok.text)
		}
		out = append(out, t)
	}
	return out, nil
}

func transcribeRep(inner []tt, sep *tt, scope bindings) ([]tt, error) {
	count := -1
	var repeating []string
	for _, name := range templateVars(inner) {
		b := scope[name]
		if b == nil || !b.isRep {
			continue
		}
		if count >= 0 && len(b.reps) != count {
			return nil, fmt.Errorf("meta-variable '%s' repeats %d times, but another repeats %d times", name, len(b.reps), count)
		}
		count = len(b.reps)
		repeating = append(repeating, name)
	}
	if count < 0 {
		return nil, errors.New("attempted to repeat an expression containing no syntax variables matched as repeating at this depth")
	}

	var out []tt
	for i := 0; i < count; i++ {
		child := make(bindings, len(scope))
		for k, v := range scope {
			child[k] = v
		}
		for _, name := range repeating {
			child[name] = scope[name].reps[i]
		}
		part, err := transcribe(inner, child)
		if err != nil {
			return nil, err
		}
		if i > 0 && sep != nil {
			out = append(out, *sep)
		}
		out = append(out, part...)
	}
	return out, nil
}

func templateVars(tmpl []tt) []string {
	var vars []string
	for i, t := range tmpl {
		if t.isGroup() {
			vars = append(vars, templateVars(t.inner)...)
			continue
		}
		if t.isLeaf("$") && i+1 < len(tmpl) && !tmpl[i+1].isGroup() && tmpl[i+1].tok.kind == kindIdent {
			vars = append(vars, tmpl[i+1].tok.text)
		}
	}
	return vars
}

// parseInvocation splits "path::name!(args)" into the macro name and the
// argument trees.
func parseInvocation(src string) (string, []tt, error) {
	trees, err := parseTrees(src)
	if err != nil {
		return "", nil, err
	}
	for i := 1; i+1 < len(trees); i++ {
		if !trees[i].isLeaf("!") {
			continue
		}
		name := trees[i-1]
		args := trees[i+1]
		if name.isGroup() || name.tok.kind != kindIdent || !args.isGroup() {
			break
		}
		return name.tok.text, args.inner, nil
	}
	return "", nil, errors.New("expected name!(...)")
}
