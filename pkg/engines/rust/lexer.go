package rust

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	kindIdent tokenKind = iota
	kindLifetime
	kindLiteral
	kindPunct
)

type token struct {
	kind tokenKind
	text string
}

// tt is a token tree: a leaf token, or a delimited group when delim is set.
type tt struct {
	tok   token
	delim byte
	inner []tt
}

func leaf(kind tokenKind, text string) tt { return tt{tok: token{kind: kind, text: text}} }

func (t tt) isGroup() bool { return t.delim != 0 }

// isLeaf reports whether t is a leaf with the given text.
func (t tt) isLeaf(text string) bool { return !t.isGroup() && t.tok.text == text }

// multi-character operators, longest first.
var operators = []string{
	"<<=", ">>=", "...", "..=",
	"::", "=>", "->", "==", "!=", "<=", ">=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "^=", "&=", "|=", "<<", ">>", "..",
}

// lex splits Rust source into tokens. Whitespace and comments are dropped.
// Unterminated literals run to the end of input.
func lex(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		rest := src[i:]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(rest, "//"):
			if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
				i += nl + 1
			} else {
				i = len(src)
			}
		case strings.HasPrefix(rest, "/*"):
			i += blockCommentLen(rest)
		case c == 'r' && rawStringStart(rest[1:]):
			n := rawStringLen(rest[1:])
			toks = append(toks, token{kindLiteral, src[i : i+1+n]})
			i += 1 + n
		case c == 'b' && len(rest) > 1 && rest[1] == 'r' && rawStringStart(rest[2:]):
			n := rawStringLen(rest[2:])
			toks = append(toks, token{kindLiteral, src[i : i+2+n]})
			i += 2 + n
		case c == 'b' && len(rest) > 1 && rest[1] == '"':
			n := quotedLen(rest[1:], '"')
			toks = append(toks, token{kindLiteral, src[i : i+1+n]})
			i += 1 + n
		case c == 'b' && len(rest) > 2 && rest[1] == '\'':
			n := quotedLen(rest[1:], '\'')
			toks = append(toks, token{kindLiteral, src[i : i+1+n]})
			i += 1 + n
		case c == 'r' && strings.HasPrefix(rest, "r#") && len(rest) > 2 && isIdentStart(rest[2:]):
			n := 2 + identLen(rest[2:])
			toks = append(toks, token{kindIdent, src[i : i+n]})
			i += n
		case isIdentStart(rest):
			n := identLen(rest)
			toks = append(toks, token{kindIdent, src[i : i+n]})
			i += n
		case c >= '0' && c <= '9':
			n := numberLen(rest)
			toks = append(toks, token{kindLiteral, src[i : i+n]})
			i += n
		case c == '"':
			n := quotedLen(rest, '"')
			toks = append(toks, token{kindLiteral, src[i : i+n]})
			i += n
		case c == '\'':
			kind, n := quoteOrLifetime(rest)
			toks = append(toks, token{kind, src[i : i+n]})
			i += n
		default:
			n := punctLen(rest)
			toks = append(toks, token{kindPunct, src[i : i+n]})
			i += n
		}
	}
	return toks
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r)
}

func identLen(s string) int {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		n += size
	}
	return n
}

func numberLen(s string) int {
	hex := strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
	n := 0
	for n < len(s) {
		c := s[n]
		switch {
		case c >= '0' && c <= '9', c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			n++
		case c == '.' && n+1 < len(s) && s[n+1] >= '0' && s[n+1] <= '9':
			n++
		case (c == '+' || c == '-') && !hex && n > 0 && (s[n-1] == 'e' || s[n-1] == 'E'):
			n++
		default:
			return n
		}
	}
	return n
}

// quotedLen returns the length of a literal starting with quote q,
// including both quotes.
func quotedLen(s string, q byte) int {
	for n := 1; n < len(s); n++ {
		switch s[n] {
		case '\\':
			n++
		case q:
			return n + 1
		}
	}
	return len(s)
}

func rawStringStart(s string) bool {
	n := 0
	for n < len(s) && s[n] == '#' {
		n++
	}
	return n < len(s) && s[n] == '"'
}

// rawStringLen measures #*"..."#* starting at s.
func rawStringLen(s string) int {
	hashes := 0
	for hashes < len(s) && s[hashes] == '#' {
		hashes++
	}
	closing := "\"" + strings.Repeat("#", hashes)
	end := strings.Index(s[hashes+1:], closing)
	if end < 0 {
		return len(s)
	}
	return hashes + 1 + end + len(closing)
}

func blockCommentLen(s string) int {
	depth := 0
	for n := 0; n+1 < len(s); n++ {
		switch {
		case s[n] == '/' && s[n+1] == '*':
			depth++
			n++
		case s[n] == '*' && s[n+1] == '/':
			depth--
			n++
			if depth == 0 {
				return n + 1
			}
		}
	}
	return len(s)
}

// quoteOrLifetime distinguishes 'a' (char literal) from 'a (lifetime).
func quoteOrLifetime(s string) (tokenKind, int) {
	if len(s) > 1 && s[1] == '\\' {
		return kindLiteral, quotedLen(s, '\'')
	}
	r, size := utf8.DecodeRuneInString(s[1:])
	if r == utf8.RuneError && size <= 1 && len(s) < 2 {
		return kindPunct, 1
	}
	if 1+size < len(s) && s[1+size] == '\'' {
		return kindLiteral, 2 + size
	}
	if isIdentStart(s[1:]) {
		return kindLifetime, 1 + identLen(s[1:])
	}
	return kindPunct, 1
}

func punctLen(s string) int {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return len(op)
		}
	}
	_, size := utf8.DecodeRuneInString(s)
	return size
}

func closing(delim byte) byte {
	switch delim {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	}
	return 0
}

type delimError struct {
	found string
}

func (e *delimError) Error() string {
	if e.found == "" {
		return "unclosed delimiter"
	}
	return "unexpected closing delimiter " + e.found
}

// buildTrees groups tokens into token trees by matching delimiters.
func buildTrees(toks []token) ([]tt, error) {
	type frame struct {
		delim byte
		items []tt
	}
	stack := []frame{{}}
	for _, tok := range toks {
		if tok.kind == kindPunct && len(tok.text) == 1 {
			switch c := tok.text[0]; c {
			case '(', '[', '{':
				stack = append(stack, frame{delim: c})
				continue
			case ')', ']', '}':
				top := stack[len(stack)-1]
				if len(stack) == 1 || closing(top.delim) != c {
					return nil, &delimError{found: tok.text}
				}
				stack = stack[:len(stack)-1]
				parent := &stack[len(stack)-1]
				parent.items = append(parent.items, tt{delim: top.delim, inner: top.items})
				continue
			}
		}
		stack[len(stack)-1].items = append(stack[len(stack)-1].items, tt{tok: tok})
	}
	if len(stack) != 1 {
		return nil, &delimError{}
	}
	return stack[0].items, nil
}

func parseTrees(src string) ([]tt, error) {
	return buildTrees(lex(src))
}

// render prints token trees compactly: a space separates two word-like
// tokens and two operators that would otherwise fuse, nothing else.
func render(trees []tt) string {
	r := &renderer{}
	r.trees(trees)
	return r.b.String()
}

type renderer struct {
	b    strings.Builder
	prev *token
}

func (r *renderer) trees(trees []tt) {
	for _, t := range trees {
		if t.isGroup() {
			r.emit(token{kindPunct, string(t.delim)})
			r.trees(t.inner)
			r.emit(token{kindPunct, string(closing(t.delim))})
			continue
		}
		r.emit(t.tok)
	}
}

func (r *renderer) emit(tok token) {
	if r.prev != nil && needsSpace(*r.prev, tok) {
		r.b.WriteByte(' ')
	}
	r.b.WriteString(tok.text)
	r.prev = &tok
}

func isWord(t token) bool { return t.kind != kindPunct }

func isDelim(t token) bool {
	return len(t.text) == 1 && strings.ContainsRune("()[]{}", rune(t.text[0]))
}

func needsSpace(a, b token) bool {
	if isWord(a) && isWord(b) {
		return true
	}
	if a.kind == kindPunct && b.kind == kindPunct && !isDelim(a) && !isDelim(b) {
		return fuses(a.text, b.text)
	}
	return false
}

// fuses reports whether a and b written back to back lex differently.
func fuses(a, b string) bool {
	toks := lex(a + b)
	return len(toks) != 2 || toks[0].text != a || toks[1].text != b
}
