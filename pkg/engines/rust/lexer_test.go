package rust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(toks []token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.text
	}
	return out
}

func TestLex(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"operators", "a::b => c..=d", []string{"a", "::", "b", "=>", "c", "..=", "d"}},
		{"comments dropped", "x // line\n/* block /* nested */ */ y", []string{"x", "y"}},
		{"string with escape", `"a\"b" c`, []string{`"a\"b"`, "c"}},
		{"raw string", `r#"say "hi""# z`, []string{`r#"say "hi""#`, "z"}},
		{"byte literals", `b'x' b"yz"`, []string{`b'x'`, `b"yz"`}},
		{"char and lifetime", `'a' 'b &'static`, []string{`'a'`, `'b`, "&", `'static`}},
		{"numbers", "1.5 2..3 1e-3 0xff", []string{"1.5", "2", "..", "3", "1e-3", "0xff"}},
		{"raw identifier", "r#type", []string{"r#type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, texts(lex(tt.src)))
		})
	}
}

func TestLex_Kinds(t *testing.T) {
	toks := lex(`x 'a 1 "s" +`)
	require.Len(t, toks, 5)
	assert.Equal(t, kindIdent, toks[0].kind)
	assert.Equal(t, kindLifetime, toks[1].kind)
	assert.Equal(t, kindLiteral, toks[2].kind)
	assert.Equal(t, kindLiteral, toks[3].kind)
	assert.Equal(t, kindPunct, toks[4].kind)
}

func TestParseTrees(t *testing.T) {
	trees, err := parseTrees("f(a, [b]) {c}")
	require.NoError(t, err)
	require.Len(t, trees, 3)

	assert.True(t, trees[0].isLeaf("f"))
	assert.Equal(t, byte('('), trees[1].delim)
	require.Len(t, trees[1].inner, 3)
	assert.Equal(t, byte('['), trees[1].inner[2].delim)
	assert.Equal(t, byte('{'), trees[2].delim)
}

func TestParseTrees_Unbalanced(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"(a", "unclosed delimiter"},
		{"a)", "unexpected closing delimiter )"},
		{"(a]", "unexpected closing delimiter ]"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := parseTrees(tt.src)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"fn f ( ) { 1 }", "fn f(){1}"},
		{"0 + 1 + 2", "0+1+2"},
		{"let x = inner ! ( ) ;", "let x=inner!();"},
		{"a - > b", "a- >b"},
		{"x : : y", "x: :y"},
		{"& 'a str", "&'a str"},
		{`"a" "b"`, `"a" "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			trees, err := parseTrees(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, render(trees))
		})
	}
}

func TestRender_RoundTripsTokens(t *testing.T) {
	src := "a < < b && c | | d"
	trees, err := parseTrees(src)
	require.NoError(t, err)

	assert.Equal(t, texts(lex(src)), texts(lex(render(trees))))
}
