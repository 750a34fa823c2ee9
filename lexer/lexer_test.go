package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/lexer"
)

func TestNextBasic(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		want []lexer.Kind
	}{
		{"ident and keyword", `pub fn main`, []lexer.Kind{lexer.KwPub, lexer.KwFn, lexer.Ident, lexer.EOF}},
		{"arith", `1 + 2 * 3`, []lexer.Kind{lexer.LitInteger, lexer.Plus, lexer.LitInteger, lexer.Star, lexer.LitInteger, lexer.EOF}},
		{"hex and binary", `0xFF 0b101`, []lexer.Kind{lexer.LitInteger, lexer.LitInteger, lexer.EOF}},
		{"float", `3.14 2.5e10`, []lexer.Kind{lexer.LitFloat, lexer.LitFloat, lexer.EOF}},
		{"string", `"hi" 'c' ` + "`tpl`", []lexer.Kind{lexer.LitString, lexer.LitChar, lexer.LitTemplateString, lexer.EOF}},
		{"punct", `:: -> => == != <= >= && ||`, []lexer.Kind{
			lexer.ColonColon, lexer.Arrow, lexer.FatArrow, lexer.EqEq, lexer.NotEq,
			lexer.Lte, lexer.Gte, lexer.AmpAmp, lexer.PipePipe, lexer.EOF,
		}},
		{"line comment skipped", "1 // comment\n2", []lexer.Kind{lexer.LitInteger, lexer.LitInteger, lexer.EOF}},
		{"block comment skipped", "1 /* c /* nested */ */ 2", []lexer.Kind{lexer.LitInteger, lexer.LitInteger, lexer.EOF}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l := lexer.New([]byte(tc.src))
			var got []lexer.Kind
			for {
				tok := l.Next()
				got = append(got, tok.Kind)
				if tok.Kind == lexer.EOF {
					break
				}
			}
			assert.Equal(t, tc.want, got)
			assert.Empty(t, l.Errors())
		})
	}
}

func TestUnterminatedString(t *testing.T) {
	l := lexer.New([]byte(`"unterminated`))
	tok := l.Next()
	assert.Equal(t, lexer.Error, tok.Kind)
	require.Len(t, l.Errors(), 1)
	assert.Equal(t, "unterminated-literal", l.Errors()[0].Kind)
}

func TestBadEscape(t *testing.T) {
	l := lexer.New([]byte(`"\q"`))
	l.Next()
	require.Len(t, l.Errors(), 1)
	assert.Equal(t, "bad-escape", l.Errors()[0].Kind)
}

func TestUnescape(t *testing.T) {
	got, err := lexer.Unescape(`a\nb\tc\x41\u{1F600}`)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\tcA\U0001F600", got)
}

func TestDocComment(t *testing.T) {
	l := lexer.New([]byte("/// hello world\nfn f() {}"))
	tok := l.Next()
	require.Equal(t, lexer.DocComment, tok.Kind)
	assert.Equal(t, "hello world", tok.Text)
}
