package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jcorbin/runevm/source"
)

// LexError describes a lexical error at a specific span: an unterminated
// literal, a bad escape sequence, or an unexpected byte.
type LexError struct {
	Span source.Span
	Kind string
	Mess string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s at [%d,%d): %s", e.Kind, e.Span.Start, e.Span.End, e.Mess)
}

// Lexer scans a byte buffer into a Token stream. It holds no reference to
// the Sources collection and no SourceID: tokens carry bare Spans, and the
// caller pairs its own SourceID with a Span to form a Location.
type Lexer struct {
	src  []byte
	pos  int
	errs []*LexError
}

// New returns a Lexer over src.
func New(src []byte) *Lexer {
	return &Lexer{src: src}
}

// Errors returns every lexical error accumulated so far.
func (l *Lexer) Errors() []*LexError { return l.errs }

func (l *Lexer) errorf(span source.Span, kind, format string, args ...interface{}) {
	l.errs = append(l.errs, &LexError{Span: span, Kind: kind, Mess: fmt.Sprintf(format, args...)})
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	return b
}

// Next scans and returns the next token. At end of input it returns an
// EOF token whose span is empty at the end of the buffer.
func (l *Lexer) Next() Token {
	l.skipTrivia()

	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Span: source.NewSpan(uint32(start), uint32(start))}
	}

	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		return l.lexIdent(start)
	case c >= '0' && c <= '9':
		return l.lexNumber(start)
	case c == '"':
		return l.lexString(start, '"', LitString)
	case c == '\'':
		return l.lexChar(start)
	case c == '`':
		return l.lexString(start, '`', LitTemplateString)
	case c == 'b' && l.peekByteAt(1) == '"':
		l.pos++
		return l.lexString(start, '"', LitByteString)
	default:
		return l.lexPunct(start)
	}
}

// skipTrivia consumes whitespace, line comments, and block comments,
// leaving docstring comment markers (`///`, `//!`) for the caller as
// tokens since the indexer attaches them to the following item.
func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case c == '/' && l.peekByteAt(1) == '/':
			if l.peekByteAt(2) == '/' || l.peekByteAt(2) == '!' {
				return // doc comment: let the caller lex it as a token
			}
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.peekByteAt(1) == '*':
			l.pos += 2
			depth := 1
			for l.pos < len(l.src) && depth > 0 {
				if l.src[l.pos] == '/' && l.peekByteAt(1) == '*' {
					depth++
					l.pos += 2
				} else if l.src[l.pos] == '*' && l.peekByteAt(1) == '/' {
					depth--
					l.pos += 2
				} else {
					l.pos++
				}
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *Lexer) lexIdent(start int) Token {
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if text == "_" {
		return l.tok(Underscore, start, text)
	}
	if kw, ok := keywords[text]; ok {
		return l.tok(kw, start, text)
	}
	return l.tok(Ident, start, text)
}

func (l *Lexer) lexNumber(start int) Token {
	radix := 10
	if l.src[l.pos] == '0' {
		switch l.peekByteAt(1) {
		case 'b', 'B':
			radix, l.pos = 2, l.pos+2
		case 'o', 'O':
			radix, l.pos = 8, l.pos+2
		case 'x', 'X':
			radix, l.pos = 16, l.pos+2
		}
	}
	isFloat := false
	digitOK := func(c byte) bool {
		switch radix {
		case 2:
			return c == '0' || c == '1'
		case 8:
			return c >= '0' && c <= '7'
		case 16:
			return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		default:
			return c >= '0' && c <= '9'
		}
	}
	for l.pos < len(l.src) && (digitOK(l.src[l.pos]) || l.src[l.pos] == '_') {
		l.pos++
	}
	if radix == 10 && l.peekByte() == '.' && l.peekByteAt(1) >= '0' && l.peekByteAt(1) <= '9' {
		isFloat = true
		l.pos++
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '_') {
			l.pos++
		}
	}
	if radix == 10 && (l.peekByte() == 'e' || l.peekByte() == 'E') {
		save := l.pos
		l.pos++
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.pos++
		}
		if l.peekByte() >= '0' && l.peekByte() <= '9' {
			isFloat = true
			for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	text := string(l.src[start:l.pos])
	if isFloat {
		return l.tok(LitFloat, start, text)
	}
	tk := l.tok(LitInteger, start, text)
	tk.Radix = radix
	return tk
}

func (l *Lexer) lexChar(start int) Token {
	l.pos++ // opening quote
	escaped := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\'' {
			l.pos++
			return l.tokEscaped(LitChar, start, string(l.src[start:l.pos]), escaped)
		}
		if c == '\\' {
			escaped = true
			l.pos++
			if l.pos < len(l.src) {
				l.pos++
			}
			continue
		}
		if c == '\n' {
			break
		}
		l.pos++
	}
	span := source.NewSpan(uint32(start), uint32(l.pos))
	l.errorf(span, "unterminated-literal", "unterminated char literal")
	return Token{Kind: Error, Span: span, Text: string(l.src[start:l.pos])}
}

func (l *Lexer) lexString(start int, quote byte, kind Kind) Token {
	l.pos++ // opening quote
	escaped := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			return l.tokEscaped(kind, start, string(l.src[start:l.pos]), escaped)
		}
		if c == '\\' {
			escaped = true
			if ok := l.scanEscape(); !ok {
				span := source.NewSpan(uint32(start), uint32(l.pos))
				l.errorf(span, "bad-escape", "invalid escape sequence")
			}
			continue
		}
		l.pos++
	}
	span := source.NewSpan(uint32(start), uint32(l.pos))
	l.errorf(span, "unterminated-literal", "unterminated string literal")
	return Token{Kind: Error, Span: span, Text: string(l.src[start:l.pos])}
}

// scanEscape consumes one `\x...` escape sequence, validating the shapes
// named in spec.md §4.1: \n \r \t \\ \" \0 \xNN \u{...}. It reports false
// (recording an error) without consuming past the bad byte, so the caller
// keeps making forward progress.
func (l *Lexer) scanEscape() bool {
	start := l.pos
	l.pos++ // backslash
	if l.pos >= len(l.src) {
		return false
	}
	switch c := l.src[l.pos]; c {
	case 'n', 'r', 't', '\\', '"', '\'', '0':
		l.pos++
		return true
	case 'x':
		l.pos++
		for i := 0; i < 2; i++ {
			if l.pos >= len(l.src) || !isHex(l.src[l.pos]) {
				return false
			}
			l.pos++
		}
		return true
	case 'u':
		l.pos++
		if l.peekByte() != '{' {
			return false
		}
		l.pos++
		n := 0
		for l.pos < len(l.src) && l.src[l.pos] != '}' {
			if !isHex(l.src[l.pos]) {
				return false
			}
			l.pos++
			n++
		}
		if l.pos >= len(l.src) || n == 0 {
			return false
		}
		l.pos++ // closing brace
		return true
	default:
		_ = start
		return false
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *Lexer) lexPunct(start int) Token {
	// doc comment (`///` or `//!`), left for the parser/indexer to attach.
	if l.src[start] == '/' && l.peekByteAt(1) == '/' && (l.peekByteAt(2) == '/' || l.peekByteAt(2) == '!') {
		l.pos += 3
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			l.pos++
		}
		text := strings.TrimPrefix(string(l.src[start:l.pos]), "///")
		text = strings.TrimPrefix(text, "//!")
		return l.tok(DocComment, start, strings.TrimSpace(text))
	}

	three := map[string]Kind{}
	two := map[string]Kind{
		"&&": AmpAmp, "||": PipePipe, "==": EqEq, "!=": NotEq, "<=": Lte, ">=": Gte,
		"<<": Shl, ">>": Shr, "::": ColonColon, "..": DotDot, "->": Arrow, "=>": FatArrow,
	}
	one := map[byte]Kind{
		'+': Plus, '-': Minus, '*': Star, '/': Slash, '%': Percent, '!': Bang,
		'&': Amp, '|': Pipe, '^': Caret, '=': Eq, '<': Lt, '>': Gt, '.': Dot,
		',': Comma, ':': Colon, ';': Semi, '?': Question, '@': At, '#': Hash,
		'(': LParen, ')': RParen, '{': LBrace, '}': RBrace, '[': LBracket, ']': RBracket,
	}

	if l.pos+3 <= len(l.src) {
		if k, ok := three[string(l.src[l.pos:l.pos+3])]; ok {
			l.pos += 3
			return l.tok(k, start, string(l.src[start:l.pos]))
		}
	}
	if l.pos+2 <= len(l.src) {
		if k, ok := two[string(l.src[l.pos:l.pos+2])]; ok {
			l.pos += 2
			return l.tok(k, start, string(l.src[start:l.pos]))
		}
	}
	c := l.advance()
	if k, ok := one[c]; ok {
		return l.tok(k, start, string(l.src[start:l.pos]))
	}

	r, size := utf8.DecodeRune(l.src[start:])
	if r == utf8.RuneError {
		size = 1
	}
	l.pos = start + size
	span := source.NewSpan(uint32(start), uint32(l.pos))
	l.errorf(span, "unexpected-byte", "unexpected byte %q", r)
	_ = unicode.IsControl
	return Token{Kind: Error, Span: span, Text: string(l.src[start:l.pos])}
}

func (l *Lexer) tok(kind Kind, start int, text string) Token {
	return Token{Kind: kind, Span: source.NewSpan(uint32(start), uint32(l.pos)), Text: text}
}

func (l *Lexer) tokEscaped(kind Kind, start int, text string, escaped bool) Token {
	t := l.tok(kind, start, text)
	t.Escaped = escaped
	return t
}

// Unescape decodes the escape sequences recognised by spec.md §4.1 within
// the inner text of a string/char/byte-string literal (quotes already
// stripped). The parser calls this lazily, only for literals the lexer
// flagged as Escaped.
func Unescape(inner string) (string, error) {
	var sb strings.Builder
	runes := []rune(inner)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\\' {
			sb.WriteRune(r)
			continue
		}
		i++
		if i >= len(runes) {
			return "", fmt.Errorf("lexer: dangling escape")
		}
		switch runes[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		case '\'':
			sb.WriteByte('\'')
		case '0':
			sb.WriteByte(0)
		case 'x':
			if i+2 >= len(runes) {
				return "", fmt.Errorf("lexer: truncated \\x escape")
			}
			var v int
			for _, h := range runes[i+1 : i+3] {
				v = v*16 + hexVal(h)
			}
			sb.WriteByte(byte(v))
			i += 2
		case 'u':
			j := i + 1
			if j >= len(runes) || runes[j] != '{' {
				return "", fmt.Errorf("lexer: malformed \\u escape")
			}
			j++
			start := j
			for j < len(runes) && runes[j] != '}' {
				j++
			}
			if j >= len(runes) {
				return "", fmt.Errorf("lexer: unterminated \\u escape")
			}
			v := 0
			for _, h := range runes[start:j] {
				v = v*16 + hexVal(h)
			}
			sb.WriteRune(rune(v))
			i = j
		default:
			return "", fmt.Errorf("lexer: unknown escape \\%c", runes[i])
		}
	}
	return sb.String(), nil
}

func hexVal(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	default:
		return 0
	}
}
