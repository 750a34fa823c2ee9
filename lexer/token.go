// Package lexer turns a source byte stream into a token stream annotated
// with spans, the first stage of the compilation pipeline.
package lexer

import "github.com/jcorbin/runevm/source"

// Kind classifies a Token.
type Kind int

// Token kinds. Keywords are their own kinds rather than a generic
// Identifier + lookup table, so the parser can switch on them directly.
const (
	EOF Kind = iota
	Error

	Ident

	// literals
	LitInteger
	LitFloat
	LitChar
	LitByte
	LitString
	LitByteString
	LitTemplateString

	// keywords
	KwFn
	KwLet
	KwMut
	KwIf
	KwElse
	KwWhile
	KwFor
	KwIn
	KwLoop
	KwMatch
	KwReturn
	KwBreak
	KwContinue
	KwTrue
	KwFalse
	KwUse
	KwMod
	KwImpl
	KwStruct
	KwEnum
	KwConst
	KwAsync
	KwAwait
	KwYield
	KwSelect
	KwSelfValue
	KwSelfType
	KwSuper
	KwCrate
	KwPub
	KwAs
	KwMove

	// punctuation
	Plus
	Minus
	Star
	Slash
	Percent
	Bang
	Amp
	Pipe
	Caret
	Shl
	Shr
	AmpAmp
	PipePipe
	Eq
	EqEq
	NotEq
	Lt
	Lte
	Gt
	Gte
	Dot
	DotDot
	Comma
	Colon
	ColonColon
	Semi
	Arrow
	FatArrow
	Question
	At
	Underscore
	Hash

	// delimiters
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket

	// docstring comment marker, e.g. `/// text` or `//! text`
	DocComment
)

var keywords = map[string]Kind{
	"fn":       KwFn,
	"let":      KwLet,
	"mut":      KwMut,
	"if":       KwIf,
	"else":     KwElse,
	"while":    KwWhile,
	"for":      KwFor,
	"in":       KwIn,
	"loop":     KwLoop,
	"match":    KwMatch,
	"return":   KwReturn,
	"break":    KwBreak,
	"continue": KwContinue,
	"true":     KwTrue,
	"false":    KwFalse,
	"use":      KwUse,
	"mod":      KwMod,
	"impl":     KwImpl,
	"struct":   KwStruct,
	"enum":     KwEnum,
	"const":    KwConst,
	"async":    KwAsync,
	"await":    KwAwait,
	"yield":    KwYield,
	"select":   KwSelect,
	"self":     KwSelfValue,
	"Self":     KwSelfType,
	"super":    KwSuper,
	"crate":    KwCrate,
	"pub":      KwPub,
	"as":       KwAs,
	"move":     KwMove,
}

// Token is one lexed unit: a kind, its source span, and (for identifiers,
// literals, and docstrings) the raw text it covers.
type Token struct {
	Kind Kind
	Span source.Span
	Text string

	// Escaped is set for LitString/LitByteString/LitTemplateString whose
	// text contains a backslash escape; the parser defers actually
	// unescaping until it needs the literal's value, since most string
	// literals simply pass through untouched.
	Escaped bool

	// Radix is set for LitInteger: 2, 8, 10, or 16.
	Radix int
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "<unknown>"
}

var kindNames = map[Kind]string{
	EOF: "eof", Error: "error", Ident: "ident",
	LitInteger: "integer", LitFloat: "float", LitChar: "char", LitByte: "byte",
	LitString: "string", LitByteString: "byte-string", LitTemplateString: "template-string",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", Bang: "!",
	Amp: "&", Pipe: "|", Caret: "^", Shl: "<<", Shr: ">>",
	AmpAmp: "&&", PipePipe: "||",
	Eq: "=", EqEq: "==", NotEq: "!=", Lt: "<", Lte: "<=", Gt: ">", Gte: ">=",
	Dot: ".", DotDot: "..", Comma: ",", Colon: ":", ColonColon: "::", Semi: ";",
	Arrow: "->", FatArrow: "=>", Question: "?", At: "@", Underscore: "_", Hash: "#",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	DocComment: "doc-comment",
}
