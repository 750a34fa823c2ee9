// Package parse implements the recursive-descent, two-token-lookahead
// parser described in spec.md §4.2: operator-precedence climbing for
// binary expressions, uniform trailing-comma handling in comma lists, and
// statement-boundary error recovery up to a configurable cap.
package parse

import (
	"fmt"
	"strconv"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/lexer"
	"github.com/jcorbin/runevm/source"
)

// Error is one recoverable parse error, located at the offending span.
type Error struct {
	Span source.Span
	Mess string
}

func (e *Error) Error() string { return e.Mess }

// Option configures a Parser.
type Option func(*Parser)

// WithMaxErrors caps the number of recoverable errors collected before
// the parser gives up entirely and returns what it has. Zero means
// unlimited.
func WithMaxErrors(n int) Option {
	return func(p *Parser) { p.maxErrors = n }
}

// Parser parses one source file's token stream into an *ast.File.
type Parser struct {
	toks      []lexer.Token
	pos       int
	errs      []*Error
	maxErrors int
}

const defaultMaxErrors = 128

// New tokenizes src in full (buffering two tokens of lookahead is then
// just slicing) and returns a ready Parser.
func New(src []byte, opts ...Option) *Parser {
	p := &Parser{maxErrors: defaultMaxErrors}
	lx := lexer.New(src)
	for {
		tok := lx.Next()
		p.toks = append(p.toks, tok)
		if tok.Kind == lexer.EOF {
			break
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Errors returns every recoverable parse error collected.
func (p *Parser) Errors() []*Error { return p.errs }

func (p *Parser) cur() lexer.Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return lexer.Token{Kind: lexer.EOF}
}

func (p *Parser) peek(n int) lexer.Token {
	i := p.pos + n
	if i < len(p.toks) {
		return p.toks[i]
	}
	return lexer.Token{Kind: lexer.EOF}
}

func (p *Parser) advance() lexer.Token {
	tok := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) accept(k lexer.Kind) (lexer.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	return lexer.Token{}, false
}

func (p *Parser) expect(k lexer.Kind) lexer.Token {
	if tok, ok := p.accept(k); ok {
		return tok
	}
	tok := p.cur()
	p.errorf(tok.Span, "expected %v, found %v", k, tok.Kind)
	return tok
}

func (p *Parser) errorf(span source.Span, format string, args ...interface{}) {
	if p.maxErrors > 0 && len(p.errs) >= p.maxErrors {
		return
	}
	p.errs = append(p.errs, &Error{Span: span, Mess: fmt.Sprintf(format, args...)})
}

// recover skips to the next `;` or a matching close brace, then continues
// parsing. This bounds how much one bad statement can derail the rest of
// a block, per spec.md §4.2.
func (p *Parser) recoverStmt() {
	depth := 0
	for {
		switch p.cur().Kind {
		case lexer.EOF:
			return
		case lexer.LBrace:
			depth++
			p.advance()
		case lexer.RBrace:
			if depth == 0 {
				return
			}
			depth--
			p.advance()
		case lexer.Semi:
			if depth == 0 {
				p.advance()
				return
			}
			p.advance()
		default:
			p.advance()
		}
	}
}

func spanFrom(start source.Span, end source.Span) source.Span { return start.Join(end) }

// ---- top level ----

// ParseFile parses an entire source file into an *ast.File, accumulating
// any recoverable errors rather than stopping at the first one.
func (p *Parser) ParseFile() *ast.File {
	start := p.cur().Span
	var items []ast.Item
	for !p.at(lexer.EOF) {
		before := p.pos
		if it := p.parseItem(); it != nil {
			items = append(items, it)
		}
		if p.pos == before {
			// no progress: avoid an infinite loop on a truly unexpected token
			p.errorf(p.cur().Span, "unexpected token %v", p.cur().Kind)
			p.advance()
		}
	}
	end := p.cur().Span
	return &ast.File{Base: ast.Base{Sp: spanFrom(start, end)}, Items: items}
}

func (p *Parser) parseDocs() []string {
	var docs []string
	for p.at(lexer.DocComment) {
		docs = append(docs, p.advance().Text)
	}
	return docs
}

// parseAttrs consumes any number of `#[name]` attributes, returning the
// set of attribute names seen (only `test` and `bench` are meaningful to
// this compiler; others are accepted and ignored).
func (p *Parser) parseAttrs() map[string]bool {
	attrs := map[string]bool{}
	for p.at(lexer.Hash) {
		p.advance()
		p.expect(lexer.LBracket)
		if p.at(lexer.Ident) {
			attrs[p.advance().Text] = true
		}
		p.expect(lexer.RBracket)
	}
	return attrs
}

func (p *Parser) parseVis() ast.Visibility {
	if _, ok := p.accept(lexer.KwPub); ok {
		if _, ok := p.accept(lexer.LParen); ok {
			switch {
			case p.at(lexer.KwCrate):
				p.advance()
				p.expect(lexer.RParen)
				return ast.VisCrate
			case p.at(lexer.KwSuper):
				p.advance()
				p.expect(lexer.RParen)
				return ast.VisSuper
			default:
				p.expect(lexer.RParen)
			}
		}
		return ast.VisPublic
	}
	return ast.VisPrivate
}

func (p *Parser) parseItem() ast.Item {
	docs := p.parseDocs()
	attrs := p.parseAttrs()
	start := p.cur().Span
	vis := p.parseVis()

	switch {
	case p.at(lexer.KwAsync) && p.peek(1).Kind == lexer.KwFn:
		p.advance()
		return p.parseFn(start, vis, docs, attrs, true)
	case p.at(lexer.KwFn):
		return p.parseFn(start, vis, docs, attrs, false)
	case p.at(lexer.KwMod):
		return p.parseMod(start, vis, docs)
	case p.at(lexer.KwUse):
		return p.parseUse(start, vis)
	case p.at(lexer.KwStruct):
		return p.parseStruct(start, vis, docs)
	case p.at(lexer.KwEnum):
		return p.parseEnum(start, vis, docs)
	case p.at(lexer.KwConst) && p.peek(1).Kind == lexer.KwFn:
		p.advance()
		return p.parseConstFn(start, vis, docs)
	case p.at(lexer.KwConst):
		return p.parseConst(start, vis, docs)
	case p.at(lexer.KwImpl):
		return p.parseImpl(start)
	default:
		p.errorf(p.cur().Span, "expected an item, found %v", p.cur().Kind)
		p.recoverStmt()
		return nil
	}
}

func (p *Parser) parseFn(start source.Span, vis ast.Visibility, docs []string, attrs map[string]bool, isAsync bool) ast.Item {
	p.expect(lexer.KwFn)
	name := p.expect(lexer.Ident).Text
	isTest, isBench := attrs["test"], attrs["bench"]
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.FnDecl{
		Base: ast.Base{Sp: spanFrom(start, body.Span())}, Vis: vis, Name: name,
		Params: params, IsAsync: isAsync, IsTest: isTest, IsBench: isBench, Body: body, Docs: docs,
	}
}

func (p *Parser) parseParamList() []string {
	p.expect(lexer.LParen)
	var params []string
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		if _, ok := p.accept(lexer.KwSelfValue); ok {
			params = append(params, "self")
		} else {
			params = append(params, p.expect(lexer.Ident).Text)
		}
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	p.expect(lexer.RParen)
	return params
}

func (p *Parser) parseMod(start source.Span, vis ast.Visibility, docs []string) ast.Item {
	p.expect(lexer.KwMod)
	name := p.expect(lexer.Ident).Text
	if _, ok := p.accept(lexer.Semi); ok {
		return &ast.ModDecl{Base: ast.Base{Sp: spanFrom(start, p.cur().Span)}, Vis: vis, Name: name, Docs: docs}
	}
	lb := p.expect(lexer.LBrace)
	var items []ast.Item
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if it := p.parseItem(); it != nil {
			items = append(items, it)
		}
	}
	rb := p.expect(lexer.RBrace)
	return &ast.ModDecl{Base: ast.Base{Sp: spanFrom(lb.Span, rb.Span)}, Vis: vis, Name: name, Items: items, Docs: docs}
}

func (p *Parser) parseUse(start source.Span, vis ast.Visibility) ast.Item {
	p.expect(lexer.KwUse)
	var segs []string
	wildcard := false
	alias := ""
	for {
		if _, ok := p.accept(lexer.Star); ok {
			wildcard = true
			break
		}
		segs = append(segs, p.expect(lexer.Ident).Text)
		if _, ok := p.accept(lexer.ColonColon); !ok {
			break
		}
	}
	if _, ok := p.accept(lexer.KwAs); ok {
		alias = p.expect(lexer.Ident).Text
	}
	semi := p.expect(lexer.Semi)
	return &ast.UseDecl{
		Base: ast.Base{Sp: spanFrom(start, semi.Span)}, Vis: vis,
		Tree: ast.UseTree{Base: ast.Base{Sp: spanFrom(start, semi.Span)}, Path: segs, Wildcard: wildcard, Alias: alias},
	}
}

func (p *Parser) parseFieldList() []ast.StructField {
	p.expect(lexer.LBrace)
	var fields []ast.StructField
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		tok := p.expect(lexer.Ident)
		fields = append(fields, ast.StructField{Base: ast.Base{Sp: tok.Span}, Name: tok.Text})
		if _, ok := p.accept(lexer.Comma); !ok {
			break // trailing comma optional, uniform list rule
		}
	}
	p.expect(lexer.RBrace)
	return fields
}

func (p *Parser) parseStruct(start source.Span, vis ast.Visibility, docs []string) ast.Item {
	p.expect(lexer.KwStruct)
	name := p.expect(lexer.Ident).Text
	var fields []ast.StructField
	if p.at(lexer.LBrace) {
		fields = p.parseFieldList()
	} else {
		p.expect(lexer.Semi)
	}
	return &ast.StructDecl{Base: ast.Base{Sp: spanFrom(start, p.cur().Span)}, Vis: vis, Name: name, Fields: fields, Docs: docs}
}

func (p *Parser) parseEnum(start source.Span, vis ast.Visibility, docs []string) ast.Item {
	p.expect(lexer.KwEnum)
	name := p.expect(lexer.Ident).Text
	p.expect(lexer.LBrace)
	var variants []ast.EnumVariant
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		vtok := p.expect(lexer.Ident)
		var fields []ast.StructField
		if p.at(lexer.LBrace) {
			fields = p.parseFieldList()
		} else if p.at(lexer.LParen) {
			for _, f := range p.parseParamList() {
				fields = append(fields, ast.StructField{Base: ast.Base{Sp: vtok.Span}, Name: f})
			}
		}
		variants = append(variants, ast.EnumVariant{Base: ast.Base{Sp: vtok.Span}, Name: vtok.Text, Fields: fields})
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	rb := p.expect(lexer.RBrace)
	return &ast.EnumDecl{Base: ast.Base{Sp: spanFrom(start, rb.Span)}, Vis: vis, Name: name, Variants: variants, Docs: docs}
}

func (p *Parser) parseConst(start source.Span, vis ast.Visibility, docs []string) ast.Item {
	p.expect(lexer.KwConst)
	name := p.expect(lexer.Ident).Text
	p.expect(lexer.Eq)
	value := p.parseExpr()
	semi := p.expect(lexer.Semi)
	return &ast.ConstDecl{Base: ast.Base{Sp: spanFrom(start, semi.Span)}, Vis: vis, Name: name, Value: value, Docs: docs}
}

func (p *Parser) parseConstFn(start source.Span, vis ast.Visibility, docs []string) ast.Item {
	p.expect(lexer.KwFn)
	name := p.expect(lexer.Ident).Text
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.ConstFnDecl{Base: ast.Base{Sp: spanFrom(start, body.Span())}, Vis: vis, Name: name, Params: params, Body: body, Docs: docs}
}

func (p *Parser) parseImpl(start source.Span) ast.Item {
	p.expect(lexer.KwImpl)
	typeName := p.expect(lexer.Ident).Text
	p.expect(lexer.LBrace)
	var items []ast.Item
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if it := p.parseItem(); it != nil {
			items = append(items, it)
		}
	}
	rb := p.expect(lexer.RBrace)
	return &ast.ImplDecl{Base: ast.Base{Sp: spanFrom(start, rb.Span)}, TypeName: typeName, Items: items}
}

// ---- statements & blocks ----

func (p *Parser) parseBlock() *ast.Block {
	lb := p.expect(lexer.LBrace)
	var stmts []ast.Stmt
	var tail ast.Expr
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		before := p.pos
		stmt, isTail := p.parseStmt()
		if stmt == nil {
			if p.pos == before {
				p.advance()
			}
			continue
		}
		if isTail && p.at(lexer.RBrace) {
			tail = stmt.(*ast.ExprStmt).X
			break
		}
		stmts = append(stmts, stmt)
	}
	rb := p.expect(lexer.RBrace)
	return &ast.Block{Base: ast.Base{Sp: spanFrom(lb.Span, rb.Span)}, Stmts: stmts, Tail: tail}
}

// parseStmt parses one statement, returning (nil, false) if it had to
// recover from an error. The second return indicates the statement was a
// bare expression that, if immediately followed by `}`, is actually the
// block's tail expression rather than a true statement.
func (p *Parser) parseStmt() (ast.Stmt, bool) {
	start := p.cur().Span
	if _, ok := p.accept(lexer.KwLet); ok {
		mut := false
		if _, ok := p.accept(lexer.KwMut); ok {
			mut = true
		}
		name := p.expect(lexer.Ident).Text
		p.expect(lexer.Eq)
		value := p.parseExpr()
		semi := p.expect(lexer.Semi)
		return &ast.LetStmt{Base: ast.Base{Sp: spanFrom(start, semi.Span)}, Mut: mut, Name: name, Value: value}, false
	}

	x := p.parseExpr()
	if x == nil {
		p.recoverStmt()
		return nil, false
	}
	blockForm := isBlockFormExpr(x)
	if _, ok := p.accept(lexer.Semi); ok {
		return &ast.ExprStmt{Base: ast.Base{Sp: x.Span()}, X: x, RequiresSemi: true}, false
	}
	// block-form expressions don't require a trailing semicolon as a
	// statement (spec.md §4.2); any bare expression here, block-form or
	// not, is the block's tail expression if `}` follows it.
	return &ast.ExprStmt{Base: ast.Base{Sp: x.Span()}, X: x, RequiresSemi: !blockForm}, true
}

func isBlockFormExpr(x ast.Expr) bool {
	switch x.(type) {
	case *ast.IfExpr, *ast.WhileExpr, *ast.ForExpr, *ast.LoopExpr, *ast.MatchExpr, *ast.Block, *ast.SelectExpr:
		return true
	default:
		return false
	}
}

// ---- expressions: precedence climbing ----

// precedence table, weakest to strongest, per spec.md §4.2.
const (
	precNone = iota
	precAssign
	precOr
	precAnd
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdditive
	precMultiplicative
)

func binPrec(k lexer.Kind) (int, ast.BinOp, bool) {
	switch k {
	case lexer.Eq:
		return precAssign, ast.OpAssign, true
	case lexer.PipePipe:
		return precOr, ast.OpOr, true
	case lexer.AmpAmp:
		return precAnd, ast.OpAnd, true
	case lexer.EqEq:
		return precCompare, ast.OpEq, true
	case lexer.NotEq:
		return precCompare, ast.OpNeq, true
	case lexer.Lt:
		return precCompare, ast.OpLt, true
	case lexer.Lte:
		return precCompare, ast.OpLte, true
	case lexer.Gt:
		return precCompare, ast.OpGt, true
	case lexer.Gte:
		return precCompare, ast.OpGte, true
	case lexer.Pipe:
		return precBitOr, ast.OpBitOr, true
	case lexer.Caret:
		return precBitXor, ast.OpBitXor, true
	case lexer.Amp:
		return precBitAnd, ast.OpBitAnd, true
	case lexer.Shl:
		return precShift, ast.OpShl, true
	case lexer.Shr:
		return precShift, ast.OpShr, true
	case lexer.Plus:
		return precAdditive, ast.OpAdd, true
	case lexer.Minus:
		return precAdditive, ast.OpSub, true
	case lexer.Star:
		return precMultiplicative, ast.OpMul, true
	case lexer.Slash:
		return precMultiplicative, ast.OpDiv, true
	case lexer.Percent:
		return precMultiplicative, ast.OpRem, true
	default:
		return precNone, 0, false
	}
}

// ParseExpr parses a single expression (used by tests and the constant
// evaluator's REPL-style entry points); production code parses through
// ParseFile.
func (p *Parser) ParseExpr() ast.Expr { return p.parseExpr() }

func (p *Parser) parseExpr() ast.Expr { return p.parseBinary(precNone) }

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseAsCast()
	if left == nil {
		return nil
	}
	for {
		prec, op, ok := binPrec(p.cur().Kind)
		if !ok || prec <= minPrec {
			break
		}
		p.advance()
		// assignment is weakest and right-associative; everything else
		// here is left-associative, so only assignment recurses at the
		// same precedence level.
		nextMin := prec
		if op == ast.OpAssign {
			nextMin = prec - 1
		}
		right := p.parseBinary(nextMin)
		left = &ast.BinaryExpr{Base: ast.Base{Sp: spanFrom(left.Span(), right.Span())}, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAsCast() ast.Expr {
	x := p.parseUnary()
	for {
		if _, ok := p.accept(lexer.KwAs); ok {
			typeName := p.expect(lexer.Ident).Text
			x = &ast.AsCast{Base: ast.Base{Sp: x.Span()}, X: x, TypeName: typeName}
			continue
		}
		break
	}
	return x
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.cur().Span
	switch {
	case p.at(lexer.Minus):
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{Base: ast.Base{Sp: spanFrom(start, x.Span())}, Op: ast.OpNeg, X: x}
	case p.at(lexer.Bang):
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{Base: ast.Base{Sp: spanFrom(start, x.Span())}, Op: ast.OpNot, X: x}
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	if x == nil {
		return nil
	}
	for {
		switch {
		case p.at(lexer.Dot):
			p.advance()
			if p.at(lexer.LitInteger) {
				tok := p.advance()
				idx, _ := strconv.Atoi(tok.Text)
				x = &ast.TupleIndexExpr{Base: ast.Base{Sp: spanFrom(x.Span(), tok.Span)}, X: x, Index: idx}
				continue
			}
			if tok, ok := p.accept(lexer.KwAwait); ok {
				x = &ast.AwaitExpr{Base: ast.Base{Sp: spanFrom(x.Span(), tok.Span)}, X: x}
				continue
			}
			name := p.expect(lexer.Ident).Text
			if p.at(lexer.LParen) {
				args, end := p.parseArgList()
				x = &ast.MethodCallExpr{Base: ast.Base{Sp: spanFrom(x.Span(), end)}, Receiver: x, Name: name, Args: args}
			} else {
				x = &ast.FieldExpr{Base: ast.Base{Sp: x.Span()}, X: x, Name: name}
			}
		case p.at(lexer.LParen):
			args, end := p.parseArgList()
			x = &ast.CallExpr{Base: ast.Base{Sp: spanFrom(x.Span(), end)}, Fn: x, Args: args}
		case p.at(lexer.LBracket):
			p.advance()
			idx := p.parseExpr()
			end := p.expect(lexer.RBracket).Span
			x = &ast.IndexExpr{Base: ast.Base{Sp: spanFrom(x.Span(), end)}, X: x, Index: idx}
		case p.at(lexer.Question):
			tok := p.advance()
			x = &ast.TryExpr{Base: ast.Base{Sp: spanFrom(x.Span(), tok.Span)}, X: x}
		case p.at(lexer.KwAwait):
			tok := p.advance()
			x = &ast.AwaitExpr{Base: ast.Base{Sp: spanFrom(x.Span(), tok.Span)}, X: x}
		default:
			return x
		}
	}
}

func (p *Parser) parseArgList() ([]ast.Expr, source.Span) {
	p.expect(lexer.LParen)
	var args []ast.Expr
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		args = append(args, p.parseExpr())
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	end := p.expect(lexer.RParen).Span
	return args, end
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur()
	switch tok.Kind {
	case lexer.LitInteger:
		p.advance()
		n, _ := strconv.ParseInt(normalizeDigits(tok.Text, tok.Radix), 0, 64)
		return &ast.Lit{Base: ast.Base{Sp: tok.Span}, Kind: ast.LitInt, Int: n}
	case lexer.LitFloat:
		p.advance()
		f, _ := strconv.ParseFloat(tok.Text, 64)
		return &ast.Lit{Base: ast.Base{Sp: tok.Span}, Kind: ast.LitFloat, Float: f}
	case lexer.KwTrue:
		p.advance()
		return &ast.Lit{Base: ast.Base{Sp: tok.Span}, Kind: ast.LitBool, Bool: true}
	case lexer.KwFalse:
		p.advance()
		return &ast.Lit{Base: ast.Base{Sp: tok.Span}, Kind: ast.LitBool, Bool: false}
	case lexer.LitChar:
		p.advance()
		r := decodeCharLit(tok)
		return &ast.Lit{Base: ast.Base{Sp: tok.Span}, Kind: ast.LitChar, Rune: r}
	case lexer.LitString:
		p.advance()
		s := decodeStringLit(tok)
		return &ast.Lit{Base: ast.Base{Sp: tok.Span}, Kind: ast.LitString, Str: s}
	case lexer.LitByteString:
		p.advance()
		s := decodeStringLit(tok)
		return &ast.Lit{Base: ast.Base{Sp: tok.Span}, Kind: ast.LitByteString, Bytes: []byte(s)}
	case lexer.LitTemplateString:
		p.advance()
		return p.parseTemplateLit(tok)
	case lexer.Ident, lexer.KwSelfValue, lexer.KwCrate, lexer.KwSuper:
		return p.parsePathOrIdent()
	case lexer.LParen:
		return p.parseTupleOrParen()
	case lexer.LBracket:
		return p.parseArrayLit()
	case lexer.Hash:
		return p.parseObjectLit()
	case lexer.LBrace:
		b := p.parseBlock()
		return b
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwWhile:
		return p.parseWhile("")
	case lexer.KwLoop:
		return p.parseLoop("")
	case lexer.KwFor:
		return p.parseFor("")
	case lexer.KwMatch:
		return p.parseMatch()
	case lexer.KwBreak:
		return p.parseBreak()
	case lexer.KwContinue:
		p.advance()
		label := ""
		return &ast.ContinueExpr{Base: ast.Base{Sp: tok.Span}, Label: label}
	case lexer.KwReturn:
		p.advance()
		var val ast.Expr
		if !p.at(lexer.Semi) && !p.at(lexer.RBrace) {
			val = p.parseExpr()
		}
		end := tok.Span
		if val != nil {
			end = val.Span()
		}
		return &ast.ReturnExpr{Base: ast.Base{Sp: spanFrom(tok.Span, end)}, Value: val}
	case lexer.KwYield:
		p.advance()
		var val ast.Expr
		if !p.at(lexer.Semi) && !p.at(lexer.RBrace) {
			val = p.parseExpr()
		}
		return &ast.YieldExpr{Base: ast.Base{Sp: tok.Span}, X: val}
	case lexer.Pipe, lexer.PipePipe:
		return p.parseClosure()
	case lexer.KwMove:
		p.advance()
		cl := p.parseClosure()
		if c, ok := cl.(*ast.ClosureExpr); ok {
			c.DoMove = true
		}
		return cl
	case lexer.KwAsync:
		p.advance()
		body := p.parseBlock()
		return &ast.AsyncBlockExpr{Base: ast.Base{Sp: spanFrom(tok.Span, body.Span())}, Body: body}
	case lexer.KwSelect:
		return p.parseSelect()
	default:
		p.errorf(tok.Span, "unexpected token %v in expression", tok.Kind)
		p.recoverStmt()
		return nil
	}
}

func normalizeDigits(text string, radix int) string {
	switch radix {
	case 2:
		return "0b" + text[2:]
	case 8:
		return "0" + text[2:]
	case 16:
		return "0x" + text[2:]
	default:
		return text
	}
}

func decodeCharLit(tok lexer.Token) rune {
	inner := tok.Text[1 : len(tok.Text)-1]
	if tok.Escaped {
		s, err := lexer.Unescape(inner)
		if err == nil && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	if len(inner) > 0 {
		return []rune(inner)[0]
	}
	return 0
}

func decodeStringLit(tok lexer.Token) string {
	inner := tok.Text[1 : len(tok.Text)-1]
	if tok.Escaped {
		if s, err := lexer.Unescape(inner); err == nil {
			return s
		}
	}
	return inner
}

func (p *Parser) parseTemplateLit(tok lexer.Token) ast.Expr {
	inner := tok.Text[1 : len(tok.Text)-1]
	var parts []string
	var exprs []ast.Expr
	var cur []byte
	i := 0
	runes := []byte(inner)
	for i < len(runes) {
		if runes[i] == '$' && i+1 < len(runes) && runes[i+1] == '{' {
			parts = append(parts, string(cur))
			cur = nil
			i += 2
			depth := 1
			start := i
			for i < len(runes) && depth > 0 {
				if runes[i] == '{' {
					depth++
				} else if runes[i] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				i++
			}
			sub := New(runes[start:i])
			exprs = append(exprs, sub.parseExpr())
			i++ // closing brace
			continue
		}
		cur = append(cur, runes[i])
		i++
	}
	parts = append(parts, string(cur))
	return &ast.TemplateString{Base: ast.Base{Sp: tok.Span}, Parts: parts, Exprs: exprs}
}

func (p *Parser) parsePathOrIdent() ast.Expr {
	start := p.cur().Span
	var segs []string
	segs = append(segs, p.advance().Text)
	for p.at(lexer.ColonColon) {
		p.advance()
		segs = append(segs, p.expect(lexer.Ident).Text)
	}
	end := start
	if len(segs) > 1 {
		return &ast.PathExpr{Base: ast.Base{Sp: end}, Segments: segs}
	}
	return &ast.Ident{Base: ast.Base{Sp: start}, Name: segs[0]}
}

func (p *Parser) parseTupleOrParen() ast.Expr {
	start := p.expect(lexer.LParen).Span
	if _, ok := p.accept(lexer.RParen); ok {
		return &ast.Lit{Base: ast.Base{Sp: start}, Kind: ast.LitUnit}
	}
	first := p.parseExpr()
	if _, ok := p.accept(lexer.Comma); !ok {
		end := p.expect(lexer.RParen).Span
		_ = end
		return first
	}
	elems := []ast.Expr{first}
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		elems = append(elems, p.parseExpr())
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	end := p.expect(lexer.RParen).Span
	return &ast.TupleLit{Base: ast.Base{Sp: spanFrom(start, end)}, Elems: elems}
}

func (p *Parser) parseArrayLit() ast.Expr {
	start := p.expect(lexer.LBracket).Span
	var elems []ast.Expr
	for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
		elems = append(elems, p.parseExpr())
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	end := p.expect(lexer.RBracket).Span
	return &ast.ArrayLit{Base: ast.Base{Sp: spanFrom(start, end)}, Elems: elems}
}

// parseObjectLit parses an anonymous object literal `#{ key: value, ... }`,
// grounded on original_source/ast/lit_object.rs's `#{...}` syntax (kept to
// distinguish it unambiguously from a block expression, which also opens
// with `{`). Keys are bare identifiers or string literals.
func (p *Parser) parseObjectLit() ast.Expr {
	start := p.expect(lexer.Hash).Span
	p.expect(lexer.LBrace)
	var fields []ast.ObjectField
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		keyTok := p.cur()
		var key string
		switch keyTok.Kind {
		case lexer.Ident:
			p.advance()
			key = keyTok.Text
		case lexer.LitString:
			p.advance()
			key = decodeStringLit(keyTok)
		default:
			p.errorf(keyTok.Span, "expected object field name, got %v", keyTok.Kind)
			p.recoverStmt()
			break
		}
		p.expect(lexer.Colon)
		val := p.parseExpr()
		fields = append(fields, ast.ObjectField{Base: ast.Base{Sp: spanFrom(keyTok.Span, val.Span())}, Key: key, Value: val})
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	end := p.expect(lexer.RBrace).Span
	return &ast.ObjectLit{Base: ast.Base{Sp: spanFrom(start, end)}, Fields: fields}
}

func (p *Parser) parseIf() ast.Expr {
	start := p.expect(lexer.KwIf).Span
	cond := p.parseExpr()
	then := p.parseBlock()
	var els ast.Expr
	if _, ok := p.accept(lexer.KwElse); ok {
		if p.at(lexer.KwIf) {
			els = p.parseIf()
		} else {
			els = p.parseBlock()
		}
	}
	end := then.Span()
	if els != nil {
		end = els.Span()
	}
	return &ast.IfExpr{Base: ast.Base{Sp: spanFrom(start, end)}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile(label string) ast.Expr {
	start := p.expect(lexer.KwWhile).Span
	cond := p.parseExpr()
	body := p.parseBlock()
	return &ast.WhileExpr{Base: ast.Base{Sp: spanFrom(start, body.Span())}, Label: label, Cond: cond, Body: body}
}

func (p *Parser) parseLoop(label string) ast.Expr {
	start := p.expect(lexer.KwLoop).Span
	body := p.parseBlock()
	return &ast.LoopExpr{Base: ast.Base{Sp: spanFrom(start, body.Span())}, Label: label, Body: body}
}

func (p *Parser) parseFor(label string) ast.Expr {
	start := p.expect(lexer.KwFor).Span
	name := p.expect(lexer.Ident).Text
	p.expect(lexer.KwIn)
	iter := p.parseExpr()
	body := p.parseBlock()
	return &ast.ForExpr{Base: ast.Base{Sp: spanFrom(start, body.Span())}, Label: label, Var: name, Iter: iter, Body: body}
}

func (p *Parser) parseBreak() ast.Expr {
	start := p.expect(lexer.KwBreak).Span
	var val ast.Expr
	if !p.at(lexer.Semi) && !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		val = p.parseExpr()
	}
	end := start
	if val != nil {
		end = val.Span()
	}
	return &ast.BreakExpr{Base: ast.Base{Sp: spanFrom(start, end)}, Value: val}
}

func (p *Parser) parseMatch() ast.Expr {
	start := p.expect(lexer.KwMatch).Span
	subject := p.parseExpr()
	p.expect(lexer.LBrace)
	var arms []ast.MatchArm
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		pat := p.parsePattern()
		p.expect(lexer.FatArrow)
		body := p.parseExpr()
		arms = append(arms, ast.MatchArm{Base: ast.Base{Sp: pat.Span()}, Pat: pat, Body: body})
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	end := p.expect(lexer.RBrace).Span
	return &ast.MatchExpr{Base: ast.Base{Sp: spanFrom(start, end)}, Subject: subject, Arms: arms}
}

func (p *Parser) parsePattern() ast.Pattern {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Underscore:
		p.advance()
		return &ast.WildcardPattern{Base: ast.Base{Sp: tok.Span}}
	case lexer.LitInteger, lexer.LitFloat, lexer.LitString, lexer.KwTrue, lexer.KwFalse, lexer.LitChar:
		x := p.parsePrimary()
		lit, _ := x.(*ast.Lit)
		return &ast.LitPattern{Base: ast.Base{Sp: tok.Span}, Lit: *lit}
	case lexer.LParen:
		p.advance()
		var elems []ast.Pattern
		for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
			elems = append(elems, p.parsePattern())
			if _, ok := p.accept(lexer.Comma); !ok {
				break
			}
		}
		end := p.expect(lexer.RParen).Span
		return &ast.TuplePattern{Base: ast.Base{Sp: spanFrom(tok.Span, end)}, Elems: elems}
	case lexer.LBrace:
		p.advance()
		var keys []string
		for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
			keys = append(keys, p.expect(lexer.Ident).Text)
			if _, ok := p.accept(lexer.Comma); !ok {
				break
			}
		}
		end := p.expect(lexer.RBrace).Span
		return &ast.ObjectPattern{Base: ast.Base{Sp: spanFrom(tok.Span, end)}, Keys: keys}
	case lexer.Ident:
		name := p.advance().Text
		if _, ok := p.accept(lexer.ColonColon); ok {
			variant := p.expect(lexer.Ident).Text
			var elems []ast.Pattern
			if p.at(lexer.LParen) {
				p.advance()
				for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
					elems = append(elems, p.parsePattern())
					if _, ok := p.accept(lexer.Comma); !ok {
						break
					}
				}
				p.expect(lexer.RParen)
			}
			return &ast.VariantPattern{Base: ast.Base{Sp: tok.Span}, EnumName: name, VariantName: variant, Elems: elems}
		}
		return &ast.BindPattern{Base: ast.Base{Sp: tok.Span}, Name: name}
	default:
		p.errorf(tok.Span, "unexpected token %v in pattern", tok.Kind)
		p.advance()
		return &ast.WildcardPattern{Base: ast.Base{Sp: tok.Span}}
	}
}

func (p *Parser) parseClosure() ast.Expr {
	start := p.cur().Span
	var params []string
	if _, ok := p.accept(lexer.PipePipe); ok {
		// no params
	} else {
		p.expect(lexer.Pipe)
		for !p.at(lexer.Pipe) && !p.at(lexer.EOF) {
			params = append(params, p.expect(lexer.Ident).Text)
			if _, ok := p.accept(lexer.Comma); !ok {
				break
			}
		}
		p.expect(lexer.Pipe)
	}
	body := p.parseExpr()
	return &ast.ClosureExpr{Base: ast.Base{Sp: spanFrom(start, body.Span())}, Params: params, Body: body}
}

func (p *Parser) parseSelect() ast.Expr {
	start := p.expect(lexer.KwSelect).Span
	p.expect(lexer.LBrace)
	var arms []ast.SelectArm
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		bind := p.expect(lexer.Ident).Text
		p.expect(lexer.Eq)
		future := p.parseExpr()
		p.expect(lexer.FatArrow)
		body := p.parseExpr()
		arms = append(arms, ast.SelectArm{Base: ast.Base{Sp: future.Span()}, Bind: bind, Future: future, Body: body})
		if _, ok := p.accept(lexer.Comma); !ok {
			break
		}
	}
	end := p.expect(lexer.RBrace).Span
	return &ast.SelectExpr{Base: ast.Base{Sp: spanFrom(start, end)}, Arms: arms}
}
