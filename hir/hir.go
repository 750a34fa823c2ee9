// Package hir lowers the parsed ast.File into a smaller core form the
// compiler consumes: `for` loops become iterator-protocol loops, `?`
// becomes a match over a Result, template strings become calls to the
// format builtin, and closures/async blocks get their free variables
// computed up front so the compiler can emit capture instructions
// without re-walking the body. Nodes are allocated from an Arena so a
// whole function's HIR can be freed in one step after compilation, the
// same shape as the teacher's bump-allocated execution memory in
// memcore.go adapted to tree storage instead of a byte stack.
package hir

import (
	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/source"
)

// NodeID indexes into an Arena.
type NodeID int

// Arena owns every Node produced while lowering one function body.
type Arena struct {
	nodes []Node
}

// Node is any lowered HIR node; Kind discriminates which fields apply.
type Node struct {
	Kind NodeKind
	Sp   source.Span

	// Literal
	LitKind ast.LitKind
	Int     int64
	Float   float64
	Bool    bool
	Str     string

	// Ident / path reference
	Name string
	Path []string

	// Object literal: Keys is parallel to List, one name per value.
	Keys []string

	// Composite
	A, B, C NodeID   // generic operand slots (condition/then/else, left/right, ...)
	List    []NodeID // block statements, call args, tuple/array elems, match arms
	Tail    NodeID
	HasTail bool

	BinOp ast.BinOp
	UnOp  ast.UnOp

	// Function-shaped nodes (Closure/AsyncBlock)
	Params   []string
	Captures []string
	DoMove   bool

	// Match arm / pattern
	Pattern *Pattern

	Label string
}

// NodeKind enumerates the lowered node shapes. For/Try/TemplateString
// from the ast package do not appear here; Lower rewrites them into the
// remaining kinds before the compiler ever sees them.
type NodeKind int

const (
	KindLit NodeKind = iota
	KindIdent
	KindPath
	KindBlock
	KindTuple
	KindArray
	KindBinary
	KindUnary
	KindAsCast
	KindCall
	KindMethodCall
	KindField
	KindTupleIndex
	KindIndex
	KindAwait
	KindYield
	KindIf
	KindWhile
	KindLoop
	KindBreak
	KindContinue
	KindReturn
	KindMatch
	KindMatchArm
	KindClosure
	KindAsyncBlock
	KindSelect
	KindAssign
	KindObject
)

// Pattern mirrors ast.Pattern, resolved to a form the compiler's
// decision-tree builder consumes directly.
type Pattern struct {
	Kind    PatternKind
	Name    string
	Lit     *ast.Lit
	Elems   []*Pattern
	Keys    []string
	Variant string
	Enum    string
}

type PatternKind int

const (
	PatWildcard PatternKind = iota
	PatBind
	PatLit
	PatTuple
	PatObject
	PatVariant
)

// Func is one lowered function or closure body plus the Arena backing its
// nodes.
type Func struct {
	Arena   *Arena
	Params  []string
	IsAsync bool
	Root    NodeID
}

func (a *Arena) alloc(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// At returns the node stored at id.
func (a *Arena) At(id NodeID) *Node { return &a.nodes[id] }

// Lowerer turns ast.Expr/ast.Block trees into an Arena-backed Func.
type Lowerer struct {
	arena   *Arena
	gensym  int
	asyncFn bool
}

// LowerFunc lowers one function declaration's body.
func LowerFunc(params []string, isAsync bool, body *ast.Block) *Func {
	l := &Lowerer{arena: &Arena{}, asyncFn: isAsync}
	root := l.block(body)
	return &Func{Arena: l.arena, Params: params, IsAsync: isAsync, Root: root}
}

func (l *Lowerer) next() string {
	l.gensym++
	return "$tmp"
}

func (l *Lowerer) block(b *ast.Block) NodeID {
	n := Node{Kind: KindBlock, Sp: b.Span()}
	for _, s := range b.Stmts {
		switch st := s.(type) {
		case *ast.LetStmt:
			v := l.expr(st.Value)
			let := l.arena.alloc(Node{Kind: KindAssign, Sp: st.Span(), Name: st.Name, A: v})
			n.List = append(n.List, let)
		case *ast.ExprStmt:
			n.List = append(n.List, l.expr(st.X))
		}
	}
	if b.Tail != nil {
		n.Tail = l.expr(b.Tail)
		n.HasTail = true
	}
	return l.arena.alloc(n)
}

// expr lowers one ast.Expr node, rewriting for/try/template-string into
// their core equivalents.
func (l *Lowerer) expr(e ast.Expr) NodeID {
	switch n := e.(type) {
	case *ast.Lit:
		return l.arena.alloc(Node{Kind: KindLit, Sp: n.Sp, LitKind: n.Kind, Int: n.Int, Float: n.Float, Bool: n.Bool, Str: n.Str})

	case *ast.Ident:
		return l.arena.alloc(Node{Kind: KindIdent, Sp: n.Sp, Name: n.Name})

	case *ast.PathExpr:
		return l.arena.alloc(Node{Kind: KindPath, Sp: n.Sp, Path: n.Segments})

	case *ast.Block:
		return l.block(n)

	case *ast.TupleLit:
		var list []NodeID
		for _, el := range n.Elems {
			list = append(list, l.expr(el))
		}
		return l.arena.alloc(Node{Kind: KindTuple, Sp: n.Sp, List: list})

	case *ast.ArrayLit:
		var list []NodeID
		for _, el := range n.Elems {
			list = append(list, l.expr(el))
		}
		return l.arena.alloc(Node{Kind: KindArray, Sp: n.Sp, List: list})

	case *ast.ObjectLit:
		var list []NodeID
		var keys []string
		for _, f := range n.Fields {
			list = append(list, l.expr(f.Value))
			keys = append(keys, f.Key)
		}
		return l.arena.alloc(Node{Kind: KindObject, Sp: n.Sp, List: list, Keys: keys})

	case *ast.BinaryExpr:
		left, right := l.expr(n.Left), l.expr(n.Right)
		return l.arena.alloc(Node{Kind: KindBinary, Sp: n.Sp, BinOp: n.Op, A: left, B: right})

	case *ast.UnaryExpr:
		return l.arena.alloc(Node{Kind: KindUnary, Sp: n.Sp, UnOp: n.Op, A: l.expr(n.X)})

	case *ast.AsCast:
		return l.arena.alloc(Node{Kind: KindAsCast, Sp: n.Sp, Name: n.TypeName, A: l.expr(n.X)})

	case *ast.CallExpr:
		fn := l.expr(n.Fn)
		var args []NodeID
		for _, a := range n.Args {
			args = append(args, l.expr(a))
		}
		return l.arena.alloc(Node{Kind: KindCall, Sp: n.Sp, A: fn, List: args})

	case *ast.MethodCallExpr:
		recv := l.expr(n.Receiver)
		var args []NodeID
		for _, a := range n.Args {
			args = append(args, l.expr(a))
		}
		return l.arena.alloc(Node{Kind: KindMethodCall, Sp: n.Sp, Name: n.Name, A: recv, List: args})

	case *ast.FieldExpr:
		return l.arena.alloc(Node{Kind: KindField, Sp: n.Sp, Name: n.Name, A: l.expr(n.X)})

	case *ast.TupleIndexExpr:
		return l.arena.alloc(Node{Kind: KindTupleIndex, Sp: n.Sp, Int: int64(n.Index), A: l.expr(n.X)})

	case *ast.IndexExpr:
		return l.arena.alloc(Node{Kind: KindIndex, Sp: n.Sp, A: l.expr(n.X), B: l.expr(n.Index)})

	case *ast.AwaitExpr:
		return l.arena.alloc(Node{Kind: KindAwait, Sp: n.Sp, A: l.expr(n.X)})

	case *ast.YieldExpr:
		nd := Node{Kind: KindYield, Sp: n.Sp}
		if n.X != nil {
			nd.A = l.expr(n.X)
			nd.HasTail = true
		}
		return l.arena.alloc(nd)

	case *ast.IfExpr:
		cond := l.expr(n.Cond)
		then := l.block(n.Then)
		nd := Node{Kind: KindIf, Sp: n.Sp, A: cond, B: then}
		if n.Else != nil {
			nd.C = l.expr(n.Else)
			nd.HasTail = true
		}
		return l.arena.alloc(nd)

	case *ast.WhileExpr:
		cond := l.expr(n.Cond)
		body := l.block(n.Body)
		return l.arena.alloc(Node{Kind: KindWhile, Sp: n.Sp, Label: n.Label, A: cond, B: body})

	case *ast.LoopExpr:
		body := l.block(n.Body)
		return l.arena.alloc(Node{Kind: KindLoop, Sp: n.Sp, Label: n.Label, A: body})

	case *ast.ForExpr:
		return l.lowerFor(n)

	case *ast.BreakExpr:
		nd := Node{Kind: KindBreak, Sp: n.Sp, Label: n.Label}
		if n.Value != nil {
			nd.A = l.expr(n.Value)
			nd.HasTail = true
		}
		return l.arena.alloc(nd)

	case *ast.ContinueExpr:
		return l.arena.alloc(Node{Kind: KindContinue, Sp: n.Sp, Label: n.Label})

	case *ast.ReturnExpr:
		nd := Node{Kind: KindReturn, Sp: n.Sp}
		if n.Value != nil {
			nd.A = l.expr(n.Value)
			nd.HasTail = true
		}
		return l.arena.alloc(nd)

	case *ast.TryExpr:
		return l.lowerTry(n)

	case *ast.TemplateString:
		return l.lowerTemplate(n)

	case *ast.MatchExpr:
		return l.lowerMatch(n)

	case *ast.ClosureExpr:
		return l.lowerClosure(n)

	case *ast.AsyncBlockExpr:
		return l.lowerAsyncBlock(n)

	case *ast.SelectExpr:
		return l.lowerSelect(n)

	default:
		return l.arena.alloc(Node{Kind: KindLit, Sp: e.Span(), LitKind: ast.LitUnit})
	}
}

// lowerFor rewrites `for x in iter { body }` into the iterator protocol:
// a hidden binding holds iter.into_iter(), and a Loop repeatedly calls
// .next() on it, matching Some(x)/None to run the body or break.
func (l *Lowerer) lowerFor(n *ast.ForExpr) NodeID {
	iter := l.expr(n.Iter)
	intoIter := l.arena.alloc(Node{Kind: KindMethodCall, Sp: n.Sp, Name: "into_iter", A: iter})
	iterBind := l.next()
	bindNode := l.arena.alloc(Node{Kind: KindAssign, Sp: n.Sp, Name: iterBind, A: intoIter})

	iterRef := l.arena.alloc(Node{Kind: KindIdent, Sp: n.Sp, Name: iterBind})
	next := l.arena.alloc(Node{Kind: KindMethodCall, Sp: n.Sp, Name: "next", A: iterRef})

	body := l.block(n.Body)
	somePat := &Pattern{Kind: PatVariant, Enum: "Option", Variant: "Some", Elems: []*Pattern{{Kind: PatBind, Name: n.Var}}}
	nonePat := &Pattern{Kind: PatVariant, Enum: "Option", Variant: "None"}
	breakArm := l.arena.alloc(Node{Kind: KindBreak, Sp: n.Sp})
	someArm := l.arena.alloc(Node{Kind: KindMatchArm, Sp: n.Sp, Pattern: somePat, A: body})
	noneArm := l.arena.alloc(Node{Kind: KindMatchArm, Sp: n.Sp, Pattern: nonePat, A: breakArm})
	match := l.arena.alloc(Node{Kind: KindMatch, Sp: n.Sp, A: next, List: []NodeID{someArm, noneArm}})

	loopBody := l.arena.alloc(Node{Kind: KindBlock, Sp: n.Sp, List: []NodeID{match}})
	loop := l.arena.alloc(Node{Kind: KindLoop, Sp: n.Sp, Label: n.Label, A: loopBody})

	wrapper := Node{Kind: KindBlock, Sp: n.Sp, List: []NodeID{bindNode}, Tail: loop, HasTail: true}
	return l.arena.alloc(wrapper)
}

// lowerTry rewrites `expr?` into a match on Result: Ok(v) yields v,
// Err(e) returns Err(e) from the enclosing function immediately.
func (l *Lowerer) lowerTry(n *ast.TryExpr) NodeID {
	subject := l.expr(n.X)
	okPat := &Pattern{Kind: PatVariant, Enum: "Result", Variant: "Ok", Elems: []*Pattern{{Kind: PatBind, Name: "$ok"}}}
	errPat := &Pattern{Kind: PatVariant, Enum: "Result", Variant: "Err", Elems: []*Pattern{{Kind: PatBind, Name: "$err"}}}

	okVal := l.arena.alloc(Node{Kind: KindIdent, Sp: n.Sp, Name: "$ok"})
	errVal := l.arena.alloc(Node{Kind: KindIdent, Sp: n.Sp, Name: "$err"})
	errWrap := l.arena.alloc(Node{Kind: KindCall, Sp: n.Sp, A: l.arena.alloc(Node{Kind: KindPath, Sp: n.Sp, Path: []string{"Result", "Err"}}), List: []NodeID{errVal}})
	ret := l.arena.alloc(Node{Kind: KindReturn, Sp: n.Sp, A: errWrap, HasTail: true})

	okArm := l.arena.alloc(Node{Kind: KindMatchArm, Sp: n.Sp, Pattern: okPat, A: okVal})
	errArm := l.arena.alloc(Node{Kind: KindMatchArm, Sp: n.Sp, Pattern: errPat, A: ret})
	return l.arena.alloc(Node{Kind: KindMatch, Sp: n.Sp, A: subject, List: []NodeID{okArm, errArm}})
}

// lowerTemplate rewrites `` `a${x}b` `` into a call to the builtin
// string-format function over its literal chunks and expressions.
func (l *Lowerer) lowerTemplate(n *ast.TemplateString) NodeID {
	fn := l.arena.alloc(Node{Kind: KindPath, Sp: n.Sp, Path: []string{"std", "fmt", "format"}})
	partsNode := l.arena.alloc(Node{Kind: KindArray, Sp: n.Sp})
	for i := range n.Parts {
		l.arena.At(partsNode).List = append(l.arena.At(partsNode).List, l.arena.alloc(Node{Kind: KindLit, Sp: n.Sp, LitKind: ast.LitString, Str: n.Parts[i]}))
	}
	args := []NodeID{partsNode}
	for _, e := range n.Exprs {
		args = append(args, l.expr(e))
	}
	return l.arena.alloc(Node{Kind: KindCall, Sp: n.Sp, A: fn, List: args})
}

func (l *Lowerer) lowerMatch(n *ast.MatchExpr) NodeID {
	subject := l.expr(n.Subject)
	var arms []NodeID
	for _, arm := range n.Arms {
		pat := lowerPattern(arm.Pat)
		body := l.expr(arm.Body)
		arms = append(arms, l.arena.alloc(Node{Kind: KindMatchArm, Sp: arm.Sp, Pattern: pat, A: body}))
	}
	return l.arena.alloc(Node{Kind: KindMatch, Sp: n.Sp, A: subject, List: arms})
}

func lowerPattern(p ast.Pattern) *Pattern {
	switch n := p.(type) {
	case *ast.WildcardPattern:
		return &Pattern{Kind: PatWildcard}
	case *ast.BindPattern:
		return &Pattern{Kind: PatBind, Name: n.Name}
	case *ast.LitPattern:
		lit := n.Lit
		return &Pattern{Kind: PatLit, Lit: &lit}
	case *ast.TuplePattern:
		var elems []*Pattern
		for _, e := range n.Elems {
			elems = append(elems, lowerPattern(e))
		}
		return &Pattern{Kind: PatTuple, Elems: elems}
	case *ast.ObjectPattern:
		return &Pattern{Kind: PatObject, Keys: n.Keys}
	case *ast.VariantPattern:
		var elems []*Pattern
		for _, e := range n.Elems {
			elems = append(elems, lowerPattern(e))
		}
		return &Pattern{Kind: PatVariant, Enum: n.EnumName, Variant: n.VariantName, Elems: elems}
	default:
		return &Pattern{Kind: PatWildcard}
	}
}

// lowerClosure computes the closure's free variables (anything referenced
// that isn't a parameter) so the compiler can emit explicit capture
// instructions rather than re-deriving them from bytecode.
func (l *Lowerer) lowerClosure(n *ast.ClosureExpr) NodeID {
	body := l.expr(n.Body)
	bound := map[string]bool{}
	for _, p := range n.Params {
		bound[p] = true
	}
	caps := freeVars(l.arena, body, bound)
	return l.arena.alloc(Node{Kind: KindClosure, Sp: n.Sp, Params: n.Params, A: body, Captures: caps, DoMove: n.DoMove})
}

func (l *Lowerer) lowerAsyncBlock(n *ast.AsyncBlockExpr) NodeID {
	body := l.block(n.Body)
	caps := freeVars(l.arena, body, map[string]bool{})
	return l.arena.alloc(Node{Kind: KindAsyncBlock, Sp: n.Sp, A: body, Captures: caps, DoMove: n.DoMove})
}

// lowerSelect keeps each arm's future/body pair as HIR; the compiler's
// coroutine lowering (compile package) turns this directly into the
// suspend/resume state machine described in spec.md §5, since expanding
// it into raw gotos here would just be re-expressed again at the
// bytecode layer.
func (l *Lowerer) lowerSelect(n *ast.SelectExpr) NodeID {
	var arms []NodeID
	for _, arm := range n.Arms {
		future := l.expr(arm.Future)
		body := l.expr(arm.Body)
		arms = append(arms, l.arena.alloc(Node{Kind: KindMatchArm, Sp: arm.Sp, Name: arm.Bind, A: future, B: body}))
	}
	return l.arena.alloc(Node{Kind: KindSelect, Sp: n.Sp, List: arms})
}

// freeVars walks the HIR rooted at id and returns every Ident name
// referenced that is not in bound, deduplicated and order-stable.
func freeVars(a *Arena, id NodeID, bound map[string]bool) []string {
	seen := map[string]bool{}
	var order []string
	var walk func(id NodeID, bound map[string]bool)
	walk = func(id NodeID, bound map[string]bool) {
		n := a.At(id)
		switch n.Kind {
		case KindIdent:
			if !bound[n.Name] && !seen[n.Name] {
				seen[n.Name] = true
				order = append(order, n.Name)
			}
		case KindPath, KindLit, KindContinue:
			// no sub-expressions carrying free variables
		case KindBreak:
			if n.HasTail {
				walk(n.A, bound)
			}
		case KindAssign:
			walk(n.A, bound)
			bound[n.Name] = true
		case KindClosure:
			inner := map[string]bool{}
			for k := range bound {
				inner[k] = true
			}
			for _, p := range n.Params {
				inner[p] = true
			}
			walk(n.A, inner)
		case KindBinary:
			walk(n.A, bound)
			walk(n.B, bound)
		case KindUnary, KindAsCast, KindField, KindTupleIndex, KindAwait:
			walk(n.A, bound)
		case KindYield:
			if n.HasTail {
				walk(n.A, bound)
			}
		case KindIndex:
			walk(n.A, bound)
			walk(n.B, bound)
		case KindCall:
			walk(n.A, bound)
			for _, c := range n.List {
				walk(c, bound)
			}
		case KindMethodCall:
			walk(n.A, bound)
			for _, c := range n.List {
				walk(c, bound)
			}
		case KindTuple, KindArray, KindObject:
			for _, c := range n.List {
				walk(c, bound)
			}
		case KindBlock:
			inner := map[string]bool{}
			for k := range bound {
				inner[k] = true
			}
			for _, c := range n.List {
				walk(c, inner)
			}
			if n.HasTail {
				walk(n.Tail, inner)
			}
		case KindIf:
			walk(n.A, bound)
			walk(n.B, bound)
			if n.HasTail {
				walk(n.C, bound)
			}
		case KindWhile:
			walk(n.A, bound)
			walk(n.B, bound)
		case KindLoop:
			walk(n.A, bound)
		case KindReturn:
			if n.HasTail {
				walk(n.A, bound)
			}
		case KindMatch:
			walk(n.A, bound)
			for _, c := range n.List {
				walk(c, bound)
			}
		case KindMatchArm:
			inner := map[string]bool{}
			for k := range bound {
				inner[k] = true
			}
			if n.Pattern != nil {
				bindPatternNames(n.Pattern, inner)
			}
			walk(n.A, inner)
			if n.B != 0 {
				walk(n.B, inner)
			}
		case KindAsyncBlock:
			walk(n.A, bound)
		case KindSelect:
			for _, c := range n.List {
				walk(c, bound)
			}
		}
	}
	walk(id, bound)
	return order
}

func bindPatternNames(p *Pattern, bound map[string]bool) {
	switch p.Kind {
	case PatBind:
		bound[p.Name] = true
	case PatTuple, PatVariant:
		for _, e := range p.Elems {
			bindPatternNames(e, bound)
		}
	case PatObject:
		for _, k := range p.Keys {
			bound[k] = true
		}
	}
}
