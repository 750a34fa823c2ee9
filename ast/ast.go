// Package ast defines the parser's output tree. Every node carries its own
// Span; per spec.md §9 the synthetic cross-reference ids the original
// implementation stamps onto nodes are instead kept in side tables (see
// the indexing and query packages) so AST nodes stay immutable once
// parsed.
package ast

import "github.com/jcorbin/runevm/source"

// Node is implemented by every AST node.
type Node interface {
	Span() source.Span
}

// Base is the span-carrying struct every concrete node embeds.
type Base struct{ Sp source.Span }

// Span implements Node.
func (b Base) Span() source.Span { return b.Sp }

// Visibility is the visibility modifier spelled at a declaration site.
type Visibility int

const (
	VisPrivate Visibility = iota
	VisPublic
	VisCrate
	VisSuper
)

// File is the root of one parsed source file: a sequence of top-level
// items.
type File struct {
	Base
	Items []Item
}

// Item is any top-level or module-nested declaration.
type Item interface {
	Node
	itemNode()
}

// ---- items ----

type FnDecl struct {
	Base
	Vis     Visibility
	Name    string
	Params  []string
	IsAsync bool
	IsTest  bool
	IsBench bool
	Body    *Block
	Docs    []string
}

type ModDecl struct {
	Base
	Vis   Visibility
	Name  string
	Items []Item // nil for `mod foo;` (loaded from a file), populated for `mod foo { ... }`
	Docs  []string
}

type UseTree struct {
	Base
	Path     []string
	Wildcard bool
	Alias    string // empty unless `as alias` was written
}

type UseDecl struct {
	Base
	Vis  Visibility
	Tree UseTree
}

type StructField struct {
	Base
	Name string
}

type StructDecl struct {
	Base
	Vis    Visibility
	Name   string
	Fields []StructField
	Docs   []string
}

type EnumVariant struct {
	Base
	Name   string
	Fields []StructField
}

type EnumDecl struct {
	Base
	Vis      Visibility
	Name     string
	Variants []EnumVariant
	Docs     []string
}

type ConstDecl struct {
	Base
	Vis   Visibility
	Name  string
	Value Expr
	Docs  []string
}

type ConstFnDecl struct {
	Base
	Vis    Visibility
	Name   string
	Params []string
	Body   *Block
	Docs   []string
}

type ImplDecl struct {
	Base
	TypeName string
	Items    []Item // FnDecl entries, each becomes an AssociatedFunction
}

func (*FnDecl) itemNode()      {}
func (*ModDecl) itemNode()     {}
func (*UseDecl) itemNode()     {}
func (*StructDecl) itemNode()  {}
func (*EnumDecl) itemNode()    {}
func (*ConstDecl) itemNode()   {}
func (*ConstFnDecl) itemNode() {}
func (*ImplDecl) itemNode()    {}

// ---- statements ----

// Stmt is any block-level statement. Expression statements embed an Expr
// directly via ExprStmt so `if`/`while`/etc. can appear without a trailing
// semicolon when used as statements, per spec.md §4.2.
type Stmt interface {
	Node
	stmtNode()
}

type LetStmt struct {
	Base
	Mut   bool
	Name  string
	Value Expr
}

type ExprStmt struct {
	Base
	X              Expr
	RequiresSemi   bool // false for block-form expressions used as statements
}

func (*LetStmt) stmtNode()  {}
func (*ExprStmt) stmtNode() {}

// ---- expressions ----

// Expr is any expression node. `if`/`while`/`for`/`loop`/`match`/block are
// themselves expressions per spec.md §4.2.
type Expr interface {
	Node
	exprNode()
}

type Block struct {
	Base
	Stmts []Stmt
	Tail  Expr // final tail expression with no semicolon, or nil
}

type Ident struct {
	Base
	Name string
}

type LitKind int

const (
	LitUnit LitKind = iota
	LitBool
	LitInt
	LitFloat
	LitChar
	LitByte
	LitString
	LitByteString
)

type Lit struct {
	Base
	Kind  LitKind
	Bool  bool
	Int   int64
	Float float64
	Rune  rune
	Str   string
	Bytes []byte
}

// TemplateString is `` `text ${expr} more` `` desugared by the lowering
// stage into a call to the format builtin (spec.md §4.6).
type TemplateString struct {
	Base
	Parts []string // literal chunks, len(Parts) == len(Exprs)+1
	Exprs []Expr
}

type ArrayLit struct {
	Base
	Elems []Expr
}

type TupleLit struct {
	Base
	Elems []Expr
}

type ObjectField struct {
	Base
	Key   string
	Value Expr
}

type ObjectLit struct {
	Base
	Fields []ObjectField
}

type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd // &&
	OpOr  // ||
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAssign
)

type BinaryExpr struct {
	Base
	Op          BinOp
	Left, Right Expr
}

type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

type UnaryExpr struct {
	Base
	Op UnOp
	X  Expr
}

// AsCast is `expr as Type`; the dynamically-typed runtime performs a value
// conversion rather than a static reinterpretation.
type AsCast struct {
	Base
	X        Expr
	TypeName string
}

type CallExpr struct {
	Base
	Fn   Expr
	Args []Expr
}

// MethodCallExpr is `receiver.name(args)`, lowered to an instance-dispatch
// CallInstance. Chained instance calls and field access associate
// left-to-right per spec.md §9's committed postfix grammar.
type MethodCallExpr struct {
	Base
	Receiver Expr
	Name     string
	Args     []Expr
}

type FieldExpr struct {
	Base
	X    Expr
	Name string
}

type TupleIndexExpr struct {
	Base
	X     Expr
	Index int
}

type IndexExpr struct {
	Base
	X     Expr
	Index Expr
}

type TryExpr struct {
	Base
	X Expr
}

type AwaitExpr struct {
	Base
	X Expr
}

type YieldExpr struct {
	Base
	X Expr // nil for a bare `yield`
}

type IfExpr struct {
	Base
	Cond Expr
	Then *Block
	Else Expr // *Block or *IfExpr, nil if absent
}

type WhileExpr struct {
	Base
	Label string
	Cond  Expr
	Body  *Block
}

type LoopExpr struct {
	Base
	Label string
	Body  *Block
}

type ForExpr struct {
	Base
	Label string
	Var   string
	Iter  Expr
	Body  *Block
}

type BreakExpr struct {
	Base
	Label string
	Value Expr // nil if none
}

type ContinueExpr struct {
	Base
	Label string
}

type ReturnExpr struct {
	Base
	Value Expr // nil for bare `return`
}

// Pattern is a match-arm or let-binding pattern.
type Pattern interface {
	Node
	patternNode()
}

type WildcardPattern struct{ Base }
type LitPattern struct {
	Base
	Lit Lit
}
type BindPattern struct {
	Base
	Name string
}
type TuplePattern struct {
	Base
	Elems []Pattern
}
type ObjectPattern struct {
	Base
	Keys []string
}
type VariantPattern struct {
	Base
	EnumName, VariantName string
	Elems                 []Pattern
}

func (*WildcardPattern) patternNode() {}
func (*LitPattern) patternNode()      {}
func (*BindPattern) patternNode()     {}
func (*TuplePattern) patternNode()    {}
func (*ObjectPattern) patternNode()   {}
func (*VariantPattern) patternNode()  {}

type MatchArm struct {
	Base
	Pat  Pattern
	Body Expr
}

type MatchExpr struct {
	Base
	Subject Expr
	Arms    []MatchArm
}

type ClosureExpr struct {
	Base
	Params []string
	Body   Expr
	DoMove bool
}

type AsyncBlockExpr struct {
	Base
	Body   *Block
	DoMove bool
}

// SelectArm associates a future expression with a body; lowering rewrites
// the whole SelectExpr into a state machine per spec.md §4.6.
type SelectArm struct {
	Base
	Bind   string
	Future Expr
	Body   Expr
}

type SelectExpr struct {
	Base
	Arms []SelectArm
}

type PathExpr struct {
	Base
	Segments []string // e.g. a::b::f -> ["a","b","f"]
}

func (*Block) exprNode()           {}
func (*Ident) exprNode()           {}
func (*Lit) exprNode()             {}
func (*TemplateString) exprNode()  {}
func (*ArrayLit) exprNode()        {}
func (*TupleLit) exprNode()        {}
func (*ObjectLit) exprNode()       {}
func (*BinaryExpr) exprNode()      {}
func (*UnaryExpr) exprNode()       {}
func (*AsCast) exprNode()          {}
func (*CallExpr) exprNode()        {}
func (*MethodCallExpr) exprNode()  {}
func (*FieldExpr) exprNode()       {}
func (*TupleIndexExpr) exprNode()  {}
func (*IndexExpr) exprNode()       {}
func (*TryExpr) exprNode()         {}
func (*AwaitExpr) exprNode()       {}
func (*YieldExpr) exprNode()       {}
func (*IfExpr) exprNode()          {}
func (*WhileExpr) exprNode()       {}
func (*LoopExpr) exprNode()        {}
func (*ForExpr) exprNode()         {}
func (*BreakExpr) exprNode()       {}
func (*ContinueExpr) exprNode()    {}
func (*ReturnExpr) exprNode()      {}
func (*MatchExpr) exprNode()       {}
func (*ClosureExpr) exprNode()     {}
func (*AsyncBlockExpr) exprNode()  {}
func (*SelectExpr) exprNode()      {}
func (*PathExpr) exprNode()        {}
