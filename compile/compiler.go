// Package compile lowers HIR function bodies into a Unit's flat bytecode
// stream. The compiler is a straightforward single-pass tree-walker: each
// hir.Node compiles to code that leaves exactly one value on the VM's
// operand stack, while named bindings live in a per-call local-slot
// register file addressed by OpCopy/OpStoreLocal — the register/stack
// hybrid described in spec.md §5.
package compile

import (
	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/hir"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/source"
)

// Compiler assembles one Unit across however many CompileFunction calls
// the query engine's build queue drives.
type Compiler struct {
	cfg  config
	unit *Unit
	errs ErrorList
}

// New returns a Compiler targeting a fresh Unit.
func New(opts ...Option) *Compiler {
	cfg := defaultConfig()
	Options(opts...).apply(&cfg)
	c := &Compiler{cfg: cfg, unit: NewUnit()}
	c.errs.Max = cfg.maxErrors
	return c
}

// Unit returns the Unit assembled so far.
func (c *Compiler) Unit() *Unit { return c.unit }

// Errors returns every diagnostic recorded so far.
func (c *Compiler) Errors() *ErrorList { return &c.errs }

func (c *Compiler) tag(key string) int64 {
	if i, ok := c.unit.EnumTags[key]; ok {
		return int64(i)
	}
	i := len(c.unit.EnumTags)
	c.unit.EnumTags[key] = i
	return int64(i)
}

// CompileFunction lowers fn's body and registers it under hash in the
// Unit's function table, with sourceID used to stamp debug locations.
func (c *Compiler) CompileFunction(hash item.Hash, name string, fn *hir.Func, sourceID source.ID) {
	c.compileFunctionEntry(hash, name, fn, sourceID, 0)
}

// compileFunctionEntry is CompileFunction's general form: captureLen marks
// the leading captureLen parameters as closure/async-block captures rather
// than call arguments, so doMakeClosure/doMakeCoroutine know how many
// stack values to fold into the produced value versus leave for the call
// site to supply later.
func (c *Compiler) compileFunctionEntry(hash item.Hash, name string, fn *hir.Func, sourceID source.ID, captureLen int) {
	fc := &funcCompiler{c: c, fn: fn, sourceID: sourceID, locals: map[string]int{}, hash: hash}
	for _, p := range fn.Params {
		fc.bindNewLocal(p)
	}
	fc.compileExprVoid(fn.Root) // the block itself handles its own tail semantics
	fc.emit(OpReturn, 0, source.Span{})

	start := len(c.unit.Instructions)
	c.unit.Instructions = append(c.unit.Instructions, fc.insts...)
	for _, d := range fc.debug {
		d.Offset += start
		c.unit.Debug = append(c.unit.Debug, d)
	}
	entry := FuncEntry{
		Hash: hash, Name: name, Start: start, Len: len(fc.insts),
		ParamLen: len(fn.Params), CaptureLen: captureLen, IsAsync: fn.IsAsync,
	}
	c.unit.ByHash[hash] = len(c.unit.Functions)
	c.unit.Functions = append(c.unit.Functions, entry)
}

// CompileStruct synthesizes a positional constructor function for a
// struct declaration, registered under hash — the same hash
// indexing.Indexer records in meta.Meta.Constructor — so ordinary call
// compilation (KindCall/KindPath resolving to item.GlobalFn) reaches
// this code with no changes: `Point(1, 2)` compiles to an OpCallFn at
// exactly this hash.
func (c *Compiler) CompileStruct(hash item.Hash, name string, fields []string) {
	c.compileAggregateCtor(hash, name, OpNewStruct, -1, fields)
}

// CompileVariant is CompileStruct's enum-variant analogue. tag is
// allocated from the same EnumTags table compileTest's PatVariant case
// and OpTestVariant already consult, keyed "EnumName::VariantName", so a
// constructed variant's tag always matches what match-arm tests expect.
func (c *Compiler) CompileVariant(hash item.Hash, name string, fields []string) {
	c.compileAggregateCtor(hash, name, OpNewVariant, int(c.tag(name)), fields)
}

// compileAggregateCtor emits a tiny function that copies each positional
// parameter back onto the stack in order and folds them into one
// aggregate value via op, the shared shape both CompileStruct and
// CompileVariant need.
func (c *Compiler) compileAggregateCtor(hash item.Hash, name string, op Op, tag int, fields []string) {
	fc := &funcCompiler{c: c, fn: &hir.Func{Arena: &hir.Arena{}}, locals: map[string]int{}, hash: hash}
	for _, f := range fields {
		fc.bindNewLocal(f)
	}
	for i := range fields {
		fc.emit(OpCopy, int64(i), source.Span{})
	}
	fsIdx := c.unit.FieldSetIndex(FieldSet{TypeName: name, Tag: tag, Fields: fields})
	fc.emit(op, int64(fsIdx), source.Span{})
	fc.emit(OpReturn, 0, source.Span{})

	start := len(c.unit.Instructions)
	c.unit.Instructions = append(c.unit.Instructions, fc.insts...)
	for _, d := range fc.debug {
		d.Offset += start
		c.unit.Debug = append(c.unit.Debug, d)
	}
	entry := FuncEntry{Hash: hash, Name: name, Start: start, Len: len(fc.insts), ParamLen: len(fields)}
	c.unit.ByHash[hash] = len(c.unit.Functions)
	c.unit.Functions = append(c.unit.Functions, entry)
}

// funcCompiler holds the mutable state of compiling one function body:
// its emitted instructions (relative to 0, rebased by the caller), its
// local-slot assignment, and open-loop jump-patch lists for break/continue.
type funcCompiler struct {
	c        *Compiler
	fn       *hir.Func
	sourceID source.ID
	hash     item.Hash
	insts    []Inst
	debug    []DebugLine

	locals   map[string]int
	scopes   []map[string]bool // names declared per active block, for shadow cleanup
	nextSlot int

	loops []loopFrame
}

type loopFrame struct {
	label        string
	breakPatches []int
	continueAt   int
	// continuePatches are backpatched once the loop's condition-check
	// instruction offset is known (for `while`/`for`, continue re-checks
	// the condition; for `loop`, continue jumps straight to the body top).
	continuePatches []int
}

func (fc *funcCompiler) emit(op Op, operand int64, sp source.Span) int {
	idx := len(fc.insts)
	fc.insts = append(fc.insts, Inst{Op: op, Operand: operand})
	fc.debug = append(fc.debug, DebugLine{Offset: idx, Location: source.Location{SourceID: fc.sourceID, Span: sp}})
	return idx
}

// emitCall is emit's call-site form: op is OpCallFn or OpCallInstance,
// operand is the callee hash/method-name id, and argc is the number of
// arguments actually supplied at this call site (excluding a method
// call's receiver), carried alongside operand so the VM can validate it
// against the callee's declared arity instead of trusting the callee's
// own ParamLen for how much of the caller's stack to consume.
func (fc *funcCompiler) emitCall(op Op, operand int64, argc int64, sp source.Span) int {
	idx := len(fc.insts)
	fc.insts = append(fc.insts, Inst{Op: op, Operand: operand, Argc: argc})
	fc.debug = append(fc.debug, DebugLine{Offset: idx, Location: source.Location{SourceID: fc.sourceID, Span: sp}})
	return idx
}

func (fc *funcCompiler) patch(idx int, target int64) { fc.insts[idx].Operand = target }
func (fc *funcCompiler) here() int64                 { return int64(len(fc.insts)) }

func (fc *funcCompiler) pushScope() { fc.scopes = append(fc.scopes, map[string]bool{}) }
func (fc *funcCompiler) popScope() {
	top := fc.scopes[len(fc.scopes)-1]
	fc.scopes = fc.scopes[:len(fc.scopes)-1]
	for name := range top {
		delete(fc.locals, name)
	}
}

func (fc *funcCompiler) bindNewLocal(name string) int {
	slot := fc.nextSlot
	fc.nextSlot++
	fc.locals[name] = slot
	if len(fc.scopes) > 0 {
		fc.scopes[len(fc.scopes)-1][name] = true
	}
	return slot
}

func (fc *funcCompiler) bindExistingSlot(name string, slot int) {
	fc.locals[name] = slot
	if len(fc.scopes) > 0 {
		fc.scopes[len(fc.scopes)-1][name] = true
	}
}

// project materializes a derived value (a tuple/variant field) from
// baseSlot into a new local slot so nested pattern tests/binds can
// address it without recomputing or re-pushing the parent value.
func (fc *funcCompiler) project(baseSlot int, op Op, operand int64, sp source.Span) int {
	fc.emit(OpCopy, int64(baseSlot), sp)
	fc.emit(op, operand, sp)
	slot := fc.nextSlot
	fc.nextSlot++
	fc.emit(OpStoreLocal, int64(slot), sp)
	return slot
}

// compileExprVoid compiles a block (a function or loop body) in its own
// local scope: every statement's pushed value is discarded except `let`
// bindings, which keep their slot, and the block then leaves exactly one
// value, its tail expression's or Unit when it has no tail.
func (fc *funcCompiler) compileExprVoid(id hir.NodeID) {
	n := fc.fn.Arena.At(id)
	if n.Kind == hir.KindBlock {
		fc.pushScope()
		for _, s := range n.List {
			fc.compileStmt(s)
		}
		if n.HasTail {
			fc.compileExpr(n.Tail)
		} else {
			fc.emit(OpPushUnit, 0, n.Sp)
		}
		fc.popScope()
		return
	}
	fc.compileExpr(id)
}

func (fc *funcCompiler) compileStmt(id hir.NodeID) {
	n := fc.fn.Arena.At(id)
	if n.Kind == hir.KindAssign {
		fc.compileExpr(n.A)
		if slot, ok := fc.locals[n.Name]; ok && fc.declaredInCurrentScope(n.Name) {
			fc.emit(OpStoreLocal, int64(slot), n.Sp)
			return
		}
		slot := fc.bindNewLocal(n.Name)
		fc.emit(OpStoreLocal, int64(slot), n.Sp)
		return
	}
	fc.compileExpr(id)
	fc.emit(OpPop, 0, n.Sp)
}

func (fc *funcCompiler) declaredInCurrentScope(name string) bool {
	if len(fc.scopes) == 0 {
		return false
	}
	return fc.scopes[len(fc.scopes)-1][name]
}

func (fc *funcCompiler) strID(s string) int64 { return int64(fc.c.unit.Strings.Intern(s)) }

// compileExpr compiles id so it leaves exactly one value on the operand
// stack.
func (fc *funcCompiler) compileExpr(id hir.NodeID) {
	n := fc.fn.Arena.At(id)
	switch n.Kind {
	case hir.KindBlock:
		fc.compileExprVoid(id)

	case hir.KindLit:
		fc.compileLit(n)

	case hir.KindIdent:
		if slot, ok := fc.locals[n.Name]; ok {
			fc.emit(OpCopy, int64(slot), n.Sp)
			return
		}
		// unresolved identifiers are treated as zero-arg global calls;
		// the query engine validates these exist before compilation runs.
		fc.emitCall(OpCallFn, int64(item.GlobalFn(item.Path{item.Named(n.Name)}, item.EMPTY)), 0, n.Sp)

	case hir.KindPath:
		fc.emitCall(OpCallFn, int64(item.GlobalFn(namedPath(n.Path), item.EMPTY)), 0, n.Sp)

	case hir.KindTuple:
		for _, el := range n.List {
			fc.compileExpr(el)
		}
		fc.emit(OpNewTuple, int64(len(n.List)), n.Sp)

	case hir.KindArray:
		for _, el := range n.List {
			fc.compileExpr(el)
		}
		fc.emit(OpNewArray, int64(len(n.List)), n.Sp)

	case hir.KindObject:
		seen := make(map[string]bool, len(n.Keys))
		for _, k := range n.Keys {
			if seen[k] {
				fc.c.errs.Add(&Error{Kind: DuplicateKey, Location: source.Location{SourceID: fc.sourceID, Span: n.Sp}, Mess: "duplicate object key: " + k})
			}
			seen[k] = true
		}
		for _, el := range n.List {
			fc.compileExpr(el)
		}
		fsIdx := fc.c.unit.FieldSetIndex(FieldSet{TypeName: "object", Tag: -1, Fields: n.Keys})
		fc.emit(OpNewObject, int64(fsIdx), n.Sp)

	case hir.KindBinary:
		fc.compileBinary(n)

	case hir.KindUnary:
		fc.compileExpr(n.A)
		if n.UnOp == ast.OpNeg {
			fc.emit(OpNeg, 0, n.Sp)
		} else {
			fc.emit(OpNot, 0, n.Sp)
		}

	case hir.KindAsCast:
		fc.compileExpr(n.A)
		fc.emit(OpPushString, fc.strID(n.Name), n.Sp)
		fc.emitCall(OpCallFn, int64(item.GlobalFn(item.Path{item.Named("std"), item.Named("cast")}, item.EMPTY)), 2, n.Sp)

	case hir.KindCall:
		fn := fc.fn.Arena.At(n.A)
		for _, a := range n.List {
			fc.compileExpr(a)
		}
		if fn.Kind == hir.KindPath {
			fc.emitCall(OpCallFn, int64(item.GlobalFn(namedPath(fn.Path), item.EMPTY)), int64(len(n.List)), n.Sp)
		} else if fn.Kind == hir.KindIdent {
			fc.emitCall(OpCallFn, int64(item.GlobalFn(item.Path{item.Named(fn.Name)}, item.EMPTY)), int64(len(n.List)), n.Sp)
		} else {
			fc.compileExpr(n.A)
			fc.emit(OpCallClosure, int64(len(n.List)), n.Sp)
		}

	case hir.KindMethodCall:
		fc.compileExpr(n.A)
		for _, a := range n.List {
			fc.compileExpr(a)
		}
		fc.emitCall(OpCallInstance, fc.strID(n.Name), int64(len(n.List)), n.Sp)

	case hir.KindField:
		fc.compileExpr(n.A)
		fc.emit(OpGetField, fc.strID(n.Name), n.Sp)

	case hir.KindTupleIndex:
		fc.compileExpr(n.A)
		fc.emit(OpGetTupleIndex, n.Int, n.Sp)

	case hir.KindIndex:
		fc.compileExpr(n.A)
		fc.compileExpr(n.B)
		fc.emit(OpGetIndex, 0, n.Sp)

	case hir.KindAwait:
		fc.compileExpr(n.A)
		fc.emit(OpAwait, 0, n.Sp)

	case hir.KindYield:
		if n.HasTail {
			fc.compileExpr(n.A)
		} else {
			fc.emit(OpPushUnit, 0, n.Sp)
		}
		fc.emit(OpYield, 0, n.Sp)

	case hir.KindIf:
		fc.compileIf(n)

	case hir.KindWhile:
		fc.compileWhile(n)

	case hir.KindLoop:
		fc.compileLoop(n)

	case hir.KindBreak:
		fc.compileBreak(n)

	case hir.KindContinue:
		fc.compileContinue(n)

	case hir.KindReturn:
		if n.HasTail {
			fc.compileExpr(n.A)
		} else {
			fc.emit(OpPushUnit, 0, n.Sp)
		}
		fc.emit(OpReturn, 0, n.Sp)
		fc.emit(OpPushUnit, 0, n.Sp) // keeps stack balance for any (dead) code that follows

	case hir.KindMatch:
		fc.compileMatch(n)

	case hir.KindClosure:
		fc.compileClosure(n)

	case hir.KindAsyncBlock:
		fc.compileAsyncBlock(n)

	case hir.KindSelect:
		fc.compileSelect(n)

	default:
		fc.emit(OpPushUnit, 0, n.Sp)
	}
}

func namedPath(segs []string) item.Path {
	p := make(item.Path, len(segs))
	for i, s := range segs {
		p[i] = item.Named(s)
	}
	return p
}

func (fc *funcCompiler) compileLit(n *hir.Node) {
	switch n.LitKind {
	case ast.LitInt:
		fc.emit(OpPushInt, n.Int, n.Sp)
	case ast.LitFloat:
		idx := len(fc.c.unit.Consts)
		fc.c.unit.Consts = append(fc.c.unit.Consts, ConstValue{Kind: ConstFloat, Float: n.Float})
		fc.emit(OpPushConst, int64(idx), n.Sp)
	case ast.LitBool:
		v := int64(0)
		if n.Bool {
			v = 1
		}
		fc.emit(OpPushBool, v, n.Sp)
	case ast.LitString:
		fc.emit(OpPushString, fc.strID(n.Str), n.Sp)
	default:
		fc.emit(OpPushUnit, 0, n.Sp)
	}
}

func (fc *funcCompiler) compileBinary(n *hir.Node) {
	if n.BinOp == ast.OpAssign {
		fc.compileAssign(n)
		return
	}
	if n.BinOp == ast.OpAnd {
		fc.compileExpr(n.A)
		jmp := fc.emit(OpJumpIfNotOrPop, 0, n.Sp)
		fc.compileExpr(n.B)
		fc.patch(jmp, fc.here())
		return
	}
	if n.BinOp == ast.OpOr {
		fc.compileExpr(n.A)
		jmp := fc.emit(OpJumpIfOrPop, 0, n.Sp)
		fc.compileExpr(n.B)
		fc.patch(jmp, fc.here())
		return
	}
	fc.compileExpr(n.A)
	fc.compileExpr(n.B)
	switch n.BinOp {
	case ast.OpAdd:
		fc.emit(OpAdd, 0, n.Sp)
	case ast.OpSub:
		fc.emit(OpSub, 0, n.Sp)
	case ast.OpMul:
		fc.emit(OpMul, 0, n.Sp)
	case ast.OpDiv:
		fc.emit(OpDiv, 0, n.Sp)
	case ast.OpRem:
		fc.emit(OpRem, 0, n.Sp)
	case ast.OpBitAnd:
		fc.emit(OpBitAnd, 0, n.Sp)
	case ast.OpBitOr:
		fc.emit(OpBitOr, 0, n.Sp)
	case ast.OpBitXor:
		fc.emit(OpBitXor, 0, n.Sp)
	case ast.OpShl:
		fc.emit(OpShl, 0, n.Sp)
	case ast.OpShr:
		fc.emit(OpShr, 0, n.Sp)
	case ast.OpEq:
		fc.emit(OpEq, 0, n.Sp)
	case ast.OpNeq:
		fc.emit(OpNeq, 0, n.Sp)
	case ast.OpLt:
		fc.emit(OpLt, 0, n.Sp)
	case ast.OpLte:
		fc.emit(OpLte, 0, n.Sp)
	case ast.OpGt:
		fc.emit(OpGt, 0, n.Sp)
	case ast.OpGte:
		fc.emit(OpGte, 0, n.Sp)
	}
}

// compileAssign compiles `target = value`. An ident target stores to its
// local slot; a field/index/tuple-index target mutates the referenced
// aggregate in place through the corresponding Set opcode, which borrows
// it exclusively (runtime.Shared.BorrowExclusive) rather than through the
// shared borrow (runtime.Shared.BorrowShared) the Get opcodes take. Either way, assignment is
// itself an expression yielding the assigned value.
func (fc *funcCompiler) compileAssign(n *hir.Node) {
	target := fc.fn.Arena.At(n.A)
	switch target.Kind {
	case hir.KindIdent:
		fc.compileExpr(n.B)
		slot, ok := fc.locals[target.Name]
		if !ok {
			slot = fc.bindNewLocal(target.Name)
		}
		fc.emit(OpStoreLocal, int64(slot), n.Sp)
		fc.emit(OpCopy, int64(slot), n.Sp) // an assignment is itself an expression yielding the stored value

	case hir.KindField:
		fc.compileExpr(target.A)
		fc.compileExpr(n.B)
		fc.emit(OpSetField, fc.strID(target.Name), n.Sp)

	case hir.KindIndex:
		fc.compileExpr(target.A)
		fc.compileExpr(target.B)
		fc.compileExpr(n.B)
		fc.emit(OpSetIndex, 0, n.Sp)

	case hir.KindTupleIndex:
		fc.compileExpr(target.A)
		fc.compileExpr(n.B)
		fc.emit(OpSetTupleIndex, target.Int, n.Sp)

	default:
		fc.compileExpr(n.B)
		fc.emit(OpPop, 0, n.Sp)
		fc.emit(OpPushUnit, 0, n.Sp)
	}
}

func (fc *funcCompiler) compileIf(n *hir.Node) {
	fc.compileExpr(n.A)
	jmpElse := fc.emit(OpJumpIfFalse, 0, n.Sp)
	fc.compileExprVoid(n.B)
	jmpEnd := fc.emit(OpJump, 0, n.Sp)
	fc.patch(jmpElse, fc.here())
	if n.HasTail {
		fc.compileExpr(n.C)
	} else {
		fc.emit(OpPushUnit, 0, n.Sp)
	}
	fc.patch(jmpEnd, fc.here())
}

func (fc *funcCompiler) compileWhile(n *hir.Node) {
	fc.loops = append(fc.loops, loopFrame{label: n.Label})
	top := fc.here()
	fc.compileExpr(n.A)
	jmpEnd := fc.emit(OpJumpIfFalse, 0, n.Sp)
	fc.compileExprVoid(n.B)
	fc.emit(OpPop, 0, n.Sp)
	fc.emit(OpJump, top, n.Sp)
	fc.patch(jmpEnd, fc.here())
	fc.emit(OpPushUnit, 0, n.Sp)
	lf := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, p := range lf.breakPatches {
		fc.patch(p, fc.here())
	}
	for _, p := range lf.continuePatches {
		fc.patch(p, top)
	}
}

func (fc *funcCompiler) compileLoop(n *hir.Node) {
	fc.loops = append(fc.loops, loopFrame{label: n.Label})
	top := fc.here()
	fc.compileExprVoid(n.A)
	fc.emit(OpPop, 0, n.Sp)
	fc.emit(OpJump, top, n.Sp)
	lf := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	fc.emit(OpPushUnit, 0, n.Sp)
	for _, p := range lf.breakPatches {
		fc.patch(p, fc.here())
	}
	for _, p := range lf.continuePatches {
		fc.patch(p, top)
	}
}

func (fc *funcCompiler) findLoop(label string) *loopFrame {
	for i := len(fc.loops) - 1; i >= 0; i-- {
		if label == "" || fc.loops[i].label == label {
			return &fc.loops[i]
		}
	}
	return nil
}

func (fc *funcCompiler) compileBreak(n *hir.Node) {
	if n.HasTail {
		fc.compileExpr(n.A)
	} else {
		fc.emit(OpPushUnit, 0, n.Sp)
	}
	idx := fc.emit(OpJump, 0, n.Sp)
	if lf := fc.findLoop(n.Label); lf != nil {
		lf.breakPatches = append(lf.breakPatches, idx)
	}
	fc.emit(OpPushUnit, 0, n.Sp)
}

func (fc *funcCompiler) compileContinue(n *hir.Node) {
	idx := fc.emit(OpJump, 0, n.Sp)
	if lf := fc.findLoop(n.Label); lf != nil {
		lf.continuePatches = append(lf.continuePatches, idx)
	}
	fc.emit(OpPushUnit, 0, n.Sp)
}

// compileMatch evaluates the subject once into a temp slot, then tests
// each arm's pattern in turn, binding names directly to (possibly
// projected) slots rather than re-walking the subject expression.
func (fc *funcCompiler) compileMatch(n *hir.Node) {
	fc.compileExpr(n.A)
	subjSlot := fc.nextSlot
	fc.nextSlot++
	fc.emit(OpStoreLocal, int64(subjSlot), n.Sp)

	var endJumps []int
	for _, armID := range n.List {
		arm := fc.fn.Arena.At(armID)
		fc.pushScope()
		fc.compileTest(arm.Pattern, subjSlot, arm.Sp)
		jmpNext := fc.emit(OpJumpIfFalse, 0, arm.Sp)
		fc.bindPattern(arm.Pattern, subjSlot)
		fc.compileExpr(arm.A)
		endJumps = append(endJumps, fc.emit(OpJump, 0, arm.Sp))
		fc.patch(jmpNext, fc.here())
		fc.popScope()
	}
	fc.emit(OpPushString, fc.strID("no pattern matched"), n.Sp)
	fc.emit(OpPanic, 0, n.Sp)
	for _, j := range endJumps {
		fc.patch(j, fc.here())
	}
}

// compileTest emits code leaving a bool on the stack reporting whether
// pat matches the value in slot.
func (fc *funcCompiler) compileTest(pat *hir.Pattern, slot int, sp source.Span) {
	if pat == nil {
		fc.emit(OpPushBool, 1, sp)
		return
	}
	switch pat.Kind {
	case hir.PatWildcard, hir.PatBind:
		fc.emit(OpPushBool, 1, sp)

	case hir.PatObject:
		if len(pat.Keys) == 0 {
			fc.emit(OpPushBool, 1, sp)
			return
		}
		for i, k := range pat.Keys {
			fc.emit(OpCopy, int64(slot), sp)
			fc.emit(OpTestField, fc.strID(k), sp)
			if i > 0 {
				fc.emit(OpBitAnd, 0, sp)
			}
		}

	case hir.PatLit:
		fc.emit(OpCopy, int64(slot), sp)
		fc.compileLit(litNode(pat.Lit, sp))
		fc.emit(OpEq, 0, sp)

	case hir.PatTuple:
		if len(pat.Elems) == 0 {
			fc.emit(OpPushBool, 1, sp)
			return
		}
		for i, sub := range pat.Elems {
			projSlot := fc.project(slot, OpGetTupleIndex, int64(i), sp)
			fc.compileTest(sub, projSlot, sp)
			if i > 0 {
				fc.emit(OpBitAnd, 0, sp)
			}
		}

	case hir.PatVariant:
		fc.emit(OpCopy, int64(slot), sp)
		fc.emit(OpTestVariant, fc.c.tag(pat.Enum+"::"+pat.Variant), sp)
		for i, sub := range pat.Elems {
			projSlot := fc.project(slot, OpGetTupleIndex, int64(i), sp)
			fc.compileTest(sub, projSlot, sp)
			fc.emit(OpBitAnd, 0, sp)
		}
	}
}

// bindPattern aliases every PatBind name in pat to the (possibly
// projected) slot holding its value; no bytecode is emitted for names
// that can be aliased directly.
func (fc *funcCompiler) bindPattern(pat *hir.Pattern, slot int) {
	if pat == nil {
		return
	}
	switch pat.Kind {
	case hir.PatBind:
		fc.bindExistingSlot(pat.Name, slot)
	case hir.PatTuple:
		for i, sub := range pat.Elems {
			projSlot := fc.project(slot, OpGetTupleIndex, int64(i), source.Span{})
			fc.bindPattern(sub, projSlot)
		}
	case hir.PatVariant:
		for i, sub := range pat.Elems {
			projSlot := fc.project(slot, OpGetTupleIndex, int64(i), source.Span{})
			fc.bindPattern(sub, projSlot)
		}
	case hir.PatObject:
		for _, k := range pat.Keys {
			projSlot := fc.project(slot, OpGetField, fc.strID(k), source.Span{})
			fc.bindExistingSlot(k, projSlot)
		}
	}
}

func litNode(lit *ast.Lit, sp source.Span) *hir.Node {
	if lit == nil {
		return &hir.Node{Kind: hir.KindLit, LitKind: ast.LitUnit, Sp: sp}
	}
	return &hir.Node{Kind: hir.KindLit, Sp: sp, LitKind: lit.Kind, Int: lit.Int, Float: lit.Float, Bool: lit.Bool, Str: lit.Str}
}

// compileClosure emits code that copies each captured variable's current
// value and constructs a closure value bound to a freshly-compiled
// synthetic function: captures become its leading parameters (so
// runtime.doCallClosure can splice them ahead of the real call arguments)
// and the closure's own parameter names follow.
func (fc *funcCompiler) compileClosure(n *hir.Node) {
	for _, cap := range n.Captures {
		if slot, ok := fc.locals[cap]; ok {
			fc.emit(OpCopy, int64(slot), n.Sp)
		} else {
			fc.emit(OpPushUnit, 0, n.Sp)
		}
	}
	hash := fc.syntheticHash(n.A)
	synth := &hir.Func{Arena: fc.fn.Arena, Params: append(append([]string{}, n.Captures...), n.Params...), Root: n.A}
	fc.c.compileFunctionEntry(hash, "<closure>", synth, fc.sourceID, len(n.Captures))
	fc.emit(OpMakeClosure, int64(hash), n.Sp)
}

// syntheticHash derives a closure/async-block's function hash from its
// enclosing function's hash and its arena node id. A full build-queue
// implementation would assign these during indexing instead (see
// DESIGN.md), but that requires threading item.Pool allocation through
// HIR lowering, which this compiler pass does not do.
func (fc *funcCompiler) syntheticHash(id hir.NodeID) item.Hash {
	return item.GlobalFn(item.Path{item.Synthetic(uint32(fc.hash) ^ uint32(id))}, item.EMPTY)
}

func (fc *funcCompiler) compileAsyncBlock(n *hir.Node) {
	for _, cap := range n.Captures {
		if slot, ok := fc.locals[cap]; ok {
			fc.emit(OpCopy, int64(slot), n.Sp)
		} else {
			fc.emit(OpPushUnit, 0, n.Sp)
		}
	}
	hash := fc.syntheticHash(n.A)
	synth := &hir.Func{Arena: fc.fn.Arena, Params: append([]string{}, n.Captures...), IsAsync: true, Root: n.A}
	fc.c.compileFunctionEntry(hash, "<async>", synth, fc.sourceID, len(n.Captures))
	fc.emit(OpMakeCoroutine, int64(hash), n.Sp)
}

// compileSelect compiles each arm's future and stashes its bind name and
// body for the runtime's coroutine scheduler (runtime.Select), which
// drives the actual suspend/resume/poll loop; the compiler just
// evaluates the futures and emits a MakeCoroutine-style marker so the VM
// knows how many arms to race.
func (fc *funcCompiler) compileSelect(n *hir.Node) {
	for _, armID := range n.List {
		arm := fc.fn.Arena.At(armID)
		fc.compileExpr(arm.A) // future
	}
	fc.emit(OpNewTuple, int64(len(n.List)), n.Sp)
	fc.emit(OpAwait, 0, n.Sp)
}
