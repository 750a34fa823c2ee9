package compile

// Op is one bytecode instruction opcode, per the instruction set
// described in spec.md §5.
type Op int

const (
	OpPushUnit Op = iota
	OpPushInt
	OpPushFloat
	OpPushBool
	OpPushString // operand indexes the Unit's static string pool
	OpPushConst  // operand indexes the Unit's constant pool
	OpPop
	OpCopy       // operand: local slot index; push a copy of locals[slot] onto the operand stack
	OpMove       // like Copy, but locals[slot] is cleared afterward (borrow-checked move out)
	OpStoreLocal // operand: local slot index; pop the operand stack into locals[slot]
	OpSwap       // swap the top two operand-stack values

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpNot
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

	OpJump
	OpJumpIfFalse
	OpJumpIfTrue

	OpCallFn       // operand: item.Hash of a global function
	OpCallInstance // operand: string-pool id of the method name; the VM hashes it against the receiver's runtime type
	OpCallClosure  // stack top is the closure value; operand is argument count

	OpNewTuple
	OpNewArray
	OpNewObject
	OpNewStruct  // operand: Unit.FieldSets index of the struct's type name and fields
	OpNewVariant // operand: Unit.FieldSets index of the variant's type name, tag and fields

	OpGetField
	OpGetIndex
	OpGetTupleIndex

	OpSetField      // operand: string-pool id of the field name; pops value then object, mutates through Shared.BorrowExclusive, pushes value back
	OpSetIndex      // pops value, index, then object (in that push order: object, index, value); mutates, pushes value back
	OpSetTupleIndex // operand: tuple index; pops value then object, mutates, pushes value back

	OpTestVariant  // operand: enum/variant tag; pops subject, pushes bool
	OpTestField    // operand: string-pool id of a field name; pops subject, pushes bool reporting whether it's an aggregate with that field
	OpDestructure  // operand: field count; unpacks a struct/tuple/variant's fields onto the stack

	OpJumpIfOrPop    // operand: jump target; if top-of-stack is truthy, jump leaving it, else pop it and fall through (compiles `||`)
	OpJumpIfNotOrPop // operand: jump target; if top-of-stack is falsy, jump leaving it, else pop it and fall through (compiles `&&`)

	OpMakeClosure // operand: function Hash; pops N captures (N from debug info) and pushes a closure value
	OpMakeCoroutine

	OpYield
	OpAwait

	OpReturn
	OpPanic

	OpHalt
)

var opNames = map[Op]string{
	OpPushUnit: "push.unit", OpPushInt: "push.int", OpPushFloat: "push.float",
	OpPushBool: "push.bool", OpPushString: "push.str", OpPushConst: "push.const",
	OpPop: "pop", OpCopy: "copy", OpMove: "move", OpStoreLocal: "store.local", OpSwap: "swap",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem",
	OpNeg: "neg", OpNot: "not", OpBitAnd: "band", OpBitOr: "bor", OpBitXor: "bxor",
	OpShl: "shl", OpShr: "shr",
	OpEq: "eq", OpNeq: "neq", OpLt: "lt", OpLte: "lte", OpGt: "gt", OpGte: "gte",
	OpJump: "jump", OpJumpIfFalse: "jump.iffalse", OpJumpIfTrue: "jump.iftrue",
	OpCallFn: "call.fn", OpCallInstance: "call.instance", OpCallClosure: "call.closure",
	OpNewTuple: "new.tuple", OpNewArray: "new.array", OpNewObject: "new.object",
	OpNewStruct: "new.struct", OpNewVariant: "new.variant",
	OpGetField: "get.field", OpGetIndex: "get.index", OpGetTupleIndex: "get.tupleidx",
	OpSetField: "set.field", OpSetIndex: "set.index", OpSetTupleIndex: "set.tupleidx",
	OpTestVariant: "test.variant", OpTestField: "test.field", OpDestructure: "destructure",
	OpJumpIfOrPop: "jump.iforpop", OpJumpIfNotOrPop: "jump.ifnotorpop",
	OpMakeClosure: "make.closure", OpMakeCoroutine: "make.coroutine",
	OpYield: "yield", OpAwait: "await",
	OpReturn: "return", OpPanic: "panic", OpHalt: "halt",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "op?"
}

// Inst is one assembled instruction: an opcode plus up to one integer
// operand (an index into a pool, a jump target, or an immediate) and,
// for OpCallFn/OpCallInstance, the call site's actual argument count
// (OpCallClosure already carries this in Operand).
type Inst struct {
	Op      Op
	Operand int64
	Argc    int64
}
