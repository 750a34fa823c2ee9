package runtime

import (
	"context"

	"github.com/jcorbin/runevm/compile"
	"github.com/jcorbin/runevm/item"
)

func (fr *frame) ensureSlot(n int) {
	for len(fr.locals) <= n {
		fr.locals = append(fr.locals, Value{})
	}
}

func (fr *frame) getLocal(n int) Value {
	fr.ensureSlot(n)
	return fr.locals[n]
}

func (fr *frame) setLocal(n int, v Value) {
	fr.ensureSlot(n)
	fr.locals[n] = v
}

// step dispatches one instruction against vm's current frame and
// operand stack.
func (vm *VM) step(ctx context.Context, inst compile.Inst) error {
	fr := vm.curFrame()
	switch inst.Op {
	case compile.OpPushUnit:
		vm.push(Unit)
	case compile.OpPushInt:
		vm.push(Int(inst.Operand))
	case compile.OpPushFloat:
		vm.push(Float(float64(inst.Operand)))
	case compile.OpPushBool:
		vm.push(Bool(inst.Operand != 0))
	case compile.OpPushString:
		vm.push(Str(vm.unit.Strings.String(int(inst.Operand))))
	case compile.OpPushConst:
		vm.push(constValue(vm.unit.Consts[inst.Operand]))

	case compile.OpPop:
		vm.pop()
	case compile.OpCopy:
		vm.push(fr.getLocal(int(inst.Operand)))
	case compile.OpMove:
		v := fr.getLocal(int(inst.Operand))
		fr.setLocal(int(inst.Operand), Value{})
		vm.push(v)
	case compile.OpStoreLocal:
		fr.setLocal(int(inst.Operand), vm.pop())
	case compile.OpSwap:
		a, b := vm.pop(), vm.pop()
		vm.push(a)
		vm.push(b)

	case compile.OpAdd, compile.OpSub, compile.OpMul, compile.OpDiv, compile.OpRem,
		compile.OpBitAnd, compile.OpBitOr, compile.OpBitXor, compile.OpShl, compile.OpShr,
		compile.OpEq, compile.OpNeq, compile.OpLt, compile.OpLte, compile.OpGt, compile.OpGte:
		r, l := vm.pop(), vm.pop()
		v, err := binaryOp(inst.Op, l, r)
		if err != nil {
			return err
		}
		vm.push(v)

	case compile.OpNeg:
		v := vm.pop()
		switch v.Kind {
		case KindInt:
			vm.push(Int(-v.Int))
		case KindFloat:
			vm.push(Float(-v.Float))
		default:
			return haltError{ErrBadType}
		}
	case compile.OpNot:
		v := vm.pop()
		if v.Kind != KindBool {
			return haltError{ErrBadType}
		}
		vm.push(Bool(!v.Bool))

	case compile.OpJump:
		fr.pc = int(inst.Operand)
	case compile.OpJumpIfFalse:
		v := vm.pop()
		b, ok := v.Truthy()
		if !ok {
			return haltError{ErrBadType}
		}
		if !b {
			fr.pc = int(inst.Operand)
		}
	case compile.OpJumpIfTrue:
		v := vm.pop()
		b, ok := v.Truthy()
		if !ok {
			return haltError{ErrBadType}
		}
		if b {
			fr.pc = int(inst.Operand)
		}

	case compile.OpJumpIfOrPop:
		v := vm.top()
		b, ok := v.Truthy()
		if !ok {
			return haltError{ErrBadType}
		}
		if b {
			fr.pc = int(inst.Operand)
		} else {
			vm.pop()
		}
	case compile.OpJumpIfNotOrPop:
		v := vm.top()
		b, ok := v.Truthy()
		if !ok {
			return haltError{ErrBadType}
		}
		if !b {
			fr.pc = int(inst.Operand)
		} else {
			vm.pop()
		}

	case compile.OpCallFn:
		return vm.doCallFn(ctx, item.Hash(inst.Operand), int(inst.Argc))
	case compile.OpCallInstance:
		return vm.doCallInstance(ctx, vm.unit.Strings.String(int(inst.Operand)), int(inst.Argc))
	case compile.OpCallClosure:
		return vm.doCallClosure(ctx, int(inst.Operand))

	case compile.OpNewTuple:
		vm.push(vm.collect(int(inst.Operand), "tuple"))
	case compile.OpNewArray:
		vm.push(vm.collect(int(inst.Operand), "array"))
	case compile.OpNewObject:
		return vm.doNewAggregate(int(inst.Operand), KindObject)
	case compile.OpNewStruct:
		return vm.doNewAggregate(int(inst.Operand), KindStruct)
	case compile.OpNewVariant:
		return vm.doNewAggregate(int(inst.Operand), KindVariant)

	case compile.OpGetField:
		return vm.doGetField(vm.unit.Strings.String(int(inst.Operand)))
	case compile.OpGetIndex:
		return vm.doGetIndex()
	case compile.OpGetTupleIndex:
		return vm.doGetTupleIndex(int(inst.Operand))

	case compile.OpSetField:
		return vm.doSetField(vm.unit.Strings.String(int(inst.Operand)))
	case compile.OpSetIndex:
		return vm.doSetIndex()
	case compile.OpSetTupleIndex:
		return vm.doSetTupleIndex(int(inst.Operand))

	case compile.OpTestVariant:
		return vm.doTestVariant(int(inst.Operand))
	case compile.OpTestField:
		return vm.doTestField(vm.unit.Strings.String(int(inst.Operand)))

	case compile.OpMakeClosure:
		return vm.doMakeClosure(inst.Operand)
	case compile.OpMakeCoroutine:
		return vm.doMakeCoroutine(inst.Operand)

	case compile.OpYield:
		return vm.doYield()
	case compile.OpAwait:
		return vm.doAwait(ctx)

	case compile.OpPanic:
		v := vm.pop()
		return haltError{&Panic{Message: v.String()}}

	case compile.OpHalt:
		return haltError{nil}
	}
	return nil
}

func constValue(c compile.ConstValue) Value {
	switch c.Kind {
	case compile.ConstInt:
		return Int(c.Int)
	case compile.ConstFloat:
		return Float(c.Float)
	case compile.ConstBool:
		return Bool(c.Bool)
	case compile.ConstString:
		return Str(c.Str)
	default:
		return Unit
	}
}

func (vm *VM) collect(n int, typeName string) Value {
	fields := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		fields[i] = vm.pop()
	}
	return Value{Kind: aggregateKind(typeName), Shared: NewShared(&Aggregate{TypeName: typeName, Tag: -1, Fields: fields})}
}

func aggregateKind(typeName string) Kind {
	switch typeName {
	case "tuple":
		return KindTuple
	case "array":
		return KindArray
	default:
		return KindObject
	}
}

func (vm *VM) doGetField(name string) error {
	v := vm.pop()
	if v.Shared == nil {
		return haltError{ErrBadType}
	}
	agg, release, err := v.Shared.BorrowShared()
	if err != nil {
		return haltError{err}
	}
	defer release()
	for i, k := range agg.Keys {
		if k == name {
			vm.push(agg.Fields[i])
			return nil
		}
	}
	return haltError{ErrBadType}
}

func (vm *VM) doGetIndex() error {
	idx := vm.pop()
	v := vm.pop()
	if v.Shared == nil || idx.Kind != KindInt {
		return haltError{ErrBadType}
	}
	agg, release, err := v.Shared.BorrowShared()
	if err != nil {
		return haltError{err}
	}
	defer release()
	if idx.Int < 0 || int(idx.Int) >= len(agg.Fields) {
		return haltError{ErrBadType}
	}
	vm.push(agg.Fields[idx.Int])
	return nil
}

func (vm *VM) doGetTupleIndex(i int) error {
	v := vm.pop()
	if v.Shared == nil {
		return haltError{ErrBadType}
	}
	agg, release, err := v.Shared.BorrowShared()
	if err != nil {
		return haltError{err}
	}
	defer release()
	if i < 0 || i >= len(agg.Fields) {
		return haltError{ErrBadType}
	}
	vm.push(agg.Fields[i])
	return nil
}

// doSetField mutates an object/struct's field in place through an
// exclusive borrow, then leaves the assigned value on the stack (an
// assignment is itself an expression). Stack order is object, value.
func (vm *VM) doSetField(name string) error {
	value := vm.pop()
	v := vm.pop()
	if v.Shared == nil {
		return haltError{ErrBadType}
	}
	agg, release, err := v.Shared.BorrowExclusive()
	if err != nil {
		return haltError{err}
	}
	defer release()
	for i, k := range agg.Keys {
		if k == name {
			agg.Fields[i] = value
			vm.push(value)
			return nil
		}
	}
	return haltError{ErrBadType}
}

// doSetIndex is doSetField's array/index analogue. Stack order is
// object, index, value.
func (vm *VM) doSetIndex() error {
	value := vm.pop()
	idx := vm.pop()
	v := vm.pop()
	if v.Shared == nil || idx.Kind != KindInt {
		return haltError{ErrBadType}
	}
	agg, release, err := v.Shared.BorrowExclusive()
	if err != nil {
		return haltError{err}
	}
	defer release()
	if idx.Int < 0 || int(idx.Int) >= len(agg.Fields) {
		return haltError{ErrBadType}
	}
	agg.Fields[idx.Int] = value
	vm.push(value)
	return nil
}

// doSetTupleIndex is doSetField's tuple analogue. Stack order is
// object, value.
func (vm *VM) doSetTupleIndex(i int) error {
	value := vm.pop()
	v := vm.pop()
	if v.Shared == nil {
		return haltError{ErrBadType}
	}
	agg, release, err := v.Shared.BorrowExclusive()
	if err != nil {
		return haltError{err}
	}
	defer release()
	if i < 0 || i >= len(agg.Fields) {
		return haltError{ErrBadType}
	}
	agg.Fields[i] = value
	vm.push(value)
	return nil
}

func (vm *VM) doTestVariant(tag int) error {
	v := vm.pop()
	if v.Shared == nil {
		vm.push(Bool(false))
		return nil
	}
	agg, release, err := v.Shared.BorrowShared()
	if err != nil {
		return haltError{err}
	}
	defer release()
	vm.push(Bool(agg.Tag == tag))
	return nil
}

// doTestField reports whether the popped subject is an aggregate with a
// field named name, for compileTest's PatObject shape check.
func (vm *VM) doTestField(name string) error {
	v := vm.pop()
	if v.Shared == nil {
		vm.push(Bool(false))
		return nil
	}
	agg, release, err := v.Shared.BorrowShared()
	if err != nil {
		return haltError{err}
	}
	defer release()
	for _, k := range agg.Keys {
		if k == name {
			vm.push(Bool(true))
			return nil
		}
	}
	vm.push(Bool(false))
	return nil
}

// doNewAggregate pops one value per field named in the Unit's fsIdx'th
// FieldSet (deepest-pushed first) and folds them into a Shared aggregate
// of the given Kind, backing OpNewObject/OpNewStruct/OpNewVariant alike.
func (vm *VM) doNewAggregate(fsIdx int, kind Kind) error {
	if fsIdx < 0 || fsIdx >= len(vm.unit.FieldSets) {
		return haltError{ErrBadType}
	}
	fs := vm.unit.FieldSets[fsIdx]
	fields := make([]Value, len(fs.Fields))
	for i := len(fs.Fields) - 1; i >= 0; i-- {
		fields[i] = vm.pop()
	}
	keys := make([]string, len(fs.Fields))
	copy(keys, fs.Fields)
	vm.push(Value{Kind: kind, Shared: NewShared(&Aggregate{
		TypeName: fs.TypeName, Tag: fs.Tag, Fields: fields, Keys: keys,
	})})
	return nil
}

// arity validates that a call site's actual argument count matches a
// callee's declared parameter count, returning ErrArityMismatch if not.
func arity(declared, got int) error {
	if declared != got {
		return haltError{ErrArityMismatch}
	}
	return nil
}

func (vm *VM) doCallFn(ctx context.Context, hash item.Hash, argc int) error {
	entry := vm.unit.FuncByHash(hash)
	var declared int
	if entry != nil {
		declared = entry.ParamLen
	} else if hostFn, ok := vm.Functions[hash]; ok {
		declared = hostFn.Arity
	} else {
		return haltError{ErrMissingFunction}
	}
	if err := arity(declared, argc); err != nil {
		return err
	}
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	v, err := vm.call(ctx, hash, args)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

// doCallInstance resolves the instance function hash from the
// receiver's runtime TypeName plus the method name, so the same method
// name on different struct types dispatches to different functions.
// argc is the call site's explicit argument count, excluding the
// receiver; the receiver is popped separately and prepended so it lands
// in the callee's first local slot (its `self` parameter).
func (vm *VM) doCallInstance(ctx context.Context, name string, argc int) error {
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	recv := vm.pop()
	typeName := "unknown"
	if recv.Shared != nil {
		agg, release, err := recv.Shared.BorrowShared()
		if err != nil {
			return haltError{err}
		}
		typeName = agg.TypeName
		release()
	}
	typeHash := item.TypeHash(item.Path{item.Named(typeName)}, item.EMPTY)
	hash := item.InstanceFn(typeHash, name)
	entry := vm.unit.FuncByHash(hash)
	var declared int
	if entry != nil {
		declared = entry.ParamLen
	} else if hostFn, ok := vm.Functions[hash]; ok {
		declared = hostFn.Arity
	} else {
		return haltError{ErrMissingInstanceFn}
	}
	if err := arity(declared, argc+1); err != nil {
		return err
	}
	fullArgs := append([]Value{recv}, args...)
	v, err := vm.call(ctx, hash, fullArgs)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

func (vm *VM) doCallClosure(ctx context.Context, argc int) error {
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	closureVal := vm.pop()
	if closureVal.Shared == nil || closureVal.Shared.Peek().Closure == nil {
		return haltError{ErrBadType}
	}
	cl := closureVal.Shared.Peek().Closure
	fullArgs := append(append([]Value{}, cl.Captures...), args...)
	v, err := vm.call(ctx, item.Hash(cl.FnHash), fullArgs)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

func (vm *VM) doMakeClosure(fnHash int64) error {
	entry := vm.unit.FuncByHash(item.Hash(fnHash))
	if entry == nil {
		return haltError{ErrMissingFunction}
	}
	captures := make([]Value, entry.CaptureLen)
	for i := entry.CaptureLen - 1; i >= 0; i-- {
		captures[i] = vm.pop()
	}
	vm.push(Value{Kind: KindClosure, Shared: NewShared(&Aggregate{
		TypeName: "closure",
		Tag:      -1,
		Closure:  &ClosureValue{FnHash: fnHash, Captures: captures},
	})})
	return nil
}

func (vm *VM) doMakeCoroutine(fnHash int64) error {
	entry := vm.unit.FuncByHash(item.Hash(fnHash))
	if entry == nil {
		return haltError{ErrMissingFunction}
	}
	captures := make([]Value, entry.CaptureLen)
	for i := entry.CaptureLen - 1; i >= 0; i-- {
		captures[i] = vm.pop()
	}
	coro := newCoroutine(item.Hash(fnHash), captures)
	vm.push(Value{Kind: KindCoroutine, Shared: NewShared(&Aggregate{
		TypeName: "coroutine",
		Tag:      -1,
		Coro:     coro,
	})})
	return nil
}

func (vm *VM) doYield() error {
	v := vm.pop()
	cur := vm.activeCoroutine
	if cur == nil {
		return haltError{ErrBadCoroutineState}
	}
	resumed, err := cur.suspend(v)
	if err != nil {
		return err
	}
	vm.push(resumed)
	return nil
}

func (vm *VM) doAwait(ctx context.Context) error {
	v := vm.pop()
	if v.Shared == nil || v.Shared.Peek().Coro == nil {
		// awaiting a plain value (already-ready future) just yields it back
		vm.push(v)
		return nil
	}
	coro := v.Shared.Peek().Coro
	result, err := vm.resumeCoroutine(ctx, coro, Unit)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}
