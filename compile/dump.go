package compile

import (
	"fmt"
	"io"
	"strconv"
)

// Disassemble writes a column-aligned listing of unit's instruction
// stream to out, one function at a time, annotating operands that index
// a pool with the pool contents. The column-alignment approach mirrors
// the teacher's vmDumper.dumpMem (dumper.go), adapted from a paged
// memory dump to a bytecode listing.
func Disassemble(out io.Writer, unit *Unit) {
	addrWidth := len(strconv.Itoa(len(unit.Instructions))) + 1
	for _, fn := range unit.Functions {
		fmt.Fprintf(out, "fn %s @%d (hash=%d, params=%d%s)\n", fn.Name, fn.Start, fn.Hash, fn.ParamLen, asyncSuffix(fn.IsAsync))
		for i := fn.Start; i < fn.Start+fn.Len; i++ {
			inst := unit.Instructions[i]
			text := operandText(unit, inst)
			if inst.Op == OpCallFn || inst.Op == OpCallInstance {
				text = fmt.Sprintf("%s argc=%d", text, inst.Argc)
			}
			fmt.Fprintf(out, "  % *d  %-14s %s\n", addrWidth, i, inst.Op, text)
		}
	}
}

func asyncSuffix(isAsync bool) string {
	if isAsync {
		return ", async"
	}
	return ""
}

func operandText(unit *Unit, inst Inst) string {
	switch inst.Op {
	case OpPushString, OpCallInstance:
		return fmt.Sprintf("%q", unit.Strings.String(int(inst.Operand)))
	case OpPushConst:
		if int(inst.Operand) < len(unit.Consts) {
			return fmt.Sprintf("%v", unit.Consts[inst.Operand])
		}
	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpJumpIfOrPop, OpJumpIfNotOrPop:
		return fmt.Sprintf("-> %d", inst.Operand)
	case OpNewObject, OpNewStruct, OpNewVariant:
		if int(inst.Operand) < len(unit.FieldSets) {
			fs := unit.FieldSets[inst.Operand]
			return fmt.Sprintf("%s%s", fs.TypeName, fs.Fields)
		}
	case OpSetField, OpTestField:
		return fmt.Sprintf("%q", unit.Strings.String(int(inst.Operand)))
	case OpPushUnit, OpPop, OpAdd, OpSub, OpMul, OpDiv, OpRem, OpNeg, OpNot,
		OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr, OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte,
		OpReturn, OpHalt, OpSwap:
		return ""
	}
	if inst.Operand == 0 {
		return ""
	}
	return strconv.FormatInt(inst.Operand, 10)
}
