package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jcorbin/runevm/compile"
	"github.com/jcorbin/runevm/internal/flushio"
	"github.com/jcorbin/runevm/internal/panicerr"
	"github.com/jcorbin/runevm/item"
)

// Function is one host-registered external function: Handler is invoked
// with the VM (so it can pop its own arguments) and the argument count the
// call site supplied, and returns its result, which the VM then pushes.
type Function struct {
	Handler func(vm *VM, argc int) (Value, error)
	Arity   int
}

// logging mirrors the teacher's core.go logging struct: a column-aligned
// trace facility keyed by a short "mark" (here, the opcode mnemonic).
type logging struct {
	logfn     func(mess string, args ...interface{})
	markWidth int
}

func (log *logging) logf(mark, mess string, args ...interface{}) {
	if log.logfn == nil {
		return
	}
	if n := log.markWidth - len(mark); n > 0 {
		mark = mark + spaces(n)
	} else if n < 0 {
		log.markWidth = len(mark)
	}
	if len(args) > 0 {
		mess = fmt.Sprintf(mess, args...)
	}
	log.logfn("%-12s %v", mark, mess)
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

// frame is one call's activation record: its local-slot register file,
// the instruction offset to resume at, and where its result should land
// on the caller's operand stack.
type frame struct {
	fn       *compile.FuncEntry
	pc       int
	locals   []Value
	stackLen int // operand-stack depth when this frame was entered
}

// VM executes one compile.Unit. The zero value is not usable; construct
// with New.
type VM struct {
	unit *compile.Unit

	stack []Value
	frames []frame

	stackLimit int
	stepBudget int
	steps      int

	out     flushio.WriteFlusher
	log     logging
	baseCtx context.Context

	Functions map[item.Hash]*Function

	// activeCoroutine is non-nil while this VM instance is executing the
	// body of a coroutine (always true for a forked VM spawned by
	// resumeCoroutine, never true for the top-level VM a caller built with
	// New), so OpYield knows which Coroutine to suspend.
	activeCoroutine *Coroutine
}

// fork returns a new VM that shares unit, host functions, output stream,
// and logging with vm but has its own operand stack and call frames, so a
// coroutine's body can execute independently of whatever frame suspended
// it via OpAwait.
func (vm *VM) fork() *VM {
	return &VM{
		unit: vm.unit, Functions: vm.Functions, out: vm.out, log: vm.log,
		baseCtx: vm.baseCtx, stackLimit: vm.stackLimit, stepBudget: vm.stepBudget,
	}
}

// New constructs a VM ready to Run unit, applying opts over the default
// configuration.
func New(unit *compile.Unit, opts ...Option) *VM {
	vm := &VM{unit: unit, Functions: map[item.Hash]*Function{}}
	defaultOptions.apply(vm)
	Options(opts...).apply(vm)
	if vm.baseCtx == nil {
		vm.baseCtx = context.Background()
	}
	return vm
}

// Register installs a host function under hash, returning an error if
// one is already registered there (a ConflictingFunction in context.go's
// terms; here it's surfaced directly since VM.Register is the lower-
// level primitive context.Context.Install builds on).
func (vm *VM) Register(hash item.Hash, fn Function) error {
	if _, exists := vm.Functions[hash]; exists {
		return fmt.Errorf("runtime: function already registered for hash %d", hash)
	}
	vm.Functions[hash] = &fn
	return nil
}

// Run executes the function registered under entryHash to completion,
// returning its final value. Panics and goroutine exits inside host
// function calls are recovered via internal/panicerr, the same pattern
// api.go's Run uses around vm.run.
func (vm *VM) Run(ctx context.Context, entryHash item.Hash, args ...Value) (Value, error) {
	if ctx == nil {
		ctx = vm.baseCtx
	}
	var result Value
	err := panicerr.Recover("runevm.VM", func() error {
		v, err := vm.call(ctx, entryHash, args)
		result = v
		return err
	})
	if err == nil || errors.Is(err, io.EOF) {
		return result, nil
	}
	var he haltError
	if errors.As(err, &he) {
		err = he.error
	}
	return result, err
}

func (vm *VM) push(v Value) {
	if vm.stackLimit > 0 && len(vm.stack) >= vm.stackLimit {
		panic(haltError{&Panic{Message: "operand stack overflow"}})
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		panic(haltError{ErrStackUnderflow})
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) top() *Value {
	if len(vm.stack) == 0 {
		panic(haltError{ErrStackUnderflow})
	}
	return &vm.stack[len(vm.stack)-1]
}

// call invokes the function at hash with args already evaluated,
// running the dispatch loop for that call's frame to completion
// (synchronously; a coroutine body runs through call on a forked VM,
// which resumeCoroutine in coroutine.go drives on its own goroutine).
func (vm *VM) call(ctx context.Context, hash item.Hash, args []Value) (Value, error) {
	entry := vm.unit.FuncByHash(hash)
	if entry == nil {
		if hostFn, ok := vm.Functions[hash]; ok {
			return vm.callHost(hostFn, args)
		}
		return Value{}, haltError{ErrMissingFunction}
	}
	fr := frame{fn: entry, pc: entry.Start, locals: make([]Value, entry.ParamLen, entry.ParamLen+8), stackLen: len(vm.stack)}
	copy(fr.locals, args)
	vm.frames = append(vm.frames, fr)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()
	return vm.exec(ctx)
}

func (vm *VM) callHost(fn *Function, args []Value) (Value, error) {
	for _, a := range args {
		vm.push(a)
	}
	v, err := fn.Handler(vm, len(args))
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// curFrame returns the currently executing call frame.
func (vm *VM) curFrame() *frame { return &vm.frames[len(vm.frames)-1] }

// exec runs the dispatch loop for the top frame until it returns,
// panics, or ctx is cancelled.
func (vm *VM) exec(ctx context.Context) (Value, error) {
	for {
		select {
		case <-ctx.Done():
			return Value{}, haltError{ctx.Err()}
		default:
		}

		fr := vm.curFrame()
		if vm.stepBudget > 0 {
			vm.steps++
			if vm.steps > vm.stepBudget {
				return Value{}, haltError{ErrStepBudgetExceeded}
			}
		}
		inst := vm.unit.Instructions[fr.pc]
		vm.log.logf(inst.Op.String(), "pc=%d stack=%d", fr.pc, len(vm.stack))
		fr.pc++

		if inst.Op == compile.OpReturn {
			return vm.pop(), nil
		}
		if err := vm.step(ctx, inst); err != nil {
			return Value{}, err
		}
	}
}
