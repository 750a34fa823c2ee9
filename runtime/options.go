package runtime

import (
	"context"
	"io"
	"io/ioutil"

	"github.com/jcorbin/runevm/internal/flushio"
)

// Option configures a VM, following the same flattening functional-
// options shape as the teacher's VMOption (options.go/api.go).
type Option interface{ apply(vm *VM) }

var defaultOptions = Options(
	withOutput(ioutil.Discard),
	withStackLimit(65536),
	withStepBudget(0),
)

// Options flattens opts into one applied Option.
func Options(opts ...Option) Option {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(vm *VM) {}

type options []Option

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

type withLogfn func(mess string, args ...interface{})

func (logfn withLogfn) apply(vm *VM) { vm.log.logfn = logfn }

// WithLogf installs a trace logger, called once per dispatched
// instruction when non-nil.
func WithLogf(logfn func(mess string, args ...interface{})) Option { return withLogfn(logfn) }

type outputOption struct{ io.Writer }

func withOutput(w io.Writer) outputOption { return outputOption{w} }

// WithStdout sets the VM's output stream, wrapped in a flushio.WriteFlusher;
// the runtime package defines no builtin that writes to it.
func WithStdout(w io.Writer) Option { return withOutput(w) }

func (o outputOption) apply(vm *VM) {
	if vm.out != nil {
		vm.out.Flush()
	}
	vm.out = flushio.NewWriteFlusher(o.Writer)
}

type stackLimitOption int

func withStackLimit(n int) stackLimitOption { return stackLimitOption(n) }

// WithStackLimit bounds the operand stack depth before the VM raises
// ErrStackUnderflow's counterpart overflow condition as a Panic.
func WithStackLimit(n int) Option { return withStackLimit(n) }

func (n stackLimitOption) apply(vm *VM) { vm.stackLimit = int(n) }

type stepBudgetOption int

func withStepBudget(n int) stepBudgetOption { return stepBudgetOption(n) }

// WithStepBudget bounds how many instructions Run executes before
// returning ErrStepBudgetExceeded; 0 means unbounded.
func WithStepBudget(n int) Option { return withStepBudget(n) }

func (n stepBudgetOption) apply(vm *VM) { vm.stepBudget = int(n) }

type contextOption struct{ context.Context }

// WithContext seeds the context Run uses if its own ctx argument is nil;
// Run's argument always takes precedence when non-nil.
func WithContext(ctx context.Context) Option { return contextOption{ctx} }

func (c contextOption) apply(vm *VM) { vm.baseCtx = c.Context }
