package runtime

import (
	"context"

	"github.com/jcorbin/runevm/internal/panicerr"
	"github.com/jcorbin/runevm/item"
)

// CoroState is one state in a Coroutine's Initial -> Running ->
// Suspended <-> Running -> Complete|Failed state machine (spec.md §7).
type CoroState int

const (
	CoroInitial CoroState = iota
	CoroRunning
	CoroSuspended
	CoroComplete
	CoroFailed
)

func (s CoroState) String() string {
	switch s {
	case CoroInitial:
		return "initial"
	case CoroRunning:
		return "running"
	case CoroSuspended:
		return "suspended"
	case CoroComplete:
		return "complete"
	case CoroFailed:
		return "failed"
	default:
		return "?"
	}
}

type coroMsg struct {
	value Value
	done  bool
	err   error
}

// Coroutine is the suspended-execution state backing async functions,
// generators, and `select` arms: its body runs on its own forked VM in a
// dedicated goroutine, handing control back to its resumer across
// unbuffered channels each time it yields or completes.
type Coroutine struct {
	fnHash   item.Hash
	captures []Value
	state    CoroState

	resumeCh chan Value
	yieldCh  chan coroMsg
}

func newCoroutine(fnHash item.Hash, captures []Value) *Coroutine {
	return &Coroutine{
		fnHash: fnHash, captures: captures, state: CoroInitial,
		resumeCh: make(chan Value), yieldCh: make(chan coroMsg),
	}
}

// State reports the coroutine's current lifecycle state.
func (c *Coroutine) State() CoroState { return c.state }

// suspend is called from inside the coroutine's own forked VM (by
// doYield, running on the coroutine's goroutine): it hands value to
// whoever is resuming this coroutine and blocks until resumed again.
func (c *Coroutine) suspend(v Value) (Value, error) {
	c.yieldCh <- coroMsg{value: v}
	resumed := <-c.resumeCh
	return resumed, nil
}

// resumeCoroutine drives coro from Initial or Suspended into Running,
// starting its forked VM goroutine on first resume, and blocks until the
// coroutine next yields, completes, or fails (or ctx is cancelled).
func (vm *VM) resumeCoroutine(ctx context.Context, coro *Coroutine, resumeVal Value) (Value, error) {
	switch coro.state {
	case CoroComplete, CoroFailed, CoroRunning:
		return Value{}, haltError{ErrBadCoroutineState}
	}

	if coro.state == CoroInitial {
		coro.state = CoroRunning
		child := vm.fork()
		child.activeCoroutine = coro
		go func() {
			var result Value
			err := panicerr.Recover("runevm.Coroutine", func() error {
				v, err := child.call(ctx, coro.fnHash, coro.captures)
				result = v
				return err
			})
			if err != nil {
				var he haltError
				if ok := asHaltError(err, &he); ok {
					err = he.error
				}
				coro.yieldCh <- coroMsg{err: err}
				return
			}
			coro.yieldCh <- coroMsg{value: result, done: true}
		}()
	} else {
		coro.state = CoroRunning
		select {
		case coro.resumeCh <- resumeVal:
		case <-ctx.Done():
			return Value{}, haltError{ctx.Err()}
		}
	}

	select {
	case msg := <-coro.yieldCh:
		if msg.err != nil {
			coro.state = CoroFailed
			return Value{}, msg.err
		}
		if msg.done {
			coro.state = CoroComplete
			return msg.value, nil
		}
		coro.state = CoroSuspended
		return msg.value, nil
	case <-ctx.Done():
		return Value{}, haltError{ctx.Err()}
	}
}

func asHaltError(err error, target *haltError) bool {
	he, ok := err.(haltError)
	if ok {
		*target = he
	}
	return ok
}
