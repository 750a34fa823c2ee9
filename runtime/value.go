// Package runtime executes a compiled compile.Unit: it implements the
// Value tagged sum, the borrow-tracked Shared handle, call frames, the
// dispatch loop, and the coroutine state machine backing async
// functions, generators, and `select`. The dispatch loop and its
// functional-options configuration are grounded in the teacher's VM
// (core.go, api.go, options.go); everything value/type-related is new,
// since the teacher's VM only ever holds machine words.
package runtime

import "fmt"

// Kind discriminates the Value tagged union.
type Kind int

const (
	KindUnit Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTuple
	KindArray
	KindObject
	KindStruct
	KindVariant
	KindClosure
	KindCoroutine
	KindResultOk
	KindResultErr
	KindOptionSome
	KindOptionNone
)

func (k Kind) String() string {
	names := [...]string{
		"unit", "bool", "int", "float", "string", "tuple", "array", "object",
		"struct", "variant", "closure", "coroutine", "Result::Ok", "Result::Err",
		"Option::Some", "Option::None",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Value is one dynamically-typed VM value. Aggregates are stored behind
// a *Shared handle so copies observe mutation-through-reference the same
// way spec.md §2's data model requires, while scalars are stored inline
// for speed.
type Value struct {
	Kind   Kind
	Int    int64
	Float  float64
	Bool   bool
	Str    string
	Shared *Shared
}

// Unit is the canonical unit value.
var Unit = Value{Kind: KindUnit}

// Bool wraps b as a Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int wraps n as a Value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Float wraps f as a Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Str wraps s as a Value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Truthy implements the language's notion of truthiness for `if`/`while`
// conditions: only Bool values participate; anything else is a type
// error the caller surfaces as ErrBadType.
func (v Value) Truthy() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.Bool, true
}

func (v Value) String() string {
	switch v.Kind {
	case KindUnit:
		return "()"
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	default:
		if v.Shared != nil {
			return v.Shared.String()
		}
		return v.Kind.String()
	}
}

// Aggregate is the payload of any Shared-backed Value: tuples, arrays,
// objects, structs, and enum variants all reduce to a tag plus a field
// slice, the same representation the compiler's OpGetTupleIndex /
// OpGetField / OpTestVariant opcodes assume.
type Aggregate struct {
	TypeName string
	Tag      int // enum variant tag, or -1 for non-enum aggregates
	Fields   []Value
	Keys     []string // parallel to Fields for KindObject/KindStruct
	Closure  *ClosureValue
	Coro     *Coroutine
}

func (a *Aggregate) String() string {
	if a.Closure != nil {
		return "<closure>"
	}
	if a.Coro != nil {
		return "<coroutine>"
	}
	return fmt.Sprintf("%s%v", a.TypeName, a.Fields)
}

// ClosureValue pairs a compiled function hash with its captured values.
type ClosureValue struct {
	FnHash   int64
	Captures []Value
}

// BorrowState is Shared's borrow-tracking state machine, per spec.md §2:
// a handle starts Unshared, accumulates concurrent shared borrows, or is
// held Exclusive by at most one mutable borrow at a time.
type BorrowState int

const (
	Unshared BorrowState = iota
	SharedBorrowed
	Exclusive
)

// Shared is a borrow-tracked handle around one Aggregate, giving
// reference semantics to tuples/arrays/objects/structs/variants/
// closures/coroutines.
type Shared struct {
	value    *Aggregate
	state    BorrowState
	shareCnt int
}

// NewShared allocates a Shared handle wrapping agg.
func NewShared(agg *Aggregate) *Shared { return &Shared{value: agg} }

func (s *Shared) String() string {
	if s == nil || s.value == nil {
		return "<nil>"
	}
	return s.value.String()
}

// BorrowConflict reports an attempt to take an exclusive borrow while
// other borrows are outstanding, or vice versa.
type BorrowConflict struct{ Op string }

func (e *BorrowConflict) Error() string { return "borrow conflict: " + e.Op }

// Unwrap lets errors.Is(err, ErrBorrowConflict) see through the Op detail.
func (e *BorrowConflict) Unwrap() error { return ErrBorrowConflict }

// BorrowShared takes a new shared (read) borrow, failing if the handle
// is currently exclusively borrowed.
func (s *Shared) BorrowShared() (*Aggregate, func(), error) {
	if s.state == Exclusive {
		return nil, nil, &BorrowConflict{Op: "shared borrow while exclusively borrowed"}
	}
	s.state = SharedBorrowed
	s.shareCnt++
	return s.value, func() {
		s.shareCnt--
		if s.shareCnt == 0 {
			s.state = Unshared
		}
	}, nil
}

// BorrowExclusive takes the single mutable borrow, failing if any borrow
// (shared or exclusive) is outstanding.
func (s *Shared) BorrowExclusive() (*Aggregate, func(), error) {
	if s.state != Unshared {
		return nil, nil, &BorrowConflict{Op: "exclusive borrow while already borrowed"}
	}
	s.state = Exclusive
	return s.value, func() { s.state = Unshared }, nil
}

// Peek reads the aggregate without borrow-tracking, for read paths
// (closure calls and awaiting a coroutine) that don't hold the reference
// across a potential mutation.
func (s *Shared) Peek() *Aggregate { return s.value }
