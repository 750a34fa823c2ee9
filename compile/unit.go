package compile

import (
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/source"
)

// StringPool interns static strings referenced by OpPushString, the same
// string<->id symbolication core.go's `symbols` type performs for FORTH
// word names, generalized here to arbitrary runtime string constants.
type StringPool struct {
	strings []string
	ids     map[string]int
}

// Intern returns s's id, allocating a new one if s hasn't been seen.
func (p *StringPool) Intern(s string) int {
	if p.ids == nil {
		p.ids = make(map[string]int)
	}
	if id, ok := p.ids[s]; ok {
		return id
	}
	id := len(p.strings)
	p.strings = append(p.strings, s)
	p.ids[s] = id
	return id
}

// String returns the interned string at id.
func (p *StringPool) String(id int) string {
	if id < 0 || id >= len(p.strings) {
		return ""
	}
	return p.strings[id]
}

// Len reports how many strings have been interned.
func (p *StringPool) Len() int { return len(p.strings) }

// FuncEntry locates one compiled function's instructions within a Unit's
// flat instruction stream.
type FuncEntry struct {
	Hash       item.Hash
	Name       string
	Start      int
	Len        int
	ParamLen   int
	CaptureLen int // leading ParamLen locals that are closure/async-block captures, not call arguments
	IsAsync    bool
}

// DebugLine maps an instruction offset back to a source location, for
// panic messages and the disassembler.
type DebugLine struct {
	Offset   int
	Location source.Location
}

// Unit is one sealed compiled artifact: a flat instruction stream, the
// function table that locates each compiled function/closure/async-block
// within it, and the constant/string pools it references. It is the
// runtime's unit of execution, mirroring how core.go's VM executes a flat
// word-addressed program.
type Unit struct {
	Instructions []Inst
	Functions    []FuncEntry
	ByHash       map[item.Hash]int // index into Functions
	Strings      StringPool
	Consts       []ConstValue
	Debug        []DebugLine

	// EnumTags maps "EnumName::VariantName" to its declaration index,
	// used by OpTestVariant/OpNewVariant and the match-arm compiler.
	EnumTags map[string]int

	// FieldSets holds the shape (type name, enum tag, field names) that
	// OpNewObject/OpNewStruct/OpNewVariant's operand indexes into.
	FieldSets []FieldSet
}

// FieldSet describes the shape of one aggregate construction site: the
// values the VM pops off the stack (one per entry in Fields, deepest
// first) are assembled into an Aggregate with these Keys/TypeName/Tag.
type FieldSet struct {
	TypeName string
	Tag      int // enum variant tag, or -1 for non-enum aggregates
	Fields   []string
}

// FieldSetIndex returns fs's index in Unit.FieldSets, appending it if not
// already present.
func (u *Unit) FieldSetIndex(fs FieldSet) int {
	for i, existing := range u.FieldSets {
		if existing.TypeName == fs.TypeName && existing.Tag == fs.Tag && stringsEqual(existing.Fields, fs.Fields) {
			return i
		}
	}
	u.FieldSets = append(u.FieldSets, fs)
	return len(u.FieldSets) - 1
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConstValue is a compile-time constant baked into a Unit's constant
// pool, produced by the ir package's evaluator.
type ConstValue struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Bool  bool
	Str   string
	Tuple []ConstValue
}

// ConstKind discriminates ConstValue.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstBool
	ConstString
	ConstUnit
	ConstTuple
)

// NewUnit returns an empty Unit ready for the Compiler to append to.
func NewUnit() *Unit {
	return &Unit{ByHash: make(map[item.Hash]int), EnumTags: make(map[string]int)}
}

// FuncByHash returns the FuncEntry for hash, or nil if not found.
func (u *Unit) FuncByHash(hash item.Hash) *FuncEntry {
	if i, ok := u.ByHash[hash]; ok {
		return &u.Functions[i]
	}
	return nil
}

// LocationAt returns the source location nearest offset, or the zero
// Location if no debug info covers it.
func (u *Unit) LocationAt(offset int) source.Location {
	var best source.Location
	for _, d := range u.Debug {
		if d.Offset <= offset {
			best = d.Location
		} else {
			break
		}
	}
	return best
}
