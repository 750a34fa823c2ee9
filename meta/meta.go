// Package meta holds the resolved semantic description of every compiled
// item: its Meta variant, its owning module, and the Visibility rule used
// to check imports against it.
package meta

import (
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/source"
)

// Visibility controls which modules may name an item through an import.
type Visibility int

const (
	// Public is visible from any module.
	Public Visibility = iota
	// Crate is visible anywhere within the same crate.
	Crate
	// Super is visible from the item's parent module and its descendants.
	Super
	// SelfOnly is visible only within the item's own module.
	SelfOnly
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "pub"
	case Crate:
		return "pub(crate)"
	case Super:
		return "pub(super)"
	default:
		return "private"
	}
}

// ModID identifies a module within the pool-backed item tree; it is just
// the ItemId of the module's own item path.
type ModID = item.ID

// ModMeta describes one module: its location, item path, visibility, and
// parent. Modules form a tree rooted at the crate (ModMeta.Parent ==
// item.ROOT's enclosing "no parent" sentinel is represented with ok=false
// by callers walking Parent).
type ModMeta struct {
	ID         ModID
	Location   source.Location
	Path       item.Path
	Visibility Visibility
	Parent     ModID
	HasParent  bool
}

// AssocKind distinguishes the different shapes an AssociatedFunction can
// take, per spec.md §3.
type AssocKind int

const (
	Protocol AssocKind = iota
	FieldFn
	IndexFn
	Instance
)

// Signature records a function's static shape for the compiler and any
// documentation consumer; it does not enforce static types (this is a
// dynamically-typed language per spec.md §1 Non-goals).
type Signature struct {
	Params   []string
	IsAsync  bool
	Generator bool
}

// Kind discriminates the Meta sum type.
type Kind int

const (
	KindType Kind = iota
	KindStruct
	KindEnum
	KindVariant
	KindFunction
	KindAssociatedFunction
	KindConst
	KindConstFn
	KindClosure
	KindAsyncBlock
	KindImport
	KindModule
)

// Meta is the resolved description of one item, a tagged union over the
// variants named in spec.md §3. Only the fields relevant to Kind are
// populated; callers switch on Kind before reading them.
type Meta struct {
	Kind Kind
	Item item.ID
	Docs []string // populated by the indexer; doc-gen tooling is out of scope, indexing is not

	// Struct / constructor
	Fields      []string
	Constructor item.Hash

	// Enum / Variant
	EnumHash item.Hash
	Index    int

	// Function / AssociatedFunction
	Signature     Signature
	IsTest        bool
	IsBench       bool
	AssocKind     AssocKind
	AssocName     string
	ContainerHash item.Hash

	// Const
	Value interface{}

	// ConstFn
	ConstFnID item.ID

	// Closure / AsyncBlock
	Captures []string
	DoMove   bool

	// Import
	Target item.Path
	Module ModID
}

// Key is the (item, parameter hash) pair that a Meta resolves at, per the
// invariant in spec.md §3: each Key maps to at most one Meta.
type Key struct {
	Item  item.ID
	Param item.Hash
}

// ConflictError reports a duplicate Meta insertion for the same Key.
type ConflictError struct {
	Key      Key
	Location source.Location
}

func (e *ConflictError) Error() string {
	return "meta conflict: duplicate insertion for the same item"
}

// Table stores at most one Meta per Key, returning a *ConflictError on a
// duplicate insert as required by spec.md §3's invariant.
type Table struct {
	entries map[Key]*Meta
}

// NewTable returns an empty Meta table.
func NewTable() *Table { return &Table{entries: make(map[Key]*Meta)} }

// Insert records m under key, or returns a ConflictError if key is
// already populated.
func (t *Table) Insert(key Key, m *Meta, loc source.Location) error {
	if _, ok := t.entries[key]; ok {
		return &ConflictError{Key: key, Location: loc}
	}
	t.entries[key] = m
	return nil
}

// Get returns the Meta for key, or nil if none has been resolved yet.
func (t *Table) Get(key Key) *Meta { return t.entries[key] }
