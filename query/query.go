// Package query implements the demand-driven resolution engine: given the
// Meta/ModMeta tables an Indexer produced plus the raw `use` trees it
// recorded, it resolves imports to concrete items, checks visibility,
// drives the build queue that feeds the compiler, and detects unused
// imports. It mirrors the query engine described in spec.md §3/§7 rather
// than the teacher's FORTH dictionary lookup, though the demand-driven
// "resolve on first use" shape is the same idea as `core.go`'s dictionary
// walk.
package query

import (
	"fmt"

	"github.com/jcorbin/runevm/indexing"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/meta"
	"github.com/jcorbin/runevm/source"
)

// ImportRecursionLimit bounds the depth of wildcard/alias import chasing,
// per spec.md §3. A chain longer than this is treated as a cycle.
const ImportRecursionLimit = 128

// Prelude is the always-importable name set consulted only after local
// siblings and explicit imports fail to resolve a bare name, grounded on
// original_source/compile/prelude.rs. hir.go's `for`/`?` desugaring emits
// fully-qualified Option::Some/None and Result::Ok/Err paths directly, so
// this map exists for the same names when a script refers to them bare.
var Prelude = map[string]item.Path{
	"Some": {item.Named("Option"), item.Named("Some")},
	"None": {item.Named("Option"), item.Named("None")},
	"Ok":   {item.Named("Result"), item.Named("Ok")},
	"Err":  {item.Named("Result"), item.Named("Err")},
}

// ErrorKind classifies a resolution failure.
type ErrorKind int

const (
	ErrModNotFound ErrorKind = iota
	ErrAmbiguousItem
	ErrImportCycle
	ErrVisibility
	ErrUnresolved
)

func (k ErrorKind) String() string {
	switch k {
	case ErrModNotFound:
		return "ModNotFound"
	case ErrAmbiguousItem:
		return "AmbiguousItem"
	case ErrImportCycle:
		return "ImportCycle"
	case ErrVisibility:
		return "VisibilityError"
	default:
		return "Unresolved"
	}
}

// Error is a resolution failure with its kind and the location that
// triggered it.
type Error struct {
	Kind     ErrorKind
	Path     string
	Location source.Location
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

// EntryKind discriminates build-queue entries, per spec.md §3's query
// engine description.
type EntryKind int

const (
	EntryFunction EntryKind = iota
	EntryInstanceFunction
	EntryClosure
	EntryAsyncBlock
	EntryImport
	EntryReExport
	EntryUnused
	EntryQuery
)

// Entry is one unit of work the build queue hands the compiler.
type Entry struct {
	Kind EntryKind
	Item item.ID
}

// Engine resolves imports and drives the build queue over one crate's
// worth of indexed items.
type Engine struct {
	pool    *item.Pool
	metas   *meta.Table
	mods    map[meta.ModID]*meta.ModMeta
	names   *item.Names
	vis     map[item.ID]meta.Visibility
	prelude map[string]item.Path

	resolved map[string]item.ID // path key -> resolved item, memoized
	inFlight map[string]bool    // cycle detection while resolving
	used     map[string]bool    // import path key -> was ever referenced

	queue []Entry
	errs  []*Error
}

// New builds a resolution Engine over an already-indexed crate. A nil
// prelude defaults to Prelude; pass a non-nil empty map to disable
// prelude fallback entirely.
func New(idx *indexing.Index, prelude map[string]item.Path) *Engine {
	if prelude == nil {
		prelude = Prelude
	}
	return &Engine{
		pool:     idx.Pool,
		metas:    idx.Metas,
		mods:     idx.Mods,
		names:    idx.Names,
		vis:      idx.Vis,
		prelude:  prelude,
		resolved: make(map[string]item.ID),
		inFlight: make(map[string]bool),
		used:     make(map[string]bool),
	}
}

// Errors returns every resolution error recorded so far.
func (e *Engine) Errors() []*Error { return e.errs }

func (e *Engine) errorf(kind ErrorKind, path string, loc source.Location) {
	e.errs = append(e.errs, &Error{Kind: kind, Path: path, Location: loc})
}

// Queue returns the accumulated build-queue entries.
func (e *Engine) Queue() []Entry { return e.queue }

func pathKey(mod item.ID, segs []string) string {
	s := fmt.Sprintf("%d:", mod)
	for _, seg := range segs {
		s += seg + "::"
	}
	return s
}

// ResolveImports processes every Import recorded by the indexer, adding
// Import/ReExport entries to the build queue and reporting
// ModNotFound/AmbiguousItem/ImportCycle errors.
func (e *Engine) ResolveImports(uses []indexing.Import) {
	for _, u := range uses {
		e.resolveImport(u, 0)
	}
}

func (e *Engine) resolveImport(u indexing.Import, depth int) {
	if depth > ImportRecursionLimit {
		e.errorf(ErrImportCycle, joinPath(u.Tree.Path), u.Location)
		return
	}
	key := pathKey(u.Module, u.Tree.Path)
	if e.inFlight[key] {
		e.errorf(ErrImportCycle, joinPath(u.Tree.Path), u.Location)
		return
	}
	e.inFlight[key] = true
	defer delete(e.inFlight, key)

	id, ok := e.lookupFromRoot(u.Tree.Path)
	if !ok {
		e.errorf(ErrModNotFound, joinPath(u.Tree.Path), u.Location)
		return
	}
	if !e.checkVisibility(u.Module, id) {
		e.errorf(ErrVisibility, joinPath(u.Tree.Path), u.Location)
		return
	}
	e.resolved[key] = id
	kind := EntryImport
	if u.Vis == meta.Public {
		kind = EntryReExport
	}
	e.queue = append(e.queue, Entry{Kind: kind, Item: id})
}

// lookupFromRoot walks segs from the crate root through the item pool,
// using e.names to validate each prefix exists before descending.
func (e *Engine) lookupFromRoot(segs []string) (item.ID, bool) {
	cur := item.ROOT
	path := item.Path{}
	for _, seg := range segs {
		path = append(path, item.Named(seg))
		id, ok := e.pool.Extend(cur, item.Named(seg)), e.names.Contains(path)
		if !ok {
			return 0, false
		}
		cur = id
	}
	return cur, true
}

// Resolve resolves a bare (unqualified or already-dotted) name referenced
// from within mod, consulting local siblings first, then imports already
// resolved in mod, then the Prelude, per spec.md §3's precedence rule
// (explicit imports outrank the prelude; non-wildcard imports outrank
// wildcard ones — callers sort candidate Imports accordingly before
// calling ResolveImports).
func (e *Engine) Resolve(mod item.ID, name string, loc source.Location) (item.ID, error) {
	if id, ok := e.pool.ParentOf(mod); ok || mod == item.ROOT {
		_ = id
		sib := e.pool.Extend(mod, item.Named(name))
		if e.names.Contains(append(e.pool.Item(mod), item.Named(name))) {
			return sib, nil
		}
	}
	prefix := pathKey(mod, nil)
	for key, id := range e.resolved {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		p := e.pool.Item(id)
		if len(p) > 0 && p[len(p)-1].Name == name {
			e.used[key] = true
			return id, nil
		}
	}
	if p, ok := e.prelude[name]; ok {
		id, ok := e.lookupFromRoot(componentNames(p))
		if ok {
			return id, nil
		}
	}
	return 0, &Error{Kind: ErrUnresolved, Path: name, Location: loc}
}

func componentNames(p item.Path) []string {
	names := make([]string, len(p))
	for i, c := range p {
		names[i] = c.Name
	}
	return names
}

func joinPath(segs []string) string {
	s := ""
	for i, seg := range segs {
		if i > 0 {
			s += "::"
		}
		s += seg
	}
	return s
}

// checkVisibility implements spec.md §4.5 item 3's rule: an item is
// visible from viewer only if both the item's own Visibility permits it
// AND every intermediate module on the path from the item's owner up to
// the common ancestor of viewer and owner is itself visible from that
// common ancestor. A private module re-exporting a public item must
// still block outside access at the private module's boundary.
func (e *Engine) checkVisibility(viewer item.ID, target item.ID) bool {
	owner, ok := e.pool.ParentOf(target)
	if !ok {
		owner = item.ROOT
	}
	common := commonAncestor(e.pool, viewer, owner)
	for m := owner; m != common; {
		parent, ok := e.pool.ParentOf(m)
		if !ok {
			parent = item.ROOT
		}
		if !e.visibleFrom(common, m, parent) {
			return false
		}
		if !ok || parent == m {
			break
		}
		m = parent
	}
	return e.visibleFrom(viewer, target, owner)
}

// visibleFrom reports whether target (owned by owner) is visible from
// viewer, per target's own Visibility.
func (e *Engine) visibleFrom(viewer item.ID, target item.ID, owner item.ID) bool {
	vis, ok := e.vis[target]
	if !ok {
		vis = meta.Public
	}
	switch vis {
	case meta.Public, meta.Crate:
		return true
	case meta.Super:
		parent, ok := e.pool.ParentOf(owner)
		if !ok {
			return viewer == owner
		}
		return isAncestorOrSelf(e.pool, parent, viewer) || viewer == owner
	default: // SelfOnly
		return isAncestorOrSelf(e.pool, owner, viewer)
	}
}

// commonAncestor returns the nearest module that is an ancestor-or-self
// of both a and b, defaulting to item.ROOT (the ultimate ancestor of
// every item) if no other common point is found.
func commonAncestor(pool *item.Pool, a, b item.ID) item.ID {
	ancestors := map[item.ID]bool{a: true}
	for cur := a; ; {
		p, ok := pool.ParentOf(cur)
		if !ok {
			break
		}
		ancestors[p] = true
		cur = p
	}
	for cur := b; ; {
		if ancestors[cur] {
			return cur
		}
		p, ok := pool.ParentOf(cur)
		if !ok {
			return item.ROOT
		}
		cur = p
	}
}

func isAncestorOrSelf(pool *item.Pool, ancestor, mod item.ID) bool {
	cur := mod
	for {
		if cur == ancestor {
			return true
		}
		p, ok := pool.ParentOf(cur)
		if !ok {
			return false
		}
		cur = p
	}
}

// UnusedImports returns the item IDs of resolved imports that Resolve
// never matched against, for the unused-import diagnostic pass.
func (e *Engine) UnusedImports() []item.ID {
	var out []item.ID
	for key, id := range e.resolved {
		if !e.used[key] {
			out = append(out, id)
		}
	}
	return out
}

// Enqueue adds a function/closure/async-block build entry, used by the
// compiler as it discovers call targets that still need lowering.
func (e *Engine) Enqueue(kind EntryKind, id item.ID) {
	e.queue = append(e.queue, Entry{Kind: kind, Item: id})
}
