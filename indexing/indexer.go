// Package indexing walks a parsed ast.File and builds the item pool, the
// Names trie, and the first-pass Meta/ModMeta tables that the query engine
// resolves against. It does not resolve imports or check visibility across
// modules; it only records what's declared in this file and where.
package indexing

import (
	"fmt"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/meta"
	"github.com/jcorbin/runevm/source"
)

// Error reports a problem found while indexing a single file (duplicate
// item names within one module, conflicting Meta insertions, etc).
type Error struct {
	Location source.Location
	Mess     string
}

func (e *Error) Error() string { return e.Mess }

// Import records one `use` tree still unresolved at index time; the query
// package consumes these later to build the import graph.
type Import struct {
	Module   meta.ModID
	Vis      meta.Visibility
	Tree     ast.UseTree
	Location source.Location
}

// Index is the result of indexing one source file: the item pool and
// Names trie it populated (shared across files of the same crate when the
// same Indexer is reused), the resolved per-item Meta entries, the module
// tree, and the raw import list for the query engine.
type Index struct {
	Pool  *item.Pool
	Names *item.Names
	Metas *meta.Table
	Mods  map[meta.ModID]*meta.ModMeta
	Items []ItemInfo
	Uses  []Import
	Vis   map[item.ID]meta.Visibility
}

// ItemInfo is a denormalized summary of one indexed item, convenient for
// callers that don't want to dereference into the Meta table themselves.
type ItemInfo struct {
	ID       item.ID
	Path     item.Path
	Kind     meta.Kind
	Module   meta.ModID
	Vis      meta.Visibility
	Location source.Location
}

// Indexer accumulates Index state across one or more files belonging to
// the same crate. The zero value is not usable; construct with New.
type Indexer struct {
	sourceID source.ID
	pool     *item.Pool
	names    *item.Names
	metas    *meta.Table
	mods     map[meta.ModID]*meta.ModMeta
	items    []ItemInfo
	uses     []Import
	vis      map[item.ID]meta.Visibility
	errs     []*Error
}

// New returns an Indexer that attributes locations to sourceID.
func New(sourceID source.ID) *Indexer {
	pool := item.NewPool()
	ix := &Indexer{
		sourceID: sourceID,
		pool:     pool,
		names:    item.NewNames(),
		metas:    meta.NewTable(),
		mods:     make(map[meta.ModID]*meta.ModMeta),
		vis:      make(map[item.ID]meta.Visibility),
	}
	ix.mods[item.ROOT] = &meta.ModMeta{ID: item.ROOT, Path: nil, Visibility: meta.Public}
	return ix
}

// Errors returns every error recorded so far.
func (ix *Indexer) Errors() []*Error { return ix.errs }

func (ix *Indexer) errorf(sp source.Span, format string, args ...interface{}) {
	ix.errs = append(ix.errs, &Error{
		Location: source.Location{SourceID: ix.sourceID, Span: sp},
		Mess:     fmt.Sprintf(format, args...),
	})
}

// File indexes every top-level item of f into the crate rooted at parent
// (item.ROOT for the crate root file itself).
func (ix *Indexer) File(f *ast.File, parent item.ID) *Index {
	ix.items = nil
	ix.indexItems(f.Items, parent, meta.Public)
	return &Index{
		Pool:  ix.pool,
		Names: ix.names,
		Metas: ix.metas,
		Mods:  ix.mods,
		Items: ix.items,
		Uses:  ix.uses,
		Vis:   ix.vis,
	}
}

func (ix *Indexer) loc(sp source.Span) source.Location {
	return source.Location{SourceID: ix.sourceID, Span: sp}
}

func convVis(v ast.Visibility) meta.Visibility {
	switch v {
	case ast.VisPublic:
		return meta.Public
	case ast.VisCrate:
		return meta.Crate
	case ast.VisSuper:
		return meta.Super
	default:
		return meta.SelfOnly
	}
}

func (ix *Indexer) indexItems(items []ast.Item, mod item.ID, inheritedVis meta.Visibility) {
	for _, it := range items {
		ix.indexItem(it, mod)
	}
}

func (ix *Indexer) record(id item.ID, path item.Path, kind meta.Kind, mod item.ID, vis meta.Visibility, sp source.Span, m *meta.Meta) {
	ix.names.Insert(path)
	ix.items = append(ix.items, ItemInfo{ID: id, Path: path, Kind: kind, Module: mod, Vis: vis, Location: ix.loc(sp)})
	ix.vis[id] = vis
	m.Kind = kind
	m.Item = id
	key := meta.Key{Item: id, Param: item.EMPTY}
	if err := ix.metas.Insert(key, m, ix.loc(sp)); err != nil {
		ix.errorf(sp, "meta conflict: %s already defined in this scope", path)
	}
}

func (ix *Indexer) indexItem(it ast.Item, mod item.ID) {
	base := ix.pool.Item(mod)
	switch n := it.(type) {
	case *ast.FnDecl:
		vis := convVis(n.Vis)
		id := ix.pool.Extend(mod, item.Named(n.Name))
		m := &meta.Meta{
			Docs:      n.Docs,
			Signature: meta.Signature{Params: n.Params, IsAsync: n.IsAsync},
			IsTest:    n.IsTest,
			IsBench:   n.IsBench,
		}
		ix.record(id, append(append(item.Path{}, base...), item.Named(n.Name)), meta.KindFunction, mod, vis, n.Sp, m)

	case *ast.ConstFnDecl:
		vis := convVis(n.Vis)
		id := ix.pool.Extend(mod, item.Named(n.Name))
		m := &meta.Meta{Docs: n.Docs, Signature: meta.Signature{Params: n.Params}, ConstFnID: id}
		ix.record(id, append(append(item.Path{}, base...), item.Named(n.Name)), meta.KindConstFn, mod, vis, n.Sp, m)

	case *ast.ConstDecl:
		vis := convVis(n.Vis)
		id := ix.pool.Extend(mod, item.Named(n.Name))
		m := &meta.Meta{Docs: n.Docs}
		ix.record(id, append(append(item.Path{}, base...), item.Named(n.Name)), meta.KindConst, mod, vis, n.Sp, m)

	case *ast.StructDecl:
		vis := convVis(n.Vis)
		id := ix.pool.Extend(mod, item.Named(n.Name))
		fields := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = f.Name
		}
		m := &meta.Meta{Docs: n.Docs, Fields: fields, Constructor: item.GlobalFn(append(append(item.Path{}, base...), item.Named(n.Name)), item.EMPTY)}
		ix.record(id, append(append(item.Path{}, base...), item.Named(n.Name)), meta.KindStruct, mod, vis, n.Sp, m)

	case *ast.EnumDecl:
		vis := convVis(n.Vis)
		enumID := ix.pool.Extend(mod, item.Named(n.Name))
		enumPath := append(append(item.Path{}, base...), item.Named(n.Name))
		enumHash := item.TypeHash(enumPath, item.EMPTY)
		ix.record(enumID, enumPath, meta.KindEnum, mod, vis, n.Sp, &meta.Meta{Docs: n.Docs})
		for idx, v := range n.Variants {
			vID := ix.pool.Extend(enumID, item.Named(v.Name))
			fields := make([]string, len(v.Fields))
			for i, f := range v.Fields {
				fields[i] = f.Name
			}
			vPath := append(append(item.Path{}, enumPath...), item.Named(v.Name))
			vm := &meta.Meta{EnumHash: enumHash, Index: idx, Fields: fields, Constructor: item.GlobalFn(vPath, item.EMPTY)}
			ix.record(vID, vPath, meta.KindVariant, mod, vis, v.Sp, vm)
		}

	case *ast.ModDecl:
		vis := convVis(n.Vis)
		id := ix.pool.Extend(mod, item.Named(n.Name))
		mm := &meta.ModMeta{ID: id, Location: ix.loc(n.Sp), Path: append(append(item.Path{}, base...), item.Named(n.Name)), Visibility: vis, Parent: mod, HasParent: true}
		ix.mods[id] = mm
		ix.record(id, mm.Path, meta.KindModule, mod, vis, n.Sp, &meta.Meta{Docs: n.Docs})
		ix.indexItems(n.Items, id, meta.Public)

	case *ast.ImplDecl:
		typeHash := item.TypeHash(item.Path{item.Named(n.TypeName)}, item.EMPTY)
		for _, inner := range n.Items {
			fn, ok := inner.(*ast.FnDecl)
			if !ok {
				continue
			}
			vis := convVis(fn.Vis)
			id := ix.pool.Extend(mod, item.Named(n.TypeName+"::"+fn.Name))
			m := &meta.Meta{
				Docs:          fn.Docs,
				Signature:     meta.Signature{Params: fn.Params, IsAsync: fn.IsAsync},
				AssocKind:     meta.Instance,
				AssocName:     fn.Name,
				ContainerHash: typeHash,
			}
			ix.record(id, append(append(item.Path{}, base...), item.Named(n.TypeName), item.Named(fn.Name)), meta.KindAssociatedFunction, mod, vis, fn.Sp, m)
		}

	case *ast.UseDecl:
		ix.uses = append(ix.uses, Import{Module: mod, Vis: convVis(n.Vis), Tree: n.Tree, Location: ix.loc(n.Sp)})

	default:
		ix.errorf(it.Span(), "unsupported top-level item %T", it)
	}
}

// Pool exposes the item pool being built, for callers that index several
// files before handing the result to the query engine.
func (ix *Indexer) Pool() *item.Pool { return ix.pool }
