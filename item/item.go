// Package item implements canonical item paths, the module tree they form,
// and the interning pool that hands out stable ItemId handles for them.
package item

import "strings"

// Component is one segment of an item Path: a plain name, the crate root
// marker, or a synthetic id minted for an anonymous item (a closure or
// block expression has no source name of its own).
type Component struct {
	Name     string
	Synth    uint32 // nonzero for synthetic components; Name is empty then
	IsCrate  bool   // true only for the root marker component
}

// Root is the crate root marker component.
var Root = Component{IsCrate: true}

// Named returns a plain named component.
func Named(name string) Component { return Component{Name: name} }

// Synthetic returns a synthetic component identified by id, used for
// closures, async blocks, and anonymous blocks per spec.md §4.3.
func Synthetic(id uint32) Component { return Component{Synth: id} }

func (c Component) String() string {
	switch {
	case c.IsCrate:
		return "crate"
	case c.Synth != 0:
		return "$" + itoa(c.Synth)
	default:
		return c.Name
	}
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Path is an ordered sequence of components identifying one item.
type Path []Component

func (p Path) String() string {
	var sb strings.Builder
	for i, c := range p {
		if i > 0 {
			sb.WriteString("::")
		}
		sb.WriteString(c.String())
	}
	return sb.String()
}

// Join returns a new path with extra appended.
func (p Path) Join(extra ...Component) Path {
	out := make(Path, 0, len(p)+len(extra))
	out = append(out, p...)
	out = append(out, extra...)
	return out
}

// Parent returns the path with its last component removed, and whether
// the receiver had any components to remove.
func (p Path) Parent() (Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1], true
}

func (p Path) key() string {
	// distinct separator for synthetic ids keeps "a" :: 1 from colliding
	// with the literal component named "1"
	var sb strings.Builder
	for _, c := range p {
		switch {
		case c.IsCrate:
			sb.WriteString("\x00C")
		case c.Synth != 0:
			sb.WriteString("\x00S")
			sb.WriteString(itoa(c.Synth))
		default:
			sb.WriteString("\x00N")
			sb.WriteString(c.Name)
		}
	}
	return sb.String()
}

// ID is an interned handle to a Path. ID.ROOT (the zero value) denotes the
// empty path, i.e. the crate root. Two items are equal iff their IDs are
// equal: the Pool guarantees one ID per distinct Path.
type ID uint32

// ROOT denotes the empty item path (the crate root).
const ROOT ID = 0

// Pool interns Paths as a dense array plus a hash map from the path's key
// to its index, so items form an implicit DAG through parent/extension
// operations with no cyclic ownership.
type Pool struct {
	paths []Path
	index map[string]ID
}

// NewPool returns a Pool pre-seeded with the crate root at ROOT.
func NewPool() *Pool {
	p := &Pool{index: make(map[string]ID)}
	root := p.intern(nil)
	if root != ROOT {
		panic("item: root item did not intern to ROOT")
	}
	return p
}

func (p *Pool) intern(path Path) ID {
	k := path.key()
	if id, ok := p.index[k]; ok {
		return id
	}
	id := ID(len(p.paths))
	cp := make(Path, len(path))
	copy(cp, path)
	p.paths = append(p.paths, cp)
	p.index[k] = id
	return id
}

// Alloc interns path, returning its stable ID (minting a new one if this
// is the first time path has been seen).
func (p *Pool) Alloc(path Path) ID { return p.intern(path) }

// Item returns the Path for id. Panics on an out-of-range id, since that
// indicates a programming bug (an ID never returned by this Pool).
func (p *Pool) Item(id ID) Path {
	if int(id) >= len(p.paths) {
		panic("item: id out of range")
	}
	return p.paths[id]
}

// Extend interns the path formed by appending extra components to the
// path already known as base.
func (p *Pool) Extend(base ID, extra ...Component) ID {
	return p.intern(p.Item(base).Join(extra...))
}

// ParentOf returns the ID of base's parent item and true, or (ROOT, false)
// if base is already the root.
func (p *Pool) ParentOf(base ID) (ID, bool) {
	path := p.Item(base)
	parent, ok := path.Parent()
	if !ok {
		return ROOT, false
	}
	return p.intern(parent), true
}

// Len returns the number of distinct items interned so far.
func (p *Pool) Len() int { return len(p.paths) }
