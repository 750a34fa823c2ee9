// Package source owns script source text by id and converts byte spans
// into line/column positions for diagnostics.
package source

import (
	"fmt"
	"sort"
)

// ID identifies one source buffer within a Sources collection.
type ID uint32

// Span is a half-open byte range [Start, End) into some Source. It does
// not carry a Source ID; pair it with one in a Location when the source
// needs to travel along with the range.
type Span struct {
	Start uint32
	End   uint32
}

// NewSpan builds a Span, panicking if end < start (a programming bug,
// never a runtime condition: callers own span arithmetic).
func NewSpan(start, end uint32) Span {
	if end < start {
		panic(fmt.Sprintf("source: invalid span [%d, %d)", start, end))
	}
	return Span{Start: start, End: end}
}

// Len returns the number of bytes the span covers.
func (s Span) Len() uint32 { return s.End - s.Start }

// Join returns the smallest span covering both s and other.
func (s Span) Join(other Span) Span {
	start, end := s.Start, s.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Span{Start: start, End: end}
}

// Contains reports whether s fully contains other.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Location pairs a Span with the ID of the Source it indexes into.
type Location struct {
	SourceID ID
	Span     Span
}

// Position is a 1-indexed line/column pair, as reported to a human.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Loader reads source bytes for a module path, letting host embedders
// supply an in-memory or virtual filesystem. This package declares only
// the interface: it has no implementation of its own, and nothing in this
// module calls it.
type Loader interface {
	Load(path string) ([]byte, error)
}

// Source is one immutable named byte buffer.
type Source struct {
	id       ID
	name     string
	data     []byte
	lineEnds []uint32 // byte offset of each '\n', ascending
}

// NewSource builds a Source over data, precomputing its line table.
func NewSource(id ID, name string, data []byte) *Source {
	s := &Source{id: id, name: name, data: data}
	for i, b := range data {
		if b == '\n' {
			s.lineEnds = append(s.lineEnds, uint32(i))
		}
	}
	return s
}

// ID returns the source's assigned id.
func (s *Source) ID() ID { return s.id }

// Name returns the source's display name (typically a file path).
func (s *Source) Name() string { return s.name }

// Data returns the full byte buffer.
func (s *Source) Data() []byte { return s.data }

// Slice returns the bytes within span, clamped to the buffer's bounds.
func (s *Source) Slice(span Span) []byte {
	end := span.End
	if int(end) > len(s.data) {
		end = uint32(len(s.data))
	}
	start := span.Start
	if start > end {
		start = end
	}
	return s.data[start:end]
}

// Position converts a byte offset into a 1-indexed line/column pair.
func (s *Source) Position(offset uint32) Position {
	line := sort.Search(len(s.lineEnds), func(i int) bool { return s.lineEnds[i] >= offset })
	lineStart := uint32(0)
	if line > 0 {
		lineStart = s.lineEnds[line-1] + 1
	}
	return Position{Line: line + 1, Column: int(offset-lineStart) + 1}
}

// Sources owns every Source loaded for one compilation.
type Sources struct {
	list []*Source
}

// Insert adds a new source with the given name and data, returning its
// assigned id.
func (srcs *Sources) Insert(name string, data []byte) ID {
	id := ID(len(srcs.list))
	srcs.list = append(srcs.list, NewSource(id, name, data))
	return id
}

// Get returns the source for id, or nil if id is out of range.
func (srcs *Sources) Get(id ID) *Source {
	if int(id) < 0 || int(id) >= len(srcs.list) {
		return nil
	}
	return srcs.list[id]
}

// Position resolves a Location to a human-facing position, returning the
// zero Position if the location's source is unknown.
func (srcs *Sources) Position(loc Location) Position {
	src := srcs.Get(loc.SourceID)
	if src == nil {
		return Position{}
	}
	return src.Position(loc.Span.Start)
}

// Name returns the display name of the source with the given id, or "<unknown>".
func (srcs *Sources) Name(id ID) string {
	if src := srcs.Get(id); src != nil {
		return src.Name()
	}
	return "<unknown>"
}
