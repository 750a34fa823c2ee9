package indexing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/indexing"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/meta"
	"github.com/jcorbin/runevm/parse"
	"github.com/jcorbin/runevm/source"
)

func TestIndexFunctionsAndModules(t *testing.T) {
	srcs := source.Sources{}
	id := srcs.Insert("test.rn", []byte(`
		pub fn main() { helper() }
		fn helper() { 1 }
		mod inner {
			pub fn f() { 2 }
		}
	`))

	p := parse.New(srcs.Get(id).Data())
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	ix := indexing.New(id)
	idx := ix.File(file, item.ROOT)
	require.Empty(t, ix.Errors())

	var names []string
	for _, it := range idx.Items {
		names = append(names, it.Path.String())
	}
	assert.Contains(t, names, "main")
	assert.Contains(t, names, "helper")
	assert.Contains(t, names, "inner")
	assert.Contains(t, names, "inner::f")
}

func TestIndexStructAndEnum(t *testing.T) {
	srcs := source.Sources{}
	id := srcs.Insert("test.rn", []byte(`
		struct Point { x, y }
		enum Shape { Circle(r), Square(side) }
	`))
	p := parse.New(srcs.Get(id).Data())
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	ix := indexing.New(id)
	idx := ix.File(file, item.ROOT)
	require.Empty(t, ix.Errors())

	var sawVariant bool
	for _, it := range idx.Items {
		if it.Kind == meta.KindVariant && it.Path.String() == "Shape::Circle" {
			sawVariant = true
		}
	}
	assert.True(t, sawVariant)
}

func TestIndexDuplicateConflict(t *testing.T) {
	srcs := source.Sources{}
	id := srcs.Insert("test.rn", []byte(`
		fn f() { 1 }
		fn f() { 2 }
	`))
	p := parse.New(srcs.Get(id).Data())
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	ix := indexing.New(id)
	ix.File(file, item.ROOT)
	assert.NotEmpty(t, ix.Errors())
}

func TestIndexUseTreeRecorded(t *testing.T) {
	srcs := source.Sources{}
	id := srcs.Insert("test.rn", []byte(`use a::b;`))
	p := parse.New(srcs.Get(id).Data())
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	ix := indexing.New(id)
	idx := ix.File(file, item.ROOT)
	require.Len(t, idx.Uses, 1)
	assert.Equal(t, []string{"a", "b"}, idx.Uses[0].Tree.Path)
}
