package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/indexing"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/parse"
	"github.com/jcorbin/runevm/query"
	"github.com/jcorbin/runevm/source"
)

func index(t *testing.T, src string) (*indexing.Index, source.ID) {
	t.Helper()
	srcs := source.Sources{}
	id := srcs.Insert("t.rn", []byte(src))
	p := parse.New(srcs.Get(id).Data())
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	ix := indexing.New(id)
	idx := ix.File(file, item.ROOT)
	require.Empty(t, ix.Errors())
	return idx, id
}

func TestResolveImportSucceeds(t *testing.T) {
	idx, _ := index(t, `
		mod a { pub fn f() { 1 } }
		use a::f;
	`)
	eng := query.New(idx, nil)
	eng.ResolveImports(idx.Uses)
	assert.Empty(t, eng.Errors())
	assert.Len(t, eng.Queue(), 1)
}

func TestResolveImportModNotFound(t *testing.T) {
	idx, _ := index(t, `use nonexistent::thing;`)
	eng := query.New(idx, nil)
	eng.ResolveImports(idx.Uses)
	require.Len(t, eng.Errors(), 1)
	assert.Equal(t, query.ErrModNotFound, eng.Errors()[0].Kind)
}

func TestVisibilityPrivateBlocksOutsideAccess(t *testing.T) {
	idx, _ := index(t, `
		mod a { fn secret() { 1 } }
		use a::secret;
	`)
	eng := query.New(idx, nil)
	eng.ResolveImports(idx.Uses)
	require.NotEmpty(t, eng.Errors())
}

func TestUnusedImportDetected(t *testing.T) {
	idx, _ := index(t, `
		mod a { pub fn f() { 1 } }
		use a::f;
	`)
	eng := query.New(idx, nil)
	eng.ResolveImports(idx.Uses)
	require.Empty(t, eng.Errors())
	unused := eng.UnusedImports()
	assert.Len(t, unused, 1)
}
