package item_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/item"
)

func TestPoolInternIdentity(t *testing.T) {
	pool := item.NewPool()
	a := pool.Alloc(item.Path{item.Named("a"), item.Named("b")})
	b := pool.Alloc(item.Path{item.Named("a"), item.Named("b")})
	assert.Equal(t, a, b, "two items are equal iff their ItemIds are equal")

	c := pool.Alloc(item.Path{item.Named("a"), item.Named("c")})
	assert.NotEqual(t, a, c)
}

func TestPoolRootIsEmpty(t *testing.T) {
	pool := item.NewPool()
	assert.Equal(t, item.ROOT, pool.Alloc(nil))
	assert.Empty(t, pool.Item(item.ROOT))
}

func TestExtendAndParent(t *testing.T) {
	pool := item.NewPool()
	a := pool.Alloc(item.Path{item.Named("mod_a")})
	f := pool.Extend(a, item.Named("f"))
	require.NotEqual(t, a, f)

	parent, ok := pool.ParentOf(f)
	require.True(t, ok)
	assert.Equal(t, a, parent)

	_, ok = pool.ParentOf(item.ROOT)
	assert.False(t, ok)
}

func TestSyntheticComponentsDontCollideWithNames(t *testing.T) {
	pool := item.NewPool()
	named := pool.Alloc(item.Path{item.Named("1")})
	synth := pool.Alloc(item.Path{item.Synthetic(1)})
	assert.NotEqual(t, named, synth)
}

func TestHashDeterminism(t *testing.T) {
	p := item.Path{item.Named("a"), item.Named("f")}
	h1 := item.GlobalFn(p, item.EMPTY)
	h2 := item.GlobalFn(p, item.EMPTY)
	assert.Equal(t, h1, h2, "const-eval determinism requires stable hashing")

	other := item.GlobalFn(item.Path{item.Named("a"), item.Named("g")}, item.EMPTY)
	assert.NotEqual(t, h1, other)
}

func TestInstanceFnHashSeparatesNames(t *testing.T) {
	typeHash := item.TypeHash(item.Path{item.Named("Vec")}, item.EMPTY)
	a := item.InstanceFn(typeHash, "push")
	b := item.InstanceFn(typeHash, "pop")
	assert.NotEqual(t, a, b)
}

func TestNamesTrie(t *testing.T) {
	names := item.NewNames()
	names.Insert(item.Path{item.Named("a"), item.Named("b")})

	assert.True(t, names.ContainsPrefix(item.Path{item.Named("a")}))
	assert.False(t, names.Contains(item.Path{item.Named("a")}))
	assert.True(t, names.Contains(item.Path{item.Named("a"), item.Named("b")}))

	children := names.IterComponents(item.Path{item.Named("a")})
	assert.Equal(t, []string{"b"}, children)
}
