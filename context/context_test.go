package context_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/context"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/runtime"
)

func TestRegisterGlobalFnThenInstall(t *testing.T) {
	c := context.New()
	fn := runtime.Function{Arity: 0, Handler: func(vm *runtime.VM, argc int) (runtime.Value, error) {
		return runtime.Int(42), nil
	}}
	require.NoError(t, c.RegisterGlobalFn("answer", fn))

	vm := runtime.New(nil)
	require.NoError(t, c.Install(vm))
}

func TestRegisterConflictReturnsConflictingFunction(t *testing.T) {
	c := context.New()
	fn := runtime.Function{}
	require.NoError(t, c.Register(item.Hash(7), "a", fn))

	err := c.Register(item.Hash(7), "b", fn)
	require.Error(t, err)
	var conflict *context.ConflictingFunction
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, item.Hash(7), conflict.Hash)
	assert.Equal(t, "b", conflict.Name)
}

func TestRegisterInstanceFnHashMatchesTypeAndMethod(t *testing.T) {
	c := context.New()
	fn := runtime.Function{}
	require.NoError(t, c.RegisterInstanceFn("Point", "magnitude", fn))

	typeHash := item.TypeHash(item.Path{item.Named("Point")}, item.EMPTY)
	want := item.InstanceFn(typeHash, "magnitude")
	_, ok := c.Functions[want]
	assert.True(t, ok, "expected function registered under the Point::magnitude instance hash")
}

func TestRequireAPIVersionAcceptsOlderOrEqualMinor(t *testing.T) {
	assert.NoError(t, context.RequireAPIVersion("v1.0.0"))
}

func TestRequireAPIVersionRejectsNewerMinor(t *testing.T) {
	err := context.RequireAPIVersion("v1.9.0")
	assert.Error(t, err)
}

func TestRequireAPIVersionRejectsDifferentMajor(t *testing.T) {
	err := context.RequireAPIVersion("v2.0.0")
	assert.Error(t, err)
}

func TestRequireAPIVersionRejectsInvalidVersion(t *testing.T) {
	err := context.RequireAPIVersion("not-a-version")
	assert.Error(t, err)
}
