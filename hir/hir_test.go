package hir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/hir"
	"github.com/jcorbin/runevm/parse"
)

func lowerBody(t *testing.T, src string) *hir.Func {
	t.Helper()
	p := parse.New([]byte("fn f() { " + src + " }"))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	return hir.LowerFunc(fn.Params, fn.IsAsync, fn.Body)
}

func TestLowerForIntoLoopAndMatch(t *testing.T) {
	f := lowerBody(t, "for x in xs { x }")
	root := f.Arena.At(f.Root)
	require.True(t, root.HasTail)
	wrapper := f.Arena.At(root.Tail)
	require.Equal(t, hir.KindBlock, wrapper.Kind)
	require.True(t, wrapper.HasTail)
	loop := f.Arena.At(wrapper.Tail)
	assert.Equal(t, hir.KindLoop, loop.Kind)
}

func TestLowerTryIntoMatch(t *testing.T) {
	f := lowerBody(t, "f()?")
	root := f.Arena.At(f.Root)
	match := f.Arena.At(root.Tail)
	assert.Equal(t, hir.KindMatch, match.Kind)
	require.Len(t, match.List, 2)
}

func TestLowerTemplateIntoFormatCall(t *testing.T) {
	f := lowerBody(t, "`hi ${x}`")
	root := f.Arena.At(f.Root)
	call := f.Arena.At(root.Tail)
	assert.Equal(t, hir.KindCall, call.Kind)
	fnNode := f.Arena.At(call.A)
	assert.Equal(t, []string{"std", "fmt", "format"}, fnNode.Path)
}

func TestClosureCaptureAnalysis(t *testing.T) {
	f := lowerBody(t, "let y = 1; let g = |x| x + y; g(2)")
	root := f.Arena.At(f.Root)
	closureAssign := f.Arena.At(root.List[1])
	closure := f.Arena.At(closureAssign.A)
	assert.Equal(t, hir.KindClosure, closure.Kind)
	assert.Equal(t, []string{"y"}, closure.Captures)
}
