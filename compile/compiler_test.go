package compile_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/compile"
	"github.com/jcorbin/runevm/hir"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/parse"
	"github.com/jcorbin/runevm/source"
)

func compileSrc(t *testing.T, src string) *compile.Unit {
	t.Helper()
	p := parse.New([]byte(src))
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	c := compile.New()
	for _, it := range file.Items {
		fn, ok := it.(*ast.FnDecl)
		if !ok {
			continue
		}
		lowered := hir.LowerFunc(fn.Params, fn.IsAsync, fn.Body)
		hash := item.GlobalFn(item.Path{item.Named(fn.Name)}, item.EMPTY)
		c.CompileFunction(hash, fn.Name, lowered, source.ID(0))
	}
	return c.Unit()
}

func TestCompileArithmeticFunction(t *testing.T) {
	unit := compileSrc(t, `fn main() { 1 + 2 * 3 }`)
	require.Len(t, unit.Functions, 1)
	assert.Equal(t, "main", unit.Functions[0].Name)

	var buf bytes.Buffer
	compile.Disassemble(&buf, unit)
	assert.Contains(t, buf.String(), "fn main")
	assert.Contains(t, buf.String(), "mul")
	assert.Contains(t, buf.String(), "add")
}

func TestCompileIfElse(t *testing.T) {
	unit := compileSrc(t, `fn f(x) { if x { 1 } else { 2 } }`)
	found := false
	for _, inst := range unit.Instructions {
		if inst.Op == compile.OpJumpIfFalse {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompileWhileLoop(t *testing.T) {
	unit := compileSrc(t, `fn f() { let mut n = 0; while n < 3 { n = n + 1 } n }`)
	var jumps int
	for _, inst := range unit.Instructions {
		if inst.Op == compile.OpJump {
			jumps++
		}
	}
	assert.GreaterOrEqual(t, jumps, 1)
}

func TestCompileMatch(t *testing.T) {
	unit := compileSrc(t, `fn f(x) { match x { 0 => 1, _ => 2 } }`)
	var sawTest bool
	for _, inst := range unit.Instructions {
		if inst.Op == compile.OpEq {
			sawTest = true
		}
	}
	assert.True(t, sawTest)
}
