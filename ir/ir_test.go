package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/ir"
	"github.com/jcorbin/runevm/parse"
)

func evalExpr(t *testing.T, src string) (ir.Value, error) {
	t.Helper()
	p := parse.New([]byte("fn f() { " + src + " }"))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	e := ir.NewEvaluator(0)
	return e.Eval(fn.Body.Tail)
}

func TestEvalArithmetic(t *testing.T) {
	v, err := evalExpr(t, "1 + 2 * 3")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int)
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := evalExpr(t, "1 / 0")
	require.Error(t, err)
	assert.Equal(t, ir.ErrDivByZero, err.(*ir.Error).Kind)
}

func TestEvalOverflow(t *testing.T) {
	_, err := evalExpr(t, "9223372036854775807 + 1")
	require.Error(t, err)
	assert.Equal(t, ir.ErrOverflow, err.(*ir.Error).Kind)
}

func TestEvalBudgetExceeded(t *testing.T) {
	e := ir.NewEvaluator(2)
	p := parse.New([]byte("fn f() { 1 + 2 + 3 }"))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	_, err := e.Eval(fn.Body.Tail)
	require.Error(t, err)
	assert.Equal(t, ir.ErrBudgetExceeded, err.(*ir.Error).Kind)
}

func TestEvalBoolAnd(t *testing.T) {
	v, err := evalExpr(t, "true && false")
	require.NoError(t, err)
	assert.False(t, v.Bool)
}
