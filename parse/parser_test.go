package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/parse"
)

func TestParseSimpleFn(t *testing.T) {
	p := parse.New([]byte(`pub fn main() { 1 + 2 * 3 }`))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	require.Len(t, file.Items, 1)

	fn, ok := file.Items[0].(*ast.FnDecl)
	require.True(t, ok)
	assert.Equal(t, "main", fn.Name)
	assert.Equal(t, ast.VisPublic, fn.Vis)
	require.NotNil(t, fn.Body.Tail)

	bin, ok := fn.Body.Tail.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, bin.Op)
	// precedence: `*` binds tighter than `+`
	_, rightIsMul := bin.Right.(*ast.BinaryExpr)
	assert.True(t, rightIsMul)
}

func TestParseModAndVisibility(t *testing.T) {
	p := parse.New([]byte(`mod a { pub fn f() { 1 } } pub fn main() { a::f() }`))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	require.Len(t, file.Items, 2)

	mod, ok := file.Items[0].(*ast.ModDecl)
	require.True(t, ok)
	require.Len(t, mod.Items, 1)

	main, ok := file.Items[1].(*ast.FnDecl)
	require.True(t, ok)
	call, ok := main.Body.Tail.(*ast.CallExpr)
	require.True(t, ok)
	path, ok := call.Fn.(*ast.PathExpr)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "f"}, path.Segments)
}

func TestParseClosure(t *testing.T) {
	p := parse.New([]byte(`pub fn main() { let g = |x| x + 1; g(41) }`))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	require.Len(t, fn.Body.Stmts, 1)
	let := fn.Body.Stmts[0].(*ast.LetStmt)
	closure, ok := let.Value.(*ast.ClosureExpr)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, closure.Params)
}

func TestParseWhileLoop(t *testing.T) {
	p := parse.New([]byte(`pub fn main() { let mut n = 0; while n < 3 { n = n + 1 } n }`))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	require.NotNil(t, fn.Body.Tail)
	assert.IsType(t, &ast.Ident{}, fn.Body.Tail)
}

func TestParseAsyncAwait(t *testing.T) {
	p := parse.New([]byte(`pub async fn main() { let x = host_sleep(0).await; 42 }`))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	assert.True(t, fn.IsAsync)
	let := fn.Body.Stmts[0].(*ast.LetStmt)
	_, ok := let.Value.(*ast.AwaitExpr)
	assert.True(t, ok)
}

func TestParseMatch(t *testing.T) {
	p := parse.New([]byte(`fn f(x) { match x { 0 => 1, _ => 2 } }`))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	m, ok := fn.Body.Tail.(*ast.MatchExpr)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)
}

func TestParseRecoversFromError(t *testing.T) {
	p := parse.New([]byte(`fn f() { let = ; } fn g() { 1 }`))
	file := p.ParseFile()
	assert.NotEmpty(t, p.Errors())
	// recovery should still find the second function
	require.Len(t, file.Items, 2)
	g, ok := file.Items[1].(*ast.FnDecl)
	require.True(t, ok)
	assert.Equal(t, "g", g.Name)
}

func TestTemplateString(t *testing.T) {
	p := parse.New([]byte("fn f(x) { `hi ${x} there` }"))
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	fn := file.Items[0].(*ast.FnDecl)
	tpl, ok := fn.Body.Tail.(*ast.TemplateString)
	require.True(t, ok)
	assert.Equal(t, []string{"hi ", " there"}, tpl.Parts)
	require.Len(t, tpl.Exprs, 1)
}
