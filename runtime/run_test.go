package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/compile"
	"github.com/jcorbin/runevm/hir"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/parse"
	"github.com/jcorbin/runevm/runtime"
	"github.com/jcorbin/runevm/source"
)

// compileSrc lowers every fn/struct/enum item in src into one Unit, the
// same loop cmd/runevm's compileScript drives.
func compileSrc(t *testing.T, src string) *compile.Unit {
	t.Helper()
	p := parse.New([]byte(src))
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	c := compile.New()
	for _, it := range file.Items {
		switch decl := it.(type) {
		case *ast.FnDecl:
			lowered := hir.LowerFunc(decl.Params, decl.IsAsync, decl.Body)
			hash := item.GlobalFn(item.Path{item.Named(decl.Name)}, item.EMPTY)
			c.CompileFunction(hash, decl.Name, lowered, source.ID(0))
		case *ast.StructDecl:
			hash := item.GlobalFn(item.Path{item.Named(decl.Name)}, item.EMPTY)
			c.CompileStruct(hash, decl.Name, fieldNames(decl.Fields))
		case *ast.EnumDecl:
			for _, v := range decl.Variants {
				hash := item.GlobalFn(item.Path{item.Named(decl.Name), item.Named(v.Name)}, item.EMPTY)
				c.CompileVariant(hash, decl.Name+"::"+v.Name, fieldNames(v.Fields))
			}
		}
	}
	require.False(t, c.Errors().HasErrors(), "%v", c.Errors())
	return c.Unit()
}

func fieldNames(fields []ast.StructField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func runMain(t *testing.T, src string) (runtime.Value, error) {
	t.Helper()
	unit := compileSrc(t, src)
	vm := runtime.New(unit)
	entry := item.GlobalFn(item.Path{item.Named("main")}, item.EMPTY)
	return vm.Run(context.Background(), entry)
}

func TestShortCircuitAndSkipsRHSOnFalse(t *testing.T) {
	result, err := runMain(t, `fn main() { false && nonexistent() }`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Bool(false), result)
}

func TestShortCircuitOrSkipsRHSOnTrue(t *testing.T) {
	result, err := runMain(t, `fn main() { true || nonexistent() }`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Bool(true), result)
}

func TestShortCircuitAndEvaluatesRHSOnTrue(t *testing.T) {
	result, err := runMain(t, `fn main() { true && (1 + 1 == 2) }`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Bool(true), result)
}

func TestShortCircuitOrEvaluatesRHSOnFalse(t *testing.T) {
	result, err := runMain(t, `fn main() { false || (1 + 1 == 2) }`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Bool(true), result)
}

func TestObjectLiteralConstructionAndFieldAccess(t *testing.T) {
	result, err := runMain(t, `fn main() { let o = #{ x: 1, y: 2 }; o.x + o.y }`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(3), result)
}

func TestStructConstructionAndFieldMutation(t *testing.T) {
	result, err := runMain(t, `
struct Point { x, y }

fn main() {
    let mut p = Point(1, 2);
    p.x = 10;
    p.x + p.y
}`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(12), result)
}

func TestIndexAssignment(t *testing.T) {
	result, err := runMain(t, `
fn main() {
    let mut a = [1, 2, 3];
    a[1] = 20;
    a[0] + a[1] + a[2]
}`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(24), result)
}

func TestTupleIndexAssignment(t *testing.T) {
	result, err := runMain(t, `
fn main() {
    let mut t = (1, 2);
    t.0 = 10;
    t.0 + t.1
}`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(12), result)
}

func TestObjectPatternMatchRequiresField(t *testing.T) {
	result, err := runMain(t, `
fn main() {
    let o = #{ x: 1 };
    match o {
        {x} => 1,
        _ => 2,
    }
}`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(1), result)
}

func TestObjectPatternMatchRejectsMissingField(t *testing.T) {
	result, err := runMain(t, `
fn main() {
    let o = #{ y: 1 };
    match o {
        {x} => 1,
        _ => 2,
    }
}`)
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(2), result)
}

func TestCallArityMismatchHalts(t *testing.T) {
	_, err := runMain(t, `
fn add(a, b) { a + b }
fn main() { add(1) }`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, runtime.ErrArityMismatch), "expected ErrArityMismatch, got %v", err)
}

// TestInstanceCallArityMismatchHalts exercises OpCallInstance directly: an
// instance method is registered under item.InstanceFn the way
// indexing.Indexer's *ast.ImplDecl case hashes it (cmd/runevm's
// single-source compileScript never drives an impl block itself, since
// associated-function compilation is part of the multi-module query.Engine
// build queue), then called via a method-call expression with too few args.
func TestInstanceCallArityMismatchHalts(t *testing.T) {
	p := parse.New([]byte(`
struct Counter { n }
fn main() { Counter(0).bump() }`))
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	c := compile.New()
	var structDecl *ast.StructDecl
	for _, it := range file.Items {
		switch decl := it.(type) {
		case *ast.StructDecl:
			structDecl = decl
			hash := item.GlobalFn(item.Path{item.Named(decl.Name)}, item.EMPTY)
			c.CompileStruct(hash, decl.Name, fieldNames(decl.Fields))
		case *ast.FnDecl:
			lowered := hir.LowerFunc(decl.Params, decl.IsAsync, decl.Body)
			hash := item.GlobalFn(item.Path{item.Named(decl.Name)}, item.EMPTY)
			c.CompileFunction(hash, decl.Name, lowered, source.ID(0))
		}
	}
	require.NotNil(t, structDecl)

	bumpBody := parse.New([]byte(`fn bump(self, amount) { self.n + amount }`))
	bumpFile := bumpBody.ParseFile()
	require.Empty(t, bumpBody.Errors())
	bumpDecl := bumpFile.Items[0].(*ast.FnDecl)
	lowered := hir.LowerFunc(bumpDecl.Params, bumpDecl.IsAsync, bumpDecl.Body)
	typeHash := item.TypeHash(item.Path{item.Named("Counter")}, item.EMPTY)
	c.CompileFunction(item.InstanceFn(typeHash, "bump"), "Counter::bump", lowered, source.ID(0))

	require.False(t, c.Errors().HasErrors(), "%v", c.Errors())

	vm := runtime.New(c.Unit())
	entry := item.GlobalFn(item.Path{item.Named("main")}, item.EMPTY)
	_, err := vm.Run(context.Background(), entry)
	require.Error(t, err)
	assert.True(t, errors.Is(err, runtime.ErrArityMismatch), "expected ErrArityMismatch, got %v", err)
}
