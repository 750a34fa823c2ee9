package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/source"
)

// Compile-time assertions that the newly-touched aggregate node types
// still satisfy their marker interfaces alongside the rest of the tree.
var (
	_ ast.Item    = (*ast.StructDecl)(nil)
	_ ast.Item    = (*ast.EnumDecl)(nil)
	_ ast.Expr    = (*ast.ObjectLit)(nil)
	_ ast.Pattern = (*ast.ObjectPattern)(nil)
	_ ast.Pattern = (*ast.VariantPattern)(nil)
)

func TestBaseSpanReturnsStoredSpan(t *testing.T) {
	sp := source.NewSpan(3, 9)
	b := ast.Base{Sp: sp}
	assert.Equal(t, sp, b.Span())
}

func TestObjectLitHoldsFieldsInOrder(t *testing.T) {
	lit := &ast.ObjectLit{
		Fields: []ast.ObjectField{
			{Key: "x", Value: &ast.Lit{Kind: ast.LitInt, Int: 1}},
			{Key: "y", Value: &ast.Lit{Kind: ast.LitInt, Int: 2}},
		},
	}
	require := assert.New(t)
	require.Len(lit.Fields, 2)
	require.Equal("x", lit.Fields[0].Key)
	require.Equal("y", lit.Fields[1].Key)
}

func TestEnumDeclVariantsCarryFields(t *testing.T) {
	decl := &ast.EnumDecl{
		Name: "Shape",
		Variants: []ast.EnumVariant{
			{Name: "Circle", Fields: []ast.StructField{{Name: "radius"}}},
			{Name: "Point"},
		},
	}
	assert.Len(t, decl.Variants, 2)
	assert.Equal(t, "radius", decl.Variants[0].Fields[0].Name)
	assert.Empty(t, decl.Variants[1].Fields)
}
