package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/resolver"
	"github.com/arbor-lang/arbor/lang/types"
)

func TestResolveSimpleProgram(t *testing.T) {
	tl := ast.NewTopLevel([]ast.Expr{
		ast.NewAssignmentExpr(1, "x", ast.NewIntLiteral(1, 10)),
		ast.NewIdentExpr(2, "x"),
	}, nil)

	prog, err := resolver.Resolve(tl)
	require.NoError(t, err)
	assert.True(t, prog.Type.Equal(types.TInt))
}

func TestResolveCollectsMonomorphicInstantiation(t *testing.T) {
	// Two distinct generic identity literals, each instantiated at its own
	// call site's argument type: one distinct binding per type-checker pass
	// (spec §4.3 — the type checker does single first-use instantiation per
	// literal; genuinely reusing one generic literal at two different
	// argument types is the compiler's job, not the type checker's, per
	// DESIGN.md).
	idInt := ast.NewFunctionExpr(1, []ast.Param{{Name: "x"}}, nil,
		ast.NewBlock(1, []ast.Expr{ast.NewIdentExpr(1, "x")}))
	idStr := ast.NewFunctionExpr(2, []ast.Param{{Name: "x"}}, nil,
		ast.NewBlock(2, []ast.Expr{ast.NewIdentExpr(2, "x")}))
	tl := ast.NewTopLevel([]ast.Expr{
		ast.NewAssignmentExpr(1, "idInt", idInt),
		ast.NewAssignmentExpr(2, "idStr", idStr),
		ast.NewCallExpr(3, ast.NewIdentExpr(3, "idInt"), []ast.Expr{ast.NewIntLiteral(3, 1)}),
		ast.NewCallExpr(4, ast.NewIdentExpr(4, "idStr"), []ast.Expr{ast.NewStrLiteral(4, "hi")}),
	}, nil)

	prog, err := resolver.Resolve(tl)
	require.NoError(t, err)

	_, ok := prog.Lookup("idInt[Int]")
	assert.True(t, ok)
	_, ok = prog.Lookup("idStr[Str]")
	assert.True(t, ok)
}

func TestResolveReportsUndefinedName(t *testing.T) {
	tl := ast.NewTopLevel([]ast.Expr{ast.NewIdentExpr(1, "nope")}, nil)
	_, err := resolver.Resolve(tl)
	require.Error(t, err)
}
