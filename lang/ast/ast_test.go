package ast_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// program builds a TopLevel with the builtin globals a type-checking test
// typically needs, and installs parent links.
func program(exprs ...ast.Expr) *ast.TopLevel {
	tl := ast.NewTopLevel(exprs, map[string]*types.Type{
		"print": types.NewFunc([]*types.Type{types.TStr}, types.TBool),
	})
	ast.SetParent(tl)
	return tl
}

func TestAssignmentAndIdentResolve(t *testing.T) {
	lit := ast.NewIntLiteral(1, 42)
	assign := ast.NewAssignmentExpr(1, "x", lit)
	ref := ast.NewIdentExpr(2, "x")
	tl := program(assign, ref)

	typ, err := ref.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.TInt))

	_ = tl
}

func TestForwardReferenceIsUndefined(t *testing.T) {
	ref := ast.NewIdentExpr(1, "y")
	assign := ast.NewAssignmentExpr(2, "y", ast.NewIntLiteral(2, 1))
	program(ref, assign)

	_, err := ref.Type()
	require.Error(t, err)
}

func TestRecursiveFunctionSelfReference(t *testing.T) {
	// fact := |n:Int|:Int { if n == 0 { 1 } else { n * fact(n - 1) } }
	nParam := ast.Param{Name: "n", Annot: ast.NewTypeAnnotationExpr(1, types.TInt)}
	retAnnot := ast.NewTypeAnnotationExpr(1, types.TInt)

	cond := ast.NewBinaryExpr(1, token.EQ, ast.NewIdentExpr(1, "n"), ast.NewIntLiteral(1, 0))
	thenBlk := ast.NewBlock(1, []ast.Expr{ast.NewIntLiteral(1, 1)})
	recCall := ast.NewCallExpr(1, ast.NewIdentExpr(1, "fact"), []ast.Expr{
		ast.NewBinaryExpr(1, token.MINUS, ast.NewIdentExpr(1, "n"), ast.NewIntLiteral(1, 1)),
	})
	elseBlk := ast.NewBlock(1, []ast.Expr{
		ast.NewBinaryExpr(1, token.STAR, ast.NewIdentExpr(1, "n"), recCall),
	})
	ifExpr := ast.NewIfExpr(1, cond, thenBlk, elseBlk)
	body := ast.NewBlock(1, []ast.Expr{ifExpr})

	fn := ast.NewFunctionExpr(1, []ast.Param{nParam}, retAnnot, body)
	fn.SelfName = "fact"
	fn.SelfType = types.NewFunc([]*types.Type{types.TInt}, types.TInt)

	assign := ast.NewAssignmentExpr(1, "fact", fn)
	call := ast.NewCallExpr(2, ast.NewIdentExpr(2, "fact"), []ast.Expr{ast.NewIntLiteral(2, 5)})
	program(assign, call)

	typ, err := call.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.TInt))
}

func TestGenericFunctionInstantiatedByCallSite(t *testing.T) {
	// id := |x| { x }
	body := ast.NewBlock(1, []ast.Expr{ast.NewIdentExpr(1, "x")})
	fn := ast.NewFunctionExpr(1, []ast.Param{{Name: "x"}}, nil, body)
	assign := ast.NewAssignmentExpr(1, "id", fn)
	call := ast.NewCallExpr(2, ast.NewIdentExpr(2, "id"), []ast.Expr{ast.NewIntLiteral(2, 7)})
	program(assign, call)

	typ, err := call.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.TInt))
	ident := call.Callee.(*ast.IdentExpr)
	assert.Equal(t, "id[Int]", ident.ExpandedName)
}

func TestMapOverArrayInfersElementType(t *testing.T) {
	// |x| { x + 1 } -> [1, 2, 3]
	arr := ast.NewArrayExpr(1, []ast.Expr{
		ast.NewIntLiteral(1, 1), ast.NewIntLiteral(1, 2), ast.NewIntLiteral(1, 3),
	}, nil)
	inner := ast.NewBlock(1, []ast.Expr{
		ast.NewBinaryExpr(1, token.PLUS, ast.NewIdentExpr(1, "x"), ast.NewIntLiteral(1, 1)),
	})
	fn := ast.NewFunctionExpr(1, []ast.Param{{Name: "x"}}, nil, inner)
	mapExpr := ast.NewMapExpr(1, fn, arr)
	program(ast.NewAssignmentExpr(1, "_", mapExpr))

	typ, err := mapExpr.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.NewIter(types.TInt)))
}

func TestIfWithoutElseYieldsMaybe(t *testing.T) {
	ifExpr := ast.NewIfExpr(1,
		ast.NewBoolLiteral(1, true),
		ast.NewBlock(1, []ast.Expr{ast.NewIntLiteral(1, 1)}),
		nil,
	)
	program(ast.NewAssignmentExpr(1, "_", ifExpr))

	typ, err := ifExpr.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.NewMaybe(types.TInt)))
}

func TestPrintOverloadsByArgumentType(t *testing.T) {
	intCall := ast.NewCallExpr(1, ast.NewIdentExpr(1, "print"), []ast.Expr{ast.NewIntLiteral(1, 1)})
	floatCall := ast.NewCallExpr(2, ast.NewIdentExpr(2, "print"), []ast.Expr{ast.NewFloatLiteral(2, 1.5)})
	program(ast.NewAssignmentExpr(1, "_", intCall), ast.NewAssignmentExpr(2, "_", floatCall))

	typ, err := intCall.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.TInt))
	assert.Equal(t, "print[Int]", intCall.Callee.(*ast.IdentExpr).ExpandedName)

	typ, err = floatCall.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.TFloat))
	assert.Equal(t, "print[Float]", floatCall.Callee.(*ast.IdentExpr).ExpandedName)
}

func TestNodeFormatVerbsAndFlags(t *testing.T) {
	n := ast.NewBinaryExpr(1, token.PLUS, ast.NewIntLiteral(1, 1), ast.NewIntLiteral(1, 2))
	assert.Equal(t, "binary +", fmt.Sprintf("%v", n))
	assert.Equal(t, "binary +", fmt.Sprintf("%s", n))
	assert.Equal(t, "%!x(*ast.BinaryExpr)", fmt.Sprintf("%x", n))

	call := ast.NewCallExpr(1, ast.NewIdentExpr(1, "f"), []ast.Expr{ast.NewIntLiteral(1, 1), ast.NewIntLiteral(1, 2)})
	assert.Equal(t, "call {args=2}", fmt.Sprintf("%#v", call))
	assert.Equal(t, "call", fmt.Sprintf("%v", call), "the '#' flag is required for child counts")
}

func TestGetFieldOnRecord(t *testing.T) {
	fields := []ast.FieldDecl{
		{Name: "x", Annot: ast.NewTypeAnnotationExpr(1, types.TInt)},
		{Name: "y", Annot: ast.NewTypeAnnotationExpr(1, types.TInt)},
	}
	typeDef := ast.NewTypeDefExpr(1, fields)
	typeDef.Name = "Point"
	defAssign := ast.NewAssignmentExpr(1, "Point", typeDef)

	construct := ast.NewCallExpr(2, ast.NewIdentExpr(2, "Point"), []ast.Expr{
		ast.NewIntLiteral(2, 1), ast.NewIntLiteral(2, 2),
	})
	getX := ast.NewGetFieldExpr(2, construct, "x")
	program(defAssign, ast.NewAssignmentExpr(2, "_", getX))

	typ, err := getX.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.TInt))
}
