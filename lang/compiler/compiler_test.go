package compiler

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/resolver"
	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// decode walks a chunk's Code into its opcode sequence, ignoring operand
// bytes, so tests can assert "this instruction sequence appears" without
// hardcoding byte offsets.
func decode(code []byte) []OpCode {
	var ops []OpCode
	for i := 0; i < len(code); {
		op := OpCode(code[i])
		ops = append(ops, op)
		i += 1 + operandWidth(op)
	}
	return ops
}

func containsOp(ops []OpCode, want OpCode) bool {
	for _, op := range ops {
		if op == want {
			return true
		}
	}
	return false
}

func resolveAndCompile(t *testing.T, top *ast.TopLevel) *Program {
	t.Helper()
	prog, err := resolver.Resolve(top)
	require.NoError(t, err)
	out, err := Compile(prog, uuid.Nil)
	require.NoError(t, err)
	return out
}

func TestCompileArithmeticAndLocal(t *testing.T) {
	top := ast.NewTopLevel([]ast.Expr{
		ast.NewAssignmentExpr(1, "x", ast.NewBinaryExpr(1, token.PLUS, ast.NewIntLiteral(1, 1), ast.NewIntLiteral(1, 2))),
		ast.NewIdentExpr(2, "x"),
	}, nil)

	out := resolveAndCompile(t, top)
	ops := decode(out.Main.Code)

	assert.True(t, containsOp(ops, Constant))
	assert.True(t, containsOp(ops, IntAdd))
	assert.True(t, containsOp(ops, GetLocal))
	assert.Contains(t, out.Main.FlatConstants, uint64(1))
	assert.Contains(t, out.Main.FlatConstants, uint64(2))
}

func TestCompileFloatArithmeticUsesFloatOpcodes(t *testing.T) {
	top := ast.NewTopLevel([]ast.Expr{
		ast.NewBinaryExpr(1, token.STAR, ast.NewFloatLiteral(1, 1.5), ast.NewFloatLiteral(1, 2.0)),
	}, nil)

	out := resolveAndCompile(t, top)
	ops := decode(out.Main.Code)

	assert.True(t, containsOp(ops, FloatMul))
	assert.False(t, containsOp(ops, IntMul))
	assert.Contains(t, out.Main.FlatConstants, math.Float64bits(1.5))
}

func TestCompileStringConcatUsesHeapStack(t *testing.T) {
	top := ast.NewTopLevel([]ast.Expr{
		ast.NewBinaryExpr(1, token.PLUS, ast.NewStrLiteral(1, "a"), ast.NewStrLiteral(1, "b")),
	}, nil)

	out := resolveAndCompile(t, top)
	ops := decode(out.Main.Code)

	assert.True(t, containsOp(ops, String))
	assert.True(t, containsOp(ops, Concat))
	assert.Equal(t, 2, len(out.Main.HeapConstants))
}

func TestCompileNamedFunctionAndCall(t *testing.T) {
	intAnnot := ast.NewTypeAnnotationExpr(1, types.TInt)
	square := ast.NewFunctionExpr(1, []ast.Param{{Name: "x", Annot: intAnnot}}, intAnnot,
		ast.NewBlock(1, []ast.Expr{
			ast.NewBinaryExpr(1, token.STAR, ast.NewIdentExpr(1, "x"), ast.NewIdentExpr(1, "x")),
		}))

	top := ast.NewTopLevel([]ast.Expr{
		ast.NewAssignmentExpr(1, "square", square),
		ast.NewCallExpr(2, ast.NewIdentExpr(2, "square"), []ast.Expr{ast.NewIntLiteral(2, 3)}),
	}, nil)

	out := resolveAndCompile(t, top)
	chunks := out.Chunks()
	squareChunk, ok := chunks["square[Int]"]
	require.True(t, ok)
	assert.Equal(t, 1, squareChunk.NumFlatParams)
	assert.Equal(t, 0, squareChunk.NumHeapParams)
	assert.True(t, containsOp(decode(squareChunk.Code), IntMul))
	assert.True(t, containsOp(decode(squareChunk.Code), Return))

	mainOps := decode(out.Main.Code)
	assert.True(t, containsOp(mainOps, HeapConstant))
	assert.True(t, containsOp(mainOps, Call))
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	intAnnot := ast.NewTypeAnnotationExpr(2, types.TInt)
	adder := ast.NewFunctionExpr(2, []ast.Param{{Name: "x", Annot: intAnnot}}, intAnnot,
		ast.NewBlock(2, []ast.Expr{
			ast.NewBinaryExpr(2, token.PLUS, ast.NewIdentExpr(2, "x"), ast.NewIdentExpr(2, "y")),
		}))

	top := ast.NewTopLevel([]ast.Expr{
		ast.NewAssignmentExpr(1, "y", ast.NewIntLiteral(1, 5)),
		ast.NewAssignmentExpr(2, "add", adder),
		ast.NewCallExpr(3, ast.NewIdentExpr(3, "add"), []ast.Expr{ast.NewIntLiteral(3, 1)}),
	}, nil)

	out := resolveAndCompile(t, top)
	chunks := out.Chunks()
	addChunk, ok := chunks["add[Int]"]
	require.True(t, ok)

	var captured *HeapConst
	for i, hc := range out.Main.HeapConstants {
		if hc.Kind == HeapConstFuncTemplate && hc.Chunk == addChunk {
			captured = &out.Main.HeapConstants[i]
		}
	}
	require.NotNil(t, captured)
	require.Len(t, captured.Upvalues, 1)
	assert.Equal(t, "y", captured.Upvalues[0].Name)
	assert.False(t, captured.Upvalues[0].Heap)
	assert.False(t, captured.Upvalues[0].FromParentUpvalue)

	assert.True(t, containsOp(decode(addChunk.Code), GetUpvalue))
}

func TestCompileSelfRecursiveFunction(t *testing.T) {
	intAnnot := ast.NewTypeAnnotationExpr(1, types.TInt)
	body := ast.NewBlock(1, []ast.Expr{
		ast.NewIfExpr(1,
			ast.NewBinaryExpr(1, token.LE, ast.NewIdentExpr(1, "n"), ast.NewIntLiteral(1, 1)),
			ast.NewBlock(1, []ast.Expr{ast.NewIntLiteral(1, 1)}),
			ast.NewBlock(1, []ast.Expr{
				ast.NewBinaryExpr(1, token.STAR, ast.NewIdentExpr(1, "n"),
					ast.NewCallExpr(1, ast.NewIdentExpr(1, "fact"), []ast.Expr{
						ast.NewBinaryExpr(1, token.MINUS, ast.NewIdentExpr(1, "n"), ast.NewIntLiteral(1, 1)),
					})),
			})),
	})
	fact := ast.NewFunctionExpr(1, []ast.Param{{Name: "n", Annot: intAnnot}}, intAnnot, body)
	fact.SelfName = "fact"
	fact.SelfType = types.NewFunc([]*types.Type{types.TInt}, types.TInt)

	top := ast.NewTopLevel([]ast.Expr{
		ast.NewAssignmentExpr(1, "fact", fact),
		ast.NewCallExpr(2, ast.NewIdentExpr(2, "fact"), []ast.Expr{ast.NewIntLiteral(2, 5)}),
	}, nil)

	out := resolveAndCompile(t, top)
	factChunk, ok := out.Chunks()["fact[Int]"]
	require.True(t, ok)
	assert.True(t, factChunk.HasSelfSlot)
	assert.True(t, containsOp(decode(factChunk.Code), Call))
	assert.True(t, containsOp(decode(factChunk.Code), JumpIfFalse))
}

func TestCompileRecordConstructorAndField(t *testing.T) {
	intAnnot := ast.NewTypeAnnotationExpr(1, types.TInt)
	pointDef := ast.NewTypeDefExpr(1, []ast.FieldDecl{
		{Name: "x", Annot: intAnnot},
		{Name: "y", Annot: intAnnot},
	})
	pointDef.Name = "Point"

	top := ast.NewTopLevel([]ast.Expr{
		ast.NewAssignmentExpr(1, "Point", pointDef),
		ast.NewAssignmentExpr(2, "p", ast.NewCallExpr(2, ast.NewIdentExpr(2, "Point"),
			[]ast.Expr{ast.NewIntLiteral(2, 1), ast.NewIntLiteral(2, 2)})),
		ast.NewGetFieldExpr(3, ast.NewIdentExpr(3, "p"), "x"),
	}, nil)

	out := resolveAndCompile(t, top)
	ops := decode(out.Main.Code)
	assert.True(t, containsOp(ops, HeapConstant))
	assert.True(t, containsOp(ops, Call))
	assert.True(t, containsOp(ops, GetField))

	var typeDefConst *HeapConst
	for i, hc := range out.Main.HeapConstants {
		if hc.Kind == HeapConstTypeDef {
			typeDefConst = &out.Main.HeapConstants[i]
		}
	}
	require.NotNil(t, typeDefConst)
	assert.Equal(t, "Point", typeDefConst.TypeDef.Name)
}

func TestCompileIfWithoutElseWrapsInMaybe(t *testing.T) {
	top := ast.NewTopLevel([]ast.Expr{
		ast.NewIfExpr(1, ast.NewBoolLiteral(1, true),
			ast.NewBlock(1, []ast.Expr{ast.NewIntLiteral(1, 1)}), nil),
	}, nil)

	out := resolveAndCompile(t, top)
	ops := decode(out.Main.Code)
	assert.True(t, containsOp(ops, JumpIfFalse))
	assert.True(t, containsOp(ops, Jump))
	assert.True(t, containsOp(ops, WrapSome))
}

func TestCompileMapOverRange(t *testing.T) {
	intAnnot := ast.NewTypeAnnotationExpr(1, types.TInt)
	double := ast.NewFunctionExpr(1, []ast.Param{{Name: "x", Annot: intAnnot}}, intAnnot,
		ast.NewBlock(1, []ast.Expr{ast.NewBinaryExpr(1, token.STAR, ast.NewIdentExpr(1, "x"), ast.NewIntLiteral(1, 2))}))

	top := ast.NewTopLevel([]ast.Expr{
		ast.NewMapExpr(1, double, ast.NewBinaryExpr(1, token.TO, ast.NewIntLiteral(1, 0), ast.NewIntLiteral(1, 10))),
	}, nil)

	out := resolveAndCompile(t, top)
	ops := decode(out.Main.Code)
	assert.True(t, containsOp(ops, To))
	assert.True(t, containsOp(ops, Map))
	assert.True(t, containsOp(ops, HeapConstant))
}

func TestCompileUnwrapWithDefault(t *testing.T) {
	top := ast.NewTopLevel([]ast.Expr{
		ast.NewUnwrapExpr(1, ast.NewSomeExpr(1, ast.NewIntLiteral(1, 9)), ast.NewIntLiteral(1, 0)),
	}, nil)

	out := resolveAndCompile(t, top)
	ops := decode(out.Main.Code)
	assert.True(t, containsOp(ops, WrapSome))
	assert.True(t, containsOp(ops, Unwrap))
}
