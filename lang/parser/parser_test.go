package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/parser"
	"github.com/arbor-lang/arbor/lang/resolver"
	"github.com/arbor-lang/arbor/lang/types"
)

func parseOK(t *testing.T, src string) *ast.TopLevel {
	t.Helper()
	top, err := parser.ParseProgram("test", []byte(src), nil)
	require.NoError(t, err)
	require.NotNil(t, top)
	return top
}

func TestParseArithmeticPrecedence(t *testing.T) {
	top := parseOK(t, `1 + 2 * 3`)
	require.Len(t, top.Exprs, 1)
	bin := top.Exprs[0].(*ast.BinaryExpr)
	assert.Equal(t, "(1 + (2 * 3))", bin.String())
}

func TestParseAssignmentAndCall(t *testing.T) {
	top := parseOK(t, `
		square := |x:Int|:Int { x * x }
		square(4)
	`)
	require.Len(t, top.Exprs, 2)
	_, ok := top.Exprs[0].(*ast.AssignmentExpr)
	require.True(t, ok)
	call, ok := top.Exprs[1].(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, "square(4)", call.String())
}

func TestParseRecursiveFunctionGetsSelfBinding(t *testing.T) {
	top := parseOK(t, `
		fact := |n:Int|:Int { if n == 0 { 1 } else { n * fact(n - 1) } }
		fact(5)
	`)
	assign := top.Exprs[0].(*ast.AssignmentExpr)
	fn := assign.Value.(*ast.FunctionExpr)
	assert.Equal(t, "fact", fn.SelfName)
	require.NotNil(t, fn.SelfType)
}

func TestParseIfElseAndComparison(t *testing.T) {
	top := parseOK(t, `if 1 < 2 { true } else { false }`)
	ifExpr := top.Exprs[0].(*ast.IfExpr)
	assert.NotNil(t, ifExpr.Else)
}

func TestParseArrayLiteralAndMap(t *testing.T) {
	top := parseOK(t, `|x:Int|:Int { x + 1 } -> [1, 2, 3]`)
	mapExpr := top.Exprs[0].(*ast.MapExpr)
	_, ok := mapExpr.Source.(*ast.ArrayExpr)
	assert.True(t, ok)
}

func TestParseEmptyArrayRequiresAnnotation(t *testing.T) {
	_, err := parser.ParseProgram("test", []byte(`xs := []`), nil)
	require.Error(t, err)
}

func TestParseLenDesugarsToLenExpr(t *testing.T) {
	top := parseOK(t, `len([1, 2, 3])`)
	_, ok := top.Exprs[0].(*ast.LenExpr)
	assert.True(t, ok)
}

func TestParseReduceFilterZipmapDesugar(t *testing.T) {
	top := parseOK(t, `
		reduce(|acc:Int, x:Int|:Int { acc + x }, [1, 2, 3], 0)
		filter(|x:Int|:Bool { x > 1 }, [1, 2, 3])
		zipmap(|x:Int, y:Int|:Int { x + y }, [1, 2], [3, 4])
	`)
	_, ok := top.Exprs[0].(*ast.ReduceExpr)
	assert.True(t, ok)
	_, ok = top.Exprs[1].(*ast.FilterExpr)
	assert.True(t, ok)
	_, ok = top.Exprs[2].(*ast.ZipMapExpr)
	assert.True(t, ok)
}

func TestParseRecordTypeDefAndConstruction(t *testing.T) {
	top := parseOK(t, `
		Point := type { x: Int, y: Int }
		p := Point(1, 2)
		p.x
	`)
	require.Len(t, top.Exprs, 3)
	getField := top.Exprs[2].(*ast.GetFieldExpr)
	assert.Equal(t, "x", getField.Field)
}

func TestParseNullAndSomeMaybe(t *testing.T) {
	top := parseOK(t, `
		n := {}:Int
		s := some 5
	`)
	null := top.Exprs[0].(*ast.AssignmentExpr).Value.(*ast.MaybeExpr)
	assert.False(t, null.Some)
	some := top.Exprs[1].(*ast.AssignmentExpr).Value.(*ast.MaybeExpr)
	assert.True(t, some.Some)
}

func TestParseRangeOperator(t *testing.T) {
	top := parseOK(t, `1 to 10`)
	bin := top.Exprs[0].(*ast.BinaryExpr)
	typ, err := bin.Type()
	require.NoError(t, err)
	assert.True(t, typ.Equal(types.NewIter(types.TInt)))
}

func TestParseSyntaxErrorRecoversAndReportsAll(t *testing.T) {
	_, err := parser.ParseProgram("test", []byte(`
		x := 1 +
		y := 2
		z :=
	`), nil)
	require.Error(t, err)
}

func TestResolveFullProgramEndToEnd(t *testing.T) {
	top, err := parser.ParseProgram("test", []byte(`
		fact := |n:Int|:Int { if n == 0 { 1 } else { n * fact(n - 1) } }
		fact(5)
	`), nil)
	require.NoError(t, err)

	prog, err := resolver.Resolve(top)
	require.NoError(t, err)
	assert.True(t, prog.Type.Equal(types.TInt))
}
