package wasmgen_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-lang/arbor/lang/machine"
	"github.com/arbor-lang/arbor/lang/parser"
	"github.com/arbor-lang/arbor/lang/resolver"
	"github.com/arbor-lang/arbor/lang/types"
	"github.com/arbor-lang/arbor/lang/wasmgen"
)

func emit(t *testing.T, source string) ([]byte, *types.Type) {
	t.Helper()
	top, err := parser.ParseProgram("<test>", []byte(source), machine.Globals)
	require.NoError(t, err)
	prog, err := resolver.Resolve(top)
	require.NoError(t, err)
	bytes, resultType, err := wasmgen.Emit(prog, uuid.Nil)
	require.NoError(t, err)
	return bytes, resultType
}

// findExport scans a module's Export section entries for name, returning
// whether it was found. This walks the raw bytes rather than depending on
// an exposed decoder, exercising the same binary shape an external WASM
// host's loader would see.
func findExport(t *testing.T, mod []byte, name string) bool {
	t.Helper()
	needle := []byte(name)
	for i := 0; i+len(needle) <= len(mod); i++ {
		if string(mod[i:i+len(needle)]) == name {
			// a length-prefixed name vector stores its byte length
			// immediately before the bytes themselves.
			if i > 0 && int(mod[i-1]) == len(needle) {
				return true
			}
		}
	}
	return false
}

func TestEmitModuleHeader(t *testing.T) {
	mod, resultType := emit(t, `1 + 2`)
	require.True(t, len(mod) >= 8)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, mod[0:4], "magic number")
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, mod[4:8], "version")
	assert.True(t, resultType.Equal(types.TInt))
}

func TestEmitExportsMemoryAndMain(t *testing.T) {
	mod, _ := emit(t, `1 + 2`)
	assert.True(t, findExport(t, mod, "memory"))
	assert.True(t, findExport(t, mod, "main"))
}

// spec §6: the module always imports both print instantiations from env,
// regardless of which (or whether either) the source actually calls.
func TestEmitImportsBothPrintOverloads(t *testing.T) {
	mod, resultType := emit(t, `1 + 2`)
	count := 0
	for _, name := range []string{"print[Int]", "print[Float]"} {
		for i := 1; i+len(name) <= len(mod); i++ {
			if string(mod[i:i+len(name)]) == name && int(mod[i-1]) == len(name) {
				count++
			}
		}
	}
	assert.Equal(t, 2, count, "both print[Int] and print[Float] imports must be present")
	assert.True(t, resultType.Equal(types.TInt))
}

func TestEmitPrintDispatchesOnArgumentType(t *testing.T) {
	mod, resultType := emit(t, `ftoi(print(2.5)) + print(1)`)
	assert.True(t, resultType.Equal(types.TInt))
	assert.NotEmpty(t, mod)
}

func TestEmitRecursiveFibonacci(t *testing.T) {
	mod, resultType := emit(t, `fib := |n:Int|:Int{ if n<3 {1} else {fib(n-2)+fib(n-1)} }; fib(10)`)
	assert.True(t, resultType.Equal(types.TInt))
	assert.True(t, findExport(t, mod, "main"))
}

func TestEmitRecordFieldAndLen(t *testing.T) {
	mod, resultType := emit(t, `T := type{a:Int,b:Str}; x := T(1,"ok"); x.a + len(x.b)`)
	assert.True(t, resultType.Equal(types.TInt))
	assert.NotEmpty(t, mod)
}

func TestEmitArrayConcatCollect(t *testing.T) {
	mod, resultType := emit(t, `@([1,2,3] + [4,5])`)
	assert.True(t, resultType.Equal(types.NewArr(types.TInt)))
	assert.NotEmpty(t, mod)
}

func TestEmitIsDeterministic(t *testing.T) {
	a, _ := emit(t, `sum(filter(|n|{n>1 and all(|p|{mod(n,p)!=0} -> 2 to ftoi(sqrt(itof(n)))+1)}, 2 to 100))`)
	b, _ := emit(t, `sum(filter(|n|{n>1 and all(|p|{mod(n,p)!=0} -> 2 to ftoi(sqrt(itof(n)))+1)}, 2 to 100))`)
	assert.Equal(t, a, b, "the same source must emit byte-identical modules regardless of buildID")
}
