package machine_test

import (
	"bytes"
	"testing"

	"github.com/arbor-lang/arbor/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interpret(t *testing.T, source string) string {
	t.Helper()
	th := machine.NewThread(machine.Config{})
	out, err := th.Interpret(source)
	require.NoError(t, err)
	return out
}

func TestInterpretRecursiveFibonacci(t *testing.T) {
	out := interpret(t, `fib := |n:Int|:Int{ if n<3 {1} else {fib(n-2)+fib(n-1)} }; fib(10)`)
	assert.Equal(t, "55", out)
}

func TestInterpretPrimeSumFilterAll(t *testing.T) {
	out := interpret(t, `sum(filter(|n|{n>1 and all(|p|{mod(n,p)!=0} -> 2 to ftoi(sqrt(itof(n)))+1)}, 2 to 100))`)
	assert.Equal(t, "1060", out)
}

func TestInterpretRecordFieldAndLen(t *testing.T) {
	out := interpret(t, `T := type{a:Int,b:Str}; x := T(1,"ok"); x.a + len(x.b)`)
	assert.Equal(t, "3", out)
}

func TestInterpretArrayConcatCollect(t *testing.T) {
	out := interpret(t, `@([1,2,3] + [4,5])`)
	assert.Equal(t, "[1, 2, 3, 4, 5]", out)
}

func TestInterpretZipMapAny(t *testing.T) {
	out := interpret(t, `haslen := |s:Str,l:Int|{len(s)=l}; any(zipmap(haslen, ["a","bb","ccc"], [1,1,1]))`)
	assert.Equal(t, "true", out)
}

func TestInterpretMaybeMapSum(t *testing.T) {
	out := interpret(t, `null_if_pos := |x|{ if x<=0 {some(x)} else {{}:Int} }; sum(|m|{unwrap(m,0)} -> (null_if_pos -> -3 to 4))`)
	assert.Equal(t, "-6", out)
}

func TestInterpretDivideByZero(t *testing.T) {
	th := machine.NewThread(machine.Config{})
	_, err := th.Interpret(`1 / 0`)
	require.Error(t, err)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, machine.ErrDivideByZero, rerr.Kind)
}

func TestInterpretStepLimit(t *testing.T) {
	th := machine.NewThread(machine.Config{MaxSteps: 2})
	_, err := th.Interpret(`1 + 2 + 3 + 4 + 5`)
	require.Error(t, err)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, machine.ErrStepLimit, rerr.Kind)
}

// print resolves to one of two NativeFunctions (print[Int], print[Float])
// depending on its argument's type at each call site (spec §6).
func TestInterpretPrintDispatchesOnArgumentType(t *testing.T) {
	var out bytes.Buffer
	th := &machine.Thread{Stdout: &out}
	res, err := th.Interpret(`print(1) + ftoi(print(2.5))`)
	require.NoError(t, err)
	assert.Equal(t, "3", res)
	assert.Equal(t, "1\n2.5\n", out.String())
}
