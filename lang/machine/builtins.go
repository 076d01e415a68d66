package machine

import (
	"fmt"
	"math"

	"github.com/arbor-lang/arbor/lang/types"
)

// Globals is the fixed type environment parser.ParseProgram type-checks
// every top-level identifier against (spec §4.2's builtin surface). Arbor's
// Globals table is a flat map of one concrete Type per name — there is no
// overload mechanism for it the way a FunctionExpr literal gets
// monomorphized per call site — so each entry below is the single
// signature that name's NativeFunction in Universe actually implements.
// mod/itof/ftoi/sqrt were never ambiguous; abs/sum/prod/all/any are pinned
// to the one instantiation the language's example programs exercise (Int
// for the arithmetic helpers, Iter(Int)/Iter(Bool) for the folds). print is
// the one builtin with two instantiations (spec §6: print[Int], print[Float]);
// its entry here is only the fallback type for a bare, uncalled reference
// to the name — ast.applyFuncExpr special-cases an actual call to pick
// between Int and Float, recording the choice as an expanded name the way
// a generic function literal's call site would.
var Globals = map[string]*types.Type{
	"mod":   types.NewFunc([]*types.Type{types.TInt, types.TInt}, types.TInt),
	"itof":  types.NewFunc([]*types.Type{types.TInt}, types.TFloat),
	"ftoi":  types.NewFunc([]*types.Type{types.TFloat}, types.TInt),
	"sqrt":  types.NewFunc([]*types.Type{types.TFloat}, types.TFloat),
	"abs":   types.NewFunc([]*types.Type{types.TInt}, types.TInt),
	"print": types.NewFunc([]*types.Type{types.TInt}, types.TInt),
	"sum":   types.NewFunc([]*types.Type{types.NewIter(types.TInt)}, types.TInt),
	"prod":  types.NewFunc([]*types.Type{types.NewIter(types.TInt)}, types.TInt),
	"all":   types.NewFunc([]*types.Type{types.NewIter(types.TBool)}, types.TBool),
	"any":   types.NewFunc([]*types.Type{types.NewIter(types.TBool)}, types.TBool),
}

// Universe is the runtime counterpart of Globals: the NativeFunction each
// builtin name resolves to when a HeapConstant instruction looks it up by
// name (compiler.Chunk.addNativeConstant / instantiateHeapConst).
var Universe = map[string]*NativeFunction{
	"mod": {
		Name: "mod",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			a, b := int64(flatArgs[0]), int64(flatArgs[1])
			if b == 0 {
				return 0, nil, newRuntimeError(ErrDivideByZero, "")
			}
			r := a % b
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return uint64(r), nil, nil
		},
	},
	"itof": {
		Name: "itof",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			return floatWord(float64(int64(flatArgs[0]))), nil, nil
		},
	},
	"ftoi": {
		Name: "ftoi",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			return uint64(int64(floatBits(flatArgs[0]))), nil, nil
		},
	},
	"sqrt": {
		Name: "sqrt",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			return floatWord(math.Sqrt(floatBits(flatArgs[0]))), nil, nil
		},
	},
	"abs": {
		Name: "abs",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			a := int64(flatArgs[0])
			if a < 0 {
				a = -a
			}
			return uint64(a), nil, nil
		},
	},
	"print": {
		Name: "print",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			v := int64(flatArgs[0])
			fmt.Fprintln(th.Stdout, v)
			return uint64(v), nil, nil
		},
	},
	"print[Int]": {
		Name: "print[Int]",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			v := int64(flatArgs[0])
			fmt.Fprintln(th.Stdout, v)
			return uint64(v), nil, nil
		},
	},
	"print[Float]": {
		Name: "print[Float]",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			v := floatBits(flatArgs[0])
			fmt.Fprintln(th.Stdout, v)
			return floatWord(v), nil, nil
		},
	},
	"sum": {
		Name: "sum",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			it := coreOf(heapArgs[0])
			var total int64
			for {
				fv, _, ok, err := it.Next()
				if err != nil {
					return 0, nil, err
				}
				if !ok {
					break
				}
				total += int64(fv)
			}
			return uint64(total), nil, nil
		},
	},
	"prod": {
		Name: "prod",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			it := coreOf(heapArgs[0])
			total := int64(1)
			for {
				fv, _, ok, err := it.Next()
				if err != nil {
					return 0, nil, err
				}
				if !ok {
					break
				}
				total *= int64(fv)
			}
			return uint64(total), nil, nil
		},
	},
	"all": {
		Name: "all",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			it := coreOf(heapArgs[0])
			for {
				fv, _, ok, err := it.Next()
				if err != nil {
					return 0, nil, err
				}
				if !ok {
					break
				}
				if fv == 0 {
					return boolWord(false), nil, nil
				}
			}
			return boolWord(true), nil, nil
		},
	},
	"any": {
		Name: "any",
		Fn: func(th *Thread, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
			it := coreOf(heapArgs[0])
			for {
				fv, _, ok, err := it.Next()
				if err != nil {
					return 0, nil, err
				}
				if !ok {
					break
				}
				if fv != 0 {
					return boolWord(true), nil, nil
				}
			}
			return boolWord(false), nil, nil
		},
	},
}
