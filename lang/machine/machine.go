package machine

import (
	"fmt"
	"io"
	"os"

	"github.com/arbor-lang/arbor/lang/compiler"
	"github.com/arbor-lang/arbor/lang/parser"
	"github.com/arbor-lang/arbor/lang/resolver"
	"github.com/arbor-lang/arbor/lang/types"
	"github.com/google/uuid"
)

// Thread is one execution of a compiled program: its resource limits, its
// output sink, and the running step/depth counters Call checks against
// them. Unlike the teacher's Thread (which also threads a cancellation
// context and a Load callback through module loading), Arbor has no module
// system and no cooperative cancellation — a program either finishes,
// traps on a RuntimeError, or hits a Config limit.
type Thread struct {
	Stdout io.Writer

	cfg   Config
	steps uint64
	depth int
}

// NewThread creates a Thread bounded by cfg, writing builtin print output
// to os.Stdout.
func NewThread(cfg Config) *Thread {
	return &Thread{Stdout: os.Stdout, cfg: cfg}
}

// Interpret runs source end to end (scan, parse, resolve, compile, run)
// and formats its result per spec §6's "interpret(source) → TaggedValue |
// Error" embedder contract.
func (th *Thread) Interpret(source string) (string, error) {
	top, err := parser.ParseProgram("<input>", []byte(source), Globals)
	if err != nil {
		return "", err
	}
	prog, err := resolver.Resolve(top)
	if err != nil {
		return "", err
	}
	out, err := compiler.Compile(prog, uuid.New())
	if err != nil {
		return "", err
	}
	flat, heap, err := th.RunProgram(out)
	if err != nil {
		return "", err
	}
	return FormatValue(out.Main.RetType, flat, heap), nil
}

// RunProgram executes a compiled program's Main chunk with no arguments.
func (th *Thread) RunProgram(prog *compiler.Program) (uint64, Value, error) {
	return th.run(prog.Main, nil, nil, nil)
}

// callValue dispatches a value as a callee: a Closure re-enters run, a
// NativeFunction calls straight into Go, and a TypeDef builds an Object.
// Every functional operator (Map/Filter/Reduce/ZipMap) and the Call opcode
// itself share this one path.
func (th *Thread) callValue(fn Value, flatArgs []uint64, heapArgs []Value) (uint64, Value, bool, error) {
	switch f := fn.(type) {
	case *Closure:
		flat, heap, err := th.run(f.Chunk, f, flatArgs, heapArgs)
		return flat, heap, f.Chunk.RetType.HeapShaped(), err
	case *NativeFunction:
		flat, heap, err := f.Fn(th, flatArgs, heapArgs)
		return flat, heap, f.RetHeap, err
	case *TypeDef:
		obj := buildObject(f.Def, flatArgs, heapArgs)
		return 0, obj, true, nil
	default:
		return 0, nil, false, newRuntimeError(ErrNotCallable, "value of type %T is not callable", fn)
	}
}

func buildObject(def *types.Type, flatArgs []uint64, heapArgs []Value) *Object {
	fields := make([]ObjectField, len(def.Fields))
	fi, hi := 0, 0
	for i, f := range def.Fields {
		if f.Type.HeapShaped() {
			fields[i] = ObjectField{Heap: true, Val: heapArgs[hi]}
			hi++
		} else {
			fields[i] = ObjectField{Flat: flatArgs[fi]}
			fi++
		}
	}
	return &Object{Def: def, Fields: fields}
}

// run executes one call frame of chunk to completion (recursive calls
// re-enter run rather than threading an explicit frame stack, mirroring
// the teacher's CallInternal->run structure; Arbor has no defer/catch
// machinery to make that recursion awkward). flatArgs/heapArgs are already
// split and ordered exactly as the chunk's declared parameters expect.
func (th *Thread) run(chunk *compiler.Chunk, closure *Closure, flatArgs []uint64, heapArgs []Value) (uint64, Value, error) {
	th.depth++
	defer func() { th.depth-- }()
	if th.cfg.MaxCallDepth > 0 && th.depth > th.cfg.MaxCallDepth {
		return 0, nil, newRuntimeError(ErrCallDepth, "exceeded %d", th.cfg.MaxCallDepth)
	}

	flatZero := len(flatArgs)
	heapZero := len(heapArgs)
	selfSlot := -1
	if chunk.HasSelfSlot {
		selfSlot = heapZero
		heapZero++
	}

	flatStack := make([]uint64, flatZero+chunk.MaxFlatStack)
	heapStack := make([]Value, heapZero+chunk.MaxHeapStack)
	copy(flatStack, flatArgs)
	copy(heapStack, heapArgs)
	if selfSlot >= 0 {
		heapStack[selfSlot] = closure
	}
	flatSP, heapSP := flatZero, heapZero

	code := chunk.Code
	pc := 0
	for pc < len(code) {
		th.steps++
		if th.cfg.MaxSteps > 0 && th.steps > th.cfg.MaxSteps {
			return 0, nil, newRuntimeError(ErrStepLimit, "exceeded %d", th.cfg.MaxSteps)
		}

		op := compiler.OpCode(code[pc])
		pc++

		switch op {
		case compiler.NOP:
			// no-op

		case compiler.Return:
			if chunk.RetType.HeapShaped() {
				return 0, heapStack[heapSP-1], nil
			}
			return flatStack[flatSP-1], nil, nil

		case compiler.Jump:
			addr := readU16(code, pc)
			pc = int(addr)

		case compiler.JumpIfFalse:
			addr := readU16(code, pc)
			pc += 2
			flatSP--
			if flatStack[flatSP] == 0 {
				pc = int(addr)
			}

		case compiler.Call:
			nFlat := int(code[pc])
			nHeap := int(code[pc+1])
			pc += 2
			flatArgs := append([]uint64(nil), flatStack[flatSP-nFlat:flatSP]...)
			heapArgs := append([]Value(nil), heapStack[heapSP-nHeap:heapSP]...)
			flatSP -= nFlat
			heapSP -= nHeap
			heapSP--
			callee := heapStack[heapSP]
			flat, heap, isHeap, err := th.callValue(callee, flatArgs, heapArgs)
			if err != nil {
				return 0, nil, err
			}
			if isHeap {
				heapStack[heapSP] = heap
				heapSP++
			} else {
				flatStack[flatSP] = flat
				flatSP++
			}

		case compiler.EndExpr:
			n := int(readU16(code, pc))
			pc += 2
			target := flatZero + n
			flatStack[target] = flatStack[flatSP-1]
			flatSP = target + 1

		case compiler.EndHeapExpr:
			n := int(readU16(code, pc))
			pc += 2
			target := heapZero + n
			heapStack[target] = heapStack[heapSP-1]
			heapSP = target + 1

		case compiler.Constant:
			idx := readU16(code, pc)
			pc += 2
			flatStack[flatSP] = chunk.FlatConstants[idx]
			flatSP++

		case compiler.HeapConstant:
			idx := readU16(code, pc)
			pc += 2
			v, err := th.instantiateHeapConst(chunk, &chunk.HeapConstants[idx], flatStack, heapStack, &flatSP, &heapSP)
			if err != nil {
				return 0, nil, err
			}
			heapStack[heapSP] = v
			heapSP++

		case compiler.String:
			idx := readU16(code, pc)
			pc += 2
			heapStack[heapSP] = Str(chunk.HeapConstants[idx].Str)
			heapSP++

		case compiler.IntAdd, compiler.IntSub, compiler.IntMul, compiler.IntDiv:
			b := int64(flatStack[flatSP-1])
			a := int64(flatStack[flatSP-2])
			flatSP -= 2
			var r int64
			switch op {
			case compiler.IntAdd:
				r = a + b
			case compiler.IntSub:
				r = a - b
			case compiler.IntMul:
				r = a * b
			case compiler.IntDiv:
				if b == 0 {
					return 0, nil, newRuntimeError(ErrDivideByZero, "")
				}
				r = a / b
			}
			flatStack[flatSP] = uint64(r)
			flatSP++

		case compiler.IntNegate:
			a := int64(flatStack[flatSP-1])
			flatStack[flatSP-1] = uint64(-a)

		case compiler.FloatAdd, compiler.FloatSub, compiler.FloatMul, compiler.FloatDiv:
			b := floatBits(flatStack[flatSP-1])
			a := floatBits(flatStack[flatSP-2])
			flatSP -= 2
			var r float64
			switch op {
			case compiler.FloatAdd:
				r = a + b
			case compiler.FloatSub:
				r = a - b
			case compiler.FloatMul:
				r = a * b
			case compiler.FloatDiv:
				if b == 0 {
					return 0, nil, newRuntimeError(ErrDivideByZero, "")
				}
				r = a / b
			}
			flatStack[flatSP] = floatWord(r)
			flatSP++

		case compiler.FloatNegate:
			a := floatBits(flatStack[flatSP-1])
			flatStack[flatSP-1] = floatWord(-a)

		case compiler.IntEqual, compiler.IntNotEqual, compiler.IntLess, compiler.IntLessEqual, compiler.IntGreater, compiler.IntGreaterEqual:
			b := int64(flatStack[flatSP-1])
			a := int64(flatStack[flatSP-2])
			flatSP -= 2
			flatStack[flatSP] = boolWord(intCompare(op, a, b))
			flatSP++

		case compiler.FloatEqual, compiler.FloatNotEqual, compiler.FloatLess, compiler.FloatLessEqual, compiler.FloatGreater, compiler.FloatGreaterEqual:
			b := floatBits(flatStack[flatSP-1])
			a := floatBits(flatStack[flatSP-2])
			flatSP -= 2
			flatStack[flatSP] = boolWord(floatCompare(op, a, b))
			flatSP++

		case compiler.BoolEqual, compiler.BoolNotEqual:
			b := flatStack[flatSP-1] != 0
			a := flatStack[flatSP-2] != 0
			flatSP -= 2
			eq := a == b
			if op == compiler.BoolNotEqual {
				eq = !eq
			}
			flatStack[flatSP] = boolWord(eq)
			flatSP++

		case compiler.HeapEqual, compiler.HeapNotEqual:
			b := heapStack[heapSP-1]
			a := heapStack[heapSP-2]
			heapSP -= 2
			eq := valuesEqual(a, b)
			if op == compiler.HeapNotEqual {
				eq = !eq
			}
			flatStack[flatSP] = boolWord(eq)
			flatSP++

		case compiler.And, compiler.Or:
			b := flatStack[flatSP-1] != 0
			a := flatStack[flatSP-2] != 0
			flatSP -= 2
			var r bool
			if op == compiler.And {
				r = a && b
			} else {
				r = a || b
			}
			flatStack[flatSP] = boolWord(r)
			flatSP++

		case compiler.Not:
			flatStack[flatSP-1] = boolWord(flatStack[flatSP-1] == 0)

		case compiler.To:
			end := int64(flatStack[flatSP-1])
			start := int64(flatStack[flatSP-2])
			flatSP -= 2
			heapStack[heapSP] = &LazyIter{core: newRangeIterCore(start, end)}
			heapSP++

		case compiler.Concat:
			b := heapStack[heapSP-1]
			a := heapStack[heapSP-2]
			heapSP -= 2
			v, err := concatValues(a, b)
			if err != nil {
				return 0, nil, err
			}
			heapStack[heapSP] = v
			heapSP++

		case compiler.Collect:
			src := heapStack[heapSP-1]
			heapSP--
			v, err := collectIter(src)
			if err != nil {
				return 0, nil, err
			}
			heapStack[heapSP] = v
			heapSP++

		case compiler.Map:
			source := heapStack[heapSP-1]
			fn := heapStack[heapSP-2]
			heapSP -= 2
			heapStack[heapSP] = &LazyIter{core: newMapIterCore(th, fn, coreOf(source))}
			heapSP++

		case compiler.Filter:
			source := heapStack[heapSP-1]
			fn := heapStack[heapSP-2]
			heapSP -= 2
			heapStack[heapSP] = &LazyIter{core: newFilterIterCore(th, fn, coreOf(source))}
			heapSP++

		case compiler.ZipMap:
			n := int(code[pc])
			pc++
			sources := make([]anyIter, n)
			for i := n - 1; i >= 0; i-- {
				heapSP--
				sources[i] = coreOf(heapStack[heapSP])
			}
			heapSP--
			fn := heapStack[heapSP]
			heapStack[heapSP] = &LazyIter{core: newZipMapIterCore(th, fn, sources)}
			heapSP++

		case compiler.Reduce:
			v, isHeap, err := th.execReduce(heapStack, &heapSP, flatStack, &flatSP)
			if err != nil {
				return 0, nil, err
			}
			if isHeap {
				heapStack[heapSP] = v.(Value)
				heapSP++
			} else {
				flatStack[flatSP] = v.(uint64)
				flatSP++
			}

		case compiler.Len:
			v := heapStack[heapSP-1]
			heapSP--
			n, err := lenOf(v)
			if err != nil {
				return 0, nil, err
			}
			flatStack[flatSP] = uint64(n)
			flatSP++

		case compiler.WrapSome:
			v := flatStack[flatSP-1]
			flatSP--
			heapStack[heapSP] = MaybeFlat{Present: true, Val: v}
			heapSP++

		case compiler.WrapHeapSome:
			v := heapStack[heapSP-1]
			heapSP--
			heapStack[heapSP] = MaybeHeap{Present: true, Val: v}
			heapSP++

		case compiler.WrapNone:
			heapStack[heapSP] = MaybeFlat{Present: false}
			heapSP++

		case compiler.WrapHeapNone:
			heapStack[heapSP] = MaybeHeap{Present: false}
			heapSP++

		case compiler.Unwrap:
			def := flatStack[flatSP-1]
			m := heapStack[heapSP-1]
			flatSP--
			heapSP--
			mv, _ := m.(MaybeFlat)
			if mv.Present {
				flatStack[flatSP] = mv.Val
			} else {
				flatStack[flatSP] = def
			}
			flatSP++

		case compiler.UnwrapHeap:
			def := heapStack[heapSP-1]
			m := heapStack[heapSP-2]
			heapSP -= 2
			mv, _ := m.(MaybeHeap)
			if mv.Present {
				heapStack[heapSP] = mv.Val
			} else {
				heapStack[heapSP] = def
			}
			heapSP++

		case compiler.ArrayFlat:
			n := int(readU16(code, pc))
			pc += 2
			vals := append([]uint64(nil), flatStack[flatSP-n:flatSP]...)
			flatSP -= n
			heapStack[heapSP] = &ArrayFlat{Vals: vals}
			heapSP++

		case compiler.ArrayHeap:
			n := int(readU16(code, pc))
			pc += 2
			vals := append([]Value(nil), heapStack[heapSP-n:heapSP]...)
			heapSP -= n
			heapStack[heapSP] = &ArrayHeap{Vals: vals}
			heapSP++

		case compiler.GetField:
			idx := int(readU16(code, pc))
			pc += 2
			obj := heapStack[heapSP-1].(*Object)
			heapSP--
			f := obj.Fields[idx]
			if f.Heap {
				heapStack[heapSP] = f.Val
				heapSP++
			} else {
				flatStack[flatSP] = f.Flat
				flatSP++
			}

		case compiler.GetLocal:
			slot := int(readU16(code, pc))
			pc += 2
			flatStack[flatSP] = flatStack[slot]
			flatSP++

		case compiler.GetHeapLocal:
			slot := int(readU16(code, pc))
			pc += 2
			heapStack[heapSP] = heapStack[slot]
			heapSP++

		case compiler.SetLocal:
			slot := int(readU16(code, pc))
			pc += 2
			flatSP--
			flatStack[slot] = flatStack[flatSP]

		case compiler.SetHeapLocal:
			slot := int(readU16(code, pc))
			pc += 2
			heapSP--
			heapStack[slot] = heapStack[heapSP]

		case compiler.GetUpvalue:
			slot := int(readU16(code, pc))
			pc += 2
			flatStack[flatSP] = closure.FlatUpvalues[slot]
			flatSP++

		case compiler.GetHeapUpvalue:
			slot := int(readU16(code, pc))
			pc += 2
			heapStack[heapSP] = closure.HeapUpvalues[slot]
			heapSP++

		case compiler.SetUpvalue:
			slot := int(readU16(code, pc))
			pc += 2
			flatSP--
			closure.FlatUpvalues[slot] = flatStack[flatSP]

		case compiler.SetHeapUpvalue:
			slot := int(readU16(code, pc))
			pc += 2
			heapSP--
			closure.HeapUpvalues[slot] = heapStack[heapSP]

		default:
			return 0, nil, fmt.Errorf("unimplemented opcode %s", op)
		}
	}
	return 0, nil, fmt.Errorf("chunk %q fell off the end without a return", chunk.Name)
}

// instantiateHeapConst builds the runtime Value a HeapConstant instruction
// names: a builtin looked up by name (HeapConstFuncTemplate with no code of
// its own), a closure over freshly-compiled bytecode (consuming its
// captures off the top of the current stacks, in the same order
// compileFunctionValue pushed them), or a record constructor. flatSP/heapSP
// are updated in place to pop the consumed captures.
func (th *Thread) instantiateHeapConst(chunk *compiler.Chunk, hc *compiler.HeapConst, flatStack []uint64, heapStack []Value, flatSP, heapSP *int) (Value, error) {
	switch hc.Kind {
	case compiler.HeapConstTypeDef:
		return &TypeDef{Def: hc.TypeDef}, nil

	case compiler.HeapConstFuncTemplate:
		if hc.Chunk.Code == nil {
			fn, ok := Universe[hc.Chunk.Name]
			if !ok {
				return nil, newRuntimeError(ErrNotCallable, "unknown builtin %q", hc.Chunk.Name)
			}
			return fn, nil
		}

		nFlatCaptures, nHeapCaptures := 0, 0
		for _, uv := range hc.Upvalues {
			if uv.Heap {
				nHeapCaptures++
			} else {
				nFlatCaptures++
			}
		}
		flatBase := *flatSP - nFlatCaptures
		heapBase := *heapSP - nHeapCaptures
		flatUp := make([]uint64, 0, nFlatCaptures)
		heapUp := make([]Value, 0, nHeapCaptures)
		fi, hi := 0, 0
		for _, uv := range hc.Upvalues {
			if uv.Heap {
				heapUp = append(heapUp, heapStack[heapBase+hi])
				hi++
			} else {
				flatUp = append(flatUp, flatStack[flatBase+fi])
				fi++
			}
		}
		*flatSP = flatBase
		*heapSP = heapBase
		return &Closure{Chunk: hc.Chunk, FlatUpvalues: flatUp, HeapUpvalues: heapUp}, nil

	default:
		return nil, fmt.Errorf("unreachable heap constant kind %v", hc.Kind)
	}
}

func readU16(code []byte, pc int) uint16 {
	return uint16(code[pc])<<8 | uint16(code[pc+1])
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func intCompare(op compiler.OpCode, a, b int64) bool {
	switch op {
	case compiler.IntEqual:
		return a == b
	case compiler.IntNotEqual:
		return a != b
	case compiler.IntLess:
		return a < b
	case compiler.IntLessEqual:
		return a <= b
	case compiler.IntGreater:
		return a > b
	case compiler.IntGreaterEqual:
		return a >= b
	}
	return false
}

func floatCompare(op compiler.OpCode, a, b float64) bool {
	switch op {
	case compiler.FloatEqual:
		return a == b
	case compiler.FloatNotEqual:
		return a != b
	case compiler.FloatLess:
		return a < b
	case compiler.FloatLessEqual:
		return a <= b
	case compiler.FloatGreater:
		return a > b
	case compiler.FloatGreaterEqual:
		return a >= b
	}
	return false
}

// coreOf unwraps a heap value already known (by static typing) to be a
// LazyIter, or wraps a bare Array as a fresh array walk — Map/Filter/ZipMap
// accept either an Iter or an Arr as their source per the language's
// implicit array-to-iterator coercion.
func coreOf(v Value) anyIter {
	switch vv := v.(type) {
	case *LazyIter:
		return vv.core
	default:
		return newArrayIterCore(vv)
	}
}

func isCallable(v Value) bool {
	switch v.(type) {
	case *Closure, *NativeFunction, *TypeDef:
		return true
	default:
		return false
	}
}

func collectIter(v Value) (Value, error) {
	it, ok := v.(*LazyIter)
	if !ok {
		return v, nil
	}
	if arr, ok := it.core.(*arrayIterCore); ok {
		if collected, ok := arr.collectUnread(); ok {
			return collected, nil
		}
	}
	if it.core.IsHeap() {
		var vals []Value
		for {
			_, hv, ok, err := it.core.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			vals = append(vals, hv)
		}
		return &ArrayHeap{Vals: vals}, nil
	}
	var vals []uint64
	for {
		fv, _, ok, err := it.core.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		vals = append(vals, fv)
	}
	return &ArrayFlat{Vals: vals}, nil
}

func concatValues(a, b Value) (Value, error) {
	switch av := a.(type) {
	case Str:
		bv, ok := b.(Str)
		if !ok {
			return nil, newRuntimeError(ErrNotCallable, "concat type mismatch")
		}
		return av + bv, nil
	case *ArrayFlat:
		bv := b.(*ArrayFlat)
		vals := make([]uint64, 0, len(av.Vals)+len(bv.Vals))
		vals = append(vals, av.Vals...)
		vals = append(vals, bv.Vals...)
		return &ArrayFlat{Vals: vals}, nil
	case *ArrayHeap:
		bv := b.(*ArrayHeap)
		vals := make([]Value, 0, len(av.Vals)+len(bv.Vals))
		vals = append(vals, av.Vals...)
		vals = append(vals, bv.Vals...)
		return &ArrayHeap{Vals: vals}, nil
	default:
		return nil, newRuntimeError(ErrNotCallable, "concat on non-sequence value")
	}
}

func lenOf(v Value) (int, error) {
	switch vv := v.(type) {
	case Str:
		return len(vv), nil
	case *ArrayFlat:
		return len(vv.Vals), nil
	case *ArrayHeap:
		return len(vv.Vals), nil
	case *LazyIter:
		n := 0
		for {
			_, _, ok, err := vv.core.Next()
			if err != nil {
				return 0, err
			}
			if !ok {
				return n, nil
			}
			n++
		}
	default:
		return 0, newRuntimeError(ErrNotCallable, "len on non-sequence value")
	}
}

// execReduce implements the Reduce opcode: fold fn across source starting
// from init, returning the final accumulator. Reduce is scan-then-take-
// last, so it drives an internal scanIterCore to completion rather than
// exposing one; the opcode carries no operand naming the accumulator's
// flat-vs-heap shape (compileReduce emits the identical Reduce instruction
// either way), so the layout is read off the stack itself: a flat-shaped
// init never reaches the heap stack at all, leaving exactly two heap
// values (fn, source) under the top; a heap-shaped init leaves three
// (fn, source, init). Checking whether the value just under the top is
// itself callable distinguishes the two cases without needing fn's
// location known in advance.
func (th *Thread) execReduce(heapStack []Value, heapSP *int, flatStack []uint64, flatSP *int) (any, bool, error) {
	accHeap := !isCallable(heapStack[*heapSP-2])
	var flatInit uint64
	var heapInit Value
	if accHeap {
		heapInit = heapStack[*heapSP-1]
		*heapSP--
	} else {
		flatInit = flatStack[*flatSP-1]
		*flatSP--
	}
	source := heapStack[*heapSP-1]
	fn := heapStack[*heapSP-2]
	*heapSP -= 2

	scan := newScanIterCore(th, fn, coreOf(source), flatInit, heapInit, accHeap)
	var lastFlat uint64
	var lastHeap Value
	gotAny := false
	for {
		f, h, ok, err := scan.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		lastFlat, lastHeap = f, h
		gotAny = true
	}
	if !gotAny {
		if accHeap {
			return heapInit, true, nil
		}
		return flatInit, false, nil
	}
	if scan.accHeap {
		return lastHeap, true, nil
	}
	return lastFlat, false, nil
}
