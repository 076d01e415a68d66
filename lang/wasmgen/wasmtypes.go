package wasmgen

import (
	"fmt"

	"github.com/arbor-lang/arbor/lang/types"
)

// sectionType is a WASM module section id, in the canonical emission order
// spec §4.6 requires.
type sectionType byte

const (
	sectionTypeSec  sectionType = 0x01
	sectionImport   sectionType = 0x02
	sectionFunction sectionType = 0x03
	sectionTable    sectionType = 0x04
	sectionMemory   sectionType = 0x05
	sectionGlobal   sectionType = 0x06
	sectionExport   sectionType = 0x07
	sectionElement  sectionType = 0x09
	sectionCode     sectionType = 0x0a
	sectionData     sectionType = 0x0b
	sectionDataCnt  sectionType = 0x0c
)

const funcTypeTag = 0x60

// exportKind selects what an export-section entry refers to.
type exportKind byte

const (
	exportFunc   exportKind = 0x00
	exportMemory exportKind = 0x02
)

// numtype is a WASM value type, restricted to the four this emitter ever
// uses. Scalars map directly; every heap-shaped Arbor value (Str, Arr,
// Iter, Object) is carried as an i64 fat pointer — `(offset << 32) | size`.
type numtype byte

const (
	numVoid numtype = 0x40
	numF32  numtype = 0x7d
	numI64  numtype = 0x7e
	numI32  numtype = 0x7f
)

func (n numtype) String() string {
	switch n {
	case numVoid:
		return "void"
	case numF32:
		return "f32"
	case numI64:
		return "i64"
	case numI32:
		return "i32"
	default:
		return fmt.Sprintf("numtype(%#x)", byte(n))
	}
}

// size returns n's width in bytes, used to lay out record fields and array
// elements in linear memory.
func (n numtype) size() uint32 {
	switch n {
	case numF32, numI32:
		return 4
	case numI64:
		return 8
	default:
		return 0
	}
}

// constOp returns the i32.const/i64.const/f32.const opcode that pushes a
// literal of this numtype.
func (n numtype) constOp() opcode {
	switch n {
	case numI32:
		return opI32Const
	case numI64:
		return opI64Const
	case numF32:
		return opF32Const
	default:
		panic("wasmgen: no const op for " + n.String())
	}
}

func (n numtype) loadOp() opcode {
	switch n {
	case numI32:
		return opI32Load
	case numI64:
		return opI64Load
	case numF32:
		return opF32Load
	default:
		panic("wasmgen: no load op for " + n.String())
	}
}

func (n numtype) storeOp() opcode {
	switch n {
	case numI32:
		return opI32Store
	case numI64:
		return opI64Store
	case numF32:
		return opF32Store
	default:
		panic("wasmgen: no store op for " + n.String())
	}
}

// scalarNumtype maps a non-Maybe, non-Object-field Arbor type to its single
// WASM representation. Func and TypeDef are table indices (i32), unlike
// lang/machine's HeapShaped() which puts them on the heap stack — the WASM
// backend's notion of "heap-shaped" (needs a fat pointer) is narrower than
// the VM's (needs a Go-heap-allocated Value), so this function intentionally
// does not delegate to types.Type.HeapShaped().
func scalarNumtype(t *types.Type) (numtype, error) {
	switch t.Kind {
	case types.Int, types.Bool, types.Func, types.TypeDef:
		return numI32, nil
	case types.Float:
		return numF32, nil
	case types.Str, types.Arr, types.Iter, types.Object:
		return numI64, nil
	default:
		return 0, fmt.Errorf("wasmgen: type %s has no scalar WASM representation", t.Kind)
	}
}

// valueShape returns the sequence of WASM stack values one Arbor value of
// type t occupies. Every type is one value except Maybe(inner), which is a
// presence flag (i32) followed by inner's own shape — a deliberate
// multi-value representation distinct from lang/machine's single tagged
// MaybeFlat/MaybeHeap word, chosen because WASM has no tagged-union value
// and the alternative (packing a presence bit into a fat pointer already
// using all 64 bits) loses information for heap-shaped elements.
func valueShape(t *types.Type) ([]numtype, error) {
	if t.Kind == types.Maybe {
		inner, err := valueShape(t.Elem)
		if err != nil {
			return nil, err
		}
		return append([]numtype{numI32}, inner...), nil
	}
	n, err := scalarNumtype(t)
	if err != nil {
		return nil, err
	}
	return []numtype{n}, nil
}

// opcode is a WASM instruction opcode byte, restricted to the subset this
// emitter generates.
type opcode byte

const (
	opBlock        opcode = 0x02
	opLoop         opcode = 0x03
	opIf           opcode = 0x04
	opElse         opcode = 0x05
	opEnd          opcode = 0x0b
	opBr           opcode = 0x0c
	opBrIf         opcode = 0x0d
	opReturn       opcode = 0x0f
	opCall         opcode = 0x10
	opCallIndirect opcode = 0x11
	opDrop         opcode = 0x1a
	opLocalGet     opcode = 0x20
	opLocalSet     opcode = 0x21
	opLocalTee     opcode = 0x22
	opGlobalGet    opcode = 0x23
	opGlobalSet    opcode = 0x24
	opI32Load      opcode = 0x28
	opI64Load      opcode = 0x29
	opF32Load      opcode = 0x2a
	opI32Load8U    opcode = 0x2d
	opI32Store     opcode = 0x36
	opI64Store     opcode = 0x37
	opF32Store     opcode = 0x38
	opI32Store8    opcode = 0x3a
	opI32Const     opcode = 0x41
	opI64Const     opcode = 0x42
	opF32Const     opcode = 0x43
	opI32Eqz       opcode = 0x45
	opI32Eq        opcode = 0x46
	opI32Ne        opcode = 0x47
	opI32LtS       opcode = 0x48
	opI32GtS       opcode = 0x4a
	opI32LeS       opcode = 0x4c
	opI32GeS       opcode = 0x4e
	opI64Eq        opcode = 0x51
	opI64Ne        opcode = 0x52
	opF32Eq        opcode = 0x5b
	opF32Ne        opcode = 0x5c
	opF32Lt        opcode = 0x5d
	opF32Gt        opcode = 0x5e
	opF32Le        opcode = 0x5f
	opF32Ge        opcode = 0x60
	opI32Add       opcode = 0x6a
	opI32Sub       opcode = 0x6b
	opI32Mul       opcode = 0x6c
	opI32DivS      opcode = 0x6d
	opI32RemS      opcode = 0x6f
	opI32And       opcode = 0x71
	opI32Or        opcode = 0x72
	opI32Xor       opcode = 0x73
	opI64Add       opcode = 0x7c
	opI64Sub       opcode = 0x7d
	opI64Shl       opcode = 0x86
	opI64ShrU      opcode = 0x88
	opI64Or        opcode = 0x84
	opF32Abs       opcode = 0x8b
	opF32Neg       opcode = 0x8c
	opF32Sqrt      opcode = 0x91
	opUnreachable  opcode = 0x00
	opMiscPrefix   opcode = 0xfc
	opF32Add       opcode = 0x92
	opF32Sub       opcode = 0x93
	opF32Mul       opcode = 0x94
	opF32Div       opcode = 0x95
	opI32WrapI64   opcode = 0xa7
	opI32TruncF32S opcode = 0xa8
	opF32ConvertI32S opcode = 0xb2
	opI64ExtendI32U opcode = 0xad
	opI64ExtendI32S opcode = 0xac
)
