// Package compiler lowers a resolved program (lang/resolver) into bytecode
// Chunks executable by the stack machine in lang/machine (spec §4.4).
package compiler

import "fmt"

// Version is bumped whenever the bytecode format changes, so a cached
// compiled program can be rejected rather than misinterpreted.
const Version = 1

// OpCode is the closed instruction set of the bytecode compiler (spec
// §4.4). Operands immediately follow the opcode byte, each a big-endian
// uint16 unless listed below as one byte (Call's two counts and ZipMap's
// source count; see operandWidth); opcodes with no listed operand below
// take none.
type OpCode uint8

const (
	NOP OpCode = iota

	// stack / control
	Return
	Jump         // Jump<addr:2>
	JumpIfFalse  // JumpIfFalse<addr:2> — pops a flat Bool
	Call         // Call<nFlatArgs:1><nHeapArgs:1>
	EndExpr      // EndExpr<n:2> — cut the flat stack back to frame depth n, keeping the top value above it
	EndHeapExpr  // EndHeapExpr<n:2> — cut the heap stack back to frame depth n, keeping the top value above it

	// constants
	Constant     // Constant<idx:2> — push FlatConstants[idx]
	HeapConstant // HeapConstant<idx:2> — push/instantiate HeapConstants[idx]
	String       // String<idx:2> — push a Str built from HeapConstants[idx].Str

	// arithmetic, Int
	IntAdd
	IntSub
	IntMul
	IntDiv
	IntNegate

	// arithmetic, Float
	FloatAdd
	FloatSub
	FloatMul
	FloatDiv
	FloatNegate

	// comparisons, Int
	IntEqual
	IntNotEqual
	IntLess
	IntLessEqual
	IntGreater
	IntGreaterEqual

	// comparisons, Float
	FloatEqual
	FloatNotEqual
	FloatLess
	FloatLessEqual
	FloatGreater
	FloatGreaterEqual

	// comparisons, Bool
	BoolEqual
	BoolNotEqual

	// comparisons, heap values (Str/Arr/Maybe/Object structural,
	// Closure/NativeFunction by reference identity)
	HeapEqual
	HeapNotEqual

	// logical
	And
	Or
	Not

	// range
	To // To — pops two flat Ints, pushes a LazyIter(flat) RangeIter

	// sequence ops
	Concat  // Concat — pops two heap values (Str+Str or Arr+Arr), pushes one
	Collect // Collect — drains a LazyIter into an Arr
	Map     // Map — pops (closure, source iter), pushes MapIter
	Reduce  // Reduce — pops (closure, source iter, flat-or-heap init), pushes final accumulator
	Filter  // Filter — pops (closure, source iter), pushes FilterIter
	ZipMap  // ZipMap<n:1> — pops closure + n source iters, pushes ZipMapIter
	Len     // Len — pops one heap value (Str/Arr/Iter), pushes a flat Int

	// maybe
	WrapSome     // WrapSome — wraps the top flat value in Maybe(flat)
	WrapHeapSome // WrapHeapSome — wraps the top heap value in MaybeHeap
	WrapNone     // WrapNone — pushes a flat-shaped Maybe's empty value, no input
	WrapHeapNone // WrapHeapNone — pushes a heap-shaped Maybe's empty value, no input
	Unwrap       // Unwrap — pops (maybe-flat, default-flat), pushes flat
	UnwrapHeap   // UnwrapHeap — pops (maybe-heap, default-heap), pushes heap

	// arrays
	ArrayFlat // ArrayFlat<n:2> — pop n flat values, push one ArrayFlat heap value
	ArrayHeap // ArrayHeap<n:2> — pop n heap values, push one ArrayHeap heap value

	// records
	GetField // GetField<fieldIdx:2> — pops a heap Object, pushes the field's flat-or-heap value

	// locals
	GetLocal        // GetLocal<slot:2>
	SetLocal        // SetLocal<slot:2>
	GetHeapLocal    // GetHeapLocal<slot:2>
	SetHeapLocal    // SetHeapLocal<slot:2>
	GetUpvalue      // GetUpvalue<slot:2>
	SetUpvalue      // SetUpvalue<slot:2>
	GetHeapUpvalue  // GetHeapUpvalue<slot:2>
	SetHeapUpvalue  // SetHeapUpvalue<slot:2>
)

// OperandWidth exposes operandWidth to lang/machine, which decodes the same
// stream this package encodes but lives in a different package.
func OperandWidth(op OpCode) int { return operandWidth(op) }

// operandWidth returns the number of operand bytes following op's opcode
// byte. Call is the one irregular case: two one-byte counts rather than a
// single two-byte index; ZipMap takes a single one-byte count. Every other
// opcode either always carries a big-endian uint16 operand or never carries
// one at all — listed explicitly here since the two groups are interleaved
// throughout the enum, not separated by a single cutoff value.
func operandWidth(op OpCode) int {
	switch op {
	case Call:
		return 2
	case ZipMap:
		return 1
	case Jump, JumpIfFalse, EndExpr, EndHeapExpr,
		Constant, HeapConstant, String,
		ArrayFlat, ArrayHeap, GetField,
		GetLocal, SetLocal, GetHeapLocal, SetHeapLocal,
		GetUpvalue, SetUpvalue, GetHeapUpvalue, SetHeapUpvalue:
		return 2
	default:
		return 0
	}
}

var opcodeNames = [...]string{
	NOP:               "nop",
	Return:            "return",
	Jump:              "jump",
	JumpIfFalse:       "jumpiffalse",
	Call:              "call",
	EndExpr:           "endexpr",
	EndHeapExpr:       "endheapexpr",
	Constant:          "constant",
	HeapConstant:      "heapconstant",
	String:            "string",
	IntAdd:            "int.add",
	IntSub:            "int.sub",
	IntMul:            "int.mul",
	IntDiv:            "int.div",
	IntNegate:         "int.negate",
	FloatAdd:          "float.add",
	FloatSub:          "float.sub",
	FloatMul:          "float.mul",
	FloatDiv:          "float.div",
	FloatNegate:       "float.negate",
	IntEqual:          "int.eq",
	IntNotEqual:       "int.neq",
	IntLess:           "int.lt",
	IntLessEqual:      "int.le",
	IntGreater:        "int.gt",
	IntGreaterEqual:   "int.ge",
	FloatEqual:        "float.eq",
	FloatNotEqual:     "float.neq",
	FloatLess:         "float.lt",
	FloatLessEqual:    "float.le",
	FloatGreater:      "float.gt",
	FloatGreaterEqual: "float.ge",
	BoolEqual:         "bool.eq",
	BoolNotEqual:      "bool.neq",
	HeapEqual:         "heap.eq",
	HeapNotEqual:      "heap.neq",
	And:               "and",
	Or:                "or",
	Not:               "not",
	To:                "to",
	Concat:            "concat",
	Collect:           "collect",
	Map:               "map",
	Reduce:            "reduce",
	Filter:            "filter",
	ZipMap:            "zipmap",
	Len:               "len",
	WrapSome:          "wrapsome",
	WrapHeapSome:      "wrapheapsome",
	WrapNone:          "wrapnone",
	WrapHeapNone:      "wrapheapnone",
	Unwrap:            "unwrap",
	UnwrapHeap:        "unwrapheap",
	ArrayFlat:         "arrayflat",
	ArrayHeap:         "arrayheap",
	GetField:          "getfield",
	GetLocal:          "getlocal",
	SetLocal:          "setlocal",
	GetHeapLocal:      "getheaplocal",
	SetHeapLocal:      "setheaplocal",
	GetUpvalue:        "getupvalue",
	SetUpvalue:        "setupvalue",
	GetHeapUpvalue:    "getheapupvalue",
	SetHeapUpvalue:    "setheapupvalue",
}

func (op OpCode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("illegal opcode (%d)", op)
}
