package compiler

import "github.com/arbor-lang/arbor/lang/types"

// HeapConstKind distinguishes the three payload shapes the heap constant
// pool carries (spec §4.4: "strings, nested functions, record type
// descriptors").
type HeapConstKind uint8

const (
	HeapConstString HeapConstKind = iota
	HeapConstFuncTemplate
	HeapConstTypeDef
)

// Upvalue records one free variable a nested function template captures
// from its enclosing chunk, by the slot it must be read from in the
// enclosing frame at the moment the closure is instantiated.
type Upvalue struct {
	Name string
	Heap bool // true if the captured value lives on the heap stack
	Slot int  // slot index in the *enclosing* chunk's locals (or its own Upvalues)
	// FromParentUpvalue is true when the enclosing chunk only has this
	// name as one of its own upvalues (a doubly-nested closure), so the
	// capture must read the parent's upvalue array rather than its locals.
	FromParentUpvalue bool
}

// HeapConst is one entry of a Chunk's heap constant pool.
type HeapConst struct {
	Kind HeapConstKind

	Str string // HeapConstString

	Chunk    *Chunk         // HeapConstFuncTemplate
	Upvalues []Upvalue      // HeapConstFuncTemplate: captures to read when instantiating

	TypeDef *types.Type // HeapConstTypeDef: the Object type this constructor builds
}

// Chunk is one compiled function body: its instruction stream plus the two
// constant pools and line-number metadata (spec §4.4).
type Chunk struct {
	Name         string // declared name, or "" for an anonymous literal
	ExpandedName string // monomorphized name, equal to Name when not generic

	Code []byte

	FlatConstants []uint64
	HeapConstants []HeapConst

	// Lines[pc] is the source line the instruction starting at byte pc
	// belongs to; built in parallel with Code.
	Lines []int

	NumFlatParams int
	NumHeapParams int

	// HasSelfSlot is true when the chunk's body refers to its own closure
	// for recursion; lang/machine must push the closure's own reference
	// into the heap slot just past the declared parameters when it sets
	// up this chunk's call frame.
	HasSelfSlot bool

	MaxFlatStack int
	MaxHeapStack int

	RetType *types.Type
}

func newChunk(name, expandedName string) *Chunk {
	return &Chunk{Name: name, ExpandedName: expandedName}
}

func (c *Chunk) addFlatConstant(v uint64) int {
	for i, existing := range c.FlatConstants {
		if existing == v {
			return i
		}
	}
	c.FlatConstants = append(c.FlatConstants, v)
	return len(c.FlatConstants) - 1
}

func (c *Chunk) addStringConstant(s string) int {
	for i, hc := range c.HeapConstants {
		if hc.Kind == HeapConstString && hc.Str == s {
			return i
		}
	}
	c.HeapConstants = append(c.HeapConstants, HeapConst{Kind: HeapConstString, Str: s})
	return len(c.HeapConstants) - 1
}

func (c *Chunk) addFuncTemplate(fn *Chunk, upvalues []Upvalue) int {
	c.HeapConstants = append(c.HeapConstants, HeapConst{
		Kind: HeapConstFuncTemplate, Chunk: fn, Upvalues: upvalues,
	})
	return len(c.HeapConstants) - 1
}

// addNativeConstant records a reference to a builtin by name: a
// HeapConstFuncTemplate entry with no code of its own (Code is left nil),
// resolved against lang/machine's universe table when the program loads.
func (c *Chunk) addNativeConstant(name string) int {
	for i, hc := range c.HeapConstants {
		if hc.Kind == HeapConstFuncTemplate && hc.Chunk != nil && hc.Chunk.Code == nil && hc.Chunk.Name == name {
			return i
		}
	}
	c.HeapConstants = append(c.HeapConstants, HeapConst{
		Kind: HeapConstFuncTemplate, Chunk: &Chunk{Name: name, ExpandedName: name},
	})
	return len(c.HeapConstants) - 1
}

func (c *Chunk) addTypeDefConstant(t *types.Type) int {
	c.HeapConstants = append(c.HeapConstants, HeapConst{Kind: HeapConstTypeDef, TypeDef: t})
	return len(c.HeapConstants) - 1
}

func (c *Chunk) writeOp(op OpCode, line int) int {
	pos := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Lines = append(c.Lines, line)
	return pos
}

// writeUint16 appends a big-endian uint16 operand and its line entries,
// padding Lines so it always has exactly one entry per Code byte.
func (c *Chunk) writeUint16(v uint16, line int) {
	c.Code = append(c.Code, byte(v>>8), byte(v))
	c.Lines = append(c.Lines, line, line)
}

func (c *Chunk) writeByte(v byte, line int) {
	c.Code = append(c.Code, v)
	c.Lines = append(c.Lines, line)
}

func (c *Chunk) patchUint16(pos int, v uint16) {
	c.Code[pos] = byte(v >> 8)
	c.Code[pos+1] = byte(v)
}
