// Package machine is the bytecode virtual machine that executes a
// lang/compiler.Program (spec §4.5). Unlike the teacher's Starlark-derived
// machine, Arbor is fully statically typed before it ever reaches here, so
// there is no dynamic-language Value taxonomy of Callable/Indexable/Mapping
// interfaces and no runtime type tags baked into values: the closed set of
// concrete Go types below is exactly the closed set of heap-shaped value
// tags spec §4.5 names, and callers that need to format a result walk the
// statically-known *types.Type alongside it instead of inspecting a tag.
package machine

import (
	"fmt"
	"math"
	"strings"

	"github.com/arbor-lang/arbor/lang/compiler"
	"github.com/arbor-lang/arbor/lang/types"
)

// Value is any runtime value that lives on the heap stack: flat scalars
// (Int/Float/Bool) never implement it, since they're passed around as raw
// uint64 words on the parallel flat stack instead (spec §4.5's dual-stack
// design, §9's "never box a scalar" strategy).
type Value interface {
	arborValue()
	String() string
}

// Str is Arbor's String value: immutable, compared and concatenated by
// content (spec §4.5 Concat/HeapEqual).
type Str string

func (Str) arborValue()      {}
func (s Str) String() string { return string(s) }

// ArrayFlat is an Arr(T) whose element type T is flat-shaped: elements are
// raw uint64 words the reader must reinterpret against T (Int, Float or
// Bool) using the same static-type-directed formatting every embedder
// result uses.
type ArrayFlat struct {
	Vals []uint64
}

func (*ArrayFlat) arborValue() {}
func (a *ArrayFlat) String() string {
	return fmt.Sprintf("ArrayFlat(%d elems)", len(a.Vals))
}

// ArrayHeap is an Arr(T) whose element type T is itself heap-shaped.
type ArrayHeap struct {
	Vals []Value
}

func (*ArrayHeap) arborValue() {}
func (a *ArrayHeap) String() string {
	parts := make([]string, len(a.Vals))
	for i, v := range a.Vals {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MaybeFlat is a Maybe(T) whose element type T is flat-shaped. Val is
// meaningless when Present is false (spec §9: "payload never read for
// None").
type MaybeFlat struct {
	Present bool
	Val     uint64
}

func (MaybeFlat) arborValue() {}
func (m MaybeFlat) String() string {
	if !m.Present {
		return "{}"
	}
	return fmt.Sprintf("Some(%d)", m.Val)
}

// MaybeHeap is a Maybe(T) whose element type T is itself heap-shaped.
type MaybeHeap struct {
	Present bool
	Val     Value
}

func (MaybeHeap) arborValue() {}
func (m MaybeHeap) String() string {
	if !m.Present {
		return "{}"
	}
	return "Some(" + m.Val.String() + ")"
}

// Closure is a compiled function paired with the upvalues it captured at
// creation time (by value, never by reference: Arbor has no mutable
// bindings for a cell-style capture to matter, spec §9). FlatUpvalues and
// HeapUpvalues are indexed exactly as GetUpvalue/GetHeapUpvalue's slot
// operand addresses them.
type Closure struct {
	Chunk        *compiler.Chunk
	FlatUpvalues []uint64
	HeapUpvalues []Value
}

func (*Closure) arborValue() {}
func (c *Closure) String() string {
	if c.Chunk.Name != "" {
		return "<closure " + c.Chunk.Name + ">"
	}
	return "<closure>"
}

// NativeFunction is a builtin implemented in Go rather than compiled
// bytecode. RetHeap tells a caller (Map/Reduce/ZipMap's iterator cores)
// what shape its result takes without having a Chunk.RetType to consult,
// since natives carry no compiled chunk.
type NativeFunction struct {
	Name    string
	RetHeap bool
	Fn      func(th *Thread, flatArgs []uint64, heapArgs []Value) (flat uint64, heap Value, err error)
}

func (*NativeFunction) arborValue() {}
func (n *NativeFunction) String() string { return "<native " + n.Name + ">" }

// TypeDef is a record constructor value: calling it builds an Object of
// shape Def (spec §4.4 compileTypeDef stores the Object type itself, not a
// wrapper, as the HeapConstTypeDef payload).
type TypeDef struct {
	Def *types.Type
}

func (*TypeDef) arborValue() {}
func (t *TypeDef) String() string { return "<type " + t.Def.Name + ">" }

// ObjectField is one field of an Object, addressed directly by the
// compiler's GetField<fieldIdx> operand (fieldIndex indexes into
// types.Type.Fields without a separate flat/heap split, so Object stores
// its fields in that same single unified order rather than two parallel
// flat/heap slices).
type ObjectField struct {
	Heap bool
	Flat uint64
	Val  Value
}

// Object is a record value built by calling a TypeDef.
type Object struct {
	Def    *types.Type
	Fields []ObjectField
}

func (*Object) arborValue() {}
func (o *Object) String() string {
	parts := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		name := o.Def.Fields[i].Name
		if f.Heap {
			parts[i] = name + ": " + f.Val.String()
		} else {
			parts[i] = fmt.Sprintf("%s: %d", name, f.Flat)
		}
	}
	return o.Def.Name + "{" + strings.Join(parts, ", ") + "}"
}

// LazyIter is the single runtime wrapper for every spec §4.5 iterator
// variant (ArrayIter/RangeIter/MapIter/FilterIter/ZipMapIter and the
// Reduce-internal scan): the container is always heap-shaped, and the
// flat/heap distinction the spec draws between "LazyIter(flat)" and
// "LazyIter(heap)" is about the shape of what Next yields, carried by the
// core's own IsHeap, not by two separate Go types.
type LazyIter struct {
	core anyIter
}

func (*LazyIter) arborValue() {}
func (it *LazyIter) String() string { return "<iter>" }

// anyIter is the shape-erased core every iterator variant implements.
type anyIter interface {
	// IsHeap reports whether Next yields a heap value (heap, ok) or a flat
	// one (flat, ok); the other return is always the zero value.
	IsHeap() bool
	Next() (flat uint64, heap Value, ok bool, err error)
}

func flatBitsEqual(a, b uint64) bool { return a == b }

func floatBits(v uint64) float64 { return math.Float64frombits(v) }
func floatWord(f float64) uint64 { return math.Float64bits(f) }

// valuesEqual implements HeapEqual's structural comparison (spec §4.5):
// Str/Array/Maybe/Object compare by content (recursing into heap-shaped
// elements), Closure/NativeFunction/TypeDef/LazyIter compare by reference
// identity, since the language gives no other meaning to comparing a
// function or a stream.
func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case *ArrayFlat:
		bv, ok := b.(*ArrayFlat)
		if !ok || len(av.Vals) != len(bv.Vals) {
			return false
		}
		for i, v := range av.Vals {
			if !flatBitsEqual(v, bv.Vals[i]) {
				return false
			}
		}
		return true
	case *ArrayHeap:
		bv, ok := b.(*ArrayHeap)
		if !ok || len(av.Vals) != len(bv.Vals) {
			return false
		}
		for i, v := range av.Vals {
			if !valuesEqual(v, bv.Vals[i]) {
				return false
			}
		}
		return true
	case MaybeFlat:
		bv, ok := b.(MaybeFlat)
		if !ok || av.Present != bv.Present {
			return false
		}
		return !av.Present || flatBitsEqual(av.Val, bv.Val)
	case MaybeHeap:
		bv, ok := b.(MaybeHeap)
		if !ok || av.Present != bv.Present {
			return false
		}
		return !av.Present || valuesEqual(av.Val, bv.Val)
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Def != bv.Def && !av.Def.Equal(bv.Def) {
			return false
		}
		if len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i, f := range av.Fields {
			g := bv.Fields[i]
			if f.Heap != g.Heap {
				return false
			}
			if f.Heap {
				if !valuesEqual(f.Val, g.Val) {
					return false
				}
			} else if !flatBitsEqual(f.Flat, g.Flat) {
				return false
			}
		}
		return true
	default:
		// Closure, NativeFunction, TypeDef, LazyIter: reference identity.
		return a == b
	}
}
