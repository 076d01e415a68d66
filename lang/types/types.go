// Package types implements Arbor's structural type system (spec §3 "Type").
// Types are compared by value, not by identity, and a Type's Key is used as
// the hash/interning key throughout the resolver and compiler, including the
// swiss-map-backed monomorphization cache (SPEC_FULL.md §C.3/C.7).
package types

import (
	"fmt"
	"strings"
)

// Kind is the closed set of type constructors in the language.
type Kind uint8

const (
	Int Kind = iota
	Float
	Str
	Bool
	Arr
	Iter
	Maybe
	Func
	TypeDef
	Object
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Str:
		return "Str"
	case Bool:
		return "Bool"
	case Arr:
		return "Arr"
	case Iter:
		return "Iter"
	case Maybe:
		return "Maybe"
	case Func:
		return "Func"
	case TypeDef:
		return "TypeDef"
	case Object:
		return "Object"
	}
	return "?"
}

// Field is one (name, type) pair of an Object type.
type Field struct {
	Name string
	Type *Type
}

// Type is a structural description of an Arbor value's shape. Two Types
// compare equal (via Equal) iff they describe the same shape, regardless of
// the Go pointers involved; Key returns a canonical string usable as a map
// key / hash, so structurally-equal types always produce the same Key.
type Type struct {
	Kind Kind

	// Arr, Iter, Maybe
	Elem *Type

	// Func, TypeDef
	Args []*Type
	Ret  *Type

	// Object
	Name   string
	Fields []Field
}

// Scalar constructors, shared (scalars carry no payload so a single
// instance per kind is safe to reuse).
var (
	TInt   = &Type{Kind: Int}
	TFloat = &Type{Kind: Float}
	TStr   = &Type{Kind: Str}
	TBool  = &Type{Kind: Bool}
)

// NewArr returns Arr(elem).
func NewArr(elem *Type) *Type { return &Type{Kind: Arr, Elem: elem} }

// NewIter returns Iter(elem).
func NewIter(elem *Type) *Type { return &Type{Kind: Iter, Elem: elem} }

// NewMaybe returns Maybe(elem).
func NewMaybe(elem *Type) *Type { return &Type{Kind: Maybe, Elem: elem} }

// NewFunc returns Func(args, ret).
func NewFunc(args []*Type, ret *Type) *Type { return &Type{Kind: Func, Args: args, Ret: ret} }

// NewTypeDef returns TypeDef(args, ret) — the type of a record constructor,
// where Ret is always the corresponding Object type.
func NewTypeDef(args []*Type, ret *Type) *Type { return &Type{Kind: TypeDef, Args: args, Ret: ret} }

// NewObject returns Object(name, fields).
func NewObject(name string, fields []Field) *Type { return &Type{Kind: Object, Name: name, Fields: fields} }

// HeapShaped reports whether values of this type live on the heap stack /
// participate in the fat-pointer WASM representation, per spec §3.
func (t *Type) HeapShaped() bool {
	switch t.Kind {
	case Str, Arr, Iter, Maybe, Func, TypeDef, Object:
		return true
	default:
		return false
	}
}

// Equal reports whether t and u describe the same structural type.
func (t *Type) Equal(u *Type) bool {
	if t == u {
		return true
	}
	if t == nil || u == nil || t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case Int, Float, Str, Bool:
		return true
	case Arr, Iter, Maybe:
		return t.Elem.Equal(u.Elem)
	case Func, TypeDef:
		if !t.Ret.Equal(u.Ret) || len(t.Args) != len(u.Args) {
			return false
		}
		for i, a := range t.Args {
			if !a.Equal(u.Args[i]) {
				return false
			}
		}
		return true
	case Object:
		if t.Name != u.Name || len(t.Fields) != len(u.Fields) {
			return false
		}
		for i, f := range t.Fields {
			if f.Name != u.Fields[i].Name || !f.Type.Equal(u.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// Key returns a canonical string encoding of t, suitable as a hash/interning
// key (used by the resolver's and compiler's swiss.Map caches).
func (t *Type) Key() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case Int, Float, Str, Bool:
		return t.Kind.String()
	case Arr, Iter, Maybe:
		return t.Kind.String() + "(" + t.Elem.Key() + ")"
	case Func, TypeDef:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.Key()
		}
		return fmt.Sprintf("%s(%s)->%s", t.Kind, strings.Join(args, ","), t.Ret.Key())
	case Object:
		fields := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = f.Name + ":" + f.Type.Key()
		}
		return fmt.Sprintf("Object %s{%s}", t.Name, strings.Join(fields, ","))
	}
	return "?"
}

func (t *Type) String() string { return t.Key() }

// FieldType returns the type of the named field and true, or (nil, false) if
// the Object type has no such field.
func (t *Type) FieldType(name string) (*Type, bool) {
	if t.Kind != Object {
		return nil, false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// ExpandedName builds the monomorphized binding name "base[T1,T2,...]" used
// uniformly by the resolver (binding), the compiler (chunk naming) and the
// WASM emitter (table/helper naming) — spec §4.3.
func ExpandedName(base string, args []*Type) string {
	if len(args) == 0 {
		return base
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Key()
	}
	return base + "[" + strings.Join(parts, ",") + "]"
}
