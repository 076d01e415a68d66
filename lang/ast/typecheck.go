package ast

import (
	"fmt"
	"strings"

	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// Binding is what Resolve returns for a name: its type, and — when the name
// is bound to a function literal — that literal, so a call site can
// monomorphize an as-yet-untyped parameter list. Type is nil exactly when
// the binding is a generic function literal that has not been instantiated
// yet; every other binding always carries a concrete Type.
type Binding struct {
	Type *types.Type
	Func *FunctionExpr
}

func errorf(n Node, format string, args ...interface{}) error {
	return fmt.Errorf("line %d: "+format, append([]interface{}{n.Span()}, args...)...)
}

// Resolve climbs the parent chain from origin looking for a binding of
// name, honoring each kind's own scoping rule: a Block/TopLevel only sees
// assignments strictly before the child it was reached through (no forward
// references), and a FunctionExpr sees its own parameters plus, when
// present, its own recursive self-binding.
func Resolve(origin Node, name string) (Binding, error) {
	child := origin
	for p := origin.ParentNode(); p != nil; p = p.ParentNode() {
		if b, ok := lookupIntroduced(p, name, child); ok {
			return b, nil
		}
		child = p
	}
	return Binding{}, errorf(origin, "undefined name %q%s", name, knownBuiltinsSuffix(origin))
}

// knownBuiltinsSuffix climbs from n to its enclosing TopLevel and appends a
// sorted listing of its builtins, to help diagnose a typo'd name. The
// listing is sorted (via GlobalNames) rather than ranged directly off the
// map, since an unsorted listing would vary from run to run and make an
// error message an unreliable thing to diff or grep in a test fixture.
func knownBuiltinsSuffix(n Node) string {
	for ; n != nil; n = n.ParentNode() {
		if tl, ok := n.(*TopLevel); ok {
			names := GlobalNames(tl.Globals)
			if len(names) == 0 {
				return ""
			}
			return fmt.Sprintf(" (known builtins: %s)", strings.Join(names, ", "))
		}
	}
	return ""
}

func lookupIntroduced(p Node, name string, child Node) (Binding, bool) {
	switch v := p.(type) {
	case *TopLevel:
		if idx := indexOf(v.Exprs, child); idx >= 0 {
			if b, ok := lastAssignmentBefore(v.Exprs, idx, name); ok {
				return b, true
			}
		}
		if t, ok := v.Globals[name]; ok {
			return Binding{Type: t}, true
		}
		return Binding{}, false
	case *Block:
		if idx := indexOf(v.Exprs, child); idx >= 0 {
			return lastAssignmentBefore(v.Exprs, idx, name)
		}
		return Binding{}, false
	case *FunctionExpr:
		for _, pm := range v.Params {
			if pm.Name == name {
				return Binding{Type: pm.Type()}, true
			}
		}
		if v.SelfName != "" && v.SelfName == name && v.SelfType != nil {
			return Binding{Type: v.SelfType, Func: v}, true
		}
		return Binding{}, false
	default:
		return Binding{}, false
	}
}

func indexOf(list []Expr, child Node) int {
	for i, e := range list {
		if Node(e) == child {
			return i
		}
	}
	return -1
}

func lastAssignmentBefore(exprs []Expr, idx int, name string) (Binding, bool) {
	for i := idx - 1; i >= 0; i-- {
		a, ok := exprs[i].(*AssignmentExpr)
		if !ok || a.Name != name {
			continue
		}
		b, err := bindingForAssignment(a)
		if err != nil {
			return Binding{}, false
		}
		return b, true
	}
	return Binding{}, false
}

func bindingForAssignment(a *AssignmentExpr) (Binding, error) {
	if fn, ok := a.Value.(*FunctionExpr); ok {
		if fn.SelfType != nil {
			return Binding{Type: fn.SelfType, Func: fn}, nil
		}
		if t := fullyAnnotatedFuncType(fn); t != nil {
			return Binding{Type: t, Func: fn}, nil
		}
		return Binding{Func: fn}, nil
	}
	t, err := a.Value.Type()
	if err != nil {
		return Binding{}, err
	}
	return Binding{Type: t}, nil
}

func fullyAnnotatedFuncType(fn *FunctionExpr) *types.Type {
	if fn.RetAnnot == nil {
		return nil
	}
	args := make([]*types.Type, len(fn.Params))
	for i, p := range fn.Params {
		if p.Annot == nil {
			return nil
		}
		args[i] = p.Annot.Annot
	}
	return types.NewFunc(args, fn.RetAnnot.Annot)
}

// ResolveFunc returns the function literal bound to id, if id's binding
// points at one (a named or anonymous function, monomorphized or not). It
// is the public face of resolveFuncLit, used by lang/resolver to collect
// every expanded name reachable from a program into its instantiation
// table.
func ResolveFunc(id *IdentExpr) (*FunctionExpr, bool) {
	return resolveFuncLit(id)
}

// resolveFuncLit returns the underlying function literal behind fnExpr, if
// any: either fnExpr itself (a literal) or, for an identifier, the literal
// its binding points to. Builtins and already-evaluated Func-typed values
// have no literal and so are type-checked against their concrete Func
// type instead (see applyFuncExpr).
func resolveFuncLit(fnExpr Expr) (*FunctionExpr, bool) {
	switch v := fnExpr.(type) {
	case *FunctionExpr:
		return v, true
	case *IdentExpr:
		b, err := Resolve(v, v.Name)
		if err == nil && b.Func != nil {
			return b.Func, true
		}
	}
	return nil, false
}

// instantiateGeneric fills in any unannotated parameter of fn from
// argTypes (monomorphization) and checks already-annotated parameters
// against argTypes, then returns fn's return type. Mutating fn.Params in
// place is what lets the compiler later recover the same inferred types
// when it independently re-derives an expanded name for this call site.
func instantiateGeneric(fn *FunctionExpr, argTypes []*types.Type) (*types.Type, error) {
	if len(fn.Params) != len(argTypes) {
		return nil, errorf(fn, "expected %d arguments, got %d", len(fn.Params), len(argTypes))
	}
	for i, p := range fn.Params {
		if p.Annot == nil {
			fn.Params[i].Annot = NewTypeAnnotationExpr(fn.Span(), argTypes[i])
		} else if !p.Annot.Annot.Equal(argTypes[i]) {
			return nil, errorf(fn, "parameter %q: expected %s, got %s", p.Name, p.Annot.Annot, argTypes[i])
		}
	}
	if fn.RetAnnot != nil {
		return fn.RetAnnot.Annot, nil
	}
	return fn.Body.Type()
}

// applyFuncExpr type-checks a call-like application of fnExpr to
// argTypes, whether fnExpr is a generic literal awaiting instantiation, an
// already-annotated named function, a builtin, or a TypeDef record
// constructor. It is the single point used by Call, Map, Reduce, Filter
// and ZipMap (spec's functional operators are all "apply a function to
// argument(s)" under the hood).
func applyFuncExpr(callSite Node, fnExpr Expr, argTypes []*types.Type) (*types.Type, error) {
	if fn, ok := resolveFuncLit(fnExpr); ok {
		ret, err := instantiateGeneric(fn, argTypes)
		if err != nil {
			return nil, err
		}
		if id, ok := fnExpr.(*IdentExpr); ok {
			id.Template = argTypes
			id.ExpandedName = types.ExpandedName(id.Name, argTypes)
		}
		return ret, nil
	}

	// print is the one builtin with more than one concrete signature
	// (spec §6: the WASM backend imports both print[Int] and
	// print[Float] from env). It has no backing FunctionExpr for
	// resolveFuncLit to find above, so it is special-cased here the same
	// way a generic literal is: the call site records which instantiation
	// it needs via Template/ExpandedName, and the compiler/wasmgen look
	// the expanded name up instead of the bare "print".
	if id, ok := fnExpr.(*IdentExpr); ok && id.Name == "print" && len(argTypes) == 1 {
		switch argTypes[0].Kind {
		case types.Int, types.Float:
			id.Template = argTypes
			id.ExpandedName = types.ExpandedName(id.Name, argTypes)
			return argTypes[0], nil
		}
	}

	t, err := fnExpr.Type()
	if err != nil {
		return nil, err
	}
	if t.Kind != types.Func && t.Kind != types.TypeDef {
		return nil, errorf(callSite, "cannot call value of type %s", t)
	}
	if len(t.Args) != len(argTypes) {
		return nil, errorf(callSite, "expected %d arguments, got %d", len(t.Args), len(argTypes))
	}
	for i, a := range argTypes {
		if !a.Equal(t.Args[i]) {
			return nil, errorf(callSite, "argument %d: expected %s, got %s", i+1, t.Args[i], a)
		}
	}
	return t.Ret, nil
}

// elementType returns the element type of an Arr or Iter, the only two
// shapes the functional operators consume as a source.
func elementType(n Node, t *types.Type) (*types.Type, error) {
	switch t.Kind {
	case types.Arr, types.Iter:
		return t.Elem, nil
	}
	return nil, errorf(n, "expected Arr or Iter, got %s", t)
}

func (n *TopLevel) Type() (*types.Type, error) {
	if len(n.Exprs) == 0 {
		return nil, errorf(n, "empty program")
	}
	return n.Exprs[len(n.Exprs)-1].Type()
}

func (n *Block) Type() (*types.Type, error) {
	if len(n.Exprs) == 0 {
		return nil, errorf(n, "empty block")
	}
	return n.Exprs[len(n.Exprs)-1].Type()
}

func (n *FunctionExpr) Type() (*types.Type, error) {
	args := make([]*types.Type, len(n.Params))
	for i, p := range n.Params {
		if p.Annot == nil {
			return nil, errorf(n, "function literal used as a value must have fully annotated parameters")
		}
		args[i] = p.Annot.Annot
	}
	if n.RetAnnot != nil {
		return types.NewFunc(args, n.RetAnnot.Annot), nil
	}
	ret, err := n.Body.Type()
	if err != nil {
		return nil, err
	}
	return types.NewFunc(args, ret), nil
}

func (n *LiteralExpr) Type() (*types.Type, error) {
	switch n.Kind {
	case token.INT:
		return types.TInt, nil
	case token.FLOAT:
		return types.TFloat, nil
	case token.STRING:
		return types.TStr, nil
	default:
		return types.TBool, nil
	}
}

func (n *UnaryExpr) Type() (*types.Type, error) {
	t, err := n.Operand.Type()
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.MINUS:
		if t.Kind != types.Int && t.Kind != types.Float {
			return nil, errorf(n, "unary - requires Int or Float, got %s", t)
		}
		return t, nil
	case token.BANG:
		if t.Kind != types.Bool {
			return nil, errorf(n, "! requires Bool, got %s", t)
		}
		return t, nil
	case token.AT:
		if t.Kind != types.Iter {
			return nil, errorf(n, "@ requires Iter, got %s", t)
		}
		return types.NewArr(t.Elem), nil
	}
	return nil, errorf(n, "unknown unary operator %s", n.Op)
}

func (n *BinaryExpr) Type() (*types.Type, error) {
	lt, err := n.Left.Type()
	if err != nil {
		return nil, err
	}
	rt, err := n.Right.Type()
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.PLUS:
		if lt.Kind == types.Str && rt.Kind == types.Str {
			return types.TStr, nil
		}
		return arithmeticType(n, lt, rt)
	case token.MINUS, token.STAR, token.SLASH:
		return arithmeticType(n, lt, rt)
	case token.LT, token.LE, token.GT, token.GE:
		if _, err := arithmeticType(n, lt, rt); err != nil {
			return nil, err
		}
		return types.TBool, nil
	case token.EQ, token.NEQ:
		if !lt.Equal(rt) {
			return nil, errorf(n, "cannot compare %s and %s", lt, rt)
		}
		return types.TBool, nil
	case token.AND, token.OR:
		if lt.Kind != types.Bool || rt.Kind != types.Bool {
			return nil, errorf(n, "%s requires Bool operands, got %s and %s", n.Op, lt, rt)
		}
		return types.TBool, nil
	case token.TO:
		if lt.Kind != types.Int || rt.Kind != types.Int {
			return nil, errorf(n, "to requires Int operands, got %s and %s", lt, rt)
		}
		return types.NewIter(types.TInt), nil
	}
	return nil, errorf(n, "unknown binary operator %s", n.Op)
}

func arithmeticType(n Node, lt, rt *types.Type) (*types.Type, error) {
	if lt.Kind != types.Int && lt.Kind != types.Float {
		return nil, errorf(n, "expected numeric operand, got %s", lt)
	}
	if !lt.Equal(rt) {
		return nil, errorf(n, "mismatched operand types %s and %s", lt, rt)
	}
	return lt, nil
}

func (n *CallExpr) Type() (*types.Type, error) {
	argTypes := make([]*types.Type, len(n.Args))
	for i, a := range n.Args {
		t, err := a.Type()
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}
	return applyFuncExpr(n, n.Callee, argTypes)
}

func (n *IdentExpr) Type() (*types.Type, error) {
	b, err := Resolve(n, n.Name)
	if err != nil {
		return nil, err
	}
	if b.Type == nil {
		return nil, errorf(n, "cannot use generic function %q outside of a call", n.Name)
	}
	return b.Type, nil
}

func (n *AssignmentExpr) Type() (*types.Type, error) { return n.Value.Type() }

func (n *IfExpr) Type() (*types.Type, error) {
	ct, err := n.Cond.Type()
	if err != nil {
		return nil, err
	}
	if ct.Kind != types.Bool {
		return nil, errorf(n, "if condition must be Bool, got %s", ct)
	}
	tt, err := n.Then.Type()
	if err != nil {
		return nil, err
	}
	if n.Else == nil {
		return types.NewMaybe(tt), nil
	}
	et, err := n.Else.Type()
	if err != nil {
		return nil, err
	}
	if !tt.Equal(et) {
		return nil, errorf(n, "if/else branches disagree: %s vs %s", tt, et)
	}
	return tt, nil
}

func (n *ArrayExpr) Type() (*types.Type, error) {
	if len(n.Elems) == 0 {
		if n.EmptyAnnot == nil {
			return nil, errorf(n, "empty array literal requires a type annotation")
		}
		return types.NewArr(n.EmptyAnnot.Annot), nil
	}
	first, err := n.Elems[0].Type()
	if err != nil {
		return nil, err
	}
	for _, e := range n.Elems[1:] {
		t, err := e.Type()
		if err != nil {
			return nil, err
		}
		if !t.Equal(first) {
			return nil, errorf(n, "array elements must share a type: %s vs %s", first, t)
		}
	}
	return types.NewArr(first), nil
}

func (n *TypeDefExpr) Type() (*types.Type, error) {
	fields := make([]types.Field, len(n.Fields))
	args := make([]*types.Type, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = types.Field{Name: f.Name, Type: f.Annot.Annot}
		args[i] = f.Annot.Annot
	}
	return types.NewTypeDef(args, types.NewObject(n.Name, fields)), nil
}

func (n *GetFieldExpr) Type() (*types.Type, error) {
	t, err := n.Target.Type()
	if err != nil {
		return nil, err
	}
	if t.Kind != types.Object {
		return nil, errorf(n, "cannot access field %q of non-record type %s", n.Field, t)
	}
	ft, ok := t.FieldType(n.Field)
	if !ok {
		return nil, errorf(n, "type %s has no field %q", t, n.Field)
	}
	return ft, nil
}

func (n *MaybeExpr) Type() (*types.Type, error) {
	if n.Some {
		t, err := n.Inner.Type()
		if err != nil {
			return nil, err
		}
		return types.NewMaybe(t), nil
	}
	if n.NullAnnot == nil {
		return nil, errorf(n, "{} requires a type annotation")
	}
	return types.NewMaybe(n.NullAnnot.Annot), nil
}

func (n *UnwrapExpr) Type() (*types.Type, error) {
	t, err := n.Target.Type()
	if err != nil {
		return nil, err
	}
	if t.Kind != types.Maybe {
		return nil, errorf(n, "unwrap target must be Maybe, got %s", t)
	}
	dt, err := n.Default.Type()
	if err != nil {
		return nil, err
	}
	if !dt.Equal(t.Elem) {
		return nil, errorf(n, "unwrap default type %s does not match Maybe element type %s", dt, t.Elem)
	}
	return t.Elem, nil
}

func (n *MapExpr) Type() (*types.Type, error) {
	srcT, err := n.Source.Type()
	if err != nil {
		return nil, err
	}
	elem, err := elementType(n, srcT)
	if err != nil {
		return nil, err
	}
	retT, err := applyFuncExpr(n, n.Fn, []*types.Type{elem})
	if err != nil {
		return nil, err
	}
	return types.NewIter(retT), nil
}

func (n *ReduceExpr) Type() (*types.Type, error) {
	srcT, err := n.Source.Type()
	if err != nil {
		return nil, err
	}
	elem, err := elementType(n, srcT)
	if err != nil {
		return nil, err
	}
	initT, err := n.Init.Type()
	if err != nil {
		return nil, err
	}
	retT, err := applyFuncExpr(n, n.Fn, []*types.Type{initT, elem})
	if err != nil {
		return nil, err
	}
	if !retT.Equal(initT) {
		return nil, errorf(n, "reduce function must return accumulator type %s, got %s", initT, retT)
	}
	return retT, nil
}

func (n *FilterExpr) Type() (*types.Type, error) {
	srcT, err := n.Source.Type()
	if err != nil {
		return nil, err
	}
	elem, err := elementType(n, srcT)
	if err != nil {
		return nil, err
	}
	predT, err := applyFuncExpr(n, n.Fn, []*types.Type{elem})
	if err != nil {
		return nil, err
	}
	if predT.Kind != types.Bool {
		return nil, errorf(n, "filter predicate must return Bool, got %s", predT)
	}
	return types.NewIter(elem), nil
}

func (n *ZipMapExpr) Type() (*types.Type, error) {
	argTypes := make([]*types.Type, len(n.Sources))
	for i, s := range n.Sources {
		st, err := s.Type()
		if err != nil {
			return nil, err
		}
		elem, err := elementType(n, st)
		if err != nil {
			return nil, err
		}
		argTypes[i] = elem
	}
	retT, err := applyFuncExpr(n, n.Fn, argTypes)
	if err != nil {
		return nil, err
	}
	return types.NewIter(retT), nil
}

func (n *LenExpr) Type() (*types.Type, error) {
	t, err := n.Target.Type()
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case types.Arr, types.Iter, types.Str:
		return types.TInt, nil
	}
	return nil, errorf(n, "len() requires Arr, Iter or Str, got %s", t)
}

func (n *TypeAnnotationExpr) Type() (*types.Type, error) { return n.Annot, nil }

func (n *ErrorExpr) Type() (*types.Type, error) { return nil, errorf(n, "%s", n.Msg) }
