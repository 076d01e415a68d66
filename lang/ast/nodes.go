package ast

import (
	"fmt"
	"strings"

	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// TopLevel is the root of every Arbor program: a sequence of expressions
// (most commonly assignments) whose last expression's value is the
// program's final result.
type TopLevel struct {
	base
	Exprs []Expr
	// Globals holds the preloaded global type context: builtins and printer
	// functions visible from anywhere in the program (spec §4.3).
	Globals map[string]*types.Type
}

func NewTopLevel(exprs []Expr, globals map[string]*types.Type) *TopLevel {
	return &TopLevel{Exprs: exprs, Globals: globals}
}

func (n *TopLevel) Walk(v Visitor) {
	for _, e := range n.Exprs {
		Walk(v, e)
	}
}
func (n *TopLevel) String() string { return fmt.Sprintf("toplevel{%s}", joinStrings(n.Exprs, "; ")) }
func (n *TopLevel) Format(f fmt.State, verb rune) {
	format(f, verb, n, "toplevel", map[string]int{"exprs": len(n.Exprs)})
}

// Block is a `{ e1 e2 ... en }` production; its value is its last
// expression. A Block must be non-empty (spec §4.2).
type Block struct {
	base
	Exprs []Expr
}

func NewBlock(line token.Pos, exprs []Expr) *Block {
	return &Block{base: base{line: line}, Exprs: exprs}
}

func (n *Block) Walk(v Visitor) {
	for _, e := range n.Exprs {
		Walk(v, e)
	}
}
func (n *Block) String() string { return fmt.Sprintf("{%s}", joinStrings(n.Exprs, "; ")) }
func (n *Block) Format(f fmt.State, verb rune) {
	format(f, verb, n, "block", map[string]int{"exprs": len(n.Exprs)})
}

// Param is one parameter of a function literal. Annot is nil when the
// parameter has no explicit type annotation, in which case its type must be
// inferred from a call/functional-operator argument (spec §4.3
// "Monomorphization").
type Param struct {
	Name  string
	Annot *TypeAnnotationExpr
}

// Type returns the parameter's declared type, or nil if unannotated.
func (p Param) Type() *types.Type {
	if p.Annot == nil {
		return nil
	}
	return p.Annot.Annot
}

// FunctionExpr is a function literal `|p1:T, p2:T, ...|[:Ret]? { block }`.
type FunctionExpr struct {
	base
	Params  []Param
	RetAnnot *TypeAnnotationExpr // nil if unannotated
	Body    *Block

	// SelfName/SelfType enable recursive self-reference from within Body.
	// They are set by the parser only when the enclosing assignment's name is
	// known and this function carries an explicit return-type annotation and
	// every parameter is annotated (spec §4.3: "recursion is permitted only
	// for functions with an explicit return-type annotation").
	SelfName string
	SelfType *types.Type
}

func NewFunctionExpr(line token.Pos, params []Param, retAnnot *TypeAnnotationExpr, body *Block) *FunctionExpr {
	return &FunctionExpr{base: base{line: line}, Params: params, RetAnnot: retAnnot, Body: body}
}

func (n *FunctionExpr) Walk(v Visitor) {
	if n.RetAnnot != nil {
		Walk(v, n.RetAnnot)
	}
	for _, p := range n.Params {
		if p.Annot != nil {
			Walk(v, p.Annot)
		}
	}
	Walk(v, n.Body)
}
func (n *FunctionExpr) String() string {
	parts := make([]string, len(n.Params))
	for i, p := range n.Params {
		if p.Annot != nil {
			parts[i] = p.Name + ":" + p.Annot.Annot.String()
		} else {
			parts[i] = p.Name
		}
	}
	ret := ""
	if n.RetAnnot != nil {
		ret = ":" + n.RetAnnot.Annot.String()
	}
	return fmt.Sprintf("|%s|%s%s", strings.Join(parts, ", "), ret, n.Body.String())
}
func (n *FunctionExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "fn", map[string]int{"params": len(n.Params)})
}

// LiteralExpr is an Int, Float, Str, true or false literal.
type LiteralExpr struct {
	base
	Kind  token.Token
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func NewIntLiteral(line token.Pos, v int64) *LiteralExpr {
	return &LiteralExpr{base: base{line: line}, Kind: token.INT, Int: v}
}
func NewFloatLiteral(line token.Pos, v float64) *LiteralExpr {
	return &LiteralExpr{base: base{line: line}, Kind: token.FLOAT, Float: v}
}
func NewStrLiteral(line token.Pos, v string) *LiteralExpr {
	return &LiteralExpr{base: base{line: line}, Kind: token.STRING, Str: v}
}
func NewBoolLiteral(line token.Pos, v bool) *LiteralExpr {
	k := token.FALSE
	if v {
		k = token.TRUE
	}
	return &LiteralExpr{base: base{line: line}, Kind: k, Bool: v}
}

func (n *LiteralExpr) Walk(Visitor) {}
func (n *LiteralExpr) String() string {
	switch n.Kind {
	case token.INT:
		return fmt.Sprintf("%d", n.Int)
	case token.FLOAT:
		return fmt.Sprintf("%g", n.Float)
	case token.STRING:
		return fmt.Sprintf("%q", n.Str)
	default:
		return fmt.Sprintf("%t", n.Bool)
	}
}
func (n *LiteralExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "lit "+n.String(), nil) }

// UnaryExpr is `-x`, `!x` or `@x` (collect an iterator to an array).
type UnaryExpr struct {
	base
	Op      token.Token
	Operand Expr
}

func NewUnaryExpr(line token.Pos, op token.Token, operand Expr) *UnaryExpr {
	return &UnaryExpr{base: base{line: line}, Op: op, Operand: operand}
}

func (n *UnaryExpr) Walk(v Visitor) { Walk(v, n.Operand) }
func (n *UnaryExpr) String() string { return fmt.Sprintf("(%s%s)", n.Op, n.Operand.String()) }
func (n *UnaryExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "unary "+n.Op.String(), nil) }

// BinaryExpr covers arithmetic, comparison, logical and `to` range operators.
type BinaryExpr struct {
	base
	Op          token.Token
	Left, Right Expr
}

func NewBinaryExpr(line token.Pos, op token.Token, left, right Expr) *BinaryExpr {
	return &BinaryExpr{base: base{line: line}, Op: op, Left: left, Right: right}
}

func (n *BinaryExpr) Walk(v Visitor) { Walk(v, n.Left); Walk(v, n.Right) }
func (n *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left.String(), n.Op, n.Right.String())
}
func (n *BinaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binary "+n.Op.String(), nil)
}

// CallExpr is `callee(args)`.
type CallExpr struct {
	base
	Callee Expr
	Args   []Expr
}

func NewCallExpr(line token.Pos, callee Expr, args []Expr) *CallExpr {
	return &CallExpr{base: base{line: line}, Callee: callee, Args: args}
}

func (n *CallExpr) Walk(v Visitor) {
	Walk(v, n.Callee)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *CallExpr) String() string {
	return fmt.Sprintf("%s(%s)", n.Callee.String(), joinStrings(n.Args, ", "))
}
func (n *CallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call", map[string]int{"args": len(n.Args)})
}

// IdentExpr is a variable reference, possibly a generic callee awaiting
// monomorphization via Template (spec §4.3).
type IdentExpr struct {
	base
	Name string

	// Template, if non-nil, is the inferred argument-type tuple used to
	// monomorphize this identifier when it names a generic function (spec
	// §4.2 Call rule: "the parser posts the inferred argument types to the
	// identifier node").
	Template     []*types.Type
	ExpandedName string
}

func NewIdentExpr(line token.Pos, name string) *IdentExpr {
	return &IdentExpr{base: base{line: line}, Name: name}
}

func (n *IdentExpr) Walk(Visitor) {}
func (n *IdentExpr) String() string {
	if len(n.Template) > 0 {
		return n.ExpandedName
	}
	return n.Name
}
func (n *IdentExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "ident "+n.String(), nil) }

// AssignmentExpr is `name := expr`.
type AssignmentExpr struct {
	base
	Name  string
	Value Expr
}

func NewAssignmentExpr(line token.Pos, name string, value Expr) *AssignmentExpr {
	return &AssignmentExpr{base: base{line: line}, Name: name, Value: value}
}

func (n *AssignmentExpr) Walk(v Visitor) { Walk(v, n.Value) }
func (n *AssignmentExpr) String() string { return fmt.Sprintf("%s := %s", n.Name, n.Value.String()) }
func (n *AssignmentExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "assign "+n.Name, nil) }

// IfExpr is `if cond { ... } [else { ... }]`.
type IfExpr struct {
	base
	Cond       Expr
	Then, Else *Block // Else is nil when absent
}

func NewIfExpr(line token.Pos, cond Expr, then, els *Block) *IfExpr {
	return &IfExpr{base: base{line: line}, Cond: cond, Then: then, Else: els}
}

func (n *IfExpr) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Then)
	if n.Else != nil {
		Walk(v, n.Else)
	}
}
func (n *IfExpr) String() string {
	if n.Else == nil {
		return fmt.Sprintf("if %s %s", n.Cond.String(), n.Then.String())
	}
	return fmt.Sprintf("if %s %s else %s", n.Cond.String(), n.Then.String(), n.Else.String())
}
func (n *IfExpr) Format(f fmt.State, verb rune) {
	counts := map[string]int{}
	if n.Else != nil {
		counts["else"] = 1
	}
	format(f, verb, n, "if", counts)
}

// ArrayExpr is `[e1, e2, ...]`, or the empty typed form `[]:T`, in which
// case Elems is empty and EmptyAnnot names the element type.
type ArrayExpr struct {
	base
	Elems      []Expr
	EmptyAnnot *TypeAnnotationExpr // non-nil only for `[]:T`
}

func NewArrayExpr(line token.Pos, elems []Expr, emptyAnnot *TypeAnnotationExpr) *ArrayExpr {
	return &ArrayExpr{base: base{line: line}, Elems: elems, EmptyAnnot: emptyAnnot}
}

func (n *ArrayExpr) Walk(v Visitor) {
	for _, e := range n.Elems {
		Walk(v, e)
	}
	if n.EmptyAnnot != nil {
		Walk(v, n.EmptyAnnot)
	}
}
func (n *ArrayExpr) String() string { return fmt.Sprintf("[%s]", joinStrings(n.Elems, ", ")) }
func (n *ArrayExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "array", map[string]int{"elems": len(n.Elems)})
}

// FieldDecl is one `field: T` member of a record type literal.
type FieldDecl struct {
	Name  string
	Annot *TypeAnnotationExpr
}

// TypeDefExpr is `type { field: T; ... }`, evaluating to a TypeDef value
// (a record constructor). Name is filled in by the parser from the
// enclosing assignment's left-hand side (`Point := type {...}`), mirroring
// how FunctionExpr.SelfName is threaded through for recursion; an inline
// type literal that is never bound keeps Name empty.
type TypeDefExpr struct {
	base
	Name   string
	Fields []FieldDecl
}

func NewTypeDefExpr(line token.Pos, fields []FieldDecl) *TypeDefExpr {
	return &TypeDefExpr{base: base{line: line}, Fields: fields}
}

func (n *TypeDefExpr) Walk(v Visitor) {
	for _, f := range n.Fields {
		Walk(v, f.Annot)
	}
}
func (n *TypeDefExpr) String() string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		parts[i] = f.Name + ":" + f.Annot.Annot.String()
	}
	return fmt.Sprintf("type{%s}", strings.Join(parts, "; "))
}
func (n *TypeDefExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "typedef "+n.Name, map[string]int{"fields": len(n.Fields)})
}

// GetFieldExpr is `expr.field`.
type GetFieldExpr struct {
	base
	Target Expr
	Field  string
}

func NewGetFieldExpr(line token.Pos, target Expr, field string) *GetFieldExpr {
	return &GetFieldExpr{base: base{line: line}, Target: target, Field: field}
}

func (n *GetFieldExpr) Walk(v Visitor) { Walk(v, n.Target) }
func (n *GetFieldExpr) String() string { return fmt.Sprintf("%s.%s", n.Target.String(), n.Field) }
func (n *GetFieldExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "getfield ."+n.Field, nil)
}

// MaybeExpr is `some e` (Some=true, Inner=e) or `{}:T` (Some=false,
// NullAnnot=T).
type MaybeExpr struct {
	base
	Some      bool
	Inner     Expr
	NullAnnot *TypeAnnotationExpr
}

func NewSomeExpr(line token.Pos, inner Expr) *MaybeExpr {
	return &MaybeExpr{base: base{line: line}, Some: true, Inner: inner}
}
func NewNullExpr(line token.Pos, annot *TypeAnnotationExpr) *MaybeExpr {
	return &MaybeExpr{base: base{line: line}, Some: false, NullAnnot: annot}
}

func (n *MaybeExpr) Walk(v Visitor) {
	if n.Some {
		Walk(v, n.Inner)
	} else {
		Walk(v, n.NullAnnot)
	}
}
func (n *MaybeExpr) String() string {
	if n.Some {
		return fmt.Sprintf("some %s", n.Inner.String())
	}
	return fmt.Sprintf("{}:%s", n.NullAnnot.Annot)
}
func (n *MaybeExpr) Format(f fmt.State, verb rune) {
	if n.Some {
		format(f, verb, n, "some", nil)
		return
	}
	format(f, verb, n, "null", nil)
}

// UnwrapExpr is `unwrap(value, default)`.
type UnwrapExpr struct {
	base
	Target  Expr
	Default Expr
}

func NewUnwrapExpr(line token.Pos, target, def Expr) *UnwrapExpr {
	return &UnwrapExpr{base: base{line: line}, Target: target, Default: def}
}

func (n *UnwrapExpr) Walk(v Visitor) { Walk(v, n.Target); Walk(v, n.Default) }
func (n *UnwrapExpr) String() string {
	return fmt.Sprintf("unwrap(%s, %s)", n.Target.String(), n.Default.String())
}
func (n *UnwrapExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "unwrap", nil) }

// MapExpr is `f -> xs`.
type MapExpr struct {
	base
	Fn     Expr
	Source Expr
}

func NewMapExpr(line token.Pos, fn, source Expr) *MapExpr {
	return &MapExpr{base: base{line: line}, Fn: fn, Source: source}
}

func (n *MapExpr) Walk(v Visitor) { Walk(v, n.Fn); Walk(v, n.Source) }
func (n *MapExpr) String() string {
	return fmt.Sprintf("(%s -> %s)", n.Fn.String(), n.Source.String())
}
func (n *MapExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "map", nil) }

// ReduceExpr is `reduce(f, xs, init)`.
type ReduceExpr struct {
	base
	Fn, Source, Init Expr
}

func NewReduceExpr(line token.Pos, fn, source, init Expr) *ReduceExpr {
	return &ReduceExpr{base: base{line: line}, Fn: fn, Source: source, Init: init}
}

func (n *ReduceExpr) Walk(v Visitor) { Walk(v, n.Fn); Walk(v, n.Source); Walk(v, n.Init) }
func (n *ReduceExpr) String() string {
	return fmt.Sprintf("reduce(%s, %s, %s)", n.Fn.String(), n.Source.String(), n.Init.String())
}
func (n *ReduceExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "reduce", nil) }

// FilterExpr is `filter(pred, xs)`.
type FilterExpr struct {
	base
	Fn, Source Expr
}

func NewFilterExpr(line token.Pos, fn, source Expr) *FilterExpr {
	return &FilterExpr{base: base{line: line}, Fn: fn, Source: source}
}

func (n *FilterExpr) Walk(v Visitor) { Walk(v, n.Fn); Walk(v, n.Source) }
func (n *FilterExpr) String() string {
	return fmt.Sprintf("filter(%s, %s)", n.Fn.String(), n.Source.String())
}
func (n *FilterExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "filter", nil) }

// ZipMapExpr is `zipmap(f, xs, ys, ...)`.
type ZipMapExpr struct {
	base
	Fn      Expr
	Sources []Expr
}

func NewZipMapExpr(line token.Pos, fn Expr, sources []Expr) *ZipMapExpr {
	return &ZipMapExpr{base: base{line: line}, Fn: fn, Sources: sources}
}

func (n *ZipMapExpr) Walk(v Visitor) {
	Walk(v, n.Fn)
	for _, s := range n.Sources {
		Walk(v, s)
	}
}
func (n *ZipMapExpr) String() string {
	return fmt.Sprintf("zipmap(%s, %s)", n.Fn.String(), joinStrings(n.Sources, ", "))
}
func (n *ZipMapExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "zipmap", map[string]int{"sources": len(n.Sources)})
}

// LenExpr is `len(x)`.
type LenExpr struct {
	base
	Target Expr
}

func NewLenExpr(line token.Pos, target Expr) *LenExpr {
	return &LenExpr{base: base{line: line}, Target: target}
}

func (n *LenExpr) Walk(v Visitor) { Walk(v, n.Target) }
func (n *LenExpr) String() string { return fmt.Sprintf("len(%s)", n.Target.String()) }
func (n *LenExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "len", nil) }

// TypeAnnotationExpr is a bare type reference appearing in expression
// position: function return types, `{}:T`, `[]:T` and record field types.
type TypeAnnotationExpr struct {
	base
	Annot *types.Type
}

func NewTypeAnnotationExpr(line token.Pos, t *types.Type) *TypeAnnotationExpr {
	return &TypeAnnotationExpr{base: base{line: line}, Annot: t}
}

func (n *TypeAnnotationExpr) Walk(Visitor)   {}
func (n *TypeAnnotationExpr) String() string { return ":" + n.Annot.String() }
func (n *TypeAnnotationExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "annot "+n.Annot.String(), nil)
}

// ErrorExpr is a placeholder produced at a parse error's recovery point.
// Its Type always fails, so a program containing one never reaches the
// compiler (spec §7: parsing fails cleanly after the full file is scanned
// for further errors).
type ErrorExpr struct {
	base
	Msg string
}

func NewErrorExpr(line token.Pos, msg string) *ErrorExpr {
	return &ErrorExpr{base: base{line: line}, Msg: msg}
}

func (n *ErrorExpr) Walk(Visitor)   {}
func (n *ErrorExpr) String() string { return "<error: " + n.Msg + ">" }
func (n *ErrorExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "error "+n.Msg, nil) }
