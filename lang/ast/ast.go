// Package ast defines the typed expression tree built by the parser and
// annotated by the resolver (spec §3 "Expression node", §4.3). Every node
// kind is one of the closed set named by spec §3: TopLevel, Block,
// Function, Literal, Unary, Binary, Call, Variable, Assignment, If, Array,
// TypeDef, GetField, Maybe, Unwrap, Map, Reduce, Filter, ZipMap, Len,
// TypeAnnotation, Error.
//
// Each node carries a back-link to its Parent, installed by a single
// post-construction walk (SetParent), which is how name resolution climbs
// the tree (spec §4.3's resolve(name, origin)). This mirrors the teacher's
// parent-link-on-a-heterogeneous-tree strategy (SPEC_FULL.md §C.4): a single
// arena-free tree of tagged concrete node structs, each independently
// checkable by its Go type (no runtime downcasting needed for, e.g.,
// "is this callee a plain identifier that needs a template").
package ast

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// Node is implemented by every tree node.
type Node interface {
	// String renders the node's full source-like form, recursing into its
	// children; it is what error messages use.
	fmt.Stringer

	// Format renders a short, single-line label for the node (its kind plus
	// a handful of child counts), independent of String. It exists so
	// debugging tools (the "parse"/"resolve" commands) can walk the tree and
	// print one label per node without building their own kind-name and
	// pluralization logic. The only supported verbs are 'v' and 's'. The
	// '#' flag prints child-count information (e.g. "call {args=2}"). A
	// width pads or truncates the label on the left; '-' pads on the right
	// instead, and '+' only truncates, never pads.
	fmt.Formatter

	// Span returns the source line this node starts at.
	Span() token.Pos

	// Walk visits this node's direct children with v.
	Walk(v Visitor)

	// ParentNode returns the enclosing node, or nil at the root (TopLevel).
	ParentNode() Node

	setParent(Node)
}

// Expr is implemented by every node that produces a value. Every Node in
// this language is in fact an Expr: Arbor is purely expression-oriented
// (spec §1), there are no statement-only forms besides Assignment (itself
// an Expr whose value is its right-hand side).
type Expr interface {
	Node
	exprNode()

	// Type computes this node's static type, propagating a descriptive error
	// (with this node's line) on failure. It is lazy and memo-free per spec
	// §4.3, except where explicitly noted (function monomorphization).
	Type() (*types.Type, error)
}

// base is embedded by every concrete node to provide the common Node
// plumbing (parent link, source line) without repeating it per kind.
type base struct {
	parent Node
	line   token.Pos
}

func (b *base) Span() token.Pos      { return b.line }
func (b *base) ParentNode() Node     { return b.parent }
func (b *base) setParent(p Node)     { b.parent = p }
func (b *base) exprNode()            {}

// VisitDirection indicates whether Visit is called on entering or exiting a
// node, mirroring the teacher's ast.Visitor contract.
type VisitDirection int

const (
	VisitEnter VisitDirection = iota
	VisitExit
)

// Visitor is called for every node Walk encounters. Returning nil from
// Visit skips that node's children.
type Visitor interface {
	Visit(n Node, dir VisitDirection) Visitor
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(n Node, dir VisitDirection) Visitor

func (f VisitorFunc) Visit(n Node, dir VisitDirection) Visitor { return f(n, dir) }

// Walk visits node and its descendants with v.
func Walk(v Visitor, node Node) {
	if node == nil {
		return
	}
	if v = v.Visit(node, VisitEnter); v == nil {
		return
	}
	node.Walk(v)
	v.Visit(node, VisitExit)
}

// SetParent installs parent back-links for root and its entire subtree. It
// must be called once after parsing, before any call to Resolve or Type.
func SetParent(root Node) {
	Walk(VisitorFunc(func(n Node, dir VisitDirection) Visitor {
		if dir != VisitEnter {
			return nil
		}
		return parentSetter{of: n}
	}), root)
}

// parentSetter assigns itself as the parent of every node it visits; each
// node created by Walk(VisitorFunc, n) calls n.Walk(parentSetter{of: n}),
// so every direct child's Visit call receives `of` as the parent to record.
type parentSetter struct{ of Node }

func (p parentSetter) Visit(n Node, dir VisitDirection) Visitor {
	if dir != VisitEnter {
		return nil
	}
	n.setParent(p.of)
	return parentSetter{of: n}
}

// GlobalNames returns the names bound in globals (a TopLevel's builtin
// surface), sorted for a deterministic listing: ranging the map directly
// would make the dump/resolve commands' builtin listing and the "undefined
// name" error's suggestion vary from run to run.
func GlobalNames(globals map[string]*types.Type) []string {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func joinStrings(xs []Expr, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return strings.Join(parts, sep)
}

// format implements Node.Format for every concrete node kind: n.String()
// would be too verbose (and recursive) for a one-line debug label, so each
// kind instead passes a short, already-computed label plus optional child
// counts through here.
func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}

	label = strings.ReplaceAll(label, "\r\n", "⏎")
	label = strings.ReplaceAll(label, "\n", "⏎")
	label = strings.ReplaceAll(label, "\t", "⭾")
	label = strings.ReplaceAll(label, "\v", "⭿")

	if w, ok := f.Width(); ok {
		minus, plus := f.Flag('-'), f.Flag('+')
		runes := []rune(label)
		if len(runes) >= w {
			runes = runes[:w]
		} else if minus {
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		} else if !plus {
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}

	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		fmt.Fprint(f, " {")
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(f, ", ")
			}
			fmt.Fprintf(f, "%s=%d", k, counts[k])
		}
		fmt.Fprint(f, "}")
	}
}
