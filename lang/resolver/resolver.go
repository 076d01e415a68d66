// Package resolver drives the post-parse passes over a program: installing
// parent back-links, type-checking every expression, and recording the set
// of monomorphized function instantiations a program actually uses so the
// compiler and the WASM emitter can each emit exactly one body per expanded
// name (spec §4.3, §9).
//
// Arbor has no reassignable locals and no closures-over-mutable-state, so
// unlike the teacher's resolver there is no Cell/Free-via-mutation scope:
// every binding is Local (block/function-introduced), Predeclared (a
// builtin), or Generic (a function literal awaiting call-site
// instantiation). Name lookup itself is delegated to lang/ast.Resolve,
// which already climbs parent links node-kind by node-kind; this package's
// job is to drive that process over a whole program and collect its
// side-effects into one authoritative table.
package resolver

import (
	"github.com/dolthub/swiss"

	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// Instantiation is one concrete, fully-typed use of a function literal:
// either its only use (a monomorphic, explicitly-annotated function) or one
// of several uses of a generic literal at different argument types.
type Instantiation struct {
	Name     string // ExpandedName, e.g. "map_get[Str,Int]"
	Fn       *ast.FunctionExpr
	ArgTypes []*types.Type
	RetType  *types.Type
}

// Program is the result of resolving a TopLevel: its overall type plus
// every monomorphized instantiation reachable from it, keyed by expanded
// name so the compiler can look up "have I already compiled this body
// under this name" in O(1).
type Program struct {
	Top  *ast.TopLevel
	Type *types.Type

	// insts maps ExpandedName -> *Instantiation. Built with swiss.Map for
	// the same reason the teacher reaches for it in machine.Map: an
	// open-addressing table beats Go's builtin map under the
	// lookup-heavy, write-once access pattern of a compile-time cache.
	insts *swiss.Map[string, *Instantiation]
}

// Instantiations returns every recorded instantiation in encounter order
// is not guaranteed; callers that need determinism should sort by Name.
func (p *Program) Instantiations() []*Instantiation {
	out := make([]*Instantiation, 0, p.insts.Count())
	p.insts.Iter(func(_ string, v *Instantiation) bool {
		out = append(out, v)
		return false
	})
	return out
}

// Lookup returns the recorded instantiation for an expanded name, if any.
func (p *Program) Lookup(expandedName string) (*Instantiation, bool) {
	return p.insts.Get(expandedName)
}

// Resolve installs parent links over top, type-checks every top-level
// expression (which, being lazy and memo-free, recursively type-checks
// everything reachable), and records every monomorphized call site it
// finds along the way. It collects as many errors as it can rather than
// stopping at the first one, mirroring the scanner's and parser's
// multi-error reporting style.
func Resolve(top *ast.TopLevel) (*Program, error) {
	ast.SetParent(top)

	prog := &Program{Top: top, insts: swiss.NewMap[string, *Instantiation](uint32(8))}

	var errs token.ErrorList
	var lastType *types.Type
	for _, e := range top.Exprs {
		t, err := e.Type()
		if err != nil {
			errs.Add(token.Position{Line: int(e.Span())}, err.Error())
			continue
		}
		lastType = t
	}
	prog.Type = lastType

	collectInstantiations(top, prog.insts)

	if err := errs.Err(); err != nil {
		return prog, err
	}
	return prog, nil
}

// collectInstantiations walks the whole tree looking for identifier nodes
// that were monomorphized during type-checking (ExpandedName set) and
// records one Instantiation per distinct expanded name. Any call site of a
// one-or-more-parameter named function — generic or already fully
// annotated — is keyed by its bracketed expanded name (types.ExpandedName
// only degrades to the bare name for a zero-arity function); only a
// zero-arity function's call sites are ever keyed by the plain name.
func collectInstantiations(top *ast.TopLevel, insts *swiss.Map[string, *Instantiation]) {
	var visit ast.VisitorFunc
	visit = func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
		if dir != ast.VisitEnter {
			return nil
		}
		if id, ok := n.(*ast.IdentExpr); ok {
			record(id, insts)
		}
		return visit
	}
	ast.Walk(visit, top)
}

func record(id *ast.IdentExpr, insts *swiss.Map[string, *Instantiation]) {
	fn, ok := ast.ResolveFunc(id)
	if !ok {
		return
	}
	name := id.Name
	if len(id.Template) > 0 {
		name = id.ExpandedName
	}
	if _, exists := insts.Get(name); exists {
		return
	}
	argTypes := make([]*types.Type, len(fn.Params))
	for i, p := range fn.Params {
		if p.Annot != nil {
			argTypes[i] = p.Annot.Annot
		}
	}
	var ret *types.Type
	if fn.RetAnnot != nil {
		ret = fn.RetAnnot.Annot
	}
	insts.Put(name, &Instantiation{Name: name, Fn: fn, ArgTypes: argTypes, RetType: ret})
}
