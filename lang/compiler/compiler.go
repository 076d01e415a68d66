// Package compiler lowers a resolved program (lang/resolver.Program) into
// bytecode (spec §4.4). Unlike the teacher's CFG-of-basic-blocks compiler
// (needed there for goto/labels/defer), Arbor has no non-structured control
// flow, so code is emitted linearly in one pass with backpatched jump
// targets: emitJump reserves a 2-byte placeholder and returns its position,
// patchJump later fills in the real address once it's known. See
// DESIGN.md's Open Question entry for why this is deliberately simpler than
// the teacher's jump-threaded block graph.
package compiler

import (
	"fmt"
	"math"

	"github.com/dolthub/swiss"
	"github.com/google/uuid"

	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/resolver"
	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// Program is a fully compiled module: the top-level chunk plus every
// function chunk reachable from it, keyed by expanded name so a generic
// function instantiated at two argument-type call sites compiles to two
// distinct chunks, never recompiling the same expanded name twice (spec
// §4.3's "distinct argument-type signatures produce ... distinct compiled
// closures").
type Program struct {
	BuildID uuid.UUID
	Main    *Chunk

	chunks *swiss.Map[string, *Chunk]
}

// Chunks returns every compiled function chunk other than Main, keyed by
// expanded name.
func (p *Program) Chunks() map[string]*Chunk {
	out := make(map[string]*Chunk, p.chunks.Count())
	p.chunks.Iter(func(k string, v *Chunk) bool {
		out[k] = v
		return false
	})
	return out
}

// Compile lowers a resolved program to bytecode. prog must come from a
// successful resolver.Resolve call; compiling a program that failed
// resolution is undefined behavior (mirrors the teacher's own
// CompileFiles contract).
func Compile(prog *resolver.Program, buildID uuid.UUID) (*Program, error) {
	pc := &progComp{
		prog:   prog,
		chunks: swiss.NewMap[string, *Chunk](uint32(8)),
	}
	out := &Program{BuildID: buildID, chunks: pc.chunks}

	main := newChunk("main", "main")
	cc := &chunkComp{prog: pc, chunk: main}
	if err := cc.compileSequence(prog.Top.Exprs); err != nil {
		return nil, err
	}
	cc.emitOp(Return, lastLine(prog.Top.Exprs))
	main.MaxFlatStack = cc.maxFlat
	main.MaxHeapStack = cc.maxHeap
	main.RetType = prog.Type
	out.Main = main
	return out, nil
}

// progComp holds whole-program compiler state: the resolved program and
// the cross-function chunk cache.
type progComp struct {
	prog   *resolver.Program
	chunks *swiss.Map[string, *Chunk]
}

// expandedNameFor returns the expanded name the resolver recorded for a
// function literal, if any (an anonymous literal passed directly as a
// functional-operator argument, never bound by name, has none).
func (pc *progComp) expandedNameFor(fn *ast.FunctionExpr) (string, bool) {
	for _, inst := range pc.prog.Instantiations() {
		if inst.Fn == fn {
			return inst.Name, true
		}
	}
	return "", false
}

// localVar is one named slot in a chunkComp's flat or heap locals array.
type localVar struct {
	name string
	fn   *ast.FunctionExpr // set when this slot holds a function literal's closure
}

// chunkComp holds per-function compiler state: the chunk being built, its
// local-slot bookkeeping (one stack index per live name, per spec §4.4
// "two parallel arrays ... with shadowing"), and a link to the enclosing
// chunkComp for upvalue capture.
type chunkComp struct {
	prog   *progComp
	chunk  *Chunk
	parent *chunkComp

	flatLocals []localVar
	heapLocals []localVar

	// upvalues accumulates this chunk's own captures as its body references
	// names from an enclosing chunkComp; only meaningful while this
	// chunkComp is the one being actively compiled by compileFunctionValue.
	upvalues []Upvalue

	flatDepth, maxFlat int
	heapDepth, maxHeap int
}

func lastLine(exprs []ast.Expr) int {
	if len(exprs) == 0 {
		return 0
	}
	return int(exprs[len(exprs)-1].Span())
}

func (cc *chunkComp) emitOp(op OpCode, line int) int { return cc.chunk.writeOp(op, line) }

func (cc *chunkComp) emitOpU16(op OpCode, arg uint16, line int) {
	cc.chunk.writeOp(op, line)
	cc.chunk.writeUint16(arg, line)
}

// emitJump emits op with a placeholder 2-byte address and returns the
// position of that placeholder, to be filled in later by patchJump.
func (cc *chunkComp) emitJump(op OpCode, line int) int {
	cc.chunk.writeOp(op, line)
	pos := len(cc.chunk.Code)
	cc.chunk.writeUint16(0, line)
	return pos
}

// patchJump fills in the jump target recorded at pos with the chunk's
// current length (the address of the next instruction to be emitted).
func (cc *chunkComp) patchJump(pos int) {
	cc.chunk.patchUint16(pos, uint16(len(cc.chunk.Code)))
}

func (cc *chunkComp) pushFlat() {
	cc.flatDepth++
	if cc.flatDepth > cc.maxFlat {
		cc.maxFlat = cc.flatDepth
	}
}
func (cc *chunkComp) popFlat(n int) { cc.flatDepth -= n }

func (cc *chunkComp) pushHeap() {
	cc.heapDepth++
	if cc.heapDepth > cc.maxHeap {
		cc.maxHeap = cc.heapDepth
	}
}
func (cc *chunkComp) popHeap(n int) { cc.heapDepth -= n }

// declareLocal registers name at the current top-of-stack slot (flat or
// heap depending on heap) and returns its slot index.
func (cc *chunkComp) declareLocal(name string, heap bool, fn *ast.FunctionExpr) int {
	if heap {
		cc.heapLocals = append(cc.heapLocals, localVar{name: name, fn: fn})
		return len(cc.heapLocals) - 1
	}
	cc.flatLocals = append(cc.flatLocals, localVar{name: name, fn: fn})
	return len(cc.flatLocals) - 1
}

// resolveLocal finds name among this chunk's own locals, searching from
// the most recently declared (innermost) slot, honoring shadowing.
func (cc *chunkComp) resolveLocal(name string) (slot int, heap bool, ok bool) {
	for i := len(cc.heapLocals) - 1; i >= 0; i-- {
		if cc.heapLocals[i].name == name {
			return i, true, true
		}
	}
	for i := len(cc.flatLocals) - 1; i >= 0; i-- {
		if cc.flatLocals[i].name == name {
			return i, false, true
		}
	}
	return 0, false, false
}

// compileSequence compiles a block/top-level expression list: every
// expression pushes its value onto the appropriate stack (named via
// declareLocal when it's an assignment, anonymous otherwise); the
// sequence's own value is whatever the last expression pushed. Discarding
// the intermediate, unnamed pushes is the caller's job (a nested block
// does it via EndExpr/EndHeapExpr at its own exit; the top-level sequence
// compiled directly into Main never needs to, since nothing outlives it).
func (cc *chunkComp) compileSequence(exprs []ast.Expr) error {
	for _, e := range exprs {
		if err := cc.compileExpr(e); err != nil {
			return err
		}
	}
	return nil
}

// compileBlock compiles a nested `{ ... }` block with its own scope: marks
// are taken before compiling, and at exit exactly one of EndExpr/
// EndHeapExpr truncates each stack back to its mark while preserving the
// block's final value (which lives on whichever stack its type uses).
func (cc *chunkComp) compileBlock(b *ast.Block) error {
	flatMark, heapMark := len(cc.flatLocals), len(cc.heapLocals)
	flatDepthMark, heapDepthMark := cc.flatDepth, cc.heapDepth

	if err := cc.compileSequence(b.Exprs); err != nil {
		return err
	}

	t, err := b.Type()
	if err != nil {
		return err
	}
	line := int(b.Span())
	if t.HeapShaped() {
		cc.emitOpU16(EndExpr, uint16(flatDepthMark), line)
		cc.popFlat(cc.flatDepth - flatDepthMark)
		cc.emitOpU16(EndHeapExpr, uint16(heapDepthMark), line)
		cc.popHeap(cc.heapDepth - 1 - heapDepthMark)
	} else {
		cc.emitOpU16(EndHeapExpr, uint16(heapDepthMark), line)
		cc.popHeap(cc.heapDepth - heapDepthMark)
		cc.emitOpU16(EndExpr, uint16(flatDepthMark), line)
		cc.popFlat(cc.flatDepth - 1 - flatDepthMark)
	}
	cc.flatLocals = cc.flatLocals[:flatMark]
	cc.heapLocals = cc.heapLocals[:heapMark]
	return nil
}

// compileExpr compiles e, leaving exactly one value (e's own) on the
// stack its static type uses.
func (cc *chunkComp) compileExpr(e ast.Expr) error {
	line := int(e.Span())
	switch n := e.(type) {
	case *ast.LiteralExpr:
		return cc.compileLiteral(n)
	case *ast.UnaryExpr:
		return cc.compileUnary(n)
	case *ast.BinaryExpr:
		return cc.compileBinary(n)
	case *ast.IdentExpr:
		return cc.compileIdent(n)
	case *ast.AssignmentExpr:
		return cc.compileAssignment(n)
	case *ast.CallExpr:
		return cc.compileCall(n)
	case *ast.IfExpr:
		return cc.compileIf(n)
	case *ast.ArrayExpr:
		return cc.compileArray(n)
	case *ast.GetFieldExpr:
		return cc.compileGetField(n)
	case *ast.MaybeExpr:
		return cc.compileMaybe(n)
	case *ast.UnwrapExpr:
		return cc.compileUnwrap(n)
	case *ast.MapExpr:
		return cc.compileMap(n)
	case *ast.ReduceExpr:
		return cc.compileReduce(n)
	case *ast.FilterExpr:
		return cc.compileFilter(n)
	case *ast.ZipMapExpr:
		return cc.compileZipMap(n)
	case *ast.LenExpr:
		return cc.compileLen(n)
	case *ast.TypeDefExpr:
		return cc.compileTypeDef(n)
	case *ast.FunctionExpr:
		return cc.compileFunctionValue(n, "", "")
	case *ast.Block:
		return cc.compileBlock(n)
	default:
		return fmt.Errorf("line %d: compiler: unhandled node %T", line, e)
	}
}

func (cc *chunkComp) compileLiteral(n *ast.LiteralExpr) error {
	line := int(n.Span())
	switch n.Kind {
	case token.INT:
		idx := cc.chunk.addFlatConstant(uint64(n.Int))
		cc.emitOpU16(Constant, uint16(idx), line)
		cc.pushFlat()
	case token.FLOAT:
		idx := cc.chunk.addFlatConstant(math.Float64bits(n.Float))
		cc.emitOpU16(Constant, uint16(idx), line)
		cc.pushFlat()
	case token.STRING:
		idx := cc.chunk.addStringConstant(n.Str)
		cc.emitOpU16(String, uint16(idx), line)
		cc.pushHeap()
	default: // TRUE, FALSE
		v := uint64(0)
		if n.Bool {
			v = 1
		}
		idx := cc.chunk.addFlatConstant(v)
		cc.emitOpU16(Constant, uint16(idx), line)
		cc.pushFlat()
	}
	return nil
}

func (cc *chunkComp) compileUnary(n *ast.UnaryExpr) error {
	t, err := n.Operand.Type()
	if err != nil {
		return err
	}
	if err := cc.compileExpr(n.Operand); err != nil {
		return err
	}
	line := int(n.Span())
	switch n.Op {
	case token.MINUS:
		if t.Kind == types.Float {
			cc.emitOp(FloatNegate, line)
		} else {
			cc.emitOp(IntNegate, line)
		}
	case token.BANG:
		cc.emitOp(Not, line)
	case token.AT:
		cc.popHeap(1)
		cc.emitOp(Collect, line)
		cc.pushHeap()
		return nil
	}
	return nil
}

func (cc *chunkComp) compileBinary(n *ast.BinaryExpr) error {
	lt, err := n.Left.Type()
	if err != nil {
		return err
	}
	if err := cc.compileExpr(n.Left); err != nil {
		return err
	}
	if err := cc.compileExpr(n.Right); err != nil {
		return err
	}
	line := int(n.Span())
	heap := lt.HeapShaped()

	switch n.Op {
	case token.PLUS:
		if lt.Kind == types.Str {
			cc.popHeap(2)
			cc.emitOp(Concat, line)
			cc.pushHeap()
			return nil
		}
		cc.popFlat(2)
		cc.emitOp(pickArith(lt, IntAdd, FloatAdd), line)
		cc.pushFlat()
	case token.MINUS:
		cc.popFlat(2)
		cc.emitOp(pickArith(lt, IntSub, FloatSub), line)
		cc.pushFlat()
	case token.STAR:
		cc.popFlat(2)
		cc.emitOp(pickArith(lt, IntMul, FloatMul), line)
		cc.pushFlat()
	case token.SLASH:
		cc.popFlat(2)
		cc.emitOp(pickArith(lt, IntDiv, FloatDiv), line)
		cc.pushFlat()
	case token.LT, token.LE, token.GT, token.GE:
		cc.popFlat(2)
		cc.emitOp(pickCompare(lt, n.Op), line)
		cc.pushFlat()
	case token.EQ, token.NEQ:
		if heap {
			cc.popHeap(2)
			if n.Op == token.EQ {
				cc.emitOp(HeapEqual, line)
			} else {
				cc.emitOp(HeapNotEqual, line)
			}
			cc.pushFlat()
			return nil
		}
		cc.popFlat(2)
		cc.emitOp(pickEquality(lt, n.Op), line)
		cc.pushFlat()
	case token.AND:
		cc.popFlat(2)
		cc.emitOp(And, line)
		cc.pushFlat()
	case token.OR:
		cc.popFlat(2)
		cc.emitOp(Or, line)
		cc.pushFlat()
	case token.TO:
		cc.popFlat(2)
		cc.emitOp(To, line)
		cc.pushHeap()
	default:
		return fmt.Errorf("line %d: compiler: unhandled binary operator %s", line, n.Op)
	}
	return nil
}

func pickArith(t *types.Type, i, f OpCode) OpCode {
	if t.Kind == types.Float {
		return f
	}
	return i
}

func pickCompare(t *types.Type, op token.Token) OpCode {
	isFloat := t.Kind == types.Float
	switch op {
	case token.LT:
		if isFloat {
			return FloatLess
		}
		return IntLess
	case token.LE:
		if isFloat {
			return FloatLessEqual
		}
		return IntLessEqual
	case token.GT:
		if isFloat {
			return FloatGreater
		}
		return IntGreater
	default: // token.GE
		if isFloat {
			return FloatGreaterEqual
		}
		return IntGreaterEqual
	}
}

func pickEquality(t *types.Type, op token.Token) OpCode {
	switch t.Kind {
	case types.Float:
		if op == token.EQ {
			return FloatEqual
		}
		return FloatNotEqual
	case types.Bool:
		if op == token.EQ {
			return BoolEqual
		}
		return BoolNotEqual
	default: // Int
		if op == token.EQ {
			return IntEqual
		}
		return IntNotEqual
	}
}

// compileIdent loads name's current value: a local/parameter slot in this
// chunk, an upvalue captured from an enclosing one, or a top-level
// global/builtin pushed as a native-function heap constant.
func (cc *chunkComp) compileIdent(n *ast.IdentExpr) error {
	line := int(n.Span())
	if slot, heap, ok := cc.resolveLocal(n.Name); ok {
		if heap {
			cc.emitOpU16(GetHeapLocal, uint16(slot), line)
			cc.pushHeap()
		} else {
			cc.emitOpU16(GetLocal, uint16(slot), line)
			cc.pushFlat()
		}
		return nil
	}
	if slot, heap, ok := cc.resolveUpvalue(n.Name); ok {
		if heap {
			cc.emitOpU16(GetHeapUpvalue, uint16(slot), line)
			cc.pushHeap()
		} else {
			cc.emitOpU16(GetUpvalue, uint16(slot), line)
			cc.pushFlat()
		}
		return nil
	}
	// Falls through to a global/builtin: pushed as a NativeFunction heap
	// constant resolved by name against lang/machine's universe table.
	// n.String() is the bare name unless the typechecker recorded a
	// print[Int]/print[Float]-style instantiation, in which case it is
	// the expanded name that table key is registered under.
	idx := cc.chunk.addNativeConstant(n.String())
	cc.emitOpU16(HeapConstant, uint16(idx), line)
	cc.pushHeap()
	return nil
}

// resolveUpvalue finds name in an enclosing chunkComp and records it in
// this chunk's own upvalue list (capturing transitively through
// intermediate nesting levels if needed), returning its index in *this*
// chunk's upvalue array.
func (cc *chunkComp) resolveUpvalue(name string) (slot int, heap bool, ok bool) {
	if cc.parent == nil {
		return 0, false, false
	}
	if pSlot, pHeap, pOk := cc.parent.resolveLocal(name); pOk {
		return cc.addUpvalue(name, pHeap, pSlot, false), pHeap, true
	}
	if pSlot, pHeap, pOk := cc.parent.resolveUpvalue(name); pOk {
		return cc.addUpvalue(name, pHeap, pSlot, true), pHeap, true
	}
	return 0, false, false
}

func (cc *chunkComp) addUpvalue(name string, heap bool, parentSlot int, fromParentUpvalue bool) int {
	for i, uv := range cc.upvalues {
		if uv.Name == name {
			return i
		}
	}
	cc.upvalues = append(cc.upvalues, Upvalue{Name: name, Heap: heap, Slot: parentSlot, FromParentUpvalue: fromParentUpvalue})
	return len(cc.upvalues) - 1
}

func (cc *chunkComp) compileAssignment(n *ast.AssignmentExpr) error {
	if fn, ok := n.Value.(*ast.FunctionExpr); ok {
		return cc.compileFunctionValue(fn, n.Name, cc.chunkExpandedName(fn, n.Name))
	}
	t, err := n.Value.Type()
	if err != nil {
		return err
	}
	if err := cc.compileExpr(n.Value); err != nil {
		return err
	}
	cc.declareLocal(n.Name, t.HeapShaped(), nil)
	return nil
}

func (cc *chunkComp) chunkExpandedName(fn *ast.FunctionExpr, name string) string {
	if expanded, ok := cc.prog.expandedNameFor(fn); ok {
		return expanded
	}
	return name
}

// compileFunctionValue compiles fn into its own chunk (registering it
// under expandedName in the program-wide cache when bound to one) and
// pushes a closure value for it onto the heap stack — and, when name is
// non-empty, declares a local binding too.
func (cc *chunkComp) compileFunctionValue(fn *ast.FunctionExpr, name, expandedName string) error {
	line := int(fn.Span())
	if expandedName != "" {
		if cached, ok := cc.prog.chunks.Get(expandedName); ok {
			idx := cc.chunk.addFuncTemplate(cached, nil)
			cc.emitOpU16(HeapConstant, uint16(idx), line)
			cc.pushHeap()
			if name != "" {
				cc.declareLocal(name, true, fn)
			}
			return nil
		}
	}

	child := &chunkComp{prog: cc.prog, chunk: newChunk(name, expandedName), parent: cc}
	for _, p := range fn.Params {
		child.declareLocal(p.Name, p.Type().HeapShaped(), nil)
		if p.Type().HeapShaped() {
			child.chunk.NumHeapParams++
		} else {
			child.chunk.NumFlatParams++
		}
	}
	if fn.SelfName != "" {
		// A recursive call inside the body reads its own closure from a
		// reserved heap slot just past the declared parameters; capturing
		// it as an upvalue (by-value at creation time, like every other
		// capture) would read the slot before the closure exists, so
		// lang/machine's Call handling instead pushes the running
		// closure's own reference into this slot when it sets up the
		// callee's frame.
		child.declareLocal(fn.SelfName, true, fn)
		child.chunk.HasSelfSlot = true
	}
	if err := child.compileSequence(fn.Body.Exprs); err != nil {
		return err
	}
	retT, err := fn.Body.Type()
	if err != nil {
		return err
	}
	child.chunk.RetType = retT
	child.emitOp(Return, int(fn.Body.Span()))
	child.chunk.MaxFlatStack = child.maxFlat
	child.chunk.MaxHeapStack = child.maxHeap

	if expandedName != "" {
		cc.prog.chunks.Put(expandedName, child.chunk)
	}
	idx := cc.chunk.addFuncTemplate(child.chunk, child.upvalues)
	// Upvalue captures must be pushed just before the HeapConstant that
	// instantiates this closure, each by its own name resolved in cc
	// (the enclosing frame at the point of definition); HeapConstant
	// consumes them all when building the closure's capture array.
	var nFlatCaptures, nHeapCaptures int
	for _, uv := range child.upvalues {
		if uv.Heap {
			if uv.FromParentUpvalue {
				cc.emitOpU16(GetHeapUpvalue, uint16(uv.Slot), line)
			} else {
				cc.emitOpU16(GetHeapLocal, uint16(uv.Slot), line)
			}
			cc.pushHeap()
			nHeapCaptures++
		} else {
			if uv.FromParentUpvalue {
				cc.emitOpU16(GetUpvalue, uint16(uv.Slot), line)
			} else {
				cc.emitOpU16(GetLocal, uint16(uv.Slot), line)
			}
			cc.pushFlat()
			nFlatCaptures++
		}
	}
	cc.emitOpU16(HeapConstant, uint16(idx), line)
	cc.popFlat(nFlatCaptures)
	cc.popHeap(nHeapCaptures)
	cc.pushHeap()
	if name != "" {
		cc.declareLocal(name, true, fn)
	}
	return nil
}

func (cc *chunkComp) compileCall(n *ast.CallExpr) error {
	line := int(n.Span())
	if err := cc.compileExpr(n.Callee); err != nil {
		return err
	}
	var nFlat, nHeap int
	for _, a := range n.Args {
		t, err := a.Type()
		if err != nil {
			return err
		}
		if err := cc.compileExpr(a); err != nil {
			return err
		}
		if t.HeapShaped() {
			nHeap++
		} else {
			nFlat++
		}
	}
	cc.chunk.writeOp(Call, line)
	cc.chunk.writeByte(byte(nFlat), line)
	cc.chunk.writeByte(byte(nHeap), line)
	cc.popHeap(1) // the callee
	cc.popFlat(nFlat)
	cc.popHeap(nHeap)

	retT, err := n.Type()
	if err != nil {
		return err
	}
	if retT.HeapShaped() {
		cc.pushHeap()
	} else {
		cc.pushFlat()
	}
	return nil
}

func (cc *chunkComp) compileIf(n *ast.IfExpr) error {
	line := int(n.Span())
	if err := cc.compileExpr(n.Cond); err != nil {
		return err
	}
	cc.popFlat(1)
	elseJump := cc.emitJump(JumpIfFalse, line)

	if err := cc.compileBlock(n.Then); err != nil {
		return err
	}
	thenT, err := n.Then.Type()
	if err != nil {
		return err
	}
	if n.Else == nil {
		if thenT.HeapShaped() {
			cc.emitOp(WrapHeapSome, line)
		} else {
			cc.popFlat(1)
			cc.emitOp(WrapSome, line)
			cc.pushHeap()
		}
	}
	endJump := cc.emitJump(Jump, line)

	cc.patchJump(elseJump)
	if n.Else != nil {
		if thenT.HeapShaped() {
			cc.popHeap(1)
		} else {
			cc.popFlat(1)
		}
		if err := cc.compileBlock(n.Else); err != nil {
			return err
		}
	} else {
		// No else: the false path produces a typed None matching the
		// then-branch's element type. Maybe(T)'s flat-vs-heap
		// representation is picked once by T.HeapShaped(), and every
		// consumer (Unwrap/UnwrapHeap) assumes both arms of the if
		// produced the same one — but nothing was actually computed on
		// this path, so it's built with the no-payload Wrap*None op
		// rather than re-wrapping a placeholder as present.
		if thenT.HeapShaped() {
			cc.popHeap(1)
			cc.emitOp(WrapHeapNone, line)
		} else {
			cc.popHeap(1)
			cc.emitOp(WrapNone, line)
		}
		cc.pushHeap()
	}
	cc.patchJump(endJump)
	return nil
}

func (cc *chunkComp) compileArray(n *ast.ArrayExpr) error {
	line := int(n.Span())
	if len(n.Elems) == 0 {
		if n.EmptyAnnot != nil && n.EmptyAnnot.Annot.HeapShaped() {
			cc.emitOpU16(ArrayHeap, 0, line)
		} else {
			cc.emitOpU16(ArrayFlat, 0, line)
		}
		cc.pushHeap()
		return nil
	}
	elemT, err := n.Elems[0].Type()
	if err != nil {
		return err
	}
	for _, e := range n.Elems {
		if err := cc.compileExpr(e); err != nil {
			return err
		}
	}
	if elemT.HeapShaped() {
		cc.popHeap(len(n.Elems))
		cc.emitOpU16(ArrayHeap, uint16(len(n.Elems)), line)
	} else {
		cc.popFlat(len(n.Elems))
		cc.emitOpU16(ArrayFlat, uint16(len(n.Elems)), line)
	}
	cc.pushHeap()
	return nil
}

func (cc *chunkComp) compileGetField(n *ast.GetFieldExpr) error {
	line := int(n.Span())
	t, err := n.Target.Type()
	if err != nil {
		return err
	}
	if err := cc.compileExpr(n.Target); err != nil {
		return err
	}
	cc.popHeap(1)
	idx := fieldIndex(t, n.Field)
	cc.emitOpU16(GetField, uint16(idx), line)
	ft, _ := t.FieldType(n.Field)
	if ft.HeapShaped() {
		cc.pushHeap()
	} else {
		cc.pushFlat()
	}
	return nil
}

func fieldIndex(t *types.Type, name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (cc *chunkComp) compileMaybe(n *ast.MaybeExpr) error {
	line := int(n.Span())
	if n.Some {
		t, err := n.Inner.Type()
		if err != nil {
			return err
		}
		if err := cc.compileExpr(n.Inner); err != nil {
			return err
		}
		if t.HeapShaped() {
			cc.popHeap(1)
			cc.emitOp(WrapHeapSome, line)
		} else {
			cc.popFlat(1)
			cc.emitOp(WrapSome, line)
		}
		cc.pushHeap()
		return nil
	}
	// {}:T — a typed None: no payload to compile, just push the empty
	// Maybe directly.
	if n.NullAnnot.Annot.HeapShaped() {
		cc.emitOp(WrapHeapNone, line)
	} else {
		cc.emitOp(WrapNone, line)
	}
	cc.pushHeap()
	return nil
}

func (cc *chunkComp) compileUnwrap(n *ast.UnwrapExpr) error {
	line := int(n.Span())
	mt, err := n.Target.Type()
	if err != nil {
		return err
	}
	if err := cc.compileExpr(n.Target); err != nil {
		return err
	}
	if err := cc.compileExpr(n.Default); err != nil {
		return err
	}
	if mt.Elem.HeapShaped() {
		cc.popHeap(2)
		cc.emitOp(UnwrapHeap, line)
		cc.pushHeap()
	} else {
		cc.popHeap(1)
		cc.popFlat(1)
		cc.emitOp(Unwrap, line)
		cc.pushFlat()
	}
	return nil
}

// compileFuncArg compiles a functional-operator's function argument,
// always yielding a closure value on the heap stack.
func (cc *chunkComp) compileFuncArg(fn ast.Expr) error {
	lit, ok := fn.(*ast.FunctionExpr)
	if !ok {
		return cc.compileExpr(fn)
	}
	return cc.compileFunctionValue(lit, "", cc.chunkExpandedName(lit, ""))
}

func (cc *chunkComp) compileMap(n *ast.MapExpr) error {
	line := int(n.Span())
	if err := cc.compileFuncArg(n.Fn); err != nil {
		return err
	}
	if err := cc.compileExpr(n.Source); err != nil {
		return err
	}
	cc.popHeap(2)
	cc.emitOp(Map, line)
	cc.pushHeap()
	return nil
}

func (cc *chunkComp) compileReduce(n *ast.ReduceExpr) error {
	line := int(n.Span())
	initT, err := n.Init.Type()
	if err != nil {
		return err
	}
	if err := cc.compileFuncArg(n.Fn); err != nil {
		return err
	}
	if err := cc.compileExpr(n.Source); err != nil {
		return err
	}
	if err := cc.compileExpr(n.Init); err != nil {
		return err
	}
	cc.popHeap(2)
	if initT.HeapShaped() {
		cc.popHeap(1)
		cc.emitOp(Reduce, line)
		cc.pushHeap()
	} else {
		cc.popFlat(1)
		cc.emitOp(Reduce, line)
		cc.pushFlat()
	}
	return nil
}

func (cc *chunkComp) compileFilter(n *ast.FilterExpr) error {
	line := int(n.Span())
	if err := cc.compileFuncArg(n.Fn); err != nil {
		return err
	}
	if err := cc.compileExpr(n.Source); err != nil {
		return err
	}
	cc.popHeap(2)
	cc.emitOp(Filter, line)
	cc.pushHeap()
	return nil
}

func (cc *chunkComp) compileZipMap(n *ast.ZipMapExpr) error {
	line := int(n.Span())
	if err := cc.compileFuncArg(n.Fn); err != nil {
		return err
	}
	for _, s := range n.Sources {
		if err := cc.compileExpr(s); err != nil {
			return err
		}
	}
	cc.popHeap(1 + len(n.Sources))
	cc.chunk.writeOp(ZipMap, line)
	cc.chunk.writeByte(byte(len(n.Sources)), line)
	cc.pushHeap()
	return nil
}

func (cc *chunkComp) compileLen(n *ast.LenExpr) error {
	line := int(n.Span())
	if err := cc.compileExpr(n.Target); err != nil {
		return err
	}
	cc.popHeap(1)
	cc.emitOp(Len, line)
	cc.pushFlat()
	return nil
}

func (cc *chunkComp) compileTypeDef(n *ast.TypeDefExpr) error {
	line := int(n.Span())
	t, err := n.Type()
	if err != nil {
		return err
	}
	idx := cc.chunk.addTypeDefConstant(t.Ret)
	cc.emitOpU16(HeapConstant, uint16(idx), line)
	cc.pushHeap()
	return nil
}
