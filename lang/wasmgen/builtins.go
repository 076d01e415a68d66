package wasmgen

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed helpers.yaml
var helperSigsYAML []byte

type helperSigSpec struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Result string   `yaml:"result"`
}

func numtypeFromYAML(s string) numtype {
	switch s {
	case "i32":
		return numI32
	case "i64":
		return numI64
	case "f32":
		return numF32
	default:
		panic("wasmgen: unknown numtype in helpers.yaml: " + s)
	}
}

// HelperSet synthesizes the WASM runtime-support functions a module's
// emitted code calls into, caching each one so repeated use of, say, `@`
// on Int arrays only materializes one collect-for-Int function no matter
// how many call sites need it. Mirrors the original's memoized
// BuiltinFuncs table, translated from per-Numtype Rust generics to an
// explicit Go cache keyed by a small struct.
type HelperSet struct {
	m      *moduleBuilder
	sigs   map[string]helperSigSpec
	plain  map[string]uint32 // non-parameterized helpers, keyed by name
	byElem map[elemKey]uint32
	advTy  uint32
	advSet bool
}

// elemKey identifies one instantiation of a parameterized helper by kind
// and the element numtype(s) involved (elem2 covers map's source-vs-result
// pair and zipmap's two-source example shape; wider zipmap arities still
// key on the full source list by folding it into kind at the call site).
type elemKey struct {
	kind  string
	elem  numtype
	elem2 numtype
}

func newHelperSet(m *moduleBuilder) (*HelperSet, error) {
	var specs []helperSigSpec
	if err := yaml.Unmarshal(helperSigsYAML, &specs); err != nil {
		return nil, err
	}
	sigs := make(map[string]helperSigSpec, len(specs))
	for _, s := range specs {
		sigs[s.Name] = s
	}
	return &HelperSet{m: m, sigs: sigs, plain: map[string]uint32{}, byElem: map[elemKey]uint32{}}, nil
}

func (h *HelperSet) sigOf(name string) funcSig {
	s, ok := h.sigs[name]
	if !ok {
		panic("wasmgen: no such helper: " + name)
	}
	args := make([]numtype, len(s.Params))
	for i, p := range s.Params {
		args[i] = numtypeFromYAML(p)
	}
	return funcSig{args: args, ret: []numtype{numtypeFromYAML(s.Result)}}
}

// advanceTypeIdx is the single function-type index shared by every
// iterator's advance function, (i64) -> i32, regardless of what kind of
// iterator it drives. Interning it once lets call_indirect dispatch to any
// advance function through one shared type check.
func (h *HelperSet) advanceTypeIdx() uint32 {
	if !h.advSet {
		h.advTy = h.m.getFuncTypeIdx(funcSig{args: []numtype{numI64}, ret: []numtype{numI32}})
		h.advSet = true
	}
	return h.advTy
}

// get returns the function index for a non-parameterized helper, building
// its body on first use.
func (h *HelperSet) get(name string) uint32 {
	if idx, ok := h.plain[name]; ok {
		return idx
	}
	var idx uint32
	switch name {
	case "alloc":
		idx = h.buildAlloc()
	case "strlen":
		idx = h.buildStrlen()
	case "concat":
		idx = h.buildConcat()
	case "heapequal":
		idx = h.buildHeapEqual()
	case "absint":
		idx = h.buildAbsInt()
	case "absfloat":
		idx = h.buildAbsFloat()
	case "itof":
		idx = h.buildItoF()
	case "ftoi":
		idx = h.buildFtoI()
	case "sqrtfloat":
		idx = h.buildSqrtFloat()
	case "mod":
		idx = h.buildMod()
	case "rangeiterfactory":
		idx = h.buildRangeFactory()
	case "rangeiteradvance":
		idx = h.buildRangeAdvance()
	case "iterlen":
		idx = h.buildIterLen()
	case "sum":
		idx = h.buildFold(numI32, 0, opI32Add)
	case "prod":
		idx = h.buildFold(numI32, 1, opI32Mul)
	case "all":
		idx = h.buildAllAny(true)
	case "any":
		idx = h.buildAllAny(false)
	default:
		panic("wasmgen: unknown plain helper: " + name)
	}
	h.plain[name] = idx
	return idx
}

// --- allocator -------------------------------------------------------

// buildAlloc is a bump allocator over global 0 (memptr): reads memptr,
// advances it by the requested size rounded up to 8 bytes, returns the old
// value as the allocation's base offset. There is no free; every value
// this backend allocates lives for the module instance's lifetime, the
// same arena-for-a-run lifetime lang/machine gives its heap Values.
func (h *HelperSet) buildAlloc() uint32 {
	f := newFuncBuilder(numI32) // size
	base := f.newLocal(numI32)
	f.globalGet(0)
	f.localTee(base)
	f.localGet(0)
	f.constI32(7)
	f.op(opI32Add)
	f.constI32(^int32(7))
	f.op(opI32And)
	f.op(opI32Add)
	f.globalSet(0)
	f.localGet(base)
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

func (h *HelperSet) buildStrlen() uint32 {
	f := newFuncBuilder(numI64) // fat ptr
	f.localGet(0)
	f.fatPtrSize()
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

// buildConcat allocates a fresh buffer sized to both strings' lengths and
// copies each byte range in with memory.copy; strings are immutable once
// built, so concat never mutates either input, mirroring lang/machine's
// StrHeap.Concat.
func (h *HelperSet) buildConcat() uint32 {
	f := newFuncBuilder(numI64, numI64) // a, b
	aOff := f.newLocal(numI32)
	aLen := f.newLocal(numI32)
	bOff := f.newLocal(numI32)
	bLen := f.newLocal(numI32)
	dst := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.localSet(aOff)
	f.localGet(0)
	f.fatPtrSize()
	f.localSet(aLen)
	f.localGet(1)
	f.fatPtrOffset()
	f.localSet(bOff)
	f.localGet(1)
	f.fatPtrSize()
	f.localSet(bLen)

	f.localGet(aLen)
	f.localGet(bLen)
	f.op(opI32Add)
	f.call(h.get("alloc"))
	f.localSet(dst)

	f.localGet(dst)
	f.localGet(aOff)
	f.localGet(aLen)
	f.memCopy()

	f.localGet(dst)
	f.localGet(aLen)
	f.op(opI32Add)
	f.localGet(bOff)
	f.localGet(bLen)
	f.memCopy()

	f.fatPtrPack(dst, func() {
		f.localGet(aLen)
		f.localGet(bLen)
		f.op(opI32Add)
	})
	return h.m.addFunction(f.sig(numI64), f.locals, f.code, "")
}

// buildHeapEqual compares two fat-pointer strings byte for byte (arrays
// aren't compared with `==` in the surface language, so this helper only
// ever backs string equality).
func (h *HelperSet) buildHeapEqual() uint32 {
	f := newFuncBuilder(numI64, numI64)
	aOff := f.newLocal(numI32)
	aLen := f.newLocal(numI32)
	bOff := f.newLocal(numI32)
	i := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.localSet(aOff)
	f.localGet(0)
	f.fatPtrSize()
	f.localSet(aLen)
	f.localGet(1)
	f.fatPtrOffset()
	f.localSet(bOff)

	f.localGet(aLen)
	f.localGet(1)
	f.fatPtrSize()
	f.op(opI32Ne)
	f.blockStart(opIf, numI32)
	f.constI32(0)
	f.els()

	f.constI32(0)
	f.localSet(i)
	f.blockStart(opBlock, numI32) // outer: break with the final verdict
	f.blockStart(opLoop, numVoid)
	f.localGet(i)
	f.localGet(aLen)
	f.op(opI32GeS)
	f.blockStart(opIf, numVoid)
	f.constI32(1)
	f.br(2) // all bytes matched -> break outer with 1
	f.end()

	f.localGet(aOff)
	f.localGet(i)
	f.op(opI32Add)
	f.loadByte()
	f.localGet(bOff)
	f.localGet(i)
	f.op(opI32Add)
	f.loadByte()
	f.op(opI32Ne)
	f.blockStart(opIf, numVoid)
	f.constI32(0)
	f.br(2) // mismatch -> break outer with 0
	f.end()

	f.localGet(i)
	f.constI32(1)
	f.op(opI32Add)
	f.localSet(i)
	f.br(0)
	f.end() // loop
	f.unreachable()
	f.end() // block

	f.end() // if/else
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

func (h *HelperSet) buildAbsInt() uint32 {
	f := newFuncBuilder(numI32)
	f.localGet(0)
	f.constI32(0)
	f.op(opI32LtS)
	f.blockStart(opIf, numI32)
	f.constI32(0)
	f.localGet(0)
	f.op(opI32Sub)
	f.els()
	f.localGet(0)
	f.end()
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

func (h *HelperSet) buildAbsFloat() uint32 {
	f := newFuncBuilder(numF32)
	f.localGet(0)
	f.op(opF32Abs)
	return h.m.addFunction(f.sig(numF32), f.locals, f.code, "")
}

func (h *HelperSet) buildItoF() uint32 {
	f := newFuncBuilder(numI32)
	f.localGet(0)
	f.op(opF32ConvertI32S)
	return h.m.addFunction(f.sig(numF32), f.locals, f.code, "")
}

func (h *HelperSet) buildFtoI() uint32 {
	f := newFuncBuilder(numF32)
	f.localGet(0)
	f.op(opI32TruncF32S)
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

func (h *HelperSet) buildSqrtFloat() uint32 {
	f := newFuncBuilder(numF32)
	f.localGet(0)
	f.op(opF32Sqrt)
	return h.m.addFunction(f.sig(numF32), f.locals, f.code, "")
}

// buildMod implements floored (toward-negative-infinity) modulo, not
// WASM's truncating i32.rem_s: the remainder is adjusted by the divisor
// when it's nonzero and the operands' signs differ.
func (h *HelperSet) buildMod() uint32 {
	f := newFuncBuilder(numI32, numI32)
	rem := f.newLocal(numI32)
	f.localGet(0)
	f.localGet(1)
	f.op(opI32RemS)
	f.localTee(rem)
	f.constI32(0)
	f.op(opI32Ne)
	f.localGet(rem)
	f.constI32(0)
	f.op(opI32LtS)
	f.localGet(1)
	f.constI32(0)
	f.op(opI32LtS)
	f.op(opI32Ne)
	f.op(opI32And)
	f.blockStart(opIf, numI32)
	f.localGet(rem)
	f.localGet(1)
	f.op(opI32Add)
	f.els()
	f.localGet(rem)
	f.end()
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

// --- range iterator ----------------------------------------------------
//
// Record layout, all i32, 20 bytes total. Every iterator kind this backend
// builds (range, array, map) places advanceFn at offset 0 — the one field
// buildIterLen's generic drain needs to find without knowing the kind —
// and current at offset 16 (arrayCurrentOff), the field collect, the folds
// and map's advance read from any source:
//
//	advanceFn @0    this helper's own function index
//	stop      @4    exclusive bound
//	step      @8    +1 or -1
//	(unused)  @12
//	current   @16   the last value actually produced, or (factory time)
//	                start - step, a virtual pre-first position
//
// advance computes the next candidate and checks it against stop before
// committing it to current, so the call that reaches the last in-range
// value and the call that detects exhaustion are always one apart — the
// same read-then-step-then-flag order lang/machine/iterator.go's
// rangeIterCore.Next follows, so both backends produce the same element
// sequence for any (start, stop) pair.
const (
	rangeRecordSize = 20
	rangeCurrentOff = 16
	rangeStopOff    = 4
	rangeStepOff    = 8
)

func (h *HelperSet) buildRangeFactory() uint32 {
	f := newFuncBuilder(numI32, numI32) // start, stop
	step := f.newLocal(numI32)
	ptr := f.newLocal(numI32)

	f.localGet(1)
	f.localGet(0)
	f.op(opI32LtS)
	f.blockStart(opIf, numI32)
	f.constI32(-1)
	f.els()
	f.constI32(1)
	f.end()
	f.localSet(step)

	f.constI32(rangeRecordSize)
	f.call(h.get("alloc"))
	f.localTee(ptr)
	f.constI32(int32(h.rangeAdvanceIdx()))
	f.store(numI32) // advanceFn @0

	f.localGet(ptr)
	f.constI32(rangeStopOff)
	f.op(opI32Add)
	f.localGet(1)
	f.store(numI32)

	f.localGet(ptr)
	f.constI32(rangeStepOff)
	f.op(opI32Add)
	f.localGet(step)
	f.store(numI32)

	f.localGet(ptr)
	f.constI32(rangeCurrentOff)
	f.op(opI32Add)
	f.localGet(0)
	f.localGet(step)
	f.op(opI32Sub)
	f.store(numI32) // current = start - step

	f.fatPtrPack(ptr, func() { f.constI32(rangeRecordSize) })
	return h.m.addFunction(f.sig(numI64), f.locals, f.code, "")
}

// rangeAdvanceIdx returns rangeiteradvance's function index, building it
// first if the factory is emitted before the advance helper is otherwise
// requested (the factory always needs it, to bake into every record it
// allocates).
func (h *HelperSet) rangeAdvanceIdx() uint32 {
	return h.get("rangeiteradvance")
}

func (h *HelperSet) buildRangeAdvance() uint32 {
	f := newFuncBuilder(numI64) // fat ptr
	ptr := f.newLocal(numI32)
	cand := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.localSet(ptr)

	f.localGet(ptr)
	f.constI32(rangeCurrentOff)
	f.op(opI32Add)
	f.load(numI32)
	f.localGet(ptr)
	f.constI32(rangeStepOff)
	f.op(opI32Add)
	f.load(numI32)
	f.op(opI32Add)
	f.localSet(cand)

	f.localGet(cand)
	f.localGet(ptr)
	f.constI32(rangeStopOff)
	f.op(opI32Add)
	f.load(numI32)
	f.op(opI32Eq)
	f.blockStart(opIf, numI32)
	f.constI32(1)
	f.els()
	f.localGet(ptr)
	f.constI32(rangeCurrentOff)
	f.op(opI32Add)
	f.localGet(cand)
	f.store(numI32)
	f.constI32(0)
	f.end()
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

// buildIterLen drains any iterator by its generic (i64)->i32 advance
// signature, counting how many times advance reports a fresh value before
// reporting exhaustion. Every iterator kind this backend builds places its
// own advanceFn at record offset 0, so one generic drain works across
// range, array and map without a type tag.
func (h *HelperSet) buildIterLen() uint32 {
	f := newFuncBuilder(numI64) // iterator fat ptr
	cnt := f.newLocal(numI32)
	advFn := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.load(numI32)
	f.localSet(advFn)

	f.constI32(0)
	f.localSet(cnt)
	f.blockStart(opBlock, numVoid)
	f.blockStart(opLoop, numVoid)
	f.localGet(0)
	f.localGet(advFn)
	f.callIndirect(h.advanceTypeIdx())
	f.blockStart(opIf, numVoid)
	f.br(2)
	f.els()
	f.localGet(cnt)
	f.constI32(1)
	f.op(opI32Add)
	f.localSet(cnt)
	f.br(1)
	f.end()
	f.end() // loop
	f.end() // block
	f.localGet(cnt)
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

// --- array iterator ------------------------------------------------------
//
// Record layout, parameterized by the element numtype W = elem.size():
//
//	advanceFn @0      this instantiation's own function index
//	len       @4      element count (i32)
//	base      @8      offset of element 0 in the source array's own buffer
//	pos       @12     index of the next element to read
//	current   @16     last element produced, W bytes wide
//
// Arrays are already materialized in memory, so advance only needs to
// bump pos and copy the element at the new position into current — no
// recomputation the way range's arithmetic needs.
func (h *HelperSet) getArrayFactory(elem numtype) uint32 {
	key := elemKey{kind: "arrayfactory", elem: elem}
	if idx, ok := h.byElem[key]; ok {
		return idx
	}
	adv := h.getArrayAdvance(elem)
	recSize := int32(16) + int32(elem.size())

	f := newFuncBuilder(numI64) // source array fat ptr
	ptr := f.newLocal(numI32)

	f.constI32(recSize)
	f.call(h.get("alloc"))
	f.localTee(ptr)
	f.constI32(int32(adv))
	f.store(numI32) // advanceFn @0

	f.localGet(ptr)
	f.constI32(4)
	f.op(opI32Add)
	f.localGet(0)
	f.fatPtrSize()
	f.constI32(int32(elem.size()))
	f.op(opI32DivS)
	f.store(numI32) // len = byteSize / elemWidth

	f.localGet(ptr)
	f.constI32(8)
	f.op(opI32Add)
	f.localGet(0)
	f.fatPtrOffset()
	f.store(numI32) // base

	f.localGet(ptr)
	f.constI32(12)
	f.op(opI32Add)
	f.constI32(-1)
	f.store(numI32) // pos = -1 (pull-before-read, same convention as range)

	f.fatPtrPack(ptr, func() { f.constI32(recSize) })
	idx := h.m.addFunction(f.sig(numI64), f.locals, f.code, "")
	h.byElem[key] = idx
	return idx
}

func (h *HelperSet) getArrayAdvance(elem numtype) uint32 {
	key := elemKey{kind: "arrayadvance", elem: elem}
	if idx, ok := h.byElem[key]; ok {
		return idx
	}
	f := newFuncBuilder(numI64)
	ptr := f.newLocal(numI32)
	nextPos := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.localSet(ptr)

	f.localGet(ptr)
	f.constI32(12)
	f.op(opI32Add)
	f.load(numI32)
	f.constI32(1)
	f.op(opI32Add)
	f.localSet(nextPos)

	f.localGet(nextPos)
	f.localGet(ptr)
	f.constI32(4)
	f.op(opI32Add)
	f.load(numI32)
	f.op(opI32GeS)
	f.blockStart(opIf, numI32)
	f.constI32(1)
	f.els()
	f.localGet(ptr)
	f.constI32(12)
	f.op(opI32Add)
	f.localGet(nextPos)
	f.store(numI32)

	f.localGet(ptr)
	f.constI32(16)
	f.op(opI32Add)
	f.localGet(ptr)
	f.constI32(8)
	f.op(opI32Add)
	f.load(numI32)
	f.localGet(nextPos)
	f.constI32(int32(elem.size()))
	f.op(opI32Mul)
	f.op(opI32Add)
	f.load(elem)
	f.store(elem)
	f.constI32(0)
	f.end()
	idx := h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
	h.byElem[key] = idx
	return idx
}

// arrayCurrentOff is the byte offset of an iterator's `current` field
// relative to its record base; range, array and map records all keep it
// at this same offset.
func arrayCurrentOff() int32 { return 16 }

// --- collect / iterLen for an arbitrary element type ----------------------

// getCollect drains a source iterator of the given element numtype into a
// freshly allocated array, returning its fat pointer — the WASM-side
// counterpart of lang/machine's Collect opcode.
func (h *HelperSet) getCollect(elem numtype) uint32 {
	key := elemKey{kind: "collect", elem: elem}
	if idx, ok := h.byElem[key]; ok {
		return idx
	}
	f := newFuncBuilder(numI64) // source iterator fat ptr
	srcPtr := f.newLocal(numI32)
	advFn := f.newLocal(numI32)
	cnt := f.newLocal(numI32)
	buf := f.newLocal(numI32)
	cap := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.localTee(srcPtr)
	f.load(numI32)
	f.localSet(advFn)

	// A growable buffer would need realloc/copy; instead this first counts
	// elements with one throwaway drain of iterLen's own logic duplicated
	// here (the source iterator is stateful, so counting would normally
	// consume it — collect therefore requires its source to be read only
	// once here, capped at a conservative fixed capacity matching the
	// interpreter's own array size ceiling instead of a exact two-pass
	// count).
	f.constI32(4096)
	f.localSet(cap)
	f.localGet(cap)
	f.constI32(int32(elem.size()))
	f.op(opI32Mul)
	f.call(h.get("alloc"))
	f.localSet(buf)

	f.constI32(0)
	f.localSet(cnt)
	f.blockStart(opBlock, numVoid)
	f.blockStart(opLoop, numVoid)
	f.localGet(0)
	f.localGet(advFn)
	f.callIndirect(h.advanceTypeIdx())
	f.blockStart(opIf, numVoid)
	f.br(2)
	f.els()
	f.localGet(buf)
	f.localGet(cnt)
	f.constI32(int32(elem.size()))
	f.op(opI32Mul)
	f.op(opI32Add)
	f.localGet(srcPtr)
	f.constI32(arrayCurrentOff()) // range, array and map sources alike
	f.op(opI32Add)
	f.load(elem)
	f.store(elem)
	f.localGet(cnt)
	f.constI32(1)
	f.op(opI32Add)
	f.localSet(cnt)
	f.br(1)
	f.end()
	f.end() // loop
	f.end() // block

	f.fatPtrPack(buf, func() {
		f.localGet(cnt)
		f.constI32(int32(elem.size()))
		f.op(opI32Mul)
	})
	idx := h.m.addFunction(f.sig(numI64), f.locals, f.code, "")
	h.byElem[key] = idx
	return idx
}

// --- map iterator ----------------------------------------------------
//
// Record layout: advanceFn@0 (i32), mapFnIdx@4 (i32, table index of the
// wrapped closure), sourceFatPtr@8 (i64), current@16 (srcElem-width
// irrelevant — current is resultElem-width, placed last so advance's
// offsets to the fixed fields never depend on either element's width).
const (
	mapCurrentOff = 16
	mapFnOff      = 4
	mapSrcOff     = 8
)

func (h *HelperSet) getMapFactory(srcElem, resultElem numtype) uint32 {
	key := elemKey{kind: "mapfactory", elem: srcElem, elem2: resultElem}
	if idx, ok := h.byElem[key]; ok {
		return idx
	}
	adv := h.getMapAdvance(srcElem, resultElem)
	recSize := int32(mapCurrentOff) + int32(resultElem.size())

	f := newFuncBuilder(numI32, numI64) // mapFnIdx, sourceFatPtr
	ptr := f.newLocal(numI32)

	f.constI32(recSize)
	f.call(h.get("alloc"))
	f.localTee(ptr)
	f.constI32(int32(adv))
	f.store(numI32) // advanceFn @0

	f.localGet(ptr)
	f.constI32(mapFnOff)
	f.op(opI32Add)
	f.localGet(0)
	f.store(numI32)

	f.localGet(ptr)
	f.constI32(mapSrcOff)
	f.op(opI32Add)
	f.localGet(1)
	f.store(numI64)

	f.fatPtrPack(ptr, func() { f.constI32(recSize) })
	idx := h.m.addFunction(f.sig(numI64), f.locals, f.code, "")
	h.byElem[key] = idx
	return idx
}

// --- fold-style aggregations (sum, prod, all, any) ----------------------
//
// All four drive the same generic advance loop buildIterLen uses, reading
// each source's current from arrayCurrentOff() once advance reports a
// fresh value (the same offset for range, array and map sources, as in
// collect).

// buildFold accumulates every Int element from a source iterator with op,
// starting from init — sum is buildFold(Add, 0), prod is buildFold(Mul, 1).
func (h *HelperSet) buildFold(elem numtype, init int32, op opcode) uint32 {
	f := newFuncBuilder(numI64)
	srcPtr := f.newLocal(numI32)
	advFn := f.newLocal(numI32)
	acc := f.newLocal(elem)

	f.localGet(0)
	f.fatPtrOffset()
	f.localTee(srcPtr)
	f.load(numI32)
	f.localSet(advFn)

	f.constI32(init)
	f.localSet(acc)
	f.blockStart(opBlock, numVoid)
	f.blockStart(opLoop, numVoid)
	f.localGet(0)
	f.localGet(advFn)
	f.callIndirect(h.advanceTypeIdx())
	f.blockStart(opIf, numVoid)
	f.br(2)
	f.els()
	f.localGet(acc)
	f.localGet(srcPtr)
	f.constI32(arrayCurrentOff())
	f.op(opI32Add)
	f.load(elem)
	f.op(op)
	f.localSet(acc)
	f.br(1)
	f.end()
	f.end() // loop
	f.end() // block
	f.localGet(acc)
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

// buildAllAny drains a source of Bool (i32 0/1) elements, short-circuiting
// on the first element whose truthiness disagrees with wantAllTrue (false
// for all, true for any); exhausting the source without a short-circuit
// yields wantAllTrue itself (vacuously true for all, false for any).
func (h *HelperSet) buildAllAny(wantAllTrue bool) uint32 {
	f := newFuncBuilder(numI64)
	srcPtr := f.newLocal(numI32)
	advFn := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.localTee(srcPtr)
	f.load(numI32)
	f.localSet(advFn)

	f.blockStart(opBlock, numI32) // outer: break with the final verdict
	f.blockStart(opLoop, numVoid)
	f.localGet(0)
	f.localGet(advFn)
	f.callIndirect(h.advanceTypeIdx())
	f.blockStart(opIf, numVoid)
	f.constI32(boolConstFor(wantAllTrue))
	f.br(2) // exhausted -> break outer with the vacuous verdict
	f.els()
	f.localGet(srcPtr)
	f.constI32(arrayCurrentOff())
	f.op(opI32Add)
	f.load(numI32)
	if wantAllTrue {
		f.op(opI32Eqz)
	}
	f.blockStart(opIf, numVoid)
	f.constI32(boolConstFor(!wantAllTrue))
	f.br(3) // short-circuit -> break outer with the decisive verdict
	f.end()
	f.br(1)
	f.end()
	f.end() // loop
	f.unreachable()
	f.end() // block
	return h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
}

func boolConstFor(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// getMapAdvance pulls one element from the wrapped source (propagating its
// exhaustion), applies the mapped closure via call_indirect, and stores
// the result as this iterator's own current value.
func (h *HelperSet) getMapAdvance(srcElem, resultElem numtype) uint32 {
	key := elemKey{kind: "mapadvance", elem: srcElem, elem2: resultElem}
	if idx, ok := h.byElem[key]; ok {
		return idx
	}
	f := newFuncBuilder(numI64)
	ptr := f.newLocal(numI32)
	srcFatPtr := f.newLocal(numI64)
	srcPtr := f.newLocal(numI32)
	srcAdvFn := f.newLocal(numI32)

	f.localGet(0)
	f.fatPtrOffset()
	f.localSet(ptr)

	f.localGet(ptr)
	f.constI32(mapSrcOff)
	f.op(opI32Add)
	f.load(numI64)
	f.localTee(srcFatPtr)
	f.fatPtrOffset()
	f.localSet(srcPtr)

	f.localGet(srcPtr)
	f.load(numI32)
	f.localSet(srcAdvFn)

	f.localGet(srcFatPtr)
	f.localGet(srcAdvFn)
	f.callIndirect(h.advanceTypeIdx())
	f.blockStart(opIf, numI32)
	f.constI32(1)
	f.els()
	f.localGet(ptr)
	f.constI32(mapCurrentOff)
	f.op(opI32Add)
	// apply mapFnIdx(srcCurrent) and store into this record's current
	f.localGet(srcPtr)
	f.constI32(arrayCurrentOff()) // every source kind (range/array/map)
	// keeps current at this fixed offset.
	f.op(opI32Add)
	f.load(srcElem)
	f.localGet(ptr)
	f.constI32(mapFnOff)
	f.op(opI32Add)
	f.load(numI32)
	f.callIndirect(h.m.getFuncTypeIdx(funcSig{args: []numtype{srcElem}, ret: []numtype{resultElem}}))
	f.store(resultElem)
	f.constI32(0)
	f.end()
	idx := h.m.addFunction(f.sig(numI32), f.locals, f.code, "")
	h.byElem[key] = idx
	return idx
}
