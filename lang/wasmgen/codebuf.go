package wasmgen

// codeBuf accumulates one function body's instruction bytes. Both the
// synthesized helpers (builtins.go) and the per-expression emitter
// (emitter.go) build their bodies through this same small writer, the way
// the original's BuiltinFunc wrote opcodes/operands incrementally rather
// than templating whole instruction sequences as strings.
type codeBuf struct {
	code []byte
}

func (b *codeBuf) op(o opcode) { b.code = append(b.code, byte(o)) }

func (b *codeBuf) byte(v byte) { b.code = append(b.code, v) }

func (b *codeBuf) u32(v uint32) { b.code = appendU32(b.code, v) }

func (b *codeBuf) i32(v int32) { b.code = appendI32(b.code, v) }

func (b *codeBuf) i64(v int64) { b.code = appendI64(b.code, v) }

func (b *codeBuf) constI32(v int32) {
	b.op(opI32Const)
	b.i32(v)
}

func (b *codeBuf) constI64(v int64) {
	b.op(opI64Const)
	b.i64(v)
}

func (b *codeBuf) localGet(idx uint32) {
	b.op(opLocalGet)
	b.u32(idx)
}

func (b *codeBuf) localSet(idx uint32) {
	b.op(opLocalSet)
	b.u32(idx)
}

func (b *codeBuf) localTee(idx uint32) {
	b.op(opLocalTee)
	b.u32(idx)
}

func (b *codeBuf) globalGet(idx uint32) {
	b.op(opGlobalGet)
	b.u32(idx)
}

func (b *codeBuf) globalSet(idx uint32) {
	b.op(opGlobalSet)
	b.u32(idx)
}

func (b *codeBuf) call(funcIdx uint32) {
	b.op(opCall)
	b.u32(funcIdx)
}

// callIndirect calls a funcref-table entry (whose index is already on the
// stack) against typeIdx's signature, through table 0 (the module's only
// table).
func (b *codeBuf) callIndirect(typeIdx uint32) {
	b.op(opCallIndirect)
	b.u32(typeIdx)
	b.byte(0x00)
}

// blockStart opens a block/loop/if whose result is a single numtype
// (numVoid for none); multi-result blocks (a Maybe's presence+payload
// pair) go through blockStartMulti instead, since a plain valtype
// blocktype byte can only name one result.
func (b *codeBuf) blockStart(o opcode, result numtype) {
	b.op(o)
	b.byte(byte(result))
}

// blockStartMulti opens a block/if whose result is sig's returns, encoded
// as a signed LEB128 type index into m's function-type table (the
// multi-value blocktype encoding; blocktype bytes 0x40/valtype only cover
// zero or one result).
func (b *codeBuf) blockStartMulti(m *moduleBuilder, o opcode, sig funcSig) {
	idx := m.getFuncTypeIdx(sig)
	b.op(o)
	b.code = appendI32(b.code, int32(idx))
}

func (b *codeBuf) els() { b.op(opElse) }

func (b *codeBuf) end() { b.op(opEnd) }

func (b *codeBuf) br(depth uint32) {
	b.op(opBr)
	b.u32(depth)
}

func (b *codeBuf) brIf(depth uint32) {
	b.op(opBrIf)
	b.u32(depth)
}

// load/store read or write a value of numtype n at the address on top of
// the stack (natural alignment, zero offset — every value this emitter
// stores is laid out at its own natural alignment by the bump allocator).
func (b *codeBuf) load(n numtype) {
	b.op(n.loadOp())
	b.align(n)
	b.u32(0)
}

func (b *codeBuf) store(n numtype) {
	b.op(n.storeOp())
	b.align(n)
	b.u32(0)
}

// loadByte/storeByte read or write a single byte at the address on top of
// the stack, used for string contents (UTF-8 bytes) rather than the
// natural-width load/store the record fields use.
func (b *codeBuf) loadByte() {
	b.op(opI32Load8U)
	b.byte(0x00)
	b.u32(0)
}

func (b *codeBuf) storeByte() {
	b.op(opI32Store8)
	b.byte(0x00)
	b.u32(0)
}

// memCopy emits memory.copy(dst, src, n) — all three already pushed, in
// that order — against the module's single memory (index 0 both sides).
func (b *codeBuf) memCopy() {
	b.op(opMiscPrefix)
	b.u32(10)
	b.byte(0x00)
	b.byte(0x00)
}

func (b *codeBuf) unreachable() { b.op(opUnreachable) }

func (b *codeBuf) align(n numtype) {
	switch n {
	case numI64:
		b.byte(0x03)
	default:
		b.byte(0x02)
	}
}

// fatPtrPack reads offsetLocal (i32) and runs pushSize to leave an i32 size
// on the stack, then combines them into the single i64 fat pointer
// (offset << 32) | size. WASM has no stack-shuffle instruction, so the
// offset is read from a local rather than threaded through the stack
// alongside whatever pushSize computes.
func (b *codeBuf) fatPtrPack(offsetLocal uint32, pushSize func()) {
	b.localGet(offsetLocal)
	b.op(opI64ExtendI32U)
	b.constI64(32)
	b.op(opI64Shl)
	pushSize()
	b.op(opI64ExtendI32U)
	b.op(opI64Or)
}

// fatPtrOffset pops an i64 fat pointer and pushes its offset half as i32.
func (b *codeBuf) fatPtrOffset() {
	b.constI64(32)
	b.op(opI64ShrU)
	b.op(opI32WrapI64)
}

// fatPtrSize pops an i64 fat pointer and pushes its size half as i32 (the
// low 32 bits truncate directly; no mask needed since wrap keeps the low
// word).
func (b *codeBuf) fatPtrSize() {
	b.op(opI32WrapI64)
}

// funcBuilder accumulates one function's signature, locals, and body.
// newLocal is the only way to obtain a local slot beyond the declared
// parameters, so index bookkeeping never drifts between the declared
// count and what the body actually references.
type funcBuilder struct {
	codeBuf
	params []numtype
	locals []numtype
}

func newFuncBuilder(params ...numtype) *funcBuilder {
	return &funcBuilder{params: params}
}

// newLocal declares a fresh local of type t and returns its index (locals
// are numbered right after the parameters, in declaration order).
func (f *funcBuilder) newLocal(t numtype) uint32 {
	f.locals = append(f.locals, t)
	return uint32(len(f.params) + len(f.locals) - 1)
}

func (f *funcBuilder) sig(ret ...numtype) funcSig {
	return funcSig{args: f.params, ret: ret}
}
