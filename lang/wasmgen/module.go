package wasmgen

var (
	wasmMagic   = [4]byte{0x00, 0x61, 0x73, 0x6d}
	wasmVersion = [4]byte{0x01, 0x00, 0x00, 0x00}
)

// funcSig is a WASM function type: argument numtypes plus the result
// numtypes one function body returns. A function whose Arbor return type
// is a Maybe returns its valueShape (presence flag plus payload), so ret
// can hold more than one numtype, which relies on WASM multi-value.
type funcSig struct {
	args []numtype
	ret  []numtype
}

func (s funcSig) equal(o funcSig) bool {
	if len(s.args) != len(o.args) || len(s.ret) != len(o.ret) {
		return false
	}
	for i := range s.args {
		if s.args[i] != o.args[i] {
			return false
		}
	}
	for i := range s.ret {
		if s.ret[i] != o.ret[i] {
			return false
		}
	}
	return true
}

func (s funcSig) bytes() []byte {
	out := []byte{funcTypeTag}
	argBytes := make([]byte, len(s.args))
	for i, a := range s.args {
		argBytes[i] = byte(a)
	}
	out = append(out, vector(argBytes)...)
	retBytes := make([]byte, len(s.ret))
	for i, r := range s.ret {
		retBytes[i] = byte(r)
	}
	out = append(out, vector(retBytes)...)
	return out
}

type export struct {
	name string
	idx  uint32
	kind exportKind
}

func (e export) bytes() []byte {
	out := encodeString(e.name)
	out = append(out, byte(e.kind))
	return appendU32(out, e.idx)
}

type dataSegment struct{ data []byte }

// bytes encodes a passive segment (flag 0x01): not auto-placed in memory,
// copied into a fresh allocation by the memory.init that emitStrConstant
// emits at each use.
func (d dataSegment) bytes() []byte {
	out := []byte{0x01}
	out = appendU32(out, uint32(len(d.data)))
	return append(out, d.data...)
}

type global struct {
	typ     numtype
	mutable bool
	init    int32
}

func (g global) bytes() []byte {
	out := []byte{byte(g.typ), boolByte(g.mutable), byte(g.typ.constOp())}
	out = appendI32(out, g.init)
	return append(out, byte(opEnd))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// moduleBuilder assembles a WASM module incrementally, in the emission
// order the spec fixes: Type, Import, Function, Table, Memory, Global,
// Export, Element, DataCount, Code, Data. Mirrors the teacher-adjacent
// original's ModuleBuilder section-by-section, translated from an
// owned-Vec<u8> style to Go slices of small value types.
type moduleBuilder struct {
	functypes []funcSig
	funcs     []uint32 // index into functypes, one per defined (non-imported) function
	bodies    [][]byte // function body bytes, parallel to funcs

	imports    [][]byte // pre-encoded import entries
	importSigs []funcSig

	exports []export
	data    []dataSegment
	globals []global
}

// newModuleBuilder returns a builder seeded with the memory export and the
// two reserved globals spec §6 requires: slot 0 memptr, slot 1 reserved.
func newModuleBuilder() *moduleBuilder {
	return &moduleBuilder{
		exports: []export{{name: "memory", idx: 0, kind: exportMemory}},
		globals: []global{
			{typ: numI32, mutable: true, init: 0}, // memptr
			{typ: numI32, mutable: true, init: 0}, // reserved
		},
	}
}

// getFuncTypeIdx interns sig, returning its index in the type section.
func (m *moduleBuilder) getFuncTypeIdx(sig funcSig) uint32 {
	for i, existing := range m.functypes {
		if existing.equal(sig) {
			return uint32(i)
		}
	}
	m.functypes = append(m.functypes, sig)
	return uint32(len(m.functypes) - 1)
}

// addImport registers an imported function and returns its function index
// (imports occupy the low indices of the combined import+defined space).
func (m *moduleBuilder) addImport(module, field string, sig funcSig) uint32 {
	idx := m.getFuncTypeIdx(sig)
	entry := encodeString(module)
	entry = append(entry, encodeString(field)...)
	entry = append(entry, 0x00) // import kind: func
	entry = appendU32(entry, idx)
	m.imports = append(m.imports, entry)
	m.importSigs = append(m.importSigs, sig)
	return uint32(len(m.imports) - 1)
}

// addFunction registers a defined function body and returns its function
// index in the combined import+defined space. exportName, if non-empty,
// adds an Export-section entry.
func (m *moduleBuilder) addFunction(sig funcSig, localTypes []numtype, code []byte, exportName string) uint32 {
	typeIdx := m.getFuncTypeIdx(sig)
	funcIdx := uint32(len(m.imports) + len(m.funcs))
	m.funcs = append(m.funcs, typeIdx)
	m.bodies = append(m.bodies, functionBody(localTypes, code))
	if exportName != "" {
		m.exports = append(m.exports, export{name: exportName, idx: funcIdx, kind: exportFunc})
	}
	return funcIdx
}

// addData interns a data blob, returning its passive-segment index; an
// identical blob already added reuses its segment (matching the original's
// dedup-on-insert behavior), while each memory.init of it copies afresh.
func (m *moduleBuilder) addData(data []byte) uint32 {
	for i, existing := range m.data {
		if string(existing.data) == string(data) {
			return uint32(i)
		}
	}
	m.data = append(m.data, dataSegment{data: data})
	return uint32(len(m.data) - 1)
}

// addGlobal appends a new mutable global (used for upvalue shadow globals)
// and returns its index.
func (m *moduleBuilder) addGlobal(typ numtype, init int32) uint32 {
	m.globals = append(m.globals, global{typ: typ, mutable: true, init: init})
	return uint32(len(m.globals) - 1)
}

func functionBody(localTypes []numtype, code []byte) []byte {
	out := appendU32(nil, uint32(len(localTypes)))
	for _, lt := range localTypes {
		out = append(out, 0x01, byte(lt)) // one local declared per type, run-length of 1
	}
	out = append(out, code...)
	return vector(out)
}

func sectionFromChunks(id sectionType, chunks [][]byte) []byte {
	body := appendU32(nil, uint32(len(chunks)))
	for _, c := range chunks {
		body = append(body, c...)
	}
	return append([]byte{byte(id)}, vector(body)...)
}

func sectionFromValues(id sectionType, values []uint32) []byte {
	body := appendU32(nil, uint32(len(values)))
	for _, v := range values {
		body = appendU32(body, v)
	}
	return append([]byte{byte(id)}, vector(body)...)
}

func (m *moduleBuilder) typeSection() []byte {
	chunks := make([][]byte, len(m.functypes))
	for i, ft := range m.functypes {
		chunks[i] = ft.bytes()
	}
	return sectionFromChunks(sectionTypeSec, chunks)
}

func (m *moduleBuilder) importSection() []byte {
	return sectionFromChunks(sectionImport, m.imports)
}

func (m *moduleBuilder) funcSection() []byte {
	return sectionFromValues(sectionFunction, m.funcs)
}

func (m *moduleBuilder) tableSection() []byte {
	n := len(m.imports) + len(m.funcs)
	return sectionFromChunks(sectionTable, [][]byte{{
		0x70,        // funcref
		0x00,        // limits: min only
		byte(n),     // min count, exact fit for the element segment below
	}})
}

func (m *moduleBuilder) memorySection() []byte {
	return sectionFromChunks(sectionMemory, [][]byte{{0x00, 0x01}}) // min-only limit, one page
}

func (m *moduleBuilder) globalSection() []byte {
	chunks := make([][]byte, len(m.globals))
	for i, g := range m.globals {
		chunks[i] = g.bytes()
	}
	return sectionFromChunks(sectionGlobal, chunks)
}

func (m *moduleBuilder) exportSection() []byte {
	chunks := make([][]byte, len(m.exports))
	for i, e := range m.exports {
		chunks[i] = e.bytes()
	}
	return sectionFromChunks(sectionExport, chunks)
}

// elemSection populates the funcref table with every import then every
// defined function, at the same indices add{Import,Function} handed out —
// so a table.get at function index i always yields function i.
func (m *moduleBuilder) elemSection() []byte {
	total := len(m.imports) + len(m.funcs)
	segments := make([][]byte, total)
	for i := 0; i < total; i++ {
		seg := []byte{0x00, byte(opI32Const)}
		seg = appendI32(seg, int32(i))
		seg = append(seg, byte(opEnd), 0x01)
		seg = appendU32(seg, uint32(i))
		segments[i] = seg
	}
	return sectionFromChunks(sectionElement, segments)
}

func (m *moduleBuilder) codeSection() []byte {
	return sectionFromChunks(sectionCode, m.bodies)
}

func (m *moduleBuilder) dataSection() []byte {
	chunks := make([][]byte, len(m.data))
	for i, d := range m.data {
		chunks[i] = d.bytes()
	}
	return sectionFromChunks(sectionData, chunks)
}

func (m *moduleBuilder) dataCountSection() []byte {
	out := []byte{byte(sectionDataCnt)}
	return append(out, vector(appendU32(nil, uint32(len(m.data))))...)
}

// bytes assembles the complete module. dataCount is emitted before code
// even though its section id numerically follows Code's, per the binary
// format's requirement that a module using bulk-memory data-count precede
// the code that references it.
func (m *moduleBuilder) bytes() []byte {
	out := append([]byte{}, wasmMagic[:]...)
	out = append(out, wasmVersion[:]...)
	out = append(out, m.typeSection()...)
	out = append(out, m.importSection()...)
	out = append(out, m.funcSection()...)
	out = append(out, m.tableSection()...)
	out = append(out, m.memorySection()...)
	out = append(out, m.globalSection()...)
	out = append(out, m.exportSection()...)
	out = append(out, m.elemSection()...)
	out = append(out, m.dataCountSection()...)
	out = append(out, m.codeSection()...)
	out = append(out, m.dataSection()...)
	return out
}
