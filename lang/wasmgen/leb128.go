package wasmgen

// appendU32 appends value as an unsigned LEB128 integer, the encoding WASM
// uses for every vector length, index, and non-negative immediate.
func appendU32(buf []byte, value uint32) []byte {
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if value == 0 {
			return buf
		}
	}
}

// appendI32 appends value as a signed LEB128 integer, used for i32.const
// immediates and signed blocktype indices.
func appendI32(buf []byte, value int32) []byte {
	more := true
	for more {
		b := byte(value & 0x7f)
		value >>= 7
		if (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// appendI64 is appendI32's 64-bit counterpart, used for i64.const
// immediates (fat pointers and Maybe payloads of heap-shaped element type).
func appendI64(buf []byte, value int64) []byte {
	more := true
	for more {
		b := byte(value & 0x7f)
		value >>= 7
		if (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// vector prepends data's length as an unsigned LEB128 integer, the shape
// every WASM section and name uses.
func vector(data []byte) []byte {
	return append(appendU32(nil, uint32(len(data))), data...)
}

// encodeString returns name as a WASM name: a byte-length-prefixed UTF-8
// vector.
func encodeString(name string) []byte {
	return vector([]byte(name))
}
