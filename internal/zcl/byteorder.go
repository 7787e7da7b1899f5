package zcl

// Little-endian helpers for widths encoding/binary does not cover.

// Uint24 reads a little-endian 24-bit value from b[0:3].
func Uint24(b []byte) uint32 {
	_ = b[2] // bounds check hint
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// PutUint24 writes the low 24 bits of v into b[0:3], little-endian.
func PutUint24(b []byte, v uint32) {
	_ = b[2]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// uintLE reads an n-byte little-endian unsigned integer (n <= 8).
func uintLE(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// putUintLE writes the low n bytes of v little-endian into a new slice.
func putUintLE(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
