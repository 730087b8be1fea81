// Package wire implements the fixed-width little-endian binary codec
// shared by the storage protocol (on the wire) and the on-disk customer
// record (at rest). Both sides of the API/storage split, and the files
// under data/, agree on exactly this layout.
package wire

import "encoding/binary"

// Uint32Size is the width of every fixed-size integer field in the
// wire and disk formats.
const Uint32Size = 4

// PutInt32LE writes v as 4 little-endian bytes into dst[0:4].
// Signed values round-trip through the unsigned wire representation by
// two's-complement reinterpretation, matching the C source's int/char
// aliasing.
func PutInt32LE(dst []byte, v int32) {
	binary.LittleEndian.PutUint32(dst, uint32(v))
}

// Int32LE reads a 4-byte little-endian field from src[0:4].
func Int32LE(src []byte) int32 {
	return int32(binary.LittleEndian.Uint32(src))
}
