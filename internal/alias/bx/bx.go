// stand for bytes helper
package bx

import "encoding/binary"

var LE = binary.LittleEndian

// --- LE: read ---
func U32(b []byte) uint32 { return LE.Uint32(b) }
func I32(b []byte) int32  { return int32(U32(b)) }

// --- LE: write ---
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
func PutI32(b []byte, v int32)  { PutU32(b, uint32(v)) }

// --- LE: At (offset) ---
func U32At(b []byte, off int) uint32 { return U32(b[off:]) }
func I32At(b []byte, off int) int32  { return I32(b[off:]) }

// U32BE reads a big-endian u32; used where byte order must follow lexicographic order.
func U32BE(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
