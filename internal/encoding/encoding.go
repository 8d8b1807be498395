// Package encoding provides the fixed on-disk layout of a prefix table.
//
// Layout, all fields big-endian with no padding:
//
//	Offset      Size  Field
//	0           4     record count (uint32)
//	4 + 5*i     4     prefix of record i (uint32, network byte order)
//	8 + 5*i     1     mask length of record i (uint8)
package encoding

import "encoding/binary"

const (
	// HeaderSize is the size of the record count that starts every table.
	HeaderSize = 4

	// RecordSize is the size of one serialized record.
	RecordSize = 5
)

// Size returns the encoded size of a table holding n records.
func Size(n int) int {
	return HeaderSize + n*RecordSize
}

// PutCount writes the record count into the first HeaderSize bytes of buf.
func PutCount(buf []byte, n uint32) {
	binary.BigEndian.PutUint32(buf[0:HeaderSize], n)
}

// Count reads the record count. Precondition: len(buf) >= HeaderSize.
func Count(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf[0:HeaderSize])
}

// PutRecord writes record i into a table image that starts at buf[0].
func PutRecord(buf []byte, i int, prefix uint32, maskLen uint8) {
	off := HeaderSize + i*RecordSize
	binary.BigEndian.PutUint32(buf[off:off+4], prefix)
	buf[off+4] = maskLen
}

// ReadRecord reads record i from a table image that starts at buf[0].
// The caller guarantees the record lies inside buf.
func ReadRecord(buf []byte, i int) (prefix uint32, maskLen uint8) {
	off := HeaderSize + i*RecordSize
	_ = buf[off+4]
	return binary.BigEndian.Uint32(buf[off : off+4]), buf[off+4]
}
