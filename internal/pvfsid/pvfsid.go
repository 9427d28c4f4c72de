// Package pvfsid defines opaque server/replica identifiers. Unlike Windows
// security identifiers, a SID here carries no internal structure: it is a
// flat 4-byte value naming one server in a replication set.
package pvfsid

import (
	"encoding/binary"
	"fmt"
)

// Size is the encoded width of a single SID.
const Size = 4

// SID is an opaque server/replica identifier.
type SID [Size]byte

func (s SID) String() string {
	return fmt.Sprintf("%08x", binary.LittleEndian.Uint32(s[:]))
}

// FromUint32 constructs a SID from a 32-bit server id.
func FromUint32(id uint32) SID {
	var s SID
	binary.LittleEndian.PutUint32(s[:], id)
	return s
}

// Uint32 returns the SID's numeric value.
func (s SID) Uint32() uint32 {
	return binary.LittleEndian.Uint32(s[:])
}

// SIDArray is an ordered list of replica identifiers, whose length equals a
// replication factor.
type SIDArray []SID

// Encode appends the array's wire representation (4-byte count, then Size
// bytes per SID) to buf and returns the result.
func (a SIDArray) Encode(buf []byte) []byte {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(a)))
	buf = append(buf, countBuf[:]...)
	for _, s := range a {
		buf = append(buf, s[:]...)
	}
	return buf
}

// EncodedLen returns the number of bytes Encode will append.
func (a SIDArray) EncodedLen() int {
	return 4 + len(a)*Size
}

// DecodeSIDArray reads a SIDArray from the front of data, returning the
// array and the number of bytes consumed.
func DecodeSIDArray(data []byte) (SIDArray, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("pvfsid: truncated count")
	}
	count := binary.LittleEndian.Uint32(data[:4])
	need := 4 + int(count)*Size
	if len(data) < need {
		return nil, 0, fmt.Errorf("pvfsid: truncated array: need %d bytes, have %d", need, len(data))
	}
	arr := make(SIDArray, count)
	for i := range arr {
		off := 4 + i*Size
		copy(arr[i][:], data[off:off+Size])
	}
	return arr, need, nil
}

// Equal reports whether two SID arrays hold identical entries in order.
func (a SIDArray) Equal(other SIDArray) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if a[i] != other[i] {
			return false
		}
	}
	return true
}
