// Package handle defines the opaque object identifiers addressed by every
// job-engine, scheduler and state-machine operation.
package handle

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Handle is a fixed-width opaque identifier for a filesystem object. It has
// no intrinsic ordering beyond equality.
type Handle [16]byte

// Zero is the distinguished invalid handle.
var Zero Handle

// String renders h as lowercase hex, satisfying fmt.Stringer so it can be
// passed directly to logger.Handle.
func (h Handle) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == Zero
}

// Less provides a total order over handles for use in sorted extent
// construction; it has no domain meaning beyond consistent ordering.
func (h Handle) Less(other Handle) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// ParseHandle decodes a hex string produced by String.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("handle: invalid hex %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("handle: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Reference pairs a handle with the filesystem id that owns it.
type Reference struct {
	Handle Handle
	FSID   uint32
}

func (r Reference) String() string {
	return fmt.Sprintf("%s@%d", r.Handle, r.FSID)
}

// Extent is a closed handle range [First, Last].
type Extent struct {
	First Handle
	Last  Handle
}

// Contains reports whether h falls within the closed range [e.First, e.Last].
func (e Extent) Contains(h Handle) bool {
	return !h.Less(e.First) && !e.Last.Less(h)
}

// ExtentArray enumerates the handle ranges a server is authoritative for.
type ExtentArray []Extent

// Contains reports whether any extent in the array contains h.
func (ea ExtentArray) Contains(h Handle) bool {
	for _, e := range ea {
		if e.Contains(h) {
			return true
		}
	}
	return false
}
