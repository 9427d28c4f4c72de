package wire

import (
	"encoding/binary"

	"github.com/marmos91/pvfsgo/internal/pvfserr"
)

// HeaderSize is the width of the generic header that precedes every
// encoded buffer.
const HeaderSize = 8

// EncodingTag identifies the wire encoding. Exactly one is defined.
type EncodingTag uint32

const (
	// EncodingLEBytefield is the only currently-defined wire encoding:
	// little-endian, 8-byte aligned scalar fields.
	EncodingLEBytefield EncodingTag = 0
)

// ProtocolRelease is this build's protocol release number, written into the
// generic header of every encoded buffer.
const ProtocolRelease uint32 = 1

// Header is the 8-byte generic header preceding every on-the-wire message:
// a 4-byte little-endian protocol release number followed by a 4-byte
// little-endian encoding tag.
type Header struct {
	Release  uint32
	Encoding EncodingTag
}

// Encode writes the header's wire representation to buf[:8].
func (h Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Release)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Encoding))
}

// DecodeHeader reads the generic header from the front of buf and verifies
// it matches a registered codec (release, encoding). On mismatch it returns
// a pvfserr Unsupported error with both observed values; it never attempts a
// best-effort decode of an unrecognised header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, pvfserr.Protocolf("wire: buffer shorter than generic header: %d bytes", len(buf))
	}
	h := Header{
		Release:  binary.LittleEndian.Uint32(buf[0:4]),
		Encoding: EncodingTag(binary.LittleEndian.Uint32(buf[4:8])),
	}
	if h.Release != ProtocolRelease || h.Encoding != EncodingLEBytefield {
		return h, pvfserr.Unsupportedf("wire: unsupported protocol release=%d encoding=%d (want release=%d encoding=%d)",
			h.Release, h.Encoding, ProtocolRelease, EncodingLEBytefield)
	}
	return h, nil
}
