package wire

import (
	"encoding/binary"
	"time"

	"github.com/marmos91/pvfsgo/internal/pvfserr"
)

func protocolf(format string, args ...any) *pvfserr.Error {
	return pvfserr.Protocolf(format, args...)
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// align8 rounds n up to the next multiple of 8.
func align8(n int) int {
	return (n + 7) &^ 7
}

// Encoder accumulates a single contiguous request or response body. The
// backing slice is borrowed from a buffer pool and must be released via
// Codec.ReleaseEncoded once the caller is done with it.
type Encoder struct {
	buf []byte
}

func newEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf[:0]}
}

// Bytes returns the accumulated buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) padTo8() {
	for len(e.buf)%8 != 0 {
		e.buf = append(e.buf, 0)
	}
}

// writeUint32NoPad appends a little-endian uint32 without trailing
// alignment; used for flat array elements, which pad once after the whole
// array rather than after every element.
func (e *Encoder) writeUint32NoPad(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteUint32 appends a little-endian uint32, 8-byte aligned after write.
func (e *Encoder) WriteUint32(v uint32) {
	e.writeUint32NoPad(v)
	e.padTo8()
}

// WriteUint64 appends a little-endian uint64 (already 8-byte wide).
func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteInt32 appends a little-endian int32, 8-byte aligned after write.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteBool appends a 4-byte boolean (0/1), 8-byte aligned after write.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteUint32(1)
	} else {
		e.WriteUint32(0)
	}
}

// WriteEnum appends a 4-byte enum tag.
func (e *Encoder) WriteEnum(v int32) {
	e.WriteInt32(v)
}

// WriteString appends a 4-byte length (including NUL terminator), the bytes
// plus a terminating NUL, padded to 8 bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteUint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	e.padTo8()
}

// WriteOpaque appends a 4-byte length followed by raw bytes, padded to 8.
func (e *Encoder) WriteOpaque(data []byte) {
	e.WriteUint32(uint32(len(data)))
	e.buf = append(e.buf, data...)
	e.padTo8()
}

// WriteRaw appends data verbatim without a length prefix or padding; used
// for fixed-width fields such as handles and SIDs.
func (e *Encoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

// Decoder is a read cursor over a borrowed byte slice. It does not copy the
// buffer as a whole: ReadString and ReadOpaque return owned copies, while
// ReadRaw returns a slice aliasing the buffer that callers must copy if they
// keep it (see the Open Question resolution on credential ownership in
// DESIGN.md).
type Decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return pvfserr.Protocolf("wire: truncated buffer: need %d bytes, have %d", n, d.Remaining())
	}
	return nil
}

func (d *Decoder) skipPad8() error {
	for d.pos%8 != 0 {
		if err := d.need(1); err != nil {
			return err
		}
		d.pos++
	}
	return nil
}

// readUint32NoPad consumes a little-endian uint32 without skipping
// alignment padding; used for flat array elements.
func (d *Decoder) readUint32NoPad() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

// ReadUint32 consumes a little-endian uint32 and skips alignment padding.
func (d *Decoder) ReadUint32() (uint32, error) {
	v, err := d.readUint32NoPad()
	if err != nil {
		return 0, err
	}
	if err := d.skipPad8(); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadUint64 consumes a little-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

// ReadInt32 consumes a little-endian int32 and skips alignment padding.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadBool consumes a 4-byte boolean.
func (d *Decoder) ReadBool() (bool, error) {
	v, err := d.ReadUint32()
	return v != 0, err
}

// ReadEnum consumes a 4-byte enum tag.
func (d *Decoder) ReadEnum() (int32, error) {
	return d.ReadInt32()
}

// maxStringLen bounds string decode to prevent a corrupt length field from
// allocating an unbounded buffer.
const maxStringLen = 1 << 20

// ReadString consumes a length-prefixed, NUL-terminated, 8-byte padded
// string.
func (d *Decoder) ReadString() (string, error) {
	n, err := d.readLenPrefix(maxStringLen)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	s := string(d.buf[d.pos : d.pos+n-1]) // drop NUL terminator
	d.pos += n
	if err := d.skipPad8(); err != nil {
		return "", err
	}
	return s, nil
}

// maxOpaqueLen bounds opaque decode the same way ReadString bounds strings.
const maxOpaqueLen = 1 << 20

// ReadOpaque consumes a length-prefixed, 8-byte padded byte slice. The
// returned slice is a copy; it does not alias the decoder's buffer.
func (d *Decoder) ReadOpaque() ([]byte, error) {
	n, err := d.readLenPrefix(maxOpaqueLen)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	if err := d.skipPad8(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Decoder) readLenPrefix(max int) (int, error) {
	n32, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	n := int(n32)
	if n > max {
		return 0, pvfserr.Protocolf("wire: length %d exceeds limit %d", n, max)
	}
	if err := d.need(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadRaw consumes exactly n bytes verbatim, with no padding and no length
// prefix; used for fixed-width fields such as handles and SIDs. The
// returned slice aliases the decoder's buffer.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}
