package wire

import (
	"github.com/marmos91/pvfsgo/internal/cred"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
)

// Size limits enforced by decoders (spec §6); inputs that exceed these are
// rejected with a Protocol error rather than truncated or best-effort
// accepted.
const (
	PathMax              = 4096
	SegmentMax           = 256
	HandlesPerMessageMax = 1024
	SIDsPerHandleMax     = 3 * HandlesPerMessageMax
	EAttrKeyMax          = 256
	EAttrValueMax        = 8192
	KeyvalListMax        = 32
	ReaddirEntriesMax    = 512
	PerfSamplesMax       = 16
	SignatureMax         = 256
	GroupsMax            = 32
	CertificateMax       = 16384
	IssuerMax            = SegmentMax
)

// WriteHandle appends a fixed-width handle verbatim (already 8-byte
// aligned at 16 bytes).
func (e *Encoder) WriteHandle(h handle.Handle) {
	e.WriteRaw(h[:])
}

// ReadHandle consumes a fixed-width handle.
func (d *Decoder) ReadHandle() (handle.Handle, error) {
	var h handle.Handle
	b, err := d.ReadRaw(len(h))
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// WriteSIDArray appends a 4-byte count followed by each SID verbatim, then
// pads once to an 8-byte boundary.
func (e *Encoder) WriteSIDArray(a pvfsid.SIDArray) {
	e.writeUint32NoPad(uint32(len(a)))
	for _, s := range a {
		e.WriteRaw(s[:])
	}
	e.padTo8()
}

// ReadSIDArray consumes a SID array, rejecting counts beyond
// SIDsPerHandleMax.
func (d *Decoder) ReadSIDArray() (pvfsid.SIDArray, error) {
	count, err := d.readUint32NoPad()
	if err != nil {
		return nil, err
	}
	if count > SIDsPerHandleMax {
		return nil, protocolf("wire: SID array count %d exceeds limit %d", count, SIDsPerHandleMax)
	}
	arr := make(pvfsid.SIDArray, count)
	for i := range arr {
		b, err := d.ReadRaw(pvfsid.Size)
		if err != nil {
			return nil, err
		}
		copy(arr[i][:], b)
	}
	if err := d.skipPad8(); err != nil {
		return nil, err
	}
	return arr, nil
}

// WriteCredential appends a credential's wire fields. The signature is
// carried opaquely; verifying it is the caller's responsibility, not the
// codec's (see internal/cred).
func (e *Encoder) WriteCredential(c cred.Credential) {
	e.WriteUint32(c.UID)
	e.writeUint32NoPad(uint32(len(c.Groups)))
	for _, g := range c.Groups {
		e.writeUint32NoPad(g)
	}
	e.padTo8()
	e.WriteString(c.Issuer)
	e.WriteUint64(uint64(c.Deadline.Unix()))
	e.WriteOpaque(c.Signature[:])
}

// ReadCredential consumes a credential's wire fields. The caller who holds
// the signing key is responsible for re-verifying the signature; the codec
// only reconstructs the struct.
func (d *Decoder) ReadCredential() (cred.Credential, error) {
	var c cred.Credential
	uid, err := d.ReadUint32()
	if err != nil {
		return c, err
	}
	c.UID = uid

	n, err := d.readUint32NoPad()
	if err != nil {
		return c, err
	}
	if n > GroupsMax {
		return c, protocolf("wire: credential group count %d exceeds limit %d", n, GroupsMax)
	}
	c.Groups = make([]uint32, n)
	for i := range c.Groups {
		v, err := d.readUint32NoPad()
		if err != nil {
			return c, err
		}
		c.Groups[i] = v
	}
	if err := d.skipPad8(); err != nil {
		return c, err
	}

	issuer, err := d.ReadString()
	if err != nil {
		return c, err
	}
	if len(issuer) > IssuerMax {
		return c, protocolf("wire: credential issuer length %d exceeds limit %d", len(issuer), IssuerMax)
	}
	c.Issuer = issuer

	deadline, err := d.ReadUint64()
	if err != nil {
		return c, err
	}
	c.Deadline = unixTime(int64(deadline))

	sig, err := d.ReadOpaque()
	if err != nil {
		return c, err
	}
	if len(sig) != cred.SignatureSize {
		return c, protocolf("wire: credential signature has %d bytes, want %d", len(sig), cred.SignatureSize)
	}
	copy(c.Signature[:], sig)

	return c, nil
}
