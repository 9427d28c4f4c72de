package cred

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/marmos91/pvfsgo/internal/handle"
)

// OpMask bits identify the operations a capability authorizes.
type OpMask uint32

const (
	OpRead OpMask = 1 << iota
	OpWrite
	OpCreate
	OpRemove
	OpSetAttr
	OpAdmin
)

// Allows reports whether the mask authorizes every bit set in want.
func (m OpMask) Allows(want OpMask) bool {
	return m&want == want
}

// Capability authorizes specific operations on specific handles, derived
// from a Credential.
type Capability struct {
	Handles   []handle.Handle
	OpMask    OpMask
	Owner     Credential
	Deadline  time.Time
	Signature [SignatureSize]byte
}

func (c *Capability) signingBytes() []byte {
	var buf bytes.Buffer
	var u32 [4]byte

	binary.LittleEndian.PutUint32(u32[:], uint32(len(c.Handles)))
	buf.Write(u32[:])
	for _, h := range c.Handles {
		buf.Write(h[:])
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(c.OpMask))
	buf.Write(u32[:])

	buf.Write(c.Owner.signingBytes())
	buf.Write(c.Owner.Signature[:])

	var i64 [8]byte
	binary.LittleEndian.PutUint64(i64[:], uint64(c.Deadline.Unix()))
	buf.Write(i64[:])

	return buf.Bytes()
}

// Sign computes and stores the capability's signature under key. key should
// be derived from the owning credential's signature so that a capability
// cannot outlive or be forged independently of its issuing credential.
func (c *Capability) Sign(key []byte) error {
	if len(key) < 32 {
		return ErrKeyTooShort
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		return fmt.Errorf("cred: init capability mac: %w", err)
	}
	mac.Write(c.signingBytes())
	copy(c.Signature[:], mac.Sum(nil))
	return nil
}

// Verify checks the capability's signature, deadline, and that it
// authorizes every bit in want on h.
func (c *Capability) Verify(key []byte, h handle.Handle, want OpMask, now time.Time) error {
	if now.After(c.Deadline) {
		return ErrCapExpired
	}
	found := false
	for _, hh := range c.Handles {
		if hh == h {
			found = true
			break
		}
	}
	if !found || !c.OpMask.Allows(want) {
		return ErrNotAuthorized
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		return fmt.Errorf("cred: init capability mac: %w", err)
	}
	mac.Write(c.signingBytes())
	wantSig := mac.Sum(nil)
	if subtle.ConstantTimeCompare(wantSig, c.Signature[:]) != 1 {
		return ErrCapBadSig
	}
	return nil
}
