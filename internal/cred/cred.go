// Package cred implements credential and capability values: the flat,
// signed structs that authorize operations in the core runtime. Unlike the
// collaborator's bearer-token JWTs, a credential here is not self-describing
// JSON — it is a fixed set of fields signed with a keyed BLAKE2b MAC, matching
// the wire codec's flat, length-prefixed encoding style.
package cred

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Sentinel errors surfaced by Sign and Verify.
var (
	ErrExpired        = errors.New("credential has expired")
	ErrBadSignature   = errors.New("credential signature does not verify")
	ErrNoGroups       = errors.New("credential carries no group set")
	ErrKeyTooShort    = errors.New("signing key must be at least 32 bytes")
	ErrNotAuthorized  = errors.New("capability does not authorize operation on handle")
	ErrCapExpired     = errors.New("capability has expired")
	ErrCapBadSig      = errors.New("capability signature does not verify")
)

// SignatureSize is the width of a BLAKE2b-256 keyed MAC.
const SignatureSize = 32

// Credential binds a user id, a group set, an issuer string and a validity
// deadline, together with a signature over those fields.
type Credential struct {
	UID       uint32
	Groups    []uint32
	Issuer    string
	Deadline  time.Time
	Signature [SignatureSize]byte
}

// signingBytes returns the canonical byte sequence signed by Sign/Verify.
// It deliberately excludes the Signature field itself.
func (c *Credential) signingBytes() []byte {
	var buf bytes.Buffer
	var u32 [4]byte

	binary.LittleEndian.PutUint32(u32[:], c.UID)
	buf.Write(u32[:])

	binary.LittleEndian.PutUint32(u32[:], uint32(len(c.Groups)))
	buf.Write(u32[:])
	for _, g := range c.Groups {
		binary.LittleEndian.PutUint32(u32[:], g)
		buf.Write(u32[:])
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(c.Issuer)))
	buf.Write(u32[:])
	buf.WriteString(c.Issuer)

	var i64 [8]byte
	binary.LittleEndian.PutUint64(i64[:], uint64(c.Deadline.Unix()))
	buf.Write(i64[:])

	return buf.Bytes()
}

// Sign computes and stores the credential's signature under key.
func (c *Credential) Sign(key []byte) error {
	if len(key) < 32 {
		return ErrKeyTooShort
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		return fmt.Errorf("cred: init mac: %w", err)
	}
	mac.Write(c.signingBytes())
	copy(c.Signature[:], mac.Sum(nil))
	return nil
}

// Verify checks the credential's signature and deadline against now.
func (c *Credential) Verify(key []byte, now time.Time) error {
	if len(c.Groups) == 0 {
		return ErrNoGroups
	}
	if now.After(c.Deadline) {
		return ErrExpired
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		return fmt.Errorf("cred: init mac: %w", err)
	}
	mac.Write(c.signingBytes())
	want := mac.Sum(nil)
	if subtle.ConstantTimeCompare(want, c.Signature[:]) != 1 {
		return ErrBadSignature
	}
	return nil
}

// HasGroup reports whether gid is among the credential's groups.
func (c *Credential) HasGroup(gid uint32) bool {
	for _, g := range c.Groups {
		if g == gid {
			return true
		}
	}
	return false
}
