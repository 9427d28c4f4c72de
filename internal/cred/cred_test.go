package cred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pvfsgo/internal/handle"
)

func testKey() []byte {
	return bytes32("test-signing-key-needs-32-bytes!")
}

func bytes32(s string) []byte {
	b := make([]byte, 32)
	copy(b, s)
	return b
}

func TestCredentialSignAndVerify(t *testing.T) {
	key := testKey()
	c := &Credential{
		UID:      1000,
		Groups:   []uint32{100, 200},
		Issuer:   "C:hostA",
		Deadline: time.Now().Add(time.Hour),
	}
	require.NoError(t, c.Sign(key))
	assert.NoError(t, c.Verify(key, time.Now()))
}

func TestCredentialVerifyRejectsExpired(t *testing.T) {
	key := testKey()
	c := &Credential{
		UID:      1,
		Groups:   []uint32{1},
		Issuer:   "C:hostA",
		Deadline: time.Now().Add(-time.Minute),
	}
	require.NoError(t, c.Sign(key))
	assert.ErrorIs(t, c.Verify(key, time.Now()), ErrExpired)
}

func TestCredentialVerifyRejectsTamperedFields(t *testing.T) {
	key := testKey()
	c := &Credential{
		UID:      1,
		Groups:   []uint32{1},
		Issuer:   "C:hostA",
		Deadline: time.Now().Add(time.Hour),
	}
	require.NoError(t, c.Sign(key))

	c.UID = 2
	assert.ErrorIs(t, c.Verify(key, time.Now()), ErrBadSignature)
}

func TestCredentialVerifyRejectsWrongKey(t *testing.T) {
	c := &Credential{
		UID:      1,
		Groups:   []uint32{1},
		Issuer:   "C:hostA",
		Deadline: time.Now().Add(time.Hour),
	}
	require.NoError(t, c.Sign(testKey()))
	assert.ErrorIs(t, c.Verify(bytes32("a-completely-different-key-here"), time.Now()), ErrBadSignature)
}

func TestCredentialRequiresGroups(t *testing.T) {
	c := &Credential{UID: 1, Issuer: "x", Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, c.Sign(testKey()))
	assert.ErrorIs(t, c.Verify(testKey(), time.Now()), ErrNoGroups)
}

func TestSignRejectsShortKey(t *testing.T) {
	c := &Credential{UID: 1, Groups: []uint32{1}, Issuer: "x", Deadline: time.Now()}
	assert.ErrorIs(t, c.Sign([]byte("short")), ErrKeyTooShort)
}

func TestCapabilitySignAndVerify(t *testing.T) {
	key := testKey()
	owner := Credential{UID: 1000, Groups: []uint32{100}, Issuer: "C:hostA", Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, owner.Sign(key))

	h, _ := handle.ParseHandle("00000000000000000000000000000001")
	capKey := bytes32("capability-derived-key-32-bytes!")
	capability := &Capability{
		Handles:  []handle.Handle{h},
		OpMask:   OpRead | OpWrite,
		Owner:    owner,
		Deadline: time.Now().Add(time.Hour),
	}
	require.NoError(t, capability.Sign(capKey))

	assert.NoError(t, capability.Verify(capKey, h, OpRead, time.Now()))
}

func TestCapabilityVerifyRejectsUnlistedHandle(t *testing.T) {
	owner := Credential{UID: 1, Groups: []uint32{1}, Issuer: "x", Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, owner.Sign(testKey()))

	h, _ := handle.ParseHandle("00000000000000000000000000000001")
	other, _ := handle.ParseHandle("00000000000000000000000000000002")
	capKey := bytes32("capability-derived-key-32-bytes!")
	capability := &Capability{Handles: []handle.Handle{h}, OpMask: OpRead, Owner: owner, Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, capability.Sign(capKey))

	assert.ErrorIs(t, capability.Verify(capKey, other, OpRead, time.Now()), ErrNotAuthorized)
}

func TestCapabilityVerifyRejectsInsufficientMask(t *testing.T) {
	owner := Credential{UID: 1, Groups: []uint32{1}, Issuer: "x", Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, owner.Sign(testKey()))

	h, _ := handle.ParseHandle("00000000000000000000000000000001")
	capKey := bytes32("capability-derived-key-32-bytes!")
	capability := &Capability{Handles: []handle.Handle{h}, OpMask: OpRead, Owner: owner, Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, capability.Sign(capKey))

	assert.ErrorIs(t, capability.Verify(capKey, h, OpWrite, time.Now()), ErrNotAuthorized)
}

func TestCapabilityVerifyRejectsExpired(t *testing.T) {
	owner := Credential{UID: 1, Groups: []uint32{1}, Issuer: "x", Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, owner.Sign(testKey()))

	h, _ := handle.ParseHandle("00000000000000000000000000000001")
	capKey := bytes32("capability-derived-key-32-bytes!")
	capability := &Capability{Handles: []handle.Handle{h}, OpMask: OpRead, Owner: owner, Deadline: time.Now().Add(-time.Minute)}
	require.NoError(t, capability.Sign(capKey))

	assert.ErrorIs(t, capability.Verify(capKey, h, OpRead, time.Now()), ErrCapExpired)
}

func TestOpMaskAllows(t *testing.T) {
	m := OpRead | OpWrite
	assert.True(t, m.Allows(OpRead))
	assert.True(t, m.Allows(OpRead|OpWrite))
	assert.False(t, m.Allows(OpAdmin))
}
