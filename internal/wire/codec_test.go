package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pvfsgo/internal/cred"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/pvfserr"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
)

func testCredential(t *testing.T) cred.Credential {
	t.Helper()
	c := cred.Credential{
		UID:      1000,
		Groups:   []uint32{100, 200},
		Issuer:   "C:hostA",
		Deadline: time.Unix(2_000_000_000, 0).UTC(),
	}
	require.NoError(t, c.Sign(make([]byte, 32)))
	return c
}

func sidsOf(n int, seed byte) pvfsid.SIDArray {
	a := make(pvfsid.SIDArray, n)
	for i := range a {
		a[i] = pvfsid.FromUint32(uint32(i) + uint32(seed)<<16)
	}
	return a
}

func TestCodecCreateRoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	req := &CreateRequest{
		Credential: testCredential(t),
		FSID:       7,
		MetaSIDs:   sidsOf(3, 1),
		DataSIDs: []pvfsid.SIDArray{
			sidsOf(2, 2),
			sidsOf(2, 3),
			sidsOf(2, 4),
			sidsOf(2, 5),
		},
	}

	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	got, err := codec.DecodeRequest(buf)
	require.NoError(t, err)

	gotReq, ok := got.(*CreateRequest)
	require.True(t, ok)
	assert.Equal(t, req.FSID, gotReq.FSID)
	assert.Equal(t, req.MetaSIDs, gotReq.MetaSIDs)
	assert.Equal(t, req.DataSIDs, gotReq.DataSIDs)
	assert.Equal(t, req.Credential.UID, gotReq.Credential.UID)
	assert.Equal(t, req.Credential.Groups, gotReq.Credential.Groups)
	assert.Equal(t, req.Credential.Issuer, gotReq.Credential.Issuer)
	assert.Equal(t, req.Credential.Signature, gotReq.Credential.Signature)
}

// TestScenarioS4CreateCodecRoundTrip is the literal CREATE-shape scenario: a
// 3-SID metafile handle and four datafile handles with two SIDs each, an
// issuer of "C:hostA". Encoding then decoding must reproduce the original
// value, and the encoded length must match the precomputed worst-case bound
// for this shape's op.
func TestScenarioS4CreateCodecRoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	cr := testCredential(t)
	require.Equal(t, "C:hostA", cr.Issuer)

	req := &CreateRequest{
		Credential: cr,
		FSID:       42,
		MetaSIDs:   sidsOf(3, 9),
		DataSIDs: []pvfsid.SIDArray{
			sidsOf(2, 1), sidsOf(2, 2), sidsOf(2, 3), sidsOf(2, 4),
		},
	}

	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	assert.LessOrEqual(t, len(buf), maxEncodedSize(DirRequest, OpCreate))

	decoded, err := codec.DecodeRequest(buf)
	require.NoError(t, err)
	gotReq, ok := decoded.(*CreateRequest)
	require.True(t, ok)
	assert.Equal(t, req, gotReq)
}

func TestCodecGetAttrRoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	req := &GetAttrRequest{
		Credential: testCredential(t),
		Ref:        handle.Reference{Handle: handle.Handle{1, 2, 3}, FSID: 9},
		AttrMask:   0xFF,
	}

	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	decoded, err := codec.DecodeRequest(buf)
	require.NoError(t, err)
	got, ok := decoded.(*GetAttrRequest)
	require.True(t, ok)
	assert.Equal(t, req.Ref, got.Ref)
	assert.Equal(t, req.AttrMask, got.AttrMask)

	resp := &GetAttrResponse{Status: 0, Attr: Attr{Size: 4096, Mode: 0o644, UID: 1000, GID: 1000}}
	rbuf, err := codec.EncodeResponse(resp)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(rbuf)

	rdecoded, err := codec.DecodeResponse(rbuf)
	require.NoError(t, err)
	gotResp, ok := rdecoded.(*GetAttrResponse)
	require.True(t, ok)
	assert.Equal(t, *resp, *gotResp)
}

func TestCodecRemoveRoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	req := &RemoveRequest{
		Credential: testCredential(t),
		Ref:        handle.Reference{Handle: handle.Handle{9, 8, 7}, FSID: 3},
	}

	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	decoded, err := codec.DecodeRequest(buf)
	require.NoError(t, err)
	got, ok := decoded.(*RemoveRequest)
	require.True(t, ok)
	assert.Equal(t, req.Ref, got.Ref)

	resp := &RemoveResponse{Status: 0}
	rbuf, err := codec.EncodeResponse(resp)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(rbuf)

	rdecoded, err := codec.DecodeResponse(rbuf)
	require.NoError(t, err)
	gotResp, ok := rdecoded.(*RemoveResponse)
	require.True(t, ok)
	assert.Equal(t, *resp, *gotResp)
}

func TestCodecLookupPathRoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	req := &LookupPathRequest{
		Credential: testCredential(t),
		Base:       handle.Reference{Handle: handle.Handle{9}, FSID: 1},
		Path:       "/mnt/orange/data/file.bin",
	}

	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	decoded, err := codec.DecodeRequest(buf)
	require.NoError(t, err)
	got, ok := decoded.(*LookupPathRequest)
	require.True(t, ok)
	assert.Equal(t, req.Path, got.Path)
	assert.Equal(t, req.Base, got.Base)
}

func TestCodecHeaderRejectsMismatch(t *testing.T) {
	codec := NewCodec(nil)
	req := &GetAttrRequest{Credential: testCredential(t)}
	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	corrupt := append([]byte(nil), buf...)
	corrupt[0] ^= 0xFF // flip a release byte

	_, err = codec.DecodeRequest(corrupt)
	require.Error(t, err)
	assert.True(t, pvfserr.Is(err, pvfserr.Unsupported))
}

func TestCodecRejectsTruncatedBuffer(t *testing.T) {
	codec := NewCodec(nil)
	req := &LookupPathRequest{Credential: testCredential(t), Path: "/a/b/c"}
	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	_, err = codec.DecodeRequest(buf[:len(buf)-4])
	require.Error(t, err)
	assert.True(t, pvfserr.Is(err, pvfserr.Protocol))
}

func TestCodecRejectsTrailingBytes(t *testing.T) {
	codec := NewCodec(nil)
	req := &GetAttrRequest{Credential: testCredential(t)}
	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	padded := append(buf, 0, 0, 0, 0, 0, 0, 0, 0)
	_, err = codec.DecodeRequest(padded)
	require.Error(t, err)
	assert.True(t, pvfserr.Is(err, pvfserr.Protocol))
}

// The next two tests exercise the decoder's own bounds checks directly,
// bypassing Codec.EncodeRequest's budget assertion: an over-limit value is a
// decode-time (malicious or corrupt peer) concern, not something a
// well-behaved encoder on this side would ever produce.

func TestCodecRejectsOversizedPath(t *testing.T) {
	codec := NewCodec(nil)
	req := &LookupPathRequest{
		Credential: testCredential(t),
		Path:       stringOfLen(PathMax + 1),
	}

	buf := encodeWithHeader(make([]byte, 0, 8192), OpLookupPath, func(e *Encoder) { req.encodeBody(e) })

	_, err := codec.DecodeRequest(buf)
	require.Error(t, err)
	assert.True(t, pvfserr.Is(err, pvfserr.Protocol))
}

func TestCodecRejectsOversizedGroupSet(t *testing.T) {
	codec := NewCodec(nil)
	c := testCredential(t)
	c.Groups = make([]uint32, GroupsMax+1)
	require.NoError(t, c.Sign(make([]byte, 32)))
	req := &GetAttrRequest{Credential: c}

	buf := encodeWithHeader(make([]byte, 0, 512), OpGetAttr, func(e *Encoder) { req.encodeBody(e) })

	_, err := codec.DecodeRequest(buf)
	require.Error(t, err)
	assert.True(t, pvfserr.Is(err, pvfserr.Protocol))
}

func TestCodecRejectsOversizedDatafileCount(t *testing.T) {
	codec := NewCodec(nil)
	req := &CreateRequest{
		Credential: testCredential(t),
		MetaSIDs:   sidsOf(1, 1),
		DataSIDs:   make([]pvfsid.SIDArray, HandlesPerMessageMax+1),
	}

	buf, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	defer codec.ReleaseEncoded(buf)

	_, err = codec.DecodeRequest(buf)
	require.Error(t, err)
	assert.True(t, pvfserr.Is(err, pvfserr.Protocol))
}

func TestDecodeRequestUnknownOp(t *testing.T) {
	codec := NewCodec(nil)
	buf := encodeWithHeader(make([]byte, 0, 16), OpMkdir, func(e *Encoder) {})

	_, err := codec.DecodeRequest(buf)
	require.Error(t, err)
	assert.True(t, pvfserr.Is(err, pvfserr.Protocol))
}
