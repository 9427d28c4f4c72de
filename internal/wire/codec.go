package wire

import (
	"github.com/marmos91/pvfsgo/internal/bufpool"
	"github.com/marmos91/pvfsgo/internal/cred"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
)

// Codec encodes and decodes the wire-legal request/response set. A Codec is
// safe for concurrent use; its buffer pool is the only mutable state and is
// already goroutine-safe.
type Codec struct {
	pool *bufpool.Pool
}

// NewCodec returns a Codec backed by the given buffer pool. A nil pool
// falls back to bufpool's package-level global pool.
func NewCodec(pool *bufpool.Pool) *Codec {
	return &Codec{pool: pool}
}

func (c *Codec) get(size int) []byte {
	if c.pool == nil {
		return bufpool.Get(size)
	}
	return c.pool.Get(size)
}

func (c *Codec) put(buf []byte) {
	if c.pool == nil {
		bufpool.Put(buf)
		return
	}
	c.pool.Put(buf)
}

// ReleaseEncoded returns a buffer produced by EncodeRequest/EncodeResponse to
// the codec's pool.
func (c *Codec) ReleaseEncoded(buf []byte) {
	c.put(buf)
}

// ReleaseDecoded is a no-op: decoded values own copies of every
// variable-length field (internal/wire's Decoder never hands out aliases of
// its input buffer except through ReadRaw, which only fixed-width field
// readers use and immediately copy out of). It exists to satisfy the
// component's documented contract and to give callers a single release path
// regardless of direction.
func (c *Codec) ReleaseDecoded(v any) {}

// encodeWithHeader lays out the generic header, then the op tag, then the
// body, backfilling the header once the op tag's width is known.
func encodeWithHeader(buf []byte, op Op, body func(e *Encoder)) []byte {
	e := newEncoder(buf)
	e.buf = e.buf[:HeaderSize]
	e.WriteEnum(int32(op))
	body(e)
	h := Header{Release: ProtocolRelease, Encoding: EncodingLEBytefield}
	h.Encode(e.buf[:HeaderSize])
	return e.buf
}

// EncodeRequest encodes r into a pooled buffer prefixed with the generic
// header and the request's op tag. The returned buffer must be released with
// ReleaseEncoded.
func (c *Codec) EncodeRequest(r Request) ([]byte, error) {
	max := maxEncodedSize(DirRequest, r.Op())
	buf := c.get(max)
	out := encodeWithHeader(buf, r.Op(), func(e *Encoder) { r.encodeBody(e) })
	if len(out) > max {
		return nil, protocolf("wire: encoded %s request is %d bytes, exceeds precomputed max %d", r.Op(), len(out), max)
	}
	return out, nil
}

// EncodeResponse encodes r into a pooled buffer prefixed with the generic
// header and the response's op tag. The returned buffer must be released
// with ReleaseEncoded.
func (c *Codec) EncodeResponse(r Response) ([]byte, error) {
	max := maxEncodedSize(DirResponse, r.Op())
	buf := c.get(max)
	out := encodeWithHeader(buf, r.Op(), func(e *Encoder) { r.encodeBody(e) })
	if len(out) > max {
		return nil, protocolf("wire: encoded %s response is %d bytes, exceeds precomputed max %d", r.Op(), len(out), max)
	}
	return out, nil
}

// DecodeRequest decodes a full wire buffer (generic header and op tag
// included) into a Request. It fails with a Protocol error if trailing bytes
// remain after the body decodes, or if the tag is not one this codec
// implements.
func (c *Codec) DecodeRequest(buf []byte) (Request, error) {
	if _, err := DecodeHeader(buf); err != nil {
		return nil, err
	}
	d := newDecoder(buf[HeaderSize:])
	tag, err := d.ReadEnum()
	if err != nil {
		return nil, err
	}
	op := Op(tag)
	decode, ok := requestDecoders[op]
	if !ok {
		return nil, protocolf("wire: no request decoder registered for op %s", op)
	}
	r, err := decode(d)
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, protocolf("wire: %d trailing bytes after %s request body", d.Remaining(), op)
	}
	return r, nil
}

// DecodeResponse decodes a full wire buffer (generic header and op tag
// included) into a Response.
func (c *Codec) DecodeResponse(buf []byte) (Response, error) {
	if _, err := DecodeHeader(buf); err != nil {
		return nil, err
	}
	d := newDecoder(buf[HeaderSize:])
	tag, err := d.ReadEnum()
	if err != nil {
		return nil, err
	}
	op := Op(tag)
	decode, ok := responseDecoders[op]
	if !ok {
		return nil, protocolf("wire: no response decoder registered for op %s", op)
	}
	r, err := decode(d)
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, protocolf("wire: %d trailing bytes after %s response body", d.Remaining(), op)
	}
	return r, nil
}

// maxEncodedSize returns the worst-case encoded size (header included) for
// the given direction and op, computed once at init time by encoding a
// canonical value filled out to every relevant size limit in fields.go.
func maxEncodedSize(dir Direction, op Op) int {
	key := sizeKey{dir, op}
	if n, ok := maxSizes[key]; ok {
		return n
	}
	return HeaderSize
}

type sizeKey struct {
	dir Direction
	op  Op
}

var maxSizes = computeMaxSizes()

func computeMaxSizes() map[sizeKey]int {
	sizes := map[sizeKey]int{}

	maxCred := cred.Credential{
		UID:    ^uint32(0),
		Groups: make([]uint32, GroupsMax),
		Issuer: stringOfLen(IssuerMax),
	}
	maxSIDs := make(pvfsid.SIDArray, SIDsPerHandleMax)

	createReq := &CreateRequest{
		Credential: maxCred,
		MetaSIDs:   maxSIDs,
		DataSIDs:   make([]pvfsid.SIDArray, HandlesPerMessageMax),
	}
	for i := range createReq.DataSIDs {
		createReq.DataSIDs[i] = maxSIDs
	}
	sizes[sizeKey{DirRequest, OpCreate}] = encodedLen(OpCreate, func(e *Encoder) { createReq.encodeBody(e) })

	getAttrReq := &GetAttrRequest{Credential: maxCred}
	sizes[sizeKey{DirRequest, OpGetAttr}] = encodedLen(OpGetAttr, func(e *Encoder) { getAttrReq.encodeBody(e) })

	lookupReq := &LookupPathRequest{Credential: maxCred, Path: stringOfLen(PathMax)}
	sizes[sizeKey{DirRequest, OpLookupPath}] = encodedLen(OpLookupPath, func(e *Encoder) { lookupReq.encodeBody(e) })

	createResp := &CreateResponse{
		MetaHandle:  handle.Handle{},
		MetaSIDs:    maxSIDs,
		DataHandles: make([]handle.Handle, HandlesPerMessageMax),
		DataSIDs:    make([]pvfsid.SIDArray, HandlesPerMessageMax),
	}
	for i := range createResp.DataSIDs {
		createResp.DataSIDs[i] = maxSIDs
	}
	sizes[sizeKey{DirResponse, OpCreate}] = encodedLen(OpCreate, func(e *Encoder) { createResp.encodeBody(e) })

	getAttrResp := &GetAttrResponse{}
	sizes[sizeKey{DirResponse, OpGetAttr}] = encodedLen(OpGetAttr, func(e *Encoder) { getAttrResp.encodeBody(e) })

	lookupResp := &LookupPathResponse{}
	sizes[sizeKey{DirResponse, OpLookupPath}] = encodedLen(OpLookupPath, func(e *Encoder) { lookupResp.encodeBody(e) })

	removeReq := &RemoveRequest{Credential: maxCred}
	sizes[sizeKey{DirRequest, OpRemove}] = encodedLen(OpRemove, func(e *Encoder) { removeReq.encodeBody(e) })

	removeResp := &RemoveResponse{}
	sizes[sizeKey{DirResponse, OpRemove}] = encodedLen(OpRemove, func(e *Encoder) { removeResp.encodeBody(e) })

	return sizes
}

// encodedLen measures the full wire length (header, op tag, body) a value
// would occupy, without going through the pool.
func encodedLen(op Op, body func(e *Encoder)) int {
	e := newEncoder(make([]byte, 0, HeaderSize))
	e.buf = e.buf[:HeaderSize]
	e.WriteEnum(int32(op))
	body(e)
	return len(e.buf)
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
