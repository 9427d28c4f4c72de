package wire

import (
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
)

// Response is implemented by every wire-legal response body, mirroring
// Request.
type Response interface {
	Op() Op
	encodeBody(e *Encoder)
}

// CreateResponse returns the handles and replica sets the server allocated.
type CreateResponse struct {
	Status      int32
	MetaHandle  handle.Handle
	MetaSIDs    pvfsid.SIDArray
	DataHandles []handle.Handle
	DataSIDs    []pvfsid.SIDArray
}

func (r *CreateResponse) Op() Op { return OpCreate }

func (r *CreateResponse) encodeBody(e *Encoder) {
	e.WriteInt32(r.Status)
	e.WriteHandle(r.MetaHandle)
	e.WriteSIDArray(r.MetaSIDs)
	e.writeUint32NoPad(uint32(len(r.DataHandles)))
	for i, h := range r.DataHandles {
		e.WriteRaw(h[:])
		e.WriteSIDArray(r.DataSIDs[i])
	}
	e.padTo8()
}

func decodeCreateResponse(d *Decoder) (Response, error) {
	r := &CreateResponse{}

	status, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	r.Status = status

	metaHandle, err := d.ReadHandle()
	if err != nil {
		return nil, err
	}
	r.MetaHandle = metaHandle

	metaSIDs, err := d.ReadSIDArray()
	if err != nil {
		return nil, err
	}
	r.MetaSIDs = metaSIDs

	count, err := d.readUint32NoPad()
	if err != nil {
		return nil, err
	}
	if count > HandlesPerMessageMax {
		return nil, protocolf("wire: CREATE response datafile count %d exceeds limit %d", count, HandlesPerMessageMax)
	}
	r.DataHandles = make([]handle.Handle, count)
	r.DataSIDs = make([]pvfsid.SIDArray, count)
	for i := range r.DataHandles {
		h, err := d.ReadHandle()
		if err != nil {
			return nil, err
		}
		r.DataHandles[i] = h

		sids, err := d.ReadSIDArray()
		if err != nil {
			return nil, err
		}
		r.DataSIDs[i] = sids
	}
	if err := d.skipPad8(); err != nil {
		return nil, err
	}

	return r, nil
}

// Attr is a minimal object attribute set; real deployments would carry the
// full attribute bitmask this runtime's filesystem-operation layer defines,
// which is out of scope here (spec §1 Non-goals).
type Attr struct {
	Size  uint64
	Mode  uint32
	UID   uint32
	GID   uint32
}

// GetAttrResponse returns an object's attributes.
type GetAttrResponse struct {
	Status int32
	Attr   Attr
}

func (r *GetAttrResponse) Op() Op { return OpGetAttr }

func (r *GetAttrResponse) encodeBody(e *Encoder) {
	e.WriteInt32(r.Status)
	e.WriteUint64(r.Attr.Size)
	e.WriteUint32(r.Attr.Mode)
	e.WriteUint32(r.Attr.UID)
	e.WriteUint32(r.Attr.GID)
	e.padTo8()
}

func decodeGetAttrResponse(d *Decoder) (Response, error) {
	r := &GetAttrResponse{}

	status, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	r.Status = status

	size, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	r.Attr.Size = size

	mode, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.Attr.Mode = mode

	uid, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.Attr.UID = uid

	gid, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.Attr.GID = gid

	return r, nil
}

// LookupPathResponse returns the handle a path resolved to.
type LookupPathResponse struct {
	Status int32
	Ref    handle.Reference
}

func (r *LookupPathResponse) Op() Op { return OpLookupPath }

func (r *LookupPathResponse) encodeBody(e *Encoder) {
	e.WriteInt32(r.Status)
	e.WriteHandle(r.Ref.Handle)
	e.WriteUint32(r.Ref.FSID)
}

func decodeLookupPathResponse(d *Decoder) (Response, error) {
	r := &LookupPathResponse{}

	status, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	r.Status = status

	h, err := d.ReadHandle()
	if err != nil {
		return nil, err
	}
	r.Ref.Handle = h

	fsid, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.Ref.FSID = fsid

	return r, nil
}

// RemoveResponse carries only the server's completion status.
type RemoveResponse struct {
	Status int32
}

func (r *RemoveResponse) Op() Op { return OpRemove }

func (r *RemoveResponse) encodeBody(e *Encoder) {
	e.WriteInt32(r.Status)
}

func decodeRemoveResponse(d *Decoder) (Response, error) {
	r := &RemoveResponse{}
	status, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	r.Status = status
	return r, nil
}

var responseDecoders = map[Op]func(*Decoder) (Response, error){
	OpCreate:     decodeCreateResponse,
	OpGetAttr:    decodeGetAttrResponse,
	OpLookupPath: decodeLookupPathResponse,
	OpRemove:     decodeRemoveResponse,
}
