package wire

import (
	"github.com/marmos91/pvfsgo/internal/cred"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
)

// Request is implemented by every wire-legal request body. Concrete
// implementations are provided for a representative subset of the tag
// space (CREATE, GETATTR, LOOKUP_PATH, REMOVE); the remaining tags in Op's
// closed set are recognised for framing and size-limit purposes but their
// filesystem-operation payloads are out of this runtime's scope.
type Request interface {
	Op() Op
	encodeBody(e *Encoder)
}

// CreateRequest asks a server to allocate a new metafile handle (with its
// replica set) and a set of datafile handles (each with its own replica
// set) under the given filesystem.
type CreateRequest struct {
	Credential cred.Credential
	FSID       uint32
	MetaSIDs   pvfsid.SIDArray
	DataSIDs   []pvfsid.SIDArray
}

func (r *CreateRequest) Op() Op { return OpCreate }

func (r *CreateRequest) encodeBody(e *Encoder) {
	e.WriteCredential(r.Credential)
	e.WriteUint32(r.FSID)
	e.WriteSIDArray(r.MetaSIDs)
	e.writeUint32NoPad(uint32(len(r.DataSIDs)))
	for _, sids := range r.DataSIDs {
		e.WriteSIDArray(sids)
	}
	e.padTo8()
}

func decodeCreateRequest(d *Decoder) (Request, error) {
	r := &CreateRequest{}

	c, err := d.ReadCredential()
	if err != nil {
		return nil, err
	}
	r.Credential = c

	fsid, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.FSID = fsid

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
		return nil, protocolf("wire: CREATE datafile count %d exceeds limit %d", count, HandlesPerMessageMax)
	}
	r.DataSIDs = make([]pvfsid.SIDArray, count)
	for i := range r.DataSIDs {
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

// GetAttrRequest fetches the attributes of a single object.
type GetAttrRequest struct {
	Credential cred.Credential
	Ref        handle.Reference
	AttrMask   uint32
}

func (r *GetAttrRequest) Op() Op { return OpGetAttr }

func (r *GetAttrRequest) encodeBody(e *Encoder) {
	e.WriteCredential(r.Credential)
	e.WriteHandle(r.Ref.Handle)
	e.WriteUint32(r.Ref.FSID)
	e.WriteUint32(r.AttrMask)
}

func decodeGetAttrRequest(d *Decoder) (Request, error) {
	r := &GetAttrRequest{}

	c, err := d.ReadCredential()
	if err != nil {
		return nil, err
	}
	r.Credential = c

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

	mask, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.AttrMask = mask

	return r, nil
}

// LookupPathRequest resolves a path relative to a starting handle.
type LookupPathRequest struct {
	Credential cred.Credential
	Base       handle.Reference
	Path       string
}

func (r *LookupPathRequest) Op() Op { return OpLookupPath }

func (r *LookupPathRequest) encodeBody(e *Encoder) {
	e.WriteCredential(r.Credential)
	e.WriteHandle(r.Base.Handle)
	e.WriteUint32(r.Base.FSID)
	e.WriteString(r.Path)
}

func decodeLookupPathRequest(d *Decoder) (Request, error) {
	r := &LookupPathRequest{}

	c, err := d.ReadCredential()
	if err != nil {
		return nil, err
	}
	r.Credential = c

	h, err := d.ReadHandle()
	if err != nil {
		return nil, err
	}
	r.Base.Handle = h

	fsid, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.Base.FSID = fsid

	path, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	if len(path) > PathMax {
		return nil, protocolf("wire: path length %d exceeds limit %d", len(path), PathMax)
	}
	r.Path = path

	return r, nil
}

// RemoveRequest asks a server to destroy an object and release its handle.
type RemoveRequest struct {
	Credential cred.Credential
	Ref        handle.Reference
}

func (r *RemoveRequest) Op() Op { return OpRemove }

func (r *RemoveRequest) encodeBody(e *Encoder) {
	e.WriteCredential(r.Credential)
	e.WriteHandle(r.Ref.Handle)
	e.WriteUint32(r.Ref.FSID)
}

func decodeRemoveRequest(d *Decoder) (Request, error) {
	r := &RemoveRequest{}

	c, err := d.ReadCredential()
	if err != nil {
		return nil, err
	}
	r.Credential = c

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

var requestDecoders = map[Op]func(*Decoder) (Request, error){
	OpCreate:     decodeCreateRequest,
	OpGetAttr:    decodeGetAttrRequest,
	OpLookupPath: decodeLookupPathRequest,
	OpRemove:     decodeRemoveRequest,
}
