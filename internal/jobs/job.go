// Package jobs implements the asynchronous job engine (C3): a uniform
// post/test/testsome/testcontext API over network, storage, flow, null and
// precreate-pool operations, built on the thread-manager shims that drain
// each external subsystem's completion channel.
package jobs

import (
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/threadmgr"
)

// Kind classifies a job descriptor by the external subsystem (or internal
// bookkeeping path) it represents.
type Kind int

const (
	KindNetworkSend Kind = iota
	KindNetworkRecv
	KindStorage
	KindFlow
	KindNull
	KindPrecreatePool
)

func (k Kind) String() string {
	switch k {
	case KindNetworkSend:
		return "network-send"
	case KindNetworkRecv:
		return "network-recv"
	case KindStorage:
		return "storage"
	case KindFlow:
		return "flow"
	case KindNull:
		return "null"
	case KindPrecreatePool:
		return "precreate-pool"
	default:
		return "unknown"
	}
}

// NetworkStatus is the completion status filled in for a network job.
type NetworkStatus struct {
	ActualSize int
	Err        error
}

// StorageStatus is the completion status filled in for a storage job.
type StorageStatus struct {
	Err          error
	VTag         uint64
	Handle       handle.Handle
	Position     int64
	Count        int
	CollectionID uint32
}

// FlowStatus is the completion status filled in for a flow job.
type FlowStatus struct {
	Err              error
	BytesTransferred int64
}

// NullStatus is the completion status filled in for a null job.
type NullStatus struct {
	Err error
}

// PrecreateStatus is the completion status filled in for a precreate-pool
// handle fetch.
type PrecreateStatus struct {
	Err    error
	Handle handle.Handle
}

// Job is the engine's record of one outstanding or completed asynchronous
// operation. It is owned by the engine from post to completion; a caller
// retrieves it via Test/TestSome/TestContext and never mutates it directly.
type Job struct {
	ID        uint64
	Kind      Kind
	ContextID int
	UserTag   uint64
	UserPtr   any

	Network   *NetworkStatus
	Storage   *StorageStatus
	Flow      *FlowStatus
	Null      *NullStatus
	Precreate *PrecreateStatus

	done      chan struct{}
	completed bool
	cancelFn  func() error
}

func newJob(id uint64, kind Kind, contextID int, userTag uint64, userPtr any, cancelFn func() error) *Job {
	return &Job{
		ID:        id,
		Kind:      kind,
		ContextID: contextID,
		UserTag:   userTag,
		UserPtr:   userPtr,
		done:      make(chan struct{}),
		cancelFn:  cancelFn,
	}
}

// Outcome classifies the result of a post_* call.
type Outcome int

const (
	Immediate Outcome = iota
	Posted
	Failed
)

// PostResult is returned by every post_* operation: exactly one of an
// immediate result, a job id to test later, or an error.
type PostResult struct {
	Outcome Outcome
	JobID   uint64
	Status  error // Immediate only: nil on success, else the immediate failure
	Err     error // Failed only
	Value   any   // Immediate only: op-specific payload (e.g. a precreate-pool handle)
}

func immediate(status error) PostResult { return PostResult{Outcome: Immediate, Status: status} }
func immediateValue(v any) PostResult   { return PostResult{Outcome: Immediate, Value: v} }
func posted(id uint64) PostResult       { return PostResult{Outcome: Posted, JobID: id} }
func failed(err error) PostResult       { return PostResult{Outcome: Failed, Err: err} }

// NetworkTransport is the job engine's view of the network collaborator: the
// completion-draining contract threadmgr.Manager already drains, plus the
// posting entry points C3 calls into.
type NetworkTransport interface {
	threadmgr.NetworkTransport
	PostSend(jobID uint64, addr string, buf []byte) error
	PostRecv(jobID uint64, addr string, buf []byte) error
}

// StorageBackend is the job engine's view of the storage collaborator
// (Trove). desc is opaque to the engine; the backend interprets it
// according to its own dataspace/keyval/collection semantics, which are out
// of this runtime's scope.
type StorageBackend interface {
	threadmgr.StorageBackend
	Post(jobID uint64, desc any) error
}

// FlowEngine is the job engine's view of the flow collaborator.
type FlowEngine interface {
	threadmgr.FlowEngine
	Post(jobID uint64, desc any) error
}
