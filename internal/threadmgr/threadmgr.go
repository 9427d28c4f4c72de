// Package threadmgr wraps the completion channels of the three external
// asynchronous subsystems the job engine depends on (network transport,
// storage backend, flow engine), each drained by exactly one goroutine. A
// thread-manager shim is the only code permitted to turn an I/O thread's
// completion into a call into the job engine.
package threadmgr

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/pvfsgo/internal/handle"
)

// NetworkCompletion reports the outcome of a posted network send/recv.
type NetworkCompletion struct {
	JobID      uint64
	ActualSize int
	Err        error
}

// StorageCompletion reports the outcome of a posted storage operation
// (byte-stream I/O, keyval, dataspace, collection, extended attributes).
type StorageCompletion struct {
	JobID        uint64
	Err          error
	VTag         uint64
	Handle       handle.Handle
	Position     int64
	Count        int
	CollectionID uint32
}

// FlowCompletion reports the outcome of a posted flow descriptor. MutexHeld
// is set when the flow engine invokes the callback from its cancel thread,
// where the completion mutex the sink would otherwise acquire is already
// held by the caller driving the cancel.
type FlowCompletion struct {
	JobID            uint64
	Err              error
	BytesTransferred int64
	MutexHeld        bool
}

// NetworkTransport is the external collaborator providing a single
// completion channel for every posted send/recv and unexpected-receive
// handler, plus cancel-by-id.
type NetworkTransport interface {
	Completions() <-chan NetworkCompletion
	Cancel(jobID uint64) error
}

// StorageBackend is the external collaborator (Trove) providing a single
// completion channel for every posted storage operation, plus cancel-by-id.
type StorageBackend interface {
	Completions() <-chan StorageCompletion
	Cancel(jobID uint64) error
}

// FlowEngine is the external collaborator providing a single completion
// channel for every posted flow descriptor, plus cancel-by-id.
type FlowEngine interface {
	Completions() <-chan FlowCompletion
	Cancel(jobID uint64) error
}

// CompletionSink is implemented by the job engine. Each Deliver* method is
// called synchronously from the owning shim's drain loop; the sink is
// responsible for its own locking (setting the job descriptor's completed
// flag, moving it to its context queue, and signalling the completion
// condition) around each call.
type CompletionSink interface {
	DeliverNetwork(NetworkCompletion)
	DeliverStorage(StorageCompletion)
	DeliverFlow(FlowCompletion)
}

// Manager owns the three drain loops and is the job engine's only entry
// point into the external async subsystems.
type Manager struct {
	network NetworkTransport
	storage StorageBackend
	flow    FlowEngine
	sink    CompletionSink

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New returns a Manager wired to the given collaborators and sink. Start
// must be called before completions are drained.
func New(network NetworkTransport, storage StorageBackend, flow FlowEngine, sink CompletionSink) *Manager {
	return &Manager{network: network, storage: storage, flow: flow, sink: sink}
}

// Start launches one drain goroutine per subsystem under an errgroup.Group,
// each the sole owner of its completion channel.
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	m.group = g

	g.Go(func() error { return m.drainNetwork(gctx) })
	g.Go(func() error { return m.drainStorage(gctx) })
	g.Go(func() error { return m.drainFlow(gctx) })
}

// Stop cancels all three drain loops and waits for them to exit.
func (m *Manager) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.group == nil {
		return nil
	}
	return m.group.Wait()
}

// CancelNetwork requests cancellation of a posted network job. The
// cancellation always completes through the normal callback path.
func (m *Manager) CancelNetwork(jobID uint64) error { return m.network.Cancel(jobID) }

// CancelStorage requests cancellation of a posted storage job.
func (m *Manager) CancelStorage(jobID uint64) error { return m.storage.Cancel(jobID) }

// CancelFlow requests cancellation of a posted flow job.
func (m *Manager) CancelFlow(jobID uint64) error { return m.flow.Cancel(jobID) }

func (m *Manager) drainNetwork(ctx context.Context) error {
	ch := m.network.Completions()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-ch:
			if !ok {
				return nil
			}
			m.sink.DeliverNetwork(c)
		}
	}
}

func (m *Manager) drainStorage(ctx context.Context) error {
	ch := m.storage.Completions()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-ch:
			if !ok {
				return nil
			}
			m.sink.DeliverStorage(c)
		}
	}
}

func (m *Manager) drainFlow(ctx context.Context) error {
	ch := m.flow.Completions()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-ch:
			if !ok {
				return nil
			}
			m.sink.DeliverFlow(c)
		}
	}
}
