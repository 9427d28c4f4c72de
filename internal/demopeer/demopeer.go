// Package demopeer implements a single-process loopback peer standing in
// for a remote server: it decodes a posted request with the wire codec,
// computes a response through a caller-supplied handler, and answers the
// paired receive asynchronously. Network and storage transports are
// external collaborators of this runtime (spec.md §1 Non-goals); the CLI
// collaborators use this loopback rather than a real socket so that
// pvfs-touch and pvfs-rmit can drive the full job-engine/scheduler/
// state-machine pipeline standalone, the way scriptedNetwork in
// internal/msgpair's tests drives it for a unit test.
package demopeer

import (
	"sync"

	"github.com/marmos91/pvfsgo/internal/threadmgr"
	"github.com/marmos91/pvfsgo/internal/wire"
)

// Handler computes the response body for a decoded request. Returning a nil
// Response makes the peer answer the paired receive with a zero-length
// reply, simulating a connection drop.
type Handler func(req wire.Request) wire.Response

// Peer is a NetworkTransport whose PostSend decodes and answers a request
// inline (on its own goroutine) and whose PostRecv delivers the encoded
// reply produced by the most recent PostSend on the same address.
type Peer struct {
	codec   *wire.Codec
	handler Handler

	ch chan threadmgr.NetworkCompletion

	mu      sync.Mutex
	replies map[string][]byte
}

// New returns a Peer that answers every decoded request with handler.
func New(handler Handler) *Peer {
	return &Peer{
		codec:   wire.NewCodec(nil),
		handler: handler,
		ch:      make(chan threadmgr.NetworkCompletion, 4),
		replies: make(map[string][]byte),
	}
}

func (p *Peer) Completions() <-chan threadmgr.NetworkCompletion { return p.ch }

func (p *Peer) Cancel(uint64) error { return nil }

// PostSend decodes buf as a request and stores the handler's encoded
// response keyed by addr, ready for the matching PostRecv.
func (p *Peer) PostSend(jobID uint64, addr string, buf []byte) error {
	req, decodeErr := p.codec.DecodeRequest(buf)
	go func() {
		var encoded []byte
		if decodeErr == nil {
			resp := p.handler(req)
			if resp != nil {
				if b, err := p.codec.EncodeResponse(resp); err == nil {
					encoded = b
				}
			}
		}
		p.mu.Lock()
		p.replies[addr] = encoded
		p.mu.Unlock()
		p.ch <- threadmgr.NetworkCompletion{JobID: jobID, ActualSize: len(buf)}
	}()
	return nil
}

// PostRecv copies the reply queued by the last PostSend to addr into buf.
func (p *Peer) PostRecv(jobID uint64, addr string, buf []byte) error {
	go func() {
		p.mu.Lock()
		reply := p.replies[addr]
		delete(p.replies, addr)
		p.mu.Unlock()

		n := copy(buf, reply)
		p.ch <- threadmgr.NetworkCompletion{JobID: jobID, ActualSize: n}
	}()
	return nil
}

// NoopStorage is a StorageBackend that never completes anything; the CLI
// collaborators post no storage jobs, but the job engine requires a
// non-nil collaborator of each kind.
type NoopStorage struct {
	ch chan threadmgr.StorageCompletion
}

func NewNoopStorage() *NoopStorage {
	return &NoopStorage{ch: make(chan threadmgr.StorageCompletion)}
}

func (s *NoopStorage) Completions() <-chan threadmgr.StorageCompletion { return s.ch }
func (s *NoopStorage) Cancel(uint64) error                             { return nil }
func (s *NoopStorage) Post(uint64, any) error                          { return nil }

// NoopFlow is a FlowEngine with the same role as NoopStorage.
type NoopFlow struct {
	ch chan threadmgr.FlowCompletion
}

func NewNoopFlow() *NoopFlow {
	return &NoopFlow{ch: make(chan threadmgr.FlowCompletion)}
}

func (f *NoopFlow) Completions() <-chan threadmgr.FlowCompletion { return f.ch }
func (f *NoopFlow) Cancel(uint64) error                          { return nil }
func (f *NoopFlow) Post(uint64, any) error                       { return nil }
