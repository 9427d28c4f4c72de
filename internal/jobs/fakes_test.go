package jobs

import (
	"sync"

	"github.com/marmos91/pvfsgo/internal/threadmgr"
)

type fakeNetwork struct {
	ch chan threadmgr.NetworkCompletion

	mu        sync.Mutex
	sent      []uint64
	recvd     []uint64
	cancelled []uint64
	postErr   error
	cancelErr error
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{ch: make(chan threadmgr.NetworkCompletion, 16)}
}

func (f *fakeNetwork) Completions() <-chan threadmgr.NetworkCompletion { return f.ch }

func (f *fakeNetwork) Cancel(jobID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return f.cancelErr
}

func (f *fakeNetwork) PostSend(jobID uint64, addr string, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.sent = append(f.sent, jobID)
	return nil
}

func (f *fakeNetwork) PostRecv(jobID uint64, addr string, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.recvd = append(f.recvd, jobID)
	return nil
}

type fakeStorage struct {
	ch chan threadmgr.StorageCompletion

	mu      sync.Mutex
	posted  []uint64
	postErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{ch: make(chan threadmgr.StorageCompletion, 16)}
}

func (f *fakeStorage) Completions() <-chan threadmgr.StorageCompletion { return f.ch }
func (f *fakeStorage) Cancel(jobID uint64) error                       { return nil }
func (f *fakeStorage) Post(jobID uint64, desc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, jobID)
	return nil
}

type fakeFlow struct {
	ch chan threadmgr.FlowCompletion

	mu      sync.Mutex
	posted  []uint64
	postErr error
}

func newFakeFlow() *fakeFlow {
	return &fakeFlow{ch: make(chan threadmgr.FlowCompletion, 16)}
}

func (f *fakeFlow) Completions() <-chan threadmgr.FlowCompletion { return f.ch }
func (f *fakeFlow) Cancel(jobID uint64) error                    { return nil }
func (f *fakeFlow) Post(jobID uint64, desc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, jobID)
	return nil
}
