package threadmgr

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetwork struct {
	ch        chan NetworkCompletion
	cancelled []uint64
	cancelErr error
	mu        sync.Mutex
}

func newFakeNetwork() *fakeNetwork { return &fakeNetwork{ch: make(chan NetworkCompletion, 8)} }

func (f *fakeNetwork) Completions() <-chan NetworkCompletion { return f.ch }
func (f *fakeNetwork) Cancel(jobID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return f.cancelErr
}

type fakeStorage struct {
	ch chan StorageCompletion
}

func newFakeStorage() *fakeStorage { return &fakeStorage{ch: make(chan StorageCompletion, 8)} }
func (f *fakeStorage) Completions() <-chan StorageCompletion { return f.ch }
func (f *fakeStorage) Cancel(jobID uint64) error              { return nil }

type fakeFlow struct {
	ch chan FlowCompletion
}

func newFakeFlow() *fakeFlow { return &fakeFlow{ch: make(chan FlowCompletion, 8)} }
func (f *fakeFlow) Completions() <-chan FlowCompletion { return f.ch }
func (f *fakeFlow) Cancel(jobID uint64) error          { return nil }

type recordingSink struct {
	mu       sync.Mutex
	network  []NetworkCompletion
	storage  []StorageCompletion
	flow     []FlowCompletion
	notifyCh chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notifyCh: make(chan struct{}, 64)}
}

func (s *recordingSink) DeliverNetwork(c NetworkCompletion) {
	s.mu.Lock()
	s.network = append(s.network, c)
	s.mu.Unlock()
	s.notifyCh <- struct{}{}
}

func (s *recordingSink) DeliverStorage(c StorageCompletion) {
	s.mu.Lock()
	s.storage = append(s.storage, c)
	s.mu.Unlock()
	s.notifyCh <- struct{}{}
}

func (s *recordingSink) DeliverFlow(c FlowCompletion) {
	s.mu.Lock()
	s.flow = append(s.flow, c)
	s.mu.Unlock()
	s.notifyCh <- struct{}{}
}

func (s *recordingSink) waitForN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.notifyCh:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery %d/%d", i+1, n)
		}
	}
}

func TestManagerDrainsAllThreeSubsystems(t *testing.T) {
	net := newFakeNetwork()
	storage := newFakeStorage()
	flow := newFakeFlow()
	sink := newRecordingSink()

	m := New(net, storage, flow, sink)
	m.Start(t.Context())
	defer func() { require.NoError(t, m.Stop()) }()

	net.ch <- NetworkCompletion{JobID: 1, ActualSize: 128}
	storage.ch <- StorageCompletion{JobID: 2, VTag: 7}
	flow.ch <- FlowCompletion{JobID: 3, BytesTransferred: 4096}

	sink.waitForN(t, 3)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.network, 1)
	assert.Equal(t, uint64(1), sink.network[0].JobID)
	assert.Equal(t, 128, sink.network[0].ActualSize)

	require.Len(t, sink.storage, 1)
	assert.Equal(t, uint64(7), sink.storage[0].VTag)

	require.Len(t, sink.flow, 1)
	assert.Equal(t, int64(4096), sink.flow[0].BytesTransferred)
}

func TestManagerStopWaitsForDrainLoops(t *testing.T) {
	net := newFakeNetwork()
	storage := newFakeStorage()
	flow := newFakeFlow()
	sink := newRecordingSink()

	m := New(net, storage, flow, sink)
	m.Start(t.Context())

	require.NoError(t, m.Stop())

	// A second Stop must not hang or panic.
	require.NoError(t, m.Stop())
}

func TestManagerCancelDelegatesToCollaborator(t *testing.T) {
	net := newFakeNetwork()
	storage := newFakeStorage()
	flow := newFakeFlow()
	sink := newRecordingSink()

	m := New(net, storage, flow, sink)
	m.Start(t.Context())
	defer func() { require.NoError(t, m.Stop()) }()

	require.NoError(t, m.CancelNetwork(42))

	net.mu.Lock()
	defer net.mu.Unlock()
	require.Len(t, net.cancelled, 1)
	assert.Equal(t, uint64(42), net.cancelled[0])
}
