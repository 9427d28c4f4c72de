package msgpair

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/jobs"
	"github.com/marmos91/pvfsgo/internal/threadmgr"
)

// scriptedNetwork answers PostRecv with a reply byte pulled from one script
// shared by every address, one status byte per PostRecv call; a script of
// {1, 0} mimics a peer whose first reply is retryable and whose second
// succeeds.
type scriptedNetwork struct {
	ch chan threadmgr.NetworkCompletion

	mu    sync.Mutex
	sent  int
	recvd int
	script []byte // one status byte consumed per PostRecv call
}

func newScriptedNetwork(script []byte) *scriptedNetwork {
	return &scriptedNetwork{ch: make(chan threadmgr.NetworkCompletion, 16), script: script}
}

func (n *scriptedNetwork) Completions() <-chan threadmgr.NetworkCompletion { return n.ch }
func (n *scriptedNetwork) Cancel(uint64) error                             { return nil }

func (n *scriptedNetwork) PostSend(jobID uint64, addr string, buf []byte) error {
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
	go func() {
		n.ch <- threadmgr.NetworkCompletion{JobID: jobID, ActualSize: len(buf)}
	}()
	return nil
}

func (n *scriptedNetwork) PostRecv(jobID uint64, addr string, buf []byte) error {
	n.mu.Lock()
	idx := n.recvd
	n.recvd++
	n.mu.Unlock()

	status := byte(0)
	if idx < len(n.script) {
		status = n.script[idx]
	}
	if len(buf) > 0 {
		buf[0] = status
	}
	go func() {
		n.ch <- threadmgr.NetworkCompletion{JobID: jobID, ActualSize: 1}
	}()
	return nil
}

func (n *scriptedNetwork) counts() (sent, recvd int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent, n.recvd
}

type noopStorage struct{ ch chan threadmgr.StorageCompletion }
type noopFlow struct{ ch chan threadmgr.FlowCompletion }

func (s *noopStorage) Completions() <-chan threadmgr.StorageCompletion { return s.ch }
func (s *noopStorage) Cancel(uint64) error                             { return nil }
func (s *noopStorage) Post(uint64, any) error                          { return nil }

func (f *noopFlow) Completions() <-chan threadmgr.FlowCompletion { return f.ch }
func (f *noopFlow) Cancel(uint64) error                          { return nil }
func (f *noopFlow) Post(uint64, any) error                       { return nil }

// statusClassifier treats reply byte 0 as success and 1 as retryable,
// matching scriptedNetwork's status byte convention.
func statusClassifier(reply []byte, netErr error) (Classification, error) {
	if netErr != nil {
		return ClassFail, netErr
	}
	if len(reply) == 0 {
		return ClassFail, nil
	}
	switch reply[0] {
	case 0:
		return ClassOK, nil
	case 1:
		return ClassRetry, nil
	default:
		return ClassFail, nil
	}
}

// TestArrayRetriesThenSucceeds is the literal S6 scenario: a peer that
// returns a retryable status on the first reply and success on the
// second. The array must complete with success, with exactly two sends
// and two receives posted, separated by at least the configured retry
// delay.
func TestArrayRetriesThenSucceeds(t *testing.T) {
	net := newScriptedNetwork([]byte{1, 0})
	storage := &noopStorage{ch: make(chan threadmgr.StorageCompletion, 1)}
	flow := &noopFlow{ch: make(chan threadmgr.FlowCompletion, 1)}

	cfg := *config.Default()
	cfg.MessagePair.RetryLimit = 1
	cfg.MessagePair.RetryDelay = 10 * time.Millisecond

	engine := jobs.NewEngine(cfg, net, storage, flow, nil)
	t.Cleanup(engine.Stop)

	mgr := threadmgr.New(net, storage, flow, engine)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr.Start(ctx)
	t.Cleanup(func() { _ = mgr.Stop() })

	contextID, err := engine.OpenContext()
	require.NoError(t, err)

	pair := &Pair{
		Address:     "peer-1",
		Request:     []byte("CREATE"),
		ReplyBuffer: make([]byte, 1),
		Classify:    statusClassifier,
	}
	array := NewArray(cfg.MessagePair, []*Pair{pair})

	start := time.Now()
	results := Run(ctx, engine, contextID, time.Second, array)
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.Equal(t, ClassOK, results[0].Class)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, pair.RetryCount)
	assert.GreaterOrEqual(t, elapsed, cfg.MessagePair.RetryDelay)

	sent, recvd := net.counts()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, recvd)
}

func TestArrayFailsAfterRetryLimit(t *testing.T) {
	net := newScriptedNetwork([]byte{1, 1, 1})
	storage := &noopStorage{ch: make(chan threadmgr.StorageCompletion, 1)}
	flow := &noopFlow{ch: make(chan threadmgr.FlowCompletion, 1)}

	cfg := *config.Default()
	cfg.MessagePair.RetryLimit = 2
	cfg.MessagePair.RetryDelay = 5 * time.Millisecond

	engine := jobs.NewEngine(cfg, net, storage, flow, nil)
	t.Cleanup(engine.Stop)

	mgr := threadmgr.New(net, storage, flow, engine)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr.Start(ctx)
	t.Cleanup(func() { _ = mgr.Stop() })

	contextID, err := engine.OpenContext()
	require.NoError(t, err)

	pair := &Pair{
		Address:     "peer-1",
		Request:     []byte("CREATE"),
		ReplyBuffer: make([]byte, 1),
		Classify:    statusClassifier,
	}
	array := NewArray(cfg.MessagePair, []*Pair{pair})

	results := Run(ctx, engine, contextID, time.Second, array)

	require.Len(t, results, 1)
	assert.Equal(t, ClassFail, results[0].Class)
	assert.Equal(t, 2, pair.RetryCount)
}
