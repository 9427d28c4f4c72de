package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/jobs"
	"github.com/marmos91/pvfsgo/internal/threadmgr"
)

type dummyNetwork struct{ ch chan threadmgr.NetworkCompletion }

func (n *dummyNetwork) Completions() <-chan threadmgr.NetworkCompletion { return n.ch }
func (n *dummyNetwork) Cancel(uint64) error                             { return nil }
func (n *dummyNetwork) PostSend(uint64, string, []byte) error           { return nil }
func (n *dummyNetwork) PostRecv(uint64, string, []byte) error           { return nil }

type dummyStorage struct{ ch chan threadmgr.StorageCompletion }

func (s *dummyStorage) Completions() <-chan threadmgr.StorageCompletion { return s.ch }
func (s *dummyStorage) Cancel(uint64) error                             { return nil }
func (s *dummyStorage) Post(uint64, any) error                          { return nil }

type dummyFlow struct{ ch chan threadmgr.FlowCompletion }

func (f *dummyFlow) Completions() <-chan threadmgr.FlowCompletion { return f.ch }
func (f *dummyFlow) Cancel(uint64) error                          { return nil }
func (f *dummyFlow) Post(uint64, any) error                       { return nil }

func newTestEngine(t *testing.T) *jobs.Engine {
	t.Helper()
	cfg := *config.Default()
	e := jobs.NewEngine(cfg,
		&dummyNetwork{ch: make(chan threadmgr.NetworkCompletion, 1)},
		&dummyStorage{ch: make(chan threadmgr.StorageCompletion, 1)},
		&dummyFlow{ch: make(chan threadmgr.FlowCompletion, 1)},
		nil)
	t.Cleanup(e.Stop)
	return e
}

// stateReturn is the distinguished finalise state for simple linear
// machines in these tests.
const stateReturn StateID = 0

func linearMachine(fns ...StateFunc) *Machine {
	states := make([]StateRecord, 0, len(fns)+1)
	states = append(states, StateRecord{Kind: KindReturn})
	for i, fn := range fns {
		next := StateID(i + 2)
		if i == len(fns)-1 {
			next = stateReturn
		}
		states = append(states, StateRecord{
			Kind:    KindAction,
			Fn:      fn,
			Edges:   map[Status]StateID{StatusOK: next},
			Default: stateReturn,
		})
	}
	return &Machine{Name: "linear", States: states, Initial: 1}
}

func TestSimpleMachineRunsToCompletion(t *testing.T) {
	var ran []string
	m := linearMachine(
		func(s *SMCB) Result { ran = append(ran, "a"); return Done(StatusOK) },
		func(s *SMCB) Result { ran = append(ran, "b"); return Done(StatusOK) },
	)

	s := NewSMCB(m, nil, 0, 0)
	(&Driver{}).run(s)

	assert.True(t, s.Completed())
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestFramesPushPopCurrent(t *testing.T) {
	m := linearMachine(func(s *SMCB) Result {
		s.PushFrame("outer")
		assert.Equal(t, "outer", s.CurrentFrame())
		s.PushFrame("inner")
		assert.Equal(t, "inner", s.PopFrame())
		assert.Equal(t, "outer", s.CurrentFrame())
		return Done(StatusOK)
	})
	s := NewSMCB(m, nil, 0, 0)
	(&Driver{}).run(s)
	assert.True(t, s.Completed())
}

func TestNestedMachineReturnsToParent(t *testing.T) {
	var ran []string
	nested := &Machine{
		Name: "nested",
		States: []StateRecord{
			{Kind: KindReturn},
			{Kind: KindAction, Fn: func(s *SMCB) Result {
				ran = append(ran, "nested-state")
				return Done(StatusOK)
			}, Edges: map[Status]StateID{StatusOK: 0}, Default: 0},
		},
		Initial: 1,
	}

	parent := &Machine{
		Name: "parent",
		States: []StateRecord{
			{Kind: KindReturn},
			{Kind: KindNested, Nested: nested, NestedNext: 2},
			{Kind: KindAction, Fn: func(s *SMCB) Result {
				ran = append(ran, "after-nested")
				return Done(StatusOK)
			}, Edges: map[Status]StateID{StatusOK: 0}, Default: 0},
		},
		Initial: 1,
	}

	s := NewSMCB(parent, nil, 0, 0)
	(&Driver{}).run(s)

	assert.True(t, s.Completed())
	assert.Equal(t, []string{"nested-state", "after-nested"}, ran)
}

func TestDeferredSuspendsAndResumeContinues(t *testing.T) {
	engine := newTestEngine(t)

	d, err := NewDriver(engine)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	var resumed bool
	m := &Machine{
		Name: "post-and-wait",
		States: []StateRecord{
			{Kind: KindReturn},
			{Kind: KindAction, Fn: func(s *SMCB) Result {
				s.Engine().PostNull(s.ContextID, nil, s.UserTag, s)
				return Wait()
			}, Edges: map[Status]StateID{StatusOK: 2}, Default: 0},
			{Kind: KindAction, Fn: func(s *SMCB) Result {
				resumed = true
				require.NotNil(t, s.LastJob())
				return Done(StatusOK)
			}, Edges: map[Status]StateID{StatusOK: 0}, Default: 0},
		},
		Initial: 1,
	}

	smcb, err := d.Start(m, 0)
	require.NoError(t, err)
	assert.False(t, smcb.Completed(), "machine must suspend at the deferred state")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := d.Pump(ctx, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, resumed)
	assert.True(t, smcb.Completed())
}

func TestCancelledSMCBTakesErrorPath(t *testing.T) {
	called := false
	m := &Machine{
		Name: "cancellable",
		States: []StateRecord{
			{Kind: KindReturn},
			{Kind: KindAction, Fn: func(s *SMCB) Result {
				called = true
				return Done(StatusOK)
			}, Edges: map[Status]StateID{StatusOK: 0}, Default: 0},
		},
		Initial: 1,
	}
	s := NewSMCB(m, nil, 0, 0)
	s.Cancel()
	(&Driver{}).run(s)

	assert.True(t, s.Completed())
	assert.False(t, called, "a cancelled SMCB must not invoke the state function")
}
