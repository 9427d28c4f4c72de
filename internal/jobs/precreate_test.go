package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
)

func sid(b byte) pvfsid.SID { return pvfsid.SID{b, b, b, b} }

func TestPrecreatePoolGetHandlesImmediateWhenFilled(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctxID, err := e.OpenContext()
	require.NoError(t, err)

	server := sid(1)
	h := handle.Handle{1, 2, 3}
	e.PrecreatePoolFill(9, server, []handle.Handle{h})

	results, err := e.PrecreatePoolGetHandles(ctxID, 9, 1, []pvfsid.SID{server}, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, Immediate, results[0].Outcome)
	assert.Equal(t, h, results[0].Value)
}

func TestPrecreatePoolGetHandlesParksAndWakesOnFill(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctxID, err := e.OpenContext()
	require.NoError(t, err)

	server := sid(2)
	e.precreate.registerServer(9, server)

	results, err := e.PrecreatePoolGetHandles(ctxID, 9, 1, []pvfsid.SID{server}, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, Posted, results[0].Outcome)

	jobID := results[0].JobID

	done := make(chan *Job, 1)
	go func() {
		j, err := e.Test(t.Context(), jobID, time.Second)
		require.NoError(t, err)
		done <- j
	}()

	select {
	case <-done:
		t.Fatal("job completed before any fill")
	case <-time.After(30 * time.Millisecond):
	}

	h := handle.Handle{9, 9, 9}
	e.PrecreatePoolFill(9, server, []handle.Handle{h})

	select {
	case j := <-done:
		require.NotNil(t, j.Precreate)
		assert.Equal(t, h, j.Precreate.Handle)
	case <-time.After(time.Second):
		t.Fatal("parked job never completed after fill")
	}
}

func TestPrecreatePoolRoundRobinsAcrossServers(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctxID, err := e.OpenContext()
	require.NoError(t, err)

	s1, s2 := sid(1), sid(2)
	e.precreate.registerServer(9, s1)
	e.precreate.registerServer(9, s2)
	e.PrecreatePoolFill(9, s1, []handle.Handle{{1}})
	e.PrecreatePoolFill(9, s2, []handle.Handle{{2}})

	r1, err := e.PrecreatePoolGetHandles(ctxID, 9, 1, nil, 0, nil)
	require.NoError(t, err)
	r2, err := e.PrecreatePoolGetHandles(ctxID, 9, 1, nil, 0, nil)
	require.NoError(t, err)

	require.Equal(t, Immediate, r1[0].Outcome)
	require.Equal(t, Immediate, r2[0].Outcome)
	assert.NotEqual(t, r1[0].Value, r2[0].Value)
}

func TestPrecreatePoolFillSignalErrorWakesWaitersWithError(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctxID, err := e.OpenContext()
	require.NoError(t, err)

	server := sid(3)
	e.precreate.registerServer(9, server)

	results, err := e.PrecreatePoolGetHandles(ctxID, 9, 1, []pvfsid.SID{server}, 0, nil)
	require.NoError(t, err)
	require.Equal(t, Posted, results[0].Outcome)

	wantErr := assert.AnError
	done := make(chan *Job, 1)
	go func() {
		j, terr := e.Test(t.Context(), results[0].JobID, time.Second)
		require.NoError(t, terr)
		done <- j
	}()

	e.PrecreatePoolFillSignalError(9, server, wantErr)

	select {
	case j := <-done:
		require.NotNil(t, j.Precreate)
		assert.Equal(t, wantErr, j.Precreate.Err)
	case <-time.After(time.Second):
		t.Fatal("waiter never woken by FillSignalError")
	}
}

func TestPrecreatePoolCheckLevel(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	server := sid(4)
	e.precreate.registerServer(9, server)

	below, err := e.PrecreatePoolCheckLevel(t.Context(), 9, server, 1)
	require.NoError(t, err)
	assert.True(t, below)

	e.PrecreatePoolFill(9, server, []handle.Handle{{1}, {2}})

	below, err = e.PrecreatePoolCheckLevel(t.Context(), 9, server, 1)
	require.NoError(t, err)
	assert.False(t, below)
}

func TestPrecreatePoolIterateHandles(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	s1, s2 := sid(1), sid(2)
	e.PrecreatePoolFill(9, s1, []handle.Handle{{1}, {2}, {3}})
	e.PrecreatePoolFill(9, s2, []handle.Handle{{4}, {5}})

	var all []handle.Handle
	cursor := PrecreateCursorStart
	for {
		page, next, err := e.PrecreatePoolIterateHandles(9, cursor, 2)
		require.NoError(t, err)
		all = append(all, page...)
		if next == PrecreateCursorEnd {
			break
		}
		cursor = next
	}

	assert.Len(t, all, 5)
}
