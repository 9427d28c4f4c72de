// Package climachine builds the small state machine the CLI collaborators
// drive: one request, sent and received over the job engine, as a state
// graph rather than a hand-rolled blocking call. It exists so pvfs-touch
// and pvfs-rmit exercise the same C5 driver (post, suspend, resume on
// completion) that a real server's request handlers would use at much
// larger scale, instead of bypassing it with a synchronous round trip.
package climachine

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/pvfsgo/internal/statemachine"
)

var (
	errNoSendCompletion = errors.New("climachine: resumed before send completion was recorded")
	errNoRecvCompletion = errors.New("climachine: resumed before receive completion was recorded")
)

const (
	stateReturn statemachine.StateID = 0
	stateSend   statemachine.StateID = 1
	stateRecv   statemachine.StateID = 2
	stateDecode statemachine.StateID = 3
)

// RoundTrip is the per-call scratch a machine built by Machine is bound to.
// Reply must be sized to the caller's expected maximum reply before Run;
// ActualSize reports how much of it the peer actually wrote.
type RoundTrip struct {
	Addr    string
	Request []byte
	Reply   []byte

	ActualSize int
}

// Machine builds a three-state send/receive/decode graph bound to rt: post
// the send and suspend, on resume check it and post the receive and
// suspend, on resume check it and record the actual reply size.
func Machine(rt *RoundTrip) *statemachine.Machine {
	return &statemachine.Machine{
		Name: "cli-roundtrip",
		States: []statemachine.StateRecord{
			{Kind: statemachine.KindReturn},
			{
				Kind: statemachine.KindAction,
				Fn: func(s *statemachine.SMCB) statemachine.Result {
					s.Engine().PostNetworkSend(s.ContextID, rt.Addr, rt.Request, 0, s.UserTag, s)
					return statemachine.Wait()
				},
				Edges:   map[statemachine.Status]statemachine.StateID{statemachine.StatusOK: stateRecv},
				Default: stateReturn,
			},
			{
				Kind: statemachine.KindAction,
				Fn: func(s *statemachine.SMCB) statemachine.Result {
					j := s.LastJob()
					if j == nil || j.Network == nil {
						return statemachine.Fail(errNoSendCompletion)
					}
					if j.Network.Err != nil {
						return statemachine.Fail(j.Network.Err)
					}
					s.Engine().PostNetworkRecv(s.ContextID, rt.Addr, rt.Reply, 0, s.UserTag, s)
					return statemachine.Wait()
				},
				Edges:   map[statemachine.Status]statemachine.StateID{statemachine.StatusOK: stateDecode},
				Default: stateReturn,
			},
			{
				Kind: statemachine.KindAction,
				Fn: func(s *statemachine.SMCB) statemachine.Result {
					j := s.LastJob()
					if j == nil || j.Network == nil {
						return statemachine.Fail(errNoRecvCompletion)
					}
					if j.Network.Err != nil {
						return statemachine.Fail(j.Network.Err)
					}
					rt.ActualSize = j.Network.ActualSize
					return statemachine.Done(statemachine.StatusOK)
				},
				Edges:   map[statemachine.Status]statemachine.StateID{statemachine.StatusOK: stateReturn},
				Default: stateReturn,
			},
		},
		Initial: stateSend,
	}
}

// Run starts rt's machine on driver and pumps it to completion, returning
// the SMCB's final error (nil on success).
func Run(ctx context.Context, driver *statemachine.Driver, rt *RoundTrip, timeout time.Duration) error {
	smcb, err := driver.Start(Machine(rt), 0)
	if err != nil {
		return err
	}
	for !smcb.Completed() {
		if _, err := driver.Pump(ctx, timeout); err != nil {
			return err
		}
	}
	return smcb.FinalErr
}
