package statemachine

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/pvfsgo/internal/jobs"
	"github.com/marmos91/pvfsgo/internal/logger"
)

var errPCStackOverflow = errors.New("statemachine: nested-machine stack depth exceeded")

// Driver runs SMCBs to completion against a job engine context, per
// spec.md §4.5's execution rule: invoke the current state, follow its
// edge on Complete, suspend on Deferred until the posted job reappears on
// the context queue, and set the completed flag on reaching a machine's
// distinguished finalise state (the KindReturn record at the outermost
// machine).
type Driver struct {
	jobs      *jobs.Engine
	contextID int
}

// NewDriver opens a dedicated job context for the driver's SMCBs.
func NewDriver(engine *jobs.Engine) (*Driver, error) {
	ctxID, err := engine.OpenContext()
	if err != nil {
		return nil, err
	}
	return &Driver{jobs: engine, contextID: ctxID}, nil
}

// Close releases the driver's job context.
func (d *Driver) Close() error {
	return d.jobs.CloseContext(d.contextID)
}

// Start creates a new SMCB on machine and runs it until it either
// suspends or finishes.
func (d *Driver) Start(machine *Machine, userTag uint64) (*SMCB, error) {
	s := NewSMCB(machine, d.jobs, d.contextID, userTag)
	d.run(s)
	return s, nil
}

// run executes states until the SMCB suspends (Deferred) or completes.
func (d *Driver) run(s *SMCB) {
	for {
		if s.completed {
			return
		}
		rec := s.machine.record(s.pc)

		switch rec.Kind {
		case KindReturn:
			parent, ok := s.popPC()
			if !ok {
				s.completed = true
				s.FinalStatus = s.lastResult.Status
				s.FinalErr = s.lastResult.Err
				logger.Debug("statemachine: finalise", "smcb", s.ID.String())
				return
			}
			s.machine = parent.machine
			s.pc = parent.pc
			continue

		case KindNested:
			if err := s.pushPC(rec.NestedNext); err != nil {
				s.completed = true
				s.FinalErr = err
				logger.Warn("statemachine: nested-machine stack overflow", "smcb", s.ID.String())
				return
			}
			s.machine = rec.Nested
			s.pc = rec.Nested.Initial
			continue

		case KindAction:
			if s.Cancelled() {
				s.pc = rec.Default
				continue
			}
			res := rec.Fn(s)
			s.lastResult = res

			switch res.Code {
			case Deferred:
				// A deferred action has posted its job and has exactly one
				// continuation, named the same way a Complete result names
				// its next state: via the StatusOK edge. Advance pc to it
				// now so Resume re-enters at the completion-handling state
				// instead of replaying the post.
				next, ok := rec.Edges[StatusOK]
				if !ok {
					next = rec.Default
				}
				s.pc = next
				return
			case Error:
				s.pc = rec.Default
				continue
			case Complete:
				next, ok := rec.Edges[res.Status]
				if !ok {
					next = rec.Default
				}
				s.pc = next
				continue
			}
		}
	}
}

// Resume re-enters an SMCB that was suspended on a Deferred state function,
// after its posted job has completed and is available via s.LastJob().
func (d *Driver) Resume(s *SMCB) {
	d.run(s)
}

// Pump drives every SMCB suspended on this driver's context: it blocks up
// to timeout for the next batch of completed jobs, then resumes each job's
// owning SMCB. Intended to run in a loop from the owner's event pump,
// collapsing the original's four-thread model into one cooperative driver
// per spec.md §5.
func (d *Driver) Pump(ctx context.Context, timeout time.Duration) (int, error) {
	completed, err := d.jobs.TestContext(ctx, d.contextID, timeout, 0)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, j := range completed {
		s, ok := j.UserPtr.(*SMCB)
		if !ok || s == nil {
			continue
		}
		s.lastCompletedJob = j
		d.Resume(s)
		resumed++
	}
	return resumed, nil
}
