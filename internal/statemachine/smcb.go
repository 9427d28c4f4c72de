package statemachine

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/marmos91/pvfsgo/internal/jobs"
)

type pcFrame struct {
	machine *Machine
	pc      StateID
}

// SMCB is one in-flight operation's control block: its position in its
// state graph, its nested-machine PC stack, and the scratch frames pushed
// by the machines currently executing.
type SMCB struct {
	ID uuid.UUID

	ContextID int // jobs engine context this SMCB's jobs post against
	UserTag   uint64

	engine *jobs.Engine

	machine *Machine
	pc      StateID
	pcStack []pcFrame

	frames []any

	lastResult       Result
	lastCompletedJob *jobs.Job

	cancelled atomic.Bool
	completed bool

	FinalStatus Status
	FinalErr    error
}

// NewSMCB starts a new control block at machine's initial state, bound to
// contextID for job posting. State functions reach the job engine via
// Engine(), passing the SMCB itself as each posted job's UserPtr so the
// driver's Pump can route completions back to it.
func NewSMCB(machine *Machine, engine *jobs.Engine, contextID int, userTag uint64) *SMCB {
	return &SMCB{
		ID:        uuid.New(),
		ContextID: contextID,
		UserTag:   userTag,
		engine:    engine,
		machine:   machine,
		pc:        machine.Initial,
	}
}

// Engine returns the job engine this SMCB's state functions post work to.
func (s *SMCB) Engine() *jobs.Engine {
	return s.engine
}

// LastJob returns the job whose completion most recently resumed this
// SMCB, valid only from within the state function that follows a Deferred
// suspension.
func (s *SMCB) LastJob() *jobs.Job {
	return s.lastCompletedJob
}

// Cancel sets the cancellation flag; running state functions must poll
// Cancelled at their own suspension points.
func (s *SMCB) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (s *SMCB) Cancelled() bool {
	return s.cancelled.Load()
}

// Completed reports whether the SMCB has reached its finalise state.
func (s *SMCB) Completed() bool {
	return s.completed
}

// PushFrame pushes per-operation scratch that outlives any single state.
// Children machines may push additional frames, which they must pop before
// returning to their parent.
func (s *SMCB) PushFrame(v any) {
	s.frames = append(s.frames, v)
}

// PopFrame removes and returns the top frame.
func (s *SMCB) PopFrame() any {
	n := len(s.frames)
	if n == 0 {
		return nil
	}
	v := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return v
}

// CurrentFrame returns the top frame without popping it.
func (s *SMCB) CurrentFrame() any {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// pushPC saves the parent graph's resume point before jumping into a
// nested machine, enforcing MaxPCStackDepth.
func (s *SMCB) pushPC(next StateID) error {
	if len(s.pcStack) >= MaxPCStackDepth {
		return errPCStackOverflow
	}
	s.pcStack = append(s.pcStack, pcFrame{machine: s.machine, pc: next})
	return nil
}

// popPC restores the parent graph's resume point, returning false if the
// stack was already empty (a return state at the outermost machine).
func (s *SMCB) popPC() (pcFrame, bool) {
	n := len(s.pcStack)
	if n == 0 {
		return pcFrame{}, false
	}
	f := s.pcStack[n-1]
	s.pcStack = s.pcStack[:n-1]
	return f, true
}
