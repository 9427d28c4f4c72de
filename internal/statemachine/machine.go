// Package statemachine implements the SMCB driver (C5): a control block
// executes a flat state graph of action, nested-machine and return
// records, suspending at posted jobs and resuming from a job engine's
// context queue.
package statemachine

// StateID indexes one record within a Machine's graph.
type StateID int

// Code classifies a state function's outcome.
type Code int

const (
	// Complete means the function finished; look up Status in the
	// current state's edge table to find the next state.
	Complete Code = iota
	// Deferred means the function posted at least one job and the
	// machine must suspend until that job appears on the SMCB's
	// context queue. The driver advances pc to the state's StatusOK
	// edge before suspending, so resumption runs the completion-
	// handling state rather than replaying the post.
	Deferred
	// Error means the function failed outright; the edge table's
	// default edge (the machine's error path) is taken.
	Error
)

// Status is the value a Complete state function returns, looked up in its
// state's edge table. Zero is the conventional success status.
type Status int

const StatusOK Status = 0

// Result is what a StateFunc returns after running.
type Result struct {
	Code   Code
	Status Status
	Err    error
}

func Done(status Status) Result { return Result{Code: Complete, Status: status} }
func Wait() Result              { return Result{Code: Deferred} }
func Fail(err error) Result     { return Result{Code: Error, Err: err} }

// StateFunc is one action state's behavior. It consumes the SMCB (for
// frames, posting jobs, and reading completed job status) and returns a
// Result.
type StateFunc func(s *SMCB) Result

// Kind classifies a StateRecord.
type Kind int

const (
	KindAction Kind = iota
	KindNested
	KindReturn
)

// StateRecord is one entry in a Machine's flat state graph.
type StateRecord struct {
	Kind Kind

	// Action fields, valid when Kind == KindAction.
	Fn      StateFunc
	Edges   map[Status]StateID // specific status -> next state
	Default StateID            // taken on Error or an unmatched Status

	// Nested fields, valid when Kind == KindNested.
	Nested     *Machine
	NestedNext StateID // state to resume at in the parent graph on return
}

// Machine is a named, flat array of state records plus its entry point.
type Machine struct {
	Name    string
	States  []StateRecord
	Initial StateID
}

func (m *Machine) record(id StateID) StateRecord {
	return m.States[id]
}

// MaxPCStackDepth bounds nested-machine recursion, matching the original
// SMCB's fixed-depth PC stack.
const MaxPCStackDepth = 3
