// Package sched implements the request scheduler (C4): per-handle FIFO
// admission with a read/write-concurrent I/O relaxation, a timer queue, and
// a global admin/normal mode gate.
package sched

import (
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/wire"
)

// Access classifies whether a request reads or modifies its target.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

// Policy selects how a request interacts with its handle's FIFO list.
type Policy int

const (
	// PolicyNormal subjects the request to per-handle FIFO ordering.
	PolicyNormal Policy = iota
	// PolicyBypass admits the request immediately without entering any
	// handle list at all, exempting it from the scheduling invariants.
	PolicyBypass
)

// Mode is the scheduler's global admin/normal state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdminPending
	ModeAdmin
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeAdminPending:
		return "admin-pending"
	case ModeAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ticketState is exactly one of {queued, ready-to-schedule, scheduled} per
// spec.md §3's scheduler element description.
type ticketState int

const (
	stateQueued ticketState = iota
	stateReadyToSchedule
	stateScheduled
)

// Request describes one incoming server operation awaiting admission.
type Request struct {
	Op             wire.Op
	FSID           uint32
	Handle         handle.Handle
	Access         Access
	Policy         Policy
	AdminPermitted bool
	UserData       any
}

// Outcome classifies the result of Post.
type Outcome int

const (
	Immediate Outcome = iota
	Posted
)

// PostResult is returned by Post: either the request may proceed now
// (Immediate), or it has been queued and will become ready later, testable
// via TestWorld (Posted).
type PostResult struct {
	Outcome  Outcome
	TicketID uint64
}

// ticket is the scheduler's internal record of one admitted or queued
// request.
type ticket struct {
	id       uint64
	op       wire.Op
	fsid     uint32
	handle   handle.Handle
	isIO     bool
	isWrite  bool
	userData any
	state    ticketState
}

// handleList is the per-handle FIFO queue: the head is either executing or
// ready-to-execute, subsequent entries are queued.
type handleList struct {
	entries []*ticket
}

// allHeadIO reports whether every currently active (non-queued) entry at
// the front of the list is an I/O operation, the condition under which a
// new I/O request may join them immediately rather than queue.
func (l *handleList) allHeadIO() bool {
	for _, t := range l.entries {
		if t.state == stateQueued {
			break
		}
		if !t.isIO {
			return false
		}
	}
	return true
}

func indexOfTicket(entries []*ticket, t *ticket) int {
	for i, e := range entries {
		if e == t {
			return i
		}
	}
	return -1
}

// isIOOp classifies a request tag as I/O-class for the concurrent-read
// relaxation (spec.md §4.4): only OP_IO and OP_SMALL_IO carry the bulk
// read/write payloads this relaxation exists for.
func isIOOp(op wire.Op) bool {
	return op == wire.OpIO || op == wire.OpSmallIO
}
