package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/logger"
	"github.com/marmos91/pvfsgo/internal/pvfserr"
)

type listKey struct {
	fsid   uint32
	handle handle.Handle
}

// Engine is the process-wide request scheduler: per-handle FIFO admission
// lists, a timer queue, and the admin/normal mode gate, grounded on the same
// map-of-slices-plus-mutex shape as the teacher's byte-range lock manager,
// generalized from lock conflict testing to queue position testing.
type Engine struct {
	cfg config.SchedulerConfig

	nextID atomic.Uint64

	mu    sync.Mutex
	lists map[listKey]*handleList

	readyCh chan struct{}

	mode           Mode
	scheduledCount atomic.Int64

	firedTimers []uint64

	timers *timerQueue

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngine builds a scheduler from cfg. Call Start to begin the background
// mode-gate recheck loop.
func NewEngine(cfg config.SchedulerConfig) *Engine {
	e := &Engine{
		cfg:     cfg,
		lists:   make(map[listKey]*handleList),
		readyCh: make(chan struct{}, 1),
		mode:    ModeNormal,
		stopCh:  make(chan struct{}),
	}
	e.timers = newTimerQueue(e.fireTimer)
	return e
}

// Start launches the background ticker that rechecks the admin mode gate
// whenever scheduledCount may have dropped to zero, grounded on the same
// ctx/ticker drain-loop shape as the teacher's flusher. It is not required
// for correctness (Release always rechecks the gate inline) but matches the
// original implementation's periodic sweep as a safety net against a missed
// wakeup.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.ModePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.checkModeTransition()
			}
		}
	}()
	e.timers.start()
}

// Stop halts the background loops. Safe to call once.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	e.timers.stop()
}

func (e *Engine) newTicketID() uint64 {
	return e.nextID.Add(1)
}

func (e *Engine) listFor(fsid uint32, h handle.Handle) *handleList {
	key := listKey{fsid, h}
	l, ok := e.lists[key]
	if !ok {
		l = &handleList{}
		e.lists[key] = l
	}
	return l
}

// Post admits req, per spec.md §4.4. PolicyBypass requests and requests
// joining a head-of-list run that is entirely I/O (the concurrent I/O
// relaxation) return Immediate without entering any FIFO wait. A write
// request arriving while the scheduler is in admin or admin-pending mode is
// rejected with a NotPermitted error unless req.AdminPermitted, per the mode
// gate invariant.
func (e *Engine) Post(req Request) (PostResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode != ModeNormal && req.Access == AccessWrite && !req.AdminPermitted {
		logger.Warn("sched: write rejected, scheduler not in normal mode", logger.SchedMode(e.mode.String()))
		return PostResult{}, pvfserr.NotPermittedf("sched: mode is %s, write rejected", e.mode)
	}

	id := e.newTicketID()
	t := &ticket{
		id:       id,
		op:       req.Op,
		fsid:     req.FSID,
		handle:   req.Handle,
		isIO:     isIOOp(req.Op),
		isWrite:  req.Access == AccessWrite,
		userData: req.UserData,
	}

	if req.Policy == PolicyBypass {
		// A bypass ticket never enters a handle list, so nothing ever calls
		// Release on it: it must not add to scheduledCount either, or the
		// mode gate (checkModeTransitionLocked) would wait forever for a
		// release that can never arrive.
		t.state = stateScheduled
		logger.Debug("sched: post bypassed FIFO", logger.SchedID(id), logger.OpCode(int(req.Op)))
		return PostResult{Outcome: Immediate, TicketID: id}, nil
	}

	l := e.listFor(req.FSID, req.Handle)
	if len(l.entries) == 0 || (t.isIO && l.allHeadIO()) {
		t.state = stateScheduled
		l.entries = append(l.entries, t)
		e.scheduledCount.Add(1)
		logger.Debug("sched: post admitted immediately", logger.SchedID(id), logger.OpCode(int(req.Op)))
		return PostResult{Outcome: Immediate, TicketID: id}, nil
	}

	t.state = stateQueued
	l.entries = append(l.entries, t)
	logger.Debug("sched: post queued", logger.SchedID(id), logger.OpCode(int(req.Op)))
	return PostResult{Outcome: Posted, TicketID: id}, nil
}

// Release reports ticketID's completion, removing it from its handle list
// and promoting the new head to ready-to-schedule if it was blocked only on
// ticketID, per §4.4's release. It returns the set of ticket ids newly ready
// to execute, which Post callers typically post_null a wakeup job for.
func (e *Engine) Release(ticketID uint64) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, t, wasHead := e.findTicket(ticketID)
	if t == nil {
		return nil, pvfserr.InvalidArgumentf("sched: unknown ticket %d", ticketID)
	}

	idx := indexOfTicket(l.entries, t)
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	if len(l.entries) == 0 {
		delete(e.lists, listKey{t.fsid, t.handle})
	}
	if t.state == stateScheduled {
		e.scheduledCount.Add(-1)
	}

	var promoted []uint64
	if wasHead {
		promoted = e.promoteHead(l)
	}
	logger.Debug("sched: release", logger.SchedID(ticketID), "promoted", len(promoted))

	e.checkModeTransitionLocked()
	if len(promoted) > 0 {
		e.wakeReady()
	}
	return promoted, nil
}

// Unpost withdraws a not-yet-scheduled ticket, per §4.4's unpost. It is an
// error to unpost a ticket that has already been scheduled: the caller must
// Release it instead.
func (e *Engine) Unpost(ticketID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, t, _ := e.findTicket(ticketID)
	if t == nil {
		return pvfserr.InvalidArgumentf("sched: unknown ticket %d", ticketID)
	}
	if t.state == stateScheduled {
		return pvfserr.InvalidArgumentf("sched: ticket %d already scheduled, use release", ticketID)
	}

	idx := indexOfTicket(l.entries, t)
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	if len(l.entries) == 0 {
		delete(e.lists, listKey{t.fsid, t.handle})
	}
	return nil
}

func (e *Engine) findTicket(ticketID uint64) (*handleList, *ticket, bool) {
	for _, l := range e.lists {
		for i, t := range l.entries {
			if t.id == ticketID {
				return l, t, i == 0
			}
		}
	}
	return nil, nil, false
}

// promoteHead advances newly-unblocked entries at the front of l from
// queued to ready-to-schedule: the new head unconditionally, plus any
// further I/O run immediately behind it once the head itself is I/O.
func (e *Engine) promoteHead(l *handleList) []uint64 {
	var promoted []uint64
	for i, t := range l.entries {
		if t.state != stateQueued {
			if !t.isIO {
				break
			}
			continue
		}
		if i == 0 || l.allHeadIOUpTo(i) {
			t.state = stateReadyToSchedule
			promoted = append(promoted, t.id)
			continue
		}
		break
	}
	return promoted
}

// allHeadIOUpTo reports whether every entry in [0, upTo) is I/O, used by
// promoteHead to decide whether a queued I/O entry immediately behind the
// new head may also be promoted in the same pass.
func (l *handleList) allHeadIOUpTo(upTo int) bool {
	for i := 0; i < upTo; i++ {
		if !l.entries[i].isIO {
			return false
		}
	}
	return true
}

// TestWorld drains up to max ready-to-schedule tickets (moving them to
// scheduled) and expired timers, per §4.4's testworld. It blocks up to
// timeout if nothing is yet ready.
func (e *Engine) TestWorld(ctx context.Context, timeout time.Duration, max int) ([]Event, error) {
	if out := e.drainReady(max); len(out) > 0 {
		return out, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-waitCtx.Done():
		return nil, nil
	case <-e.readyCh:
		return e.drainReady(max), nil
	}
}

func (e *Engine) drainReady(max int) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Event
	for _, id := range e.firedTimers {
		if max > 0 && len(out) >= max {
			e.firedTimers = e.firedTimers[len(out):]
			return out
		}
		out = append(out, Event{Kind: EventTimer, TicketID: id})
	}
	e.firedTimers = nil

	for _, l := range e.lists {
		for _, t := range l.entries {
			if max > 0 && len(out) >= max {
				return out
			}
			if t.state == stateReadyToSchedule {
				t.state = stateScheduled
				e.scheduledCount.Add(1)
				out = append(out, Event{Kind: EventReady, TicketID: t.id})
			}
		}
	}
	return out
}

func (e *Engine) wakeReady() {
	select {
	case e.readyCh <- struct{}{}:
	default:
	}
}

// PostTimer arms a one-shot timer that fires as a TestWorld event after
// d, per §4.4's post_timer.
func (e *Engine) PostTimer(d time.Duration) uint64 {
	id := e.newTicketID()
	e.timers.add(id, time.Now().Add(d))
	return id
}

func (e *Engine) fireTimer(id uint64) {
	e.mu.Lock()
	e.firedTimers = append(e.firedTimers, id)
	e.mu.Unlock()
	e.wakeReady()
}

// ChangeMode requests a transition to target. Normal is always immediate.
// Admin parks (entering ModeAdminPending) until scheduledCount reaches
// zero, at which point a Release- or ticker-driven recheck completes the
// transition to ModeAdmin.
func (e *Engine) ChangeMode(target Mode) Mode {
	e.mu.Lock()
	defer e.mu.Unlock()

	if target == ModeNormal {
		e.mode = ModeNormal
		logger.Debug("sched: mode set to normal")
		return e.mode
	}

	if e.scheduledCount.Load() == 0 {
		e.mode = ModeAdmin
		logger.Debug("sched: mode set to admin immediately, nothing scheduled")
	} else {
		e.mode = ModeAdminPending
		logger.Debug("sched: mode set to admin-pending", "scheduled_count", e.scheduledCount.Load())
	}
	return e.mode
}

func (e *Engine) checkModeTransition() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkModeTransitionLocked()
}

func (e *Engine) checkModeTransitionLocked() {
	if e.mode == ModeAdminPending && e.scheduledCount.Load() == 0 {
		e.mode = ModeAdmin
		logger.Debug("sched: admin-pending promoted to admin, scheduled count reached zero")
	}
}

// CurrentMode reports the scheduler's current mode.
func (e *Engine) CurrentMode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// ScheduledCount reports the number of tickets currently in the scheduled
// state, the admin-mode-gate's convoy-avoidance counter.
func (e *Engine) ScheduledCount() int64 {
	return e.scheduledCount.Load()
}

// EventKind classifies a TestWorld event.
type EventKind int

const (
	EventReady EventKind = iota
	EventTimer
)

// Event is one item returned by TestWorld.
type Event struct {
	Kind     EventKind
	TicketID uint64
}
