package jobs

import (
	"sync"
	"time"
)

type timeoutEntry struct {
	jobID    uint64
	kind     Kind
	deadline time.Time
}

// timeoutManager tracks every posted network or flow job with a deadline,
// sorted by deadline, and cancels through the owning shim on expiry. Reset
// is an explicit remove-then-reinsert (§4.3.3 / job_time_mgr), never an
// in-place deadline mutation.
type timeoutManager struct {
	cancel func(jobID uint64, kind Kind)

	mu      sync.Mutex
	entries []*timeoutEntry

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newTimeoutManager(cancel func(jobID uint64, kind Kind)) *timeoutManager {
	return &timeoutManager{
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (tm *timeoutManager) start() {
	go tm.run()
}

func (tm *timeoutManager) stopManager() {
	close(tm.stop)
	<-tm.done
}

func (tm *timeoutManager) signalWake() {
	select {
	case tm.wake <- struct{}{}:
	default:
	}
}

// add inserts a new timeout entry in deadline order.
func (tm *timeoutManager) add(jobID uint64, kind Kind, deadline time.Time) {
	tm.mu.Lock()
	i := 0
	for i < len(tm.entries) && !tm.entries[i].deadline.After(deadline) {
		i++
	}
	entry := &timeoutEntry{jobID: jobID, kind: kind, deadline: deadline}
	tm.entries = append(tm.entries, nil)
	copy(tm.entries[i+1:], tm.entries[i:])
	tm.entries[i] = entry
	tm.mu.Unlock()
	tm.signalWake()
}

// remove drops jobID's entry, if any. Returns whether an entry was removed.
func (tm *timeoutManager) remove(jobID uint64) bool {
	tm.mu.Lock()
	found := false
	for i, e := range tm.entries {
		if e.jobID == jobID {
			tm.entries = append(tm.entries[:i], tm.entries[i+1:]...)
			found = true
			break
		}
	}
	tm.mu.Unlock()
	if found {
		tm.signalWake()
	}
	return found
}

// reset replaces jobID's deadline by removing and reinserting it.
func (tm *timeoutManager) reset(jobID uint64, kind Kind, deadline time.Time) {
	tm.remove(jobID)
	tm.add(jobID, kind, deadline)
}

func (tm *timeoutManager) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		tm.mu.Lock()
		var wait time.Duration
		if len(tm.entries) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(tm.entries[0].deadline)
			if wait < 0 {
				wait = 0
			}
		}
		tm.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-tm.stop:
			close(tm.done)
			return
		case <-tm.wake:
			continue
		case <-timer.C:
			tm.expireDue()
		}
	}
}

func (tm *timeoutManager) expireDue() {
	now := time.Now()
	tm.mu.Lock()
	i := 0
	for i < len(tm.entries) && !tm.entries[i].deadline.After(now) {
		i++
	}
	due := tm.entries[:i]
	tm.entries = tm.entries[i:]
	tm.mu.Unlock()

	for _, e := range due {
		tm.cancel(e.jobID, e.kind)
	}
}
