package jobs

import (
	"time"

	"github.com/marmos91/pvfsgo/internal/logger"
	"github.com/marmos91/pvfsgo/internal/pvfserr"
)

// PostNetworkSend posts a send to the network transport. A zero timeout
// falls back to the engine's configured default.
func (e *Engine) PostNetworkSend(contextID int, addr string, buf []byte, timeout time.Duration, userTag uint64, userPtr any) PostResult {
	return e.postNetwork(KindNetworkSend, contextID, addr, buf, timeout, userTag, userPtr)
}

// PostNetworkRecv posts a receive to the network transport.
func (e *Engine) PostNetworkRecv(contextID int, addr string, buf []byte, timeout time.Duration, userTag uint64, userPtr any) PostResult {
	return e.postNetwork(KindNetworkRecv, contextID, addr, buf, timeout, userTag, userPtr)
}

func (e *Engine) postNetwork(kind Kind, contextID int, addr string, buf []byte, timeout time.Duration, userTag uint64, userPtr any) PostResult {
	if _, err := e.contextOrErr(contextID); err != nil {
		return failed(err)
	}
	if timeout == 0 {
		timeout = e.cfg.Jobs.DefaultTimeout
	}

	id := e.newID()
	j := newJob(id, kind, contextID, userTag, userPtr, func() error { return e.network.Cancel(id) })
	e.register(j)

	var postErr error
	if kind == KindNetworkSend {
		postErr = e.network.PostSend(id, addr, buf)
	} else {
		postErr = e.network.PostRecv(id, addr, buf)
	}
	if postErr != nil {
		e.forget(id)
		logger.Warn("network job post failed", logger.JobID(id), logger.JobKind(kind.String()), logger.Err(postErr))
		return failed(pvfserr.Transientf("jobs: post %s failed: %v", kind, postErr))
	}

	if timeout > 0 {
		e.timeouts.add(id, kind, time.Now().Add(timeout))
	}
	logger.Debug("network job posted", logger.JobID(id), logger.JobKind(kind.String()), logger.ContextID(contextID))
	return posted(id)
}

// ResetTimeout resets the timeout deadline for a posted network or flow job,
// per §4.3.3: implemented as an explicit remove-then-reinsert under the
// timeout manager's own lock rather than an in-place deadline mutation.
func (e *Engine) ResetTimeout(id uint64, d time.Duration) error {
	j, ok := e.lookup(id)
	if !ok {
		return pvfserr.InvalidArgumentf("jobs: unknown job %d", id)
	}
	if j.Kind != KindNetworkSend && j.Kind != KindNetworkRecv && j.Kind != KindFlow {
		return pvfserr.InvalidArgumentf("jobs: job %d is not timeout-managed", id)
	}
	e.timeouts.reset(id, j.Kind, time.Now().Add(d))
	logger.Debug("network job timeout reset", logger.JobID(id))
	return nil
}
