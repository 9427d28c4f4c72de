package jobs

import (
	"time"

	"github.com/marmos91/pvfsgo/internal/logger"
	"github.com/marmos91/pvfsgo/internal/pvfserr"
)

// PostFlow posts a flow descriptor to the flow engine. A zero timeout falls
// back to the engine's configured default; completion may arrive from
// either the flow thread or the cancel thread (threadmgr.FlowCompletion's
// MutexHeld distinguishes the two, though the job engine's own locking does
// not depend on which).
func (e *Engine) PostFlow(contextID int, desc any, timeout time.Duration, userTag uint64, userPtr any) PostResult {
	if _, err := e.contextOrErr(contextID); err != nil {
		return failed(err)
	}
	if timeout == 0 {
		timeout = e.cfg.Jobs.DefaultTimeout
	}

	id := e.newID()
	j := newJob(id, KindFlow, contextID, userTag, userPtr, func() error { return e.flow.Cancel(id) })
	e.register(j)

	if err := e.flow.Post(id, desc); err != nil {
		e.forget(id)
		logger.Warn("flow job post failed", logger.JobID(id), logger.Err(err))
		return failed(pvfserr.Transientf("jobs: post flow failed: %v", err))
	}

	if timeout > 0 {
		e.timeouts.add(id, KindFlow, time.Now().Add(timeout))
	}
	logger.Debug("flow job posted", logger.JobID(id), logger.ContextID(contextID))
	return posted(id)
}
