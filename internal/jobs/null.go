package jobs

import "github.com/marmos91/pvfsgo/internal/logger"

// PostNull immediately places a completed descriptor on ctxID's queue
// carrying err as its completion status, per §4.3.5. Used to drive
// asynchronous state-machine transitions without any external work.
func (e *Engine) PostNull(contextID int, err error, userTag uint64, userPtr any) (uint64, error) {
	if _, cerr := e.contextOrErr(contextID); cerr != nil {
		return 0, cerr
	}

	id := e.newID()
	j := newJob(id, KindNull, contextID, userTag, userPtr, nil)
	j.Null = &NullStatus{Err: err}
	e.register(j)
	e.complete(j)
	logger.Debug("null job posted", logger.JobID(id), logger.ContextID(contextID))
	return id, nil
}
