package jobs

import (
	"github.com/marmos91/pvfsgo/internal/logger"
	"github.com/marmos91/pvfsgo/internal/pvfserr"
)

// PostStorage posts an arbitrary storage-backend operation. The operation's
// concrete semantics (dataspace create/remove/getattr/setattr/verify/
// iterate, keyval read/write/iterate/remove, collection open, extended
// attributes) are Trove's concern, not the job engine's: desc is opaque to
// the engine and interpreted entirely by the storage collaborator, which
// reports back through threadmgr.StorageCompletion.
func (e *Engine) PostStorage(contextID int, desc any, userTag uint64, userPtr any) PostResult {
	if _, err := e.contextOrErr(contextID); err != nil {
		return failed(err)
	}

	id := e.newID()
	j := newJob(id, KindStorage, contextID, userTag, userPtr, func() error { return e.storage.Cancel(id) })
	e.register(j)

	if err := e.storage.Post(id, desc); err != nil {
		e.forget(id)
		logger.Warn("storage job post failed", logger.JobID(id), logger.Err(err))
		return failed(pvfserr.Transientf("jobs: post storage op failed: %v", err))
	}
	logger.Debug("storage job posted", logger.JobID(id), logger.ContextID(contextID))
	return posted(id)
}
