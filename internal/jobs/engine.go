package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pvfsconfig "github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/logger"
	"github.com/marmos91/pvfsgo/internal/pvfserr"
	"github.com/marmos91/pvfsgo/internal/threadmgr"
)

// Engine is the process-wide job engine: the single owner of the job
// descriptor table, the context table, the timeout manager and the
// precreate-pool directory. It implements threadmgr.CompletionSink, so a
// threadmgr.Manager can drive it directly.
type Engine struct {
	cfg pvfsconfig.Config

	network NetworkTransport
	storage StorageBackend
	flow    FlowEngine

	metrics *Metrics

	nextID atomic.Uint64

	mu       sync.Mutex
	jobs     map[uint64]*Job
	contexts map[int]*jobContext
	nextCtx  int

	timeouts  *timeoutManager
	precreate *precreatePool
}

// NewEngine builds a job engine wired to the given collaborators. metrics
// may be nil, which disables instrumentation.
func NewEngine(cfg pvfsconfig.Config, network NetworkTransport, storage StorageBackend, flow FlowEngine, metrics *Metrics) *Engine {
	e := &Engine{
		cfg:      cfg,
		network:  network,
		storage:  storage,
		flow:     flow,
		metrics:  metrics,
		jobs:     make(map[uint64]*Job),
		contexts: make(map[int]*jobContext),
	}
	e.timeouts = newTimeoutManager(e.cancelExpired)
	e.timeouts.start()
	e.precreate = newPrecreatePool(cfg.PrecreatePool)
	return e
}

// Stop tears down the engine's background timeout sweep. Safe to call once.
func (e *Engine) Stop() {
	e.timeouts.stopManager()
}

// OpenContext allocates a new completion-queue slot, up to JobConfig.MaxContexts.
func (e *Engine) OpenContext() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.contexts) >= e.cfg.Jobs.MaxContexts {
		logger.Warn("job context table full", "max_contexts", e.cfg.Jobs.MaxContexts)
		return 0, pvfserr.Busyf("jobs: context table full (max %d)", e.cfg.Jobs.MaxContexts)
	}
	id := e.nextCtx
	e.nextCtx++
	e.contexts[id] = newContext(id)
	logger.Debug("job context opened", logger.ContextID(id))
	return id, nil
}

// CloseContext drains and frees ctxID's queue.
func (e *Engine) CloseContext(ctxID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.contexts[ctxID]; !ok {
		return pvfserr.InvalidArgumentf("jobs: unknown context %d", ctxID)
	}
	delete(e.contexts, ctxID)
	return nil
}

func (e *Engine) contextOrErr(ctxID int) (*jobContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contexts[ctxID]
	if !ok {
		return nil, pvfserr.InvalidArgumentf("jobs: unknown context %d", ctxID)
	}
	return c, nil
}

func (e *Engine) register(j *Job) {
	e.mu.Lock()
	e.jobs[j.ID] = j
	e.mu.Unlock()
}

func (e *Engine) lookup(id uint64) (*Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	return j, ok
}

func (e *Engine) forget(id uint64) {
	e.mu.Lock()
	delete(e.jobs, id)
	e.mu.Unlock()
}

func (e *Engine) newID() uint64 {
	return e.nextID.Add(1)
}

// complete marks j completed, delivers it onto its context queue, and
// leaves it addressable by id until a Test* call retires it. Idempotent:
// a completion racing a second delivery for the same id is a no-op.
func (e *Engine) complete(j *Job) {
	e.mu.Lock()
	if j.completed {
		e.mu.Unlock()
		return
	}
	j.completed = true
	ctx := e.contexts[j.ContextID]
	e.mu.Unlock()

	close(j.done)
	if ctx != nil {
		ctx.push(j)
		if e.metrics != nil {
			e.metrics.SetContextDepth(j.ContextID, ctx.len())
		}
	}
}

// retire removes j from the job table and its context queue. Called once a
// Test*/TestSome/TestContext call has handed j back to its caller.
func (e *Engine) retire(j *Job) {
	e.mu.Lock()
	delete(e.jobs, j.ID)
	ctx := e.contexts[j.ContextID]
	e.mu.Unlock()
	if ctx != nil {
		ctx.remove(j.ID)
	}
}

func (e *Engine) retireAll(js []*Job) {
	e.mu.Lock()
	for _, j := range js {
		delete(e.jobs, j.ID)
	}
	e.mu.Unlock()
}

// Test polls a single job, blocking up to timeout.
func (e *Engine) Test(ctx context.Context, id uint64, timeout time.Duration) (*Job, error) {
	j, ok := e.lookup(id)
	if !ok {
		return nil, pvfserr.InvalidArgumentf("jobs: unknown or already-retired job %d", id)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-j.done:
	case <-waitCtx.Done():
		return nil, pvfserr.Timeoutf("jobs: test(%d) timed out", id)
	}
	e.retire(j)
	return j, nil
}

// TestSome polls every listed job and returns all-or-none: it never reports
// completion until every id has completed internally (invariant 6).
func (e *Engine) TestSome(ctx context.Context, ids []uint64, timeout time.Duration) ([]*Job, error) {
	batch := make([]*Job, len(ids))
	for i, id := range ids {
		j, ok := e.lookup(id)
		if !ok {
			return nil, pvfserr.InvalidArgumentf("jobs: unknown or already-retired job %d", id)
		}
		batch[i] = j
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for _, j := range batch {
		select {
		case <-j.done:
		case <-waitCtx.Done():
			return nil, pvfserr.Timeoutf("jobs: testsome timed out waiting for job %d", j.ID)
		}
	}

	e.retireAll(batch)
	for _, j := range batch {
		e.removeFromContext(j)
	}
	return batch, nil
}

func (e *Engine) removeFromContext(j *Job) {
	e.mu.Lock()
	ctx := e.contexts[j.ContextID]
	e.mu.Unlock()
	if ctx != nil {
		ctx.remove(j.ID)
	}
}

// TestContext returns any completed jobs from ctxID, up to max (0 meaning
// unbounded), blocking up to timeout if none are yet ready. A timeout with
// nothing ready returns a nil slice and no error: the caller is expected to
// retry, exactly as the original testworld pump does.
func (e *Engine) TestContext(ctx context.Context, ctxID int, timeout time.Duration, max int) ([]*Job, error) {
	c, err := e.contextOrErr(ctxID)
	if err != nil {
		return nil, err
	}
	if out := c.popUpTo(max); len(out) > 0 {
		e.retireAll(out)
		return out, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		select {
		case <-waitCtx.Done():
			return nil, nil
		case <-c.notify:
			if out := c.popUpTo(max); len(out) > 0 {
				e.retireAll(out)
				return out, nil
			}
		}
	}
}

// Cancel requests cancellation of a posted job. It is idempotent and safe
// against a concurrent completion: if the job already completed or was
// never known, Cancel is a no-op. Otherwise it delegates to the owning
// collaborator's cancel-by-id; completion still arrives through the normal
// callback path.
func (e *Engine) Cancel(id uint64) error {
	e.mu.Lock()
	j, ok := e.jobs[id]
	if !ok || j.completed {
		e.mu.Unlock()
		return nil
	}
	cancelFn := j.cancelFn
	j.cancelFn = nil
	e.mu.Unlock()

	if cancelFn == nil {
		return nil
	}
	if err := cancelFn(); err != nil {
		e.mu.Lock()
		j.cancelFn = cancelFn
		e.mu.Unlock()
		logger.Warn("job cancel failed", logger.JobID(id), logger.Err(err))
		return err
	}
	return nil
}

func (e *Engine) cancelExpired(jobID uint64, _ Kind) {
	_ = e.Cancel(jobID)
}

var _ threadmgr.CompletionSink = (*Engine)(nil)

// DeliverNetwork implements threadmgr.CompletionSink.
func (e *Engine) DeliverNetwork(c threadmgr.NetworkCompletion) {
	j, ok := e.lookup(c.JobID)
	if !ok {
		return
	}
	e.timeouts.remove(c.JobID)
	j.Network = &NetworkStatus{ActualSize: c.ActualSize, Err: c.Err}
	if e.metrics != nil {
		e.metrics.ObserveCompletion(j.Kind, c.Err)
	}
	e.complete(j)
}

// DeliverStorage implements threadmgr.CompletionSink.
func (e *Engine) DeliverStorage(c threadmgr.StorageCompletion) {
	j, ok := e.lookup(c.JobID)
	if !ok {
		return
	}
	j.Storage = &StorageStatus{
		Err:          c.Err,
		VTag:         c.VTag,
		Handle:       c.Handle,
		Position:     c.Position,
		Count:        c.Count,
		CollectionID: c.CollectionID,
	}
	if e.metrics != nil {
		e.metrics.ObserveCompletion(j.Kind, c.Err)
	}
	e.complete(j)
}

// DeliverFlow implements threadmgr.CompletionSink.
func (e *Engine) DeliverFlow(c threadmgr.FlowCompletion) {
	j, ok := e.lookup(c.JobID)
	if !ok {
		return
	}
	e.timeouts.remove(c.JobID)
	j.Flow = &FlowStatus{Err: c.Err, BytesTransferred: c.BytesTransferred}
	if e.metrics != nil {
		e.metrics.ObserveCompletion(j.Kind, c.Err)
	}
	e.complete(j)
}
