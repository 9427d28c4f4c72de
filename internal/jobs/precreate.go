package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/logger"
	"github.com/marmos91/pvfsgo/internal/pvfserr"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
)

// Cursor sentinels for PrecreatePoolIterateHandles, packing a storage
// position (low 32 bits) and a pool index within the fs's known server list
// (high 32 bits), per §4.3.6.
const (
	PrecreateCursorStart uint64 = 0
	PrecreateCursorEnd   uint64 = 0xFFFFFFFFFFFFFFFF
)

type precreatePoolKey struct {
	fsid   uint32
	server pvfsid.SID
}

type precreateWaiter struct {
	job *Job
}

type serverPool struct {
	mu      sync.Mutex
	handles []handle.Handle
	waiters []*precreateWaiter
}

// precreatePool implements §4.3.6's precreate-pool handle management: a
// per-fs rotating server cursor (original_source's precreate_pool_get_handles
// round robin) and FIFO wait-list parking (append-on-park,
// pop-front-on-fill-signal), preserved exactly.
type precreatePool struct {
	cfg config.PrecreatePoolConfig

	mu      sync.Mutex
	pools   map[precreatePoolKey]*serverPool
	servers map[uint32][]pvfsid.SID // known servers per fs, registration order
	cursor  map[uint32]int          // next round-robin index per fs

	levelGroup singleflight.Group
}

func newPrecreatePool(cfg config.PrecreatePoolConfig) *precreatePool {
	return &precreatePool{
		cfg:     cfg,
		pools:   make(map[precreatePoolKey]*serverPool),
		servers: make(map[uint32][]pvfsid.SID),
		cursor:  make(map[uint32]int),
	}
}

func (p *precreatePool) registerServer(fsid uint32, server pvfsid.SID) *serverPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := precreatePoolKey{fsid, server}
	sp, ok := p.pools[key]
	if ok {
		return sp
	}
	sp = &serverPool{}
	p.pools[key] = sp
	for _, s := range p.servers[fsid] {
		if s == server {
			return sp
		}
	}
	p.servers[fsid] = append(p.servers[fsid], server)
	return sp
}

func (p *precreatePool) nextServer(fsid uint32) (pvfsid.SID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	known := p.servers[fsid]
	if len(known) == 0 {
		return pvfsid.SID{}, false
	}
	idx := p.cursor[fsid] % len(known)
	p.cursor[fsid] = idx + 1
	return known[idx], true
}

func (p *precreatePool) knownServers(fsid uint32) []pvfsid.SID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pvfsid.SID(nil), p.servers[fsid]...)
}

// PrecreatePoolFill writes a batch of handles into fsid's pool for server
// (§4.3.6's pool_fill), then drains the pool's FIFO wait list, completing
// one parked consumer per newly available handle in arrival order. The
// batch is held in memory only; it does not touch Engine.storage, so the
// last-batch store sync §4.3.6 describes is not performed here.
func (e *Engine) PrecreatePoolFill(fsid uint32, server pvfsid.SID, handles []handle.Handle) {
	sp := e.precreate.registerServer(fsid, server)

	sp.mu.Lock()
	sp.handles = append(sp.handles, handles...)
	var toWake []*precreateWaiter
	for len(sp.handles) > 0 && len(sp.waiters) > 0 {
		h := sp.handles[0]
		sp.handles = sp.handles[1:]
		w := sp.waiters[0]
		sp.waiters = sp.waiters[1:]
		w.job.Precreate = &PrecreateStatus{Handle: h}
		toWake = append(toWake, w)
	}
	sp.mu.Unlock()

	for _, w := range toWake {
		e.complete(w.job)
	}
}

// PrecreatePoolGetHandles pulls one handle from each of count server pools
// for fsid, per §4.3.6's pool_get_handles. If servers is non-empty its
// entries select which pool each slot draws from; otherwise slots are
// filled by per-fs round robin. A slot whose pool has a handle on hand
// returns Immediate with the handle in PostResult.Value; otherwise the slot
// parks its own job on that pool's wait list and returns Posted, testable
// via TestSome.
func (e *Engine) PrecreatePoolGetHandles(contextID int, fsid uint32, count int, servers []pvfsid.SID, userTag uint64, userPtr any) ([]PostResult, error) {
	if _, err := e.contextOrErr(contextID); err != nil {
		return nil, err
	}

	results := make([]PostResult, count)
	for i := 0; i < count; i++ {
		var server pvfsid.SID
		if i < len(servers) {
			server = servers[i]
		} else {
			s, ok := e.precreate.nextServer(fsid)
			if !ok {
				logger.Warn("precreate-pool getHandles: no known servers", logger.FSID(fsid))
				results[i] = failed(pvfserr.InvalidArgumentf("jobs: no known precreate-pool servers for fs %d", fsid))
				continue
			}
			server = s
		}
		results[i] = e.getOnePrecreatedHandle(contextID, fsid, server, userTag, userPtr)
	}
	return results, nil
}

func (e *Engine) getOnePrecreatedHandle(contextID int, fsid uint32, server pvfsid.SID, userTag uint64, userPtr any) PostResult {
	sp := e.precreate.registerServer(fsid, server)

	sp.mu.Lock()
	if len(sp.handles) > 0 {
		h := sp.handles[0]
		sp.handles = sp.handles[1:]
		sp.mu.Unlock()
		return immediateValue(h)
	}

	id := e.newID()
	j := newJob(id, KindPrecreatePool, contextID, userTag, userPtr, nil)
	sp.waiters = append(sp.waiters, &precreateWaiter{job: j})
	sp.mu.Unlock()

	e.register(j)
	return posted(id)
}

// PrecreatePoolCheckLevel reports whether server's pool for fsid is below
// threshold, per §4.3.6's pool_check_level. If not, it parks until
// consumers (PrecreatePoolGetHandles) drain the pool below threshold or ctx
// expires.
// Concurrent callers checking the same (fsid, server, threshold) share one
// park-and-poll execution via singleflight rather than each independently
// re-checking the pool.
func (e *Engine) PrecreatePoolCheckLevel(ctx context.Context, fsid uint32, server pvfsid.SID, threshold int) (bool, error) {
	sp := e.precreate.registerServer(fsid, server)

	if belowThreshold(sp, threshold) {
		return true, nil
	}

	key := fmt.Sprintf("%d:%s:%d", fsid, server, threshold)
	ch := e.precreate.levelGroup.DoChan(key, func() (any, error) {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			if belowThreshold(sp, threshold) {
				return true, nil
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-ticker.C:
			}
		}
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func belowThreshold(sp *serverPool, threshold int) bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.handles) < threshold
}

// PrecreatePoolFillSignalError wakes every consumer parked on server's pool
// for fsid with err, per §4.3.6's pool_fill_signal_error.
func (e *Engine) PrecreatePoolFillSignalError(fsid uint32, server pvfsid.SID, err error) {
	sp := e.precreate.registerServer(fsid, server)

	sp.mu.Lock()
	waiters := sp.waiters
	sp.waiters = nil
	sp.mu.Unlock()

	if len(waiters) > 0 {
		logger.Warn("precreate-pool fill failed, waking parked waiters with error",
			logger.FSID(fsid), "waiters", len(waiters), logger.Err(err))
	}
	for _, w := range waiters {
		w.job.Precreate = &PrecreateStatus{Err: err}
		e.complete(w.job)
	}
}

// PrecreatePoolIterateHandles streams pool members for fsid starting at
// cursor, per §4.3.6's pool_iterate_handles: the cursor packs a storage
// position in its low 32 bits and a pool index (within fsid's known server
// list) in its high 32 bits.
func (e *Engine) PrecreatePoolIterateHandles(fsid uint32, cursor uint64, max int) ([]handle.Handle, uint64, error) {
	poolIdx := uint32(cursor >> 32)
	pos := uint32(cursor)

	servers := e.precreate.knownServers(fsid)
	if int(poolIdx) >= len(servers) {
		return nil, PrecreateCursorEnd, nil
	}

	var out []handle.Handle
	for int(poolIdx) < len(servers) && len(out) < max {
		sp := e.precreate.registerServer(fsid, servers[poolIdx])
		sp.mu.Lock()
		avail := append([]handle.Handle(nil), sp.handles...)
		sp.mu.Unlock()

		for int(pos) < len(avail) && len(out) < max {
			out = append(out, avail[pos])
			pos++
		}
		if int(pos) >= len(avail) {
			poolIdx++
			pos = 0
		} else {
			break
		}
	}

	if int(poolIdx) >= len(servers) {
		return out, PrecreateCursorEnd, nil
	}
	return out, uint64(poolIdx)<<32 | uint64(pos), nil
}
