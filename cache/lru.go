package cache

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/skingeo-core/common"
	lru "github.com/hashicorp/golang-lru"
)

// Builder constructs the asset named by key. It runs on a worker-pool goroutine, outside
// any cache mutex (§4.6 "kick off the asynchronous construction outside the lock").
type Builder[T any] func(key string) (T, error)

// LRUHeap is the §4.6 "Typed LRU heap": a keyed store of Future[T] values with bounded
// capacity and strict LRU eviction. Concurrent Get calls for the same key return the same
// Future. Grounded on engine/loader/loader.go's sync.RWMutex + map[string]model.Model cache,
// generalised from "unbounded, never evicts" to "bounded, strict LRU" by delegating
// eviction bookkeeping to github.com/hashicorp/golang-lru rather than hand-rolling a
// doubly-linked list.
type LRUHeap[T any] struct {
	mu      sync.Mutex
	cache   *lru.Cache
	pool    worker.DynamicWorkerPool
	build   Builder[T]
	taskIDs atomic.Uint64
	log     *common.Logger
}

// NewLRUHeap creates a heap bounded to capacity entries, dispatching construction work onto
// pool. build is called once per distinct key that isn't already cached and valid.
func NewLRUHeap[T any](capacity int, pool worker.DynamicWorkerPool, build Builder[T]) *LRUHeap[T] {
	h := &LRUHeap[T]{pool: pool, build: build, log: common.NewLogger("oxy-core/cache: ")}
	c, err := lru.NewWithEvict(capacity, func(key, _ any) {
		h.log.Debug("evicting lru entry %v", key)
	})
	if err != nil {
		// capacity <= 0 is a caller bug, not a runtime condition; golang-lru only
		// returns an error in that case.
		c, _ = lru.New(1)
	}
	h.cache = c
	return h
}

// Get returns the Future for key, constructing and caching a new one if key is absent or
// its cached Future has transitioned to Invalid. The cache mutex is held only across the
// map lookup/insert (§5 "single mutex per cache, held only across map lookup/insert,
// released before asynchronous work").
func (h *LRUHeap[T]) Get(key string) *Future[T] {
	h.mu.Lock()
	if v, ok := h.cache.Get(key); ok {
		if fut := v.(*Future[T]); fut.State() != StateInvalid {
			h.mu.Unlock()
			return fut
		}
	}

	fut := NewFuture[T]()
	h.cache.Add(key, fut)
	h.mu.Unlock()

	id := h.taskIDs.Add(1)
	h.pool.SubmitTask(worker.Task{
		ID: int(id),
		Do: func() (any, error) {
			v, err := h.build(key)
			if err != nil {
				fut.fail(err)
			} else {
				fut.resolve(v)
			}
			return nil, nil
		},
	})

	return fut
}

// Len returns the number of entries currently cached (Pending, Ready, or Invalid).
func (h *LRUHeap[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache.Len()
}

// Invalidate removes key from the cache outright, so the next Get constructs afresh. Used
// by callers that learn an asset changed on disk out of band (no file-watching is built
// into this core, per §1's "no streaming/background LOD swap-in" non-goal).
func (h *LRUHeap[T]) Invalidate(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache.Remove(key)
}
