package cache

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/skingeo-core/renderer"
	"github.com/Carmen-Shannon/skingeo-core/scaffold"
)

// ModelKey identifies one renderer composed from a model scaffold and a material scaffold,
// both named by filename (§4.6 "a higher-level cache keyed by (model, material)").
type ModelKey struct {
	Model    string
	Material string
}

// RendererHandle is the ready value of a ModelCache Future: the built renderer plus the
// reload id it was built at (§1C "incrementing a monotonically growing reload id whenever a
// cached entry was invalidated and replaced").
type RendererHandle struct {
	Renderer *renderer.SimpleModelRenderer
	ReloadID uint64
}

// RendererFactory builds a SimpleModelRenderer from a loaded model scaffold and material
// scaffold. Supplied by the caller because it closes over GPU-backend/accelerator-pool
// state the cache package has no business owning (§1's GPU abstraction stays an external
// collaborator).
type RendererFactory func(root *scaffold.Root, material *renderer.Material) (*renderer.SimpleModelRenderer, error)

// sourcePair remembers which sub-asset Futures a ModelCache entry was last built from, so a
// later Get can detect that either was invalidated and replaced underneath it.
type sourcePair struct {
	scaffoldFuture *Future[*scaffold.Root]
	materialFuture *Future[*renderer.Material]
}

// ModelCache is the §4.6 "Model-cache composition": it pulls a scaffold and a material from
// two typed LRUHeaps and composes them into a renderer Future, bumping ReloadID whenever the
// composition is rebuilt from a freshly (re)loaded sub-asset.
type ModelCache struct {
	scaffolds *LRUHeap[*scaffold.Root]
	materials *LRUHeap[*renderer.Material]
	build     RendererFactory
	pool      worker.DynamicWorkerPool

	mu       sync.Mutex
	entries  map[ModelKey]*Future[*RendererHandle]
	sources  map[ModelKey]sourcePair
	reloadID atomic.Uint64
	taskIDs  atomic.Uint64
}

// NewModelCache wires a ModelCache over the given scaffold/material heaps, dispatching its
// own composition work onto pool.
func NewModelCache(scaffolds *LRUHeap[*scaffold.Root], materials *LRUHeap[*renderer.Material], pool worker.DynamicWorkerPool, build RendererFactory) *ModelCache {
	return &ModelCache{
		scaffolds: scaffolds,
		materials: materials,
		pool:      pool,
		build:     build,
		entries:   make(map[ModelKey]*Future[*RendererHandle]),
		sources:   make(map[ModelKey]sourcePair),
	}
}

// Get returns the Future for key, pulling (or kicking off) its scaffold and material
// sub-assets and composing a renderer once both resolve. If a cached entry exists but was
// built from sub-asset Futures that have since been replaced (the heap invalidated and
// re-fetched them), a fresh composition is kicked off and ReloadID is bumped.
func (c *ModelCache) Get(key ModelKey) *Future[*RendererHandle] {
	scaffoldFut := c.scaffolds.Get(key.Model)
	materialFut := c.materials.Get(key.Material)

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		prev := c.sources[key]
		stillCurrent := prev.scaffoldFuture == scaffoldFut && prev.materialFuture == materialFut
		if stillCurrent && existing.State() != StateInvalid {
			c.mu.Unlock()
			return existing
		}
	}

	fut := NewFuture[*RendererHandle]()
	c.entries[key] = fut
	c.sources[key] = sourcePair{scaffoldFuture: scaffoldFut, materialFuture: materialFut}
	c.mu.Unlock()

	id := c.taskIDs.Add(1)
	c.pool.SubmitTask(worker.Task{
		ID: int(id),
		Do: func() (any, error) {
			root, err := scaffoldFut.Actualize()
			if err != nil {
				fut.fail(err)
				return nil, nil
			}
			mat, err := materialFut.Actualize()
			if err != nil {
				fut.fail(err)
				return nil, nil
			}

			r, err := c.build(root, mat)
			if err != nil {
				fut.fail(err)
				return nil, nil
			}

			fut.resolve(&RendererHandle{Renderer: r, ReloadID: c.reloadID.Add(1)})
			return nil, nil
		},
	})

	return fut
}
