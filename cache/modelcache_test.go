package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/skingeo-core/renderer"
	"github.com/Carmen-Shannon/skingeo-core/scaffold"
)

func TestModelCacheComposesFromSubAssets(t *testing.T) {
	pool := newTestPool()
	scaffolds := NewLRUHeap(4, pool, func(key string) (*scaffold.Root, error) {
		return &scaffold.Root{}, nil
	})
	materials := NewLRUHeap(4, pool, func(key string) (*renderer.Material, error) {
		return &renderer.Material{GUID: key}, nil
	})

	var built int
	mc := NewModelCache(scaffolds, materials, pool, func(root *scaffold.Root, mat *renderer.Material) (*renderer.SimpleModelRenderer, error) {
		built++
		return &renderer.SimpleModelRenderer{}, nil
	})

	key := ModelKey{Model: "hero.scaffold", Material: "hero.mat"}
	f1 := mc.Get(key)
	handle1, err := f1.Actualize()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if handle1.Renderer == nil {
		t.Fatalf("expected a built renderer")
	}
	if handle1.ReloadID != 1 {
		t.Fatalf("expected first build to carry reload id 1, got %d", handle1.ReloadID)
	}

	f2 := mc.Get(key)
	if f1 != f2 {
		t.Fatalf("expected repeated Get with unchanged sub-assets to return the same future")
	}
	if built != 1 {
		t.Fatalf("expected exactly one composition, got %d", built)
	}
}

func TestModelCacheRebuildsAfterSourceInvalidation(t *testing.T) {
	pool := newTestPool()
	scaffolds := NewLRUHeap(4, pool, func(key string) (*scaffold.Root, error) {
		return &scaffold.Root{}, nil
	})
	materials := NewLRUHeap(4, pool, func(key string) (*renderer.Material, error) {
		return &renderer.Material{GUID: key}, nil
	})

	mc := NewModelCache(scaffolds, materials, pool, func(root *scaffold.Root, mat *renderer.Material) (*renderer.SimpleModelRenderer, error) {
		return &renderer.SimpleModelRenderer{}, nil
	})

	key := ModelKey{Model: "hero.scaffold", Material: "hero.mat"}
	f1 := mc.Get(key)
	handle1, err := f1.Actualize()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	scaffolds.Invalidate(key.Model)

	f2 := mc.Get(key)
	if f1 == f2 {
		t.Fatalf("expected a new composition after the scaffold sub-asset was invalidated")
	}
	handle2, err := f2.Actualize()
	if err != nil {
		t.Fatalf("Get (after invalidate): %v", err)
	}
	if handle2.ReloadID <= handle1.ReloadID {
		t.Fatalf("expected reload id to increase after rebuild, got %d then %d", handle1.ReloadID, handle2.ReloadID)
	}
}

func TestModelCachePropagatesSubAssetFailure(t *testing.T) {
	pool := worker.NewDynamicWorkerPool(2, 16, time.Second)
	wantErr := errors.New("scaffold load failed")
	scaffolds := NewLRUHeap(4, pool, func(key string) (*scaffold.Root, error) {
		return nil, wantErr
	})
	materials := NewLRUHeap(4, pool, func(key string) (*renderer.Material, error) {
		return &renderer.Material{GUID: key}, nil
	})

	var built bool
	mc := NewModelCache(scaffolds, materials, pool, func(root *scaffold.Root, mat *renderer.Material) (*renderer.SimpleModelRenderer, error) {
		built = true
		return &renderer.SimpleModelRenderer{}, nil
	})

	f := mc.Get(ModelKey{Model: "broken.scaffold", Material: "hero.mat"})
	if _, err := f.Actualize(); err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if built {
		t.Fatalf("composition must not run when a sub-asset fails to build")
	}
}
