package deform

import (
	"sync"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// Context carries the per-frame state a deform operation needs beyond its element ranges:
// currently just the latest skeleton evaluation, indexed by machine output slot.
type Context struct {
	JointMatrices []common.Mat4
}

// Operation is a pure function of its input element ranges (plus the per-frame Context),
// writing into its output element ranges. Implementations must not retain inputs/outputs
// past Execute returning.
type Operation interface {
	Execute(inputs, outputs map[string]*VertexElementRange, ctx Context) error
}

// Factory builds one Operation instance from its scaffold-declared parameters.
type Factory func(params map[string]any) (Operation, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
	initOnce   sync.Once
)

// Register adds (or replaces) a named deform-operation factory in the process-wide
// registry. Safe to call concurrently.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New instantiates the named operation via its registered factory.
func New(name string, params map[string]any) (Operation, error) {
	initOnce.Do(registerBuiltins)

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, common.NewError(common.KindMissingAttribute, "deform: no operation registered as %q", name)
	}
	return factory(params)
}

func registerBuiltins() {
	Register("skin", newSkinOperation)
}
