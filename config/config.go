// Package config loads the ambient configuration this core needs beyond its programmatic
// API: LRU cache capacities (§4.6) and the set of deform operations a renderer build-up
// should instantiate (§4.4/§6). The teacher has no file-based configuration of its own --
// every component is wired together via functional options in Go -- so every field here
// has a With* equivalent, and the YAML file itself is optional.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// CacheConfig sizes the §4.6 asset LRU caches and the worker pool that services them.
type CacheConfig struct {
	ScaffoldCapacity int `yaml:"scaffoldCapacity"`
	MaterialCapacity int `yaml:"materialCapacity"`
	RendererCapacity int `yaml:"rendererCapacity"`
	WorkerCount      int `yaml:"workerCount"`
	QueueSize        int `yaml:"queueSize"`
}

// DefaultCacheConfig returns the ambient cache sizing used when no YAML file or override
// narrows it: small enough for a single model viewer, large enough not to thrash under a
// handful of concurrently-loading scenes.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ScaffoldCapacity: 64,
		MaterialCapacity: 64,
		RendererCapacity: 32,
		WorkerCount:      4,
		QueueSize:        256,
	}
}

// CacheConfigOption is a functional option for CacheConfig, matching the teacher's
// model_builder.go/camera_builder.go "every field has a With*" convention.
type CacheConfigOption func(*CacheConfig)

// WithScaffoldCapacity overrides the scaffold LRU heap's capacity.
func WithScaffoldCapacity(n int) CacheConfigOption {
	return func(c *CacheConfig) { c.ScaffoldCapacity = n }
}

// WithMaterialCapacity overrides the material LRU heap's capacity.
func WithMaterialCapacity(n int) CacheConfigOption {
	return func(c *CacheConfig) { c.MaterialCapacity = n }
}

// WithRendererCapacity overrides RendererCapacity. cache.ModelCache takes no capacity and
// keeps every composed renderer, so no code in this module reads this value.
func WithRendererCapacity(n int) CacheConfigOption {
	return func(c *CacheConfig) { c.RendererCapacity = n }
}

// WithWorkerCount overrides the worker-pool size backing asynchronous asset construction.
func WithWorkerCount(n int) CacheConfigOption {
	return func(c *CacheConfig) { c.WorkerCount = n }
}

// WithQueueSize overrides the worker pool's task queue depth.
func WithQueueSize(n int) CacheConfigOption {
	return func(c *CacheConfig) { c.QueueSize = n }
}

// DeformEntry names one deform operation a renderer build-up should instantiate, plus the
// construction parameters passed to its factory (§6 "deform-operation factory").
type DeformEntry struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// DeformConfig lists the enabled deform operations, in chain order.
type DeformConfig struct {
	Operations []DeformEntry `yaml:"operations"`
}

// DefaultDeformConfig enables only the built-in skin deform, matching the renderer
// build-up's default chain when no configuration narrows it.
func DefaultDeformConfig() DeformConfig {
	return DeformConfig{Operations: []DeformEntry{{Name: "skin"}}}
}

// DeformConfigOption is a functional option for DeformConfig.
type DeformConfigOption func(*DeformConfig)

// WithOperations replaces the configured deform-operation chain outright.
func WithOperations(entries ...DeformEntry) DeformConfigOption {
	return func(c *DeformConfig) { c.Operations = entries }
}

// WithOperation appends one deform operation to the configured chain.
func WithOperation(name string, params map[string]any) DeformConfigOption {
	return func(c *DeformConfig) {
		c.Operations = append(c.Operations, DeformEntry{Name: name, Params: params})
	}
}

// file is the on-disk YAML shape; both sections are optional and independently defaulted.
type file struct {
	Cache  *CacheConfig  `yaml:"cache"`
	Deform *DeformConfig `yaml:"deform"`
}

// Config is the resolved ambient configuration: cache sizing plus the deform chain.
type Config struct {
	Cache  CacheConfig
	Deform DeformConfig
}

// Load reads path as YAML; each top-level section present in the file ("cache",
// "deform") replaces the corresponding default section as a whole, and an absent section
// keeps its defaults. A missing file is not an
// error -- it just yields the defaults, matching the teacher's "everything also works with
// zero configuration" ethos. Programmatic overrides are applied after the file so callers
// can always win over what's on disk.
func Load(path string, cacheOpts []CacheConfigOption, deformOpts []DeformConfigOption) (Config, error) {
	cfg := Config{Cache: DefaultCacheConfig(), Deform: DefaultDeformConfig()}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		} else {
			var f file
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return Config{}, err
			}
			if f.Cache != nil {
				cfg.Cache = *f.Cache
			}
			if f.Deform != nil {
				cfg.Deform = *f.Deform
			}
		}
	}

	for _, opt := range cacheOpts {
		opt(&cfg.Cache)
	}
	for _, opt := range deformOpts {
		opt(&cfg.Deform)
	}

	return cfg, nil
}
