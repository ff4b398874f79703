package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache != DefaultCacheConfig() {
		t.Fatalf("expected default cache config, got %+v", cfg.Cache)
	}
	if len(cfg.Deform.Operations) != 1 || cfg.Deform.Operations[0].Name != "skin" {
		t.Fatalf("expected default deform chain [skin], got %+v", cfg.Deform.Operations)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"), nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache != DefaultCacheConfig() {
		t.Fatalf("expected defaults for a missing file, got %+v", cfg.Cache)
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
cache:
  scaffoldCapacity: 128
  workerCount: 8
deform:
  operations:
    - name: skin
    - name: morph
      params:
        weight: 0.5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(path, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.ScaffoldCapacity != 128 || cfg.Cache.WorkerCount != 8 {
		t.Fatalf("expected overlaid cache config, got %+v", cfg.Cache)
	}
	// Fields the YAML didn't mention keep the defaulted struct's zero values (since the
	// whole Cache section is replaced wholesale when present in the file).
	if len(cfg.Deform.Operations) != 2 || cfg.Deform.Operations[1].Name != "morph" {
		t.Fatalf("expected 2 deform operations, got %+v", cfg.Deform.Operations)
	}
	if w, _ := cfg.Deform.Operations[1].Params["weight"].(float64); w != 0.5 {
		t.Fatalf("expected morph weight 0.5, got %+v", cfg.Deform.Operations[1].Params)
	}
}

func TestLoadProgrammaticOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  scaffoldCapacity: 128\n"), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(path, []CacheConfigOption{WithScaffoldCapacity(256)}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.ScaffoldCapacity != 256 {
		t.Fatalf("expected programmatic override to win, got %d", cfg.Cache.ScaffoldCapacity)
	}
}

func TestWithOperationAppends(t *testing.T) {
	cfg := DefaultDeformConfig()
	WithOperation("extra", map[string]any{"x": 1})(&cfg)
	if len(cfg.Operations) != 2 || cfg.Operations[1].Name != "extra" {
		t.Fatalf("expected appended operation, got %+v", cfg.Operations)
	}
}
