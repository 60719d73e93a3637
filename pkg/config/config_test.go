package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	if cfg.Engine.GPUBackend != "auto" {
		t.Errorf("default GPUBackend = %q, want auto", cfg.Engine.GPUBackend)
	}
	if cfg.Server.Port != 11435 {
		t.Errorf("default Port = %d, want 11435", cfg.Server.Port)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("default Cache.TTL = %v, want 1h", cfg.Cache.TTL)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.Server.WorkerPoolSize != 0 {
		t.Errorf("default WorkerPoolSize = %d, want 0 (GOMAXPROCS)", cfg.Server.WorkerPoolSize)
	}
}

func TestLoadFromEnvWorkerPoolSizeOverride(t *testing.T) {
	t.Setenv("SHIMMY_WORKER_POOL_SIZE", "4")
	cfg := LoadFromEnv()
	if cfg.Server.WorkerPoolSize != 4 {
		t.Errorf("WorkerPoolSize = %d, want 4", cfg.Server.WorkerPoolSize)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SHIMMY_GPU_BACKEND", "CUDA")
	t.Setenv("SHIMMY_PORT", "8080")
	t.Setenv("SHIMMY_MODEL_PATHS", "/a/models; /b/models ;; /c")

	cfg := LoadFromEnv()
	if cfg.Engine.GPUBackend != "cuda" {
		t.Errorf("GPUBackend = %q, want cuda (lowercased)", cfg.Engine.GPUBackend)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	want := []string{"/a/models", "/b/models", "/c"}
	if len(cfg.Discovery.ExtraPaths) != len(want) {
		t.Fatalf("ExtraPaths = %v, want %v", cfg.Discovery.ExtraPaths, want)
	}
	for i, p := range want {
		if cfg.Discovery.ExtraPaths[i] != p {
			t.Errorf("ExtraPaths[%d] = %q, want %q", i, cfg.Discovery.ExtraPaths[i], p)
		}
	}
}

func TestValidateRejectsBadGPUBackend(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Engine.GPUBackend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid GPU backend")
	}
}

func TestValidateRejectsLoRAWithoutBase(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Discovery.BaseGGUF = ""
	cfg.Discovery.LoRAGGUF = "/models/adapter.gguf"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when LoRA is set without a base model")
	}
}
