// Package gpu resolves which GPU backend (if any) the GGUF core should use,
// and sets the environment flag llama.cpp expects before the native backend
// initializes. It never performs inference itself.
package gpu

import (
	"fmt"
	"os"

	"github.com/localforge/shimmy/pkg/engine/gpu/cuda"
	"github.com/localforge/shimmy/pkg/engine/gpu/vulkan"
)

// Backend is one of the GPU acceleration backends the GGUF core can drive,
// or Cpu for no acceleration.
type Backend string

const (
	Cpu    Backend = "cpu"
	Cuda   Backend = "cuda"
	Vulkan Backend = "vulkan"
	OpenCL Backend = "opencl"
)

// Layers returns the n_gpu_layers value for a backend: 0 for Cpu, 999
// ("offload all, let the native library clamp it") for every GPU variant.
// This asymmetry is deliberate — see SPEC_FULL.md §9 on GPU-layer
// asymmetry (0 vs 999).
func Layers(b Backend) int {
	if b == Cpu {
		return 0
	}
	return 999
}

// Resolve turns a CLI/config string ("auto", "cpu", "cuda", "vulkan",
// "opencl") into a concrete Backend. "auto" probes each compiled-in GPU
// backend in order and falls back to Cpu if none is present.
func Resolve(requested string) (Backend, error) {
	switch requested {
	case "", "auto":
		return autoDetect(), nil
	case "cpu":
		return Cpu, nil
	case "cuda":
		return Cuda, nil
	case "vulkan":
		return Vulkan, nil
	case "opencl":
		return OpenCL, nil
	default:
		return Cpu, fmt.Errorf("gpu: unknown backend %q", requested)
	}
}

func autoDetect() Backend {
	if cuda.Available() {
		return Cuda
	}
	if vulkan.Available() {
		return Vulkan
	}
	return Cpu
}

// SetEnv sets the environment variable the native backend reads at
// initialization for the chosen GPU backend. It must be called before the
// GGUF core's once-latch fires — setting it afterward has no effect,
// which is the root cause named in the design notes for the
// GPU-silently-ignored class of bug.
func SetEnv(b Backend) {
	switch b {
	case Cuda:
		os.Setenv("GGML_CUDA", "1")
	case Vulkan:
		os.Setenv("GGML_VULKAN", "1")
	case OpenCL:
		os.Setenv("GGML_OPENCL", "1")
	}
}
