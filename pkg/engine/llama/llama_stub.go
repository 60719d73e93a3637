//go:build !cgo || (!darwin && !linux && !windows)

package llama

import (
	"context"
	"errors"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/engine/gpu"
	"github.com/localforge/shimmy/pkg/registry"
)

var errNotSupported = errors.New("gguf inference not supported: build with CGO enabled on darwin, linux, or windows")

// MoEConfig carries the two mutually-exclusive mixture-of-experts CPU
// offload options. It has no effect in this stub build.
type MoEConfig struct {
	OffloadAllExperts bool
	OffloadFirstN     int
}

// Model is a stub that returns errNotSupported from every operation.
type Model struct{}

// Kind reports this handle's backend.
func (m *Model) Kind() engine.EngineKind { return engine.EngineGGUF }

// Generate returns errNotSupported on builds without CGO.
func (m *Model) Generate(ctx context.Context, prompt string, opts engine.GenOptions) (string, error) {
	return "", errNotSupported
}

// GenerateStream returns errNotSupported on builds without CGO.
func (m *Model) GenerateStream(ctx context.Context, prompt string, opts engine.GenOptions, onToken func(string) error) error {
	return errNotSupported
}

// Engine is a stub InferenceEngine for builds without CGO.
type Engine struct {
	GPUBackend gpu.Backend
	MoE        MoEConfig
}

// NewEngine returns a stub Engine; Load always fails.
func NewEngine(backend gpu.Backend, moe MoEConfig) *Engine {
	return &Engine{GPUBackend: backend, MoE: moe}
}

// Load returns errNotSupported on builds without CGO.
func (e *Engine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	return nil, errNotSupported
}
