// Package mlx provides the MLX inference engine for Apple Silicon.
//
// MLX's Objective-C/Metal runtime is not linked into this binary; Load
// distinguishes "wrong hardware" from "right hardware, runtime missing"
// so operators get an actionable message instead of a generic failure.
package mlx

import (
	"context"
	"fmt"
	"runtime"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/registry"
)

// Engine implements engine.InferenceEngine for MLX (.npz / .mlx) models.
type Engine struct{}

// NewEngine returns an MLX Engine.
func NewEngine() *Engine { return &Engine{} }

// Load reports why MLX generation cannot proceed: either the hardware is
// not Apple Silicon, or the MLX runtime is simply not compiled in.
func (e *Engine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return nil, fmt.Errorf("mlx: %s requires Apple Silicon (darwin/arm64), running on %s/%s", spec.Name, runtime.GOOS, runtime.GOARCH)
	}
	return nil, fmt.Errorf("mlx: %s requires the MLX runtime, which is not compiled into this binary", spec.Name)
}
