// Package safetensors provides the SafeTensors inference engine.
//
// SafeTensors models require a Python-side transformers runtime this
// process does not embed; Load reports that explicitly rather than
// pretending to succeed, per the engine contract in pkg/engine.
package safetensors

import (
	"context"
	"fmt"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/registry"
)

// Engine implements engine.InferenceEngine for .safetensors model files.
type Engine struct{}

// NewEngine returns a SafeTensors Engine.
func NewEngine() *Engine { return &Engine{} }

// Load always returns an explanatory error: a SafeTensors runtime is not
// compiled into this binary.
func (e *Engine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	return nil, fmt.Errorf("safetensors: %s requires a transformers-compatible runtime, which is not compiled into this binary", spec.Name)
}
