//go:build !hf

package huggingface

import (
	"context"
	"fmt"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/registry"
)

// Compiled reports whether this build links the HuggingFace bridge, for
// the backend adapter's rule 7 fallback. Untagged builds do not link it.
const Compiled = false

// Engine is a stub used by builds without the "hf" tag.
type Engine struct{}

// NewEngine returns a stub Engine; Load always fails.
func NewEngine(apiKey string) *Engine { return &Engine{} }

// Load always fails: build with -tags hf to link the HuggingFace bridge.
func (e *Engine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	return nil, fmt.Errorf("huggingface: %s requires building with -tags hf", spec.Name)
}
