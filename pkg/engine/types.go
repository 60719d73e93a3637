// Package engine chooses, among the compiled-in inference backends, which
// one should serve a given model, and defines the narrow contract every
// backend implements once it has a model loaded.
package engine

import (
	"context"
	"fmt"

	"github.com/localforge/shimmy/pkg/registry"
)

// GenOptions is the generation contract every protocol dialect normalizes
// into before calling an engine.
//
// StopTokens is the union of caller-supplied stops and the resolved
// template's default stops; merging that union is the caller's
// responsibility (see pkg/protocol), not the engine's — by the time
// GenOptions reaches an engine, StopTokens is already final.
type GenOptions struct {
	MaxTokens     int
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	Seed          *uint64
	Stream        bool
	StopTokens    []string
}

// Key returns a stable string identifying this GenOptions for cache
// fingerprinting purposes. Seed is deliberately excluded — see DESIGN.md's
// record of the response-cache keying decision.
func (o GenOptions) Key() string {
	stops := ""
	for i, s := range o.StopTokens {
		if i > 0 {
			stops += ","
		}
		stops += s
	}
	return fmt.Sprintf("mt=%d;t=%.3f;tp=%.3f;tk=%d;rp=%.3f;stop=%s",
		o.MaxTokens, o.Temperature, o.TopP, o.TopK, o.RepeatPenalty, stops)
}

// EngineKind names which backend produced a LoadedModel, for logging and
// observability only — it carries no behavior of its own.
type EngineKind string

const (
	EngineGGUF        EngineKind = "gguf"
	EngineSafeTensors EngineKind = "safetensors"
	EngineMLX         EngineKind = "mlx"
	EngineHuggingFace EngineKind = "huggingface"
)

// LoadedModel is an opaque, reference-shared handle to a model ready to
// generate. Implementations own whatever native resources they hold and
// must serialize concurrent Generate/GenerateStream calls against the same
// handle internally (see the GGUF core's context-mutex discipline).
type LoadedModel interface {
	// Generate runs generation to completion and returns the final text.
	Generate(ctx context.Context, prompt string, opts GenOptions) (string, error)
	// GenerateStream runs generation, invoking onToken for each piece of
	// text as it is produced. onToken must not re-enter this model.
	GenerateStream(ctx context.Context, prompt string, opts GenOptions, onToken func(piece string) error) error
	// Kind reports which backend produced this handle.
	Kind() EngineKind
}

// InferenceEngine loads a ModelSpec into a LoadedModel. Engines that are
// not functional on the current build or platform must return an
// explanatory error, never a placeholder success.
type InferenceEngine interface {
	Load(ctx context.Context, spec registry.ModelSpec) (LoadedModel, error)
}
