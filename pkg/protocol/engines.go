package protocol

import (
	"context"
	"fmt"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/engine/huggingface"
	"github.com/localforge/shimmy/pkg/engine/mlx"
	"github.com/localforge/shimmy/pkg/engine/safetensors"
	"github.com/localforge/shimmy/pkg/registry"
)

// EngineSet holds one InferenceEngine per backend kind and dispatches a
// ModelSpec to the right one via engine.SelectEngine, implementing the
// backend-adapter contract (§4.3) at the HTTP-handler boundary.
type EngineSet struct {
	GGUF  engine.InferenceEngine
	Flags engine.BuildFlags

	safeTensors engine.InferenceEngine
	mlxEngine   engine.InferenceEngine
	hfEngine    engine.InferenceEngine
}

// NewEngineSet builds the full backend set: ggufEngine is supplied by the
// caller because its construction depends on the resolved GPU backend and
// MoE options, while the other three have no configuration of their own.
func NewEngineSet(ggufEngine engine.InferenceEngine) *EngineSet {
	return &EngineSet{
		GGUF:        ggufEngine,
		Flags:       engine.BuildFlags{HuggingFaceCompiled: huggingface.Compiled, MLXCompiled: true},
		safeTensors: safetensors.NewEngine(),
		mlxEngine:   mlx.NewEngine(),
		hfEngine:    huggingface.NewEngine(""),
	}
}

// Load resolves spec to a backend via SelectEngine and loads it.
func (e *EngineSet) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, engine.EngineKind, error) {
	kind, err := e.selectEngine(spec)
	if err != nil {
		return nil, "", err
	}

	var eng engine.InferenceEngine
	switch kind {
	case engine.EngineGGUF:
		eng = e.GGUF
	case engine.EngineSafeTensors:
		eng = e.safeTensors
	case engine.EngineMLX:
		eng = e.mlxEngine
	case engine.EngineHuggingFace:
		eng = e.hfEngine
	default:
		return nil, "", fmt.Errorf("protocol: unknown engine kind %q", kind)
	}

	loaded, err := eng.Load(ctx, spec)
	if err != nil {
		return nil, kind, err
	}
	return loaded, kind, nil
}

// selectEngine recovers from SelectEngine's panic (raised only when no
// backend at all can serve the spec — e.g. HuggingFace not compiled in and
// the path isn't any recognized local format) and turns it into an error
// the HTTP layer can surface as a normal failure response.
func (e *EngineSet) selectEngine(spec registry.ModelSpec) (kind engine.EngineKind, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	kind, err = engine.SelectEngine(spec, e.Flags)
	return kind, err
}
