package engine

import (
	"testing"

	"github.com/localforge/shimmy/pkg/registry"
)

func TestSelectEngineGGUF(t *testing.T) {
	kind, err := SelectEngine(registry.ModelSpec{Name: "phi3-mini", BasePath: "/models/phi3-mini.gguf"}, BuildFlags{})
	if err != nil {
		t.Fatal(err)
	}
	if kind != EngineGGUF {
		t.Errorf("kind = %q, want gguf", kind)
	}
}

func TestSelectEngineSafeTensors(t *testing.T) {
	kind, _ := SelectEngine(registry.ModelSpec{Name: "m", BasePath: "/models/m.safetensors"}, BuildFlags{})
	if kind != EngineSafeTensors {
		t.Errorf("kind = %q, want safetensors", kind)
	}
}

func TestSelectEngineOllamaBlob(t *testing.T) {
	kind, _ := SelectEngine(registry.ModelSpec{
		Name:     "qwen:latest",
		BasePath: "/home/user/.ollama/blobs/sha256-abcd1234",
	}, BuildFlags{})
	if kind != EngineGGUF {
		t.Errorf("kind = %q, want gguf for ollama blob path", kind)
	}
}

func TestSelectEngineNameWithSlashButNoDotIsNotAutomaticallyHF(t *testing.T) {
	// "Q/M" has a slash in its name but not in its path. The HF-identifier
	// rule looks only at the path, so even with HF compiled in this spec is
	// not treated as an HF identifier.
	kind, _ := SelectEngine(registry.ModelSpec{Name: "Q/M", BasePath: "q-m.gguf"}, BuildFlags{HuggingFaceCompiled: true})
	if kind == EngineHuggingFace {
		t.Error("a slash in the name alone should not select HF")
	}
}

func TestSelectEngineHFIdentifierWhenCompiledIn(t *testing.T) {
	kind, _ := SelectEngine(registry.ModelSpec{Name: "org/model", BasePath: "org/model"}, BuildFlags{HuggingFaceCompiled: true})
	if kind != EngineHuggingFace {
		t.Errorf("kind = %q, want huggingface", kind)
	}
}

func TestSelectEngineDeterministic(t *testing.T) {
	spec := registry.ModelSpec{Name: "llama-2-7b", BasePath: "/models/llama-2-7b.gguf"}
	flags := BuildFlags{HuggingFaceCompiled: true}
	k1, _ := SelectEngine(spec, flags)
	k2, _ := SelectEngine(spec, flags)
	if k1 != k2 {
		t.Errorf("SelectEngine is not deterministic: %q vs %q", k1, k2)
	}
}

func TestSelectEnginePanicsWithNoBackendAvailable(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when no backend can handle the spec")
		}
	}()
	SelectEngine(registry.ModelSpec{Name: "mystery", BasePath: "mystery.weird"}, BuildFlags{})
}
