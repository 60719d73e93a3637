package engine

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/localforge/shimmy/pkg/registry"
)

// BuildFlags reports which engines are compiled into this binary. Passed
// into SelectEngine so its decision stays a pure function of (spec, flags)
// rather than reading global state.
type BuildFlags struct {
	HuggingFaceCompiled bool
	MLXCompiled         bool
}

var familyKeywordRe = regexp.MustCompile(`(?i)llama|mistral|phi|qwen|gemma`)

// mlxFamilyKeywordRe is intentionally narrower than familyKeywordRe: spec
// §4.3 rule 2 names only llama/mistral/phi/qwen for the Apple-Silicon MLX
// name heuristic, excluding gemma (rule 6's broader family-keyword fallback
// still covers gemma models, just routed to GGUF rather than MLX).
var mlxFamilyKeywordRe = regexp.MustCompile(`(?i)llama|mistral|phi|qwen`)

// SelectEngine applies the seven-rule ordered decision procedure to choose
// a backend for spec. It is a pure function of its arguments: same spec and
// same flags always choose the same engine.
func SelectEngine(spec registry.ModelSpec, flags BuildFlags) (EngineKind, error) {
	path := spec.BasePath
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	// Rule 1: HuggingFace model identifier — contains "/", no "\", no ".".
	if flags.HuggingFaceCompiled && looksLikeHFIdentifier(path) {
		return EngineHuggingFace, nil
	}

	// Rule 2: MLX — npz/mlx extension, or Apple Silicon macOS + family name.
	if ext == "npz" || ext == "mlx" {
		return EngineMLX, nil
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" && mlxFamilyKeywordRe.MatchString(spec.Name) {
		return EngineMLX, nil
	}

	// Rule 3: SafeTensors extension.
	if ext == "safetensors" {
		return EngineSafeTensors, nil
	}

	// Rule 4: GGUF extension.
	if ext == "gguf" {
		return EngineGGUF, nil
	}

	// Rule 5: Ollama blob path — contains "ollama", "blobs", and "sha256-".
	lowerPath := strings.ToLower(path)
	if strings.Contains(lowerPath, "ollama") && strings.Contains(lowerPath, "blobs") && strings.Contains(lowerPath, "sha256-") {
		return EngineGGUF, nil
	}

	// Rule 6: family keyword in name, or ".gguf" anywhere in path.
	if familyKeywordRe.MatchString(spec.Name) || strings.Contains(lowerPath, ".gguf") {
		return EngineGGUF, nil
	}

	// Rule 7: fall back to HuggingFace if compiled in.
	if flags.HuggingFaceCompiled {
		return EngineHuggingFace, nil
	}

	panic(fmt.Sprintf("shimmy: no inference backend can handle model %q (path %q); "+
		"compile with HuggingFace support or provide a GGUF/SafeTensors/MLX file", spec.Name, path))
}

// looksLikeHFIdentifier reports whether path looks like "org/model" rather
// than a filesystem path: contains a forward slash, no backslash, and no
// dot (no file extension).
func looksLikeHFIdentifier(path string) bool {
	return strings.Contains(path, "/") && !strings.Contains(path, `\`) && !strings.Contains(path, ".")
}
