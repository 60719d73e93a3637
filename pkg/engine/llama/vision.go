package llama

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// needsVisionProjector reports whether modelName suggests a multi-modal
// model that ships a sibling projector file.
func needsVisionProjector(modelName string) bool {
	lower := strings.ToLower(modelName)
	return strings.Contains(lower, "minicpm") || strings.Contains(lower, "vision")
}

// findProjectorPath locates (without loading) the mmproj sidecar for a
// vision-capable model. For a plain directory layout it looks for a sibling
// "mmproj-model-f16.gguf"; for an Ollama blob path it additionally queries
// an external tool for the modelfile's second FROM statement, which names
// the projector blob. The projector itself is never opened in this
// process — vision generation shells out to an external multi-modal CLI
// with this recorded path.
func findProjectorPath(basePath string) (string, bool) {
	dir := filepath.Dir(basePath)
	sibling := filepath.Join(dir, "mmproj-model-f16.gguf")
	if _, err := os.Stat(sibling); err == nil {
		return sibling, true
	}

	if strings.Contains(basePath, "ollama") && strings.Contains(basePath, "blobs") {
		if projector, ok := projectorFromOllamaModelfile(basePath); ok {
			return projector, true
		}
	}

	return "", false
}

// projectorFromOllamaModelfile shells out to "ollama show --modelfile" and
// returns the blob path named by the second FROM statement, which (for
// multi-modal Ollama models) points at the projector weights. A missing
// "ollama" binary or a malformed modelfile is not an error here: vision
// metadata is best-effort, never load-blocking.
func projectorFromOllamaModelfile(basePath string) (string, bool) {
	ollamaRoot := strings.SplitN(basePath, string(filepath.Separator)+"blobs"+string(filepath.Separator), 2)[0]
	modelName := filepath.Base(filepath.Dir(ollamaRoot))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ollama", "show", "--modelfile", modelName)
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}

	fromCount := 0
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToUpper(trimmed), "FROM ") {
			continue
		}
		fromCount++
		if fromCount == 2 {
			blobRef := strings.TrimSpace(trimmed[len("FROM "):])
			return blobPathFromRef(ollamaRoot, blobRef), true
		}
	}
	return "", false
}

func blobPathFromRef(ollamaRoot, ref string) string {
	digest := strings.TrimPrefix(ref, "sha256:")
	return filepath.Join(ollamaRoot, "blobs", "sha256-"+digest)
}
