package llama

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNeedsVisionProjector(t *testing.T) {
	cases := map[string]bool{
		"MiniCPM-V-2_6":       true,
		"llava-vision-7b":     true,
		"llama3-8b-instruct":  false,
		"qwen2.5-coder-14b":   false,
	}
	for name, want := range cases {
		if got := needsVisionProjector(name); got != want {
			t.Errorf("needsVisionProjector(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFindProjectorPathSiblingFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "minicpm-v.gguf")
	projector := filepath.Join(dir, "mmproj-model-f16.gguf")

	if err := os.WriteFile(base, []byte("GGUF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(projector, []byte("GGUF"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, ok := findProjectorPath(base)
	if !ok {
		t.Fatal("expected a projector to be found")
	}
	if got != projector {
		t.Errorf("findProjectorPath = %q, want %q", got, projector)
	}
}

func TestFindProjectorPathNoSidecar(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "llama3.gguf")
	if err := os.WriteFile(base, []byte("GGUF"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := findProjectorPath(base); ok {
		t.Error("expected no projector for a plain, non-Ollama path with no sidecar")
	}
}

func TestBlobPathFromRef(t *testing.T) {
	got := blobPathFromRef("/home/user/.ollama", "sha256:abc123")
	want := filepath.Join("/home/user/.ollama", "blobs", "sha256-abc123")
	if got != want {
		t.Errorf("blobPathFromRef = %q, want %q", got, want)
	}
}
