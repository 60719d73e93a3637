package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGGUFExtensionCarriesLlamaTag(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "unsloth-mystery.gguf"), []byte("not really gguf bytes but extension rules"))

	models := Scan([]string{dir}, "")
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if models[0].Family != FamilyLlama {
		t.Errorf("Family = %q, want %q", models[0].Family, FamilyLlama)
	}
}

func TestMagicBytesCarryLlamaTagEvenWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	// .bin with a family keyword in the path so it passes classification,
	// but whose content starts with the GGUF magic.
	writeFile(t, filepath.Join(dir, "llama-weights.bin"), append([]byte("GGUF"), make([]byte, 16)...))

	models := Scan([]string{dir}, "")
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if models[0].Family != FamilyLlama {
		t.Errorf("Family = %q, want %q for GGUF-magic .bin file", models[0].Family, FamilyLlama)
	}
}

func TestShardedGroupCollapsesToOneRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "m")
	writeFile(t, filepath.Join(dir, "model-00001-of-00002.safetensors"), make([]byte, 10*1024*1024))
	writeFile(t, filepath.Join(dir, "model-00002-of-00002.safetensors"), make([]byte, 10*1024*1024))

	models := Scan([]string{filepath.Dir(dir)}, "")
	if len(models) != 1 {
		t.Fatalf("expected 1 shard-group record, got %d: %+v", len(models), models)
	}
	m := models[0]
	if m.Name != "m" {
		t.Errorf("Name = %q, want %q", m.Name, "m")
	}
	if m.SizeBytes != 20*1024*1024 {
		t.Errorf("SizeBytes = %d, want %d", m.SizeBytes, 20*1024*1024)
	}
	want := "model-00001-of-00002.safetensors (+1 more files)"
	if m.Path != want {
		t.Errorf("Path = %q, want %q", m.Path, want)
	}
}

func TestSingleFileShardPatternIsNotGrouped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "solo-00001-of-00001.safetensors"), []byte("x"))

	models := Scan([]string{dir}, "")
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if models[0].Name != "solo-00001-of-00001" {
		t.Errorf("Name = %q, a lone shard file should keep its own name", models[0].Name)
	}
}

func TestAdapterPairing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "phi3-mini.gguf"), []byte("base"))
	writeFile(t, filepath.Join(dir, "phi3-mini-lora.gguf"), []byte("adapter"))

	models := Scan([]string{dir}, "")
	var base *DiscoveredModel
	for i := range models {
		if models[i].Name == "phi3-mini" {
			base = &models[i]
		}
	}
	if base == nil {
		t.Fatalf("base model not found among %+v", models)
	}
	if base.AdapterPath == "" {
		t.Error("expected base model to have a paired adapter path")
	}
}

func TestSkipsUnreadableDirectoryWithoutFailing(t *testing.T) {
	models := Scan([]string{"/definitely/does/not/exist"}, "")
	if models == nil {
		t.Log("nil slice is an acceptable empty result")
	}
	if len(models) != 0 {
		t.Errorf("expected no models from a nonexistent root, got %d", len(models))
	}
}

func TestOllamaManifestPass(t *testing.T) {
	root := t.TempDir()
	manifestPath := filepath.Join(root, "manifests", "registry.ollama.ai", "library", "phi3", "latest")
	blobDigest := "sha256-abc123"
	blobPath := filepath.Join(root, "blobs", blobDigest)
	writeFile(t, blobPath, append([]byte("GGUF"), make([]byte, 32)...))

	manifest := ollamaManifest{Layers: []ollamaLayer{
		{MediaType: ollamaModelLayerMediaType, Digest: "sha256:abc123"},
	}}
	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, manifestPath, data)

	models := Scan(nil, root)
	if len(models) != 1 {
		t.Fatalf("expected 1 model from manifest pass, got %d: %+v", len(models), models)
	}
	if models[0].Path != blobPath {
		t.Errorf("Path = %q, want %q", models[0].Path, blobPath)
	}
	if models[0].Family != FamilyLlama {
		t.Errorf("Family = %q, want %q", models[0].Family, FamilyLlama)
	}
}

func TestOllamaDirectPassPrefixesName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "custom", "qwen-extra.gguf"), []byte("x"))

	models := Scan(nil, root)
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if models[0].Name != "ollama:qwen-extra" {
		t.Errorf("Name = %q, want ollama:qwen-extra prefix", models[0].Name)
	}
}

func TestDedupAndSortByPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zeta.gguf"), []byte("x"))
	writeFile(t, filepath.Join(dir, "alpha.gguf"), []byte("x"))

	models := Scan([]string{dir, dir}, "") // same root twice
	if len(models) != 2 {
		t.Fatalf("expected dedup to 2 models, got %d", len(models))
	}
	if models[0].Path > models[1].Path {
		t.Error("models are not sorted by path")
	}
}
