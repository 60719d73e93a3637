// Package discovery walks heterogeneous on-disk model layouts — flat GGUF
// directories, HuggingFace hub caches, Ollama blob stores, and sharded
// multi-file checkpoints — and emits a flat, deduplicated catalog of models
// for the registry to consume.
//
// Discovery never fails outward: a directory that cannot be opened, or an
// individual malformed entry, is logged and skipped. Callers only ever see
// a (possibly empty) slice, never an error.
package discovery

// Family tags the inference backend a model's file format implies, not its
// model architecture. GGUF files are always tagged Llama here because the
// llama.cpp-family backend is what loads them, regardless of whether the
// weights are actually a Llama, Phi, Mistral, Qwen, or Gemma checkpoint.
const (
	FamilyLlama   = "Llama"
	FamilyPhi     = "Phi"
	FamilyMistral = "Mistral"
	FamilyQwen    = "Qwen"
	FamilyGemma   = "Gemma"
	FamilyUnknown = "Unknown"
)

// DiscoveredModel is an immutable record produced by a discovery pass.
//
// Invariant: any model whose Path has extension "gguf", or whose first four
// bytes are the ASCII magic "GGUF", carries Family == FamilyLlama
// regardless of what the filename suggests.
type DiscoveredModel struct {
	Name        string
	Path        string
	AdapterPath string
	SizeBytes   int64
	Family      string
	ParamTag    string
	QuantTag    string
}

var familyKeywords = map[string]string{
	"llama":   FamilyLlama,
	"phi":     FamilyPhi,
	"mistral": FamilyMistral,
	"qwen":    FamilyQwen,
	"gemma":   FamilyGemma,
}

// familyKeywordOrder fixes iteration order so the first matching keyword in
// a name is chosen deterministically rather than at map-iteration whim.
var familyKeywordOrder = []string{"llama", "phi", "mistral", "qwen", "gemma"}
