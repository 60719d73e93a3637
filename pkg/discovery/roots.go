package discovery

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AssembleRoots builds the set of plain (non-Ollama) directories a scan
// should walk, combining the fixed "./models" directory, the env-var
// derived extras, and per-OS user-home defaults. Non-existent roots are
// kept — the walker skips them silently, per the lossy error policy. The
// configured Ollama root is resolved separately by ResolveOllamaRoot and
// scanned with its own manifest-aware pass. On Windows, the drive-letter
// Ollama probe paths from perOSDefaultRoots are included here and walked as
// plain roots, without the manifest pass.
func AssembleRoots(baseGGUF string, extraPaths []string) []string {
	var roots []string
	roots = append(roots, "./models")

	if baseGGUF != "" {
		roots = append(roots, filepath.Dir(baseGGUF))
	}
	roots = append(roots, extraPaths...)
	roots = append(roots, perOSDefaultRoots()...)

	return dedupStrings(roots)
}

// ResolveOllamaRoot returns the configured Ollama root, or the default
// "~/.ollama/models" if unset.
func ResolveOllamaRoot(configured string) string {
	if configured != "" {
		return configured
	}
	return defaultOllamaRoot()
}

func defaultOllamaRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ollama", "models")
}

// perOSDefaultRoots returns the HuggingFace hub cache, LM Studio directory,
// and a shimmy-local directory under the user's home, plus (on Windows) a
// probe across common drive letters for Ollama installs.
func perOSDefaultRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	roots := []string{
		filepath.Join(home, ".cache", "huggingface", "hub"),
		filepath.Join(home, ".lmstudio", "models"),
		filepath.Join(home, ".shimmy", "models"),
	}
	if runtime.GOOS == "windows" {
		roots = append(roots, filepath.Join(home, "Downloads"))
		for _, drive := range []string{"C", "D", "E"} {
			roots = append(roots, drive+`:\Users\`+filepath.Base(home)+`\.ollama\models`)
		}
	}
	return roots
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// maxDepth is the recursion limit measured from a scan root.
const maxDepth = 4

// dotAllowList names dot-directories that are still worth descending into.
var dotAllowList = map[string]bool{
	".cache":  true,
	".ollama": true,
	".local":  true,
}

// reservedNames are OS directories that never contain user models.
var reservedNames = map[string]bool{
	"Library": true, "System": true, "usr": true, "var": true,
	"tmp": true, "private": true, "Volumes": true, "dev": true,
	"proc": true, "sbin": true, "bin": true,
	"windows": true, "program files": true, "program files (x86)": true,
	"programdata": true, "$recycle.bin": true, "recovery": true,
	"system volume information": true,
}

// buildCacheNames are build/cache directory names never worth descending
// into, plus substrings (checked separately) for embedding-model caches
// that would otherwise pollute an LLM catalog.
var buildCacheNames = map[string]bool{
	"target": true, "cmake": true, "incremental": true,
}

var buildCacheSubstrings = []string{"whisper", "wav2vec", "bert", "clip"}

// skipDir reports whether a directory should not be descended into.
func skipDir(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(name, ".") && !dotAllowList[name] {
		return true
	}
	if reservedNames[name] || reservedNames[lower] {
		return true
	}
	if buildCacheNames[lower] {
		return true
	}
	for _, sub := range buildCacheSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// hfHubFamilyGate reports whether a directory inside a HuggingFace hub cache
// names a known family or the gguf format in its path. The walker still
// descends into every subdirectory; it only skips files in directories that
// fail this gate.
func hfHubFamilyGate(path string) bool {
	lower := strings.ToLower(path)
	for _, kw := range []string{"llama", "phi", "mistral", "qwen", "gemma", "gguf"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isHFHubCache(root string) bool {
	return strings.Contains(strings.ToLower(root), filepath.Join("huggingface", "hub"))
}
