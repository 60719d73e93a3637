package discovery

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var paramTagRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[_\-]?b(?:illion)?\b`)

var quantTagRe = regexp.MustCompile(`(?i)\b(Q\d_[0-9A-Z_]+|Q\d_\d|F16|F32|BF16)\b`)

// inferParamTag extracts a parameter-count tag like "7B" from a file name,
// if present.
func inferParamTag(name string) string {
	m := paramTagRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1]) + "B"
}

// inferQuantTag extracts a quantization tag like "Q4_K_M" from a file name,
// if present.
func inferQuantTag(name string) string {
	m := quantTagRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// inferFamily guesses a model family from a name or path using the
// family-keyword table. Returns FamilyUnknown if nothing matches.
func inferFamily(nameOrPath string) string {
	lower := strings.ToLower(nameOrPath)
	for _, kw := range familyKeywordOrder {
		if strings.Contains(lower, kw) {
			return familyKeywords[kw]
		}
	}
	return FamilyUnknown
}

// isGGUFMagic reports whether the first four bytes of path are the ASCII
// magic "GGUF". A read failure is treated as "no", consistent with
// discovery's lossy error policy.
func isGGUFMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 4)
	n, err := f.Read(buf)
	if err != nil || n < 4 {
		return false
	}
	return string(buf) == "GGUF"
}

// classifyFamily applies the GGUF-tag invariant: any file whose extension
// is gguf, or whose magic bytes are GGUF, is tagged Llama regardless of
// filename.
func classifyFamily(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".gguf") || isGGUFMagic(path) {
		return FamilyLlama
	}
	return inferFamily(filepath.Base(path))
}

var buildArtifactMarkers = []string{"pytorch_model", "config", "tokenizer"}

// acceptFile applies the file-classification rules: .gguf is always
// accepted; .safetensors is accepted unless it looks like a tokenizer or
// config file; .bin is accepted only if the path carries a family keyword
// and none of the exclusion markers.
func acceptFile(path string) bool {
	lowerPath := strings.ToLower(path)
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gguf":
		return true
	case ".safetensors":
		return !strings.Contains(lowerPath, "tokenizer") && !strings.Contains(lowerPath, "config")
	case ".bin":
		hasFamily := false
		for _, kw := range familyKeywordOrder {
			if strings.Contains(lowerPath, kw) {
				hasFamily = true
				break
			}
		}
		if !hasFamily {
			return false
		}
		for _, marker := range buildArtifactMarkers {
			if strings.Contains(lowerPath, marker) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
