package discovery

import (
	"path/filepath"
	"strings"
)

// adapterPairing maps a base model's file path to its paired adapter path,
// scoped to a single Scan call — built by pairAdapters and consulted by
// toDiscoveredModel for that same run. Keeping this Scan-local (rather than
// process-global) means two concurrent Scans, e.g. a manual /admin/rescan
// racing another rescan, never interleave their writes and reads.
type adapterPairing map[string]string

// pairAdapters finds, within each directory, sibling files that name an
// adapter (contain "lora" or "adapter" in the name, extension gguf or ggml)
// whose stem overlaps a base model's stem, records the pairing, and marks
// the adapter's own classifiedFile entries as wasAdapter so they are not
// also listed as standalone models.
func pairAdapters(files []classifiedFile) adapterPairing {
	pairing := make(adapterPairing)

	byDir := make(map[string][]int)
	for i, f := range files {
		if f.isSharded {
			continue
		}
		byDir[f.dir] = append(byDir[f.dir], i)
	}

	for _, idxs := range byDir {
		for _, ai := range idxs {
			af := files[ai]
			if !looksLikeAdapter(af.name) {
				continue
			}
			adapterStem := stemOf(af.name)
			for _, bi := range idxs {
				if bi == ai {
					continue
				}
				bf := files[bi]
				if looksLikeAdapter(bf.name) {
					continue
				}
				baseStem := stemOf(bf.name)
				if strings.Contains(baseStem, adapterStem) || strings.Contains(adapterStem, baseStem) {
					pairing[bf.path] = af.path
					files[ai].wasAdapter = true
				}
			}
		}
	}

	return pairing
}

func looksLikeAdapter(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".gguf" && ext != ".ggml" {
		return false
	}
	lower := strings.ToLower(name)
	return strings.Contains(lower, "lora") || strings.Contains(lower, "adapter")
}

func stemOf(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

// lookupAdapter returns the adapter path paired with baseFilePath within
// pairing, if any.
func lookupAdapter(pairing adapterPairing, baseFilePath string) (string, bool) {
	adapter, ok := pairing[baseFilePath]
	return adapter, ok
}
