package discovery

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// classifiedFile is an intermediate record produced while walking a root,
// before shard grouping and adapter pairing collapse it into a
// DiscoveredModel.
type classifiedFile struct {
	dir        string
	name       string
	path       string
	size       int64
	isSharded  bool
	wasAdapter bool
}

// Scan walks every generic root plus the Ollama root and returns a
// deduplicated, sorted catalog of discovered models. It never returns an
// error: filesystem problems are logged and the affected path is skipped.
func Scan(genericRoots []string, ollamaRoot string) []DiscoveredModel {
	var files []classifiedFile
	seenPaths := make(map[string]bool)

	for _, root := range genericRoots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		walkRoot(root, 0, isHFHubCache(root), &files, seenPaths)
	}

	grouped := groupShards(files)
	pairing := pairAdapters(grouped)

	models := make([]DiscoveredModel, 0, len(grouped))
	for _, f := range grouped {
		if f.wasAdapter {
			continue // adapters are attached to a base model, not listed standalone
		}
		models = append(models, toDiscoveredModel(f, pairing))
	}

	if ollamaRoot != "" {
		if info, err := os.Stat(ollamaRoot); err == nil && info.IsDir() {
			models = append(models, scanOllama(ollamaRoot)...)
		}
	}

	return finalizeModels(models)
}

// walkRoot recurses at most maxDepth levels below root, applying the
// skip-list and HuggingFace-hub family gate, and classifying files it
// finds along the way.
func walkRoot(dir string, depth int, inHFHub bool, out *[]classifiedFile, seen map[string]bool) {
	if depth > maxDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("discovery: skipping %s: %v", dir, err)
		return
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if skipDir(entry.Name()) {
				continue
			}
			walkRoot(full, depth+1, inHFHub, out, seen)
			continue
		}
		if inHFHub && !hfHubFamilyGate(dir) {
			continue
		}
		if !acceptFile(full) {
			continue
		}
		if seen[full] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("discovery: skipping %s: %v", full, err)
			continue
		}
		seen[full] = true
		*out = append(*out, classifiedFile{
			dir:  dir,
			name: entry.Name(),
			path: full,
			size: info.Size(),
		})
	}
}

func toDiscoveredModel(f classifiedFile, pairing adapterPairing) DiscoveredModel {
	name := f.name
	if !f.isSharded {
		name = strings.TrimSuffix(f.name, filepath.Ext(f.name))
	}
	dm := DiscoveredModel{
		Name:      name,
		Path:      f.path,
		SizeBytes: f.size,
		Family:    classifyFamily(f.path),
		ParamTag:  inferParamTag(f.name),
		QuantTag:  inferQuantTag(f.name),
	}
	if adapter, ok := lookupAdapter(pairing, f.path); ok {
		dm.AdapterPath = adapter
	}
	return dm
}

// finalizeModels applies the output invariants: dedup by path, sort by
// path.
func finalizeModels(models []DiscoveredModel) []DiscoveredModel {
	seen := make(map[string]bool, len(models))
	out := make([]DiscoveredModel, 0, len(models))
	for _, m := range models {
		if seen[m.Path] {
			continue
		}
		seen[m.Path] = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
