package discovery

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ollamaManifest is the subset of the Image-Manifest-v2 shape discovery
// cares about: a list of layers, each with a media type and a digest.
type ollamaManifest struct {
	Layers []ollamaLayer `json:"layers"`
}

type ollamaLayer struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
}

const ollamaModelLayerMediaType = "application/vnd.ollama.image.model"

// scanOllama runs the two-pass Ollama discovery: a manifest pass that
// resolves named models to their GGUF blob, and a direct pass over any
// other subdirectories that might hold loose model files.
func scanOllama(root string) []DiscoveredModel {
	var models []DiscoveredModel
	models = append(models, ollamaManifestPass(root)...)
	models = append(models, ollamaDirectPass(root)...)
	return models
}

func ollamaManifestPass(root string) []DiscoveredModel {
	manifestsRoot := filepath.Join(root, "manifests")
	info, err := os.Stat(manifestsRoot)
	if err != nil || !info.IsDir() {
		return nil
	}

	var models []DiscoveredModel
	_ = filepath.Walk(manifestsRoot, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			log.Printf("discovery: ollama manifest walk error at %s: %v", path, err)
			return nil
		}
		if fi.IsDir() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			log.Printf("discovery: skipping manifest %s: %v", path, readErr)
			return nil
		}
		var manifest ollamaManifest
		if jsonErr := json.Unmarshal(data, &manifest); jsonErr != nil {
			log.Printf("discovery: malformed manifest %s: %v", path, jsonErr)
			return nil
		}
		for _, layer := range manifest.Layers {
			if layer.MediaType != ollamaModelLayerMediaType {
				continue
			}
			blobPath := blobPathFromDigest(root, layer.Digest)
			if blobPath == "" || !isGGUFMagic(blobPath) {
				continue
			}
			info, statErr := os.Stat(blobPath)
			if statErr != nil {
				continue
			}
			models = append(models, DiscoveredModel{
				Name:      manifestDisplayName(manifestsRoot, path),
				Path:      blobPath,
				SizeBytes: info.Size(),
				Family:    FamilyLlama,
			})
		}
		return nil
	})
	return models
}

// blobPathFromDigest converts a manifest digest like "sha256:abcd..." into
// the corresponding blob path "<root>/blobs/sha256-abcd...".
func blobPathFromDigest(root, digest string) string {
	parts := strings.SplitN(digest, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	return filepath.Join(root, "blobs", parts[0]+"-"+parts[1])
}

// manifestDisplayName joins the manifest's path components (relative to the
// manifests root) with "/", treating the final component as a tag joined
// with ":" onto the rest whenever there are at least two components.
func manifestDisplayName(manifestsRoot, manifestPath string) string {
	rel, err := filepath.Rel(manifestsRoot, manifestPath)
	if err != nil {
		rel = manifestPath
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) >= 2 {
		tag := parts[len(parts)-1]
		name := strings.Join(parts[:len(parts)-1], "/")
		return name + ":" + tag
	}
	return strings.Join(parts, "/")
}

// ollamaDirectPass recursively scans Ollama-root subdirectories other than
// "manifests" and "blobs" for loose model files, prefixing each discovered
// name with "ollama:".
func ollamaDirectPass(root string) []DiscoveredModel {
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Printf("discovery: skipping ollama root %s: %v", root, err)
		return nil
	}

	var files []classifiedFile
	seen := make(map[string]bool)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if entry.Name() == "manifests" || entry.Name() == "blobs" {
			continue
		}
		walkRoot(filepath.Join(root, entry.Name()), 0, false, &files, seen)
	}

	grouped := groupShards(files)
	models := make([]DiscoveredModel, 0, len(grouped))
	for _, f := range grouped {
		name := "ollama:" + strings.TrimSuffix(f.name, filepath.Ext(f.name))
		models = append(models, DiscoveredModel{
			Name:      name,
			Path:      f.path,
			SizeBytes: f.size,
			Family:    classifyFamily(f.path),
			ParamTag:  inferParamTag(f.name),
			QuantTag:  inferQuantTag(f.name),
		})
	}
	return models
}
