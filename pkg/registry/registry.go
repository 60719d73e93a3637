// Package registry merges manually-registered models with auto-discovered
// ones into a single name-addressable catalog, and resolves a name into a
// fully-specified load request.
package registry

import (
	"sort"
	"sync"

	"github.com/localforge/shimmy/pkg/discovery"
	"github.com/localforge/shimmy/pkg/templates"
)

// defaultDiscoveredContextLength is used when a ModelSpec is resolved from
// a discovered-only entry, which carries no explicit context length.
const defaultDiscoveredContextLength = 4096

// ModelEntry is one catalog row: a named model and everything needed to
// load it, short of the defaults a ModelSpec fills in.
type ModelEntry struct {
	Name          string
	BasePath      string
	AdapterPath   string
	Template      string
	ContextLength int // 0 means unset
	Threads       int // 0 means unset
}

// ModelSpec is the fully-resolved load request derived from a ModelEntry.
type ModelSpec struct {
	Name          string
	BasePath      string
	AdapterPath   string
	Template      string
	ContextLength int
	Threads       int // 0 means "caller default applies"
}

// Registry maps names to manual ModelEntry rows and to DiscoveredModel
// records, and resolves either into a ModelSpec.
type Registry struct {
	mu         sync.RWMutex
	manual     map[string]ModelEntry
	discovered map[string]discovery.DiscoveredModel
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		manual:     make(map[string]ModelEntry),
		discovered: make(map[string]discovery.DiscoveredModel),
	}
}

// Register adds or replaces a manual entry.
func (r *Registry) Register(entry ModelEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manual[entry.Name] = entry
}

// SetDiscovered replaces the full set of discovered models, typically after
// a discovery pass.
func (r *Registry) SetDiscovered(models []discovery.DiscoveredModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovered = make(map[string]discovery.DiscoveredModel, len(models))
	for _, m := range models {
		r.discovered[m.Name] = m
	}
}

// ToSpec resolves name into a ModelSpec, consulting manual entries first
// and falling back to discovered ones. Discovered-only resolutions default
// ContextLength to 4096 and leave Threads unset.
func (r *Registry) ToSpec(name string) (ModelSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.manual[name]; ok {
		return ModelSpec{
			Name:          entry.Name,
			BasePath:      entry.BasePath,
			AdapterPath:   entry.AdapterPath,
			Template:      entry.Template,
			ContextLength: entry.ContextLength,
			Threads:       entry.Threads,
		}, true
	}

	if dm, ok := r.discovered[name]; ok {
		return ModelSpec{
			Name:          dm.Name,
			BasePath:      dm.Path,
			AdapterPath:   dm.AdapterPath,
			Template:      templates.InferTemplateName(dm.Name),
			ContextLength: defaultDiscoveredContextLength,
		}, true
	}

	return ModelSpec{}, false
}

// List returns the manual entries, sorted by name.
func (r *Registry) List() []ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModelEntry, 0, len(r.manual))
	for _, e := range r.manual {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAllAvailable returns the union of manual and discovered names,
// deduplicated and sorted.
func (r *Registry) ListAllAvailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.manual)+len(r.discovered))
	for name := range r.manual {
		seen[name] = true
	}
	for name := range r.discovered {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AutoRegisterDiscovered promotes every DiscoveredModel into a manual
// ModelEntry whose template is inferred from the model name, unless a
// manual entry of that name already exists. Running it twice in a row
// yields the same manual-entry set as running it once: existing manual
// entries (including ones from a prior auto-registration) are left alone.
func (r *Registry) AutoRegisterDiscovered() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, dm := range r.discovered {
		if _, exists := r.manual[name]; exists {
			continue
		}
		r.manual[name] = ModelEntry{
			Name:          dm.Name,
			BasePath:      dm.Path,
			AdapterPath:   dm.AdapterPath,
			Template:      templates.InferTemplateName(dm.Name),
			ContextLength: defaultDiscoveredContextLength,
		}
	}
}
