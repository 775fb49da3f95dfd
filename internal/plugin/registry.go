package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// InvalidManifest reports one manifest file discovery skipped.
type InvalidManifest struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// DiscoveryResult summarizes one discovery scan.
type DiscoveryResult struct {
	DiscoveredCount  int               `json:"discovered_count"`
	Plugins          []string          `json:"plugins"`
	InvalidManifests []InvalidManifest `json:"invalid_manifests"`
}

// ProviderVector pairs an attack vector with the provider that declared it,
// for the aggregate view across all registered providers.
type ProviderVector struct {
	ProviderID string       `json:"provider_id"`
	Vector     AttackVector `json:"vector"`
}

// Registry holds validated provider manifests keyed uniquely by providerId.
// First registration for a given id wins; discovery never overwrites.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	manifests map[string]*Manifest
	order     []string // registration order, for stable listings
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		manifests: make(map[string]*Manifest),
	}
}

// Register adds a validated manifest. Returns an error when the providerId
// is already registered.
func (r *Registry) Register(m *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.manifests[m.ProviderID]; exists {
		return types.NewError(types.PLUGIN_MANIFEST_INVALID,
			fmt.Sprintf("provider %s already registered", m.ProviderID))
	}

	r.manifests[m.ProviderID] = m
	r.order = append(r.order, m.ProviderID)
	return nil
}

// Discover scans the immediate subdirectories of dir for files matching the
// manifest naming convention, parses each as JSON, and validates the schema.
// Invalid or unparsable manifests are skipped and reported separately from
// valid ones, so a single bad file never aborts the scan. An already
// registered providerId is never re-registered.
func (r *Registry) Discover(dir string) (*DiscoveryResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.WrapError(types.PLUGIN_SCAN_FAILED,
			fmt.Sprintf("cannot read plugin directory %s", dir), err)
	}

	result := &DiscoveryResult{
		Plugins:          []string{},
		InvalidManifests: []InvalidManifest{},
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		subdir := filepath.Join(dir, entry.Name())
		files, err := os.ReadDir(subdir)
		if err != nil {
			result.InvalidManifests = append(result.InvalidManifests, InvalidManifest{
				Path:   subdir,
				Reason: fmt.Sprintf("unreadable directory: %v", err),
			})
			continue
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ManifestSuffix) {
				continue
			}

			path := filepath.Join(subdir, file.Name())
			manifest, reason := r.loadManifest(path)
			if manifest == nil {
				result.InvalidManifests = append(result.InvalidManifests, InvalidManifest{
					Path:   path,
					Reason: reason,
				})
				continue
			}

			if err := r.Register(manifest); err != nil {
				// First registration wins; a duplicate id is reported,
				// not an error for the scan.
				result.InvalidManifests = append(result.InvalidManifests, InvalidManifest{
					Path:   path,
					Reason: fmt.Sprintf("provider %s already registered", manifest.ProviderID),
				})
				continue
			}

			result.DiscoveredCount++
			result.Plugins = append(result.Plugins, manifest.ProviderID)
		}
	}

	sort.Strings(result.Plugins)
	return result, nil
}

// loadManifest reads and parses one manifest file, returning a skip reason
// instead of an error so discovery keeps scanning.
func (r *Registry) loadManifest(path string) (*Manifest, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Sprintf("unreadable file: %v", err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err.Error()
	}

	return manifest, ""
}

// Get retrieves a registered manifest by provider id.
func (r *Registry) Get(providerID string) (*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	manifest, exists := r.manifests[providerID]
	if !exists {
		return nil, types.NewError(types.PLUGIN_NOT_FOUND,
			fmt.Sprintf("provider %s not registered", providerID))
	}
	return manifest, nil
}

// List returns all registered manifests in registration order.
func (r *Registry) List() []*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Manifest, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.manifests[id])
	}
	return out
}

// AllVectors returns the aggregate view of every attack vector across all
// registered providers, in registration order. The mission orchestrator
// uses this to offer "any available vector for this provider".
func (r *Registry) AllVectors() []ProviderVector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ProviderVector
	for _, id := range r.order {
		for _, v := range r.manifests[id].AttackVectors {
			out = append(out, ProviderVector{ProviderID: id, Vector: v})
		}
	}
	return out
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.manifests)
}
