// Package preset holds the immutable launch preset catalog and the pure
// composition of effective launch configs from presets plus caller overrides.
package preset

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"appboot/internal/domain"
)

// Registry is the catalog of launch presets. Entries are value objects:
// Register stores a clone and Resolve hands out a fresh clone, so no caller
// ever holds a mutable reference into the catalog.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]*domain.LaunchPreset
	logger  *slog.Logger
}

// NewRegistry creates a Registry pre-populated with the built-in catalog.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		presets: make(map[string]*domain.LaunchPreset),
		logger:  logger,
	}
	for _, p := range builtinPresets() {
		// Built-ins are constructed fresh by builtinPresets, no clone needed.
		r.presets[p.ID] = p
	}
	return r
}

// Register adds a preset to the catalog. Duplicate or empty ids are
// rejected; the stored copy is a clone of the argument.
func (r *Registry) Register(p *domain.LaunchPreset) error {
	if p == nil || p.ID == "" {
		return domain.NewDomainError("Registry.Register", domain.ErrInvalidInput, "preset id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.presets[p.ID]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrInvalidInput,
			fmt.Sprintf("preset %q already registered", p.ID))
	}
	r.presets[p.ID] = p.Clone()
	if r.logger != nil {
		r.logger.Debug("preset registered", "id", p.ID, "version", p.Version)
	}
	return nil
}

// Resolve returns a clone of the named preset. Unknown ids fail with
// INVALID_INPUT listing every known id.
func (r *Registry) Resolve(id string) (*domain.LaunchPreset, error) {
	r.mu.RLock()
	p, ok := r.presets[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewDomainError("Registry.Resolve", domain.ErrInvalidInput,
			fmt.Sprintf("unknown preset %q (known: %s)", id, strings.Join(r.IDs(), ", ")))
	}
	return p.Clone(), nil
}

// IDs returns all known preset ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.presets))
	for id := range r.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns clones of every preset, ordered by id.
func (r *Registry) List() []*domain.LaunchPreset {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.LaunchPreset, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.presets[id].Clone())
	}
	return out
}
