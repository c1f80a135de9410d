package locator

import (
	"sort"
	"sync"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/models"
)

// Registry maps locator ids to locators. One registry is built per process
// and passed to the short URL client and the HTTP handlers.
type Registry struct {
	mu       sync.RWMutex
	locators map[string]Locator
}

// NewRegistry returns an empty registry. Use NewDefaultRegistry for one with
// the built-in locators.
func NewRegistry() *Registry {
	return &Registry{locators: make(map[string]Locator)}
}

// Register adds def to the registry. A second registration of the same id
// fails with DUPLICATE_LOCATOR_ID and leaves the first one in place.
func Register[S models.LocatorState](r *Registry, def Definition[S]) (Locator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := def.ID()
	if _, exists := r.locators[id]; exists {
		return nil, apperr.New(apperr.CodeDuplicateLocatorID, "Locator %q is already registered.", id)
	}

	l := typedLocator[S]{def: def}
	r.locators[id] = l
	return l, nil
}

// Get looks up a locator by id.
func (r *Registry) Get(id string) (Locator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.locators[id]
	return l, ok
}

// Decode turns raw JSON params into the state type of locator id.
func (r *Registry) Decode(id string, data []byte) (models.LocatorState, error) {
	l, ok := r.Get(id)
	if !ok {
		return nil, apperr.LocatorNotFound(id)
	}
	return l.Decode(data)
}

// IDs returns the registered locator ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.locators))
	for id := range r.locators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewDefaultRegistry returns a registry holding the built-in locators.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if _, err := Register[LegacyShortURLParams](r, LegacyShortURLDefinition{}); err != nil {
		return nil, err
	}
	if _, err := Register[DashboardParams](r, DashboardDefinition{}); err != nil {
		return nil, err
	}
	return r, nil
}
