package dispatch

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// Registry maps view identifiers stored on pages to gin handlers.
type Registry struct {
	mu    sync.RWMutex
	views map[string]gin.HandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: map[string]gin.HandlerFunc{}}
}

// Register binds name to h, replacing any earlier binding.
func (r *Registry) Register(name string, h gin.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[name] = h
}

// Lookup returns the handler bound to name.
func (r *Registry) Lookup(name string) (gin.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.views[name]
	return h, ok
}

// Names lists the registered identifiers in order, for the admin view picker.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.views))
	for name := range r.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
