// Package registry provides thread-safe registries for per-tenant
// session resources.
package registry

import (
	"sync"

	"github.com/hatobus/tunebox/internal/app/player"
)

// EngineRegistry manages engine session handles with thread-safe access.
// One handle per tenant, bound when the voice connection is established
// and removed at teardown.
type EngineRegistry struct {
	mu      sync.RWMutex
	engines map[string]player.Engine
}

// NewEngineRegistry creates a new engine registry.
func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{
		engines: make(map[string]player.Engine),
	}
}

// Bind registers the engine handle for a tenant, replacing any previous one.
func (r *EngineRegistry) Bind(tenant string, eng player.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[tenant] = eng
}

// Get retrieves a tenant's engine handle.
func (r *EngineRegistry) Get(tenant string) (player.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eng, ok := r.engines[tenant]
	return eng, ok
}

// Remove unbinds and returns a tenant's engine handle.
func (r *EngineRegistry) Remove(tenant string) (player.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, ok := r.engines[tenant]
	delete(r.engines, tenant)
	return eng, ok
}

// Tenants returns all tenants with a bound engine.
func (r *EngineRegistry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenants := make([]string, 0, len(r.engines))
	for tenant := range r.engines {
		tenants = append(tenants, tenant)
	}
	return tenants
}

// Count returns the number of bound engines.
func (r *EngineRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}
