// Package locker provides per-tenant mutual exclusion handles.
package locker

import "sync"

// Registry issues one mutex per tenant key, created lazily.
// Locks for different tenants are fully independent: holding one never
// blocks operations on another.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{
		locks: make(map[string]*sync.Mutex),
	}
}

// Get returns the mutex for the given tenant, creating it on first use.
func (r *Registry) Get(tenant string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[tenant]
	if !ok {
		l = &sync.Mutex{}
		r.locks[tenant] = l
	}
	return l
}

// RunExclusive executes fn while holding the tenant's lock.
func (r *Registry) RunExclusive(tenant string, fn func() error) error {
	l := r.Get(tenant)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// Release removes the tenant's lock handle. Only safe during tenant
// teardown, after all pending operations for that tenant have drained.
// Returns false if no handle existed.
func (r *Registry) Release(tenant string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locks[tenant]; !ok {
		return false
	}
	delete(r.locks, tenant)
	return true
}

// Len returns the number of live lock handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
