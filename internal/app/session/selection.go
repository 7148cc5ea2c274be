package session

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/domain/track"
)

var (
	// ErrSelectionNotFound is returned when resolving an unknown or expired selection.
	ErrSelectionNotFound = errors.New("selection not found or expired")
	// ErrSelectionIndex is returned when the chosen index is out of range.
	ErrSelectionIndex = errors.New("selection index out of range")
)

// maxSelectionCandidates caps how many search hits a selection prompt offers.
const maxSelectionCandidates = 10

// Selection is a pending track-disambiguation prompt: a bounded list of
// search candidates waiting for the user to pick one.
type Selection struct {
	ID         string
	Tenant     string
	Candidates []track.Track
	ToFront    bool
	ExpiresAt  time.Time

	timer *time.Timer
}

// selectionTable tracks pending selections per tenant. A tenant has at
// most one pending selection; a new prompt supersedes the old one.
type selectionTable struct {
	mu      sync.Mutex
	pending map[string]*Selection
}

func newSelectionTable() *selectionTable {
	return &selectionTable{
		pending: make(map[string]*Selection),
	}
}

// create registers a pending selection and arms its expiry timer.
// onExpire runs once if the selection times out unresolved.
func (t *selectionTable) create(tenant string, candidates []track.Track, toFront bool, timeout time.Duration, onExpire func(tenant string)) *Selection {
	if len(candidates) > maxSelectionCandidates {
		candidates = candidates[:maxSelectionCandidates]
	}

	sel := &Selection{
		ID:         uuid.New().String(),
		Tenant:     tenant,
		Candidates: candidates,
		ToFront:    toFront,
		ExpiresAt:  time.Now().Add(timeout),
	}

	t.mu.Lock()
	if old, ok := t.pending[tenant]; ok {
		old.timer.Stop()
	}
	t.pending[tenant] = sel
	sel.timer = time.AfterFunc(timeout, func() {
		if t.expire(tenant, sel.ID) {
			zlog.Info().Msgf("selection expired: tenant=%s selection=%s", tenant, sel.ID)
			if onExpire != nil {
				onExpire(tenant)
			}
		}
	})
	t.mu.Unlock()

	return sel
}

// resolve consumes a pending selection and returns the chosen track.
func (t *selectionTable) resolve(tenant, selectionID string, index int) (track.Track, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sel, ok := t.pending[tenant]
	if !ok || sel.ID != selectionID {
		return track.Track{}, false, ErrSelectionNotFound
	}
	if index < 0 || index >= len(sel.Candidates) {
		return track.Track{}, false, ErrSelectionIndex
	}

	sel.timer.Stop()
	delete(t.pending, tenant)
	return sel.Candidates[index], sel.ToFront, nil
}

// expire removes a pending selection if it is still the one the timer
// was armed for. Reports whether anything was removed.
func (t *selectionTable) expire(tenant, selectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	sel, ok := t.pending[tenant]
	if !ok || sel.ID != selectionID {
		return false
	}
	delete(t.pending, tenant)
	return true
}

// purge drops any pending selection for the tenant.
func (t *selectionTable) purge(tenant string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sel, ok := t.pending[tenant]; ok {
		sel.timer.Stop()
		delete(t.pending, tenant)
	}
}
