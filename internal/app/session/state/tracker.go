package state

import (
	"sync"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// AuthorRecorder receives the author of every track that becomes current.
type AuthorRecorder interface {
	RecordAuthor(tenant, author string)
}

// tenantState is the full per-tenant record. Every field is
// default-initialized when the record is created, so no operation ever
// needs to test for a missing flag map.
type tenantState struct {
	current    track.Track
	hasCurrent bool
	phase      Phase
	replay     bool
	skip       bool
	channel    string
}

// Tracker tracks the current-track slot, replay mode, the skip-in-progress
// flag and the bound text channel for each tenant.
type Tracker struct {
	mu       sync.RWMutex
	tenants  map[string]*tenantState
	recorder AuthorRecorder
}

// NewTracker creates a tracker. The recorder receives authors of tracks
// that become current; it may be nil.
func NewTracker(recorder AuthorRecorder) *Tracker {
	return &Tracker{
		tenants:  make(map[string]*tenantState),
		recorder: recorder,
	}
}

func (t *Tracker) state(tenant string) *tenantState {
	s, ok := t.tenants[tenant]
	if !ok {
		s = &tenantState{phase: PhaseIdle}
		t.tenants[tenant] = s
	}
	return s
}

// SetCurrent records the tenant's current track and appends its author
// to the play history.
func (t *Tracker) SetCurrent(tenant string, tr track.Track) {
	t.mu.Lock()
	s := t.state(tenant)
	s.current = tr
	s.hasCurrent = true
	s.phase = PhasePlaying
	t.mu.Unlock()

	if t.recorder != nil && tr.Author != "" {
		t.recorder.RecordAuthor(tenant, tr.Author)
	}
}

// ClearCurrent empties the tenant's current-track slot.
func (t *Tracker) ClearCurrent(tenant string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(tenant)
	s.current = track.Track{}
	s.hasCurrent = false
}

// Current returns the tenant's current track, if any.
func (t *Tracker) Current(tenant string) (track.Track, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.tenants[tenant]
	if !ok || !s.hasCurrent {
		return track.Track{}, false
	}
	return s.current, true
}

// Phase returns the tenant's playback phase.
func (t *Tracker) Phase(tenant string) Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.tenants[tenant]
	if !ok {
		return PhaseIdle
	}
	return s.phase
}

// SetPhase sets the tenant's playback phase.
func (t *Tracker) SetPhase(tenant string, p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(tenant).phase = p
}

// SetReplay sets the tenant's replay flag.
func (t *Tracker) SetReplay(tenant string, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(tenant).replay = enabled
}

// Replay returns the tenant's replay flag.
func (t *Tracker) Replay(tenant string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.tenants[tenant]
	return ok && s.replay
}

// ToggleReplay flips the replay flag and returns the new value.
func (t *Tracker) ToggleReplay(tenant string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(tenant)
	s.replay = !s.replay
	return s.replay
}

// SetSkipInProgress marks that a skip was requested. Must be set before
// the engine stop is issued so the resulting track-end is interpreted
// as a skip.
func (t *Tracker) SetSkipInProgress(tenant string, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(tenant).skip = v
}

// ConsumeSkip reads and resets the skip flag in one step.
// At-most-once semantics: a skip is consumed by exactly one track-end and
// can never bleed into a later, unrelated one.
func (t *Tracker) ConsumeSkip(tenant string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(tenant)
	v := s.skip
	s.skip = false
	return v
}

// BindChannel records the tenant's output text channel.
func (t *Tracker) BindChannel(tenant, channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(tenant).channel = channel
}

// Channel returns the tenant's bound text channel, or empty.
func (t *Tracker) Channel(tenant string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.tenants[tenant]
	if !ok {
		return ""
	}
	return s.channel
}

// Purge removes the tenant's state record.
// Caller must hold the tenant's lock; used only during tenant teardown.
func (t *Tracker) Purge(tenant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tenants, tenant)
}
