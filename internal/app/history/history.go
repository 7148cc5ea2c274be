// Package history provides play-history tracking and author-frequency
// recommendation sampling.
package history

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// DefaultMaxSize is the default bound for both the play history and the
// recommendation-dedup history.
const DefaultMaxSize = 100

// Engine keeps a bounded per-tenant log of played authors and a bounded
// log of already-recommended tracks, and samples authors for
// recommendation fetches.
type Engine struct {
	mu      sync.RWMutex
	maxSize int

	playHistory map[string][]string    // tenant -> author names, oldest first
	recHistory  map[string][]track.Key // tenant -> recommended (title, author) pairs
	recEnabled  map[string]bool
}

// NewEngine creates an engine with the given history bound.
// A non-positive bound falls back to DefaultMaxSize.
func NewEngine(maxSize int) *Engine {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Engine{
		maxSize:     maxSize,
		playHistory: make(map[string][]string),
		recHistory:  make(map[string][]track.Key),
		recEnabled:  make(map[string]bool),
	}
}

// RecordAuthor appends an author to the tenant's play history,
// evicting the oldest entries beyond the bound.
func (e *Engine) RecordAuthor(tenant, author string) {
	if author == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h := append(e.playHistory[tenant], author)
	if len(h) > e.maxSize {
		h = h[len(h)-e.maxSize:]
	}
	e.playHistory[tenant] = h
}

// History returns the tenant's play history, most-recent-last.
// A positive limit returns only the most recent entries.
func (e *Engine) History(tenant string, limit int) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h := e.playHistory[tenant]
	if limit > 0 && limit < len(h) {
		h = h[len(h)-limit:]
	}
	out := make([]string, len(h))
	copy(out, h)
	return out
}

// SampleAuthors returns up to limit distinct authors drawn uniformly at
// random from the tenant's play history. Frequency determines the
// eligibility universe (authors ranked by descending play count, ties by
// first occurrence), not the selection probability.
func (e *Engine) SampleAuthors(tenant string, limit int) []string {
	e.mu.RLock()
	h := e.playHistory[tenant]
	counts := make(map[string]int, len(h))
	firstSeen := make(map[string]int, len(h))
	for i, author := range h {
		if _, ok := counts[author]; !ok {
			firstSeen[author] = i
		}
		counts[author]++
	}
	e.mu.RUnlock()

	if len(counts) == 0 || limit <= 0 {
		return []string{}
	}

	distinct := make([]string, 0, len(counts))
	for author := range counts {
		distinct = append(distinct, author)
	}
	sort.SliceStable(distinct, func(i, j int) bool {
		if counts[distinct[i]] != counts[distinct[j]] {
			return counts[distinct[i]] > counts[distinct[j]]
		}
		return firstSeen[distinct[i]] < firstSeen[distinct[j]]
	})

	n := limit
	if n > len(distinct) {
		n = len(distinct)
	}

	sampled := make([]string, 0, n)
	for _, idx := range rand.Perm(len(distinct))[:n] {
		sampled = append(sampled, distinct[idx])
	}
	return sampled
}

// IsRecommended reports whether a track with the same (title, author)
// identity was already recommended to the tenant.
func (e *Engine) IsRecommended(tenant string, t track.Track) bool {
	key := t.DedupKey()

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, k := range e.recHistory[tenant] {
		if k == key {
			return true
		}
	}
	return false
}

// RecordRecommendation appends the track's identity to the tenant's
// recommendation history, evicting the oldest entries beyond the bound.
func (e *Engine) RecordRecommendation(tenant string, t track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := append(e.recHistory[tenant], t.DedupKey())
	if len(h) > e.maxSize {
		h = h[len(h)-e.maxSize:]
	}
	e.recHistory[tenant] = h
}

// ToggleRecommendations flips the tenant's recommendation flag and
// returns the new value.
func (e *Engine) ToggleRecommendations(tenant string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recEnabled[tenant] = !e.recEnabled[tenant]
	return e.recEnabled[tenant]
}

// Enabled reports whether recommendations are enabled for the tenant.
// Defaults to false.
func (e *Engine) Enabled(tenant string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recEnabled[tenant]
}

// Purge removes all history state for the tenant.
// Caller must hold the tenant's lock; used only during tenant teardown.
func (e *Engine) Purge(tenant string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.playHistory, tenant)
	delete(e.recHistory, tenant)
	delete(e.recEnabled, tenant)
}
