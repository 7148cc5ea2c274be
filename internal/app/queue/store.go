// Package queue provides the per-tenant pending-track store.
package queue

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hatobus/tunebox/internal/app/locker"
	"github.com/hatobus/tunebox/internal/domain/track"
)

// Store manages one ordered pending-track sequence per tenant.
// Every mutating operation runs under the tenant's exclusive lock, so no
// two mutations for the same tenant ever interleave. Different tenants
// never block each other.
type Store struct {
	mu     sync.RWMutex
	queues map[string][]track.Track
	locks  *locker.Registry
}

// NewStore creates a queue store using the given lock registry.
func NewStore(locks *locker.Registry) *Store {
	return &Store{
		queues: make(map[string][]track.Track),
		locks:  locks,
	}
}

// PushBack appends a track to the tail of the tenant's queue.
func (s *Store) PushBack(tenant string, t track.Track) {
	_ = s.locks.RunExclusive(tenant, func() error {
		s.push(tenant, []track.Track{t}, false)
		return nil
	})
}

// PushFront inserts a track at the head of the tenant's queue.
func (s *Store) PushFront(tenant string, t track.Track) {
	_ = s.locks.RunExclusive(tenant, func() error {
		s.push(tenant, []track.Track{t}, true)
		return nil
	})
}

// PushBackMany appends tracks preserving their order.
func (s *Store) PushBackMany(tenant string, tracks []track.Track) {
	_ = s.locks.RunExclusive(tenant, func() error {
		s.push(tenant, tracks, false)
		return nil
	})
}

// PushFrontMany inserts tracks at the head preserving their relative
// order: after the call the first input track is the new queue head.
func (s *Store) PushFrontMany(tenant string, tracks []track.Track) {
	_ = s.locks.RunExclusive(tenant, func() error {
		s.push(tenant, tracks, true)
		return nil
	})
}

func (s *Store) push(tenant string, tracks []track.Track, toFront bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[tenant]
	if toFront {
		merged := make([]track.Track, 0, len(tracks)+len(q))
		merged = append(merged, tracks...)
		merged = append(merged, q...)
		q = merged
	} else {
		q = append(q, tracks...)
	}
	s.queues[tenant] = q
}

// PopFront removes and returns the head of the queue.
// Returns false if the queue is empty.
func (s *Store) PopFront(tenant string) (track.Track, bool) {
	var t track.Track
	var ok bool
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		q := s.queues[tenant]
		if len(q) == 0 {
			return nil
		}
		t, ok = q[0], true
		s.queues[tenant] = q[1:]
		return nil
	})
	return t, ok
}

// RemoveAt removes the track at the given index.
// An out-of-range index is a no-op returning false, not an error.
func (s *Store) RemoveAt(tenant string, index int) (track.Track, bool) {
	var t track.Track
	var ok bool
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		q := s.queues[tenant]
		if index < 0 || index >= len(q) {
			return nil
		}
		t, ok = q[index], true
		next := make([]track.Track, 0, len(q)-1)
		next = append(next, q[:index]...)
		next = append(next, q[index+1:]...)
		s.queues[tenant] = next
		return nil
	})
	return t, ok
}

// Move relocates a track from one position to another.
// Returns false without mutating if either index is out of bounds.
func (s *Store) Move(tenant string, from, to int) bool {
	moved := false
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		q := s.queues[tenant]
		if from < 0 || from >= len(q) || to < 0 || to >= len(q) {
			return nil
		}
		t := q[from]
		rest := make([]track.Track, 0, len(q)-1)
		rest = append(rest, q[:from]...)
		rest = append(rest, q[from+1:]...)

		next := make([]track.Track, 0, len(q))
		next = append(next, rest[:to]...)
		next = append(next, t)
		next = append(next, rest[to:]...)
		s.queues[tenant] = next
		moved = true
		return nil
	})
	return moved
}

// Shuffle applies a uniform random permutation to the queue.
// Returns false without mutating if the queue has fewer than two tracks.
func (s *Store) Shuffle(tenant string) bool {
	shuffled := false
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		q := s.queues[tenant]
		if len(q) < 2 {
			return nil
		}
		rand.Shuffle(len(q), func(i, j int) {
			q[i], q[j] = q[j], q[i]
		})
		shuffled = true
		return nil
	})
	return shuffled
}

// Items returns a snapshot copy of the queue, safe to iterate without
// holding the tenant lock.
func (s *Store) Items(tenant string) []track.Track {
	var items []track.Track
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()

		q := s.queues[tenant]
		items = make([]track.Track, len(q))
		copy(items, q)
		return nil
	})
	return items
}

// Peek returns the track at the given index without removing it.
func (s *Store) Peek(tenant string, index int) (track.Track, bool) {
	var t track.Track
	var ok bool
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()

		q := s.queues[tenant]
		if index < 0 || index >= len(q) {
			return nil
		}
		t, ok = q[index], true
		return nil
	})
	return t, ok
}

// Len returns the number of pending tracks.
func (s *Store) Len(tenant string) int {
	n := 0
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		n = len(s.queues[tenant])
		return nil
	})
	return n
}

// TotalDuration returns the summed duration of all pending tracks.
func (s *Store) TotalDuration(tenant string) time.Duration {
	var total time.Duration
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, t := range s.queues[tenant] {
			total += t.Duration
		}
		return nil
	})
	return total
}

// FindIndex returns the index of the first track matching the predicate,
// or -1 if no track matches.
func (s *Store) FindIndex(tenant string, pred func(track.Track) bool) int {
	idx := -1
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for i, t := range s.queues[tenant] {
			if pred(t) {
				idx = i
				return nil
			}
		}
		return nil
	})
	return idx
}

// Contains reports whether a track with the same dedup key is pending.
func (s *Store) Contains(tenant string, t track.Track) bool {
	key := t.DedupKey()
	return s.FindIndex(tenant, func(q track.Track) bool {
		return q.DedupKey() == key
	}) >= 0
}

// Clear removes all pending tracks for the tenant.
func (s *Store) Clear(tenant string) {
	_ = s.locks.RunExclusive(tenant, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.queues, tenant)
		return nil
	})
}

// Purge removes the tenant's queue entirely.
// Caller must hold the tenant's lock; used only during tenant teardown.
func (s *Store) Purge(tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, tenant)
}
