// Package notification provides the notification manager for
// broadcasting playback events to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// EventKind identifies the kind of playback event.
type EventKind string

const (
	EventNowPlaying    EventKind = "now_playing"
	EventPlaybackError EventKind = "playback_error"
	EventQueueFinished EventKind = "queue_finished"
)

// Event is a playback notification delivered to subscribers. The
// gateway renders it into the tenant's bound text channel.
type Event struct {
	SequenceNo uint64
	Kind       EventKind
	Tenant     string
	Channel    string
	Track      track.Track
	Replay     bool
	Error      string
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Event) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting. It also
// implements the player notifier interface so the coordinator can emit
// events without knowing about subscribers.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// NowPlaying broadcasts a track-started event.
func (m *Manager) NowPlaying(tenant, channel string, t track.Track, replay bool) {
	m.Broadcast(&Event{
		Kind:    EventNowPlaying,
		Tenant:  tenant,
		Channel: channel,
		Track:   t,
		Replay:  replay,
	})
}

// PlaybackError broadcasts a play-failure event.
func (m *Manager) PlaybackError(tenant, channel string, t track.Track, err error) {
	event := &Event{
		Kind:    EventPlaybackError,
		Tenant:  tenant,
		Channel: channel,
		Track:   t,
	}
	if err != nil {
		event.Error = err.Error()
	}
	m.Broadcast(event)
}

// QueueFinished broadcasts a queue-exhausted event.
func (m *Manager) QueueFinished(tenant, channel string) {
	m.Broadcast(&Event{
		Kind:    EventQueueFinished,
		Tenant:  tenant,
		Channel: channel,
	})
}

// Broadcast sends an event to all subscribers.
// Each stream send is done in a goroutine with a timeout to prevent a
// slow subscriber from blocking the rest.
func (m *Manager) Broadcast(event *Event) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	event.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(event)
			}()

			select {
			case <-done:
				// Send errors are ignored; a dead subscriber is cleaned
				// up when it unsubscribes.
			case <-ctx.Done():
				// Timeout - continue to next subscriber
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
