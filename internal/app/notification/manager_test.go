package notification

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatobus/tunebox/internal/domain/track"
)

type recordingStream struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (s *recordingStream) Send(e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingStream) received() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestManager_BroadcastReachesAllSubscribers(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{}
	m.Subscribe(a)
	m.Subscribe(b)
	require.Equal(t, 2, m.SubscriberCount())

	m.NowPlaying("guild-1", "channel-1", track.Track{Title: "Song", Author: "Artist"}, true)

	for _, s := range []*recordingStream{a, b} {
		events := s.received()
		require.Len(t, events, 1)
		assert.Equal(t, EventNowPlaying, events[0].Kind)
		assert.Equal(t, "guild-1", events[0].Tenant)
		assert.Equal(t, "Song", events[0].Track.Title)
		assert.True(t, events[0].Replay)
	}
}

func TestManager_SequenceNumbersIncrease(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe(s)

	m.QueueFinished("guild-1", "channel-1")
	m.PlaybackError("guild-1", "channel-1", track.Track{Title: "Broken"}, errors.New("load failed"))

	events := s.received()
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].SequenceNo)
	assert.Equal(t, uint64(2), events[1].SequenceNo)
	assert.Equal(t, EventQueueFinished, events[0].Kind)
	assert.Equal(t, EventPlaybackError, events[1].Kind)
	assert.Equal(t, "load failed", events[1].Error)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe(s)

	m.Unsubscribe(id)
	assert.Equal(t, 0, m.SubscriberCount())

	m.QueueFinished("guild-1", "channel-1")
	assert.Empty(t, s.received())
}

func TestManager_FailingSubscriberDoesNotBlockOthers(t *testing.T) {
	m := NewManager()
	failing := &recordingStream{err: errors.New("gone")}
	healthy := &recordingStream{}
	m.Subscribe(failing)
	m.Subscribe(healthy)

	m.QueueFinished("guild-1", "channel-1")
	assert.Len(t, healthy.received(), 1)
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{})
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}
