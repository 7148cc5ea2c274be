package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatobus/tunebox/internal/app/history"
	"github.com/hatobus/tunebox/internal/app/locker"
	"github.com/hatobus/tunebox/internal/app/queue"
	"github.com/hatobus/tunebox/internal/app/session/state"
	"github.com/hatobus/tunebox/internal/domain/track"
)

const tenant = "guild-1"

// fakeEngine is an in-memory engine session for coordinator tests.
type fakeEngine struct {
	mu           sync.Mutex
	connected    bool
	played       []track.Track
	playErrs     map[string]error // title -> error
	stops        int
	disconnects  int
	fetchResults map[string][]track.Track // query -> results
	fetchErr     error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		connected:    true,
		playErrs:     make(map[string]error),
		fetchResults: make(map[string][]track.Track),
	}
}

func (e *fakeEngine) FetchTracks(_ context.Context, query string, _ SearchKind) (FetchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fetchErr != nil {
		return FetchResult{}, e.fetchErr
	}
	return FetchResult{Tracks: e.fetchResults[query]}, nil
}

func (e *fakeEngine) Play(_ context.Context, t track.Track) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.playErrs[t.Title]; ok {
		return err
	}
	e.played = append(e.played, t)
	return nil
}

func (e *fakeEngine) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	return nil
}

func (e *fakeEngine) Pause(context.Context) error  { return nil }
func (e *fakeEngine) Resume(context.Context) error { return nil }

func (e *fakeEngine) SetVolume(context.Context, int) error { return nil }

func (e *fakeEngine) Disconnect(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnects++
	e.connected = false
	return nil
}

func (e *fakeEngine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *fakeEngine) Position() time.Duration { return 0 }

func (e *fakeEngine) playedTitles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.played))
	for i, t := range e.played {
		out[i] = t.Title
	}
	return out
}

// recordingNotifier captures notifier calls.
type recordingNotifier struct {
	nowPlaying []track.Track
	playErrs   []track.Track
	finished   int
}

func (n *recordingNotifier) NowPlaying(_, _ string, t track.Track, _ bool) {
	n.nowPlaying = append(n.nowPlaying, t)
}

func (n *recordingNotifier) PlaybackError(_, _ string, t track.Track, _ error) {
	n.playErrs = append(n.playErrs, t)
}

func (n *recordingNotifier) QueueFinished(_, _ string) { n.finished++ }

type fixture struct {
	queue    *queue.Store
	tracker  *state.Tracker
	history  *history.Engine
	notifier *recordingNotifier
	coord    *Coordinator
	engine   *fakeEngine
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	locks := locker.NewRegistry()
	h := history.NewEngine(0)
	q := queue.NewStore(locks)
	tr := state.NewTracker(h)
	n := &recordingNotifier{}
	return &fixture{
		queue:    q,
		tracker:  tr,
		history:  h,
		notifier: n,
		coord:    NewCoordinator(q, tr, h, nil, n, cfg),
		engine:   newFakeEngine(),
	}
}

func testTrack(title, author string) track.Track {
	return track.Track{Title: title, Author: author, Duration: time.Minute, URI: "uri-" + title}
}

func TestCoordinator_TrackEndAdvancesQueue(t *testing.T) {
	f := newFixture(t, Config{})
	f.tracker.SetCurrent(tenant, testTrack("current", "x"))
	f.queue.PushBackMany(tenant, []track.Track{testTrack("A", "x"), testTrack("B", "x")})

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, testTrack("current", "x"), ReasonFinished)

	assert.Equal(t, []string{"A"}, f.engine.playedTitles())
	assert.Equal(t, 1, f.queue.Len(tenant))
	assert.Equal(t, state.PhasePlaying, f.tracker.Phase(tenant))

	_, ok := f.tracker.Current(tenant)
	assert.False(t, ok, "current is cleared until the engine signals track-start")
}

func TestCoordinator_ReplayReissuesSameTrack(t *testing.T) {
	f := newFixture(t, Config{})
	current := testTrack("loop me", "x")
	f.tracker.SetCurrent(tenant, current)
	f.tracker.SetReplay(tenant, true)
	f.queue.PushBack(tenant, testTrack("A", "x"))

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, current, ReasonFinished)

	// The exact resolved track is replayed; the queue is untouched.
	assert.Equal(t, []string{"loop me"}, f.engine.playedTitles())
	assert.Equal(t, 1, f.queue.Len(tenant))

	got, ok := f.tracker.Current(tenant)
	require.True(t, ok)
	assert.Equal(t, current, got)
}

func TestCoordinator_SkipBypassesReplayExactlyOnce(t *testing.T) {
	f := newFixture(t, Config{})
	first := testTrack("first", "x")
	f.tracker.SetCurrent(tenant, first)
	f.tracker.SetReplay(tenant, true)
	f.queue.PushBackMany(tenant, []track.Track{testTrack("A", "x"), testTrack("B", "x")})

	skipped, err := f.coord.Skip(context.Background(), tenant, f.engine)
	require.NoError(t, err)
	assert.Equal(t, first, skipped)
	assert.Equal(t, 1, f.engine.stops)

	// The stop triggers a track-end: replay must be bypassed.
	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, first, ReasonStopped)
	assert.Equal(t, []string{"A"}, f.engine.playedTitles())

	// A later, unrelated track-end sees replay again.
	f.coord.OnTrackStart(context.Background(), tenant, f.engine, testTrack("A", "x"))
	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, testTrack("A", "x"), ReasonFinished)
	assert.Equal(t, []string{"A", "A"}, f.engine.playedTitles())
}

func TestCoordinator_SkipWithoutCurrent(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.coord.Skip(context.Background(), tenant, f.engine)
	assert.ErrorIs(t, err, ErrNoTrack)
	assert.Equal(t, 0, f.engine.stops)
}

func TestCoordinator_ReplayFailureFallsThroughToAdvance(t *testing.T) {
	f := newFixture(t, Config{})
	current := testTrack("broken", "x")
	f.tracker.SetCurrent(tenant, current)
	f.tracker.SetReplay(tenant, true)
	f.engine.playErrs["broken"] = errors.New("load failed")
	f.queue.PushBack(tenant, testTrack("A", "x"))

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, current, ReasonFinished)

	assert.Equal(t, []string{"A"}, f.engine.playedTitles())
}

func TestCoordinator_PlayFailureRetriesNextTrack(t *testing.T) {
	f := newFixture(t, Config{})
	f.tracker.SetCurrent(tenant, testTrack("current", "x"))
	f.queue.PushBackMany(tenant, []track.Track{
		testTrack("bad", "x"), testTrack("good", "x"),
	})
	f.engine.playErrs["bad"] = errors.New("decode error")

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, testTrack("current", "x"), ReasonFinished)

	assert.Equal(t, []string{"good"}, f.engine.playedTitles())
	require.Len(t, f.notifier.playErrs, 1)
	assert.Equal(t, "bad", f.notifier.playErrs[0].Title)
}

func TestCoordinator_AllTracksFailingDisconnects(t *testing.T) {
	f := newFixture(t, Config{})
	f.tracker.SetCurrent(tenant, testTrack("current", "x"))
	f.queue.PushBackMany(tenant, []track.Track{
		testTrack("bad1", "x"), testTrack("bad2", "x"),
	})
	f.engine.playErrs["bad1"] = errors.New("boom")
	f.engine.playErrs["bad2"] = errors.New("boom")

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, testTrack("current", "x"), ReasonFinished)

	assert.Empty(t, f.engine.playedTitles())
	assert.Equal(t, 1, f.engine.disconnects)
	assert.Equal(t, 1, f.notifier.finished)
	assert.Equal(t, state.PhaseIdle, f.tracker.Phase(tenant))
	assert.Equal(t, 0, f.queue.Len(tenant))
}

func TestCoordinator_EmptyQueueDisconnects(t *testing.T) {
	f := newFixture(t, Config{})
	f.tracker.SetCurrent(tenant, testTrack("last", "x"))

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, testTrack("last", "x"), ReasonFinished)

	assert.Equal(t, 1, f.engine.disconnects)
	assert.Equal(t, 1, f.notifier.finished)
	assert.Equal(t, state.PhaseIdle, f.tracker.Phase(tenant))
}

func TestCoordinator_DisconnectedEngineClearsQueue(t *testing.T) {
	f := newFixture(t, Config{})
	f.tracker.SetCurrent(tenant, testTrack("current", "x"))
	f.queue.PushBack(tenant, testTrack("A", "x"))
	f.engine.connected = false

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, testTrack("current", "x"), ReasonFinished)

	assert.Equal(t, 0, f.queue.Len(tenant))
	assert.Equal(t, state.PhaseIdle, f.tracker.Phase(tenant))
	assert.Empty(t, f.engine.playedTitles())
}

func TestCoordinator_ReplacedEndIsIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	current := testTrack("current", "x")
	f.tracker.SetCurrent(tenant, current)
	f.queue.PushBack(tenant, testTrack("A", "x"))

	f.coord.OnTrackEnd(context.Background(), tenant, f.engine, current, ReasonReplaced)

	assert.Empty(t, f.engine.playedTitles())
	got, ok := f.tracker.Current(tenant)
	require.True(t, ok)
	assert.Equal(t, current, got)
}

func TestCoordinator_OnTrackStartRecordsAndNotifies(t *testing.T) {
	f := newFixture(t, Config{})
	f.tracker.BindChannel(tenant, "chan-1")

	started := testTrack("Song 1", "Artist 1")
	f.coord.OnTrackStart(context.Background(), tenant, f.engine, started)

	got, ok := f.tracker.Current(tenant)
	require.True(t, ok)
	assert.Equal(t, started, got)
	assert.Equal(t, []string{"Artist 1"}, f.history.History(tenant, 0))
	require.Len(t, f.notifier.nowPlaying, 1)
	assert.Equal(t, started, f.notifier.nowPlaying[0])
}

func TestCoordinator_RecommendationInjection(t *testing.T) {
	f := newFixture(t, Config{SampleAuthors: 1, MaxRecommendations: 10})
	f.history.ToggleRecommendations(tenant)
	for i := 0; i < 3; i++ {
		f.history.RecordAuthor(tenant, "Artist 1")
	}
	f.engine.fetchResults["Artist 1 music"] = []track.Track{
		testTrack("Deep Cut", "Artist 1"),
		testTrack("Another", "Artist 1"),
	}

	f.coord.OnTrackStart(context.Background(), tenant, f.engine, testTrack("Song", "Artist 1"))

	// First acceptable result per author is queued and remembered.
	items := f.queue.Items(tenant)
	require.Len(t, items, 1)
	assert.Equal(t, "Deep Cut", items[0].Title)
	assert.True(t, f.history.IsRecommended(tenant, items[0]))

	// Re-triggering skips what was already recommended.
	f.queue.Clear(tenant)
	f.coord.OnTrackStart(context.Background(), tenant, f.engine, testTrack("Song", "Artist 1"))
	items = f.queue.Items(tenant)
	require.Len(t, items, 1)
	assert.Equal(t, "Another", items[0].Title)
}

func TestCoordinator_RecommendationSkippedWhenQueueDeep(t *testing.T) {
	f := newFixture(t, Config{})
	f.history.ToggleRecommendations(tenant)
	f.history.RecordAuthor(tenant, "Artist 1")
	f.engine.fetchResults["Artist 1 music"] = []track.Track{testTrack("Deep Cut", "Artist 1")}
	f.queue.PushBackMany(tenant, []track.Track{testTrack("A", "x"), testTrack("B", "x")})

	f.coord.OnTrackStart(context.Background(), tenant, f.engine, testTrack("Song", "Artist 1"))

	assert.Equal(t, 2, f.queue.Len(tenant), "no injection while the queue is deep enough")
}

func TestCoordinator_RecommendationSearchFailureSkipsAuthor(t *testing.T) {
	f := newFixture(t, Config{SampleAuthors: 5})
	f.history.ToggleRecommendations(tenant)
	f.history.RecordAuthor(tenant, "Artist 1")
	f.engine.fetchErr = errors.New("search backend down")

	// Must not panic or abort; the batch simply yields nothing.
	f.coord.OnTrackStart(context.Background(), tenant, f.engine, testTrack("Song", "Artist 1"))
	assert.Equal(t, 0, f.queue.Len(tenant))
}

type stubSearcher struct {
	results []track.Track
	queries []string
}

func (s *stubSearcher) SearchTracks(_ context.Context, query string, _ int) ([]track.Track, error) {
	s.queries = append(s.queries, query)
	return s.results, nil
}

func TestCoordinator_RecommendationFallbackSearcher(t *testing.T) {
	locks := locker.NewRegistry()
	h := history.NewEngine(0)
	q := queue.NewStore(locks)
	tr := state.NewTracker(h)
	fallback := &stubSearcher{results: []track.Track{testTrack("From Fallback", "Artist 1")}}
	coord := NewCoordinator(q, tr, h, fallback, nil, Config{SampleAuthors: 1})

	eng := newFakeEngine()
	eng.fetchErr = errors.New("engine search down")

	h.ToggleRecommendations(tenant)
	h.RecordAuthor(tenant, "Artist 1")

	coord.OnTrackStart(context.Background(), tenant, eng, testTrack("Song", "Artist 1"))

	items := q.Items(tenant)
	require.Len(t, items, 1)
	assert.Equal(t, "From Fallback", items[0].Title)
	assert.Equal(t, []string{"Artist 1 music"}, fallback.queries)
}

func TestCoordinator_EnsurePlaying(t *testing.T) {
	f := newFixture(t, Config{})

	// Nothing queued.
	assert.ErrorIs(t, f.coord.EnsurePlaying(context.Background(), tenant, f.engine), ErrQueueEmpty)

	// Queued, idle: plays the head.
	f.queue.PushBack(tenant, testTrack("A", "x"))
	require.NoError(t, f.coord.EnsurePlaying(context.Background(), tenant, f.engine))
	assert.Equal(t, []string{"A"}, f.engine.playedTitles())

	// Already playing: no-op.
	f.tracker.SetCurrent(tenant, testTrack("A", "x"))
	f.queue.PushBack(tenant, testTrack("B", "x"))
	require.NoError(t, f.coord.EnsurePlaying(context.Background(), tenant, f.engine))
	assert.Equal(t, []string{"A"}, f.engine.playedTitles())

	// Disconnected engine ends the session: rejected, queue cleared, idle.
	f.engine.connected = false
	assert.ErrorIs(t, f.coord.EnsurePlaying(context.Background(), tenant, f.engine), ErrNotConnected)
	assert.Equal(t, 0, f.queue.Len(tenant))
	assert.Equal(t, state.PhaseIdle, f.tracker.Phase(tenant))
}
