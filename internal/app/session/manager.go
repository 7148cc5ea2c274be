// Package session provides the per-tenant session manager: the front
// door for user actions and playback-engine signals.
package session

import (
	"context"
	"math/rand"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/app/filter"
	"github.com/hatobus/tunebox/internal/app/history"
	"github.com/hatobus/tunebox/internal/app/library"
	"github.com/hatobus/tunebox/internal/app/locker"
	"github.com/hatobus/tunebox/internal/app/player"
	"github.com/hatobus/tunebox/internal/app/queue"
	"github.com/hatobus/tunebox/internal/app/session/registry"
	"github.com/hatobus/tunebox/internal/app/session/state"
	"github.com/hatobus/tunebox/internal/domain/playlist"
	"github.com/hatobus/tunebox/internal/domain/track"
	"github.com/hatobus/tunebox/internal/infra/config"
)

var (
	// ErrNoEngine is returned when a tenant has no connected engine session.
	ErrNoEngine = errors.New("no engine session for tenant")
	// ErrNoResults is returned when a query resolves to nothing playable.
	ErrNoResults = errors.New("no tracks found")
	// ErrNothingPlaying is returned by operations that require a current track.
	ErrNothingPlaying = errors.New("nothing is playing")
	// ErrInvalidVolume is returned for volumes outside 0..1000.
	ErrInvalidVolume = errors.New("volume must be between 0 and 1000")
	// ErrInvalidIndex is returned for queue indexes outside the queue bounds.
	ErrInvalidIndex = errors.New("queue index out of range")
)

// FilterRejectionError reports that an admission filter rejected a track.
type FilterRejectionError struct {
	Code  string
	Track track.Track
}

func (e *FilterRejectionError) Error() string {
	return "track rejected: " + e.Code
}

// PlayResult is the structured outcome of a play request: either tracks
// were queued directly, or the query produced multiple candidates and a
// selection prompt is pending.
type PlayResult struct {
	// Queued tracks, in queue order. Empty when a selection is pending.
	Queued []track.Track
	// Playlist is set when the query resolved to a whole playlist.
	Playlist *playlist.Playlist
	// Selection is set when the user must disambiguate between candidates.
	Selection *Selection
	// Position of the first queued track in the queue (1-based), 0 when
	// it started playing immediately or a selection is pending.
	Position int
}

// QueueSnapshot is a read-only view of a tenant's queue for rendering.
type QueueSnapshot struct {
	Items         []track.Track
	Length        int
	TotalDuration string
}

// NowPlayingInfo describes the current track for rendering.
type NowPlayingInfo struct {
	Track    track.Track
	Position string
	Duration string
	Replay   bool
}

// Manager composes the per-tenant components and exposes the operations
// the front end maps commands onto. All mutations of one tenant's state
// are serialized through the shared lock registry; different tenants
// never block each other.
type Manager struct {
	config *config.Config

	locks       *locker.Registry
	queue       *queue.Store
	tracker     *state.Tracker
	history     *history.Engine
	coordinator *player.Coordinator
	library     *library.Store
	selections  *selectionTable
	filters     *filter.Chain

	// Engine session handles, one per connected tenant.
	engines *registry.EngineRegistry
}

// NewManager creates a session manager. fallback and notifier may be nil.
func NewManager(cfg *config.Config, lib *library.Store, fallback player.Searcher, notifier player.Notifier) (*Manager, error) {
	locks := locker.NewRegistry()
	hist := history.NewEngine(cfg.History.MaxSize)
	trk := state.NewTracker(hist)
	q := queue.NewStore(locks)

	coord := player.NewCoordinator(q, trk, hist, fallback, notifier, player.Config{
		MaxRecommendations: cfg.Recommend.MaxPerTrigger,
		SampleAuthors:      cfg.Recommend.SampleAuthors,
	})

	filters, err := buildFilterChain(cfg, q)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build admission filter chain")
	}

	return &Manager{
		config:      cfg,
		locks:       locks,
		queue:       q,
		tracker:     trk,
		history:     hist,
		coordinator: coord,
		library:     lib,
		selections:  newSelectionTable(),
		filters:     filters,
		engines:     registry.NewEngineRegistry(),
	}, nil
}

// buildFilterChain assembles the enabled admission filters from config.
func buildFilterChain(cfg *config.Config, q *queue.Store) (*filter.Chain, error) {
	chain := filter.NewChain()

	if cfg.IsFilterEnabled("duplicate_track_filter") {
		f := filter.NewDuplicateTrackFilter(q)
		if err := f.ValidateConfig(cfg.Filters["duplicate_track_filter"].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", f.Name())
		}
		chain.Add(f)
	}
	if cfg.IsFilterEnabled("duration_limit_filter") {
		f := filter.NewDurationLimitFilter()
		if err := f.ValidateConfig(cfg.Filters["duration_limit_filter"].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", f.Name())
		}
		chain.Add(f)
	}

	return chain, nil
}

// admit runs the admission filters over candidate tracks and splits off
// the accepted ones. The first rejection is returned for reporting.
func (m *Manager) admit(ctx context.Context, tenant string, tracks []track.Track, source filter.Source) ([]track.Track, *FilterRejectionError) {
	accepted := make([]track.Track, 0, len(tracks))
	var firstRejection *FilterRejectionError

	for _, t := range tracks {
		result := m.filters.Execute(ctx, tenant, t, source)
		if result.Accepted {
			accepted = append(accepted, t)
			continue
		}
		zlog.Debug().Msgf("track rejected by filter: tenant=%s title=%q code=%s", tenant, t.Title, result.Code)
		if firstRejection == nil {
			firstRejection = &FilterRejectionError{Code: result.Code, Track: t}
		}
	}
	return accepted, firstRejection
}

// BindEngine registers the engine session handle for a tenant. Called by
// the gateway layer when a voice connection is established.
func (m *Manager) BindEngine(tenant string, eng player.Engine) {
	m.engines.Bind(tenant, eng)
	zlog.Info().Msgf("engine session bound: tenant=%s", tenant)
}

// Engine returns the tenant's engine session handle.
func (m *Manager) Engine(tenant string) (player.Engine, error) {
	eng, ok := m.engines.Get(tenant)
	if !ok {
		return nil, ErrNoEngine
	}
	return eng, nil
}

// isURL reports whether the query is a direct media URL rather than
// free-text search terms.
func isURL(query string) bool {
	return strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
}

// Play resolves a query and appends the result to the tenant's queue.
// A direct URL is fetched and queued as-is (single track or whole
// playlist). A free-text query with several hits produces a selection
// prompt instead of queueing anything.
func (m *Manager) Play(ctx context.Context, tenant, channel, query string) (PlayResult, error) {
	return m.play(ctx, tenant, channel, query, false)
}

// PlayNext behaves like Play but puts the result at the head of the
// queue, preserving the relative order of bulk inserts.
func (m *Manager) PlayNext(ctx context.Context, tenant, channel, query string) (PlayResult, error) {
	return m.play(ctx, tenant, channel, query, true)
}

func (m *Manager) play(ctx context.Context, tenant, channel, query string, toFront bool) (PlayResult, error) {
	eng, err := m.Engine(tenant)
	if err != nil {
		return PlayResult{}, err
	}
	m.tracker.BindChannel(tenant, channel)

	kind := player.SearchKindSearch
	if isURL(query) {
		kind = player.SearchKindDirect
	}

	result, err := eng.FetchTracks(ctx, query, kind)
	if err != nil {
		return PlayResult{}, errors.Wrapf(err, "failed to fetch tracks for query %q", query)
	}
	if result.IsEmpty() {
		return PlayResult{}, ErrNoResults
	}

	// Whole playlist: queue everything that clears admission.
	if result.Playlist != nil {
		admitted, rejection := m.admit(ctx, tenant, result.Playlist.Tracks, filter.SourceUser)
		if len(admitted) == 0 {
			return PlayResult{}, rejection
		}
		m.enqueue(tenant, admitted, toFront)
		res := PlayResult{
			Queued:   admitted,
			Playlist: result.Playlist,
			Position: m.queuePosition(tenant, toFront, len(admitted)),
		}
		m.startIfIdle(ctx, tenant, eng)
		return res, nil
	}

	// A direct URL resolves unambiguously; queue the first track.
	if kind == player.SearchKindDirect || len(result.Tracks) == 1 {
		admitted, rejection := m.admit(ctx, tenant, result.Tracks[:1], filter.SourceUser)
		if len(admitted) == 0 {
			return PlayResult{}, rejection
		}
		m.enqueue(tenant, admitted, toFront)
		res := PlayResult{
			Queued:   admitted,
			Position: m.queuePosition(tenant, toFront, 1),
		}
		m.startIfIdle(ctx, tenant, eng)
		return res, nil
	}

	// Several search hits: ask the user to pick one.
	sel := m.selections.create(tenant, result.Tracks, toFront, m.config.SelectionTimeout(), m.onSelectionExpired)
	zlog.Debug().Msgf("selection prompt created: tenant=%s selection=%s candidates=%d",
		tenant, sel.ID, len(sel.Candidates))
	return PlayResult{Selection: sel}, nil
}

// SelectTrack resolves a pending selection prompt and queues the chosen
// track.
func (m *Manager) SelectTrack(ctx context.Context, tenant, selectionID string, index int) (PlayResult, error) {
	chosen, toFront, err := m.selections.resolve(tenant, selectionID, index)
	if err != nil {
		return PlayResult{}, err
	}

	eng, err := m.Engine(tenant)
	if err != nil {
		return PlayResult{}, err
	}

	if admitted, rejection := m.admit(ctx, tenant, []track.Track{chosen}, filter.SourceUser); len(admitted) == 0 {
		return PlayResult{}, rejection
	}
	m.enqueue(tenant, []track.Track{chosen}, toFront)
	res := PlayResult{
		Queued:   []track.Track{chosen},
		Position: m.queuePosition(tenant, toFront, 1),
	}
	m.startIfIdle(ctx, tenant, eng)
	return res, nil
}

// onSelectionExpired disconnects an idle session whose only pending
// activity was the expired prompt.
func (m *Manager) onSelectionExpired(tenant string) {
	if _, ok := m.tracker.Current(tenant); ok {
		return
	}
	if m.queue.Len(tenant) > 0 {
		return
	}

	eng, err := m.Engine(tenant)
	if err != nil {
		return
	}
	zlog.Info().Msgf("selection timed out with idle session, disconnecting: tenant=%s", tenant)
	if err := eng.Disconnect(context.Background()); err != nil {
		zlog.Warn().Msgf("disconnect after selection timeout failed: tenant=%s error=%v", tenant, err)
	}
	m.tracker.SetPhase(tenant, state.PhaseIdle)
}

func (m *Manager) enqueue(tenant string, tracks []track.Track, toFront bool) {
	if toFront {
		m.queue.PushFrontMany(tenant, tracks)
	} else {
		m.queue.PushBackMany(tenant, tracks)
	}
}

// queuePosition returns the 1-based position of the first of count
// freshly queued tracks, or 0 if playback will start immediately.
func (m *Manager) queuePosition(tenant string, toFront bool, count int) int {
	if _, ok := m.tracker.Current(tenant); !ok {
		return 0
	}
	if toFront {
		return 1
	}
	return m.queue.Len(tenant) - count + 1
}

func (m *Manager) startIfIdle(ctx context.Context, tenant string, eng player.Engine) {
	if err := m.coordinator.EnsurePlaying(ctx, tenant, eng); err != nil {
		zlog.Debug().Msgf("no playback started: tenant=%s reason=%v", tenant, err)
	}
}

// Stop halts playback, clears the queue, and disables replay mode so a
// later session cannot inherit a stale flag. The skip flag is raised so
// the resulting track-end cannot be mistaken for a replay trigger; with
// the queue already empty, the coordinator then disconnects cleanly.
func (m *Manager) Stop(ctx context.Context, tenant string) error {
	eng, err := m.Engine(tenant)
	if err != nil {
		return err
	}

	m.queue.Clear(tenant)
	m.selections.purge(tenant)
	m.tracker.SetReplay(tenant, false)

	if _, ok := m.tracker.Current(tenant); ok {
		m.tracker.SetSkipInProgress(tenant, true)
		if err := eng.Stop(ctx); err != nil {
			m.tracker.SetSkipInProgress(tenant, false)
			return errors.Wrap(err, "failed to stop playback")
		}
		return nil
	}

	if err := eng.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "failed to disconnect")
	}
	m.tracker.SetPhase(tenant, state.PhaseIdle)
	return nil
}

// Pause pauses the current track.
func (m *Manager) Pause(ctx context.Context, tenant string) error {
	eng, err := m.Engine(tenant)
	if err != nil {
		return err
	}
	if _, ok := m.tracker.Current(tenant); !ok {
		return ErrNothingPlaying
	}
	return eng.Pause(ctx)
}

// Resume resumes a paused track.
func (m *Manager) Resume(ctx context.Context, tenant string) error {
	eng, err := m.Engine(tenant)
	if err != nil {
		return err
	}
	if _, ok := m.tracker.Current(tenant); !ok {
		return ErrNothingPlaying
	}
	return eng.Resume(ctx)
}

// Skip skips the current track and returns it.
func (m *Manager) Skip(ctx context.Context, tenant string) (track.Track, error) {
	eng, err := m.Engine(tenant)
	if err != nil {
		return track.Track{}, err
	}
	return m.coordinator.Skip(ctx, tenant, eng)
}

// Shuffle randomizes the queue order. Reports whether anything moved.
func (m *Manager) Shuffle(tenant string) bool {
	return m.queue.Shuffle(tenant)
}

// Clear empties the queue, leaving the current track playing.
func (m *Manager) Clear(tenant string) int {
	n := m.queue.Len(tenant)
	m.queue.Clear(tenant)
	return n
}

// RemoveAt removes the queued track at the given 0-based index.
func (m *Manager) RemoveAt(tenant string, index int) (track.Track, error) {
	removed, ok := m.queue.RemoveAt(tenant, index)
	if !ok {
		return track.Track{}, ErrInvalidIndex
	}
	return removed, nil
}

// Move relocates a queued track from one 0-based index to another.
func (m *Manager) Move(tenant string, from, to int) error {
	if !m.queue.Move(tenant, from, to) {
		return ErrInvalidIndex
	}
	return nil
}

// SetVolume sets the engine volume, 0..1000.
func (m *Manager) SetVolume(ctx context.Context, tenant string, volume int) error {
	if volume < 0 || volume > 1000 {
		return ErrInvalidVolume
	}
	eng, err := m.Engine(tenant)
	if err != nil {
		return err
	}
	return eng.SetVolume(ctx, volume)
}

// ToggleReplay flips replay mode. Requires a current track so the mode
// always refers to something concrete.
func (m *Manager) ToggleReplay(tenant string) (bool, error) {
	if _, ok := m.tracker.Current(tenant); !ok {
		return false, ErrNothingPlaying
	}
	return m.tracker.ToggleReplay(tenant), nil
}

// ToggleRecommendations flips recommendation injection for the tenant.
func (m *Manager) ToggleRecommendations(tenant string) bool {
	return m.history.ToggleRecommendations(tenant)
}

// ReplayStatus reports whether replay mode is on.
func (m *Manager) ReplayStatus(tenant string) bool {
	return m.tracker.Replay(tenant)
}

// RecommendationStatus reports whether recommendation injection is on.
func (m *Manager) RecommendationStatus(tenant string) bool {
	return m.history.Enabled(tenant)
}

// Queue returns a read-only snapshot of the tenant's queue.
func (m *Manager) Queue(tenant string) QueueSnapshot {
	items := m.queue.Items(tenant)
	return QueueSnapshot{
		Items:         items,
		Length:        len(items),
		TotalDuration: track.FormatDuration(m.queue.TotalDuration(tenant)),
	}
}

// NowPlaying returns the current track and playback position.
func (m *Manager) NowPlaying(tenant string) (NowPlayingInfo, error) {
	current, ok := m.tracker.Current(tenant)
	if !ok {
		return NowPlayingInfo{}, ErrNothingPlaying
	}

	info := NowPlayingInfo{
		Track:    current,
		Duration: track.FormatDuration(current.Duration),
		Replay:   m.tracker.Replay(tenant),
	}
	if eng, err := m.Engine(tenant); err == nil {
		info.Position = track.FormatDuration(eng.Position())
	}
	return info, nil
}

// History returns the most recent authors played, most-recent-last.
func (m *Manager) History(tenant string, limit int) []string {
	return m.history.History(tenant, limit)
}

// OnTrackStart forwards a track-start signal from the engine.
func (m *Manager) OnTrackStart(ctx context.Context, tenant string, t track.Track) {
	eng, err := m.Engine(tenant)
	if err != nil {
		zlog.Warn().Msgf("track-start for tenant without engine: tenant=%s", tenant)
		return
	}
	m.coordinator.OnTrackStart(ctx, tenant, eng, t)
}

// OnTrackEnd forwards a track-end signal from the engine.
func (m *Manager) OnTrackEnd(ctx context.Context, tenant string, t track.Track, reason player.EndReason) {
	eng, err := m.Engine(tenant)
	if err != nil {
		zlog.Warn().Msgf("track-end for tenant without engine: tenant=%s", tenant)
		return
	}
	m.coordinator.OnTrackEnd(ctx, tenant, eng, t, reason)
}

// CreateLibrary creates a new named collection for the tenant.
func (m *Manager) CreateLibrary(tenant, name string) error {
	return m.library.Create(tenant, name)
}

// DeleteLibrary removes a named collection.
func (m *Manager) DeleteLibrary(tenant, name string) error {
	return m.library.Delete(tenant, name)
}

// SaveCurrentToLibrary adds the currently playing track to a collection.
func (m *Manager) SaveCurrentToLibrary(tenant, name string) (track.Track, error) {
	current, ok := m.tracker.Current(tenant)
	if !ok {
		return track.Track{}, ErrNothingPlaying
	}
	if err := m.library.AddTrack(tenant, name, current); err != nil {
		return track.Track{}, err
	}
	return current, nil
}

// SaveQueueToLibrary adds the current track and every queued track to a
// collection in one shot. Tracks whose URI is already stored are
// skipped. Returns the number of tracks actually saved.
func (m *Manager) SaveQueueToLibrary(tenant, name string) (int, error) {
	tracks := make([]track.Track, 0, m.queue.Len(tenant)+1)
	if current, ok := m.tracker.Current(tenant); ok {
		tracks = append(tracks, current)
	}
	tracks = append(tracks, m.queue.Items(tenant)...)
	if len(tracks) == 0 {
		return 0, ErrNothingPlaying
	}

	saved := 0
	for _, t := range tracks {
		if err := m.library.AddTrack(tenant, name, t); err != nil {
			if errors.Is(err, library.ErrDuplicateTrack) {
				continue
			}
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// RemoveFromLibrary removes the track at index from a collection.
func (m *Manager) RemoveFromLibrary(tenant, name string, index int) error {
	return m.library.RemoveTrack(tenant, name, index)
}

// LibraryTracks returns the tracks of a collection in order.
func (m *Manager) LibraryTracks(tenant, name string) ([]track.Track, error) {
	return m.library.Collection(tenant, name)
}

// Libraries returns collection names mapped to track counts.
func (m *Manager) Libraries(tenant string) map[string]int {
	return m.library.List(tenant)
}

// PlayLibrary queues an entire collection and starts playback if idle.
// With shuffle set, the collection is enqueued in random order; tracks
// already waiting in the queue keep their place.
func (m *Manager) PlayLibrary(ctx context.Context, tenant, channel, name string, shuffle bool) ([]track.Track, error) {
	eng, err := m.Engine(tenant)
	if err != nil {
		return nil, err
	}

	tracks, err := m.library.Collection(tenant, name)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrNoResults
	}

	if shuffle {
		rand.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
	}

	m.tracker.BindChannel(tenant, channel)
	m.queue.PushBackMany(tenant, tracks)
	m.startIfIdle(ctx, tenant, eng)
	return tracks, nil
}

// Cleanup tears down all per-tenant state in one critical section: the
// queue, the current-track slot and flags, the history, any pending
// selection, and the engine binding. The tenant's lock is removed last,
// after the critical section has exited.
func (m *Manager) Cleanup(ctx context.Context, tenant string) {
	m.selections.purge(tenant)

	_ = m.locks.RunExclusive(tenant, func() error {
		m.queue.Purge(tenant)
		m.tracker.Purge(tenant)
		m.history.Purge(tenant)

		eng, ok := m.engines.Remove(tenant)
		if ok && eng.Connected() {
			if err := eng.Disconnect(ctx); err != nil {
				zlog.Warn().Msgf("disconnect during cleanup failed: tenant=%s error=%v", tenant, err)
			}
		}
		return nil
	})

	m.locks.Release(tenant)
	zlog.Info().Msgf("tenant state purged: tenant=%s", tenant)
}

// Close tears down every tenant with a bound engine. Used at shutdown.
func (m *Manager) Close(ctx context.Context) {
	for _, tenant := range m.engines.Tenants() {
		m.Cleanup(ctx, tenant)
	}
}
