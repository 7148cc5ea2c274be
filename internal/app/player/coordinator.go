package player

import (
	"context"
	"errors"

	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/app/history"
	"github.com/hatobus/tunebox/internal/app/queue"
	"github.com/hatobus/tunebox/internal/app/session/state"
	"github.com/hatobus/tunebox/internal/domain/track"
)

// Errors
var (
	ErrNoTrack      = errors.New("no track playing")
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrNotConnected = errors.New("engine is not connected")
)

// Searcher is a fallback track-search source used when the tenant's own
// engine cannot serve a recommendation query.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// Config holds coordinator configuration.
type Config struct {
	MaxRecommendations int // Cap of injected tracks per trigger
	SampleAuthors      int // Authors sampled from history per trigger
}

// Coordinator reacts to track-start and track-end signals from the
// playback engine and decides replay vs advance vs recommend vs
// disconnect for each tenant.
type Coordinator struct {
	queue    *queue.Store
	tracker  *state.Tracker
	history  *history.Engine
	fallback Searcher // may be nil
	notifier Notifier
	config   Config
}

// NewCoordinator creates a coordinator. fallback and notifier may be nil.
func NewCoordinator(q *queue.Store, t *state.Tracker, h *history.Engine, fallback Searcher, n Notifier, cfg Config) *Coordinator {
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = 10
	}
	if cfg.SampleAuthors <= 0 {
		cfg.SampleAuthors = 5
	}
	if n == nil {
		n = noopNotifier{}
	}
	return &Coordinator{
		queue:    q,
		tracker:  t,
		history:  h,
		fallback: fallback,
		notifier: n,
		config:   cfg,
	}
}

// OnTrackStart handles a track-start signal: the track becomes current,
// its author enters the play history, and recommendation injection is
// triggered when the queue is running low.
func (c *Coordinator) OnTrackStart(ctx context.Context, tenant string, eng Engine, t track.Track) {
	c.tracker.SetCurrent(tenant, t)
	zlog.Debug().Msgf("track started: tenant=%s title=%q author=%q", tenant, t.Title, t.Author)

	c.notifier.NowPlaying(tenant, c.tracker.Channel(tenant), t, c.tracker.Replay(tenant))

	if c.history.Enabled(tenant) && c.queue.Len(tenant) <= 1 && len(c.history.History(tenant, 1)) > 0 {
		c.injectRecommendations(ctx, tenant, eng)
	}
}

// OnTrackEnd handles a track-end signal. The skip flag is consumed
// exactly once, so a skip can never suppress replay on a later,
// unrelated track-end.
func (c *Coordinator) OnTrackEnd(ctx context.Context, tenant string, eng Engine, ended track.Track, reason EndReason) {
	if reason == ReasonReplaced {
		// A newer play superseded this track; that play owns the session now.
		return
	}

	skipped := c.tracker.ConsumeSkip(tenant)

	if c.tracker.Replay(tenant) && !skipped {
		if current, ok := c.tracker.Current(tenant); ok {
			// Reissue the same resolved track, no fresh search.
			err := eng.Play(ctx, current)
			if err == nil {
				zlog.Debug().Msgf("replaying track: tenant=%s title=%q", tenant, current.Title)
				return
			}
			zlog.Warn().Msgf("replay failed, advancing instead: tenant=%s title=%q error=%v", tenant, current.Title, err)
		}
	}

	c.tracker.ClearCurrent(tenant)
	c.advance(ctx, tenant, eng)
}

// Skip requests a skip of the current track. The skip flag is raised
// before the engine stop so the resulting track-end bypasses the replay
// branch exactly once. Returns the skipped track.
func (c *Coordinator) Skip(ctx context.Context, tenant string, eng Engine) (track.Track, error) {
	current, ok := c.tracker.Current(tenant)
	if !ok {
		return track.Track{}, ErrNoTrack
	}

	c.tracker.SetSkipInProgress(tenant, true)
	if err := eng.Stop(ctx); err != nil {
		c.tracker.SetSkipInProgress(tenant, false)
		return track.Track{}, err
	}
	return current, nil
}

// EnsurePlaying starts playback of the queue head if nothing is current.
// Called after enqueue operations. A disconnected engine ends the
// session: the queue is cleared and the tenant goes idle.
func (c *Coordinator) EnsurePlaying(ctx context.Context, tenant string, eng Engine) error {
	if !eng.Connected() {
		zlog.Info().Msgf("engine disconnected, clearing queue: tenant=%s", tenant)
		c.queue.Clear(tenant)
		c.tracker.SetPhase(tenant, state.PhaseIdle)
		return ErrNotConnected
	}
	if _, ok := c.tracker.Current(tenant); ok {
		return nil
	}
	if c.queue.Len(tenant) == 0 {
		return ErrQueueEmpty
	}
	c.advance(ctx, tenant, eng)
	return nil
}

// advance pops and plays the next queued track. Play failures are
// reported and the next track is attempted; the loop is bounded by the
// queue length so an all-failing queue cannot recurse forever. An empty
// queue ends the session: disconnect and back to idle.
func (c *Coordinator) advance(ctx context.Context, tenant string, eng Engine) {
	if !eng.Connected() {
		zlog.Info().Msgf("engine disconnected, clearing queue: tenant=%s", tenant)
		c.queue.Clear(tenant)
		c.tracker.SetPhase(tenant, state.PhaseIdle)
		return
	}

	c.tracker.SetPhase(tenant, state.PhaseAwaitingNext)
	channel := c.tracker.Channel(tenant)

	attempts := c.queue.Len(tenant)
	for i := 0; i <= attempts; i++ {
		next, ok := c.queue.PopFront(tenant)
		if !ok {
			break
		}

		if err := eng.Play(ctx, next); err != nil {
			zlog.Error().Msgf("failed to play track, trying next: tenant=%s title=%q error=%v", tenant, next.Title, err)
			c.notifier.PlaybackError(tenant, channel, next, err)
			continue
		}

		c.tracker.SetPhase(tenant, state.PhasePlaying)
		zlog.Info().Msgf("started playing: tenant=%s title=%q", tenant, next.Title)
		return
	}

	zlog.Info().Msgf("queue exhausted, disconnecting: tenant=%s", tenant)
	c.notifier.QueueFinished(tenant, channel)
	_ = eng.Disconnect(ctx)
	c.tracker.SetPhase(tenant, state.PhaseIdle)
}

// injectRecommendations samples authors from the play history and queues
// one fresh track per author. Search failures skip to the next author
// without aborting the batch.
func (c *Coordinator) injectRecommendations(ctx context.Context, tenant string, eng Engine) {
	authors := c.history.SampleAuthors(tenant, c.config.SampleAuthors)
	if len(authors) == 0 {
		return
	}

	added := 0
	batch := make(map[track.Key]bool)

	for _, author := range authors {
		if added >= c.config.MaxRecommendations {
			break
		}

		candidates, err := c.search(ctx, eng, author+" music")
		if err != nil {
			zlog.Warn().Msgf("recommendation search failed, skipping author: tenant=%s author=%q error=%v", tenant, author, err)
			continue
		}

		for _, cand := range candidates {
			key := cand.DedupKey()
			if batch[key] || c.history.IsRecommended(tenant, cand) || c.queue.Contains(tenant, cand) {
				continue
			}

			c.queue.PushBack(tenant, cand)
			c.history.RecordRecommendation(tenant, cand)
			batch[key] = true
			added++
			break
		}
	}

	if added > 0 {
		zlog.Info().Msgf("queued recommendations: tenant=%s count=%d", tenant, added)
	}
}

// search fetches tracks via the tenant's engine, falling back to the
// configured search chain when the engine fails or returns nothing.
func (c *Coordinator) search(ctx context.Context, eng Engine, query string) ([]track.Track, error) {
	result, err := eng.FetchTracks(ctx, query, SearchKindSearch)
	if err == nil && !result.IsEmpty() {
		if result.Playlist != nil {
			return result.Playlist.Tracks, nil
		}
		return result.Tracks, nil
	}
	if err != nil {
		zlog.Debug().Msgf("engine search failed, trying fallback: query=%q error=%v", query, err)
	}

	if c.fallback != nil {
		return c.fallback.SearchTracks(ctx, query, c.config.MaxRecommendations)
	}
	return nil, err
}
