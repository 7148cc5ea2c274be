// Package player provides the playback event coordinator and the
// engine-session boundary.
package player

import (
	"context"
	"time"

	"github.com/hatobus/tunebox/internal/domain/playlist"
	"github.com/hatobus/tunebox/internal/domain/track"
)

// SearchKind selects how a fetch query is interpreted by the engine.
type SearchKind string

const (
	// SearchKindDirect treats the query as a direct URL or identifier.
	SearchKindDirect SearchKind = "direct"
	// SearchKindSearch treats the query as free-text search terms.
	SearchKindSearch SearchKind = "search"
)

// FetchResult is the normalized outcome of a track fetch: either a
// playlist or a flat list of tracks (a single-element list for direct
// URL fetches).
type FetchResult struct {
	Playlist *playlist.Playlist
	Tracks   []track.Track
}

// IsEmpty reports whether the fetch produced nothing playable.
func (r FetchResult) IsEmpty() bool {
	return (r.Playlist == nil || len(r.Playlist.Tracks) == 0) && len(r.Tracks) == 0
}

// EndReason describes why the engine reported a track-end.
type EndReason int

const (
	ReasonFinished   EndReason = iota // Track played to completion
	ReasonStopped                     // Explicit stop (including skip)
	ReasonReplaced                    // A new play superseded the track
	ReasonLoadFailed                  // Engine failed to load the track
)

// String returns the string representation of the end reason.
func (r EndReason) String() string {
	switch r {
	case ReasonFinished:
		return "finished"
	case ReasonStopped:
		return "stopped"
	case ReasonReplaced:
		return "replaced"
	case ReasonLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Engine is the per-tenant playback-engine session handle.
// Implementations adapt a concrete backend and normalize its responses
// into domain tracks; the coordinator never sees backend-specific shapes.
type Engine interface {
	FetchTracks(ctx context.Context, query string, kind SearchKind) (FetchResult, error)
	Play(ctx context.Context, t track.Track) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	SetVolume(ctx context.Context, volume int) error
	Disconnect(ctx context.Context) error
	Connected() bool
	Position() time.Duration
}

// Notifier delivers user-visible playback status to a tenant's bound
// text channel. All methods are fire-and-forget; failures stay inside
// the implementation.
type Notifier interface {
	NowPlaying(tenant, channel string, t track.Track, replay bool)
	PlaybackError(tenant, channel string, t track.Track, err error)
	QueueFinished(tenant, channel string)
}

// noopNotifier is used when no notifier is configured.
type noopNotifier struct{}

func (noopNotifier) NowPlaying(string, string, track.Track, bool)     {}
func (noopNotifier) PlaybackError(string, string, track.Track, error) {}
func (noopNotifier) QueueFinished(string, string)                     {}
