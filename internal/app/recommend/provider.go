// Package recommend provides fallback track search strategies used when
// the tenant's playback engine cannot resolve a query on its own.
package recommend

import (
	"context"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// Provider is the interface for fallback search providers.
// Different implementations can resolve queries through various strategies
// (e.g., Spotify search, a statically configured pool, etc.).
type Provider interface {
	// SearchTracks resolves a free-text query into track candidates.
	// limit: the maximum number of candidates to return
	SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error)

	// Name returns the provider name (used in config).
	Name() string
}

// SpotifyClient defines the interface for Spotify operations needed by
// search providers.
type SpotifyClient interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}
