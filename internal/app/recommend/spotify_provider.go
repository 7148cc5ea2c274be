package recommend

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/domain/track"
)

type SpotifyProviderConfig struct {
	MaxResults int `yaml:"max_results" mapstructure:"max_results" default:"5" validate:"gte=1,lte=50"`
}

// SpotifyProvider resolves queries through the Spotify search API.
// It maintains an internal per-query cache to minimize API calls when the
// same query is re-resolved in a session.
type SpotifyProvider struct {
	spotify SpotifyClient

	cache      map[string][]track.Track
	cacheMutex sync.RWMutex

	config *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(spotify SpotifyClient, settings map[string]any) (*SpotifyProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}

	var config SpotifyProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("spotify provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	return &SpotifyProvider{
		spotify: spotify,
		cache:   make(map[string][]track.Track),
		config:  &config}, nil
}

// SearchTracks resolves the query against Spotify, serving repeated
// queries from the cache.
func (p *SpotifyProvider) SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if query == "" {
		return []track.Track{}, nil
	}
	if limit <= 0 || limit > p.config.MaxResults {
		limit = p.config.MaxResults
	}

	p.cacheMutex.RLock()
	if cached, ok := p.cache[query]; ok {
		p.cacheMutex.RUnlock()
		return clampTracks(cached, limit), nil
	}
	p.cacheMutex.RUnlock()

	results, err := p.spotify.Search(ctx, query, p.config.MaxResults)
	if err != nil {
		return nil, errors.Wrap(err, "spotify search failed")
	}

	// Cache empty results too, to avoid repeated failed searches
	p.cacheMutex.Lock()
	p.cache[query] = results
	p.cacheMutex.Unlock()

	return clampTracks(results, limit), nil
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}

// clampTracks returns at most limit tracks.
func clampTracks(tracks []track.Track, limit int) []track.Track {
	if len(tracks) <= limit {
		return tracks
	}
	return tracks[:limit]
}
