package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/domain/track"
	"github.com/hatobus/tunebox/internal/infra/lastfm"
)

// LastfmClient defines the interface for Last.fm operations.
type LastfmClient interface {
	GetArtistTopTracks(ctx context.Context, artistName string, limit int) ([]lastfm.ArtistTrack, error)
}

type LastfmProviderConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SeedCount  int    `yaml:"seed_count" mapstructure:"seed_count" default:"10" validate:"gte=1,lte=50"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results" default:"5" validate:"gte=1,lte=50"`
}

// LastfmProvider resolves queries through Last.fm artist charts. The
// query's artist seed is looked up via artist.getTopTracks and each
// charted entry is resolved back to a playable track through Spotify
// search.
type LastfmProvider struct {
	lastfm  LastfmClient
	spotify SpotifyClient

	// Cache for Spotify resolution results
	resolveCache map[string]*track.Track
	cacheMutex   sync.RWMutex

	config *LastfmProviderConfig
}

// NewLastfmProvider creates a new LastfmProvider.
func NewLastfmProvider(spotify SpotifyClient, settings map[string]any) (*LastfmProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastfmProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	lastfmClient, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return &LastfmProvider{
		lastfm:       lastfmClient,
		spotify:      spotify,
		resolveCache: make(map[string]*track.Track),
		config:       &config}, nil
}

// SearchTracks resolves the query against Last.fm artist charts.
func (p *LastfmProvider) SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if query == "" {
		return []track.Track{}, nil
	}
	if limit <= 0 || limit > p.config.MaxResults {
		limit = p.config.MaxResults
	}

	// Recommendation queries carry a trailing " music" qualifier for
	// free-text search engines; Last.fm wants the bare artist name.
	artist := strings.TrimSuffix(query, " music")

	seeds, err := p.lastfm.GetArtistTopTracks(ctx, artist, p.config.SeedCount)
	if err != nil {
		return nil, errors.Wrapf(err, "last.fm lookup failed for artist %q", artist)
	}

	results := make([]track.Track, 0, limit)
	seen := make(map[string]bool)

	for _, seed := range seeds {
		resolved := p.resolve(ctx, seed.Name, seed.Artist)
		if resolved == nil || seen[resolved.URI] {
			continue
		}
		seen[resolved.URI] = true
		results = append(results, *resolved)
		if len(results) >= limit {
			break
		}
	}

	zlog.Debug().Msgf("last.fm provider resolved %d/%d seeds for artist %q", len(results), len(seeds), artist)
	return results, nil
}

// Name returns the provider name.
func (p *LastfmProvider) Name() string {
	return "lastfm"
}

// resolve searches for a playable track on Spotify with caching.
// Misses are cached as nil to avoid repeated failed searches.
func (p *LastfmProvider) resolve(ctx context.Context, trackName, artistName string) *track.Track {
	key := fmt.Sprintf("%s:%s", trackName, artistName)

	p.cacheMutex.RLock()
	if cached, ok := p.resolveCache[key]; ok {
		p.cacheMutex.RUnlock()
		return cached
	}
	p.cacheMutex.RUnlock()

	query := fmt.Sprintf("%s %s", trackName, artistName)
	hits, err := p.spotify.Search(ctx, query, 1)

	var resolved *track.Track
	if err == nil && len(hits) > 0 {
		resolved = &hits[0]
	} else if err != nil {
		zlog.Debug().Msgf("spotify resolution failed: query=%q error=%v", query, err)
	}

	p.cacheMutex.Lock()
	p.resolveCache[key] = resolved
	p.cacheMutex.Unlock()

	return resolved
}
