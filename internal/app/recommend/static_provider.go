package recommend

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/domain/track"
)

type StaticTrackConfig struct {
	Title  string `yaml:"title" mapstructure:"title" validate:"required"`
	Author string `yaml:"author" mapstructure:"author" validate:"required"`
	URI    string `yaml:"uri" mapstructure:"uri" validate:"required,url"`
}

type StaticProviderConfig struct {
	Tracks []StaticTrackConfig `yaml:"tracks" mapstructure:"tracks" validate:"required,min=1,dive"`
}

// StaticProvider resolves queries against a statically configured track
// pool. It is intended as a last-resort entry in a provider chain so a
// session never goes silent when the upstream search APIs are down.
type StaticProvider struct {
	pool   []track.Track
	config *StaticProviderConfig
}

// NewStaticProvider creates a new StaticProvider.
func NewStaticProvider(settings map[string]any) (*StaticProvider, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config StaticProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("static provider config: %d tracks", len(config.Tracks))
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("static provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	pool := make([]track.Track, 0, len(config.Tracks))
	for _, tc := range config.Tracks {
		pool = append(pool, track.Track{
			Title:  tc.Title,
			Author: tc.Author,
			URI:    tc.URI,
		})
	}

	return &StaticProvider{pool: pool, config: &config}, nil
}

// SearchTracks matches the query against the pool by title and author,
// case-insensitively. Tracks whose title matches rank before tracks
// whose author matches.
func (p *StaticProvider) SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if limit <= 0 {
		limit = len(p.pool)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []track.Track{}, nil
	}

	var titleHits, authorHits []track.Track
	for _, t := range p.pool {
		switch {
		case strings.Contains(strings.ToLower(t.Title), needle):
			titleHits = append(titleHits, t)
		case strings.Contains(strings.ToLower(t.Author), needle):
			authorHits = append(authorHits, t)
		}
	}

	return clampTracks(append(titleHits, authorHits...), limit), nil
}

// Name returns the provider name.
func (p *StaticProvider) Name() string {
	return "static"
}
