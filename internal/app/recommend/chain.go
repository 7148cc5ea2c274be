package recommend

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries multiple providers in order until one returns candidates.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{
		providers: providers,
	}
}

// SearchTracks tries each provider in order and returns the first
// non-empty result. A failing provider is skipped, not fatal.
func (c *Chain) SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.SearchTracks(ctx, query, limit)
		if err != nil {
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		if len(candidates) == 0 {
			zlog.Debug().Msgf("provider returned no candidates: provider=%s", pm.DisplayName)
			continue
		}

		zlog.Info().Msgf("provider returned candidates: provider=%s count=%d",
			pm.DisplayName, len(candidates))
		return candidates, nil
	}

	return nil, errors.Newf("all providers failed to resolve query: %s", query)
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "provider_chain"
}
