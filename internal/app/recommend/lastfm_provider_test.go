package recommend

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatobus/tunebox/internal/domain/track"
	"github.com/hatobus/tunebox/internal/infra/lastfm"
)

type fakeLastfm struct {
	tracks map[string][]lastfm.ArtistTrack
	err    error
	calls  int
}

func (f *fakeLastfm) GetArtistTopTracks(ctx context.Context, artistName string, limit int) ([]lastfm.ArtistTrack, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks[artistName], nil
}

func newTestLastfmProvider(lfm LastfmClient, sp SpotifyClient) *LastfmProvider {
	return &LastfmProvider{
		lastfm:       lfm,
		spotify:      sp,
		resolveCache: make(map[string]*track.Track),
		config:       &LastfmProviderConfig{APIKey: "key", SeedCount: 10, MaxResults: 5},
	}
}

func TestLastfmProvider_ResolvesArtistCharts(t *testing.T) {
	lfm := &fakeLastfm{tracks: map[string][]lastfm.ArtistTrack{
		"daft punk": {
			{Name: "One More Time", Artist: "Daft Punk"},
			{Name: "Harder Better Faster Stronger", Artist: "Daft Punk"},
		},
	}}
	sp := &fakeSpotify{results: map[string][]track.Track{
		"One More Time Daft Punk": {{Title: "One More Time", Author: "Daft Punk", URI: "spotify:track:1"}},
	}}
	p := newTestLastfmProvider(lfm, sp)

	got, err := p.SearchTracks(context.Background(), "daft punk music", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "One More Time", got[0].Title)
	assert.Equal(t, 1, lfm.calls)
}

func TestLastfmProvider_DedupesByURI(t *testing.T) {
	lfm := &fakeLastfm{tracks: map[string][]lastfm.ArtistTrack{
		"a": {
			{Name: "Song", Artist: "A"},
			{Name: "Song (Remastered)", Artist: "A"},
		},
	}}
	sp := &fakeSpotify{results: map[string][]track.Track{
		"Song A":              {{Title: "Song", Author: "A", URI: "spotify:track:same"}},
		"Song (Remastered) A": {{Title: "Song", Author: "A", URI: "spotify:track:same"}},
	}}
	p := newTestLastfmProvider(lfm, sp)

	got, err := p.SearchTracks(context.Background(), "a", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLastfmProvider_CachesResolutionMisses(t *testing.T) {
	lfm := &fakeLastfm{tracks: map[string][]lastfm.ArtistTrack{
		"a": {{Name: "Unfindable", Artist: "A"}},
	}}
	sp := &fakeSpotify{}
	p := newTestLastfmProvider(lfm, sp)

	for i := 0; i < 3; i++ {
		got, err := p.SearchTracks(context.Background(), "a", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 1, sp.calls)
}

func TestLastfmProvider_LookupError(t *testing.T) {
	lfm := &fakeLastfm{err: errors.New("artist not found")}
	p := newTestLastfmProvider(lfm, &fakeSpotify{})

	_, err := p.SearchTracks(context.Background(), "nobody music", 5)
	assert.Error(t, err)
}

func TestNewLastfmProvider_InvalidSettings(t *testing.T) {
	_, err := NewLastfmProvider(&fakeSpotify{}, nil)
	assert.Error(t, err)

	_, err = NewLastfmProvider(&fakeSpotify{}, map[string]any{"seed_count": 3})
	assert.Error(t, err)

	_, err = NewLastfmProvider(nil, map[string]any{"api_key": "k"})
	assert.Error(t, err)
}
