// Package lastfm provides a small client for the Last.fm API, used to
// look up an artist's best known tracks when seeding recommendations.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ArtistTrack is a track entry returned by the artist.getTopTracks API.
type ArtistTrack struct {
	Name   string
	Artist string
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// Client is a Last.fm API client. Chart lookups are cached per artist
// for the lifetime of the client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	topTrackCache map[string][]ArtistTrack
	cacheMu       sync.RWMutex
}

type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type artistTopTracksResponse struct {
	TopTracks struct {
		Track []struct {
			Name   string `json:"name"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"toptracks"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       "https://ws.audioscrobbler.com/2.0/",
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		topTrackCache: make(map[string][]ArtistTrack),
	}, nil
}

// GetArtistTopTracks retrieves the most popular tracks of an artist.
// Reference: https://www.last.fm/api/show/artist.getTopTracks
func (c *Client) GetArtistTopTracks(ctx context.Context, artistName string, limit int) ([]ArtistTrack, error) {
	if artistName == "" {
		return nil, errors.New("artist name is required")
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	// Check cache first
	c.cacheMu.RLock()
	if cached, ok := c.topTrackCache[artistName]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached top tracks for artist: %s", artistName)
		return limitTracks(cached, limit), nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "artist.getTopTracks")
	params.Set("api_key", c.apiKey)
	params.Set("artist", artistName)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	var response artistTopTracksResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, err
	}

	tracks := make([]ArtistTrack, 0, len(response.TopTracks.Track))
	for _, t := range response.TopTracks.Track {
		tracks = append(tracks, ArtistTrack{
			Name:   t.Name,
			Artist: t.Artist.Name,
		})
	}

	// Cache the result
	c.cacheMu.Lock()
	c.topTrackCache[artistName] = tracks
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached top tracks for artist: %s (count: %d)", artistName, len(tracks))

	return limitTracks(tracks, limit), nil
}

// call performs a GET request against the API and decodes the JSON
// response into out. Last.fm signals errors in the response body, so
// the body is probed for an error payload before decoding.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// limitTracks returns at most limit tracks.
func limitTracks(tracks []ArtistTrack, limit int) []ArtistTrack {
	if len(tracks) <= limit {
		return tracks
	}
	return tracks[:limit]
}
