package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetArtistTopTracks(t *testing.T) {
	var calls atomic.Int32

	// Mock server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "artist.getTopTracks", r.URL.Query().Get("method"))
		assert.Equal(t, "test_artist", r.URL.Query().Get("artist"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))

		response := `{
			"toptracks": {
				"track": [
					{
						"name": "Track 1",
						"mbid": "mbid1",
						"url": "url1",
						"artist": {"name": "Test Artist", "mbid": "ambid1", "url": "aurl1"},
						"listeners": "1000",
						"playcount": "5000"
					},
					{
						"name": "Track 2",
						"mbid": "mbid2",
						"url": "url2",
						"artist": {"name": "Test Artist", "mbid": "ambid2", "url": "aurl2"},
						"listeners": "500",
						"playcount": "2000"
					}
				]
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	assert.NoError(t, err)
	client.baseURL = server.URL + "/"

	// Test API call
	ctx := context.Background()
	tracks, err := client.GetArtistTopTracks(ctx, "test_artist", 5)
	assert.NoError(t, err)
	assert.Len(t, tracks, 2)
	assert.Equal(t, "Track 1", tracks[0].Name)
	assert.Equal(t, "Test Artist", tracks[0].Artist)

	// Test Caching
	tracksCached, err := client.GetArtistTopTracks(ctx, "test_artist", 5)
	assert.NoError(t, err)
	assert.Equal(t, tracks, tracksCached)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetArtistTopTracksLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := `{
			"toptracks": {
				"track": [
					{"name": "Track 1", "artist": {"name": "A"}},
					{"name": "Track 2", "artist": {"name": "A"}},
					{"name": "Track 3", "artist": {"name": "A"}}
				]
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	assert.NoError(t, err)
	client.baseURL = server.URL + "/"

	tracks, err := client.GetArtistTopTracks(context.Background(), "a", 2)
	assert.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestGetArtistTopTracksAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"error": 6, "message": "The artist you supplied could not be found"}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	assert.NoError(t, err)
	client.baseURL = server.URL + "/"

	_, err = client.GetArtistTopTracks(context.Background(), "nobody", 5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "last.fm API error 6")
}

func TestGetArtistTopTracksRequiresArtist(t *testing.T) {
	client, err := New(Config{APIKey: "test_key"})
	assert.NoError(t, err)

	_, err = client.GetArtistTopTracks(context.Background(), "", 5)
	assert.Error(t, err)
}
