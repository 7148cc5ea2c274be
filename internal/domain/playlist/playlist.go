// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// Playlist represents a named collection of tracks returned by a fetch.
type Playlist struct {
	Name   string        // Playlist name
	URI    string        // Source URI (optional)
	Tracks []track.Track // Tracks in order
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}
