// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Track represents a playable media reference.
// Engine adapters normalize their own response shapes into this type once;
// the rest of the system never probes for alternate field names.
type Track struct {
	Title      string        // Track title
	Author     string        // Artist / channel name
	Duration   time.Duration // Track duration (zero for live streams)
	URI        string        // Playable URI
	Identifier string        // Engine-side identifier
	IsStream   bool          // Live stream flag
	ArtworkURL string        // Artwork URL (optional)
}

// Key identifies a track for dedup purposes.
// Identity is (title, author), not URI: the same song fetched through
// different sources must still count as a duplicate.
type Key struct {
	Title  string
	Author string
}

// DedupKey returns the track's dedup identity.
func (t Track) DedupKey() Key {
	return Key{Title: t.Title, Author: t.Author}
}

// IsZero reports whether the track is the empty value.
func (t Track) IsZero() bool {
	return t == Track{}
}

// FormatDuration renders a duration as H:MM:SS, or M:SS under an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
