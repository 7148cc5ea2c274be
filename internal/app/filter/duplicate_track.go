package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// QueueView is the read-only queue access a duplicate check needs.
type QueueView interface {
	Items(tenant string) []track.Track
}

// DuplicateTrackFilter rejects tracks already waiting in the queue.
// Detects:
// - Exact URI matches
// - Remasters (normalized title + same author)
// Excludes:
// - Cover songs (same title but different author)
type DuplicateTrackFilter struct {
	queue QueueView
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queue QueueView) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{
		queue: queue,
	}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the queue, remasters included; covers by another artist are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which sources this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(source Source) bool {
	// The recommendation engine runs its own dedup
	return source == SourceUser
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate of a queued one.
func (f *DuplicateTrackFilter) Check(ctx context.Context, tenant string, requested track.Track) Result {
	for _, queued := range f.queue.Items(tenant) {
		if queued.URI != "" && queued.URI == requested.URI {
			return Reject("duplicate_track")
		}

		if isRemaster(queued, requested) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

// isRemaster checks if two tracks are the same song (remaster/different
// version): normalized titles match and the author is the same. Same
// title under a different author is a cover and passes.
func isRemaster(a, b track.Track) bool {
	if normalizeTitle(a.Title) != normalizeTitle(b.Title) {
		return false
	}
	if a.Author == "" || b.Author == "" {
		return false
	}
	return strings.EqualFold(a.Author, b.Author)
}

// normalizeTitle removes remaster information and version details.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)

	// Remove common remaster patterns
	remasterPatterns := []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Remove other common version indicators
	versionPatterns := []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*live`),             // "- Live"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = regexp.MustCompile(`\s+`).ReplaceAllString(normalized, " ")
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}
