// Package filter provides the admission filter chain run before tracks
// enter a tenant's queue.
package filter

import (
	"context"

	"github.com/hatobus/tunebox/internal/domain/track"
)

// Source describes where an enqueue request came from.
type Source int

const (
	// SourceUser is a track requested directly by a user.
	SourceUser Source = iota
	// SourceRecommendation is a track injected by the recommendation engine.
	SourceRecommendation
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_track", "duration_limit_exceeded"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for queue admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given source.
	AppliesTo(source Source) bool
	// Check performs the filter check.
	Check(ctx context.Context, tenant string, t track.Track) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
