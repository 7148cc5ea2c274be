// Package state provides per-tenant playback state tracking.
package state

// Phase represents a tenant's playback lifecycle phase.
type Phase int

const (
	PhaseIdle         Phase = iota // Nothing playing, engine idle or disconnected
	PhasePlaying                   // Track is playing
	PhaseAwaitingNext              // Track ended, next play being issued
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePlaying:
		return "playing"
	case PhaseAwaitingNext:
		return "awaiting_next"
	default:
		return "unknown"
	}
}
