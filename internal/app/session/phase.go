// Package session coordinates a tracked media session: it serializes player
// actions and heartbeat ticks and decides which analytics events to emit.
package session

// Phase represents the tracker lifecycle phase.
type Phase int

const (
	PhaseIdle   Phase = iota // No session started yet
	PhaseActive              // Session is being tracked
	PhaseEnded               // Session completed, ended or timed out
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}
