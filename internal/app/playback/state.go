// Package playback tracks the playback state of a single media session.
package playback

// State represents a playback state.
// Init, Play and Pause are base states; Buffer and Seek are overlays.
type State int

const (
	StateInit   State = iota // Construction default, never entered at runtime
	StatePlay                // Content is playing
	StatePause               // Content is paused
	StateBuffer              // Player is buffering (overlay)
	StateSeek                // Player is seeking (overlay)
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePlay:
		return "play"
	case StatePause:
		return "pause"
	case StateBuffer:
		return "buffer"
	case StateSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// IsOverlay reports whether the state can coexist with a base state.
func (s State) IsOverlay() bool {
	return s == StateBuffer || s == StateSeek
}
