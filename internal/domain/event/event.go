// Package event provides the analytics event entity emitted for a media session.
package event

import (
	"time"

	"github.com/osa030/mediatrack/internal/domain/media"
)

// Type represents an analytics event type.
type Type int

const (
	TypeSessionStart    Type = iota // Session began
	TypePlay                        // Playback started or resumed
	TypePing                        // Periodic heartbeat while progressing
	TypePauseStart                  // Paused or seeking
	TypeBufferStart                 // Buffering
	TypeAdBreakStart                // Ad break began
	TypeAdBreakComplete             // Ad break ended
	TypeAdStart                     // Ad began
	TypeAdComplete                  // Ad ended
	TypeAdSkip                      // Ad skipped
	TypeChapterStart                // Chapter began
	TypeChapterComplete             // Chapter ended
	TypeChapterSkip                 // Chapter skipped
	TypeBitrateChange               // Bitrate changed
	TypeError                       // Player error
	TypeStateStart                  // Custom state started
	TypeStateEnd                    // Custom state ended
	TypeSessionComplete             // Content finished
	TypeSessionEnd                  // Session abandoned or timed out
)

// String returns the wire name of the event type.
func (t Type) String() string {
	switch t {
	case TypeSessionStart:
		return "sessionStart"
	case TypePlay:
		return "play"
	case TypePing:
		return "ping"
	case TypePauseStart:
		return "pauseStart"
	case TypeBufferStart:
		return "bufferStart"
	case TypeAdBreakStart:
		return "adBreakStart"
	case TypeAdBreakComplete:
		return "adBreakComplete"
	case TypeAdStart:
		return "adStart"
	case TypeAdComplete:
		return "adComplete"
	case TypeAdSkip:
		return "adSkip"
	case TypeChapterStart:
		return "chapterStart"
	case TypeChapterComplete:
		return "chapterComplete"
	case TypeChapterSkip:
		return "chapterSkip"
	case TypeBitrateChange:
		return "bitrateChange"
	case TypeError:
		return "error"
	case TypeStateStart:
		return "statesStart"
	case TypeStateEnd:
		return "statesEnd"
	case TypeSessionComplete:
		return "sessionComplete"
	case TypeSessionEnd:
		return "sessionEnd"
	default:
		return "unknown"
	}
}

// Event is a decision to emit one analytics event.
// Optional context is nil when not applicable.
type Event struct {
	Seq       uint64 // Assigned on publish
	SessionID string
	Type      Type
	Timestamp time.Time
	Playhead  float64 // seconds

	Media    *media.MediaInfo
	Metadata map[string]string // media, ad or chapter metadata depending on Type
	AdBreak  *media.AdBreakInfo
	Ad       *media.AdInfo
	Chapter  *media.ChapterInfo
	QoE      *media.QoEInfo
	State    *media.StateInfo
	Error    map[string]string
}
