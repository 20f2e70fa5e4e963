// Package media provides the value types describing a tracked media session.
package media

import (
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// MediaType represents the kind of content being played.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// Common stream types.
const (
	StreamTypeVOD     = "vod"
	StreamTypeLive    = "live"
	StreamTypeLinear  = "linear"
	StreamTypePodcast = "podcast"
	StreamTypeAOD     = "aod"
)

// Standard state names.
const (
	StateFullscreen       = "fullscreen"
	StatePictureInPicture = "pictureInPicture"
	StateClosedCaptioning = "closedCaptioning"
	StateInFocus          = "inFocus"
	StateMute             = "mute"
)

var stateNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{1,64}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("statename", func(fl validator.FieldLevel) bool {
		return stateNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate validates any of the media value types.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return errors.Wrap(err, "media validation failed")
	}
	return nil
}

// MediaInfo identifies the tracked asset. Length is in seconds,
// PrerollWaitingTime in milliseconds.
type MediaInfo struct {
	ID                 string    `mapstructure:"id" validate:"required"`
	Name               string    `mapstructure:"name" validate:"required"`
	StreamType         string    `mapstructure:"stream_type" default:"vod" validate:"required"`
	MediaType          MediaType `mapstructure:"media_type" default:"video" validate:"oneof=video audio"`
	Length             float64   `mapstructure:"length" validate:"gte=0"`
	PrerollWaitingTime int64     `mapstructure:"preroll_waiting_time" default:"250" validate:"gte=0"`
	GranularAdTracking bool      `mapstructure:"granular_ad_tracking"`
}

// NewMediaInfo creates a validated MediaInfo.
func NewMediaInfo(id, name, streamType string, mediaType MediaType, length float64) (MediaInfo, error) {
	info := MediaInfo{
		ID:                 id,
		Name:               name,
		StreamType:         streamType,
		MediaType:          mediaType,
		Length:             length,
		PrerollWaitingTime: 250,
	}
	if err := Validate(info); err != nil {
		return MediaInfo{}, err
	}
	return info, nil
}

// AdBreakInfo describes an ad break (pod).
type AdBreakInfo struct {
	Name      string  `mapstructure:"name" validate:"required"`
	Position  int     `mapstructure:"position" validate:"gte=1"`
	StartTime float64 `mapstructure:"start_time" validate:"gte=0"`
}

// NewAdBreakInfo creates a validated AdBreakInfo.
func NewAdBreakInfo(name string, position int, startTime float64) (AdBreakInfo, error) {
	info := AdBreakInfo{Name: name, Position: position, StartTime: startTime}
	if err := Validate(info); err != nil {
		return AdBreakInfo{}, err
	}
	return info, nil
}

// AdInfo describes a single ad within an ad break.
type AdInfo struct {
	ID       string  `mapstructure:"id" validate:"required"`
	Name     string  `mapstructure:"name" validate:"required"`
	Position int     `mapstructure:"position" validate:"gte=1"`
	Length   float64 `mapstructure:"length" validate:"gte=0"`
}

// NewAdInfo creates a validated AdInfo.
func NewAdInfo(id, name string, position int, length float64) (AdInfo, error) {
	info := AdInfo{ID: id, Name: name, Position: position, Length: length}
	if err := Validate(info); err != nil {
		return AdInfo{}, err
	}
	return info, nil
}

// ChapterInfo describes a chapter of the main content.
type ChapterInfo struct {
	Name      string  `mapstructure:"name" validate:"required"`
	Position  int     `mapstructure:"position" validate:"gte=1"`
	StartTime float64 `mapstructure:"start_time" validate:"gte=0"`
	Length    float64 `mapstructure:"length" validate:"gte=0"`
}

// NewChapterInfo creates a validated ChapterInfo.
func NewChapterInfo(name string, position int, startTime, length float64) (ChapterInfo, error) {
	info := ChapterInfo{Name: name, Position: position, StartTime: startTime, Length: length}
	if err := Validate(info); err != nil {
		return ChapterInfo{}, err
	}
	return info, nil
}

// QoEInfo is a quality-of-experience snapshot.
type QoEInfo struct {
	Bitrate       float64 `mapstructure:"bitrate" validate:"gte=0"`
	DroppedFrames float64 `mapstructure:"dropped_frames" validate:"gte=0"`
	FPS           float64 `mapstructure:"fps" validate:"gte=0"`
	StartupTime   float64 `mapstructure:"startup_time" validate:"gte=0"`
}

// NewQoEInfo creates a validated QoEInfo.
func NewQoEInfo(bitrate, startupTime, fps, droppedFrames float64) (QoEInfo, error) {
	info := QoEInfo{Bitrate: bitrate, DroppedFrames: droppedFrames, FPS: fps, StartupTime: startupTime}
	if err := Validate(info); err != nil {
		return QoEInfo{}, err
	}
	return info, nil
}

// StateInfo names a custom tracked state such as closed captioning.
type StateInfo struct {
	Name string `mapstructure:"name" validate:"statename"`
}

// NewStateInfo creates a validated StateInfo.
func NewStateInfo(name string) (StateInfo, error) {
	info := StateInfo{Name: name}
	if err := Validate(info); err != nil {
		return StateInfo{}, errors.Wrapf(err, "invalid state name %q", name)
	}
	return info, nil
}
