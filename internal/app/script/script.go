// Package script decodes and replays scripted player actions against a tracker.
package script

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/mediatrack/internal/domain/media"
)

// ErrUnknownAction is returned for a step whose action is not recognised.
var ErrUnknownAction = errors.New("unknown action")

// Player is the set of tracker actions a script can drive.
type Player interface {
	StartSession(info media.MediaInfo, metadata map[string]string) error
	Play() error
	Pause() error
	BufferStart() error
	BufferComplete() error
	SeekStart() error
	SeekComplete() error
	AdBreakStart(info media.AdBreakInfo) error
	AdBreakComplete() error
	AdStart(info media.AdInfo, metadata map[string]string) error
	AdComplete() error
	AdSkip() error
	ChapterStart(info media.ChapterInfo, metadata map[string]string) error
	ChapterComplete() error
	ChapterSkip() error
	StateStart(info media.StateInfo) error
	StateEnd(info media.StateInfo) error
	UpdatePlayhead(playhead float64) error
	UpdateQoE(info media.QoEInfo) error
	BitrateChange() error
	Error(errorID string) error
	Complete() error
	End() error
}

// file is the YAML layout of a script.
type file struct {
	Media    map[string]any    `yaml:"media"`
	Metadata map[string]string `yaml:"metadata"`
	Steps    []fileStep        `yaml:"steps"`
}

type fileStep struct {
	Action string         `yaml:"action"`
	Wait   time.Duration  `yaml:"wait"`
	Params map[string]any `yaml:"params"`
}

// Step is one decoded action.
type Step struct {
	Action string
	Wait   time.Duration // delay before the action runs
	apply  func(Player) error
}

// Script is a decoded, validated sequence of player actions.
type Script struct {
	Media    media.MediaInfo
	Metadata map[string]string
	Steps    []Step
}

// Load reads and decodes a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read script file")
	}
	return Parse(data)
}

// Parse decodes a script from YAML bytes.
func Parse(data []byte) (*Script, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse script")
	}

	var info media.MediaInfo
	if err := decodeParams(f.Media, &info); err != nil {
		return nil, errors.Wrap(err, "invalid media")
	}

	s := &Script{Media: info, Metadata: f.Metadata, Steps: make([]Step, 0, len(f.Steps))}
	for i, fs := range f.Steps {
		apply, err := s.compile(fs)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", i+1, fs.Action)
		}
		s.Steps = append(s.Steps, Step{Action: fs.Action, Wait: fs.Wait, apply: apply})
	}
	return s, nil
}

type adParams struct {
	media.AdInfo `mapstructure:",squash"`
	Metadata     map[string]string `mapstructure:"metadata"`
}

type chapterParams struct {
	media.ChapterInfo `mapstructure:",squash"`
	Metadata          map[string]string `mapstructure:"metadata"`
}

type playheadParams struct {
	Value float64 `mapstructure:"value" validate:"gte=0"`
}

type errorParams struct {
	ID string `mapstructure:"id" validate:"required"`
}

func (s *Script) compile(fs fileStep) (func(Player) error, error) {
	switch fs.Action {
	case "session_start":
		info, metadata := s.Media, s.Metadata
		return func(p Player) error { return p.StartSession(info, metadata) }, nil
	case "play":
		return Player.Play, nil
	case "pause":
		return Player.Pause, nil
	case "buffer_start":
		return Player.BufferStart, nil
	case "buffer_complete":
		return Player.BufferComplete, nil
	case "seek_start":
		return Player.SeekStart, nil
	case "seek_complete":
		return Player.SeekComplete, nil
	case "ad_break_start":
		var info media.AdBreakInfo
		if err := decodeParams(fs.Params, &info); err != nil {
			return nil, err
		}
		return func(p Player) error { return p.AdBreakStart(info) }, nil
	case "ad_break_complete":
		return Player.AdBreakComplete, nil
	case "ad_start":
		var params adParams
		if err := decodeParams(fs.Params, &params); err != nil {
			return nil, err
		}
		return func(p Player) error { return p.AdStart(params.AdInfo, params.Metadata) }, nil
	case "ad_complete":
		return Player.AdComplete, nil
	case "ad_skip":
		return Player.AdSkip, nil
	case "chapter_start":
		var params chapterParams
		if err := decodeParams(fs.Params, &params); err != nil {
			return nil, err
		}
		return func(p Player) error { return p.ChapterStart(params.ChapterInfo, params.Metadata) }, nil
	case "chapter_complete":
		return Player.ChapterComplete, nil
	case "chapter_skip":
		return Player.ChapterSkip, nil
	case "state_start", "state_end":
		var info media.StateInfo
		if err := decodeParams(fs.Params, &info); err != nil {
			return nil, err
		}
		if fs.Action == "state_start" {
			return func(p Player) error { return p.StateStart(info) }, nil
		}
		return func(p Player) error { return p.StateEnd(info) }, nil
	case "playhead":
		var params playheadParams
		if err := decodeParams(fs.Params, &params); err != nil {
			return nil, err
		}
		return func(p Player) error { return p.UpdatePlayhead(params.Value) }, nil
	case "qoe":
		var info media.QoEInfo
		if err := decodeParams(fs.Params, &info); err != nil {
			return nil, err
		}
		return func(p Player) error { return p.UpdateQoE(info) }, nil
	case "bitrate_change":
		return Player.BitrateChange, nil
	case "error":
		var params errorParams
		if err := decodeParams(fs.Params, &params); err != nil {
			return nil, err
		}
		return func(p Player) error { return p.Error(params.ID) }, nil
	case "complete":
		return Player.Complete, nil
	case "end":
		return Player.End, nil
	default:
		return nil, ErrUnknownAction
	}
}

// decodeParams decodes a params map into out, applies defaults and validates.
func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(params); err != nil {
		return errors.Wrap(err, "failed to decode params")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	return media.Validate(out)
}

// Options controls a replay.
type Options struct {
	StopOnError bool // abort on the first rejected action
}

// Run replays the script. Rejected actions are logged and skipped unless
// StopOnError is set. It returns the number of rejected actions.
func (s *Script) Run(ctx context.Context, p Player, opts Options) (int, error) {
	rejected := 0
	for i, step := range s.Steps {
		if step.Wait > 0 {
			timer := time.NewTimer(step.Wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return rejected, ctx.Err()
			case <-timer.C:
			}
		}

		if err := step.apply(p); err != nil {
			rejected++
			zlog.Warn().Err(err).Msgf("script: step %d (%s) rejected", i+1, step.Action)
			if opts.StopOnError {
				return rejected, errors.Wrapf(err, "step %d (%s)", i+1, step.Action)
			}
			continue
		}
		zlog.Debug().Msgf("script: step %d (%s) applied", i+1, step.Action)
	}
	return rejected, nil
}
