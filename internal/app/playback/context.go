package playback

import (
	"maps"
	"sort"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/mediatrack/internal/domain/media"
)

// DefaultStateLimit is the maximum number of distinct custom states a session may track.
const DefaultStateLimit = 10

const logTag = "media_context"

// Option configures a Context.
type Option func(*Context)

// WithStateLimit overrides the custom state limit. Values below 1 are ignored.
func WithStateLimit(n int) Option {
	return func(c *Context) {
		if n >= 1 {
			c.stateLimit = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Context) {
		c.logger = l.With().Str("component", logTag).Logger()
	}
}

// Context holds the playback state of one media session.
// It performs no locking; the owner must serialize all calls.
type Context struct {
	logger zerolog.Logger

	playState State
	buffering bool
	seeking   bool

	// Custom states: name -> active. Known names count toward stateLimit
	// for the whole session, active or not.
	trackedStates map[string]bool
	stateLimit    int

	mediaInfo     media.MediaInfo
	mediaMetadata map[string]string

	adBreakInfo *media.AdBreakInfo
	adInfo      *media.AdInfo
	adMetadata  map[string]string

	chapterInfo     *media.ChapterInfo
	chapterMetadata map[string]string

	errorInfo map[string]string

	playhead float64
	qoeInfo  *media.QoEInfo
}

// NewContext creates a new playback context for the given media.
func NewContext(info media.MediaInfo, metadata map[string]string, opts ...Option) *Context {
	c := &Context{
		logger:          zlog.With().Str("component", logTag).Logger(),
		playState:       StateInit,
		trackedStates:   make(map[string]bool),
		stateLimit:      DefaultStateLimit,
		mediaInfo:       info,
		mediaMetadata:   cloneMetadata(metadata),
		adMetadata:      map[string]string{},
		chapterMetadata: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MediaInfo returns the tracked media.
func (c *Context) MediaInfo() media.MediaInfo {
	return c.mediaInfo
}

// MediaMetadata returns a copy of the media metadata.
func (c *Context) MediaMetadata() map[string]string {
	return cloneMetadata(c.mediaMetadata)
}

// SetAdBreak replaces the current ad break.
func (c *Context) SetAdBreak(info media.AdBreakInfo) {
	c.adBreakInfo = &info
}

// ClearAdBreak removes the current ad break.
func (c *Context) ClearAdBreak() {
	c.adBreakInfo = nil
}

// AdBreak returns the current ad break, if any.
func (c *Context) AdBreak() (*media.AdBreakInfo, bool) {
	if c.adBreakInfo == nil {
		return nil, false
	}
	info := *c.adBreakInfo
	return &info, true
}

// SetAd replaces the current ad and its metadata.
func (c *Context) SetAd(info media.AdInfo, metadata map[string]string) {
	c.adInfo = &info
	c.adMetadata = cloneMetadata(metadata)
}

// ClearAd removes the current ad and its metadata.
func (c *Context) ClearAd() {
	c.adInfo = nil
	c.adMetadata = map[string]string{}
}

// Ad returns the current ad, if any.
func (c *Context) Ad() (*media.AdInfo, bool) {
	if c.adInfo == nil {
		return nil, false
	}
	info := *c.adInfo
	return &info, true
}

// AdMetadata returns a copy of the current ad metadata.
func (c *Context) AdMetadata() map[string]string {
	return cloneMetadata(c.adMetadata)
}

// SetChapter replaces the current chapter and its metadata.
func (c *Context) SetChapter(info media.ChapterInfo, metadata map[string]string) {
	c.chapterInfo = &info
	c.chapterMetadata = cloneMetadata(metadata)
}

// ClearChapter removes the current chapter and its metadata.
func (c *Context) ClearChapter() {
	c.chapterInfo = nil
	c.chapterMetadata = map[string]string{}
}

// Chapter returns the current chapter, if any.
func (c *Context) Chapter() (*media.ChapterInfo, bool) {
	if c.chapterInfo == nil {
		return nil, false
	}
	info := *c.chapterInfo
	return &info, true
}

// ChapterMetadata returns a copy of the current chapter metadata.
func (c *Context) ChapterMetadata() map[string]string {
	return cloneMetadata(c.chapterMetadata)
}

// SetError replaces the current error details.
func (c *Context) SetError(info map[string]string) {
	c.errorInfo = cloneMetadata(info)
}

// ClearError removes the current error details.
func (c *Context) ClearError() {
	c.errorInfo = nil
}

// ErrorInfo returns a copy of the current error details, if any.
func (c *Context) ErrorInfo() (map[string]string, bool) {
	if c.errorInfo == nil {
		return nil, false
	}
	return cloneMetadata(c.errorInfo), true
}

// Playhead returns the current playhead in seconds.
func (c *Context) Playhead() float64 {
	return c.playhead
}

// SetPlayhead sets the playhead. Seeks may move it in either direction.
func (c *Context) SetPlayhead(playhead float64) {
	c.playhead = playhead
}

// QoE returns the last reported QoE snapshot, if any.
func (c *Context) QoE() (*media.QoEInfo, bool) {
	if c.qoeInfo == nil {
		return nil, false
	}
	info := *c.qoeInfo
	return &info, true
}

// SetQoE overwrites the QoE snapshot.
func (c *Context) SetQoE(info media.QoEInfo) {
	c.qoeInfo = &info
}

// EnterState enters a base state (Play, Pause) or sets an overlay (Buffer, Seek).
// Entering Init is invalid and ignored.
func (c *Context) EnterState(state State) {
	c.logger.Trace().Msgf("enter state: %s", state)
	switch state {
	case StatePlay, StatePause:
		c.playState = state
	case StateBuffer:
		c.buffering = true
	case StateSeek:
		c.seeking = true
	default:
		c.logger.Debug().Msgf("invalid state passed to EnterState: %s", state)
	}
}

// ExitState clears an overlay state. Base states cannot be exited.
func (c *Context) ExitState(state State) {
	c.logger.Trace().Msgf("exit state: %s", state)
	switch state {
	case StateBuffer:
		c.buffering = false
	case StateSeek:
		c.seeking = false
	default:
		c.logger.Debug().Msgf("invalid state passed to ExitState: %s", state)
	}
}

// IsIn reports whether the context is in the given base or overlay state.
func (c *Context) IsIn(state State) bool {
	switch state {
	case StateInit, StatePlay, StatePause:
		return c.playState == state
	case StateBuffer:
		return c.buffering
	case StateSeek:
		return c.seeking
	default:
		return false
	}
}

// IsIdle reports whether the session is not progressing: not playing, or
// playing while seeking or buffering.
func (c *Context) IsIdle() bool {
	return !c.IsIn(StatePlay) || c.IsIn(StateSeek) || c.IsIn(StateBuffer)
}

// StartTrackedState marks a custom state active.
// It fails if the state is already active, or if it is new and the limit is reached.
func (c *Context) StartTrackedState(info media.StateInfo) bool {
	if !c.HasEverTracked(info) && c.ReachedStateLimit() {
		c.logger.Debug().Msgf("start state failed, already tracked max states (%d) during the current session", c.stateLimit)
		return false
	}
	if c.IsTracking(info) {
		c.logger.Debug().Msgf("start state failed, state %s is already being tracked", info.Name)
		return false
	}
	c.trackedStates[info.Name] = true
	return true
}

// EndTrackedState marks an active custom state inactive.
func (c *Context) EndTrackedState(info media.StateInfo) bool {
	if !c.IsTracking(info) {
		c.logger.Debug().Msgf("end state failed, state %s is not being tracked", info.Name)
		return false
	}
	c.trackedStates[info.Name] = false
	return true
}

// IsTracking reports whether the custom state is currently active.
func (c *Context) IsTracking(info media.StateInfo) bool {
	return c.trackedStates[info.Name]
}

// HasEverTracked reports whether the custom state was started during this session.
func (c *Context) HasEverTracked(info media.StateInfo) bool {
	_, ok := c.trackedStates[info.Name]
	return ok
}

// ActiveTrackedStates returns the active custom states ordered by name.
func (c *Context) ActiveTrackedStates() []media.StateInfo {
	names := make([]string, 0, len(c.trackedStates))
	for name, active := range c.trackedStates {
		if active {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	states := make([]media.StateInfo, 0, len(names))
	for _, name := range names {
		states = append(states, media.StateInfo{Name: name})
	}
	return states
}

// ReachedStateLimit reports whether the number of known custom states hit the limit.
func (c *Context) ReachedStateLimit() bool {
	return len(c.trackedStates) >= c.stateLimit
}

// StateLimit returns the custom state limit.
func (c *Context) StateLimit() int {
	return c.stateLimit
}

// ClearAllTrackedStates forgets every known custom state.
func (c *Context) ClearAllTrackedStates() {
	clear(c.trackedStates)
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
