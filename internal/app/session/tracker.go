package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/mediatrack/internal/app/notification"
	"github.com/osa030/mediatrack/internal/app/playback"
	"github.com/osa030/mediatrack/internal/app/scheduler"
	"github.com/osa030/mediatrack/internal/domain/event"
	"github.com/osa030/mediatrack/internal/domain/media"
)

// Errors
var (
	ErrNotStarted      = errors.New("tracker is not started")
	ErrTrackerClosed   = errors.New("tracker is closed")
	ErrNoSession       = errors.New("no active session")
	ErrSessionActive   = errors.New("session already active")
	ErrInvalidState    = errors.New("invalid state for action")
	ErrInvalidPlayhead = errors.New("playhead must not be negative")
)

// Config holds tracker configuration.
type Config struct {
	HeartbeatInterval time.Duration // Ping cadence
	StateLimit        int           // Max distinct custom states per session
	IdleTimeout       time.Duration // End the session after this long idle; 0 disables
	AdvancePlayhead   bool          // Add the interval to the playhead on each ping
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// TickerFactory creates the heartbeat ticker for a session.
type TickerFactory func(interval time.Duration, onTick func()) scheduler.Ticker

func defaultTickerFactory(interval time.Duration, onTick func()) scheduler.Ticker {
	return scheduler.New("heartbeat", interval, onTick)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for timestamps and idle detection.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithTickerFactory replaces the heartbeat ticker implementation.
func WithTickerFactory(f TickerFactory) Option {
	return func(t *Tracker) { t.newTicker = f }
}

// WithNotifier sets the manager events are published to.
func WithNotifier(n *notification.Manager) Option {
	return func(t *Tracker) { t.notifier = n }
}

// Snapshot is a point-in-time view of the tracked session.
type Snapshot struct {
	Phase        Phase
	SessionID    string
	Playhead     float64
	Idle         bool
	Playing      bool
	Buffering    bool
	Seeking      bool
	ActiveStates []media.StateInfo
	AdBreak      *media.AdBreakInfo
	Ad           *media.AdInfo
	Chapter      *media.ChapterInfo
}

// Tracker owns one media session at a time. Every action and heartbeat tick
// runs on a single command loop, so the playback context is never accessed
// concurrently.
type Tracker struct {
	config    Config
	clock     Clock
	newTicker TickerFactory
	notifier  *notification.Manager
	logger    zerolog.Logger

	cmds    chan func()
	done    chan struct{}
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Owned by the command loop.
	phase        Phase
	sessionID    string
	media        *playback.Context
	ticker       scheduler.Ticker
	lastPlayback event.Type
	hasPlayback  bool
	idleSince    time.Time
}

// NewTracker creates a tracker. Call Start before issuing actions.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		config:    cfg,
		clock:     realClock{},
		newTicker: defaultTickerFactory,
		logger:    zlog.With().Str("component", "tracker").Logger(),
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		phase:     PhaseIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.notifier == nil {
		t.notifier = notification.NewManager()
	}
	return t
}

// Notifier returns the manager events are published to.
func (t *Tracker) Notifier() *notification.Manager {
	return t.notifier
}

// Start launches the command loop. It stops when ctx is cancelled or Close is called.
func (t *Tracker) Start(ctx context.Context) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.loop(ctx)
}

// Done is closed once the command loop has exited.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Close stops the command loop and the heartbeat ticker.
func (t *Tracker) Close() {
	if !t.started.Load() {
		return
	}
	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) loop(ctx context.Context) {
	defer t.wg.Done()
	defer close(t.done)
	defer func() {
		if t.ticker != nil {
			t.ticker.Cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-t.cmds:
			cmd()
		}
	}
}

// do runs fn on the command loop and waits for its result.
func (t *Tracker) do(fn func() error) error {
	if !t.started.Load() {
		return ErrNotStarted
	}
	result := make(chan error, 1)
	select {
	case t.cmds <- func() { result <- fn() }:
	case <-t.done:
		return ErrTrackerClosed
	}
	select {
	case err := <-result:
		return err
	case <-t.done:
		return ErrTrackerClosed
	}
}

func (t *Tracker) onTick(sessionID string) {
	err := t.do(func() error { return t.handleTick(sessionID) })
	if err != nil && !errors.Is(err, ErrTrackerClosed) {
		t.logger.Warn().Err(err).Msg("heartbeat tick failed")
	}
}

// activeAction wraps fn so it only runs while a session is active.
func (t *Tracker) activeAction(name string, fn func() error) error {
	return t.do(func() error {
		if t.phase != PhaseActive {
			return errors.Wrapf(ErrNoSession, "%s", name)
		}
		if err := fn(); err != nil {
			t.logger.Debug().Err(err).Msgf("%s rejected", name)
			return err
		}
		t.updatePlayback()
		return nil
	})
}

// StartSession begins tracking a new session and starts the heartbeat.
func (t *Tracker) StartSession(info media.MediaInfo, metadata map[string]string) error {
	if err := media.Validate(info); err != nil {
		return errors.Wrap(err, "invalid media info")
	}
	return t.do(func() error {
		if t.phase == PhaseActive {
			return ErrSessionActive
		}
		t.sessionID = uuid.New().String()
		t.media = playback.NewContext(info, metadata,
			playback.WithStateLimit(t.config.StateLimit),
			playback.WithLogger(t.logger.With().Str("session_id", t.sessionID).Logger()))
		t.phase = PhaseActive
		t.hasPlayback = false
		t.idleSince = t.clock.Now()

		t.logger.Info().Msgf("session started: session_id=%s media=%s length=%.1f", t.sessionID, info.ID, info.Length)
		t.emit(event.TypeSessionStart, func(e *event.Event) {
			e.Metadata = t.media.MediaMetadata()
		})

		sessionID := t.sessionID
		t.ticker = t.newTicker(t.config.HeartbeatInterval, func() { t.onTick(sessionID) })
		t.ticker.Start()
		return nil
	})
}

// Play records that playback started or resumed.
func (t *Tracker) Play() error {
	return t.activeAction("play", func() error {
		t.media.EnterState(playback.StatePlay)
		return nil
	})
}

// Pause records that playback paused.
func (t *Tracker) Pause() error {
	return t.activeAction("pause", func() error {
		t.media.EnterState(playback.StatePause)
		return nil
	})
}

// BufferStart records that the player started buffering.
func (t *Tracker) BufferStart() error {
	return t.activeAction("buffer start", func() error {
		t.media.EnterState(playback.StateBuffer)
		return nil
	})
}

// BufferComplete records that buffering finished.
func (t *Tracker) BufferComplete() error {
	return t.activeAction("buffer complete", func() error {
		if !t.media.IsIn(playback.StateBuffer) {
			return errors.Wrap(ErrInvalidState, "not buffering")
		}
		t.media.ExitState(playback.StateBuffer)
		return nil
	})
}

// SeekStart records that the user started seeking.
func (t *Tracker) SeekStart() error {
	return t.activeAction("seek start", func() error {
		t.media.EnterState(playback.StateSeek)
		return nil
	})
}

// SeekComplete records that seeking finished.
func (t *Tracker) SeekComplete() error {
	return t.activeAction("seek complete", func() error {
		if !t.media.IsIn(playback.StateSeek) {
			return errors.Wrap(ErrInvalidState, "not seeking")
		}
		t.media.ExitState(playback.StateSeek)
		return nil
	})
}

// AdBreakStart starts an ad break, completing any running one first.
func (t *Tracker) AdBreakStart(info media.AdBreakInfo) error {
	if err := media.Validate(info); err != nil {
		return errors.Wrap(err, "invalid ad break info")
	}
	return t.activeAction("ad break start", func() error {
		if current, ok := t.media.AdBreak(); ok {
			if *current == info {
				return nil
			}
			t.completeAdBreak()
		}
		t.media.SetAdBreak(info)
		t.emit(event.TypeAdBreakStart, nil)
		return nil
	})
}

// AdBreakComplete completes the running ad break and any ad within it.
func (t *Tracker) AdBreakComplete() error {
	return t.activeAction("ad break complete", func() error {
		if _, ok := t.media.AdBreak(); !ok {
			return errors.Wrap(ErrInvalidState, "no active ad break")
		}
		t.completeAdBreak()
		return nil
	})
}

// AdStart starts an ad inside the running ad break.
func (t *Tracker) AdStart(info media.AdInfo, metadata map[string]string) error {
	if err := media.Validate(info); err != nil {
		return errors.Wrap(err, "invalid ad info")
	}
	return t.activeAction("ad start", func() error {
		if _, ok := t.media.AdBreak(); !ok {
			return errors.Wrap(ErrInvalidState, "ad started outside an ad break")
		}
		if current, ok := t.media.Ad(); ok {
			if *current == info {
				return nil
			}
			t.endAd(event.TypeAdComplete)
		}
		t.media.SetAd(info, metadata)
		t.emit(event.TypeAdStart, func(e *event.Event) {
			e.Metadata = t.media.AdMetadata()
		})
		return nil
	})
}

// AdComplete completes the running ad.
func (t *Tracker) AdComplete() error {
	return t.endAdAction("ad complete", event.TypeAdComplete)
}

// AdSkip skips the running ad.
func (t *Tracker) AdSkip() error {
	return t.endAdAction("ad skip", event.TypeAdSkip)
}

func (t *Tracker) endAdAction(name string, typ event.Type) error {
	return t.activeAction(name, func() error {
		if _, ok := t.media.Ad(); !ok {
			return errors.Wrap(ErrInvalidState, "no active ad")
		}
		t.endAd(typ)
		return nil
	})
}

// ChapterStart starts a chapter, completing any running one first.
func (t *Tracker) ChapterStart(info media.ChapterInfo, metadata map[string]string) error {
	if err := media.Validate(info); err != nil {
		return errors.Wrap(err, "invalid chapter info")
	}
	return t.activeAction("chapter start", func() error {
		if current, ok := t.media.Chapter(); ok {
			if *current == info {
				return nil
			}
			t.endChapter(event.TypeChapterComplete)
		}
		t.media.SetChapter(info, metadata)
		t.emit(event.TypeChapterStart, func(e *event.Event) {
			e.Metadata = t.media.ChapterMetadata()
		})
		return nil
	})
}

// ChapterComplete completes the running chapter.
func (t *Tracker) ChapterComplete() error {
	return t.endChapterAction("chapter complete", event.TypeChapterComplete)
}

// ChapterSkip skips the running chapter.
func (t *Tracker) ChapterSkip() error {
	return t.endChapterAction("chapter skip", event.TypeChapterSkip)
}

func (t *Tracker) endChapterAction(name string, typ event.Type) error {
	return t.activeAction(name, func() error {
		if _, ok := t.media.Chapter(); !ok {
			return errors.Wrap(ErrInvalidState, "no active chapter")
		}
		t.endChapter(typ)
		return nil
	})
}

// StateStart starts tracking a custom state.
func (t *Tracker) StateStart(info media.StateInfo) error {
	if err := media.Validate(info); err != nil {
		return errors.Wrap(err, "invalid state info")
	}
	return t.activeAction("state start", func() error {
		if !t.media.StartTrackedState(info) {
			return errors.Wrapf(ErrInvalidState, "cannot start state %s", info.Name)
		}
		t.emit(event.TypeStateStart, func(e *event.Event) { e.State = &info })
		return nil
	})
}

// StateEnd stops tracking a custom state.
func (t *Tracker) StateEnd(info media.StateInfo) error {
	if err := media.Validate(info); err != nil {
		return errors.Wrap(err, "invalid state info")
	}
	return t.activeAction("state end", func() error {
		if !t.media.EndTrackedState(info) {
			return errors.Wrapf(ErrInvalidState, "cannot end state %s", info.Name)
		}
		t.emit(event.TypeStateEnd, func(e *event.Event) { e.State = &info })
		return nil
	})
}

// UpdatePlayhead sets the current playhead in seconds.
func (t *Tracker) UpdatePlayhead(playhead float64) error {
	if playhead < 0 {
		return errors.Wrapf(ErrInvalidPlayhead, "got %f", playhead)
	}
	return t.activeAction("update playhead", func() error {
		t.media.SetPlayhead(playhead)
		return nil
	})
}

// UpdateQoE replaces the QoE snapshot attached to subsequent events.
func (t *Tracker) UpdateQoE(info media.QoEInfo) error {
	if err := media.Validate(info); err != nil {
		return errors.Wrap(err, "invalid qoe info")
	}
	return t.activeAction("update qoe", func() error {
		t.media.SetQoE(info)
		return nil
	})
}

// BitrateChange emits a bitrate change with the current QoE snapshot.
func (t *Tracker) BitrateChange() error {
	return t.activeAction("bitrate change", func() error {
		t.emit(event.TypeBitrateChange, nil)
		return nil
	})
}

// Error reports a player error.
func (t *Tracker) Error(errorID string) error {
	if errorID == "" {
		return errors.New("error id is required")
	}
	return t.activeAction("error", func() error {
		t.media.SetError(map[string]string{"error.id": errorID, "error.source": "player"})
		t.emit(event.TypeError, func(e *event.Event) {
			e.Error, _ = t.media.ErrorInfo()
		})
		return nil
	})
}

// Complete marks the content as finished and ends the session.
// Open ads, ad breaks and chapters are completed first.
func (t *Tracker) Complete() error {
	return t.do(func() error {
		if t.phase != PhaseActive {
			return errors.Wrap(ErrNoSession, "complete")
		}
		if _, ok := t.media.AdBreak(); ok {
			t.completeAdBreak()
		}
		if _, ok := t.media.Chapter(); ok {
			t.endChapter(event.TypeChapterComplete)
		}
		t.emit(event.TypeSessionComplete, nil)
		t.endSession("complete")
		return nil
	})
}

// End abandons the session without completing open ads or chapters.
func (t *Tracker) End() error {
	return t.do(func() error {
		if t.phase != PhaseActive {
			return errors.Wrap(ErrNoSession, "end")
		}
		t.emit(event.TypeSessionEnd, nil)
		t.endSession("end")
		return nil
	})
}

// Snapshot returns the current session facts.
func (t *Tracker) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := t.do(func() error {
		s.Phase = t.phase
		s.SessionID = t.sessionID
		if t.media == nil {
			s.Idle = true
			return nil
		}
		s.Playhead = t.media.Playhead()
		s.Idle = t.media.IsIdle()
		s.Playing = t.media.IsIn(playback.StatePlay)
		s.Buffering = t.media.IsIn(playback.StateBuffer)
		s.Seeking = t.media.IsIn(playback.StateSeek)
		s.ActiveStates = t.media.ActiveTrackedStates()
		s.AdBreak, _ = t.media.AdBreak()
		s.Ad, _ = t.media.Ad()
		s.Chapter, _ = t.media.Chapter()
		return nil
	})
	return s, err
}

// handleTick ignores ticks queued by the ticker of an earlier session.
func (t *Tracker) handleTick(sessionID string) error {
	if t.phase != PhaseActive || t.sessionID != sessionID {
		return nil
	}
	now := t.clock.Now()

	if t.media.IsIdle() {
		if t.config.IdleTimeout > 0 && !t.idleSince.IsZero() && now.Sub(t.idleSince) >= t.config.IdleTimeout {
			t.logger.Info().Msgf("session idle timeout: session_id=%s idle=%v", t.sessionID, now.Sub(t.idleSince))
			t.emit(event.TypeSessionEnd, nil)
			t.endSession("idle timeout")
		}
		return nil
	}

	if t.config.AdvancePlayhead {
		t.media.SetPlayhead(t.media.Playhead() + t.config.HeartbeatInterval.Seconds())
	}
	t.emit(event.TypePing, nil)
	return nil
}

// updatePlayback emits the playback event implied by the current state when
// it differs from the last one emitted, and tracks idle time.
func (t *Tracker) updatePlayback() {
	if t.media.IsIdle() {
		if t.idleSince.IsZero() {
			t.idleSince = t.clock.Now()
		}
	} else {
		t.idleSince = time.Time{}
	}

	var typ event.Type
	switch {
	case t.media.IsIn(playback.StateBuffer):
		typ = event.TypeBufferStart
	case t.media.IsIn(playback.StateSeek):
		typ = event.TypePauseStart
	case t.media.IsIn(playback.StatePlay):
		typ = event.TypePlay
	case t.media.IsIn(playback.StatePause):
		typ = event.TypePauseStart
	default:
		return
	}

	if t.hasPlayback && t.lastPlayback == typ {
		return
	}
	t.lastPlayback = typ
	t.hasPlayback = true
	t.emit(typ, nil)
}

func (t *Tracker) completeAdBreak() {
	if _, ok := t.media.Ad(); ok {
		t.endAd(event.TypeAdComplete)
	}
	t.emit(event.TypeAdBreakComplete, nil)
	t.media.ClearAdBreak()
}

func (t *Tracker) endAd(typ event.Type) {
	t.emit(typ, func(e *event.Event) {
		e.Metadata = t.media.AdMetadata()
	})
	t.media.ClearAd()
}

func (t *Tracker) endChapter(typ event.Type) {
	t.emit(typ, func(e *event.Event) {
		e.Metadata = t.media.ChapterMetadata()
	})
	t.media.ClearChapter()
}

func (t *Tracker) endSession(reason string) {
	if t.ticker != nil {
		t.ticker.Cancel()
		t.ticker = nil
	}
	t.media.ClearAllTrackedStates()
	t.media.ClearError()
	t.phase = PhaseEnded
	t.logger.Info().Msgf("session ended: session_id=%s reason=%s playhead=%.1f", t.sessionID, reason, t.media.Playhead())
}

// emit builds an event from the current context and publishes it.
func (t *Tracker) emit(typ event.Type, decorate func(*event.Event)) {
	info := t.media.MediaInfo()
	e := event.Event{
		SessionID: t.sessionID,
		Type:      typ,
		Timestamp: t.clock.Now(),
		Playhead:  t.media.Playhead(),
		Media:     &info,
	}
	e.AdBreak, _ = t.media.AdBreak()
	e.Ad, _ = t.media.Ad()
	e.Chapter, _ = t.media.Chapter()
	e.QoE, _ = t.media.QoE()
	if decorate != nil {
		decorate(&e)
	}
	t.notifier.Publish(e)
}
