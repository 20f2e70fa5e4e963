// Package scheduler provides a repeating timer that drives session processing.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// State represents the timer lifecycle state.
type State int

const (
	StateIdle      State = iota // Created, not started
	StateRunning                // Ticking
	StateCancelled              // Stopped for good
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Ticker is the contract consumers depend on.
type Ticker interface {
	Start()
	Cancel()
	IsRunning() bool
}

// Timer fires a callback immediately on Start and then at a fixed interval
// on its own goroutine until cancelled. A cancelled timer cannot be restarted.
type Timer struct {
	mu       sync.Mutex
	state    State
	interval time.Duration
	onTick   func()
	stop     context.CancelFunc
	gen      uint64 // identifies the live tick stream

	tickMu sync.Mutex // serializes callbacks across streams

	logger zerolog.Logger
}

// New creates a timer. It does not start ticking.
func New(label string, interval time.Duration, onTick func()) *Timer {
	return &Timer{
		state:    StateIdle,
		interval: interval,
		onTick:   onTick,
		logger:   zlog.With().Str("component", "timer").Str("timer", label).Logger(),
	}
}

// Interval returns the tick interval.
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Start begins ticking. Calling Start on a running timer restarts the period.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateCancelled {
		t.logger.Debug().Msg("start ignored, timer already cancelled")
		return
	}
	if t.interval <= 0 {
		t.logger.Warn().Msgf("start ignored, invalid interval: %v", t.interval)
		return
	}

	if t.stop != nil {
		t.stop()
	}
	t.gen++
	ctx, cancel := context.WithCancel(context.Background())
	t.stop = cancel
	t.state = StateRunning

	go t.loop(ctx, t.gen)
}

// Cancel stops future ticks. A tick already executing is allowed to finish.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.state = StateCancelled
}

// IsRunning reports whether the timer has been started and not cancelled.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateRunning
}

// State returns the current lifecycle state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.fire(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(ctx, gen)
		}
	}
}

func (t *Timer) fire(ctx context.Context, gen uint64) {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	if ctx.Err() != nil || !t.isLive(gen) {
		return
	}
	t.onTick()
}

func (t *Timer) isLive(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateRunning && t.gen == gen
}
