// Package notification fans emitted session events out to registered sinks.
package notification

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/mediatrack/internal/domain/event"
)

// ErrSinkFull is returned by ChannelSink when its buffer is full.
var ErrSinkFull = errors.New("sink buffer is full")

// Sink receives published events.
type Sink interface {
	Send(event.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(event.Event) error

// Send calls f(e).
func (f SinkFunc) Send(e event.Event) error {
	return f(e)
}

type subscription struct {
	id   string
	sink Sink
}

// Manager manages sink subscriptions and publishing.
// Publish delivers synchronously and in subscription order so that
// sinks observe events in emission order.
type Manager struct {
	mu            sync.RWMutex
	subscriptions []*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make([]*subscription, 0),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(sink Sink) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions = append(m.subscriptions, &subscription{id: id, sink: sink})
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscriptions {
		if sub.id == subscriptionID {
			m.subscriptions = append(m.subscriptions[:i], m.subscriptions[i+1:]...)
			return
		}
	}
}

// Publish assigns the next sequence number and sends the event to every sink.
// Sink failures are logged and do not stop delivery to other sinks.
func (m *Manager) Publish(e event.Event) event.Event {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	e.Seq = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, len(m.subscriptions))
	copy(subs, m.subscriptions)
	m.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.sink.Send(e); err != nil {
			zlog.Warn().Err(err).Msgf("notification: sink %s rejected event: type=%s seq=%d", sub.id, e.Type, e.Seq)
		}
	}
	return e
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make([]*subscription, 0)
}

// ChannelSink delivers events to a buffered channel without blocking.
type ChannelSink struct {
	ch chan event.Event
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan event.Event, size)}
}

// Send implements Sink.
func (s *ChannelSink) Send(e event.Event) error {
	select {
	case s.ch <- e:
		return nil
	default:
		return errors.Wrapf(ErrSinkFull, "dropping %s", e.Type)
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan event.Event {
	return s.ch
}

// LogSink writes every event as a structured log line.
func LogSink() Sink {
	return SinkFunc(func(e event.Event) error {
		l := zlog.Info().
			Uint64("seq", e.Seq).
			Str("session_id", e.SessionID).
			Str("event", e.Type.String()).
			Float64("playhead", e.Playhead).
			Time("ts", e.Timestamp)
		if e.AdBreak != nil {
			l = l.Str("ad_break", e.AdBreak.Name)
		}
		if e.Ad != nil {
			l = l.Str("ad", e.Ad.ID)
		}
		if e.Chapter != nil {
			l = l.Str("chapter", e.Chapter.Name)
		}
		if e.State != nil {
			l = l.Str("state", e.State.Name)
		}
		if e.QoE != nil {
			l = l.Float64("bitrate", e.QoE.Bitrate)
		}
		if len(e.Error) > 0 {
			l = l.Interface("error", e.Error)
		}
		l.Msg("media event")
		return nil
	})
}
