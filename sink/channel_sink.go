// Package sink provides EventSink implementations. A sink is the
// delivery end of one connection; the coordinator only ever talks to
// sinks, never to sockets.
package sink

import (
	"chat-relay/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ChannelSink queues events for one connection's write pump. Delivery
// is best effort: if the buffer stays full past the delivery timeout
// the event is dropped, so a slow client can never stall the
// coordinator. Events that are accepted keep their emission order.
type ChannelSink struct {
	log             *slog.Logger
	events          chan event.DomainEvent
	deliveryTimeout time.Duration
	closeOnce       sync.Once
	closed          chan struct{}
}

func NewChannelSink(log *slog.Logger, bufferSize int, deliveryTimeout time.Duration) *ChannelSink {
	return &ChannelSink{
		log:             log,
		events:          make(chan event.DomainEvent, bufferSize),
		deliveryTimeout: deliveryTimeout,
		closed:          make(chan struct{}),
	}
}

func (s *ChannelSink) Consume(ctx context.Context, e event.DomainEvent) error {
	timer := time.NewTimer(s.deliveryTimeout)
	defer timer.Stop()

	select {
	case <-s.closed:
		return fmt.Errorf("sink closed")
	case <-ctx.Done():
		return ctx.Err()
	case s.events <- e:
		return nil
	case <-timer.C:
		// Best effort fan-out: drop rather than block the caller.
		s.log.Warn("Dropping event for slow connection", "type", e.EventType())
		return nil
	}
}

// Events is drained by the connection's write pump.
func (s *ChannelSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Close unblocks pending Consume calls. Idempotent.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Closed reports the shutdown signal for the write pump.
func (s *ChannelSink) Closed() <-chan struct{} {
	return s.closed
}
