package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

// Broadcaster owns fan-out policy: every delivery resolves a Target
// against the registry and walks the resulting sinks. Best effort, no
// delivery guarantees; a failing sink is logged and skipped so one
// bad connection never poisons a broadcast.
type Broadcaster struct {
	log      *slog.Logger
	registry contract.ConnectionRegistry
}

func NewBroadcaster(log *slog.Logger, registry contract.ConnectionRegistry) *Broadcaster {
	return &Broadcaster{log: log, registry: registry}
}

func (b *Broadcaster) Deliver(ctx context.Context, e event.DomainEvent, target contract.Target) {
	for _, s := range b.registry.SinksFor(target) {
		if err := s.Consume(ctx, e); err != nil {
			b.log.Warn("Sink rejected event", "type", e.EventType(), "error", err)
		}
	}
}

// BroadcastPresence emits the full online snapshot and count to every
// registered connection. Users and count come from one projection so
// a broadcast never shows a transiently inconsistent registry.
func (b *Broadcaster) BroadcastPresence(ctx context.Context) {
	users := b.registry.Snapshot()
	b.Deliver(ctx, event.PresenceSnapshot{Users: users, Count: len(users)}, contract.AllConnections())
}

// Announce broadcasts a system chat message, optionally skipping the
// originating connection. Fire and forget, never persisted.
func (b *Broadcaster) Announce(ctx context.Context, content string, excludeConnectionID string) {
	target := contract.AllConnections()
	if excludeConnectionID != "" {
		target = contract.AllExcept(excludeConnectionID)
	}
	b.Deliver(ctx, event.FromChatMessage(domain.NewSystemMessage(content)), target)
}
