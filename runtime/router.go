package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Router validates, persists, caches and fans out chat messages.
// Persistence always completes before any delivery side effect; a
// store failure aborts the whole send with nothing visible to anyone.
// The router holds no lock across store calls.
type Router struct {
	log         *slog.Logger
	broadcaster contract.Broadcaster
	messages    repositories.IMessageRepository
	users       repositories.IUserRepository
	cache       *RecentCache
}

func NewRouter(log *slog.Logger, broadcaster contract.Broadcaster,
	messages repositories.IMessageRepository, users repositories.IUserRepository,
	cache *RecentCache) *Router {
	return &Router{
		log:         log,
		broadcaster: broadcaster,
		messages:    messages,
		users:       users,
		cache:       cache,
	}
}

// SendPublic persists a public message, appends it to the recent
// cache and broadcasts it to every registered connection, the sender
// included.
func (r *Router) SendPublic(ctx context.Context, sender domain.Identity, content string) (domain.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return domain.ChatMessage{}, errors.ErrEmptyContent
	}

	msg := domain.NewPublicMessage(sender, content)
	if err := r.messages.Save(msg); err != nil {
		// No partial visible effect: no cache append, no broadcast.
		r.log.Error("Public send aborted on persistence failure",
			"sender", sender.UserID, "error", err)
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	r.cache.Append(msg)
	r.broadcaster.Deliver(ctx, event.FromChatMessage(msg), contract.AllConnections())
	return msg, nil
}

// SendPrivate resolves the receiver, persists the message, then
// delivers it to every connection of the receiver and echoes it to
// every connection of the sender. An offline receiver still gets the
// durable copy; there is simply no live delivery.
func (r *Router) SendPrivate(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return domain.ChatMessage{}, errors.ErrEmptyContent
	}
	if receiverID == "" {
		return domain.ChatMessage{}, errors.ErrReceiverRequired
	}

	// Receiver lookup happens before any persistence attempt.
	receiverName, err := r.users.UsernameFor(receiverID)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %s", errors.ErrReceiverNotFound, receiverID)
	}

	msg := domain.NewPrivateMessage(sender, receiverID, receiverName, content)
	if err := r.messages.Save(msg); err != nil {
		r.log.Error("Private send aborted on persistence failure",
			"sender", sender.UserID, "receiver", receiverID, "error", err)
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	wire := event.PrivateMessage(event.FromChatMessage(msg))
	r.broadcaster.Deliver(ctx, wire, contract.UserConnections(receiverID))
	// A self-addressed message skips the echo so the sender sees it once.
	if receiverID != sender.UserID {
		r.broadcaster.Deliver(ctx, wire, contract.UserConnections(sender.UserID))
	}
	// Private messages never enter the public recent cache.
	return msg, nil
}

// RecentHistory reads the latest public messages, newest first. The
// cache answers only when it already holds enough entries; otherwise
// the durable store is consulted.
func (r *Router) RecentHistory(limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if cached, ok := r.cache.Newest(limit); ok {
		return cached, nil
	}
	messages, err := r.messages.Recent(limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, nil
}

func (r *Router) PrivateHistory(userA, userB string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	messages, err := r.messages.Between(userA, userB, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, nil
}

func (r *Router) Sessions(userID string) ([]domain.ChatSession, error) {
	sessions, err := r.messages.SessionsFor(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return sessions, nil
}
