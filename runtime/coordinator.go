package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Coordinator wires registry, arbiter, broadcaster and router into
// the connect / authenticate / disconnect flows. The transport layer
// drives it; it never touches sockets itself.
type Coordinator struct {
	log         *slog.Logger
	registry    *Registry
	arbiter     *Arbiter
	broadcaster *Broadcaster
	router      *Router
}

func NewCoordinator(log *slog.Logger,
	messages repositories.IMessageRepository, users repositories.IUserRepository,
	cacheCapacity int) *Coordinator {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(log, registry)
	return &Coordinator{
		log:         log,
		registry:    registry,
		arbiter:     NewArbiter(log, registry, broadcaster),
		broadcaster: broadcaster,
		router:      NewRouter(log, broadcaster, messages, users, NewRecentCache(cacheCapacity)),
	}
}

// Attach runs the post-authentication flow for a new connection:
// arbitration (evicting prior sessions of the same user), welcome
// message to the newcomer and a join announcement to everyone else.
func (c *Coordinator) Attach(ctx context.Context, connectionID string, identity domain.Identity, sink contract.EventSink) (domain.Connection, error) {
	conn := domain.Connection{
		ID:       connectionID,
		Identity: identity,
		JoinTime: time.Now().UTC(),
	}

	evicted, err := c.arbiter.Admit(ctx, conn, sink)
	if err != nil {
		// Duplicate registration should never happen; drop the
		// offending connection and keep serving everyone else.
		c.log.Error("Registry invariant violated, dropping connection",
			"connection", connectionID, "user", identity.UserID, "error", err)
		return domain.Connection{}, err
	}
	if len(evicted) > 0 {
		c.log.Info("User reconnected, prior sessions evicted",
			"user", identity.Username, "evicted", len(evicted))
	}

	c.broadcaster.Deliver(ctx,
		event.FromChatMessage(domain.NewSystemMessage(fmt.Sprintf("Welcome to the chat, %s!", identity.Username))),
		contract.SingleConnection(conn.ID))
	c.broadcaster.Announce(ctx, fmt.Sprintf("%s joined the chat", identity.Username), conn.ID)

	c.log.Info("User online", "user", identity.Username, "userId", identity.UserID, "connection", conn.ID)
	return conn, nil
}

// Detach runs the disconnect flow. Unknown connection ids are fine:
// the socket may have dropped before authentication completed, in
// which case there is nothing to clean up or announce.
func (c *Coordinator) Detach(ctx context.Context, connectionID string) {
	conn, ok := c.registry.Unregister(connectionID)
	if !ok {
		c.log.Debug("Unauthenticated connection closed", "connection", connectionID)
		return
	}

	c.broadcaster.Announce(ctx, fmt.Sprintf("%s left the chat", conn.Identity.Username), "")
	c.broadcaster.BroadcastPresence(ctx)
	c.log.Info("User offline", "user", conn.Identity.Username, "userId", conn.Identity.UserID)
}

func (c *Coordinator) SendPublic(ctx context.Context, sender domain.Identity, content string) (domain.ChatMessage, error) {
	return c.router.SendPublic(ctx, sender, content)
}

func (c *Coordinator) SendPrivate(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.ChatMessage, error) {
	return c.router.SendPrivate(ctx, sender, receiverID, content)
}

// OnlineUsers is the presence snapshot for the read surface.
func (c *Coordinator) OnlineUsers() ([]domain.OnlineUser, int) {
	users := c.registry.Snapshot()
	return users, len(users)
}

func (c *Coordinator) RecentHistory(limit int) ([]domain.ChatMessage, error) {
	return c.router.RecentHistory(limit)
}

func (c *Coordinator) PrivateHistory(userA, userB string, limit int) ([]domain.ChatMessage, error) {
	return c.router.PrivateHistory(userA, userB, limit)
}

func (c *Coordinator) Sessions(userID string) ([]domain.ChatSession, error) {
	return c.router.Sessions(userID)
}

// Registry exposes the registry for the transport layer's own reads.
// Mutation still only happens through Attach/Detach.
func (c *Coordinator) Registry() contract.ConnectionRegistry {
	return c.registry
}
