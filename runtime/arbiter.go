package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"sync"
)

const evictionReason = "account_login_elsewhere"
const evictionMessage = "Your account signed in on another device. If this was not you, change your password immediately."

// Arbiter enforces the single-active-session rule at the moment a
// user authenticates: any prior connection of the same user is told
// it was forced out, then unregistered, before the new connection is
// registered.
type Arbiter struct {
	log         *slog.Logger
	registry    contract.ConnectionRegistry
	broadcaster contract.Broadcaster

	// userLocks serializes the lookup-then-mutate sequence per user:
	// two racing reconnects for the same account must see each other.
	// The map holds one mutex per user id ever admitted and is not
	// pruned: a mutex may be awaited by a concurrent Admit at any
	// time, so removal would need per-entry refcounting.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewArbiter(log *slog.Logger, registry contract.ConnectionRegistry, broadcaster contract.Broadcaster) *Arbiter {
	return &Arbiter{
		log:         log,
		registry:    registry,
		broadcaster: broadcaster,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

func (a *Arbiter) userLock(userID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		a.userLocks[userID] = lock
	}
	return lock
}

// Admit evicts every existing connection of conn's user (defensively
// zero or more), registers conn, and returns the evicted connections.
// If any eviction occurred, one presence broadcast runs after all
// evictions complete; a second follows registration regardless.
func (a *Arbiter) Admit(ctx context.Context, conn domain.Connection, sink contract.EventSink) ([]domain.Connection, error) {
	userID := conn.Identity.UserID
	lock := a.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	existing := a.registry.FindByUser(userID)
	for _, old := range existing {
		a.broadcaster.Deliver(ctx,
			event.ForcedLogout{Message: evictionMessage, Reason: evictionReason},
			contract.SingleConnection(old.ID))
		a.registry.Unregister(old.ID)
		a.log.Warn("Evicted prior session",
			"user", conn.Identity.Username, "userId", userID, "connection", old.ID)
	}
	// One broadcast for the whole eviction batch, not one per victim.
	if len(existing) > 0 {
		a.broadcaster.BroadcastPresence(ctx)
	}

	if err := a.registry.Register(conn, sink); err != nil {
		return existing, err
	}
	a.broadcaster.BroadcastPresence(ctx)
	return existing, nil
}
