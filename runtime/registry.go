// Package runtime is the presence and message-routing coordinator:
// connection registry, session arbiter, broadcaster and message
// router. It coordinates shared state without containing transport or
// storage concerns.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"sync"
)

type registryEntry struct {
	conn domain.Connection
	sink contract.EventSink
}

// Registry owns the map of live authenticated connections. It is the
// only place connection state lives; all access goes through its
// methods, and no iteration handle ever leaves the lock scope.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*registryEntry
	byUser map[string]map[string]*registryEntry
	// order keeps connection ids in insertion order, which is join
	// order, so presence snapshots come out sorted by join time.
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*registryEntry),
		byUser: make(map[string]map[string]*registryEntry),
	}
}

// Register inserts a new connection with its delivery sink. A
// duplicate connection id is a programming error.
func (r *Registry) Register(conn domain.Connection, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[conn.ID]; exists {
		return errors.ErrDuplicateConnection
	}

	entry := &registryEntry{conn: conn, sink: sink}
	r.byConn[conn.ID] = entry

	userConns := r.byUser[conn.Identity.UserID]
	if userConns == nil {
		userConns = make(map[string]*registryEntry)
		r.byUser[conn.Identity.UserID] = userConns
	}
	userConns[conn.ID] = entry

	r.order = append(r.order, conn.ID)
	return nil
}

// Unregister removes and returns the connection if present. Removing
// an unknown id is a no-op: connections may drop before they ever
// completed authentication.
func (r *Registry) Unregister(connectionID string) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byConn[connectionID]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.byConn, connectionID)

	userID := entry.conn.Identity.UserID
	if userConns := r.byUser[userID]; userConns != nil {
		delete(userConns, connectionID)
		if len(userConns) == 0 {
			delete(r.byUser, userID)
		}
	}

	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return entry.conn, true
}

func (r *Registry) FindByConnection(connectionID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byConn[connectionID]
	if !ok {
		return domain.Connection{}, false
	}
	return entry.conn, true
}

// FindByUser returns every live connection of a user in join order.
// Normally at most one after arbitration, but the query makes no
// cardinality assumption.
func (r *Registry) FindByUser(userID string) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConns := r.byUser[userID]
	if len(userConns) == 0 {
		return nil
	}
	conns := make([]domain.Connection, 0, len(userConns))
	for _, id := range r.order {
		if entry, ok := userConns[id]; ok {
			conns = append(conns, entry.conn)
		}
	}
	return conns
}

// Snapshot projects the online users in join order.
func (r *Registry) Snapshot() []domain.OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.OnlineUser, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.byConn[id].conn.OnlineUser())
	}
	return users
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// SinksFor resolves a delivery target to the sinks it reaches, in
// join order. The slice is built under the read lock; delivery
// happens outside it.
func (r *Registry) SinksFor(target contract.Target) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id := target.ConnectionID(); id != "" {
		if entry, ok := r.byConn[id]; ok {
			return []contract.EventSink{entry.sink}
		}
		return nil
	}

	if userID := target.UserID(); userID != "" {
		userConns := r.byUser[userID]
		if len(userConns) == 0 {
			return nil
		}
		sinks := make([]contract.EventSink, 0, len(userConns))
		for _, id := range r.order {
			if entry, ok := userConns[id]; ok {
				sinks = append(sinks, entry.sink)
			}
		}
		return sinks
	}

	if !target.All() {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(r.order))
	for _, id := range r.order {
		if id == target.Excluded() {
			continue
		}
		sinks = append(sinks, r.byConn[id].sink)
	}
	return sinks
}
