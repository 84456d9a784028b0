//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

// EventSink is the delivery end of one connection. Implementations
// must not block the caller beyond their configured timeout.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// ConnectionRegistry tracks live authenticated connections. It is the
// single source of truth for who is online.
type ConnectionRegistry interface {
	// Register inserts a new connection. A duplicate connection id is
	// a programming error and fails with ErrDuplicateConnection.
	Register(conn domain.Connection, sink EventSink) error
	// Unregister removes a connection. Absent ids are a reported
	// no-op: a connection may disconnect before it ever authenticated.
	Unregister(connectionID string) (domain.Connection, bool)
	FindByConnection(connectionID string) (domain.Connection, bool)
	// FindByUser returns every connection of a user. Normally at most
	// one after arbitration, but callers must not assume cardinality.
	FindByUser(userID string) []domain.Connection
	// Snapshot lists online users in join order.
	Snapshot() []domain.OnlineUser
	Count() int
	SinksFor(target Target) []EventSink
}

// SessionArbiter enforces the one-active-connection-per-user rule at
// the moment a user authenticates.
type SessionArbiter interface {
	// Admit evicts any prior connection of the same user, registers
	// conn, and returns the evicted connections.
	Admit(ctx context.Context, conn domain.Connection, sink EventSink) ([]domain.Connection, error)
}

// Broadcaster owns fan-out policy so business logic never iterates
// sockets itself.
type Broadcaster interface {
	Deliver(ctx context.Context, e event.DomainEvent, target Target)
	BroadcastPresence(ctx context.Context)
	// Announce broadcasts a system chat message. Fire and forget,
	// never persisted. excludeConnectionID may be empty.
	Announce(ctx context.Context, content string, excludeConnectionID string)
}

// MessageRouter validates, persists and fans out chat messages.
type MessageRouter interface {
	SendPublic(ctx context.Context, sender domain.Identity, content string) (domain.ChatMessage, error)
	SendPrivate(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.ChatMessage, error)
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the
// worker, for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
