// Package event defines the events delivered to connection sinks.
// The structs are the wire payloads: the websocket layer wraps them
// in a typed frame and marshals them as-is.
package event

import (
	"chat-relay/domain"
	"time"
)

// DomainEvent is anything that can be delivered to a connection.
// EventType is the frame type on the wire.
type DomainEvent interface {
	EventType() string
}

type AuthSuccess struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (AuthSuccess) EventType() string { return "auth_success" }

type AuthError struct {
	Message string `json:"message"`
}

func (AuthError) EventType() string { return "auth_error" }

// ForcedLogout is sent to an evicted connection before it is removed
// from the registry.
type ForcedLogout struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func (ForcedLogout) EventType() string { return "forced_logout" }

// Message carries a public or system chat message.
type Message struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId,omitempty"`
	SenderName   string    `json:"senderName,omitempty"`
	Content      string    `json:"content"`
	Kind         string    `json:"kind"`
	ReceiverID   string    `json:"receiverId,omitempty"`
	ReceiverName string    `json:"receiverName,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (Message) EventType() string { return "message" }

// PrivateMessage is a Message delivered on the private channel, to the
// receiver's connections and echoed to the sender's.
type PrivateMessage Message

func (PrivateMessage) EventType() string { return "private_message" }

type PresenceSnapshot struct {
	Users []domain.OnlineUser `json:"users"`
	Count int                 `json:"count"`
}

func (PresenceSnapshot) EventType() string { return "presence_snapshot" }

type Pong struct {
	Time time.Time `json:"time"`
}

func (Pong) EventType() string { return "pong" }

// Error reports a rejected operation back to the originating
// connection. Kind is one of the failure kinds in the errors package.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (Error) EventType() string { return "error" }

func FromChatMessage(m domain.ChatMessage) Message {
	return Message{
		ID:           m.ID.String(),
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		Content:      m.Content,
		Kind:         string(m.Kind),
		ReceiverID:   m.ReceiverID,
		ReceiverName: m.ReceiverName,
		Timestamp:    m.Timestamp,
	}
}
