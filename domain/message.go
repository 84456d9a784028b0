// Package domain holds the chat entities shared by the coordinator,
// the repositories and the transport layer. Plain data, no behavior
// beyond small constructors and projections.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindPublic  MessageKind = "public"
	KindSystem  MessageKind = "system"
	KindPrivate MessageKind = "private"
)

// ChatMessage is a single chat message. Receiver fields are populated
// if and only if Kind is KindPrivate.
type ChatMessage struct {
	ID           uuid.UUID
	SenderID     string
	SenderName   string
	Content      string
	Kind         MessageKind
	ReceiverID   string
	ReceiverName string
	Timestamp    time.Time
}

func NewPublicMessage(sender Identity, content string) ChatMessage {
	return ChatMessage{
		ID:         uuid.New(),
		SenderID:   sender.UserID,
		SenderName: sender.Username,
		Content:    content,
		Kind:       KindPublic,
		Timestamp:  time.Now().UTC(),
	}
}

func NewPrivateMessage(sender Identity, receiverID, receiverName, content string) ChatMessage {
	return ChatMessage{
		ID:           uuid.New(),
		SenderID:     sender.UserID,
		SenderName:   sender.Username,
		Content:      content,
		Kind:         KindPrivate,
		ReceiverID:   receiverID,
		ReceiverName: receiverName,
		Timestamp:    time.Now().UTC(),
	}
}

// NewSystemMessage builds a fire-and-forget announcement. System
// messages are broadcast but never persisted.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New(),
		Content:   content,
		Kind:      KindSystem,
		Timestamp: time.Now().UTC(),
	}
}

// ChatSession summarizes one private conversation of a user:
// the peer and the most recent message exchanged with them.
type ChatSession struct {
	OtherUserID   string    `json:"otherUserId"`
	OtherUsername string    `json:"otherUsername"`
	LastMessage   string    `json:"lastMessage"`
	LastTime      time.Time `json:"lastTime"`
}
