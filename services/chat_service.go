package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime"
	"context"
)

// IChatService is the surface the transport layers talk to. It hides
// the coordinator's moving parts behind one interface so handlers can
// be tested against a fake.
type IChatService interface {
	Attach(ctx context.Context, connectionID string, identity domain.Identity, sink contract.EventSink) (domain.Connection, error)
	Detach(ctx context.Context, connectionID string)

	SendPublic(ctx context.Context, sender domain.Identity, content string) (domain.ChatMessage, error)
	SendPrivate(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.ChatMessage, error)

	OnlineUsers() ([]domain.OnlineUser, int)
	RecentHistory(limit int) ([]domain.ChatMessage, error)
	PrivateHistory(userA, userB string, limit int) ([]domain.ChatMessage, error)
	Sessions(userID string) ([]domain.ChatSession, error)
}

type ChatService struct {
	coordinator *runtime.Coordinator
}

func NewChatService(c *runtime.Coordinator) *ChatService {
	return &ChatService{coordinator: c}
}

func (s *ChatService) Attach(ctx context.Context, connectionID string, identity domain.Identity, sink contract.EventSink) (domain.Connection, error) {
	return s.coordinator.Attach(ctx, connectionID, identity, sink)
}

func (s *ChatService) Detach(ctx context.Context, connectionID string) {
	s.coordinator.Detach(ctx, connectionID)
}

func (s *ChatService) SendPublic(ctx context.Context, sender domain.Identity, content string) (domain.ChatMessage, error) {
	return s.coordinator.SendPublic(ctx, sender, content)
}

func (s *ChatService) SendPrivate(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.ChatMessage, error) {
	return s.coordinator.SendPrivate(ctx, sender, receiverID, content)
}

func (s *ChatService) OnlineUsers() ([]domain.OnlineUser, int) {
	return s.coordinator.OnlineUsers()
}

func (s *ChatService) RecentHistory(limit int) ([]domain.ChatMessage, error) {
	return s.coordinator.RecentHistory(limit)
}

func (s *ChatService) PrivateHistory(userA, userB string, limit int) ([]domain.ChatMessage, error) {
	return s.coordinator.PrivateHistory(userA, userB, limit)
}

func (s *ChatService) Sessions(userID string) ([]domain.ChatSession, error) {
	return s.coordinator.Sessions(userID)
}
