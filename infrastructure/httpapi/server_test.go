package httpapi

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/services"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	online      []domain.OnlineUser
	recent      []domain.ChatMessage
	recentLimit int
	sent        []domain.ChatMessage
	sessions    []domain.ChatSession
	history     []domain.ChatMessage
	historyUser string
	err         error
}

func (f *fakeChatService) Attach(ctx context.Context, connectionID string, identity domain.Identity, sink contract.EventSink) (domain.Connection, error) {
	return domain.Connection{}, nil
}

func (f *fakeChatService) Detach(ctx context.Context, connectionID string) {}

func (f *fakeChatService) SendPublic(ctx context.Context, sender domain.Identity, content string) (domain.ChatMessage, error) {
	if f.err != nil {
		return domain.ChatMessage{}, f.err
	}
	msg := domain.NewPublicMessage(sender, content)
	f.sent = append(f.sent, msg)
	return msg, nil
}

func (f *fakeChatService) SendPrivate(ctx context.Context, sender domain.Identity, receiverID, content string) (domain.ChatMessage, error) {
	return domain.ChatMessage{}, f.err
}

func (f *fakeChatService) OnlineUsers() ([]domain.OnlineUser, int) {
	return f.online, len(f.online)
}

func (f *fakeChatService) RecentHistory(limit int) ([]domain.ChatMessage, error) {
	f.recentLimit = limit
	return f.recent, f.err
}

func (f *fakeChatService) PrivateHistory(userA, userB string, limit int) ([]domain.ChatMessage, error) {
	f.historyUser = userB
	return f.history, f.err
}

func (f *fakeChatService) Sessions(userID string) ([]domain.ChatSession, error) {
	return f.sessions, f.err
}

type memoryUserRepository struct {
	byName map[string]repositories.User
}

func (m *memoryUserRepository) CreateUser(username, hashedPassword string) (string, error) {
	if _, exists := m.byName[username]; exists {
		return "", errors.ErrUserAlreadyExists
	}
	user := repositories.User{ID: uuid.NewString(), Username: username, PasswordHash: hashedPassword}
	m.byName[username] = user
	return user.ID, nil
}

func (m *memoryUserRepository) GetUserByUsername(username string) (repositories.User, error) {
	user, ok := m.byName[username]
	if !ok {
		return repositories.User{}, errors.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUserRepository) UsernameFor(userID string) (string, error) {
	for _, user := range m.byName {
		if user.ID == userID {
			return user.Username, nil
		}
	}
	return "", errors.ErrUserNotFound
}

func newTestServer(t *testing.T, chat *fakeChatService) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := services.NewAuthService(&memoryUserRepository{byName: make(map[string]repositories.User)}, time.Hour)

	engine := gin.New()
	NewServer(log, chat, auth).Register(engine)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServer_Register(t *testing.T) {
	server := newTestServer(t, &fakeChatService{})

	t.Run("should create an account and return a token", func(t *testing.T) {
		req := require.New(t)
		resp := postJSON(t, server.URL+"/api/users/register",
			map[string]string{"username": "alice42", "password": "ComplexPass123"})

		req.Equal(http.StatusCreated, resp.StatusCode)
		var body tokenResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&body))
		req.NotEmpty(body.Token)
	})

	t.Run("should reject a duplicate username with 409", func(t *testing.T) {
		req := require.New(t)
		resp := postJSON(t, server.URL+"/api/users/register",
			map[string]string{"username": "alice42", "password": "ComplexPass123"})

		req.Equal(http.StatusConflict, resp.StatusCode)
	})

	t.Run("should reject a weak password with 400", func(t *testing.T) {
		req := require.New(t)
		resp := postJSON(t, server.URL+"/api/users/register",
			map[string]string{"username": "bob0001", "password": "weak"})

		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should reject a missing body with 400", func(t *testing.T) {
		req := require.New(t)
		resp := postJSON(t, server.URL+"/api/users/register", map[string]string{})

		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Login(t *testing.T) {
	server := newTestServer(t, &fakeChatService{})

	resp := postJSON(t, server.URL+"/api/users/register",
		map[string]string{"username": "alice42", "password": "ComplexPass123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("should return a token for valid credentials", func(t *testing.T) {
		req := require.New(t)
		resp := postJSON(t, server.URL+"/api/users/login",
			map[string]string{"username": "alice42", "password": "ComplexPass123"})

		req.Equal(http.StatusOK, resp.StatusCode)
		var body tokenResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&body))
		req.NotEmpty(body.Token)
	})

	t.Run("should answer 401 for a wrong password", func(t *testing.T) {
		req := require.New(t)
		resp := postJSON(t, server.URL+"/api/users/login",
			map[string]string{"username": "alice42", "password": "WrongPass123"})

		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should answer 401 for an unknown user", func(t *testing.T) {
		req := require.New(t)
		resp := postJSON(t, server.URL+"/api/users/login",
			map[string]string{"username": "nobody99", "password": "ComplexPass123"})

		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_Online(t *testing.T) {
	req := require.New(t)
	chat := &fakeChatService{online: []domain.OnlineUser{
		{UserID: "u1", Username: "alice"},
		{UserID: "u2", Username: "bob"},
	}}
	server := newTestServer(t, chat)

	resp, err := http.Get(server.URL + "/api/users/online")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	req.Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		Users []domain.OnlineUser `json:"users"`
		Count int                 `json:"count"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal(2, body.Count)
	req.Len(body.Users, 2)
}

func TestServer_ProtectedRoutes(t *testing.T) {
	sender := domain.Identity{UserID: "u1", Username: "alice"}
	chat := &fakeChatService{
		recent:   []domain.ChatMessage{domain.NewPublicMessage(sender, "hello")},
		sessions: []domain.ChatSession{{OtherUserID: "u2", OtherUsername: "bob", LastMessage: "hi"}},
	}
	server := newTestServer(t, chat)

	register := postJSON(t, server.URL+"/api/users/register",
		map[string]string{"username": "alice42", "password": "ComplexPass123"})
	var issued tokenResponse
	require.NoError(t, json.NewDecoder(register.Body).Decode(&issued))

	t.Run("should refuse a missing token", func(t *testing.T) {
		req := require.New(t)
		resp := getWithToken(t, server.URL+"/api/messages", "")
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should refuse a garbage token", func(t *testing.T) {
		req := require.New(t)
		resp := getWithToken(t, server.URL+"/api/messages", "not.a.token")
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should serve recent messages with the parsed limit", func(t *testing.T) {
		req := require.New(t)
		resp := getWithToken(t, server.URL+"/api/messages?limit=10", issued.Token)

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal(10, chat.recentLimit)

		var body struct {
			Messages []domain.ChatMessage `json:"messages"`
		}
		req.NoError(json.NewDecoder(resp.Body).Decode(&body))
		req.Len(body.Messages, 1)
		req.Equal("hello", body.Messages[0].Content)
	})

	t.Run("should fall back to the default limit on garbage input", func(t *testing.T) {
		req := require.New(t)
		resp := getWithToken(t, server.URL+"/api/messages?limit=banana", issued.Token)

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal(0, chat.recentLimit)
	})

	t.Run("should list private chat sessions", func(t *testing.T) {
		req := require.New(t)
		resp := getWithToken(t, server.URL+"/api/private-chats", issued.Token)

		req.Equal(http.StatusOK, resp.StatusCode)
		var body struct {
			Sessions []domain.ChatSession `json:"sessions"`
		}
		req.NoError(json.NewDecoder(resp.Body).Decode(&body))
		req.Len(body.Sessions, 1)
		req.Equal("bob", body.Sessions[0].OtherUsername)
	})

	t.Run("should scope private history to the target user", func(t *testing.T) {
		req := require.New(t)
		resp := getWithToken(t, server.URL+"/api/private-chats/u2", issued.Token)

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal("u2", chat.historyUser)
	})

	t.Run("should publish a message over REST", func(t *testing.T) {
		req := require.New(t)
		data, err := json.Marshal(map[string]string{"content": "from rest"})
		req.NoError(err)

		request, err := http.NewRequest(http.MethodPost, server.URL+"/api/messages", bytes.NewReader(data))
		req.NoError(err)
		request.Header.Set("Authorization", "Bearer "+issued.Token)
		request.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(request)
		req.NoError(err)
		defer func() { _ = resp.Body.Close() }()

		req.Equal(http.StatusCreated, resp.StatusCode)
		req.Len(chat.sent, 1)
		req.Equal("from rest", chat.sent[0].Content)
	})

	t.Run("should map validation failures to 400", func(t *testing.T) {
		req := require.New(t)
		chat.err = errors.ErrEmptyContent
		defer func() { chat.err = nil }()

		resp := getWithToken(t, server.URL+"/api/messages", issued.Token)
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should map store failures to 500", func(t *testing.T) {
		req := require.New(t)
		chat.err = errors.ErrPersistence
		defer func() { chat.err = nil }()

		resp := getWithToken(t, server.URL+"/api/messages", issued.Token)
		req.Equal(http.StatusInternalServerError, resp.StatusCode)
	})
}
