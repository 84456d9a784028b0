package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMessageStore struct {
	saved   []domain.ChatMessage
	saveErr error

	recent    []domain.ChatMessage
	recentErr error
	between   []domain.ChatMessage
	sessions  []domain.ChatSession
}

func (f *fakeMessageStore) Save(message domain.ChatMessage) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, message)
	return nil
}

func (f *fakeMessageStore) Recent(limit int) ([]domain.ChatMessage, error) {
	return f.recent, f.recentErr
}

func (f *fakeMessageStore) Between(userA, userB string, limit int) ([]domain.ChatMessage, error) {
	return f.between, nil
}

func (f *fakeMessageStore) SessionsFor(userID string) ([]domain.ChatSession, error) {
	return f.sessions, nil
}

type fakeUserStore struct {
	usernames map[string]string
}

func (f *fakeUserStore) CreateUser(username, hashedPassword string) (string, error) {
	return "", stderrors.New("not implemented")
}

func (f *fakeUserStore) GetUserByUsername(username string) (repositories.User, error) {
	return repositories.User{}, errors.ErrUserNotFound
}

func (f *fakeUserStore) UsernameFor(userID string) (string, error) {
	name, ok := f.usernames[userID]
	if !ok {
		return "", errors.ErrUserNotFound
	}
	return name, nil
}

func newRouterFixture(t *testing.T, store *fakeMessageStore, users *fakeUserStore) (*Router, *Registry) {
	t.Helper()
	registry := NewRegistry()
	broadcaster := NewBroadcaster(testLogger(), registry)
	return NewRouter(testLogger(), broadcaster, store, users, NewRecentCache(DefaultRecentCacheCapacity)), registry
}

func TestRouter_SendPublic_Reaches_Everyone(t *testing.T) {
	req := require.New(t)
	store := &fakeMessageStore{}
	router, registry := newRouterFixture(t, store, &fakeUserStore{})

	aliceSink := &collectingSink{}
	bobSink := &collectingSink{}
	req.NoError(registry.Register(newConn("u1", "alice"), aliceSink))
	req.NoError(registry.Register(newConn("u2", "bob"), bobSink))

	// When alice sends a public message
	msg, err := router.SendPublic(context.Background(), domain.Identity{UserID: "u1", Username: "alice"}, "hello everyone")
	req.NoError(err)

	// Then it is persisted once and delivered to sender and receiver alike
	req.Len(store.saved, 1)
	req.Equal(domain.KindPublic, store.saved[0].Kind)

	for _, sink := range []*collectingSink{aliceSink, bobSink} {
		events := sink.Events()
		req.Len(events, 1)
		wire, ok := events[0].(event.Message)
		req.True(ok)
		req.Equal("hello everyone", wire.Content)
		req.Equal(msg.ID.String(), wire.ID)
	}
}

func TestRouter_SendPublic_Validation(t *testing.T) {
	req := require.New(t)
	store := &fakeMessageStore{}
	router, _ := newRouterFixture(t, store, &fakeUserStore{})

	_, err := router.SendPublic(context.Background(), domain.Identity{UserID: "u1", Username: "alice"}, "   ")

	req.ErrorIs(err, errors.ErrEmptyContent)
	req.Empty(store.saved)
}

func TestRouter_SendPublic_Persistence_Failure_Has_No_Visible_Effect(t *testing.T) {
	req := require.New(t)
	store := &fakeMessageStore{saveErr: stderrors.New("disk full")}
	router, registry := newRouterFixture(t, store, &fakeUserStore{})

	sink := &collectingSink{}
	req.NoError(registry.Register(newConn("u1", "alice"), sink))

	// When the store rejects the write
	_, err := router.SendPublic(context.Background(), domain.Identity{UserID: "u1", Username: "alice"}, "hello")

	// Then the send fails as a persistence error, nothing is
	// broadcast and nothing enters the cache
	req.ErrorIs(err, errors.ErrPersistence)
	req.Empty(sink.Events())
	req.Zero(router.cache.Len())
}

func TestRouter_SendPrivate_Delivers_To_Both_Parties_Only(t *testing.T) {
	req := require.New(t)
	store := &fakeMessageStore{}
	users := &fakeUserStore{usernames: map[string]string{"u2": "bob"}}
	router, registry := newRouterFixture(t, store, users)

	aliceSink := &collectingSink{}
	bobSink := &collectingSink{}
	carolSink := &collectingSink{}
	req.NoError(registry.Register(newConn("u1", "alice"), aliceSink))
	req.NoError(registry.Register(newConn("u2", "bob"), bobSink))
	req.NoError(registry.Register(newConn("u3", "carol"), carolSink))

	// When alice sends bob a private message
	msg, err := router.SendPrivate(context.Background(), domain.Identity{UserID: "u1", Username: "alice"}, "u2", "just for you")
	req.NoError(err)
	req.Equal(domain.KindPrivate, msg.Kind)
	req.Equal("bob", msg.ReceiverName)

	t.Run("should reach the receiver and echo to the sender", func(t *testing.T) {
		for _, sink := range []*collectingSink{bobSink, aliceSink} {
			events := sink.Events()
			req.Len(events, 1)
			wire, ok := events[0].(event.PrivateMessage)
			req.True(ok)
			req.Equal("just for you", wire.Content)
		}
	})

	t.Run("should stay invisible to third parties", func(t *testing.T) {
		req.Empty(carolSink.Events())
	})

	t.Run("should never enter the public cache", func(t *testing.T) {
		req.Zero(router.cache.Len())
	})
}

func TestRouter_SendPrivate_To_Self_Delivers_Once(t *testing.T) {
	req := require.New(t)
	store := &fakeMessageStore{}
	users := &fakeUserStore{usernames: map[string]string{"u1": "alice"}}
	router, registry := newRouterFixture(t, store, users)

	aliceSink := &collectingSink{}
	req.NoError(registry.Register(newConn("u1", "alice"), aliceSink))

	// When alice messages herself
	_, err := router.SendPrivate(context.Background(), domain.Identity{UserID: "u1", Username: "alice"}, "u1", "note to self")
	req.NoError(err)

	// Then the message is persisted and shows up exactly once
	req.Len(store.saved, 1)
	events := aliceSink.Events()
	req.Len(events, 1)
	wire, ok := events[0].(event.PrivateMessage)
	req.True(ok)
	req.Equal("note to self", wire.Content)
}

func TestRouter_SendPrivate_Offline_Receiver_Still_Persists(t *testing.T) {
	req := require.New(t)
	store := &fakeMessageStore{}
	users := &fakeUserStore{usernames: map[string]string{"u2": "bob"}}
	router, registry := newRouterFixture(t, store, users)

	aliceSink := &collectingSink{}
	req.NoError(registry.Register(newConn("u1", "alice"), aliceSink))

	// When the receiver has no live connection
	_, err := router.SendPrivate(context.Background(), domain.Identity{UserID: "u1", Username: "alice"}, "u2", "see you later")

	// Then the message is durable and the sender still gets the echo
	req.NoError(err)
	req.Len(store.saved, 1)
	req.Len(aliceSink.Events(), 1)
}

func TestRouter_SendPrivate_Validation(t *testing.T) {
	req := require.New(t)
	store := &fakeMessageStore{}
	users := &fakeUserStore{usernames: map[string]string{"u2": "bob"}}
	router, _ := newRouterFixture(t, store, users)
	sender := domain.Identity{UserID: "u1", Username: "alice"}

	t.Run("should reject empty content", func(t *testing.T) {
		_, err := router.SendPrivate(context.Background(), sender, "u2", " ")
		req.ErrorIs(err, errors.ErrEmptyContent)
	})

	t.Run("should reject a missing receiver", func(t *testing.T) {
		_, err := router.SendPrivate(context.Background(), sender, "", "hello")
		req.ErrorIs(err, errors.ErrReceiverRequired)
	})

	t.Run("should fail before persistence for an unknown receiver", func(t *testing.T) {
		_, err := router.SendPrivate(context.Background(), sender, "ghost", "hello")
		req.ErrorIs(err, errors.ErrReceiverNotFound)
		req.Empty(store.saved)
	})
}

func TestRouter_RecentHistory(t *testing.T) {
	req := require.New(t)
	sender := domain.Identity{UserID: "u1", Username: "alice"}

	t.Run("should fall back to the store while the cache is cold", func(t *testing.T) {
		store := &fakeMessageStore{recent: []domain.ChatMessage{domain.NewPublicMessage(sender, "from the store")}}
		router, _ := newRouterFixture(t, store, &fakeUserStore{})

		got, err := router.RecentHistory(50)
		req.NoError(err)
		req.Len(got, 1)
		req.Equal("from the store", got[0].Content)
	})

	t.Run("should serve from the cache once warm", func(t *testing.T) {
		store := &fakeMessageStore{recentErr: stderrors.New("store must not be read")}
		router, _ := newRouterFixture(t, store, &fakeUserStore{})
		for i := 0; i < 3; i++ {
			_, err := router.SendPublic(context.Background(), sender, "warming up")
			req.NoError(err)
		}

		got, err := router.RecentHistory(2)
		req.NoError(err)
		req.Len(got, 2)
	})

	t.Run("should wrap store failures as persistence errors", func(t *testing.T) {
		store := &fakeMessageStore{recentErr: stderrors.New("boom")}
		router, _ := newRouterFixture(t, store, &fakeUserStore{})

		_, err := router.RecentHistory(50)
		req.ErrorIs(err, errors.ErrPersistence)
	})
}
