package repositories

import (
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndFetch(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// When a user is created
	id, err := repository.CreateUser("alice", "hashed-secret")
	req.NoError(err)
	req.NotEmpty(id)

	// Then it can be fetched by username
	user, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("hashed-secret", user.PasswordHash)

	// And the id index resolves back to the username
	username, err := repository.UsernameFor(id)
	req.NoError(err)
	req.Equal("alice", username)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice", "hash-1")
	req.NoError(err)

	_, err = repository.CreateUser("alice", "hash-2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_UnknownLookups(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByUsername("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.UsernameFor("no-such-id")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
