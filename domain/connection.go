package domain

import "time"

// Identity is the authenticated principal attached to a connection.
// Immutable once attached; re-authentication always produces a new
// Connection.
type Identity struct {
	UserID   string
	Username string
}

// Connection is one live, addressable endpoint for an authenticated
// client. It exists only in memory and is owned exclusively by the
// connection registry.
type Connection struct {
	ID       string
	Identity Identity
	JoinTime time.Time
}

// OnlineUser is the broadcast projection of a Connection.
type OnlineUser struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	JoinTime time.Time `json:"joinTime"`
}

func (c Connection) OnlineUser() OnlineUser {
	return OnlineUser{
		UserID:   c.Identity.UserID,
		Username: c.Identity.Username,
		JoinTime: c.JoinTime,
	}
}
