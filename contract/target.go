package contract

// Target selects which connections a delivery reaches. Zero value
// reaches nothing; use the constructors.
type Target struct {
	all                 bool
	userID              string
	connectionID        string
	excludeConnectionID string
}

// AllConnections targets every registered connection.
func AllConnections() Target { return Target{all: true} }

// AllExcept targets every registered connection but one, typically
// the originator of an announcement.
func AllExcept(connectionID string) Target {
	return Target{all: true, excludeConnectionID: connectionID}
}

// UserConnections targets every connection of one user.
func UserConnections(userID string) Target { return Target{userID: userID} }

// SingleConnection targets exactly one connection id.
func SingleConnection(connectionID string) Target { return Target{connectionID: connectionID} }

func (t Target) All() bool            { return t.all }
func (t Target) UserID() string       { return t.userID }
func (t Target) ConnectionID() string { return t.connectionID }
func (t Target) Excluded() string     { return t.excludeConnectionID }
