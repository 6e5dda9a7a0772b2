package session

// State represents the client's belief about whether a user is signed in, and
// as whom. The zero value is the anonymous state.
type State struct {
	// Authenticated is true if and only if a username is persisted
	Authenticated bool

	// Username is the display name of the signed in user, empty when anonymous
	Username string
}

// Anonymous reports whether no user is signed in
func (s State) Anonymous() bool {
	return !s.Authenticated
}
