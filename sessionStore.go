package functions

import "errors"

// ErrKeyDoesNotExist is returned when a storage key is read that has never been set
var ErrKeyDoesNotExist = errors.New("The specified key does not exist in storage")

// KeyUsername is the only key the session persists. Its presence marks the
// session as authenticated; the credential itself is the server's session
// cookie, which lives in the cookie jar and never in this storage.
const KeyUsername = "username"

// Storage defines the requirements for the persisted client storage that backs
// the session. It is the equivalent of a browser's local storage: a flat set of
// string keys that outlives the process.
type Storage interface {
	Get(key string) (value string, err error)
	Set(key, value string) error
	Drop(key string) error
}
