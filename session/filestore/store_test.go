package filestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/byuoitav/functions"
	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "functions", "session")
	key := []byte("0123456789abcdef")

	s, err := NewStore(path, WithKey(key))
	require.NoError(t, err)

	_, err = s.Get("cookies")
	assert.ErrorIs(t, err, functions.ErrKeyDoesNotExist)

	require.NoError(t, s.Set(functions.KeyUsername, "alice"))
	require.NoError(t, s.Set("cookies", "tok"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// a second store with the same key sees the same values
	other, err := NewStore(path, WithKey(key))
	require.NoError(t, err)

	v, err := other.Get(functions.KeyUsername)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	v, err = other.Get("cookies")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestStore_DropLastKeyRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")

	s, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(functions.KeyUsername, "alice"))
	require.NoError(t, s.Set("cookies", "tok"))
	require.NoError(t, s.Drop("cookies"))
	assert.FileExists(t, path)

	require.NoError(t, s.Drop(functions.KeyUsername))
	assert.NoFileExists(t, path)

	// dropping again is a no-op
	require.NoError(t, s.Drop(functions.KeyUsername))
}

func TestStore_WrongKeyReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")

	s, err := NewStore(path, WithKey([]byte("first key")))
	require.NoError(t, err)
	require.NoError(t, s.Set("cookies", "tok"))

	other, err := NewStore(path, WithKey([]byte("second key")))
	require.NoError(t, err)

	_, err = other.Get("cookies")
	assert.ErrorIs(t, err, functions.ErrKeyDoesNotExist)
}

func TestStore_GarbageReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	require.NoError(t, os.WriteFile(path, []byte("username=alice\ntoken=tok\n"), 0o600))

	s, err := NewStore(path)
	require.NoError(t, err)

	_, err = s.Get("cookies")
	assert.ErrorIs(t, err, functions.ErrKeyDoesNotExist)
}

func TestStore_ExpiredReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	key := []byte("0123456789abcdef")

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat":                 time.Now().Add(-48 * time.Hour).Unix(),
		"exp":                 time.Now().Add(-24 * time.Hour).Unix(),
		"cookies":             "tok",
		functions.KeyUsername: "alice",
	}).SignedString(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(signed), 0o600))

	s, err := NewStore(path, WithKey(key))
	require.NoError(t, err)

	_, err = s.Get("cookies")
	assert.ErrorIs(t, err, functions.ErrKeyDoesNotExist)
}

func TestStore_ReservedKey(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)

	assert.Error(t, s.Set("exp", "never"))
}

func TestStore_KeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session")
	keyFile := filepath.Join(dir, "session.key")

	s, err := NewStore(path, WithKeyFile(keyFile))
	require.NoError(t, err)
	require.NoError(t, s.Set("cookies", "tok"))
	assert.FileExists(t, keyFile)

	// the key persists, so a later process can read the session
	again, err := NewStore(path, WithKeyFile(keyFile))
	require.NoError(t, err)

	v, err := again.Get("cookies")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestStore_BadKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "session.key")
	require.NoError(t, os.WriteFile(keyFile, []byte("not hex"), 0o600))

	_, err := NewStore(filepath.Join(t.TempDir(), "session"), WithKeyFile(keyFile))
	assert.Error(t, err)
}
