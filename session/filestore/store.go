// Package filestore persists client storage in a single file on disk. The file
// holds an HS256 signed JWT whose claims are the stored keys, so a file that was
// edited by hand or copied from another machine is rejected and treated as empty.
package filestore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/log"
	"github.com/dgrijalva/jwt-go"
)

const keySize = 64

// reserved claims that never surface as storage keys
var reserved = map[string]bool{"iat": true, "exp": true}

type Store struct {
	path    string
	key     []byte
	keyFile string
	maxAge  int

	mu sync.Mutex
}

// NewStore returns a Store that persists into the file at path
func NewStore(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		maxAge: 10080, // One week
	}

	for _, opt := range opts {
		opt(s)
	}

	switch {
	case len(s.key) > 0:
	case s.keyFile != "":
		key, err := loadOrCreateKey(s.keyFile)
		if err != nil {
			return nil, err
		}

		s.key = key
	default:
		key := make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("couldn't autogenerate signing key: %w", err)
		}

		s.key = key
	}

	return s, nil
}

// Path returns the file the store writes to
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}

	v, ok := values[key]
	if !ok {
		return "", functions.ErrKeyDoesNotExist
	}

	return v, nil
}

func (s *Store) Set(key, val string) error {
	if reserved[key] {
		return fmt.Errorf("%q is a reserved key", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}

	values[key] = val
	return s.save(values)
}

func (s *Store) Drop(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := values[key]; !ok {
		return nil
	}

	delete(values, key)
	return s.save(values)
}

func (s *Store) load() (map[string]string, error) {
	values := make(map[string]string)

	b, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return values, nil
	case err != nil:
		return nil, fmt.Errorf("unable to read session file: %w", err)
	}

	token, err := jwt.Parse(strings.TrimSpace(string(b)), func(T *jwt.Token) (interface{}, error) {
		if T.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("Invalid signing method %v", T.Method.Alg())
		}
		return s.key, nil
	})
	if err != nil {
		// an invalid or expired file is the same as no file
		log.L.Warnf("ignoring session file %s: %s", s.path, err)
		return values, nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return values, nil
	}

	for k, v := range claims {
		if reserved[k] {
			continue
		}

		if str, ok := v.(string); ok {
			values[k] = str
		}
	}

	return values, nil
}

func (s *Store) save(values map[string]string) error {
	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to remove session file: %w", err)
		}

		return nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
	}

	if s.maxAge > 0 {
		claims["exp"] = now.Add(time.Duration(s.maxAge) * time.Minute).Unix()
	}

	for k, v := range values {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	return writeFile(s.path, []byte(signed))
}

// writeFile replaces path atomically so a crash never leaves half a session behind
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("unable to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to set session file mode: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to write session file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write session file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to replace session file: %w", err)
	}

	return nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(b)))
		if err != nil || len(key) == 0 {
			return nil, fmt.Errorf("key file %s is not a hex encoded key", path)
		}

		return key, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to read key file: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("couldn't generate signing key: %w", err)
	}

	if err := writeFile(path, []byte(hex.EncodeToString(key))); err != nil {
		return nil, fmt.Errorf("unable to store signing key: %w", err)
	}

	return key, nil
}
