package filestore

type Option func(*Store)

// WithKey allows the client to overwrite the default random signing key
func WithKey(k []byte) Option {
	return func(s *Store) {
		s.key = k
	}
}

// WithKeyFile reads the signing key from the given file, creating the file with
// a fresh random key if it does not exist yet. A key given with WithKey wins.
func WithKeyFile(path string) Option {
	return func(s *Store) {
		s.keyFile = path
	}
}

// WithMaxAge allows the client to set the maximum age (in minutes) of the
// persisted session regardless of activity. Zero disables the limit.
func WithMaxAge(maxAge int) Option {
	return func(s *Store) {
		s.maxAge = maxAge
	}
}
