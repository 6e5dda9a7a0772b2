// Package account implements sign in, registration and sign out against the
// backend. Every operation returns a Result value; none of them returns an
// error or panics, so a view can render the outcome directly.
package account

import (
	"context"
	"strings"

	"github.com/byuoitav/functions/gateway"
	"github.com/byuoitav/functions/log"
	"github.com/byuoitav/functions/session"
	"github.com/google/uuid"
)

const (
	loginPath    = "/api/v1/users/login"
	registerPath = "/api/v1/users/register"
	logoutPath   = "/api/v1/users/logout"
	mePath       = "/api/v1/users/me"
)

// messages used when the backend did not provide one
const (
	MsgLoginFailed        = "login failed"
	MsgRegisterFailed     = "registration failed"
	MsgRegistered         = "user registered successfully"
	MsgMalformedLogin     = "malformed login response"
	MsgMissingCredentials = "username and password are required"
)

// Result is the outcome of an account operation
type Result struct {
	OK      bool
	Message string
}

// User is the signed in user as the backend knows them
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Service runs account operations through the gateway and records their
// effect in the session store
type Service struct {
	gateway      *gateway.Client
	store        *session.Store
	serverLogout bool
}

// Option configures a Service
type Option func(*Service)

// WithServerLogout makes Logout also tell the backend, in the background, that
// the old session cookie is no longer used
func WithServerLogout(enabled bool) Option {
	return func(s *Service) {
		s.serverLogout = enabled
	}
}

// NewService returns a Service using gw for requests and store for the session
func NewService(gw *gateway.Client, store *session.Store, opts ...Option) *Service {
	s := &Service{
		gateway: gw,
		store:   store,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Login signs the user in. The session is only changed when the backend
// accepted the credentials and named the user; the session cookie it set is
// kept by the gateway.
func (s *Service) Login(ctx context.Context, username, password string) Result {
	if strings.TrimSpace(username) == "" || password == "" {
		return Result{Message: MsgMissingCredentials}
	}

	var res struct {
		Username string `json:"username"`
	}

	if err := s.gateway.Post(ctx, loginPath, credentials{Username: username, Password: password}, &res); err != nil {
		log.L.Infof("login for %q failed: %s", username, err)
		return Result{Message: failureMessage(err, MsgLoginFailed)}
	}

	if res.Username == "" {
		log.L.Warnf("login response for %q lacks a username", username)
		return Result{Message: MsgMalformedLogin}
	}

	if err := s.store.SetAuthenticated(res.Username); err != nil {
		log.L.Errorf("unable to store session for %q: %s", res.Username, err)
		return Result{Message: "unable to save session: " + err.Error()}
	}

	return Result{OK: true}
}

// Register creates a new account. It never signs the user in.
func (s *Service) Register(ctx context.Context, username, password string) Result {
	if strings.TrimSpace(username) == "" || password == "" {
		return Result{Message: MsgMissingCredentials}
	}

	var res struct {
		Message string `json:"message"`
	}

	if err := s.gateway.Post(ctx, registerPath, credentials{Username: username, Password: password}, &res); err != nil {
		log.L.Infof("registration of %q failed: %s", username, err)
		return Result{Message: failureMessage(err, MsgRegisterFailed)}
	}

	if res.Message == "" {
		res.Message = MsgRegistered
	}

	return Result{OK: true, Message: res.Message}
}

// Logout clears the local session and forgets the session cookie
// immediately. When server logout is enabled the backend is told in the
// background with the old cookie; the returned channel is closed once that
// call has finished, or right away when there is nothing to do.
func (s *Service) Logout(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	cookies := s.gateway.Cookies()
	if _, err := s.store.Clear(); err != nil {
		log.L.Errorf("unable to clear session: %s", err)
	}
	s.gateway.ResetCookies()

	if !s.serverLogout || len(cookies) == 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		if err := s.gateway.Post(gateway.WithCookies(ctx, cookies), logoutPath, nil, nil); err != nil {
			log.L.Infof("server logout failed: %s", err)
		}
	}()

	return done
}

// Me returns the user the backend associates with the current session
func (s *Service) Me(ctx context.Context) (User, error) {
	var u User
	if err := s.gateway.Get(ctx, mePath, &u); err != nil {
		return User{}, err
	}

	return u, nil
}

// failureMessage picks the backend's message when there is one
func failureMessage(err error, fallback string) string {
	msg := gateway.Message(err)
	if gateway.KindOf(err) == gateway.ValidationFailure || gateway.KindOf(err) == gateway.AuthFailure {
		switch msg {
		case gateway.MsgValidation, gateway.MsgAuth:
			return fallback
		}
	}

	return msg
}
