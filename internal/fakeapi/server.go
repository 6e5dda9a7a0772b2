// Package fakeapi is an in-memory stand-in for the functions backend. It speaks
// the same routes and JSON shapes, including the backend's habit of sending
// point coordinates as decimal strings, and is used by tests and for local runs.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type user struct {
	ID       uuid.UUID
	Username string
	Password string
	Role     string
}

type function struct {
	ID     uuid.UUID
	Owner  string
	Name   string
	Type   string
	Points []functions.Point
}

// Server is an http.Handler implementing the backend routes
type Server struct {
	router *mux.Router

	users     map[string]user
	sessions  map[string]string
	functions map[uuid.UUID]*function
	order     []uuid.UUID
	hits      map[string]int
	mu        sync.Mutex
}

// SessionCookie is the cookie carrying a signed in user's session
const SessionCookie = "JSESSIONID"

type contextKey int

const usernameKey contextKey = 0

// New returns an empty backend
func New() *Server {
	s := &Server{
		router:    mux.NewRouter(),
		users:     make(map[string]user),
		sessions:  make(map[string]string),
		functions: make(map[uuid.UUID]*function),
		hits:      make(map[string]int),
	}

	r := s.router.PathPrefix("/api/v1").Subrouter()
	r.Use(s.count)

	r.HandleFunc("/users/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/users/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/users/logout", s.logout).Methods(http.MethodPost)
	r.Handle("/users/me", s.authenticated(s.me)).Methods(http.MethodGet)

	r.Handle("/functions/my", s.authenticated(s.listFunctions)).Methods(http.MethodGet)
	r.Handle("/functions", s.authenticated(s.createFunction)).Methods(http.MethodPost)
	r.Handle("/functions/{id}", s.authenticated(s.getFunction)).Methods(http.MethodGet)
	r.Handle("/functions/{id}", s.authenticated(s.updateFunction)).Methods(http.MethodPut, http.MethodPatch)
	r.Handle("/functions/{id}", s.authenticated(s.deleteFunction)).Methods(http.MethodDelete)
	r.Handle("/functions/{id}/points", s.authenticated(s.addPoint)).Methods(http.MethodPost)
	r.Handle("/functions/{id}/points/{ref}", s.authenticated(s.deletePoint)).Methods(http.MethodDelete)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Resource not found: "+r.URL.Path)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser registers a user directly
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[username] = user{ID: uuid.New(), Username: username, Password: password, Role: "USER"}
}

// RevokeSessions invalidates every issued session cookie, as a backend
// restart would
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]string)
}

// Hits returns how many requests reached the given route template, for
// example "/api/v1/users/logout"
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[route]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				s.mu.Lock()
				s.hits[tmpl]++
				s.mu.Unlock()
			}
		}

		log.L.Debugf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)

		s.mu.Lock()
		username, ok := s.sessions[id]
		s.mu.Unlock()

		if id == "" || !ok {
			writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUsername(r.Context(), username)))
	})
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}

	return c.Value
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Message  string    `json:"message,omitempty"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	s.mu.Lock()
	if _, ok := s.users[req.Username]; ok {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}

	u := user{ID: uuid.New(), Username: req.Username, Password: req.Password, Role: "USER"}
	s.users[u.Username] = u
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, authResponse{ID: u.ID, Username: u.Username, Role: u.Role, Message: "User registered successfully"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Username]
	if !ok || u.Password != req.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	id := uuid.New().String()
	s.sessions[id] = u.Username
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, authResponse{ID: u.ID, Username: u.Username, Role: u.Role, Message: "Login successful"})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.sessions, sessionID(r))
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.users[usernameFrom(r)]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, authResponse{ID: u.ID, Username: u.Username, Role: u.Role})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"status":    status,
		"error":     http.StatusText(status),
		"message":   message,
	})
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
