package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/byuoitav/functions/session"
	"github.com/byuoitav/functions/session/jar"
	"github.com/byuoitav/functions/session/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, username string) (*session.Store, *memory.Storage) {
	t.Helper()

	storage := memory.NewStorage()
	s := session.NewStore(storage)
	require.NoError(t, s.Initialize())

	if username != "" {
		require.NoError(t, s.SetAuthenticated(username))
	}

	return s, storage
}

func TestClient_SendsSessionCookie(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/users/login" {
			http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "abc", Path: "/", HttpOnly: true})
			return
		}

		if c, err := r.Cookie("SESSION"); err == nil {
			got = c.Value
		}
	}))
	defer srv.Close()

	s, _ := newSession(t, "")
	c := New(srv.URL, s)

	require.NoError(t, c.Post(context.Background(), "/api/v1/users/login", map[string]string{"username": "alice"}, nil))
	require.NoError(t, c.Get(context.Background(), "/api/v1/functions/my", nil))
	assert.Equal(t, "abc", got)
	assert.Len(t, c.Cookies(), 1)
}

func TestClient_NoBearerHeader(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Values("Authorization")
	}))
	defer srv.Close()

	s, _ := newSession(t, "alice")
	c := New(srv.URL, s)

	require.NoError(t, c.Get(context.Background(), "/", nil))
	assert.Empty(t, got)
}

func TestClient_PersistentJar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "abc", Path: "/"})
	}))
	defer srv.Close()

	cookieStorage := memory.NewStorage()
	j, err := jar.New(cookieStorage)
	require.NoError(t, err)

	s, _ := newSession(t, "")
	require.NoError(t, New(srv.URL, s, WithCookieJar(j)).Get(context.Background(), "/", nil))

	// a new process restores the cookie from storage
	restored, err := jar.New(cookieStorage)
	require.NoError(t, err)
	assert.Len(t, New(srv.URL, s, WithCookieJar(restored)).Cookies(), 1)
}

func TestClient_WithCookiesOverridesJar(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, c := range r.Cookies() {
			got = append(got, c.Name+"="+c.Value)
		}
	}))
	defer srv.Close()

	s, _ := newSession(t, "")
	c := New(srv.URL, s)

	ctx := WithCookies(context.Background(), []*http.Cookie{{Name: "SESSION", Value: "old"}})
	require.NoError(t, c.Post(ctx, "/api/v1/users/logout", nil, nil))
	assert.Equal(t, []string{"SESSION=old"}, got)
}

func TestClient_Timeout(t *testing.T) {
	s, _ := newSession(t, "")

	c := New("http://localhost", s)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	// the option wins in either order and never touches the caller's client
	shared := &http.Client{Timeout: time.Minute}

	c = New("http://localhost", s, WithTimeout(time.Second), WithHTTPClient(shared))
	assert.Equal(t, time.Second, c.httpClient.Timeout)

	c = New("http://localhost", s, WithHTTPClient(shared), WithTimeout(2*time.Second))
	assert.Equal(t, 2*time.Second, c.httpClient.Timeout)
	assert.Equal(t, time.Second*2, c.detached.Timeout)

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Nil(t, shared.Jar)

	c = New("http://localhost", s, WithHTTPClient(shared))
	assert.Equal(t, time.Minute, c.httpClient.Timeout)
}

func TestClient_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"name":"square"}`))
	}))
	defer srv.Close()

	s, _ := newSession(t, "alice")
	c := New(srv.URL+"/", s)

	var out struct {
		Name string `json:"name"`
	}

	require.NoError(t, c.Post(context.Background(), "/api/v1/functions", map[string]string{"name": "square"}, &out))
	assert.Equal(t, "square", out.Name)
}

func TestClient_EmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, _ := newSession(t, "alice")
	c := New(srv.URL, s)

	out := struct{ Name string }{Name: "untouched"}
	require.NoError(t, c.Get(context.Background(), "/", &out))
	assert.Equal(t, "untouched", out.Name)
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	s, _ := newSession(t, "alice")
	c := New(srv.URL, s)

	var out []string
	err := c.Get(context.Background(), "/", &out)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ServerFailure, gerr.Kind)
	assert.Equal(t, MsgMalformed, gerr.Message)
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"validation with message", http.StatusBadRequest, `{"status":400,"error":"Bad Request","message":"name must not be empty"}`, ValidationFailure, "name must not be empty"},
		{"validation without message", http.StatusNotFound, `{"status":404}`, ValidationFailure, MsgValidation},
		{"server with message", http.StatusInternalServerError, `{"message":"An unexpected error occurred"}`, ServerFailure, "An unexpected error occurred"},
		{"server with html body", http.StatusBadGateway, `<html>bad gateway</html>`, ServerFailure, MsgServer},
		{"server with empty body", http.StatusServiceUnavailable, ``, ServerFailure, MsgServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s, _ := newSession(t, "alice")
			c := New(srv.URL, s)

			err := c.Get(context.Background(), "/", nil)

			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.kind, gerr.Kind)
			assert.Equal(t, tt.status, gerr.Status)
			assert.Equal(t, tt.message, gerr.Message)
			assert.Equal(t, tt.message, Message(err))

			// ordinary failures never touch the session
			assert.True(t, s.State().Authenticated)
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	s, _ := newSession(t, "alice")
	c := New(addr, s)

	err := c.Get(context.Background(), "/", nil)
	assert.Equal(t, NetworkFailure, KindOf(err))
	assert.Equal(t, MsgNetwork, Message(err))
	assert.True(t, s.State().Authenticated)
}

func TestClient_UnauthorizedForcesLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"session expired"}`))
	}))
	defer srv.Close()

	s, storage := newSession(t, "alice")

	j, err := jar.New(nil)
	require.NoError(t, err)
	base, _ := url.Parse(srv.URL)
	j.SetCookies(base, []*http.Cookie{{Name: "SESSION", Value: "expired", Path: "/"}})

	redirects := 0
	c := New(srv.URL, s, WithCookieJar(j), WithUnauthorizedHandler(func() { redirects++ }))

	err = c.Get(context.Background(), "/api/v1/functions/my", nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "session expired", Message(err))

	assert.False(t, s.State().Authenticated)
	assert.Equal(t, 0, storage.Len())
	assert.Empty(t, c.Cookies())
	assert.Equal(t, 1, redirects)

	// a later 401 while signed out does not navigate again
	err = c.Get(context.Background(), "/api/v1/functions/my", nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, 1, redirects)
}

func TestClient_ConcurrentUnauthorizedOnce(t *testing.T) {
	const inFlight = 4

	var arrived sync.WaitGroup
	arrived.Add(inFlight)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// hold every response until all requests are outstanding
		arrived.Done()
		arrived.Wait()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, storage := newSession(t, "alice")

	var redirects, notifications int32
	s.Subscribe(func(session.State) { atomic.AddInt32(&notifications, 1) })
	c := New(srv.URL, s, WithUnauthorizedHandler(func() { atomic.AddInt32(&redirects, 1) }))

	var wg sync.WaitGroup
	for i := 0; i < inFlight; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Get(context.Background(), "/api/v1/functions/my", nil)
			assert.True(t, IsUnauthorized(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&redirects))
	assert.Equal(t, int32(1), atomic.LoadInt32(&notifications))
	assert.False(t, s.State().Authenticated)
	assert.Equal(t, 0, storage.Len())
}

func TestClient_ObserversSeeEveryResponseOnce(t *testing.T) {
	statuses := []int{http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError}
	var i int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&i, 1) - 1
		w.WriteHeader(statuses[n])
	}))
	defer srv.Close()

	s, _ := newSession(t, "alice")
	c := New(srv.URL, s)

	var seen []int
	var order []string
	c.Observe(func(res *http.Response) {
		seen = append(seen, res.StatusCode)
		order = append(order, "first")
	})
	c.Observe(func(res *http.Response) {
		order = append(order, "second")
	})

	for range statuses {
		_ = c.Get(context.Background(), "/", nil)
	}

	assert.Equal(t, statuses, seen)
	assert.Equal(t, []string{"first", "second", "first", "second", "first", "second", "first", "second"}, order)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "name is required", Message(fmt.Errorf("create: %w", Validation("name is required"))))

	assert.Equal(t, ServerFailure, KindOf(errors.New("boom")))
	assert.Equal(t, ValidationFailure, KindOf(Validation("bad")))
	assert.False(t, IsUnauthorized(Validation("bad")))
}

func TestClient_UnauthorizedDetachedKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, _ := newSession(t, "bob")
	c := New(srv.URL, s)

	ctx := WithCookies(context.Background(), []*http.Cookie{{Name: "SESSION", Value: "alice-old"}})
	err := c.Post(ctx, "/api/v1/users/logout", nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.True(t, s.State().Authenticated)
}
