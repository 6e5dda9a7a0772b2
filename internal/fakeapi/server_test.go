package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, s *Server, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if session != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: session})
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, s *Server, username, password string) string {
	t.Helper()

	rec := do(t, s, http.MethodPost, "/api/v1/users/login", "", credentials{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, username, res["username"])
	assert.NotContains(t, res, "token")

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			require.NotEmpty(t, c.Value)
			return c.Value
		}
	}

	t.Fatal("login did not set a session cookie")
	return ""
}

func TestServer_ErrorShape(t *testing.T) {
	s := New()

	rec := do(t, s, http.MethodGet, "/api/v1/functions/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Full authentication is required to access this resource", body["message"])
	assert.EqualValues(t, 401, body["status"])
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestServer_PointsAreDecimalStrings(t *testing.T) {
	s := New()
	s.AddUser("alice", "secret")
	id := login(t, s, "alice", "secret")

	rec := do(t, s, http.MethodPost, "/api/v1/functions", id, map[string]interface{}{
		"name":   "half",
		"points": []map[string]float64{{"xVal": 1, "yVal": 0.5}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var fn functionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fn))
	require.Len(t, fn.Points, 1)
	assert.Equal(t, "1", fn.Points[0].XVal)
	assert.Equal(t, "0.5", fn.Points[0].YVal)
	assert.Equal(t, "ArrayTabulatedFunction", fn.Type)
}

func TestServer_DeletePointByIndex(t *testing.T) {
	s := New()
	s.AddUser("alice", "secret")
	id := login(t, s, "alice", "secret")

	rec := do(t, s, http.MethodPost, "/api/v1/functions", id, map[string]interface{}{
		"name":   "line",
		"points": []map[string]float64{{"xVal": 0, "yVal": 0}, {"xVal": 1, "yVal": 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var fn functionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fn))

	rec = do(t, s, http.MethodDelete, "/api/v1/functions/"+fn.ID.String()+"/points/0", id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/v1/functions/"+fn.ID.String()+"/points/5", id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 2, s.Hits("/api/v1/functions/{id}/points/{ref}"))
}

func TestServer_RevokeSessions(t *testing.T) {
	s := New()
	s.AddUser("alice", "secret")
	id := login(t, s, "alice", "secret")

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/users/me", id, nil).Code)

	s.RevokeSessions()
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/v1/users/me", id, nil).Code)
}

func TestServer_LogoutEndsSession(t *testing.T) {
	s := New()
	s.AddUser("alice", "secret")
	id := login(t, s, "alice", "secret")

	rec := do(t, s, http.MethodPost, "/api/v1/users/logout", id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/v1/users/me", id, nil).Code)
}
