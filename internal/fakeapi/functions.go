package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/byuoitav/functions"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func withUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

func usernameFrom(r *http.Request) string {
	username, _ := r.Context().Value(usernameKey).(string)
	return username
}

type pointResponse struct {
	ID         uuid.UUID `json:"id"`
	FunctionID uuid.UUID `json:"functionId"`
	XVal       string    `json:"xVal"`
	YVal       string    `json:"yVal"`
}

type functionResponse struct {
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Points []pointResponse `json:"points"`
}

func (f *function) response() functionResponse {
	res := functionResponse{ID: f.ID, Name: f.Name, Type: f.Type, Points: []pointResponse{}}
	for _, p := range f.Points {
		res.Points = append(res.Points, pointResponse{ID: p.ID, FunctionID: f.ID, XVal: formatFloat(p.X), YVal: formatFloat(p.Y)})
	}

	return res
}

// owned returns the function with the id in the path if the caller owns it.
// Callers must hold s.mu.
func (s *Server) owned(w http.ResponseWriter, r *http.Request) *function {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid function id")
		return nil
	}

	f, ok := s.functions[id]
	if !ok || f.Owner != usernameFrom(r) {
		writeError(w, http.StatusNotFound, "Function not found with id: "+id.String())
		return nil
	}

	return f
}

func (s *Server) listFunctions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := []functionResponse{}
	for _, id := range s.order {
		if f := s.functions[id]; f.Owner == usernameFrom(r) {
			res = append(res, f.response())
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getFunction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f := s.owned(w, r); f != nil {
		writeJSON(w, http.StatusOK, f.response())
	}
}

func (s *Server) createFunction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string            `json:"name"`
		Type   string            `json:"type"`
		Points []functions.Point `json:"points"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Function name must not be empty")
		return
	}

	if req.Type == "" {
		req.Type = functions.TypeArray
	}

	f := &function{ID: uuid.New(), Owner: usernameFrom(r), Name: req.Name, Type: req.Type}
	for _, p := range req.Points {
		f.Points = append(f.Points, functions.Point{ID: uuid.New(), X: p.X, Y: p.Y})
	}

	s.mu.Lock()
	s.functions[f.ID] = f
	s.order = append(s.order, f.ID)
	res := f.response()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) updateFunction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Function name must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.owned(w, r)
	if f == nil {
		return
	}

	f.Name = req.Name
	if req.Type != "" {
		f.Type = req.Type
	}

	writeJSON(w, http.StatusOK, f.response())
}

func (s *Server) deleteFunction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.owned(w, r)
	if f == nil {
		return
	}

	delete(s.functions, f.ID)
	for i, id := range s.order {
		if id == f.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addPoint(w http.ResponseWriter, r *http.Request) {
	var p functions.Point
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Point requires numeric xVal and yVal")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.owned(w, r)
	if f == nil {
		return
	}

	p.ID = uuid.New()
	f.Points = append(f.Points, p)

	writeJSON(w, http.StatusOK, pointResponse{ID: p.ID, FunctionID: f.ID, XVal: formatFloat(p.X), YVal: formatFloat(p.Y)})
}

func (s *Server) deletePoint(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.owned(w, r)
	if f == nil {
		return
	}

	ref := mux.Vars(r)["ref"]
	idx := -1

	if id, err := uuid.Parse(ref); err == nil {
		for i, p := range f.Points {
			if p.ID == id {
				idx = i
				break
			}
		}
	} else if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(f.Points) {
		idx = i
	}

	if idx < 0 {
		writeError(w, http.StatusNotFound, "Point not found: "+ref)
		return
	}

	f.Points = append(f.Points[:idx], f.Points[idx+1:]...)
	w.WriteHeader(http.StatusNoContent)
}
