package mockserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rileyhilliard/cw/internal/event"
	"github.com/rileyhilliard/cw/internal/model"
)

func (s *Server) getClusterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.clusterStatus())
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": s.state.Snapshot().Metrics})
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nonNil(s.state.Nodes())})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": nonNil(s.state.Models())})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": nonNil(s.state.Users())})
}

func (s *Server) updateNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	act, err := action(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if act != "drain" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported node action %q", act))
		return
	}

	s.mu.Lock()
	if _, ok := s.state.Node(id); !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	status := model.NodeOffline
	var none []string
	zero := 0.0
	p := model.NodePatch{ID: id, Status: &status, Models: &none, CPU: &zero}
	s.state.UpsertNode(p)
	s.mu.Unlock()

	s.hub.Emit(event.NodeUpdate{Patch: p})
	s.hub.Emit(event.Alert{Severity: model.SeverityWarning, Message: "Node " + id + " drained"})
	s.publishCluster()
	writeJSON(w, http.StatusOK, map[string]string{"message": "node " + id + " draining"})
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	nodes := s.state.Nodes()
	kept := nodes[:0]
	for _, n := range nodes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(nodes) {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	s.state.ReplaceNodes(kept)
	s.mu.Unlock()

	s.publishCluster()
	writeJSON(w, http.StatusOK, map[string]string{"message": "node " + id + " removed"})
}

func (s *Server) pullModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	if m, ok := s.state.Model(name); ok && m.Status != model.ModelError {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "model already present")
		return
	}
	status := model.ModelDownloading
	ready := false
	p := model.ModelPatch{Name: name, Status: &status, Ready: &ready}
	s.state.UpsertModel(p)
	s.mu.Unlock()

	s.hub.Emit(event.ModelUpdate{Patch: p})
	s.publishCluster()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "pulling " + name})
}

func (s *Server) updateModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	act, err := action(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var status model.ModelStatus
	var ready bool
	switch act {
	case "start":
		status, ready = model.ModelRunning, true
	case "stop":
		status, ready = model.ModelStopped, false
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported model action %q", act))
		return
	}

	s.mu.Lock()
	if _, ok := s.state.Model(name); !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	p := model.ModelPatch{Name: name, Status: &status, Ready: &ready}
	s.state.UpsertModel(p)
	s.mu.Unlock()

	s.hub.Emit(event.ModelUpdate{Patch: p})
	writeJSON(w, http.StatusOK, map[string]string{"message": name + " " + string(status)})
}

func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	models := s.state.Models()
	kept := models[:0]
	for _, m := range models {
		if m.Name != name {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(models) {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	s.state.ReplaceModels(kept)
	s.mu.Unlock()

	s.publishCluster()
	writeJSON(w, http.StatusOK, map[string]string{"message": name + " deleted"})
}

type userUpdate struct {
	Username *string   `json:"username"`
	Email    *string   `json:"email"`
	Roles    *[]string `json:"roles"`
	Active   *bool     `json:"active"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var u userUpdate
	if err := decodeBody(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	users := s.state.Users()
	found := false
	for i := range users {
		if users[i].ID != id {
			continue
		}
		found = true
		if u.Username != nil {
			users[i].Username = *u.Username
		}
		if u.Email != nil {
			users[i].Email = *u.Email
		}
		if u.Roles != nil {
			users[i].Roles = *u.Roles
		}
		if u.Active != nil {
			users[i].Active = *u.Active
		}
	}
	if found {
		s.state.ReplaceUsers(users)
	}
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user " + id + " updated"})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	users := s.state.Users()
	kept := users[:0]
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	removed := len(kept) != len(users)
	if removed {
		s.state.ReplaceUsers(kept)
	}
	s.mu.Unlock()

	if !removed {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user " + id + " deleted"})
}

// nonNil keeps empty collections encoding as [] rather than null.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
