package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// ProjectResponse describes the active project. Project is null when none is active.
type ProjectResponse struct {
	Project *show.Project `json:"project"`
	Path    string        `json:"path"`
	Dirty   bool          `json:"dirty"`
}

// RecentProject is one entry of the recent projects list.
type RecentProject struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	ProjectID string    `json:"projectId"`
	OpenedAt  time.Time `json:"openedAt"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (s *Server) projectResponse() ProjectResponse {
	return ProjectResponse{
		Project: s.svc.Projects.Snapshot(),
		Path:    s.svc.Projects.Path(),
		Dirty:   s.svc.Projects.IsDirty(),
	}
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.projectResponse())
}

func (s *Server) newProject(w http.ResponseWriter, r *http.Request) {
	req := nameRequest{Name: "Untitled Project"}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.svc.Projects.New(r.Context(), req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.projectResponse())
}

func (s *Server) loadProject(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" {
		writeError(w, project.ErrNoPath)
		return
	}
	if _, err := s.svc.Projects.Load(r.Context(), req.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.projectResponse())
}

func (s *Server) saveProject(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Projects.Save(r.Context(), req.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.projectResponse())
}

func (s *Server) recentProjects(w http.ResponseWriter, r *http.Request) {
	recent := []RecentProject{}
	if s.svc.Recent != nil {
		rows, err := s.svc.Recent.RecentProjects(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		for _, row := range rows {
			recent = append(recent, RecentProject{
				Path:      row.Path,
				Name:      row.Name,
				ProjectID: row.ProjectID,
				OpenedAt:  row.OpenedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, recent)
}

func (s *Server) addCue(w http.ResponseWriter, r *http.Request) {
	var cue show.Cue
	if err := decode(w, r, &cue); err != nil {
		writeError(w, err)
		return
	}
	added, err := s.svc.Projects.AddCue(cue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) updateCue(w http.ResponseWriter, r *http.Request) {
	var u project.CueUpdate
	if err := decode(w, r, &u); err != nil {
		writeError(w, err)
		return
	}
	cue, err := s.svc.Projects.UpdateCue(chi.URLParam(r, "cueID"), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cue)
}

func (s *Server) removeCue(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Projects.RemoveCue(chi.URLParam(r, "cueID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderCues(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Projects.ReorderCues(req.From, req.To); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.projectResponse())
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var item show.MediaItem
	if err := decode(w, r, &item); err != nil {
		writeError(w, err)
		return
	}
	added, err := s.svc.Projects.AddItem(chi.URLParam(r, "cueID"), item)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var u project.ItemUpdate
	if err := decode(w, r, &u); err != nil {
		writeError(w, err)
		return
	}
	item, err := s.svc.Projects.UpdateItem(chi.URLParam(r, "cueID"), chi.URLParam(r, "itemID"), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Projects.RemoveItem(chi.URLParam(r, "cueID"), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
