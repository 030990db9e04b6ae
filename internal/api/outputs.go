package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacyplayer-go/internal/services/output"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// OutputsResponse lists the configured outputs with the open-set and monitors.
type OutputsResponse struct {
	Outputs []show.OutputTarget `json:"outputs"`
	output.Status
}

// openRequest names the monitor to present on. A missing index or
// show.WindowedMonitor opens a window.
type openRequest struct {
	MonitorIndex *int `json:"monitorIndex"`
}

func (s *Server) listOutputs(w http.ResponseWriter, r *http.Request) {
	outputs := s.svc.Projects.Outputs()
	if outputs == nil {
		outputs = []show.OutputTarget{}
	}
	writeJSON(w, http.StatusOK, OutputsResponse{Outputs: outputs, Status: s.svc.Outputs.Status()})
}

func (s *Server) addOutput(w http.ResponseWriter, r *http.Request) {
	var out show.OutputTarget
	if err := decode(w, r, &out); err != nil {
		writeError(w, err)
		return
	}
	added, err := s.svc.Projects.AddOutput(out)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) updateOutput(w http.ResponseWriter, r *http.Request) {
	var u project.OutputUpdate
	if err := decode(w, r, &u); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.Projects.UpdateOutput(chi.URLParam(r, "outputID"), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) removeOutput(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Projects.RemoveOutput(r.Context(), chi.URLParam(r, "outputID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderOutputs(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Projects.ReorderOutputs(req.From, req.To); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.projectResponse())
}

func (s *Server) openOutput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "outputID")
	var req openRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, ok := s.svc.Projects.Output(id)
	if !ok {
		writeError(w, fmt.Errorf("output %s: %w", id, project.ErrOutputNotFound))
		return
	}

	var monitor *show.MonitorInfo
	if req.MonitorIndex != nil && *req.MonitorIndex != show.WindowedMonitor {
		m, ok := s.svc.Outputs.MonitorByIndex(*req.MonitorIndex)
		if !ok {
			writeError(w, fmt.Errorf("monitor %d: %w", *req.MonitorIndex, errMonitorNotFound))
			return
		}
		monitor = &m
	}

	if err := s.svc.Outputs.Open(r.Context(), out, monitor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Outputs.Status())
}

// closeOutput always succeeds; close failures are logged by the manager.
func (s *Server) closeOutput(w http.ResponseWriter, r *http.Request) {
	s.svc.Outputs.Close(r.Context(), chi.URLParam(r, "outputID"))
	writeJSON(w, http.StatusOK, s.svc.Outputs.Status())
}

func (s *Server) closeAllOutputs(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Outputs.CloseAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Outputs.Status())
}

func (s *Server) listMonitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Outputs.Monitors())
}

func (s *Server) refreshMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.svc.Outputs.FetchMonitors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, monitors)
}
