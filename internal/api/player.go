package api

import (
	"context"
	"errors"
	"net/http"
)

type loadRequest struct {
	Index *int `json:"index"`
}

type seekRequest struct {
	Position *float64 `json:"position"`
}

func (s *Server) getPlayerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Player.State())
}

// transport adapts a body-less player command.
func (s *Server) transport(cmd func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cmd(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.svc.Player.State())
	}
}

func (s *Server) loadCue(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Index == nil {
		writeError(w, badRequest{errors.New("index is required")})
		return
	}
	if err := s.svc.Player.LoadCue(r.Context(), *req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Player.State())
}

func (s *Server) seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Position == nil {
		writeError(w, badRequest{errors.New("position is required")})
		return
	}
	if err := s.svc.Player.Seek(r.Context(), *req.Position); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Player.State())
}
