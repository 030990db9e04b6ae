package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacyplayer-go/internal/services/brightness"
	"github.com/bbernstein/lacyplayer-go/internal/services/fade"
)

type valueRequest struct {
	Value *float64 `json:"value"`
}

// fadeRequest starts a master brightness fade.
type fadeRequest struct {
	Target     *float64 `json:"target"`
	DurationMs int64    `json:"durationMs"`
	Easing     string   `json:"easing"`
}

var errValueRequired = errors.New("value is required")

func decodeValue(w http.ResponseWriter, r *http.Request) (float64, error) {
	var req valueRequest
	if err := decode(w, r, &req); err != nil {
		return 0, err
	}
	if req.Value == nil {
		return 0, badRequest{errValueRequired}
	}
	return *req.Value, nil
}

func (s *Server) getLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Brightness.Levels())
}

func (s *Server) setMasterBrightness(w http.ResponseWriter, r *http.Request) {
	s.setLevel(w, r, s.svc.Brightness.SetMasterBrightness)
}

func (s *Server) setMasterVolume(w http.ResponseWriter, r *http.Request) {
	s.setLevel(w, r, s.svc.Brightness.SetMasterVolume)
}

func (s *Server) setLevel(w http.ResponseWriter, r *http.Request, set func(context.Context, float64) (float64, error)) {
	v, err := decodeValue(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := set(r.Context(), v); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Brightness.Levels())
}

func (s *Server) fadeMaster(w http.ResponseWriter, r *http.Request) {
	var req fadeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Target == nil {
		writeError(w, badRequest{errors.New("target is required")})
		return
	}
	if req.DurationMs < 0 {
		writeError(w, badRequest{errors.New("durationMs must not be negative")})
		return
	}
	easing, err := fade.ParseEasing(req.Easing)
	if err != nil {
		writeError(w, badRequest{err})
		return
	}

	// The fade outlives the request.
	ctx := context.WithoutCancel(r.Context())
	duration := time.Duration(req.DurationMs) * time.Millisecond
	if _, err := s.svc.Brightness.FadeMaster(ctx, *req.Target, duration, easing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.svc.Brightness.Levels())
}

func (s *Server) setOutputBrightness(w http.ResponseWriter, r *http.Request) {
	v, err := decodeValue(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.outputLevel(w, func() (brightness.OutputLevel, error) {
		return s.svc.Brightness.SetOutput(r.Context(), chi.URLParam(r, "outputID"), v)
	})
}

func (s *Server) linkOutput(w http.ResponseWriter, r *http.Request) {
	s.outputLevel(w, func() (brightness.OutputLevel, error) {
		return s.svc.Brightness.Link(r.Context(), chi.URLParam(r, "outputID"))
	})
}

func (s *Server) unlinkOutput(w http.ResponseWriter, r *http.Request) {
	s.outputLevel(w, func() (brightness.OutputLevel, error) {
		return s.svc.Brightness.Unlink(r.Context(), chi.URLParam(r, "outputID"))
	})
}

func (s *Server) toggleOutputLink(w http.ResponseWriter, r *http.Request) {
	s.outputLevel(w, func() (brightness.OutputLevel, error) {
		return s.svc.Brightness.ToggleLink(r.Context(), chi.URLParam(r, "outputID"))
	})
}

func (s *Server) outputLevel(w http.ResponseWriter, fn func() (brightness.OutputLevel, error)) {
	level, err := fn()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}
