// Package api is the HTTP and WebSocket control surface. Each route is a thin
// adapter over one of the services; it decodes the request, calls the
// service and maps the outcome to a status code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacyplayer-go/internal/database/models"
	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/services/brightness"
	"github.com/bbernstein/lacyplayer-go/internal/services/output"
	"github.com/bbernstein/lacyplayer-go/internal/services/player"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
)

// RequestTimeout bounds every /api request.
const RequestTimeout = 30 * time.Second

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// RecentProjects lists the project files the operator opened recently.
type RecentProjects interface {
	RecentProjects(ctx context.Context) ([]models.RecentProject, error)
}

// Services are the collaborators behind the routes. Recent may be nil.
type Services struct {
	Projects   *project.Service
	Player     *player.Service
	Outputs    *output.Manager
	Brightness *brightness.Controller
	Recent     RecentProjects
	Events     *pubsub.PubSub
}

// Server serves the control surface.
type Server struct {
	svc      Services
	upgrader websocket.Upgrader
}

// NewServer creates a server over svc.
func NewServer(svc Services) *Server {
	return &Server{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes returns the /api routes and the /ws endpoint.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))

		r.Route("/project", func(r chi.Router) {
			r.Get("/", s.getProject)
			r.Post("/new", s.newProject)
			r.Post("/load", s.loadProject)
			r.Post("/save", s.saveProject)
			r.Get("/recent", s.recentProjects)
		})

		r.Route("/cues", func(r chi.Router) {
			r.Post("/", s.addCue)
			r.Post("/reorder", s.reorderCues)
			r.Patch("/{cueID}", s.updateCue)
			r.Delete("/{cueID}", s.removeCue)
			r.Post("/{cueID}/items", s.addItem)
			r.Patch("/{cueID}/items/{itemID}", s.updateItem)
			r.Delete("/{cueID}/items/{itemID}", s.removeItem)
		})

		r.Route("/outputs", func(r chi.Router) {
			r.Get("/", s.listOutputs)
			r.Post("/", s.addOutput)
			r.Post("/reorder", s.reorderOutputs)
			r.Post("/close-all", s.closeAllOutputs)
			r.Patch("/{outputID}", s.updateOutput)
			r.Delete("/{outputID}", s.removeOutput)
			r.Post("/{outputID}/open", s.openOutput)
			r.Post("/{outputID}/close", s.closeOutput)
		})

		r.Get("/monitors", s.listMonitors)
		r.Post("/monitors/refresh", s.refreshMonitors)

		r.Route("/brightness", func(r chi.Router) {
			r.Get("/", s.getLevels)
			r.Put("/master", s.setMasterBrightness)
			r.Post("/master/fade", s.fadeMaster)
			r.Put("/outputs/{outputID}", s.setOutputBrightness)
			r.Post("/outputs/{outputID}/link", s.linkOutput)
			r.Post("/outputs/{outputID}/unlink", s.unlinkOutput)
			r.Post("/outputs/{outputID}/toggle", s.toggleOutputLink)
		})
		r.Put("/volume/master", s.setMasterVolume)

		r.Route("/player", func(r chi.Router) {
			r.Get("/", s.getPlayerState)
			r.Post("/load", s.loadCue)
			r.Post("/play", s.transport(s.svc.Player.Play))
			r.Post("/pause", s.transport(s.svc.Player.Pause))
			r.Post("/toggle", s.transport(s.svc.Player.TogglePlay))
			r.Post("/stop", s.transport(s.svc.Player.Stop))
			r.Post("/next", s.transport(s.svc.Player.Next))
			r.Post("/prev", s.transport(s.svc.Player.Prev))
			r.Post("/seek", s.seek)
		})
	})

	r.Get("/ws", s.handleWebSocket)
	return r
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// badRequest reports a malformed request.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// errMonitorNotFound is returned when an open names a monitor that is not attached.
var errMonitorNotFound = errors.New("monitor not found")

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var bad badRequest
	var cmdErr *engine.CommandError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, project.ErrCueNotFound),
		errors.Is(err, project.ErrItemNotFound),
		errors.Is(err, project.ErrOutputNotFound),
		errors.Is(err, errMonitorNotFound),
		errors.Is(err, engine.ErrCueNotFound):
		return http.StatusNotFound
	case errors.Is(err, project.ErrNoProject),
		errors.Is(err, project.ErrDuplicateID),
		errors.Is(err, brightness.ErrLinked),
		errors.Is(err, player.ErrEndOfCueList),
		errors.Is(err, engine.ErrNoCueLoaded),
		errors.Is(err, engine.ErrNoProject):
		return http.StatusConflict
	case errors.Is(err, project.ErrNoPath),
		errors.Is(err, project.ErrIndexOutOfRange),
		errors.Is(err, project.ErrIncompatibleOutput),
		errors.Is(err, project.ErrUnknownOutputType),
		errors.Is(err, project.ErrNotVideoOutput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &cmdErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}
