package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// Server exposes an Engine over the WebSocket command protocol used by Client.
// Each request is handled on its own goroutine; replies carry the request ID.
type Server struct {
	engine   Engine
	upgrader websocket.Upgrader
}

// NewServer returns a Server dispatching commands to e.
func NewServer(e Engine) *Server {
	return &Server{
		engine: e,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP upgrades the connection and serves commands until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Engine server upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.dispatch(ctx, req)
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteJSON(resp)
		}()
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	data, err := s.handle(ctx, req)
	if err != nil {
		return Response{ID: req.ID, OK: false, Error: err.Error()}
	}
	resp := Response{ID: req.ID, OK: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Response{ID: req.ID, OK: false, Error: err.Error()}
		}
		resp.Data = raw
	}
	return resp
}

func decodeArgs(req Request, v any) error {
	if len(req.Args) == 0 {
		return fmt.Errorf("%s: missing args", req.Command)
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return fmt.Errorf("%s: invalid args: %w", req.Command, err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req Request) (any, error) {
	e := s.engine
	switch req.Command {
	case CmdNewProject:
		var a nameArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return e.NewProject(ctx, a.Name)
	case CmdLoadProject:
		var a pathArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return e.LoadProject(ctx, a.Path)
	case CmdSaveProject:
		var a pathArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.SaveProject(ctx, a.Path)
	case CmdUpdateProject:
		var a projectArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.UpdateProject(ctx, a.Project)
	case CmdLoadCue:
		var a cueArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.LoadCue(ctx, a.CueIndex)
	case CmdPlay:
		return nil, e.Play(ctx)
	case CmdPause:
		return nil, e.Pause(ctx)
	case CmdStop:
		return nil, e.Stop(ctx)
	case CmdSeek:
		var a seekArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.Seek(ctx, a.Position)
	case CmdGetPlayerState:
		return e.GetPlayerState(ctx)
	case CmdSetMasterBrightness:
		var a valueArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.SetMasterBrightness(ctx, a.Value)
	case CmdSetMasterVolume:
		var a valueArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.SetMasterVolume(ctx, a.Value)
	case CmdSetOutputBrightness:
		var a outputBrightnessArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.SetOutputBrightness(ctx, a.OutputID, show.BrightnessFromPtr(a.Value))
	case CmdGetMonitors:
		return e.GetMonitors(ctx)
	case CmdOpenOutputWindow:
		var a openOutputArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.OpenOutputWindow(ctx, a.Config, a.Monitor)
	case CmdCloseOutputWindow:
		var a idArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, e.CloseOutputWindow(ctx, a.ID)
	case CmdCloseAllOutputs:
		return nil, e.CloseAllOutputs(ctx)
	}
	return nil, fmt.Errorf("unknown command %q", req.Command)
}
