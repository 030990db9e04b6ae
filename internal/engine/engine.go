// Package engine provides the collaborators that stand in for the playback
// engine: a WebSocket command client for an external engine process and an
// in-process simulator for development.
package engine

import (
	"context"
	"errors"

	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// Command names understood by the playback engine.
const (
	CmdNewProject          = "new_project"
	CmdLoadProject         = "load_project"
	CmdSaveProject         = "save_project"
	CmdUpdateProject       = "update_project"
	CmdLoadCue             = "load_cue"
	CmdPlay                = "play"
	CmdPause               = "pause"
	CmdStop                = "stop"
	CmdSeek                = "seek"
	CmdGetPlayerState      = "get_player_state"
	CmdSetMasterBrightness = "set_master_brightness"
	CmdSetMasterVolume     = "set_master_volume"
	CmdSetOutputBrightness = "set_output_brightness"
	CmdGetMonitors         = "get_monitors"
	CmdOpenOutputWindow    = "open_output_window"
	CmdCloseOutputWindow   = "close_output_window"
	CmdCloseAllOutputs     = "close_all_outputs"
)

var (
	// ErrNotConnected is returned when the engine connection is closed.
	ErrNotConnected = errors.New("engine not connected")
	// ErrNoProject is returned by engine commands that need a project before one exists.
	ErrNoProject = errors.New("no project loaded")
	// ErrCueNotFound is returned by load_cue for indices outside the project.
	ErrCueNotFound = errors.New("cue not found")
	// ErrNoCueLoaded is returned by transport commands issued before load_cue.
	ErrNoCueLoaded = errors.New("no cue loaded")
)

// Engine is the full command surface of the playback engine.
// Services depend on narrower subsets of it.
type Engine interface {
	NewProject(ctx context.Context, name string) (*show.Project, error)
	LoadProject(ctx context.Context, path string) (*show.Project, error)
	SaveProject(ctx context.Context, path string) error
	UpdateProject(ctx context.Context, project *show.Project) error

	LoadCue(ctx context.Context, index int) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
	GetPlayerState(ctx context.Context) (*show.PlayerState, error)

	SetMasterBrightness(ctx context.Context, value float64) error
	SetMasterVolume(ctx context.Context, value float64) error
	SetOutputBrightness(ctx context.Context, outputID string, value show.Brightness) error

	GetMonitors(ctx context.Context) ([]show.MonitorInfo, error)
	OpenOutputWindow(ctx context.Context, config show.OutputTarget, monitor *show.MonitorInfo) error
	CloseOutputWindow(ctx context.Context, id string) error
	CloseAllOutputs(ctx context.Context) error
}

// Wire argument shapes, shared by the client and the test server.
type (
	nameArgs struct {
		Name string `json:"name"`
	}
	pathArgs struct {
		Path string `json:"path"`
	}
	projectArgs struct {
		Project *show.Project `json:"project"`
	}
	cueArgs struct {
		CueIndex int `json:"cueIndex"`
	}
	seekArgs struct {
		Position float64 `json:"position"`
	}
	valueArgs struct {
		Value float64 `json:"value"`
	}
	outputBrightnessArgs struct {
		OutputID string   `json:"outputId"`
		Value    *float64 `json:"value"`
	}
	openOutputArgs struct {
		Config  show.OutputTarget `json:"config"`
		Monitor *show.MonitorInfo `json:"monitor"`
	}
	idArgs struct {
		ID string `json:"id"`
	}
)
