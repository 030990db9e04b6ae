package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// SimulatorConfig configures the in-process engine.
type SimulatorConfig struct {
	// ProjectDir resolves relative project paths.
	ProjectDir string
	// Monitors is the display list reported by get_monitors.
	Monitors []show.MonitorInfo
	// DefaultCueDuration is used for cues whose duration is unknown. Zero
	// means such cues play until stopped.
	DefaultCueDuration time.Duration
}

// DefaultMonitors is the display list used when none is configured.
func DefaultMonitors() []show.MonitorInfo {
	return []show.MonitorInfo{
		{Index: 0, Name: "Built-in Display", Width: 1920, Height: 1080, IsPrimary: true},
	}
}

// Simulator is an in-process Engine with no real media pipeline. It keeps
// the project snapshot, serializes projects as JSON files, and models
// transport status and position against the wall clock.
type Simulator struct {
	mu  sync.Mutex
	cfg SimulatorConfig
	now func() time.Time

	project *show.Project
	open    map[string]*show.MonitorInfo

	status    show.PlayerStatus
	cueIndex  int
	cueID     string
	duration  float64
	position  float64
	startedAt time.Time
}

// NewSimulator creates a simulator with no project loaded.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if len(cfg.Monitors) == 0 {
		cfg.Monitors = DefaultMonitors()
	}
	return &Simulator{
		cfg:      cfg,
		now:      time.Now,
		open:     make(map[string]*show.MonitorInfo),
		status:   show.StatusIdle,
		cueIndex: show.NoCue,
	}
}

func (s *Simulator) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.cfg.ProjectDir == "" {
		return path
	}
	return filepath.Join(s.cfg.ProjectDir, path)
}

// NewProject implements Engine.
func (s *Simulator) NewProject(_ context.Context, name string) (*show.Project, error) {
	p := show.NewProject(uuid.NewString(), name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p.Clone()
	s.resetPlayer()
	return p, nil
}

// LoadProject implements Engine.
func (s *Simulator) LoadProject(_ context.Context, path string) (*show.Project, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	p := show.NewProject("", "")
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Cues == nil {
		p.Cues = []show.Cue{}
	}
	if p.Outputs == nil {
		p.Outputs = []show.OutputTarget{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p.Clone()
	s.resetPlayer()
	return p, nil
}

// SaveProject implements Engine.
func (s *Simulator) SaveProject(_ context.Context, path string) error {
	if path == "" {
		return errors.New("no path specified")
	}

	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return ErrNoProject
	}
	data, err := json.MarshalIndent(s.project, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	full := s.resolve(path)
	if dir := filepath.Dir(full); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return nil
}

// UpdateProject implements Engine. The loaded cue follows its id: it moves
// with a reorder, and the player resets when the cue is gone.
func (s *Simulator) UpdateProject(_ context.Context, project *show.Project) error {
	if project == nil {
		return errors.New("project is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.project = project.Clone()
	if s.cueIndex == show.NoCue {
		return nil
	}
	if i := s.project.FindCue(s.cueID); i >= 0 {
		s.cueIndex = i
	} else {
		log.Printf("🎬 Simulator unloaded deleted cue %s", s.cueID)
		s.resetPlayer()
	}
	return nil
}

// Project returns a copy of the engine's project snapshot, or nil.
func (s *Simulator) Project() *show.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Clone()
}

func (s *Simulator) resetPlayer() {
	s.status = show.StatusIdle
	s.cueIndex = show.NoCue
	s.cueID = ""
	s.duration = 0
	s.position = 0
}

// LoadCue implements Engine.
func (s *Simulator) LoadCue(_ context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.project == nil {
		return ErrNoProject
	}
	if index < 0 || index >= len(s.project.Cues) {
		return fmt.Errorf("%w: index %d", ErrCueNotFound, index)
	}

	cue := s.project.Cues[index]
	s.cueIndex = index
	s.cueID = cue.ID
	s.status = show.StatusReady
	s.position = 0
	s.duration = cue.Duration
	if s.duration <= 0 {
		s.duration = s.cfg.DefaultCueDuration.Seconds()
	}
	log.Printf("🎬 Simulator loaded cue %d (%s)", index, cue.Name)
	return nil
}

// Play implements Engine.
func (s *Simulator) Play(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cueIndex == show.NoCue {
		return ErrNoCueLoaded
	}
	if s.status == show.StatusPlaying {
		return nil
	}
	if s.status == show.StatusReady && s.duration > 0 && s.position >= s.duration {
		s.position = 0
	}
	s.startedAt = s.now()
	s.status = show.StatusPlaying
	return nil
}

// Pause implements Engine.
func (s *Simulator) Pause(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cueIndex == show.NoCue {
		return ErrNoCueLoaded
	}
	s.advance()
	if s.status == show.StatusPlaying {
		s.status = show.StatusPaused
	}
	return nil
}

// Stop implements Engine.
func (s *Simulator) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = show.StatusIdle
	s.position = 0
	return nil
}

// Seek implements Engine.
func (s *Simulator) Seek(_ context.Context, position float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cueIndex == show.NoCue {
		return ErrNoCueLoaded
	}
	if position < 0 {
		position = 0
	}
	if s.duration > 0 && position > s.duration {
		position = s.duration
	}
	s.position = position
	s.startedAt = s.now()
	return nil
}

// advance folds elapsed play time into position and handles end of media.
// Callers hold s.mu.
func (s *Simulator) advance() {
	if s.status != show.StatusPlaying {
		return
	}
	now := s.now()
	s.position += now.Sub(s.startedAt).Seconds()
	s.startedAt = now

	if s.duration <= 0 || s.position < s.duration {
		return
	}
	loop := s.project != nil && s.cueIndex >= 0 && s.cueIndex < len(s.project.Cues) && s.project.Cues[s.cueIndex].Loop
	if loop {
		for s.position >= s.duration {
			s.position -= s.duration
		}
		return
	}
	s.position = s.duration
	s.status = show.StatusReady
}

// GetPlayerState implements Engine.
func (s *Simulator) GetPlayerState(_ context.Context) (*show.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	return &show.PlayerState{
		Status:          s.status,
		CurrentCueIndex: s.cueIndex,
		CurrentTime:     s.position,
		Duration:        s.duration,
	}, nil
}

// SetMasterBrightness implements Engine.
func (s *Simulator) SetMasterBrightness(_ context.Context, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project != nil {
		s.project.MasterBrightness = show.ClampLevel(value)
	}
	return nil
}

// SetMasterVolume implements Engine.
func (s *Simulator) SetMasterVolume(_ context.Context, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project != nil {
		s.project.MasterVolume = show.ClampLevel(value)
	}
	return nil
}

// SetOutputBrightness implements Engine.
func (s *Simulator) SetOutputBrightness(_ context.Context, outputID string, value show.Brightness) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.project == nil {
		return ErrNoProject
	}
	out := s.project.Output(outputID)
	if out == nil {
		return fmt.Errorf("output %s not found", outputID)
	}
	if !out.Type.IsVideo() {
		return fmt.Errorf("output %s has no video", outputID)
	}
	out.Brightness = value
	return nil
}

// GetMonitors implements Engine.
func (s *Simulator) GetMonitors(_ context.Context) ([]show.MonitorInfo, error) {
	return append([]show.MonitorInfo{}, s.cfg.Monitors...), nil
}

// OpenOutputWindow implements Engine. Opening an output that is already open
// moves it to the new monitor.
func (s *Simulator) OpenOutputWindow(_ context.Context, config show.OutputTarget, monitor *show.MonitorInfo) error {
	if config.Type == show.OutputAudio {
		return fmt.Errorf("output %s is an audio output and has no window", config.ID)
	}
	if monitor != nil {
		found := false
		for _, m := range s.cfg.Monitors {
			if m.Index == monitor.Index {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("monitor %d not found", monitor.Index)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var m *show.MonitorInfo
	if monitor != nil {
		cp := *monitor
		m = &cp
	}
	s.open[config.ID] = m
	log.Printf("🖥️  Simulator opened output %s (%s)", config.Name, config.Type)
	return nil
}

// CloseOutputWindow implements Engine.
func (s *Simulator) CloseOutputWindow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, id)
	return nil
}

// CloseAllOutputs implements Engine.
func (s *Simulator) CloseAllOutputs(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = make(map[string]*show.MonitorInfo)
	return nil
}

// OpenOutputIDs returns the ids of outputs with an open window.
func (s *Simulator) OpenOutputIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.open))
	for id := range s.open {
		ids = append(ids, id)
	}
	return ids
}
