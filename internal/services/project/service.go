// Package project owns the active show project: its cues, media items and
// output targets, and every structural mutation of them.
//
// The local copy is authoritative for structure. Each mutation is applied
// immediately, marks the project dirty, and queues the full snapshot for the
// engine, whose copy is a mirror used for playback.
package project

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

var (
	// ErrNoProject is returned when no project is active.
	ErrNoProject = errors.New("no project loaded")
	// ErrNoPath is returned by Save when no path was given and none is known.
	ErrNoPath = errors.New("no project path set")
	// ErrCueNotFound is returned for unknown cue ids.
	ErrCueNotFound = errors.New("cue not found")
	// ErrItemNotFound is returned for unknown media item ids.
	ErrItemNotFound = errors.New("media item not found")
	// ErrOutputNotFound is returned for unknown output ids.
	ErrOutputNotFound = errors.New("output not found")
	// ErrIndexOutOfRange is returned by reorder operations.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrDuplicateID is returned when an added entity reuses an existing id.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrNotVideoOutput is returned for brightness changes on audio outputs.
	ErrNotVideoOutput = errors.New("output has no video")
	// ErrIncompatibleOutput is returned when an item targets an output of the wrong kind.
	ErrIncompatibleOutput = show.ErrIncompatibleOutput
	// ErrUnknownOutputType is returned for output types outside the known set.
	ErrUnknownOutputType = show.ErrUnknownOutputType
)

// DefaultPushTimeout bounds a single snapshot push.
const DefaultPushTimeout = 5 * time.Second

// Engine is the part of the playback engine the project model talks to.
type Engine interface {
	NewProject(ctx context.Context, name string) (*show.Project, error)
	LoadProject(ctx context.Context, path string) (*show.Project, error)
	SaveProject(ctx context.Context, path string) error
	UpdateProject(ctx context.Context, project *show.Project) error
	SetMasterBrightness(ctx context.Context, value float64) error
	SetMasterVolume(ctx context.Context, value float64) error
}

// OutputCloser closes presentation surfaces before their output is removed
// or the project is switched.
type OutputCloser interface {
	IsOpen(id string) bool
	Close(ctx context.Context, id string)
	CloseAll(ctx context.Context) error
}

// Preferences remembers the last project path.
type Preferences interface {
	LastProjectPath(ctx context.Context) (string, error)
	RememberProject(ctx context.Context, path, name, projectID string) error
	ForgetLastProject(ctx context.Context) error
}

// Service manages the active project.
type Service struct {
	mu sync.RWMutex

	engine Engine
	prefs  Preferences
	closer OutputCloser
	events *pubsub.PubSub
	pusher *pusher

	project *show.Project
	path    string
	dirty   bool
	rev     uint64

	onCueRemoved func(index int)
	onSwitched   func(p *show.Project)
}

// NewService creates a project service with no active project. prefs and
// events may be nil.
func NewService(engine Engine, prefs Preferences, events *pubsub.PubSub) *Service {
	return &Service{
		engine: engine,
		prefs:  prefs,
		events: events,
		pusher: newPusher(engine.UpdateProject, DefaultPushTimeout),
	}
}

// SetOutputCloser sets the collaborator that closes open outputs.
func (s *Service) SetOutputCloser(c OutputCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closer = c
}

// SetCueRemovedCallback registers fn to run after a cue is deleted, with the
// index the cue had.
func (s *Service) SetCueRemovedCallback(fn func(index int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCueRemoved = fn
}

// SetSwitchedCallback registers fn to run after a project is created or loaded.
func (s *Service) SetSwitchedCallback(fn func(p *show.Project)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwitched = fn
}

// New creates a project through the engine and makes it active.
func (s *Service) New(ctx context.Context, name string) (*show.Project, error) {
	s.closeAllOutputs(ctx)

	p, err := s.engine.NewProject(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	log.Printf("📁 New project %q (%s)", p.Name, p.ID)
	return s.activate(p, ""), nil
}

// Load opens the project at path through the engine and makes it active.
func (s *Service) Load(ctx context.Context, path string) (*show.Project, error) {
	s.closeAllOutputs(ctx)

	p, err := s.engine.LoadProject(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", path, err)
	}
	log.Printf("📂 Loaded project %q from %s", p.Name, path)
	snap := s.activate(p, path)
	s.remember(ctx, path, snap)
	return snap, nil
}

// Save asks the engine to write the project. An empty path reuses the last
// known one. Dirty clears only if nothing changed while the save was in flight.
func (s *Service) Save(ctx context.Context, path string) error {
	s.mu.RLock()
	if s.project == nil {
		s.mu.RUnlock()
		return ErrNoProject
	}
	if path == "" {
		path = s.path
	}
	rev := s.rev
	s.mu.RUnlock()
	if path == "" {
		return ErrNoPath
	}

	// The engine serializes its own copy, so it must have every snapshot first.
	if err := s.pusher.flush(ctx); err != nil {
		return fmt.Errorf("failed to sync project before save: %w", err)
	}
	if err := s.engine.SaveProject(ctx, path); err != nil {
		return fmt.Errorf("failed to save project to %s: %w", path, err)
	}

	s.mu.Lock()
	s.path = path
	if s.rev == rev {
		s.dirty = false
	}
	snap := s.project.Clone()
	s.mu.Unlock()

	log.Printf("💾 Saved project %q to %s", snap.Name, path)
	s.remember(ctx, path, snap)
	s.publish(snap)
	return nil
}

// Restore reopens the last project recorded in preferences, falling back to
// a new project named fallbackName when there is none or it fails to load.
func (s *Service) Restore(ctx context.Context, fallbackName string) (*show.Project, error) {
	if s.prefs != nil {
		path, err := s.prefs.LastProjectPath(ctx)
		if err != nil {
			log.Printf("⚠️  Could not read last project path: %v", err)
		}
		if path != "" {
			p, err := s.Load(ctx, path)
			if err == nil {
				return p, nil
			}
			log.Printf("⚠️  Could not reopen last project, starting a new one: %v", err)
			if err := s.prefs.ForgetLastProject(ctx); err != nil {
				log.Printf("⚠️  Could not forget last project path: %v", err)
			}
		}
	}
	return s.New(ctx, fallbackName)
}

// Flush waits for queued snapshot pushes to finish.
func (s *Service) Flush(ctx context.Context) error {
	return s.pusher.flush(ctx)
}

func (s *Service) activate(p *show.Project, path string) *show.Project {
	if p.Cues == nil {
		p.Cues = []show.Cue{}
	}
	if p.Outputs == nil {
		p.Outputs = []show.OutputTarget{}
	}

	s.mu.Lock()
	s.project = p.Clone()
	s.path = path
	s.dirty = false
	s.rev++
	switched := s.onSwitched
	s.mu.Unlock()

	if switched != nil {
		switched(p.Clone())
	}
	s.publish(p)
	return p
}

func (s *Service) closeAllOutputs(ctx context.Context) {
	s.mu.RLock()
	closer := s.closer
	active := s.project != nil
	s.mu.RUnlock()

	if closer == nil || !active {
		return
	}
	if err := closer.CloseAll(ctx); err != nil {
		log.Printf("⚠️  Failed to close outputs before switching project: %v", err)
	}
}

func (s *Service) remember(ctx context.Context, path string, p *show.Project) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.RememberProject(ctx, path, p.Name, p.ID); err != nil {
		log.Printf("⚠️  Failed to remember project path: %v", err)
	}
}

func (s *Service) publish(p *show.Project) {
	if s.events != nil {
		s.events.Publish(pubsub.TopicProject, p)
	}
}

// mutate applies fn to the active project. fn must check its preconditions
// before changing anything; on error the project is left untouched.
func (s *Service) mutate(fn func(p *show.Project) error) error {
	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return ErrNoProject
	}
	if err := fn(s.project); err != nil {
		s.mu.Unlock()
		return err
	}
	s.dirty = true
	s.rev++
	snap := s.project.Clone()
	s.mu.Unlock()

	s.pusher.enqueue(snap)
	s.publish(snap)
	return nil
}

// Snapshot returns a copy of the active project, or nil.
func (s *Service) Snapshot() *show.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project.Clone()
}

// IsDirty reports whether the project has unsaved structural changes.
func (s *Service) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Path returns the path the project was last loaded from or saved to.
func (s *Service) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// CueCount returns the number of cues. ok is false when no project is active.
func (s *Service) CueCount() (n int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return 0, false
	}
	return len(s.project.Cues), true
}

// CueAt returns a copy of the cue at index.
func (s *Service) CueAt(index int) (show.Cue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil || index < 0 || index >= len(s.project.Cues) {
		return show.Cue{}, false
	}
	return s.project.Cues[index].Clone(), true
}

// Output returns a copy of the output with the given id.
func (s *Service) Output(id string) (show.OutputTarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return show.OutputTarget{}, false
	}
	out := s.project.Output(id)
	if out == nil {
		return show.OutputTarget{}, false
	}
	return out.Clone(), true
}

// Outputs returns copies of all outputs in order.
func (s *Service) Outputs() []show.OutputTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return nil
	}
	outs := make([]show.OutputTarget, len(s.project.Outputs))
	for i := range s.project.Outputs {
		outs[i] = s.project.Outputs[i].Clone()
	}
	return outs
}

// Levels returns the master brightness and volume.
func (s *Service) Levels() (brightness, volume float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return 0, 0, false
	}
	return s.project.MasterBrightness, s.project.MasterVolume, true
}

// SetMasterBrightness sets the master brightness and sends it to the engine
// with its own command. It is a live control, not a project edit: the dirty
// flag is left alone and engine failures are only logged.
func (s *Service) SetMasterBrightness(ctx context.Context, value float64) (float64, error) {
	value = show.ClampLevel(value)
	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return 0, ErrNoProject
	}
	s.project.MasterBrightness = value
	s.mu.Unlock()

	if err := s.engine.SetMasterBrightness(ctx, value); err != nil {
		log.Printf("⚠️  Failed to send master brightness to engine: %v", err)
	}
	return value, nil
}

// SetMasterVolume is the volume counterpart of SetMasterBrightness.
func (s *Service) SetMasterVolume(ctx context.Context, value float64) (float64, error) {
	value = show.ClampLevel(value)
	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return 0, ErrNoProject
	}
	s.project.MasterVolume = value
	s.mu.Unlock()

	if err := s.engine.SetMasterVolume(ctx, value); err != nil {
		log.Printf("⚠️  Failed to send master volume to engine: %v", err)
	}
	return value, nil
}
