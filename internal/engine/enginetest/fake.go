// Package enginetest provides a scripted playback engine for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"

	"github.com/lucsky/cuid"

	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// Call records one command received by the Fake.
type Call struct {
	Command string
	Args    []any
}

// Fake implements engine.Engine. Every command succeeds unless an error was
// registered for it with Fail. Commands can be held open with Gate.
type Fake struct {
	mu       sync.Mutex
	calls    []Call
	errs     map[string]error
	gates    map[string]chan struct{}
	state    show.PlayerState
	monitors []show.MonitorInfo
	projects map[string]*show.Project
	pushed   []*show.Project
}

var _ engine.Engine = (*Fake)(nil)

// New returns a Fake reporting an idle player and a single primary monitor.
func New() *Fake {
	return &Fake{
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
		state:    show.IdleState(),
		monitors: engine.DefaultMonitors(),
		projects: make(map[string]*show.Project),
	}
}

// Fail makes every subsequent call to command return err. A nil err clears it.
func (f *Fake) Fail(command string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, command)
		return
	}
	f.errs[command] = err
}

// Gate blocks calls to command until the returned release func is called.
func (f *Fake) Gate(command string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[command] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, command)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// SetState sets the state returned by get_player_state.
func (f *Fake) SetState(st show.PlayerState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
}

// SetMonitors sets the list returned by get_monitors.
func (f *Fake) SetMonitors(m []show.MonitorInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitors = m
}

// AddProjectFile makes load_project(path) return a copy of p.
func (f *Fake) AddProjectFile(path string, p *show.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[path] = p.Clone()
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call{}, f.calls...)
}

// Commands returns the recorded command names in order.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.Command
	}
	return names
}

// Count returns how many times command was received.
func (f *Fake) Count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Command == command {
			n++
		}
	}
	return n
}

// Last returns the most recent call of command.
func (f *Fake) Last(command string) (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Command == command {
			return f.calls[i], true
		}
	}
	return Call{}, false
}

// Pushed returns the project snapshots received by update_project.
func (f *Fake) Pushed() []*show.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*show.Project{}, f.pushed...)
}

// Reset clears the call log.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.pushed = nil
}

func (f *Fake) record(ctx context.Context, command string, args ...any) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Command: command, Args: args})
	gate := f.gates[command]
	err := f.errs[command]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// NewProject implements engine.Engine.
func (f *Fake) NewProject(ctx context.Context, name string) (*show.Project, error) {
	if err := f.record(ctx, engine.CmdNewProject, name); err != nil {
		return nil, err
	}
	return show.NewProject(cuid.New(), name), nil
}

// LoadProject implements engine.Engine.
func (f *Fake) LoadProject(ctx context.Context, path string) (*show.Project, error) {
	if err := f.record(ctx, engine.CmdLoadProject, path); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[path]
	if !ok {
		return nil, errors.New("no such file: " + path)
	}
	return p.Clone(), nil
}

// SaveProject implements engine.Engine.
func (f *Fake) SaveProject(ctx context.Context, path string) error {
	return f.record(ctx, engine.CmdSaveProject, path)
}

// UpdateProject implements engine.Engine.
func (f *Fake) UpdateProject(ctx context.Context, project *show.Project) error {
	if err := f.record(ctx, engine.CmdUpdateProject, project); err != nil {
		return err
	}
	f.mu.Lock()
	f.pushed = append(f.pushed, project.Clone())
	f.mu.Unlock()
	return nil
}

// LoadCue implements engine.Engine.
func (f *Fake) LoadCue(ctx context.Context, index int) error {
	return f.record(ctx, engine.CmdLoadCue, index)
}

// Play implements engine.Engine.
func (f *Fake) Play(ctx context.Context) error {
	return f.record(ctx, engine.CmdPlay)
}

// Pause implements engine.Engine.
func (f *Fake) Pause(ctx context.Context) error {
	return f.record(ctx, engine.CmdPause)
}

// Stop implements engine.Engine.
func (f *Fake) Stop(ctx context.Context) error {
	return f.record(ctx, engine.CmdStop)
}

// Seek implements engine.Engine.
func (f *Fake) Seek(ctx context.Context, position float64) error {
	return f.record(ctx, engine.CmdSeek, position)
}

// GetPlayerState implements engine.Engine.
func (f *Fake) GetPlayerState(ctx context.Context) (*show.PlayerState, error) {
	if err := f.record(ctx, engine.CmdGetPlayerState); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state
	return &st, nil
}

// SetMasterBrightness implements engine.Engine.
func (f *Fake) SetMasterBrightness(ctx context.Context, value float64) error {
	return f.record(ctx, engine.CmdSetMasterBrightness, value)
}

// SetMasterVolume implements engine.Engine.
func (f *Fake) SetMasterVolume(ctx context.Context, value float64) error {
	return f.record(ctx, engine.CmdSetMasterVolume, value)
}

// SetOutputBrightness implements engine.Engine.
func (f *Fake) SetOutputBrightness(ctx context.Context, outputID string, value show.Brightness) error {
	return f.record(ctx, engine.CmdSetOutputBrightness, outputID, value)
}

// GetMonitors implements engine.Engine.
func (f *Fake) GetMonitors(ctx context.Context) ([]show.MonitorInfo, error) {
	if err := f.record(ctx, engine.CmdGetMonitors); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]show.MonitorInfo{}, f.monitors...), nil
}

// OpenOutputWindow implements engine.Engine.
func (f *Fake) OpenOutputWindow(ctx context.Context, config show.OutputTarget, monitor *show.MonitorInfo) error {
	return f.record(ctx, engine.CmdOpenOutputWindow, config, monitor)
}

// CloseOutputWindow implements engine.Engine.
func (f *Fake) CloseOutputWindow(ctx context.Context, id string) error {
	return f.record(ctx, engine.CmdCloseOutputWindow, id)
}

// CloseAllOutputs implements engine.Engine.
func (f *Fake) CloseAllOutputs(ctx context.Context) error {
	return f.record(ctx, engine.CmdCloseAllOutputs)
}
