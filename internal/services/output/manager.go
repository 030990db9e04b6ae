// Package output tracks which output targets have a live presentation
// surface and on which monitor, and asks the engine to open and close them.
package output

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// Engine is the part of the playback engine that manages output windows.
type Engine interface {
	GetMonitors(ctx context.Context) ([]show.MonitorInfo, error)
	OpenOutputWindow(ctx context.Context, config show.OutputTarget, monitor *show.MonitorInfo) error
	CloseOutputWindow(ctx context.Context, id string) error
	CloseAllOutputs(ctx context.Context) error
}

// OpenOutput is one entry of the open-set.
type OpenOutput struct {
	ID string `json:"id"`
	// MonitorIndex is show.WindowedMonitor for a windowed surface.
	MonitorIndex int `json:"monitorIndex"`
}

// Status is published on the outputs topic whenever the open-set or the
// monitor list changes.
type Status struct {
	Open            []OpenOutput       `json:"open"`
	Monitors        []show.MonitorInfo `json:"monitors"`
	LoadingMonitors bool               `json:"loadingMonitors"`
}

// Manager owns the open-set. No other component writes it.
type Manager struct {
	mu sync.RWMutex

	engine Engine
	events *pubsub.PubSub

	open            map[string]int
	monitors        []show.MonitorInfo
	loadingMonitors bool
}

// NewManager creates a manager with nothing open. events may be nil.
func NewManager(engine Engine, events *pubsub.PubSub) *Manager {
	return &Manager{
		engine:   engine,
		events:   events,
		open:     make(map[string]int),
		monitors: []show.MonitorInfo{},
	}
}

// Open presents out on monitor, or in a window when monitor is nil. Opening
// an output that is already open moves it. Failures are returned to the
// caller and leave the open-set unchanged.
func (m *Manager) Open(ctx context.Context, out show.OutputTarget, monitor *show.MonitorInfo) error {
	if err := m.engine.OpenOutputWindow(ctx, out, monitor); err != nil {
		return fmt.Errorf("failed to open output %s: %w", out.Name, err)
	}

	index := show.WindowedMonitor
	if monitor != nil {
		index = monitor.Index
	}
	m.mu.Lock()
	m.open[out.ID] = index
	m.mu.Unlock()

	log.Printf("🖥️  Opened output %s on monitor %d", out.Name, index)
	m.publish()
	return nil
}

// Close tears down the output's surface. It is best effort: failures are
// logged and the entry stays in the open-set. Closing an output that is not
// open does nothing.
func (m *Manager) Close(ctx context.Context, id string) {
	if !m.IsOpen(id) {
		return
	}
	if err := m.engine.CloseOutputWindow(ctx, id); err != nil {
		log.Printf("⚠️  Failed to close output %s: %v", id, err)
		return
	}

	m.mu.Lock()
	delete(m.open, id)
	m.mu.Unlock()
	m.publish()
}

// CloseAll tears down every surface and clears the open-set.
func (m *Manager) CloseAll(ctx context.Context) error {
	if err := m.engine.CloseAllOutputs(ctx); err != nil {
		return fmt.Errorf("failed to close outputs: %w", err)
	}

	m.mu.Lock()
	m.open = make(map[string]int)
	m.mu.Unlock()
	m.publish()
	return nil
}

// IsOpen reports whether the output has a live surface.
func (m *Manager) IsOpen(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.open[id]
	return ok
}

// MonitorOf resolves the monitor an open output is on against the last
// fetched monitor list. ok is false for closed or windowed outputs and for
// monitors no longer listed.
func (m *Manager) MonitorOf(id string) (show.MonitorInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	index, open := m.open[id]
	if !open || index == show.WindowedMonitor {
		return show.MonitorInfo{}, false
	}
	return m.monitorByIndex(index)
}

// MonitorByIndex looks index up in the last fetched monitor list.
func (m *Manager) MonitorByIndex(index int) (show.MonitorInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitorByIndex(index)
}

func (m *Manager) monitorByIndex(index int) (show.MonitorInfo, bool) {
	for _, mon := range m.monitors {
		if mon.Index == index {
			return mon, true
		}
	}
	return show.MonitorInfo{}, false
}

// FetchMonitors asks the engine for the current monitor list. On failure the
// previous list is kept and returned along with the error.
func (m *Manager) FetchMonitors(ctx context.Context) ([]show.MonitorInfo, error) {
	m.mu.Lock()
	m.loadingMonitors = true
	m.mu.Unlock()

	monitors, err := m.engine.GetMonitors(ctx)

	m.mu.Lock()
	m.loadingMonitors = false
	if err == nil {
		if monitors == nil {
			monitors = []show.MonitorInfo{}
		}
		m.monitors = monitors
	}
	current := append([]show.MonitorInfo{}, m.monitors...)
	m.mu.Unlock()

	if err != nil {
		log.Printf("⚠️  Failed to fetch monitors: %v", err)
		return current, fmt.Errorf("failed to fetch monitors: %w", err)
	}
	m.publish()
	return current, nil
}

// Monitors returns the last fetched monitor list.
func (m *Manager) Monitors() []show.MonitorInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]show.MonitorInfo{}, m.monitors...)
}

// IsLoadingMonitors reports whether a monitor fetch is in flight.
func (m *Manager) IsLoadingMonitors() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadingMonitors
}

// OpenOutputs returns the open-set ordered by output id.
func (m *Manager) OpenOutputs() []OpenOutput {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openOutputs()
}

func (m *Manager) openOutputs() []OpenOutput {
	outs := make([]OpenOutput, 0, len(m.open))
	for id, index := range m.open {
		outs = append(outs, OpenOutput{ID: id, MonitorIndex: index})
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].ID < outs[j].ID })
	return outs
}

// Status returns the open-set and the monitor list.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Open:            m.openOutputs(),
		Monitors:        append([]show.MonitorInfo{}, m.monitors...),
		LoadingMonitors: m.loadingMonitors,
	}
}

func (m *Manager) publish() {
	if m.events != nil {
		m.events.Publish(pubsub.TopicOutputs, m.Status())
	}
}
