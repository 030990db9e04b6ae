// Package player is the transport state machine: it tracks playback status
// and the current cue, and sends transport commands to the engine.
//
// The local state is a cache. Transport commands update it from their own
// outcome; the sync loop overwrites it with the engine's state.
package player

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// ErrEndOfCueList is returned by Next at the last cue.
var ErrEndOfCueList = errors.New("already at the last cue")

// Engine is the transport surface of the playback engine.
type Engine interface {
	LoadCue(ctx context.Context, index int) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
}

// Cues gives the player the cue list. ok is false when no project is active.
type Cues interface {
	CueCount() (n int, ok bool)
	CueAt(index int) (show.Cue, bool)
}

// Service is the player state machine.
//
// Transport commands go through a single command slot: one is in flight at a
// time and later commands wait their turn, so each command's outcome is
// applied in the order the commands were issued.
type Service struct {
	engine Engine
	cues   Cues
	events *pubsub.PubSub

	slot chan struct{}

	mu       sync.RWMutex
	state    show.PlayerState
	inFlight int
	onStatus func(from, to show.PlayerStatus)
}

// NewService creates an idle player. events may be nil.
func NewService(engine Engine, cues Cues, events *pubsub.PubSub) *Service {
	return &Service{
		engine: engine,
		cues:   cues,
		events: events,
		slot:   make(chan struct{}, 1),
		state:  show.IdleState(),
	}
}

// SetStatusCallback registers fn to run whenever the status changes.
func (s *Service) SetStatusCallback(fn func(from, to show.PlayerStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// State returns a copy of the local player state.
func (s *Service) State() show.PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

func copyState(st show.PlayerState) show.PlayerState {
	if st.Error != nil {
		msg := *st.Error
		st.Error = &msg
	}
	return st
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
	return nil
}

func (s *Service) release() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	<-s.slot
}

// update applies fn to the state and notifies listeners.
func (s *Service) update(fn func(st *show.PlayerState)) show.PlayerState {
	s.mu.Lock()
	from := s.state.Status
	fn(&s.state)
	st := copyState(s.state)
	cb := s.onStatus
	s.mu.Unlock()

	s.notify(from, st, cb)
	return st
}

func (s *Service) notify(from show.PlayerStatus, st show.PlayerState, cb func(from, to show.PlayerStatus)) {
	if s.events != nil {
		s.events.Publish(pubsub.TopicPlayerState, st)
	}
	if cb != nil && from != st.Status {
		cb(from, st.Status)
	}
}

// fail moves the player to the error status with err's message.
func (s *Service) fail(op string, err error) error {
	msg := err.Error()
	log.Printf("❌ Player %s failed: %s", op, msg)
	s.update(func(st *show.PlayerState) {
		st.Status = show.StatusError
		st.Error = &msg
	})
	return err
}

// LoadCue loads the cue at index without playing it. The status is loading
// while the engine works, then ready or error.
func (s *Service) LoadCue(ctx context.Context, index int) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.loadCue(ctx, index)
}

func (s *Service) loadCue(ctx context.Context, index int) error {
	s.update(func(st *show.PlayerState) {
		st.Status = show.StatusLoading
		st.Error = nil
	})

	if err := s.engine.LoadCue(ctx, index); err != nil {
		return s.fail("load cue", err)
	}

	var duration float64
	if cue, ok := s.cues.CueAt(index); ok {
		duration = cue.Duration
	}
	s.update(func(st *show.PlayerState) {
		st.Status = show.StatusReady
		st.CurrentCueIndex = index
		st.CurrentTime = 0
		st.Duration = duration
		st.Error = nil
	})
	return nil
}

// Play starts or resumes playback.
func (s *Service) Play(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.play(ctx)
}

func (s *Service) play(ctx context.Context) error {
	if err := s.engine.Play(ctx); err != nil {
		return s.fail("play", err)
	}
	s.update(func(st *show.PlayerState) {
		st.Status = show.StatusPlaying
		st.Error = nil
	})
	return nil
}

// Pause pauses playback. It is sent to the engine whatever the current
// status; the engine decides whether it applies.
func (s *Service) Pause(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := s.engine.Pause(ctx); err != nil {
		return s.fail("pause", err)
	}
	s.update(func(st *show.PlayerState) {
		st.Status = show.StatusPaused
		st.Error = nil
	})
	return nil
}

// TogglePlay pauses while playing and plays otherwise.
func (s *Service) TogglePlay(ctx context.Context) error {
	if s.State().Status == show.StatusPlaying {
		return s.Pause(ctx)
	}
	return s.Play(ctx)
}

// Stop stops playback and rewinds to the start. The loaded cue is kept.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := s.engine.Stop(ctx); err != nil {
		return s.fail("stop", err)
	}
	s.update(func(st *show.PlayerState) {
		st.Status = show.StatusIdle
		st.CurrentTime = 0
		st.Error = nil
	})
	return nil
}

// Seek moves the playhead. Failures record the error message but leave the
// status as it was.
func (s *Service) Seek(ctx context.Context, position float64) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := s.engine.Seek(ctx, position); err != nil {
		msg := err.Error()
		log.Printf("⚠️  Player seek failed: %s", msg)
		s.update(func(st *show.PlayerState) {
			st.Error = &msg
		})
		return err
	}
	s.update(func(st *show.PlayerState) {
		st.CurrentTime = position
		st.Error = nil
	})
	return nil
}

// Next loads the cue after the current one. At the last cue it returns
// ErrEndOfCueList without contacting the engine.
func (s *Service) Next(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	next := s.State().CurrentCueIndex + 1
	if n, ok := s.cues.CueCount(); ok && next >= n {
		return ErrEndOfCueList
	}
	return s.loadCue(ctx, next)
}

// Prev loads the cue before the current one. At the first cue, or with no
// cue loaded, it does nothing.
func (s *Service) Prev(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.State().CurrentCueIndex
	if current <= 0 {
		return nil
	}
	return s.loadCue(ctx, current-1)
}

// Apply overwrites the local state with the engine's. A cue index past the
// end of the cue list is taken as nothing loaded. It reports whether the
// engine finished the current cue on its own: the player was playing, the
// engine now reports ready or idle on the same cue, and no command of ours
// was in flight.
func (s *Service) Apply(engineState show.PlayerState) (finished bool) {
	if n, ok := s.cues.CueCount(); ok && engineState.CurrentCueIndex >= n {
		engineState.CurrentCueIndex = show.NoCue
	}
	s.mu.Lock()
	prev := s.state
	s.state = copyState(engineState)
	finished = s.inFlight == 0 &&
		prev.Status == show.StatusPlaying &&
		(engineState.Status == show.StatusReady || engineState.Status == show.StatusIdle) &&
		engineState.CurrentCueIndex == prev.CurrentCueIndex &&
		prev.CurrentCueIndex != show.NoCue
	st := copyState(s.state)
	cb := s.onStatus
	s.mu.Unlock()

	s.notify(prev.Status, st, cb)
	return finished
}

// HandleCueFinished advances to and plays the next cue when the cue at index
// is flagged autoAdvance. It does nothing at the end of the list.
func (s *Service) HandleCueFinished(ctx context.Context, index int) error {
	cue, ok := s.cues.CueAt(index)
	if !ok || !cue.AutoAdvance {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if s.State().CurrentCueIndex != index {
		return nil
	}
	next := index + 1
	if n, ok := s.cues.CueCount(); !ok || next >= n {
		return nil
	}
	log.Printf("⏭️  Cue %q finished, advancing to cue %d", cue.Name, next)
	if err := s.loadCue(ctx, next); err != nil {
		return err
	}
	return s.play(ctx)
}

// ForgetCue adjusts the loaded cue after the cue at index was deleted. If it
// was the loaded cue the player is reset to idle with nothing loaded.
func (s *Service) ForgetCue(index int) {
	s.update(func(st *show.PlayerState) {
		switch {
		case st.CurrentCueIndex == index:
			*st = show.IdleState()
		case st.CurrentCueIndex > index:
			st.CurrentCueIndex--
		}
	})
}

// Reset returns the player to idle with nothing loaded, as after a project switch.
func (s *Service) Reset() {
	s.update(func(st *show.PlayerState) {
		*st = show.IdleState()
	})
}
