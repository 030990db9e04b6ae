// Package playersync periodically copies the engine's authoritative player
// state into the local player.
package playersync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// Engine reports the authoritative player state.
type Engine interface {
	GetPlayerState(ctx context.Context) (*show.PlayerState, error)
}

// Player is the local state the loop overwrites.
type Player interface {
	State() show.PlayerState
	Apply(st show.PlayerState) (finished bool)
	HandleCueFinished(ctx context.Context, index int) error
}

// Flusher delivers queued project snapshots to the engine. The loop flushes
// before each poll so the engine's cue index refers to the current cue list.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Config holds the polling policy.
type Config struct {
	ActiveInterval time.Duration // while playing
	IdleInterval   time.Duration // any other status
	// PollTimeout bounds one get_player_state call. Zero leaves it to the engine.
	PollTimeout time.Duration
	// AutoAdvance lets cues flagged autoAdvance continue to the next cue.
	AutoAdvance bool
}

// DefaultConfig polls every 100ms while playing and every 500ms otherwise.
func DefaultConfig() Config {
	return Config{
		ActiveInterval: 100 * time.Millisecond,
		IdleInterval:   500 * time.Millisecond,
		PollTimeout:    2 * time.Second,
		AutoAdvance:    true,
	}
}

// IntervalFor returns the poll interval for a player status.
func (c Config) IntervalFor(status show.PlayerStatus) time.Duration {
	if status == show.StatusPlaying {
		return c.ActiveInterval
	}
	return c.IdleInterval
}

// Loop is the sync task. It runs on one goroutine between Start and Stop.
type Loop struct {
	engine  Engine
	player  Player
	flusher Flusher
	cfg     Config

	mu              sync.Mutex
	running         bool
	stopChan        chan struct{}
	doneChan        chan struct{}
	resetTickerChan chan struct{}
	advancing       sync.WaitGroup
}

// NewLoop creates a stopped loop.
func NewLoop(engine Engine, player Player, cfg Config) *Loop {
	def := DefaultConfig()
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = def.ActiveInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	return &Loop{
		engine:          engine,
		player:          player,
		cfg:             cfg,
		resetTickerChan: make(chan struct{}, 1),
	}
}

// SetFlusher registers the project snapshot queue to drain before each poll.
func (l *Loop) SetFlusher(f Flusher) {
	l.flusher = f
}

// Start starts polling. Starting a running loop does nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopChan = make(chan struct{})
	l.doneChan = make(chan struct{})
	go l.run(l.stopChan, l.doneChan)
	log.Printf("🔄 Player sync started: %v (playing) / %v (otherwise)", l.cfg.ActiveInterval, l.cfg.IdleInterval)
}

// Stop stops polling and waits for the loop and any auto-advance it started
// to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopChan)
	done := l.doneChan
	l.mu.Unlock()

	<-done
	l.advancing.Wait()
}

// IsRunning reports whether the loop is polling.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// StatusChanged re-evaluates the interval when the player moves into or
// out of playing. It fits player.Service.SetStatusCallback.
func (l *Loop) StatusChanged(from, to show.PlayerStatus) {
	if (from == show.StatusPlaying) == (to == show.StatusPlaying) {
		return
	}
	select {
	case l.resetTickerChan <- struct{}{}:
	default:
	}
}

func (l *Loop) run(stop, done chan struct{}) {
	defer close(done)

	interval := l.cfg.IntervalFor(l.player.State().Status)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	retune := func() {
		if next := l.cfg.IntervalFor(l.player.State().Status); next != interval {
			interval = next
			ticker.Reset(interval)
		}
	}

	for {
		select {
		case <-stop:
			return
		case <-l.resetTickerChan:
			retune()
		case <-ticker.C:
			l.Poll(context.Background())
			retune()
		}
	}
}

// Poll reads the engine state once and applies it. Failures leave the local
// state as it was and are not reported.
func (l *Loop) Poll(ctx context.Context) {
	if l.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.PollTimeout)
		defer cancel()
	}
	if l.flusher != nil {
		if err := l.flusher.Flush(ctx); err != nil {
			return
		}
	}
	st, err := l.engine.GetPlayerState(ctx)
	if err != nil || st == nil {
		return
	}
	if finished := l.player.Apply(*st); finished && l.cfg.AutoAdvance {
		l.advance(st.CurrentCueIndex)
	}
}

// advance runs the auto-advance off the loop goroutine so polling continues
// while the engine loads the next cue.
func (l *Loop) advance(index int) {
	l.advancing.Add(1)
	go func() {
		defer l.advancing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.player.HandleCueFinished(ctx, index); err != nil {
			log.Printf("⚠️  Auto-advance after cue %d failed: %v", index, err)
		}
	}()
}
