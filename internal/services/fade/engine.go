package fade

import (
	"strconv"
	"sync"
	"time"
)

// activeFade ramps one level.
type activeFade struct {
	id         string
	level      string
	startValue float64
	endValue   float64
	startTime  time.Time
	duration   time.Duration
	easingType EasingType
	apply      func(v float64)
	done       chan struct{}
}

// Engine runs level fades on a fixed update rate. Each level has at most one
// fade; starting a new fade on a level supersedes the running one.
type Engine struct {
	mu sync.RWMutex

	activeFades map[string]*activeFade // by level
	current     map[string]float64     // last interpolated value by level
	nextID      uint64

	stopChan chan struct{}
	running  bool

	updateRate time.Duration
	now        func() time.Time
}

// NewEngine creates a fade engine updating at updateRate (default 25ms).
func NewEngine(updateRate time.Duration) *Engine {
	if updateRate <= 0 {
		updateRate = 25 * time.Millisecond
	}
	return &Engine{
		activeFades: make(map[string]*activeFade),
		current:     make(map[string]float64),
		updateRate:  updateRate,
		now:         time.Now,
	}
}

// Start starts the engine's update loop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	e.mu.Unlock()

	go e.updateLoop(stop)
}

// Stop stops the update loop and cancels every fade.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	for level, f := range e.activeFades {
		close(f.done)
		delete(e.activeFades, level)
	}
	e.mu.Unlock()
}

func (e *Engine) updateLoop(stop chan struct{}) {
	ticker := time.NewTicker(e.updateRate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.processFades()
		}
	}
}

type step struct {
	apply func(float64)
	value float64
	done  chan struct{}
}

// processFades advances every fade one step. apply callbacks run outside
// the lock.
func (e *Engine) processFades() {
	e.mu.Lock()
	now := e.now()
	steps := make([]step, 0, len(e.activeFades))
	for level, f := range e.activeFades {
		progress := 1.0
		if f.duration > 0 {
			progress = float64(now.Sub(f.startTime)) / float64(f.duration)
		}
		v := Interpolate(f.startValue, f.endValue, progress, f.easingType)
		e.current[level] = v

		s := step{apply: f.apply, value: v}
		if progress >= 1 {
			delete(e.activeFades, level)
			s.done = f.done
		}
		steps = append(steps, s)
	}
	e.mu.Unlock()

	for _, s := range steps {
		if s.apply != nil {
			s.apply(s.value)
		}
		if s.done != nil {
			close(s.done)
		}
	}
}

// FadeLevel ramps level from its current value to target over duration,
// calling apply with each intermediate value and finally with target. from
// is the starting value unless the level is mid-fade, in which case the
// fade continues from the interpolated value. The returned channel is closed
// when the fade finishes, is superseded, or is cancelled.
func (e *Engine) FadeLevel(level string, from, target float64, duration time.Duration, easingType EasingType, apply func(v float64)) (id string, done <-chan struct{}) {
	if easingType == "" {
		easingType = DefaultEasing
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.activeFades[level]; ok {
		from = e.current[level]
		close(existing.done)
	}
	e.nextID++
	f := &activeFade{
		id:         level + "-" + strconv.FormatUint(e.nextID, 10),
		level:      level,
		startValue: from,
		endValue:   target,
		startTime:  e.now(),
		duration:   duration,
		easingType: easingType,
		apply:      apply,
		done:       make(chan struct{}),
	}
	e.activeFades[level] = f
	e.current[level] = from
	return f.id, f.done
}

// CancelFade stops the fade with the given id, leaving its level where it is.
// It reports whether the fade was still running.
func (e *Engine) CancelFade(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for level, f := range e.activeFades {
		if f.id == id {
			close(f.done)
			delete(e.activeFades, level)
			return true
		}
	}
	return false
}

// IsFading reports whether level has a running fade.
func (e *Engine) IsFading(level string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.activeFades[level]
	return ok
}

// IsRunning returns whether the engine is running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ActiveFadeCount returns the number of active fades.
func (e *Engine) ActiveFadeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.activeFades)
}
