package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/bbernstein/lacyplayer-go/internal/services/player"
)

// Transport is the player surface the remote drives.
type Transport interface {
	TogglePlay(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
}

// Levels sets the master levels.
type Levels interface {
	SetMasterBrightness(ctx context.Context, value float64) (float64, error)
	SetMasterVolume(ctx context.Context, value float64) (float64, error)
}

// DefaultCommandTimeout bounds one dispatched command.
const DefaultCommandTimeout = 5 * time.Second

// Remote dispatches decoded MIDI commands.
type Remote struct {
	decoder   Decoder
	transport Transport
	levels    Levels
	timeout   time.Duration

	mu   sync.Mutex
	stop func()
	quit chan struct{}
	done chan struct{}
}

// New creates a remote with the given mapping.
func New(transport Transport, levels Levels, mapping Mapping) *Remote {
	return &Remote{
		decoder:   Decoder{Mapping: mapping},
		transport: transport,
		levels:    levels,
		timeout:   DefaultCommandTimeout,
	}
}

// Handle decodes msg and runs the command it maps to. Unmapped messages are
// ignored.
func (r *Remote) Handle(ctx context.Context, msg midi.Message) error {
	cmd, ok := r.decoder.Decode(msg)
	if !ok {
		return nil
	}
	return r.Dispatch(ctx, cmd)
}

// Dispatch runs cmd.
func (r *Remote) Dispatch(ctx context.Context, cmd Command) error {
	var err error
	switch cmd.Action {
	case ActionTogglePlay:
		err = r.transport.TogglePlay(ctx)
	case ActionStop:
		err = r.transport.Stop(ctx)
	case ActionNext:
		err = r.transport.Next(ctx)
		if errors.Is(err, player.ErrEndOfCueList) {
			err = nil
		}
	case ActionPrev:
		err = r.transport.Prev(ctx)
	case ActionMasterBrightness:
		_, err = r.levels.SetMasterBrightness(ctx, cmd.Value)
	case ActionMasterVolume:
		_, err = r.levels.SetMasterVolume(ctx, cmd.Value)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("midi %s: %w", cmd, err)
	}
	return nil
}

// FindInPort returns the first input port whose name contains substr, case
// insensitively. An empty substr selects the first port.
func FindInPort(substr string) (drivers.In, error) {
	ports := midi.GetInPorts()
	lower := strings.ToLower(substr)
	for _, port := range ports {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	if substr == "" {
		return nil, errors.New("no MIDI input ports")
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", substr)
}

// Listen starts handling messages from the input port matching portName.
// Messages are handled one at a time in arrival order. A MIDI driver must be
// registered by the caller.
func (r *Remote) Listen(portName string) error {
	port, err := FindInPort(portName)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return errors.New("midi remote is already listening")
	}

	queue := make(chan midi.Message, 64)
	stop, err := midi.ListenTo(port, func(msg midi.Message, _ int32) {
		select {
		case queue <- msg:
		default:
			log.Printf("⚠️  MIDI queue full, dropped %s", msg)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}

	r.stop = stop
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	go r.work(queue, r.quit, r.done)
	log.Printf("🎹 MIDI remote listening on %s", port)
	return nil
}

func (r *Remote) work(queue <-chan midi.Message, quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case msg := <-queue:
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			if err := r.Handle(ctx, msg); err != nil {
				log.Printf("⚠️  %v", err)
			}
			cancel()
		}
	}
}

// Close stops listening. Messages still queued are dropped.
func (r *Remote) Close() {
	r.mu.Lock()
	stop, quit, done := r.stop, r.quit, r.done
	r.stop, r.quit, r.done = nil, nil, nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	close(quit)
	<-done
}
