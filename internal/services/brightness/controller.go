// Package brightness manages master brightness and volume and the
// link/override state of each video output's brightness.
package brightness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bbernstein/lacyplayer-go/internal/services/fade"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

var (
	// ErrLinked is returned when setting the value of an output that follows master.
	ErrLinked = errors.New("output brightness is linked to master")
	// ErrNotVideoOutput is returned for brightness operations on audio outputs.
	ErrNotVideoOutput = project.ErrNotVideoOutput
	// ErrOutputNotFound is returned for unknown output ids.
	ErrOutputNotFound = project.ErrOutputNotFound
)

const masterLevel = "master-brightness"

// Engine is the part of the playback engine that takes per-output brightness.
type Engine interface {
	SetOutputBrightness(ctx context.Context, outputID string, value show.Brightness) error
}

// OutputLevel describes the brightness of one video output.
type OutputLevel struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Linked bool    `json:"linked"`
	Value  float64 `json:"value"` // effective level
}

// Levels is published on the brightness topic after every change.
type Levels struct {
	MasterBrightness float64       `json:"masterBrightness"`
	MasterVolume     float64       `json:"masterVolume"`
	Fading           bool          `json:"fading"`
	Outputs          []OutputLevel `json:"outputs"`
}

// Controller applies brightness and volume changes.
type Controller struct {
	engine  Engine
	project *project.Service
	fader   *fade.Engine
	events  *pubsub.PubSub

	mu           sync.Mutex
	masterFadeID string
}

// NewController creates a controller. fader must be started by the caller;
// events may be nil.
func NewController(engine Engine, projects *project.Service, fader *fade.Engine, events *pubsub.PubSub) *Controller {
	return &Controller{
		engine:  engine,
		project: projects,
		fader:   fader,
		events:  events,
	}
}

// SetMasterBrightness sets master brightness, stopping any master fade.
func (c *Controller) SetMasterBrightness(ctx context.Context, value float64) (float64, error) {
	c.cancelMasterFade()
	v, err := c.project.SetMasterBrightness(ctx, value)
	if err != nil {
		return 0, err
	}
	c.publish()
	return v, nil
}

// SetMasterVolume sets master volume.
func (c *Controller) SetMasterVolume(ctx context.Context, value float64) (float64, error) {
	v, err := c.project.SetMasterVolume(ctx, value)
	if err != nil {
		return 0, err
	}
	c.publish()
	return v, nil
}

// videoOutput looks up id and checks it can carry brightness.
func (c *Controller) videoOutput(id string) (show.OutputTarget, error) {
	if c.project.Snapshot() == nil {
		return show.OutputTarget{}, project.ErrNoProject
	}
	out, ok := c.project.Output(id)
	if !ok {
		return show.OutputTarget{}, fmt.Errorf("output %s: %w", id, ErrOutputNotFound)
	}
	if !out.Type.IsVideo() {
		return show.OutputTarget{}, fmt.Errorf("output %s: %w", id, ErrNotVideoOutput)
	}
	return out, nil
}

// Unlink gives the output an override equal to the current master value.
// Unlinking an output that is already overridden changes nothing.
func (c *Controller) Unlink(ctx context.Context, id string) (OutputLevel, error) {
	out, err := c.videoOutput(id)
	if err != nil {
		return OutputLevel{}, err
	}
	master, _, _ := c.project.Levels()
	if !out.Brightness.IsLinked() {
		return levelOf(out, master), nil
	}
	return c.apply(ctx, id, show.Override(master))
}

// Link makes the output follow master again. The override value is dropped.
func (c *Controller) Link(ctx context.Context, id string) (OutputLevel, error) {
	out, err := c.videoOutput(id)
	if err != nil {
		return OutputLevel{}, err
	}
	if out.Brightness.IsLinked() {
		master, _, _ := c.project.Levels()
		return levelOf(out, master), nil
	}
	return c.apply(ctx, id, show.Linked())
}

// ToggleLink unlinks a linked output and links an overridden one.
func (c *Controller) ToggleLink(ctx context.Context, id string) (OutputLevel, error) {
	out, err := c.videoOutput(id)
	if err != nil {
		return OutputLevel{}, err
	}
	if out.Brightness.IsLinked() {
		return c.Unlink(ctx, id)
	}
	return c.Link(ctx, id)
}

// SetOutput sets an overridden output's brightness. Linked outputs reject
// direct changes with ErrLinked.
func (c *Controller) SetOutput(ctx context.Context, id string, value float64) (OutputLevel, error) {
	out, err := c.videoOutput(id)
	if err != nil {
		return OutputLevel{}, err
	}
	if out.Brightness.IsLinked() {
		return OutputLevel{}, fmt.Errorf("output %s: %w", id, ErrLinked)
	}
	return c.apply(ctx, id, show.Override(value))
}

// apply sends b to the engine and, once accepted, stores it on the output.
func (c *Controller) apply(ctx context.Context, id string, b show.Brightness) (OutputLevel, error) {
	if err := c.engine.SetOutputBrightness(ctx, id, b); err != nil {
		return OutputLevel{}, fmt.Errorf("failed to set brightness of output %s: %w", id, err)
	}
	out, err := c.project.SetOutputBrightness(id, b)
	if err != nil {
		return OutputLevel{}, err
	}
	master, _, _ := c.project.Levels()
	c.publish()
	return levelOf(out, master), nil
}

// FadeMaster ramps master brightness to target over duration. The fade stops
// early when ctx is done or another fade or SetMasterBrightness takes over.
// The returned channel is closed when the fade ends for any reason.
func (c *Controller) FadeMaster(ctx context.Context, target float64, duration time.Duration, easing fade.EasingType) (<-chan struct{}, error) {
	from, _, ok := c.project.Levels()
	if !ok {
		return nil, project.ErrNoProject
	}
	target = show.ClampLevel(target)

	// Steps run under c.mu so a step cannot land after the fade was replaced
	// or cancelled by SetMasterBrightness.
	var id string
	step := func(v float64) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.masterFadeID != id {
			return
		}
		stepCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := c.project.SetMasterBrightness(stepCtx, v); err == nil {
			c.publish()
		}
	}

	c.mu.Lock()
	id, done := c.fader.FadeLevel(masterLevel, from, target, duration, easing, step)
	c.masterFadeID = id
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			c.fader.CancelFade(id)
		case <-done:
		}
		c.mu.Lock()
		if c.masterFadeID == id {
			c.masterFadeID = ""
		}
		c.mu.Unlock()
	}()
	return done, nil
}

func (c *Controller) cancelMasterFade() {
	c.mu.Lock()
	id := c.masterFadeID
	c.masterFadeID = ""
	c.mu.Unlock()
	if id != "" {
		c.fader.CancelFade(id)
	}
}

// Levels lists master levels and every video output. Audio outputs are left out.
func (c *Controller) Levels() Levels {
	master, volume, _ := c.project.Levels()
	outputs := c.project.Outputs()
	levels := Levels{
		MasterBrightness: master,
		MasterVolume:     volume,
		Fading:           c.fader.IsFading(masterLevel),
		Outputs:          make([]OutputLevel, 0, len(outputs)),
	}
	for _, out := range outputs {
		if out.Type.IsVideo() {
			levels.Outputs = append(levels.Outputs, levelOf(out, master))
		}
	}
	return levels
}

func levelOf(out show.OutputTarget, master float64) OutputLevel {
	return OutputLevel{
		ID:     out.ID,
		Name:   out.Name,
		Linked: out.Brightness.IsLinked(),
		Value:  out.Brightness.Resolve(master),
	}
}

func (c *Controller) publish() {
	if c.events != nil {
		c.events.Publish(pubsub.TopicBrightness, c.Levels())
	}
}
