package brightness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/engine/enginetest"
	"github.com/bbernstein/lacyplayer-go/internal/services/fade"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

type fixture struct {
	fake     *enginetest.Fake
	projects *project.Service
	ctrl     *Controller
	events   *pubsub.PubSub
	stage    show.OutputTarget
	pa       show.OutputTarget
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := enginetest.New()
	events := pubsub.New()
	projects := project.NewService(fake, nil, nil)
	_, err := projects.New(context.Background(), "Show")
	require.NoError(t, err)

	stage, err := projects.AddOutput(show.OutputTarget{Name: "Stage", Type: show.OutputDisplay})
	require.NoError(t, err)
	pa, err := projects.AddOutput(show.OutputTarget{Name: "PA", Type: show.OutputAudio})
	require.NoError(t, err)

	fader := fade.NewEngine(5 * time.Millisecond)
	fader.Start()
	t.Cleanup(fader.Stop)

	return &fixture{
		fake:     fake,
		projects: projects,
		ctrl:     NewController(fake, projects, fader, events),
		events:   events,
		stage:    stage,
		pa:       pa,
	}
}

func (f *fixture) output(t *testing.T, id string) show.OutputTarget {
	t.Helper()
	out, ok := f.projects.Output(id)
	require.True(t, ok)
	return out
}

func TestUnlink_CopiesMasterAndIgnoresLaterMasterChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.SetMasterBrightness(ctx, 60)
	require.NoError(t, err)

	level, err := f.ctrl.Unlink(ctx, f.stage.ID)
	require.NoError(t, err)
	assert.False(t, level.Linked)
	assert.Equal(t, 60.0, level.Value)

	last, ok := f.fake.Last(engine.CmdSetOutputBrightness)
	require.True(t, ok)
	v, overridden := last.Args[1].(show.Brightness).Value()
	assert.True(t, overridden)
	assert.Equal(t, 60.0, v)

	_, err = f.ctrl.SetMasterBrightness(ctx, 80)
	require.NoError(t, err)

	v, overridden = f.output(t, f.stage.ID).Brightness.Value()
	assert.True(t, overridden)
	assert.Equal(t, 60.0, v)
	levels := f.ctrl.Levels()
	assert.Equal(t, 80.0, levels.MasterBrightness)
	require.Len(t, levels.Outputs, 1, "audio outputs are excluded")
	assert.Equal(t, 60.0, levels.Outputs[0].Value)
}

func TestLinkUnlinkLink_EndsLinkedAndRejectsValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Unlink(ctx, f.stage.ID)
	require.NoError(t, err)
	_, err = f.ctrl.SetOutput(ctx, f.stage.ID, 35)
	require.NoError(t, err)

	level, err := f.ctrl.Link(ctx, f.stage.ID)
	require.NoError(t, err)
	assert.True(t, level.Linked)
	assert.True(t, f.output(t, f.stage.ID).Brightness.IsLinked())

	last, _ := f.fake.Last(engine.CmdSetOutputBrightness)
	assert.True(t, last.Args[1].(show.Brightness).IsLinked(), "relink sends null")

	before := f.fake.Count(engine.CmdSetOutputBrightness)
	_, err = f.ctrl.SetOutput(ctx, f.stage.ID, 10)
	assert.ErrorIs(t, err, ErrLinked)
	assert.Equal(t, before, f.fake.Count(engine.CmdSetOutputBrightness))
	assert.True(t, f.output(t, f.stage.ID).Brightness.IsLinked())
}

func TestToggleLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	level, err := f.ctrl.ToggleLink(ctx, f.stage.ID)
	require.NoError(t, err)
	assert.False(t, level.Linked)

	level, err = f.ctrl.ToggleLink(ctx, f.stage.ID)
	require.NoError(t, err)
	assert.True(t, level.Linked)
}

func TestSetOutput_ClampsAndMarksDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.projects.Save(ctx, "/shows/x.json"))

	_, err := f.ctrl.Unlink(ctx, f.stage.ID)
	require.NoError(t, err)
	level, err := f.ctrl.SetOutput(ctx, f.stage.ID, 250)
	require.NoError(t, err)
	assert.Equal(t, 100.0, level.Value)
	assert.True(t, f.projects.IsDirty())
}

func TestEngineFailure_LeavesOutputUnchanged(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(engine.CmdSetOutputBrightness, errors.New("output not running"))

	_, err := f.ctrl.Unlink(context.Background(), f.stage.ID)
	require.Error(t, err)
	assert.True(t, f.output(t, f.stage.ID).Brightness.IsLinked())
}

func TestAudioOutputsExcluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Unlink(ctx, f.pa.ID)
	assert.ErrorIs(t, err, ErrNotVideoOutput)
	_, err = f.ctrl.SetOutput(ctx, f.pa.ID, 20)
	assert.ErrorIs(t, err, ErrNotVideoOutput)
	_, err = f.ctrl.Link(ctx, "missing")
	assert.ErrorIs(t, err, ErrOutputNotFound)
	assert.Equal(t, 0, f.fake.Count(engine.CmdSetOutputBrightness))
}

func TestMasterVolume(t *testing.T) {
	f := newFixture(t)
	sub := f.events.Subscribe(pubsub.TopicBrightness, 10)

	v, err := f.ctrl.SetMasterVolume(context.Background(), -5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	assert.False(t, f.projects.IsDirty())

	msg := <-sub.Channel
	assert.Equal(t, 0.0, msg.(Levels).MasterVolume)
}

func TestFadeMaster_ReachesTarget(t *testing.T) {
	f := newFixture(t)

	done, err := f.ctrl.FadeMaster(context.Background(), 20, 60*time.Millisecond, fade.EasingLinear)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fade did not finish")
	}

	master, _, _ := f.projects.Levels()
	assert.Equal(t, 20.0, master)
	assert.Greater(t, f.fake.Count(engine.CmdSetMasterBrightness), 1, "fade sends intermediate steps")
	last, _ := f.fake.Last(engine.CmdSetMasterBrightness)
	assert.Equal(t, 20.0, last.Args[0])
}

func TestFadeMaster_CancelledByContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done, err := f.ctrl.FadeMaster(ctx, 0, time.Minute, fade.EasingLinear)
	require.NoError(t, err)
	assert.True(t, f.ctrl.Levels().Fading)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fade was not cancelled")
	}
	master, _, _ := f.projects.Levels()
	assert.Greater(t, master, 90.0)
}

func TestSetMasterBrightness_StopsFade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done, err := f.ctrl.FadeMaster(ctx, 0, time.Minute, fade.EasingLinear)
	require.NoError(t, err)
	_, err = f.ctrl.SetMasterBrightness(ctx, 50)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fade kept running")
	}
	time.Sleep(20 * time.Millisecond)
	master, _, _ := f.projects.Levels()
	assert.Equal(t, 50.0, master)
}
