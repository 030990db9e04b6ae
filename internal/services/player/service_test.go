package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/engine/enginetest"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

func newPlayer(t *testing.T, cues ...show.Cue) (*Service, *enginetest.Fake, *project.Service) {
	t.Helper()
	fake := enginetest.New()
	projects := project.NewService(fake, nil, nil)
	_, err := projects.New(context.Background(), "Show")
	require.NoError(t, err)
	for _, c := range cues {
		_, err := projects.AddCue(c)
		require.NoError(t, err)
	}
	require.NoError(t, projects.Flush(context.Background()))
	fake.Reset()
	return NewService(fake, projects, nil), fake, projects
}

func transportCommands(f *enginetest.Fake) []string {
	var cmds []string
	for _, c := range f.Commands() {
		if c != engine.CmdUpdateProject {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

func TestScenario_LoadPlayStop(t *testing.T) {
	fake := enginetest.New()
	projects := project.NewService(fake, nil, nil)
	ctx := context.Background()

	_, err := projects.New(ctx, "Show")
	require.NoError(t, err)
	cue, err := projects.AddCue(show.Cue{Name: "Cue 1"})
	require.NoError(t, err)
	out, err := projects.AddOutput(show.OutputTarget{Name: "Screen", Type: show.OutputDisplay})
	require.NoError(t, err)
	_, err = projects.AddItem(cue.ID, show.MediaItem{Type: show.MediaVideo, Name: "intro.mp4", Path: "/media/intro.mp4", OutputID: out.ID})
	require.NoError(t, err)

	p := NewService(fake, projects, nil)
	assert.Equal(t, show.StatusIdle, p.State().Status)

	require.NoError(t, p.LoadCue(ctx, 0))
	st := p.State()
	assert.Equal(t, show.StatusReady, st.Status, "loading does not start playback")
	assert.Equal(t, 0, st.CurrentCueIndex)

	require.NoError(t, p.Play(ctx))
	assert.Equal(t, show.StatusPlaying, p.State().Status)

	require.NoError(t, p.Seek(ctx, 12.5))
	assert.Equal(t, 12.5, p.State().CurrentTime)

	require.NoError(t, p.Stop(ctx))
	st = p.State()
	assert.Equal(t, show.StatusIdle, st.Status)
	assert.Equal(t, 0.0, st.CurrentTime)
	assert.Equal(t, 0, st.CurrentCueIndex)
}

func TestLoadCue_StatusIsLoadingWhileEngineWorks(t *testing.T) {
	p, fake, _ := newPlayer(t, show.Cue{ID: "a"})
	release := fake.Gate(engine.CmdLoadCue)

	done := make(chan error, 1)
	go func() { done <- p.LoadCue(context.Background(), 0) }()

	assert.Eventually(t, func() bool { return p.State().Status == show.StatusLoading }, time.Second, 5*time.Millisecond)
	release()
	require.NoError(t, <-done)
	assert.Equal(t, show.StatusReady, p.State().Status)
}

func TestFailures_CollapseToError(t *testing.T) {
	tests := []struct {
		name    string
		command string
		run     func(p *Service) error
	}{
		{"load", engine.CmdLoadCue, func(p *Service) error { return p.LoadCue(context.Background(), 0) }},
		{"play", engine.CmdPlay, func(p *Service) error { return p.Play(context.Background()) }},
		{"pause", engine.CmdPause, func(p *Service) error { return p.Pause(context.Background()) }},
		{"stop", engine.CmdStop, func(p *Service) error { return p.Stop(context.Background()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fake, _ := newPlayer(t, show.Cue{ID: "a"})
			fake.Fail(tt.command, errors.New("decoder crashed"))

			err := tt.run(p)
			require.Error(t, err)
			st := p.State()
			assert.Equal(t, show.StatusError, st.Status)
			require.NotNil(t, st.Error)
			assert.Equal(t, "decoder crashed", *st.Error)
			assert.Equal(t, 1, fake.Count(tt.command), "no retry")
		})
	}
}

func TestPauseFromIdle_IsSentToEngine(t *testing.T) {
	p, fake, _ := newPlayer(t)

	require.NoError(t, p.Pause(context.Background()))
	assert.Equal(t, []string{engine.CmdPause}, transportCommands(fake))
	assert.Equal(t, show.StatusPaused, p.State().Status)

	fake.Fail(engine.CmdPause, errors.New("nothing to pause"))
	p.Reset()
	assert.Error(t, p.Pause(context.Background()))
	assert.Equal(t, show.StatusError, p.State().Status)
}

func TestSeekFailure_KeepsStatus(t *testing.T) {
	p, fake, _ := newPlayer(t, show.Cue{ID: "a"})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	require.NoError(t, p.Play(ctx))

	fake.Fail(engine.CmdSeek, errors.New("not seekable"))
	require.Error(t, p.Seek(ctx, 30))

	st := p.State()
	assert.Equal(t, show.StatusPlaying, st.Status)
	assert.Equal(t, 0.0, st.CurrentTime)
	require.NotNil(t, st.Error)
	assert.Equal(t, "not seekable", *st.Error)
}

func TestPrev_AtFirstCueDoesNothing(t *testing.T) {
	p, fake, _ := newPlayer(t, show.Cue{ID: "a"}, show.Cue{ID: "b"})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	before := p.State()
	fake.Reset()

	require.NoError(t, p.Prev(ctx))
	assert.Empty(t, fake.Commands())
	assert.Equal(t, before, p.State())

	require.NoError(t, p.LoadCue(ctx, 1))
	require.NoError(t, p.Prev(ctx))
	assert.Equal(t, 0, p.State().CurrentCueIndex)
}

func TestNext_AtLastCueReturnsEndOfList(t *testing.T) {
	p, fake, _ := newPlayer(t, show.Cue{ID: "a"}, show.Cue{ID: "b"})
	ctx := context.Background()

	require.NoError(t, p.Next(ctx), "with nothing loaded, next loads the first cue")
	assert.Equal(t, 0, p.State().CurrentCueIndex)
	require.NoError(t, p.Next(ctx))
	assert.Equal(t, 1, p.State().CurrentCueIndex)

	before := p.State()
	fake.Reset()
	err := p.Next(ctx)
	assert.ErrorIs(t, err, ErrEndOfCueList)
	assert.Empty(t, fake.Commands())
	assert.Equal(t, before, p.State())
}

func TestCommands_AreSerialized(t *testing.T) {
	p, fake, _ := newPlayer(t, show.Cue{ID: "a"})
	ctx := context.Background()
	release := fake.Gate(engine.CmdLoadCue)

	loadDone := make(chan error, 1)
	go func() { loadDone <- p.LoadCue(ctx, 0) }()
	require.Eventually(t, func() bool { return fake.Count(engine.CmdLoadCue) == 1 }, time.Second, 5*time.Millisecond)

	playDone := make(chan error, 1)
	go func() { playDone <- p.Play(ctx) }()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, fake.Count(engine.CmdPlay), "play waits for the load in flight")

	release()
	require.NoError(t, <-loadDone)
	require.NoError(t, <-playDone)
	assert.Equal(t, []string{engine.CmdLoadCue, engine.CmdPlay}, transportCommands(fake))
	assert.Equal(t, show.StatusPlaying, p.State().Status)
}

func TestCommand_WaitingForSlotHonoursContext(t *testing.T) {
	p, fake, _ := newPlayer(t, show.Cue{ID: "a"})
	release := fake.Gate(engine.CmdLoadCue)
	defer release()

	go func() { _ = p.LoadCue(context.Background(), 0) }()
	require.Eventually(t, func() bool { return fake.Count(engine.CmdLoadCue) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Play(ctx), context.DeadlineExceeded)
	assert.Equal(t, 0, fake.Count(engine.CmdPlay))
}

func TestApply_OverwritesAndDetectsNaturalEnd(t *testing.T) {
	p, _, _ := newPlayer(t, show.Cue{ID: "a"}, show.Cue{ID: "b"})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	require.NoError(t, p.Play(ctx))

	finished := p.Apply(show.PlayerState{Status: show.StatusPlaying, CurrentCueIndex: 0, CurrentTime: 3, Duration: 10})
	assert.False(t, finished)
	assert.Equal(t, 3.0, p.State().CurrentTime)

	finished = p.Apply(show.PlayerState{Status: show.StatusReady, CurrentCueIndex: 0, CurrentTime: 10, Duration: 10})
	assert.True(t, finished)
	assert.Equal(t, show.StatusReady, p.State().Status)

	finished = p.Apply(show.PlayerState{Status: show.StatusReady, CurrentCueIndex: 0, CurrentTime: 10, Duration: 10})
	assert.False(t, finished, "only the transition counts")
}

func TestApply_LocalStopIsNotNaturalEnd(t *testing.T) {
	p, _, _ := newPlayer(t, show.Cue{ID: "a"})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	require.NoError(t, p.Play(ctx))
	require.NoError(t, p.Stop(ctx))

	assert.False(t, p.Apply(show.PlayerState{Status: show.StatusIdle, CurrentCueIndex: 0}))
}

func TestApply_IndexPastEndIsNothingLoaded(t *testing.T) {
	p, _, projects := newPlayer(t, show.Cue{ID: "a"}, show.Cue{ID: "b"}, show.Cue{ID: "c"})
	p.Apply(show.PlayerState{Status: show.StatusReady, CurrentCueIndex: 2})
	assert.Equal(t, 2, p.State().CurrentCueIndex)

	require.NoError(t, projects.RemoveCue("a"))
	p.Apply(show.PlayerState{Status: show.StatusReady, CurrentCueIndex: 2})
	assert.Equal(t, show.NoCue, p.State().CurrentCueIndex)
}

func TestHandleCueFinished_AutoAdvance(t *testing.T) {
	p, fake, projects := newPlayer(t,
		show.Cue{ID: "a", AutoAdvance: true},
		show.Cue{ID: "b", AutoAdvance: true},
		show.Cue{ID: "c"},
	)
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	fake.Reset()

	require.NoError(t, p.HandleCueFinished(ctx, 0))
	assert.Equal(t, []string{engine.CmdLoadCue, engine.CmdPlay}, transportCommands(fake))
	st := p.State()
	assert.Equal(t, 1, st.CurrentCueIndex)
	assert.Equal(t, show.StatusPlaying, st.Status)

	_, err := projects.UpdateCue("b", project.CueUpdate{AutoAdvance: show.Ptr(false)})
	require.NoError(t, err)
	fake.Reset()
	require.NoError(t, p.HandleCueFinished(ctx, 1))
	assert.Empty(t, transportCommands(fake), "cue without autoAdvance stays put")
}

func TestHandleCueFinished_LastCueStays(t *testing.T) {
	p, fake, _ := newPlayer(t, show.Cue{ID: "a", AutoAdvance: true})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	fake.Reset()

	require.NoError(t, p.HandleCueFinished(ctx, 0))
	assert.Empty(t, transportCommands(fake))
}

func TestForgetCue(t *testing.T) {
	p, _, _ := newPlayer(t, show.Cue{ID: "a"}, show.Cue{ID: "b"}, show.Cue{ID: "c"})
	ctx := context.Background()

	require.NoError(t, p.LoadCue(ctx, 2))
	p.ForgetCue(0)
	assert.Equal(t, 1, p.State().CurrentCueIndex)

	p.ForgetCue(1)
	st := p.State()
	assert.Equal(t, show.NoCue, st.CurrentCueIndex)
	assert.Equal(t, show.StatusIdle, st.Status)

	require.NoError(t, p.LoadCue(ctx, 0))
	p.ForgetCue(1)
	assert.Equal(t, 0, p.State().CurrentCueIndex)
}

func TestStatusCallbackAndEvents(t *testing.T) {
	fake := enginetest.New()
	projects := project.NewService(fake, nil, nil)
	_, err := projects.New(context.Background(), "Show")
	require.NoError(t, err)
	_, err = projects.AddCue(show.Cue{ID: "a"})
	require.NoError(t, err)

	events := pubsub.New()
	sub := events.Subscribe(pubsub.TopicPlayerState, 20)
	p := NewService(fake, projects, events)

	var transitions [][2]show.PlayerStatus
	p.SetStatusCallback(func(from, to show.PlayerStatus) {
		transitions = append(transitions, [2]show.PlayerStatus{from, to})
	})

	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	require.NoError(t, p.Play(ctx))
	require.NoError(t, p.Seek(ctx, 2))

	assert.Equal(t, [][2]show.PlayerStatus{
		{show.StatusIdle, show.StatusLoading},
		{show.StatusLoading, show.StatusReady},
		{show.StatusReady, show.StatusPlaying},
	}, transitions, "seek does not change status")
	assert.Len(t, sub.Channel, 4)
}
