package playersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/engine/enginetest"
	"github.com/bbernstein/lacyplayer-go/internal/services/player"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

func newFixture(t *testing.T, cues ...show.Cue) (*player.Service, *enginetest.Fake) {
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
	return player.NewService(fake, projects, nil), fake
}

func TestIntervalFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.IntervalFor(show.StatusPlaying))
	for _, s := range []show.PlayerStatus{show.StatusIdle, show.StatusLoading, show.StatusReady, show.StatusPaused, show.StatusError} {
		assert.Equal(t, 500*time.Millisecond, cfg.IntervalFor(s), s)
	}
}

func TestPoll_OverwritesLocalState(t *testing.T) {
	p, fake := newFixture(t, show.Cue{ID: "a"})
	msg := "engine says hi"
	fake.SetState(show.PlayerState{Status: show.StatusPaused, CurrentCueIndex: 0, CurrentTime: 4.2, Duration: 9, Error: &msg})

	loop := NewLoop(fake, p, DefaultConfig())
	loop.Poll(context.Background())

	st := p.State()
	assert.Equal(t, show.StatusPaused, st.Status)
	assert.Equal(t, 0, st.CurrentCueIndex)
	assert.Equal(t, 4.2, st.CurrentTime)
	assert.Equal(t, 9.0, st.Duration)
	require.NotNil(t, st.Error)
	assert.Equal(t, msg, *st.Error)
}

func TestPoll_FailureLeavesStateUnchanged(t *testing.T) {
	p, fake := newFixture(t, show.Cue{ID: "a"})
	require.NoError(t, p.LoadCue(context.Background(), 0))
	before := p.State()

	fake.Fail(engine.CmdGetPlayerState, errors.New("engine restarting"))
	loop := NewLoop(fake, p, DefaultConfig())
	loop.Poll(context.Background())

	assert.Equal(t, before, p.State())
}

func TestPoll_NaturalEndAutoAdvances(t *testing.T) {
	p, fake := newFixture(t, show.Cue{ID: "a", AutoAdvance: true}, show.Cue{ID: "b"})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	require.NoError(t, p.Play(ctx))

	loop := NewLoop(fake, p, DefaultConfig())
	fake.SetState(show.PlayerState{Status: show.StatusReady, CurrentCueIndex: 0, CurrentTime: 8, Duration: 8})
	loop.Poll(ctx)
	loop.advancing.Wait()

	st := p.State()
	assert.Equal(t, 1, st.CurrentCueIndex)
	assert.Equal(t, show.StatusPlaying, st.Status)
}

func TestPoll_AutoAdvanceDisabled(t *testing.T) {
	p, fake := newFixture(t, show.Cue{ID: "a", AutoAdvance: true}, show.Cue{ID: "b"})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	require.NoError(t, p.Play(ctx))

	cfg := DefaultConfig()
	cfg.AutoAdvance = false
	loop := NewLoop(fake, p, cfg)
	fake.SetState(show.PlayerState{Status: show.StatusReady, CurrentCueIndex: 0})
	loop.Poll(ctx)
	loop.advancing.Wait()

	assert.Equal(t, 0, p.State().CurrentCueIndex)
	assert.Equal(t, 1, fake.Count(engine.CmdLoadCue))
}

func TestLoop_PollsFasterWhilePlaying(t *testing.T) {
	p, fake := newFixture(t, show.Cue{ID: "a"})
	cfg := Config{ActiveInterval: 10 * time.Millisecond, IdleInterval: time.Hour}
	loop := NewLoop(fake, p, cfg)
	p.SetStatusCallback(loop.StatusChanged)

	loop.Start()
	defer loop.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, fake.Count(engine.CmdGetPlayerState), "idle interval has not elapsed")

	fake.SetState(show.PlayerState{Status: show.StatusPlaying, CurrentCueIndex: 0})
	ctx := context.Background()
	require.NoError(t, p.LoadCue(ctx, 0))
	require.NoError(t, p.Play(ctx))

	assert.Eventually(t, func() bool { return fake.Count(engine.CmdGetPlayerState) >= 3 }, time.Second, 5*time.Millisecond)
}

func TestLoop_StartStop(t *testing.T) {
	p, fake := newFixture(t)
	loop := NewLoop(fake, p, Config{ActiveInterval: 5 * time.Millisecond, IdleInterval: 5 * time.Millisecond})

	assert.False(t, loop.IsRunning())
	loop.Start()
	loop.Start()
	assert.True(t, loop.IsRunning())
	assert.Eventually(t, func() bool { return fake.Count(engine.CmdGetPlayerState) > 0 }, time.Second, 5*time.Millisecond)

	loop.Stop()
	loop.Stop()
	assert.False(t, loop.IsRunning())
	n := fake.Count(engine.CmdGetPlayerState)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, fake.Count(engine.CmdGetPlayerState), "no polls after Stop")
}

func TestStatusChanged_OnlyPokesOnPlayingBoundary(t *testing.T) {
	p, fake := newFixture(t)
	loop := NewLoop(fake, p, DefaultConfig())

	loop.StatusChanged(show.StatusIdle, show.StatusLoading)
	assert.Len(t, loop.resetTickerChan, 0)

	loop.StatusChanged(show.StatusReady, show.StatusPlaying)
	loop.StatusChanged(show.StatusPlaying, show.StatusPaused)
	assert.Len(t, loop.resetTickerChan, 1, "pokes coalesce")
}

func TestPoll_DeletedCueAfterEngineCatchesUp(t *testing.T) {
	ctx := context.Background()
	setup := func(t *testing.T) (*project.Service, *player.Service, *Loop) {
		sim := engine.NewSimulator(engine.SimulatorConfig{})
		projects := project.NewService(sim, nil, nil)
		_, err := projects.New(ctx, "Show")
		require.NoError(t, err)
		for _, id := range []string{"a", "b", "c"} {
			_, err := projects.AddCue(show.Cue{ID: id, Name: id, Duration: 10})
			require.NoError(t, err)
		}
		require.NoError(t, projects.Flush(ctx))

		p := player.NewService(sim, projects, nil)
		projects.SetCueRemovedCallback(p.ForgetCue)
		loop := NewLoop(sim, p, DefaultConfig())
		loop.SetFlusher(projects)
		return projects, p, loop
	}

	t.Run("loaded cue deleted", func(t *testing.T) {
		projects, p, loop := setup(t)
		require.NoError(t, p.LoadCue(ctx, 1))
		require.NoError(t, projects.RemoveCue("b"))

		loop.Poll(ctx)
		st := p.State()
		assert.Equal(t, show.NoCue, st.CurrentCueIndex)
		assert.Equal(t, show.StatusIdle, st.Status)
	})

	t.Run("earlier cue deleted", func(t *testing.T) {
		projects, p, loop := setup(t)
		require.NoError(t, p.LoadCue(ctx, 2))
		require.NoError(t, projects.RemoveCue("a"))

		loop.Poll(ctx)
		st := p.State()
		assert.Equal(t, 1, st.CurrentCueIndex)
		cue, ok := projects.CueAt(st.CurrentCueIndex)
		require.True(t, ok)
		assert.Equal(t, "c", cue.ID)
		assert.ErrorIs(t, p.Next(ctx), player.ErrEndOfCueList)
	})
}

func TestPoll_WaitsForFlush(t *testing.T) {
	p, fake := newFixture(t, show.Cue{ID: "a"})
	loop := NewLoop(fake, p, DefaultConfig())
	loop.SetFlusher(stuckFlusher{})

	fake.SetState(show.PlayerState{Status: show.StatusPaused, CurrentCueIndex: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Poll(ctx)

	assert.Equal(t, show.StatusIdle, p.State().Status)
	assert.Zero(t, fake.Count(engine.CmdGetPlayerState))
}

type stuckFlusher struct{}

func (stuckFlusher) Flush(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
