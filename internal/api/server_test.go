package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/engine/enginetest"
	"github.com/bbernstein/lacyplayer-go/internal/services/brightness"
	"github.com/bbernstein/lacyplayer-go/internal/services/fade"
	"github.com/bbernstein/lacyplayer-go/internal/services/output"
	"github.com/bbernstein/lacyplayer-go/internal/services/player"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

type fixture struct {
	fake     *enginetest.Fake
	projects *project.Service
	outputs  *output.Manager
	srv      *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := enginetest.New()
	events := pubsub.New()

	projects := project.NewService(fake, nil, events)
	outputs := output.NewManager(fake, events)
	projects.SetOutputCloser(outputs)

	fader := fade.NewEngine(5 * time.Millisecond)
	fader.Start()
	t.Cleanup(fader.Stop)

	players := player.NewService(fake, projects, events)
	projects.SetCueRemovedCallback(players.ForgetCue)

	ctx := context.Background()
	_, err := projects.New(ctx, "Show")
	require.NoError(t, err)
	_, err = outputs.FetchMonitors(ctx)
	require.NoError(t, err)

	s := NewServer(Services{
		Projects:   projects,
		Player:     players,
		Outputs:    outputs,
		Brightness: brightness.NewController(fake, projects, fader, events),
		Events:     events,
	})
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	return &fixture{fake: fake, projects: projects, outputs: outputs, srv: srv}
}

// do sends a JSON request and decodes the JSON reply into out when out is non-nil.
func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestProject_NewAndGet(t *testing.T) {
	f := newFixture(t)

	var created ProjectResponse
	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/project/new", map[string]string{"name": "Gala"}, &created))
	require.NotNil(t, created.Project)
	assert.Equal(t, "Gala", created.Project.Name)
	assert.False(t, created.Dirty)

	var got ProjectResponse
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/project/", nil, &got))
	assert.Equal(t, created.Project.ID, got.Project.ID)
}

func TestProject_SaveWithoutPath(t *testing.T) {
	f := newFixture(t)

	var e errorResponse
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodPost, "/api/project/save", nil, &e))
	assert.Contains(t, e.Error, "no project path")

	var saved ProjectResponse
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/project/save", map[string]string{"path": "/shows/a.json"}, &saved))
	assert.Equal(t, "/shows/a.json", saved.Path)
}

func TestProject_RecentWithoutPreferences(t *testing.T) {
	f := newFixture(t)

	var recent []RecentProject
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/project/recent", nil, &recent))
	assert.Empty(t, recent)
}

func TestCues_CRUD(t *testing.T) {
	f := newFixture(t)

	var cue show.Cue
	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/cues/", map[string]any{"duration": 12}, &cue))
	assert.NotEmpty(t, cue.ID)
	assert.Equal(t, "Cue 1", cue.Name)

	var updated show.Cue
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPatch, "/api/cues/"+cue.ID, map[string]any{"name": "Opening", "autoAdvance": true}, &updated))
	assert.Equal(t, "Opening", updated.Name)
	assert.True(t, updated.AutoAdvance)
	assert.True(t, f.projects.IsDirty())

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, "/api/cues/nope", map[string]any{"name": "x"}, &e))
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodPost, "/api/cues/reorder", map[string]int{"from": 0, "to": 3}, &e))

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/cues/"+cue.ID, nil, nil))
	n, _ := f.projects.CueCount()
	assert.Equal(t, 0, n)
}

func TestCues_BadBody(t *testing.T) {
	f := newFixture(t)

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/cues/", "{not json", &e))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/cues/", `{"bogus":1}`, &e))
}

func TestItems_IncompatibleOutput(t *testing.T) {
	f := newFixture(t)
	cue, err := f.projects.AddCue(show.Cue{})
	require.NoError(t, err)
	pa, err := f.projects.AddOutput(show.OutputTarget{Type: show.OutputAudio})
	require.NoError(t, err)

	var e errorResponse
	status := f.do(t, http.MethodPost, "/api/cues/"+cue.ID+"/items", map[string]any{"type": "video", "name": "clip", "outputId": pa.ID}, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	var item show.MediaItem
	status = f.do(t, http.MethodPost, "/api/cues/"+cue.ID+"/items", map[string]any{"type": "audio", "name": "track", "outputId": pa.ID}, &item)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, item.ID)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/cues/"+cue.ID+"/items/"+item.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/cues/"+cue.ID+"/items/"+item.ID, nil, &e))
}

func TestOutputs_OpenAndClose(t *testing.T) {
	f := newFixture(t)

	var out show.OutputTarget
	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/outputs/", map[string]any{"type": "display"}, &out))
	assert.Equal(t, "Output 1", out.Name)

	var st output.Status
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/outputs/"+out.ID+"/open", map[string]int{"monitorIndex": 0}, &st))
	require.Len(t, st.Open, 1)
	assert.Equal(t, 0, st.Open[0].MonitorIndex)

	var list OutputsResponse
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/outputs/", nil, &list))
	assert.Len(t, list.Outputs, 1)
	assert.Len(t, list.Open, 1)
	assert.NotEmpty(t, list.Monitors)

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/outputs/"+out.ID+"/open", map[string]int{"monitorIndex": 9}, &e))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/outputs/missing/open", nil, &e))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/outputs/"+out.ID+"/close", nil, &st))
	assert.Empty(t, st.Open)
	assert.False(t, f.outputs.IsOpen(out.ID))
}

func TestOutputs_WindowedOpenAndCloseAllFailure(t *testing.T) {
	f := newFixture(t)
	out, err := f.projects.AddOutput(show.OutputTarget{Type: show.OutputNDI})
	require.NoError(t, err)

	var st output.Status
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/outputs/"+out.ID+"/open", nil, &st))
	require.Len(t, st.Open, 1)
	assert.Equal(t, show.WindowedMonitor, st.Open[0].MonitorIndex)

	f.fake.Fail(engine.CmdCloseAllOutputs, &engine.CommandError{Command: engine.CmdCloseAllOutputs, Message: "busy"})
	var e errorResponse
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodPost, "/api/outputs/close-all", nil, &e))
	assert.True(t, f.outputs.IsOpen(out.ID))
}

func TestBrightness_LinkFlow(t *testing.T) {
	f := newFixture(t)
	out, err := f.projects.AddOutput(show.OutputTarget{Type: show.OutputDisplay})
	require.NoError(t, err)
	pa, err := f.projects.AddOutput(show.OutputTarget{Type: show.OutputAudio})
	require.NoError(t, err)

	var levels brightness.Levels
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/brightness/master", map[string]float64{"value": 60}, &levels))
	assert.Equal(t, 60.0, levels.MasterBrightness)

	var e errorResponse
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPut, "/api/brightness/outputs/"+out.ID, map[string]float64{"value": 80}, &e))

	var level brightness.OutputLevel
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/brightness/outputs/"+out.ID+"/unlink", nil, &level))
	assert.False(t, level.Linked)
	assert.Equal(t, 60.0, level.Value)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/brightness/outputs/"+out.ID, map[string]float64{"value": 80}, &level))
	assert.Equal(t, 80.0, level.Value)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/brightness/outputs/"+out.ID+"/toggle", nil, &level))
	assert.True(t, level.Linked)

	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodPost, "/api/brightness/outputs/"+pa.ID+"/unlink", nil, &e))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/brightness/master", map[string]any{}, &e))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/volume/master", map[string]float64{"value": 130}, &levels))
	assert.Equal(t, 100.0, levels.MasterVolume)
}

func TestBrightness_Fade(t *testing.T) {
	f := newFixture(t)

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/brightness/master/fade", map[string]any{"target": 0, "easing": "bounce"}, &e))

	var levels brightness.Levels
	status := f.do(t, http.MethodPost, "/api/brightness/master/fade", map[string]any{"target": 20, "durationMs": 50, "easing": "linear"}, &levels)
	assert.Equal(t, http.StatusAccepted, status)

	assert.Eventually(t, func() bool {
		b, _, _ := f.projects.Levels()
		return b == 20
	}, time.Second, 5*time.Millisecond)
}

func TestPlayer_Transport(t *testing.T) {
	f := newFixture(t)
	_, err := f.projects.AddCue(show.Cue{Duration: 10})
	require.NoError(t, err)

	var st show.PlayerState
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/player/load", map[string]int{"index": 0}, &st))
	assert.Equal(t, show.StatusReady, st.Status)
	assert.Equal(t, 10.0, st.Duration)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/player/play", nil, &st))
	assert.Equal(t, show.StatusPlaying, st.Status)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/player/seek", map[string]float64{"position": 3.5}, &st))
	assert.Equal(t, 3.5, st.CurrentTime)

	var e errorResponse
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/player/next", nil, &e))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/player/load", nil, &e))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/player/toggle", nil, &st))
	assert.Equal(t, show.StatusPaused, st.Status)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/player/stop", nil, &st))
	assert.Equal(t, show.StatusIdle, st.Status)
	assert.Equal(t, 0, st.CurrentCueIndex)
}

func TestPlayer_EngineFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(engine.CmdPlay, &engine.CommandError{Command: engine.CmdPlay, Message: "decoder crashed"})

	var e errorResponse
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodPost, "/api/player/play", nil, &e))
	assert.Equal(t, "decoder crashed", e.Error)

	var st show.PlayerState
	f.do(t, http.MethodGet, "/api/player/", nil, &st)
	assert.Equal(t, show.StatusError, st.Status)
	require.NotNil(t, st.Error)
	assert.Equal(t, "decoder crashed", *st.Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("cue x: %w", project.ErrCueNotFound), http.StatusNotFound},
		{project.ErrNoProject, http.StatusConflict},
		{brightness.ErrLinked, http.StatusConflict},
		{player.ErrEndOfCueList, http.StatusConflict},
		{project.ErrIndexOutOfRange, http.StatusUnprocessableEntity},
		{engine.ErrNotConnected, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&engine.CommandError{Message: "x"}, http.StatusBadGateway},
		{badRequest{errors.New("bad")}, http.StatusBadRequest},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWebSocket_SnapshotThenUpdates(t *testing.T) {
	f := newFixture(t)
	_, err := f.projects.AddCue(show.Cue{})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	read := func() map[string]json.RawMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame map[string]json.RawMessage
		require.NoError(t, conn.ReadJSON(&frame))
		return frame
	}

	var topics []string
	for range pubsub.AllTopics {
		var topic string
		require.NoError(t, json.Unmarshal(read()["topic"], &topic))
		topics = append(topics, topic)
	}
	assert.ElementsMatch(t, []string{
		string(pubsub.TopicProject),
		string(pubsub.TopicPlayerState),
		string(pubsub.TopicOutputs),
		string(pubsub.TopicBrightness),
	}, topics)

	// The subscription is registered before the snapshot is sent.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/player/load", map[string]int{"index": 0}, nil))

	var st show.PlayerState
	for st.Status != show.StatusReady {
		frame := read()
		var topic string
		require.NoError(t, json.Unmarshal(frame["topic"], &topic))
		if topic != string(pubsub.TopicPlayerState) {
			continue
		}
		require.NoError(t, json.Unmarshal(frame["data"], &st))
	}
	assert.Equal(t, 0, st.CurrentCueIndex)
}
