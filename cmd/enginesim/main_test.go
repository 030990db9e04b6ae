package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

func TestRouter_ServesEngineProtocol(t *testing.T) {
	sim := engine.NewSimulator(engine.SimulatorConfig{})
	srv := httptest.NewServer(newRouter(sim))
	defer srv.Close()

	ctx := context.Background()
	client, err := engine.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/engine", time.Second)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	p, err := client.NewProject(ctx, "Remote")
	require.NoError(t, err)
	assert.Equal(t, "Remote", p.Name)

	st, err := client.GetPlayerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, show.StatusIdle, st.Status)
	assert.Equal(t, "Remote", sim.Project().Name)
}
