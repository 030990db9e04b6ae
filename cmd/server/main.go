// Package main is the entry point for the LacyPlayer server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"gorm.io/gorm"

	"github.com/bbernstein/lacyplayer-go/internal/api"
	"github.com/bbernstein/lacyplayer-go/internal/config"
	"github.com/bbernstein/lacyplayer-go/internal/database"
	"github.com/bbernstein/lacyplayer-go/internal/database/repositories"
	"github.com/bbernstein/lacyplayer-go/internal/engine"
	"github.com/bbernstein/lacyplayer-go/internal/services/brightness"
	"github.com/bbernstein/lacyplayer-go/internal/services/fade"
	"github.com/bbernstein/lacyplayer-go/internal/services/network"
	"github.com/bbernstein/lacyplayer-go/internal/services/output"
	"github.com/bbernstein/lacyplayer-go/internal/services/player"
	"github.com/bbernstein/lacyplayer-go/internal/services/playersync"
	"github.com/bbernstein/lacyplayer-go/internal/services/preferences"
	"github.com/bbernstein/lacyplayer-go/internal/services/project"
	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
	"github.com/bbernstein/lacyplayer-go/internal/services/remote"
	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// fadeStepRate is the update rate of master brightness fades.
const fadeStepRate = 25 * time.Millisecond

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Print startup banner
	printBanner(cfg)

	// Connect to preferences database
	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 2,
		MaxOpenConn: 4,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	// Connect to the playback engine
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	eng, closeEngine, err := connectEngine(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to playback engine: %v", err)
	}
	defer closeEngine()

	// Wire services and open the last project
	a := newApp(cfg, eng, newPreferences(db))
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	a.start(ctx)
	cancel()

	if cfg.MIDIEnabled {
		defer midi.CloseDriver()
		if err := a.remote.Listen(cfg.MIDIInputPort); err != nil {
			log.Printf("Warning: MIDI remote unavailable: %v", err)
			for _, p := range midi.GetInPorts() {
				log.Printf("  MIDI input port: %s", p)
			}
		}
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     newRouter(cfg, a),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("Control surface: http://localhost:%s/api, push: ws://localhost:%s/ws\n", cfg.Port, cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Cleanup services in reverse order
	a.stop(ctx)

	log.Println("Server stopped")
}

// app holds the wired services.
type app struct {
	cfg *config.Config

	events     *pubsub.PubSub
	prefs      *preferences.Service
	projects   *project.Service
	outputs    *output.Manager
	fader      *fade.Engine
	brightness *brightness.Controller
	player     *player.Service
	sync       *playersync.Loop
	remote     *remote.Remote
}

// newApp wires the services to eng. Nothing runs until start.
func newApp(cfg *config.Config, eng engine.Engine, prefs *preferences.Service) *app {
	events := pubsub.New()

	projects := project.NewService(eng, prefs, events)
	outputs := output.NewManager(eng, events)
	projects.SetOutputCloser(outputs)

	fader := fade.NewEngine(fadeStepRate)
	levels := brightness.NewController(eng, projects, fader, events)

	players := player.NewService(eng, projects, events)
	projects.SetCueRemovedCallback(players.ForgetCue)
	projects.SetSwitchedCallback(func(*show.Project) { players.Reset() })

	loop := playersync.NewLoop(eng, players, playersync.Config{
		ActiveInterval: cfg.SyncActiveInterval,
		IdleInterval:   cfg.SyncIdleInterval,
		PollTimeout:    cfg.EngineTimeout,
		AutoAdvance:    cfg.AutoAdvanceEnabled,
	})
	loop.SetFlusher(projects)
	players.SetStatusCallback(loop.StatusChanged)

	return &app{
		cfg:        cfg,
		events:     events,
		prefs:      prefs,
		projects:   projects,
		outputs:    outputs,
		fader:      fader,
		brightness: levels,
		player:     players,
		sync:       loop,
		remote:     remote.New(players, levels, remote.DefaultMapping()),
	}
}

// start reopens the last project and starts the background tasks.
func (a *app) start(ctx context.Context) {
	a.fader.Start()

	if _, err := a.projects.Restore(ctx, a.cfg.ProjectName); err != nil {
		log.Printf("Warning: no project is active: %v", err)
	}
	if _, err := a.outputs.FetchMonitors(ctx); err != nil {
		log.Printf("Warning: could not list monitors: %v", err)
	}

	a.sync.Start()
}

// stop halts the background tasks and closes every output.
func (a *app) stop(ctx context.Context) {
	a.remote.Close()
	a.sync.Stop()
	a.fader.Stop()
	if err := a.outputs.CloseAll(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	if err := a.projects.Flush(ctx); err != nil {
		log.Printf("Warning: unsent project changes: %v", err)
	}
}

// newRouter builds the HTTP handler: middleware, CORS, health and the
// control surface.
func newRouter(cfg *config.Config, a *app) http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	server := api.NewServer(api.Services{
		Projects:   a.projects,
		Player:     a.player,
		Outputs:    a.outputs,
		Brightness: a.brightness,
		Recent:     a.prefs,
		Events:     a.events,
	})

	router.Get("/health", healthCheckHandler)
	router.Mount("/", server.Routes())
	return router
}

// connectEngine dials the engine at cfg.EngineURL, or starts the built-in
// simulator when no URL is set. The returned func releases the connection.
func connectEngine(ctx context.Context, cfg *config.Config) (engine.Engine, func(), error) {
	if cfg.SimulationMode() {
		log.Printf("🎭 No ENGINE_URL set, using the built-in simulator (projects in %s)", cfg.SimProjectDir)
		sim := engine.NewSimulator(engine.SimulatorConfig{ProjectDir: cfg.SimProjectDir})
		return sim, func() {}, nil
	}

	client, err := engine.Dial(ctx, cfg.EngineURL, cfg.EngineTimeout)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("🔌 Connected to playback engine at %s", cfg.EngineURL)
	go func() {
		<-client.Done()
		log.Printf("Warning: playback engine connection closed")
	}()
	return client, func() { _ = client.Close() }, nil
}

// newPreferences builds the preferences service over a migrated database.
func newPreferences(db *gorm.DB) *preferences.Service {
	return preferences.NewService(
		repositories.NewSettingRepository(db),
		repositories.NewRecentProjectRepository(db),
	)
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s",
  "uptime": "N/A"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	engineDesc := cfg.EngineURL
	if cfg.SimulationMode() {
		engineDesc = "simulator"
	}
	fmt.Println("============================================")
	fmt.Println("  LacyPlayer Go Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  Engine:      %s\n", engineDesc)
	fmt.Printf("  MIDI:        %v\n", cfg.MIDIEnabled)
	if addrs, err := network.LANAddresses(); err == nil {
		for _, a := range addrs {
			fmt.Printf("  LAN:         %s\n", a.Describe(cfg.Port))
		}
	}
	fmt.Println("============================================")
}
