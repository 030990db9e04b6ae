// Package main runs the built-in engine simulator as a standalone process,
// speaking the engine WebSocket protocol. Point the server's ENGINE_URL at it
// to exercise the networked engine client without a media pipeline.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/bbernstein/lacyplayer-go/internal/config"
	"github.com/bbernstein/lacyplayer-go/internal/engine"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	httpServer := &http.Server{
		Addr:              ":" + cfg.EngineSimPort,
		Handler:           newRouter(engine.NewSimulator(engine.SimulatorConfig{ProjectDir: cfg.SimProjectDir})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🎭 Engine simulator listening on ws://localhost:%s/engine (projects in %s)", cfg.EngineSimPort, cfg.SimProjectDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Engine simulator stopped")
}

func newRouter(sim *engine.Simulator) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/engine", engine.NewServer(sim))
	return router
}
