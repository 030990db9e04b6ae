// Package config provides configuration management for the LacyPlayer server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration (preferences store)
	DatabaseURL string

	// Playback engine. An empty EngineURL runs the built-in simulator.
	EngineURL     string
	EngineTimeout time.Duration
	SimProjectDir string
	EngineSimPort string // cmd/enginesim listen port

	// Sync loop intervals
	SyncActiveInterval time.Duration // while playing
	SyncIdleInterval   time.Duration // otherwise

	// Advance to the next cue when a cue flagged autoAdvance ends
	AutoAdvanceEnabled bool

	// Name used when no previous project can be reopened
	ProjectName string

	// CORS configuration
	CORSOrigin string

	// MIDI remote
	MIDIEnabled   bool
	MIDIInputPort string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4100"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "file:./player.db"),

		// Engine
		EngineURL:     getEnv("ENGINE_URL", ""),
		EngineTimeout: getEnvDuration("ENGINE_TIMEOUT", 5*time.Second),
		SimProjectDir: getEnv("SIM_PROJECT_DIR", "./projects"),
		EngineSimPort: getEnv("ENGINE_SIM_PORT", "4101"),

		// Sync
		SyncActiveInterval: getEnvDuration("SYNC_ACTIVE_INTERVAL", 100*time.Millisecond),
		SyncIdleInterval:   getEnvDuration("SYNC_IDLE_INTERVAL", 500*time.Millisecond),

		AutoAdvanceEnabled: getEnvBool("AUTO_ADVANCE_ENABLED", true),
		ProjectName:        getEnv("PROJECT_NAME", "Untitled Project"),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		// MIDI
		MIDIEnabled:   getEnvBool("MIDI_ENABLED", false),
		MIDIInputPort: getEnv("MIDI_INPUT_PORT", ""),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SimulationMode reports whether the built-in engine simulator is used.
func (c *Config) SimulationMode() bool {
	return c.EngineURL == ""
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("250ms") or a bare number of
// milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		if ms := getEnvInt(key, -1); ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
