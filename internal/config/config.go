package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/mediaops"
)

// Config holds all configuration values (spec.md §6.4).
type Config struct {
	// Server configuration
	Port string
	Host string

	// Database configuration (auth side-store only; job/queue state lives
	// under RootDir per spec.md §4.A)
	DatabasePath string

	// JWT configuration
	JWTSecret string

	// File storage
	UploadDir string

	// RootDir is the configurable root spec.md §4.A lays `input/`,
	// `jobs/`, `profiles.json`, and the job index under.
	RootDir string

	// AutoResumeOnStartup controls whether interrupted jobs are
	// re-enqueued at startup (spec.md §4.E crash recovery).
	AutoResumeOnStartup bool

	// SSESubscriberBuffer sizes the Event Fan-out Hub's per-subscriber
	// buffer (spec.md §4.C). SSEHeartbeatSeconds is loaded but not passed
	// to the Hub, whose ping interval is a fixed 15 seconds.
	SSEHeartbeatSeconds int
	SSESubscriberBuffer int

	// PhaseWeights overrides jobmodel.PhaseWeights when non-nil
	// (spec.md §6.4 phase_weights).
	PhaseWeights map[jobmodel.Phase]int

	// Tools configures the external binaries the Phase Executor shells
	// out to (spec.md §6.4 "model paths / cache dirs").
	Tools mediaops.ToolBinaries
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Host:         getEnv("HOST", "localhost"),
		DatabasePath: getEnv("DATABASE_PATH", "data/orchestrator.db"),
		JWTSecret:    getJWTSecret(),
		UploadDir:    getEnv("UPLOAD_DIR", "data/uploads"),

		RootDir:             getEnv("ROOT_DIR", "./"),
		AutoResumeOnStartup: getEnvAsBool("AUTO_RESUME_ON_STARTUP", true),
		SSEHeartbeatSeconds: getEnvAsInt("SSE_HEARTBEAT_SECONDS", 15),
		SSESubscriberBuffer: getEnvAsInt("SSE_SUBSCRIBER_BUFFER", 256),
		PhaseWeights:        parsePhaseWeights(getEnv("PHASE_WEIGHTS", "")),

		Tools: mediaops.ToolBinaries{
			VADBin:     getEnv("VAD_BIN", ""),
			DemucsBin:  getEnv("DEMUCS_BIN", ""),
			WhisperBin: getEnv("WHISPER_BIN", ""),
			AlignBin:   getEnv("ALIGN_BIN", ""),
		},
	}
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as bool with a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// parsePhaseWeights parses a "phase=weight,phase=weight,..." override
// string (spec.md §6.4 phase_weights) into the jobmodel.PhaseWeights
// shape. An empty or malformed entry leaves the default table in place
// for that phase; parsing never fails the whole config, matching the
// teacher's tolerant getEnv* helpers.
func parsePhaseWeights(raw string) map[jobmodel.Phase]int {
	if raw == "" {
		return nil
	}
	out := make(map[jobmodel.Phase]int)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		weight, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			continue
		}
		out[jobmodel.Phase(strings.TrimSpace(kv[0]))] = weight
	}
	if len(out) == 0 {
		return nil
	}
	// Fill in any phase the override string omitted from the default
	// table, so a partial override doesn't zero out untouched phases.
	for phase, weight := range jobmodel.PhaseWeights {
		if _, ok := out[phase]; !ok {
			out[phase] = weight
		}
	}
	return out
}

// getJWTSecret gets JWT secret from env or generates a secure random one.
func getJWTSecret() string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}
	// Persist a dev secret across restarts to avoid invalidating tokens.
	secretFile := getEnv("JWT_SECRET_FILE", "data/jwt_secret")
	if data, err := os.ReadFile(secretFile); err == nil && len(data) > 0 {
		return strings.TrimSpace(string(data))
	}
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Warning: Could not generate secure JWT secret, using fallback: %v", err)
		return "fallback-jwt-secret-please-set-JWT_SECRET-env-var"
	}
	secret := hex.EncodeToString(bytes)
	_ = os.MkdirAll(filepath.Dir(secretFile), 0755)
	_ = os.WriteFile(secretFile, []byte(secret), 0600)
	log.Println("Generated persistent JWT secret at", secretFile)
	return secret
}
