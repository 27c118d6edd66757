package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string
	FrontendURL string

	// Database
	DatabaseURI    string
	MigrateOnStart bool

	// Redis (optional; event publishing is skipped when empty)
	RedisURL string

	// Service addresses
	DispatcherPort string
	SchedulerPort  string
	RunnerPort     string
	DispatcherURL  string
	SchedulerURL   string
	RunnerURL      string

	// Sandbox
	BotRuntimeCmd string
	InitTimeoutMS int
	MoveTimeoutMS int

	// Matchmaking
	MinGamesPerVersion int
	MaxBotsToSchedule  int
	MaxGamesToSchedule int
	BucketSize         int
	RequestsPerMinute  int

	// Security
	JWTSecret string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		// Database
		DatabaseURI:    getEnv("DATABASE_URI", "postgres://localhost:5432/botbattle?sslmode=disable"),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "true") == "true",

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Services
		DispatcherPort: getEnv("DISPATCHER_PORT", "8200"),
		SchedulerPort:  getEnv("SCHEDULER_PORT", "8202"),
		RunnerPort:     getEnv("RUNNER_PORT", "8201"),
		DispatcherURL:  getEnv("DISPATCHER_URL", "http://localhost:8200"),
		SchedulerURL:   getEnv("SCHEDULER_URL", "http://localhost:8202"),
		RunnerURL:      getEnv("RUNNER_URL", "http://localhost:8201"),

		// Sandbox
		BotRuntimeCmd: getEnv("BOT_RUNTIME_CMD", ""),
		InitTimeoutMS: getEnvInt("INIT_TIMEOUT_MS", 200),
		MoveTimeoutMS: getEnvInt("MOVE_TIMEOUT_MS", 100),

		// Matchmaking
		MinGamesPerVersion: getEnvInt("MIN_GAMES_PER_VERSION", 10),
		MaxBotsToSchedule:  getEnvInt("MAX_BOTS_TO_SCHEDULE", 100),
		MaxGamesToSchedule: getEnvInt("MAX_GAMES_TO_SCHEDULE", 100),
		BucketSize:         getEnvInt("BUCKET_SIZE", 10),
		RequestsPerMinute:  getEnvInt("REQUESTS_PER_MINUTE", 60),

		// Security
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
	}
}

// Callback is the URL runners post game logs back to.
func (c *Config) Callback() string {
	return strings.TrimRight(c.DispatcherURL, "/") + "/game_result"
}

func (c *Config) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutMS) * time.Millisecond
}

func (c *Config) MoveTimeout() time.Duration {
	return time.Duration(c.MoveTimeoutMS) * time.Millisecond
}

// RuntimeCmd splits BOT_RUNTIME_CMD into argv form.
func (c *Config) RuntimeCmd() []string {
	return strings.Fields(c.BotRuntimeCmd)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
