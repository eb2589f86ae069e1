package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// LLM
	LLMProvider     string
	LLMModel        string
	LLMBaseURL      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// External collaborators
	SearchURL      string
	SearchAPIKey   string
	AmapAPIKey     string
	TrainAPIURL    string
	TrainAPIKey    string
	PosterURL      string

	// SurrealDB persistence (optional, disabled when URL is empty)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Pipeline
	SpecialistPoolSize int
	MaxToolIterations  int
	DataDir            string

	// Sessions
	SessionTTL time.Duration

	// Server
	Port string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		// LLM
		LLMProvider:     getEnv("TRIPFLOW_LLM_PROVIDER", ProviderOpenAI),
		LLMModel:        getEnv("TRIPFLOW_LLM_MODEL", "qwen-plus"),
		LLMBaseURL:      getEnv("TRIPFLOW_LLM_BASE_URL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		// Collaborators
		SearchURL:    getEnv("TRIPFLOW_SEARCH_URL", ""),
		SearchAPIKey: getEnv("TRIPFLOW_SEARCH_API_KEY", ""),
		AmapAPIKey:   getEnv("TRIPFLOW_AMAP_API_KEY", ""),
		TrainAPIURL:  getEnv("TRIPFLOW_TRAIN_API_URL", ""),
		TrainAPIKey:  getEnv("TRIPFLOW_TRAIN_API_KEY", ""),
		PosterURL:    getEnv("TRIPFLOW_POSTER_URL", ""),

		// SurrealDB
		SurrealDBURL:       getEnv("SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "tripflow"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "plans"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		// Pipeline
		SpecialistPoolSize: getEnvInt("TRIPFLOW_POOL_SIZE", 3),
		MaxToolIterations:  getEnvInt("TRIPFLOW_MAX_TOOL_ITERATIONS", 6),
		DataDir:            getEnv("TRIPFLOW_DATA_DIR", "."),

		// Sessions
		SessionTTL: getEnvDuration("TRIPFLOW_SESSION_TTL", 24*time.Hour),

		// Server
		Port: getEnv("TRIPFLOW_PORT", "5000"),

		// Logging
		LogFile:  getEnv("TRIPFLOW_LOG_FILE", "/tmp/tripflow.log"),
		LogLevel: parseLogLevel(getEnv("TRIPFLOW_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
