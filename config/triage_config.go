package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	MetricsPort string

	// Redis
	RedisURL  string
	ResultTTL time.Duration

	// Models
	OpenAIModel    string
	GeminiModel    string
	LLMTemperature float64

	// Pipeline
	ClassifyWorkers int
	FetchLimit      int
	RunTimeout      time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),

		// Redis
		RedisURL:  getEnv("REDIS_URL", ""),
		ResultTTL: time.Duration(getEnvInt("RESULT_TTL_HOUR", 24)) * time.Hour,

		// Models
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),

		// Pipeline
		ClassifyWorkers: getEnvInt("CLASSIFY_WORKERS", 4),
		FetchLimit:      getEnvInt("FETCH_LIMIT", 15),
		RunTimeout:      time.Duration(getEnvInt("RUN_TIMEOUT_SEC", 120)) * time.Second,

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
