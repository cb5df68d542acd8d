// Package bootstrap wires configuration, adapters and the HTTP surface.
package bootstrap

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	inhttp "triage_server/adapter/in/http"
	"triage_server/adapter/out/llm"
	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/provider"
	"triage_server/config"
	"triage_server/core/port/out"
	"triage_server/core/service/classify"
	"triage_server/core/service/pipeline"
	"triage_server/infra/middleware"
)

// NewLogger builds the service logger. Development gets console output,
// everything else structured JSON on stdout.
func NewLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.IsDevelopment() {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().
		Timestamp().
		Str("service", "triage").
		Logger()
}

// NewAPI assembles the full application. The returned cleanup closes
// shared resources and must run on shutdown.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	log := NewLogger(cfg)

	// Redis is optional: without it the pipeline still runs, results are
	// just not persisted between calls.
	var redisClient *redis.Client
	var store out.ResultStorePort
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("invalid REDIS_URL, result persistence disabled")
		} else {
			redisClient = redis.NewClient(opts)
			store = persistence.NewRedisResultStore(redisClient, cfg.ResultTTL)
		}
	} else {
		log.Info().Msg("REDIS_URL not set, result persistence disabled")
	}

	mailProvider := provider.NewGmailAdapter(log)
	modelFactory := llm.NewModelFactory(cfg.OpenAIModel, cfg.GeminiModel, float32(cfg.LLMTemperature))
	classifier := classify.NewBatchClassifier(modelFactory, cfg.ClassifyWorkers, log)
	service := pipeline.NewOrchestrator(mailProvider, classifier, store, cfg.FetchLimit, cfg.RunTimeout, log)

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(log),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             10 * 1024 * 1024,
		ServerHeader:          "",
		DisableDefaultDate:    true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover(log))
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(log))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        86400,
	}))

	// Health probes (no auth)
	inhttp.NewHealthHandler(redisClient).Register(app)

	// API routes
	api := app.Group("/api")
	inhttp.NewEmailHandler(service).RegisterRoutes(api)

	// Prometheus metrics on a separate listener, kept off the public API
	// surface.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.MetricsPort).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	cleanup := func() {
		_ = metricsServer.Close()
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close redis client")
			}
		}
	}
	return app, cleanup, nil
}
