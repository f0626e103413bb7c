package main

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pollpass/vigil/adapters/directory"
	"github.com/pollpass/vigil/adapters/events"
	"github.com/pollpass/vigil/adapters/tokenizer"
	"github.com/pollpass/vigil/adapters/verifier"
	"github.com/pollpass/vigil/internal/config"
	"github.com/pollpass/vigil/service"
	"github.com/pollpass/vigil/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	// Parse Redis URL and create client
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}

	redisClient := redis.NewClient(opts)

	// Initialize Watermill Redis publisher
	wmLogger := watermill.NewSlogLogger(logger)
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		log.Fatalf("Failed to create Redis publisher: %v", err)
	}

	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer([]byte(cfg.SessionSecret)),
		verifier.NewEIP191Verifier(),
		verifier.NewProofClient(cfg.ProofVerifierURL, cfg.ProofAppID),
		directory.NewRedisDirectory(redisClient),
		events.NewWatermillPublisher(publisher),
		logger,
		service.WithSessionTTL(cfg.SessionTTL),
	)

	// Setup Gin router
	router := http.SetupRouter(authService, logger,
		http.WithSessionTTL(cfg.SessionTTL),
		http.WithNonceTTL(cfg.NonceTTL),
		http.WithProofAction(cfg.ProofAction),
	)

	// Start server
	logger.Info("starting server", "addr", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", "vigil")
	slog.SetDefault(logger)
	return logger
}
