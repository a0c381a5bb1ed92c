// Package main provides the decody service entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thebtf/decody/internal/advice"
	"github.com/thebtf/decody/internal/config"
	dbgorm "github.com/thebtf/decody/internal/db/gorm"
	"github.com/thebtf/decody/internal/engine"
	"github.com/thebtf/decody/internal/kv"
	"github.com/thebtf/decody/internal/session"
	"github.com/thebtf/decody/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "HTTP port (default: settings)")
	dbPath := flag.String("db", "", "Rule database path (default: settings)")
	redisAddr := flag.String("redis", "", "Redis address for session state (default: settings; empty = in-memory)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *redisAddr != "" {
		cfg.RedisAddr = *redisAddr
	}

	apiKey := config.APIKey()
	if apiKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	// Rule repository
	store, err := dbgorm.NewStore(dbgorm.Config{
		Path:     cfg.DBPath,
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open rule database")
	}
	defer store.Close()
	ruleStore := dbgorm.NewRuleStore(store)

	// Session state substrate
	var kvStore kv.Store
	if cfg.RedisAddr != "" {
		redisStore := kv.NewRedis(cfg.RedisAddr)
		if err := redisStore.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to reach redis")
		}
		defer redisStore.Close()
		kvStore = redisStore
		log.Info().Str("addr", cfg.RedisAddr).Msg("Session state in redis")
	} else {
		kvStore = kv.NewMemory()
		log.Warn().Msg("No redis configured, session state is in-memory and lost on restart")
	}
	sessions := session.NewStore(kvStore)

	// Advice backend
	gen, err := advice.NewGemini(ctx, apiKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create advice generator")
	}
	defer gen.Close()

	pipeline := engine.NewPipeline(sessions, ruleStore, engine.NewMatcher(cfg.MatchWorkers))
	coordinator := advice.NewCoordinator(sessions, gen, time.Duration(cfg.AdviceTimeoutSeconds)*time.Second)

	svc := worker.New(Version, cfg, pipeline, coordinator)
	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("HTTP server error")
	}
}
