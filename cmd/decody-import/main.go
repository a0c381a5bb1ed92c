// Package main provides the offline rule importer. It loads yaml rule
// files from a directory into the rule database the decody service
// reads from, and can keep watching the directory for changes.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thebtf/decody/internal/config"
	dbgorm "github.com/thebtf/decody/internal/db/gorm"
	"github.com/thebtf/decody/internal/importer"
	"github.com/thebtf/decody/internal/watcher"
)

func main() {
	dbPath := flag.String("db", "", "Rule database path (default: settings)")
	watch := flag.Bool("watch", false, "Keep watching the directory and re-import on changes")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	rulesDir := flag.Arg(0)
	if rulesDir == "" {
		log.Fatal().Msg("Usage: decody-import [flags] <rules-dir>")
	}
	if info, err := os.Stat(rulesDir); err != nil || !info.IsDir() {
		log.Fatal().Str("dir", rulesDir).Msg("Rules directory does not exist")
	}

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	store, err := dbgorm.NewStore(dbgorm.Config{
		Path:     cfg.DBPath,
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open rule database")
	}
	defer store.Close()
	ruleStore := dbgorm.NewRuleStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runImport := func() {
		total, err := importer.ImportDir(ctx, rulesDir, ruleStore)
		if err != nil {
			log.Error().Err(err).Msg("Import failed")
			return
		}
		log.Info().Int("newRules", total).Str("dir", rulesDir).Msg("Import finished")
	}

	runImport()

	if !*watch {
		return
	}

	w, err := watcher.New(rulesDir, runImport)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create watcher")
	}
	if err := w.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start watcher")
	}
	defer w.Stop()
	log.Info().Str("dir", rulesDir).Msg("Watching for rule file changes")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
