// Package main provides the HTTP server entry point for the bandhanheal
// backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bandhanheal/backend/internal/config"
	"github.com/bandhanheal/backend/internal/kv"
	"github.com/bandhanheal/backend/internal/kv/rediskv"
	"github.com/bandhanheal/backend/internal/kv/sqlitekv"
	"github.com/bandhanheal/backend/internal/server"
	"github.com/bandhanheal/backend/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to settings.yaml (default: ~/.bandhanheal/settings.yaml)")
	listenAddr := flag.String("listen", "", "Listen address override")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
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

	store, sqliteStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("engine", cfg.Store.Engine).Msg("Failed to open store")
	}
	defer store.Close()

	svc := server.New(Version, cfg, store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})

	// The SQLite file can be wiped externally; heal by reopening.
	if sqliteStore != nil {
		w, err := watcher.New(sqliteStore.Path(), func() {
			if err := sqliteStore.Reopen(); err != nil {
				log.Error().Err(err).Msg("Failed to reopen store")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("Database watcher unavailable")
		} else {
			g.Go(func() error {
				return w.Run(gctx)
			})
		}
	}

	log.Info().
		Str("version", Version).
		Str("engine", cfg.Store.Engine).
		Msg("bandhanheal backend started")

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

// openStore builds the configured kv engine. The second return value is
// non-nil only for the sqlite engine, which supports reopening.
func openStore(cfg *config.Config) (kv.Store, *sqlitekv.Store, error) {
	switch cfg.Store.Engine {
	case config.EngineMemory:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return kv.NewMemory(), nil, nil

	case config.EngineSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure data dir: %w", err)
		}
		store, err := sqlitekv.NewStore(sqlitekv.Config{
			Path:     cfg.Store.SQLitePath,
			MaxConns: cfg.Store.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case config.EngineRedis:
		store, err := rediskv.NewStore(rediskv.Config{Addr: cfg.Store.RedisAddr})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store engine %q", cfg.Store.Engine)
	}
}
