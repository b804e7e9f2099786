package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"connect4duel/internal/analytics"
	"connect4duel/internal/config"
	"connect4duel/internal/logging"
	"connect4duel/internal/server"
	"connect4duel/internal/storage"
)

const (
	GracefulShutdownTimeout = 20 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := openCache(ctx, cfg)
	if cache != nil {
		defer cache.Close()
	}

	producer := analytics.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	srv := server.New(server.Config{
		APIDepth:         cfg.APIDepth,
		InteractiveDepth: cfg.InteractiveDepth,
		AvADepth:         cfg.AvADepth,
		BotDelay:         cfg.BotDelay,
		ReconnectWindow:  cfg.ReconnectWindow,
		CORSOrigins:      cfg.CORSOrigins,
		Cache:            cache,
		Analytics:        producer,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Sweep(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("server gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

// openCache builds the Hard decision cache: an in-memory LRU, backed by
// Postgres or SQLite when configured. A backend that cannot be reached is
// logged and skipped.
func openCache(ctx context.Context, cfg config.Config) storage.Store {
	var fast storage.Store
	if cfg.CacheSize > 0 {
		fast = storage.NewMemoryStore(cfg.CacheSize)
	}

	var slow storage.Store
	switch {
	case cfg.PostgresURL != "":
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			log.Warn().Err(err).Msg("postgres disabled")
			break
		}
		if err := pg.EnsureTables(ctx); err != nil {
			log.Warn().Err(err).Msg("postgres ensure tables failed")
			pg.Close()
			break
		}
		slow = pg
	case cfg.SQLitePath != "":
		lite, err := storage.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite disabled")
			break
		}
		slow = lite
	}

	switch {
	case fast != nil && slow != nil:
		return &storage.Tiered{Fast: fast, Slow: slow}
	case slow != nil:
		return slow
	case fast != nil:
		return fast
	}
	return nil
}
