package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	v1 "github.com/seriarr/seriarr/api/v1"
	"github.com/seriarr/seriarr/internal/clip"
	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/dl"
	"github.com/seriarr/seriarr/internal/export"
	"github.com/seriarr/seriarr/internal/extract"
	"github.com/seriarr/seriarr/internal/fetch"
	"github.com/seriarr/seriarr/internal/metrics"
	"github.com/seriarr/seriarr/internal/provider"
	"github.com/seriarr/seriarr/internal/router"
	"github.com/seriarr/seriarr/internal/service"
	"github.com/seriarr/seriarr/internal/store"
	"github.com/seriarr/seriarr/internal/swarm"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Local development convenience; absent .env files are fine.
	_ = godotenv.Load()

	cfgPath := flag.String("config", envOr("SERIARR_CONFIG", "config.yml"), "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*cfgPath)
	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	metrics.Register()

	st, err := newStore(cfg.Store)
	if err != nil {
		log.Error("store init", "err", err)
		os.Exit(1)
	}

	pipeline := swarm.NewPipeline(func() (*swarm.Client, error) {
		if cfg.Swarm.RPCURL != "" {
			return swarm.NewClient(cfg.Swarm.RPCURL, os.Getenv("SWARM_RPC_SECRET"), 0)
		}
		return swarm.NewClientFromEnv()
	}, cfg.Swarm.DownloadDir, time.Duration(cfg.Swarm.PollMS)*time.Millisecond, log)

	fetcher := fetch.NewHTTPFetcher(0)
	extractor := extract.JSONExtractor{}
	providers := provider.NewRegistry(
		provider.NewText(fetcher, extractor),
		provider.NewImage(fetcher, extractor),
		provider.NewSwarmIndex(fetcher, extractor),
	)

	registry := service.NewRegistry(256, log)
	registry.Run(context.Background())
	defer registry.Stop()

	runner := dl.NewRunner(st, registry.Reporter(), log)

	engine := service.New(service.Deps{
		Log:       log,
		Sources:   cfg.SourceList(),
		Providers: providers,
		Runner:    runner,
		Store:     st,
		Pipeline:  pipeline,
		Clipper:   clip.NewExtractor(log),
		Document:  export.NewPandocConverter(log),
		Archive:   export.NewArchiveBuilder(nil, log),
		Download:  cfg.Download,
		Swarm:     cfg.Swarm,
	})

	handler := v1.NewHandler(engine, registry, log)
	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router.New(handler, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("serve", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	engine.Shutdown(shutdownCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	var sink io.Writer = os.Stdout
	if cfg.Path != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level}))
}

func newStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Kind == "postgres" {
		return store.NewPostgresStoreFromEnv()
	}
	return store.NewFileStore(cfg.Dir), nil
}
