// Package main wires together the news crawler service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/riverdogs/newscrawler/internal/api"
	"github.com/riverdogs/newscrawler/internal/config"
	"github.com/riverdogs/newscrawler/internal/ingest"
	"github.com/riverdogs/newscrawler/internal/logging"
	"github.com/riverdogs/newscrawler/internal/metrics"
	"github.com/riverdogs/newscrawler/internal/queue"
	"github.com/riverdogs/newscrawler/internal/runner"
	"github.com/riverdogs/newscrawler/internal/scraper"
	"github.com/riverdogs/newscrawler/internal/storage/backup"
	"github.com/riverdogs/newscrawler/internal/storage/gcs"
	"github.com/riverdogs/newscrawler/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		logger.Fatal("article store init failed", zap.Error(err))
	}
	defer store.Close()

	backups, err := backup.New(cfg.Backup.Dir)
	if err != nil {
		logger.Fatal("backup store init failed", zap.Error(err))
	}

	var mirror ingest.BackupSink
	if cfg.Backup.GCSBucket != "" {
		gcsMirror, err := gcs.New(ctx, cfg.Backup.GCSBucket)
		if err != nil {
			logger.Warn("GCS mirror init failed", zap.Error(err))
		} else {
			defer func() {
				if closeErr := gcsMirror.Close(); closeErr != nil {
					logger.Warn("GCS mirror close failed", zap.Error(closeErr))
				}
			}()
			mirror = gcsMirror
		}
	}

	var publisher queue.Publisher = queue.NoOpPublisher{}
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		pub, err := queue.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			logger.Warn("pubsub publisher init failed", zap.Error(err))
		} else {
			publisher = pub
		}
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Warn("publisher close failed", zap.Error(closeErr))
		}
	}()

	fetcher := scraper.NewCollyFetcher(scraper.FetchConfig{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	progress := scraper.NewProgress(cfg.Scraper.HistorySize)
	scr := scraper.New(scraper.Config{
		BaseURL:     cfg.Scraper.BaseURL,
		SectionPath: cfg.Scraper.SectionPath,
		Delay:       cfg.FetchDelay(),
	}, fetcher, progress, logger.Named("scraper"))

	ingestor := ingest.New(store, backups, mirror, publisher, logger.Named("ingest"))
	manager := runner.New(ctx, scr, ingestor, store, backups, logger.Named("runner"))

	apiServer := api.NewServer(manager, store, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
