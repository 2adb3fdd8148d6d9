package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/domaintobiz/siteworker/internal/api"
	"github.com/domaintobiz/siteworker/internal/api/handler"
	"github.com/domaintobiz/siteworker/internal/archive"
	"github.com/domaintobiz/siteworker/internal/config"
	"github.com/domaintobiz/siteworker/internal/journal"
	"github.com/domaintobiz/siteworker/internal/logger"
	"github.com/domaintobiz/siteworker/internal/metrics"
	"github.com/domaintobiz/siteworker/internal/pipeline"
	"github.com/domaintobiz/siteworker/internal/store"
	"github.com/domaintobiz/siteworker/internal/worker"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "siteworker",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Register Prometheus collectors
	metrics.MustRegister()

	// Initialize store client
	storeClient, err := store.NewClient(&store.Config{
		URL:                cfg.Store.URL,
		ServiceKey:         cfg.Store.ServiceKey,
		RequestTimeout:     cfg.Store.RequestTimeout,
		ResolveTimeout:     cfg.Transport.ResolveTimeout,
		InsecureIPFallback: cfg.Transport.InsecureIPFallback,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize store client")
	}
	jobStore := store.NewJobStore(storeClient, cfg.Store.QueueName)

	// Initialize pipeline stage client
	stageClient := pipeline.NewStageClient(&pipeline.StageConfig{
		DefaultOrigin: cfg.Pipeline.DefaultOrigin,
		StageTimeout:  cfg.Pipeline.StageTimeout,
		BuildTimeout:  cfg.Pipeline.BuildTimeout,
	})

	// Initialize local journal (optional)
	var jobJournal *journal.Journal
	if cfg.Journal.Enabled {
		db, err := journal.OpenDB(&cfg.Journal)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize journal database")
		}
		jobJournal = journal.New(db)
	} else {
		appLogger.Info("Journal disabled")
	}

	// Initialize result archiver (optional)
	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		objectStorage, err := archive.NewStorage(&archive.S3Config{
			Type:      archive.StorageType(cfg.Archive.Type),
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			PublicURL: cfg.Archive.PublicURL,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize archive storage")
		}
		bucketCtx, bucketCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := objectStorage.EnsureBucket(bucketCtx); err != nil {
			bucketCancel()
			appLogger.WithError(err).Fatal("Archive bucket unavailable")
		}
		bucketCancel()
		archiver = archive.NewArchiver(objectStorage)
	}

	// Wire the orchestrator; interface values stay nil when a collaborator
	// is disabled so the orchestrator can skip them.
	var recorder pipeline.ProgressRecorder
	var resultArchiver pipeline.ResultArchiver
	var claimRecorder worker.ClaimRecorder
	if jobJournal != nil {
		recorder = jobJournal
		claimRecorder = jobJournal
	}
	if archiver != nil {
		resultArchiver = archiver
	}
	orchestrator := pipeline.NewOrchestrator(jobStore, stageClient, recorder, resultArchiver)

	w := worker.New(jobStore, orchestrator, claimRecorder, &worker.Config{
		IdleInterval:    cfg.Worker.IdleInterval,
		ErrorInterval:   cfg.Worker.ErrorInterval,
		RestartCooldown: cfg.Worker.RestartCooldown,
	})

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Start the admin API (optional)
	var adminServer *http.Server
	if cfg.Admin.Enabled {
		var jobLog handler.JobLog
		if jobJournal != nil {
			jobLog = jobJournal
		}
		router := api.SetupRouter(w, jobStore, jobLog, cfg.Admin.Mode)
		adminServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
			Handler: router,
		}
		go func() {
			appLogger.WithField("port", cfg.Admin.Port).Info("Starting admin server")
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLogger.WithError(err).Error("Admin server stopped")
			}
		}()
	}

	// Run the worker until shutdown
	w.Run(ctx)

	if adminServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			appLogger.WithError(err).Error("Failed to shut down admin server")
		}
	}

	appLogger.Info("Shutdown complete")
}
