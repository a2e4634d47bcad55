// Package main wires together the optimizer service binary.
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

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/pagelift/optimizer/internal/api"
	"github.com/pagelift/optimizer/internal/clock/system"
	"github.com/pagelift/optimizer/internal/config"
	"github.com/pagelift/optimizer/internal/genai"
	"github.com/pagelift/optimizer/internal/hash/sha256"
	"github.com/pagelift/optimizer/internal/id/uuid"
	"github.com/pagelift/optimizer/internal/insight"
	"github.com/pagelift/optimizer/internal/logging"
	"github.com/pagelift/optimizer/internal/metrics"
	"github.com/pagelift/optimizer/internal/orchestrator"
	"github.com/pagelift/optimizer/internal/pipeline"
	memorypublisher "github.com/pagelift/optimizer/internal/publisher/memory"
	pubsubpublisher "github.com/pagelift/optimizer/internal/publisher/pubsub"
	"github.com/pagelift/optimizer/internal/sitemap"
	gcsstorage "github.com/pagelift/optimizer/internal/storage/gcs"
	localstorage "github.com/pagelift/optimizer/internal/storage/local"
	memorystorage "github.com/pagelift/optimizer/internal/storage/memory"
	"github.com/pagelift/optimizer/internal/storage/postgres"
	"github.com/pagelift/optimizer/internal/wphost"
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

	clock := system.New()
	hasher := sha256.New()
	idGen := uuid.NewUUIDGenerator()

	var (
		jobStore   pipeline.JobStore
		candidates pipeline.CandidateStore
	)
	switch cfg.DB.Provider {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("postgres connect failed", zap.Error(err))
		}
		defer pool.Close()
		jobStore = postgres.NewJobStore(pool)
		candidates = postgres.NewCandidateStore(pool)
	default:
		jobStore = memorystorage.NewJobStore(clock)
		candidates = memorystorage.NewCandidateStore()
	}

	var blobs pipeline.BlobStore
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("gcs client close failed", zap.Error(closeErr))
			}
		}()
		blobs, err = gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
	case "local":
		blobs, err = localstorage.New(localstorage.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			logger.Fatal("local blob store init failed", zap.Error(err))
		}
	case "memory":
		blobs = memorystorage.NewBlobStore()
	default:
		blobs = nil
	}

	var publisher pipeline.Publisher
	switch cfg.PubSub.Provider {
	case "gcp":
		client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("pubsub client close failed", zap.Error(closeErr))
			}
		}()
		publisher = pubsubpublisher.New(client)
	default:
		publisher = memorypublisher.New()
	}

	host := wphost.New(wphost.Config{
		BaseURL:     cfg.Host.BaseURL,
		Username:    cfg.Host.Username,
		AppPassword: cfg.Host.AppPassword,
		Timeout:     time.Duration(cfg.Host.TimeoutSeconds) * time.Second,
	}, logger.Named("wphost"))

	var insights pipeline.InsightSource
	if cfg.Insight.Enabled {
		insights = insight.New(insight.Config{
			BaseURL: cfg.Insight.BaseURL,
			APIKey:  cfg.Insight.APIKey,
		}, logger.Named("insight"))
	}

	generator := genai.NewRegistry(logger.Named("genai"), nil)
	resolver := sitemap.New(sitemap.Config{
		UserAgent: cfg.Sitemap.UserAgent,
		Timeout:   time.Duration(cfg.Sitemap.TimeoutSeconds) * time.Second,
	}, logger.Named("sitemap"))
	guard := orchestrator.NewSubmitGuard(
		cfg.Submit.RatePerSecond,
		cfg.Submit.Burst,
		time.Duration(cfg.Submit.DedupeTTLSec)*time.Second,
		clock,
	)

	orch := orchestrator.New(
		jobStore,
		candidates,
		host,
		host,
		insights,
		generator,
		publisher,
		blobs,
		hasher,
		clock,
		idGen,
		resolver,
		guard,
		orchestrator.Config{
			GenerationTimeout:   cfg.GenerationTimeout(),
			InsightPollAttempts: cfg.Insight.PollAttempts,
			InsightPollInterval: cfg.InsightPollInterval(),
			LinkLimit:           cfg.Host.LinkLimit,
			MinWordsDefault:     cfg.Generator.MinWordsDefault,
			MaxWordsDefault:     cfg.Generator.MaxWordsDefault,
			EventTopic:          cfg.PubSub.TopicName,
			BlobPrefix:          cfg.Storage.Prefix,
			ArchiveRawText:      cfg.Submit.ArchiveRawText,
		},
		logger.Named("orchestrator"),
	)

	apiServer := api.NewServer(orch, jobStore, candidates, host, cfg, logger.Named("api"))

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
