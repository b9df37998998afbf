// Command worker consumes statement processing jobs from the queue and runs
// the full pipeline for each one.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/docparse"
	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/gemini"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/progress"
	"github.com/dvloznov/statement-extractor/internal/service"
	"github.com/dvloznov/statement-extractor/internal/storage"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:          "worker",
		Short:        "Run the statement processing worker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging.Level)

	proc, cleanup, err := buildProcessor(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.QueueConfig{
		BufferSize:   cfg.Jobs.BufferSize,
		Workers:      cfg.Jobs.Workers,
		RetryBackoff: cfg.Jobs.RetryBackoff,
	}, jobStore, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := func(ctx context.Context, job *jobs.ProcessDocumentJob) error {
		log.Info().
			Str("job", job.ID).
			Str("folder", job.FolderID).
			Str("file", job.Filename).
			Msg("Processing statement job")

		if _, err := proc.ProcessFile(ctx, job.FolderID, job.Filename, job.ForceReparse); err != nil {
			log.Error().Err(err).Str("job", job.ID).Msg("Statement job failed")
			return err
		}
		return nil
	}

	if err := queue.Start(ctx, handler); err != nil {
		return err
	}
	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Worker started, waiting for jobs")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Worker exited")
	return nil
}

func buildProcessor(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*service.Processor, func(), error) {
	var cleanups []func() error
	cleanup := func() {
		for _, fn := range cleanups {
			if err := fn(); err != nil {
				log.Error().Err(err).Msg("Cleanup failed")
			}
		}
	}

	var store storage.Backend
	switch cfg.Storage.Backend {
	case "gcs":
		gcsStore, err := storage.NewGCS(ctx, cfg.Storage.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		store = gcsStore
		cleanups = append(cleanups, gcsStore.Close)
	default:
		local, err := storage.NewLocal(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		store = local
	}

	vendor, err := docparse.NewClient(docparse.Config{
		BaseURL:        cfg.Vendor.BaseURL,
		APIKey:         cfg.Vendor.APIKey,
		Model:          cfg.Vendor.Model,
		PollInterval:   cfg.Vendor.PollInterval,
		PollTimeout:    cfg.Vendor.PollTimeout,
		RequestTimeout: cfg.Vendor.RequestTimeout,
		MaxRetries:     cfg.Vendor.MaxRetries,
	}, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var extractor extract.Extractor = vendor
	if cfg.Extract.Backend == "gemini" {
		extractor, err = gemini.New(ctx, cfg.Extract.GeminiModel, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	engine := extract.NewEngine(extractor, cfg.Extract.Workers, log)

	var exporter service.Exporter
	if cfg.Export.Enabled {
		sink, err := export.NewBigQuerySink(ctx, cfg.Export.ProjectID, cfg.Export.Dataset, cfg.Export.Table, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		exporter = sink
		cleanups = append(cleanups, sink.Close)
	}

	return service.NewProcessor(store, vendor, engine, progress.NewTracker(), exporter, log), cleanup, nil
}
