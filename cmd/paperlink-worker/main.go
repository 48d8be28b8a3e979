// Command paperlink-worker runs the job supervisor and its claim/dispatch
// children: a cobra root command spawns Workers OS processes, each
// re-exec'ing this same binary with worker.ChildEnvVar set, where it
// runs one Loop against the shared Postgres-backed JobStore.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sogos/paperlink/internal/config"
	"github.com/sogos/paperlink/internal/coordination"
	"github.com/sogos/paperlink/internal/domain/valueobject"
	"github.com/sogos/paperlink/internal/extract"
	"github.com/sogos/paperlink/internal/infrastructure/external/gemini"
	"github.com/sogos/paperlink/internal/infrastructure/logging"
	"github.com/sogos/paperlink/internal/infrastructure/persistence/postgres"
	"github.com/sogos/paperlink/internal/infrastructure/pubsub"
	"github.com/sogos/paperlink/internal/infrastructure/storage"
	"github.com/sogos/paperlink/internal/linking"
	"github.com/sogos/paperlink/internal/parse"
	"github.com/sogos/paperlink/internal/worker"
)

func main() {
	var workers int
	var pollIntervalSeconds int

	root := &cobra.Command{
		Use:   "paperlink-worker",
		Short: "Runs paperlink's background job supervisor and worker children",
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv(worker.ChildEnvVar) == "1" {
				return runChild(pollIntervalSeconds)
			}
			return runSupervisor(workers, pollIntervalSeconds)
		},
	}
	root.Flags().IntVar(&workers, "workers", 4, "number of worker child processes")
	root.Flags().IntVar(&pollIntervalSeconds, "poll-interval", 5, "seconds an idle worker waits between claim attempts")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSupervisor(workers, pollIntervalSeconds int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := worker.NewSupervisor(worker.SupervisorConfig{
		Workers:        workers,
		RestartBackoff: cfg.PollInterval,
		Args:           childArgs(pollIntervalSeconds),
	}, logger)

	logger.Info("starting paperlink-worker supervisor", "workers", workers)
	return sup.Run(ctx)
}

func childArgs(pollIntervalSeconds int) []string {
	return []string{"--poll-interval", fmt.Sprintf("%d", pollIntervalSeconds)}
}

// runChild builds one worker process's full dependency graph and runs
// its claim/dispatch Loop until signaled to stop.
func runChild(pollIntervalSeconds int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDBWithContext(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	storageAdapter, err := newStorageAdapter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	llm, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:            cfg.GeminiAPIKey,
		RequestsPerSecond: cfg.GeminiRequestsPerSecond,
	}, logger)
	if err != nil {
		return fmt.Errorf("init gemini client: %w", err)
	}

	jobs := postgres.NewJobStore(db.DB)
	papers := postgres.NewPaperRepository(db.DB)
	libraries := postgres.NewLibraryRepository(db.DB)
	extracts := postgres.NewExtractRepository(db.DB)
	vectors := postgres.NewExtractVectorRepository(db.DB)
	links := postgres.NewExtractLinkRepository(db.DB)

	statusPublisher, err := newStatusPublisher(cfg, logger)
	if err != nil {
		return fmt.Errorf("init status publisher: %w", err)
	}

	coordinator := &coordination.Coordinator{
		Jobs:      jobs,
		Extracts:  extracts,
		Libraries: libraries,
		Logger:    logger,
		Publisher: statusPublisher,
	}

	parseHandler := &parse.Handler{
		Papers:  papers,
		Jobs:    jobs,
		Storage: storageAdapter,
		Parser:  parse.PDFProbeParser{},
		Logger:  logger,
	}
	extractHandler := &extract.Handler{
		Papers:       papers,
		Libraries:    libraries,
		Extracts:     extracts,
		Vectors:      vectors,
		Storage:      storageAdapter,
		Claims:       extract.NewClaimExtractor(llm),
		Methods:      extract.NewMethodExtractor(llm),
		Observations: extract.NewObservationExtractor(llm),
		Embedder:     llm,
		Coordinator:  coordinator,
		Logger:       logger,
	}
	linkHandler := &linking.Handler{
		Jobs:      jobs,
		Libraries: libraries,
		Extracts:  extracts,
		Vectors:   vectors,
		Links:     links,
		LLM:       llm,
		Logger:    logger,
	}

	registry := worker.NewRegistry()
	registry.Register(valueobject.JobKindParsePaper, parseHandler.Handle)
	registry.Register(valueobject.JobKindExtractElements, extractHandler.Handle)
	registry.Register(valueobject.JobKindLinkLibrary, linkHandler.Handle)

	workerID := os.Getenv("PAPERLINK_WORKER_ID")
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()
	}

	loop := &worker.Loop{
		Store:        jobs,
		Registry:     registry,
		Logger:       logger,
		WorkerID:     workerID,
		PollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		StaleAfter:   cfg.StaleJobTimeout,
	}

	logger.Info("worker child ready", "worker_id", workerID)
	return loop.Run(ctx)
}

// newStatusPublisher connects to Redis for status publication. A
// connection failure degrades to NoOpPublisher rather than failing
// worker startup: publication is a UI convenience, not load-bearing.
func newStatusPublisher(cfg *config.Config, logger *logging.Logger) (coordination.StatusPublisher, error) {
	if cfg.RedisURL == "" {
		return pubsub.NoOpPublisher{}, nil
	}
	client, err := pubsub.New(pubsub.Config{URL: cfg.RedisURL}, logger)
	if err != nil {
		logger.Warn("redis pubsub unavailable, disabling status publication", "error", err)
		return pubsub.NoOpPublisher{}, nil
	}
	return client, nil
}

func newStorageAdapter(ctx context.Context, cfg *config.Config) (storage.StorageAdapter, error) {
	switch cfg.StorageBackend {
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        cfg.StorageEndpoint,
			Region:          cfg.StorageRegion,
			Bucket:          cfg.StorageBucket,
			BasePath:        "",
			AccessKeyID:     cfg.StorageAccessKeyID,
			SecretAccessKey: cfg.StorageSecretAccessKey,
		})
	case "local", "":
		return storage.NewLocalStorage(cfg.StorageBasePath), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
