package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"copilot-orchestrator/internal/di"
	"copilot-orchestrator/internal/infra"
	"copilot-orchestrator/internal/infra/config"
	"copilot-orchestrator/internal/usecase"
)

var (
	version = "dev"

	// Global flags
	verbose bool

	// Command flags
	limit     int
	batchSize int
	dryRun    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "enrich",
	Short:   "Repair chunk enrichment offline",
	Version: version,
}

var requeueCmd = &cobra.Command{
	Use:   "requeue-failed",
	Short: "Move parked ingest jobs back to pending",
	Long: `Move jobs that exhausted their attempts back to pending with a fresh
attempt budget. The running server's worker picks them up again.

Examples:
  # Requeue up to 100 parked jobs
  enrich requeue-failed

  # Requeue a smaller batch
  enrich requeue-failed --limit 10`,
	RunE: runRequeue,
}

var enrichCmd = &cobra.Command{
	Use:   "enrich-missing",
	Short: "Enrich and re-embed chunks indexed without a context preamble",
	Long: `Page through chunks whose enrichment is empty, generate the missing
context preamble and write the chunk back with a fresh embedding. Chunks
of tombstoned documents are skipped.

The pass stops when a full page makes no progress, so chunks that keep
failing cannot spin it forever.

Examples:
  # Enrich everything that is missing a preamble
  enrich enrich-missing

  # See how much work is pending without changing anything
  enrich enrich-missing --dry-run`,
	RunE: runEnrich,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	requeueCmd.Flags().IntVar(&limit, "limit", 100, "maximum jobs to requeue")

	enrichCmd.Flags().IntVar(&batchSize, "batch-size", 50, "chunks per page")
	enrichCmd.Flags().BoolVar(&dryRun, "dry-run", false, "count pending work without writing")

	rootCmd.AddCommand(requeueCmd)
	rootCmd.AddCommand(enrichCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// bootstrap loads config and wires the backfill usecase. The returned cleanup
// releases the database pool.
func bootstrap(ctx context.Context, logger *slog.Logger) (usecase.EnrichBackfillUsecase, func(), error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to db: %w", err)
	}

	components, err := di.NewApplicationComponents(ctx, cfg, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("wire components: %w", err)
	}

	return components.EnrichBackfill, pool.Close, nil
}

func runRequeue(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := context.Background()

	backfill, cleanup, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	count, err := backfill.RequeueFailed(ctx, limit)
	if err != nil {
		return fmt.Errorf("requeue failed jobs: %w", err)
	}

	fmt.Printf("Requeued %d parked jobs.\n", count)
	return nil
}

func runEnrich(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backfill, cleanup, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Setup signal handler for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting enrichment pass",
		slog.Int("batch_size", batchSize),
		slog.Bool("dry_run", dryRun),
	)

	report, err := backfill.EnrichMissing(ctx, batchSize, dryRun)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("enrich missing chunks: %w", err)
	}
	interrupted := errors.Is(err, context.Canceled)

	fmt.Printf("Enrichment Report:\n")
	fmt.Printf("  Scanned:  %d\n", report.Scanned)
	fmt.Printf("  Enriched: %d\n", report.Enriched)
	fmt.Printf("  Skipped:  %d\n", report.Skipped)
	fmt.Printf("  Failed:   %d\n", report.Failed)
	if interrupted {
		fmt.Println("Interrupted; completed work is already persisted.")
	}
	return nil
}
