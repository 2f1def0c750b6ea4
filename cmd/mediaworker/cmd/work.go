package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pixelharbor/mediaworker/internal/config"
	"github.com/pixelharbor/mediaworker/internal/database"
	"github.com/pixelharbor/mediaworker/internal/ffmpeg"
	"github.com/pixelharbor/mediaworker/internal/observability"
	"github.com/pixelharbor/mediaworker/internal/repository"
	"github.com/pixelharbor/mediaworker/internal/startup"
	"github.com/pixelharbor/mediaworker/internal/storage"
	"github.com/pixelharbor/mediaworker/internal/version"
	"github.com/pixelharbor/mediaworker/internal/worker"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Start the media processing worker",
	Long: `Start the worker loop: claim pending media jobs from the queue,
process them with ffmpeg, upload artifacts to object storage, and record
results. Run multiple worker processes against the same database to scale
out; the claim protocol guarantees each job is processed by one worker.`,
	RunE: runWork,
}

func init() {
	rootCmd.AddCommand(workCmd)

	workCmd.Flags().String("database", "", "database DSN (overrides config)")
	workCmd.Flags().String("temp-dir", "", "directory for per-job working files")
	workCmd.Flags().String("worker-id", "", "worker identifier used in logs")

	mustBindPFlag("database.dsn", workCmd.Flags().Lookup("database"))
	mustBindPFlag("worker.temp_dir", workCmd.Flags().Lookup("temp-dir"))
	mustBindPFlag("worker.worker_id", workCmd.Flags().Lookup("worker-id"))
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding
// fails, which only happens on a programming error.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}

func runWork(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	logger.Info("starting mediaworker", slog.String("version", version.Short()))

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tempRoot := cfg.Worker.TempDir
	if tempRoot == "" {
		tempRoot = filepath.Join(os.TempDir(), "mediaworker")
	}

	// Remove work dirs orphaned by a previous crash before taking new jobs.
	if removed, err := startup.CleanupOrphanedWorkDirs(logger, tempRoot, cfg.Worker.StaleAfter); err != nil {
		logger.Warn("orphaned work dir cleanup failed", slog.Any("error", err))
	} else if removed > 0 {
		logger.Info("removed orphaned work dirs", slog.Int("count", removed))
	}

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", slog.Any("error", err))
		}
	}()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.ObjectStore, observability.WithComponent(logger, "storage"))
	if err != nil {
		return fmt.Errorf("connecting to object store: %w", err)
	}

	ffmpegPath, err := ffmpeg.ResolveBinary(cfg.FFmpeg.BinaryPath, "ffmpeg")
	if err != nil {
		return err
	}
	ffprobePath, err := ffmpeg.ResolveBinary(cfg.FFmpeg.ProbePath, "ffprobe")
	if err != nil {
		return err
	}
	engine := ffmpeg.NewEngine(ffmpegPath, ffprobePath)
	engine.Prober.WithTimeout(cfg.FFmpeg.ProbeTimeout)

	w := worker.New(
		repository.NewMediaJobRepository(db.DB),
		repository.NewPostRepository(db.DB),
		engine,
		store,
		worker.Config{
			WorkerID:            cfg.Worker.WorkerID,
			PollInterval:        cfg.Worker.PollInterval,
			StaleAfter:          cfg.Worker.StaleAfter,
			JobTimeout:          cfg.Worker.JobTimeout,
			TempRoot:            tempRoot,
			ProgressMinInterval: cfg.Worker.ProgressFlushInterval,
		},
		observability.WithComponent(logger, "worker"),
	)

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, finishing in-flight job")
	w.Stop()

	return nil
}
