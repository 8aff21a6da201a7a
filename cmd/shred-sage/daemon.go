package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"shred-sage/internal/config"
	"shred-sage/internal/database"
	"shred-sage/internal/exitcodes"
	"shred-sage/internal/fsops"
	"shred-sage/internal/limiter"
	"shred-sage/internal/logging"
	"shred-sage/internal/metrics"
	"shred-sage/internal/purge"
	"shred-sage/internal/safety"
	"shred-sage/internal/scan"
	"shred-sage/internal/scheduler"
	"shred-sage/internal/shredder"
)

const healthInterval = 30 * time.Second

var errNoSpools = errors.Base("no spool_paths configured")

func newDaemonCmd(root *rootOpts) *cobra.Command {
	var once, dryRun bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Periodically shred aged spool files",
		Long: `Daemon scans the configured spool paths on an interval, on request via
POST /trigger, and when spool files change, and shreds files selected by
age or filesystem pressure. Prometheus metrics and /health are served on
the configured port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig(cmd, true)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, once, dryRun)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record what would be shredded without shredding")

	return cmd
}

func runDaemon(ctx context.Context, cfg *config.Config, once, dryRun bool) error {
	if len(cfg.SpoolPaths) == 0 {
		return withExit(exitcodes.InvalidConfig, errNoSpools)
	}

	logger := logging.NewWithConfig(cfg)
	logger.Info().Strs("spool_paths", cfg.SpoolPaths).Bool("dry_run", dryRun).Msg("shred-sage daemon starting")
	if dryRun {
		logger.Warn().Msg("DRY RUN MODE: no files will be shredded")
	}

	metrics.Init()
	if cfg.Prometheus.Port > 0 && !once {
		if err := metrics.StartServer(cfg.PrometheusAddress(), logger); err != nil {
			return withExit(exitcodes.RuntimeError, errors.Errorf("starting metrics server: %w", err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx, logger)
		}()
	}

	logger.Info().Str("path", cfg.DatabasePath).Msg("opening shred history")
	db, err := database.NewHistoryDB(cfg.DatabasePath)
	if err != nil {
		return withExit(exitcodes.RuntimeError, errors.Errorf("opening history: %w", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close history")
		}
	}()

	s := shredder.New(cfg.ShredderConfig(), shredder.WithLogger(logger))
	if !s.PathExists() {
		logger.Warn().Str("utility", s.Config().UtilityPath).Msg("shred utility not found, cycles will fail")
	}

	cpu := limiter.NewCPULimiter(cfg.ResourceLimits.MaxCPUPercent)
	purger := purge.New(
		fsops.ExternalShredder{S: s},
		safety.NewValidator(cfg.SpoolPaths, cfg.ProtectedPaths),
		purge.WithLogger(logger.With().Str("component", "purge").Logger()),
		purge.WithHistory(db),
		purge.WithDryRun(dryRun),
		purge.WithWorkers(cfg.WorkerPool.Concurrency, cfg.WorkerPool.BatchSize),
		purge.WithThrottle(cpu),
		purge.WithNFSTimeout(cfg.NFSTimeoutDuration()),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := scheduler.Deps{
		Config:  cfg,
		Scanner: scan.NewScanner(logger),
		Purger:  purger,
		Limiter: cpu,
		Logger:  logger.With().Str("component", "scheduler").Logger(),
		Trigger: metrics.Trigger(),
	}

	if once {
		summary, err := scheduler.RunOnce(ctx, deps)
		if err != nil {
			if shredder.IsUtilityError(err) {
				return withExit(exitcodes.UtilityFailure, err)
			}
			return withExit(exitcodes.RuntimeError, err)
		}
		logger.Info().Str("run_id", summary.RunID).Int("shredded", summary.Shredded).Msg("single cycle complete")
		return nil
	}

	hc := metrics.NewHealthChecker(healthInterval)
	hc.RegisterComponent("utility", func() error {
		if !s.PathExists() {
			return errors.Errorf("%s not found", s.Config().UtilityPath)
		}
		return nil
	}, 0)
	hc.RegisterComponent("database", db.Ping, 5*time.Second)
	hc.RegisterComponent("spool", func() error {
		for _, p := range cfg.SpoolPaths {
			info, err := os.Stat(p)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return errors.Errorf("%s is not a directory", p)
			}
		}
		return nil
	}, cfg.NFSTimeoutDuration())
	hc.Start()
	metrics.SetHealthChecker(hc)
	defer hc.Stop()

	logger.Info().Dur("interval", cfg.Interval()).Msg("starting shred scheduler")
	if err := scheduler.Run(ctx, deps); err != nil && !errors.Is(err, context.Canceled) {
		return withExit(exitcodes.RuntimeError, err)
	}

	logger.Info().Msg("shred-sage daemon stopped")
	return nil
}
