package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"autoapply/internal/applier"
	"autoapply/internal/config"
	"autoapply/internal/ledger"
	"autoapply/internal/manager"
	"autoapply/internal/profile"
	"autoapply/internal/report"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "go through every decision without submitting or persisting")
	csvPath := flag.String("csv", "", "path to the jobs CSV (overrides JOBS_CSV_PATH)")
	profilePath := flag.String("profile", "", "path to the applicant profile JSON (overrides PROFILE_PATH)")
	maxApps := flag.Int("max-applications", 0, "override the per-run application quota")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		cfg.Paths.CSV = *csvPath
	}
	if *profilePath != "" {
		cfg.Paths.Profile = *profilePath
	}
	if *maxApps > 0 {
		cfg.Run.MaxApplications = *maxApps
	}
	cfg.Run.DryRun = *dryRun

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	if !cfg.Run.DryRun && !config.ResolveEnabled(cfg) {
		logger.Info("auto-apply is disabled, nothing to do")
		return
	}

	prof, err := profile.Load(cfg.Paths.Profile)
	if err != nil {
		logger.Error("failed to load profile", slog.String("path", cfg.Paths.Profile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := ledger.NewStore(cfg.Paths.CSV)
	if err := store.Load(); err != nil {
		logger.Error("failed to load jobs ledger", slog.String("path", cfg.Paths.CSV), slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := applier.NewRouter(
		applier.NewHTTPApplier(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, cfg.Run.DryRun),
		applier.NewBrowserApplier(cfg.HTTP.UserAgent, cfg.Browser.PageTimeout, cfg.Browser.ScreenshotDir, cfg.Run.DryRun),
		cfg.Run.FallbackEnabled,
	)

	m := manager.New(store, router, report.NewWriter(cfg.Paths.LogDir), prof.FormData(), manager.Config{
		MaxApplications: cfg.Run.MaxApplications,
		MaxRetries:      cfg.Run.MaxRetries,
		ThrottleMin:     cfg.Throttle.Min,
		ThrottleMax:     cfg.Throttle.Max,
		DryRun:          cfg.Run.DryRun,
		Filters:         cfg.Filters,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, runErr := m.Run(ctx)
	fmt.Println(report.Render(summary))
	if runErr != nil {
		logger.Error("run finished with errors", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
}
