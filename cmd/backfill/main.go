// cmd/backfill/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjiezl/qwepic-dev/internal/config"
	"github.com/kjiezl/qwepic-dev/internal/img"
	"github.com/kjiezl/qwepic-dev/internal/process"
	"github.com/kjiezl/qwepic-dev/internal/store"
)

type flags struct {
	BatchSize int
	Limit     int
	DryRun    bool
	Force     bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	f := parseFlags(os.Args[1:])
	logger.Info("backfill starting",
		"uploads_dir", cfg.UploadsDir,
		"thumb_dir", cfg.ThumbDir,
		"batch_size", f.BatchSize,
		"limit", f.Limit,
		"dry_run", f.DryRun,
		"force", f.Force,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	photos, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		fatal(logger, "open photo store", err)
	}
	defer photos.Close()

	thumbs := img.NewThumbnailer(img.Options{
		UploadsDir:   cfg.UploadsDir,
		ThumbDir:     cfg.ThumbDir,
		Sizes:        cfg.ThumbnailSizes,
		AllowUpscale: cfg.AllowUpscale,
		Codecs:       img.DefaultRegistry(),
		Logger:       logger,
	})

	stats, err := process.NewRepairer(photos, thumbs, logger).Run(ctx, process.RunOptions{
		BatchSize: f.BatchSize,
		Limit:     f.Limit,
		DryRun:    f.DryRun,
		Force:     f.Force,
	})
	if err != nil {
		fatal(logger, "backfill failed", err)
	}

	logger.Info("backfill complete",
		"candidates", stats.Candidates,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"warnings", stats.Warnings,
		"failed", stats.Failed,
		"errors", stats.Errors,
		"dry_run", f.DryRun,
	)
	fmt.Printf("Processed %d photos, %d skipped, %d warnings, %d failed, %d errors\n",
		stats.Processed, stats.Skipped, stats.Warnings, stats.Failed, stats.Errors)

	if len(stats.FailedIDs) > 0 {
		logger.Error("some photos could not be repaired", "failed_ids", stats.FailedIDs)
		os.Exit(1)
	}
}

func parseFlags(args []string) flags {
	f := flags{DryRun: true}
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	fs.IntVar(&f.BatchSize, "batch", 100, "Number of photos to read per batch")
	fs.IntVar(&f.Limit, "limit", 0, "Maximum number of photos to repair (0 = unlimited)")
	fs.BoolVar(&f.DryRun, "dry-run", true, "Show what would be repaired without writing")
	fs.BoolVar(&f.Force, "force", false, "Regenerate thumbnails for every photo, not only broken ones")

	var execute bool
	fs.BoolVar(&execute, "execute", false, "Actually regenerate thumbnails (disables dry-run)")
	_ = fs.Parse(args)

	if execute {
		f.DryRun = false
	}
	return f
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
