// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjiezl/qwepic-dev/internal/bus"
	"github.com/kjiezl/qwepic-dev/internal/config"
	"github.com/kjiezl/qwepic-dev/internal/httpapi"
	"github.com/kjiezl/qwepic-dev/internal/img"
	"github.com/kjiezl/qwepic-dev/internal/process"
	"github.com/kjiezl/qwepic-dev/internal/store"
	"github.com/kjiezl/qwepic-dev/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codecs := img.DefaultRegistry()
	logger.Info("server starting",
		"addr", cfg.HTTPAddr,
		"uploads_dir", cfg.UploadsDir,
		"thumb_dir", cfg.ThumbDir,
		"codecs", codecs.Formats(),
		"allow_upscale", cfg.AllowUpscale,
	)

	for _, dir := range []string{cfg.UploadsDir, cfg.ThumbDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(logger, "ensure directory", err, "dir", dir)
		}
	}

	photos, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		fatal(logger, "open photo store", err)
	}
	defer photos.Close()
	logger.Info("photo store ready")

	var pub upload.Publisher
	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, "qwepic-server", logger)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer nc.Close()
		pub = nc
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	} else {
		logger.Info("NATS_URL empty, events disabled")
	}

	thumbs := img.NewThumbnailer(img.Options{
		UploadsDir:   cfg.UploadsDir,
		ThumbDir:     cfg.ThumbDir,
		Sizes:        cfg.ThumbnailSizes,
		AllowUpscale: cfg.AllowUpscale,
		Codecs:       codecs,
		Logger:       logger,
	})
	ingestor := upload.NewIngestor(upload.Options{
		UploadsDir:      cfg.UploadsDir,
		ThumbDir:        cfg.ThumbDir,
		Deriver:         thumbs,
		Publisher:       pub,
		UploadedSubject: cfg.SubjectUploaded,
		DeletedSubject:  cfg.SubjectDeleted,
		Logger:          logger,
	})

	srv := httpapi.NewServer(httpapi.Options{
		Photos:            photos,
		Ingestor:          ingestor,
		Repairer:          process.NewRepairer(photos, thumbs, logger),
		Publisher:         pub,
		RegenerateSubject: cfg.SubjectRegenerate,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		UploadsDir:        cfg.UploadsDir,
		ThumbDir:          cfg.ThumbDir,
		Logger:            logger,
	})

	logger.Info("listening", "addr", cfg.HTTPAddr)
	if err := srv.Run(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(logger, "http server", err)
	}
	logger.Info("server stopped")
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
