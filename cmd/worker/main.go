// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjiezl/qwepic-dev/internal/bus"
	"github.com/kjiezl/qwepic-dev/internal/config"
	"github.com/kjiezl/qwepic-dev/internal/img"
	"github.com/kjiezl/qwepic-dev/internal/process"
	"github.com/kjiezl/qwepic-dev/internal/store"
	"github.com/kjiezl/qwepic-dev/internal/upload"
	"github.com/kjiezl/qwepic-dev/pkg/schema"
)

type repairer interface {
	RepairPhoto(ctx context.Context, id int64) (img.Result, error)
}

type publisher interface {
	PublishJSON(subject string, v any) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.NATSURL == "" {
		fatal(logger, "worker needs a message bus", errors.New("NATS_URL is empty"))
	}
	logger.Info("worker starting",
		"nats_url", cfg.NATSURL,
		"subject", cfg.SubjectRegenerate,
		"queue", cfg.WorkerQueue,
		"result_subject", cfg.SubjectDone,
		"thumb_dir", cfg.ThumbDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.ThumbDir, 0o755); err != nil {
		fatal(logger, "ensure thumbnail directory", err, "thumb_dir", cfg.ThumbDir)
	}

	photos, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		fatal(logger, "open photo store", err)
	}
	defer photos.Close()

	nc, err := bus.Connect(cfg.NATSURL, "qwepic-worker", logger)
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	defer nc.Close()
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)

	thumbs := img.NewThumbnailer(img.Options{
		UploadsDir:   cfg.UploadsDir,
		ThumbDir:     cfg.ThumbDir,
		Sizes:        cfg.ThumbnailSizes,
		AllowUpscale: cfg.AllowUpscale,
		Codecs:       img.DefaultRegistry(),
		Logger:       logger,
	})
	repair := process.NewRepairer(photos, thumbs, logger)

	_, err = nc.QueueSubscribeJSON(cfg.SubjectRegenerate, cfg.WorkerQueue, func(msgCtx context.Context, data []byte) {
		handleRegenerate(msgCtx, data, repair, nc, cfg.SubjectDone, logger)
	})
	if err != nil {
		fatal(logger, "subscribe worker", err, "subject", cfg.SubjectRegenerate, "queue", cfg.WorkerQueue)
	}
	logger.Info("listening for regenerate requests", "subject", cfg.SubjectRegenerate, "queue", cfg.WorkerQueue)

	<-ctx.Done()
	logger.Info("worker stopping")
}

// handleRegenerate serves one regenerate request and reports the outcome on
// resultSubject. Malformed requests are dropped with a warning.
func handleRegenerate(ctx context.Context, data []byte, r repairer, pub publisher, resultSubject string, logger *slog.Logger) {
	start := time.Now()

	req, err := bus.DecodeJSON[schema.RegenerateRequested](data)
	if err != nil || req.PhotoID <= 0 {
		logger.Warn("dropping malformed regenerate request", "err", err, "payload", string(data))
		return
	}
	jobLogger := logger.With("photo_id", req.PhotoID)
	jobLogger.Info("received regenerate request")

	res, err := r.RepairPhoto(ctx, req.PhotoID)
	done := schema.ThumbnailsDone{
		PhotoID:          req.PhotoID,
		Thumbnails:       res.Thumbnails,
		TotalProcessed:   res.Succeeded(),
		TotalFailed:      len(res.Failed()),
		Results:          upload.ThumbnailResults(res.Sizes),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		HappenedAt:       time.Now().Unix(),
	}
	if done.Thumbnails == nil {
		done.Thumbnails = map[string]string{}
	}
	if len(res.Sizes) > 0 {
		done.Filename = originalName(res.Sizes[0])
	}
	if err != nil {
		done.Error = err.Error()
		jobLogger.Error("regenerate failed", "err", err)
	} else {
		jobLogger.Info("regenerate complete", "processed", done.TotalProcessed, "failed", done.TotalFailed)
	}

	if err := pub.PublishJSON(resultSubject, done); err != nil {
		jobLogger.Error("publish result", "subject", resultSubject, "err", err)
	}
}

// originalName recovers the original filename from a derived one.
func originalName(sr img.SizeResult) string {
	prefix := sr.Name + "_"
	if len(sr.Filename) > len(prefix) && sr.Filename[:len(prefix)] == prefix {
		return sr.Filename[len(prefix):]
	}
	return ""
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
