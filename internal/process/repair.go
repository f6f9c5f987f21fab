// internal/process/repair.go
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kjiezl/qwepic-dev/internal/img"
	"github.com/kjiezl/qwepic-dev/internal/store"
)

var (
	// ErrOriginalMissing is returned when a photo's original file is gone.
	ErrOriginalMissing = errors.New("original file missing")
	// ErrNoThumbnails is returned when regeneration produced no sizes.
	ErrNoThumbnails = errors.New("no thumbnails generated")
)

const defaultBatchSize = 100

// PhotoStore is the part of the photo repository the repairer needs.
type PhotoStore interface {
	ListAfter(ctx context.Context, afterID int64, limit int) ([]store.Photo, error)
	Get(ctx context.Context, id int64) (store.Photo, error)
	UpdateThumbnails(ctx context.Context, id int64, thumbnails map[string]string) error
}

// Regenerator re-derives thumbnails; *img.Thumbnailer satisfies it.
type Regenerator interface {
	Regenerate(filename string) img.Result
	OriginalExists(filename string) bool
	Sizes() []img.ThumbnailSpec
}

type RunOptions struct {
	BatchSize int
	Limit     int // 0 = unlimited candidates
	DryRun    bool
	Force     bool // regenerate every record, not only broken ones
}

// Stats summarises a repair run.
type Stats struct {
	Processed  int
	Skipped    int
	Warnings   int
	Failed     int
	Errors     int
	Candidates int
	FailedIDs  []int64
}

// Repairer re-derives thumbnails for stored photos whose mapping is empty
// or malformed.
type Repairer struct {
	photos PhotoStore
	thumbs Regenerator
	logger *slog.Logger
}

func NewRepairer(photos PhotoStore, thumbs Regenerator, logger *slog.Logger) *Repairer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{photos: photos, thumbs: thumbs, logger: logger}
}

// NeedsRepair reports whether the stored mapping of p is empty or malformed.
func (r *Repairer) NeedsRepair(p store.Photo) bool {
	raw := p.ThumbnailsRaw
	if raw == nil && len(p.Thumbnails) > 0 {
		return false
	}
	_, ok := img.ParseMapping(raw, r.thumbs.Sizes())
	return !ok
}

// Run pages through every photo record and repairs those that need it.
// Store failures on a single record are counted and the run continues; a
// failure to list a page ends the run.
func (r *Repairer) Run(ctx context.Context, opts RunOptions) (Stats, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	var (
		stats   Stats
		afterID int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, err := r.photos.ListAfter(ctx, afterID, batch)
		if err != nil {
			return stats, fmt.Errorf("list photos after %d: %w", afterID, err)
		}
		if len(page) == 0 {
			break
		}

		for _, p := range page {
			afterID = p.ID
			if !opts.Force && !r.NeedsRepair(p) {
				stats.Skipped++
				continue
			}
			if opts.Limit > 0 && stats.Candidates >= opts.Limit {
				r.logger.Info("candidate limit reached", "limit", opts.Limit)
				return stats, nil
			}
			stats.Candidates++

			job := NewJob(KindRegenerate, p.ID, p.Src)
			r.runJob(ctx, job, opts.DryRun)
			r.count(&stats, job)
		}

		r.logger.Info("repair progress",
			"after_id", afterID,
			"processed", stats.Processed,
			"skipped", stats.Skipped,
			"warnings", stats.Warnings,
			"failed", stats.Failed,
		)
		if len(page) < batch {
			break
		}
	}
	return stats, nil
}

func (r *Repairer) runJob(ctx context.Context, job *Job, dryRun bool) {
	logger := r.logger.With("job_id", job.ID, "photo_id", job.PhotoID, "filename", job.Filename)

	if !r.thumbs.OriginalExists(job.Filename) {
		logger.Warn("original file missing, skipping")
		MarkSkipped(job, ErrOriginalMissing.Error())
		return
	}
	if dryRun {
		logger.Info("would regenerate thumbnails")
		MarkSkipped(job, "dry run")
		return
	}

	MarkRunning(job)
	res := r.thumbs.Regenerate(job.Filename)
	if len(res.Thumbnails) == 0 {
		logger.Error("thumbnail regeneration produced nothing")
		MarkFailed(job, ErrNoThumbnails)
		return
	}
	if err := r.photos.UpdateThumbnails(ctx, job.PhotoID, res.Thumbnails); err != nil {
		logger.Error("persist thumbnails", "err", err)
		MarkFailed(job, fmt.Errorf("persist thumbnails: %w", err))
		return
	}
	logger.Info("thumbnails regenerated", "sizes", len(res.Thumbnails))
	MarkSucceeded(job)
}

func (r *Repairer) count(stats *Stats, job *Job) {
	if !job.Done() {
		// runJob returned without settling the job; report it rather than
		// letting the photo disappear from the totals.
		r.logger.Error("job left unfinished", "job_id", job.ID, "status", job.Status)
		stats.Errors++
		stats.FailedIDs = append(stats.FailedIDs, job.PhotoID)
		return
	}
	switch job.Status {
	case JobStatusSucceeded:
		stats.Processed++
	case JobStatusSkipped:
		if job.Error == ErrOriginalMissing.Error() {
			stats.Warnings++
		}
	case JobStatusFailed:
		if job.Error == ErrNoThumbnails.Error() {
			stats.Failed++
		} else {
			stats.Errors++
		}
		stats.FailedIDs = append(stats.FailedIDs, job.PhotoID)
	}
}

// RepairPhoto regenerates the thumbnails of a single photo regardless of
// its current mapping and persists the new mapping.
func (r *Repairer) RepairPhoto(ctx context.Context, id int64) (img.Result, error) {
	p, err := r.photos.Get(ctx, id)
	if err != nil {
		return img.Result{}, err
	}
	if p.Src == "" || !r.thumbs.OriginalExists(p.Src) {
		return img.Result{}, fmt.Errorf("photo %d: %w", id, ErrOriginalMissing)
	}

	res := r.thumbs.Regenerate(p.Src)
	if len(res.Thumbnails) == 0 {
		return res, fmt.Errorf("photo %d: %w", id, ErrNoThumbnails)
	}
	if err := r.photos.UpdateThumbnails(ctx, id, res.Thumbnails); err != nil {
		return res, fmt.Errorf("photo %d: persist thumbnails: %w", id, err)
	}
	r.logger.Info("photo thumbnails regenerated", "photo_id", id, "sizes", len(res.Thumbnails))
	return res, nil
}
