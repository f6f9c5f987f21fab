package process

import (
	"errors"
	"testing"
)

func TestNewJobCapturesPhoto(t *testing.T) {
	job := NewJob(KindRegenerate, 123, "a.jpg")

	if job.Kind != KindRegenerate || job.ID != "regenerate_thumbnails-123" {
		t.Fatalf("unexpected job identity: %+v", job)
	}
	if job.PhotoID != 123 || job.Filename != "a.jpg" {
		t.Fatalf("job input not preserved: %+v", job)
	}
	if job.Status != JobStatusPending || job.Done() {
		t.Fatalf("new job should be pending: %+v", job)
	}
}

func TestMarkFailedSetsStatusAndError(t *testing.T) {
	job := NewJob(KindRegenerate, 2, "b.jpg")
	MarkRunning(job)
	MarkFailed(job, errors.New("boom"))

	if job.Status != JobStatusFailed {
		t.Fatalf("job status not failed: %v", job.Status)
	}
	if job.Error == "" {
		t.Fatal("job error not recorded")
	}
	if !job.Done() {
		t.Fatal("failed job should be done")
	}
}

func TestMarkFailedDoesNotOverwriteErrorWhenNil(t *testing.T) {
	job := NewJob(KindRegenerate, 3, "c.jpg")
	MarkFailed(job, nil)

	if job.Status != JobStatusFailed {
		t.Fatalf("job status not failed: %v", job.Status)
	}
	if job.Error != "" {
		t.Fatalf("expected empty error string, got %q", job.Error)
	}
}

func TestMarkSkippedRecordsReason(t *testing.T) {
	job := NewJob(KindRegenerate, 4, "d.jpg")
	MarkSkipped(job, "original missing")

	if job.Status != JobStatusSkipped || job.Error != "original missing" || !job.Done() {
		t.Fatalf("unexpected skipped job: %+v", job)
	}
}
