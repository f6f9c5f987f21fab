package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/kjiezl/qwepic-dev/internal/img"
	"github.com/kjiezl/qwepic-dev/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	photos    []store.Photo
	updated   map[int64]map[string]string
	failOn    map[int64]bool
	listCalls int
}

func (f *fakeStore) ListAfter(_ context.Context, afterID int64, limit int) ([]store.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []store.Photo
	for _, p := range f.photos {
		if p.ID > afterID {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (store.Photo, error) {
	for _, p := range f.photos {
		if p.ID == id {
			return p, nil
		}
	}
	return store.Photo{}, store.ErrNotFound
}

func (f *fakeStore) UpdateThumbnails(_ context.Context, id int64, thumbnails map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[id] {
		return errors.New("connection lost")
	}
	if f.updated == nil {
		f.updated = map[int64]map[string]string{}
	}
	f.updated[id] = thumbnails
	return nil
}

type fakeThumbs struct {
	missing     map[string]bool
	empty       map[string]bool
	regenerated []string
}

func (f *fakeThumbs) Sizes() []img.ThumbnailSpec { return img.DefaultSizes }

func (f *fakeThumbs) OriginalExists(filename string) bool { return !f.missing[filename] }

func (f *fakeThumbs) Regenerate(filename string) img.Result {
	f.regenerated = append(f.regenerated, filename)
	if f.empty[filename] {
		return img.Result{Thumbnails: map[string]string{}}
	}
	m := map[string]string{}
	for _, s := range img.DefaultSizes {
		m[s.Name] = img.ThumbnailName(s.Name, filename)
	}
	return img.Result{Thumbnails: m}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const goodMapping = `{"small":"small_x.jpg","medium":"medium_x.jpg","large":"large_x.jpg"}`

// seedPhotos returns n photos; ids in broken get an empty mapping.
func seedPhotos(n int, broken map[int64]string) []store.Photo {
	photos := make([]store.Photo, 0, n)
	for i := 1; i <= n; i++ {
		id := int64(i)
		raw := goodMapping
		if b, ok := broken[id]; ok {
			raw = b
		}
		photos = append(photos, store.Photo{
			ID:            id,
			Src:           fmt.Sprintf("photo-%d.jpg", i),
			ThumbnailsRaw: []byte(raw),
		})
	}
	return photos
}

func TestRunRepairsEmptyMappings(t *testing.T) {
	broken := map[int64]string{}
	for _, id := range []int64{3, 11, 17, 25, 42, 50, 63, 77, 88, 99} {
		broken[id] = "{}"
	}
	st := &fakeStore{photos: seedPhotos(100, broken)}
	th := &fakeThumbs{missing: map[string]bool{"photo-42.jpg": true, "photo-99.jpg": true}}

	stats, err := NewRepairer(st, th, discardLogger()).Run(context.Background(), RunOptions{BatchSize: 30})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if stats.Processed != 8 || stats.Warnings != 2 || stats.Skipped != 90 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Failed != 0 || stats.Errors != 0 {
		t.Fatalf("unexpected failures: %+v", stats)
	}
	if len(st.updated) != 8 {
		t.Fatalf("expected 8 persisted mappings, got %d", len(st.updated))
	}
	if _, ok := st.updated[42]; ok {
		t.Fatal("record with missing original must stay untouched")
	}
	if st.listCalls != 4 {
		t.Fatalf("expected 4 page reads for 100 records in pages of 30, got %d", st.listCalls)
	}
}

func TestRunTreatsMalformedMappingsAsBroken(t *testing.T) {
	broken := map[int64]string{
		1: "",
		2: "null",
		3: `["small_a.jpg"]`,
		4: `{"huge":"huge_a.jpg"}`,
		5: `{"small":""}`,
	}
	st := &fakeStore{photos: seedPhotos(6, broken)}
	th := &fakeThumbs{}

	stats, err := NewRepairer(st, th, discardLogger()).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Processed != 5 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunCountsFailuresAndContinues(t *testing.T) {
	broken := map[int64]string{1: "{}", 2: "{}", 3: "{}"}
	st := &fakeStore{photos: seedPhotos(3, broken), failOn: map[int64]bool{2: true}}
	th := &fakeThumbs{empty: map[string]bool{"photo-1.jpg": true}}

	stats, err := NewRepairer(st, th, discardLogger()).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Failed != 1 || stats.Errors != 1 || stats.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	ids := append([]int64(nil), stats.FailedIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected failed ids: %v", stats.FailedIDs)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	st := &fakeStore{photos: seedPhotos(5, map[int64]string{2: "{}", 4: "{}"})}
	th := &fakeThumbs{}

	stats, err := NewRepairer(st, th, discardLogger()).Run(context.Background(), RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Candidates != 2 || stats.Processed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(th.regenerated) != 0 || len(st.updated) != 0 {
		t.Fatal("dry run must not regenerate or persist")
	}
}

func TestRunForceAndLimit(t *testing.T) {
	st := &fakeStore{photos: seedPhotos(10, nil)}
	th := &fakeThumbs{}

	stats, err := NewRepairer(st, th, discardLogger()).Run(context.Background(), RunOptions{Force: true, Limit: 4})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Processed != 4 || stats.Candidates != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRepairer(&fakeStore{}, &fakeThumbs{}, discardLogger()).Run(ctx, RunOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRepairPhoto(t *testing.T) {
	st := &fakeStore{photos: seedPhotos(3, nil)}
	th := &fakeThumbs{missing: map[string]bool{"photo-2.jpg": true}, empty: map[string]bool{"photo-3.jpg": true}}
	r := NewRepairer(st, th, discardLogger())

	res, err := r.RepairPhoto(context.Background(), 1)
	if err != nil {
		t.Fatalf("RepairPhoto returned error: %v", err)
	}
	if len(res.Thumbnails) != 3 || len(st.updated[1]) != 3 {
		t.Fatalf("expected mapping to be regenerated and stored: %v", res.Thumbnails)
	}

	if _, err := r.RepairPhoto(context.Background(), 2); !errors.Is(err, ErrOriginalMissing) {
		t.Fatalf("expected ErrOriginalMissing, got %v", err)
	}
	if _, err := r.RepairPhoto(context.Background(), 3); !errors.Is(err, ErrNoThumbnails) {
		t.Fatalf("expected ErrNoThumbnails, got %v", err)
	}
	if _, err := r.RepairPhoto(context.Background(), 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestCountReportsUnfinishedJobs(t *testing.T) {
	r := NewRepairer(&fakeStore{}, &fakeThumbs{}, discardLogger())

	var stats Stats
	job := NewJob(KindRegenerate, 42, "x.jpg")
	MarkRunning(job)
	r.count(&stats, job)

	if stats.Errors != 1 || len(stats.FailedIDs) != 1 || stats.FailedIDs[0] != 42 {
		t.Fatalf("unfinished job not counted as an error: %+v", stats)
	}
	if stats.Processed != 0 || stats.Skipped != 0 {
		t.Fatalf("unfinished job counted as progress: %+v", stats)
	}
}
