// internal/batch/batch_test.go - Prefetch job tests
package batch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akkana/pytopo/internal/cache"
	"github.com/akkana/pytopo/internal/tile"
	"github.com/akkana/pytopo/pkg/geo"
)

func prefetchFixture(t *testing.T, status int) (*Downloader, *cache.Cache, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte("tiledata"))
	}))
	t.Cleanup(srv.Close)

	src, err := tile.NewSource(tile.Spec{
		Name:    "osm",
		Type:    tile.TypeOnline,
		URL:     srv.URL + "/{z}/{x}/{y}.png",
		MaxZoom: 19,
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := cache.NewCache(t.TempDir(), 8)
	if err != nil {
		t.Fatal(err)
	}
	f := cache.NewFetcher(cache.FetchConfig{Timeout: 5 * time.Second})
	return NewDownloader(src, c, f, nil), c, &hits
}

func testBox() geo.BoundingBox {
	return geo.BoundingBox{MinLat: 35.80, MaxLat: 35.90, MinLon: -106.35, MaxLon: -106.25}
}

func TestPrefetchDownloadsArea(t *testing.T) {
	d, c, hits := prefetchFixture(t, http.StatusOK)
	job := NewJob("osm", testBox(), 10, 11, NewJobConfig())

	if err := d.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if job.Status != JobStatusCompleted {
		t.Fatalf("Job status %s, want %s (err %v)", job.Status, JobStatusCompleted, job.Err)
	}
	if job.Progress.TotalTiles == 0 {
		t.Fatal("Job enumerated no tiles")
	}
	if job.Progress.ProcessedTiles != job.Progress.TotalTiles {
		t.Errorf("Processed %d of %d tiles", job.Progress.ProcessedTiles, job.Progress.TotalTiles)
	}
	if job.Progress.FetchedTiles != job.Progress.TotalTiles {
		t.Errorf("Fetched %d, want all %d on an empty cache",
			job.Progress.FetchedTiles, job.Progress.TotalTiles)
	}
	if hits.Load() != job.Progress.FetchedTiles {
		t.Errorf("Server saw %d fetches for %d tiles", hits.Load(), job.Progress.FetchedTiles)
	}
	if job.Progress.Throughput <= 0 {
		t.Error("Throughput was never updated")
	}

	// Every enumerated tile must now be in the cache; spot-check one.
	r, err := tile.RangeForBox(testBox(), 10, 256)
	if err != nil {
		t.Fatal(err)
	}
	key := fmt.Sprintf("osm/10/%d/%d.png", r.MinX, r.MinY)
	if _, ok := c.FetchedAt(key); !ok {
		t.Errorf("Tile %s missing from the cache", key)
	}
}

func TestPrefetchSkipsFreshTiles(t *testing.T) {
	d, _, hits := prefetchFixture(t, http.StatusOK)
	box := testBox()

	first := NewJob("osm", box, 10, 10, NewJobConfig())
	if err := d.Process(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	afterFirst := hits.Load()

	second := NewJob("osm", box, 10, 10, NewJobConfig())
	if err := d.Process(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != afterFirst {
		t.Errorf("Second run refetched (%d -> %d hits)", afterFirst, hits.Load())
	}
	if second.Progress.SkippedTiles != second.Progress.TotalTiles {
		t.Errorf("Skipped %d of %d on a warm cache",
			second.Progress.SkippedTiles, second.Progress.TotalTiles)
	}

	// Force re-downloads everything.
	forced := NewJob("osm", box, 10, 10, NewJobConfig())
	forced.Config.Force = true
	if err := d.Process(context.Background(), forced); err != nil {
		t.Fatal(err)
	}
	if forced.Progress.FetchedTiles != forced.Progress.TotalTiles {
		t.Errorf("Forced run fetched %d of %d",
			forced.Progress.FetchedTiles, forced.Progress.TotalTiles)
	}
}

func TestPrefetchCountsFailures(t *testing.T) {
	d, _, _ := prefetchFixture(t, http.StatusNotFound)
	job := NewJob("osm", testBox(), 10, 10, NewJobConfig())

	if err := d.Process(context.Background(), job); err != nil {
		t.Fatalf("Non-fail-fast job should complete, got %v", err)
	}
	if job.Progress.FailedTiles != job.Progress.TotalTiles {
		t.Errorf("Failed %d of %d", job.Progress.FailedTiles, job.Progress.TotalTiles)
	}
	if job.Status != JobStatusCompleted {
		t.Errorf("Job status %s, want completed with failures counted", job.Status)
	}
}

func TestPrefetchFailFast(t *testing.T) {
	d, _, _ := prefetchFixture(t, http.StatusInternalServerError)
	job := NewJob("osm", testBox(), 10, 10, NewJobConfig())
	job.Config.FailFast = true

	if err := d.Process(context.Background(), job); err == nil {
		t.Fatal("Fail-fast job should surface the first error")
	}
	if job.Status != JobStatusFailed {
		t.Errorf("Job status %s, want %s", job.Status, JobStatusFailed)
	}
}

func TestJobWatchedWhileRunning(t *testing.T) {
	d, _, _ := prefetchFixture(t, http.StatusOK)
	job := NewJob("osm", testBox(), 10, 11, NewJobConfig())

	done := make(chan error, 1)
	go func() {
		done <- d.Process(context.Background(), job)
	}()

	// Poll the job the way the CLI does while the runner is writing.
	deadline := time.Now().Add(10 * time.Second)
	for !job.IsComplete() {
		status, progress := job.Snapshot()
		if status == JobStatusRunning && progress.ProcessedTiles > progress.TotalTiles {
			t.Fatalf("Processed %d of %d tiles", progress.ProcessedTiles, progress.TotalTiles)
		}
		if time.Now().After(deadline) {
			t.Fatal("Job never completed")
		}
		time.Sleep(time.Millisecond)
	}
	if err := <-done; err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	status, progress := job.Snapshot()
	if status != JobStatusCompleted {
		t.Errorf("Job status %s, want %s", status, JobStatusCompleted)
	}
	if progress.ProcessedTiles != progress.TotalTiles {
		t.Errorf("Processed %d of %d tiles", progress.ProcessedTiles, progress.TotalTiles)
	}
}

func TestCanceledJobRecordsCause(t *testing.T) {
	d, _, _ := prefetchFixture(t, http.StatusOK)
	job := NewJob("osm", testBox(), 10, 10, NewJobConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Process(ctx, job); err == nil {
		t.Fatal("Process() on a canceled context should fail")
	}

	status, _ := job.Snapshot()
	if status != JobStatusCanceled {
		t.Errorf("Job status %s, want %s", status, JobStatusCanceled)
	}
	if job.Failure() == nil {
		t.Error("Canceled job should record the cancellation cause")
	}
}

func TestPrefetchRejectsBadRanges(t *testing.T) {
	d, _, _ := prefetchFixture(t, http.StatusOK)

	tooDeep := NewJob("osm", testBox(), 10, 25, NewJobConfig())
	if err := d.Process(context.Background(), tooDeep); err == nil {
		t.Error("Zoom past the source maximum should fail")
	}

	empty := NewJob("osm", geo.NewBoundingBox(), 10, 10, NewJobConfig())
	if err := d.Process(context.Background(), empty); err == nil {
		t.Error("Empty area should fail")
	}
}

func TestCoordinatorLifecycle(t *testing.T) {
	d, _, _ := prefetchFixture(t, http.StatusOK)
	coord := NewCoordinator(func(source string) (Runner, error) {
		return d, nil
	}, nil)
	t.Cleanup(coord.Shutdown)

	job := NewJob("osm", testBox(), 10, 10, NewJobConfig())
	if err := coord.SubmitJob(job); err != nil {
		t.Fatalf("SubmitJob() error = %v", err)
	}
	if err := coord.SubmitJob(job); err == nil {
		t.Error("Resubmitting the same job ID should fail")
	}

	got, err := coord.GetJob(job.ID)
	if err != nil || got.ID != job.ID {
		t.Fatalf("GetJob() = %v, %v", got, err)
	}
	if _, err := coord.GetJob("no-such-job"); err == nil {
		t.Error("GetJob for an unknown ID should fail")
	}

	deadline := time.Now().Add(10 * time.Second)
	for !job.IsComplete() {
		if time.Now().After(deadline) {
			t.Fatal("Job never completed")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := coord.CancelJob(job.ID); err == nil {
		t.Error("Canceling a completed job should fail")
	}
	if len(coord.ListJobs()) != 1 {
		t.Errorf("ListJobs() returned %d jobs, want 1", len(coord.ListJobs()))
	}
}

func TestSubmitValidation(t *testing.T) {
	coord := NewCoordinator(func(string) (Runner, error) { return nil, nil }, nil)
	t.Cleanup(coord.Shutdown)

	bad := NewJob("", testBox(), 10, 10, NewJobConfig())
	if err := coord.SubmitJob(bad); err == nil {
		t.Error("Job without a source should be rejected")
	}

	inverted := NewJob("osm", testBox(), 12, 10, NewJobConfig())
	if err := coord.SubmitJob(inverted); err == nil {
		t.Error("Inverted zoom range should be rejected")
	}
}
