// internal/batch/processor.go - Prefetch job execution
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/internal/cache"
	"github.com/akkana/pytopo/internal/tile"
)

// Downloader runs prefetch jobs: it enumerates the tiles covering the
// job's bounding box at each zoom, skips the ones already fresh in the
// cache, and downloads the rest with bounded concurrency. Job state is
// written under the job's own lock so pollers can watch it live.
type Downloader struct {
	source  tile.Source
	cache   *cache.Cache
	fetcher *cache.Fetcher
	log     *slog.Logger
}

// NewDownloader creates a prefetch runner for one source.
func NewDownloader(src tile.Source, c *cache.Cache, f *cache.Fetcher, log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{source: src, cache: c, fetcher: f, log: log}
}

// Process executes a complete prefetch job.
func (d *Downloader) Process(ctx context.Context, job *Job) error {
	if _, fetchable := d.source.FetchTarget(tile.Address{Z: job.MinZoom}); !fetchable {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q ships its tiles on disk, nothing to prefetch", d.source.Name()), nil)
	}

	job.mu.Lock()
	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Progress.StartTime = now
	job.mu.Unlock()

	addresses, err := d.enumerate(job)
	if err != nil {
		d.completeWithError(job, err)
		return err
	}

	chunkSize := job.Config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 64
	}
	job.mu.Lock()
	job.Progress.TotalTiles = int64(len(addresses))
	job.Progress.TotalChunks = (len(addresses) + chunkSize - 1) / chunkSize
	job.mu.Unlock()

	for start := 0; start < len(addresses); start += chunkSize {
		select {
		case <-ctx.Done():
			d.completeCanceled(job, ctx.Err())
			return ctx.Err()
		default:
		}

		end := start + chunkSize
		if end > len(addresses) {
			end = len(addresses)
		}

		job.mu.Lock()
		job.Progress.CurrentChunk = start/chunkSize + 1
		job.mu.Unlock()

		if err := d.processChunk(ctx, job, addresses[start:end]); err != nil {
			d.completeWithError(job, err)
			return err
		}
	}

	job.mu.Lock()
	job.Status = JobStatusCompleted
	done := time.Now()
	job.CompletedAt = &done
	job.mu.Unlock()

	return nil
}

// enumerate lists every address the job covers. Zoom levels enumerate
// concurrently since the per-zoom ranges are independent.
func (d *Downloader) enumerate(job *Job) ([]tile.Address, error) {
	minZ, maxZ := job.MinZoom, job.MaxZoom
	srcMin, srcMax := d.source.ZoomRange()
	if minZ < srcMin || maxZ > srcMax || minZ > maxZ {
		return nil, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("zoom range %d..%d outside source %q range %d..%d",
				minZ, maxZ, d.source.Name(), srcMin, srcMax), nil)
	}
	if job.Box.Empty() {
		return nil, internal.NewError(internal.ErrorCodeDegenerate,
			"prefetch area is empty", nil)
	}

	tileW, _ := d.source.TileSize()
	perZoom := make([][]tile.Address, maxZ-minZ+1)

	var g errgroup.Group
	for z := minZ; z <= maxZ; z++ {
		z := z
		g.Go(func() error {
			r, err := tile.RangeForBox(job.Box, z, tileW)
			if err != nil {
				return err
			}
			if err := r.Validate(); err != nil {
				return err
			}
			addrs := make([]tile.Address, 0, r.Count())
			for x := r.MinX; x <= r.MaxX; x++ {
				for y := r.MinY; y <= r.MaxY; y++ {
					addrs = append(addrs, tile.Address{Z: z, X: x, Y: y})
				}
			}
			perZoom[z-minZ] = addrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []tile.Address
	for _, addrs := range perZoom {
		all = append(all, addrs...)
	}
	return all, nil
}

// processChunk downloads one chunk of addresses with bounded
// concurrency. Individual failures are counted, not fatal, unless the
// job asks to fail fast.
func (d *Downloader) processChunk(ctx context.Context, job *Job, addresses []tile.Address) error {
	g, ctx := errgroup.WithContext(ctx)
	concurrency := job.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g.SetLimit(concurrency)

	for _, addr := range addresses {
		addr := addr
		g.Go(func() error {
			fetched, err := d.fetchOne(ctx, job, addr)

			job.mu.Lock()
			job.Progress.ProcessedTiles++
			switch {
			case err != nil:
				job.Progress.FailedTiles++
			case fetched:
				job.Progress.FetchedTiles++
			default:
				job.Progress.SkippedTiles++
			}
			job.Progress.UpdateThroughput()
			est := job.Progress.EstimateCompletion()
			job.Progress.EstimatedEnd = &est
			job.mu.Unlock()

			if err != nil {
				d.log.Warn("prefetch tile failed",
					"source", d.source.Name(), "tile", addr.String(), "error", err)
				if job.Config.FailFast {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// fetchOne downloads a single tile unless the cache already has a
// fresh copy. It reports whether a download actually happened.
func (d *Downloader) fetchOne(ctx context.Context, job *Job, addr tile.Address) (bool, error) {
	if !d.source.InRange(addr) {
		return false, nil
	}
	key := d.source.CacheKey(addr)

	if !job.Config.Force {
		if fetchedAt, ok := d.cache.FetchedAt(key); ok && !d.cache.Stale(fetchedAt, d.source.Refresh()) {
			return false, nil
		}
	}

	url, ok := d.source.FetchTarget(addr)
	if !ok {
		return false, nil
	}
	data, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return false, err
	}
	if err := d.cache.Write(key, data); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Downloader) completeWithError(job *Job, err error) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.Status = JobStatusFailed
	job.Err = err
	now := time.Now()
	job.CompletedAt = &now
}

func (d *Downloader) completeCanceled(job *Job, cause error) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.Status = JobStatusCanceled
	job.Err = cause
	now := time.Now()
	job.CompletedAt = &now
}
