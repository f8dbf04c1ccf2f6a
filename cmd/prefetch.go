// cmd/prefetch.go - Area prefetch command
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/akkana/pytopo/internal/batch"
	"github.com/akkana/pytopo/pkg/geo"
)

// prefetchCmd represents the prefetch command
var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Download the tiles covering an area for offline use",
	Long: `Download every tile of an online source covering a bounding box
across a zoom range, so the area keeps working without a network.

Tiles already fresh in the cache are skipped unless --force is given.
Individual download failures are counted and reported at the end;
--fail-fast stops at the first one instead.

Examples:
  # One zoom level
  pytopo prefetch --source osm --bbox "-122.3,37.4,-122.1,37.6" --zoom 12

  # A zoom range with higher concurrency
  pytopo prefetch --source osm --bbox "-122.3,37.4,-122.1,37.6" --min-zoom 10 --max-zoom 14 --concurrency 8

  # Re-download everything, even fresh tiles
  pytopo prefetch --source osm --bbox "-122.3,37.4,-122.1,37.6" --zoom 12 --force`,
	RunE: runPrefetch,
}

func init() {
	rootCmd.AddCommand(prefetchCmd)

	prefetchCmd.Flags().String("source", "", "map source to prefetch")
	prefetchCmd.Flags().String("bbox", "", "bounding box: 'min_lon,min_lat,max_lon,max_lat'")
	prefetchCmd.Flags().Int("zoom", 0, "single zoom level to prefetch")
	prefetchCmd.Flags().Int("min-zoom", 0, "minimum zoom level")
	prefetchCmd.Flags().Int("max-zoom", 0, "maximum zoom level")
	prefetchCmd.Flags().Int("concurrency", 0, "concurrent downloads (default from config)")
	prefetchCmd.Flags().Int("chunk-size", 0, "tiles per processing chunk (default from config)")
	prefetchCmd.Flags().Bool("force", false, "re-download tiles that are already fresh")
	prefetchCmd.Flags().Bool("fail-fast", false, "stop at the first failed tile")
	prefetchCmd.Flags().Bool("progress", true, "show progress indicator")

	prefetchCmd.MarkFlagsMutuallyExclusive("zoom", "min-zoom")
	prefetchCmd.MarkFlagsMutuallyExclusive("zoom", "max-zoom")
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	sourceName, _ := cmd.Flags().GetString("source")
	bboxStr, _ := cmd.Flags().GetString("bbox")
	zoom, _ := cmd.Flags().GetInt("zoom")
	minZoom, _ := cmd.Flags().GetInt("min-zoom")
	maxZoom, _ := cmd.Flags().GetInt("max-zoom")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	force, _ := cmd.Flags().GetBool("force")
	failFast, _ := cmd.Flags().GetBool("fail-fast")
	showProgress, _ := cmd.Flags().GetBool("progress")

	src, err := a.source(sourceName)
	if err != nil {
		return err
	}

	if zoom > 0 {
		minZoom, maxZoom = zoom, zoom
	}
	if minZoom == 0 && maxZoom == 0 {
		return fmt.Errorf("zoom level(s) must be specified")
	}
	if maxZoom == 0 {
		maxZoom = minZoom
	}

	if bboxStr == "" {
		return fmt.Errorf("a bounding box must be specified with --bbox")
	}
	box, err := parseBoundingBox(bboxStr)
	if err != nil {
		return fmt.Errorf("failed to parse bounding box: %w", err)
	}

	jobConfig := &batch.JobConfig{
		Concurrency: a.cfg.Batch.Concurrency,
		ChunkSize:   a.cfg.Batch.ChunkSize,
		Timeout:     a.cfg.Batch.Timeout,
		Force:       force,
		FailFast:    failFast || a.cfg.Batch.FailFast,
	}
	if concurrency > 0 {
		jobConfig.Concurrency = concurrency
	}
	if chunkSize > 0 {
		jobConfig.ChunkSize = chunkSize
	}

	var reporter batch.Reporter
	if showProgress {
		reporter = newConsoleReporter()
	}

	coord := batch.NewCoordinator(func(name string) (batch.Runner, error) {
		s, err := a.source(name)
		if err != nil {
			return nil, err
		}
		return batch.NewDownloader(s, a.cache, a.fetcher, a.log), nil
	}, reporter)
	defer coord.Shutdown()

	job := batch.NewJob(src.Name(), box, minZoom, maxZoom, jobConfig)
	if err := coord.SubmitJob(job); err != nil {
		return fmt.Errorf("failed to submit prefetch job: %w", err)
	}

	for !job.IsComplete() {
		time.Sleep(100 * time.Millisecond)
		if reporter != nil && job.IsRunning() {
			reporter.ReportProgress(job)
		}
	}

	status, progress := job.Snapshot()
	if status != batch.JobStatusCompleted {
		if err := job.Failure(); err != nil {
			return fmt.Errorf("prefetch %s: %w", status, err)
		}
		return fmt.Errorf("prefetch %s", status)
	}

	elapsed := time.Since(progress.StartTime)
	fmt.Fprintf(os.Stderr, "\nPrefetch completed\n")
	fmt.Fprintf(os.Stderr, "Tiles: %d total, %d fetched, %d skipped, %d failed\n",
		progress.TotalTiles, progress.FetchedTiles,
		progress.SkippedTiles, progress.FailedTiles)
	fmt.Fprintf(os.Stderr, "Duration: %v (%.2f tiles/second)\n", elapsed.Round(time.Millisecond), progress.Throughput)
	return nil
}

// parseBoundingBox parses a 'min_lon,min_lat,max_lon,max_lat' string.
func parseBoundingBox(s string) (geo.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.BoundingBox{}, fmt.Errorf("bounding box must have 4 values: min_lon,min_lat,max_lon,max_lat")
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geo.BoundingBox{}, fmt.Errorf("invalid coordinate value: %s", part)
		}
		vals[i] = v
	}

	return geo.BoundingBox{
		MinLon: vals[0],
		MinLat: vals[1],
		MaxLon: vals[2],
		MaxLat: vals[3],
	}, nil
}

// consoleReporter prints prefetch progress to stderr.
type consoleReporter struct {
	lastUpdate time.Time
}

func newConsoleReporter() *consoleReporter {
	return &consoleReporter{}
}

// ReportProgress reports job progress, rate-limited to once a second.
func (r *consoleReporter) ReportProgress(job *batch.Job) {
	if time.Since(r.lastUpdate) < time.Second {
		return
	}
	_, p := job.Snapshot()
	fmt.Fprintf(os.Stderr, "\rProgress: %.1f%% (%d/%d tiles, %.2f tiles/sec)",
		p.CalculateProgress(), p.ProcessedTiles, p.TotalTiles, p.Throughput)
	r.lastUpdate = time.Now()
}

// ReportJobComplete reports job completion.
func (r *consoleReporter) ReportJobComplete(job *batch.Job) {
	_, p := job.Snapshot()
	fmt.Fprintf(os.Stderr, "\rCompleted: 100%% (%d tiles processed)\n", p.ProcessedTiles)
}

// ReportJobFailed reports job failure.
func (r *consoleReporter) ReportJobFailed(job *batch.Job, err error) {
	fmt.Fprintf(os.Stderr, "\rFailed: %s\n", err.Error())
}
