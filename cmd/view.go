// cmd/view.go - Viewport composition command
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/akkana/pytopo/internal/cache"
	"github.com/akkana/pytopo/internal/tile"
	"github.com/akkana/pytopo/internal/viewport"
	"github.com/akkana/pytopo/pkg/geo"
)

// viewCmd represents the view command
var viewCmd = &cobra.Command{
	Use:   "view [site]",
	Short: "Compose the tile layout for a map window",
	Long: `Compose the set of tiles covering a map window centered on a named
site or an explicit coordinate, request the missing ones, and print
where each tile lands in window pixels.

Online tiles are fetched into the cache in the background; the command
waits for the fetches and reports the final status of every tile, so
it doubles as a cache warmer for a single view.

Examples:
  # Center on a site from the configuration
  pytopo view white-rock --source osm

  # Center on a coordinate
  pytopo view --lat 35.827 --lon -106.18 --source osm --zoom 13

  # Layer a local overlay over the base map
  pytopo view --lat 35.827 --lon -106.18 --source osm --overlay bandelier`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().String("source", "", "base map source name")
	viewCmd.Flags().StringSlice("overlay", nil, "overlay source names, drawn over the base")
	viewCmd.Flags().Float64("lat", 0, "center latitude")
	viewCmd.Flags().Float64("lon", 0, "center longitude")
	viewCmd.Flags().Int("zoom", 0, "zoom level (default: source minimum, or the site's)")
	viewCmd.Flags().Int("width", 1024, "window width in pixels")
	viewCmd.Flags().Int("height", 768, "window height in pixels")
	viewCmd.Flags().Bool("force-refresh", false, "mark every cached tile stale and re-download")
	viewCmd.Flags().Duration("wait", 60*time.Second, "how long to wait for background fetches")

	viewCmd.MarkFlagsRequiredTogether("lat", "lon")
}

func runView(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	sourceName, _ := cmd.Flags().GetString("source")
	overlayNames, _ := cmd.Flags().GetStringSlice("overlay")
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	zoom, _ := cmd.Flags().GetInt("zoom")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	forceRefresh, _ := cmd.Flags().GetBool("force-refresh")
	wait, _ := cmd.Flags().GetDuration("wait")

	// A site argument supplies center, zoom and source unless flags
	// override them.
	if len(args) == 1 {
		site, ok := a.cfg.FindSite(args[0])
		if !ok {
			return fmt.Errorf("unknown site %q", args[0])
		}
		if !cmd.Flags().Changed("lat") {
			lat, lon = site.Lat, site.Lon
		}
		if zoom == 0 {
			zoom = site.Zoom
		}
		if sourceName == "" {
			sourceName = site.Source
		}
	} else if !cmd.Flags().Changed("lat") {
		return fmt.Errorf("either a site name or --lat/--lon must be specified")
	}

	base, err := a.source(sourceName)
	if err != nil {
		return err
	}
	var overlays []tile.Source
	for _, name := range overlayNames {
		ov, err := a.source(name)
		if err != nil {
			return err
		}
		overlays = append(overlays, ov)
	}

	if zoom == 0 {
		zoom, _ = base.ZoomRange()
	}
	center, err := geo.NewCoordinate(lat, lon)
	if err != nil {
		return err
	}

	// Completions funnel through a channel so the command can update
	// its table as fetches land.
	results := make(chan cache.Result, 256)
	sched := cache.NewScheduler(a.cache, a.fetcher, a.cfg.Cache.Workers, func(r cache.Result) {
		results <- r
	}, a.log)
	defer sched.Close()

	if forceRefresh {
		sched.ForceRefresh()
	}

	v, err := viewport.New(sched, base, overlays, center, zoom, width, height, a.log)
	if err != nil {
		return err
	}

	placements, err := v.TilesNeeded()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d tiles cover %dx%d at zoom %d (center %.5f,%.5f)\n",
		len(placements), width, height, zoom, center.Lat, center.Lon)

	// Wait for the background fetches, folding completions back into
	// the layout as they arrive.
	deadline := time.After(wait)
	for sched.Pending() > 0 {
		select {
		case r := <-results:
			if p, ok := v.TileReady(r); ok {
				printPlacement(p)
			}
		case <-deadline:
			fmt.Fprintf(os.Stderr, "gave up waiting with %d fetches outstanding\n", sched.Pending())
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}

	// Final state of the composition.
	placements, err = v.TilesNeeded()
	if err != nil {
		return err
	}
	for _, p := range placements {
		printPlacement(p)
	}
	if attr := base.Attribution(); attr != "" {
		fmt.Printf("# %s\n", attr)
	}
	return nil
}

func printPlacement(p viewport.Placement) {
	path := p.Path
	if path == "" {
		path = "-"
	}
	fmt.Printf("%-12s %-16s %4d,%4d %4dx%-4d %-14s %s\n",
		p.Source, p.Address,
		p.Rect.Min.X, p.Rect.Min.Y, p.Rect.Dx(), p.Rect.Dy(),
		p.Status, path)
}
