// cmd/track.go - Track file commands
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/akkana/pytopo/internal/output"
	"github.com/akkana/pytopo/pkg/track"
)

// trackCmd groups the track file subcommands.
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Inspect and convert GPX and GeoJSON track files",
}

var trackStatsCmd = &cobra.Command{
	Use:   "stats <file>...",
	Short: "Print length, climb and timing statistics for each track",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTrackStats,
}

var trackConvertCmd = &cobra.Command{
	Use:   "convert <file>...",
	Short: "Convert track files between GPX and GeoJSON",
	Long: `Convert one or more track files to the format implied by the output
path's extension. Multiple input files merge into one document.

Elevations and timestamps survive the conversion in both directions,
including points that never had them.

Examples:
  pytopo track convert hike.gpx -o hike.geojson
  pytopo track convert day1.gpx day2.gpx -o trip.gpx
  pytopo track convert hike.gpx -o hike.geojson --compress`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrackConvert,
}

var trackSplitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Split the first track of a file at a point index",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrackSplit,
}

var trackSimplifyCmd = &cobra.Command{
	Use:   "simplify <file>",
	Short: "Reduce track points geometrically",
	Long: `Reduce the number of track points with Douglas-Peucker
simplification. Per-point elevations and timestamps are dropped, since
the surviving points no longer describe the original profile.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrackSimplify,
}

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.AddCommand(trackStatsCmd, trackConvertCmd, trackSplitCmd, trackSimplifyCmd)

	trackConvertCmd.Flags().StringP("output", "o", "", "output file path (default: GeoJSON to stdout)")
	trackConvertCmd.Flags().Bool("compress", false, "gzip the output")
	trackConvertCmd.Flags().Bool("scrub-times", false, "repair bogus GPS timestamps before writing")

	trackSplitCmd.Flags().Int("at", 0, "point index to split at (must be interior)")
	trackSplitCmd.Flags().StringP("output", "o", "", "output file path (default: GeoJSON to stdout)")
	trackSplitCmd.MarkFlagRequired("at")

	trackSimplifyCmd.Flags().Float64("tolerance", 10, "simplification tolerance in meters")
	trackSimplifyCmd.Flags().StringP("output", "o", "", "output file path (default: GeoJSON to stdout)")
}

func runTrackStats(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		doc, err := track.ReadFile(path)
		if err != nil {
			return err
		}
		for _, t := range doc.Tracks {
			printStats(t)
		}
		if len(doc.Waypoints) > 0 {
			fmt.Printf("%s: %d waypoints\n", path, len(doc.Waypoints))
		}
	}
	return nil
}

func printStats(t *track.Track) {
	s := t.Stats()
	fmt.Printf("%s:\n", t.Name)
	fmt.Printf("  points:      %d\n", s.Points)
	fmt.Printf("  length:      %.2f km\n", s.Length/1000)
	if s.HasElevation {
		fmt.Printf("  climb:       %.0f m\n", s.Climb)
		fmt.Printf("  descent:     %.0f m\n", s.Descent)
		fmt.Printf("  elevation:   %.0f..%.0f m\n", s.MinElevation, s.MaxElevation)
	}
	if s.HasTime {
		fmt.Printf("  total time:  %v\n", s.TotalTime.Round(time.Second))
		fmt.Printf("  moving time: %v\n", s.MovingTime.Round(time.Second))
		fmt.Printf("  max speed:   %.1f km/h\n", s.MaxSpeed*3.6)
	}
}

func runTrackConvert(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	compress, _ := cmd.Flags().GetBool("compress")
	scrub, _ := cmd.Flags().GetBool("scrub-times")

	merged := &track.Document{}
	for _, path := range args {
		doc, err := track.ReadFile(path)
		if err != nil {
			return err
		}
		merged.Tracks = append(merged.Tracks, doc.Tracks...)
		merged.Waypoints = append(merged.Waypoints, doc.Waypoints...)
		merged.Overlays = append(merged.Overlays, doc.Overlays...)
	}

	if scrub {
		for _, t := range merged.Tracks {
			t.ScrubTimes()
		}
	}

	return writeTracks(merged, outputPath, compress)
}

func runTrackSplit(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetInt("at")
	outputPath, _ := cmd.Flags().GetString("output")

	doc, err := track.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(doc.Tracks) == 0 {
		return fmt.Errorf("%s contains no tracks", args[0])
	}

	first, second, err := doc.Tracks[0].Split(at)
	if err != nil {
		return err
	}
	doc.Tracks = append([]*track.Track{first, second}, doc.Tracks[1:]...)

	fmt.Fprintf(os.Stderr, "Split %q at point %d: %d + %d points\n",
		args[0], at, len(first.Points), len(second.Points))
	return writeTracks(doc, outputPath, false)
}

func runTrackSimplify(cmd *cobra.Command, args []string) error {
	tolerance, _ := cmd.Flags().GetFloat64("tolerance")
	outputPath, _ := cmd.Flags().GetString("output")

	doc, err := track.ReadFile(args[0])
	if err != nil {
		return err
	}

	before, after := 0, 0
	for i, t := range doc.Tracks {
		before += len(t.Points)
		doc.Tracks[i] = t.Simplify(tolerance)
		after += len(doc.Tracks[i].Points)
	}
	fmt.Fprintf(os.Stderr, "Simplified %d points to %d (tolerance %.1f m)\n",
		before, after, tolerance)
	return writeTracks(doc, outputPath, false)
}

// writeTracks serializes a document to the output path, picking the
// format from its extension; empty path means GeoJSON on stdout.
func writeTracks(doc *track.Document, path string, compress bool) error {
	format := track.FormatGeoJSON
	if path != "" && path != "-" {
		f, err := track.FormatForPath(path)
		if err != nil {
			return err
		}
		format = f
	}
	return output.WriteDocument(doc, format, path, compress)
}
