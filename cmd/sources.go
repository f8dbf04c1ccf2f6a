// cmd/sources.go - Source and site listing commands
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/akkana/pytopo/internal/tile"
	"github.com/akkana/pytopo/pkg/geo"
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured map sources",
	RunE:  runSources,
}

// sitesCmd represents the sites command
var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the configured named sites",
	RunE:  runSites,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(sitesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if len(a.sources) == 0 {
		fmt.Println("No map sources configured.")
		return nil
	}

	names := make([]string, 0, len(a.sources))
	for name := range a.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := a.sources[name]
		minZ, maxZ := src.ZoomRange()
		w, h := src.TileSize()
		kind := "online"
		if _, fetchable := src.FetchTarget(tile.Address{Z: minZ}); !fetchable {
			kind = "local"
		}
		fmt.Printf("%-16s %-7s zoom %d..%d  %dx%d", name, kind, minZ, maxZ, w, h)
		if attr := src.Attribution(); attr != "" {
			fmt.Printf("  (%s)", attr)
		}
		fmt.Println()
	}
	return nil
}

func runSites(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if len(a.cfg.Sites) == 0 {
		fmt.Println("No sites configured.")
		return nil
	}
	for _, s := range a.cfg.Sites {
		fmt.Printf("%-20s %9.5f,%10.5f  (%s %s)",
			s.Name, s.Lat, s.Lon, geo.DegMinString(s.Lat), geo.DegMinString(s.Lon))
		if s.Source != "" {
			fmt.Printf("  source=%s", s.Source)
		}
		if s.Zoom != 0 {
			fmt.Printf("  zoom=%d", s.Zoom)
		}
		fmt.Println()
	}
	return nil
}
