// cmd/root.go - Root command implementation
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pytopo",
	Short: "Tiled topographic and street map viewer core",
	Long: `Pytopo composes maps from tiled sources: online tile servers cached
on local disk, and several kinds of maps that ship as files (Topo!
regions and park sets, generic numbered tile grids). It also reads,
inspects and converts GPX and GeoJSON track files.

Examples:
  # Show the tiles covering a named site
  pytopo view san-francisco --source osm

  # Show the tiles covering a coordinate
  pytopo view --lat 37.471 --lon -122.245 --source osm --zoom 13

  # Download an area for offline use
  pytopo prefetch --source osm --bbox "-122.3,37.4,-122.1,37.6" --min-zoom 10 --max-zoom 14

  # Inspect and convert track files
  pytopo track stats hike.gpx
  pytopo track convert hike.gpx -o hike.geojson

  # List configured map sources and sites
  pytopo sources
  pytopo sites`,
	Version: "2.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/pytopo/pytopo.yaml)")
	rootCmd.PersistentFlags().String("cache-dir", "", "tile cache directory")
	rootCmd.PersistentFlags().Int("workers", 4, "background tile fetch workers")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "tile download timeout")
	rootCmd.PersistentFlags().Int("retries", 2, "tile download retry attempts")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("cache.root", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("cache.workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("network.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("network.max_retries", rootCmd.PersistentFlags().Lookup("retries"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "pytopo"))
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("pytopo")
	}

	// Environment variables
	viper.SetEnvPrefix("PYTOPO")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("logging.verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
