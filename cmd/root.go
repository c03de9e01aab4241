package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/ndviloom-cli/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile     string
	debug       bool
	flagDataDir string

	// Loaded configuration
	cfg *cfgpkg.Global
	// cfgErr keeps the load failure for commands that need a config.
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "ndviloom",
	Short: "NDVI Loom: join remote-sensing exports and model NDVI from climate covariates",
	Long: `NDVI Loom joins monthly Earth Engine exports for regions of Turkey (NDVI, temperature,
VV backscatter, precipitation, soil moisture and humidity) with yearly land cover,
fits a linear model predicting mean NDVI and reports fit diagnostics and plots.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(setupLogging, loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.ndviloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding the input exports (overrides config)")
}

func setupLogging() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config commands may still repair the file
		cfg, cfgErr = nil, err
		log.WithError(err).Debug("config load failed")
		return
	}
	cfg, cfgErr = c, nil

	if rootCmd.PersistentFlags().Changed("data-dir") && flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
}

// requireConfig returns the loaded config or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("load config: %w", cfgErr)
		}
		return nil, fmt.Errorf("no config loaded")
	}
	return cfg, nil
}
