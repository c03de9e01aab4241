package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/ndviloom-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set NDVI Loom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data_dir: %s\n", c.DataDir)
		fmt.Fprintf(out, "plots_dir: %s\n", c.PlotsDir)
		fmt.Fprintf(out, "geo_column_substring: %s\n", c.GeoColumnSubstring)
		fmt.Fprintf(out, "test_size: %.3f\n", c.TestSize)
		fmt.Fprintf(out, "seed: %d\n", c.Seed)
		fmt.Fprintf(out, "strict_keys: %t\n", c.StrictKeys)
		fmt.Fprintf(out, "sample_predictions: %d\n", c.SamplePredictions)
		fmt.Fprintf(out, "plot_width_in: %.2f\n", c.PlotWidthIn)
		fmt.Fprintf(out, "plot_height_in: %.2f\n", c.PlotHeightIn)
		fmt.Fprintf(out, "files.ndvi: %s\n", c.Files.NDVI)
		fmt.Fprintf(out, "files.temperature: %s\n", c.Files.Temperature)
		fmt.Fprintf(out, "files.vv: %s\n", c.Files.VV)
		fmt.Fprintf(out, "files.precipitation: %s\n", c.Files.Precipitation)
		fmt.Fprintf(out, "files.soil_humidity: %s\n", c.Files.SoilHumidity)
		fmt.Fprintf(out, "files.land_cover: %s\n", c.Files.LandCover)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// only the stored file is edited; env and --data-dir stay one-off
		c, err := cfgpkg.LoadStored(cfgFile)
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "data_dir":
		c.DataDir = val
	case "plots_dir":
		c.PlotsDir = val
	case "geo_column_substring":
		c.GeoColumnSubstring = val
	case "test_size":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for test_size: %w", err)
		}
		c.TestSize = f
	case "seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for seed: %w", err)
		}
		c.Seed = i
	case "strict_keys":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for strict_keys: %w", err)
		}
		c.StrictKeys = b
	case "sample_predictions":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for sample_predictions: %v", val)
		}
		c.SamplePredictions = i
	case "plot_width_in", "plot_height_in":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %w", key, err)
		}
		if key == "plot_width_in" {
			c.PlotWidthIn = f
		} else {
			c.PlotHeightIn = f
		}
	default:
		name, ok := strings.CutPrefix(key, "files.")
		if !ok {
			return fmt.Errorf("unknown key: %s", key)
		}
		switch name {
		case "ndvi":
			c.Files.NDVI = val
		case "temperature":
			c.Files.Temperature = val
		case "vv":
			c.Files.VV = val
		case "precipitation":
			c.Files.Precipitation = val
		case "soil_humidity":
			c.Files.SoilHumidity = val
		case "land_cover":
			c.Files.LandCover = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
