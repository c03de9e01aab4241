package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Files names the six input tables, relative to DataDir unless absolute.
type Files struct {
	NDVI          string `mapstructure:"ndvi" yaml:"ndvi"`
	Temperature   string `mapstructure:"temperature" yaml:"temperature"`
	VV            string `mapstructure:"vv" yaml:"vv"`
	Precipitation string `mapstructure:"precipitation" yaml:"precipitation"`
	SoilHumidity  string `mapstructure:"soil_humidity" yaml:"soil_humidity"`
	LandCover     string `mapstructure:"land_cover" yaml:"land_cover"`
}

// Global configuration structure.
type Global struct {
	DataDir            string  `mapstructure:"data_dir" yaml:"data_dir"`
	PlotsDir           string  `mapstructure:"plots_dir" yaml:"plots_dir"`
	GeoColumnSubstring string  `mapstructure:"geo_column_substring" yaml:"geo_column_substring"`
	TestSize           float64 `mapstructure:"test_size" yaml:"test_size"`
	Seed               int64   `mapstructure:"seed" yaml:"seed"`
	StrictKeys         bool    `mapstructure:"strict_keys" yaml:"strict_keys"`
	SamplePredictions  int     `mapstructure:"sample_predictions" yaml:"sample_predictions"`

	// Plot canvas size in inches
	PlotWidthIn  float64 `mapstructure:"plot_width_in" yaml:"plot_width_in"`
	PlotHeightIn float64 `mapstructure:"plot_height_in" yaml:"plot_height_in"`

	Files Files `mapstructure:"files" yaml:"files"`
}

// DefaultFiles returns the export names produced by the Earth Engine scripts.
func DefaultFiles() Files {
	return Files{
		NDVI:          "Turkey_Monthly_Mean_NDVI_Sentinel2_2016_2020.csv",
		Temperature:   "Turkey_Monthly_Mean_Temperature_2016_2020.csv",
		VV:            "Turkey_Monthly_Sentinel1_VV_2016_2020.csv",
		Precipitation: "Turkey_Monthly_Mean_Precip_2016_2020.csv",
		SoilHumidity:  "Turkey_GLDAS_Soil_And_Humidity_2016_2020.csv",
		LandCover:     "Turkey_Yearly_LandCover_2016_2020.csv",
	}
}

// Default returns the configuration used when nothing else is set.
func Default() *Global {
	return &Global{
		DataDir:            ".",
		PlotsDir:           "plots",
		GeoColumnSubstring: ".geo",
		TestSize:           0.2,
		Seed:               42,
		SamplePredictions:  5,
		PlotWidthIn:        8,
		PlotHeightIn:       6,
		Files:              DefaultFiles(),
	}
}

// Dir returns the per-user config directory (~/.ndviloom).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ndviloom"), nil
}

// File returns cfgFile, or ~/.ndviloom/config.yaml when it is empty.
func File(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.ndviloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := File(cfgFile)
	if err != nil {
		return err
	}
	if cfgFile == "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadStored reads the saved file over the defaults. Environment values and
// flags are not applied, and the result is not validated so a bad value can
// still be overwritten. A missing file yields the defaults.
func LoadStored(cfgFile string) (*Global, error) {
	path, err := File(cfgFile)
	if err != nil {
		return nil, err
	}
	c := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env (.env included) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// .env in the working directory is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("NDVILOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("plots_dir", d.PlotsDir)
	v.SetDefault("geo_column_substring", d.GeoColumnSubstring)
	v.SetDefault("test_size", d.TestSize)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("strict_keys", d.StrictKeys)
	v.SetDefault("sample_predictions", d.SamplePredictions)
	v.SetDefault("plot_width_in", d.PlotWidthIn)
	v.SetDefault("plot_height_in", d.PlotHeightIn)
	v.SetDefault("files.ndvi", d.Files.NDVI)
	v.SetDefault("files.temperature", d.Files.Temperature)
	v.SetDefault("files.vv", d.Files.VV)
	v.SetDefault("files.precipitation", d.Files.Precipitation)
	v.SetDefault("files.soil_humidity", d.Files.SoilHumidity)
	v.SetDefault("files.land_cover", d.Files.LandCover)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Global) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("invalid test_size %v: must be in (0, 1)", c.TestSize)
	}
	if c.PlotWidthIn <= 0 || c.PlotHeightIn <= 0 {
		return fmt.Errorf("invalid plot size %vx%v", c.PlotWidthIn, c.PlotHeightIn)
	}
	return nil
}

// Path resolves a configured file name against DataDir.
func (c *Global) Path(name string) string {
	if filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
