// config.go: settings tree and loading for the landcover pipeline
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the root of the configuration tree.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Landcover LandcoverSettings    `mapstructure:"dea_annual_landcover" yaml:"dea_annual_landcover"`
	Logging   logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Sentry    SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
	Metrics   MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Publish   PublishSettings      `mapstructure:"publish" yaml:"publish"`
	Boundary  BoundarySettings     `mapstructure:"boundary" yaml:"boundary"`
	Trend     TrendSettings        `mapstructure:"trend" yaml:"trend"`
}

// LandcoverSettings holds the annual land-cover processing profile.
type LandcoverSettings struct {
	ProductID  string            `mapstructure:"product_id" yaml:"product_id"`
	StartYear  int               `mapstructure:"start_year" yaml:"start_year"`
	EndYear    int               `mapstructure:"end_year" yaml:"end_year"`
	CRS        string            `mapstructure:"crs" yaml:"crs"`               // target CRS, e.g. EPSG:3577
	Resolution float64           `mapstructure:"resolution" yaml:"resolution"` // metres per cell
	OutputDir  string            `mapstructure:"output_dir" yaml:"output_dir"`
	AOIPaths   map[string]string `mapstructure:"aoi_paths" yaml:"aoi_paths"` // state code -> boundary GeoJSON
	States     []string          `mapstructure:"states" yaml:"states"`       // states processed by "run --state all"
	ClassesMap ClassesMap        `mapstructure:"classes_map" yaml:"classes_map"`
	Scheme     string            `mapstructure:"scheme" yaml:"scheme"` // ternary or binary

	STAC       STACSettings       `mapstructure:"stac" yaml:"stac"`
	Cube       CubeSettings       `mapstructure:"cube" yaml:"cube"`
	Synthetic  SyntheticSettings  `mapstructure:"synthetic" yaml:"synthetic"`
	Processing ProcessingSettings `mapstructure:"processing" yaml:"processing"`
	Animation  AnimationSettings  `mapstructure:"animation" yaml:"animation"`
}

// ClassesMap lists source class codes per output bucket.
type ClassesMap struct {
	Woody    []int32 `mapstructure:"woody" yaml:"woody"`
	NonWoody []int32 `mapstructure:"non_woody" yaml:"non_woody"`
	Other    []int32 `mapstructure:"other" yaml:"other"`
}

// STACSettings configures the catalog strategy.
type STACSettings struct {
	Enabled                bool          `mapstructure:"enabled" yaml:"enabled"`
	CatalogURL             string        `mapstructure:"catalog_url" yaml:"catalog_url"`
	Collection             string        `mapstructure:"collection" yaml:"collection"` // defaults to product_id
	Asset                  string        `mapstructure:"asset" yaml:"asset"`           // asset key holding the class band
	Limit                  int           `mapstructure:"limit" yaml:"limit"`           // items per search page
	Timeout                time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries             int           `mapstructure:"max_retries" yaml:"max_retries"` // extra attempts on 429/5xx, -1 disables
	RateLimit              float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	CacheTTL               time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxConcurrentDownloads int           `mapstructure:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
}

// CubeSettings configures the local cube strategy and its index database.
type CubeSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Driver  string `mapstructure:"driver" yaml:"driver"` // sqlite or mysql
	Path    string `mapstructure:"path" yaml:"path"`     // sqlite database file
	DSN     string `mapstructure:"dsn" yaml:"dsn"`       // mysql data source name
}

// SyntheticSettings configures the last-resort synthetic strategy.
type SyntheticSettings struct {
	Enabled  bool    `mapstructure:"enabled" yaml:"enabled"`
	Alphabet []int32 `mapstructure:"alphabet" yaml:"alphabet"`
	Seed     uint64  `mapstructure:"seed" yaml:"seed"` // 0 means random
}

// ProcessingSettings holds raster processing parameters.
type ProcessingSettings struct {
	BufferDistance    float64 `mapstructure:"buffer_distance" yaml:"buffer_distance"` // metres
	ChunkSize         int     `mapstructure:"chunk_size" yaml:"chunk_size"`
	NodataValue       int     `mapstructure:"nodata_value" yaml:"nodata_value"`
	Compression       string  `mapstructure:"compression" yaml:"compression"` // lzw, deflate or none
	RequireRealData   bool    `mapstructure:"require_real_data" yaml:"require_real_data"`
	MaxMemoryFraction float64 `mapstructure:"max_memory_fraction" yaml:"max_memory_fraction"`
}

// AnimationSettings configures the per-state animation.
type AnimationSettings struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	FPS        float64 `mapstructure:"fps" yaml:"fps"`
	Loop       int     `mapstructure:"loop" yaml:"loop"`     // 0 loops forever
	Format     string  `mapstructure:"format" yaml:"format"` // gif or mp4
	FFmpegPath string  `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// MetricsSettings configures Prometheus metrics.
type MetricsSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // node-exporter textfile written at the end of a run
}

// PublishSettings configures artifact upload to S3-compatible storage.
type PublishSettings struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Region       string `mapstructure:"region" yaml:"region"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	// Keys may be literal, ${ENV} references, or read from the *_file paths.
	AccessKey     string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey     string `mapstructure:"secret_key" yaml:"secret_key"`
	AccessKeyFile string `mapstructure:"access_key_file" yaml:"access_key_file"`
	SecretKeyFile string `mapstructure:"secret_key_file" yaml:"secret_key_file"`
}

// BoundarySettings configures the boundary fetch command.
type BoundarySettings struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	OutputDir string        `mapstructure:"output_dir" yaml:"output_dir"`
}

// TrendSettings configures change statistics in the run summary.
type TrendSettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Baseline    []int   `mapstructure:"baseline" yaml:"baseline"`     // [start, end] years
	Comparison  []int   `mapstructure:"comparison" yaml:"comparison"` // [start, end] years
	Threshold   float64 `mapstructure:"threshold" yaml:"threshold"`   // percent drop flagged as clearing
	MinDuration int     `mapstructure:"min_duration" yaml:"min_duration"`
}

// Years returns the configured inclusive year range.
func (l *LandcoverSettings) Years() []int {
	if l.EndYear < l.StartYear {
		return nil
	}
	years := make([]int, 0, l.EndYear-l.StartYear+1)
	for y := l.StartYear; y <= l.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables. An empty
// configPath searches SearchPaths and writes the embedded default
// config on first run; an explicit path that does not exist is an error.
func Load(configPath string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configPath); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, binds the environment and reads the config file.
func initViper(configPath string) error {
	setDefaultConfig()

	if err := bindEnvironment(); err != nil {
		// Invalid env values are reported but do not block startup
		logger.Global().Module("configuration").Warn("environment variable issues", logger.Error(err))
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Context("operation", "stat-config-file").
				Context("path", configPath).
				Build()
		}
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configPath, err)
		}
		return nil
	}

	configPaths, err := SearchPaths()
	if err != nil {
		return err
	}
	for _, dir := range configPaths {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			viper.SetConfigFile(candidate)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("fatal error reading config file %s: %w", candidate, err)
			}
			return nil
		}
	}

	// first run: materialise the defaults in the most specific directory
	return createDefaultConfig(configPaths[0])
}

// createDefaultConfig writes the embedded default config into dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, ConfigFileName)
	data, err := DefaultConfigYAML()
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-dir").
			Build()
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil { //nolint:gosec // config is not secret by default
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("operation", "write-default-config").
			Build()
	}

	logger.Global().Module("configuration").Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// DefaultConfigYAML returns the embedded default configuration.
func DefaultConfigYAML() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath via a temporary file and rename.
// Comments and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
