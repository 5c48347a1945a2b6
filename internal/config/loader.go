package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "feedocr"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "FEEDOCR"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader around v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from a specific file path. An empty
// path searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	config, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine when searching, we use defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// FEEDOCR_OCR_CACHE_REDIS_URL maps to ocr.cache.redis_url
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	// OCR defaults
	l.v.SetDefault("ocr.engine", defaults.OCR.Engine)
	l.v.SetDefault("ocr.languages", defaults.OCR.Languages)
	l.v.SetDefault("ocr.level", defaults.OCR.Level)
	l.v.SetDefault("ocr.workers", defaults.OCR.Workers)
	l.v.SetDefault("ocr.min_confidence", defaults.OCR.MinConfidence)
	l.v.SetDefault("ocr.credentials_file", defaults.OCR.CredentialsFile)
	l.v.SetDefault("ocr.detections_dir", defaults.OCR.DetectionsDir)
	l.v.SetDefault("ocr.viewport.x1", defaults.OCR.Viewport.X1)
	l.v.SetDefault("ocr.viewport.x2", defaults.OCR.Viewport.X2)
	l.v.SetDefault("ocr.viewport.y1", defaults.OCR.Viewport.Y1)
	l.v.SetDefault("ocr.viewport.y2", defaults.OCR.Viewport.Y2)
	l.v.SetDefault("ocr.viewport.enabled", defaults.OCR.Viewport.Enabled)
	l.v.SetDefault("ocr.cache.enabled", defaults.OCR.Cache.Enabled)
	l.v.SetDefault("ocr.cache.redis_url", defaults.OCR.Cache.RedisURL)
	l.v.SetDefault("ocr.cache.ttl", defaults.OCR.Cache.TTL)

	// Stage defaults
	l.v.SetDefault("alignment.min_similarity", defaults.Alignment.MinSimilarity)
	l.v.SetDefault("alignment.max_x_delta", defaults.Alignment.MaxXDelta)
	l.v.SetDefault("dedup.min_ratio", defaults.Dedup.MinRatio)
	l.v.SetDefault("layout.locale", defaults.Layout.Locale)
	l.v.SetDefault("layout.markers_file", defaults.Layout.MarkersFile)
	l.v.SetDefault("layout.row_tolerance", defaults.Layout.RowTolerance)
	l.v.SetDefault("layout.boundary_margin", defaults.Layout.BoundaryMargin)
	l.v.SetDefault("layout.height_tolerance", defaults.Layout.HeightTolerance)
	l.v.SetDefault("layout.x_tolerance", defaults.Layout.XTolerance)

	// Output defaults
	l.v.SetDefault("output.dir", defaults.Output.Dir)
	l.v.SetDefault("output.annotate", defaults.Output.Annotate)
	l.v.SetDefault("output.box_color", defaults.Output.BoxColor)
	l.v.SetDefault("output.region_color", defaults.Output.RegionColor)
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)

	// Storage defaults
	l.v.SetDefault("storage.backend", defaults.Storage.Backend)
	l.v.SetDefault("storage.dir", defaults.Storage.Dir)
	l.v.SetDefault("storage.database_url", defaults.Storage.DatabaseURL)

	// Batch defaults
	l.v.SetDefault("batch.workers", defaults.Batch.Workers)
	l.v.SetDefault("batch.continue_on_error", defaults.Batch.ContinueOnError)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	// Queue defaults
	l.v.SetDefault("queue.redis_url", defaults.Queue.RedisURL)
	l.v.SetDefault("queue.name", defaults.Queue.Name)
	l.v.SetDefault("queue.concurrency", defaults.Queue.Concurrency)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfig writes cfg as YAML.
func WriteConfig(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	f, err := os.Create(filename) //nolint:gosec // user-chosen output path
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if err := WriteConfig(f, DefaultConfig()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	paths = append(paths, "/etc/feedocr")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "feedocr"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "feedocr"))
	}
	return paths
}

// PrintConfigInfo prints information about configuration loading for debugging.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
