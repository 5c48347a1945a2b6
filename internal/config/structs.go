//nolint:lll
package config

// Config represents the complete configuration of feedocr. It covers every
// command (parse, batch, serve, worker, enqueue) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// OCR engine and ingestion
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Stage tunables
	Alignment AlignmentConfig `mapstructure:"alignment" yaml:"alignment" json:"alignment"`
	Dedup     DedupConfig     `mapstructure:"dedup" yaml:"dedup" json:"dedup"`
	Layout    LayoutConfig    `mapstructure:"layout" yaml:"layout" json:"layout"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Persistence of parsed documents
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Queue configuration (for worker and enqueue commands)
	Queue QueueConfig `mapstructure:"queue" yaml:"queue" json:"queue"`
}

// OCRConfig selects the engine and how its detections are ingested.
type OCRConfig struct {
	Engine          string         `mapstructure:"engine" yaml:"engine" json:"engine"`
	Languages       []string       `mapstructure:"languages" yaml:"languages" json:"languages"`
	Level           string         `mapstructure:"level" yaml:"level" json:"level"`
	Workers         int            `mapstructure:"workers" yaml:"workers" json:"workers"`
	MinConfidence   float64        `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	CredentialsFile string         `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
	DetectionsDir   string         `mapstructure:"detections_dir" yaml:"detections_dir" json:"detections_dir"`
	Viewport        ViewportConfig `mapstructure:"viewport" yaml:"viewport" json:"viewport"`
	Cache           CacheConfig    `mapstructure:"cache" yaml:"cache" json:"cache"`
}

// ViewportConfig is the content area of a screenshot.
type ViewportConfig struct {
	X1      float64 `mapstructure:"x1" yaml:"x1" json:"x1"`
	X2      float64 `mapstructure:"x2" yaml:"x2" json:"x2"`
	Y1      float64 `mapstructure:"y1" yaml:"y1" json:"y1"`
	Y2      float64 `mapstructure:"y2" yaml:"y2" json:"y2"`
	Enabled bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// CacheConfig controls the Redis cache of engine results.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	TTL      string `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// AlignmentConfig tunes anchor matching between consecutive screenshots.
type AlignmentConfig struct {
	MinSimilarity float64 `mapstructure:"min_similarity" yaml:"min_similarity" json:"min_similarity"`
	MaxXDelta     float64 `mapstructure:"max_x_delta" yaml:"max_x_delta" json:"max_x_delta"`
}

// DedupConfig tunes duplicate removal.
type DedupConfig struct {
	MinRatio float64 `mapstructure:"min_ratio" yaml:"min_ratio" json:"min_ratio"`
}

// LayoutConfig selects the locale markers and parser tolerances.
type LayoutConfig struct {
	Locale          string  `mapstructure:"locale" yaml:"locale" json:"locale"`
	MarkersFile     string  `mapstructure:"markers_file" yaml:"markers_file" json:"markers_file"`
	RowTolerance    float64 `mapstructure:"row_tolerance" yaml:"row_tolerance" json:"row_tolerance"`
	BoundaryMargin  float64 `mapstructure:"boundary_margin" yaml:"boundary_margin" json:"boundary_margin"`
	HeightTolerance float64 `mapstructure:"height_tolerance" yaml:"height_tolerance" json:"height_tolerance"`
	XTolerance      float64 `mapstructure:"x_tolerance" yaml:"x_tolerance" json:"x_tolerance"`
}

// OutputConfig contains output settings.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Annotate    bool   `mapstructure:"annotate" yaml:"annotate" json:"annotate"`
	BoxColor    string `mapstructure:"box_color" yaml:"box_color" json:"box_color"`
	RegionColor string `mapstructure:"region_color" yaml:"region_color" json:"region_color"`
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	File        string `mapstructure:"file" yaml:"file" json:"file"`
}

// StorageConfig selects where parsed documents are saved.
type StorageConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Dir         string `mapstructure:"dir" yaml:"dir" json:"dir"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url" json:"database_url"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// QueueConfig contains the asynq queue settings.
type QueueConfig struct {
	RedisURL    string `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
}
