// Package config provides unified configuration loading for ocr-compare.
// Supports YAML files, .env files, environment variables and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// Config holds all configuration for ocr-compare.
type Config struct {
	Engines       EnginesConfig       `yaml:"engines"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Rasterizer    RasterizerConfig    `yaml:"rasterizer"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Selection     SelectionConfig     `yaml:"selection"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Progress      ProgressConfig      `yaml:"progress"`
	Storage       StorageConfig       `yaml:"storage"`
	Batch         BatchConfig         `yaml:"batch"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// EnginesConfig holds the requested engine set and per-backend settings.
type EnginesConfig struct {
	Requested   []string                  `yaml:"requested"`
	Languages   []string                  `yaml:"languages"`
	UseGPU      bool                      `yaml:"use_gpu"`
	CallTimeout time.Duration             `yaml:"call_timeout"`
	Tesseract   TesseractConfig           `yaml:"tesseract"`
	Readers     map[string]EndpointConfig `yaml:"readers"` // easyocr, paddleocr
	Cloud       map[string]EndpointConfig `yaml:"cloud"`   // azure, google, aws
}

// TesseractConfig holds gosseract settings.
type TesseractConfig struct {
	PageSegMode int `yaml:"page_seg_mode"`
}

// EndpointConfig points an HTTP-backed engine at its service.
type EndpointConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// ClassifierConfig holds the scanned-page heuristics.
type ClassifierConfig struct {
	TextThreshold    int     `yaml:"text_threshold"`
	ScannedThreshold float64 `yaml:"scanned_threshold"`
}

// RasterizerConfig holds page rendering settings.
type RasterizerConfig struct {
	DPI          float64 `yaml:"dpi"`
	JPEGQuality  int     `yaml:"jpeg_quality"`
	KeepImages   bool    `yaml:"keep_images"`
	Preview      bool    `yaml:"preview"`
	PreviewScale float64 `yaml:"preview_scale"`
}

// OrchestratorConfig holds extraction pipeline settings.
type OrchestratorConfig struct {
	Workers      int    `yaml:"workers"`
	OutputDir    string `yaml:"output_dir"`
	SaveMarkdown bool   `yaml:"save_markdown"`
}

// SelectionConfig holds the best-result scoring knobs.
type SelectionConfig struct {
	ConfidenceWeight float64 `yaml:"confidence_weight"`
	LengthWeight     float64 `yaml:"length_weight"`
	LengthNormalizer int     `yaml:"length_normalizer"`
}

// AnalysisConfig holds the recommendation scoring knobs.
type AnalysisConfig struct {
	ConfidenceWeight     float64            `yaml:"confidence_weight"`
	SpeedWeight          float64            `yaml:"speed_weight"`
	SuccessWeight        float64            `yaml:"success_weight"`
	CostWeight           float64            `yaml:"cost_weight"`
	SpeedNormalizer      float64            `yaml:"speed_normalizer"`
	CostNormalizer       float64            `yaml:"cost_normalizer"`
	ComputeCostPerSecond float64            `yaml:"compute_cost_per_second"`
	Pricing              map[string]float64 `yaml:"pricing"`
	HighConfidence       float64            `yaml:"high_confidence"`
	FastCharsPerSecond   float64            `yaml:"fast_chars_per_second"`
	HighReliability      float64            `yaml:"high_reliability"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds parse cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ProgressConfig selects where progress notifications go.
type ProgressConfig struct {
	Driver  string `yaml:"driver"` // log or redis
	Channel string `yaml:"channel"`
}

// StorageConfig holds on-disk locations used by the document service.
type StorageConfig struct {
	DataDir   string `yaml:"data_dir"`
	UploadDir string `yaml:"upload_dir"`
	ExportDir string `yaml:"export_dir"`
}

// BatchConfig holds benchmark run defaults.
type BatchConfig struct {
	OutputDir  string   `yaml:"output_dir"`
	Extensions []string `yaml:"extensions"`
	WriteXLSX  bool     `yaml:"write_xlsx"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("validate config", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Engines: EnginesConfig{
			Requested:   []string{"easyocr", "paddleocr", "tesseract"},
			Languages:   []string{"en"},
			UseGPU:      true,
			CallTimeout: 120 * time.Second,
			Tesseract:   TesseractConfig{PageSegMode: 3},
			Readers:     map[string]EndpointConfig{},
			Cloud:       map[string]EndpointConfig{},
		},
		Classifier: ClassifierConfig{
			TextThreshold:    100,
			ScannedThreshold: 0.3,
		},
		Rasterizer: RasterizerConfig{
			DPI:          200,
			JPEGQuality:  95,
			KeepImages:   true,
			Preview:      false,
			PreviewScale: 0.15,
		},
		Orchestrator: OrchestratorConfig{
			Workers:      2,
			OutputDir:    "output",
			SaveMarkdown: true,
		},
		Selection: SelectionConfig{
			ConfidenceWeight: 0.8,
			LengthWeight:     0.2,
			LengthNormalizer: 2000,
		},
		Analysis: AnalysisConfig{
			ConfidenceWeight:     0.4,
			SpeedWeight:          0.3,
			SuccessWeight:        0.2,
			CostWeight:           0.1,
			SpeedNormalizer:      1000,
			CostNormalizer:       1000,
			ComputeCostPerSecond: 0.0001,
			Pricing: map[string]float64{
				"tesseract":  0,
				"easyocr":    0,
				"paddleocr":  0,
				"pdftext":    0,
				"pdfplumber": 0,
				"azure":      0.001,
				"google":     0.0015,
				"aws":        0.001,
			},
			HighConfidence:     0.9,
			FastCharsPerSecond: 1000,
			HighReliability:    0.95,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "data/ocr-compare.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "none",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "ocr:",
			},
		},
		Progress: ProgressConfig{
			Driver:  "log",
			Channel: "progress",
		},
		Storage: StorageConfig{
			DataDir:   "data",
			UploadDir: "data/uploads",
			ExportDir: "data/exports",
		},
		Batch: BatchConfig{
			OutputDir:  "benchmark_results",
			Extensions: []string{".pdf", ".jpg", ".jpeg", ".png", ".tiff", ".bmp"},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "ocr-compare",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Engines.Requested) == 0 {
		return fmt.Errorf("at least one engine must be requested")
	}

	if c.Engines.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must not be negative")
	}

	if c.Classifier.TextThreshold < 0 {
		return fmt.Errorf("text_threshold must not be negative")
	}

	if c.Classifier.ScannedThreshold < 0 || c.Classifier.ScannedThreshold > 1 {
		return fmt.Errorf("scanned_threshold must be between 0 and 1")
	}

	if c.Rasterizer.DPI <= 0 {
		return fmt.Errorf("invalid dpi: %v", c.Rasterizer.DPI)
	}

	if c.Rasterizer.JPEGQuality < 1 || c.Rasterizer.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}

	if c.Rasterizer.PreviewScale <= 0 || c.Rasterizer.PreviewScale > 1 {
		return fmt.Errorf("preview_scale must be in (0, 1]")
	}

	if c.Orchestrator.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Selection.LengthNormalizer < 1 {
		return fmt.Errorf("length_normalizer must be positive")
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Progress.Driver != "log" && c.Progress.Driver != "redis" {
		return fmt.Errorf("invalid progress driver: %s", c.Progress.Driver)
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OCR_ENGINES"); v != "" {
		cfg.Engines.Requested = SplitList([]string{v})
	}

	if v := os.Getenv("OCR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.Workers = n
		}
	}

	if v := os.Getenv("OCR_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engines.CallTimeout = d
		}
	}

	if v := os.Getenv("OCR_USE_GPU"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engines.UseGPU = b
		}
	}

	if cfg.Engines.Readers == nil {
		cfg.Engines.Readers = map[string]EndpointConfig{}
	}
	if cfg.Engines.Cloud == nil {
		cfg.Engines.Cloud = map[string]EndpointConfig{}
	}
	setEndpoint(cfg.Engines.Readers, "easyocr", os.Getenv("EASYOCR_ENDPOINT"), "")
	setEndpoint(cfg.Engines.Readers, "paddleocr", os.Getenv("PADDLEOCR_ENDPOINT"), "")
	setEndpoint(cfg.Engines.Cloud, "azure", os.Getenv("AZURE_VISION_ENDPOINT"), os.Getenv("AZURE_VISION_KEY"))
	setEndpoint(cfg.Engines.Cloud, "google", os.Getenv("GOOGLE_VISION_ENDPOINT"), os.Getenv("GOOGLE_VISION_KEY"))
	setEndpoint(cfg.Engines.Cloud, "aws", os.Getenv("AWS_TEXTRACT_ENDPOINT"), os.Getenv("AWS_TEXTRACT_KEY"))

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		// Parse redis://host:port format
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
		if cfg.Cache.Driver == "none" {
			cfg.Cache.Driver = "redis"
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
		cfg.Storage.UploadDir = filepath.Join(v, "uploads")
		cfg.Storage.ExportDir = filepath.Join(v, "exports")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func setEndpoint(m map[string]EndpointConfig, name, endpoint, key string) {
	if endpoint == "" && key == "" {
		return
	}
	ec := m[name]
	if endpoint != "" {
		ec.Endpoint = endpoint
	}
	if key != "" {
		ec.APIKey = key
	}
	m[name] = ec
}

// SplitList flattens list values given as repeated flags, comma-separated or
// space-separated strings. Empty items are dropped; order is kept.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		fields := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		out = append(out, fields...)
	}
	return out
}
