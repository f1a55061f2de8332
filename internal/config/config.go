package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface consumed by the engine.
// Values are resolved in three layers: built-in defaults, then an
// optional YAML file, then environment variable overrides.
type Config struct {
	Limits   LimitsConfig   `yaml:"limits"`
	Detector DetectorConfig `yaml:"detector"`
	Model    ModelConfig    `yaml:"model"`
	Compare  CompareConfig  `yaml:"compare"`
	Batch    BatchConfig    `yaml:"batch"`
	Audit    AuditConfig    `yaml:"audit"`
}

type LimitsConfig struct {
	MaxDocumentBytes int64          `yaml:"max_document_bytes"`
	PageTiers        map[string]int `yaml:"page_tiers"` // tier name -> max pages
	RenderDPI        int            `yaml:"render_dpi"`
}

type DetectorConfig struct {
	Variant          string  `yaml:"variant"`
	MinRegionArea    int     `yaml:"min_region_area"`
	EdgeThreshold    float64 `yaml:"edge_threshold"`
	OverlapThreshold float64 `yaml:"overlap_threshold"` // IoU above which regions dedup
}

type ModelConfig struct {
	Variant         string  `yaml:"variant"`
	Version         string  `yaml:"version"`
	ConfidenceFloor float64 `yaml:"confidence_floor"`
}

type CompareConfig struct {
	MatchThreshold   float64 `yaml:"match_threshold"`
	NoMatchThreshold float64 `yaml:"no_match_threshold"`
}

type BatchConfig struct {
	Workers       int           `yaml:"workers"`
	QueueDepth    int           `yaml:"queue_depth"`
	MaxRetries    int           `yaml:"max_retries"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffCap    time.Duration `yaml:"backoff_cap"`
	ItemTimeout   time.Duration `yaml:"item_timeout"`
	JobRetention  time.Duration `yaml:"job_retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type AuditConfig struct {
	DSN          string `yaml:"dsn"`
	WriteRetries int    `yaml:"write_retries"`
	BufferSize   int    `yaml:"buffer_size"`
}

// Default returns the engine defaults used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxDocumentBytes: 10 << 20,
			PageTiers:        map[string]int{"small": 5, "medium": 20},
			RenderDPI:        150,
		},
		Detector: DetectorConfig{
			Variant:          "contrast",
			MinRegionArea:    500,
			EdgeThreshold:    30.0,
			OverlapThreshold: 0.3,
		},
		Model: ModelConfig{
			Variant:         "heuristic",
			Version:         "fv1",
			ConfidenceFloor: 0.5,
		},
		Compare: CompareConfig{
			MatchThreshold:   0.85,
			NoMatchThreshold: 0.4,
		},
		Batch: BatchConfig{
			Workers:       runtime.NumCPU(),
			QueueDepth:    256,
			MaxRetries:    3,
			BackoffBase:   time.Second,
			BackoffCap:    30 * time.Second,
			ItemTimeout:   2 * time.Second,
			JobRetention:  time.Hour,
			SweepInterval: time.Minute,
		},
		Audit: AuditConfig{
			DSN:          "audit.db",
			WriteRetries: 3,
			BufferSize:   1024,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// and environment overrides. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env is optional; overrides still apply from the real environment.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Limits.MaxDocumentBytes = envInt64("SIGENGINE_MAX_DOCUMENT_BYTES", c.Limits.MaxDocumentBytes)
	c.Detector.Variant = envString("SIGENGINE_DETECTOR", c.Detector.Variant)
	c.Model.Variant = envString("SIGENGINE_MODEL", c.Model.Variant)
	c.Model.Version = envString("SIGENGINE_MODEL_VERSION", c.Model.Version)
	c.Model.ConfidenceFloor = envFloat("SIGENGINE_CONFIDENCE_FLOOR", c.Model.ConfidenceFloor)
	c.Compare.MatchThreshold = envFloat("SIGENGINE_MATCH_THRESHOLD", c.Compare.MatchThreshold)
	c.Compare.NoMatchThreshold = envFloat("SIGENGINE_NO_MATCH_THRESHOLD", c.Compare.NoMatchThreshold)
	c.Batch.Workers = envInt("SIGENGINE_WORKERS", c.Batch.Workers)
	c.Batch.MaxRetries = envInt("SIGENGINE_MAX_RETRIES", c.Batch.MaxRetries)
	c.Audit.DSN = envString("SIGENGINE_AUDIT_DSN", c.Audit.DSN)
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Limits.MaxDocumentBytes <= 0 {
		return fmt.Errorf("limits.max_document_bytes must be positive")
	}
	if len(c.Limits.PageTiers) == 0 {
		return fmt.Errorf("limits.page_tiers must name at least one tier")
	}
	for tier, n := range c.Limits.PageTiers {
		if n <= 0 {
			return fmt.Errorf("limits.page_tiers[%s] must be positive", tier)
		}
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive")
	}
	if c.Batch.MaxRetries < 0 {
		return fmt.Errorf("batch.max_retries must be non-negative")
	}
	if c.Compare.NoMatchThreshold > c.Compare.MatchThreshold {
		return fmt.Errorf("compare.no_match_threshold %.2f exceeds match_threshold %.2f",
			c.Compare.NoMatchThreshold, c.Compare.MatchThreshold)
	}
	if c.Model.ConfidenceFloor < 0 || c.Model.ConfidenceFloor > 1 {
		return fmt.Errorf("model.confidence_floor must be in [0,1]")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
