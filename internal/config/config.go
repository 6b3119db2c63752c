package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/insightstack/insight-engine/internal/models"
)

// Config captures the settings required to boot the insight engine.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Engine  EngineConfig   `yaml:"engine"`
	Store   StoreConfig    `yaml:"store"`
	Cache   CacheConfig    `yaml:"cache"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics []MetricConfig `yaml:"metrics"`
}

// Duration wraps time.Duration so YAML values like "5s" parse.
type Duration time.Duration

// UnmarshalYAML accepts both raw nanosecond integers and duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ns int64
	if err := value.Decode(&ns); err == nil {
		*d = Duration(ns)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("parse duration: %s", value.Value)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	MetricsAddress  string   `yaml:"metricsAddress"`
	GracefulTimeout Duration `yaml:"gracefulTimeout"`
}

// EngineConfig tunes the correlation scan.
type EngineConfig struct {
	MinimumSampleSize    int   `yaml:"minimumSampleSize"`
	LargeSampleThreshold int   `yaml:"largeSampleThreshold"`
	LagOffsets           []int `yaml:"lagOffsets"`
	MaxPairWorkers       int   `yaml:"maxPairWorkers"`
	DefaultScanDays      int   `yaml:"defaultScanDays"`
}

// StoreConfig locates the observation database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Redis-backed caching of scan responses.
type CacheConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Addr         string   `yaml:"addr"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	DialTimeout  Duration `yaml:"dialTimeout"`
	ReadTimeout  Duration `yaml:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout"`
	MaxRetries   int      `yaml:"maxRetries"`
	TLS          bool     `yaml:"tls"`
	ScanTTL      Duration `yaml:"scanTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricConfig declares one metric to register from the observation store.
type MetricConfig struct {
	Key         string `yaml:"key"`
	DisplayName string `yaml:"displayName"`
	Category    string `yaml:"category"`
	Unit        string `yaml:"unit"`
}

// DataMetric converts the declaration into a catalog metric.
func (m MetricConfig) DataMetric() models.DataMetric {
	return models.DataMetric{
		Key:         m.Key,
		DisplayName: m.DisplayName,
		Category:    models.MetricCategory(m.Category),
		Unit:        m.Unit,
	}
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("INSIGHT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	for _, metric := range cfg.Metrics {
		if metric.Key == "" {
			return nil, fmt.Errorf("config: metric with empty key")
		}
		if !models.ValidCategory(models.MetricCategory(metric.Category)) {
			return nil, fmt.Errorf("config: metric %s: unknown category %q", metric.Key, metric.Category)
		}
	}

	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: Duration(10 * time.Second),
		},
		Engine: EngineConfig{
			MinimumSampleSize:    7,
			LargeSampleThreshold: 60,
			LagOffsets:           []int{0, 1, 2, 3},
			MaxPairWorkers:       4,
			DefaultScanDays:      30,
		},
		Store: StoreConfig{Path: "insights.db"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  Duration(2 * time.Second),
			ReadTimeout:  Duration(500 * time.Millisecond),
			WriteTimeout: Duration(500 * time.Millisecond),
			MaxRetries:   2,
			ScanTTL:      Duration(5 * time.Minute),
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Metrics: defaultMetrics(),
	}
}

func defaultMetrics() []MetricConfig {
	return []MetricConfig{
		{Key: "sleepHours", DisplayName: "Sleep Hours", Category: "sleep", Unit: "h"},
		{Key: "restingHeartRate", DisplayName: "Resting Heart Rate", Category: "health", Unit: "bpm"},
		{Key: "stepsCount", DisplayName: "Steps", Category: "activity", Unit: "steps"},
		{Key: "screenMinutes", DisplayName: "Screen Time", Category: "phoneUsage", Unit: "min"},
		{Key: "moodScore", DisplayName: "Mood", Category: "mood", Unit: "1-5"},
		{Key: "focusMinutes", DisplayName: "Focus Time", Category: "productivity", Unit: "min"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSIGHT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("INSIGHT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("INSIGHT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("INSIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INSIGHT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("INSIGHT_MIN_SAMPLE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MinimumSampleSize = n
		}
	}
	if v := os.Getenv("INSIGHT_LARGE_SAMPLE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.LargeSampleThreshold = n
		}
	}
	if v := os.Getenv("INSIGHT_MAX_PAIR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxPairWorkers = n
		}
	}
	if v := os.Getenv("INSIGHT_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("INSIGHT_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("INSIGHT_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("INSIGHT_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("INSIGHT_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("INSIGHT_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("INSIGHT_CACHE_SCAN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ScanTTL = Duration(d)
		}
	}
}
