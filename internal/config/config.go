package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Index   IndexConfig   `mapstructure:"index"`
	Measure MeasureConfig `mapstructure:"measure"`
	View    ViewConfig    `mapstructure:"view"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	StaticRoot        string        `mapstructure:"static_root"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Backend     string        `mapstructure:"backend"`
	FileDir     string        `mapstructure:"file_dir"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	DatabaseURL string        `mapstructure:"database_url"`
	RedisURL    string        `mapstructure:"redis_url"`
	ValkeyAddr  string        `mapstructure:"valkey_addr"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type IndexConfig struct {
	Backend         string  `mapstructure:"backend"`
	ToleranceMeters float64 `mapstructure:"tolerance_meters"`
}

type MeasureConfig struct {
	SnapTargets           []float64     `mapstructure:"snap_targets"`
	SnapThresholdMeters   float64       `mapstructure:"snap_threshold_meters"`
	MinCircleRadiusMeters float64       `mapstructure:"min_circle_radius_meters"`
	CircleSteps           int           `mapstructure:"circle_steps"`
	LongPress             time.Duration `mapstructure:"long_press"`
}

type ViewConfig struct {
	DefaultCenter []float64 `mapstructure:"default_center"`
	DefaultZoom   float64   `mapstructure:"default_zoom"`
}

var Backends = []string{"memory", "file", "sqlite", "postgres", "redis", "valkey"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.static_root", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file_dir", "./data")
	v.SetDefault("storage.sqlite_path", "mapmeasure.db")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.redis_url", "redis://localhost:6379")
	v.SetDefault("storage.valkey_addr", "localhost:6379")
	v.SetDefault("storage.key_prefix", "mapmeasure:state")
	v.SetDefault("storage.timeout", 2*time.Second)
	v.SetDefault("index.backend", "memory")
	v.SetDefault("index.tolerance_meters", 25.0)
	v.SetDefault("measure.snap_targets", []float64{500, 1000, 2000, 5000})
	v.SetDefault("measure.snap_threshold_meters", 20.0)
	v.SetDefault("measure.min_circle_radius_meters", 50.0)
	v.SetDefault("measure.circle_steps", 64)
	v.SetDefault("measure.long_press", 500*time.Millisecond)
	v.SetDefault("view.default_center", []float64{6.9578, 50.9422})
	v.SetDefault("view.default_zoom", 13.0)
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	return decode(v)
}

// LoadFile reads configuration from an explicit path plus the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	// Environment variables: MAPMEASURE_STORAGE_BACKEND → storage.backend
	v.SetEnvPrefix("MAPMEASURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if !knownBackend(c.Storage.Backend) {
		errs = append(errs, fmt.Sprintf("storage.backend must be one of %s, got %q", strings.Join(Backends, "|"), c.Storage.Backend))
	}
	if c.Storage.KeyPrefix == "" {
		errs = append(errs, "storage.key_prefix is required")
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, "storage.timeout must be positive")
	}
	if c.Index.Backend != "memory" && c.Index.Backend != "redis" {
		errs = append(errs, fmt.Sprintf("index.backend must be memory|redis, got %q", c.Index.Backend))
	}
	if c.Index.ToleranceMeters <= 0 {
		errs = append(errs, "index.tolerance_meters must be positive")
	}
	for _, t := range c.Measure.SnapTargets {
		if t <= 0 {
			errs = append(errs, fmt.Sprintf("measure.snap_targets must be positive, got %v", t))
			break
		}
	}
	if c.Measure.SnapThresholdMeters < 0 {
		errs = append(errs, "measure.snap_threshold_meters must not be negative")
	}
	if c.Measure.MinCircleRadiusMeters <= 0 {
		errs = append(errs, "measure.min_circle_radius_meters must be positive")
	}
	if c.Measure.CircleSteps < 3 {
		errs = append(errs, fmt.Sprintf("measure.circle_steps must be at least 3, got %d", c.Measure.CircleSteps))
	}
	if c.Measure.LongPress <= 0 {
		errs = append(errs, "measure.long_press must be positive")
	}
	if len(c.View.DefaultCenter) != 2 {
		errs = append(errs, "view.default_center must be [lng, lat]")
	} else if c.View.DefaultCenter[1] < -90 || c.View.DefaultCenter[1] > 90 {
		errs = append(errs, fmt.Sprintf("view.default_center latitude out of range: %v", c.View.DefaultCenter[1]))
	}
	if c.View.DefaultZoom < 0 || c.View.DefaultZoom > 24 {
		errs = append(errs, fmt.Sprintf("view.default_zoom must be 0-24, got %v", c.View.DefaultZoom))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func knownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
