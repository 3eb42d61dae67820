package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/gomam"
	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index/mm"
	"github.com/hupe1980/gomam/pagestore"
)

// Config describes the index the CLI works on.
type Config struct {
	Backend       string       `yaml:"backend"`
	Path          string       `yaml:"path"`
	PageSize      int          `yaml:"page_size"`
	PagesPerShard int          `yaml:"pages_per_shard"`
	CachePages    int64        `yaml:"cache_pages"`
	Compression   string       `yaml:"compression"`
	Kind          string       `yaml:"kind"`
	Metric        string       `yaml:"metric"`
	Codec         string       `yaml:"codec"`
	MM            MMConfig     `yaml:"mm"`
	VP            VPConfig     `yaml:"vp"`
	Log           LogConfig    `yaml:"log"`
	Export        ExportConfig `yaml:"export"`
}

// MMConfig holds the modes of a new MM tree.
type MMConfig struct {
	InsertMode string `yaml:"insert_mode"`
	SearchMode string `yaml:"search_mode"`
}

// VPConfig holds the build parameters of a VP tree.
type VPConfig struct {
	Seed            uint64 `yaml:"seed"`
	BufferIncrement int    `yaml:"buffer_increment"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ExportConfig describes where snapshots go.
type ExportConfig struct {
	Store     string `yaml:"store"`
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	RateLimit int64  `yaml:"rate_limit"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		Backend:       "disk",
		Path:          "index.gmam",
		PageSize:      pagestore.DefaultPageSize,
		PagesPerShard: 4096,
		Compression:   "zstd",
		Kind:          "mm",
		Metric:        "euclidean",
		Codec:         "float64",
		MM:            MMConfig{InsertMode: mm.NoBalance.String(), SearchMode: mm.SearchBestFirst.String()},
		VP:            VPConfig{Seed: 1, BufferIncrement: 1024},
		Log:           LogConfig{Level: "warn", Format: "text"},
		Export:        ExportConfig{Store: "local", Dir: "snapshots"},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every name in the configuration.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case "memory", "disk", "multiple", "pebble":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if _, err := gomam.ParseKind(c.Kind); err != nil {
		errs = append(errs, err)
	}
	if _, err := distance.ParseMetric(c.Metric); err != nil {
		errs = append(errs, err)
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Codec))
	}
	if _, err := pagestore.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := mm.ParseInsertMode(c.MM.InsertMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := mm.ParseSearchMode(c.MM.SearchMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return lvl, nil
}

// Logger builds the configured logger.
func (l LogConfig) Logger() (*gomam.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	if l.Format == "json" {
		return gomam.NewJSONLogger(lvl), nil
	}
	return gomam.NewTextLogger(lvl), nil
}

// IndexOptions translates the configuration into Open options.
func (c Config) IndexOptions(logger *gomam.Logger, metrics gomam.MetricsCollector) ([]gomam.Option, error) {
	im, err := mm.ParseInsertMode(c.MM.InsertMode)
	if err != nil {
		return nil, err
	}
	sm, err := mm.ParseSearchMode(c.MM.SearchMode)
	if err != nil {
		return nil, err
	}
	return []gomam.Option{
		gomam.WithLogger(logger),
		gomam.WithMetricsCollector(metrics),
		gomam.WithInsertMode(im),
		gomam.WithSearchMode(sm),
		gomam.WithSeed(c.VP.Seed),
		gomam.WithBufferIncrement(c.VP.BufferIncrement),
	}, nil
}
