package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Corezcy/record-latency/internal/export"
	"github.com/Corezcy/record-latency/internal/latency"
	"github.com/Corezcy/record-latency/internal/logging"
)

// Run modes.
const (
	ModeLatency   = "latency"
	ModeIntervals = "intervals"
	ModeInfo      = "info"
)

// ErrMissingPaths is returned by Validate when the input or output is unset.
var ErrMissingPaths = errors.New("record path or output path is empty")

type Config struct {
	Mode     string           `yaml:"mode"`
	Input    InputConfig      `yaml:"input"`
	Output   OutputConfig     `yaml:"output"`
	Channels latency.Channels `yaml:"channels"`
	S3       S3Config         `yaml:"s3"`
	Logging  logging.Config   `yaml:"logging"`
	Metrics  MetricsConfig    `yaml:"metrics"`
	Catalog  CatalogConfig    `yaml:"catalog"`
}

type InputConfig struct {
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Path        string `yaml:"path"`
	Format      string `yaml:"format"`      // xlsx | parquet | sqlite, inferred from Path when empty
	Compression string `yaml:"compression"` // parquet only
	Manifest    bool   `yaml:"manifest"`
	PlotPath    string `yaml:"plot_path"`
}

type S3Config struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
}

type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	Namespace   string `yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mode:     ModeLatency,
		Output:   OutputConfig{Compression: "snappy"},
		Channels: latency.DefaultChannels(),
		Logging:  logging.Config{Format: "text", Level: "info"},
		Catalog:  CatalogConfig{Namespace: "default"},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// -config, the environment and finally the remaining flags, each overriding
// the one before.
func Load(args []string, stderr io.Writer) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("record-latency", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath = fs.String("config", "", "YAML configuration file")
		rdPath     = fs.String("rd_path", "", "record bag path (file, segment directory or gs:// s3:// file:// URL)")
		opPath     = fs.String("op_path", "", "output file path or URL")
		mode       = fs.String("mode", "", "latency | intervals | info")
		format     = fs.String("format", "", "output format: xlsx | parquet | sqlite (default from op_path extension)")
		manifest   = fs.Bool("manifest", false, "write <op_path>.manifest.json beside the output")
		plotPath   = fs.String("plot_path", "", "write a latency plot (png) to this path")
		metrics    = fs.String("metrics_file", "", "write prometheus metrics in text format to this path")
		logLevel   = fs.String("log_level", "", "debug | info | warn | error")
		logFormat  = fs.String("log_format", "", "text | json")

		compensator = fs.String("compensator_channel", "", "compensator channel override")
		perception  = fs.String("perception_channel", "", "perception channel override")
		prediction  = fs.String("prediction_channel", "", "prediction channel override")
		planning    = fs.String("planning_channel", "", "planning channel override")
	)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rd_path":
			cfg.Input.Path = *rdPath
		case "op_path":
			cfg.Output.Path = *opPath
		case "mode":
			cfg.Mode = *mode
		case "format":
			cfg.Output.Format = *format
		case "manifest":
			cfg.Output.Manifest = *manifest
		case "plot_path":
			cfg.Output.PlotPath = *plotPath
		case "metrics_file":
			cfg.Metrics.TextfilePath = *metrics
		case "log_level":
			cfg.Logging.Level = *logLevel
		case "log_format":
			cfg.Logging.Format = *logFormat
		case "compensator_channel":
			cfg.Channels.Compensator = *compensator
		case "perception_channel":
			cfg.Channels.Perception = *perception
		case "prediction_channel":
			cfg.Channels.Prediction = *prediction
		case "planning_channel":
			cfg.Channels.Planning = *planning
		}
	})

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Input.Path = getenvDefault("RECORD_PATH", cfg.Input.Path)
	cfg.Output.Path = getenvDefault("OUTPUT_PATH", cfg.Output.Path)
	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getenvDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Metrics.TextfilePath = getenvDefault("METRICS_FILE", cfg.Metrics.TextfilePath)
	cfg.Catalog.PostgresDSN = getenvDefault("CATALOG_DSN", cfg.Catalog.PostgresDSN)
	cfg.Catalog.Namespace = getenvDefault("CATALOG_NAMESPACE", cfg.Catalog.Namespace)
	cfg.S3.Endpoint = getenvDefault("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.Region = getenvDefault("S3_REGION", cfg.S3.Region)
}

// Validate checks the configuration is runnable.
func (c Config) Validate() error {
	if c.Input.Path == "" || c.Output.Path == "" {
		return ErrMissingPaths
	}
	switch c.Mode {
	case ModeLatency, ModeIntervals, ModeInfo:
	default:
		return fmt.Errorf("unknown mode: %q", c.Mode)
	}
	switch c.OutputFormat() {
	case export.FormatXLSX, export.FormatSQLite:
	case export.FormatParquet:
		if c.Mode == ModeInfo {
			return fmt.Errorf("info mode does not support parquet output")
		}
	default:
		return fmt.Errorf("unknown output format: %q", c.Output.Format)
	}
	return nil
}

// OutputFormat returns the configured format, or the one implied by the
// output path.
func (c Config) OutputFormat() string {
	if c.Output.Format != "" {
		return c.Output.Format
	}
	return export.FormatFor(c.Output.Path)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
