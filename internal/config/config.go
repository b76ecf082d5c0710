// Package config loads the settings of the kdtree command line tool from
// defaults, an optional YAML file and KDTREE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/TrevorS/kdtree"
	"github.com/TrevorS/kdtree/cluster"
)

// Sentinel validation errors.
var (
	ErrInvalidTolerance     = errors.New("balance tolerance must be at least 2")
	ErrInvalidMaxDepth      = errors.New("max depth must be at least 16")
	ErrInvalidOptimizeLevel = errors.New("optimize level must be between -1 and 2")
	ErrInvalidMethod        = errors.New("invalid cluster method")
	ErrInvalidDistance      = errors.New("cluster distance must not be negative")
	ErrInvalidMinPoints     = errors.New("cluster min points must not be negative")
	ErrInvalidWorkers       = errors.New("workers must not be negative")
	ErrInvalidLogLevel      = errors.New("invalid log level")
	ErrInvalidLogFormat     = errors.New("invalid log format")
)

// Default configuration values.
const (
	DefaultOptimizeLevel = 2
	DefaultMethod        = "dbscan"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"

	// EnvPrefix prefixes every environment override, e.g.
	// KDTREE_TREE_BALANCE_TOLERANCE.
	EnvPrefix = "KDTREE"

	configName = "kdtree"
)

// Config holds all configuration for the kdtree tool.
type Config struct {
	Tree    TreeConfig    `mapstructure:"tree"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TreeConfig holds the tree construction settings.
type TreeConfig struct {
	BalanceTolerance int `mapstructure:"balance_tolerance"`
	MaxDepth         int `mapstructure:"max_depth"`
	// OptimizeLevel is passed to Optimize after loading; -1 skips it.
	OptimizeLevel int `mapstructure:"optimize_level"`
}

// ClusterConfig holds the clustering settings.
type ClusterConfig struct {
	Method string `mapstructure:"method"`
	// Distance is the neighborhood radius. 0 estimates it for the dbscan
	// methods and disables the reachability cut of optics.
	Distance  float64 `mapstructure:"distance"`
	MinPoints int     `mapstructure:"min_points"`
	Workers   int     `mapstructure:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults, the config file search path
// and environment overrides set up. Callers may bind flags to it before
// passing it to Load.
func New(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads the configuration file, if any, and returns the validated
// configuration. A missing file in the search path is not an error; an
// explicitly named file must exist.
func Load(v *viper.Viper) (*Config, error) {
	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadFile is New followed by Load.
func LoadFile(configPath string) (*Config, error) {
	return Load(New(configPath))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tree.balance_tolerance", kdtree.DefaultBalanceTolerance)
	v.SetDefault("tree.max_depth", kdtree.DefaultMaxDepth)
	v.SetDefault("tree.optimize_level", DefaultOptimizeLevel)

	v.SetDefault("cluster.method", DefaultMethod)
	v.SetDefault("cluster.distance", 0.0)
	v.SetDefault("cluster.min_points", 0)
	v.SetDefault("cluster.workers", 0)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}

func validateConfig(cfg *Config) error {
	if cfg.Tree.BalanceTolerance < kdtree.MinBalanceTolerance {
		return fmt.Errorf("%w: %d", ErrInvalidTolerance, cfg.Tree.BalanceTolerance)
	}
	if cfg.Tree.MaxDepth < 16 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDepth, cfg.Tree.MaxDepth)
	}
	if cfg.Tree.OptimizeLevel < -1 || cfg.Tree.OptimizeLevel > 2 {
		return fmt.Errorf("%w: %d", ErrInvalidOptimizeLevel, cfg.Tree.OptimizeLevel)
	}

	if !cluster.Method(cfg.Cluster.Method).Valid() {
		return fmt.Errorf("%w: %q, want one of %v", ErrInvalidMethod, cfg.Cluster.Method, cluster.Methods)
	}
	if cfg.Cluster.Distance < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidDistance, cfg.Cluster.Distance)
	}
	if cfg.Cluster.MinPoints < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinPoints, cfg.Cluster.MinPoints)
	}
	if cfg.Cluster.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Cluster.Workers)
	}

	if _, err := parseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Logging.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
	return level, nil
}

// TreeOptions converts the tree settings into kdtree options.
func (c *Config) TreeOptions(logger *slog.Logger) []kdtree.Option {
	return []kdtree.Option{
		kdtree.WithBalanceTolerance(c.Tree.BalanceTolerance),
		kdtree.WithMaxDepth(c.Tree.MaxDepth),
		kdtree.WithLogger(logger),
	}
}

// ClusterParams converts the cluster settings into a cluster.Config.
func (c *Config) ClusterParams(logger *slog.Logger) cluster.Config {
	return cluster.Config{
		Method:    cluster.Method(c.Cluster.Method),
		Epsilon:   c.Cluster.Distance,
		MinPoints: c.Cluster.MinPoints,
		Workers:   c.Cluster.Workers,
		Logger:    logger,
	}
}

// Logger builds a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
