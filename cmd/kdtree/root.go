package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TrevorS/kdtree"
	"github.com/TrevorS/kdtree/cluster"
	"github.com/TrevorS/kdtree/internal/config"
	"github.com/TrevorS/kdtree/internal/pointio"
)

// flagKeys maps configuration keys to the flags that override them.
var flagKeys = map[string]string{
	"tree.balance_tolerance": "tolerance",
	"tree.max_depth":         "max-depth",
	"tree.optimize_level":    "optimize",
	"cluster.method":         "method",
	"cluster.distance":       "distance",
	"cluster.min_points":     "min-points",
	"cluster.workers":        "workers",
	"logging.level":          "log-level",
	"logging.format":         "log-format",
}

// app carries the state shared by all commands.
type app struct {
	configPath string
	header     bool
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "kdtree",
		Short: "Cluster and query point clouds with a dynamic k-d tree",
		Long: `kdtree loads points from delimited text files into a self-balancing
k-d tree and runs density clustering or neighbor queries on them.

Each input line holds the coordinates of one point, separated by commas,
semicolons, tabs or spaces. Lines starting with '#' are ignored. Points are
identified by their 0-based row number.

Example usage:
  kdtree cluster points.csv --min-points 4        # DBSCAN, estimated distance
  kdtree cluster points.csv --distance 2.5 -f yaml
  kdtree query knn points.csv --at 1,2 -k 5        # 5 nearest points
  kdtree query box points.csv --min 0,0 --max 1,1  # points inside a box
  kdtree stats points.csv                          # tree shape and spacing`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: ./kdtree.yaml or ~/.config/kdtree/kdtree.yaml)")
	pf.BoolVar(&a.header, "header", false, "skip the first line of the input")
	pf.Int("tolerance", kdtree.DefaultBalanceTolerance, "balance tolerance of the tree (>= 2)")
	pf.Int("max-depth", kdtree.DefaultMaxDepth, "stack limit for tree walks")
	pf.Int("optimize", config.DefaultOptimizeLevel, "optimize level after loading (-1 to skip)")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", config.DefaultLogFormat, "log format: text or json")

	rootCmd.AddCommand(newClusterCommand(a))
	rootCmd.AddCommand(newQueryCommand(a))
	rootCmd.AddCommand(newStatsCommand(a))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// load builds the configuration from file, environment and the flags set
// on cmd, and sets up logging to cmd's error stream.
func (a *app) load(cmd *cobra.Command) error {
	v := config.New(a.configPath)
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// readPoints reads the point file at path, "-" meaning standard input.
func (a *app) readPoints(cmd *cobra.Command, path string) ([][]float64, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open points: %w", err)
		}
		defer f.Close()
		r = f
	}

	pts, err := pointio.ReadPoints(r, pointio.ReadOptions{SkipHeader: a.header})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pts, nil
}

// buildTree indexes pts with the configured tree settings and reports how
// long loading and optimizing took.
func (a *app) buildTree(pts [][]float64) (*kdtree.Tree, time.Duration, error) {
	start := time.Now()
	tree, err := cluster.BuildIndex(pts, a.cfg.Tree.OptimizeLevel, a.cfg.TreeOptions(a.logger)...)
	if err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)
	a.logger.Debug("tree built", "points", tree.Len(), "height", tree.Height(), "elapsed", elapsed)
	return tree, elapsed, nil
}

// output opens the result destination, "-" or "" meaning cmd's output.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
