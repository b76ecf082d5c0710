package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/TrevorS/kdtree/cluster"
)

func newStatsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Describe the tree built from a point file",
		Long: `Load a point file and report the shape of the resulting tree and the
spacing of the points: the distribution of nearest neighbor distances.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStats(cmd, args[0])
		},
	}
	cmd.Flags().Int("workers", 0, "goroutines running queries (0 means one per CPU)")
	return cmd
}

func (a *app) runStats(cmd *cobra.Command, path string) error {
	if err := a.load(cmd); err != nil {
		return err
	}
	pts, err := a.readPoints(cmd, path)
	if err != nil {
		return err
	}
	tree, elapsed, err := a.buildTree(pts)
	if err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Property", "Value"})
	tbl.AppendRows([]table.Row{
		{"points", humanize.Comma(int64(tree.Len()))},
		{"dimensions", tree.Dims()},
		{"height", tree.Height()},
		{"ideal height", int(math.Ceil(math.Log2(float64(tree.Len()+1)))) - 1},
		{"balance tolerance", tree.BalanceTolerance()},
		{"max depth", tree.MaxDepth()},
		{"optimize level", a.cfg.Tree.OptimizeLevel},
		{"build time", elapsed.Round(time.Microsecond)},
	})
	st := tree.Stats()
	tbl.AppendRows([]table.Row{
		{"rebalance steps", humanize.Comma(int64(st.Steps))},
		{"subtree rebuilds", humanize.Comma(int64(st.Rebuilds))},
		{"rebuilt nodes", humanize.Comma(int64(st.RebuiltNodes))},
	})

	est, err := cluster.EstimateEpsilon(tree, 1, a.cfg.Cluster.Workers)
	switch {
	case errors.Is(err, cluster.ErrNoNeighbors):
		a.logger.Warn("single point, no neighbor distances")
	case err != nil:
		return err
	default:
		tbl.AppendSeparator()
		tbl.AppendRows([]table.Row{
			{"nearest neighbor min", humanize.CommafWithDigits(est.Min, 6)},
			{"nearest neighbor mean", humanize.CommafWithDigits(est.Mean, 6)},
			{"nearest neighbor sd", humanize.CommafWithDigits(est.StdDev, 6)},
			{"nearest neighbor max", humanize.CommafWithDigits(est.Max, 6)},
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
	return nil
}
