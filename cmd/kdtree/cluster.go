package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/TrevorS/kdtree/cluster"
	"github.com/TrevorS/kdtree/internal/config"
	"github.com/TrevorS/kdtree/internal/pointio"
)

type clusterFlags struct {
	format  string
	output  string
	summary bool
}

func newClusterCommand(a *app) *cobra.Command {
	var flags clusterFlags

	cmd := &cobra.Command{
		Use:   "cluster <file>",
		Short: "Group points by density",
		Long: `Cluster points by density.

With --method dbscan a point that has at least min-points - 1 other points
within the distance joins them all into one cluster. With --method dbscan2
any two points within the distance are joined, and clusters with fewer than
min-points members are discarded. Without --distance these two estimate the
distance from the spread of the distances to the (min-points - 1)-th
nearest neighbor.

The other methods look only at the min-points - 1 nearest neighbors of each
point. density grows clusters outward from the densest points. optics
orders the points by reachability and, with --distance, starts a new
cluster wherever reachability exceeds it. optics2 links every point to the
neighbor that reaches it closest and clusters the linked networks.

Points outside every cluster get label 0.

Example:
  kdtree cluster points.csv
  kdtree cluster points.csv --method dbscan2 --distance 0.5 --min-points 10
  kdtree cluster points.csv --method optics --distance 2
  kdtree cluster points.csv -f yaml -o labels.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCluster(cmd, args[0], flags)
		},
	}

	cmd.Flags().String("method", config.DefaultMethod, "clustering method: dbscan, dbscan2, density, optics or optics2")
	cmd.Flags().Float64("distance", 0, "neighborhood distance (0 estimates it)")
	cmd.Flags().Int("min-points", 0, "points needed for a cluster (0 means dimensions + 1)")
	cmd.Flags().Int("workers", 0, "goroutines running queries (0 means one per CPU)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(pointio.FormatCSV), "output format: csv, yaml or table")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "-", "output file")
	cmd.Flags().BoolVar(&flags.summary, "summary", true, "print a cluster summary to stderr")
	return cmd
}

func (a *app) runCluster(cmd *cobra.Command, path string, flags clusterFlags) error {
	format, err := pointio.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	if err := a.load(cmd); err != nil {
		return err
	}

	pts, err := a.readPoints(cmd, path)
	if err != nil {
		return err
	}
	tree, _, err := a.buildTree(pts)
	if err != nil {
		return err
	}

	res, err := cluster.Cluster(tree, a.cfg.ClusterParams(a.logger))
	if err != nil {
		return fmt.Errorf("cluster: %w", err)
	}

	w, closeOut, err := output(cmd, flags.output)
	if err != nil {
		return err
	}
	if err := pointio.WriteLabels(w, pts, res.Labels, format); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if flags.summary {
		writeSummary(cmd.ErrOrStderr(), res, len(pts))
	}
	return nil
}

// writeSummary prints cluster sizes, largest first.
func writeSummary(w io.Writer, res *cluster.Result, total int) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Cluster", "Points", "Share"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	labels := make([]int, 0, len(res.Sizes))
	for label := range res.Sizes {
		labels = append(labels, label)
	}
	slices.SortFunc(labels, func(x, y int) int {
		if res.Sizes[x] != res.Sizes[y] {
			return res.Sizes[y] - res.Sizes[x]
		}
		return x - y
	})

	for _, label := range labels {
		n := res.Sizes[label]
		tbl.AppendRow(table.Row{label, humanize.Comma(int64(n)), share(n, total)})
	}
	tbl.AppendFooter(table.Row{"noise", humanize.Comma(int64(res.NumNoise)), share(res.NumNoise, total)})

	fmt.Fprintf(w, "%s clusters in %s points", humanize.Comma(int64(res.NumClusters)), humanize.Comma(int64(total)))
	if res.Epsilon > 0 {
		fmt.Fprintf(w, ", distance %s", humanize.CommafWithDigits(res.Epsilon, 4))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, tbl.Render())
}

func share(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}
