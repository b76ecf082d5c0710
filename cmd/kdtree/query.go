package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/TrevorS/kdtree"
	"github.com/TrevorS/kdtree/internal/pointio"
)

type queryFlags struct {
	format string
	output string
	at     []float64
	skip   int
	k      int
	radius float64
	lo, hi []float64
}

func newQueryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find points near a location or inside a box",
	}
	cmd.AddCommand(newKNNCommand(a), newRadiusCommand(a), newBoxCommand(a))
	return cmd
}

func addQueryFlags(cmd *cobra.Command, flags *queryFlags) {
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(pointio.FormatTable), "output format: csv, yaml or table")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "-", "output file")
	cmd.Flags().IntVar(&flags.skip, "skip", 0, "row number to leave out of the result")
}

func newKNNCommand(a *app) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "knn <file>",
		Short: "List the k nearest points to a location",
		Example: `  kdtree query knn points.csv --at 3.5,1 -k 10
  kdtree query knn points.csv --at 3.5,1 --skip 12 -f csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, args[0], flags, func(t *kdtree.Tree, w resultWriter) error {
				if err := checkDims(t, flags.at, "--at"); err != nil {
					return err
				}
				return w.neighbors(t.KNN(flags.at, flags.k, flags.skipped(cmd)))
			})
		},
	}
	addQueryFlags(cmd, &flags)
	cmd.Flags().Float64SliceVar(&flags.at, "at", nil, "query coordinates, comma separated")
	cmd.Flags().IntVarP(&flags.k, "neighbors", "k", 1, "number of neighbors")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newRadiusCommand(a *app) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:     "radius <file>",
		Short:   "List all points within a distance of a location",
		Example: `  kdtree query radius points.csv --at 0,0 --radius 2.5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, args[0], flags, func(t *kdtree.Tree, w resultWriter) error {
				if err := checkDims(t, flags.at, "--at"); err != nil {
					return err
				}
				if flags.radius < 0 {
					return fmt.Errorf("--radius must not be negative, got %g", flags.radius)
				}
				return w.neighbors(t.DNN(flags.at, flags.radius, flags.skipped(cmd)))
			})
		},
	}
	addQueryFlags(cmd, &flags)
	cmd.Flags().Float64SliceVar(&flags.at, "at", nil, "query coordinates, comma separated")
	cmd.Flags().Float64VarP(&flags.radius, "radius", "r", 1, "search distance")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newBoxCommand(a *app) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:     "box <file>",
		Short:   "List the points inside an axis-aligned box",
		Example: `  kdtree query box points.csv --min 0,0 --max 10,5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, args[0], flags, func(t *kdtree.Tree, w resultWriter) error {
				if err := checkDims(t, flags.lo, "--min"); err != nil {
					return err
				}
				if err := checkDims(t, flags.hi, "--max"); err != nil {
					return err
				}
				box := append(append([]float64(nil), flags.lo...), flags.hi...)
				return w.ids(t.RNN(box, flags.skipped(cmd)))
			})
		},
	}
	addQueryFlags(cmd, &flags)
	cmd.Flags().Float64SliceVar(&flags.lo, "min", nil, "lower corner, comma separated")
	cmd.Flags().Float64SliceVar(&flags.hi, "max", nil, "upper corner, comma separated")
	_ = cmd.MarkFlagRequired("min")
	_ = cmd.MarkFlagRequired("max")
	return cmd
}

// resultWriter writes query results in the requested format.
type resultWriter struct {
	cmd    *cobra.Command
	format pointio.Format
	output string
}

func (w resultWriter) neighbors(nbs []kdtree.Neighbor) error {
	return w.write(func(out io.Writer) error { return pointio.WriteNeighbors(out, nbs, w.format) })
}

func (w resultWriter) ids(ids []int) error {
	return w.write(func(out io.Writer) error { return pointio.WriteIDs(out, ids, w.format) })
}

func (w resultWriter) write(fn func(out io.Writer) error) error {
	out, closeOut, err := output(w.cmd, w.output)
	if err != nil {
		return err
	}
	if err := fn(out); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func (a *app) runQuery(cmd *cobra.Command, path string, flags queryFlags, run func(*kdtree.Tree, resultWriter) error) error {
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
	return run(tree, resultWriter{cmd: cmd, format: format, output: flags.output})
}

func checkDims(t *kdtree.Tree, coords []float64, flag string) error {
	if len(coords) != t.Dims() {
		return fmt.Errorf("%s has %d values, the points have %d dimensions", flag, len(coords), t.Dims())
	}
	for i, v := range coords {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s value %d is %g, want a finite number", flag, i+1, v)
		}
	}
	return nil
}

// skipped returns the row to leave out of the result, or nil when --skip
// was not given.
func (f queryFlags) skipped(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("skip") {
		return nil
	}
	return kdtree.Skip(f.skip)
}
