package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/TrevorS/kdtree"
)

var (
	// ErrNoPoints is returned when there is nothing to index.
	ErrNoPoints = errors.New("cluster: no points")

	// ErrRaggedPoints is returned when input rows differ in length.
	ErrRaggedPoints = errors.New("cluster: points have different dimensions")

	// ErrIDOutOfRange is returned when an index holds an id outside
	// [0, Len()), which clustering needs to address its label slice.
	ErrIDOutOfRange = errors.New("cluster: point id out of range")
)

// Index is the read interface the clustering stages need from a spatial
// index. *kdtree.Tree satisfies it. Implementations must allow concurrent
// queries.
type Index interface {
	// KNN returns up to k nearest points, ascending by squared distance.
	KNN(coords []float64, k int, skip *int) []kdtree.Neighbor

	// DNN returns all points within radius, ascending by squared distance.
	DNN(coords []float64, radius float64, skip *int) []kdtree.Neighbor

	// Points returns every indexed point in a stable traversal order.
	Points() []kdtree.Point

	// Len returns the number of indexed points.
	Len() int
}

var _ Index = (*kdtree.Tree)(nil)

// BuildIndex loads points into a new tree, using each row's position as
// its id, and optimizes it at the given level. Repeated coordinates are
// kept as distinct points. Rows with NaN or infinite values are rejected
// with kdtree.ErrInvalidCoordinate.
func BuildIndex(points [][]float64, optimizeLevel int, opts ...kdtree.Option) (*kdtree.Tree, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	ndims := len(points[0])
	if ndims == 0 {
		return nil, fmt.Errorf("%w: row 0 is empty", ErrRaggedPoints)
	}
	for i, p := range points {
		if len(p) != ndims {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedPoints, i, len(p), ndims)
		}
		for j, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d value %d is %g", kdtree.ErrInvalidCoordinate, i, j, v)
			}
		}
	}

	tree := kdtree.New(ndims, opts...)
	for i, p := range points {
		tree.Insert(p, i, true)
	}
	if optimizeLevel >= 0 {
		tree.Optimize(optimizeLevel)
	}
	return tree, nil
}

// indexedPoints returns the points of idx after checking that their ids
// can address a slice of length idx.Len().
func indexedPoints(idx Index) ([]kdtree.Point, error) {
	pts := idx.Points()
	for _, p := range pts {
		if p.ID < 0 || p.ID >= len(pts) {
			return nil, fmt.Errorf("%w: id %d with %d points", ErrIDOutOfRange, p.ID, len(pts))
		}
	}
	return pts, nil
}
