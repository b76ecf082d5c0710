package cluster

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoNeighbors is returned when no point has a neighbor to measure
// a distance to, so no epsilon can be estimated.
var ErrNoNeighbors = errors.New("cluster: no neighbors found")

// epsilonZ is the two-sided 99% quantile of the standard normal
// distribution.
const epsilonZ = 2.575829

// Estimate summarizes the distances from every point to its K-th nearest
// neighbor and the clustering distance derived from them.
type Estimate struct {
	K       int
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64
	Epsilon float64
	// Samples is the number of points that had at least one neighbor.
	Samples int
}

// EstimateEpsilon derives a neighborhood radius from the distribution of
// k-th nearest neighbor distances: the mean plus epsilonZ population
// standard deviations, capped at the largest observed distance.
func EstimateEpsilon(idx Index, k, workers int) (Estimate, error) {
	est := Estimate{K: k}
	if k <= 0 {
		return est, ErrNoNeighbors
	}

	core, err := CoreDistances(idx, k, workers)
	if err != nil {
		return est, err
	}
	dists := make([]float64, 0, len(core))
	for _, d := range core {
		if !math.IsNaN(d) {
			dists = append(dists, d)
		}
	}
	if len(dists) == 0 {
		return est, ErrNoNeighbors
	}

	est.Samples = len(dists)
	est.Min = floats.Min(dists)
	est.Max = floats.Max(dists)
	est.Mean, est.StdDev = stat.PopMeanStdDev(dists, nil)
	est.Epsilon = min(est.Mean+epsilonZ*est.StdDev, est.Max)
	return est, nil
}
