package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/TrevorS/kdtree"
)

// Method selects the cluster building rule.
type Method string

const (
	// MethodDBSCAN merges a point and all of its neighbors within epsilon
	// when it has at least MinPoints-1 of them.
	MethodDBSCAN Method = "dbscan"

	// MethodDBSCAN2 merges a point with any neighbor within epsilon and
	// afterwards drops clusters with fewer than MinPoints members.
	MethodDBSCAN2 Method = "dbscan2"

	// MethodDensity grows clusters from the densest points outward, each
	// limited to the core distance of the point that started it. Epsilon
	// is not used.
	MethodDensity Method = "density"

	// MethodOPTICS orders points by reachability and cuts the ordering
	// wherever reachability exceeds epsilon. Epsilon 0 means no cut.
	MethodOPTICS Method = "optics"

	// MethodOPTICS2 links every point to the neighbor that reaches it
	// closest and clusters the resulting networks. Epsilon is not used.
	MethodOPTICS2 Method = "optics2"
)

// Methods lists the valid methods.
var Methods = []Method{MethodDBSCAN, MethodDBSCAN2, MethodDensity, MethodOPTICS, MethodOPTICS2}

// Valid reports whether m names a known method.
func (m Method) Valid() bool {
	return slices.Contains(Methods, m)
}

// usesEpsilon reports whether m needs a radius, estimated when unset.
func (m Method) usesEpsilon() bool {
	return m == MethodDBSCAN || m == MethodDBSCAN2
}

// Validation errors returned by DBSCAN.
var (
	ErrInvalidMethod    = errors.New("cluster: invalid method")
	ErrInvalidMinPoints = errors.New("cluster: invalid minimum number of points")
	ErrInvalidEpsilon   = errors.New("cluster: invalid epsilon")
	ErrNotEnoughPoints  = errors.New("cluster: not enough points")
)

// Config controls clustering. Start with [DefaultConfig] and override the
// fields you need.
type Config struct {
	// Method is the cluster building rule. Default: "dbscan".
	Method Method

	// Epsilon is the neighborhood radius. 0 means estimate it from the
	// distances to the (MinPoints-1)-th nearest neighbors. Must be >= 0.
	Epsilon float64

	// MinPoints is the smallest number of points, the point itself
	// included, that makes a neighborhood dense. 0 means one more than the
	// number of dimensions. Values of 1 are raised to 2 with a warning.
	MinPoints int

	// Workers is the number of goroutines running neighbor queries.
	// 0 means runtime.NumCPU().
	Workers int

	// Logger receives progress and warnings. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{Method: MethodDBSCAN}
}

// Result is the outcome of clustering.
type Result struct {
	// Labels holds the cluster of every point, indexed by point id.
	// Clusters are numbered from 1 in the order the method creates them;
	// 0 marks noise.
	Labels []int

	// Sizes maps each cluster to its number of points.
	Sizes map[int]int

	NumClusters int
	NumNoise    int

	// Epsilon is the radius actually used.
	Epsilon float64

	// Estimate is set when Epsilon was estimated.
	Estimate *Estimate

	// Order is the sequence in which MethodOPTICS processed the point ids.
	Order []int

	// Reachability is the distance at which MethodOPTICS reached each
	// point, indexed by id. A point that started a new ordering run has
	// its core distance.
	Reachability []float64
}

func validateConfig(cfg *Config) error {
	if !cfg.Method.Valid() {
		return fmt.Errorf("%w: %q, want one of %v", ErrInvalidMethod, cfg.Method, Methods)
	}
	if cfg.Epsilon < 0 || math.IsNaN(cfg.Epsilon) || math.IsInf(cfg.Epsilon, 0) {
		return fmt.Errorf("%w: must be a positive number or 0 to estimate, got %g", ErrInvalidEpsilon, cfg.Epsilon)
	}
	if cfg.MinPoints < 0 {
		return fmt.Errorf("%w: must be >= 0, got %d", ErrInvalidMinPoints, cfg.MinPoints)
	}
	return nil
}

// applyDefaults fills in zero-valued config fields for points of ndims
// dimensions.
func applyDefaults(cfg *Config, ndims int) {
	if cfg.Method == "" {
		cfg.Method = MethodDBSCAN
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MinPoints == 0 {
		cfg.MinPoints = ndims + 1
	}
	if cfg.MinPoints < 2 {
		cfg.Logger.Warn("cluster: minimum number of points must be at least 2", "min_points", cfg.MinPoints)
		cfg.MinPoints = 2
	}
	cfg.Workers = workerCount(cfg.Workers)
}

// Cluster groups the points of idx with the method cfg selects.
func Cluster(idx Index, cfg Config) (*Result, error) {
	pts, k, err := prepare(idx, &cfg)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch cfg.Method {
	case MethodDensity:
		res = density(idx, pts, k, cfg)
	case MethodOPTICS:
		res = optics(idx, pts, k, cfg)
	case MethodOPTICS2:
		res = optics2(idx, pts, k, cfg)
	default:
		if res, err = dbscan(idx, pts, k, cfg); err != nil {
			return nil, err
		}
	}

	if res.NumClusters == 0 {
		cfg.Logger.Warn("cluster: no clusters found", "method", cfg.Method, "epsilon", res.Epsilon)
	}
	cfg.Logger.Info("cluster: done", "method", cfg.Method, "clusters", res.NumClusters, "noise", res.NumNoise)
	return res, nil
}

// DBSCAN clusters the points of idx by density with MethodDBSCAN or
// MethodDBSCAN2. An empty method means MethodDBSCAN.
//
// Points are visited in traversal order. Each visited point whose
// neighborhood qualifies is merged with all of its neighbors, so clusters
// that share a border point are joined.
func DBSCAN(idx Index, cfg Config) (*Result, error) {
	if cfg.Method == "" {
		cfg.Method = MethodDBSCAN
	}
	if cfg.Method.Valid() && !cfg.Method.usesEpsilon() {
		return nil, fmt.Errorf("%w: %q is not a DBSCAN method", ErrInvalidMethod, cfg.Method)
	}
	return Cluster(idx, cfg)
}

// prepare validates cfg, fills in its defaults and returns the points of
// idx in traversal order with the number of neighbors each method
// examines, the point itself excluded.
func prepare(idx Index, cfg *Config) ([]kdtree.Point, int, error) {
	if cfg.Method == "" {
		cfg.Method = MethodDBSCAN
	}
	if err := validateConfig(cfg); err != nil {
		return nil, 0, err
	}
	pts, err := indexedPoints(idx)
	if err != nil {
		return nil, 0, err
	}
	if len(pts) == 0 {
		return nil, 0, ErrNoPoints
	}
	applyDefaults(cfg, len(pts[0].Coords))

	k := cfg.MinPoints - 1
	if len(pts) < k+1 {
		return nil, 0, fmt.Errorf("%w: have %d, need at least %d", ErrNotEnoughPoints, len(pts), k+1)
	}
	return pts, k, nil
}

func dbscan(idx Index, pts []kdtree.Point, k int, cfg Config) (*Result, error) {
	res := &Result{Epsilon: cfg.Epsilon}
	if res.Epsilon == 0 {
		cfg.Logger.Info("cluster: estimating maximum distance", "k", k)
		est, err := EstimateEpsilon(idx, k, cfg.Workers)
		if err != nil {
			return nil, err
		}
		cfg.Logger.Info("cluster: distance to nearest neighbor",
			"k", k, "min", est.Min, "max", est.Max, "mean", est.Mean, "sd", est.StdDev, "epsilon", est.Epsilon)
		res.Epsilon = est.Epsilon
		res.Estimate = &est
	}

	// Neighborhoods are collected concurrently and merged in traversal
	// order afterwards.
	neighbors := make([][]int, len(pts))
	forRanges(len(pts), cfg.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			p := pts[i]
			nbs := idx.DNN(p.Coords, res.Epsilon, kdtree.Skip(p.ID))
			if !qualifies(cfg.Method, len(nbs), k) {
				continue
			}
			ids := make([]int, len(nbs))
			for j, nb := range nbs {
				ids[j] = nb.ID
			}
			neighbors[i] = ids
		}
	})

	uf := newUnionFind(len(pts))
	member := make([]bool, len(pts))
	for i, p := range pts {
		if neighbors[i] == nil {
			continue
		}
		member[p.ID] = true
		for _, id := range neighbors[i] {
			member[id] = true
			uf.union(p.ID, id)
		}
	}

	minSize := 1
	if cfg.Method == MethodDBSCAN2 {
		minSize = cfg.MinPoints
	}
	labelClusters(res, pts, uf, member, minSize)
	return res, nil
}

func qualifies(m Method, found, k int) bool {
	if m == MethodDBSCAN2 {
		return found > 0
	}
	return found >= k
}

// labelClusters numbers the sets of uf holding at least minSize members
// from 1 in the order their first point is visited. Points outside every
// kept set are noise.
func labelClusters(res *Result, pts []kdtree.Point, uf *unionFind, member []bool, minSize int) {
	res.Labels = make([]int, len(pts))
	res.Sizes = map[int]int{}
	renumber := map[int]int{}

	for _, p := range pts {
		if !member[p.ID] {
			res.NumNoise++
			continue
		}
		root := uf.find(p.ID)
		if uf.setSize(root) < minSize {
			res.NumNoise++
			continue
		}
		label, ok := renumber[root]
		if !ok {
			res.NumClusters++
			label = res.NumClusters
			renumber[root] = label
		}
		res.Labels[p.ID] = label
		res.Sizes[label]++
	}
}

// tally fills in the cluster sizes and counts of res from its labels.
func tally(res *Result) {
	res.Sizes = map[int]int{}
	for _, l := range res.Labels {
		if l == 0 {
			res.NumNoise++
			continue
		}
		res.Sizes[l]++
	}
	res.NumClusters = len(res.Sizes)
}
