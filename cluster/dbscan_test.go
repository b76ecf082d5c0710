package cluster

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/TrevorS/kdtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoBlobs returns two 6x6 grids with spacing 0.1, one at the origin and one
// at (10, 10), followed by two isolated points.
func twoBlobs() (pts [][]float64, blobSize int) {
	for _, off := range []float64{0, 10} {
		for x := 0; x < 6; x++ {
			for y := 0; y < 6; y++ {
				pts = append(pts, []float64{off + float64(x)*0.1, off + float64(y)*0.1})
			}
		}
	}
	pts = append(pts, []float64{5, 5}, []float64{-20, 3})
	return pts, 36
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return cfg
}

func buildIndex(t *testing.T, pts [][]float64) *kdtree.Tree {
	t.Helper()
	tree, err := BuildIndex(pts, 2)
	require.NoError(t, err)
	return tree
}

func TestDBSCAN_TwoBlobs(t *testing.T) {
	pts, n := twoBlobs()
	tree := buildIndex(t, pts)

	for _, m := range []Method{MethodDBSCAN, MethodDBSCAN2} {
		t.Run(string(m), func(t *testing.T) {
			cfg := quietConfig()
			cfg.Method = m
			cfg.Epsilon = 0.15
			cfg.MinPoints = 3
			cfg.Workers = 3

			res, err := DBSCAN(tree, cfg)
			require.NoError(t, err)

			assert.Equal(t, 2, res.NumClusters)
			assert.Equal(t, 2, res.NumNoise)
			assert.Equal(t, 0.15, res.Epsilon)
			assert.Nil(t, res.Estimate)

			a, b := res.Labels[0], res.Labels[n]
			assert.NotZero(t, a)
			assert.NotZero(t, b)
			assert.NotEqual(t, a, b)
			assert.ElementsMatch(t, []int{1, 2}, []int{a, b})
			for i := 0; i < n; i++ {
				assert.Equal(t, a, res.Labels[i], "point %d", i)
				assert.Equal(t, b, res.Labels[n+i], "point %d", n+i)
			}
			assert.Equal(t, 0, res.Labels[2*n])
			assert.Equal(t, 0, res.Labels[2*n+1])
			assert.Equal(t, map[int]int{1: n, 2: n}, res.Sizes)
		})
	}
}

func TestDBSCAN_EstimatedEpsilon(t *testing.T) {
	pts, n := twoBlobs()
	tree := buildIndex(t, pts)

	cfg := quietConfig()
	cfg.MinPoints = 3
	res, err := DBSCAN(tree, cfg)
	require.NoError(t, err)

	require.NotNil(t, res.Estimate)
	assert.Equal(t, 2, res.Estimate.K)
	assert.Equal(t, res.Estimate.Epsilon, res.Epsilon)
	assert.Positive(t, res.Epsilon)
	assert.NotZero(t, res.Labels[0])
	assert.Equal(t, res.Labels[0], res.Labels[n-1])
}

func TestDBSCAN_Methods(t *testing.T) {
	// Two runs of points spaced 1 apart: {0, 1, 2} and {10, 11, 12, 13}.
	pts := [][]float64{{0}, {1}, {2}, {10}, {11}, {12}, {13}}
	tree := buildIndex(t, pts)

	tests := []struct {
		name      string
		method    Method
		minPoints int
		clusters  int
		noise     int
	}{
		// Points 1, 11 and 12 have two neighbors and pull in the ends.
		{"dbscan min 3", MethodDBSCAN, 3, 2, 0},
		// Nobody has three neighbors.
		{"dbscan min 4", MethodDBSCAN, 4, 0, 7},
		// Any neighbor merges, the short run is too small to keep.
		{"dbscan2 min 4", MethodDBSCAN2, 4, 1, 3},
		{"dbscan2 min 5", MethodDBSCAN2, 5, 0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := quietConfig()
			cfg.Method = tt.method
			cfg.Epsilon = 1
			cfg.MinPoints = tt.minPoints

			res, err := DBSCAN(tree, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.clusters, res.NumClusters)
			assert.Equal(t, tt.noise, res.NumNoise)
			assert.Len(t, res.Labels, len(pts))
		})
	}
}

func TestDBSCAN2_KeepsLargeRun(t *testing.T) {
	pts := [][]float64{{0}, {1}, {2}, {10}, {11}, {12}, {13}}
	tree := buildIndex(t, pts)

	cfg := quietConfig()
	cfg.Method = MethodDBSCAN2
	cfg.Epsilon = 1
	cfg.MinPoints = 4
	res, err := DBSCAN(tree, cfg)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 1}, res.Labels)
	assert.Equal(t, map[int]int{1: 4}, res.Sizes)
}

func TestDBSCAN_DefaultMinPoints(t *testing.T) {
	// Two dimensions: three points make a neighborhood dense.
	pts := [][]float64{{0, 0}, {0, 1}, {1, 0}, {9, 9}}
	tree := buildIndex(t, pts)

	cfg := quietConfig()
	cfg.Epsilon = 1
	res, err := DBSCAN(tree, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 0}, res.Labels)
}

func TestDBSCAN_ClampsMinPoints(t *testing.T) {
	var buf bytes.Buffer
	pts := [][]float64{{0}, {1}, {5}}
	tree := buildIndex(t, pts)

	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	cfg.Epsilon = 1
	cfg.MinPoints = 1
	res, err := DBSCAN(tree, cfg)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "at least 2")
	assert.Equal(t, []int{1, 1, 0}, res.Labels)
}

func TestDBSCAN_ConfigErrors(t *testing.T) {
	tree := buildIndex(t, [][]float64{{0}, {1}, {2}})

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"method", Config{Method: "optics", Epsilon: 1}, ErrInvalidMethod},
		{"negative epsilon", Config{Epsilon: -1}, ErrInvalidEpsilon},
		{"negative min points", Config{Epsilon: 1, MinPoints: -2}, ErrInvalidMinPoints},
		{"too few points", Config{Epsilon: 1, MinPoints: 5}, ErrNotEnoughPoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = quietConfig().Logger
			_, err := DBSCAN(tree, tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDBSCAN_NoClustersLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	tree := buildIndex(t, [][]float64{{0}, {5}, {10}})

	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	cfg.Epsilon = 1
	cfg.MinPoints = 2
	res, err := DBSCAN(tree, cfg)
	require.NoError(t, err)

	assert.Equal(t, 0, res.NumClusters)
	assert.Equal(t, 3, res.NumNoise)
	assert.Contains(t, buf.String(), "no clusters found")
}

func TestDBSCAN_RepeatedRowsKeepLabels(t *testing.T) {
	// Three rows at one location, plus an outlier.
	pts := [][]float64{{1, 1}, {1, 1}, {1, 1}, {50, 50}}
	tree := buildIndex(t, pts)
	require.Equal(t, len(pts), tree.Len())

	cfg := quietConfig()
	cfg.Epsilon = 1
	cfg.MinPoints = 3
	res, err := DBSCAN(tree, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 0}, res.Labels)
	assert.Equal(t, map[int]int{1: 3}, res.Sizes)
}
