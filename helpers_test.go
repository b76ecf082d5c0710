package kdtree

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomPoints returns n points in [0, scale)^dims. A small scale produces
// many repeated coordinates.
func randomPoints(rng *rand.Rand, n, dims int, scale float64) [][]float64 {
	pts := make([][]float64, n)
	for i := range pts {
		pts[i] = make([]float64, dims)
		for j := range pts[i] {
			pts[i][j] = rng.Float64() * scale
		}
	}
	return pts
}

// gridPoints returns n points with integer coordinates in [0, side)^dims.
func gridPoints(rng *rand.Rand, n, dims, side int) [][]float64 {
	pts := make([][]float64, n)
	for i := range pts {
		pts[i] = make([]float64, dims)
		for j := range pts[i] {
			pts[i][j] = float64(rng.Intn(side))
		}
	}
	return pts
}

// buildTree inserts pts with ids equal to their index.
func buildTree(t testing.TB, pts [][]float64, allowDup bool, opts ...Option) *Tree {
	t.Helper()
	tree := New(len(pts[0]), opts...)
	for i, p := range pts {
		tree.Insert(p, i, allowDup)
	}
	return tree
}

// checkTree verifies cached heights, the balance tolerance, the ordering of
// every subtree against its root and the point count.
func checkTree(t testing.TB, tree *Tree) {
	t.Helper()
	require.NoError(t, verify(tree, tree.tolerance))
}

func verify(tree *Tree, tol int) error {
	count := 0
	var walk func(n *node) (int, error)
	walk = func(n *node) (int, error) {
		if n == nil {
			return -1, nil
		}
		count++
		if len(n.coords) != tree.ndims {
			return 0, fmt.Errorf("node %d has %d coords", n.id, len(n.coords))
		}
		lh, err := walk(n.child[low])
		if err != nil {
			return 0, err
		}
		hh, err := walk(n.child[high])
		if err != nil {
			return 0, err
		}
		h := max(lh, hh) + 1
		if h != n.height {
			return 0, fmt.Errorf("node %d: cached height %d, actual %d", n.id, n.height, h)
		}
		if lh-hh > tol || hh-lh > tol {
			return 0, fmt.Errorf("node %d: subtree heights %d and %d exceed tolerance %d", n.id, lh, hh, tol)
		}
		for dir, c := range n.child {
			if err := checkSide(c, n, dir); err != nil {
				return 0, err
			}
		}
		return h, nil
	}
	if _, err := walk(tree.root); err != nil {
		return err
	}
	if count != tree.count {
		return fmt.Errorf("tree reports %d points, holds %d", tree.count, count)
	}
	return nil
}

// checkSide verifies that every node under sub sorts on side dir of parent.
func checkSide(sub, parent *node, dir int) error {
	if sub == nil {
		return nil
	}
	c := compare(sub, parent, parent.dim)
	if (dir == low && c >= 0) || (dir == high && c <= 0) {
		return fmt.Errorf("node %d %v is on the wrong side of node %d %v (dim %d)",
			sub.id, sub.coords, parent.id, parent.coords, parent.dim)
	}
	for _, c := range sub.child {
		if err := checkSide(c, parent, dir); err != nil {
			return err
		}
	}
	return nil
}

// heightBound returns the greatest height a tree of n points can reach while
// every node keeps its subtree heights within tol of each other.
func heightBound(n, tol int) int {
	// fewest[h] is the fewest points a tree of height h can hold.
	fewest := []int{1}
	at := func(h int) int {
		if h < 0 {
			return 0
		}
		return fewest[h]
	}
	for h := 1; ; h++ {
		fewest = append(fewest, 1+at(h-1)+at(h-1-tol))
		if fewest[h] > n {
			return h - 1
		}
	}
}

type idPoint struct {
	id     int
	coords []float64
}

// pointSet is the expected content of a tree, keyed by id.
type pointSet map[int][]float64

func (s pointSet) sorted() []idPoint {
	out := make([]idPoint, 0, len(s))
	for id, c := range s {
		out = append(out, idPoint{id: id, coords: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// bruteForceKNN sorts all points by squared distance to q, then id.
func bruteForceKNN(pts pointSet, q []float64, k int, skip *int) []Neighbor {
	var all []Neighbor
	for id, c := range pts {
		if skip != nil && id == *skip {
			continue
		}
		all = append(all, Neighbor{ID: id, SqDist: SqDist(q, c)})
	}
	sort.Slice(all, func(i, j int) bool { return less(all[i].SqDist, all[i].ID, all[j]) })
	if len(all) > k {
		all = all[:k]
	}
	return all
}

func bruteForceDNN(pts pointSet, q []float64, radius float64, skip *int) []Neighbor {
	all := bruteForceKNN(pts, q, len(pts), skip)
	var out []Neighbor
	for _, nb := range all {
		if nb.SqDist <= radius*radius {
			out = append(out, nb)
		}
	}
	return out
}

func bruteForceRNN(pts pointSet, box []float64, skip *int) []int {
	dims := len(box) / 2
	var out []int
	for id, c := range pts {
		if skip != nil && id == *skip {
			continue
		}
		if inBox(c, box[:dims], box[dims:]) {
			out = append(out, id)
		}
	}
	return out
}

func traversalIDs(tree *Tree) []int {
	var ids []int
	for _, p := range tree.Points() {
		ids = append(ids, p.ID)
	}
	return ids
}

// recoverError runs fn and returns the error it panicked with, if any.
func recoverError(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = errors.New(fmt.Sprint(r))
		}
	}()
	fn()
	return nil
}
