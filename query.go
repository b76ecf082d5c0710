package kdtree

import (
	"fmt"
	"math"
	"slices"
)

// dnnGrowth is the number of result slots DNN and RNN add when their
// result slices fill up.
const dnnGrowth = 10

// Neighbor is a query result: a point id and its squared Euclidean distance
// to the query coordinates.
type Neighbor struct {
	ID     int
	SqDist float64
}

// Skip returns an id to pass as the skip argument of a query.
func Skip(id int) *int { return &id }

type searchFrame struct {
	n   *node
	dir int
}

// walk is the depth-first search shared by all queries. It descends from
// the root along the side of each node the key falls on, then backtracks,
// visiting every node on the way up. The far subtree of a node is entered
// only if far reports it may hold matches. A visit returning false stops
// the walk.
func (t *Tree) walk(key *node, visit func(n *node) bool, far func(n *node, dir int) bool) {
	s := newStack[searchFrame](t.maxDepth)
	descend := func(from *node) {
		for n := from; n != nil; {
			dir := t.side(key, n)
			s.push(searchFrame{n: n, dir: dir})
			n = n.child[dir]
		}
	}

	descend(t.root)
	for s.len() > 0 {
		f := s.pop()
		if !visit(f.n) {
			return
		}
		if c := f.n.child[1-f.dir]; c != nil && far(f.n, 1-f.dir) {
			descend(c)
		}
	}
}

// planeDist is the squared distance from q to the splitting plane of n.
func planeDist(q []float64, n *node) float64 {
	d := q[n.dim] - n.coords[n.dim]
	return d * d
}

func skipped(n *node, skip *int) bool {
	return skip != nil && n.id == *skip
}

// KNN returns up to k points nearest to coords, ordered by ascending squared
// distance and then by id. A point whose id equals *skip is left out of the
// result.
func (t *Tree) KNN(coords []float64, k int, skip *int) []Neighbor {
	t.checkCoords(coords)
	if k <= 0 || t.root == nil {
		return nil
	}

	key := queryKey(coords)
	res := make([]Neighbor, 0, k+1)
	t.walk(key,
		func(n *node) bool {
			if !skipped(n, skip) {
				nb := Neighbor{ID: n.id, SqDist: SqDist(coords, n.coords)}
				if last := len(res) - 1; len(res) < k || !less(res[last].SqDist, res[last].ID, nb) {
					res = insertSorted(res, nb)
					if len(res) > k {
						res = res[:k]
					}
				}
			}
			// Nothing can beat k exact hits.
			return len(res) < k || res[k-1].SqDist > 0
		},
		func(n *node, _ int) bool {
			return len(res) < k || planeDist(coords, n) <= res[len(res)-1].SqDist
		},
	)
	return res
}

// DNN returns every point within radius of coords, ordered by ascending
// squared distance and then by id. A point whose id equals *skip is left out
// of the result. The returned slice is owned by the caller.
func (t *Tree) DNN(coords []float64, radius float64, skip *int) []Neighbor {
	t.checkCoords(coords)
	if t.root == nil || radius < 0 {
		return nil
	}

	r2 := radius * radius
	key := queryKey(coords)
	var res []Neighbor
	t.walk(key,
		func(n *node) bool {
			if skipped(n, skip) {
				return true
			}
			if d := SqDist(coords, n.coords); d <= r2 {
				if len(res) == cap(res) {
					res = slices.Grow(res, dnnGrowth)
				}
				res = insertSorted(res, Neighbor{ID: n.id, SqDist: d})
			}
			return true
		},
		func(n *node, _ int) bool {
			return planeDist(coords, n) <= r2
		},
	)
	return res
}

// RNN returns the ids of all points inside the closed box. The box holds
// 2*Dims() values: the minimum of every axis followed by the maximum of
// every axis. A point whose id equals *skip is left out. The order of the
// result is unspecified.
func (t *Tree) RNN(box []float64, skip *int) []int {
	t.mustBeAlive()
	if len(box) != 2*t.ndims {
		panic(fmt.Errorf("%w: box has %d values, want %d", ErrDimensionMismatch, len(box), 2*t.ndims))
	}
	if t.root == nil {
		return nil
	}

	lo, hi := box[:t.ndims], box[t.ndims:]
	center := make([]float64, t.ndims)
	for i := range center {
		center[i] = (lo[i] + hi[i]) / 2
	}

	var res []int
	t.walk(queryKey(center),
		func(n *node) bool {
			if !skipped(n, skip) && inBox(n.coords, lo, hi) {
				if len(res) == cap(res) {
					res = slices.Grow(res, dnnGrowth)
				}
				res = append(res, n.id)
			}
			return true
		},
		func(n *node, dir int) bool {
			if dir == low {
				return lo[n.dim] <= n.coords[n.dim]
			}
			return hi[n.dim] >= n.coords[n.dim]
		},
	)
	return res
}

func inBox(c, lo, hi []float64) bool {
	for i, v := range c {
		if v < lo[i] || v > hi[i] {
			return false
		}
	}
	return true
}

// queryKey wraps query coordinates for descent. Its id sorts before every
// stored id, so the walk visits points at the query coordinates in id order
// and KNN can stop after k of them.
func queryKey(coords []float64) *node {
	return &node{coords: coords, id: math.MinInt}
}

// less orders a candidate (d, id) before the neighbor nb.
func less(d float64, id int, nb Neighbor) bool {
	return d < nb.SqDist || (d == nb.SqDist && id < nb.ID)
}

// insertSorted inserts nb into res, which is ordered by distance then id,
// shifting larger entries up by one. It panics with ErrDuplicateRank if an
// entry with the same distance and id is already present.
func insertSorted(res []Neighbor, nb Neighbor) []Neighbor {
	i := len(res)
	res = append(res, nb)
	for i > 0 && less(nb.SqDist, nb.ID, res[i-1]) {
		res[i] = res[i-1]
		i--
	}
	if i > 0 && res[i-1] == nb {
		panic(fmt.Errorf("%w: id %d at squared distance %g", ErrDuplicateRank, nb.ID, nb.SqDist))
	}
	res[i] = nb
	return res
}
