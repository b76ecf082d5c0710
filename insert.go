package kdtree

import (
	"math"
	"slices"
)

// frame records one step of a root-to-leaf descent.
type frame struct {
	n   *node
	dir int
	// before is n's height as its parent last saw it.
	before int
}

// Insert adds the point (coords, id) and reports whether a new node was
// created. A point whose coordinates equal an existing node's is rejected
// when allowDupCoords is false, or when the ids match too. Coordinates must
// be finite; NaN or infinite values panic with ErrInvalidCoordinate.
func (t *Tree) Insert(coords []float64, id int, allowDupCoords bool) bool {
	t.checkCoords(coords)
	nn := &node{coords: slices.Clone(coords), id: id}

	if t.root == nil {
		t.root = nn
		t.count++
		return true
	}

	// Keep the descent short before walking it.
	t.settle(t.root, t.tolerance)

	if _, ok := t.insertAt(t.root, nn, allowDupCoords, true); !ok {
		return false
	}
	t.count++
	return true
}

// insertAt descends from start and attaches nn. With inline set, the
// children of every visited node are settled on the way down and the path
// is settled again on the way up; without it only heights are refreshed and
// the caller is responsible for balance. The visited path is returned.
func (t *Tree) insertAt(start, nn *node, allowDup, inline bool) ([]frame, bool) {
	path := newStack[frame](t.maxDepth)
	// bound is the shallowest path index whose subtree was changed by inline
	// settling. Above it the upward pass may stop at the first node whose
	// height is unchanged.
	bound := math.MaxInt

	n := start
	for {
		if t.coordsEqual(nn, n) && (!allowDup || nn.id == n.id) {
			return nil, false
		}

		f := frame{n: n, before: n.height}
		if inline {
			changed := false
			for _, c := range n.child {
				if c != nil && t.settle(c, t.tolerance) {
					changed = true
				}
			}
			if n.refresh() {
				changed = true
			}
			if changed && bound == math.MaxInt {
				bound = path.len()
			}
		}

		f.dir = t.side(nn, n)
		path.push(f)

		if allowDup && t.chainAhead(n, f.dir) {
			t.splitChain(n, f.dir, nn)
			break
		}
		if n.child[f.dir] == nil {
			nn.dim = t.nextDim[n.dim]
			nn.height = 0
			n.child[f.dir] = nn
			break
		}
		n = n.child[f.dir]
	}

	t.fixUp(path.items, bound, inline)
	return path.items, true
}

// chainAhead reports whether n is a height-1 node whose only child sits in
// slot dir. Attaching below that child would grow a chain of single-child
// nodes, which repeated equal coordinates otherwise produce.
func (t *Tree) chainAhead(n *node, dir int) bool {
	return n.height == 1 && n.child[dir] != nil && n.child[1-dir] == nil
}

// splitChain turns n, its single leaf child and the new node nn into a
// three-node subtree of unchanged height rooted at n: the median value under
// n's split dimension stays in n and the other two become its leaves.
func (t *Tree) splitChain(n *node, dir int, nn *node) {
	c := n.child[dir]
	d := n.dim

	vals := []*node{
		{coords: slices.Clone(n.coords), id: n.id},
		{coords: slices.Clone(c.coords), id: c.id},
		{coords: slices.Clone(nn.coords), id: nn.id},
	}
	slices.SortFunc(vals, func(a, b *node) int { return compare(a, b, d) })

	n.setValue(vals[1])
	c.setValue(vals[0])
	nn.setValue(vals[2])

	for _, leaf := range []*node{c, nn} {
		leaf.dim = t.nextDim[d]
		leaf.height = 0
		leaf.child = [2]*node{}
	}
	n.child[low], n.child[high] = c, nn
	n.height = 1
}

// fixUp walks path bottom-up refreshing heights. When settle is set each
// node is also brought within tolerance. The walk stops at the first node at
// or above bound whose height matches what its parent last saw.
func (t *Tree) fixUp(path []frame, bound int, settle bool) {
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i].n
		if settle {
			t.settle(n, t.tolerance)
		}
		n.refresh()
		if i <= bound && n.height == path[i].before {
			return
		}
	}
}
