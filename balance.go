package kdtree

import (
	"fmt"
	"math/bits"
	"slices"
)

// optimizeTolerance is the tolerance Optimize balances to, regardless of the
// tree's own tolerance.
const optimizeTolerance = MinBalanceTolerance

// maxOptimizePasses caps the repeated bottom-up passes of Optimize level 2.
const maxOptimizePasses = 8

// taller returns the child slot with the greater height, high on a tie.
func taller(n *node) int {
	if height(n.child[low]) > height(n.child[high]) {
		return low
	}
	return high
}

// within reports whether the subtree heights of n differ by at most tol.
func within(n *node, tol int) bool {
	diff := height(n.child[low]) - height(n.child[high])
	return diff <= tol && -diff <= tol
}

// maxSettleSteps caps the balance steps settle takes before it falls back to
// rebuilding the subtree.
const maxSettleSteps = 8

// balance performs one rebalancing step on n if the heights of its subtrees
// differ by more than tol, and reports whether it did.
//
// Children split on other axes than n, so values cannot be rotated between
// parent and child as in a one-dimensional tree. Instead n's value is copied
// aside, n is refilled from its taller subtree by replace, and the copy is
// inserted again below n, where it lands on the shorter side. The nodes on
// both disturbed paths are then checked bottom-up and any that ended out of
// tol is rebuilt in place, so the step never starts further steps below n.
func (t *Tree) balance(n *node, tol int) bool {
	if n == nil || within(n, tol) {
		return false
	}
	t.stats.Steps++

	moved := &node{
		coords: slices.Clone(n.coords),
		id:     n.id,
		dim:    t.nextDim[n.dim],
	}

	rpath := t.replace(n)
	ipath, ok := t.insertAt(n, moved, true, false)
	if !ok {
		panic(fmt.Errorf("%w: rebalanced point %d collides with a stored point", ErrCorrupted, moved.id))
	}

	for i := len(rpath) - 1; i >= 1; i-- {
		t.repair(rpath[i], tol)
	}
	for i := len(ipath) - 1; i >= 1; i-- {
		t.repair(ipath[i].n, tol)
	}
	n.refresh()
	return true
}

// repair refreshes the height of n and rebuilds its subtree if that leaves
// n out of tol.
func (t *Tree) repair(n *node, tol int) {
	n.refresh()
	if !within(n, tol) {
		t.rebuild(n)
	}
}

// settle brings n within tol with up to maxSettleSteps balance steps and
// rebuilds the subtree of n if they were not enough. Every node below n
// that was within tol stays within it. It reports whether the subtree
// changed.
func (t *Tree) settle(n *node, tol int) bool {
	changed := false
	for i := 0; i < maxSettleSteps; i++ {
		if !t.balance(n, tol) {
			return changed
		}
		changed = true
	}
	if !within(n, tol) {
		t.rebuild(n)
	}
	return true
}

// settlePath settles the nodes of a root-to-leaf path bottom-up.
func (t *Tree) settlePath(path []*node, tol int) {
	for i := len(path) - 1; i >= 0; i-- {
		t.settle(path[i], tol)
		path[i].refresh()
	}
}

type buildTask struct {
	slot *node
	dim  int
	vals []*node
}

// rebuild rearranges the subtree of n by median splits, the way a static
// k-d tree is built, so the subtree heights of every node in it differ by
// at most one. n stays the subtree root with its split dimension and the
// existing nodes are reused.
func (t *Tree) rebuild(n *node) {
	all := subtree(n, t.maxDepth)
	t.stats.Rebuilds++
	t.stats.RebuiltNodes += len(all)

	vals := make([]*node, len(all))
	for i, m := range all {
		vals[i] = &node{coords: m.coords, id: m.id}
	}
	free := all[1:]

	s := newStack[buildTask](2*t.maxDepth + 2)
	s.push(buildTask{slot: n, dim: n.dim, vals: vals})
	for s.len() > 0 {
		task := s.pop()
		d := task.dim
		slices.SortFunc(task.vals, func(a, b *node) int { return compare(a, b, d) })
		mid := len(task.vals) / 2

		slot := task.slot
		slot.dim = d
		slot.coords = task.vals[mid].coords
		slot.id = task.vals[mid].id
		slot.height = bits.Len(uint(len(task.vals))) - 1
		slot.child = [2]*node{}

		for dir, part := range [2][]*node{task.vals[:mid], task.vals[mid+1:]} {
			if len(part) == 0 {
				continue
			}
			c := free[len(free)-1]
			free = free[:len(free)-1]
			slot.child[dir] = c
			s.push(buildTask{slot: c, dim: t.nextDim[d], vals: part})
		}
	}
}

// subtree lists the nodes under n, n first.
func subtree(n *node, limit int) []*node {
	var out []*node
	s := newStack[*node](limit)
	s.push(n)
	for s.len() > 0 {
		m := s.pop()
		out = append(out, m)
		for _, c := range m.child {
			if c != nil {
				s.push(c)
			}
		}
	}
	return out
}

// replace refills r, which must have at least one child, with a value taken
// from its taller subtree and physically removes one leaf. The donor is the
// extreme node of that subtree under r's split dimension: the smallest on
// the high side or the largest on the low side, so the ordering around r is
// kept. A donor that is not a leaf is refilled the same way, until the donor
// is a leaf that can be detached.
//
// It returns the path from r down to the parent of the detached leaf, with
// heights refreshed.
func (t *Tree) replace(r *node) []*node {
	path := []*node{r}
	vacant := r
	for {
		dir := taller(vacant)
		sub := vacant.child[dir]
		donor := t.extreme(sub, vacant.dim, dir)

		for n := sub; n != donor; n = n.child[t.side(donor, n)] {
			path = append(path, n)
		}
		vacant.setValue(donor)

		if donor.height == 0 {
			parent := path[len(path)-1]
			if parent.child[low] == donor {
				parent.child[low] = nil
			} else {
				parent.child[high] = nil
			}
			break
		}
		path = append(path, donor)
		vacant = donor
	}

	if len(path) > t.maxDepth {
		panic(overflow(t.maxDepth))
	}
	for i := len(path) - 1; i >= 0; i-- {
		path[i].refresh()
	}
	return path
}

// extreme finds the node of the subtree sub that sorts first (dir == high)
// or last (dir == low) under dimension d. Where a node splits on d only one
// of its subtrees can hold a better value; elsewhere both are searched.
func (t *Tree) extreme(sub *node, d, dir int) *node {
	better := func(a, b *node) bool {
		c := compare(a, b, d)
		if dir == high {
			return c < 0
		}
		return c > 0
	}

	var best *node
	s := newStack[*node](t.maxDepth)
	s.push(sub)
	for s.len() > 0 {
		n := s.pop()
		if best == nil || better(n, best) {
			best = n
		}
		if n.dim == d {
			if c := n.child[1-dir]; c != nil {
				s.push(c)
			}
			continue
		}
		for _, c := range n.child {
			if c != nil {
				s.push(c)
			}
		}
	}
	return best
}

// Optimize rebalances the whole tree to the tightest tolerance. Callers that
// query far more often than they modify can run it after bulk loading.
//
// Level 0 balances every node once on the way down. Level 1 balances each
// node again after its subtrees. Level 2 and above also repeats bottom-up
// passes over the tree until a pass changes nothing.
//
// The tree's own tolerance is unchanged; later insertions and removals only
// keep it within that.
func (t *Tree) Optimize(level int) {
	t.mustBeAlive()
	if t.root == nil {
		return
	}

	t.optimizePass(level >= 1)
	if level < 2 {
		return
	}
	for i := 0; i < maxOptimizePasses; i++ {
		if !t.bottomUpPass() {
			return
		}
	}
}

type optFrame struct {
	n    *node
	post bool
}

// optimizePass settles nodes in preorder and, with again set, once more in
// postorder. Heights are refreshed in postorder either way.
func (t *Tree) optimizePass(again bool) {
	s := newStack[optFrame](2*t.maxDepth + 2)
	s.push(optFrame{n: t.root})
	for s.len() > 0 {
		f := s.pop()
		if f.post {
			if again {
				t.settle(f.n, optimizeTolerance)
			}
			f.n.refresh()
			continue
		}
		t.settle(f.n, optimizeTolerance)
		s.push(optFrame{n: f.n, post: true})
		for _, c := range f.n.child {
			if c != nil {
				s.push(optFrame{n: c})
			}
		}
	}
}

// bottomUpPass settles every node after both of its subtrees, leaves first,
// and reports whether any node changed.
func (t *Tree) bottomUpPass() bool {
	changed := false
	s := newStack[optFrame](2*t.maxDepth + 2)
	s.push(optFrame{n: t.root})
	for s.len() > 0 {
		f := s.pop()
		if f.post {
			if t.settle(f.n, optimizeTolerance) {
				changed = true
			}
			f.n.refresh()
			continue
		}
		s.push(optFrame{n: f.n, post: true})
		for _, c := range f.n.child {
			if c != nil {
				s.push(optFrame{n: c})
			}
		}
	}
	return changed
}
