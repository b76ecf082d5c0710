package cluster

import (
	"container/heap"

	"github.com/TrevorS/kdtree"
)

// reachItem is a point waiting to be processed at a reachability.
type reachItem struct {
	id    int
	reach float64
}

// reachHeap is a min-heap by reachability, then id. A point can appear more
// than once; entries for processed points are skipped when popped.
type reachHeap []reachItem

func (h reachHeap) Len() int { return len(h) }
func (h reachHeap) Less(i, j int) bool {
	if h[i].reach != h[j].reach {
		return h[i].reach < h[j].reach
	}
	return h[i].id < h[j].id
}
func (h reachHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *reachHeap) Push(x any)   { *h = append(*h, x.(reachItem)) }
func (h *reachHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// optics orders the points by reachability and cuts the ordering into
// clusters.
//
// Each unprocessed point in traversal order starts a run with its core
// distance as reachability. Processing a point lowers the reachability of
// its unprocessed neighbors to their distance from it, and the run
// continues with the lowest reachability waiting. A new cluster starts at
// the first point of every run and after every point whose reachability
// exceeds epsilon, which becomes noise. Epsilon 0 cuts only between runs.
func optics(idx Index, pts []kdtree.Point, k int, cfg Config) *Result {
	nbs := nearest(idx, pts, k, cfg.Workers)

	n := len(pts)
	processed := make([]bool, n)
	reach := make([]float64, n)
	prev := make([]int, n)
	for i := range reach {
		reach[i] = -1
		prev[i] = -1
	}

	order := make([]int, 0, n)
	var waiting reachHeap
	process := func(id int) {
		processed[id] = true
		order = append(order, id)
		for _, nb := range nbs[id] {
			if processed[nb.ID] {
				continue
			}
			d := dist(nb)
			if reach[nb.ID] < 0 || reach[nb.ID] > d {
				reach[nb.ID] = d
				prev[nb.ID] = id
				heap.Push(&waiting, reachItem{id: nb.ID, reach: d})
			}
		}
	}

	runs := 0
	for _, p := range pts {
		if processed[p.ID] {
			continue
		}
		runs++
		reach[p.ID] = dist(nbs[p.ID][len(nbs[p.ID])-1])
		process(p.ID)
		for waiting.Len() > 0 {
			item := heap.Pop(&waiting).(reachItem)
			if !processed[item.id] {
				process(item.id)
			}
		}
	}
	cfg.Logger.Debug("cluster: reachability ordering built", "runs", runs)

	labels := make([]int, n)
	clusters := 0
	out := true
	for _, id := range order {
		if cfg.Epsilon > 0 && reach[id] > cfg.Epsilon {
			out = true
			continue
		}
		if out || prev[id] == -1 {
			out = false
			clusters++
		}
		labels[id] = clusters
	}

	res := &Result{
		Labels:       labels,
		Epsilon:      cfg.Epsilon,
		Order:        order,
		Reachability: reach,
	}
	tally(res)
	return res
}

// optics2 links every point to the processed neighbor that reaches it
// closest and clusters the connected link chains.
//
// Points are processed in traversal order. A neighbor q of p is reached at
// their distance, or at q's own core distance if q was processed and that
// is larger. When this lowers q's reachability, q is linked to p. A pair
// linked both ways keeps only the link leaving the point with the larger
// core distance. Points with no link and no incoming link are noise.
func optics2(idx Index, pts []kdtree.Point, k int, cfg Config) *Result {
	nbs := nearest(idx, pts, k, cfg.Workers)

	n := len(pts)
	core := make([]float64, n)
	reach := make([]float64, n)
	next := make([]int, n)
	for i := 0; i < n; i++ {
		core[i], reach[i], next[i] = -1, -1, -1
	}

	for _, p := range pts {
		id := p.ID
		core[id] = dist(nbs[id][len(nbs[id])-1])
		for _, nb := range nbs[id] {
			q := nb.ID
			r := dist(nb)
			if core[q] > r {
				r = core[q]
			}
			if reach[q] != -1 && reach[q] <= r {
				continue
			}
			reach[q] = r
			next[q] = id
			if next[id] != q {
				continue
			}
			if core[q] < core[id] {
				next[q], reach[q] = -1, -1
			} else {
				next[id], reach[id] = -1, -1
			}
		}
	}

	// cid holds provisional cluster numbers; parent[c] points a merged
	// provisional cluster at the one it was merged into.
	cid := make([]int, n)
	parent := []int{0}
	root := func(c int) int {
		for parent[c] != c {
			c = parent[c]
		}
		return c
	}
	for i := 0; i < n; i++ {
		if cid[i] > 0 || next[i] == -1 {
			continue
		}
		if c := cid[next[i]]; c > 0 {
			cid[i] = parent[c]
			continue
		}

		c := len(parent)
		parent = append(parent, c)
		cid[i] = c
		for u := next[i]; u != -1; u = next[u] {
			if cid[u] > 0 {
				parent[root(cid[u])] = c
				break
			}
			cid[u] = c
		}
	}

	renumber := make([]int, len(parent))
	clusters := 0
	for c := 1; c < len(parent); c++ {
		if parent[c] == c {
			clusters++
			renumber[c] = clusters
		}
	}

	labels := make([]int, n)
	for i, c := range cid {
		if c > 0 {
			labels[i] = renumber[root(c)]
		}
	}

	res := &Result{Labels: labels}
	tally(res)
	return res
}
