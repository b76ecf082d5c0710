package cluster

import (
	"cmp"
	"slices"

	"github.com/TrevorS/kdtree"
)

// density builds nested clusters from the densest points outward.
//
// Points are taken in ascending order of core distance. A point not yet in
// a cluster starts one, claiming its unclaimed neighbors; when it claims
// fewer than k the attempt is undone. Otherwise the cluster grows through
// the neighbors of its members that lie within the starting point's core
// distance.
func density(idx Index, pts []kdtree.Point, k int, cfg Config) *Result {
	nbs := nearest(idx, pts, k, cfg.Workers)

	core := make([]float64, len(pts))
	order := make([]int, len(pts))
	for i, p := range pts {
		core[p.ID] = dist(nbs[p.ID][len(nbs[p.ID])-1])
		order[i] = p.ID
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(core[a], core[b]) })

	labels := make([]int, len(pts))
	clusters := 0
	var members []int
	for _, seed := range order {
		if labels[seed] > 0 {
			continue
		}

		clusters++
		c := clusters
		labels[seed] = c
		members = members[:0]
		for _, nb := range nbs[seed] {
			if labels[nb.ID] == 0 {
				labels[nb.ID] = c
				members = append(members, nb.ID)
			}
		}
		if len(members) < k {
			clusters--
			labels[seed] = 0
			for _, id := range members {
				labels[id] = 0
			}
			continue
		}

		reach := core[seed]
		for len(members) > 0 {
			id := members[len(members)-1]
			members = members[:len(members)-1]
			for _, nb := range nbs[id] {
				if labels[nb.ID] == 0 && dist(nb) <= reach {
					labels[nb.ID] = c
					members = append(members, nb.ID)
				}
			}
		}
	}
	cfg.Logger.Debug("cluster: density clusters built", "clusters", clusters)

	res := &Result{Labels: labels}
	tally(res)
	return res
}
