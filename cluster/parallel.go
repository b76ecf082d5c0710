package cluster

import (
	"math"
	"runtime"
	"sync"

	"github.com/TrevorS/kdtree"
)

// forRanges splits [0, n) into contiguous ranges and runs fn on each from
// its own goroutine. Ranges don't overlap, so fn may write to disjoint
// slice elements without synchronization. With workers <= 1 fn runs once
// on the caller's goroutine.
func forRanges(n, workers int, fn func(start, end int)) {
	if workers <= 1 || n <= 1 {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	rowsPerWorker := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := min(startRow+rowsPerWorker, n)
		if startRow >= n {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(startRow, endRow)
	}

	wg.Wait()
}

func workerCount(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

// CoreDistances returns, for every indexed point, the distance to its k-th
// nearest other point, or to the farthest one found when fewer than k other
// points exist. The slice is indexed by point id; a point with no other
// point to measure against gets NaN. Queries are spread over workers
// goroutines, 0 meaning one per CPU.
func CoreDistances(idx Index, k, workers int) ([]float64, error) {
	pts, err := indexedPoints(idx)
	if err != nil {
		return nil, err
	}

	core := make([]float64, len(pts))
	if k <= 0 {
		return core, nil
	}

	forRanges(len(pts), workerCount(workers), func(start, end int) {
		for _, p := range pts[start:end] {
			nbs := idx.KNN(p.Coords, k, kdtree.Skip(p.ID))
			if len(nbs) == 0 {
				core[p.ID] = math.NaN()
				continue
			}
			core[p.ID] = math.Sqrt(nbs[len(nbs)-1].SqDist)
		}
	})
	return core, nil
}

// nearest returns the k nearest other points of every point in pts,
// indexed by point id.
func nearest(idx Index, pts []kdtree.Point, k, workers int) [][]kdtree.Neighbor {
	out := make([][]kdtree.Neighbor, len(pts))
	forRanges(len(pts), workers, func(start, end int) {
		for _, p := range pts[start:end] {
			out[p.ID] = idx.KNN(p.Coords, k, kdtree.Skip(p.ID))
		}
	})
	return out
}

func dist(nb kdtree.Neighbor) float64 { return math.Sqrt(nb.SqDist) }
