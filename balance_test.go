package kdtree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unbalancedTree attaches pts without any rebalancing.
func unbalancedTree(t *testing.T, pts [][]float64, opts ...Option) *Tree {
	t.Helper()
	tree := New(len(pts[0]), opts...)
	for i, p := range pts {
		nn := &node{coords: append([]float64(nil), p...), id: i}
		if tree.root == nil {
			tree.root = nn
		} else {
			_, ok := tree.insertAt(tree.root, nn, false, false)
			require.True(t, ok)
		}
		tree.count++
	}
	return tree
}

func sortedPoints(n int) [][]float64 {
	pts := make([][]float64, n)
	for i := range pts {
		pts[i] = []float64{float64(i), float64(n - i)}
	}
	return pts
}

func subtreeNodes(n *node) []*node {
	if n == nil {
		return nil
	}
	out := []*node{n}
	for _, c := range n.child {
		out = append(out, subtreeNodes(c)...)
	}
	return out
}

func TestExtreme_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	tree := buildTree(t, gridPoints(rng, 500, 3, 6), true)

	for _, sub := range subtreeNodes(tree.root)[:60] {
		all := subtreeNodes(sub)
		for d := 0; d < 3; d++ {
			lowest, highest := all[0], all[0]
			for _, n := range all[1:] {
				if compare(n, lowest, d) < 0 {
					lowest = n
				}
				if compare(n, highest, d) > 0 {
					highest = n
				}
			}
			assert.Same(t, lowest, tree.extreme(sub, d, high), "smallest under dim %d", d)
			assert.Same(t, highest, tree.extreme(sub, d, low), "largest under dim %d", d)
		}
	}
}

func TestReplace_RemovesOneValue(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	pts := randomPoints(rng, 300, 2, 100)
	tree := buildTree(t, pts, false)

	root := tree.root
	gone := Point{Coords: append([]float64(nil), root.coords...), ID: root.id}
	want := tree.Points()

	path := tree.replace(root)
	tree.count--

	require.NotEmpty(t, path)
	assert.Same(t, root, path[0])
	assert.NotContains(t, tree.Points(), gone)
	assert.Len(t, tree.Points(), len(want)-1)
	// Ordering and heights hold, balance may not.
	require.NoError(t, verify(tree, len(pts)))
}

func TestSettle_SkewedTree(t *testing.T) {
	pts := sortedPoints(100)
	tree := unbalancedTree(t, pts)
	require.Equal(t, 99, tree.Height(), "sorted input builds a chain")

	assert.True(t, tree.settle(tree.root, 2))
	diff := height(tree.root.child[low]) - height(tree.root.child[high])
	assert.LessOrEqual(t, diff, 2)
	assert.GreaterOrEqual(t, diff, -2)
	require.NoError(t, verify(tree, len(pts)))

	assert.False(t, tree.settle(tree.root, 2), "already settled")
}

func TestBalance_LeavesBalancedNodeAlone(t *testing.T) {
	tree := scenarioTree(t)
	before := tree.Points()

	assert.False(t, tree.balance(tree.root, tree.tolerance))
	assert.False(t, tree.balance(nil, tree.tolerance))
	assert.Equal(t, before, tree.Points())
}

func TestOptimize(t *testing.T) {
	tests := []struct {
		name  string
		level int
		tol   int
	}{
		{"level 0", 0, 1 << 20},
		{"level 1", 1, optimizeTolerance},
		{"level 2", 2, optimizeTolerance},
		{"level 5", 5, optimizeTolerance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := sortedPoints(200)
			tree := unbalancedTree(t, pts)
			want := tree.Points()

			tree.Optimize(tt.level)

			require.NoError(t, verify(tree, tt.tol))
			assert.ElementsMatch(t, want, tree.Points())
			assert.Equal(t, DefaultBalanceTolerance, tree.BalanceTolerance())
			if tt.level >= 1 {
				assert.LessOrEqual(t, tree.Height(), heightBound(len(pts), optimizeTolerance))
			}
		})
	}
}

func TestOptimize_ThenModify(t *testing.T) {
	rng := rand.New(rand.NewSource(47))
	pts := randomPoints(rng, 400, 3, 100)
	tree := buildTree(t, pts, false)
	tree.Optimize(2)
	require.NoError(t, verify(tree, optimizeTolerance))

	for i := 0; i < 100; i++ {
		require.True(t, tree.Remove(pts[i], i))
	}
	for i, p := range randomPoints(rng, 100, 3, 100) {
		tree.Insert(p, 1000+i, false)
	}
	checkTree(t, tree)
	assert.Equal(t, 400, tree.Len())
}

func TestOptimize_EmptyTree(t *testing.T) {
	tree := New(2)
	tree.Optimize(2)
	assert.Equal(t, 0, tree.Len())
}

func TestTaller(t *testing.T) {
	n := &node{}
	assert.Equal(t, high, taller(n), "tie goes high")

	n.child[low] = &node{}
	assert.Equal(t, low, taller(n))

	n.child[high] = &node{height: 1}
	assert.Equal(t, high, taller(n))
}

func TestRebuild(t *testing.T) {
	pts := sortedPoints(100)
	tree := unbalancedTree(t, pts)
	want := tree.Points()
	root := tree.root

	tree.rebuild(tree.root)

	assert.Same(t, root, tree.root)
	assert.Equal(t, 0, tree.root.dim)
	assert.Equal(t, 6, tree.Height())
	require.NoError(t, verify(tree, 1))
	assert.ElementsMatch(t, want, tree.Points())
	assert.Equal(t, Stats{Rebuilds: 1, RebuiltNodes: 100}, tree.Stats())
}

func TestBalance_CollisionPanics(t *testing.T) {
	tree := New(1)
	leaf := func(x float64, id, h int) *node {
		return &node{coords: []float64{x}, id: id, height: h}
	}
	chain := leaf(6, 2, 3)
	chain.child[high] = leaf(7, 3, 2)
	chain.child[high].child[high] = leaf(8, 4, 1)
	chain.child[high].child[high].child[high] = leaf(9, 5, 0)

	// The low child repeats the root, which no insert can produce.
	root := leaf(5, 1, 4)
	root.child[low] = leaf(5, 1, 0)
	root.child[high] = chain
	tree.root, tree.count = root, 6

	err := recoverError(func() { tree.balance(root, 2) })
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestInsert_OrderedInputScales(t *testing.T) {
	const n = 20000
	tests := []struct {
		name     string
		point    func(i int) []float64
		allowDup bool
	}{
		{"ascending", func(i int) []float64 { return []float64{float64(i), float64(n - i)} }, false},
		{"descending", func(i int) []float64 { return []float64{float64(n - i), float64(i)} }, false},
		{"repeated", func(int) []float64 { return []float64{3, 4} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := New(2)
			for i := 0; i < n; i++ {
				require.True(t, tree.Insert(tt.point(i), i, tt.allowDup))
			}

			stats := tree.Stats()
			assert.LessOrEqual(t, stats.Steps, 3*n)
			assert.LessOrEqual(t, stats.RebuiltNodes, 40*n)
			checkTree(t, tree)
			assert.Equal(t, n, tree.Len())
		})
	}
}

func TestRemove_OrderedInputScales(t *testing.T) {
	const n = 20000
	tree := New(2)
	for i := 0; i < n; i++ {
		tree.Insert([]float64{float64(i), float64(n - i)}, i, false)
	}
	before := tree.Stats()

	for i := 0; i < n/2; i++ {
		require.True(t, tree.Remove([]float64{float64(i), float64(n - i)}, i))
	}

	after := tree.Stats()
	assert.LessOrEqual(t, after.Steps-before.Steps, 3*n)
	assert.LessOrEqual(t, after.RebuiltNodes-before.RebuiltNodes, 40*n)
	checkTree(t, tree)
	assert.Equal(t, n/2, tree.Len())
}
