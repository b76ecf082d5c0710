package kdtree

import (
	"bytes"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemove_Scenario(t *testing.T) {
	tree := scenarioTree(t)

	assert.True(t, tree.Remove([]float64{0, 0}, 1))
	assert.Equal(t, 4, tree.Len())
	assert.ElementsMatch(t, []int{2, 4, 5}, tree.RNN([]float64{0, 0, 1, 1}, nil))
	checkTree(t, tree)
}

func TestRemove_NotFoundLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tree := New(2, WithLogger(logger))
	tree.Insert([]float64{1, 1}, 2, false)

	assert.False(t, tree.Remove([]float64{1, 1}, 9), "wrong id")
	assert.False(t, tree.Remove([]float64{1, 2}, 2), "wrong coordinates")
	assert.Equal(t, 1, tree.Len())

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "node not found")
	assert.Contains(t, out, "id=9")
}

func TestRemove_EmptyTree(t *testing.T) {
	var buf bytes.Buffer
	tree := New(2, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	assert.False(t, tree.Remove([]float64{0, 0}, 1))
	assert.Equal(t, 0, tree.Len())
}

func TestRemove_OnlyPoint(t *testing.T) {
	tree := New(3)
	tree.Insert([]float64{1, 2, 3}, 1, false)

	assert.True(t, tree.Remove([]float64{1, 2, 3}, 1))
	assert.Nil(t, tree.root)
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, -1, tree.Height())
}

func TestRemove_Root(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	pts := randomPoints(rng, 200, 2, 10)
	tree := buildTree(t, pts, false)

	for rep := 0; rep < 50; rep++ {
		root := tree.root
		coords, id := append([]float64(nil), root.coords...), root.id
		require.True(t, tree.Remove(coords, id))
		assert.False(t, tree.Contains(coords, id))
		checkTree(t, tree)
	}
	assert.Equal(t, 150, tree.Len())
}

func TestRemove_InverseOfInsert(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	tree := buildTree(t, randomPoints(rng, 300, 3, 50), false)
	before := tree.Points()

	p := []float64{25.5, 25.5, 25.5}
	require.True(t, tree.Insert(p, 1000, false))
	require.True(t, tree.Remove(p, 1000))

	assert.ElementsMatch(t, before, tree.Points())
	checkTree(t, tree)
}

func TestRemove_RandomOrder(t *testing.T) {
	for _, tol := range []int{2, 7} {
		rng := rand.New(rand.NewSource(int64(29 + tol)))
		pts := randomPoints(rng, 400, 2, 100)
		tree := buildTree(t, pts, false, WithBalanceTolerance(tol))

		want := pointSet{}
		for i, p := range pts {
			want[i] = p
		}
		for _, i := range rng.Perm(len(pts)) {
			require.True(t, tree.Remove(pts[i], i), "remove %d", i)
			delete(want, i)
			require.NoError(t, verify(tree, tol), "after removing %d", i)
		}
		assert.Equal(t, 0, tree.Len())
		assert.Nil(t, tree.root)
	}
}

func TestRemove_RepeatedCoordinates(t *testing.T) {
	tree := New(2, WithBalanceTolerance(3))
	for i := 0; i < 120; i++ {
		tree.Insert([]float64{1, 1}, i, true)
	}
	for i := 0; i < 120; i += 2 {
		require.True(t, tree.Remove([]float64{1, 1}, i))
	}
	checkTree(t, tree)
	assert.Equal(t, 60, tree.Len())
	for i := 0; i < 120; i++ {
		assert.Equal(t, i%2 == 1, tree.Contains([]float64{1, 1}, i), "id %d", i)
	}
}

func TestRemove_InterleavedWithInsert(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	tree := New(3, WithBalanceTolerance(3))
	want := pointSet{}
	nextID := 0

	for step := 0; step < 2000; step++ {
		if len(want) == 0 || rng.Intn(3) > 0 {
			c := []float64{float64(rng.Intn(8)), float64(rng.Intn(8)), float64(rng.Intn(8))}
			if tree.Insert(c, nextID, true) {
				want[nextID] = c
			}
			nextID++
		} else {
			// Remove an arbitrary stored point.
			for id, c := range want {
				require.True(t, tree.Remove(c, id), "step %d", step)
				delete(want, id)
				break
			}
		}
		if step%100 == 0 {
			checkTree(t, tree)
		}
	}

	checkTree(t, tree)
	assert.Equal(t, len(want), tree.Len())
	for _, p := range want.sorted() {
		assert.True(t, tree.Contains(p.coords, p.id))
	}
}
