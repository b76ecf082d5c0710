package cluster

// unionFind is a disjoint-set forest over point ids with path compression
// and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	size := make([]int, n)
	for i := range parent {
		parent[i] = -1 // -1 means "is a root"
		size[i] = 1
	}
	return &unionFind{parent: parent, size: size}
}

// find returns the root of the set containing x.
func (uf *unionFind) find(x int) int {
	root := x
	for uf.parent[root] != -1 {
		root = uf.parent[root]
	}
	for uf.parent[x] != -1 {
		x, uf.parent[x] = uf.parent[x], root
	}
	return root
}

// union merges the sets containing x and y and returns the new root.
func (uf *unionFind) union(x, y int) int {
	rootX := uf.find(x)
	rootY := uf.find(y)
	if rootX == rootY {
		return rootX
	}

	if uf.size[rootX] < uf.size[rootY] {
		rootX, rootY = rootY, rootX
	}
	uf.parent[rootY] = rootX
	uf.size[rootX] += uf.size[rootY]
	return rootX
}

// setSize returns the number of elements in the set containing x.
func (uf *unionFind) setSize(x int) int {
	return uf.size[uf.find(x)]
}
