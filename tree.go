package kdtree

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
)

const (
	// DefaultBalanceTolerance is the height difference allowed between the
	// two subtrees of any node when no tolerance option is given.
	DefaultBalanceTolerance = 7

	// MinBalanceTolerance is the smallest accepted tolerance. Smaller values
	// are clamped to it.
	MinBalanceTolerance = 2

	// DefaultMaxDepth bounds the explicit stacks used by walks. With the
	// default tolerance a tree needs on the order of 10^8 points to come
	// close to it.
	DefaultMaxDepth = 256

	minMaxDepth = 16
)

const (
	low  = 0
	high = 1
)

// node is one point slot. Its coords and id can be overwritten when a deeper
// value is spliced up during removal or rebalancing; dim is fixed when the
// node is attached and only rewritten by local restructuring.
type node struct {
	dim    int
	height int
	coords []float64
	id     int
	child  [2]*node
}

// height returns the cached subtree height, -1 for an absent node.
func height(n *node) int {
	if n == nil {
		return -1
	}
	return n.height
}

// refresh recomputes the cached height from the children and reports
// whether it changed.
func (n *node) refresh() bool {
	h := max(height(n.child[low]), height(n.child[high])) + 1
	if h == n.height {
		return false
	}
	n.height = h
	return true
}

// setValue copies the point value of src into n.
func (n *node) setValue(src *node) {
	copy(n.coords, src.coords)
	n.id = src.id
}

// Point is a point stored in the tree.
type Point struct {
	Coords []float64
	ID     int
}

// Tree is a dynamic k-d tree that keeps itself within a configurable height
// balance tolerance on every insertion and removal.
//
// A Tree is not safe for concurrent mutation. Queries and traversals do not
// modify the tree and may run concurrently with each other.
type Tree struct {
	ndims     int
	tolerance int
	maxDepth  int
	count     int
	root      *node
	nextDim   []int
	logger    *slog.Logger
	destroyed bool
	stats     Stats
}

// Stats counts the rebalancing work a tree has done since it was created.
type Stats struct {
	// Steps is the number of single-value rebalancing steps.
	Steps int
	// Rebuilds is the number of subtrees rebuilt by median splits, and
	// RebuiltNodes the total number of nodes they held.
	Rebuilds     int
	RebuiltNodes int
}

// Option configures a Tree.
type Option func(*Tree)

// WithBalanceTolerance sets the maximum height difference between the two
// subtrees of a node. Values below MinBalanceTolerance are clamped.
func WithBalanceTolerance(tol int) Option {
	return func(t *Tree) {
		t.tolerance = max(tol, MinBalanceTolerance)
	}
}

// WithMaxDepth sets the frame limit of the explicit stacks used to walk the
// tree. A walk that needs more frames panics with ErrStackOverflow.
func WithMaxDepth(depth int) Option {
	return func(t *Tree) {
		t.maxDepth = max(depth, minMaxDepth)
	}
}

// WithLogger sets the sink for non-fatal warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates an empty tree for points with ndims coordinates.
// It panics if ndims < 1.
func New(ndims int, opts ...Option) *Tree {
	if ndims < 1 {
		panic(fmt.Errorf("%w: ndims must be >= 1, got %d", ErrDimensionMismatch, ndims))
	}

	t := &Tree{
		ndims:     ndims,
		tolerance: DefaultBalanceTolerance,
		maxDepth:  DefaultMaxDepth,
		nextDim:   make([]int, ndims),
		logger:    slog.Default(),
	}
	for d := range t.nextDim {
		t.nextDim[d] = (d + 1) % ndims
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Len returns the number of points in the tree.
func (t *Tree) Len() int { return t.count }

// Dims returns the dimensionality fixed at creation.
func (t *Tree) Dims() int { return t.ndims }

// BalanceTolerance returns the configured balance tolerance.
func (t *Tree) BalanceTolerance() int { return t.tolerance }

// MaxDepth returns the explicit stack limit.
func (t *Tree) MaxDepth() int { return t.maxDepth }

// Stats returns the rebalancing counters.
func (t *Tree) Stats() Stats { return t.stats }

// Height returns the height of the tree: -1 when empty, 0 for a single point.
func (t *Tree) Height() int { return height(t.root) }

// Clear removes all points. The tree remains usable.
func (t *Tree) Clear() {
	t.mustBeAlive()
	t.root = nil
	t.count = 0
}

// Destroy releases all points and marks the tree unusable. Any later call
// that reads or modifies points panics with ErrDestroyed.
func (t *Tree) Destroy() {
	t.root = nil
	t.count = 0
	t.destroyed = true
}

// Contains reports whether the point (coords, id) is stored in the tree.
func (t *Tree) Contains(coords []float64, id int) bool {
	_, ok := t.Find(coords, id)
	return ok
}

// Find returns a copy of the stored point matching coords and id.
func (t *Tree) Find(coords []float64, id int) (Point, bool) {
	t.checkCoords(coords)
	key := &node{coords: coords, id: id}
	for n := t.root; n != nil; n = n.child[t.side(key, n)] {
		if n.id == id && t.coordsEqual(key, n) {
			return Point{Coords: slices.Clone(n.coords), ID: n.id}, true
		}
	}
	return Point{}, false
}

// compare orders a against b on dimension dim. Ties on the coordinate are
// broken by id, then by the remaining coordinates in index order, so two
// distinct (coords, id) points never compare equal.
func compare(a, b *node, dim int) int {
	if c := cmpFloat(a.coords[dim], b.coords[dim]); c != 0 {
		return c
	}
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	}
	for i := range a.coords {
		if i == dim {
			continue
		}
		if c := cmpFloat(a.coords[i], b.coords[i]); c != 0 {
			return c
		}
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// side returns the child slot of n that a belongs to.
func (t *Tree) side(a, n *node) int {
	if compare(a, n, n.dim) > 0 {
		return high
	}
	return low
}

func (t *Tree) coordsEqual(a, b *node) bool {
	return slices.Equal(a.coords[:t.ndims], b.coords[:t.ndims])
}

func (t *Tree) checkCoords(coords []float64) {
	t.mustBeAlive()
	if len(coords) != t.ndims {
		panic(fmt.Errorf("%w: got %d coordinates, tree has %d dimensions", ErrDimensionMismatch, len(coords), t.ndims))
	}
	for i, v := range coords {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			panic(fmt.Errorf("%w: coordinate %d is %g", ErrInvalidCoordinate, i, v))
		}
	}
}

func (t *Tree) mustBeAlive() {
	if t.destroyed {
		panic(ErrDestroyed)
	}
}
