package kdtree

import "errors"

// Fatal conditions. Operations that detect one of these panic with an error
// wrapping the matching sentinel, so callers that recover can use errors.Is.
var (
	// ErrStackOverflow is raised when a walk needs more explicit stack
	// frames than the tree's MaxDepth allows.
	ErrStackOverflow = errors.New("kdtree: traversal stack overflow")

	// ErrDuplicateRank is raised when two query candidates share the same
	// squared distance and id, which means the (coords, id) uniqueness
	// contract was broken by the caller.
	ErrDuplicateRank = errors.New("kdtree: duplicate rank key")

	// ErrDimensionMismatch is raised when a coordinate vector or box does
	// not match the tree's dimensionality.
	ErrDimensionMismatch = errors.New("kdtree: dimension mismatch")

	// ErrInvalidCoordinate is raised when a coordinate is NaN or infinite.
	// Such values have no place in the ordering, so the point could never
	// be found again.
	ErrInvalidCoordinate = errors.New("kdtree: invalid coordinate")

	// ErrCorrupted is raised when rebalancing finds the tree in a state its
	// own operations cannot produce.
	ErrCorrupted = errors.New("kdtree: tree corrupted")

	// ErrDestroyed is raised when a destroyed tree is used.
	ErrDestroyed = errors.New("kdtree: tree has been destroyed")
)
