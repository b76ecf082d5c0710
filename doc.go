// Package kdtree implements a dynamic, self-balancing k-d tree.
//
// Points are k-dimensional coordinate vectors with an integer id. The tree
// supports insertion and removal at any time and keeps the heights of the
// two subtrees of every node within a balance tolerance, so queries stay
// logarithmic without rebuilding.
//
// Basic usage:
//
//	t := kdtree.New(2)
//	t.Insert([]float64{0, 0}, 1, false)
//	t.Insert([]float64{1, 1}, 2, false)
//	nn := t.KNN([]float64{0.2, 0.1}, 1, nil)
//	// nn[0].ID == 1, nn[0].SqDist is the squared distance
//
// Queries:
//
//	t.KNN(q, k, skip)      // k nearest points, ascending by distance
//	t.DNN(q, radius, skip) // all points within radius, ascending by distance
//	t.RNN(box, skip)       // all points inside an axis-aligned box
//
// The skip argument excludes one id from the results; pass [Skip](id) or nil.
//
// # Ordering and duplicates
//
// Each node splits on one coordinate axis. Points are ordered on that axis,
// then by id, so many points may share a coordinate without degrading the
// tree. Insert rejects a point whose coordinates equal a stored point's
// unless duplicates are allowed, and always rejects an identical
// (coordinates, id) pair.
//
// # Balancing
//
// Rebalancing cannot rotate values between parent and child as in a binary
// search tree, because they split on different axes. A node out of balance
// instead takes a value from its taller subtree and pushes its own value
// down the shorter one. [Tree.Optimize] rebalances a whole tree to the
// tightest tolerance after bulk loading.
//
// # Limits
//
// Every walk over the tree uses an explicit stack limited to MaxDepth frames
// (256 by default, see [WithMaxDepth]). A tree too deep for the limit makes
// the walk panic with [ErrStackOverflow]. A Tree is not safe for concurrent
// modification.
package kdtree
