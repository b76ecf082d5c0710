// Package cluster groups point clouds by density using a k-d tree as the
// neighbor index.
//
// Basic usage:
//
//	tree, err := cluster.BuildIndex(points, 2)
//	cfg := cluster.DefaultConfig()
//	cfg.MinPoints = 5
//	res, err := cluster.Cluster(tree, cfg)
//	// res.Labels[i] is the cluster of points[i] (0 = noise)
//
// Five methods are available. [MethodDBSCAN] joins a point with all of its
// neighbors once it has at least MinPoints-1 of them within the distance.
// [MethodDBSCAN2] joins any two points within the distance and then drops
// clusters smaller than MinPoints. With Epsilon 0 these two estimate the
// distance from the distances of every point to its (MinPoints-1)-th
// nearest neighbor, see [EstimateEpsilon].
//
// The remaining methods only look at the MinPoints-1 nearest neighbors of
// every point. [MethodDensity] grows nested clusters from the densest points
// outward. [MethodOPTICS] orders the points by reachability, reported in
// [Result.Order] and [Result.Reachability], and cuts the ordering where
// reachability exceeds Epsilon. [MethodOPTICS2] links each point to the
// neighbor that reaches it closest and clusters the linked networks.
package cluster
