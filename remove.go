package kdtree

// Remove deletes the point (coords, id) and reports whether it was found.
// A missing point is logged as a warning and leaves the tree unchanged.
func (t *Tree) Remove(coords []float64, id int) bool {
	t.checkCoords(coords)
	key := &node{coords: coords, id: id}

	path := newStack[frame](t.maxDepth)
	n := t.root
	for n != nil && (n.id != id || !t.coordsEqual(key, n)) {
		dir := t.side(key, n)
		path.push(frame{n: n, dir: dir, before: n.height})
		n = n.child[dir]
	}
	if n == nil {
		t.logger.Warn("kdtree: remove: node not found", "id", id, "coords", coords)
		return false
	}

	if n.height == 0 {
		if path.len() == 0 {
			t.root = nil
		} else {
			parent := path.items[path.len()-1]
			parent.n.child[parent.dir] = nil
		}
	} else {
		before := n.height
		rpath := t.replace(n)
		t.settlePath(rpath[1:], t.tolerance)
		path.push(frame{n: n, before: before})
	}
	t.count--

	// Each ancestor's subtree lost one node along the path; stop once a
	// subtree height comes out unchanged.
	t.fixUp(path.items, len(path.items), true)

	t.settle(t.root, t.tolerance)
	return true
}
