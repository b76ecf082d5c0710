package kdtree

import "slices"

// Cursor enumerates the points of a tree in order. The tree must not be
// modified while a cursor over it is in use.
type Cursor struct {
	tree    *Tree
	stack   *stack[*node]
	started bool
}

// Traverse returns a cursor positioned before the first point.
func (t *Tree) Traverse() *Cursor {
	t.mustBeAlive()
	return &Cursor{tree: t, stack: newStack[*node](t.maxDepth)}
}

// Next returns the next point, or false once every point has been returned.
// Every point is returned exactly once, in the tree's structural in-order.
func (c *Cursor) Next() (Point, bool) {
	if !c.started {
		c.started = true
		c.pushLow(c.tree.root)
	}
	if c.stack.len() == 0 {
		return Point{}, false
	}

	n := c.stack.pop()
	c.pushLow(n.child[high])
	return Point{Coords: slices.Clone(n.coords), ID: n.id}, true
}

// pushLow pushes n and its chain of low descendants.
func (c *Cursor) pushLow(n *node) {
	for ; n != nil; n = n.child[low] {
		c.stack.push(n)
	}
}

// Points returns every point of the tree in traversal order.
func (t *Tree) Points() []Point {
	pts := make([]Point, 0, t.count)
	cur := t.Traverse()
	for p, ok := cur.Next(); ok; p, ok = cur.Next() {
		pts = append(pts, p)
	}
	return pts
}
