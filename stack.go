package kdtree

import "fmt"

// stack is the explicit frame stack used by every walk over the tree. Its
// capacity is capped at limit frames; pushing past the cap panics with
// ErrStackOverflow instead of growing without bound.
type stack[T any] struct {
	items []T
	limit int
}

func newStack[T any](limit int) *stack[T] {
	return &stack[T]{items: make([]T, 0, min(limit, 64)), limit: limit}
}

func (s *stack[T]) push(v T) {
	if len(s.items) >= s.limit {
		panic(overflow(s.limit))
	}
	s.items = append(s.items, v)
}

func (s *stack[T]) pop() T {
	last := len(s.items) - 1
	v := s.items[last]
	var zero T
	s.items[last] = zero
	s.items = s.items[:last]
	return v
}

func (s *stack[T]) len() int { return len(s.items) }

func overflow(limit int) error {
	return fmt.Errorf("%w: more than %d frames", ErrStackOverflow, limit)
}
