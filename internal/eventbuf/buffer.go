// Package eventbuf provides a bounded, newest-first history of recent items.
// It backs the transient "recent events" display and is never used to
// reconstruct graph state.
package eventbuf

// DefaultCapacity is the number of items kept when no capacity is given.
const DefaultCapacity = 100

// Buffer is a fixed-capacity ring. Pushing into a full buffer evicts the
// oldest item. The zero value is not usable; call New.
//
// Buffer is not safe for concurrent use. The live client guards it with its
// own mutex.
type Buffer[T any] struct {
	items []T
	head  int // index of the next write
	size  int
}

// New creates a buffer holding at most capacity items.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push adds v as the newest item.
func (b *Buffer[T]) Push(v T) {
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	if b.size < len(b.items) {
		b.size++
	}
}

// Items returns a copy of the contents, newest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := range b.size {
		out[i] = b.items[b.index(i)]
	}
	return out
}

// Latest returns the newest item.
func (b *Buffer[T]) Latest() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.items[b.index(0)], true
}

// Len is the number of items held.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap is the maximum number of items held.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// index maps a newest-first position to a slot.
func (b *Buffer[T]) index(i int) int {
	n := len(b.items)
	return ((b.head-1-i)%n + n) % n
}
