// Package ringbuffer provides a fixed capacity buffer addressed by a
// monotonically increasing logical index.
//
// Logical index i always maps to slot i mod n. The buffer never checks
// whether an index is inside the window the caller considers valid. Reading
// a slot that has been overwritten returns the newer value.
package ringbuffer

// Buffer is a wrap-around array of T.
type Buffer[T any] struct {
	slots []T
}

// New creates a buffer with n slots, all set to def.
func New[T any](n int, def T) *Buffer[T] {
	b := &Buffer[T]{}
	b.Resize(n, def)

	return b
}

// Resize reallocates the buffer to n slots and sets all of them to def. The
// old content is dropped.
func (b *Buffer[T]) Resize(n int, def T) {
	if n < 0 {
		n = 0
	}

	b.slots = make([]T, n)
	for i := range b.slots {
		b.slots[i] = def
	}
}

// Len returns the capacity of the buffer.
func (b *Buffer[T]) Len() int {
	return len(b.slots)
}

func (b *Buffer[T]) slot(i int64) int {
	n := int64(len(b.slots))

	return int(((i % n) + n) % n)
}

// At returns a pointer to the slot that holds logical index i.
func (b *Buffer[T]) At(i int64) *T {
	return &b.slots[b.slot(i)]
}

// Set writes v at logical index i.
func (b *Buffer[T]) Set(i int64, v T) {
	b.slots[b.slot(i)] = v
}

// Get reads the value at logical index i.
func (b *Buffer[T]) Get(i int64) T {
	return b.slots[b.slot(i)]
}

// ReadIterator returns an iterator that starts at logical index i.
func (b *Buffer[T]) ReadIterator(i int64) *Iterator[T] {
	return &Iterator[T]{
		slots: b.slots,
		pos:   b.slot(i),
	}
}

// Clone returns a deep copy of the buffer.
func (b *Buffer[T]) Clone() *Buffer[T] {
	c := &Buffer[T]{slots: make([]T, len(b.slots))}
	copy(c.slots, b.slots)

	return c
}

// Iterator walks a buffer in either direction, wrapping at both ends. It is
// bound to the storage the buffer had when the iterator was created; a later
// Resize does not affect it.
type Iterator[T any] struct {
	slots []T
	pos   int
}

// Value returns the value under the iterator.
func (it *Iterator[T]) Value() T {
	return it.slots[it.pos]
}

// Next moves the iterator one slot forward.
func (it *Iterator[T]) Next() {
	it.pos++
	if it.pos == len(it.slots) {
		it.pos = 0
	}
}

// Prev moves the iterator one slot backward.
func (it *Iterator[T]) Prev() {
	if it.pos == 0 {
		it.pos = len(it.slots)
	}
	it.pos--
}
