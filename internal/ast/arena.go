package ast

import (
	"fmt"

	"fortio.org/safecast"
)

// Arena is append-only storage addressed by 1-based uint32 handles;
// handle 0 is never issued and reads back as nil.
type Arena[T any] struct {
	items []T
}

func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{items: make([]T, 0, capHint)}
}

// Allocate stores v and returns its handle.
func (a *Arena[T]) Allocate(v T) uint32 {
	a.items = append(a.items, v)
	h, err := safecast.Conv[uint32](len(a.items))
	if err != nil {
		panic(fmt.Errorf("ast arena: %w", err))
	}
	return h
}

func (a *Arena[T]) Get(h uint32) *T {
	if h == 0 || uint64(h) > uint64(len(a.items)) {
		return nil
	}
	return &a.items[h-1]
}

func (a *Arena[T]) Len() int { return len(a.items) }

// Reset empties the arena for the next top-level unit; capacity stays.
func (a *Arena[T]) Reset() {
	clear(a.items)
	a.items = a.items[:0]
}
