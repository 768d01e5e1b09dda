// Package ring provides a fixed-capacity FIFO that overwrites its oldest item
// when full. The tty driver buffers keyboard input in one.
package ring

import (
	"fmt"

	. "github.com/weberc2/konixfs/pkg/types"
)

const NonPositiveCapacityErr ConstError = "capacity must be positive"

type Buffer[T any] struct {
	// entries holds the items. there is always one more entry than items
	// because the slot preceding `start` is a spacer which disambiguates a
	// full buffer (`tail == spacer`) from an empty one (`tail == start`).
	entries []T
	start   int
	tail    int
}

func New[T any](capacity int) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf(
			"capacity `%d`: %w",
			capacity,
			NonPositiveCapacityErr,
		)
	}
	return &Buffer[T]{entries: make([]T, capacity+1)}, nil
}

func (buf *Buffer[T]) Cap() int { return len(buf.entries) - 1 }

func (buf *Buffer[T]) Full() bool { return buf.tail == buf.prev(buf.start) }

func (buf *Buffer[T]) Len() int {
	if buf.tail >= buf.start {
		return buf.tail - buf.start
	}
	return len(buf.entries) - (buf.start - buf.tail)
}

func (buf *Buffer[T]) next(i int) int { return (i + 1) % len(buf.entries) }

func (buf *Buffer[T]) prev(i int) int {
	// Go's `%` keeps the sign of the dividend, so bias by the length
	return (len(buf.entries) + i - 1) % len(buf.entries)
}

// Push appends `item`. If the buffer was full, the oldest item is evicted and
// returned.
func (buf *Buffer[T]) Push(item T) (T, bool) {
	if spacer := buf.prev(buf.start); buf.tail == spacer {
		evicted := buf.entries[buf.start]
		buf.entries[spacer] = item
		buf.tail = buf.start
		buf.start = buf.next(buf.start)
		return evicted, true
	}
	buf.entries[buf.tail] = item
	buf.tail = buf.next(buf.tail)
	var zero T
	return zero, false
}

func (buf *Buffer[T]) PopFront() (T, bool) {
	if buf.tail == buf.start {
		var zero T
		return zero, false
	}
	popped := buf.entries[buf.start]
	buf.start = buf.next(buf.start)
	return popped, true
}

// Drain pops up to `len(dst)` items into `dst` and returns how many it
// popped.
func (buf *Buffer[T]) Drain(dst []T) int {
	n := 0
	for n < len(dst) {
		item, ok := buf.PopFront()
		if !ok {
			break
		}
		dst[n] = item
		n++
	}
	return n
}

func (buf *Buffer[T]) Items() []T {
	items := make([]T, buf.Len())
	for i := range items {
		items[i] = buf.entries[(buf.start+i)%len(buf.entries)]
	}
	return items
}
