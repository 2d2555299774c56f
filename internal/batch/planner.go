package batch

import "fmt"

// Plan splits items into ceil(len/size) chunks in their original order.
// Chunks share the backing array of items and must not be appended to.
func Plan[T any](items []T, size int) ([]Chunk[T], error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items to plan", ErrInvalidArgument)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidArgument, size)
	}

	count := (len(items) + size - 1) / size
	chunks := make([]Chunk[T], 0, count)
	for index := 0; index < count; index++ {
		start := index * size
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, Chunk[T]{
			Index:  index,
			Offset: start,
			Items:  items[start:end:end],
		})
	}
	return chunks, nil
}
