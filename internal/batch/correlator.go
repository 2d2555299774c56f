package batch

// AssignIDs numbers items starting at startOffset+1
func AssignIDs[T any](items []T, startOffset int) []Correlated[T] {
	out := make([]Correlated[T], len(items))
	for i, item := range items {
		out[i] = Correlated[T]{
			ID:   int64(startOffset + i + 1),
			Item: item,
		}
	}
	return out
}

// Correlate numbers the items of a chunk with their global ids
func (c Chunk[T]) Correlate() []Correlated[T] {
	return AssignIDs(c.Items, c.Offset)
}
