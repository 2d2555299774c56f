package batch

// Merge concatenates chunk results in chunk order.
//
// If any chunk failed the whole call fails: the first failure in chunk
// order is returned as a *ChunkError and no results are returned.
func Merge[R any](outcomes []Outcome[R]) ([]R, error) {
	total := 0
	for i, o := range outcomes {
		if o.Err != nil {
			return nil, &ChunkError{Index: i, Err: o.Err}
		}
		total += len(o.Results)
	}

	merged := make([]R, 0, total)
	for _, o := range outcomes {
		merged = append(merged, o.Results...)
	}
	return merged, nil
}
