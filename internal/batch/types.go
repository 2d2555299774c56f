package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned by Plan for an empty list or zero chunk size
var ErrInvalidArgument = errors.New("invalid argument")

// Correlated pairs an item with the id it is sent under
type Correlated[T any] struct {
	ID   int64
	Item T
}

// Chunk is a contiguous run of items dispatched as one exchange
type Chunk[T any] struct {
	Index  int // position among all chunks
	Offset int // index of Items[0] in the original list
	Items  []T
}

// Outcome is what one chunk exchange produced
type Outcome[R any] struct {
	Results []R
	Err     error
}

// ChunkError reports which chunk made a batched call fail
type ChunkError struct {
	Index int
	Err   error
}

// Error implements the error interface
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying failure
func (e *ChunkError) Unwrap() error {
	return e.Err
}
