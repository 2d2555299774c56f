// Package batch holds the pure parts of batched dispatch: assigning
// correlation ids, splitting a call list into chunks, and merging the
// per-chunk outcomes back into one ordered result list.
//
// Ids use a global offset: chunk k of size c carries ids k*c+1 .. k*c+len.
// A call list [a, b, c] with chunk size 2 is sent as [a(1), b(2)] and [c(3)].
package batch
