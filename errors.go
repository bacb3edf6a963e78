package resumable

import "errors"

// ErrAdapterRequired indicates that Options.Adapter was not set.
var ErrAdapterRequired = errors.New("transport adapter is required")

// ErrInvalidChunkSize indicates a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ErrInvalidConcurrency indicates a non-positive concurrency limit.
var ErrInvalidConcurrency = errors.New("simultaneous uploads must be positive")

// ErrFileNotFound indicates a lookup for an identifier the queue does not track.
var ErrFileNotFound = errors.New("file not tracked by queue")

// ErrRetriesExhausted indicates a chunk that failed transiently until the
// configured retry maximum was reached.
var ErrRetriesExhausted = errors.New("chunk retries exhausted")
