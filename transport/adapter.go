package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// FileMeta describes the file a chunk belongs to.
type FileMeta struct {
	Identifier   string
	Name         string
	RelativePath string
	Size         int64
	TotalChunks  int
	// ChunkSize is the declared partition size, not the size of any
	// particular chunk.
	ChunkSize int64
}

// ChunkMeta describes one byte range of one file. Number is 1-based on the
// wire even though the engine indexes chunks from zero.
type ChunkMeta struct {
	File        FileMeta
	Number      int
	StartByte   int64
	EndByte     int64
	CurrentSize int64

	// Query and Headers carry caller-supplied key/value parameters, constant
	// or computed per call. Adapters attach them however their wire allows.
	Query   map[string]string
	Headers map[string]string
}

// Result is the outcome of a completed chunk transmission.
type Result struct {
	StatusCode int
	Body       string
}

// Adapter performs the existence probe and the actual chunk transmission.
// Both calls must honor ctx cancellation promptly: a cancelled call must
// return without side effects visible to the engine.
type Adapter interface {
	// Probe reports whether the receiver already stores this chunk. A false
	// return with a nil error means "not present, transmit it". Errors are
	// classified with IsPermanent; anything else is treated as transient.
	Probe(ctx context.Context, meta ChunkMeta) (bool, error)

	// Send transmits the chunk body. onProgress, when non-nil, is invoked
	// with the cumulative byte count as the body drains; the engine throttles
	// it, so adapters may call it as often as they like. A non-nil error is a
	// transient transport failure; permanent outcomes are expressed through
	// Result.StatusCode.
	Send(ctx context.Context, meta ChunkMeta, body io.Reader, onProgress func(sent int64)) (*Result, error)
}

// ErrProbeFailed indicates an existence probe that could not be completed.
var ErrProbeFailed = errors.New("chunk existence probe failed")

// PermanentError marks a failure that must not be retried.
type PermanentError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent transport failure: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("permanent transport failure: %s", e.Message)
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
