package resumable

import (
	"time"

	units "github.com/docker/go-units"

	"github.com/opd-ai/resumable/limits"
	"github.com/opd-ai/resumable/transport"
)

// DefaultChunkSize is the default partition size (1 MiB).
const DefaultChunkSize = 1024 * 1024

// DefaultProgressThrottle is the default minimum interval between progress
// notifications for one chunk (twice per second).
const DefaultProgressThrottle = 500 * time.Millisecond

// Options configures a Client.
type Options struct {
	// Adapter performs the existence probe and the chunk transmission.
	// Required.
	Adapter transport.Adapter

	// ChunkSize is the partition size in bytes. With ForceChunkSize unset,
	// the chunk count is max(floor(size/ChunkSize), 1) and the final chunk
	// absorbs the remainder, so it may be larger than ChunkSize. This floor
	// policy is part of the wire contract and is preserved deliberately.
	ChunkSize int64

	// ForceChunkSize switches the partition to ceil(size/ChunkSize) so no
	// chunk exceeds ChunkSize.
	ForceChunkSize bool

	// SimultaneousUploads is the concurrency budget: the number of chunks
	// that may be in flight across the whole queue.
	SimultaneousUploads int

	// PrioritizeFirstAndLastChunk dispatches each file's boundary chunks
	// before its interior, letting a receiver validate identity and size
	// cheaply before the bulk of the transfer.
	PrioritizeFirstAndLastChunk bool

	// TestChunks enables the existence probe before each transmission.
	TestChunks bool

	// MaxChunkRetries is the transient-failure budget per chunk. A chunk
	// becomes terminal exactly when its retry count reaches this value.
	// 0 means retry forever.
	MaxChunkRetries int

	// ChunkRetryInterval delays the re-dispatch of a transiently failed
	// chunk. 0 retries immediately.
	ChunkRetryInterval time.Duration

	// PermanentErrors are response status codes that fail a chunk without
	// retrying.
	PermanentErrors []int

	// SuccessStatuses are response status codes that complete a chunk.
	SuccessStatuses []int

	// RequestTimeout bounds each transport call. A timeout is treated as a
	// transient failure. 0 disables the bound.
	RequestTimeout time.Duration

	// ProgressThrottle is the minimum interval between progress
	// notifications per chunk.
	ProgressThrottle time.Duration

	// Limits is the admission policy applied to incoming items.
	Limits limits.Rules

	// OnRejected is invoked for each item failing an admission check. The
	// item never enters the queue.
	OnRejected func(Item, *limits.Violation)

	// Query carries constant key/value parameters attached to every
	// transport call. QueryFunc, when set, computes additional parameters
	// per call and wins on key conflicts.
	Query     map[string]string
	QueryFunc func(*File, *Chunk) map[string]string

	// Headers are attached to every transport call.
	Headers map[string]string

	// PreprocessChunk, when set, runs before a chunk's first transmission.
	// The chunk stays claimed until the hook calls Chunk.PreprocessFinished.
	PreprocessChunk func(*Chunk)

	// PreUpload, when set, runs once per file before any of its chunks are
	// dispatched. The file reports busy until done is called.
	PreUpload func(f *File, done func())

	// GenerateIdentifier overrides the default fingerprint. It must be
	// stable for a given item across sessions.
	GenerateIdentifier func(Item) (string, error)
}

// NewOptions creates Options with the default policy.
func NewOptions() *Options {
	return &Options{
		ChunkSize:           DefaultChunkSize,
		SimultaneousUploads: 3,
		TestChunks:          true,
		MaxChunkRetries:     5,
		PermanentErrors:     []int{400, 404, 409, 415, 500, 501},
		SuccessStatuses:     []int{200, 201, 202},
		ProgressThrottle:    DefaultProgressThrottle,
	}
}

// validate checks the options for internal consistency.
func (o *Options) validate() error {
	if o.Adapter == nil {
		return ErrAdapterRequired
	}
	if o.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if o.SimultaneousUploads <= 0 {
		return ErrInvalidConcurrency
	}
	return nil
}

// isSuccessStatus reports whether code completes a chunk.
func (o *Options) isSuccessStatus(code int) bool {
	for _, s := range o.SuccessStatuses {
		if s == code {
			return true
		}
	}
	return false
}

// isPermanentStatus reports whether code fails a chunk without retry.
func (o *Options) isPermanentStatus(code int) bool {
	for _, s := range o.PermanentErrors {
		if s == code {
			return true
		}
	}
	return false
}

// ParseByteSize converts a human-readable size ("1MiB", "512k", "2.5gb") to
// bytes, for feeding ChunkSize and the admission size window from external
// configuration.
func ParseByteSize(s string) (int64, error) {
	return units.RAMInBytes(s)
}

// humanSize formats a byte count for log fields.
func humanSize(n int64) string {
	return units.BytesSize(float64(n))
}
