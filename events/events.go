package events

// Kind identifies a category of engine notification.
type Kind string

const (
	// KindAny is the catch-all subscription kind: a handler subscribed to it
	// receives every event the bus carries.
	KindAny Kind = "*"

	// KindFileAdded fires when a file passes admission into the queue.
	KindFileAdded Kind = "fileAdded"
	// KindChunkingStart fires when a file begins building its chunk partition.
	KindChunkingStart Kind = "chunkingStart"
	// KindChunkingProgress fires once per chunk created during bootstrap.
	KindChunkingProgress Kind = "chunkingProgress"
	// KindChunkingComplete fires after the partition is fully materialized.
	KindChunkingComplete Kind = "chunkingComplete"
	// KindChunkProgress fires on throttled per-chunk byte progress.
	KindChunkProgress Kind = "chunkProgress"
	// KindFileProgress fires when a file's aggregate progress changes.
	KindFileProgress Kind = "fileProgress"
	// KindFileSuccess fires when every chunk of a file reports success.
	KindFileSuccess Kind = "fileSuccess"
	// KindFileError fires when a chunk fails permanently.
	KindFileError Kind = "fileError"
	// KindFileRetry fires when a failed file is manually retried.
	KindFileRetry Kind = "fileRetry"
	// KindUploadStart fires when a queue-wide upload pass begins.
	KindUploadStart Kind = "uploadStart"
	// KindComplete fires once when every tracked file is complete.
	KindComplete Kind = "complete"
	// KindPause fires on a queue-wide pause.
	KindPause Kind = "pause"
	// KindCancel fires on a queue-wide cancel.
	KindCancel Kind = "cancel"
)

// Event is a typed notification payload.
type Event interface {
	EventKind() Kind
}

// FileAdded reports a file admitted into the queue.
type FileAdded struct {
	Identifier   string
	Name         string
	Size         int64
	RelativePath string
}

// EventKind implements Event.
func (FileAdded) EventKind() Kind { return KindFileAdded }

// ChunkingStart reports the beginning of a file's chunk partition build.
type ChunkingStart struct {
	Identifier  string
	TotalChunks int
}

// EventKind implements Event.
func (ChunkingStart) EventKind() Kind { return KindChunkingStart }

// ChunkingProgress reports partition-build progress in [0,1].
type ChunkingProgress struct {
	Identifier string
	Ratio      float64
}

// EventKind implements Event.
func (ChunkingProgress) EventKind() Kind { return KindChunkingProgress }

// ChunkingComplete reports a fully materialized chunk partition.
type ChunkingComplete struct {
	Identifier  string
	TotalChunks int
}

// EventKind implements Event.
func (ChunkingComplete) EventKind() Kind { return KindChunkingComplete }

// ChunkProgress reports bytes moved for one chunk.
type ChunkProgress struct {
	Identifier  string
	ChunkNumber int // 1-based, matching the wire
	BytesLoaded int64
	ChunkBytes  int64
}

// EventKind implements Event.
func (ChunkProgress) EventKind() Kind { return KindChunkProgress }

// FileProgress reports a file's aggregate progress in [0,1].
type FileProgress struct {
	Identifier string
	Progress   float64
}

// EventKind implements Event.
func (FileProgress) EventKind() Kind { return KindFileProgress }

// FileSuccess reports a fully uploaded file. Body carries the transport
// response body of the last chunk, when the adapter provides one.
type FileSuccess struct {
	Identifier string
	Body       string
}

// EventKind implements Event.
func (FileSuccess) EventKind() Kind { return KindFileSuccess }

// FileError reports a permanent failure on one of the file's chunks.
type FileError struct {
	Identifier string
	Message    string
	StatusCode int
}

// EventKind implements Event.
func (FileError) EventKind() Kind { return KindFileError }

// FileRetry reports a manual retry of a failed file.
type FileRetry struct {
	Identifier string
}

// EventKind implements Event.
func (FileRetry) EventKind() Kind { return KindFileRetry }

// UploadStart reports the start of a queue-wide upload pass.
type UploadStart struct{}

// EventKind implements Event.
func (UploadStart) EventKind() Kind { return KindUploadStart }

// Complete reports that every tracked file is complete.
type Complete struct{}

// EventKind implements Event.
func (Complete) EventKind() Kind { return KindComplete }

// Pause reports a queue-wide pause.
type Pause struct{}

// EventKind implements Event.
func (Pause) EventKind() Kind { return KindPause }

// Cancel reports a queue-wide cancel.
type Cancel struct{}

// EventKind implements Event.
func (Cancel) EventKind() Kind { return KindCancel }
