package resumable

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/opd-ai/resumable/events"
	"github.com/opd-ai/resumable/transport"
)

// ChunkStatus is the derived state of a chunk, computed from its attributes.
type ChunkStatus uint8

const (
	// ChunkPending means the chunk is eligible for dispatch.
	ChunkPending ChunkStatus = iota
	// ChunkUploading means the chunk is claimed: a transport call is in
	// flight, a retry is scheduled, or a pre-send hook is running.
	ChunkUploading
	// ChunkSuccess means the chunk's range is stored by the receiver.
	ChunkSuccess
	// ChunkError means the chunk failed permanently and awaits File.Retry.
	ChunkError
)

// String returns a human-readable status name.
func (s ChunkStatus) String() string {
	switch s {
	case ChunkPending:
		return "pending"
	case ChunkUploading:
		return "uploading"
	case ChunkSuccess:
		return "success"
	case ChunkError:
		return "error"
	default:
		return "unknown"
	}
}

// hookState tracks a pre-send or pre-upload hook.
type hookState uint8

const (
	hookNone hookState = iota
	hookRunning
	hookDone
)

// flight owns one active transport request. A chunk holds at most one; the
// pointer identity is how a completion callback proves it has not been
// aborted and superseded.
type flight struct {
	cancel     context.CancelFunc
	done       bool
	statusCode int
	body       string
	err        error
}

// Chunk is the state machine for one byte range of one file. All fields are
// guarded by the owning client's mutex.
type Chunk struct {
	file *File

	offset    int // 0-based index; the wire carries offset+1
	startByte int64
	endByte   int64 // half-open

	retryCount    int
	pendingRetry  bool
	retryTimer    *time.Timer
	tested        bool
	forceComplete bool
	detached      bool
	preprocess    hookState
	flight        *flight
	bytesLoaded   int64

	throttle *rate.Limiter
}

// newChunk wires a chunk for the half-open range [start, end).
func newChunk(f *File, offset int, start, end int64) *Chunk {
	c := &Chunk{
		file:      f,
		offset:    offset,
		startByte: start,
		endByte:   end,
	}
	if interval := f.client.opts.ProgressThrottle; interval > 0 {
		c.throttle = rate.NewLimiter(rate.Every(interval), 1)
	}
	return c
}

// Offset returns the chunk's 0-based index.
func (c *Chunk) Offset() int { return c.offset }

// StartByte returns the inclusive start of the chunk's range.
func (c *Chunk) StartByte() int64 { return c.startByte }

// EndByte returns the exclusive end of the chunk's range.
func (c *Chunk) EndByte() int64 { return c.endByte }

// File returns the owning file.
func (c *Chunk) File() *File { return c.file }

// sizeBytes is the actual byte count of this range.
func (c *Chunk) sizeBytes() int64 { return c.endByte - c.startByte }

// Status returns the chunk's derived status.
func (c *Chunk) Status() ChunkStatus {
	cl := c.file.client
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return c.statusLocked()
}

// statusLocked derives the status from the chunk's attributes. Precedence,
// highest first: a scheduled retry and a running pre-send hook both read as
// uploading so the scheduler never re-claims a claimed chunk; a forced
// completion reads as success; then the in-flight handle decides.
func (c *Chunk) statusLocked() ChunkStatus {
	opts := c.file.client.opts
	switch {
	case c.pendingRetry:
		return ChunkUploading
	case c.preprocess == hookRunning:
		return ChunkUploading
	case c.forceComplete:
		return ChunkSuccess
	case c.flight == nil:
		return ChunkPending
	case !c.flight.done:
		return ChunkUploading
	case c.flight.err == nil && opts.isSuccessStatus(c.flight.statusCode):
		return ChunkSuccess
	case (c.flight.err == nil && opts.isPermanentStatus(c.flight.statusCode)) ||
		(opts.MaxChunkRetries > 0 && c.retryCount >= opts.MaxChunkRetries):
		return ChunkError
	default:
		// Transient resolution: treated as pending once the handle is
		// released by the retry path.
		return ChunkPending
	}
}

// RetryCount returns how many transient failures the chunk has absorbed.
func (c *Chunk) RetryCount() int {
	cl := c.file.client
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return c.retryCount
}

// Progress returns the chunk's progress in [0,1]. With relative set, the
// value is scaled by the chunk's share of the file so that summing all
// chunks yields the file's overall fraction.
func (c *Chunk) Progress(relative bool) float64 {
	cl := c.file.client
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return c.progressLocked(relative)
}

func (c *Chunk) progressLocked(relative bool) float64 {
	factor := 1.0
	if relative {
		if c.file.size == 0 {
			return 0
		}
		factor = float64(c.sizeBytes()) / float64(c.file.size)
	}
	if c.pendingRetry {
		return 0
	}
	if !c.forceComplete && (c.flight == nil || !c.flight.done) {
		// Unresolved: damp so a range never displays as fully settled
		// before the receiver has confirmed it.
		factor *= 0.95
	}
	switch c.statusLocked() {
	case ChunkSuccess, ChunkError:
		return factor
	case ChunkPending:
		return 0
	default:
		size := c.sizeBytes()
		if size == 0 {
			return factor
		}
		return float64(c.bytesLoaded) / float64(size) * factor
	}
}

// Abort releases the in-flight handle, cancelling any active transport
// request, and clears a scheduled retry. Idempotent.
func (c *Chunk) Abort() {
	cl := c.file.client
	cl.mu.Lock()
	defer cl.mu.Unlock()
	c.abortLocked()
}

func (c *Chunk) abortLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.pendingRetry = false
	if c.flight != nil {
		c.flight.cancel()
		c.flight = nil
	}
}

// PreprocessFinished signals that the pre-send hook completed. The deferred
// transmission is re-invoked unless the file is paused, in which case the
// chunk returns to the pending pool.
func (c *Chunk) PreprocessFinished() {
	cl := c.file.client
	cl.mu.Lock()
	if c.detached || c.preprocess != hookRunning {
		cl.mu.Unlock()
		return
	}
	c.preprocess = hookDone

	var evs []events.Event
	if !c.file.effectivePausedLocked() && !c.file.errored {
		c.sendLocked(&evs)
	}
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

// sendLocked claims the chunk and starts the next step of its transmission:
// the pre-send hook, the existence probe, or the actual send. Must only be
// invoked while the chunk is pending; the claim happens synchronously under
// the engine mutex, which is what keeps concurrent scheduler advances from
// claiming the same chunk twice.
func (c *Chunk) sendLocked(evs *[]events.Event) {
	cl := c.file.client

	if cl.opts.PreprocessChunk != nil && c.preprocess == hookNone {
		c.preprocess = hookRunning
		logrus.WithFields(logrus.Fields{
			"function":   "sendLocked",
			"identifier": c.file.identifier,
			"chunk":      c.offset,
		}).Debug("Deferring transmission to pre-send hook")
		go cl.opts.PreprocessChunk(c)
		return
	}

	if cl.opts.TestChunks && !c.tested {
		c.startProbeLocked()
		return
	}

	c.startSendLocked()
}

// newFlightLocked installs a fresh in-flight handle and returns its context.
func (c *Chunk) newFlightLocked() (*flight, context.Context) {
	cl := c.file.client
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout := cl.opts.RequestTimeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	fl := &flight{cancel: cancel}
	c.flight = fl
	return fl, ctx
}

// metaLocked assembles the wire description of this chunk.
func (c *Chunk) metaLocked() transport.ChunkMeta {
	cl := c.file.client
	f := c.file

	query := make(map[string]string, len(cl.opts.Query))
	for k, v := range cl.opts.Query {
		query[k] = v
	}
	if cl.opts.QueryFunc != nil {
		for k, v := range cl.opts.QueryFunc(f, c) {
			query[k] = v
		}
	}

	return transport.ChunkMeta{
		File: transport.FileMeta{
			Identifier:   f.identifier,
			Name:         f.name,
			RelativePath: f.relativePath,
			Size:         f.size,
			TotalChunks:  len(f.chunks),
			ChunkSize:    cl.opts.ChunkSize,
		},
		Number:      c.offset + 1,
		StartByte:   c.startByte,
		EndByte:     c.endByte,
		CurrentSize: c.sizeBytes(),
		Query:       query,
		Headers:     cl.opts.Headers,
	}
}

// startProbeLocked issues the existence probe instead of a transmission.
func (c *Chunk) startProbeLocked() {
	cl := c.file.client
	fl, ctx := c.newFlightLocked()
	meta := c.metaLocked()
	adapter := cl.opts.Adapter

	logrus.WithFields(logrus.Fields{
		"function":   "startProbeLocked",
		"identifier": c.file.identifier,
		"chunk":      c.offset,
	}).Debug("Probing receiver for existing chunk")

	go func() {
		exists, err := adapter.Probe(ctx, meta)
		c.probeDone(fl, exists, err)
	}()
}

// probeDone applies a probe outcome. On success the chunk is forced complete
// with zero bytes transmitted; any failure falls through to transmission.
func (c *Chunk) probeDone(fl *flight, exists bool, err error) {
	cl := c.file.client
	cl.mu.Lock()
	if c.flight != fl || c.detached {
		cl.mu.Unlock()
		return
	}
	fl.cancel()
	c.flight = nil
	c.tested = true

	var evs []events.Event
	if exists && err == nil {
		c.forceComplete = true
		c.bytesLoaded = c.sizeBytes()
		logrus.WithFields(logrus.Fields{
			"function":   "probeDone",
			"identifier": c.file.identifier,
			"chunk":      c.offset,
			"size":       humanSize(c.sizeBytes()),
		}).Info("Chunk already stored by receiver, skipping transmission")
		cl.chunkSettledLocked(c, "", &evs)
	} else {
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "probeDone",
				"identifier": c.file.identifier,
				"chunk":      c.offset,
				"error":      err.Error(),
			}).Warn("Existence probe failed, transmitting chunk")
		}
		c.startSendLocked()
	}
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

// startSendLocked starts the actual transmission of the byte range.
func (c *Chunk) startSendLocked() {
	cl := c.file.client
	fl, ctx := c.newFlightLocked()
	meta := c.metaLocked()
	adapter := cl.opts.Adapter
	body := io.NewSectionReader(c.file.item, c.startByte, c.sizeBytes())

	go func() {
		res, err := adapter.Send(ctx, meta, body, func(sent int64) {
			c.noteProgress(fl, sent)
		})
		c.sendDone(fl, res, err)
	}()
}

// noteProgress records bytes moved by the transport and, throttled to the
// configured interval, publishes chunk and file progress.
func (c *Chunk) noteProgress(fl *flight, sent int64) {
	cl := c.file.client
	cl.mu.Lock()
	if c.flight != fl || fl.done || c.detached {
		cl.mu.Unlock()
		return
	}
	if sent > c.sizeBytes() {
		// Wire framing overhead; the range itself is what counts.
		sent = c.sizeBytes()
	}
	c.bytesLoaded = sent

	if c.throttle != nil && !c.throttle.Allow() {
		cl.mu.Unlock()
		return
	}

	evs := c.progressEventsLocked()
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

// progressEventsLocked builds the chunk and file progress notifications.
func (c *Chunk) progressEventsLocked() []events.Event {
	f := c.file
	f.noteSpeedLocked()
	return []events.Event{
		events.ChunkProgress{
			Identifier:  f.identifier,
			ChunkNumber: c.offset + 1,
			BytesLoaded: c.bytesLoaded,
			ChunkBytes:  c.sizeBytes(),
		},
		events.FileProgress{
			Identifier: f.identifier,
			Progress:   f.progressLocked(),
		},
	}
}

// sendDone applies a transmission outcome: success, permanent failure, or
// the transient retry path. A stale handle, released by an abort, never
// mutates state.
func (c *Chunk) sendDone(fl *flight, res *transport.Result, err error) {
	cl := c.file.client
	cl.mu.Lock()
	if c.flight != fl || c.detached {
		cl.mu.Unlock()
		return
	}
	fl.done = true
	fl.cancel()
	if res != nil {
		fl.statusCode = res.StatusCode
		fl.body = res.Body
	}
	fl.err = err

	var evs []events.Event
	switch {
	case err == nil && cl.opts.isSuccessStatus(res.StatusCode):
		c.bytesLoaded = c.sizeBytes()
		logrus.WithFields(logrus.Fields{
			"function":   "sendDone",
			"identifier": c.file.identifier,
			"chunk":      c.offset,
			"status":     res.StatusCode,
			"size":       humanSize(c.sizeBytes()),
		}).Debug("Chunk transmitted")
		cl.chunkSettledLocked(c, res.Body, &evs)

	case err == nil && cl.opts.isPermanentStatus(res.StatusCode):
		logrus.WithFields(logrus.Fields{
			"function":   "sendDone",
			"identifier": c.file.identifier,
			"chunk":      c.offset,
			"status":     res.StatusCode,
		}).Error("Chunk failed permanently")
		cl.chunkFailedLocked(c, res.StatusCode,
			fmt.Sprintf("permanent status %d", res.StatusCode), &evs)

	default:
		c.handleTransientLocked(fl, &evs)
	}
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

// handleTransientLocked runs the retry policy for a transient failure. The
// retry count strictly increases; the chunk becomes terminal exactly when it
// reaches the configured maximum.
func (c *Chunk) handleTransientLocked(fl *flight, evs *[]events.Event) {
	cl := c.file.client
	c.retryCount++

	cause := "unlisted status"
	if fl.err != nil {
		cause = fl.err.Error()
	}

	if max := cl.opts.MaxChunkRetries; max > 0 && c.retryCount >= max {
		// The resolved handle is kept so the chunk reads as error.
		logrus.WithFields(logrus.Fields{
			"function":    "handleTransientLocked",
			"identifier":  c.file.identifier,
			"chunk":       c.offset,
			"retry_count": c.retryCount,
			"cause":       cause,
		}).Error("Chunk retries exhausted")
		cl.chunkFailedLocked(c, fl.statusCode,
			fmt.Sprintf("%v after %d attempts: %s", ErrRetriesExhausted, c.retryCount, cause), evs)
		return
	}

	c.flight = nil
	c.bytesLoaded = 0

	if interval := cl.opts.ChunkRetryInterval; interval > 0 {
		c.pendingRetry = true
		c.retryTimer = time.AfterFunc(interval, c.retryFire)
		logrus.WithFields(logrus.Fields{
			"function":    "handleTransientLocked",
			"identifier":  c.file.identifier,
			"chunk":       c.offset,
			"retry_count": c.retryCount,
			"interval":    interval,
			"cause":       cause,
		}).Warn("Transient chunk failure, retry scheduled")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":    "handleTransientLocked",
		"identifier":  c.file.identifier,
		"chunk":       c.offset,
		"retry_count": c.retryCount,
		"cause":       cause,
	}).Warn("Transient chunk failure, retrying immediately")
	c.sendLocked(evs)
}

// retryFire is the delayed re-dispatch of a transiently failed chunk. If the
// file was paused in the meantime the chunk simply returns to the pending
// pool for the next resume.
func (c *Chunk) retryFire() {
	cl := c.file.client
	cl.mu.Lock()
	if c.detached || !c.pendingRetry {
		cl.mu.Unlock()
		return
	}
	c.pendingRetry = false
	c.retryTimer = nil

	var evs []events.Event
	if !c.file.effectivePausedLocked() && !c.file.errored {
		c.sendLocked(&evs)
	}
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}
