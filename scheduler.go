package resumable

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/resumable/events"
)

// advanceLocked is the "advance one slot" operation: it claims at most one
// eligible chunk across the whole queue and dispatches it. It runs once per
// concurrency unit at upload start and once more every time a chunk settles,
// which keeps the worker pool saturated. Claiming happens synchronously
// under the engine mutex, so concurrent advances can never claim the same
// chunk.
func (c *Client) advanceLocked(evs *[]events.Event) bool {
	if c.paused {
		return false
	}

	if c.opts.PrioritizeFirstAndLastChunk && c.dispatchBoundaryLocked(evs) {
		return true
	}

	// Admission order: first file able to make progress wins.
	for _, f := range c.files {
		if f.uploadLocked(evs) {
			return true
		}
	}

	// Nothing dispatched: either everything is done, or some chunk was
	// stranded by a missed completion notification.
	if len(c.files) > 0 && c.allCompleteLocked() {
		if c.uploadStarted && !c.completeFired {
			c.completeFired = true
			logrus.WithFields(logrus.Fields{
				"function": "advance",
				"files":    len(c.files),
			}).Info("All tracked files complete")
			*evs = append(*evs, events.Complete{})
		}
		return false
	}

	return c.recoverStrandedLocked(evs)
}

// dispatchBoundaryLocked implements the boundary-chunk priority: each file's
// first chunk, then each file's last chunk, is dispatched ahead of any
// interior chunk so the receiver can validate identity and size cheaply.
func (c *Client) dispatchBoundaryLocked(evs *[]events.Event) bool {
	eligible := func(ch *Chunk) bool {
		return ch.preprocess == hookNone && ch.statusLocked() == ChunkPending
	}

	for _, f := range c.files {
		if f.effectivePausedLocked() || f.errored || len(f.chunks) == 0 {
			continue
		}
		if c.opts.PreUpload != nil && f.preUpload != hookDone {
			continue
		}
		if first := f.chunks[0]; eligible(first) {
			first.sendLocked(evs)
			return true
		}
	}
	for _, f := range c.files {
		if f.effectivePausedLocked() || f.errored || len(f.chunks) == 0 {
			continue
		}
		if c.opts.PreUpload != nil && f.preUpload != hookDone {
			continue
		}
		if last := f.chunks[len(f.chunks)-1]; eligible(last) {
			last.sendLocked(evs)
			return true
		}
	}
	return false
}

// recoverStrandedLocked sweeps for chunks that are neither settled nor
// owned by anything: no in-flight handle, no retry timer, no running hook.
// Such a chunk was stranded by a missed notification; dispatch it.
func (c *Client) recoverStrandedLocked(evs *[]events.Event) bool {
	for _, f := range c.files {
		if f.effectivePausedLocked() || f.errored {
			continue
		}
		if c.opts.PreUpload != nil && f.preUpload != hookDone {
			continue
		}
		for _, ch := range f.chunks {
			if ch.flight == nil && !ch.pendingRetry && ch.preprocess != hookRunning &&
				ch.statusLocked() != ChunkSuccess {
				logrus.WithFields(logrus.Fields{
					"function":   "recoverStranded",
					"identifier": f.identifier,
					"chunk":      ch.offset,
				}).Warn("Dispatching stranded chunk")
				ch.sendLocked(evs)
				return true
			}
		}
	}
	return false
}

// occupiedLocked counts claimed concurrency slots: chunks reading as
// uploading, plus files stalled in their pre-upload hook.
func (c *Client) occupiedLocked() int {
	n := 0
	for _, f := range c.files {
		if f.preUpload == hookRunning {
			n++
			continue
		}
		for _, ch := range f.chunks {
			if ch.statusLocked() == ChunkUploading {
				n++
			}
		}
	}
	return n
}

// saturateLocked advances once per free concurrency slot.
func (c *Client) saturateLocked(evs *[]events.Event) {
	free := c.opts.SimultaneousUploads - c.occupiedLocked()
	if free <= 0 {
		return
	}
	for i := 0; i < free; i++ {
		if !c.advanceLocked(evs) {
			return
		}
	}
}

// allCompleteLocked reports whether every tracked file is complete.
func (c *Client) allCompleteLocked() bool {
	for _, f := range c.files {
		if !f.isCompleteLocked() {
			return false
		}
	}
	return true
}

// chunkSettledLocked reacts to a chunk reaching success, by transmission or
// by probe skip: re-aggregate the file, surface completion, and fill the
// freed slot.
func (c *Client) chunkSettledLocked(ch *Chunk, body string, evs *[]events.Event) {
	f := ch.file
	if body != "" {
		f.lastResponse = body
	}
	*evs = append(*evs, ch.progressEventsLocked()...)

	if f.isCompleteLocked() {
		logrus.WithFields(logrus.Fields{
			"function":   "chunkSettled",
			"identifier": f.identifier,
			"name":       f.name,
			"size":       humanSize(f.size),
		}).Info("File upload complete")
		*evs = append(*evs, events.FileSuccess{
			Identifier: f.identifier,
			Body:       f.lastResponse,
		})
	}

	c.advanceLocked(evs)
}

// chunkFailedLocked reacts to a permanent chunk failure: the file enters the
// error state, its remaining in-flight chunks are aborted, and the freed
// slots are refilled from other files. The failed chunk keeps its resolved
// handle and reads as error until File.Retry rebuilds the partition.
func (c *Client) chunkFailedLocked(ch *Chunk, statusCode int, msg string, evs *[]events.Event) {
	f := ch.file
	f.errored = true
	f.abortUploadingLocked()

	*evs = append(*evs,
		events.FileProgress{Identifier: f.identifier, Progress: f.progressLocked()},
		events.FileError{Identifier: f.identifier, Message: msg, StatusCode: statusCode},
	)

	c.saturateLocked(evs)
}

// removeFileLocked drops a file from the queue, preserving admission order
// of the rest.
func (c *Client) removeFileLocked(f *File) {
	for i, tracked := range c.files {
		if tracked == f {
			c.files = append(c.files[:i], c.files[i+1:]...)
			return
		}
	}
}
