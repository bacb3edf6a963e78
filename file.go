package resumable

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/resumable/events"
)

// File owns the ordered chunk sequence for one logical upload and aggregates
// per-chunk state into file-level status and progress. All fields are
// guarded by the owning client's mutex.
type File struct {
	client *Client
	item   Item

	identifier   string
	name         string
	relativePath string
	size         int64

	chunks      []*Chunk
	paused      bool
	errored     bool
	progressHWM float64
	preUpload   hookState

	lastResponse string

	// Transfer speed, exponential moving average in bytes per second.
	speed     float64
	lastBytes int64
	lastTick  time.Time
}

// newFile creates a tracked file. The chunk partition is built by a
// subsequent bootstrap.
func newFile(cl *Client, item Item, identifier string) *File {
	return &File{
		client:       cl,
		item:         item,
		identifier:   identifier,
		name:         item.Name(),
		relativePath: item.RelativePath(),
		size:         item.Size(),
		lastTick:     cl.timeProvider.Now(),
	}
}

// Identifier returns the file's stable fingerprint.
func (f *File) Identifier() string { return f.identifier }

// Name returns the file name presented to the receiver.
func (f *File) Name() string { return f.name }

// Size returns the file's byte count. Immutable once bootstrapped.
func (f *File) Size() int64 { return f.size }

// RelativePath returns the file's path within its batch.
func (f *File) RelativePath() string { return f.relativePath }

// ChunkCount returns the number of chunks in the current partition.
func (f *File) ChunkCount() int {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	return len(f.chunks)
}

// Chunks returns a snapshot of the current partition.
func (f *File) Chunks() []*Chunk {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	out := make([]*Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out
}

// bootstrapLocked aborts any in-flight chunks, clears error state, and
// rebuilds the chunk partition. Chunking notifications are appended to evs,
// which the caller flushes after the scheduling pass so observers never see
// a partially built partition.
func (f *File) bootstrapLocked(evs *[]events.Event) {
	for _, ch := range f.chunks {
		ch.abortLocked()
		ch.detached = true
	}

	f.errored = false
	f.progressHWM = 0
	f.lastResponse = ""
	f.speed = 0
	f.lastBytes = 0
	f.lastTick = f.client.timeProvider.Now()

	opts := f.client.opts
	count := int(f.size / opts.ChunkSize)
	if opts.ForceChunkSize {
		count = int((f.size + opts.ChunkSize - 1) / opts.ChunkSize)
	}
	if count < 1 {
		count = 1
	}

	logrus.WithFields(logrus.Fields{
		"function":   "bootstrap",
		"identifier": f.identifier,
		"name":       f.name,
		"size":       humanSize(f.size),
		"chunks":     count,
	}).Info("Building chunk partition")

	*evs = append(*evs, events.ChunkingStart{Identifier: f.identifier, TotalChunks: count})

	f.chunks = make([]*Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := int64(i) * opts.ChunkSize
		end := start + opts.ChunkSize
		if i == count-1 && !opts.ForceChunkSize {
			// Floor policy: the final chunk absorbs the remainder.
			end = f.size
		}
		if end > f.size {
			end = f.size
		}
		f.chunks = append(f.chunks, newChunk(f, i, start, end))
		*evs = append(*evs, events.ChunkingProgress{
			Identifier: f.identifier,
			Ratio:      float64(i+1) / float64(count),
		})
	}

	*evs = append(*evs, events.ChunkingComplete{Identifier: f.identifier, TotalChunks: count})
}

// Progress returns the file's overall fraction in [0,1]. The value is
// monotonically non-decreasing across pause, resume, and abort.
func (f *File) Progress() float64 {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	return f.progressLocked()
}

func (f *File) progressLocked() float64 {
	if len(f.chunks) == 0 {
		return f.progressHWM
	}
	if f.size == 0 {
		// A zero-byte file has no range to weight; completion is binary.
		if f.isCompleteLocked() {
			f.progressHWM = 1
		}
		return f.progressHWM
	}

	var ret float64
	for _, ch := range f.chunks {
		ret += ch.progressLocked(true)
	}
	if ret > 0.99999 {
		ret = 1
	}
	if ret < f.progressHWM {
		ret = f.progressHWM
	}
	f.progressHWM = ret
	return ret
}

// IsComplete reports whether every chunk has succeeded.
func (f *File) IsComplete() bool {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	return f.isCompleteLocked()
}

func (f *File) isCompleteLocked() bool {
	if f.preUpload == hookRunning {
		return false
	}
	if len(f.chunks) == 0 {
		return false
	}
	for _, ch := range f.chunks {
		if ch.statusLocked() != ChunkSuccess {
			return false
		}
	}
	return true
}

// IsUploading reports whether any chunk is currently claimed.
func (f *File) IsUploading() bool {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	return f.isUploadingLocked()
}

func (f *File) isUploadingLocked() bool {
	for _, ch := range f.chunks {
		if ch.statusLocked() == ChunkUploading {
			return true
		}
	}
	return false
}

// Errored reports whether the file holds a permanently failed chunk and
// awaits Retry or Cancel.
func (f *File) Errored() bool {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	return f.errored
}

// IsPaused reports the effective paused state: the file's own flag or the
// queue-wide pause.
func (f *File) IsPaused() bool {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	return f.effectivePausedLocked()
}

func (f *File) effectivePausedLocked() bool {
	return f.paused || f.client.paused
}

// SetPaused pauses or resumes this file. Pausing aborts the file's in-flight
// chunks; resuming asks the scheduler to fill the freed slots.
func (f *File) SetPaused(paused bool) {
	cl := f.client
	cl.mu.Lock()
	var evs []events.Event
	if paused == f.paused {
		cl.mu.Unlock()
		return
	}
	f.paused = paused
	if paused {
		f.abortUploadingLocked()
		logrus.WithFields(logrus.Fields{
			"function":   "SetPaused",
			"identifier": f.identifier,
		}).Info("File paused")
	} else {
		logrus.WithFields(logrus.Fields{
			"function":   "SetPaused",
			"identifier": f.identifier,
		}).Info("File resumed")
		cl.saturateLocked(&evs)
	}
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

// Pause pauses this file.
func (f *File) Pause() { f.SetPaused(true) }

// Resume resumes this file.
func (f *File) Resume() { f.SetPaused(false) }

// abortUploadingLocked aborts every claimed chunk of this file.
func (f *File) abortUploadingLocked() {
	for _, ch := range f.chunks {
		if ch.statusLocked() == ChunkUploading {
			ch.abortLocked()
		}
	}
}

// Cancel aborts all chunks, discards the partition, and removes the file
// from the queue. Freed concurrency slots are refilled from other files.
func (f *File) Cancel() {
	cl := f.client
	cl.mu.Lock()
	var evs []events.Event
	f.cancelLocked()
	cl.saturateLocked(&evs)
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

func (f *File) cancelLocked() {
	logrus.WithFields(logrus.Fields{
		"function":   "cancel",
		"identifier": f.identifier,
		"name":       f.name,
	}).Info("Cancelling file")

	for _, ch := range f.chunks {
		ch.abortLocked()
		ch.detached = true
	}
	f.chunks = nil
	f.client.removeFileLocked(f)
}

// Retry clears the error state, rebuilds the partition, and restarts the
// upload with the configured concurrency.
func (f *File) Retry() {
	cl := f.client
	cl.mu.Lock()
	var evs []events.Event
	logrus.WithFields(logrus.Fields{
		"function":   "Retry",
		"identifier": f.identifier,
	}).Info("Retrying file")

	f.bootstrapLocked(&evs)
	evs = append(evs, events.FileRetry{Identifier: f.identifier})
	cl.completeFired = false
	cl.saturateLocked(&evs)
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

// uploadLocked is the file's contribution to a scheduler advance: dispatch
// the first pending chunk in offset order. A file whose pre-upload hook has
// not finished reports busy without dispatching so it keeps its slot.
func (f *File) uploadLocked(evs *[]events.Event) bool {
	if f.effectivePausedLocked() || f.errored {
		return false
	}

	if f.client.opts.PreUpload != nil && f.preUpload != hookDone {
		if f.preUpload == hookNone {
			f.preUpload = hookRunning
			logrus.WithFields(logrus.Fields{
				"function":   "uploadLocked",
				"identifier": f.identifier,
			}).Debug("Starting pre-upload hook")
			go f.client.opts.PreUpload(f, f.preUploadFinished)
		}
		return true
	}

	for _, ch := range f.chunks {
		if ch.statusLocked() == ChunkPending {
			ch.sendLocked(evs)
			return true
		}
	}
	return false
}

// preUploadFinished unblocks the file once its pre-upload hook completes.
func (f *File) preUploadFinished() {
	cl := f.client
	cl.mu.Lock()
	if f.preUpload != hookRunning {
		cl.mu.Unlock()
		return
	}
	f.preUpload = hookDone

	var evs []events.Event
	cl.saturateLocked(&evs)
	cl.mu.Unlock()
	cl.bus.EmitAll(evs...)
}

// bytesDoneLocked estimates bytes accounted for: full size for settled
// chunks, transport-reported bytes otherwise.
func (f *File) bytesDoneLocked() int64 {
	var n int64
	for _, ch := range f.chunks {
		if ch.statusLocked() == ChunkSuccess {
			n += ch.sizeBytes()
		} else {
			n += ch.bytesLoaded
		}
	}
	return n
}

// noteSpeedLocked updates the transfer-speed moving average.
func (f *File) noteSpeedLocked() {
	now := f.client.timeProvider.Now()
	elapsed := now.Sub(f.lastTick).Seconds()
	done := f.bytesDoneLocked()
	if elapsed > 0 {
		if delta := done - f.lastBytes; delta > 0 {
			instant := float64(delta) / elapsed
			if f.speed == 0 {
				f.speed = instant
			} else {
				f.speed = 0.7*f.speed + 0.3*instant
			}
		}
		f.lastTick = now
		f.lastBytes = done
	}
}

// Speed returns the smoothed transfer speed in bytes per second.
func (f *File) Speed() float64 {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	return f.speed
}

// ETA returns the estimated time remaining, or zero when unknown.
func (f *File) ETA() time.Duration {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	if f.speed <= 0 {
		return 0
	}
	remaining := f.size - f.bytesDoneLocked()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / f.speed * float64(time.Second))
}
