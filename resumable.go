package resumable

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/resumable/events"
)

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard library clock.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Client is the upload engine: it tracks the file queue, enforces the
// admission policy, runs the concurrency-limited scheduler, and publishes
// notifications on its event bus.
//
// All state transitions happen under one mutex — a single logical thread of
// control. Only transport calls run concurrently, and their outcomes re-enter
// the engine under the mutex.
type Client struct {
	mu   sync.Mutex
	opts *Options
	bus  *events.Bus

	files      []*File // admission order
	paused     bool
	collisions int

	uploadStarted bool
	completeFired bool

	timeProvider TimeProvider
}

// New creates a Client for the given options.
func New(options *Options) (*Client, error) {
	if options == nil {
		options = NewOptions()
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":             "New",
		"chunk_size":           humanSize(options.ChunkSize),
		"force_chunk_size":     options.ForceChunkSize,
		"simultaneous_uploads": options.SimultaneousUploads,
		"test_chunks":          options.TestChunks,
		"max_chunk_retries":    options.MaxChunkRetries,
	}).Info("Creating upload client")

	return &Client{
		opts:         options,
		bus:          events.NewBus(),
		timeProvider: DefaultTimeProvider{},
	}, nil
}

// Events returns the client's notification bus.
func (c *Client) Events() *events.Bus { return c.bus }

// SetTimeProvider sets a custom time provider for deterministic testing.
func (c *Client) SetTimeProvider(tp TimeProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeProvider = tp
}

// Upload starts or resumes the queue-wide upload: one scheduler advance per
// concurrency slot.
func (c *Client) Upload() {
	c.mu.Lock()
	var evs []events.Event
	c.paused = false
	c.uploadStarted = true
	c.completeFired = false
	evs = append(evs, events.UploadStart{})

	logrus.WithFields(logrus.Fields{
		"function": "Upload",
		"files":    len(c.files),
		"slots":    c.opts.SimultaneousUploads,
	}).Info("Starting upload pass")

	c.saturateLocked(&evs)
	c.mu.Unlock()
	c.bus.EmitAll(evs...)
}

// Pause halts the whole queue: every in-flight chunk is aborted and no new
// dispatches happen until Resume or Upload.
func (c *Client) Pause() {
	c.mu.Lock()
	var evs []events.Event
	if !c.paused {
		c.paused = true
		for _, f := range c.files {
			f.abortUploadingLocked()
		}
		evs = append(evs, events.Pause{})
		logrus.WithFields(logrus.Fields{
			"function": "Pause",
			"files":    len(c.files),
		}).Info("Queue paused")
	}
	c.mu.Unlock()
	c.bus.EmitAll(evs...)
}

// Resume lifts a queue-wide pause and refills the concurrency slots.
func (c *Client) Resume() {
	c.mu.Lock()
	var evs []events.Event
	if c.paused {
		c.paused = false
		logrus.WithFields(logrus.Fields{
			"function": "Resume",
			"files":    len(c.files),
		}).Info("Queue resumed")
		c.saturateLocked(&evs)
	}
	c.mu.Unlock()
	c.bus.EmitAll(evs...)
}

// IsPaused reports the queue-wide pause flag.
func (c *Client) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Cancel aborts and removes every tracked file.
func (c *Client) Cancel() {
	c.mu.Lock()
	var evs []events.Event
	logrus.WithFields(logrus.Fields{
		"function": "Cancel",
		"files":    len(c.files),
	}).Info("Cancelling queue")

	// Reverse order so each removal leaves earlier indices untouched.
	for i := len(c.files) - 1; i >= 0; i-- {
		c.files[i].cancelLocked()
	}
	evs = append(evs, events.Cancel{})
	c.mu.Unlock()
	c.bus.EmitAll(evs...)
}

// Progress returns the size-weighted overall fraction across all tracked
// files, in [0,1].
func (c *Client) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalSize int64
	var totalDone float64
	for _, f := range c.files {
		totalSize += f.size
		totalDone += f.progressLocked() * float64(f.size)
	}
	if totalSize == 0 {
		return 0
	}
	return totalDone / float64(totalSize)
}

// IsUploading reports whether any chunk across the queue is claimed.
func (c *Client) IsUploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.files {
		if f.isUploadingLocked() {
			return true
		}
	}
	return false
}

// IsComplete reports whether every tracked file is complete. An empty queue
// is not complete.
func (c *Client) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files) > 0 && c.allCompleteLocked()
}
