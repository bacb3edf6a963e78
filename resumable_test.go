package resumable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/resumable/events"
)

// TestClientProgressSizeWeighted verifies the queue-wide progress is
// weighted by file size, not averaged per file.
func TestClientProgressSizeWeighted(t *testing.T) {
	cl := newTestClient(newMockAdapter(), nil)
	big := cl.AddFile(NewBytesItem("big.bin", payload(192)))
	small := cl.AddFile(NewBytesItem("small.bin", payload(64)))
	require.NotNil(t, big)
	require.NotNil(t, small)

	assert.Zero(t, cl.Progress())

	// Force the small file complete: 64 of 256 bytes done.
	cl.mu.Lock()
	for _, ch := range small.chunks {
		ch.forceComplete = true
		ch.bytesLoaded = ch.sizeBytes()
	}
	cl.mu.Unlock()

	assert.InDelta(t, 0.25, cl.Progress(), 1e-9)
	assert.Equal(t, 1.0, small.Progress())
	assert.Zero(t, big.Progress())
}

// TestClientEmptyQueueObservables pins down the degenerate no-files state.
func TestClientEmptyQueueObservables(t *testing.T) {
	cl := newTestClient(newMockAdapter(), nil)

	assert.Zero(t, cl.Len())
	assert.Zero(t, cl.Progress())
	assert.False(t, cl.IsUploading())
	assert.False(t, cl.IsComplete(), "an empty queue is never complete")

	rec := recordEvents(cl.Events())
	cl.Upload()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count(events.KindUploadStart))
	assert.Zero(t, rec.count(events.KindComplete))
}

// TestClientUploadEvents verifies the start notification fires per Upload
// call and chunk traffic produces progress notifications.
func TestClientUploadEvents(t *testing.T) {
	adapter := newMockAdapter()
	cl := newTestClient(adapter, nil)
	rec := recordEvents(cl.Events())

	f := cl.AddFile(NewBytesItem("observed.bin", payload(128)))
	require.NotNil(t, f)
	assert.Equal(t, 1, rec.count(events.KindFileAdded))
	assert.Equal(t, 1, rec.count(events.KindChunkingStart))
	assert.Equal(t, 1, rec.count(events.KindChunkingComplete))

	cl.Upload()
	require.Eventually(t, func() bool {
		return f.IsComplete()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, rec.count(events.KindUploadStart))
	assert.GreaterOrEqual(t, rec.count(events.KindFileProgress), 1)
	assert.Equal(t, 1, rec.count(events.KindFileSuccess))
}

// TestClientSpeedAndETA verifies transfer-rate accounting over an injected
// clock.
func TestClientSpeedAndETA(t *testing.T) {
	cl := newTestClient(newMockAdapter(), nil)
	clock := newMockTimeProvider()
	cl.SetTimeProvider(clock)

	f := cl.AddFile(NewBytesItem("timed.bin", payload(256)))
	require.NotNil(t, f)
	assert.Zero(t, f.Speed())
	assert.Zero(t, f.ETA())

	// 64 bytes over one second seeds the average.
	cl.mu.Lock()
	f.chunks[0].forceComplete = true
	cl.mu.Unlock()
	clock.advance(time.Second)
	cl.mu.Lock()
	f.noteSpeedLocked()
	cl.mu.Unlock()
	assert.InDelta(t, 64.0, f.Speed(), 0.01)

	// Another 64 bytes over two seconds: 0.7*64 + 0.3*32.
	cl.mu.Lock()
	f.chunks[1].forceComplete = true
	cl.mu.Unlock()
	clock.advance(2 * time.Second)
	cl.mu.Lock()
	f.noteSpeedLocked()
	cl.mu.Unlock()
	assert.InDelta(t, 54.4, f.Speed(), 0.01)

	// 128 bytes remain at 54.4 B/s.
	assert.InDelta(t, 128.0/54.4, f.ETA().Seconds(), 0.01)
}
