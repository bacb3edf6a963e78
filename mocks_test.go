package resumable

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/opd-ai/resumable/events"
	"github.com/opd-ai/resumable/transport"
)

// mockTimeProvider provides deterministic time for testing.
type mockTimeProvider struct {
	mu      sync.Mutex
	current time.Time
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *mockTimeProvider) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// mockAdapter implements transport.Adapter with scriptable outcomes.
type mockAdapter struct {
	mu sync.Mutex

	// probeAll answers every probe as "already stored"; otherwise probes
	// report absent.
	probeAll bool
	probeErr error

	// sendStatus is returned for every send unless a failure script below
	// applies. Defaults to 200.
	sendStatus int
	// transientFailures maps a 1-based chunk number to how many times it
	// fails with a transport error before succeeding. -1 fails forever.
	transientFailures map[int]int
	// permanentStatus, when non-zero, is returned for chunk numbers listed
	// in permanentChunks.
	permanentStatus int
	permanentChunks map[int]bool

	// gate, when non-nil, blocks every send until the gate is closed or the
	// request context is cancelled.
	gate chan struct{}

	probes   []int // chunk numbers probed, in order
	sent     []int // chunk numbers sent, in order
	inFlight int
	peak     int // maximum concurrent sends observed
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		sendStatus:        200,
		transientFailures: make(map[int]int),
		permanentChunks:   make(map[int]bool),
	}
}

func (m *mockAdapter) Probe(ctx context.Context, meta transport.ChunkMeta) (bool, error) {
	m.mu.Lock()
	m.probes = append(m.probes, meta.Number)
	exists, err := m.probeAll, m.probeErr
	m.mu.Unlock()
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (m *mockAdapter) Send(ctx context.Context, meta transport.ChunkMeta, body io.Reader, onProgress func(int64)) (*transport.Result, error) {
	m.mu.Lock()
	m.sent = append(m.sent, meta.Number)
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	gate := m.gate
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	if remaining, ok := m.transientFailures[meta.Number]; ok && remaining != 0 {
		if remaining > 0 {
			m.transientFailures[meta.Number] = remaining - 1
		}
		m.mu.Unlock()
		return nil, io.ErrUnexpectedEOF
	}
	if m.permanentChunks[meta.Number] {
		status := m.permanentStatus
		m.mu.Unlock()
		return &transport.Result{StatusCode: status, Body: "rejected"}, nil
	}
	status := m.sendStatus
	m.mu.Unlock()

	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(n)
	}
	return &transport.Result{StatusCode: status, Body: "ok"}, nil
}

func (m *mockAdapter) clearPermanent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanentChunks = make(map[int]bool)
	m.permanentStatus = 0
}

func (m *mockAdapter) sentChunks() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockAdapter) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockAdapter) probeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.probes)
}

func (m *mockAdapter) peakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// eventRecorder collects every event from a bus for later inspection.
type eventRecorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func recordEvents(bus *events.Bus) *eventRecorder {
	r := &eventRecorder{}
	bus.Subscribe(events.KindAny, func(ev events.Event) {
		r.mu.Lock()
		r.evs = append(r.evs, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.evs {
		if ev.EventKind() == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) last(kind events.Kind) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.evs) - 1; i >= 0; i-- {
		if r.evs[i].EventKind() == kind {
			return r.evs[i]
		}
	}
	return nil
}

// newTestClient wires a client around a mock adapter with probing disabled
// and defaults sized for in-memory items.
func newTestClient(adapter *mockAdapter, mutate func(*Options)) *Client {
	opts := NewOptions()
	opts.Adapter = adapter
	opts.TestChunks = false
	opts.ChunkSize = 64
	opts.ProgressThrottle = 0
	if mutate != nil {
		mutate(opts)
	}
	cl, err := New(opts)
	if err != nil {
		panic(err)
	}
	return cl
}

// payload builds deterministic content of the given size.
func payload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
