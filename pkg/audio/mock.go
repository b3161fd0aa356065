package audio

import (
	"sync"
	"time"
)

// MockSource is a capture source for testing. Tests push frames by hand
// with Push; no hardware is touched.
type MockSource struct {
	mu      sync.Mutex
	deliver func(Frame)
	rate    int
	size    int
	started bool
	stops   int

	// StartErr, when set, is returned by Start to simulate an
	// unavailable device.
	StartErr error
}

// NewMockSource creates a new mock capture source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// Start records the requested format and begins accepting Push calls.
func (m *MockSource) Start(rate, frameSize int, deliver func(Frame)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.rate = rate
	m.size = frameSize
	m.deliver = deliver
	m.started = true
	return nil
}

// Stop quiesces delivery.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
	m.deliver = nil
	m.stops++
	return nil
}

// Push delivers one frame of the configured size, as the device would.
// No-op when the source is not started.
func (m *MockSource) Push(samples []float32) {
	m.mu.Lock()
	deliver := m.deliver
	rate := m.rate
	m.mu.Unlock()
	if deliver != nil {
		deliver(Frame{Samples: samples, Rate: rate})
	}
}

// PushSilence delivers one all-zero frame of the configured size.
func (m *MockSource) PushSilence() {
	m.mu.Lock()
	size := m.size
	m.mu.Unlock()
	m.Push(make([]float32, size))
}

// Started reports whether the device is currently acquired.
func (m *MockSource) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stops returns how many times Stop was called.
func (m *MockSource) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// MockSink records playback writes for testing.
type MockSink struct {
	mu     sync.Mutex
	writes [][]byte
	closed int
}

// NewMockSink creates a new mock playback sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Write records the buffer.
func (m *MockSink) Write(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, pcm)
	return nil
}

// Close records the release.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Writes returns the recorded buffers in write order.
func (m *MockSink) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// Closes returns how many times Close was called.
func (m *MockSink) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockClock is a manual clock for scheduling tests. After fires
// immediately so playback never sleeps in tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a clock fixed at the given instant.
func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now}
}

// Now returns the current manual time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// After fires immediately regardless of duration.
func (c *MockClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}
