package voice

import (
	"context"
	"sync"
)

// MockTransport is a scripted Transport for testing sessions without a
// network. Tests deliver events with Deliver and inject failures with
// FailWith.
type MockTransport struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	sentAudio []string
	responses []ToolResponse

	// ConnectErr, when set, is returned by Connect to simulate a
	// failed handshake.
	ConnectErr error

	events    chan ServerEvent
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		events: make(chan ServerEvent, 32),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect records the handshake.
func (m *MockTransport) Connect(ctx context.Context, cfg Config) error {
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// SendAudio records one outbound frame payload.
func (m *MockTransport) SendAudio(data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrConnectionClosed
	}
	m.sentAudio = append(m.sentAudio, data)
	return nil
}

// SendToolResponse records one acknowledgment.
func (m *MockTransport) SendToolResponse(resp ToolResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrConnectionClosed
	}
	m.responses = append(m.responses, resp)
	return nil
}

// Recv blocks for the next scripted event or failure.
func (m *MockTransport) Recv() (ServerEvent, error) {
	select {
	case ev := <-m.events:
		return ev, nil
	case err := <-m.errs:
		return ServerEvent{}, err
	case <-m.done:
		return ServerEvent{}, ErrConnectionClosed
	}
}

// Close terminates the connection, unblocking Recv.
func (m *MockTransport) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Deliver queues one inbound event.
func (m *MockTransport) Deliver(ev ServerEvent) {
	m.events <- ev
}

// FailWith makes the next Recv fail with err, as a dropped transport
// would.
func (m *MockTransport) FailWith(err error) {
	m.errs <- err
}

// SentAudio returns recorded outbound frame payloads in send order.
func (m *MockTransport) SentAudio() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sentAudio))
	copy(out, m.sentAudio)
	return out
}

// ToolResponses returns recorded acknowledgments in send order.
func (m *MockTransport) ToolResponses() []ToolResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ToolResponse, len(m.responses))
	copy(out, m.responses)
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
