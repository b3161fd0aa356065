package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aurastyle/go-aura/pkg/audio"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type update struct {
	text  string
	final bool
}

// hostRecorder records session callbacks for assertions.
type hostRecorder struct {
	mu       sync.Mutex
	user     []update
	agent    []update
	products [][]Product
	closed   []error

	// onProducts, when set, runs inside the OnProductsFound callback.
	onProducts func()
}

func (h *hostRecorder) callbacks() Callbacks {
	return Callbacks{
		OnProductsFound: func(products []Product) {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.onProducts != nil {
				h.onProducts()
			}
			h.products = append(h.products, products)
		},
		OnUserTranscript: func(text string, final bool) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.user = append(h.user, update{text, final})
		},
		OnAgentTranscript: func(text string, final bool) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.agent = append(h.agent, update{text, final})
		},
		OnClosed: func(reason error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.closed = append(h.closed, reason)
		},
	}
}

func (h *hostRecorder) closedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.closed)
}

func (h *hostRecorder) finalUser() []update {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []update
	for _, u := range h.user {
		if u.final {
			out = append(out, u)
		}
	}
	return out
}

func (h *hostRecorder) finalAgent() []update {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []update
	for _, u := range h.agent {
		if u.final {
			out = append(out, u)
		}
	}
	return out
}

type fixture struct {
	source    *audio.MockSource
	sink      *audio.MockSink
	transport *MockTransport
	host      *hostRecorder
	session   *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		source:    audio.NewMockSource(),
		sink:      audio.NewMockSink(),
		transport: NewMockTransport(),
		host:      &hostRecorder{},
	}
	bridge := audio.NewBridge(f.source, f.sink, audio.OutputSampleRate,
		audio.WithClock(audio.NewMockClock(time.Unix(1000, 0))))

	session, err := NewSession(DefaultConfig().WithAPIKey("test-key"),
		f.transport, bridge, f.host.callbacks())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	f.session = session
	t.Cleanup(session.Close)
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
}

func markedFrame(marker float32) []float32 {
	samples := make([]float32, audio.CaptureFrameSize)
	samples[0] = marker
	return samples
}

func TestOpenTransitionsToOpen(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	if got := f.session.State(); got != StateOpen {
		t.Errorf("state %v, want open", got)
	}
	if !f.source.Started() {
		t.Error("capture device not acquired")
	}
	if err := f.session.Open(context.Background()); err != ErrSessionActive {
		t.Errorf("second open: got %v, want ErrSessionActive", err)
	}
}

func TestMuteSuppressesOutboundWithoutBacklog(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.source.Push(markedFrame(0.1))
	f.source.Push(markedFrame(0.2))
	waitFor(t, "2 sends", func() bool { return len(f.transport.SentAudio()) == 2 })

	f.session.SetMuted(true)
	for i := 0; i < 3; i++ {
		f.source.Push(markedFrame(0.3))
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(f.transport.SentAudio()); got != 2 {
		t.Fatalf("muted session sent %d frames, want 2", got)
	}
	if !f.source.Started() {
		t.Error("capture device released by mute")
	}

	// Unmuting resumes from the next produced frame only.
	f.session.SetMuted(false)
	f.source.Push(markedFrame(0.4))
	waitFor(t, "3rd send", func() bool { return len(f.transport.SentAudio()) == 3 })
	want := audio.EncodeFrame(markedFrame(0.4))
	if got := f.transport.SentAudio()[2]; got != want {
		t.Error("first frame after unmute is not the newly produced one")
	}
}

func TestTranscriptRoutingAndTurnBoundary(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.transport.Deliver(ServerEvent{UserTranscript: "show me "})
	f.transport.Deliver(ServerEvent{UserTranscript: "rain jackets", AgentTranscript: "Sure, "})
	f.transport.Deliver(ServerEvent{AgentTranscript: "here are a few.", TurnComplete: true})

	waitFor(t, "final updates", func() bool {
		return len(f.host.finalUser()) == 1 && len(f.host.finalAgent()) == 1
	})
	if got := f.host.finalUser()[0].text; got != "show me rain jackets" {
		t.Errorf("final user transcript %q", got)
	}
	if got := f.host.finalAgent()[0].text; got != "Sure, here are a few." {
		t.Errorf("final agent transcript %q", got)
	}

	// The next utterance starts from empty.
	f.transport.Deliver(ServerEvent{UserTranscript: "in blue", TurnComplete: true})
	waitFor(t, "second final", func() bool { return len(f.host.finalUser()) == 2 })
	if got := f.host.finalUser()[1].text; got != "in blue" {
		t.Errorf("utterance after flush: %q", got)
	}
}

func TestTurnCompleteWithEmptyBufferEmitsNothing(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.transport.Deliver(ServerEvent{TurnComplete: true})
	time.Sleep(50 * time.Millisecond)
	if n := len(f.host.finalUser()) + len(f.host.finalAgent()); n != 0 {
		t.Errorf("empty buffers flushed %d final updates", n)
	}
}

func TestInboundAudioScheduledInOrder(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	first := base64.StdEncoding.EncodeToString([]byte{1, 0, 1, 0})
	second := base64.StdEncoding.EncodeToString([]byte{2, 0, 2, 0})
	f.transport.Deliver(ServerEvent{Audio: first})
	f.transport.Deliver(ServerEvent{Audio: second})

	waitFor(t, "2 playback writes", func() bool { return len(f.sink.Writes()) == 2 })
	writes := f.sink.Writes()
	if writes[0][0] != 1 || writes[1][0] != 2 {
		t.Errorf("playback order broken: %v", writes)
	}
}

func TestMalformedAudioChunkIsDroppedNotFatal(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.transport.Deliver(ServerEvent{Audio: "%%%not-base64%%%"})
	f.transport.Deliver(ServerEvent{Audio: base64.StdEncoding.EncodeToString([]byte{7, 0})})

	waitFor(t, "valid chunk scheduled", func() bool { return len(f.sink.Writes()) == 1 })
	if got := f.session.State(); got != StateOpen {
		t.Errorf("session state %v after malformed chunk, want open", got)
	}
}

func TestToolCallDispatchAndAcknowledgment(t *testing.T) {
	f := newFixture(t)
	// The acknowledgment must be sent only after the host callback
	// returns.
	f.host.onProducts = func() {
		if n := len(f.transport.ToolResponses()); n != 0 {
			t.Errorf("tool response sent before host callback returned (%d)", n)
		}
	}
	f.open(t)

	f.transport.Deliver(ServerEvent{ToolCalls: []ToolCall{{
		ID:   "call-7",
		Name: ToolShowProducts,
		Args: map[string]any{"products": []any{
			productArg("Acme", "Wool Coat", "$240", "A warm coat"),
			productArg("Bruno", "Boots", "$180", "Ankle boots"),
		}},
	}}})

	waitFor(t, "acknowledgment", func() bool { return len(f.transport.ToolResponses()) == 1 })
	f.host.mu.Lock()
	products := f.host.products
	f.host.mu.Unlock()
	if len(products) != 1 || len(products[0]) != 2 {
		t.Fatalf("products callback: got %v", products)
	}
	if got := f.transport.ToolResponses()[0].ID; got != "call-7" {
		t.Errorf("acknowledged wrong call: %q", got)
	}
}

func TestInvalidToolCallNotAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.transport.Deliver(ServerEvent{ToolCalls: []ToolCall{{
		ID:   "call-8",
		Name: ToolShowProducts,
		Args: map[string]any{"products": []any{}},
	}}})

	time.Sleep(50 * time.Millisecond)
	if n := len(f.transport.ToolResponses()); n != 0 {
		t.Errorf("empty product list acknowledged (%d responses)", n)
	}
	f.host.mu.Lock()
	products := f.host.products
	f.host.mu.Unlock()
	if len(products) != 0 {
		t.Errorf("products callback invoked for invalid call: %v", products)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.session.Close()
	f.session.Close()

	if got := f.host.closedCount(); got != 1 {
		t.Errorf("OnClosed fired %d times, want 1", got)
	}
	if got := f.session.State(); got != StateClosed {
		t.Errorf("state %v, want closed", got)
	}
	if f.source.Started() {
		t.Error("capture device still acquired")
	}
	if f.sink.Closes() != 1 {
		t.Errorf("output device released %d times, want 1", f.sink.Closes())
	}
}

func TestHandshakeFailureReleasesCaptureOnce(t *testing.T) {
	f := newFixture(t)
	f.transport.ConnectErr = errors.New("dial refused")

	err := f.session.Open(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("open: got %v, want ErrConnectionFailed", err)
	}
	if got := f.source.Stops(); got != 1 {
		t.Errorf("capture released %d times, want 1", got)
	}
	if got := f.host.closedCount(); got != 1 {
		t.Fatalf("OnClosed fired %d times, want 1", got)
	}
	f.host.mu.Lock()
	reason := f.host.closed[0]
	f.host.mu.Unlock()
	if !errors.Is(reason, ErrConnectionFailed) {
		t.Errorf("close reason %v, want ErrConnectionFailed", reason)
	}
	if got := f.session.State(); got != StateFailed {
		t.Errorf("state %v, want failed", got)
	}
}

func TestDeviceUnavailableClosesTransport(t *testing.T) {
	f := newFixture(t)
	f.source.StartErr = audio.ErrDeviceUnavailable

	err := f.session.Open(context.Background())
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("open: got %v, want ErrDeviceUnavailable", err)
	}
	if !f.transport.Closed() {
		t.Error("transport left open after failed device acquisition")
	}
	if got := f.host.closedCount(); got != 1 {
		t.Errorf("OnClosed fired %d times, want 1", got)
	}
}

func TestTransportFailureForcesTeardown(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.transport.FailWith(errors.New("connection reset"))

	waitFor(t, "teardown", func() bool { return f.host.closedCount() == 1 })
	f.host.mu.Lock()
	reason := f.host.closed[0]
	f.host.mu.Unlock()
	if !errors.Is(reason, ErrConnectionClosed) {
		t.Errorf("close reason %v, want ErrConnectionClosed", reason)
	}
	if got := f.session.State(); got != StateFailed {
		t.Errorf("state %v, want failed", got)
	}
	if f.source.Started() {
		t.Error("capture device leaked after transport failure")
	}
}

func TestRemoteCloseNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.transport.Deliver(ServerEvent{Closed: true})

	waitFor(t, "closed", func() bool { return f.host.closedCount() == 1 })
	f.host.mu.Lock()
	reason := f.host.closed[0]
	f.host.mu.Unlock()
	if reason != nil {
		t.Errorf("clean remote close carried reason %v", reason)
	}
	if got := f.session.State(); got != StateClosed {
		t.Errorf("state %v, want closed", got)
	}
}

// slowTransport holds the handshake open until released.
type slowTransport struct {
	*MockTransport
	release chan struct{}
}

func (t *slowTransport) Connect(ctx context.Context, cfg Config) error {
	<-t.release
	return t.MockTransport.Connect(ctx, cfg)
}

func TestFramesCapturedWhileConnectingAreDiscarded(t *testing.T) {
	source := audio.NewMockSource()
	bridge := audio.NewBridge(source, audio.NewMockSink(), audio.OutputSampleRate,
		audio.WithClock(audio.NewMockClock(time.Unix(1000, 0))))
	transport := &slowTransport{MockTransport: NewMockTransport(), release: make(chan struct{})}
	host := &hostRecorder{}

	session, err := NewSession(DefaultConfig().WithAPIKey("test-key"),
		transport, bridge, host.callbacks())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(session.Close)

	opened := make(chan error, 1)
	go func() { opened <- session.Open(context.Background()) }()

	// Capture starts while the handshake is still in flight.
	waitFor(t, "capture acquired", source.Started)
	for i := 0; i < 3; i++ {
		source.Push(markedFrame(0.1))
	}
	close(transport.release)
	if err := <-opened; err != nil {
		t.Fatalf("open: %v", err)
	}

	source.Push(markedFrame(0.9))
	waitFor(t, "post-handshake send", func() bool { return len(transport.SentAudio()) >= 1 })
	time.Sleep(50 * time.Millisecond)
	sent := transport.SentAudio()
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want only the one captured after open", len(sent))
	}
	if sent[0] != audio.EncodeFrame(markedFrame(0.9)) {
		t.Error("audio captured during the handshake was sent")
	}
}

func TestEndToEndSession(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	frames := [][]float32{markedFrame(0.1), markedFrame(0.2), markedFrame(0.3)}
	for _, frame := range frames {
		f.source.Push(frame)
	}
	waitFor(t, "3 sends", func() bool { return len(f.transport.SentAudio()) == 3 })
	for i, sent := range f.transport.SentAudio() {
		if want := audio.EncodeFrame(frames[i]); sent != want {
			t.Errorf("frame %d sent out of order", i)
		}
	}

	// A turn boundary with nothing accumulated must not flush.
	f.transport.Deliver(ServerEvent{TurnComplete: true})
	time.Sleep(50 * time.Millisecond)
	if n := len(f.host.finalUser()) + len(f.host.finalAgent()); n != 0 {
		t.Errorf("empty turn flushed %d updates", n)
	}

	f.session.Close()
	if f.source.Started() {
		t.Error("capture device leaked")
	}
	if got := f.host.closedCount(); got != 1 {
		t.Errorf("OnClosed fired %d times, want 1", got)
	}
}
