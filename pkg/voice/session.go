package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurastyle/go-aura/internal/log"
	"github.com/aurastyle/go-aura/pkg/audio"
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateIdle is the initial state before Open.
	StateIdle State = iota
	// StateConnecting covers device acquisition and the handshake.
	StateConnecting
	// StateOpen is the active duplex streaming state.
	StateOpen
	// StateClosing covers the ordered teardown sequence.
	StateClosing
	// StateClosed is terminal after a requested or remote close.
	StateClosed
	// StateFailed is terminal after a connection-level failure.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// closeGrace bounds how long teardown waits for in-flight send/receive
// work to drain before local resources are force-released.
const closeGrace = 2 * time.Second

// Callbacks groups the host-supplied session callbacks.
type Callbacks struct {
	// OnProductsFound delivers validated product recommendations.
	OnProductsFound func(products []Product)

	// OnUserTranscript delivers the shopper's accumulated transcript.
	// final is true exactly once per utterance, at the turn boundary.
	OnUserTranscript func(text string, final bool)

	// OnAgentTranscript delivers the agent's accumulated transcript.
	OnAgentTranscript func(text string, final bool)

	// OnClosed fires exactly once when the session ends. reason is nil
	// for a requested or clean remote close; connection-level failures
	// carry the fatal error for diagnostics.
	OnClosed func(reason error)
}

// Session is one live duplex voice conversation. It exclusively owns the
// transport connection and, through the bridge, the capture and playback
// devices. A Session is single-use: create, Open, Close; open a new one
// to start another conversation.
type Session struct {
	cfg        Config
	transport  Transport
	bridge     *audio.Bridge
	callbacks  Callbacks
	dispatcher Dispatcher

	mu     sync.Mutex
	state  State
	muted  bool
	cancel context.CancelFunc

	user  Transcript
	agent Transcript

	wg         sync.WaitGroup
	notifyOnce sync.Once
}

// NewSession creates an idle session. The transport and bridge are
// injected and become exclusively owned by the session once Open is
// called.
func NewSession(cfg Config, transport Transport, bridge *audio.Bridge, callbacks Callbacks) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:       cfg,
		transport: transport,
		bridge:    bridge,
		callbacks: callbacks,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetMuted suppresses outbound audio submission. The capture device
// stays open; frames produced while muted are dropped, not buffered.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Muted reports whether outbound audio is suppressed.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Open acquires the capture device and performs the transport handshake
// concurrently; both must succeed before the session starts streaming.
// On failure everything acquired is released, the session lands in
// StateFailed, and OnClosed fires with the fatal reason.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = StateConnecting
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	var frames <-chan audio.Frame
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ch, err := s.bridge.StartCapture(s.cfg.InputSampleRate, s.cfg.FrameSize)
		if err != nil {
			return err
		}
		frames = ch
		return nil
	})
	g.Go(func() error {
		if err := s.transport.Connect(gctx, s.cfg); err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.teardown(err)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Close raced the handshake; teardown already ran.
		s.mu.Unlock()
		return ErrNotOpen
	}
	s.state = StateOpen
	s.mu.Unlock()

	// Frames captured during the handshake are discarded, never sent.
	drainFrames(frames)

	log.Info("voice: session open",
		"model", s.cfg.Model,
		"input_rate", s.cfg.InputSampleRate,
		"output_rate", s.cfg.OutputSampleRate,
	)

	s.wg.Add(2)
	go s.pumpCapture(ctx, frames)
	go s.recvLoop()
	return nil
}

// Close triggers the ordered teardown sequence. It is idempotent:
// repeated calls are no-ops and OnClosed fires at most once.
func (s *Session) Close() {
	s.teardown(nil)
}

// pumpCapture encodes and submits capture frames in capture order while
// the session is open. Frames produced while muted, connecting, or
// closing are discarded, never buffered for later send.
func (s *Session) pumpCapture(ctx context.Context, frames <-chan audio.Frame) {
	defer s.wg.Done()
	for {
		var frame audio.Frame
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			frame = f
		case <-ctx.Done():
			return
		}

		s.mu.Lock()
		open := s.state == StateOpen
		muted := s.muted
		s.mu.Unlock()
		if !open || muted {
			continue
		}
		if err := s.transport.SendAudio(audio.EncodeFrame(frame.Samples)); err != nil {
			s.mu.Lock()
			open := s.state == StateOpen
			s.mu.Unlock()
			if open {
				log.Warn("voice: audio send failed", "err", err)
				go s.teardown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			}
			return
		}
	}
}

// recvLoop receives and routes server events until the transport closes.
func (s *Session) recvLoop() {
	defer s.wg.Done()
	for {
		ev, err := s.transport.Recv()
		if err != nil {
			s.mu.Lock()
			open := s.state == StateOpen
			s.mu.Unlock()
			if open {
				go s.teardown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			}
			return
		}
		s.handleEvent(ev)
		if ev.Closed {
			// Clean remote close: run the full sequence, reason-free.
			go s.teardown(nil)
			return
		}
	}
}

// handleEvent routes one inbound event. Events arriving after teardown
// has started observe the inactive guard and become no-ops.
func (s *Session) handleEvent(ev ServerEvent) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// 1. transcription deltas
	if ev.UserTranscript != "" {
		text := s.user.Append(ev.UserTranscript)
		if cb := s.callbacks.OnUserTranscript; cb != nil {
			cb(text, false)
		}
	}
	if ev.AgentTranscript != "" {
		text := s.agent.Append(ev.AgentTranscript)
		if cb := s.callbacks.OnAgentTranscript; cb != nil {
			cb(text, false)
		}
	}

	// 2. turn boundary: flush each direction that accumulated text
	if ev.TurnComplete {
		if text, ok := s.user.Flush(); ok {
			if cb := s.callbacks.OnUserTranscript; cb != nil {
				cb(text, true)
			}
		}
		if text, ok := s.agent.Flush(); ok {
			if cb := s.callbacks.OnAgentTranscript; cb != nil {
				cb(text, true)
			}
		}
	}

	// 3. synthesized speech
	if ev.Audio != "" {
		pcm, err := audio.DecodeChunk(ev.Audio)
		if err != nil {
			log.Warn("voice: dropping malformed audio chunk", "err", err)
		} else if err := s.bridge.Schedule(pcm); err != nil {
			log.Debug("voice: playback schedule skipped", "err", err)
		}
	}

	// 4. tool calls: acknowledge only after the host callback returns
	for _, call := range ev.ToolCalls {
		products, ok := s.dispatcher.Dispatch(call)
		if !ok {
			continue
		}
		if cb := s.callbacks.OnProductsFound; cb != nil {
			cb(products)
		}
		resp := ToolResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: map[string]any{"ok": true},
		}
		if err := s.transport.SendToolResponse(resp); err != nil {
			log.Warn("voice: tool response send failed", "id", call.ID, "err", err)
		}
	}
}

// teardown runs the ordered closing sequence exactly once:
// terminate the transport, stop capture and playback, release devices,
// clear transcripts and the playback watermark, then notify the host.
// reason is nil for requested/clean closes.
func (s *Session) teardown(reason error) {
	s.mu.Lock()
	switch s.state {
	case StateClosing, StateClosed, StateFailed:
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// (1) ask the remote to terminate; a failure to release cleanly is
	// logged and never reaches the host
	if err := s.transport.Close(); err != nil {
		log.Warn("voice: transport close failed", "err", err)
	}
	// bounded wait for in-flight send/receive work, then force-release
	if !waitTimeout(&s.wg, closeGrace) {
		log.Warn("voice: teardown grace expired, releasing resources")
	}

	// (2)(3) stop capture and playback, release both devices; also
	// resets the playback watermark
	s.bridge.Stop()

	// (4) discard any partial utterances
	s.user.Reset()
	s.agent.Reset()

	// (5) terminal state, then notify exactly once
	s.mu.Lock()
	if reason != nil {
		s.state = StateFailed
	} else {
		s.state = StateClosed
	}
	s.mu.Unlock()

	if reason != nil {
		log.Warn("voice: session ended", "reason", reason)
	} else {
		log.Info("voice: session closed")
	}
	s.notifyOnce.Do(func() {
		if cb := s.callbacks.OnClosed; cb != nil {
			cb(reason)
		}
	})
}

// drainFrames empties any frames buffered before the session opened.
func drainFrames(frames <-chan audio.Frame) {
	for {
		select {
		case <-frames:
		default:
			return
		}
	}
}

// waitTimeout waits for the group up to d. Reports whether the group
// finished in time.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
