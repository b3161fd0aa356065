package web

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/aurastyle/go-aura/internal/log"
	"github.com/aurastyle/go-aura/pkg/audio"
)

var errNoAudioChannel = errors.New("web: no browser audio channel connected")

const audioWriteWait = 10 * time.Second

// browserAudio adapts one /ws/audio connection to the bridge's device
// interfaces: inbound binary PCM16 frames become capture frames, and
// scheduled playback goes out as binary PCM16.
//
// It implements both audio.Source and audio.Sink. Closing a session
// releases the channel for the next session; the channel itself lives
// until the websocket disconnects (detach).
type browserAudio struct {
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	deliver   func(audio.Frame)
	rate      int
	frameSize int
	buf       []float32
	closed    bool
	detached  bool

	detachOnce sync.Once
}

func newBrowserAudio(conn *websocket.Conn) *browserAudio {
	return &browserAudio{
		conn: conn,
		send: make(chan []byte, 64),
	}
}

// Start begins delivering capture frames. The browser streams whatever
// chunk size its recorder produces; frames are reassembled here.
// Starting reacquires a channel released by a previous session's Close.
func (b *browserAudio) Start(rate, frameSize int, deliver func(audio.Frame)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detached {
		return audio.ErrDeviceUnavailable
	}
	b.closed = false
	b.rate = rate
	b.frameSize = frameSize
	b.deliver = deliver
	b.buf = b.buf[:0]
	return nil
}

// Stop quiesces delivery. Delivery happens under the same mutex, so
// returning from Stop guarantees no in-flight deliver call.
func (b *browserAudio) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver = nil
	b.buf = nil
	return nil
}

// receive handles one inbound binary audio message.
func (b *browserAudio) receive(pcm []byte) {
	samples, err := audio.UnmarshalPCM16(pcm)
	if err != nil {
		log.Warn("web: malformed browser audio dropped", "bytes", len(pcm))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deliver == nil {
		return
	}
	b.buf = append(b.buf, samples...)
	for len(b.buf) >= b.frameSize {
		frame := make([]float32, b.frameSize)
		copy(frame, b.buf[:b.frameSize])
		b.buf = b.buf[b.frameSize:]
		b.deliver(audio.Frame{Samples: frame, Rate: b.rate})
	}
}

// Write queues one playback buffer for the browser.
func (b *browserAudio) Write(pcm []byte) error {
	b.mu.Lock()
	released := b.closed || b.detached
	b.mu.Unlock()
	if released {
		return audio.ErrStopped
	}
	select {
	case b.send <- pcm:
		return nil
	default:
		log.Warn("web: browser playback queue full, dropping buffer", "bytes", len(pcm))
		return nil
	}
}

// Close releases the channel for the current session. The websocket
// stays up so a later session can reuse it. Idempotent.
func (b *browserAudio) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// detach tears the channel down for good when the websocket goes away.
func (b *browserAudio) detach() {
	b.mu.Lock()
	b.closed = true
	b.detached = true
	b.deliver = nil
	b.mu.Unlock()
	b.detachOnce.Do(func() { close(b.send) })
}

// writePump forwards playback buffers to the websocket. It is the only
// writer on the connection.
func (b *browserAudio) writePump() {
	for pcm := range b.send {
		b.conn.SetWriteDeadline(time.Now().Add(audioWriteWait))
		if err := b.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
			return
		}
	}
	b.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Ensure browserAudio satisfies the bridge device interfaces.
var (
	_ audio.Source = (*browserAudio)(nil)
	_ audio.Sink   = (*browserAudio)(nil)
)

// handleAudioWS owns the duplex audio channel for the live voice mode.
// One channel at a time; a second connection is refused.
func (s *Server) handleAudioWS(c *websocket.Conn) {
	browser := newBrowserAudio(c)

	s.mu.Lock()
	if s.browser != nil {
		s.mu.Unlock()
		log.Warn("web: refusing second audio channel")
		c.Close()
		return
	}
	s.browser = browser
	s.mu.Unlock()

	log.Info("web: audio channel connected")
	go browser.writePump()

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			break
		}
		if msgType == websocket.BinaryMessage {
			browser.receive(data)
		}
	}

	// The session cannot outlive its audio devices.
	s.closeSession()
	s.mu.Lock()
	s.browser = nil
	s.mu.Unlock()
	browser.detach()
	c.Close()
	log.Info("web: audio channel disconnected")
}
