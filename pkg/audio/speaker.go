package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// SpeakerSink plays PCM16LE audio on the default system output device.
// oto pulls from an internal buffer; Write appends to it.
type SpeakerSink struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	player  *oto.Player
	playing bool
	closed  bool
}

// NewSpeakerSink acquires the default output device at the given sample
// rate (mono, 16-bit).
func NewSpeakerSink(rate int) (*SpeakerSink, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms buffer keeps latency low without glitching
		BufferSize: 100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init output device: %v: %w", err, ErrDeviceUnavailable)
	}
	<-ready

	s := &SpeakerSink{otoCtx: ctx}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write queues PCM for playback, starting the player on first data.
func (s *SpeakerSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStopped
	}
	s.buf = append(s.buf, pcm...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
	return nil
}

// Read implements io.Reader for the oto player. It blocks until data is
// available and returns silence once the sink is closed so oto can
// drain gracefully.
func (s *SpeakerSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close releases the output device and discards buffered audio.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.buf = nil
	player := s.player
	s.player = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
