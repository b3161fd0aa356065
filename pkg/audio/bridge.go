package audio

import (
	"sync"
	"time"

	"github.com/aurastyle/go-aura/internal/log"
)

// captureQueueDepth bounds the number of unsent capture frames. When the
// sender falls behind, the oldest frame is dropped so the most recent
// audio wins.
const captureQueueDepth = 8

type scheduled struct {
	start time.Time
	pcm   []byte
}

// Bridge owns one capture Source and one playback Sink for the duration
// of a live session. Playback buffers are scheduled against a watermark:
// each buffer starts at max(now, watermark) and the watermark advances to
// the buffer's end, so buffers queue back-to-back when they arrive fast
// and leave silence when they arrive slow. Buffers are never dropped,
// reordered, or overlapped.
type Bridge struct {
	source  Source
	sink    Sink
	clock   Clock
	outRate int

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []scheduled
	watermark time.Time
	frames    chan Frame
	capturing bool
	stopped   bool
	done      chan struct{}
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithClock overrides the playback clock. Used by tests.
func WithClock(c Clock) BridgeOption {
	return func(b *Bridge) { b.clock = c }
}

// NewBridge creates a bridge around the given devices. outRate is the
// sample rate of playback PCM handed to Schedule.
func NewBridge(source Source, sink Sink, outRate int, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		source:  source,
		sink:    sink,
		clock:   systemClock{},
		outRate: outRate,
		done:    make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	go b.playLoop()
	return b
}

// StartCapture acquires the capture device and returns the frame stream.
// Each frame holds exactly frameSize samples. The stream is closed when
// the bridge stops. If the sender cannot keep up, older unsent frames
// are dropped in favor of newer ones.
func (b *Bridge) StartCapture(rate, frameSize int) (<-chan Frame, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrStopped
	}
	if b.capturing {
		b.mu.Unlock()
		return b.frames, nil
	}
	frames := make(chan Frame, captureQueueDepth)
	b.frames = frames
	b.mu.Unlock()

	deliver := func(f Frame) {
		select {
		case frames <- f:
		default:
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- f:
			default:
			}
		}
	}

	if err := b.source.Start(rate, frameSize, deliver); err != nil {
		b.mu.Lock()
		b.frames = nil
		b.mu.Unlock()
		return nil, err
	}

	b.mu.Lock()
	if b.stopped {
		// Stop ran between the lock release above and the device
		// acquisition, before the device existed. Release it here;
		// Stop saw capturing false and left the stream open.
		b.mu.Unlock()
		if err := b.source.Stop(); err != nil {
			log.Warn("audio: capture release failed", "err", err)
		}
		close(frames)
		return nil, ErrStopped
	}
	b.capturing = true
	b.mu.Unlock()
	return frames, nil
}

// Schedule queues a finalized PCM16LE buffer for playback at
// max(now, watermark) and advances the watermark past it.
func (b *Bridge) Schedule(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return ErrStopped
	}
	start := b.clock.Now()
	if b.watermark.After(start) {
		start = b.watermark
	}
	b.watermark = start.Add(PCMDuration(pcm, b.outRate))
	b.pending = append(b.pending, scheduled{start: start, pcm: pcm})
	b.cond.Signal()
	return nil
}

// Watermark returns the earliest time the next buffer may start.
// The zero time means nothing has been scheduled.
func (b *Bridge) Watermark() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watermark
}

// Stop releases the capture device, releases the output device, and
// invalidates pending scheduled buffers. Safe to call multiple times,
// and safe even if StartCapture never succeeded.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.pending = nil
	b.watermark = time.Time{}
	// Close the stream only if capture fully started; an in-flight
	// StartCapture that loses this race observes stopped, releases the
	// device, and closes the stream itself.
	var frames chan Frame
	if b.capturing {
		frames = b.frames
	}
	b.frames = nil
	close(b.done)
	b.cond.Broadcast()
	b.mu.Unlock()

	if err := b.source.Stop(); err != nil {
		log.Warn("audio: capture release failed", "err", err)
	}
	if frames != nil {
		// source.Stop guarantees deliver is quiescent before returning
		close(frames)
	}
	if err := b.sink.Close(); err != nil {
		log.Warn("audio: playback release failed", "err", err)
	}
}

// playLoop writes scheduled buffers to the sink at their start times.
func (b *Bridge) playLoop() {
	for {
		b.mu.Lock()
		for len(b.pending) == 0 && !b.stopped {
			b.cond.Wait()
		}
		if b.stopped {
			b.mu.Unlock()
			return
		}
		next := b.pending[0]
		b.pending = b.pending[1:]
		b.mu.Unlock()

		if wait := next.start.Sub(b.clock.Now()); wait > 0 {
			select {
			case <-b.clock.After(wait):
			case <-b.done:
				return
			}
		}

		b.mu.Lock()
		stopped := b.stopped
		b.mu.Unlock()
		if stopped {
			return
		}
		if err := b.sink.Write(next.pcm); err != nil {
			log.Warn("audio: playback write failed", "err", err)
		}
	}
}
