// Package audio provides capture and playback plumbing for live voice
// sessions: device abstractions, PCM16 framing, and a playback scheduler
// that keeps synthesized speech gapless without ever overlapping buffers.
package audio

import (
	"errors"
	"time"
)

// Wire-contract audio constants shared with the remote agent service.
const (
	// InputSampleRate is the capture sample rate expected by the agent.
	InputSampleRate = 16000

	// OutputSampleRate is the sample rate of synthesized speech.
	OutputSampleRate = 24000

	// CaptureFrameSize is the number of samples per capture frame.
	CaptureFrameSize = 4096
)

// Sentinel errors for the audio package.
var (
	// ErrDeviceUnavailable indicates a capture or playback device could
	// not be acquired (missing hardware, permission denied).
	ErrDeviceUnavailable = errors.New("audio: device unavailable")

	// ErrMalformedAudio indicates an audio payload that could not be
	// decoded. The payload should be dropped; the session continues.
	ErrMalformedAudio = errors.New("audio: malformed audio payload")

	// ErrStopped indicates the bridge has been stopped.
	ErrStopped = errors.New("audio: bridge stopped")
)

// Frame is one fixed-size block of captured samples.
type Frame struct {
	// Samples are mono float samples in [-1, 1].
	Samples []float32

	// Rate is the sample rate of this frame in Hz.
	Rate int
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.Rate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.Rate)
}

// Source captures audio from a microphone or other input device.
// The device is exclusively owned by whoever started it.
type Source interface {
	// Start acquires the device and begins delivering frames of exactly
	// frameSize samples at the given rate. deliver is invoked from the
	// device's own thread and must not block. Start returns
	// ErrDeviceUnavailable if the device cannot be acquired.
	Start(rate, frameSize int, deliver func(Frame)) error

	// Stop releases the device. It returns only after deliver will not
	// be invoked again. Safe to call multiple times, and safe to call
	// if Start never succeeded.
	Stop() error
}

// Sink plays PCM16LE audio on an output device.
type Sink interface {
	// Write queues raw PCM16LE bytes for immediate playback.
	Write(pcm []byte) error

	// Close releases the output device. Safe to call multiple times.
	Close() error
}

// Clock abstracts the playback clock so scheduling is testable.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// PCMDuration returns the playback duration of raw PCM16LE bytes
// at the given sample rate.
func PCMDuration(pcm []byte, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(len(pcm)/2) * time.Second / time.Duration(rate)
}
