package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MicSource captures audio from the default system microphone via
// miniaudio. The device delivers short periods which are reassembled
// into fixed-size frames before delivery.
type MicSource struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	started bool
}

// NewMicSource creates an unstarted microphone source.
func NewMicSource() *MicSource {
	return &MicSource{}
}

// Start acquires the default capture device.
func (m *MicSource) Start(rate, frameSize int, deliver func(Frame)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init context: %v: %w", err, ErrDeviceUnavailable)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(rate)
	cfg.PeriodSizeInMilliseconds = 20

	// Reassemble device periods into frames of exactly frameSize samples.
	buf := make([]float32, 0, frameSize*2)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			samples, err := UnmarshalPCM16(input)
			if err != nil {
				return
			}
			buf = append(buf, samples...)
			for len(buf) >= frameSize {
				frame := make([]float32, frameSize)
				copy(frame, buf[:frameSize])
				buf = buf[frameSize:]
				deliver(Frame{Samples: frame, Rate: rate})
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init capture device: %v: %w", err, ErrDeviceUnavailable)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start capture device: %v: %w", err, ErrDeviceUnavailable)
	}

	m.ctx = ctx
	m.device = device
	m.started = true
	return nil
}

// Stop releases the capture device. Once Stop returns the data callback
// will not fire again.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
	m.started = false
	return nil
}
