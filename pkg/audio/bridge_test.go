package audio

import (
	"bytes"
	"testing"
	"time"
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

// pcmOfDuration returns silence of the given duration at the given rate.
func pcmOfDuration(d time.Duration, rate int) []byte {
	samples := int(d.Seconds() * float64(rate))
	return make([]byte, samples*2)
}

func TestScheduleAdvancesWatermarkExactly(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	sink := NewMockSink()
	b := NewBridge(NewMockSource(), sink, OutputSampleRate, WithClock(clock))
	defer b.Stop()

	// Three back-to-back 200ms buffers with an idle-free schedule: the
	// watermark must advance by exactly each buffer's duration.
	buf := pcmOfDuration(200*time.Millisecond, OutputSampleRate)
	base := clock.Now()
	for i := 1; i <= 3; i++ {
		if err := b.Schedule(buf); err != nil {
			t.Fatalf("schedule %d: %v", i, err)
		}
		want := base.Add(time.Duration(i) * 200 * time.Millisecond)
		if got := b.Watermark(); !got.Equal(want) {
			t.Errorf("after buffer %d: watermark %v, want %v", i, got, want)
		}
	}

	waitFor(t, "3 sink writes", func() bool { return len(sink.Writes()) == 3 })
}

func TestScheduleToleratesGaps(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	b := NewBridge(NewMockSource(), NewMockSink(), OutputSampleRate, WithClock(clock))
	defer b.Stop()

	buf := pcmOfDuration(100*time.Millisecond, OutputSampleRate)
	if err := b.Schedule(buf); err != nil {
		t.Fatal(err)
	}
	first := b.Watermark()

	// Playback went idle: the clock passes the watermark before the
	// next buffer arrives. The new buffer starts at now, not at the
	// stale watermark.
	clock.Advance(500 * time.Millisecond)
	if err := b.Schedule(buf); err != nil {
		t.Fatal(err)
	}
	want := clock.Now().Add(100 * time.Millisecond)
	if got := b.Watermark(); !got.Equal(want) {
		t.Errorf("watermark %v, want %v (first was %v)", got, want, first)
	}
	if got := b.Watermark(); got.Before(first) {
		t.Errorf("watermark went backwards: %v < %v", got, first)
	}
}

func TestPlaybackOrderPreserved(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	sink := NewMockSink()
	b := NewBridge(NewMockSource(), sink, OutputSampleRate, WithClock(clock))
	defer b.Stop()

	bufs := [][]byte{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	for _, buf := range bufs {
		if err := b.Schedule(buf); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "4 sink writes", func() bool { return len(sink.Writes()) == 4 })
	for i, got := range sink.Writes() {
		if !bytes.Equal(got, bufs[i]) {
			t.Errorf("write %d: got %v, want %v", i, got, bufs[i])
		}
	}
}

func TestCaptureMostRecentFrameWins(t *testing.T) {
	source := NewMockSource()
	b := NewBridge(source, NewMockSink(), OutputSampleRate)
	defer b.Stop()

	frames, err := b.StartCapture(InputSampleRate, 4)
	if err != nil {
		t.Fatal(err)
	}

	// Overfill the queue without draining. The newest frame must
	// survive; the oldest are dropped.
	for i := 0; i < captureQueueDepth+4; i++ {
		source.Push([]float32{float32(i), 0, 0, 0})
	}

	var last float32 = -1
	for {
		select {
		case f := <-frames:
			last = f.Samples[0]
			continue
		default:
		}
		break
	}
	if last != float32(captureQueueDepth+3) {
		t.Errorf("newest frame lost: last received marker %v, want %v", last, captureQueueDepth+3)
	}
}

func TestStartCaptureDeviceUnavailable(t *testing.T) {
	source := NewMockSource()
	source.StartErr = ErrDeviceUnavailable
	b := NewBridge(source, NewMockSink(), OutputSampleRate)
	defer b.Stop()

	if _, err := b.StartCapture(InputSampleRate, CaptureFrameSize); err != ErrDeviceUnavailable {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestStopIsIdempotentAndSafeWithoutCapture(t *testing.T) {
	source := NewMockSource()
	sink := NewMockSink()

	// Stop without ever starting capture.
	b := NewBridge(source, sink, OutputSampleRate)
	b.Stop()
	b.Stop()
	if source.Stops() == 0 {
		t.Error("source never released")
	}
	if sink.Closes() == 0 {
		t.Error("sink never released")
	}

	if err := b.Schedule([]byte{1, 2}); err != ErrStopped {
		t.Errorf("schedule after stop: got %v, want ErrStopped", err)
	}
	if _, err := b.StartCapture(InputSampleRate, CaptureFrameSize); err != ErrStopped {
		t.Errorf("capture after stop: got %v, want ErrStopped", err)
	}
}

// gatedSource blocks device acquisition until released, exposing the
// window between StartCapture registering the stream and the device
// actually starting.
type gatedSource struct {
	*MockSource
	entered chan struct{}
	release chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		MockSource: NewMockSource(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (g *gatedSource) Start(rate, frameSize int, deliver func(Frame)) error {
	close(g.entered)
	<-g.release
	return g.MockSource.Start(rate, frameSize, deliver)
}

func TestStopDuringStartCaptureReleasesDevice(t *testing.T) {
	source := newGatedSource()
	b := NewBridge(source, NewMockSink(), OutputSampleRate)

	started := make(chan error, 1)
	go func() {
		_, err := b.StartCapture(InputSampleRate, 4)
		started <- err
	}()

	// Stop wins the race: it completes before the device is acquired.
	<-source.entered
	b.Stop()
	close(source.release)

	if err := <-started; err != ErrStopped {
		t.Fatalf("start capture: got %v, want ErrStopped", err)
	}
	if source.Started() {
		t.Error("late-acquired device never released")
	}
	if source.Stops() == 0 {
		t.Error("device release never attempted")
	}

	// Delivery is quiescent after the release; pushing must not panic.
	source.Push([]float32{1, 0, 0, 0})
}

func TestStopReleasesCaptureAndResetsWatermark(t *testing.T) {
	source := NewMockSource()
	b := NewBridge(source, NewMockSink(), OutputSampleRate)

	frames, err := b.StartCapture(InputSampleRate, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Schedule(pcmOfDuration(time.Second, OutputSampleRate)); err != nil {
		t.Fatal(err)
	}

	b.Stop()
	if source.Started() {
		t.Error("capture device still acquired after Stop")
	}
	if !b.Watermark().IsZero() {
		t.Errorf("watermark not reset: %v", b.Watermark())
	}
	// The frame stream must end so pumps can exit.
	waitFor(t, "frame stream close", func() bool {
		select {
		case _, ok := <-frames:
			return !ok
		default:
			return false
		}
	})
}
