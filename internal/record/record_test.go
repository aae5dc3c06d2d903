package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"talkpaste/internal/audio"
	"talkpaste/internal/audio/audiotest"
)

func newRecorder(src audio.Source, opts Options) *Recorder {
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.MaxDuration == 0 {
		opts.MaxDuration = 300 * time.Second
	}
	return New(src, opts, zerolog.Nop())
}

func TestStopKeepsLongEnoughSession(t *testing.T) {
	// 50 frames of 160 samples at 16 kHz = 500 ms
	src := &audiotest.Source{FrameSize: 160, Frames: 50, Amplitude: 3000}
	r := newRecorder(src, Options{MinDuration: 300 * time.Millisecond, SilenceThresholdDB: -60})

	sess, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.State != StateRecording {
		t.Fatalf("state = %v", sess.State)
	}
	if !src.WaitDrained(time.Second) {
		t.Fatal("source not drained")
	}
	got, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got.State != StateStopped {
		t.Fatalf("state = %v", got.State)
	}
	if got.Duration() != 500*time.Millisecond {
		t.Fatalf("duration = %v", got.Duration())
	}
	if len(got.Samples()) != 8000 {
		t.Fatalf("samples = %d", len(got.Samples()))
	}
	if got.SafetyStop {
		t.Fatalf("unexpected safety stop")
	}
	if src.Closes() != 1 {
		t.Fatalf("stream closed %d times", src.Closes())
	}
	if r.Active() != nil {
		t.Fatalf("session still active")
	}
}

func TestStopDiscardsShortSession(t *testing.T) {
	// 20 frames = 200 ms
	src := &audiotest.Source{FrameSize: 160, Frames: 20, Amplitude: 3000}
	r := newRecorder(src, Options{MinDuration: 300 * time.Millisecond})
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.WaitDrained(time.Second)

	sess, err := r.Stop()
	var short *SessionTooShortError
	if !errors.As(err, &short) {
		t.Fatalf("expected SessionTooShortError, got %v", err)
	}
	if sess == nil || sess.State != StateDiscarded {
		t.Fatalf("session = %+v", sess)
	}
	if short.Duration != 200*time.Millisecond {
		t.Fatalf("duration = %v", short.Duration)
	}
}

func TestStopDiscardsSilentSession(t *testing.T) {
	// 600 ms of digital silence
	src := &audiotest.Source{FrameSize: 160, Frames: 60, Amplitude: 0}
	r := newRecorder(src, Options{MinDuration: 300 * time.Millisecond, SilenceThresholdDB: -60})
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.WaitDrained(time.Second)

	sess, err := r.Stop()
	var silent *SilentSessionError
	if !errors.As(err, &silent) {
		t.Fatalf("expected SilentSessionError, got %v", err)
	}
	if sess.State != StateDiscarded {
		t.Fatalf("state = %v", sess.State)
	}
}

func TestForceKeepBypassesChecks(t *testing.T) {
	src := &audiotest.Source{FrameSize: 160, Frames: 5, Amplitude: 0}
	r := newRecorder(src, Options{MinDuration: time.Second, SilenceThresholdDB: -60, ForceKeep: true})
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.WaitDrained(time.Second)
	sess, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sess.State != StateStopped {
		t.Fatalf("state = %v", sess.State)
	}
}

func TestMaxDurationTruncatesExactly(t *testing.T) {
	// max 0.25 s at 16 kHz = 4000 samples; frames of 300 do not divide it evenly
	src := &audiotest.Source{FrameSize: 300, Frames: 100, Amplitude: 3000}
	r := newRecorder(src, Options{MaxDuration: 250 * time.Millisecond, MinDuration: 100 * time.Millisecond})
	started, err := r.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	select {
	case in := <-r.Interrupts():
		if in.Reason != StopMaxDuration || in.SessionID != started.ID {
			t.Fatalf("interrupt = %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no max-duration interrupt")
	}

	sess, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := len(sess.Samples()); n != 4000 {
		t.Fatalf("samples = %d, want 4000", n)
	}
	if sess.Duration() != 250*time.Millisecond {
		t.Fatalf("duration = %v", sess.Duration())
	}
	if !sess.SafetyStop {
		t.Fatalf("SafetyStop not set")
	}
}

func TestConcurrentStartRejected(t *testing.T) {
	src := &audiotest.Source{FrameSize: 160, Frames: 10}
	r := newRecorder(src, Options{})
	first, err := r.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Start(context.Background())
	var conc *ConcurrentSessionError
	if !errors.As(err, &conc) || conc.ActiveID != first.ID {
		t.Fatalf("expected ConcurrentSessionError, got %v", err)
	}
	if src.Opens() != 1 {
		t.Fatalf("device opened %d times", src.Opens())
	}
	r.Abort()
	if r.Active() != nil {
		t.Fatalf("Abort left session active")
	}
}

func TestStartCaptureUnavailable(t *testing.T) {
	src := &audiotest.Source{OpenErr: errors.New("no device 99")}
	r := newRecorder(src, Options{DeviceID: 99})
	_, err := r.Start(context.Background())
	var cue *CaptureUnavailableError
	if !errors.As(err, &cue) || cue.DeviceID != 99 {
		t.Fatalf("expected CaptureUnavailableError, got %v", err)
	}
	if r.Active() != nil {
		t.Fatalf("failed start left a session")
	}

	src.SetOpenErr(nil)
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start after recovery: %v", err)
	}
	r.Abort()
}

func TestDeviceErrorMidSession(t *testing.T) {
	src := &audiotest.Source{FrameSize: 160, Frames: 40, ReadErr: errors.New("device unplugged")}
	r := newRecorder(src, Options{})
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case in := <-r.Interrupts():
		if in.Reason != StopDeviceError {
			t.Fatalf("reason = %v", in.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("no device-error interrupt")
	}
	sess, err := r.Stop()
	var cue *CaptureUnavailableError
	if !errors.As(err, &cue) {
		t.Fatalf("expected CaptureUnavailableError, got %v", err)
	}
	if sess.State != StateDiscarded {
		t.Fatalf("state = %v", sess.State)
	}
}

func TestStopWithoutSession(t *testing.T) {
	r := newRecorder(&audiotest.Source{}, Options{})
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("err = %v", err)
	}
}

// queuedStream hands out frames only through TryReadFrame, like a device
// whose callback has filled the backlog since the last blocking read.
type queuedStream struct {
	frames chan audio.Frame
}

func (s *queuedStream) ReadFrame() (audio.Frame, error) {
	time.Sleep(time.Millisecond)
	return audio.Frame{}, audio.ErrReadTimeout
}

func (s *queuedStream) TryReadFrame() (audio.Frame, bool) {
	select {
	case f := <-s.frames:
		return f, true
	default:
		return audio.Frame{}, false
	}
}

func (s *queuedStream) SampleRate() int { return 16000 }
func (s *queuedStream) Close() error    { return nil }

type queuedSource struct{ stream *queuedStream }

func (q *queuedSource) Open(deviceID, sampleRate int) (audio.Stream, error) {
	return q.stream, nil
}

func fillQueued(n int) *queuedStream {
	st := &queuedStream{frames: make(chan audio.Frame, n)}
	for i := 0; i < n; i++ {
		samples := make([]int16, 160)
		for j := range samples {
			samples[j] = 3000
		}
		st.frames <- audio.Frame{Seq: i, SampleRate: 16000, Samples: samples}
	}
	return st
}

func TestStopKeepsBufferedTail(t *testing.T) {
	// 30 frames of 160 samples = 300 ms waiting in the backlog
	src := &queuedSource{stream: fillQueued(30)}
	r := newRecorder(src, Options{MinDuration: 100 * time.Millisecond, SilenceThresholdDB: -60})
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	sess, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := len(sess.Samples()); n != 30*160 {
		t.Fatalf("samples = %d, want %d", n, 30*160)
	}
	if sess.SafetyStop {
		t.Fatal("unexpected safety stop")
	}
}

func TestDrainRespectsMaxDuration(t *testing.T) {
	src := &queuedSource{stream: fillQueued(30)}
	r := newRecorder(src, Options{MinDuration: 100 * time.Millisecond, MaxDuration: 200 * time.Millisecond, SilenceThresholdDB: -60})
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	sess, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := len(sess.Samples()); n != 3200 {
		t.Fatalf("samples = %d, want 3200", n)
	}
	if !sess.SafetyStop {
		t.Fatal("truncated session not flagged")
	}
}
