package record

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"talkpaste/internal/audio"
)

// State represents session state.
type State int

const (
	StateRecording State = iota
	StateStopped
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateDiscarded:
		return "discarded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StopReason says why capture ended without a Stop call.
type StopReason int

const (
	StopMaxDuration StopReason = iota + 1
	StopDeviceError
)

func (r StopReason) String() string {
	switch r {
	case StopMaxDuration:
		return "max-duration"
	case StopDeviceError:
		return "device-error"
	}
	return "unknown"
}

// Interrupt is delivered on Recorder.Interrupts when capture ends by itself.
type Interrupt struct {
	SessionID string
	Reason    StopReason
}

// CaptureUnavailableError is the audio package's error, matched with errors.As.
type CaptureUnavailableError = audio.CaptureUnavailableError

// ErrNotRecording is returned by Stop when no session is active.
var ErrNotRecording = errors.New("recorder not running")

// ConcurrentSessionError is returned by Start while another session records.
type ConcurrentSessionError struct {
	ActiveID string
}

func (e *ConcurrentSessionError) Error() string {
	return fmt.Sprintf("session %s already recording", e.ActiveID)
}

// SessionTooShortError marks a session discarded for being under the minimum length.
type SessionTooShortError struct {
	Duration time.Duration
	Min      time.Duration
}

func (e *SessionTooShortError) Error() string {
	return fmt.Sprintf("recording too short: %v < %v", e.Duration.Round(time.Millisecond), e.Min)
}

// SilentSessionError marks a session discarded because it held no speech-level audio.
type SilentSessionError struct {
	RMSDB     float64
	Threshold float64
}

func (e *SilentSessionError) Error() string {
	if math.IsInf(e.RMSDB, -1) {
		return fmt.Sprintf("recording silent (threshold %.0f dBFS)", e.Threshold)
	}
	return fmt.Sprintf("recording silent: %.1f dBFS < %.0f dBFS", e.RMSDB, e.Threshold)
}

// Session is one hold of the chord. Frames are appended only by the capture
// goroutine; read them after Stop returns.
type Session struct {
	ID         string
	StartedAt  time.Time
	SampleRate int
	Frames     []audio.Frame
	State      State
	SafetyStop bool
	Level      audio.LevelReport

	samples int
}

// Duration is the captured audio length.
func (s *Session) Duration() time.Duration {
	return audio.SamplesDuration(s.samples, s.SampleRate)
}

// Samples returns the captured audio as one buffer.
func (s *Session) Samples() []int16 {
	return audio.Join(s.Frames)
}

// Options configure a Recorder.
type Options struct {
	DeviceID           int
	SampleRate         int
	MaxDuration        time.Duration
	MinDuration        time.Duration
	SilenceThresholdDB float64
	// ForceKeep skips the minimum length and silence checks.
	ForceKeep bool
}

// Recorder owns the capture source and at most one recording session.
type Recorder struct {
	mu         sync.Mutex
	src        audio.Source
	opts       Options
	log        zerolog.Logger
	active     *Session
	stream     audio.Stream
	stopCancel context.CancelFunc
	done       chan error
	monitor    audio.LevelMonitor
	interrupts chan Interrupt
}

// New creates a recorder.
func New(src audio.Source, opts Options, log zerolog.Logger) *Recorder {
	return &Recorder{
		src:        src,
		opts:       opts,
		log:        log,
		interrupts: make(chan Interrupt, 1),
	}
}

// Interrupts reports sessions that ended on their own (max duration or
// device failure). The owner should call Stop for the reported session.
func (r *Recorder) Interrupts() <-chan Interrupt {
	return r.interrupts
}

// Active returns the recording session, or nil.
func (r *Recorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start opens the capture stream and begins a new session.
func (r *Recorder) Start(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, &ConcurrentSessionError{ActiveID: r.active.ID}
	}

	stream, err := r.src.Open(r.opts.DeviceID, r.opts.SampleRate)
	if err != nil {
		var cue *audio.CaptureUnavailableError
		if errors.As(err, &cue) {
			return nil, err
		}
		return nil, &audio.CaptureUnavailableError{DeviceID: r.opts.DeviceID, SampleRate: r.opts.SampleRate, Err: err}
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	sess := &Session{
		ID:         id.String(),
		StartedAt:  time.Now(),
		SampleRate: stream.SampleRate(),
		State:      StateRecording,
	}
	maxSamples := int(r.opts.MaxDuration.Seconds() * float64(sess.SampleRate))
	if maxSamples <= 0 {
		maxSamples = math.MaxInt
	}

	r.monitor.Reset()
	r.active = sess
	r.stream = stream
	r.done = make(chan error, 1)
	var loopCtx context.Context
	loopCtx, r.stopCancel = context.WithCancel(ctx)

	r.log.Debug().Str("session", sess.ID).Int("rate", sess.SampleRate).Msg("recording started")
	go r.captureLoop(loopCtx, sess, stream, maxSamples, r.done)
	return sess, nil
}

func (r *Recorder) captureLoop(ctx context.Context, sess *Session, stream audio.Stream, maxSamples int, done chan<- error) {
	for {
		select {
		case <-ctx.Done():
			r.drain(sess, stream, maxSamples)
			done <- nil
			return
		default:
		}

		f, err := stream.ReadFrame()
		if errors.Is(err, audio.ErrReadTimeout) {
			continue
		}
		if err != nil {
			r.log.Warn().Str("session", sess.ID).Err(err).Msg("capture read failed")
			r.interrupt(Interrupt{SessionID: sess.ID, Reason: StopDeviceError})
			done <- err
			return
		}

		if r.appendFrame(sess, f, maxSamples) {
			r.log.Warn().Str("session", sess.ID).Dur("max", r.opts.MaxDuration).Msg("max recording length reached")
			r.interrupt(Interrupt{SessionID: sess.ID, Reason: StopMaxDuration})
			done <- nil
			return
		}
	}
}

// drain collects frames the stream already holds once a stop was requested,
// so the tail of the utterance is kept.
func (r *Recorder) drain(sess *Session, stream audio.Stream, maxSamples int) {
	b, ok := stream.(audio.Buffered)
	if !ok {
		return
	}
	n := 0
	for sess.samples < maxSamples {
		f, ok := b.TryReadFrame()
		if !ok {
			break
		}
		n++
		if r.appendFrame(sess, f, maxSamples) {
			break
		}
	}
	if n > 0 {
		r.log.Debug().Str("session", sess.ID).Int("frames", n).Msg("drained buffered frames")
	}
}

// appendFrame adds f to the session, truncated to maxSamples. It reports
// whether the limit was reached.
func (r *Recorder) appendFrame(sess *Session, f audio.Frame, maxSamples int) bool {
	full := false
	if remaining := maxSamples - sess.samples; len(f.Samples) >= remaining {
		f.Samples = f.Samples[:remaining]
		sess.SafetyStop = true
		full = true
	}
	sess.Frames = append(sess.Frames, f)
	sess.samples += len(f.Samples)
	r.monitor.Add(f.Samples)
	return full
}

func (r *Recorder) interrupt(in Interrupt) {
	select {
	case r.interrupts <- in:
	default:
		r.log.Warn().Str("session", in.SessionID).Stringer("reason", in.Reason).Msg("interrupt dropped, previous one unread")
	}
}

// halt ends capture and releases the stream. Caller holds r.mu.
func (r *Recorder) halt() (*Session, error) {
	sess := r.active
	if r.stopCancel != nil {
		r.stopCancel()
	}
	captureErr := <-r.done
	if err := r.stream.Close(); err != nil {
		r.log.Debug().Err(err).Msg("stream close failed")
	}
	r.active = nil
	r.stream = nil
	r.stopCancel = nil
	sess.Level = r.monitor.Report()
	return sess, captureErr
}

// Stop ends the active session and decides whether it is kept.
// A discarded session is returned together with the reason.
func (r *Recorder) Stop() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, ErrNotRecording
	}
	sess, captureErr := r.halt()

	if captureErr != nil {
		sess.State = StateDiscarded
		return sess, &audio.CaptureUnavailableError{DeviceID: r.opts.DeviceID, SampleRate: sess.SampleRate, Err: captureErr}
	}

	log := r.log.With().Str("session", sess.ID).Dur("duration", sess.Duration()).Logger()
	if !r.opts.ForceKeep {
		if d := sess.Duration(); d < r.opts.MinDuration {
			sess.State = StateDiscarded
			log.Debug().Msg("session too short, discarded")
			return sess, &SessionTooShortError{Duration: d, Min: r.opts.MinDuration}
		}
		if t := r.opts.SilenceThresholdDB; t < 0 && sess.Level.RMSDB < t {
			sess.State = StateDiscarded
			log.Debug().Float64("rms_db", sess.Level.RMSDB).Msg("session silent, discarded")
			return sess, &SilentSessionError{RMSDB: sess.Level.RMSDB, Threshold: t}
		}
	}

	sess.State = StateStopped
	log.Info().
		Float64("peak_db", sess.Level.PeakDB).
		Float64("rms_db", sess.Level.RMSDB).
		Str("quality", string(sess.Level.Quality)).
		Bool("safety_stop", sess.SafetyStop).
		Msg("recording stopped")
	return sess, nil
}

// Abort ends and discards the active session, if any.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return
	}
	sess, _ := r.halt()
	sess.State = StateDiscarded
	r.log.Info().Str("session", sess.ID).Msg("recording aborted")
}
