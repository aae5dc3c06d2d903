package hotkey

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"talkpaste/internal/notify"
	"talkpaste/internal/queue"
	"talkpaste/internal/record"
)

// State is the push-to-talk state.
type State int

const (
	Idle State = iota
	Engaged
)

func (s State) String() string {
	if s == Engaged {
		return "engaged"
	}
	return "idle"
}

// Recorder is the part of record.Recorder the machine drives.
type Recorder interface {
	Start(ctx context.Context) (*record.Session, error)
	Stop() (*record.Session, error)
	Abort()
	Interrupts() <-chan record.Interrupt
}

// Enqueuer accepts finished sessions.
type Enqueuer interface {
	Enqueue(queue.Job) error
}

// Machine turns key events into recording sessions. It runs on a single
// goroutine and never blocks on transcription.
type Machine struct {
	chord    Chord
	rec      Recorder
	jobs     Enqueuer
	notifier notify.Notifier
	log      zerolog.Logger

	mu      sync.Mutex
	state   State
	session *record.Session

	pressed map[Key]bool
	// set after a failed start or a safety stop; cleared when a chord key is released
	blocked bool
}

// NewMachine wires a machine for chord.
func NewMachine(chord Chord, rec Recorder, jobs Enqueuer, n notify.Notifier, log zerolog.Logger) *Machine {
	if n == nil {
		n = notify.Nop{}
	}
	return &Machine{
		chord:    chord,
		rec:      rec,
		jobs:     jobs,
		notifier: n,
		log:      log,
		pressed:  make(map[Key]bool),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State, sess *record.Session) {
	m.mu.Lock()
	m.state = s
	m.session = sess
	m.mu.Unlock()
}

// Run consumes events until ctx is done or events is closed. A session still
// recording at that point is aborted.
func (m *Machine) Run(ctx context.Context, events <-chan KeyEvent) error {
	m.log.Info().Str("hotkey", m.chord.String()).Msg("listening")
	defer func() {
		if m.State() == Engaged {
			m.rec.Abort()
			m.setState(Idle, nil)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.handle(ctx, ev)
		case in := <-m.rec.Interrupts():
			m.interrupted(in)
		}
	}
}

func (m *Machine) handle(ctx context.Context, ev KeyEvent) {
	if ev.Down {
		if m.pressed[ev.Key] {
			return
		}
		m.pressed[ev.Key] = true
		if m.state == Idle && !m.blocked && m.chord.HeldBy(m.pressed) {
			m.engage(ctx)
		}
		return
	}

	delete(m.pressed, ev.Key)
	if !m.chord.Contains(ev.Key) {
		return
	}
	m.blocked = false
	if m.state == Engaged {
		m.release()
	}
}

func (m *Machine) engage(ctx context.Context) {
	sess, err := m.rec.Start(ctx)
	if err != nil {
		m.blocked = true
		var conc *record.ConcurrentSessionError
		if errors.As(err, &conc) {
			m.log.Error().Err(err).Msg("recorder already busy at chord press")
		} else {
			m.log.Error().Err(err).Msg("cannot start recording")
		}
		ev := notify.New(notify.Error, "")
		ev.Err = err
		m.notifier.Notify(ev)
		return
	}
	m.setState(Engaged, sess)
	m.log.Debug().Str("session", sess.ID).Msg("chord engaged")
	m.notifier.Notify(notify.New(notify.Started, sess.ID))
}

func (m *Machine) release() {
	sess, err := m.rec.Stop()
	m.setState(Idle, nil)
	m.finish(sess, err)
}

func (m *Machine) interrupted(in record.Interrupt) {
	m.mu.Lock()
	current := m.session
	m.mu.Unlock()
	if m.state != Engaged || current == nil || current.ID != in.SessionID {
		m.log.Debug().Str("session", in.SessionID).Msg("stale interrupt ignored")
		return
	}
	m.log.Warn().Str("session", in.SessionID).Stringer("reason", in.Reason).Msg("recording ended before release")
	sess, err := m.rec.Stop()
	m.setState(Idle, nil)
	// the chord is presumably still held; wait for it to be let go
	m.blocked = true
	m.finish(sess, err)
}

func (m *Machine) finish(sess *record.Session, err error) {
	id := ""
	if sess != nil {
		id = sess.ID
	}
	if err != nil {
		var short *record.SessionTooShortError
		var silent *record.SilentSessionError
		switch {
		case errors.As(err, &short), errors.As(err, &silent):
			m.log.Info().Str("session", id).Err(err).Msg("no speech, session discarded")
			m.notifier.Notify(notify.New(notify.NoSpeech, id))
		default:
			m.log.Error().Str("session", id).Err(err).Msg("recording failed")
			ev := notify.New(notify.Error, id)
			ev.Err = err
			m.notifier.Notify(ev)
		}
		return
	}

	job := queue.Job{
		SessionID:  sess.ID,
		Samples:    sess.Samples(),
		SampleRate: sess.SampleRate,
		SafetyStop: sess.SafetyStop,
		EnqueuedAt: time.Now(),
	}
	if err := m.jobs.Enqueue(job); err != nil {
		m.log.Error().Str("session", id).Err(err).Msg("cannot queue session")
		ev := notify.New(notify.Error, id)
		ev.Err = err
		m.notifier.Notify(ev)
		return
	}
	m.log.Debug().Str("session", id).Dur("duration", sess.Duration()).Msg("session queued")
	if sess.SafetyStop {
		m.notifier.Notify(notify.New(notify.SafetyStop, id))
		return
	}
	m.notifier.Notify(notify.New(notify.Stopped, id))
}
