package notify

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// Kind tags a user-facing event.
type Kind string

const (
	Started    Kind = "started"
	Stopped    Kind = "stopped"
	SafetyStop Kind = "safety-stop"
	Error      Kind = "error"
	NoSpeech   Kind = "no-speech"
	Pasted     Kind = "pasted"
)

// Event is something the user should hear or see.
type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Err       error     `json:"-"`
	Time      time.Time `json:"time"`
}

// New stamps an event with the current time.
func New(kind Kind, sessionID string) Event {
	return Event{Kind: kind, SessionID: sessionID, Time: time.Now()}
}

// Notifier receives events. Notify must not block.
type Notifier interface {
	Notify(Event)
}

// Func adapts a function to Notifier.
type Func func(Event)

func (f Func) Notify(ev Event) { f(ev) }

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ev)
		}
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(Event) {}

type tone struct {
	freq float64
	ms   int
}

var tones = map[Kind]tone{
	Started:    {880, 90},
	Stopped:    {660, 90},
	SafetyStop: {440, 400},
	Error:      {220, 300},
	NoSpeech:   {330, 150},
}

// Desktop plays a short cue per event kind and optionally shows a desktop
// notification for outcomes (errors, pasted text, safety stops).
type Desktop struct {
	Sound  bool
	Popups bool
	Title  string
	Log    zerolog.Logger

	beep  func(freq float64, ms int) error
	popup func(title, message string) error
}

// NewDesktop returns a notifier backed by beeep.
func NewDesktop(sound, popups bool, log zerolog.Logger) *Desktop {
	return &Desktop{
		Sound:  sound,
		Popups: popups,
		Title:  "talkpaste",
		Log:    log,
		beep:   beeep.Beep,
		popup: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *Desktop) Notify(ev Event) {
	go d.deliver(ev)
}

func (d *Desktop) deliver(ev Event) {
	if t, ok := tones[ev.Kind]; ok && d.Sound {
		if err := d.beep(t.freq, t.ms); err != nil {
			d.Log.Debug().Err(err).Str("kind", string(ev.Kind)).Msg("beep failed")
		}
	}
	if !d.Popups {
		return
	}
	msg := message(ev)
	if msg == "" {
		return
	}
	if err := d.popup(d.Title, msg); err != nil {
		d.Log.Debug().Err(err).Msg("desktop notification failed")
	}
}

func message(ev Event) string {
	switch ev.Kind {
	case Error:
		if ev.Err != nil {
			return fmt.Sprintf("Failed: %v", ev.Err)
		}
		return "Failed"
	case SafetyStop:
		return "Recording stopped at maximum length"
	case Pasted:
		return ev.Text
	}
	return ""
}
