// Package listener feeds OS key transitions for a chord to the push-to-talk
// machine.
package listener

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"talkpaste/internal/hotkey"
)

// dropCounter hands events to a consumer without blocking the caller. Events
// the consumer has no room for are counted and reported.
type dropCounter struct {
	n   atomic.Int64
	log zerolog.Logger
}

func (d *dropCounter) offer(events chan<- hotkey.KeyEvent, ev hotkey.KeyEvent) bool {
	select {
	case events <- ev:
		return true
	default:
	}
	n := d.n.Add(1)
	if n == 1 || n%100 == 0 {
		d.log.Warn().
			Str("key", string(ev.Key)).
			Bool("down", ev.Down).
			Int64("dropped", n).
			Msg("key event dropped, consumer not keeping up")
	}
	return false
}

// Dropped returns how many events were discarded so far.
func (d *dropCounter) Dropped() int64 {
	return d.n.Load()
}
