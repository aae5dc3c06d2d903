package clipboard

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
)

const (
	copyDelay    = 150 * time.Millisecond
	restoreDelay = 900 * time.Millisecond
)

// Board reads and writes the system clipboard.
type Board interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// Keystroker sends the platform paste shortcut to the focused window.
type Keystroker interface {
	Paste() error
}

type systemBoard struct{}

func (systemBoard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemBoard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Sink delivers transcripts into the focused application. Deliveries are
// serialised so concurrent workers never interleave clipboard writes.
type Sink struct {
	mu      sync.Mutex
	board   Board
	keys    Keystroker
	restore bool
	log     zerolog.Logger

	copyDelay    time.Duration
	restoreDelay time.Duration
}

// NewSink builds a sink on the given clipboard and keystroker.
func NewSink(board Board, keys Keystroker, restore bool, log zerolog.Logger) *Sink {
	return &Sink{
		board:        board,
		keys:         keys,
		restore:      restore,
		log:          log,
		copyDelay:    copyDelay,
		restoreDelay: restoreDelay,
	}
}

// NewSystemSink uses the OS clipboard and a synthetic paste keystroke.
func NewSystemSink(restore bool, log zerolog.Logger) (*Sink, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("clipboard not supported on %s (install xclip, xsel or wl-clipboard)", runtime.GOOS)
	}
	keys, err := newKeystroker()
	if err != nil {
		return nil, fmt.Errorf("keystroke setup: %w", err)
	}
	return NewSink(systemBoard{}, keys, restore, log), nil
}

// Deliver places text on the clipboard and pastes it. If the keystroke
// fails the text is left on the clipboard for a manual paste.
func (s *Sink) Deliver(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, prevErr := s.board.ReadAll()
	if err := s.board.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	time.Sleep(s.copyDelay)

	if err := s.keys.Paste(); err != nil {
		s.log.Warn().Err(err).Msg("paste keystroke failed, text left on clipboard")
		return fmt.Errorf("paste keystroke: %w", err)
	}

	if !s.restore || prevErr != nil {
		return nil
	}
	time.Sleep(s.restoreDelay)
	cur, err := s.board.ReadAll()
	if err == nil && cur != text {
		s.log.Debug().Msg("clipboard changed since paste, not restoring")
		return nil
	}
	if err := s.board.WriteAll(prev); err != nil {
		s.log.Debug().Err(err).Msg("clipboard restore failed")
	}
	return nil
}
